//go:build rp2040

package rp2dma

import (
	"device/rp"
	"runtime/volatile"
	"unsafe"
)

type dmaChannel struct {
	hw      *dmaChannelHW
	channel uint8
}

// Single DMA channel. See rp.DMA_Type.
type dmaChannelHW struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	_           [12]volatile.Register32 // aliases
}

const numDMAChannels = 12

// DMA channels usable on the RP2040.
var dmaChannels = (*[numDMAChannels]dmaChannelHW)(unsafe.Pointer(rp.DMA))

// Channels claimed by this package.
var claimedDMAMask uint16

// claimDMAChannel claims the highest free channel. TinyGo's own drivers
// allocate from channel 0 upwards.
func claimDMAChannel() (dmaChannel, bool) {
	for i := numDMAChannels - 1; i >= 0; i-- {
		if claimedDMAMask&(1<<i) == 0 {
			claimedDMAMask |= 1 << i
			return dmaChannel{hw: &dmaChannels[i], channel: uint8(i)}, true
		}
	}
	return dmaChannel{}, false
}

func (ch dmaChannel) unclaim() {
	claimedDMAMask &^= 1 << ch.channel
}

const (
	_DREQ_PWM_WRAP0 = 0x18

	dmaSize16 = 1
)

// pulseRingCtrl returns a CTRL_TRIG value that copies 16-bit codes from a read
// ring of 1<<ringBits bytes into a fixed register, one per dreq.
func pulseRingCtrl(channel uint8, dreq, ringBits uint32) uint32 {
	return 1<<rp.DMA_CH0_CTRL_TRIG_EN_Pos |
		1<<rp.DMA_CH0_CTRL_TRIG_HIGH_PRIORITY_Pos |
		dmaSize16<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
		1<<rp.DMA_CH0_CTRL_TRIG_INCR_READ_Pos |
		ringBits<<rp.DMA_CH0_CTRL_TRIG_RING_SIZE_Pos |
		// Chaining to itself disables chaining.
		uint32(channel)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos |
		dreq<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos
}

// start transfers count elements from src to dst. A paced channel waits for
// its first dreq before the first transfer.
func (ch dmaChannel) start(dst *volatile.Register32, src *uint16, count, ctrl uint32) {
	hw := ch.hw
	hw.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(src))))
	hw.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(dst))))
	hw.TRANS_COUNT.Set(count)
	hw.CTRL_TRIG.Set(ctrl)
}

// remaining returns the transfers left in the current sequence.
func (ch dmaChannel) remaining() uint32 {
	return ch.hw.TRANS_COUNT.Get()
}

// abort aborts the current transfer sequence on the channel and blocks until
// all in-flight transfers have been flushed through the address and data FIFOs.
func (ch dmaChannel) abort() {
	chMask := uint32(1 << ch.channel)
	rp.DMA.CHAN_ABORT.Set(chMask)
	retries := timeoutRetries
	for rp.DMA.CHAN_ABORT.Get()&chMask != 0 && retries > 0 {
		retries--
	}
	if retries == 0 {
		println("rp2dma: DMA abort timeout")
	}
}

func (ch dmaChannel) busy() bool {
	return ch.hw.CTRL_TRIG.Get()&rp.DMA_CH0_CTRL_TRIG_BUSY != 0
}

// enableIRQ routes the channel's completion to DMA_IRQ_0.
func (ch dmaChannel) enableIRQ() {
	rp.DMA.INTE0.SetBits(1 << ch.channel)
}

// ackIRQ clears the channel's pending DMA_IRQ_0 and reports whether it was set.
func (ch dmaChannel) ackIRQ() bool {
	mask := uint32(1 << ch.channel)
	if rp.DMA.INTS0.Get()&mask == 0 {
		return false
	}
	rp.DMA.INTS0.Set(mask)
	return true
}
