//go:build rp2040

// Package rp2dma implements a ws2811.Engine on the RP2040.
//
// A PWM slice is the pulse-width timer, wrapping once per bit slot. One DMA
// channel reads the pulse ring in read-ring mode and writes each code into the
// slice's compare register, paced by the slice's wrap DREQ. TIMER alarm 1 is
// the refill interrupt and DMA_IRQ_0 signals completion.
//
// The output pin, its PWM slice, one DMA channel, TIMER alarm 1 and DMA_IRQ_0
// are not available to the rest of the program.
package rp2dma

import (
	"device/rp"
	"errors"
	"machine"
	"math"
	"runtime/interrupt"
	"runtime/volatile"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/tinygo-org/ws2811/ws2811"
	"periph.io/x/conn/v3/physic"
)

const timeoutRetries = math.MaxUint16 * 8

var (
	errDMAUnavail = errors.New("rp2dma:DMA channel unavailable")
	errEngineBusy = errors.New("rp2dma:engine already configured")
)

// ringBits is log2 of the pulse ring's byte size.
const ringBits = 8

var _ [0]struct{} = [1<<ringBits - ws2811.RingSize*2]struct{}{}

// Single PWM slice. See rp.PWM_Type.
type pwmSliceHW struct {
	CSR volatile.Register32
	DIV volatile.Register32
	CTR volatile.Register32
	CC  volatile.Register32
	TOP volatile.Register32
}

var pwmSlices = (*[8]pwmSliceHW)(unsafe.Pointer(rp.PWM))

const (
	pwmCSR_EN      = 1 << 0
	pwmDIV_INT_Pos = 4

	refillAlarm = 1
)

// Engine drives one pin. Only one Engine can be configured at a time, the
// interrupt handlers find it in active.
type Engine struct {
	pin   machine.Pin
	slice *pwmSliceHW
	dreq  uint32
	dma   dmaChannel
	cfg   ws2811.EngineConfig
	slots uint32

	refillOn     atomic.Bool
	refillPeriod uint32 // µs
	refillNext   uint32
}

var _ ws2811.Engine = (*Engine)(nil)

var (
	active   *Engine
	dmaIRQ   interrupt.Interrupt
	alarmIRQ interrupt.Interrupt
)

func init() {
	dmaIRQ = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMA)
	alarmIRQ = interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm)
}

// New returns an engine that drives pin. Any GPIO has a PWM channel.
func New(pin machine.Pin) *Engine {
	sl := uint8(pin>>1) & 7
	return &Engine{
		pin:   pin,
		slice: &pwmSlices[sl],
		dreq:  _DREQ_PWM_WRAP0 + uint32(sl),
	}
}

// Clock returns the PWM counter rate, the system clock.
func (e *Engine) Clock() physic.Frequency {
	return physic.Frequency(machine.CPUFrequency()) * physic.Hertz
}

// Configure claims a DMA channel and sets the pin up as a PWM output wrapping
// every cfg.SlotTicks system clocks.
func (e *Engine) Configure(cfg ws2811.EngineConfig) error {
	if active != nil {
		return errEngineBusy
	}
	ch, ok := claimDMAChannel()
	if !ok {
		return errDMAUnavail
	}
	e.dma = ch
	e.cfg = cfg

	e.slice.CSR.Set(0)
	e.slice.DIV.Set(1 << pwmDIV_INT_Pos)
	e.slice.TOP.Set(uint32(cfg.SlotTicks) - 1)
	e.slice.CC.Set(0)
	e.slice.CTR.Set(0)
	e.pin.Configure(machine.PinConfig{Mode: machine.PinPWM})

	active = e
	e.dma.enableIRQ()
	// The refill deadline is the tighter one.
	dmaIRQ.SetPriority(0xc0)
	dmaIRQ.Enable()
	alarmIRQ.SetPriority(0x40)
	alarmIRQ.Enable()
	return nil
}

// Close stops the engine and releases its DMA channel.
func (e *Engine) Close() error {
	if active != e {
		return nil
	}
	e.StopRefill()
	if e.dma.busy() {
		e.dma.abort()
	}
	e.StopPulses()
	rp.DMA.INTE0.ClearBits(1 << e.dma.channel)
	e.dma.unclaim()
	active = nil
	return nil
}

func (e *Engine) Transferred() uint32 {
	return e.slots - e.dma.remaining()
}

// StartTransfer arms the DMA channel. It waits for the first PWM wrap, so no
// slot is read before StartPulses.
func (e *Engine) StartTransfer(slots uint32) {
	e.slots = slots
	// Narrow writes to IO registers are replicated across the word, so both
	// compare channels of the slice receive the code.
	e.dma.start(&e.slice.CC, &e.cfg.Ring[0], slots,
		pulseRingCtrl(e.dma.channel, e.dreq, ringBits))
}

func (e *Engine) StartPulses() {
	e.slice.CTR.Set(0)
	e.slice.CSR.SetBits(pwmCSR_EN)
}

// StopPulses disables the slice with a zero compare value, which holds the
// pin low.
func (e *Engine) StopPulses() {
	e.slice.CC.Set(0)
	e.slice.CSR.ClearBits(pwmCSR_EN)
}

func (e *Engine) StartRefill(period time.Duration) {
	e.refillPeriod = uint32(period / time.Microsecond)
	e.refillNext = rp.TIMER.TIMERAWL.Get() + e.refillPeriod
	e.refillOn.Store(true)
	rp.TIMER.INTE.SetBits(1 << refillAlarm)
	rp.TIMER.ALARM1.Set(e.refillNext)
}

func (e *Engine) StopRefill() {
	e.refillOn.Store(false)
	rp.TIMER.INTE.ClearBits(1 << refillAlarm)
	rp.TIMER.ARMED.Set(1 << refillAlarm)
}

func handleDMA(interrupt.Interrupt) {
	e := active
	if e == nil || !e.dma.ackIRQ() {
		return
	}
	e.cfg.Complete()
}

func handleAlarm(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(1 << refillAlarm)
	e := active
	if e == nil || !e.refillOn.Load() {
		return
	}
	e.cfg.Refill()
	if !e.refillOn.Load() {
		return
	}
	e.refillNext += e.refillPeriod
	now := rp.TIMER.TIMERAWL.Get()
	if int32(e.refillNext-now) <= 0 {
		// Running late; the alarm only matches on equality.
		e.refillNext = now + e.refillPeriod
	}
	rp.TIMER.ALARM1.Set(e.refillNext)
}
