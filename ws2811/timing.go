package ws2811

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// WS2811 fast-mode wire timings.
// https://cdn-shop.adafruit.com/datasheets/WS2812B.pdf
const (
	bitRate   = 800 * physic.KiloHertz
	oneHigh   = 800 * time.Nanosecond
	zeroHigh  = 400 * time.Nanosecond
	latchHold = 50 * time.Microsecond
)

// Timing is the protocol expressed in pulse timer ticks.
type Timing struct {
	Clock physic.Frequency
	// SlotTicks is the timer period, one bit slot.
	SlotTicks uint16
	// OneTicks and ZeroTicks are the high times of a 1 and a 0 bit.
	OneTicks  uint16
	ZeroTicks uint16
	// ResetSlots is the number of zero-width slots that make up the latch hold.
	ResetSlots uint16
	// RefillPeriod is the refill interrupt interval, half a ring drain.
	RefillPeriod time.Duration
}

// NewTiming derives the pulse codes for a timer ticking at clock.
func NewTiming(clock physic.Frequency, speed Speed) (Timing, error) {
	if speed != Speed800kHz {
		return Timing{}, ErrSpeedUnsupported
	}
	if clock < bitRate {
		return Timing{}, ErrClockRange
	}
	slot := clock / bitRate
	one := ticks(clock, oneHigh)
	zero := ticks(clock, zeroHigh)
	if slot > 0xffff || zero == 0 || one <= zero || one >= int64(slot) {
		return Timing{}, ErrClockRange
	}
	period := time.Duration(int64(slot) * int64(time.Second) / int64(clock/physic.Hertz))
	return Timing{
		Clock:        clock,
		SlotTicks:    uint16(slot),
		OneTicks:     uint16(one),
		ZeroTicks:    uint16(zero),
		ResetSlots:   uint16((latchHold + period - 1) / period),
		RefillPeriod: period * RingSize / 2,
	}, nil
}

// SlotPeriod returns the duration of one bit slot.
func (t Timing) SlotPeriod() time.Duration {
	return time.Duration(int64(t.SlotTicks) * int64(time.Second) / int64(t.Clock/physic.Hertz))
}

// FrameSlots returns the transfer length for n LEDs, reset hold included.
func (t Timing) FrameSlots(n int) uint32 {
	return uint32(n)*24 + uint32(t.ResetSlots)
}

// ticks rounds d to the nearest whole tick of clock.
func ticks(clock physic.Frequency, d time.Duration) int64 {
	hz := int64(clock / physic.Hertz)
	return (hz*int64(d) + int64(time.Second)/2) / int64(time.Second)
}
