package ws2811

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio/gpiostream"
	"periph.io/x/conn/v3/physic"
)

var (
	errSimConfigured = errors.New("ws2811:sim engine already configured")
	errWaveform      = errors.New("ws2811:malformed waveform")
)

// SimEngine is an Engine for hosts without the hardware. Each Step is one
// pulse timer period: the transfer engine reads one ring slot, the output
// level is sampled at the timer clock, and the refill and completion handlers
// run when due. Handlers run on the stepping goroutine.
type SimEngine struct {
	clock physic.Frequency

	mu         sync.Mutex
	cfg        EngineConfig
	configured bool
	remaining  uint32
	pulses     bool
	refill     bool
	// Refill interrupt period in slots, and slots since the last one.
	refillEvery uint32
	sinceRefill uint32
	skip        int
	realtime    bool
	transfers   int
	wave        []byte
	nbits       int

	transferred atomic.Uint32
}

var _ Engine = (*SimEngine)(nil)

// NewSimEngine returns a simulated engine whose pulse timer ticks at clock.
func NewSimEngine(clock physic.Frequency) *SimEngine {
	return &SimEngine{clock: clock}
}

func (e *SimEngine) Clock() physic.Frequency { return e.clock }

func (e *SimEngine) Configure(cfg EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configured {
		return errSimConfigured
	}
	e.cfg = cfg
	e.configured = true
	return nil
}

// Close detaches the engine so it can be configured again.
func (e *SimEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configured = false
	e.pulses, e.refill = false, false
	e.remaining = 0
	return nil
}

func (e *SimEngine) Transferred() uint32 { return e.transferred.Load() }

func (e *SimEngine) StartTransfer(slots uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transferred.Store(0)
	e.remaining = slots
	e.transfers++
}

func (e *SimEngine) StartPulses() {
	e.mu.Lock()
	e.pulses = true
	e.mu.Unlock()
}

func (e *SimEngine) StopPulses() {
	e.mu.Lock()
	e.pulses = false
	e.mu.Unlock()
}

func (e *SimEngine) StartRefill(period time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	slot := e.slotPeriod()
	e.refillEvery = 1
	if slot > 0 && period > slot {
		e.refillEvery = uint32(period / slot)
	}
	e.sinceRefill = 0
	e.refill = true
}

func (e *SimEngine) StopRefill() {
	e.mu.Lock()
	e.refill = false
	e.mu.Unlock()
}

// SkipRefills drops the next n refill interrupts, as if they were held off
// past their deadline.
func (e *SimEngine) SkipRefills(n int) {
	e.mu.Lock()
	e.skip = n
	e.mu.Unlock()
}

// SetRealtime makes Run keep the pace of the real wire.
func (e *SimEngine) SetRealtime(on bool) {
	e.mu.Lock()
	e.realtime = on
	e.mu.Unlock()
}

// Armed reports whether the pulse timer and the refill interrupt are running.
func (e *SimEngine) Armed() (pulses, refill bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pulses, e.refill
}

// Transfers returns how many transfers have been started.
func (e *SimEngine) Transfers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transfers
}

// Step runs one timer period. It reports false, doing nothing, when no
// transfer is running.
func (e *SimEngine) Step() bool {
	e.mu.Lock()
	if !e.pulses || e.remaining == 0 {
		e.mu.Unlock()
		return false
	}
	n := e.transferred.Load()
	e.emit(e.cfg.Ring[n%RingSize])
	e.transferred.Store(n + 1)
	e.remaining--
	done := e.remaining == 0
	tick := false
	if e.refill {
		e.sinceRefill++
		if e.sinceRefill >= e.refillEvery {
			e.sinceRefill = 0
			if e.skip > 0 {
				e.skip--
			} else {
				tick = true
			}
		}
	}
	refill, complete := e.cfg.Refill, e.cfg.Complete
	e.mu.Unlock()

	if tick {
		refill()
	}
	if done {
		complete()
	}
	return true
}

// Flush steps until the running transfer, if any, completes. It returns the
// number of slots sent.
func (e *SimEngine) Flush() int {
	n := 0
	for e.Step() {
		n++
	}
	return n
}

// Run steps the engine until ctx is done.
func (e *SimEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := 0
		for n < RingSize/2 && e.Step() {
			n++
		}
		e.mu.Lock()
		slot, realtime := e.slotPeriod(), e.realtime
		e.mu.Unlock()
		switch {
		case n == 0:
			time.Sleep(slot * RingSize / 2)
		case realtime:
			time.Sleep(slot * time.Duration(n))
		}
	}
}

// TakeWaveform returns the output captured since the last call, sampled at
// the timer clock, and starts a new capture.
func (e *SimEngine) TakeWaveform() *gpiostream.BitStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs := &gpiostream.BitStream{Bits: e.wave, Freq: e.clock}
	e.wave, e.nbits = nil, 0
	return bs
}

// emit samples one period of the output: high for code ticks, then low.
func (e *SimEngine) emit(code uint16) {
	for i := uint16(0); i < e.cfg.SlotTicks; i++ {
		if e.nbits%8 == 0 {
			e.wave = append(e.wave, 0)
		}
		if i < code {
			e.wave[e.nbits/8] |= 0x80 >> (e.nbits % 8)
		}
		e.nbits++
	}
}

func (e *SimEngine) slotPeriod() time.Duration {
	hz := int64(e.clock / physic.Hertz)
	if hz == 0 {
		return 0
	}
	return time.Duration(int64(e.cfg.SlotTicks) * int64(time.Second) / hz)
}

// Frame is a decoded pulse train.
type Frame struct {
	Bytes []byte
	// ResetSlots is the length of the trailing low hold in slots.
	ResetSlots int
}

// Decode turns a sampled waveform back into wire bytes. The waveform must
// start on a slot boundary and hold one frame: data bits, then the low hold.
func Decode(bs *gpiostream.BitStream, t Timing) (Frame, error) {
	var f Frame
	slot := int(t.SlotTicks)
	if slot == 0 {
		return f, errWaveform
	}
	threshold := int(t.OneTicks+t.ZeroTicks+1) / 2
	var cur byte
	nbits := 0
	slots := len(bs.Bits) * 8 / slot
	for s := 0; s < slots; s++ {
		high := 0
		for i := 0; i < slot; i++ {
			if !sample(bs, s*slot+i) {
				continue
			}
			if high != i {
				return f, errWaveform // High after low within a slot.
			}
			high++
		}
		if high == 0 {
			f.ResetSlots++
			continue
		}
		if f.ResetSlots > 0 {
			return f, errWaveform // Data after the hold.
		}
		cur <<= 1
		if high >= threshold {
			cur |= 1
		}
		nbits++
		if nbits%8 == 0 {
			f.Bytes = append(f.Bytes, cur)
			cur = 0
		}
	}
	if nbits%8 != 0 {
		return f, errWaveform
	}
	return f, nil
}

func sample(bs *gpiostream.BitStream, i int) bool {
	b := bs.Bits[i/8]
	if bs.LSBF {
		return b>>(i%8)&1 != 0
	}
	return b>>(7-i%8)&1 != 0
}
