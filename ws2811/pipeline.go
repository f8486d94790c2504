package ws2811

import (
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Engine is the hardware half of the pipeline: a pulse-width timer, a
// transfer engine that copies one ring slot into the timer's compare value
// every timer period, and a periodic refill interrupt.
type Engine interface {
	// Clock returns the pulse timer's tick rate.
	Clock() physic.Frequency
	// Configure wires the output pin, timer and transfer engine. It is
	// called once, from Strip.Begin.
	Configure(cfg EngineConfig) error
	// Transferred returns how many slots the transfer engine has read since
	// the last StartTransfer. It is read from the refill interrupt.
	Transferred() uint32
	// StartTransfer arms a transfer of slots codes read circularly from
	// ring slot 0. The completion interrupt fires once all have been read.
	StartTransfer(slots uint32)
	// StartPulses lets the pulse timer start pacing transfers.
	StartPulses()
	// StopPulses stops pacing transfers and leaves the output low.
	StopPulses()
	// StartRefill starts the periodic refill interrupt.
	StartRefill(period time.Duration)
	// StopRefill stops the refill interrupt. It may be called from the
	// refill interrupt itself.
	StopRefill()
}

// EngineConfig is handed to Engine.Configure.
type EngineConfig struct {
	Ring *[RingSize]uint16
	// SlotTicks is the pulse timer period in ticks.
	SlotTicks uint16
	// Refill and Complete are the refill and transfer completion interrupt
	// handlers.
	Refill   func()
	Complete func()
}

// State is the transfer state machine.
type State uint32

const (
	Idle State = iota
	Streaming
	ResettingHold
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case ResettingHold:
		return "resetting"
	case Draining:
		return "draining"
	}
	return "invalid"
}

// pipeline is the output strand: pulse ring, refill producer and state.
//
// Ownership: state is written by the producer (forward transitions) and by the
// completion handler (back to Idle). ring, src and resetLeft belong to the
// producer, and are reset by start only while the pipeline is Idle.
type pipeline struct {
	state     atomic.Uint32
	underruns atomic.Uint32

	engine Engine
	timing Timing
	ring   pulseRing
	// src holds the pixel bytes not yet unpacked.
	src       []byte
	resetLeft uint16
}

// The output hardware is singular, and so is the pipeline.
var (
	mu      sync.Mutex
	strand  pipeline
	claimed bool
)

func claimPipeline() (*pipeline, error) {
	mu.Lock()
	defer mu.Unlock()
	if claimed {
		return nil, ErrPipelineClaimed
	}
	claimed = true
	strand.ring.slots = alignedRing()
	return &strand, nil
}

func (p *pipeline) release() {
	mu.Lock()
	defer mu.Unlock()
	p.engine = nil
	p.src = nil
	claimed = false
}

func (p *pipeline) State() State { return State(p.state.Load()) }

func (p *pipeline) setState(s State) { p.state.Store(uint32(s)) }

// start begins a transfer of src. The pipeline must be Idle.
func (p *pipeline) start(src []byte) {
	// A starved cycle may have left the refill armed.
	p.engine.StopRefill()
	p.src = src
	p.ring.reset()
	p.setState(Streaming)
	// Top off the ring before the hardware starts reading it.
	p.unpack(RingSize)
	refill := p.State() != Draining

	p.engine.StartTransfer(p.timing.FrameSlots(len(src) / 3))
	p.engine.StartPulses()
	if refill {
		p.engine.StartRefill(p.timing.RefillPeriod)
	}
}

// refill is the refill interrupt handler.
func (p *pipeline) refill() {
	avail, ok := p.ring.avail(p.engine.Transferred())
	if !ok {
		p.underruns.Add(1)
	}
	p.unpack(avail)
}

// unpack fills up to avail ring slots: 8 pulse codes per source byte, most
// significant bit first, then the zero-width reset hold.
func (p *pipeline) unpack(avail uint32) {
	st := p.State()
	for st == Streaming && avail >= 8 {
		b := p.src[0]
		p.src = p.src[1:]
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				p.ring.put(p.timing.OneTicks)
			} else {
				p.ring.put(p.timing.ZeroTicks)
			}
		}
		avail -= 8
		if len(p.src) == 0 {
			p.resetLeft = p.timing.ResetSlots
			st = ResettingHold
			p.setState(st)
		}
	}
	for st == ResettingHold && avail > 0 {
		p.ring.put(0)
		avail--
		p.resetLeft--
		if p.resetLeft == 0 {
			st = Draining
			p.setState(st)
		}
	}
	if st == Draining || st == Idle {
		// Nothing left to produce this cycle.
		p.engine.StopRefill()
	}
}

// complete is the transfer completion interrupt handler. It is the only way
// back to Idle.
func (p *pipeline) complete() {
	p.engine.StopPulses()
	if p.State() != Draining {
		// The engine read slots the producer never wrote.
		p.underruns.Add(1)
		p.engine.StopRefill()
	}
	p.setState(Idle)
}
