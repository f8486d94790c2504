package ws2811

import (
	"testing"
	"unsafe"
)

// newTestPipeline wires a pipeline that is not the shared strand to a
// SimEngine.
func newTestPipeline(t *testing.T) (*pipeline, *SimEngine) {
	t.Helper()
	tm, err := NewTiming(testClock, Speed800kHz)
	if err != nil {
		t.Fatal(err)
	}
	e := NewSimEngine(testClock)
	p := &pipeline{engine: e, timing: tm}
	p.ring.slots = new([RingSize]uint16)
	err = e.Configure(EngineConfig{
		Ring:      p.ring.slots,
		SlotTicks: tm.SlotTicks,
		Refill:    p.refill,
		Complete:  p.complete,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p, e
}

func TestAlignedRing(t *testing.T) {
	r := alignedRing()
	if addr := uintptr(unsafe.Pointer(&r[0])); addr%ringBytes != 0 {
		t.Errorf("ring at %#x is not %d-byte aligned", addr, ringBytes)
	}
}

func TestRingAvail(t *testing.T) {
	var r pulseRing
	r.slots = new([RingSize]uint16)
	for _, tc := range []struct {
		written, transferred uint32
		want                 uint32
		ok                   bool
	}{
		{0, 0, RingSize, true},
		{RingSize, 0, 0, true},
		{RingSize, 64, 64, true},
		{200, 200, RingSize, true},
		{64, 65, RingSize, false},
		// Counts wrap.
		{5, 0xfffffff0, RingSize - 21, true},
	} {
		r.written = tc.written
		got, ok := r.avail(tc.transferred)
		if got != tc.want || ok != tc.ok {
			t.Errorf("written %d, transferred %d: avail = %d, %v, want %d, %v",
				tc.written, tc.transferred, got, ok, tc.want, tc.ok)
		}
	}
}

func TestUnpackByte(t *testing.T) {
	p, _ := newTestPipeline(t)
	one, zero := p.timing.OneTicks, p.timing.ZeroTicks
	p.src = []byte{0xA5}
	p.setState(Streaming)
	p.unpack(8)

	want := []uint16{one, zero, one, zero, zero, one, zero, one}
	for i, code := range want {
		if p.ring.slots[i] != code {
			t.Errorf("slot %d = %d, want %d", i, p.ring.slots[i], code)
		}
	}
	if p.ring.written != 8 {
		t.Errorf("written = %d, want 8", p.ring.written)
	}
	if st := p.State(); st != ResettingHold {
		t.Errorf("state = %v, want %v", st, ResettingHold)
	}
}

func TestUnpackWholeFrame(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.src = []byte{0xA5}
	p.setState(Streaming)
	p.unpack(RingSize)

	if st := p.State(); st != Draining {
		t.Fatalf("state = %v, want %v", st, Draining)
	}
	if want := 8 + uint32(p.timing.ResetSlots); p.ring.written != want {
		t.Errorf("written = %d, want %d", p.ring.written, want)
	}
	for i := 8; i < p.ring.cursor(); i++ {
		if p.ring.slots[i] != 0 {
			t.Errorf("reset slot %d = %d, want 0", i, p.ring.slots[i])
		}
	}
}

func TestUnpackWaitsForWholeByte(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.src = []byte{0xff, 0x00}
	p.setState(Streaming)
	p.unpack(7)
	if p.ring.written != 0 || len(p.src) != 2 {
		t.Errorf("unpack(7) wrote %d slots, %d bytes left", p.ring.written, len(p.src))
	}
	p.unpack(15)
	if p.ring.written != 8 || len(p.src) != 1 {
		t.Errorf("unpack(15) wrote %d slots, %d bytes left", p.ring.written, len(p.src))
	}
}

func TestResetHoldAcrossRefills(t *testing.T) {
	p, e := newTestPipeline(t)
	p.src = []byte{0xff}
	p.setState(Streaming)
	e.StartRefill(p.timing.RefillPeriod)
	p.unpack(8)

	reset := uint32(p.timing.ResetSlots)
	for sent := uint32(0); sent < reset; sent += 3 {
		if st := p.State(); st != ResettingHold {
			t.Fatalf("after %d reset slots: state = %v, want %v", sent, st, ResettingHold)
		}
		if _, refill := e.Armed(); !refill {
			t.Fatalf("after %d reset slots: refill disarmed early", sent)
		}
		p.unpack(3)
	}
	if st := p.State(); st != Draining {
		t.Fatalf("state = %v, want %v", st, Draining)
	}
	if _, refill := e.Armed(); refill {
		t.Error("refill still armed while draining")
	}
	if want := 8 + reset; p.ring.written != want {
		t.Errorf("written = %d, want %d", p.ring.written, want)
	}

	// Nothing more is produced.
	p.unpack(RingSize)
	if want := 8 + reset; p.ring.written != want {
		t.Errorf("written = %d after draining, want %d", p.ring.written, want)
	}
}

func TestCompleteGoesIdle(t *testing.T) {
	p, e := newTestPipeline(t)
	p.start([]byte{1, 2, 3})
	if pulses, _ := e.Armed(); !pulses {
		t.Fatal("pulses not started")
	}
	if n := e.Flush(); n != int(p.timing.FrameSlots(1)) {
		t.Errorf("sent %d slots, want %d", n, p.timing.FrameSlots(1))
	}
	if st := p.State(); st != Idle {
		t.Errorf("state = %v, want %v", st, Idle)
	}
	if pulses, refill := e.Armed(); pulses || refill {
		t.Errorf("armed after completion: pulses %v, refill %v", pulses, refill)
	}
}

func TestRefillKeepsAhead(t *testing.T) {
	p, e := newTestPipeline(t)
	src := make([]byte, 3*50)
	p.start(src)
	if _, refill := e.Armed(); !refill {
		t.Fatal("refill not started for a frame longer than the ring")
	}
	e.Flush()
	if n := p.underruns.Load(); n != 0 {
		t.Errorf("underruns = %d, want 0", n)
	}
	if p.ring.written != p.timing.FrameSlots(50) {
		t.Errorf("written = %d, want %d", p.ring.written, p.timing.FrameSlots(50))
	}
}

func TestRefillUnderrun(t *testing.T) {
	p, e := newTestPipeline(t)
	p.start(make([]byte, 3*20))
	e.SkipRefills(2)
	e.Flush()
	if n := p.underruns.Load(); n != 1 {
		t.Errorf("underruns = %d, want 1", n)
	}
	if st := p.State(); st != Idle {
		t.Errorf("state = %v, want %v", st, Idle)
	}
}

// disarmLog records the producer's view each time the refill is disarmed.
type disarmLog struct {
	*SimEngine
	p       *pipeline
	states  []State
	written []uint32
}

func (l *disarmLog) StopRefill() {
	l.states = append(l.states, l.p.State())
	l.written = append(l.written, l.p.ring.written)
	l.SimEngine.StopRefill()
}

func TestStartDisarmsStaleRefill(t *testing.T) {
	p, e := newTestPipeline(t)
	log := &disarmLog{SimEngine: e, p: p}
	p.engine = log
	// Left over from a cycle whose refills never ran.
	e.StartRefill(p.timing.RefillPeriod)
	p.ring.written = 37

	p.start(make([]byte, 3*10))
	if len(log.states) == 0 {
		t.Fatal("refill not disarmed")
	}
	if log.states[0] != Idle || log.written[0] != 37 {
		t.Errorf("first disarm saw state %v, written %d; want %v, 37", log.states[0], log.written[0], Idle)
	}
	if _, refill := e.Armed(); !refill {
		t.Error("refill not rearmed for the new cycle")
	}
}

func TestCompleteCountsStarvedCycle(t *testing.T) {
	p, e := newTestPipeline(t)
	p.start(make([]byte, 3*20))
	e.SkipRefills(100)
	e.Flush()
	if n := p.underruns.Load(); n != 1 {
		t.Errorf("underruns = %d, want 1", n)
	}
	if _, refill := e.Armed(); refill {
		t.Error("refill armed after completion")
	}
	if st := p.State(); st != Idle {
		t.Errorf("state = %v, want %v", st, Idle)
	}
}
