package ws2811

import "io"

// Strip is a strand of WS2811 LEDs.
//
// In double-buffer mode SetPixel writes to the front buffer and Show copies
// it to the back buffer, so pixels can be updated again as soon as Show
// returns. In single-buffer mode Show streams the front buffer itself. Pixels
// may then not be changed until Busy reports false. Nothing stops you, but the
// strand will briefly show the wrong colors.
type Strip struct {
	n     int
	speed Speed
	front Pixels
	back  *Pixels
	pl    *pipeline
}

// New returns a strip of n LEDs. Call Begin before Show.
func New(n int, cfg Config) (*Strip, error) {
	if n < 0 {
		return nil, errNegativeCount
	}
	if cfg.Speed != Speed800kHz {
		return nil, ErrSpeedUnsupported
	}
	order := cfg.Order
	if order == 0 {
		order = GRB
	}
	if !order.Valid() {
		return nil, ErrInvalidOrder
	}
	front, err := pixelBuffer(cfg.Front, n)
	if err != nil {
		return nil, err
	}
	s := &Strip{
		n:     n,
		speed: cfg.Speed,
		front: newPixels(front, order),
	}
	switch {
	case cfg.SingleBuffer && cfg.Back != nil:
		return nil, errBackWithSingle
	case !cfg.SingleBuffer:
		back, err := pixelBuffer(cfg.Back, n)
		if err != nil {
			return nil, err
		}
		px := newPixels(back, order)
		s.back = &px
	}
	return s, nil
}

func pixelBuffer(buf []byte, n int) ([]byte, error) {
	if buf == nil {
		return make([]byte, 3*n), nil
	}
	if len(buf) != 3*n {
		return nil, ErrBufferSize
	}
	return buf, nil
}

// Begin claims the output pipeline and configures the hardware behind e. It
// must be called once before Show.
func (s *Strip) Begin(e Engine) error {
	if s.pl != nil {
		return errBegun
	}
	t, err := NewTiming(e.Clock(), s.speed)
	if err != nil {
		return err
	}
	p, err := claimPipeline()
	if err != nil {
		return err
	}
	p.engine = e
	p.timing = t
	p.underruns.Store(0)
	p.setState(Idle)
	err = e.Configure(EngineConfig{
		Ring:      p.ring.slots,
		SlotTicks: t.SlotTicks,
		Refill:    p.refill,
		Complete:  p.complete,
	})
	if err != nil {
		p.release()
		return err
	}
	s.Clear()
	s.pl = p
	return nil
}

// Close waits for the transfer in flight to finish and releases the output
// pipeline. The engine is closed too if it is an io.Closer.
func (s *Strip) Close() error {
	if s.pl == nil {
		return nil
	}
	s.Wait()
	var err error
	if c, ok := s.pl.engine.(io.Closer); ok {
		err = c.Close()
	}
	s.pl.release()
	s.pl = nil
	return err
}

// Show starts sending the pixels to the strand. It waits for a previous
// transfer to finish first.
func (s *Strip) Show() {
	if s.n == 0 {
		return
	}
	p := s.pl
	if p == nil {
		panic(badNotBegun)
	}
	for p.State() == Streaming {
		gosched()
	}
	// The strand is latching, copy pixels meanwhile.
	src := s.front.buf
	if s.back != nil {
		copy(s.back.buf, s.front.buf)
		src = s.back.buf
	}
	for p.State() != Idle {
		gosched()
	}
	p.start(src)
}

// Busy reports whether pixel data is still being unpacked. In single-buffer
// mode the pixels must not be changed while Busy is true.
func (s *Strip) Busy() bool {
	return s.pl != nil && s.pl.State() == Streaming
}

// Wait spins until the transfer in flight, reset hold included, has finished.
func (s *Strip) Wait() {
	if s.pl == nil {
		return
	}
	for s.pl.State() != Idle {
		gosched()
	}
}

// State returns the pipeline state.
func (s *Strip) State() State {
	if s.pl == nil {
		return Idle
	}
	return s.pl.State()
}

// Underruns returns how many times the transfer engine was found ahead of the
// ring, by a refill interrupt or by a transfer that completed before the reset
// hold was written. Each one means a corrupted frame on the wire.
func (s *Strip) Underruns() uint32 {
	if s.pl == nil {
		return 0
	}
	return s.pl.underruns.Load()
}

// NumPixels returns the number of LEDs.
func (s *Strip) NumPixels() int { return s.n }

// Pixel returns the color of LED i.
func (s *Strip) Pixel(i int) Color { return s.front.At(i) }

// SetPixel sets LED i to c.
func (s *Strip) SetPixel(i int, c Color) { s.front.Set(i, c) }

// SetRGB sets LED i to r, g, b.
func (s *Strip) SetRGB(i int, r, g, b uint8) { s.front.Set(i, NewColor(r, g, b)) }

// Clear turns every LED off. Call Show to send it.
func (s *Strip) Clear() { s.front.Clear() }

// Pixels returns the front buffer.
func (s *Strip) Pixels() *Pixels { return &s.front }
