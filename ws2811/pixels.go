package ws2811

// Pixels is a packed array of LED colors stored in wire byte order.
type Pixels struct {
	buf []byte
	// Byte offsets of each channel within a pixel.
	red, green, blue uint8
}

func newPixels(buf []byte, order ChannelOrder) Pixels {
	r, g, b := order.offsets()
	return Pixels{buf: buf, red: r, green: g, blue: b}
}

// Len returns the number of LEDs.
func (p *Pixels) Len() int { return len(p.buf) / 3 }

// At returns the color of LED i.
func (p *Pixels) At(i int) Color {
	px := p.buf[3*i : 3*i+3]
	return NewColor(px[p.red], px[p.green], px[p.blue])
}

// Set stores c at LED i.
func (p *Pixels) Set(i int, c Color) {
	px := p.buf[3*i : 3*i+3]
	px[p.red], px[p.green], px[p.blue] = c.RGB()
}

// Clear zeroes every LED.
func (p *Pixels) Clear() {
	clear(p.buf)
}

// Bytes returns the underlying wire bytes.
func (p *Pixels) Bytes() []byte { return p.buf }
