// Package ws2811 drives a single strand of WS2811/WS2812 LEDs from a pulse
// ring that a refill interrupt keeps ahead of a DMA-fed pulse-width timer.
//
// The hardware side is supplied as an [Engine]. On the RP2040 use package
// rp2dma; on a host [SimEngine] stands in for the timer, DMA channel and
// interrupts.
package ws2811

import (
	"errors"
	"image/color"
	"runtime"
)

var (
	ErrSpeedUnsupported = errors.New("ws2811:400kHz speed not implemented")
	ErrInvalidOrder     = errors.New("ws2811:invalid channel order")
	ErrBufferSize       = errors.New("ws2811:pixel buffer size mismatch")
	ErrPipelineClaimed  = errors.New("ws2811:output pipeline already claimed")
	ErrClockRange       = errors.New("ws2811:pulse timer clock out of range")

	errBegun          = errors.New("ws2811:already begun")
	errNegativeCount  = errors.New("ws2811:negative LED count")
	errBackWithSingle = errors.New("ws2811:back buffer given in single-buffer mode")
)

const (
	badNotBegun = "ws2811: Show called before Begin"
)

// ChannelOrder tells which byte of a pixel carries each color. It is three
// octal digits: the byte offsets of red, green and blue, most significant first.
type ChannelOrder uint16

const (
	RGB ChannelOrder = 0o012
	RBG ChannelOrder = 0o021
	GRB ChannelOrder = 0o102 // Most strips are wired this way.
	GBR ChannelOrder = 0o201
	BRG ChannelOrder = 0o120
	BGR ChannelOrder = 0o210
)

func (o ChannelOrder) offsets() (r, g, b uint8) {
	return uint8(o>>6) & 7, uint8(o>>3) & 7, uint8(o) & 7
}

// Valid reports whether o places red, green and blue at three distinct offsets
// inside a 3-byte pixel.
func (o ChannelOrder) Valid() bool {
	if o > 0o777 {
		return false
	}
	r, g, b := o.offsets()
	return r < 3 && g < 3 && b < 3 && r != g && g != b && r != b
}

func (o ChannelOrder) String() string {
	if !o.Valid() {
		return "invalid"
	}
	var s [3]byte
	r, g, b := o.offsets()
	s[r], s[g], s[b] = 'R', 'G', 'B'
	return string(s[:])
}

// ParseChannelOrder parses names such as "GRB".
func ParseChannelOrder(s string) (ChannelOrder, error) {
	if len(s) != 3 {
		return 0, ErrInvalidOrder
	}
	var o ChannelOrder
	var seen uint8
	for i := 0; i < 3; i++ {
		var shift uint8
		switch s[i] {
		case 'R', 'r':
			shift = 6
		case 'G', 'g':
			shift = 3
		case 'B', 'b':
			shift = 0
		default:
			return 0, ErrInvalidOrder
		}
		if seen&(1<<(shift/3)) != 0 {
			return 0, ErrInvalidOrder
		}
		seen |= 1 << (shift / 3)
		o |= ChannelOrder(i) << shift
	}
	return o, nil
}

// Speed selects the protocol bit rate.
type Speed uint8

const (
	Speed800kHz Speed = 0o0 // Nearly all WS2811 strips.
	Speed400kHz Speed = 0o4 // Early WS2811 pixels. Not implemented.
)

// Color is a packed 0xRRGGBB value.
type Color uint32

// NewColor packs r, g and b into a Color.
func NewColor(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// RGB unpacks c.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// RGBA implements [color.Color]. Colors are always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB()
	r, g, b = uint32(r8), uint32(g8), uint32(b8)
	return r | r<<8, g | g<<8, b | b<<8, 0xffff
}

// ColorOf converts any color to a Color, dropping alpha.
func ColorOf(c color.Color) Color {
	r, g, b, _ := c.RGBA()
	return NewColor(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Config holds the construction options for a Strip.
type Config struct {
	// Order is the strand's wiring order. Zero means GRB.
	Order ChannelOrder
	Speed Speed
	// Front and Back optionally supply pixel storage of exactly 3 bytes per
	// LED. Nil buffers are allocated.
	Front []byte
	Back  []byte
	// SingleBuffer drops the back buffer. Show then streams straight from
	// the front buffer, so pixels must not be changed until Busy reports false.
	SingleBuffer bool
}

func gosched() {
	runtime.Gosched()
}
