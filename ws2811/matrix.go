package ws2811

import (
	"errors"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"
	"tinygo.org/x/drivers"
)

var errMatrixSize = errors.New("ws2811:matrix larger than strip")

// Layout is how a strand is folded into a grid.
type Layout uint8

const (
	// Progressive rows all run left to right.
	Progressive Layout = iota
	// Serpentine rows alternate direction, odd rows run right to left.
	Serpentine
)

// Matrix addresses a strip as a grid of LEDs, row by row from the first LED.
type Matrix struct {
	strip  *Strip
	width  int16
	height int16
	layout Layout
}

var (
	_ drivers.Displayer = (*Matrix)(nil)
	_ display.Drawer    = (*Matrix)(nil)
)

// NewMatrix returns a width by height grid over s.
func NewMatrix(s *Strip, width, height int16, layout Layout) (*Matrix, error) {
	if width < 0 || height < 0 || int(width)*int(height) > s.NumPixels() {
		return nil, errMatrixSize
	}
	return &Matrix{strip: s, width: width, height: height, layout: layout}, nil
}

// Index returns the strip index of the LED at x, y, or -1 when off the grid.
func (m *Matrix) Index(x, y int16) int {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return -1
	}
	if m.layout == Serpentine && y%2 == 1 {
		x = m.width - 1 - x
	}
	return int(y)*int(m.width) + int(x)
}

// Size implements drivers.Displayer.
func (m *Matrix) Size() (x, y int16) { return m.width, m.height }

// SetPixel implements drivers.Displayer. Points off the grid are ignored.
func (m *Matrix) SetPixel(x, y int16, c color.RGBA) {
	if i := m.Index(x, y); i >= 0 {
		m.strip.SetPixel(i, NewColor(c.R, c.G, c.B))
	}
}

// At returns the color at x, y.
func (m *Matrix) At(x, y int16) Color {
	if i := m.Index(x, y); i >= 0 {
		return m.strip.Pixel(i)
	}
	return 0
}

// Display implements drivers.Displayer by showing the strip.
func (m *Matrix) Display() error {
	m.strip.Show()
	return nil
}

// String implements display.Drawer.
func (m *Matrix) String() string { return "ws2811.Matrix" }

// Halt implements display.Drawer. It turns every LED off and waits for the
// strand to latch.
func (m *Matrix) Halt() error {
	m.strip.Clear()
	m.strip.Show()
	m.strip.Wait()
	return nil
}

// ColorModel implements display.Drawer.
func (m *Matrix) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements display.Drawer.
func (m *Matrix) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(m.width), int(m.height))
}

// Draw implements display.Drawer. It copies src into dstRect and shows the
// strip.
func (m *Matrix) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	r := dstRect.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := src.At(sp.X+x-dstRect.Min.X, sp.Y+y-dstRect.Min.Y)
			m.strip.SetPixel(m.Index(int16(x), int16(y)), ColorOf(c))
		}
	}
	m.strip.Show()
	return nil
}
