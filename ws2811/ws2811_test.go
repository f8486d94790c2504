package ws2811

import (
	"image/color"
	"testing"
)

func TestChannelOrder(t *testing.T) {
	for _, tc := range []struct {
		name  string
		order ChannelOrder
		valid bool
	}{
		{"RGB", RGB, true},
		{"RBG", RBG, true},
		{"GRB", GRB, true},
		{"GBR", GBR, true},
		{"BRG", BRG, true},
		{"BGR", BGR, true},
		{"zero", 0, false},
		{"duplicate", 0o011, false},
		{"offset out of pixel", 0o013, false},
		{"too wide", 0o1012, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.order.Valid(); got != tc.valid {
				t.Errorf("%#o.Valid() = %v, want %v", uint16(tc.order), got, tc.valid)
			}
			if tc.valid && tc.order.String() != tc.name {
				t.Errorf("String() = %q, want %q", tc.order.String(), tc.name)
			}
		})
	}
}

func TestParseChannelOrder(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    ChannelOrder
		wantErr bool
	}{
		{in: "GRB", want: GRB},
		{in: "rgb", want: RGB},
		{in: "bGr", want: BGR},
		{in: "RRB", wantErr: true},
		{in: "RG", wantErr: true},
		{in: "RGBW", wantErr: true},
		{in: "RGX", wantErr: true},
	} {
		got, err := ParseChannelOrder(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseChannelOrder(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseChannelOrder(%q) = %#o, want %#o", tc.in, uint16(got), uint16(tc.want))
		}
	}
}

func TestColor(t *testing.T) {
	c := NewColor(0x12, 0x34, 0x56)
	if c != 0x123456 {
		t.Fatalf("NewColor = %#06x, want 0x123456", uint32(c))
	}
	r, g, b := c.RGB()
	if r != 0x12 || g != 0x34 || b != 0x56 {
		t.Errorf("RGB() = %#x %#x %#x", r, g, b)
	}
	r32, g32, b32, a32 := Color(0xff0080).RGBA()
	if r32 != 0xffff || g32 != 0 || b32 != 0x8080 || a32 != 0xffff {
		t.Errorf("RGBA() = %#x %#x %#x %#x", r32, g32, b32, a32)
	}
	if got := ColorOf(color.RGBA{R: 1, G: 2, B: 3, A: 255}); got != 0x010203 {
		t.Errorf("ColorOf = %#06x, want 0x010203", uint32(got))
	}
	if got := ColorOf(Color(0xabcdef)); got != 0xabcdef {
		t.Errorf("ColorOf(Color) = %#06x, want 0xabcdef", uint32(got))
	}
}

func TestNewErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		n    int
		cfg  Config
		want error
	}{
		{"slow speed", 4, Config{Speed: Speed400kHz}, ErrSpeedUnsupported},
		{"bad order", 4, Config{Order: 0o111}, ErrInvalidOrder},
		{"short front", 4, Config{Front: make([]byte, 11)}, ErrBufferSize},
		{"long back", 4, Config{Back: make([]byte, 13)}, ErrBufferSize},
		{"back with single", 4, Config{SingleBuffer: true, Back: make([]byte, 12)}, errBackWithSingle},
		{"negative count", -1, Config{}, errNegativeCount},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.n, tc.cfg)
			if err != tc.want {
				t.Errorf("New() error = %v, want %v", err, tc.want)
			}
			if s != nil {
				t.Error("New() returned a strip on error")
			}
		})
	}
}

func TestNewCallerBuffers(t *testing.T) {
	front := make([]byte, 6)
	back := make([]byte, 6)
	s, err := New(2, Config{Order: RGB, Front: front, Back: back})
	if err != nil {
		t.Fatal(err)
	}
	s.SetRGB(1, 1, 2, 3)
	if front[3] != 1 || front[4] != 2 || front[5] != 3 {
		t.Errorf("front buffer = %v, want pixel 1 at [3:6]", front)
	}
	if s.back == nil || &s.back.buf[0] != &back[0] {
		t.Error("back buffer not used")
	}
}
