//go:build rp2040

package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/tinygo-org/ws2811/ws2811"
	"github.com/tinygo-org/ws2811/ws2811/rp2dma"
)

var ws2811Pin string

const numLEDs = 60

/*
This example package can be flashed, specifying the GPIO number via the -ldflags
flag like so:
tinygo flash -target=$TARGET_NAME -ldflags "-X main.ws2811Pin=$GPIO_NUMBER" ./ws2811/examples/strand/
*/
func main() {
	pinNum, err := strconv.Atoi(ws2811Pin)
	if err != nil {
		println("Invalid pin number: " + ws2811Pin)
		pinNum = 16
	}
	strip, err := ws2811.New(numLEDs, ws2811.Config{Order: ws2811.GRB})
	if err != nil {
		panic(err.Error())
	}
	err = strip.Begin(rp2dma.New(machine.Pin(pinNum)))
	if err != nil {
		panic(err.Error())
	}

	const lightIntensity = 64
	var hue uint8
	for frame := 0; ; frame++ {
		for i := 0; i < numLEDs; i++ {
			strip.SetPixel(i, wheel(hue+uint8(i*256/numLEDs), lightIntensity))
		}
		// Returns as soon as the pixels are copied; the next frame is drawn
		// while this one is on the wire.
		strip.Show()
		hue++
		if frame%256 == 0 {
			println("frame", frame, "underruns", strip.Underruns())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// wheel maps pos around a red, green, blue color wheel, scaled to max.
func wheel(pos, max uint8) ws2811.Color {
	scale := func(v int) uint8 { return uint8(v * int(max) / 255) }
	p := int(pos)
	switch {
	case p < 85:
		return ws2811.NewColor(scale(255-p*3), scale(p*3), 0)
	case p < 170:
		p -= 85
		return ws2811.NewColor(0, scale(255-p*3), scale(p*3))
	default:
		p -= 170
		return ws2811.NewColor(scale(p*3), 0, scale(255-p*3))
	}
}
