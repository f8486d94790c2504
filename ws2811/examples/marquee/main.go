//go:build rp2040

package main

import (
	"image/color"
	"machine"
	"strconv"
	"time"

	"github.com/tinygo-org/ws2811/ws2811"
	"github.com/tinygo-org/ws2811/ws2811/rp2dma"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var ws2811Pin string

const (
	width  = 32
	height = 8
)

/*
Scrolls text across a 32x8 serpentine panel. Flash with:
tinygo flash -target=$TARGET_NAME -ldflags "-X main.ws2811Pin=$GPIO_NUMBER" ./ws2811/examples/marquee/
*/
func main() {
	pinNum, err := strconv.Atoi(ws2811Pin)
	if err != nil {
		println("Invalid pin number: " + ws2811Pin)
		pinNum = 16
	}
	strip, err := ws2811.New(width*height, ws2811.Config{})
	if err != nil {
		panic(err.Error())
	}
	err = strip.Begin(rp2dma.New(machine.Pin(pinNum)))
	if err != nil {
		panic(err.Error())
	}
	panel, err := ws2811.NewMatrix(strip, width, height, ws2811.Serpentine)
	if err != nil {
		panic(err.Error())
	}

	const text = "TinyGo WS2811"
	font := &proggy.TinySZ8pt7b
	_, textWidth := tinyfont.LineWidth(font, text)
	fg := color.RGBA{R: 48, G: 8, A: 255}
	for {
		for x := int16(width); x > -int16(textWidth); x-- {
			strip.Clear()
			tinyfont.WriteLine(panel, font, x, height-1, text, fg)
			panel.Display()
			time.Sleep(60 * time.Millisecond)
		}
		println("underruns", strip.Underruns())
	}
}
