//go:build !tinygo

// Command ws2811sim drives a strip through the simulated engine and checks
// that every frame decoded from the output waveform matches the pixels shown.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/tinygo-org/ws2811/ws2811"
)

var (
	numLEDs      = 64
	orderName    = "GRB"
	singleBuffer = false
	frames       = 16
	realtime     = false
	clock        = 125 * physic.MegaHertz
	text         = ""
	skipRefills  = 0
	verbose      = false
)

func init() {
	pflag.IntVarP(&numLEDs, "leds", "n", numLEDs, "number of LEDs")
	pflag.StringVar(&orderName, "order", orderName, "channel order, such as GRB or RGB")
	pflag.BoolVar(&singleBuffer, "single-buffer", singleBuffer, "stream straight from the front buffer")
	pflag.IntVar(&frames, "frames", frames, "number of frames to show")
	pflag.BoolVar(&realtime, "realtime", realtime, "keep the pace of the real wire")
	pflag.Var(frequencyFlag{&clock}, "clock", "pulse timer clock")
	pflag.StringVar(&text, "text", text, "scroll text on an 8 row serpentine panel")
	pflag.IntVar(&skipRefills, "skip-refills", skipRefills, "drop refill interrupts in the first frame")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose logging")
}

// frequencyFlag adapts physic.Frequency to pflag.
type frequencyFlag struct{ *physic.Frequency }

func (frequencyFlag) Type() string { return "frequency" }

const panelHeight = 8

func main() {
	log.SetFlags(0)
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	order, err := ws2811.ParseChannelOrder(orderName)
	if err != nil {
		return fmt.Errorf("invalid order %q: %w", orderName, err)
	}
	timing, err := ws2811.NewTiming(clock, ws2811.Speed800kHz)
	if err != nil {
		return fmt.Errorf("failed to derive timing at %s: %w", clock, err)
	}

	strip, err := ws2811.New(numLEDs, ws2811.Config{
		Order:        order,
		SingleBuffer: singleBuffer,
	})
	if err != nil {
		return fmt.Errorf("failed to create a strip: %w", err)
	}

	sim := ws2811.NewSimEngine(clock)
	sim.SetRealtime(realtime)
	if err := strip.Begin(sim); err != nil {
		return fmt.Errorf("failed to begin strip: %w", err)
	}

	logger.Info(
		"strip ready",
		"leds", numLEDs,
		"order", order,
		"slot", timing.SlotPeriod(),
		"one_ticks", timing.OneTicks,
		"zero_ticks", timing.ZeroTicks,
		"reset_slots", timing.ResetSlots,
		"refill", timing.RefillPeriod)

	var panel *ws2811.Matrix
	if text != "" {
		panel, err = ws2811.NewMatrix(strip, int16(numLEDs/panelHeight), panelHeight, ws2811.Serpentine)
		if err != nil {
			return fmt.Errorf("failed to create a panel: %w", err)
		}
	}

	d := driver{
		strip:  strip,
		sim:    sim,
		timing: timing,
		panel:  panel,
		logger: logger,
	}

	// The engine must outlive the driver, which waits on it between frames.
	simCtx, stopSim := context.WithCancel(context.Background())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sim.Run(simCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer stopSim()
		return d.run(ctx, frames)
	})

	err = g.Wait()
	return errors.Join(err, strip.Close())
}

type driver struct {
	strip  *ws2811.Strip
	sim    *ws2811.SimEngine
	timing ws2811.Timing
	panel  *ws2811.Matrix
	logger *slog.Logger
}

var errFrameMismatch = errors.New("decoded frame does not match pixels")

func (d *driver) run(ctx context.Context, frames int) error {
	var underruns uint32
	for f := 0; f < frames; f++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		d.draw(f)
		want := bytes.Clone(d.strip.Pixels().Bytes())
		if f == 0 && skipRefills > 0 {
			d.sim.SkipRefills(skipRefills)
		}
		d.strip.Show()
		d.strip.Wait()
		wave := d.sim.TakeWaveform()
		if f == 0 {
			d.sim.SkipRefills(0)
		}

		if n := d.strip.Underruns(); n != underruns {
			// The wire carried stale codes, there is nothing to check.
			d.logger.Warn(
				"refill underrun",
				"frame", f,
				"underruns", n-underruns)
			underruns = n
			continue
		}

		frame, err := ws2811.Decode(wave, d.timing)
		if err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		if !bytes.Equal(frame.Bytes, want) {
			return fmt.Errorf("frame %d: %w", f, errFrameMismatch)
		}
		if frame.ResetSlots < int(d.timing.ResetSlots) {
			return fmt.Errorf("frame %d: reset hold of %d slots, want %d",
				f, frame.ResetSlots, d.timing.ResetSlots)
		}

		d.logger.Debug(
			"frame sent",
			"frame", f,
			"bytes", len(frame.Bytes),
			"reset_slots", frame.ResetSlots)

		if d.panel != nil {
			fmt.Print(render(d.panel))
		}
	}

	d.logger.Info(
		"done",
		"frames", frames,
		"underruns", d.strip.Underruns())
	return nil
}

// draw renders frame f into the front buffer.
func (d *driver) draw(f int) {
	d.strip.Clear()
	if d.panel != nil {
		w, _ := d.panel.Size()
		tinyfont.WriteLine(d.panel, &proggy.TinySZ8pt7b, w-int16(f), panelHeight-1, text,
			color.RGBA{R: 0xff, G: 0x40, A: 0xff})
		return
	}
	for i := 0; i < d.strip.NumPixels(); i++ {
		d.strip.SetRGB(i, uint8(i*7+f*11), uint8(i*13+f*3), uint8(f*29-i))
	}
}

// render draws the panel as text, one character per LED.
func render(m *ws2811.Matrix) string {
	var sb strings.Builder
	w, h := m.Size()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			if m.At(x, y) != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}
