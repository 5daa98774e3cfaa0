package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/nbarrow/pocketdmg"
	"github.com/nbarrow/pocketdmg/internal/backend"
	"github.com/nbarrow/pocketdmg/internal/backend/sdl2"
	"github.com/nbarrow/pocketdmg/internal/backend/terminal"
)

func main() {
	app := cli.NewApp()
	app.Name = "pocketdmg"
	app.Description = "A cycle-scheduled Game Boy / Game Boy Color emulator core"
	app.Usage = "pocketdmg [options] <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "headless",
			Usage: "run without a display backend",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "stop after N frames (0 = no limit; a backend quit request is logged but does not stop the loop)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "display backend: terminal or sdl2",
			Value: "terminal",
		},
		cli.BoolFlag{
			Name:  "gbc",
			Usage: "force Game Boy Color mode even if the cartridge header doesn't request it",
		},
		cli.Float64Flag{
			Name:  "speed",
			Usage: "emulation speed multiplier (1.0 = native 59.7 fps)",
			Value: 1.0,
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "log the frame count every frame at debug level",
		},
		cli.StringFlag{
			Name:  "save",
			Usage: "path to a battery-backed save file (defaults to the ROM path with its extension replaced by .sav)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("pocketdmg exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		cli.ShowAppHelp(c)
		return errors.New("no ROM path provided")
	}
	romPath := c.Args().Get(0)

	if c.Bool("trace") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("read ROM: %w", err)
	}

	savePath := c.String("save")
	if savePath == "" {
		savePath = defaultSavePath(romPath)
	}
	var savedRAM []byte
	if data, err := os.ReadFile(savePath); err == nil {
		savedRAM = data
	}

	sink, err := newSink(c)
	if err != nil {
		return err
	}
	defer sink.Destroy()

	emu, err := pocketdmg.New(rom, savedRAM, c.Bool("gbc"), sink)
	if err != nil {
		return fmt.Errorf("create emulator: %w", err)
	}
	emu.SetSaveFlusher(func(data []byte) error {
		return os.WriteFile(savePath, data, 0o644)
	})

	maxFrames := c.Int("frames")
	headless := c.Bool("headless")
	speed := c.Float64("speed")
	if speed <= 0 {
		speed = 1.0
	}
	frameInterval := time.Duration(float64(time.Second) / 59.7 / speed)

	for maxFrames <= 0 || int(emu.FrameCount()) < maxFrames {
		start := time.Now()
		emu.RunFrame()

		if samples := emu.AudioSamples(); samples != nil {
			if q, ok := sink.(interface{ QueueAudio([]int16) error }); ok {
				if err := q.QueueAudio(samples); err != nil {
					slog.Warn("queue audio failed", "error", err)
				}
			}
		}

		if c.Bool("trace") {
			slog.Debug("frame", "count", emu.FrameCount())
		}

		if !headless {
			if elapsed := time.Since(start); elapsed < frameInterval {
				time.Sleep(frameInterval - elapsed)
			}
		}
	}

	// The 3-second quiet-period flush covers play that stops mid-session;
	// flush unconditionally on the way out too, so the final few seconds of
	// RAM writes before quitting are never lost to the debounce window.
	if data := emu.SaveRAM(); data != nil {
		if err := os.WriteFile(savePath, data, 0o644); err != nil {
			return fmt.Errorf("write save file: %w", err)
		}
	}

	return nil
}

// defaultSavePath derives a battery save path from the ROM path by
// replacing its extension with .sav, per spec.md's save-path convention.
func defaultSavePath(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

func newSink(c *cli.Context) (backend.Sink, error) {
	if c.Bool("headless") {
		return &backend.NullSink{}, nil
	}

	switch c.String("backend") {
	case "sdl2":
		return sdl2.New(backend.Config{Title: "pocketdmg", Scale: 3, VSync: true})
	case "terminal":
		return terminal.New()
	default:
		return nil, fmt.Errorf("unknown backend %q", c.String("backend"))
	}
}
