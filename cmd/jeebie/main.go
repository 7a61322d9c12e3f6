package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/tinygb/dmgcore/jeebie/machine"
	"github.com/tinygb/dmgcore/jeebie/render"
)

func main() {
	app := cli.NewApp()
	app.Name = "jeebie"
	app.Description = "A DMG (Game Boy) core emulation engine"
	app.Usage = "jeebie [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the core without a terminal frontend",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "save",
			Usage: "Write the serialized machine state here after running",
		},
		cli.StringFlag{
			Name:  "load",
			Usage: "Resume from a previously saved state instead of a fresh boot",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("jeebie exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("failed to read ROM: %w", err)
	}
	slog.Debug("loaded ROM", "path", romPath, "size", len(rom))

	m, err := loadOrBoot(c, rom)
	if err != nil {
		return err
	}

	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames option with a positive value")
		}
		m.SetDebuggerState(machine.Running)
		for i := 0; i < frames; i++ {
			m.RunFrames(1)
		}
		slog.Info("headless run complete", "frames", frames, "instructions", m.InstructionCount())
	} else {
		renderer, err := render.NewTerminalRenderer(m)
		if err != nil {
			return err
		}
		if err := renderer.Run(); err != nil {
			return err
		}
	}

	if savePath := c.String("save"); savePath != "" {
		if err := os.WriteFile(savePath, m.Serialize(), 0o644); err != nil {
			return fmt.Errorf("failed to write save state: %w", err)
		}
		slog.Info("saved machine state", "path", savePath)
	}

	return nil
}

func loadOrBoot(c *cli.Context, rom []byte) (*machine.Machine, error) {
	loadPath := c.String("load")
	if loadPath == "" {
		return machine.New(rom), nil
	}

	data, err := os.ReadFile(loadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read save state: %w", err)
	}

	m, err := machine.Deserialize(data, rom)
	if err != nil {
		return nil, fmt.Errorf("failed to restore save state: %w", err)
	}
	slog.Info("restored machine state", "path", loadPath)
	return m, nil
}
