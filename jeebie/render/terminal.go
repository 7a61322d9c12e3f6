// Package render provides a minimal terminal frontend for driving a
// Machine interactively, using tcell for both input and output.
package render

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/tinygb/dmgcore/jeebie/machine"
	"github.com/tinygb/dmgcore/jeebie/memory"
)

const (
	width     = 160
	height    = 144
	frameTime = time.Second / 60
)

var shadeChars = []rune{' ', '░', '▒', '█'}

// TerminalRenderer paints Machine.Framebuffer as ASCII shading and
// forwards key events to its Joypad. Since the PPU that would populate
// the framebuffer with real pixels is out of scope here, every frame
// renders as a blank shade until a sibling subsystem starts writing to
// it; the point of this renderer is the real input/render loop around
// that placeholder, not the pixels themselves.
type TerminalRenderer struct {
	screen  tcell.Screen
	machine *machine.Machine
	running bool
}

func NewTerminalRenderer(m *machine.Machine) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}

	return &TerminalRenderer{
		screen:  screen,
		machine: m,
		running: true,
	}, nil
}

func (t *TerminalRenderer) Run() error {
	defer t.screen.Fini()

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	go t.handleInput()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for t.running {
		select {
		case <-ticker.C:
			t.machine.RunFrames(1)
			t.render()
			t.screen.Show()
		case <-signals:
			slog.Info("received signal to stop")
			return nil
		}
	}

	return nil
}

func (t *TerminalRenderer) handleInput() {
	for t.running {
		ev := t.screen.PollEvent()
		key, ok := ev.(*tcell.EventKey)
		if !ok {
			continue
		}

		switch key.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			t.running = false
			return
		case tcell.KeyEnter:
			t.machine.PressButton(memory.ButtonStart)
		case tcell.KeyRight:
			t.machine.PressButton(memory.ButtonRight)
		case tcell.KeyLeft:
			t.machine.PressButton(memory.ButtonLeft)
		case tcell.KeyUp:
			t.machine.PressButton(memory.ButtonUp)
		case tcell.KeyDown:
			t.machine.PressButton(memory.ButtonDown)
		case tcell.KeyRune:
			switch key.Rune() {
			case 'a':
				t.machine.PressButton(memory.ButtonA)
			case 's':
				t.machine.PressButton(memory.ButtonB)
			case 'q':
				t.machine.PressButton(memory.ButtonSelect)
			case ' ':
				if t.machine.DebuggerState() == machine.Paused {
					t.machine.SetDebuggerState(machine.Running)
				} else {
					t.machine.SetDebuggerState(machine.Paused)
				}
			case 'n':
				t.machine.DebuggerStepInstruction()
			case 'f':
				t.machine.DebuggerStepFrame()
			}
		}
	}
}

func (t *TerminalRenderer) render() {
	termWidth, termHeight := t.screen.Size()
	fb := t.machine.Framebuffer()

	for y := 0; y < height && y < termHeight; y++ {
		for x := 0; x < width && x < termWidth; x++ {
			shade := fb[y*width+x] >> 6 // top 2 bits select one of 4 real shades
			t.screen.SetContent(x, y, shadeChars[shade], nil, tcell.StyleDefault)
		}
	}
}
