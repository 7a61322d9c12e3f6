// Package machine is the composition root: it wires the CPU, MMU, Timer
// and Joypad together, owns the stepping/frame loop and input scheduling,
// and exposes the top-level state serialization envelope.
package machine

import (
	"log/slog"
	"sync"

	"github.com/tinygb/dmgcore/jeebie/addr"
	"github.com/tinygb/dmgcore/jeebie/cpu"
	"github.com/tinygb/dmgcore/jeebie/memory"
)

// cyclesPerFrame is the fixed T-cycle budget of one frame for this core,
// chosen to match real DMG frame timing even without a PPU driving it.
const cyclesPerFrame = 70224

const (
	framebufferWidth  = 160
	framebufferHeight = 144
)

// DebuggerState controls whether RunFrames advances freely or waits for a
// single-instruction/single-frame request, mirroring a TUI/CLI debugger's
// pause/step controls.
type DebuggerState int

const (
	Running DebuggerState = iota
	Paused
	Step
	StepFrame
)

// Machine owns the whole component graph; sub-components hold no owning
// references back to it or to each other beyond the CPU's MMU pointer and
// what MMU.SetTimer/SetJoypad wire.
type Machine struct {
	cpu    *cpu.CPU
	mmu    *memory.MMU
	timer  *memory.Timer
	joypad *memory.Joypad

	mu               sync.RWMutex
	debuggerState    DebuggerState
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64

	framebuffer [framebufferWidth * framebufferHeight]byte
}

// New returns a Machine with rom loaded and every component in its boot
// state.
func New(rom []byte) *Machine {
	mmu := memory.New()
	mmu.LoadROM(rom)

	timer := memory.NewTimer()
	joypad := memory.NewJoypad()
	mmu.SetTimer(timer)
	mmu.SetJoypad(joypad)

	m := &Machine{
		cpu:    cpu.New(mmu),
		mmu:    mmu,
		timer:  timer,
		joypad: joypad,
	}

	slog.Debug("machine initialized", "rom_size", len(rom))
	return m
}

// Reset returns the CPU, Timer and Joypad to their boot state. The
// debugger state and counters are reset alongside them. The MMU is not
// reset: RAM, OAM, I/O registers and IE keep their contents.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cpu.Reset()
	m.timer.Reset()
	m.joypad.Reset()
	m.debuggerState = Running
	m.stepRequested = false
	m.frameRequested = false
	m.instructionCount = 0
	m.frameCount = 0
}

// Step executes exactly one CPU instruction, ticks the Timer by the
// instruction's T-cycle cost, and ORs a timer interrupt into IF if the
// tick reports one. This is the one place per step Timer.Tick is called,
// matching the single-threaded, synchronous ordering the core promises:
// a Timer IRQ raised here is visible only to the *next* step's dispatch.
func (m *Machine) Step() int {
	cycles := m.cpu.Step()
	if m.timer.Tick(cycles) {
		m.mmu.RequestInterrupt(addr.TimerInterrupt)
	}
	m.instructionCount++
	return cycles
}

// RunFrame steps until at least one full frame's worth of T-cycles has
// elapsed, allowing the last instruction of the frame to overshoot the
// budget rather than splitting it.
func (m *Machine) RunFrame() {
	total := 0
	for total < cyclesPerFrame {
		total += m.Step()
	}
	m.frameCount++
}

// RunFrames advances n frames, honoring the current DebuggerState: Paused
// does nothing, Step executes a single pending instruction then pauses,
// StepFrame executes a single pending frame then pauses, and Running
// executes all n frames freely.
func (m *Machine) RunFrames(n int) {
	m.mu.RLock()
	state := m.debuggerState
	m.mu.RUnlock()

	switch state {
	case Paused:
		return
	case Step:
		m.mu.Lock()
		requested := m.stepRequested
		m.stepRequested = false
		m.mu.Unlock()
		if !requested {
			return
		}
		m.Step()
		m.SetDebuggerState(Paused)
	case StepFrame:
		m.mu.Lock()
		requested := m.frameRequested
		m.frameRequested = false
		m.mu.Unlock()
		if !requested {
			return
		}
		m.RunFrame()
		m.SetDebuggerState(Paused)
	default:
		for i := 0; i < n; i++ {
			m.RunFrame()
		}
		if m.frameCount%60 == 0 {
			slog.Debug("frames completed", "frame", m.frameCount)
		}
	}
}

// PressButton marks b held and, on a released-to-pressed transition, ORs
// the joypad interrupt bit into IF.
func (m *Machine) PressButton(b memory.Button) {
	if !m.joypad.IsPressed(b) {
		m.mmu.RequestInterrupt(addr.JoypadInterrupt)
	}
	m.joypad.PressButton(b)
}

// ReleaseButton marks b released. Only the press edge requests an
// interrupt, per hardware behavior.
func (m *Machine) ReleaseButton(b memory.Button) {
	m.joypad.ReleaseButton(b)
}

// Framebuffer returns the 160x144 pixel buffer callers render. The PPU
// that would populate it with real pixel data is out of scope for this
// core, so every byte stays 0; the hook exists so get-framebuffer has a
// concrete, correctly-sized value to return.
func (m *Machine) Framebuffer() []byte {
	return m.framebuffer[:]
}

func (m *Machine) CPU() *cpu.CPU       { return m.cpu }
func (m *Machine) MMU() *memory.MMU    { return m.mmu }
func (m *Machine) Timer() *memory.Timer { return m.timer }
func (m *Machine) Joypad() *memory.Joypad { return m.joypad }

// SetDebuggerState switches the debugger mode; Step/StepFrame only take
// effect once their matching DebuggerStepInstruction/DebuggerStepFrame
// request method is also called.
func (m *Machine) SetDebuggerState(state DebuggerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debuggerState = state
	slog.Debug("debugger state changed", "state", state)
}

func (m *Machine) DebuggerState() DebuggerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.debuggerState
}

// DebuggerStepInstruction arms a single pending instruction step.
func (m *Machine) DebuggerStepInstruction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepRequested = true
	m.debuggerState = Step
}

// DebuggerStepFrame arms a single pending frame step.
func (m *Machine) DebuggerStepFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameRequested = true
	m.debuggerState = StepFrame
}

func (m *Machine) InstructionCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instructionCount
}

func (m *Machine) FrameCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frameCount
}

const (
	stateMagic   uint16 = 0xDB01
	stateVersion uint8  = 1
	headerSize          = 2 + 1 + 4*2 // magic, version, 4 section sizes (u16 LE)
)

// Serialize encodes the whole Machine as a header {magic, version,
// sizes[]} followed by the CPU, MMU, Timer and Joypad sub-records in that
// order. ROM is not part of the envelope; it is reprovided to
// Deserialize.
func (m *Machine) Serialize() []byte {
	cpuState := m.cpu.Serialize()
	mmuState := m.mmu.Serialize()
	timerState := m.timer.Serialize()
	joypadState := m.joypad.Serialize()

	buf := make([]byte, 0, headerSize+len(cpuState)+len(mmuState)+len(timerState)+len(joypadState))
	buf = append(buf, uint8(stateMagic&0xFF), uint8(stateMagic>>8), stateVersion)
	for _, section := range [][]byte{cpuState, mmuState, timerState, joypadState} {
		size := uint16(len(section))
		buf = append(buf, uint8(size), uint8(size>>8))
	}
	buf = append(buf, cpuState...)
	buf = append(buf, mmuState...)
	buf = append(buf, timerState...)
	buf = append(buf, joypadState...)
	return buf
}

// Deserialize decodes a Machine from the format Serialize produces, with
// rom reprovided since it is never part of the envelope.
func Deserialize(data []byte, rom []byte) (*Machine, error) {
	if len(data) < headerSize {
		return nil, &memory.InvalidStateBuffer{Expected: headerSize, Got: len(data)}
	}
	if rom == nil {
		return nil, &memory.MissingRom{}
	}

	magic := uint16(data[0]) | uint16(data[1])<<8
	version := data[2]
	if magic != stateMagic || version != stateVersion {
		return nil, &memory.InvalidStateBuffer{Expected: headerSize, Got: len(data)}
	}

	sizes := make([]int, 4)
	off := 3
	for i := range sizes {
		sizes[i] = int(uint16(data[off]) | uint16(data[off+1])<<8)
		off += 2
	}

	if len(data) < off+sizes[0]+sizes[1]+sizes[2]+sizes[3] {
		return nil, &memory.InvalidStateBuffer{Expected: off + sizes[0] + sizes[1] + sizes[2] + sizes[3], Got: len(data)}
	}

	mmuData := data[off+sizes[0] : off+sizes[0]+sizes[1]]
	mmu, err := memory.DeserializeMMU(mmuData, rom)
	if err != nil {
		return nil, err
	}

	timerData := data[off+sizes[0]+sizes[1] : off+sizes[0]+sizes[1]+sizes[2]]
	timer, err := memory.DeserializeTimer(timerData)
	if err != nil {
		return nil, err
	}

	joypadData := data[off+sizes[0]+sizes[1]+sizes[2] : off+sizes[0]+sizes[1]+sizes[2]+sizes[3]]
	joypad, err := memory.DeserializeJoypad(joypadData)
	if err != nil {
		return nil, err
	}

	mmu.SetTimer(timer)
	mmu.SetJoypad(joypad)

	cpuData := data[off : off+sizes[0]]
	c, err := cpu.Deserialize(cpuData, mmu)
	if err != nil {
		return nil, err
	}

	return &Machine{cpu: c, mmu: mmu, timer: timer, joypad: joypad}, nil
}
