package cpu

import "github.com/tinygb/dmgcore/jeebie/memory"

// Flag is one of the 4 flags packed into the high nibble of F.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// Interrupt vectors, in priority order (bit 0 highest).
var interruptVectors = [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}

// illegalOpcodes hard-lock the CPU when fetched as a primary opcode.
var illegalOpcodes = map[uint8]bool{
	0xD3: true, 0xDB: true, 0xDD: true, 0xE3: true, 0xE4: true,
	0xEB: true, 0xEC: true, 0xED: true, 0xF4: true, 0xFC: true, 0xFD: true,
}

// CPU is the SM83 core. Registers are plain fields rather than a packed
// AF/BC/DE/HL type: pairs are synthesized on demand by getBC/setBC and
// friends so the F-register low-nibble masking invariant lives in one
// place (setF) instead of being duplicated at every pair accessor.
type CPU struct {
	mmu *memory.MMU

	a, f       uint8
	b, c       uint8
	d, e       uint8
	h, l       uint8
	sp, pc     uint16
	currentOpcode uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	hardLocked        bool
	stopped           bool

	cycles uint64
}

// New returns a CPU wired to mmu, in its post-boot-ROM state.
func New(mmu *memory.MMU) *CPU {
	c := &CPU{mmu: mmu}
	c.Reset()
	return c
}

// Reset sets every register to its documented post-boot-ROM value.
func (c *CPU) Reset() {
	c.setAF(0x01B0)
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
	c.interruptsEnabled = false
	c.eiPending = false
	c.halted = false
	c.haltBug = false
	c.hardLocked = false
	c.stopped = false
	c.cycles = 0
}

// setF stores only the top nibble of value; the bottom nibble of F is
// always unset, regardless of what a caller tries to write there.
func (c *CPU) setF(value uint8) {
	c.f = value & 0xF0
}

// PC returns the current program counter, for callers outside the package
// that need to observe it (debuggers, the composition root's Reset check).
func (c *CPU) PC() uint16 { return c.pc }

// Halted reports whether the CPU is currently in the low-power HALT state.
func (c *CPU) Halted() bool { return c.halted }

func (c *CPU) getAF() uint16 { return uint16(c.a)<<8 | uint16(c.f) }
func (c *CPU) setAF(v uint16) {
	c.a = uint8(v >> 8)
	c.setF(uint8(v))
}

func (c *CPU) getBC() uint16 { return uint16(c.b)<<8 | uint16(c.c) }
func (c *CPU) setBC(v uint16) {
	c.b = uint8(v >> 8)
	c.c = uint8(v)
}

func (c *CPU) getDE() uint16 { return uint16(c.d)<<8 | uint16(c.e) }
func (c *CPU) setDE(v uint16) {
	c.d = uint8(v >> 8)
	c.e = uint8(v)
}

func (c *CPU) getHL() uint16 { return uint16(c.h)<<8 | uint16(c.l) }
func (c *CPU) setHL(v uint16) {
	c.h = uint8(v >> 8)
	c.l = uint8(v)
}

func (c *CPU) setFlag(flag Flag)         { c.setF(c.f | uint8(flag)) }
func (c *CPU) resetFlag(flag Flag)       { c.setF(c.f &^ uint8(flag)) }
func (c *CPU) isSetFlag(flag Flag) bool  { return c.f&uint8(flag) != 0 }

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

// flagToBit returns 1 if flag is set, 0 otherwise; used with carryFlag by RL/RR/ADC/SBC.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

// readImmediate fetches the byte at PC and advances PC past it.
func (c *CPU) readImmediate() uint8 {
	v := c.mmu.Read(c.pc)
	c.pc++
	return v
}

// readSignedImmediate fetches a signed 8-bit displacement and advances PC.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord fetches the little-endian word at PC and advances PC by 2.
func (c *CPU) readImmediateWord() uint16 {
	lo := c.readImmediate()
	hi := c.readImmediate()
	return uint16(hi)<<8 | uint16(lo)
}

// RequestInterrupt ORs mask into IF via the MMU.
func (c *CPU) RequestInterrupt(mask uint8) {
	c.mmu.Write(0xFF0F, c.mmu.Read(0xFF0F)|mask)
}

// handleInterrupts computes IF & IE & 0x1F and, when IME is set, services
// the lowest-numbered pending bit: clears IME, clears that IF bit, pushes
// PC, jumps to its vector, and charges 20 T-cycles. It reports whether
// anything was pending, regardless of whether IME was set to act on it;
// the caller (Step) decides what a bare "pending" means for the halted
// state.
func (c *CPU) handleInterrupts() bool {
	pending := c.mmu.Read(0xFF0F) & c.mmu.Read(0xFFFF) & 0x1F
	if pending == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	c.interruptsEnabled = false

	var bitPos uint
	for bitPos = 0; bitPos < 5; bitPos++ {
		if pending&(1<<bitPos) != 0 {
			break
		}
	}

	c.mmu.Write(0xFF0F, c.mmu.Read(0xFF0F)&^(1<<bitPos))
	c.pushStack(c.pc)
	c.pc = interruptVectors[bitPos]
	c.cycles += 20

	return true
}

// Step executes exactly one instruction (or one no-op cycle while halted or
// hard-locked) and returns its T-cycle cost.
func (c *CPU) Step() int {
	if c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	if c.hardLocked {
		c.cycles += 4
		return 4
	}

	imeWasEnabled := c.interruptsEnabled
	pending := c.handleInterrupts()
	if pending {
		c.halted = false
	}
	if pending && imeWasEnabled {
		return 20
	}

	if c.halted {
		c.cycles += 4
		return 4
	}

	opcode := c.fetchOpcode()
	if opcode < 0x100 && illegalOpcodes[uint8(opcode)] {
		c.hardLocked = true
		c.cycles += 4
		return 4
	}

	c.currentOpcode = opcode
	op := decode(opcode)
	t := op(c)
	c.cycles += uint64(t)
	return t
}

// fetchOpcode reads the opcode byte at PC, advancing PC unless the HALT bug
// is latched (in which case the same byte is re-read on the next fetch).
// 0xCB is folded into the high byte of a 16-bit opcode so the CB table can
// be addressed independently of the primary one.
func (c *CPU) fetchOpcode() uint16 {
	if c.haltBug {
		c.haltBug = false
		b := c.mmu.Read(c.pc)
		if b != 0xCB {
			return uint16(b)
		}
		cb := c.mmu.Read(c.pc + 1)
		return 0xCB00 | uint16(cb)
	}

	b := c.mmu.Read(c.pc)
	c.pc++
	if b != 0xCB {
		return uint16(b)
	}

	cb := c.mmu.Read(c.pc)
	c.pc++
	return 0xCB00 | uint16(cb)
}
