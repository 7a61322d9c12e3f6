package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinygb/dmgcore/jeebie/memory"
)

func newTestCPU() *CPU {
	mmu := memory.New()
	mmu.LoadROM(make([]byte, 0x8000))
	return New(mmu)
}

// loadProgram puts program into ROM starting at address and points PC at
// it. Bus writes to the ROM region are dropped, so programs go in via LoadROM.
func loadProgram(c *CPU, address uint16, program ...byte) {
	rom := make([]byte, 0x8000)
	copy(rom[address:], program)
	c.mmu.LoadROM(rom)
	c.pc = address
}

func TestBootConstants(t *testing.T) {
	c := newTestCPU()

	assert.Equal(t, uint16(0x01B0), c.getAF())
	assert.Equal(t, uint16(0x0013), c.getBC())
	assert.Equal(t, uint16(0x00D8), c.getDE())
	assert.Equal(t, uint16(0x014D), c.getHL())
	assert.Equal(t, uint16(0xFFFE), c.sp)
	assert.Equal(t, uint16(0x0100), c.pc)
	assert.False(t, c.interruptsEnabled)
	assert.False(t, c.halted)
}

func TestLdAImm(t *testing.T) {
	c := newTestCPU()
	loadProgram(c, 0x0200, 0x3E, 0x55)

	cycles := c.Step()

	assert.Equal(t, 8, cycles)
	assert.Equal(t, uint16(0x0202), c.pc)
	assert.Equal(t, uint8(0x55), c.a)
}

func TestEIDelay(t *testing.T) {
	c := newTestCPU()
	loadProgram(c, 0x0200,
		0xFB, // EI
		0x00, // NOP
	)

	c.Step()
	assert.False(t, c.interruptsEnabled, "IME should not take effect until after the instruction following EI")

	c.Step()
	assert.True(t, c.interruptsEnabled)
}

func TestIllegalOpcodeHardLock(t *testing.T) {
	c := newTestCPU()
	loadProgram(c, 0x0200, 0xED)

	cycles := c.Step()
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0x0201), c.pc)
	assert.True(t, c.hardLocked)

	cycles = c.Step()
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0x0201), c.pc, "PC must not advance once hard-locked")

	c.mmu.Write(0xFF0F, uint8(1)) // VBlank pending
	c.mmu.Write(0xFFFF, uint8(1))
	c.Step()
	assert.Equal(t, uint16(0x0201), c.pc, "a pending interrupt must not unlock a hard-locked CPU")
}

func TestHaltWakesOnPendingInterrupt(t *testing.T) {
	c := newTestCPU()
	c.interruptsEnabled = true
	c.halted = true

	c.mmu.Write(0xFF0F, uint8(0x01))
	c.mmu.Write(0xFFFF, uint8(0x01))

	cycles := c.Step()
	assert.Equal(t, 20, cycles, "a serviced interrupt while halted charges the dispatch cost")
	assert.False(t, c.halted)
	assert.Equal(t, uint16(0x40), c.pc)
}

func TestHaltBugRereadsOpcodeByte(t *testing.T) {
	c := newTestCPU()
	loadProgram(c, 0x0200,
		0x76, // HALT
		0x3C, // INC A
	)

	c.interruptsEnabled = false
	c.mmu.Write(0xFF0F, uint8(0x01))
	c.mmu.Write(0xFFFF, uint8(0x01))

	c.Step() // HALT executes, latches the halt bug instead of halting
	assert.True(t, c.haltBug)
	assert.Equal(t, uint16(0x0201), c.pc)

	c.Step() // re-reads the byte at 0x0201 (INC A) without advancing past it
	assert.False(t, c.haltBug)
	assert.Equal(t, uint16(0x0201), c.pc, "the halt-bugged fetch does not advance PC")
	assert.Equal(t, uint8(0x02), c.a, "A was 0x01 at boot")

	c.Step() // the same byte is fetched again, this time advancing normally
	assert.Equal(t, uint16(0x0202), c.pc)
	assert.Equal(t, uint8(0x03), c.a, "the halt bug runs the instruction at 0x0201 twice")
}

func TestHaltBugRereadsCBOpcode(t *testing.T) {
	c := newTestCPU()
	c.b = 0x00 // bit 0 clear
	loadProgram(c, 0x0200,
		0x76,       // HALT
		0xCB, 0x40, // BIT 0,B (two-byte CB opcode)
	)

	c.interruptsEnabled = false
	c.mmu.Write(0xFF0F, uint8(0x01))
	c.mmu.Write(0xFFFF, uint8(0x01))

	c.Step() // HALT executes, latches the halt bug instead of halting
	assert.True(t, c.haltBug)
	assert.Equal(t, uint16(0x0201), c.pc)

	cycles := c.Step() // re-folds the CB opcode at 0x0201/0x0202 without advancing PC
	assert.False(t, c.haltBug)
	assert.Equal(t, 8, cycles)
	assert.Equal(t, uint16(0x0201), c.pc, "the halt-bugged fetch does not advance PC even for a CB opcode")
	assert.True(t, c.isSetFlag(zeroFlag))

	cycles = c.Step() // the same CB opcode is fetched again, this time advancing normally
	assert.Equal(t, 8, cycles)
	assert.Equal(t, uint16(0x0203), c.pc)
}

func TestInterruptPriorityOrder(t *testing.T) {
	c := newTestCPU()
	c.interruptsEnabled = true
	c.mmu.Write(0xFFFF, uint8(0x1F))
	c.mmu.Write(0xFF0F, uint8(0x0C)) // Timer (bit 2) and Serial (bit 3) both pending

	c.Step()

	assert.Equal(t, uint16(0x50), c.pc, "Timer (bit 2) has priority over Serial (bit 3)")
	assert.Equal(t, uint8(0xE8), c.mmu.Read(0xFF0F), "only the serviced bit is cleared (bits 7-5 of IF always read 1)")
	assert.False(t, c.interruptsEnabled)
}

func TestDAAAfterBCDAddition(t *testing.T) {
	c := newTestCPU()
	c.a = 0x45
	c.addToA(0x38, false) // 0x45 + 0x38 = 0x7D, invalid BCD
	c.daa()

	assert.Equal(t, uint8(0x83), c.a, "0x45 + 0x38 in BCD is 83")
	assert.False(t, c.isSetFlag(carryFlag))
}

func TestPushPopRoundTrip(t *testing.T) {
	c := newTestCPU()
	c.sp = 0xFFFE
	c.pushStack(0xBEEF)

	assert.Equal(t, uint16(0xFFFC), c.sp)
	assert.Equal(t, uint16(0xBEEF), c.popStack())
	assert.Equal(t, uint16(0xFFFE), c.sp)
}

func TestJrSignedDisplacement(t *testing.T) {
	c := newTestCPU()
	loadProgram(c, 0x0200,
		0x18, // JR
		0xFE, // -2
	)

	cycles := c.Step()

	assert.Equal(t, 12, cycles)
	assert.Equal(t, uint16(0x0200), c.pc, "JR -2 from just past its operand loops back to itself")
}

func TestCBBitOpcodeOnRegister(t *testing.T) {
	c := newTestCPU()
	c.b = 0x00 // bit 0 clear
	// BIT 0,B
	loadProgram(c, 0x0200, 0xCB, 0x40)

	cycles := c.Step()

	assert.Equal(t, 8, cycles)
	assert.True(t, c.isSetFlag(zeroFlag))
	assert.True(t, c.isSetFlag(halfCarryFlag))
	assert.False(t, c.isSetFlag(subFlag))
}

func TestCBSetOpcodeOnHLAddr(t *testing.T) {
	c := newTestCPU()
	c.setHL(0xC000)
	c.mmu.Write(0xC000, 0x00)
	loadProgram(c, 0x0200, 0xCB, 0xC6) // SET 0,(HL)

	cycles := c.Step()

	assert.Equal(t, 16, cycles)
	assert.Equal(t, uint8(0x01), c.mmu.Read(0xC000))
}

func TestSerializeRoundTrip(t *testing.T) {
	c := newTestCPU()
	c.setAF(0x1234)
	c.setBC(0x5678)
	c.pc = 0x0200
	c.sp = 0xFFF0
	c.interruptsEnabled = true
	c.eiPending = true
	c.hardLocked = true

	data := c.Serialize()
	restored, err := Deserialize(data, c.mmu)

	assert.NoError(t, err)
	assert.Equal(t, c.getAF(), restored.getAF())
	assert.Equal(t, c.getBC(), restored.getBC())
	assert.Equal(t, c.pc, restored.pc)
	assert.Equal(t, c.sp, restored.sp)
	assert.Equal(t, c.interruptsEnabled, restored.interruptsEnabled)
	assert.Equal(t, c.eiPending, restored.eiPending)
	assert.Equal(t, c.hardLocked, restored.hardLocked)
}

func TestDeserializeRejectsShortBuffer(t *testing.T) {
	c := newTestCPU()
	_, err := Deserialize(make([]byte, 4), c.mmu)
	assert.Error(t, err)
}
