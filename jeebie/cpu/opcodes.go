package cpu

// Opcode implements one instruction (primary or CB-prefixed) and returns
// its T-cycle cost, which varies by branch outcome for JR/JP/CALL/RET.
type Opcode func(*CPU) int

// getReg8/setReg8 address the 8 possible operands of an r/r'-shaped
// opcode by their standard 3-bit encoding (B,C,D,E,H,L,(HL),A); several
// opcode blocks (LD r,r', the ALU A,r block, INC/DEC r, LD r,d8) are
// regular enough in this encoding to share one computed dispatcher apiece
// instead of 8 (or 64) near-identical hand-written functions.
func (c *CPU) getReg8(code uint8) uint8 {
	switch code {
	case 0:
		return c.b
	case 1:
		return c.c
	case 2:
		return c.d
	case 3:
		return c.e
	case 4:
		return c.h
	case 5:
		return c.l
	case 6:
		return c.mmu.Read(c.getHL())
	default:
		return c.a
	}
}

func (c *CPU) setReg8(code uint8, v uint8) {
	switch code {
	case 0:
		c.b = v
	case 1:
		c.c = v
	case 2:
		c.d = v
	case 3:
		c.e = v
	case 4:
		c.h = v
	case 5:
		c.l = v
	case 6:
		c.mmu.Write(c.getHL(), v)
	default:
		c.a = v
	}
}

func nop(c *CPU) int { return 4 }

func stop(c *CPU) int {
	c.readImmediate() // STOP's second byte, conventionally 0x00
	c.stopped = true
	return 4
}

func halt(c *CPU) int {
	// The HALT bug triggers when IME is off but an interrupt is already
	// pending: the CPU does not halt, and the next fetch fails to advance PC.
	pending := c.mmu.Read(0xFF0F) & c.mmu.Read(0xFFFF) & 0x1F
	if !c.interruptsEnabled && pending != 0 {
		c.haltBug = true
	} else {
		c.halted = true
	}
	return 4
}

func di(c *CPU) int {
	c.interruptsEnabled = false
	c.eiPending = false
	return 4
}

func ei(c *CPU) int {
	c.eiPending = true
	return 4
}

func daaOp(c *CPU) int { c.daa(); return 4 }
func cplOp(c *CPU) int { c.cpl(); return 4 }
func scfOp(c *CPU) int { c.scf(); return 4 }
func ccfOp(c *CPU) int { c.ccf(); return 4 }

// ldRR implements the whole 0x40-0x7F LD r,r' block (HALT at 0x76 is
// registered separately and never reaches here).
func ldRR(c *CPU) int {
	op := uint8(c.currentOpcode)
	dst := (op >> 3) & 7
	src := op & 7
	c.setReg8(dst, c.getReg8(src))
	if dst == 6 || src == 6 {
		return 8
	}
	return 4
}

// ldRImm implements LD r,d8 for all 8 operands (0x06,0x0E,...,0x3E plus
// 0x36 for (HL)).
func ldRImm(c *CPU) int {
	dst := (uint8(c.currentOpcode) >> 3) & 7
	v := c.readImmediate()
	c.setReg8(dst, v)
	if dst == 6 {
		return 12
	}
	return 8
}

// incR/decR implement INC r / DEC r for all 8 operands.
func incR(c *CPU) int {
	code := (uint8(c.currentOpcode) >> 3) & 7
	v := c.getReg8(code)
	c.inc(&v)
	c.setReg8(code, v)
	if code == 6 {
		return 12
	}
	return 4
}

func decR(c *CPU) int {
	code := (uint8(c.currentOpcode) >> 3) & 7
	v := c.getReg8(code)
	c.dec(&v)
	c.setReg8(code, v)
	if code == 6 {
		return 12
	}
	return 4
}

// aluRR implements the 0x80-0xBF ALU A,r block (ADD/ADC/SUB/SBC/AND/XOR/OR/CP).
func aluRR(c *CPU) int {
	op := uint8(c.currentOpcode)
	value := c.getReg8(op & 7)
	switch (op >> 3) & 7 {
	case 0:
		c.addToA(value, false)
	case 1:
		c.addToA(value, true)
	case 2:
		c.sub(value, false)
	case 3:
		c.sub(value, true)
	case 4:
		c.and(value)
	case 5:
		c.xor(value)
	case 6:
		c.or(value)
	default:
		c.cp(value)
	}
	if op&7 == 6 {
		return 8
	}
	return 4
}

// 16-bit loads.

func ldImmToBC(c *CPU) int { c.setBC(c.readImmediateWord()); return 12 }
func ldImmToDE(c *CPU) int { c.setDE(c.readImmediateWord()); return 12 }
func ldImmToHL(c *CPU) int { c.setHL(c.readImmediateWord()); return 12 }
func ldImmToSP(c *CPU) int { c.sp = c.readImmediateWord(); return 12 }

func ldAToBCAddr(c *CPU) int { c.mmu.Write(c.getBC(), c.a); return 8 }
func ldAToDEAddr(c *CPU) int { c.mmu.Write(c.getDE(), c.a); return 8 }
func ldBCAddrToA(c *CPU) int { c.a = c.mmu.Read(c.getBC()); return 8 }
func ldDEAddrToA(c *CPU) int { c.a = c.mmu.Read(c.getDE()); return 8 }

func ldAToHLAddrInc(c *CPU) int {
	hl := c.getHL()
	c.mmu.Write(hl, c.a)
	c.setHL(hl + 1)
	return 8
}

func ldAToHLAddrDec(c *CPU) int {
	hl := c.getHL()
	c.mmu.Write(hl, c.a)
	c.setHL(hl - 1)
	return 8
}

func ldHLAddrToAInc(c *CPU) int {
	hl := c.getHL()
	c.a = c.mmu.Read(hl)
	c.setHL(hl + 1)
	return 8
}

func ldHLAddrToADec(c *CPU) int {
	hl := c.getHL()
	c.a = c.mmu.Read(hl)
	c.setHL(hl - 1)
	return 8
}

func ldSPToImmAddr(c *CPU) int {
	addr := c.readImmediateWord()
	c.mmu.WriteWord(addr, c.sp)
	return 20
}

func ldHLToSP(c *CPU) int { c.sp = c.getHL(); return 8 }

func ldSPOffsetToHL(c *CPU) int {
	offset := c.readSignedImmediate()
	c.setHL(c.addToSP(offset))
	return 12
}

func addSPImm(c *CPU) int {
	offset := c.readSignedImmediate()
	c.sp = c.addToSP(offset)
	return 16
}

func ldhImmAddrToA(c *CPU) int {
	offset := c.readImmediate()
	c.a = c.mmu.Read(0xFF00 + uint16(offset))
	return 12
}

func ldhAToImmAddr(c *CPU) int {
	offset := c.readImmediate()
	c.mmu.Write(0xFF00+uint16(offset), c.a)
	return 12
}

func ldhCAddrToA(c *CPU) int {
	c.a = c.mmu.Read(0xFF00 + uint16(c.c))
	return 8
}

func ldhAToCAddr(c *CPU) int {
	c.mmu.Write(0xFF00+uint16(c.c), c.a)
	return 8
}

func ldImmAddrToA(c *CPU) int {
	addr := c.readImmediateWord()
	c.a = c.mmu.Read(addr)
	return 16
}

func ldAToImmAddr(c *CPU) int {
	addr := c.readImmediateWord()
	c.mmu.Write(addr, c.a)
	return 16
}

// 16-bit INC/DEC (flags untouched).

func incBC(c *CPU) int { c.setBC(c.getBC() + 1); return 8 }
func incDE(c *CPU) int { c.setDE(c.getDE() + 1); return 8 }
func incHL16(c *CPU) int { c.setHL(c.getHL() + 1); return 8 }
func incSP(c *CPU) int { c.sp++; return 8 }
func decBC(c *CPU) int { c.setBC(c.getBC() - 1); return 8 }
func decDE(c *CPU) int { c.setDE(c.getDE() - 1); return 8 }
func decHL16(c *CPU) int { c.setHL(c.getHL() - 1); return 8 }
func decSP(c *CPU) int { c.sp--; return 8 }

// Rotates on A (unlike the CB block, these always clear Z).

func rlca(c *CPU) int {
	c.rlc(&c.a)
	c.resetFlag(zeroFlag)
	return 4
}

func rrca(c *CPU) int {
	c.rrc(&c.a)
	c.resetFlag(zeroFlag)
	return 4
}

func rla(c *CPU) int {
	c.rl(&c.a)
	c.resetFlag(zeroFlag)
	return 4
}

func rra(c *CPU) int {
	c.rr(&c.a)
	c.resetFlag(zeroFlag)
	return 4
}

// ALU A,d8.

func addImmToA(c *CPU) int   { c.addToA(c.readImmediate(), false); return 8 }
func adcImmToA(c *CPU) int   { c.addToA(c.readImmediate(), true); return 8 }
func subImmFromA(c *CPU) int { c.sub(c.readImmediate(), false); return 8 }
func sbcImmFromA(c *CPU) int { c.sub(c.readImmediate(), true); return 8 }
func andImmWithA(c *CPU) int { c.and(c.readImmediate()); return 8 }
func xorImmWithA(c *CPU) int { c.xor(c.readImmediate()); return 8 }
func orImmWithA(c *CPU) int  { c.or(c.readImmediate()); return 8 }
func cpImmWithA(c *CPU) int  { c.cp(c.readImmediate()); return 8 }

func addHLBC(c *CPU) int { c.addToHL(c.getBC()); return 8 }
func addHLDE(c *CPU) int { c.addToHL(c.getDE()); return 8 }
func addHLHL(c *CPU) int { c.addToHL(c.getHL()); return 8 }
func addHLSP(c *CPU) int { c.addToHL(c.sp); return 8 }

// Control flow.

func jrUncond(c *CPU) int { return c.jr(true) }
func jrNZ(c *CPU) int      { return c.jr(!c.isSetFlag(zeroFlag)) }
func jrZ(c *CPU) int       { return c.jr(c.isSetFlag(zeroFlag)) }
func jrNC(c *CPU) int      { return c.jr(!c.isSetFlag(carryFlag)) }
func jrC(c *CPU) int       { return c.jr(c.isSetFlag(carryFlag)) }

func jpUncond(c *CPU) int { return c.jp(true) }
func jpNZ(c *CPU) int     { return c.jp(!c.isSetFlag(zeroFlag)) }
func jpZ(c *CPU) int      { return c.jp(c.isSetFlag(zeroFlag)) }
func jpNC(c *CPU) int     { return c.jp(!c.isSetFlag(carryFlag)) }
func jpC(c *CPU) int      { return c.jp(c.isSetFlag(carryFlag)) }

func jpHLOp(c *CPU) int { c.jpHL(); return 4 }

func callUncond(c *CPU) int { return c.call(true) }
func callNZ(c *CPU) int     { return c.call(!c.isSetFlag(zeroFlag)) }
func callZ(c *CPU) int      { return c.call(c.isSetFlag(zeroFlag)) }
func callNC(c *CPU) int     { return c.call(!c.isSetFlag(carryFlag)) }
func callC(c *CPU) int      { return c.call(c.isSetFlag(carryFlag)) }

func retUncond(c *CPU) int { return c.retPlain() }
func retNZ(c *CPU) int     { return c.ret(!c.isSetFlag(zeroFlag)) }
func retZ(c *CPU) int      { return c.ret(c.isSetFlag(zeroFlag)) }
func retNC(c *CPU) int     { return c.ret(!c.isSetFlag(carryFlag)) }
func retC(c *CPU) int      { return c.ret(c.isSetFlag(carryFlag)) }

func retiOp(c *CPU) int { c.reti(); return 16 }

// rstOpcode implements RST 00H-38H for all 8 vectors; the target is the
// opcode's own bits 3-5 (the vector is always opcode&0x38).
func rstOpcode(c *CPU) int {
	vector := uint16(uint8(c.currentOpcode) & 0x38)
	c.rst(vector)
	return 16
}

// PUSH/POP.

func pushBC(c *CPU) int { c.pushStack(c.getBC()); return 16 }
func pushDE(c *CPU) int { c.pushStack(c.getDE()); return 16 }
func pushHL(c *CPU) int { c.pushStack(c.getHL()); return 16 }
func pushAF(c *CPU) int { c.pushStack(c.getAF()); return 16 }

func popBC(c *CPU) int { c.setBC(c.popStack()); return 12 }
func popDE(c *CPU) int { c.setDE(c.popStack()); return 12 }
func popHL(c *CPU) int { c.setHL(c.popStack()); return 12 }
func popAF(c *CPU) int { c.setAF(c.popStack()); return 12 }

// opcodeTable is the primary 256-entry dispatch table, indexed by opcode
// byte. Illegal opcodes are left nil; Step never dispatches through them.
var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() [256]Opcode {
	var t [256]Opcode

	t[0x00] = nop
	t[0x10] = stop
	t[0x76] = halt
	t[0xF3] = di
	t[0xFB] = ei
	t[0x27] = daaOp
	t[0x2F] = cplOp
	t[0x37] = scfOp
	t[0x3F] = ccfOp

	t[0x01] = ldImmToBC
	t[0x11] = ldImmToDE
	t[0x21] = ldImmToHL
	t[0x31] = ldImmToSP
	t[0x02] = ldAToBCAddr
	t[0x12] = ldAToDEAddr
	t[0x0A] = ldBCAddrToA
	t[0x1A] = ldDEAddrToA
	t[0x22] = ldAToHLAddrInc
	t[0x32] = ldAToHLAddrDec
	t[0x2A] = ldHLAddrToAInc
	t[0x3A] = ldHLAddrToADec
	t[0x08] = ldSPToImmAddr
	t[0xF9] = ldHLToSP
	t[0xF8] = ldSPOffsetToHL
	t[0xE8] = addSPImm
	t[0xE0] = ldhAToImmAddr
	t[0xF0] = ldhImmAddrToA
	t[0xE2] = ldhAToCAddr
	t[0xF2] = ldhCAddrToA
	t[0xEA] = ldAToImmAddr
	t[0xFA] = ldImmAddrToA

	// LD r,d8 / INC r / DEC r, regular across all 8 operand codes.
	for _, code := range []uint8{0, 1, 2, 3, 4, 5, 6, 7} {
		t[code<<3|0x06] = ldRImm
		t[code<<3|0x04] = incR
		t[code<<3|0x05] = decR
	}

	t[0x03] = incBC
	t[0x13] = incDE
	t[0x23] = incHL16
	t[0x33] = incSP
	t[0x0B] = decBC
	t[0x1B] = decDE
	t[0x2B] = decHL16
	t[0x3B] = decSP

	t[0x07] = rlca
	t[0x0F] = rrca
	t[0x17] = rla
	t[0x1F] = rra

	t[0x18] = jrUncond
	t[0x20] = jrNZ
	t[0x28] = jrZ
	t[0x30] = jrNC
	t[0x38] = jrC

	t[0x09] = addHLBC
	t[0x19] = addHLDE
	t[0x29] = addHLHL
	t[0x39] = addHLSP

	// LD r,r' block, 0x40-0x7F (0x76 already claimed by HALT above).
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		t[op] = ldRR
	}

	// ALU A,r block, 0x80-0xBF.
	for op := 0x80; op <= 0xBF; op++ {
		t[op] = aluRR
	}

	t[0xC6] = addImmToA
	t[0xCE] = adcImmToA
	t[0xD6] = subImmFromA
	t[0xDE] = sbcImmFromA
	t[0xE6] = andImmWithA
	t[0xEE] = xorImmWithA
	t[0xF6] = orImmWithA
	t[0xFE] = cpImmWithA

	t[0xC0] = retNZ
	t[0xC8] = retZ
	t[0xC9] = retUncond
	t[0xD0] = retNC
	t[0xD8] = retC
	t[0xD9] = retiOp

	t[0xC2] = jpNZ
	t[0xCA] = jpZ
	t[0xC3] = jpUncond
	t[0xD2] = jpNC
	t[0xDA] = jpC
	t[0xE9] = jpHLOp

	t[0xC4] = callNZ
	t[0xCC] = callZ
	t[0xCD] = callUncond
	t[0xD4] = callNC
	t[0xDC] = callC

	for _, op := range []uint8{0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF} {
		t[op] = rstOpcode
	}

	t[0xC1] = popBC
	t[0xD1] = popDE
	t[0xE1] = popHL
	t[0xF1] = popAF
	t[0xC5] = pushBC
	t[0xD5] = pushDE
	t[0xE5] = pushHL
	t[0xF5] = pushAF

	// 0xCB is never dispatched through this table; decode() recognizes
	// its CB-folded 16-bit form and routes to the CB table instead.

	return t
}
