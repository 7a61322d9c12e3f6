package cpu

// The CB-prefixed space is fully regular: 8 shift/rotate operations over
// the 8 standard operands for 0x00-0x3F, then BIT/RES/SET over 8 bit
// positions x 8 operands for 0x40-0xFF. Rather than hand-write 256
// near-identical functions, cbOpcodeTable is built once from two small
// families of closures parameterized by the decoded operand and (for
// 0x40-0xFF) bit position, keyed directly by opcode byte.
var cbOpcodeTable = buildCBOpcodeTable()

type cbShiftOp func(c *CPU, v *uint8)

var cbShiftOps = [8]cbShiftOp{
	(*CPU).rlc,
	(*CPU).rrc,
	(*CPU).rl,
	(*CPU).rr,
	(*CPU).sla,
	(*CPU).sra,
	(*CPU).swap,
	(*CPU).srl,
}

func buildCBOpcodeTable() [256]Opcode {
	var t [256]Opcode

	for group := uint8(0); group < 8; group++ {
		op := cbShiftOps[group]
		for code := uint8(0); code < 8; code++ {
			opcode := group<<3 | code
			t[opcode] = cbRegisterOp(code, op)
		}
	}

	for pos := uint8(0); pos < 8; pos++ {
		for code := uint8(0); code < 8; code++ {
			bitOp := 0x40 | pos<<3 | code
			t[bitOp] = cbBitOp(pos, code)

			resOp := 0x80 | pos<<3 | code
			t[resOp] = cbResSetOp(pos, code, false)

			setOp := 0xC0 | pos<<3 | code
			t[setOp] = cbResSetOp(pos, code, true)
		}
	}

	return t
}

// cbRegisterOp wraps a rotate/shift/swap family member for one operand
// code, handling the (HL) special case's extra memory round trip and cost.
func cbRegisterOp(code uint8, op func(c *CPU, v *uint8)) Opcode {
	return func(c *CPU) int {
		if code == 6 {
			v := c.mmu.Read(c.getHL())
			op(c, &v)
			c.mmu.Write(c.getHL(), v)
			return 16
		}
		v := c.getReg8(code)
		op(c, &v)
		c.setReg8(code, v)
		return 8
	}
}

func cbBitOp(pos uint8, code uint8) Opcode {
	return func(c *CPU) int {
		v := c.getReg8(code)
		c.bit(pos, v)
		if code == 6 {
			return 12
		}
		return 8
	}
}

func cbResSetOp(pos uint8, code uint8, set bool) Opcode {
	return func(c *CPU) int {
		v := c.getReg8(code)
		if set {
			c.set(pos, &v)
		} else {
			c.res(pos, &v)
		}
		c.setReg8(code, v)
		if code == 6 {
			return 16
		}
		return 8
	}
}

func decodeCB(c *CPU, opcode uint8) int {
	return cbOpcodeTable[opcode](c)
}
