package cpu

// decode resolves a fetched opcode to its Opcode implementation. Values
// with a 0xCB high byte were CB-prefixed fetches (see fetchOpcode); the
// low byte then indexes the CB table instead of the primary one.
func decode(opcode uint16) Opcode {
	if opcode&0xFF00 == 0xCB00 {
		cb := uint8(opcode)
		return func(c *CPU) int { return decodeCB(c, cb) }
	}
	return opcodeTable[uint8(opcode)]
}

// Decode exposes opcode resolution for tests exercising individual
// instructions without going through a full Step.
func Decode(opcode uint8) Opcode {
	return opcodeTable[opcode]
}

// DecodeCB exposes CB-prefixed opcode resolution for tests.
func DecodeCB(opcode uint8) Opcode {
	return cbOpcodeTable[opcode]
}
