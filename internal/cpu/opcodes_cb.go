package cpu

// executeCB decodes and runs a CB-prefixed opcode. x=0 is the rotate/shift
// group, x=1 is BIT, x=2 is RES, x=3 is SET; z selects the operand register
// ({B,C,D,E,H,L,(HL),A}) and y selects either the rotate variant or the bit
// index depending on x.
func (c *CPU) executeCB(opcode uint8) int {
	x := opcode >> 6
	y := (opcode >> 3) & 7
	z := opcode & 7

	indirect := z == 6

	switch x {
	case 0:
		v := c.readR8(z)
		result, carry := rotateShift(y, v, c.r.flagCY())
		c.writeR8(z, result)
		c.r.setFlags(result == 0, false, false, carry)
		if indirect {
			return 16
		}
		return 8
	case 1: // BIT y,r[z]
		v := c.readR8(z)
		c.r.setZ(v&(1<<y) == 0)
		c.r.setN(false)
		c.r.setH(true)
		if indirect {
			return 12
		}
		return 8
	case 2: // RES y,r[z]
		v := c.readR8(z) &^ (1 << y)
		c.writeR8(z, v)
		if indirect {
			return 16
		}
		return 8
	case 3: // SET y,r[z]
		v := c.readR8(z) | (1 << y)
		c.writeR8(z, v)
		if indirect {
			return 16
		}
		return 8
	}
	panic("unreachable")
}

// rotateShift applies rotate/shift variant y (0=RLC 1=RRC 2=RL 3=RR 4=SLA
// 5=SRA 6=SWAP 7=SRL) to v, returning the result and the carry-out bit.
func rotateShift(y uint8, v uint8, oldCarry bool) (result uint8, carry bool) {
	switch y {
	case 0: // RLC
		carry = v&0x80 != 0
		result = v<<1 | boolBit(carry)
	case 1: // RRC
		carry = v&0x01 != 0
		result = v>>1 | (boolBit(carry) << 7)
	case 2: // RL
		carry = v&0x80 != 0
		result = v<<1 | boolBit(oldCarry)
	case 3: // RR
		carry = v&0x01 != 0
		result = v>>1 | (boolBit(oldCarry) << 7)
	case 4: // SLA
		carry = v&0x80 != 0
		result = v << 1
	case 5: // SRA
		carry = v&0x01 != 0
		result = (v >> 1) | (v & 0x80)
	case 6: // SWAP
		carry = false
		result = v<<4 | v>>4
	case 7: // SRL
		carry = v&0x01 != 0
		result = v >> 1
	}
	return
}
