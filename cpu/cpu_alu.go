package cpu

// Arithmetic, logical, shift, and multiply/divide instructions: every
// opcode reachable from the SPECIAL (opcode 0) funct table plus the
// immediate-operand forms dispatched directly from the primary opcode.

func rsField(instruction uint32) uint32 { return (instruction >> 21) & 0x1F }
func rtField(instruction uint32) uint32 { return (instruction >> 16) & 0x1F }
func rdField(instruction uint32) uint32 { return (instruction >> 11) & 0x1F }
func shamtField(instruction uint32) uint32 { return (instruction >> 6) & 0x1F }

func signExtendImm(instruction uint32) uint32 {
	return signExtend16(instruction & 0xFFFF)
}

func (c *CPU) opADD(instruction uint32, delaySlotOrigin uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	rsVal, rtVal := c.Regs[rs], c.Regs[rt]
	result := rsVal + rtVal
	if (rsVal&0x80000000) == (rtVal&0x80000000) && (rsVal&0x80000000) != (result&0x80000000) {
		c.raise(excOVF, 0, delaySlotOrigin)
		return
	}
	c.setReg(rd, result)
}

func (c *CPU) opADDI(instruction uint32, delaySlotOrigin uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	imm := signExtendImm(instruction)
	rsVal := c.Regs[rs]
	result := rsVal + imm
	if (rsVal&0x80000000) == (imm&0x80000000) && (rsVal&0x80000000) != (result&0x80000000) {
		c.raise(excOVF, 0, delaySlotOrigin)
		return
	}
	c.setReg(rt, result)
}

func (c *CPU) opADDIU(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	c.setReg(rt, c.Regs[rs]+signExtendImm(instruction))
}

func (c *CPU) opADDU(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rs]+c.Regs[rt])
}

func (c *CPU) opSUB(instruction uint32, delaySlotOrigin uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	rsVal, rtVal := c.Regs[rs], c.Regs[rt]
	result := rsVal - rtVal
	if (rsVal&0x80000000) != (rtVal&0x80000000) && (rsVal&0x80000000) != (result&0x80000000) {
		c.raise(excOVF, 0, delaySlotOrigin)
		return
	}
	c.setReg(rd, result)
}

func (c *CPU) opSUBU(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rs]-c.Regs[rt])
}

func (c *CPU) opAND(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rs]&c.Regs[rt])
}

func (c *CPU) opANDI(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	c.setReg(rt, c.Regs[rs]&(instruction&0xFFFF))
}

func (c *CPU) opOR(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rs]|c.Regs[rt])
}

func (c *CPU) opORI(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	c.setReg(rt, c.Regs[rs]|(instruction&0xFFFF))
}

func (c *CPU) opXOR(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rs]^c.Regs[rt])
}

func (c *CPU) opXORI(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	c.setReg(rt, c.Regs[rs]^(instruction&0xFFFF))
}

func (c *CPU) opNOR(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, ^(c.Regs[rs] | c.Regs[rt]))
}

func (c *CPU) opLUI(instruction uint32) {
	rt := rtField(instruction)
	c.setReg(rt, (instruction&0xFFFF)<<16)
}

func (c *CPU) opSLT(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	if int32(c.Regs[rs]) < int32(c.Regs[rt]) {
		c.setReg(rd, 1)
	} else {
		c.setReg(rd, 0)
	}
}

func (c *CPU) opSLTI(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	if int32(c.Regs[rs]) < int32(signExtendImm(instruction)) {
		c.setReg(rt, 1)
	} else {
		c.setReg(rt, 0)
	}
}

func (c *CPU) opSLTU(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	if c.Regs[rs] < c.Regs[rt] {
		c.setReg(rd, 1)
	} else {
		c.setReg(rd, 0)
	}
}

func (c *CPU) opSLTIU(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	if c.Regs[rs] < signExtendImm(instruction) {
		c.setReg(rt, 1)
	} else {
		c.setReg(rt, 0)
	}
}

func (c *CPU) opSLL(instruction uint32) {
	rt, rd, shamt := rtField(instruction), rdField(instruction), shamtField(instruction)
	c.setReg(rd, c.Regs[rt]<<shamt)
}

func (c *CPU) opSLLV(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rt]<<(c.Regs[rs]&0x1F))
}

func (c *CPU) opSRL(instruction uint32) {
	rt, rd, shamt := rtField(instruction), rdField(instruction), shamtField(instruction)
	c.setReg(rd, c.Regs[rt]>>shamt)
}

func (c *CPU) opSRLV(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, c.Regs[rt]>>(c.Regs[rs]&0x1F))
}

func (c *CPU) opSRA(instruction uint32) {
	rt, rd, shamt := rtField(instruction), rdField(instruction), shamtField(instruction)
	c.setReg(rd, uint32(int32(c.Regs[rt])>>shamt))
}

func (c *CPU) opSRAV(instruction uint32) {
	rs, rt, rd := rsField(instruction), rtField(instruction), rdField(instruction)
	c.setReg(rd, uint32(int32(c.Regs[rt])>>(c.Regs[rs]&0x1F)))
}

func (c *CPU) opMFHI(instruction uint32) {
	c.setReg(rdField(instruction), c.HI)
}

func (c *CPU) opMTHI(instruction uint32) {
	c.HI = c.Regs[rsField(instruction)]
}

func (c *CPU) opMFLO(instruction uint32) {
	c.setReg(rdField(instruction), c.LO)
}

func (c *CPU) opMTLO(instruction uint32) {
	c.LO = c.Regs[rsField(instruction)]
}

func (c *CPU) opMULT(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	result := int64(int32(c.Regs[rs])) * int64(int32(c.Regs[rt]))
	c.HI = uint32(uint64(result) >> 32)
	c.LO = uint32(result)
}

func (c *CPU) opMULTU(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	result := uint64(c.Regs[rs]) * uint64(c.Regs[rt])
	c.HI = uint32(result >> 32)
	c.LO = uint32(result)
}

// opDIV and opDIVU never raise: a zero divisor yields the PSX's documented
// quotient/remainder pair instead of a trap, and int64 arithmetic handles
// INT32_MIN/-1 without the overflow a 32-bit division would hit.
func (c *CPU) opDIV(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	rsVal := int64(int32(c.Regs[rs]))
	rtVal := int64(int32(c.Regs[rt]))
	if rtVal == 0 {
		c.LO = 0xFFFFFFFF
		c.HI = uint32(rsVal)
		return
	}
	c.LO = uint32(rsVal / rtVal)
	c.HI = uint32(rsVal % rtVal)
}

func (c *CPU) opDIVU(instruction uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	rsVal := uint64(c.Regs[rs])
	rtVal := uint64(c.Regs[rt])
	if rtVal == 0 {
		c.LO = 0xFFFFFFFF
		c.HI = uint32(rsVal)
		return
	}
	c.LO = uint32(rsVal / rtVal)
	c.HI = uint32(rsVal % rtVal)
}
