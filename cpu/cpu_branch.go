package cpu

// Jumps and branches. Every taken-or-not branch sets isBranch so RunBlock
// polls for interrupts after its delay slot, and (if taken) stages the
// target in jumpAddress/jumpPending for the delay-slot commit one
// iteration later.

func signExtendBranch(instruction uint32) uint32 {
	offset := (instruction & 0xFFFF) << 2
	if offset&0x20000 != 0 {
		offset |= 0xFFFC0000
	}
	return offset
}

func (c *CPU) stageBranch(taken bool, target uint32) {
	c.isBranch = true
	if taken {
		c.jumpPending = true
		c.jumpAddress = target
	}
}

func (c *CPU) opJ(instruction uint32) {
	target := ((instruction & 0x3FFFFFF) << 2) | (c.PC & 0xF0000000)
	c.stageBranch(true, target)
}

func (c *CPU) opJAL(instruction uint32) {
	target := ((instruction & 0x3FFFFFF) << 2) | (c.PC & 0xF0000000)
	c.setReg(31, c.PC+8)
	c.stageBranch(true, target)
}

func (c *CPU) opJR(instruction uint32) {
	c.stageBranch(true, c.Regs[rsField(instruction)])
}

func (c *CPU) opJALR(instruction uint32) {
	rs, rd := rsField(instruction), rdField(instruction)
	target := c.Regs[rs]
	c.setReg(rd, c.PC+8)
	c.stageBranch(true, target)
}

func (c *CPU) opBEQ(instruction uint32, _ uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.stageBranch(c.Regs[rs] == c.Regs[rt], target)
}

func (c *CPU) opBNE(instruction uint32, _ uint32) {
	rs, rt := rsField(instruction), rtField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.stageBranch(c.Regs[rs] != c.Regs[rt], target)
}

func (c *CPU) opBLEZ(instruction uint32, _ uint32) {
	rs := rsField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.stageBranch(int32(c.Regs[rs]) <= 0, target)
}

func (c *CPU) opBGTZ(instruction uint32, _ uint32) {
	rs := rsField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.stageBranch(int32(c.Regs[rs]) > 0, target)
}

func (c *CPU) opBLTZ(instruction uint32, _ uint32) {
	rs := rsField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.stageBranch(int32(c.Regs[rs]) < 0, target)
}

func (c *CPU) opBGEZ(instruction uint32, _ uint32) {
	rs := rsField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.stageBranch(int32(c.Regs[rs]) >= 0, target)
}

func (c *CPU) opBLTZAL(instruction uint32, _ uint32) {
	rs := rsField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.setReg(31, c.PC+8)
	c.stageBranch(int32(c.Regs[rs]) < 0, target)
}

func (c *CPU) opBGEZAL(instruction uint32, _ uint32) {
	rs := rsField(instruction)
	target := c.PC + 4 + signExtendBranch(instruction)
	c.setReg(31, c.PC+8)
	c.stageBranch(int32(c.Regs[rs]) >= 0, target)
}
