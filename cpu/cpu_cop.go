package cpu

// Coprocessor register-move instructions, reached through executeCop0 and
// executeCop2 once usability has already been checked.

// mf0Reserved lists Cop0 register indices MF0 refuses to read, matching
// the System Control coprocessor's documented reserved set.
var mf0Reserved = map[uint32]bool{0: true, 1: true, 2: true, 4: true, 10: true}

func (c *CPU) opMF0(instruction uint32, delaySlotOrigin uint32) {
	rt, rd := rtField(instruction), rdField(instruction)
	if mf0Reserved[rd] {
		c.raise(excRI, 0, delaySlotOrigin)
		return
	}
	c.setReg(rt, uint32(c.Cop0.ReadReg(int(rd))))
}

func (c *CPU) opMT0(instruction uint32) {
	rt, rd := rtField(instruction), rdField(instruction)
	c.Cop0.WriteReg(int(rd), int32(c.Regs[rt]), false)
}

func (c *CPU) opMF2(instruction uint32) {
	rt, rd := rtField(instruction), rdField(instruction)
	c.setReg(rt, uint32(c.Cop2.ReadData(int(rd))))
}

func (c *CPU) opMT2(instruction uint32) {
	rt, rd := rtField(instruction), rdField(instruction)
	c.Cop2.WriteData(int(rd), int32(c.Regs[rt]))
}

func (c *CPU) opCF2(instruction uint32) {
	rt, rd := rtField(instruction), rdField(instruction)
	c.setReg(rt, uint32(c.Cop2.ReadCtrl(int(rd))))
}

func (c *CPU) opCT2(instruction uint32) {
	rt, rd := rtField(instruction), rdField(instruction)
	c.Cop2.WriteCtrl(int(rd), int32(c.Regs[rt]))
}
