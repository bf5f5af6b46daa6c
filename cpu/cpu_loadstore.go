package cpu

import "github.com/jetsetilly/gopsx/internal/bits"

// Load/store instructions and the shared memory-access helpers they build
// on. Addresses here are always virtual; each helper translates and routes
// through the instruction cache when Cop0's data-cache-isolate bit repurposes
// it as scratch, or through the system interlink otherwise.

func effectiveAddress(c *CPU, instruction uint32) uint32 {
	return c.Regs[rsField(instruction)] + signExtendImm(instruction)
}

func (c *CPU) isScratchpad(paddr uint32) bool {
	return paddr >= 0x1F800000 && paddr < 0x1F800400 && c.mem.ScratchpadEnabled()
}

func (c *CPU) addStall(paddr uint32) {
	if !c.isScratchpad(paddr) {
		c.cycles += c.mem.StallCycles(paddr)
	}
}

func (c *CPU) translate(vaddr uint32) uint32 {
	paddr, _, _ := c.Cop0.Translate(vaddr, c.Cop0.InKernelMode())
	return paddr
}

func (c *CPU) loadByte(vaddr uint32) byte {
	paddr := c.translate(vaddr)
	if c.Cop0.IsDataCacheIsolated() {
		return c.ICache.ReadByte(paddr)
	}
	c.addStall(paddr)
	return c.mem.ReadByte(paddr)
}

func (c *CPU) loadHalf(vaddr uint32) uint16 {
	paddr := c.translate(vaddr)
	if c.Cop0.IsDataCacheIsolated() {
		lo, hi := c.ICache.ReadByte(paddr), c.ICache.ReadByte(paddr+1)
		return uint16(hi)<<8 | uint16(lo)
	}
	c.addStall(paddr)
	lo, hi := c.mem.ReadByte(paddr), c.mem.ReadByte(paddr+1)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) loadWord(vaddr uint32) uint32 {
	paddr := c.translate(vaddr)
	if c.Cop0.IsDataCacheIsolated() {
		return bits.Swap32(c.ICache.ReadWord(paddr))
	}
	c.addStall(paddr)
	return c.mem.ReadWord(paddr)
}

func (c *CPU) storeByte(vaddr uint32, value byte) {
	paddr := c.translate(vaddr)
	if c.Cop0.IsDataCacheIsolated() {
		c.ICache.WriteByte(paddr, value, true)
		return
	}
	c.addStall(paddr)
	c.mem.WriteByte(paddr, value)
}

func (c *CPU) storeHalf(vaddr uint32, value uint16) {
	paddr := c.translate(vaddr)
	if c.Cop0.IsDataCacheIsolated() {
		c.ICache.WriteByte(paddr, byte(value), true)
		c.ICache.WriteByte(paddr+1, byte(value>>8), true)
		return
	}
	c.addStall(paddr)
	c.mem.WriteByte(paddr, byte(value))
	c.mem.WriteByte(paddr+1, byte(value>>8))
}

func (c *CPU) storeWord(vaddr uint32, value uint32) {
	paddr := c.translate(vaddr)
	if c.Cop0.IsDataCacheIsolated() {
		c.ICache.WriteWord(paddr, bits.Swap32(value), true)
		return
	}
	c.addStall(paddr)
	c.mem.WriteWord(paddr, value)
}

func (c *CPU) addressException(reason excReason, address uint32, delaySlotOrigin uint32) {
	c.raise(reason, address, delaySlotOrigin)
}

func (c *CPU) opLB(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	c.setReg(rtField(instruction), signExtend16(uint32(c.loadByte(address))&0xFF))
}

func (c *CPU) opLBU(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	c.setReg(rtField(instruction), uint32(c.loadByte(address)))
}

func (c *CPU) opLH(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%2 != 0 {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	c.setReg(rtField(instruction), signExtend16(uint32(c.loadHalf(address))))
}

func (c *CPU) opLHU(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%2 != 0 {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	c.setReg(rtField(instruction), uint32(c.loadHalf(address)))
}

func (c *CPU) opLW(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%4 != 0 {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	c.setReg(rtField(instruction), c.loadWord(address))
}

func (c *CPU) opSB(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADES, address, delaySlotOrigin)
		return
	}
	c.storeByte(address, byte(c.Regs[rtField(instruction)]))
}

func (c *CPU) opSH(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%2 != 0 {
		c.addressException(excADES, address, delaySlotOrigin)
		return
	}
	c.storeHalf(address, uint16(c.Regs[rtField(instruction)]))
}

func (c *CPU) opSW(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%4 != 0 {
		c.addressException(excADES, address, delaySlotOrigin)
		return
	}
	c.storeWord(address, c.Regs[rtField(instruction)])
}

func (c *CPU) opLWL(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	aligned := address &^ 3
	idx := (^address) & 3
	word := c.loadWord(aligned) << (idx * 8)
	mask := ^(uint32(0xFFFFFFFF) << (idx * 8))
	rt := rtField(instruction)
	c.setReg(rt, word|(c.Regs[rt]&mask))
}

func (c *CPU) opLWR(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	aligned := address &^ 3
	idx := address & 3
	word := c.loadWord(aligned) >> (idx * 8)
	mask := ^(uint32(0xFFFFFFFF) >> (idx * 8))
	rt := rtField(instruction)
	c.setReg(rt, word|(c.Regs[rt]&mask))
}

func (c *CPU) opSWL(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADES, address, delaySlotOrigin)
		return
	}
	aligned := address &^ 3
	idx := (^address) & 3
	rtVal := c.Regs[rtField(instruction)] >> (idx * 8)
	mask := ^(uint32(0xFFFFFFFF) >> (idx * 8))
	c.storeWord(aligned, rtVal|(c.loadWord(aligned)&mask))
}

func (c *CPU) opSWR(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) {
		c.addressException(excADES, address, delaySlotOrigin)
		return
	}
	aligned := address &^ 3
	idx := address & 3
	rtVal := c.Regs[rtField(instruction)] << (idx * 8)
	mask := ^(uint32(0xFFFFFFFF) << (idx * 8))
	c.storeWord(aligned, rtVal|(c.loadWord(aligned)&mask))
}

func (c *CPU) opLWC2(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%4 != 0 {
		c.addressException(excADEL, address, delaySlotOrigin)
		return
	}
	c.Cop2.WriteData(int(rtField(instruction)), int32(c.loadWord(address)))
}

func (c *CPU) opSWC2(instruction uint32, delaySlotOrigin uint32) {
	address := effectiveAddress(c, instruction)
	if !c.Cop0.IsAddressAllowed(address) || address%4 != 0 {
		c.addressException(excADES, address, delaySlotOrigin)
		return
	}
	c.storeWord(address, uint32(c.Cop2.ReadData(int(rtField(instruction)))))
}
