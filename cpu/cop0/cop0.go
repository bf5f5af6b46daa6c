// Package cop0 implements the System Control coprocessor: privilege
// levels, exception vectors, cache isolation/swapping, and the
// virtual-to-physical address translation used by every memory access the
// CPU makes.
package cop0

// register indices, named the way the R3051 datasheet names them.
const (
	RegRandom   = 1
	RegBadVAddr = 8
	RegStatus   = 12
	RegCause    = 13
	RegEPC      = 14
	RegPrID     = 15
)

// Status register bit positions referenced by name elsewhere in the core.
const (
	StatusIEc              = 1 << 0
	StatusKUc              = 1 << 1
	StatusDataCacheIsolate = 1 << 16
	StatusSwapCaches       = 1 << 17
	StatusBEV              = 1 << 22
	StatusReverseEndian    = 1 << 25
)

// Cop0 holds the coprocessor's 32 registers and the condition line used by
// the CPU's branch-on-coprocessor-condition instructions.
type Cop0 struct {
	regs          [32]int32
	conditionLine bool
}

// New returns a Cop0 in its reset state.
func New() *Cop0 {
	c := &Cop0{}
	c.Reset()
	return c
}

// Reset restores power-on register values.
func (c *Cop0) Reset() {
	c.regs[RegRandom] = 63 << 8
	c.regs[RegStatus] = int32(uint32(c.regs[RegStatus]) & 0xFF9FFFFF) // clear BEV, TS
	c.regs[RegStatus] = int32(uint32(c.regs[RegStatus]) & 0xFFFDFFFC) // clear SWc, KUc, IEc
	c.conditionLine = false
}

// ConditionLine reports the coprocessor condition input, currently unused
// by any instruction but retained as part of the register file's shape.
func (c *Cop0) ConditionLine() bool { return c.conditionLine }

// RFE implements the "restore from exception" bit shuffle: Status bits
// [5:2] (the previous privilege/interrupt-enable pair, stacked two levels
// deep) move down into bits [3:0].
func (c *Cop0) RFE() {
	status := uint32(c.regs[RegStatus])
	newBits := (status >> 2) & 0xF
	status = (status &^ 0xF) | newBits
	c.regs[RegStatus] = int32(status)
}

// ResetExceptionVector is the fixed address the CPU jumps to on reset.
func (c *Cop0) ResetExceptionVector() uint32 { return 0xBFC00000 }

// GeneralExceptionVector returns the vector used for every other
// exception, chosen by the BEV bit in Status.
func (c *Cop0) GeneralExceptionVector() uint32 {
	if uint32(c.regs[RegStatus])&StatusBEV != 0 {
		return 0xBFC00180
	}
	return 0x80000080
}

// ReadReg returns a register's value with hardware-zero bits masked out,
// as real reads of Status/Cause/PrID observe.
func (c *Cop0) ReadReg(reg int) int32 {
	switch reg {
	case RegStatus:
		return int32(uint32(c.regs[RegStatus]) & maskStatusRead)
	case RegCause:
		return int32(uint32(c.regs[RegCause]) & maskCauseRead)
	case RegEPC:
		return c.regs[RegEPC]
	case RegBadVAddr:
		return c.regs[RegBadVAddr]
	case RegPrID:
		return 0x00000002
	case RegRandom:
		return c.regs[RegRandom]
	default:
		return 0
	}
}

const (
	maskStatusRead = uint32(0xF27FFF3F)
	maskCauseRead  = uint32(0xB000FF7C)
	maskStatusWrite = uint32(0xF24BFF3F)
	maskStatusKeep  = uint32(0x0DB400C0)
)

// WriteReg writes a register. Status writes merge the new value under a
// writable-bits mask unless override bypasses it entirely (override is
// used by e.g. SetCacheMiss; COP0 register moves from the CPU pass false
// and so go through the mask). Cause/EPC/BadVAddr and all others are raw overwrites either way;
// only Status has a merge-on-write discipline in this design.
func (c *Cop0) WriteReg(reg int, value int32, override bool) {
	switch reg {
	case RegStatus:
		if override {
			c.regs[RegStatus] = value
			return
		}
		kept := uint32(c.regs[RegStatus]) & maskStatusKeep
		written := uint32(value) & maskStatusWrite
		c.regs[RegStatus] = int32(written | kept)
	default:
		c.regs[reg] = value
	}
}

// SetCacheMiss merges the cache-miss bit (0x00080000) into Status; the
// CPU's instruction fetch calls it after each instruction-cache refill.
func (c *Cop0) SetCacheMiss() {
	c.WriteReg(RegStatus, c.regs[RegStatus]|0x00080000, true)
}

// Translate maps a virtual address to its physical counterpart and reports
// whether the result is cacheable, per the four-segment kuseg/kseg0/kseg1/
// kseg2 table. kernel gates the privilege check: a kuseg/kseg-spanning
// address with bit 31 set is only ok when kernel is true. Callers pass
// their own view of privilege rather than Translate consulting Status
// itself, so DMA transfers (which are never subject to the CPU's KUc bit)
// can simply pass true.
func (c *Cop0) Translate(vaddr uint32, kernel bool) (paddr uint32, cacheable bool, ok bool) {
	if vaddr&0x80000000 != 0 && !kernel {
		return 0, false, false
	}
	switch {
	case vaddr < 0x80000000: // kuseg
		return vaddr, true, true
	case vaddr < 0xA0000000: // kseg0
		return vaddr - 0x80000000, true, true
	case vaddr < 0xC0000000: // kseg1
		return vaddr - 0xA0000000, false, true
	default: // kseg2
		return vaddr, false, true
	}
}

// IsCacheable reports cacheability for an address without translating it;
// equivalent to the cacheable flag Translate would return.
func (c *Cop0) IsCacheable(vaddr uint32) bool {
	return vaddr < 0xA0000000
}

// InKernelMode reports whether Status.KUc is clear.
func (c *Cop0) InKernelMode() bool {
	return uint32(c.regs[RegStatus])&StatusKUc == 0
}

// UserModeOppositeByteOrdering reports Status bit 25 (RE), used by loads
// and stores that need to flip endianness in user mode; unused by the
// default configuration but preserved as a readable bit.
func (c *Cop0) UserModeOppositeByteOrdering() bool {
	return uint32(c.regs[RegStatus])&StatusReverseEndian != 0
}

// IsAddressAllowed reports whether a virtual address with its top bit set
// may be accessed given the current privilege level.
func (c *Cop0) IsAddressAllowed(vaddr uint32) bool {
	if vaddr&0x80000000 != 0 && !c.InKernelMode() {
		return false
	}
	return true
}

// AreCachesSwapped always reports false: the original implementation
// disabled cache swapping outright (its check is commented out in the
// source), and this core preserves that rather than implementing a
// never-exercised code path.
func (c *Cop0) AreCachesSwapped() bool {
	return false
}

// IsDataCacheIsolated reports Status bit 16.
func (c *Cop0) IsDataCacheIsolated() bool {
	return uint32(c.regs[RegStatus])&StatusDataCacheIsolate != 0
}

// IsCoprocessorUsable reports whether Status's per-coprocessor usable bits
// (28-31) permit use of coprocessor copNum.
func (c *Cop0) IsCoprocessorUsable(copNum uint) bool {
	usable := uint32(c.regs[RegStatus]) >> 28
	return (usable>>copNum)&1 == 1
}

// SetBadVAddr records the faulting virtual address for an address error.
func (c *Cop0) SetBadVAddr(vaddr uint32) {
	c.regs[RegBadVAddr] = int32(vaddr)
}

// SetEPC records the exception program counter.
func (c *Cop0) SetEPC(pc uint32) {
	c.regs[RegEPC] = int32(pc)
}

// EPC returns the exception program counter.
func (c *Cop0) EPC() uint32 {
	return uint32(c.regs[RegEPC])
}

// SetCause sets Cause fields: exception code (bits 2-6), branch-delay bit
// (31), and the coprocessor-unusable CE field (bits 28-29, only
// meaningful for CpU exceptions).
func (c *Cop0) SetCause(excCode uint32, inBranchDelay bool, ceField uint32) {
	cause := uint32(c.regs[RegCause])
	cause &^= 0x7C
	cause |= (excCode << 2) & 0x7C
	cause &^= 1 << 31
	if inBranchDelay {
		cause |= 1 << 31
	}
	cause &^= 0x30000000
	cause |= (ceField << 28) & 0x30000000
	c.regs[RegCause] = int32(cause)
}

// SetInterruptPending sets or clears Cause bit 10, the software-visible
// latch of I_STAT & I_MASK polled by interrupt-delay accounting.
func (c *Cop0) SetInterruptPending(pending bool) {
	cause := uint32(c.regs[RegCause])
	if pending {
		cause |= 1 << 10
	} else {
		cause &^= 1 << 10
	}
	c.regs[RegCause] = int32(cause)
}

// ShiftPrivilegeStack implements the KU/IE stack shift used on exception
// entry (current->previous, previous->old, current<-0), the inverse of
// RFE.
func (c *Cop0) ShiftPrivilegeStack() {
	status := uint32(c.regs[RegStatus])
	low6 := status & 0x3F
	status &^= 0x3F
	status |= (low6 << 2) & 0x3F
	c.regs[RegStatus] = int32(status)
}
