// Package cpu implements the R3051 MIPS-I interpreter: the general-purpose
// register file, the pipeline-visible branch delay slot, the exception
// model, and the opcode table that drives every other subsystem through
// memory-mapped I/O.
package cpu

import (
	"github.com/jetsetilly/gopsx/cpu/cop0"
	"github.com/jetsetilly/gopsx/cpu/cop2"
	"github.com/jetsetilly/gopsx/cpu/icache"
	"github.com/jetsetilly/gopsx/internal/bits"
)

// Mem is the system interlink surface the CPU drives: word/byte access to
// the physical address space, the cache-line source for instruction-cache
// refills, and the per-instruction cycle accounting hooks.
type Mem interface {
	ReadWord(address uint32) uint32
	WriteWord(address uint32, value uint32)
	ReadByte(address uint32) byte
	WriteByte(address uint32, value byte)
	ReadLine(base uint32) [16]byte
	ScratchpadEnabled() bool
	ICacheEnabled() bool
	BusHeldByDMA() bool
	StallCycles(address uint32) int64
	AppendSyncCycles(cycles int64)
	IncrementInterruptCounters(cycles int64)
	IStat() uint32
	IMask() uint32
}

// excReason identifies the pending exception, if any. The zero value means
// no exception is pending, matching the "null kind" the initial state
// requires.
type excReason int

const (
	excNone excReason = iota
	excADEL
	excADES
	excBP
	excDBE
	excIBE
	excCPU
	excINT
	excOVF
	excRI
	excSYS
	excRESET
)

// excCode is the 5-bit value each reason occupies in Cop0's Cause register.
var excCode = map[excReason]uint32{
	excIBE:  6,
	excDBE:  7,
	excSYS:  8,
	excBP:   9,
	excRI:   10,
	excCPU:  11,
	excOVF:  12,
	excADEL: 4,
	excADES: 5,
	excINT:  0,
}

// exception is the tagged record every instruction writes to instead of
// unwinding a host exception.
type exception struct {
	reason        excReason
	pcOrigin      uint32
	badAddress    uint32
	coProcessor   uint32
	inDelaySlot   bool
}

// CPU is the R3051 core: 32 general registers, HI/LO, the delay-slot state
// machine, a single pending exception, and its two wired coprocessors.
type CPU struct {
	Regs [32]uint32
	PC   uint32
	HI   uint32
	LO   uint32

	jumpAddress uint32
	jumpPending bool

	prevWasBranch bool
	isBranch      bool

	cycles      int64
	gteCycles   int
	totalCycles int64

	exc exception

	Cop0   *cop0.Cop0
	Cop2   *cop2.Cop2
	ICache *icache.Cache

	mem Mem
}

// New returns a CPU wired to mem, in its post-reset state.
func New(mem Mem) *CPU {
	c := &CPU{
		Cop0:   cop0.New(),
		Cop2:   cop2.New(),
		ICache: icache.New(),
		mem:    mem,
	}
	c.Reset()
	return c
}

// Reset restores power-on state: PC at the reset vector, no pending
// exception or jump, both coprocessors reset.
func (c *CPU) Reset() {
	c.Regs = [32]uint32{}
	c.PC = c.Cop0.ResetExceptionVector()
	c.HI, c.LO = 0, 0
	c.jumpPending = false
	c.prevWasBranch = false
	c.isBranch = false
	c.cycles, c.gteCycles, c.totalCycles = 0, 0, 0
	c.exc = exception{}
	c.Cop0.Reset()
}

func (c *CPU) setReg(i uint32, v uint32) {
	c.Regs[i] = v
	c.Regs[0] = 0
}

func signExtend16(v uint32) uint32 {
	return uint32(int32(int16(v)))
}

// RunBlock executes instructions, one basic block at a time, until a
// taken or not-taken branch has retired, and reports the total cycles the
// block consumed. The branch's delay slot is not part of the block: it runs
// first in the next call, which is also when a staged jump lands in PC.
func (c *CPU) RunBlock() int64 {
	for {
		c.cycles = 0

		delaySlotOrigin := c.PC - 4

		instruction, busHeld := c.fetch(c.PC)
		if busHeld {
			c.cycles++
			c.totalCycles++
			c.mem.AppendSyncCycles(c.cycles)
			continue
		}

		c.execute(instruction, delaySlotOrigin)

		if c.handleException() {
			c.cycles++
			c.totalCycles++
			c.mem.AppendSyncCycles(c.cycles)
			continue
		}

		if c.isBranch && c.handleInterrupts() {
			c.cycles++
			c.totalCycles++
			c.mem.AppendSyncCycles(c.cycles)
			continue
		}

		if c.jumpPending && c.prevWasBranch {
			c.PC = c.jumpAddress
			c.jumpPending = false
		} else {
			c.PC += 4
		}

		if c.gteCycles == 0 {
			c.cycles++
			c.totalCycles++
		} else {
			c.cycles += int64(c.gteCycles)
			c.totalCycles += int64(c.gteCycles)
		}
		c.gteCycles = 0

		c.prevWasBranch = c.isBranch
		c.isBranch = false

		c.mem.AppendSyncCycles(c.cycles)

		if c.prevWasBranch {
			break
		}
	}

	total := c.totalCycles
	c.totalCycles = 0
	return total
}

// fetch reads the instruction word at address, honoring the instruction
// cache when enabled and stalling (reporting busHeld) while DMA owns the
// bus. The returned word is in native byte order.
func (c *CPU) fetch(address uint32) (word uint32, busHeld bool) {
	if address&3 != 0 || !c.Cop0.IsAddressAllowed(address) {
		c.raise(excADEL, address, address-4)
		return 0, false
	}

	paddr, cacheable, _ := c.Cop0.Translate(address, c.Cop0.InKernelMode())

	if !cacheable || !c.mem.ICacheEnabled() || c.Cop0.IsDataCacheIsolated() {
		if c.mem.BusHeldByDMA() {
			return 0, true
		}
		c.cycles += c.mem.StallCycles(paddr)
		return c.mem.ReadWord(paddr), false
	}

	if !c.ICache.CheckHit(paddr) {
		if c.mem.BusHeldByDMA() {
			return 0, true
		}
		c.cycles += c.mem.StallCycles(paddr)
		c.ICache.Refill(paddr, c.mem.ReadLine)
		c.Cop0.SetCacheMiss()
	}
	return bits.Swap32(c.ICache.ReadWord(paddr)), false
}

// execute dispatches a fetched, native-order instruction word.
func (c *CPU) execute(instruction uint32, delaySlotOrigin uint32) {
	opcode := instruction >> 26
	switch opcode {
	case 0x00:
		c.executeSpecial(instruction, delaySlotOrigin)
	case 0x01:
		c.executeBcond(instruction, delaySlotOrigin)
	case 0x02:
		c.opJ(instruction)
	case 0x03:
		c.opJAL(instruction)
	case 0x04:
		c.opBEQ(instruction, delaySlotOrigin)
	case 0x05:
		c.opBNE(instruction, delaySlotOrigin)
	case 0x06:
		c.opBLEZ(instruction, delaySlotOrigin)
	case 0x07:
		c.opBGTZ(instruction, delaySlotOrigin)
	case 0x08:
		c.opADDI(instruction, delaySlotOrigin)
	case 0x09:
		c.opADDIU(instruction)
	case 0x0A:
		c.opSLTI(instruction)
	case 0x0B:
		c.opSLTIU(instruction)
	case 0x0C:
		c.opANDI(instruction)
	case 0x0D:
		c.opORI(instruction)
	case 0x0E:
		c.opXORI(instruction)
	case 0x0F:
		c.opLUI(instruction)
	case 0x10:
		c.executeCop0(instruction, delaySlotOrigin)
	case 0x11:
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 1
	case 0x12:
		c.executeCop2(instruction, delaySlotOrigin)
	case 0x13:
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 3
	case 0x20:
		c.opLB(instruction, delaySlotOrigin)
	case 0x21:
		c.opLH(instruction, delaySlotOrigin)
	case 0x22:
		c.opLWL(instruction, delaySlotOrigin)
	case 0x23:
		c.opLW(instruction, delaySlotOrigin)
	case 0x24:
		c.opLBU(instruction, delaySlotOrigin)
	case 0x25:
		c.opLHU(instruction, delaySlotOrigin)
	case 0x26:
		c.opLWR(instruction, delaySlotOrigin)
	case 0x28:
		c.opSB(instruction, delaySlotOrigin)
	case 0x29:
		c.opSH(instruction, delaySlotOrigin)
	case 0x2A:
		c.opSWL(instruction, delaySlotOrigin)
	case 0x2B:
		c.opSW(instruction, delaySlotOrigin)
	case 0x2E:
		c.opSWR(instruction, delaySlotOrigin)
	case 0x30, 0x38:
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 0
	case 0x31, 0x39:
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 1
	case 0x32:
		c.opLWC2(instruction, delaySlotOrigin)
	case 0x33, 0x3B:
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 3
	case 0x3A:
		c.opSWC2(instruction, delaySlotOrigin)
	default:
		c.raise(excRI, 0, delaySlotOrigin)
	}
}

func (c *CPU) executeSpecial(instruction uint32, delaySlotOrigin uint32) {
	switch instruction & 0x3F {
	case 0:
		c.opSLL(instruction)
	case 2:
		c.opSRL(instruction)
	case 3:
		c.opSRA(instruction)
	case 4:
		c.opSLLV(instruction)
	case 6:
		c.opSRLV(instruction)
	case 7:
		c.opSRAV(instruction)
	case 8:
		c.opJR(instruction)
	case 9:
		c.opJALR(instruction)
	case 12:
		c.raise(excSYS, 0, delaySlotOrigin)
	case 13:
		c.raise(excBP, 0, delaySlotOrigin)
	case 16:
		c.opMFHI(instruction)
	case 17:
		c.opMTHI(instruction)
	case 18:
		c.opMFLO(instruction)
	case 19:
		c.opMTLO(instruction)
	case 24:
		c.opMULT(instruction)
	case 25:
		c.opMULTU(instruction)
	case 26:
		c.opDIV(instruction)
	case 27:
		c.opDIVU(instruction)
	case 32:
		c.opADD(instruction, delaySlotOrigin)
	case 33:
		c.opADDU(instruction)
	case 34:
		c.opSUB(instruction, delaySlotOrigin)
	case 35:
		c.opSUBU(instruction)
	case 36:
		c.opAND(instruction)
	case 37:
		c.opOR(instruction)
	case 38:
		c.opXOR(instruction)
	case 39:
		c.opNOR(instruction)
	case 42:
		c.opSLT(instruction)
	case 43:
		c.opSLTU(instruction)
	default:
		c.raise(excRI, 0, delaySlotOrigin)
	}
}

func (c *CPU) executeBcond(instruction uint32, delaySlotOrigin uint32) {
	switch (instruction >> 16) & 0x1F {
	case 0:
		c.opBLTZ(instruction, delaySlotOrigin)
	case 1:
		c.opBGEZ(instruction, delaySlotOrigin)
	case 16:
		c.opBLTZAL(instruction, delaySlotOrigin)
	case 17:
		c.opBGEZAL(instruction, delaySlotOrigin)
	default:
		c.raise(excRI, 0, delaySlotOrigin)
	}
}

func (c *CPU) executeCop0(instruction uint32, delaySlotOrigin uint32) {
	if !c.Cop0.IsCoprocessorUsable(0) && !c.Cop0.InKernelMode() {
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 0
		return
	}
	rs := (instruction >> 21) & 0x1F
	if instruction&0x3F == 0x10 {
		c.Cop0.RFE()
		return
	}
	switch rs {
	case 0:
		c.opMF0(instruction, delaySlotOrigin)
	case 4:
		c.opMT0(instruction)
	default:
		c.raise(excRI, 0, delaySlotOrigin)
	}
}

func (c *CPU) executeCop2(instruction uint32, delaySlotOrigin uint32) {
	if !c.Cop0.IsCoprocessorUsable(2) {
		c.raise(excCPU, 0, delaySlotOrigin)
		c.exc.coProcessor = 2
		return
	}
	rs := (instruction >> 21) & 0x1F
	switch rs {
	case 0:
		c.opMF2(instruction)
	case 2:
		c.opCF2(instruction)
	case 4:
		c.opMT2(instruction)
	case 6:
		c.opCT2(instruction)
	case 8:
		// BC2F/BC2T: branch on the GTE condition line. Neither is exercised
		// by any PSX BIOS or game in practice, so only the branch bookkeeping
		// is implemented; the condition is always false.
		c.isBranch = true
	default:
		if rs >= 16 {
			c.gteCycles = c.Cop2.Execute(cop2.Op(instruction & 0x3F))
			return
		}
		c.raise(excRI, 0, delaySlotOrigin)
	}
}

// raise populates the pending exception record. delaySlotOrigin is the
// address of the branch that preceded the current instruction, used as the
// EPC target only when that instruction turns out to be in a delay slot.
func (c *CPU) raise(reason excReason, badAddress uint32, delaySlotOrigin uint32) {
	c.exc.reason = reason
	c.exc.badAddress = badAddress
	c.exc.inDelaySlot = c.prevWasBranch
	if c.exc.inDelaySlot {
		c.exc.pcOrigin = delaySlotOrigin
	} else {
		c.exc.pcOrigin = c.PC
	}
}

// handleException runs the exception-entry sequence if one is pending and
// reports whether it did.
func (c *CPU) handleException() bool {
	if c.exc.reason == excNone {
		return false
	}

	if c.exc.reason == excRESET {
		c.Reset()
		c.Cop2 = cop2.New()
		c.exc = exception{}
		return true
	}

	c.Cop0.SetCause(excCode[c.exc.reason], c.exc.inDelaySlot, c.exc.coProcessor)
	c.Cop0.SetEPC(c.exc.pcOrigin)
	if c.exc.reason == excADEL || c.exc.reason == excADES {
		c.Cop0.SetBadVAddr(c.exc.badAddress)
	}
	c.Cop0.ShiftPrivilegeStack()
	c.PC = c.Cop0.GeneralExceptionVector()

	c.exc = exception{}
	c.jumpPending = false
	return true
}

// handleInterrupts polls for a pending interrupt after a branch instruction
// has executed, raising INT as an exception when one is both masked-in at
// I_MASK/I_STAT and enabled via Status.IEc, and reports whether it did.
func (c *CPU) handleInterrupts() bool {
	c.mem.IncrementInterruptCounters(c.cycles)

	pending := c.mem.IStat() & c.mem.IMask() & 0x7FF
	c.Cop0.SetInterruptPending(pending != 0)

	status := uint32(c.Cop0.ReadReg(cop0.RegStatus))
	if status&cop0.StatusIEc == 0 {
		return false
	}
	cause := uint32(c.Cop0.ReadReg(cop0.RegCause))
	if (status>>8)&(cause>>8)&0xFF == 0 {
		return false
	}

	c.raise(excINT, 0, c.PC-4)
	return c.handleException()
}
