package cpu

import (
	"testing"

	"github.com/jetsetilly/gopsx/cpu/cop0"
	"github.com/jetsetilly/gopsx/memory"
)

// Instruction encoders used throughout: the tests drive the interpreter with
// real machine code rather than poking register state directly, the way a
// disassembly would read it.

func encR(funct, rs, rt, rd, shamt uint32) uint32 {
	return (rs&0x1F)<<21 | (rt&0x1F)<<16 | (rd&0x1F)<<11 | (shamt&0x1F)<<6 | (funct & 0x3F)
}

func encI(opcode, rs, rt uint32, imm uint16) uint32 {
	return (opcode&0x3F)<<26 | (rs&0x1F)<<21 | (rt&0x1F)<<16 | uint32(imm)
}

const (
	opcodeADDI  = 0x08
	opcodeADDIU = 0x09
	opcodeBEQ   = 0x04
	opcodeLH    = 0x21
	opcodeLW    = 0x23
	opcodeSW    = 0x2B
	opcodeLWL   = 0x22
	opcodeLWR   = 0x26
	opcodeSWL   = 0x2A
	opcodeSWR   = 0x2E
	functADD    = 32
	functADDU   = 33
	functNOP    = 0
)

func TestArithmeticSequence(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.PC = 0 // run the code below instead of the (zeroed) BIOS at the reset vector

	mem.WriteWord(0, encI(opcodeADDIU, 0, 1, 5))  // ADDIU r1, r0, 5
	mem.WriteWord(4, encI(opcodeADDIU, 0, 2, 7))  // ADDIU r2, r0, 7
	mem.WriteWord(8, encR(functADD, 1, 2, 3, 0))  // ADD r3, r1, r2
	mem.WriteWord(12, encI(opcodeBEQ, 0, 0, 0))   // BEQ r0, r0, 0 (closes the block)
	mem.WriteWord(16, encR(functNOP, 0, 0, 0, 0)) // delay slot NOP

	c.RunBlock()

	if c.Regs[1] != 5 || c.Regs[2] != 7 || c.Regs[3] != 12 {
		t.Fatalf("r1=%d r2=%d r3=%d, want 5 7 12", c.Regs[1], c.Regs[2], c.Regs[3])
	}
	if c.Regs[0] != 0 {
		t.Fatalf("r0 = %d, want 0", c.Regs[0])
	}
	if c.exc.reason != excNone {
		t.Fatalf("unexpected exception reason %v", c.exc.reason)
	}
}

// TestBranchDelaySlotExecutesBeforeJumpCommits checks the two-call contract:
// a block stops right after a taken branch, with the delay slot still
// unexecuted and the jump only staged; the following block runs the delay
// slot first and only then redirects the program counter.
func TestBranchDelaySlotExecutesBeforeJumpCommits(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.PC = 0 // run the code below instead of the (zeroed) BIOS at the reset vector

	mem.WriteWord(0, encI(opcodeBEQ, 0, 0, 2))    // BEQ r0, r0, +2 -> target 12
	mem.WriteWord(4, encI(opcodeADDIU, 0, 1, 42)) // ADDIU r1, r0, 42 (delay slot)
	mem.WriteWord(8, encR(functNOP, 0, 0, 0, 0))  // not reached directly
	mem.WriteWord(12, encI(opcodeBEQ, 0, 0, 0))   // closes the second block
	mem.WriteWord(16, encR(functNOP, 0, 0, 0, 0))

	c.RunBlock()
	if c.PC != 4 {
		t.Fatalf("PC after first block = %#x, want 0x4", c.PC)
	}
	if c.Regs[1] != 0 {
		t.Fatalf("r1 = %d before delay slot executes, want 0", c.Regs[1])
	}

	c.RunBlock()
	if c.Regs[1] != 42 {
		t.Fatalf("r1 after delay slot = %d, want 42", c.Regs[1])
	}
	if c.PC != 16 {
		t.Fatalf("PC after second block = %#x, want 0x10", c.PC)
	}
}

func TestCacheIsolationRoundTrip(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 0xDEADBEEF

	c.Cop0.WriteReg(cop0.RegStatus, int32(cop0.StatusDataCacheIsolate), false)

	c.opSW(encI(opcodeSW, 0, 1, 0x100), 0)
	c.opLW(encI(opcodeLW, 0, 2, 0x100), 0)
	if c.Regs[2] != 0xDEADBEEF {
		t.Fatalf("LW while isolated = %#x, want 0xDEADBEEF", c.Regs[2])
	}

	c.Cop0.WriteReg(cop0.RegStatus, 0, false)
	c.opLW(encI(opcodeLW, 0, 2, 0x100), 0)
	if c.Regs[2] != 0 {
		t.Fatalf("LW after clearing isolation = %#x, want 0 (RAM untouched)", c.Regs[2])
	}
}

// TestUnalignedLoadStoreRoundTrip checks that an SWR/SWL pair followed by
// an LWR/LWL pair for the same unaligned word (the right half at addr, the
// left half at addr+3) reconstructs the original word, at every byte offset
// into the aligned word it can land on.
func TestUnalignedLoadStoreRoundTrip(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)

	const original = 0x12345678
	for _, addr := range []uint32{0x200, 0x201, 0x202, 0x203} {
		c.Regs[1] = 0 // base register holding the unaligned address directly
		c.Regs[2] = original

		c.opSWR(encI(opcodeSWR, 1, 2, uint16(addr)), 0)
		c.opSWL(encI(opcodeSWL, 1, 2, uint16(addr+3)), 0)

		c.Regs[3] = 0xFFFFFFFF // garbage the load must fully overwrite
		c.opLWR(encI(opcodeLWR, 1, 3, uint16(addr)), 0)
		c.opLWL(encI(opcodeLWL, 1, 3, uint16(addr+3)), 0)

		if c.Regs[3] != original {
			t.Fatalf("addr %#x: round trip = %#x, want %#x", addr, c.Regs[3], original)
		}
	}
}

func TestADDRaisesOverflowOnSignedWraparound(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 0x7FFFFFFF
	c.Regs[2] = 1

	c.opADD(encR(functADD, 1, 2, 3, 0), 0)

	if c.exc.reason != excOVF {
		t.Fatalf("exception reason = %v, want excOVF", c.exc.reason)
	}
	if c.Regs[3] != 0 {
		t.Fatalf("r3 = %#x, want untouched (0) after overflow", c.Regs[3])
	}
}

func TestADDUDoesNotOverflow(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 0x7FFFFFFF
	c.Regs[2] = 1

	c.opADDU(encR(functADDU, 1, 2, 3, 0))

	if c.exc.reason != excNone {
		t.Fatalf("unexpected exception reason %v", c.exc.reason)
	}
	if c.Regs[3] != 0x80000000 {
		t.Fatalf("r3 = %#x, want 0x80000000", c.Regs[3])
	}
}

func TestLHAtOddAddressRaisesADEL(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 1 // base register, imm 0 => effective address 1

	c.opLH(encI(opcodeLH, 1, 2, 0), 0)

	if c.exc.reason != excADEL {
		t.Fatalf("exception reason = %v, want excADEL", c.exc.reason)
	}
	if c.exc.badAddress != 1 {
		t.Fatalf("badAddress = %#x, want 0x1", c.exc.badAddress)
	}
}

func TestDivByZero(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 12
	c.Regs[2] = 0

	c.opDIV(encR(26, 1, 2, 0, 0))

	if c.LO != 0xFFFFFFFF {
		t.Fatalf("LO (quotient) = %#x, want 0xFFFFFFFF", c.LO)
	}
	if c.HI != 12 {
		t.Fatalf("HI (remainder) = %#x, want 12", c.HI)
	}
}

func TestDivuByZero(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 12
	c.Regs[2] = 0

	c.opDIVU(encR(27, 1, 2, 0, 0))

	if c.LO != 0xFFFFFFFF {
		t.Fatalf("LO (quotient) = %#x, want 0xFFFFFFFF", c.LO)
	}
	if c.HI != 12 {
		t.Fatalf("HI (remainder) = %#x, want 12", c.HI)
	}
}

func TestDivMinIntByNegOneDoesNotTrap(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.Regs[1] = 0x80000000 // INT32_MIN
	c.Regs[2] = 0xFFFFFFFF // -1

	c.opDIV(encR(26, 1, 2, 0, 0))

	if c.LO != 0x80000000 {
		t.Fatalf("LO (quotient) = %#x, want 0x80000000", c.LO)
	}
	if c.HI != 0 {
		t.Fatalf("HI (remainder) = %#x, want 0", c.HI)
	}
	if c.exc.reason != excNone {
		t.Fatalf("unexpected exception reason %v", c.exc.reason)
	}
}

func TestMF0RejectsReservedRegister(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)

	c.opMF0(encR(0, 0, 1, 2, 0), 0) // MF0 r1, $2 (reserved)

	if c.exc.reason != excRI {
		t.Fatalf("exception reason = %v, want excRI", c.exc.reason)
	}
}

func TestExceptionEntrySetsEPCAndVector(t *testing.T) {
	mem := memory.New(nil)
	c := New(mem)
	c.PC = 0x40
	c.Regs[1] = 0x7FFFFFFF
	c.Regs[2] = 1

	c.opADD(encR(functADD, 1, 2, 3, 0), 0x3C)
	if !c.handleException() {
		t.Fatal("handleException returned false with a pending overflow")
	}

	if got := c.Cop0.EPC(); got != 0x40 {
		t.Fatalf("EPC = %#x, want 0x40", got)
	}
	if c.PC != c.Cop0.GeneralExceptionVector() {
		t.Fatalf("PC = %#x, want general exception vector %#x", c.PC, c.Cop0.GeneralExceptionVector())
	}
	if c.exc.reason != excNone {
		t.Fatalf("exception record not cleared after handling")
	}
}
