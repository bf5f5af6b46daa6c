// Package spu implements the stub SPU (sound chip) the core is required to
// carry: a flat 1 KiB register space that echoes back whatever the system
// last wrote to it. No audio synthesis is performed, matching spec.md's
// explicit non-goal.
package spu

const size = 1024

// Base is the first physical address the SPU's register window occupies.
const Base = 0x1F801C00

// SPU is the fake register store.
type SPU struct {
	regs [size]byte
}

// New returns a zeroed SPU.
func New() *SPU {
	return &SPU{}
}

// ReadByte returns the last byte written at address (relative to Base).
func (s *SPU) ReadByte(address uint32) byte {
	return s.regs[(address-Base)&(size-1)]
}

// WriteByte stores a byte at address (relative to Base).
func (s *SPU) WriteByte(address uint32, value byte) {
	s.regs[(address-Base)&(size-1)] = value
}
