// Package memory implements the system interlink: the single dispatcher
// that routes every physical-address read and write the CPU issues to
// RAM, BIOS, scratchpad, cache control, or one of the memory-mapped
// devices, and that owns the interrupt-status/mask registers and the
// per-source interrupt-delay bookkeeping every staged interrupt passes
// through before it becomes visible to the CPU.
package memory

import (
	"github.com/jetsetilly/gopsx/cdrom"
	"github.com/jetsetilly/gopsx/cdrom/cdimage"
	"github.com/jetsetilly/gopsx/controller"
	"github.com/jetsetilly/gopsx/dma"
	"github.com/jetsetilly/gopsx/gpu"
	"github.com/jetsetilly/gopsx/gpu/renderer"
	"github.com/jetsetilly/gopsx/logger"
	"github.com/jetsetilly/gopsx/psxerr"
	"github.com/jetsetilly/gopsx/spu"
	"github.com/jetsetilly/gopsx/timer"
)

const (
	ramSize   = 0x200000
	biosSize  = 0x80000
	scratchSize = 0x400

	ramBase      = 0x00000000
	scratchBase  = 0x1F800000
	ioBase       = 0x1F801000
	expansion2Base = 0x1F802000
	biosBase     = 0x1FC00000
	cacheCtrlBase = 0xFFFE0000

	controllerBase = 0x1F801040
	iStatAddress   = 0x1F801070
	iMaskAddress   = 0x1F801074
	dmaBase        = 0x1F801080
	timerBase      = 0x1F801100
	cdromBase      = 0x1F801800
	gpuBase        = 0x1F801810
	spuBase        = 0x1F801C00
)

// Interrupt source indices, matched to the I_STAT/I_MASK bit each one
// ultimately sets; grounded on SystemInterlink.c's gpu/dma/cdrom/timer
// delay-and-counter fields, renumbered onto the conventional PSX bit
// layout (bit 1 is otherwise unused by any source this core wires up, so
// the GPU's single interrupt line - shared between the explicit GP0 0x1F
// command and the vblank crossing, exactly as the source does - is kept
// on bit 0 rather than "corrected" to the hardware's separate VBLANK/GPU
// split).
const (
	irqGPU = iota
	irqCDROM
	irqDMA
	irqTimer0
	irqTimer1
	irqTimer2
	numSources
)

var sourceBit = [numSources]uint32{
	irqGPU:    0x0001,
	irqCDROM:  0x0004,
	irqDMA:    0x0008,
	irqTimer0: 0x0010,
	irqTimer1: 0x0020,
	irqTimer2: 0x0040,
}

type delaySlot struct {
	active bool
	delay  int64
	count  int64
}

// Interlink is the system bus: RAM, BIOS, scratchpad, cache control, the
// interrupt registers, and every wired device.
type Interlink struct {
	ram   [ramSize]byte
	bios  [biosSize]byte
	scratch [scratchSize]byte

	cacheControl uint32
	post         byte

	iStat uint32
	iMask uint32

	delays [numSources]delaySlot

	dma        *dma.Arbiter
	gpu        *gpu.GPU
	cdrom      *cdrom.Drive
	timers     *timer.Module
	spu        *spu.SPU
	controller *controller.IO

	busHolderDMA bool
}

// New returns an Interlink with every device wired and a zeroed memory
// image. renderQueue is the rendering thread's job inbox the GPU submits
// draw commands to.
func New(renderQueue *renderer.Queue) *Interlink {
	m := &Interlink{}

	m.gpu = gpu.New(renderQueue, m.stageGPUIRQ)
	m.cdrom = cdrom.New(m.stageCDROMIRQ)
	m.timers = timer.New(m.gpu, m.stageTimerIRQ)
	m.spu = spu.New()
	m.controller = controller.New()
	m.dma = dma.New(m, translator{m}, m.gpu, m.cdrom, m.stageDMAIRQ, m.setBusHolderDMA)

	return m
}

// translator adapts Interlink's own address decoding to dma.Translator:
// DMA base registers live in the same kuseg/kseg0/kseg1 segments as any
// CPU-issued address, but a transfer is never subject to the CPU's
// privilege check, so the caller always passes kernel=true.
type translator struct{ m *Interlink }

func (t translator) Translate(vaddr uint32, kernel bool) (uint32, bool, bool) {
	switch {
	case vaddr < 0x80000000:
		return vaddr, true, true
	case vaddr < 0xA0000000:
		return vaddr - 0x80000000, true, true
	case vaddr < 0xC0000000:
		return vaddr - 0xA0000000, false, true
	default:
		return vaddr, false, true
	}
}

// LoadBIOS copies data into the BIOS window. It is an error for data to be
// anything other than exactly 512 KiB, the only contract the loader (an
// external collaborator) needs to honour.
func (m *Interlink) LoadBIOS(data []byte) error {
	if len(data) != biosSize {
		return psxerr.Errorf("memory: BIOS image must be %d bytes, got %d", biosSize, len(data))
	}
	copy(m.bios[:], data)
	return nil
}

// InsertDisc attaches a parsed cue/bin image to the CD-ROM drive.
func (m *Interlink) InsertDisc(img *cdimage.Image) {
	m.cdrom.InsertDisc(img)
}

// DMA, GPU, Timers, CDROM expose the owned devices for components (the CPU,
// the console runner, the rendering thread) that need to reach past the
// interlink's own register surface.
func (m *Interlink) DMA() *dma.Arbiter      { return m.dma }
func (m *Interlink) GPU() *gpu.GPU          { return m.gpu }
func (m *Interlink) Timers() *timer.Module  { return m.timers }
func (m *Interlink) CDROM() *cdrom.Drive    { return m.cdrom }

// ScratchpadEnabled reports whether the cache-control register's
// scratchpad-enable bits (3 and 7, both required) are set.
func (m *Interlink) ScratchpadEnabled() bool {
	const need = 1<<3 | 1<<7
	return m.cacheControl&need == need
}

// ICacheEnabled reports the cache-control register's instruction-cache
// enable bit (11).
func (m *Interlink) ICacheEnabled() bool {
	return m.cacheControl&(1<<11) != 0
}

func inRange(addr, base, size uint32) bool {
	return addr >= base && addr < base+size
}

// ReadLine returns the 16 raw bytes starting at base (base&^0xF), used
// only by the instruction cache's refill path. Refill never targets
// scratchpad or MMIO, so this only ever reads RAM or BIOS.
func (m *Interlink) ReadLine(base uint32) [16]byte {
	var out [16]byte
	switch {
	case inRange(base, ramBase, ramSize):
		copy(out[:], m.ram[base-ramBase:])
	case inRange(base, biosBase, biosSize):
		copy(out[:], m.bios[base-biosBase:])
	}
	return out
}

// ReadWord reads a physical, word-aligned address.
func (m *Interlink) ReadWord(address uint32) uint32 {
	switch {
	case inRange(address, ramBase, ramSize):
		off := address - ramBase
		return uint32(m.ram[off]) | uint32(m.ram[off+1])<<8 | uint32(m.ram[off+2])<<16 | uint32(m.ram[off+3])<<24
	case inRange(address, biosBase, biosSize):
		off := address - biosBase
		return uint32(m.bios[off]) | uint32(m.bios[off+1])<<8 | uint32(m.bios[off+2])<<16 | uint32(m.bios[off+3])<<24
	case inRange(address, scratchBase, scratchSize) && m.ScratchpadEnabled():
		off := address - scratchBase
		return uint32(m.scratch[off]) | uint32(m.scratch[off+1])<<8 | uint32(m.scratch[off+2])<<16 | uint32(m.scratch[off+3])<<24
	case inRange(address, cacheCtrlBase, 0x200):
		return m.cacheControl
	case address == iStatAddress:
		return m.iStat
	case address == iMaskAddress:
		return m.iMask
	case inRange(address, controllerBase, 0x10):
		return uint32(m.controller.ReadByte(address)) | uint32(m.controller.ReadByte(address+1))<<8 |
			uint32(m.controller.ReadByte(address+2))<<16 | uint32(m.controller.ReadByte(address+3))<<24
	case inRange(address, dmaBase, 0x80):
		return m.dma.ReadWord(address)
	case inRange(address, timerBase, 0x30):
		return m.readTimerWord(address)
	case inRange(address, cdromBase, 4):
		return 0 // word reads from the CD-ROM window are disallowed
	case inRange(address, gpuBase, 8):
		return m.gpu.ReadWord(address)
	case inRange(address, spuBase, 0x400):
		return uint32(m.spu.ReadByte(address)) | uint32(m.spu.ReadByte(address+1))<<8 |
			uint32(m.spu.ReadByte(address+2))<<16 | uint32(m.spu.ReadByte(address+3))<<24
	}
	logger.Logf("memory", "read from unmapped address %#08x", address)
	return 0
}

// WriteWord writes a physical, word-aligned address.
func (m *Interlink) WriteWord(address uint32, value uint32) {
	switch {
	case inRange(address, ramBase, ramSize):
		off := address - ramBase
		m.ram[off], m.ram[off+1], m.ram[off+2], m.ram[off+3] = byte(value), byte(value>>8), byte(value>>16), byte(value>>24)
	case inRange(address, biosBase, biosSize):
		// writes to BIOS ROM are no-ops
	case inRange(address, scratchBase, scratchSize) && m.ScratchpadEnabled():
		off := address - scratchBase
		m.scratch[off], m.scratch[off+1], m.scratch[off+2], m.scratch[off+3] = byte(value), byte(value>>8), byte(value>>16), byte(value>>24)
	case inRange(address, cacheCtrlBase, 0x200):
		m.cacheControl = value
	case address == iStatAddress:
		m.iStat &= value
	case address == iMaskAddress:
		m.iMask = value & 0xFFFF
	case inRange(address, controllerBase, 0x10):
		m.controller.WriteByte(address, byte(value))
		m.controller.WriteByte(address+1, byte(value>>8))
		m.controller.WriteByte(address+2, byte(value>>16))
		m.controller.WriteByte(address+3, byte(value>>24))
	case inRange(address, dmaBase, 0x80):
		m.dma.WriteWord(address, value)
	case inRange(address, timerBase, 0x30):
		m.writeTimerWord(address, value)
	case inRange(address, cdromBase, 4):
		// word writes to the CD-ROM window are disallowed
	case inRange(address, gpuBase, 8):
		m.gpu.WriteWord(address, value)
	case inRange(address, spuBase, 0x400):
		m.spu.WriteByte(address, byte(value))
		m.spu.WriteByte(address+1, byte(value>>8))
		m.spu.WriteByte(address+2, byte(value>>16))
		m.spu.WriteByte(address+3, byte(value>>24))
	}
}

func (m *Interlink) readTimerWord(address uint32) uint32 {
	idx := int((address - timerBase) >> 4 & 0x3)
	if idx > 2 {
		return 0
	}
	switch (address - timerBase) & 0xF {
	case 0x0:
		return m.timers.ReadCounterValue(idx)
	case 0x4:
		return m.timers.ReadMode(idx, false)
	case 0x8:
		return m.timers.ReadTargetValue(idx)
	}
	return 0
}

func (m *Interlink) writeTimerWord(address uint32, value uint32) {
	idx := int((address - timerBase) >> 4 & 0x3)
	if idx > 2 {
		return
	}
	switch (address - timerBase) & 0xF {
	case 0x0:
		m.timers.WriteCounterValue(idx, value)
	case 0x4:
		m.timers.WriteMode(idx, value)
	case 0x8:
		m.timers.WriteTargetValue(idx, value)
	}
}

// ReadByte reads a single physical byte.
func (m *Interlink) ReadByte(address uint32) byte {
	switch {
	case inRange(address, ramBase, ramSize):
		return m.ram[address-ramBase]
	case inRange(address, biosBase, biosSize):
		return m.bios[address-biosBase]
	case inRange(address, scratchBase, scratchSize) && m.ScratchpadEnabled():
		return m.scratch[address-scratchBase]
	case address == expansion2Base+0x41:
		return m.post
	case inRange(address, controllerBase, 0x10):
		return m.controller.ReadByte(address)
	case inRange(address, cdromBase, 4):
		return m.cdrom.ReadByte(address)
	case inRange(address, spuBase, 0x400):
		return m.spu.ReadByte(address)
	case address == iStatAddress, address == iStatAddress+1:
		return byte(m.iStat >> (8 * (address - iStatAddress)))
	case address == iMaskAddress, address == iMaskAddress+1:
		return byte(m.iMask >> (8 * (address - iMaskAddress)))
	}
	return byte(m.ReadWord(address &^ 3) >> (8 * (address & 3)))
}

// WriteByte writes a single physical byte. Byte writes to I_STAT/I_MASK
// only ever land in the low two bytes of each register, matching the
// source's allowance of byte-wide acknowledgement/mask writes.
func (m *Interlink) WriteByte(address uint32, value byte) {
	switch {
	case inRange(address, ramBase, ramSize):
		m.ram[address-ramBase] = value
	case inRange(address, biosBase, biosSize):
		// no-op
	case inRange(address, scratchBase, scratchSize) && m.ScratchpadEnabled():
		m.scratch[address-scratchBase] = value
	case address == expansion2Base+0x41:
		m.post = value
	case inRange(address, controllerBase, 0x10):
		m.controller.WriteByte(address, value)
	case inRange(address, cdromBase, 4):
		m.cdrom.WriteByte(address, value)
	case inRange(address, spuBase, 0x400):
		m.spu.WriteByte(address, value)
	case address == iStatAddress:
		m.iStat &= 0xFFFFFF00 | uint32(value)
	case address == iStatAddress+1:
		m.iStat &= 0xFFFF00FF | uint32(value)<<8
	case address == iMaskAddress:
		m.iMask = (m.iMask &^ 0xFF) | uint32(value)
	case address == iMaskAddress+1:
		m.iMask = (m.iMask &^ 0xFF00) | uint32(value)<<8
	}
}

// setBusHolderDMA records whether the DMA arbiter currently owns the bus;
// wired to the DMA arbiter and read back through BusHeldByDMA.
func (m *Interlink) setBusHolderDMA(held bool) {
	m.busHolderDMA = held
}

// BusHeldByDMA reports whether the DMA arbiter currently owns the bus. The
// CPU's instruction fetch stalls while it does; data loads and stores do
// not check it.
func (m *Interlink) BusHeldByDMA() bool {
	return m.busHolderDMA
}

// IStat returns the raw I_STAT register, as polled by interrupt handling.
func (m *Interlink) IStat() uint32 {
	return m.iStat
}

// IMask returns the raw I_MASK register, as polled by interrupt handling.
func (m *Interlink) IMask() uint32 {
	return m.iMask
}

// AppendSyncCycles fans a block of newly-consumed CPU cycles out to every
// device with its own free-running clock, called once per CPU instruction
// regardless of whether that instruction polls for interrupts.
func (m *Interlink) AppendSyncCycles(cycles int64) {
	m.gpu.AppendCPUCycles(cycles)
	m.controller.AppendSyncCycles(int32(cycles))
	m.timers.AppendSyncCycles(cycles)
}

func (m *Interlink) stageGPUIRQ(delay int64) {
	m.delays[irqGPU] = delaySlot{active: true, delay: delay}
}

func (m *Interlink) stageDMAIRQ(delay int64) {
	m.delays[irqDMA] = delaySlot{active: true, delay: delay}
}

func (m *Interlink) stageCDROMIRQ(_ int, delay int64) {
	m.delays[irqCDROM] = delaySlot{active: true, delay: delay}
}

func (m *Interlink) stageTimerIRQ(timerIdx int) {
	m.delays[irqTimer0+timerIdx] = delaySlot{active: true, delay: 0}
}

// IncrementInterruptCounters advances every active interrupt-delay slot by
// cycles and, for any slot whose counter has exceeded its programmed
// delay, sets the corresponding I_STAT bit. The CD-ROM source gates on the
// drive's own interrupt-enable/flag state at the moment the delay expires.
func (m *Interlink) IncrementInterruptCounters(cycles int64) {
	for i := range m.delays {
		d := &m.delays[i]
		if !d.active {
			continue
		}
		d.count += cycles
		if d.count <= d.delay {
			continue
		}
		d.active = false
		if i == irqCDROM && !m.cdrom.InterruptPending() {
			continue
		}
		m.iStat |= sourceBit[i]
	}
}

// StallCycles returns the fixed per-access stall this address incurs on
// the system-bus path (not the cache/scratchpad fast paths).
func (m *Interlink) StallCycles(address uint32) int64 {
	switch {
	case inRange(address, ramBase, ramSize):
		return 6
	case inRange(address, biosBase, biosSize):
		return 1
	case inRange(address, cacheCtrlBase, 0x200):
		return 1
	}
	return 4
}
