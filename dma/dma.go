// Package dma implements the seven-channel DMA arbiter: per-channel base/
// block/control registers, the priority-arbitration scan that runs on every
// channel-control write, and the OTC/GPU/CD-ROM transfer engines. The
// remaining four channels (MDECin, MDECout, SPU, PIO) have no transfer
// engine in this core and are logged no-ops, per spec.md §9's direction to
// fix the original's exit(1) rough edge.
package dma

import "github.com/jetsetilly/gopsx/logger"

// Channel indices, in priority-tie-break order (lowest wins).
const (
	MDECin = iota
	MDECout
	GPU
	CDROM
	SPU
	PIO
	OTC
	numChannels = 7
)

// Memory is the subset of the system interlink the arbiter moves words
// through during a transfer.
type Memory interface {
	ReadWord(addr uint32) uint32
	WriteWord(addr uint32, value uint32)
}

// Translator resolves a DMA base address (a virtual address as programmed
// by software) to its physical counterpart. DMA transfers are never
// subject to the CPU's user/kernel privilege check, so callers always pass
// kernel=true.
type Translator interface {
	Translate(vaddr uint32, kernel bool) (paddr uint32, cacheable bool, ok bool)
}

// GPUPort is the GPU's GP0 command port and GPUREAD latch, as seen by GPU
// DMA transfers.
type GPUPort interface {
	SubmitGP0(word uint32)
	ReadResponse() uint32
}

// CDROMPort is the CD-ROM drive's data port, as seen by CD-ROM DMA
// transfers.
type CDROMPort interface {
	ReadDataPort() byte
}

type channel struct {
	base    uint32
	block   uint32
	control uint32
}

// Arbiter owns the seven DMA channels and the two global registers.
type Arbiter struct {
	ch     [numChannels]channel
	ctrl   uint32
	irq    uint32
	mem    Memory
	trans  Translator
	gpu    GPUPort
	cdrom  CDROMPort
	stageIRQ func(delay int64)
	setBusHolderDMA func(bool)
}

// New returns an Arbiter wired to its collaborators. stageIRQ is called
// with a delay (in CPU cycles, per spec.md's interrupt-delay model — always
// zero for DMA) when a transfer's completion triggers the channel's
// interrupt. setBusHolderDMA(true/false) brackets each transfer, modelling
// the bus-interface-unit holder handoff.
func New(mem Memory, trans Translator, gpu GPUPort, cdrom CDROMPort, stageIRQ func(delay int64), setBusHolderDMA func(bool)) *Arbiter {
	return &Arbiter{mem: mem, trans: trans, gpu: gpu, cdrom: cdrom, stageIRQ: stageIRQ, setBusHolderDMA: setBusHolderDMA}
}

func lrshift(x uint32, n uint) uint32 { return x >> n }

// ReadWord reads one of the 7*3 channel registers or the two global
// registers, selected by the low byte of address.
func (a *Arbiter) ReadWord(address uint32) uint32 {
	switch address & 0xFF {
	case 0x80:
		return a.ch[MDECin].base
	case 0x84:
		return a.ch[MDECin].block
	case 0x88:
		return a.ch[MDECin].control
	case 0x90:
		return a.ch[MDECout].base
	case 0x94:
		return a.ch[MDECout].block
	case 0x98:
		return a.ch[MDECout].control
	case 0xA0:
		return a.ch[GPU].base
	case 0xA4:
		return a.ch[GPU].block
	case 0xA8:
		return a.ch[GPU].control
	case 0xB0:
		return a.ch[CDROM].base
	case 0xB4:
		return a.ch[CDROM].block
	case 0xB8:
		return a.ch[CDROM].control
	case 0xC0:
		return a.ch[SPU].base
	case 0xC4:
		return a.ch[SPU].block
	case 0xC8:
		return a.ch[SPU].control
	case 0xD0:
		return a.ch[PIO].base
	case 0xD4:
		return a.ch[PIO].block
	case 0xD8:
		return a.ch[PIO].control
	case 0xE0:
		return a.ch[OTC].base
	case 0xE4:
		return a.ch[OTC].block
	case 0xE8:
		return a.ch[OTC].control | 0x02000000
	case 0xF0:
		return a.ctrl
	case 0xF4:
		return a.irq
	}
	return 0
}

// ReadByte extracts one byte of the word at the aligned address.
func (a *Arbiter) ReadByte(address uint32) byte {
	word := a.ReadWord(address &^ 3)
	shift := (^address & 3) * 8
	return byte(lrshift(word, uint(shift)))
}

// WriteWord writes one of the channel or global registers, re-evaluating
// the arbitration scan whenever a channel-control register is touched.
func (a *Arbiter) WriteWord(address uint32, word uint32) {
	switch address & 0xFF {
	case 0x80:
		a.ch[MDECin].base = word
	case 0x84:
		a.ch[MDECin].block = word
	case 0x88:
		a.ch[MDECin].control = word
		a.handleTransactions()
	case 0x90:
		a.ch[MDECout].base = word
	case 0x94:
		a.ch[MDECout].block = word
	case 0x98:
		a.ch[MDECout].control = word
		a.handleTransactions()
	case 0xA0:
		a.ch[GPU].base = word
	case 0xA4:
		a.ch[GPU].block = word
	case 0xA8:
		a.ch[GPU].control = word
		a.handleTransactions()
	case 0xB0:
		a.ch[CDROM].base = word
	case 0xB4:
		a.ch[CDROM].block = word
	case 0xB8:
		a.ch[CDROM].control = word
		a.handleTransactions()
	case 0xC0:
		a.ch[SPU].base = word
	case 0xC4:
		a.ch[SPU].block = word
	case 0xC8:
		a.ch[SPU].control = word
		a.handleTransactions()
	case 0xD0:
		a.ch[PIO].base = word
	case 0xD4:
		a.ch[PIO].block = word
	case 0xD8:
		a.ch[PIO].control = word
		a.handleTransactions()
	case 0xE0:
		a.ch[OTC].base = word
	case 0xE4:
		a.ch[OTC].block = word
	case 0xE8:
		kept := a.ch[OTC].control & 0xAEFFFFFF
		kept |= 0x2
		kept |= word & 0x51000000
		a.ch[OTC].control = kept
		a.handleTransactions()
	case 0xF0:
		a.ctrl = word
	case 0xF4:
		a.irq &= 0x7F000000
		a.irq |= word & 0x00FFFFFF
		a.irq &^= word & 0x7F000000
	}
}

// WriteByte merges a single byte into the word at the aligned address.
func (a *Arbiter) WriteByte(address uint32, value byte) {
	aligned := address &^ 3
	word := a.ReadWord(aligned)
	shift := (^address & 3) * 8
	mask := uint32(0xFF) << shift
	word = (word &^ mask) | (uint32(value) << shift)
	a.WriteWord(aligned, word)
}

// handleTransactions re-scans all seven channels for a start condition,
// selects the single highest-priority (lowest-value, ties broken by lowest
// channel index) enabled channel, and executes its transfer.
func (a *Arbiter) handleTransactions() {
	var started [numChannels]bool
	for i := range a.ch {
		ctrl := a.ch[i].control
		syncMode := lrshift(ctrl&0x600, 9)
		if syncMode == 0 {
			started[i] = ctrl&0x11000000 == 0x11000000
		} else {
			started[i] = lrshift(ctrl, 24)&1 == 1
		}
	}

	highestPriority := 8
	selected := -1
	for i := range a.ch {
		if !started[i] {
			continue
		}
		priority := int(lrshift(a.ctrl, uint(i*4)) & 0x7)
		enabled := lrshift(a.ctrl, uint(i*4)) & 0x8
		if enabled == 0 {
			continue
		}
		if priority < highestPriority {
			highestPriority = priority
			selected = i
		}
	}

	if selected == -1 {
		return
	}

	if a.setBusHolderDMA != nil {
		a.setBusHolderDMA(true)
	}
	a.ch[selected].control &^= 1 << 28

	switch selected {
	case MDECin:
		logger.Logf("dma", "MDECin DMA triggered (no-op)")
	case MDECout:
		logger.Logf("dma", "MDECout DMA triggered (no-op)")
	case GPU:
		a.handleGPU()
	case CDROM:
		a.handleCDROM()
	case SPU:
		logger.Logf("dma", "SPU DMA triggered (no-op)")
	case PIO:
		logger.Logf("dma", "PIO DMA triggered (no-op)")
	case OTC:
		a.handleOTC()
	}

	a.ch[selected].control &^= 1 << 24
	if a.setBusHolderDMA != nil {
		a.setBusHolderDMA(false)
	}

	enableBit := uint32(0x00010000) << uint(selected)
	mask := enableBit | 0x00800000
	if a.irq&mask == mask {
		a.irq |= uint32(0x01000000) << uint(selected)
		if a.stageIRQ != nil {
			a.stageIRQ(0)
		}
	}
}

func (a *Arbiter) handleGPU() {
	base, _, _ := a.trans.Translate(a.ch[GPU].base, true)
	block := a.ch[GPU].block
	control := a.ch[GPU].control

	switch lrshift(control&0x600, 9) {
	case 1: // block mode
		blockSize := block & 0xFFFF
		if blockSize == 0 {
			blockSize = 0x10000
		}
		numBlocks := lrshift(block, 16) & 0xFFFF
		if numBlocks == 0 {
			numBlocks = 0x10000
		}
		numWords := blockSize * numBlocks

		addr := base
		toGPU := control&1 == 1
		backward := lrshift(control, 1)&1 == 1
		for i := uint32(0); i < numWords; i++ {
			if toGPU {
				a.gpu.SubmitGP0(a.mem.ReadWord(addr))
			} else {
				a.mem.WriteWord(addr, a.gpu.ReadResponse())
			}
			if backward {
				addr -= 4
			} else {
				addr += 4
			}
		}
		a.ch[GPU].block &= 0xFFFF0000
	case 2: // linked-list mode
		next := base
		for {
			current := next
			header := a.mem.ReadWord(current)
			a.ch[GPU].base = header & 0xFFFFFF00
			numWords := lrshift(header&0xFF000000, 24)
			next = header & 0xFFFFFF
			for i := uint32(1); i <= numWords; i++ {
				a.gpu.SubmitGP0(a.mem.ReadWord(current + i*4))
			}
			if next == 0xFFFFFF {
				break
			}
		}
	default:
		logger.Logf("dma", "unimplemented GPU DMA sync mode %d", lrshift(control&0x600, 9))
	}
}

func (a *Arbiter) handleCDROM() {
	base, _, _ := a.trans.Translate(a.ch[CDROM].base, true)
	numWords := a.ch[CDROM].block & 0xFFFF
	if numWords == 0 {
		numWords = 0x10000
	}

	addr := base
	for i := uint32(0); i < numWords*4; i++ {
		a.writeByteAt(addr, a.cdrom.ReadDataPort())
		addr++
	}

	if a.ch[CDROM].control&0x10000 == 0x10000 {
		a.ch[CDROM].block &= 0xFFFF
	}
}

func (a *Arbiter) writeByteAt(addr uint32, value byte) {
	aligned := addr &^ 3
	shift := (addr & 3) * 8
	word := a.mem.ReadWord(aligned)
	mask := uint32(0xFF) << shift
	word = (word &^ mask) | (uint32(value) << shift)
	a.mem.WriteWord(aligned, word)
}

func (a *Arbiter) handleOTC() {
	base, _, _ := a.trans.Translate(a.ch[OTC].base, true)
	numWords := a.ch[OTC].block & 0xFFFF
	if numWords == 0 {
		numWords = 0x10000
	}

	current := base
	for i := uint32(0); i < numWords-1; i++ {
		a.mem.WriteWord(current, current-4)
		current -= 4
	}
	a.mem.WriteWord(current, 0xFFFFFF00)

	if a.ch[OTC].control&0x10000 == 0x10000 {
		a.ch[OTC].block &= 0xFFFF
	}
}
