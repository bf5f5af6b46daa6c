// Package gpu implements the GPU command processor: the status/GP0/GP1
// register surface, the GP0 command-word intake that turns a fixed-size
// payload into a rendering job, and the GPU-cycle timing the rest of the
// system (vblank staging, the timer module's GPU-derived clock sources)
// depends on.
package gpu

import (
	"github.com/jetsetilly/gopsx/gpu/renderer"
	"github.com/jetsetilly/gopsx/internal/queue"
)

// Status register bit positions.
const (
	statusTexPageXMask  = 0x0000000F
	statusTexPageY      = 0x00000010
	statusSemiTransMask = 0x00000060
	statusTexFmtMask    = 0x00000180
	statusDither        = 0x00000200
	statusDrawToDisplay = 0x00000400
	statusSetMask       = 0x00000800
	statusCheckMask     = 0x00001000
	statusInterlaceFld  = 0x00002000
	statusReverse       = 0x00004000
	statusTexDisable    = 0x00008000
	statusHRes1Mask     = 0x00060000
	statusVRes          = 0x00080000
	statusVideoMode     = 0x00100000
	statusColourDepth   = 0x00200000
	statusVertInterlace = 0x00400000
	statusDisplayOff    = 0x00800000
	statusIRQ           = 0x01000000
	statusDMARequest    = 0x02000000
	statusReadyCmd      = 0x04000000
	statusReadyVRAMRead = 0x08000000
	statusReadyDMA      = 0x10000000
	statusDMADirMask    = 0x60000000
	statusOddEven       = 0x80000000
)

// DMA direction values (status bits 29-30).
const (
	dmaDirOff = iota
	dmaDirFIFO
	dmaDirCPUToGP0
	dmaDirGPUREADToCPU
)

const (
	cyclesPerScanline   = 3406
	cyclesPerFrame      = 1069484
	vblankStartCycle    = 817440
	cpuToGPUNumerator   = 11
	cpuToGPUDenominator = 7
)

// transferWindow describes an in-progress CPU<->VRAM staged copy (GP0
// 0xA0/0xC0).
type transferWindow struct {
	active     bool
	toVRAM     bool
	x, y, w, h int32
	index      int
	needed     int
	buf        []byte
}

// GPU owns the full register surface plus the GP0 FIFO intake state and
// the CPU<->GPU cycle accounting the rest of the system depends on.
type GPU struct {
	status uint32

	startX, startY     int32
	rangeX1, rangeX2   uint32
	rangeY1, rangeY2   uint32
	drawAreaTL         uint32
	drawAreaBR         uint32
	drawOffsetX        int32
	drawOffsetY        int32
	texWindow          uint32

	gpuread uint32

	fifo    *queue.Queue[uint32]
	fifoOp  uint32
	fifoLen int
	polyline bool

	staging transferWindow

	cpuCyclesAccrued int64
	gpuCycles        int64
	scanlineCycle    int64
	oddOrEven        bool
	vblankTriggered  bool

	hres          int32
	vres          int32
	dotFactor     int64
	interlace     bool

	queue   *renderer.Queue
	stageIRQ func(delay int64)
}

// New returns a GPU in its post-reset state, wired to a rendering queue
// (may be nil in register-only/headless configurations, e.g. tests) and an
// interrupt-staging callback.
func New(q *renderer.Queue, stageIRQ func(delay int64)) *GPU {
	g := &GPU{queue: q, stageIRQ: stageIRQ, fifo: queue.New[uint32]()}
	g.reset()
	return g
}

func (g *GPU) reset() {
	g.status = 0x14802000
	g.dotFactor = 10
	g.hres = 256
	g.vres = 240
}

func lrshift(x uint32, n uint) uint32 { return x >> n }

// ReadStatus returns the live status register.
func (g *GPU) ReadStatus() uint32 {
	return g.status
}

// ReadResponse returns the GPUREAD latch, draining two pixels from an
// in-progress VRAM->CPU staging buffer if one is active.
func (g *GPU) ReadResponse() uint32 {
	if g.staging.active && !g.staging.toVRAM {
		return g.drainStagingRead()
	}
	return g.gpuread
}

func (g *GPU) drainStagingRead() uint32 {
	if g.staging.index+4 > len(g.staging.buf) {
		g.staging.active = false
		return g.gpuread
	}
	p0 := packBGR555(g.staging.buf[g.staging.index : g.staging.index+4])
	g.staging.index += 4
	var p1 uint32
	if g.staging.index+4 <= len(g.staging.buf) {
		p1 = packBGR555(g.staging.buf[g.staging.index : g.staging.index+4])
		g.staging.index += 4
	}
	word := p0 | (p1 << 16)
	if g.staging.index >= len(g.staging.buf) {
		g.staging.active = false
	}
	return word
}

func packBGR555(rgba []byte) uint32 {
	r := uint32(rgba[0]) >> 3
	gr := uint32(rgba[1]) >> 3
	b := uint32(rgba[2]) >> 3
	word := r | (gr << 5) | (b << 10)
	if rgba[3] == 0 {
		word |= 0x8000
	}
	return word
}

func unpackBGR555(v uint16) [4]byte {
	r := uint8(v&0x1F) << 3
	g := uint8((v>>5)&0x1F) << 3
	b := uint8((v>>10)&0x1F) << 3
	a := uint8(0xFF)
	if v&0x8000 != 0 {
		a = 0
	}
	return [4]byte{r, g, b, a}
}

// gp0WordCount returns the fixed payload size (in words, including the
// command word itself) for opcode, or 0 if the opcode is a special command
// or variable-length (polyline).
func gp0WordCount(op byte) int {
	switch op >> 5 {
	case 1: // 0x20-0x3F: polygons
		words := 4
		if op&0x10 != 0 { // quad
			words++
		}
		if op&0x08 != 0 { // gouraud shaded: one extra colour per vertex after the first
			if op&0x10 != 0 {
				words += 3
			} else {
				words += 2
			}
		}
		if op&0x04 != 0 { // textured: one UV+clut/texpage word per vertex
			if op&0x10 != 0 {
				words += 4
			} else {
				words += 3
			}
		}
		return words
	case 3: // 0x60-0x7F: rectangles
		words := 2
		if op&0x04 != 0 {
			words++ // texcoord+clut word
		}
		if op&0x18 == 0x00 {
			words++ // variable size needs an explicit w/h word
		}
		return words
	}
	return 0
}

// SubmitGP0 feeds one 32-bit word into the GP0 port: either starting a new
// command, accumulating payload for the in-flight command, or streaming
// into an active CPU->VRAM staging transfer.
func (g *GPU) SubmitGP0(word uint32) {
	if g.staging.active && g.staging.toVRAM {
		g.feedStagingWrite(word)
		return
	}

	if g.fifoLen == 0 {
		g.fifo.Clear()
		g.fifoOp = lrshift(word, 24) & 0xFF
		g.fifo.Push(word)

		if g.handleSpecial(byte(g.fifoOp)) {
			return
		}

		switch g.fifoOp >> 5 {
		case 2: // 0x40-0x5F: lines
			g.polyline = g.fifoOp&0x08 != 0
			if g.polyline {
				g.fifoLen = -1 // wait for terminator
				return
			}
			g.fifoLen = 3
			if g.fifoOp&0x10 != 0 { // shaded
				g.fifoLen++
			}
			return
		default:
			g.fifoLen = gp0WordCount(byte(g.fifoOp))
			if g.fifoLen <= 1 {
				g.finishFIFOCommand()
			}
			return
		}
	}

	g.fifo.Push(word)

	if g.fifoLen == -1 {
		if word == 0x5555_5555 || word == 0x5000_5000 {
			g.emitLine()
			g.fifoLen = 0
		}
		return
	}

	if g.fifo.Len() >= g.fifoLen {
		g.finishFIFOCommand()
	}
}

func (g *GPU) finishFIFOCommand() {
	switch byte(g.fifoOp) {
	case 0x02:
		g.emitFillRect()
		g.fifoLen = 0
		return
	case 0xA0:
		g.beginCPUToVRAM()
		g.fifoLen = 0
		return
	case 0xC0:
		g.beginVRAMToCPU()
		g.fifoLen = 0
		return
	case 0x80:
		g.emitVRAMToVRAM()
		g.fifoLen = 0
		return
	}
	switch g.fifoOp >> 5 {
	case 1:
		g.emitPolygon()
	case 2:
		g.emitLine()
	case 3:
		g.emitRect()
	}
	g.fifoLen = 0
}

func (g *GPU) emitFillRect() {
	if g.queue == nil {
		return
	}
	colour := g.fifo.At(0)
	pos := g.fifo.At(1)
	size := g.fifo.At(2)
	g.queue.Submit(renderer.FillRectJob{
		X: int32(pos & 0xFFFF), Y: int32(pos >> 16),
		W: int32(size & 0xFFFF), H: int32(size >> 16),
		R: uint8(colour), G: uint8(colour >> 8), B: uint8(colour >> 16),
	})
}

func (g *GPU) emitVRAMToVRAM() {
	if g.queue == nil {
		return
	}
	src := g.fifo.At(1)
	dst := g.fifo.At(2)
	size := g.fifo.At(3)
	g.queue.Submit(renderer.CopyVRAMToVRAMJob{
		SrcX: int32(src & 0xFFFF), SrcY: int32(src >> 16),
		DstX: int32(dst & 0xFFFF), DstY: int32(dst >> 16),
		W: int32(size & 0xFFFF), H: int32(size >> 16),
	})
}

func (g *GPU) snapshot() renderer.Snapshot {
	return renderer.Snapshot{
		Status:      g.status,
		DrawAreaTL:  g.drawAreaTL,
		DrawAreaBR:  g.drawAreaBR,
		DrawOffsetX: g.drawOffsetX,
		DrawOffsetY: g.drawOffsetY,
		TexWindow:   g.texWindow,
	}
}

func (g *GPU) emitPolygon() {
	if g.queue == nil {
		return
	}
	quad := g.fifoOp&0x10 != 0
	shaded := g.fifoOp&0x08 != 0
	textured := g.fifoOp&0x04 != 0

	n := 3
	if quad {
		n = 4
	}
	verts := make([]renderer.Vertex, 0, n)
	idx := 1
	colour := g.fifo.At(0) // vertex 0's colour is the command word itself
	for i := 0; i < n; i++ {
		if i > 0 && shaded {
			if idx >= g.fifo.Len() {
				break
			}
			colour = g.fifo.At(idx)
			idx++
		}
		if idx >= g.fifo.Len() {
			break
		}
		pos := g.fifo.At(idx)
		idx++
		if textured {
			idx++
		}
		verts = append(verts, renderer.Vertex{
			X: int32(int16(pos & 0xFFFF)),
			Y: int32(int16((pos >> 16) & 0xFFFF)),
			R: uint8(colour), G: uint8(colour >> 8), B: uint8(colour >> 16),
		})
	}
	g.queue.Submit(renderer.PolygonJob{
		Snapshot: g.snapshot(),
		Vertices: verts,
		Textured: textured,
		Shaded:   shaded,
	})
}

func (g *GPU) emitRect() {
	if g.queue == nil {
		return
	}
	textured := g.fifoOp&0x04 != 0
	colour := g.fifo.At(0)
	pos := g.fifo.At(1)
	var w, h uint32
	switch g.fifoOp & 0x18 {
	case 0x08:
		w, h = 1, 1
	case 0x10:
		w, h = 8, 8
	case 0x18:
		w, h = 16, 16
	default:
		if g.fifo.Len() > 2 {
			size := g.fifo.Slice()[g.fifo.Len()-1]
			w = size & 0xFFFF
			h = size >> 16
		}
	}
	g.queue.Submit(renderer.RectJob{
		Snapshot: g.snapshot(),
		X:        int32(int16(pos & 0xFFFF)),
		Y:        int32(int16((pos >> 16) & 0xFFFF)),
		W:        int32(w),
		H:        int32(h),
		R:        uint8(colour), G: uint8(colour >> 8), B: uint8(colour >> 16),
		Textured: textured,
	})
}

func (g *GPU) emitLine() {
	if g.queue == nil {
		return
	}
	shaded := g.fifoOp&0x10 != 0
	colour := g.fifo.At(0)
	verts := make([]renderer.Vertex, 0, g.fifo.Len())
	for _, w := range g.fifo.Slice()[1:] {
		if w == 0x5555_5555 || w == 0x5000_5000 {
			continue
		}
		verts = append(verts, renderer.Vertex{
			X: int32(int16(w & 0xFFFF)),
			Y: int32(int16((w >> 16) & 0xFFFF)),
			R: uint8(colour), G: uint8(colour >> 8), B: uint8(colour >> 16),
		})
	}
	g.queue.Submit(renderer.LineJob{
		Snapshot: g.snapshot(),
		Vertices: verts,
		Shaded:   shaded,
	})
}

// handleSpecial dispatches GP0 special commands that don't follow the
// generic fixed-word-count drawing path. Returns true if op was handled.
func (g *GPU) handleSpecial(op byte) bool {
	switch op {
	case 0x00:
		g.fifoLen = 0
		return true
	case 0x02:
		g.fifoLen = 3
		return true
	case 0x1F:
		g.status |= statusIRQ
		if g.stageIRQ != nil {
			g.stageIRQ(0)
		}
		g.fifoLen = 0
		return true
	case 0x80:
		g.fifoLen = 4
		return true
	case 0xA0:
		g.fifoLen = 3
		return true
	case 0xC0:
		g.fifoLen = 3
		return true
	case 0xE1:
		g.writeE1(g.fifo.At(0))
		g.fifoLen = 0
		return true
	case 0xE2:
		g.texWindow = g.fifo.At(0) & 0xFFFFF
		g.fifoLen = 0
		return true
	case 0xE3:
		g.drawAreaTL = g.fifo.At(0) & 0xFFFFF
		g.fifoLen = 0
		return true
	case 0xE4:
		g.drawAreaBR = g.fifo.At(0) & 0xFFFFF
		g.fifoLen = 0
		return true
	case 0xE5:
		xy := g.fifo.At(0)
		g.drawOffsetX = signExtend11(xy & 0x7FF)
		g.drawOffsetY = signExtend11((xy >> 11) & 0x7FF)
		g.fifoLen = 0
		return true
	case 0xE6:
		g.status &^= statusSetMask | statusCheckMask
		g.status |= (g.fifo.At(0) & 0x3) << 11
		g.fifoLen = 0
		return true
	}
	if op <= 0x1E {
		g.fifoLen = 0
		return true
	}
	return false
}

func signExtend11(v uint32) int32 {
	if v&0x400 != 0 {
		return int32(v) - 0x800
	}
	return int32(v)
}

func (g *GPU) writeE1(word uint32) {
	g.status &^= statusTexPageXMask | statusTexPageY | statusSemiTransMask | statusTexFmtMask | statusDither | statusDrawToDisplay | statusTexDisable
	g.status |= word & (statusTexPageXMask | statusTexPageY | statusSemiTransMask | statusTexFmtMask | statusDither | statusDrawToDisplay)
	if word&0x800 != 0 {
		g.status |= statusTexDisable
	}
}

func (g *GPU) feedStagingWrite(word uint32) {
	lo := unpackBGR555(uint16(word))
	hi := unpackBGR555(uint16(word >> 16))
	g.staging.buf = append(g.staging.buf, lo[:]...)
	if len(g.staging.buf) < g.staging.needed {
		g.staging.buf = append(g.staging.buf, hi[:]...)
	}
	if len(g.staging.buf) >= g.staging.needed {
		g.staging.buf = g.staging.buf[:g.staging.needed]
		if g.queue != nil {
			g.queue.Submit(renderer.CopyCPUToVRAMJob{
				X: g.staging.x, Y: g.staging.y, W: g.staging.w, H: g.staging.h,
				Pixels: g.staging.buf,
			})
		}
		g.staging.active = false
	}
}

// beginCPUToVRAM starts a GP0 0xA0 CPU->VRAM transfer window.
func (g *GPU) beginCPUToVRAM() {
	pos := g.fifo.At(1)
	size := g.fifo.At(2)
	g.staging = transferWindow{
		active: true,
		toVRAM: true,
		x:      int32(pos & 0xFFFF), y: int32(pos >> 16),
		w: int32(size & 0xFFFF), h: int32(size >> 16),
	}
	g.staging.needed = int(g.staging.w * g.staging.h * 4)
	g.staging.buf = make([]byte, 0, g.staging.needed)
}

// beginVRAMToCPU starts a GP0 0xC0 VRAM->CPU transfer window. The
// emulation thread never touches VRAM pixels directly (only the rendering
// thread owns the GL backend), so the staged bytes are fetched with a
// blocking round trip through the rendering queue.
func (g *GPU) beginVRAMToCPU() {
	pos := g.fifo.At(1)
	size := g.fifo.At(2)
	x, y := int32(pos&0xFFFF), int32(pos>>16)
	w, h := int32(size&0xFFFF), int32(size>>16)
	needed := int(w * h * 4)

	buf := make([]byte, needed)
	if g.queue != nil {
		buf = g.queue.ReadVRAM(x, y, w, h)
	}

	g.staging = transferWindow{active: true, toVRAM: false, x: x, y: y, w: w, h: h, needed: needed}
	g.staging.buf = buf
}

// WriteGP1 handles a GP1 display-control command.
func (g *GPU) WriteGP1(word uint32) {
	cmd := lrshift(word, 24) & 0xFF
	switch cmd {
	case 0x00:
		g.reset()
	case 0x01:
		g.fifo.Clear()
		g.fifoLen = 0
	case 0x02:
		g.status &^= statusIRQ
	case 0x03:
		if word&1 != 0 {
			g.status |= statusDisplayOff
		} else {
			g.status &^= statusDisplayOff
		}
	case 0x04:
		g.status &^= statusDMADirMask
		g.status |= (word & 0x3) << 29
	case 0x05:
		g.startX = int32(word & 0x3FF)
		g.startY = int32((word >> 10) & 0x1FF)
	case 0x06:
		g.rangeX1 = word & 0xFFF
		g.rangeX2 = (word >> 12) & 0xFFF
	case 0x07:
		g.rangeY1 = word & 0x3FF
		g.rangeY2 = (word >> 10) & 0x3FF
	case 0x08:
		g.writeDisplayMode(word)
	case 0x09:
		if word&1 != 0 {
			g.status |= statusTexDisable
		} else {
			g.status &^= statusTexDisable
		}
	case 0x10:
		g.readGPUInfo(word & 0xFF)
	}
}

func (g *GPU) writeDisplayMode(word uint32) {
	g.status &^= statusHRes1Mask | statusVRes | statusVideoMode | statusColourDepth | statusVertInterlace | statusReverse
	hres1 := word & 0x3
	g.status |= hres1 << 17
	// hres2 (bit 2) has no status bit here; it only selects the 368 width below
	if word&0x4 != 0 {
		g.hres = 368
	} else {
		switch hres1 {
		case 0:
			g.hres = 256
		case 1:
			g.hres = 320
		case 2:
			g.hres = 512
		case 3:
			g.hres = 640
		}
	}
	if word&0x8 != 0 {
		g.status |= statusVRes
		g.vres = 480
	} else {
		g.vres = 240
	}
	if word&0x10 != 0 {
		g.status |= statusVideoMode
	}
	if word&0x20 != 0 {
		g.status |= statusColourDepth
	}
	if word&0x40 != 0 {
		g.status |= statusVertInterlace
		g.interlace = true
	} else {
		g.interlace = false
	}
	if word&0x80 != 0 {
		g.status |= statusReverse
	}
	g.dotFactor = dotFactorFor(g.hres)
}

func dotFactorFor(hres int32) int64 {
	switch hres {
	case 256:
		return 10
	case 320:
		return 8
	case 368:
		return 7
	case 512:
		return 5
	case 640:
		return 4
	}
	return 10
}

func (g *GPU) readGPUInfo(sub uint32) {
	switch sub {
	case 0x02:
		g.gpuread = g.texWindow
	case 0x03:
		g.gpuread = g.drawAreaTL
	case 0x04:
		g.gpuread = g.drawAreaBR
	case 0x05:
		g.gpuread = uint32(int32(g.drawOffsetX)&0x7FF) | (uint32(int32(g.drawOffsetY)&0x7FF) << 11)
	case 0x07:
		g.gpuread = 2
	}
}

// AppendCPUCycles accumulates CPU cycles elapsed since the last call,
// converting them to GPU cycles at the fixed 7:11 ratio and advancing the
// scanline/frame accounting. It returns true exactly once per frame, the
// instant the GPU cycle counter crosses the vblank boundary.
func (g *GPU) AppendCPUCycles(cpuCycles int64) bool {
	g.cpuCyclesAccrued += cpuCycles
	gpuCycles := (g.cpuCyclesAccrued * cpuToGPUNumerator) / cpuToGPUDenominator
	g.cpuCyclesAccrued -= (gpuCycles * cpuToGPUDenominator) / cpuToGPUNumerator
	g.gpuCycles += gpuCycles

	crossedVblank := false
	for g.gpuCycles >= cyclesPerFrame {
		g.gpuCycles -= cyclesPerFrame
		g.oddOrEven = !g.oddOrEven
		if !g.vblankTriggered {
			crossedVblank = true
		}
		g.vblankTriggered = false
	}
	if !g.vblankTriggered && g.gpuCycles >= vblankStartCycle {
		g.vblankTriggered = true
		crossedVblank = true
	}
	if g.oddOrEven {
		g.status |= statusOddEven
	} else {
		g.status &^= statusOddEven
	}
	if crossedVblank {
		if g.stageIRQ != nil {
			g.stageIRQ(0)
		}
		if g.queue != nil {
			g.queue.Submit(renderer.DisplayScreenJob{X: g.startX, Y: g.startY, W: g.hres, H: g.vres})
		}
	}
	return crossedVblank
}

// IsInVblank reports whether the GPU cycle counter is past the vblank
// boundary for the current frame.
func (g *GPU) IsInVblank() bool {
	return g.gpuCycles >= vblankStartCycle
}

// IsInHblank reports whether the GPU cycle counter is within the
// horizontal-blank portion of the current scanline.
func (g *GPU) IsInHblank() bool {
	within := g.gpuCycles % cyclesPerScanline
	return within >= int64(g.hres)*g.dotFactor/10*10/10 // approximate active-video width
}

// DotclockIncrements reports how many dotclock ticks occur in gpuCycles.
func (g *GPU) DotclockIncrements(gpuCycles int64) int64 {
	return gpuCycles / g.dotFactor
}

// DotclockCyclesLeft reports the GPU cycles left over after the last whole
// dotclock tick in gpuCycles.
func (g *GPU) DotclockCyclesLeft(gpuCycles int64) int64 {
	return gpuCycles % g.dotFactor
}

// HblankIncrements reports how many full scanlines occur in gpuCycles.
func (g *GPU) HblankIncrements(gpuCycles int64) int64 {
	return gpuCycles / cyclesPerScanline
}

// HblankCyclesLeft reports the GPU cycles left over after the last whole
// scanline in gpuCycles.
func (g *GPU) HblankCyclesLeft(gpuCycles int64) int64 {
	return gpuCycles % cyclesPerScanline
}

// ReadByte/WriteByte/ReadWord/WriteWord give the interlink a uniform port
// interface over the two 32-bit GPU ports (GP0 write-only at 0x1810,
// status/GPUREAD readable at the same two addresses by PSX convention:
// 0x1F801810 write=GP0 read=GPUREAD, 0x1F801814 write=GP1 read=status).

// ReadWord reads the GPU port at address (0x1F801810 or 0x1F801814).
func (g *GPU) ReadWord(address uint32) uint32 {
	if address&0xF == 4 {
		return g.ReadStatus()
	}
	return g.ReadResponse()
}

// WriteWord writes the GPU port at address.
func (g *GPU) WriteWord(address uint32, value uint32) {
	if address&0xF == 4 {
		g.WriteGP1(value)
		return
	}
	g.SubmitGP0(value)
}
