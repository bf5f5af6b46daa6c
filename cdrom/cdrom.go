// Package cdrom implements the CD-ROM drive's command/response state
// machine: the parameter/response/data FIFOs, the command dispatch table,
// and the four memory-mapped ports (0x1F801800-0x1F801803) software uses
// to drive it.
package cdrom

import "github.com/jetsetilly/gopsx/cdrom/cdimage"

const (
	responseDelay = 16000

	dataFIFOSize = 0x924
)

// Status bits returned by Getstat and folded into the drive's status byte.
const (
	statError    = 0x01
	statMotorOn  = 0x02
	statSeekErr  = 0x04
	statIDErr    = 0x08
	statShellOpen = 0x10
	statReading  = 0x20
	statSeeking  = 0x40
	statPlaying  = 0x80
)

// Mode register bits.
const (
	modeCDDA       = 0x01
	modeAutoPause  = 0x02
	modeReportIRQ  = 0x04
	modeXAFilter   = 0x08
	modeIgnoreBit  = 0x10
	modeWholeSector = 0x20
	modeXAADPCM    = 0x40
	modeDoubleSpeed = 0x80
)

type fifo struct {
	buf   []byte
	read  int
}

func (f *fifo) push(b byte) { f.buf = append(f.buf, b) }

func (f *fifo) pop() byte {
	if f.read >= len(f.buf) {
		if len(f.buf) == 0 {
			return 0
		}
		return f.buf[len(f.buf)-1]
	}
	v := f.buf[f.read]
	f.read++
	return v
}

func (f *fifo) clear() {
	f.buf = f.buf[:0]
	f.read = 0
}

func (f *fifo) empty() bool { return f.read >= len(f.buf) }
func (f *fifo) full(cap int) bool { return len(f.buf) >= cap }

// Drive is the CD-ROM state machine.
type Drive struct {
	portIndex int

	params   fifo
	response fifo
	data     fifo

	irqEnable byte
	irqFlag   byte

	busy           bool
	command        byte
	needsSecond    bool
	secondHandler  func()

	status byte
	mode   byte

	setloc       int64
	setlocSet    bool
	beenRead     bool

	image *cdimage.Image

	stageIRQ func(interruptNumber int, delay int64)
}

// New returns a Drive with no disc loaded. Call InsertDisc to attach a
// parsed cue/bin image.
func New(stageIRQ func(interruptNumber int, delay int64)) *Drive {
	return &Drive{status: statMotorOn, stageIRQ: stageIRQ}
}

// InsertDisc attaches img as the currently loaded disc.
func (d *Drive) InsertDisc(img *cdimage.Image) {
	d.image = img
}

// InterruptPending reports whether the drive's own latched interrupt
// number is currently enabled, the condition the system interlink checks
// before folding the CD-ROM's staged interrupt into I_STAT.
func (d *Drive) InterruptPending() bool {
	return d.irqFlag&d.irqEnable != 0
}

func lrshift(x byte, n uint) byte { return x >> n }

// ReadByte reads one of the four CD-ROM ports.
func (d *Drive) ReadByte(address uint32) byte {
	switch address & 0x3 {
	case 0:
		return d.readStatusPort()
	case 1:
		return d.response.pop()
	case 2:
		return d.popData()
	case 3:
		if d.portIndex&1 == 0 {
			return d.irqEnable | 0xE0
		}
		return d.irqFlag | 0xE0
	}
	return 0xFF
}

// WriteByte writes one of the four CD-ROM ports.
func (d *Drive) WriteByte(address uint32, value byte) {
	switch address & 0x3 {
	case 0:
		d.portIndex = int(value & 0x3)
	case 1:
		switch d.portIndex {
		case 0:
			d.submitCommand(value)
		}
	case 2:
		switch d.portIndex {
		case 0:
			d.params.push(value)
		case 1:
			d.irqEnable = value & 0x1F
		}
	case 3:
		switch d.portIndex {
		case 1:
			d.writeInterruptAck(value)
		}
	}
}

func (d *Drive) readStatusPort() byte {
	s := byte(d.portIndex & 0x3)
	if !d.params.empty() || len(d.params.buf) == 0 {
		s |= 0x08 // parameter FIFO not empty (approximation: always ready)
	}
	if len(d.params.buf) < 16 {
		s |= 0x10 // parameter FIFO not full
	}
	if !d.response.empty() {
		s |= 0x20 // response FIFO not empty
	}
	if !d.data.empty() {
		s |= 0x40 // data FIFO not empty
	}
	if d.busy {
		s |= 0x80
	}
	return s
}

func (d *Drive) popData() byte {
	return d.data.pop()
}

func (d *Drive) writeInterruptAck(value byte) {
	d.irqFlag &^= value & 0x1F
	if value&0x40 != 0 {
		d.params.clear()
	}
	if value&0x20 != 0 && d.needsSecond && d.response.empty() {
		if d.secondHandler != nil {
			h := d.secondHandler
			d.secondHandler = nil
			h()
		}
	}
}

func (d *Drive) submitCommand(cmd byte) {
	if d.busy && cmd != 0x09 {
		return
	}
	d.response.clear()
	d.busy = true
	d.command = cmd
	d.firstResponse(cmd)
}

func (d *Drive) pushResponse(bytesOut ...byte) {
	for _, b := range bytesOut {
		d.response.push(b)
	}
}

func (d *Drive) triggerInterrupt(n int) {
	d.irqFlag = byte(n) & 0x7
	if d.stageIRQ != nil {
		d.stageIRQ(n, responseDelay)
	}
}

// firstResponse runs the first-response handler for cmd.
func (d *Drive) firstResponse(cmd byte) {
	switch cmd {
	case 0x01: // Getstat
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.busy = false
	case 0x02: // Setloc
		if len(d.params.buf) >= 3 {
			m, s, f := d.params.buf[0], d.params.buf[1], d.params.buf[2]
			d.setloc = msf(m, s, f)
			d.setlocSet = true
		}
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.busy = false
	case 0x06: // ReadN
		d.status |= statReading
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.needsSecond = true
		d.secondHandler = d.readNSecondResponse
		d.busy = true
	case 0x09: // Pause
		d.status &^= statReading | statSeeking | statPlaying
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.needsSecond = true
		d.secondHandler = func() {
			d.pushResponse(d.status)
			d.triggerInterrupt(2)
			d.needsSecond = false
			d.busy = false
		}
	case 0x0A: // Init
		d.status = statMotorOn
		d.mode = 0
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.needsSecond = true
		d.secondHandler = func() {
			d.pushResponse(d.status)
			d.triggerInterrupt(2)
			d.needsSecond = false
			d.busy = false
		}
	case 0x0C: // Demute
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.busy = false
	case 0x0E: // Setmode
		if len(d.params.buf) >= 1 {
			d.mode = d.params.buf[0]
		}
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.busy = false
	case 0x15: // SeekL
		d.status |= statSeeking
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.needsSecond = true
		d.secondHandler = func() {
			d.status &^= statSeeking
			d.pushResponse(d.status)
			d.triggerInterrupt(2)
			d.needsSecond = false
			d.busy = false
		}
	case 0x19: // Test
		if len(d.params.buf) >= 1 && d.params.buf[0] == 0x20 {
			d.pushResponse(0x98, 0x06, 0x10, 0xC3) // fake date+version
		} else {
			d.pushResponse(d.status)
		}
		d.triggerInterrupt(3)
		d.busy = false
	case 0x1A: // GetID
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.needsSecond = true
		d.secondHandler = func() {
			d.pushResponse(0x02, 0x00, 0x20, 0x00, 0x53, 0x43, 0x45, 0x45)
			d.triggerInterrupt(2)
			d.needsSecond = false
			d.busy = false
		}
	case 0x1E: // ReadTOC
		d.pushResponse(d.status)
		d.triggerInterrupt(3)
		d.needsSecond = true
		d.secondHandler = func() {
			d.pushResponse(d.status)
			d.triggerInterrupt(2)
			d.needsSecond = false
			d.busy = false
		}
	default:
		d.pushResponse(d.status | statError)
		d.triggerInterrupt(5)
		d.busy = false
	}
}

func msf(m, s, f byte) int64 {
	return int64(f)*2352 + int64(s)*2352*75 + int64(m)*2352*75*60
}

// readNSecondResponse advances the read position (unless this is the very
// first invocation), copies one sector into the data FIFO and stages INT1.
func (d *Drive) readNSecondResponse() {
	if d.beenRead {
		d.setloc += 2352
	} else {
		d.beenRead = true
	}

	sectorSize := 0x800
	if d.mode&modeWholeSector != 0 {
		sectorSize = dataFIFOSize
	}

	d.data.clear()
	if d.image != nil {
		buf := make([]byte, sectorSize)
		if err := d.image.ReadSector(d.setloc, buf); err == nil {
			for _, b := range buf {
				d.data.push(b)
			}
		}
	} else {
		for i := 0; i < sectorSize; i++ {
			d.data.push(0)
		}
	}

	d.triggerInterrupt(1)
	d.needsSecond = true
	d.secondHandler = d.readNSecondResponse
}

// ReadDataPort is the data-FIFO drain used by DMA channel 3.
func (d *Drive) ReadDataPort() byte {
	return d.popData()
}

// ChunkCopy copies len(dst) bytes from the data FIFO into dst, returning
// the number of bytes copied. The DMA arbiter does not call it; CD-ROM DMA
// drains the FIFO one byte at a time through ReadDataPort.
func (d *Drive) ChunkCopy(dst []byte) int {
	for i := range dst {
		dst[i] = d.popData()
	}
	return len(dst)
}
