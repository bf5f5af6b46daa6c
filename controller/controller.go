// Package controller implements the stub ControllerIO device: the
// JOY_RX_DATA/JOY_STAT/JOY_MODE/JOY_CTRL/JOY_BAUD register surface and its
// baud-rate countdown timer, without any actual input being read from a
// host controller (spec.md's "register stub" non-goal).
package controller

// Base is the first physical address of the ControllerIO register window.
const Base = 0x1F801040

// IO is the controller/memory-card register stub.
type IO struct {
	rxFifo [4]byte
	rxCount int32

	joyBaud   int32
	joyTxData int32
	joyStat   int32
	joyMode   int32
	joyCtrl   int32

	cycles int32
}

// New returns an IO in its reset state.
func New() *IO {
	return &IO{}
}

// AppendSyncCycles accumulates CPU cycles the baud-rate timer must catch
// up on before its next register access.
func (c *IO) AppendSyncCycles(cycles int32) {
	c.cycles += cycles
}

func (c *IO) updateBaudrateTimer() {
	baud := lrshift(c.joyStat, 11) & 0x1FFFFF
	baud -= c.cycles
	c.cycles = 0
	if baud < 0 {
		baud = c.joyBaud * (c.joyMode & 0x3) / 2
	}
	c.joyStat = (baud << 11) | (c.joyStat & 0x7FF)
}

func (c *IO) updateJoyStat() {
	c.joyStat |= 0x7
}

func lrshift(x int32, n uint) int32 {
	return int32(uint32(x) >> n)
}

// ReadByte reads a byte at address, which must lie within [Base, Base+0x10).
func (c *IO) ReadByte(address uint32) byte {
	c.updateBaudrateTimer()

	switch address & 0xFF {
	case 0x40: // JOY_RX_DATA, first FIFO entry
		if c.rxCount > 0 {
			v := c.rxFifo[0]
			c.rxCount--
			return v
		}
		return 0
	case 0x44:
		c.updateJoyStat()
		return byte(c.joyStat)
	case 0x45:
		return byte(lrshift(c.joyStat, 8))
	case 0x46:
		return byte(lrshift(c.joyStat, 16))
	case 0x47:
		return byte(lrshift(c.joyStat, 24))
	case 0x48:
		return byte(c.joyMode)
	case 0x49:
		return byte(lrshift(c.joyMode, 8))
	case 0x4A:
		return byte(c.joyCtrl)
	case 0x4B:
		return byte(lrshift(c.joyCtrl, 8))
	case 0x4E:
		return byte(c.joyBaud)
	case 0x4F:
		return byte(lrshift(c.joyBaud, 8))
	}
	return 0
}

// WriteByte writes a byte at address.
func (c *IO) WriteByte(address uint32, value byte) {
	c.updateBaudrateTimer()

	v := int32(value)
	switch address & 0xFF {
	case 0x40:
		c.joyTxData = v & 0xFF
	case 0x48:
		c.joyMode = (c.joyMode & 0xFF00) | (v & 0xFF)
	case 0x49:
		c.joyMode = ((v & 0xFF) << 8) | (c.joyMode & 0xFF)
	case 0x4A:
		c.joyCtrl = (c.joyCtrl & 0xFF00) | (v & 0xFF)
	case 0x4B:
		c.joyCtrl = ((v & 0xFF) << 8) | (c.joyCtrl & 0xFF)
	case 0x4E:
		c.joyBaud = (c.joyBaud & 0xFF00) | (v & 0xFF)
		c.recalcBaudRate()
	case 0x4F:
		c.joyBaud = ((v & 0xFF) << 8) | (c.joyBaud & 0xFF)
		c.recalcBaudRate()
	}
}

func (c *IO) recalcBaudRate() {
	rate := c.joyBaud * (c.joyMode & 0x3) / 2
	c.joyStat = (rate << 11) | (c.joyStat & 0x7FF)
}
