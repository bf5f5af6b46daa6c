package cdrom

import "testing"

type stagedInterrupt struct {
	n     int
	delay int64
}

func newTestDrive() (*Drive, *[]stagedInterrupt) {
	staged := &[]stagedInterrupt{}
	d := New(func(n int, delay int64) {
		*staged = append(*staged, stagedInterrupt{n, delay})
	})
	return d, staged
}

func TestGetstatRespondsWithStatusAndInt3(t *testing.T) {
	d, staged := newTestDrive()

	d.WriteByte(0, 0)
	d.WriteByte(1, 0x01) // Getstat

	if d.response.empty() {
		t.Fatal("Getstat produced no response bytes")
	}
	if got := d.response.pop(); got&statMotorOn == 0 {
		t.Fatalf("status byte %#x missing motor-on bit", got)
	}
	if len(*staged) != 1 || (*staged)[0].n != 3 {
		t.Fatalf("staged interrupts = %v, want one INT3", *staged)
	}
}

func TestUnknownCommandRaisesErrorStatusAndInt5(t *testing.T) {
	d, staged := newTestDrive()

	d.WriteByte(0, 0)
	d.WriteByte(1, 0xFF)

	got := d.response.pop()
	if got&statError == 0 {
		t.Fatalf("status byte %#x missing error bit", got)
	}
	if len(*staged) != 1 || (*staged)[0].n != 5 {
		t.Fatalf("staged interrupts = %v, want one INT5", *staged)
	}
}

func TestBusyCommandIgnoredUntilAcknowledged(t *testing.T) {
	d, _ := newTestDrive()

	d.WriteByte(0, 0)
	d.WriteByte(1, 0x1A) // GetID, stays busy pending second response
	d.response.clear()

	d.WriteByte(0, 0)
	d.WriteByte(1, 0x01) // Getstat while busy: should be dropped
	if !d.response.empty() {
		t.Fatal("second command was accepted while drive was busy")
	}
}

func TestGetIDSecondResponseFiresOnInterruptAck(t *testing.T) {
	d, staged := newTestDrive()

	d.WriteByte(0, 0)
	d.WriteByte(1, 0x1A) // GetID
	d.response.clear()
	*staged = (*staged)[:0]

	d.WriteByte(0, 1)
	d.WriteByte(3, 0x27) // ack INT3 and request the second response

	if len(*staged) != 1 || (*staged)[0].n != 2 {
		t.Fatalf("staged interrupts after ack = %v, want one INT2", *staged)
	}
	if d.response.empty() {
		t.Fatal("GetID second response never ran")
	}
	if got := d.response.pop(); got != 0x02 {
		t.Fatalf("first GetID response byte = %#x, want 0x02 (licensed disc)", got)
	}
}

func TestSetmodeStoresModeByte(t *testing.T) {
	d, _ := newTestDrive()

	d.WriteByte(0, 0)
	d.WriteByte(2, modeDoubleSpeed|modeXAADPCM)
	d.WriteByte(1, 0x0E) // Setmode

	if d.mode != modeDoubleSpeed|modeXAADPCM {
		t.Fatalf("mode = %#x, want %#x", d.mode, modeDoubleSpeed|modeXAADPCM)
	}
}

func TestInterruptAckClearsOnlyAcknowledgedBits(t *testing.T) {
	d, _ := newTestDrive()
	d.irqFlag = 0x07

	d.WriteByte(0, 1)
	d.WriteByte(3, 0x03)

	if d.irqFlag != 0x04 {
		t.Fatalf("irqFlag = %#x, want 0x04", d.irqFlag)
	}
}

func TestInterruptPendingRequiresEnableAndFlag(t *testing.T) {
	d, _ := newTestDrive()
	d.irqFlag = 0x03
	d.irqEnable = 0x00

	if d.InterruptPending() {
		t.Fatal("InterruptPending true with irqEnable clear")
	}

	d.irqEnable = 0x01
	if !d.InterruptPending() {
		t.Fatal("InterruptPending false despite matching enable/flag bits")
	}
}

func TestFifoWrapsToLastByteOnOverdrain(t *testing.T) {
	var f fifo
	f.push(0xAB)
	if got := f.pop(); got != 0xAB {
		t.Fatalf("first pop = %#x, want 0xAB", got)
	}
	if got := f.pop(); got != 0xAB {
		t.Fatalf("pop past end = %#x, want the last byte to repeat (0xAB)", got)
	}
}
