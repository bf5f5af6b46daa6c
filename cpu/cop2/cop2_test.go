package cop2_test

import (
	"testing"

	"github.com/jetsetilly/gopsx/cpu/cop2"
)

func TestSXYPShiftsFIFO(t *testing.T) {
	c := cop2.New()
	c.WriteData(cop2.DataSXYP, 1)
	c.WriteData(cop2.DataSXYP, 2)
	c.WriteData(cop2.DataSXYP, 3)
	if c.Data[cop2.DataSXY0] != 1 || c.Data[cop2.DataSXY1] != 2 || c.Data[cop2.DataSXY2] != 3 {
		t.Fatalf("unexpected SXY fifo contents: %v %v %v", c.Data[cop2.DataSXY0], c.Data[cop2.DataSXY1], c.Data[cop2.DataSXY2])
	}
}

func TestIRGBUnpacksIntoIR123(t *testing.T) {
	c := cop2.New()
	c.WriteData(cop2.DataIRGB, 0x1F)
	if c.Data[cop2.DataIR1] != 0x1F*0x80 {
		t.Fatalf("IR1 = %#x, want %#x", c.Data[cop2.DataIR1], 0x1F*0x80)
	}
	if c.Data[cop2.DataIR2] != 0 || c.Data[cop2.DataIR3] != 0 {
		t.Fatalf("expected IR2/IR3 to be zero for a red-only IRGB write")
	}
}

func TestSignExtensionOnRead(t *testing.T) {
	c := cop2.New()
	c.Data[1] = 0x8000 // bit 15 set, should sign extend to negative
	if c.ReadData(1) >= 0 {
		t.Fatalf("expected data reg 1 to read back negative, got %d", c.ReadData(1))
	}
	c.Ctrl[26] = 0x8000
	if c.ReadCtrl(26) >= 0 {
		t.Fatalf("expected ctrl reg 26 to read back negative, got %d", c.ReadCtrl(26))
	}
}

func TestExecutePreservesCycleCounts(t *testing.T) {
	c := cop2.New()
	if cycles := c.Execute(0x01); cycles != 15 {
		t.Fatalf("RTPS cycles = %d, want 15", cycles)
	}
	if cycles := c.Execute(0x30); cycles != 23 {
		t.Fatalf("RTPT cycles = %d, want 23", cycles)
	}
}
