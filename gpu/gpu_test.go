package gpu

import (
	"testing"

	"github.com/jetsetilly/gopsx/gpu/renderer"
)

// fakeVRAM is a minimal renderer.Backend standing in for GLBackend's VRAM
// texture, letting the CPU<->VRAM staging round trip be exercised without a
// live GL context.
type fakeVRAM struct {
	pix map[[2]int32][4]byte
}

func newFakeVRAM() *fakeVRAM { return &fakeVRAM{pix: make(map[[2]int32][4]byte)} }

func (f *fakeVRAM) Init() error { return nil }

func (f *fakeVRAM) Execute(j renderer.Job) {
	switch job := j.(type) {
	case renderer.CopyCPUToVRAMJob:
		f.WritePixels(job.X, job.Y, job.W, job.H, job.Pixels)
	case renderer.ReadVRAMJob:
		job.Result <- f.ReadPixels(job.X, job.Y, job.W, job.H)
	}
}

func (f *fakeVRAM) ReadPixels(x, y, w, h int32) []byte {
	out := make([]byte, w*h*4)
	for row := int32(0); row < h; row++ {
		for col := int32(0); col < w; col++ {
			px := f.pix[[2]int32{x + col, y + row}]
			copy(out[(row*w+col)*4:], px[:])
		}
	}
	return out
}

func (f *fakeVRAM) WritePixels(x, y, w, h int32, pixels []byte) {
	for row := int32(0); row < h; row++ {
		for col := int32(0); col < w; col++ {
			idx := (row*w + col) * 4
			var px [4]byte
			copy(px[:], pixels[idx:idx+4])
			f.pix[[2]int32{x + col, y + row}] = px
		}
	}
}

func (f *fakeVRAM) Present() {}

func TestResetStatus(t *testing.T) {
	g := New(nil, nil)
	if g.ReadStatus()&statusDisplayOff == 0 {
		t.Fatalf("expected display to start disabled")
	}
}

func TestGP1Reset(t *testing.T) {
	g := New(nil, nil)
	g.status |= statusIRQ
	g.WriteGP1(0x00 << 24)
	if g.ReadStatus()&statusIRQ != 0 {
		t.Fatalf("expected GP1(0x00) to clear the IRQ bit via full reset")
	}
}

func TestGP1AcknowledgeIRQ(t *testing.T) {
	g := New(nil, nil)
	g.status |= statusIRQ
	g.WriteGP1(0x02 << 24)
	if g.ReadStatus()&statusIRQ != 0 {
		t.Fatalf("expected GP1(0x02) to clear the IRQ bit")
	}
}

func TestFillRectEmitsJob(t *testing.T) {
	q := renderer.NewQueue(4)
	g := New(q, nil)

	g.SubmitGP0(0x02FF0000) // fill-rect command, colour blue (0xBBGGRR)
	g.SubmitGP0(0x00100010) // x=16 y=16
	g.SubmitGP0(0x00200020) // w=32 h=32

	j, ok := q.TryRecv()
	if !ok {
		t.Fatalf("expected a job to have been queued")
	}
	if _, ok := j.(renderer.FillRectJob); !ok {
		t.Fatalf("expected FillRectJob, got %T", j)
	}
}

func TestPolylineTerminator(t *testing.T) {
	q := renderer.NewQueue(4)
	g := New(q, nil)

	g.SubmitGP0(0x48FF0000) // monochrome polyline opcode 0x48 (bit3 set = polyline, bit4 clear = flat)
	g.SubmitGP0(0x00100010)
	g.SubmitGP0(0x00200020)
	g.SubmitGP0(0x5555_5555)

	j, ok := q.TryRecv()
	if !ok {
		t.Fatalf("expected a job to have been queued")
	}
	line, ok := j.(renderer.LineJob)
	if !ok {
		t.Fatalf("expected LineJob, got %T", j)
	}
	if len(line.Vertices) != 2 {
		t.Fatalf("expected 2 vertices, got %d", len(line.Vertices))
	}
}

// TestCPUToVRAMToCPURoundTrip checks that a GP0 0xA0 (CPU->VRAM) transfer
// followed by a GP0 0xC0 (VRAM->CPU) transfer over the same rectangle
// reproduces the original pixels bit for bit, including the mask bit.
func TestCPUToVRAMToCPURoundTrip(t *testing.T) {
	q := renderer.NewQueue(4)
	backend := newFakeVRAM()
	stop := make(chan struct{})
	go q.Run(stop, backend)
	defer close(stop)

	g := New(q, nil)

	const w, h = 2, 2
	pixels := []uint16{0x0421, 0x8001, 0x03E0, 0xFFFF} // arbitrary BGR555; 0x8001/0xFFFF carry the mask bit

	g.SubmitGP0(0xA0000000)
	g.SubmitGP0(0x00100010) // x=16 y=16
	g.SubmitGP0(uint32(h)<<16 | uint32(w))
	for i := 0; i < len(pixels); i += 2 {
		g.SubmitGP0(uint32(pixels[i]) | uint32(pixels[i+1])<<16)
	}

	g.SubmitGP0(0xC0000000)
	g.SubmitGP0(0x00100010)
	g.SubmitGP0(uint32(h)<<16 | uint32(w))

	for i := 0; i < len(pixels); i += 2 {
		word := g.ReadResponse()
		if got := uint16(word); got != pixels[i] {
			t.Fatalf("pixel %d = %#04x, want %#04x", i, got, pixels[i])
		}
		if got := uint16(word >> 16); got != pixels[i+1] {
			t.Fatalf("pixel %d = %#04x, want %#04x", i+1, got, pixels[i+1])
		}
	}
}

func TestVblankCrossing(t *testing.T) {
	g := New(nil, nil)
	crossed := false
	for i := 0; i < 200000; i++ {
		if g.AppendCPUCycles(10) {
			crossed = true
			break
		}
	}
	if !crossed {
		t.Fatalf("expected to cross vblank within 2,000,000 CPU cycles")
	}
}

func TestDrawOffsetSignExtension(t *testing.T) {
	g := New(nil, nil)
	g.SubmitGP0(0xE5000000 | (0x7FF) | (0x400 << 11))
	if g.drawOffsetX != -1 {
		t.Fatalf("expected drawOffsetX -1, got %d", g.drawOffsetX)
	}
	if g.drawOffsetY != -1024 {
		t.Fatalf("expected drawOffsetY -1024, got %d", g.drawOffsetY)
	}
}
