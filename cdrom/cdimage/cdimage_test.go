package cdimage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	bin := make([]byte, bytesPerSector*4)
	for i := range bin {
		bin[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(dir, "test.bin"), bin, 0o644); err != nil {
		t.Fatalf("writing bin: %v", err)
	}

	cue := `FILE "test.bin" BINARY
  TRACK 01 MODE2/2352
    INDEX 01 00:00:00
`
	cuePath := filepath.Join(dir, "test.cue")
	if err := os.WriteFile(cuePath, []byte(cue), 0o644); err != nil {
		t.Fatalf("writing cue: %v", err)
	}
	return cuePath
}

func TestOpenAndByteAt(t *testing.T) {
	img, err := Open(writeTestImage(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if len(img.Tracks()) != 1 {
		t.Fatalf("expected 1 track, got %d", len(img.Tracks()))
	}

	b, err := img.ByteAt(10)
	if err != nil {
		t.Fatalf("ByteAt: %v", err)
	}
	if b != 10 {
		t.Fatalf("expected byte 10, got %d", b)
	}
}

func TestByteAtOutOfRange(t *testing.T) {
	img, err := Open(writeTestImage(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if _, err := img.ByteAt(1 << 30); err == nil {
		t.Fatalf("expected an error for an out-of-range position")
	}
}

func TestMSFToBytes(t *testing.T) {
	if got := msfToBytes("00:02:00"); got != 2*bytesPerSector*framesPerSecond {
		t.Fatalf("unexpected conversion: %d", got)
	}
	if got := msfToBytes("01:00:00"); got != 60*bytesPerSector*framesPerSecond {
		t.Fatalf("unexpected conversion: %d", got)
	}
}
