package bits_test

import (
	"testing"

	"github.com/jetsetilly/gopsx/internal/bits"
)

func TestLRShift32(t *testing.T) {
	got := bits.LRShift32(-1, 28)
	if got != 0xF {
		t.Fatalf("got %#x, want 0xf", got)
	}
}

func TestSwap32RoundTrip(t *testing.T) {
	for _, w := range []uint32{0, 1, 0xDEADBEEF, 0xFFFFFFFF, 0x12345678} {
		if got := bits.Swap32(bits.Swap32(w)); got != w {
			t.Fatalf("Swap32(Swap32(%#x)) = %#x, want %#x", w, got, w)
		}
	}
}

func TestSwap16RoundTrip(t *testing.T) {
	for _, h := range []uint16{0, 1, 0xBEEF, 0xFFFF} {
		if got := bits.Swap16(bits.Swap16(h)); got != h {
			t.Fatalf("Swap16(Swap16(%#x)) = %#x, want %#x", h, got, h)
		}
	}
}

func TestMinInt32(t *testing.T) {
	if bits.MinInt32(3, 5) != 3 {
		t.Fatalf("expected 3")
	}
	if bits.MinInt32(5, 3) != 3 {
		t.Fatalf("expected 3")
	}
}
