package icache_test

import (
	"testing"

	"github.com/jetsetilly/gopsx/cpu/icache"
)

func TestRefillThenReadWord(t *testing.T) {
	c := icache.New()
	const pa = 0x1230
	c.Refill(pa, func(base uint32) [16]byte {
		var d [16]byte
		d[0], d[1], d[2], d[3] = 0xDE, 0xAD, 0xBE, 0xEF
		return d
	})
	if !c.CheckHit(pa) {
		t.Fatalf("expected hit after refill")
	}
	if got := c.ReadWord(pa); got != 0xDEADBEEF {
		t.Fatalf("got %#x, want 0xdeadbeef", got)
	}
}

func TestMissBeforeRefill(t *testing.T) {
	c := icache.New()
	if c.CheckHit(0x2000) {
		t.Fatalf("expected miss on an empty cache")
	}
}

func TestIsolatedWriteInvalidatesLine(t *testing.T) {
	c := icache.New()
	const pa = 0x100
	c.Refill(pa, func(base uint32) [16]byte { return [16]byte{} })
	if !c.CheckHit(pa) {
		t.Fatalf("expected hit after refill")
	}
	c.WriteWord(pa, 0xCAFEBABE, true)
	if c.CheckHit(pa) {
		t.Fatalf("isolated write should invalidate the line")
	}
	if got := c.ReadWord(pa); got != 0xCAFEBABE {
		t.Fatalf("isolated write contents should still be readable: got %#x", got)
	}
}

func TestNonIsolatedWritePreservesHit(t *testing.T) {
	c := icache.New()
	const pa = 0x300
	c.Refill(pa, func(base uint32) [16]byte { return [16]byte{} })
	c.WriteWord(pa, 0x11223344, false)
	if !c.CheckHit(pa) {
		t.Fatalf("non-isolated write should not invalidate the line")
	}
}
