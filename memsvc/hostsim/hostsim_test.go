package hostsim

import (
	"testing"

	"github.com/hyperboot/hyper/memsvc"
)

func TestAllocatePagesAtFixedAddress(t *testing.T) {
	b, err := New(0x100000, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	addr, ok := b.AllocatePagesAt(0x101000, 2, memsvc.TypeKernelBinary)
	if !ok || addr != 0x101000 {
		t.Fatalf("AllocatePagesAt = %x, %v; want 0x101000, true", addr, ok)
	}

	// The same range can't be allocated twice.
	if _, ok := b.AllocatePagesAt(0x101000, 1, memsvc.TypeModule); ok {
		t.Fatal("AllocatePagesAt over an already-allocated range: want false")
	}
}

func TestAllocatePagesTopDownStaysUnderLimit(t *testing.T) {
	b, err := New(0, 1024) // 4MiB arena
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	limit := uint64(8 * memsvc.PageSize)
	addr, ok := b.AllocatePages(2, limit, memsvc.TypeLoaderReclaimable, memsvc.HighestFirst)
	if !ok {
		t.Fatal("AllocatePages: want true")
	}
	if addr+2*memsvc.PageSize > limit {
		t.Errorf("AllocatePages returned %x, extends past upper limit %x", addr, limit)
	}
	if addr < limit-4*memsvc.PageSize {
		t.Errorf("AllocatePages = %x; want an address near the top of the allowed range", addr)
	}
}

func TestFreePagesMergesWithNeighbors(t *testing.T) {
	b, err := New(0, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	a1, _ := b.AllocatePages(2, 16*memsvc.PageSize, memsvc.TypeModule, memsvc.BottomUp)
	a2, _ := b.AllocatePages(2, 16*memsvc.PageSize, memsvc.TypeModule, memsvc.BottomUp)
	b.FreePages(a1, 2)
	b.FreePages(a2, 2)

	entries, _ := b.CopyMap()
	free := 0
	for _, e := range entries {
		if e.Type == memsvc.TypeFree {
			free++
		}
	}
	if free != 1 {
		t.Fatalf("CopyMap after freeing adjacent regions: got %d free entries, want 1 merged entry", free)
	}
}

func TestHandoverRejectsStaleKey(t *testing.T) {
	b, err := New(0, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	_, key := b.CopyMap()
	b.AllocatePages(1, 4*memsvc.PageSize, memsvc.TypeModule, memsvc.BottomUp)

	if b.Handover(key) {
		t.Fatal("Handover with a stale key: want false")
	}
	_, newKey := b.CopyMap()
	if !b.Handover(newKey) {
		t.Fatal("Handover with the current key: want true")
	}
}

func TestBytesTranslatesAddressToArenaOffset(t *testing.T) {
	b, err := New(0x1000, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	buf := b.Bytes(0x1000, 8)
	if buf == nil {
		t.Fatal("Bytes: want a non-nil slice for an in-range address")
	}
	buf[0] = 0xAA
	buf2 := b.Bytes(0x1000, 8)
	if buf2[0] != 0xAA {
		t.Fatal("Bytes: writes through the returned slice should be visible on re-read")
	}

	if b.Bytes(0, 8) != nil {
		t.Fatal("Bytes: want nil for an address below the arena base")
	}
}
