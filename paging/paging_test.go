package paging

import (
	"testing"

	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/memsvc/hostsim"
)

func withBackend(t *testing.T, pages uint64) {
	b, err := hostsim.New(0, pages)
	if err != nil {
		t.Fatalf("hostsim.New: %v", err)
	}
	prev := memsvc.SetBackend(b)
	t.Cleanup(func() {
		memsvc.SetBackend(prev)
		b.Close()
	})
}

func TestBuildDirectMappedKernel(t *testing.T) {
	withBackend(t, 8192)

	bin := elfload.BinaryInfo{
		Bitness:                64,
		VirtualBase:             elfload.HigherHalfBase,
		PhysicalBase:            0,
		PhysicalCeiling:         memsvc.PageSize,
		KernelRangeIsDirectMap:  true,
	}
	tbl, err := Build(bin)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tbl.Root == 0 {
		t.Fatal("Build: zero root")
	}

	pml4 := viewAt(tbl.Root)
	idx := (uint64(elfload.HigherHalfBase) >> 39) & (entriesPerTable - 1)
	if pml4.get(idx)&pageflagPresent == 0 {
		t.Fatalf("higher-half PML4 entry %d not present", idx)
	}
}

func TestBuildRejects32Bit(t *testing.T) {
	withBackend(t, 64)

	if _, err := Build(elfload.BinaryInfo{Bitness: 32}); err == nil {
		t.Fatal("Build(32-bit): want error")
	}
}

func TestMapPagesWalksFourLevels(t *testing.T) {
	withBackend(t, 512)

	tbl := New()
	tbl.MapPages(0x200000, 0x400000, 1)

	pml4Idx := uint64(0)
	pdpt := tableAt(tbl.Root, pml4Idx)
	pdptIdx := (uint64(0x200000) >> 30) & (entriesPerTable - 1)
	pd := tableAt(pdpt, pdptIdx)
	pdIdx := (uint64(0x200000) >> 21) & (entriesPerTable - 1)
	pt := tableAt(pd, pdIdx)
	ptIdx := (uint64(0x200000) >> 12) & (entriesPerTable - 1)

	entry := viewAt(pt).get(ptIdx)
	if entry&^0xFFF != 0x400000 {
		t.Fatalf("leaf PTE physical = %#x; want 0x400000", entry&^0xFFF)
	}
	if entry&pageflagHuge != 0 {
		t.Fatal("4KiB mapping unexpectedly has the huge bit set")
	}
}
