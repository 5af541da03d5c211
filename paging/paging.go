// Package paging builds the 4-level (48-bit) page table the loader
// hands the kernel at the 64-bit jump (spec §4.5), grounded directly on
// original_source/loader/virtual_memory.c's table_at/do_map_page
// recursion. Every intermediate table is a critical page allocation,
// zeroed on creation, exactly as the original does with allocate_pages
// + memzero.
package paging

import (
	"encoding/binary"

	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/memsvc"
)

// DirectMapBase is the fixed virtual window that linearly maps physical
// memory (spec GLOSSARY "Direct map"), original_source's literal
// 0xFFFF800000000000 in build_page_table.
const DirectMapBase = 0xFFFF800000000000

const (
	entriesPerTable = 512

	fourGiB = 4 * 1024 * 1024 * 1024
	twoGiB  = 2 * 1024 * 1024 * 1024

	pageflagPresent   = 1 << 0
	pageflagReadWrite = 1 << 1
	pageflagHuge      = 1 << 7
)

// Table is a built 4-level page table. Root is the physical address of
// its PML4, the value the 64-bit jump loads into CR3.
type Table struct {
	Root uint64
}

// tableView is a little-endian window over one page-table page's 512
// 8-byte PTE slots, backed directly by memsvc.Bytes so writes land in
// the same memory the table's parent entry points at.
type tableView struct{ raw []byte }

func viewAt(addr uint64) tableView {
	raw := memsvc.Bytes(addr, entriesPerTable*8)
	if raw == nil {
		panic("paging: backend has no addressable memory for a page table it just allocated")
	}
	return tableView{raw: raw}
}

func (v tableView) get(i uint64) uint64 {
	return binary.LittleEndian.Uint64(v.raw[i*8:])
}

func (v tableView) set(i uint64, val uint64) {
	binary.LittleEndian.PutUint64(v.raw[i*8:], val)
}

// newTable allocates and zeroes one fresh page-table page.
func newTable() uint64 {
	addr := memsvc.AllocateCriticalPagesWithType(1, memsvc.TypeLoaderPermanent)
	v := viewAt(addr)
	for i := 0; i < entriesPerTable; i++ {
		v.set(uint64(i), 0)
	}
	return addr
}

// tableAt returns the physical address of the child table at index
// within the table at parent, allocating it on first use — the Go
// shape of virtual_memory.c's table_at.
func tableAt(parent uint64, index uint64) uint64 {
	v := viewAt(parent)
	entry := v.get(index)
	if entry&pageflagPresent != 0 {
		return entry &^ 0xFFF
	}
	child := newTable()
	v.set(index, child|pageflagReadWrite|pageflagPresent)
	return child
}

// New allocates an empty PML4 and returns the table rooted at it.
func New() Table {
	return Table{Root: newTable()}
}

// mapOne installs one leaf mapping of virtualBase -> physicalBase,
// huge selecting a 2MiB PD-level entry versus a 4KiB PT-level one, the
// Go shape of do_map_page.
func (t Table) mapOne(virtualBase, physicalBase uint64, huge bool) {
	pml4Idx := (virtualBase >> 39) & (entriesPerTable - 1)
	pdptIdx := (virtualBase >> 30) & (entriesPerTable - 1)
	pdIdx := (virtualBase >> 21) & (entriesPerTable - 1)
	ptIdx := (virtualBase >> 12) & (entriesPerTable - 1)

	pdpt := tableAt(t.Root, pml4Idx)
	pd := tableAt(pdpt, pdptIdx)

	if huge {
		viewAt(pd).set(pdIdx, physicalBase|pageflagHuge|pageflagReadWrite|pageflagPresent)
		return
	}

	pt := tableAt(pd, pdIdx)
	viewAt(pt).set(ptIdx, physicalBase|pageflagReadWrite|pageflagPresent)
}

// MapHugePages maps pages consecutive 2MiB huge pages starting at
// virtualBase/physicalBase. Both must be 2MiB-aligned.
func (t Table) MapHugePages(virtualBase, physicalBase uint64, pages uint64) {
	for i := uint64(0); i < pages; i++ {
		t.mapOne(virtualBase+i*memsvc.HugePageSize, physicalBase+i*memsvc.HugePageSize, true)
	}
}

// MapPages maps pages consecutive 4KiB pages starting at
// virtualBase/physicalBase. Both must be 4KiB-aligned.
func (t Table) MapPages(virtualBase, physicalBase uint64, pages uint64) {
	for i := uint64(0); i < pages; i++ {
		t.mapOne(virtualBase+i*memsvc.PageSize, physicalBase+i*memsvc.PageSize, false)
	}
}

// Build assembles the loader's standard 4-level table for bin (spec
// §4.5): the bottom 4GiB identity-mapped, a direct map of the same
// 4GiB range at DirectMapBase, and the kernel's range. When
// bin.KernelRangeIsDirectMap is set, the kernel is covered by a fixed
// 2GiB block at elfload.HigherHalfBase mapping physical 0 onward;
// otherwise [VirtualBase, VirtualBase+PhysicalCeiling-PhysicalBase) is
// mapped onto PhysicalBase with 4KiB pages.
//
// bin.Bitness must be 64: for a 32-bit kernel Build returns a
// Capability error and no table (no long-mode jump ever loads CR3 with
// it).
func Build(bin elfload.BinaryInfo) (Table, error) {
	if bin.Bitness != 64 {
		return Table{}, errs.New(errs.Capability, "page tables are only built for 64-bit kernels")
	}

	t := New()
	t.MapHugePages(0, 0, fourGiB/memsvc.HugePageSize)
	t.MapHugePages(DirectMapBase, 0, fourGiB/memsvc.HugePageSize)

	if bin.KernelRangeIsDirectMap {
		t.MapHugePages(elfload.HigherHalfBase, 0, twoGiB/memsvc.HugePageSize)
		return t, nil
	}

	pages := (bin.PhysicalCeiling - bin.PhysicalBase) / memsvc.PageSize
	t.MapPages(bin.VirtualBase, bin.PhysicalBase, pages)
	return t, nil
}
