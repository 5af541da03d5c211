// Package hostsim backs memsvc.MemoryServices with a single host mmap
// arena, standing in for the BIOS/UEFI memory services a real build
// would link against. It exists for tests and for the emulated
// end-to-end harness in handover/cputest.
package hostsim

import (
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/hyperboot/hyper/memsvc"
)

type region struct {
	addr, pages uint64
	typ         memsvc.MemoryType // TypeFree for unallocated
}

// Backend is a memsvc.MemoryServices implementation over one mmap'd
// arena. Addresses it hands out are the arena's base plus an offset, so
// callers that need to touch the bytes behind an allocation (elftest
// fixture loading, handover/cputest's unicorn harness) go through
// Bytes rather than treating the address as a real pointer.
type Backend struct {
	mu sync.Mutex

	arena []byte
	base  uint64
	key   uint64

	regions []region
}

// New mmaps an arena of pageCount pages and represents it as a single
// free region based at base.
func New(base uint64, pageCount uint64) (*Backend, error) {
	size := int(pageCount * memsvc.PageSize)
	arena, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &Backend{
		arena:   arena,
		base:    base,
		regions: []region{{addr: base, pages: pageCount, typ: memsvc.TypeFree}},
	}, nil
}

// Close unmaps the arena.
func (b *Backend) Close() error {
	return unix.Munmap(b.arena)
}

// Bytes returns the arena bytes backing [address, address+length), or
// nil if the range falls outside the arena.
func (b *Backend) Bytes(address, length uint64) []byte {
	if address < b.base {
		return nil
	}
	off := address - b.base
	if off+length > uint64(len(b.arena)) {
		return nil
	}
	return b.arena[off : off+length]
}

func (b *Backend) AllocatePagesAt(address, count uint64, typ memsvc.MemoryType) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if address%memsvc.PageSize != 0 {
		return 0, false
	}
	reqEnd := address + count*memsvc.PageSize
	for i, r := range b.regions {
		if r.typ != memsvc.TypeFree {
			continue
		}
		rEnd := r.addr + r.pages*memsvc.PageSize
		if address >= r.addr && reqEnd <= rEnd {
			b.splitAndMark(i, address, count, typ)
			b.key++
			return address, true
		}
	}
	return 0, false
}

func (b *Backend) AllocatePages(count, upperLimit uint64, typ memsvc.MemoryType, topDown memsvc.TopDown) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	best := -1
	var bestAddr uint64
	for i, r := range b.regions {
		if r.typ != memsvc.TypeFree || r.pages < count {
			continue
		}
		rEnd := r.addr + r.pages*memsvc.PageSize
		usableEnd := rEnd
		if usableEnd > upperLimit {
			usableEnd = upperLimit
		}
		if usableEnd < r.addr+count*memsvc.PageSize {
			continue // region doesn't have count pages under upperLimit
		}

		var candidate uint64
		if topDown == memsvc.HighestFirst {
			candidate = usableEnd - count*memsvc.PageSize
		} else {
			candidate = r.addr
		}

		switch {
		case best == -1:
			best, bestAddr = i, candidate
		case topDown == memsvc.HighestFirst && candidate > bestAddr:
			best, bestAddr = i, candidate
		case topDown == memsvc.BottomUp && candidate < bestAddr:
			best, bestAddr = i, candidate
		}
	}
	if best == -1 {
		return 0, false
	}

	b.splitAndMark(best, bestAddr, count, typ)
	b.key++
	return bestAddr, true
}

// splitAndMark carves [addr, addr+count*PageSize) out of the free
// region at regions[i], leaving any remainder on either side as
// separate free regions.
func (b *Backend) splitAndMark(i int, addr, count uint64, typ memsvc.MemoryType) {
	r := b.regions[i]
	rEnd := r.addr + r.pages*memsvc.PageSize
	allocEnd := addr + count*memsvc.PageSize

	replacement := make([]region, 0, 3)
	if addr > r.addr {
		replacement = append(replacement, region{addr: r.addr, pages: (addr - r.addr) / memsvc.PageSize, typ: memsvc.TypeFree})
	}
	replacement = append(replacement, region{addr: addr, pages: count, typ: typ})
	if allocEnd < rEnd {
		replacement = append(replacement, region{addr: allocEnd, pages: (rEnd - allocEnd) / memsvc.PageSize, typ: memsvc.TypeFree})
	}

	next := make([]region, 0, len(b.regions)+len(replacement))
	next = append(next, b.regions[:i]...)
	next = append(next, replacement...)
	next = append(next, b.regions[i+1:]...)
	b.regions = next
}

func (b *Backend) FreePages(address, count uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.regions {
		if r.addr == address && r.pages == count {
			b.regions[i].typ = memsvc.TypeFree
			b.mergeFreeRegions()
			b.key++
			return
		}
	}
}

func (b *Backend) mergeFreeRegions() {
	sort.Slice(b.regions, func(i, j int) bool { return b.regions[i].addr < b.regions[j].addr })
	merged := make([]region, 0, len(b.regions))
	for _, r := range b.regions {
		if n := len(merged); n > 0 && merged[n-1].typ == memsvc.TypeFree && r.typ == memsvc.TypeFree &&
			merged[n-1].addr+merged[n-1].pages*memsvc.PageSize == r.addr {
			merged[n-1].pages += r.pages
			continue
		}
		merged = append(merged, r)
	}
	b.regions = merged
}

func (b *Backend) CopyMap() ([]memsvc.MemoryMapEntry, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]memsvc.MemoryMapEntry, len(b.regions))
	for i, r := range b.regions {
		entries[i] = memsvc.MemoryMapEntry{PhysicalAddress: r.addr, SizeInBytes: r.pages * memsvc.PageSize, Type: r.typ}
	}
	return entries, b.key
}

func (b *Backend) Handover(key uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return key == b.key
}
