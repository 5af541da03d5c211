// Package memsvc is the boot loader's allocator facade (spec §4.3): a
// process-wide, swappable MemoryServices backend plus the
// critical-vs-best-effort allocation wrappers every other package calls
// instead of touching a backend directly. It is grounded almost 1:1 on
// original_source/loader/allocator.c.
package memsvc

import (
	"github.com/hyperboot/hyper/console"
	"github.com/hyperboot/hyper/errs"
)

// MemoryServices is the swappable backend capability, the Go shape of
// original_source/Loader/Services.h's MemoryServices interface.
// Implementations exist per firmware platform (BIOS/UEFI) in a real
// build, and memsvc/hostsim backs it with host mmap for tests.
type MemoryServices interface {
	// AllocatePagesAt allocates count pages at a specific page-aligned
	// address, returning ok=false if the range is unavailable.
	AllocatePagesAt(address uint64, count uint64, typ MemoryType) (uint64, bool)

	// AllocatePages allocates count pages anywhere under upperLimit,
	// from the top or bottom of the available range per topDown.
	AllocatePages(count uint64, upperLimit uint64, typ MemoryType, topDown TopDown) (uint64, bool)

	// FreePages releases a range previously returned by AllocatePagesAt
	// or AllocatePages.
	FreePages(address uint64, count uint64)

	// CopyMap returns every memory map entry currently known to the
	// backend and a key identifying this snapshot of the map. The key
	// changes on every subsequent Allocate/Free call; Handover only
	// succeeds if key still matches the backend's current state.
	CopyMap() ([]MemoryMapEntry, uint64)

	// Handover disables the backend and makes the caller the owner of
	// the entire map, succeeding only if key matches the backend's
	// current state (no allocation happened since the CopyMap that
	// produced key).
	Handover(key uint64) bool
}

// PhysicalMemory is implemented by backends that also let the loader
// touch the bytes behind an allocation. On real firmware an address
// returned by the allocator already is a usable pointer; in hosted/test
// builds memsvc/hostsim backs this with its mmap arena.
type PhysicalMemory interface {
	Bytes(address, length uint64) []byte
}

var backend MemoryServices
var sealed bool

// SetBackend installs b as the process-wide backend, returning the
// previous one (nil if none was set), mirroring allocator_set_backend's
// single global pointer (spec §5: one backend active at a time, no
// concurrent use). It also clears any seal left over from a previous
// boot attempt.
func SetBackend(b MemoryServices) MemoryServices {
	prev := backend
	backend = b
	sealed = false
	return prev
}

// Seal marks the facade as no longer safe to allocate or free from: the
// handover builder calls this the instant its memory-map snapshot
// commits (spec §4.7's "no allocation after snapshot" invariant). Any
// Allocate*/Free* call past this point logs an error to the console and
// calls errs.Halt, per the runtime debug-guard option DESIGN.md chose
// for this invariant.
func Seal() {
	sealed = true
}

func checkNotSealed(what string) {
	if !sealed {
		return
	}
	console.Error("%s called after the handover memory-map snapshot was taken", what)
	errs.Halt()
}

// Bytes returns the bytes backing [address, address+length) for reading
// or writing, or nil if the backend doesn't support direct access or
// cannot address the range. Used by elfload, paging, and
// handover to populate memory they just allocated.
func Bytes(address, length uint64) []byte {
	pm, ok := backend.(PhysicalMemory)
	if !ok {
		return nil
	}
	return pm.Bytes(address, length)
}

// underFourGiB is the upper_limit original_source/loader/allocator.c
// hard-codes for every allocate-anywhere request: early in boot,
// addresses above 4GiB are not guaranteed reachable from protected
// mode, so every anywhere allocation through this facade is capped to
// it and placed top-down. Callers needing a different limit or
// direction go straight to the backend's AllocatePages.
const underFourGiB = 4 * 1024 * 1024 * 1024

func doAllocateWithTypeAt(address, count uint64, typ MemoryType, critical bool) (uint64, bool) {
	if backend == nil {
		panic("memsvc: no backend installed")
	}
	checkNotSealed("allocate")

	var addr uint64
	var ok bool
	if address == 0 {
		addr, ok = backend.AllocatePages(count, underFourGiB, typ, HighestFirst)
	} else {
		addr, ok = backend.AllocatePagesAt(address, count, typ)
	}
	if ok {
		return addr, true
	}

	if critical {
		logAllocationFailure(address, count, typ, false)
		console.Error("out of critical memory, halting")
		errs.Halt()
	}
	logAllocationFailure(address, count, typ, true)
	return 0, false
}

func logAllocationFailure(address, count uint64, typ MemoryType, warning bool) {
	where := "<any-address>"
	if address != 0 {
		where = formatHex(address)
	}
	msg := "failed to satisfy an allocation at %s with %d pages of type %s"
	if warning {
		console.Warn(msg, where, count, typ)
	} else {
		console.Error(msg, where, count, typ)
	}
}

func formatHex(v uint64) string {
	const digits = "0123456789ABCDEF"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}

// AllocatePagesWithTypeAt is a best-effort fixed-address allocation.
func AllocatePagesWithTypeAt(address, count uint64, typ MemoryType) (uint64, bool) {
	return doAllocateWithTypeAt(address, count, typ, false)
}

// AllocatePagesWithType is a best-effort anywhere allocation.
func AllocatePagesWithType(count uint64, typ MemoryType) (uint64, bool) {
	return AllocatePagesWithTypeAt(0, count, typ)
}

// AllocatePages is a best-effort anywhere allocation tagged
// LoaderReclaimable, the facade's default type.
func AllocatePages(count uint64) (uint64, bool) {
	return AllocatePagesWithType(count, TypeLoaderReclaimable)
}

// AllocateBytes is AllocatePages rounded up from a byte count.
func AllocateBytes(count uint64) (uint64, bool) {
	return AllocatePages(RoundUpToPages(count))
}

// AllocateCriticalPagesWithTypeAt allocates count pages of typ at
// address, halting the loader if the allocation fails — address==0
// requests anywhere under 4GiB.
func AllocateCriticalPagesWithTypeAt(address, count uint64, typ MemoryType) uint64 {
	addr, _ := doAllocateWithTypeAt(address, count, typ, true)
	return addr
}

// AllocateCriticalPagesWithType allocates count pages of typ anywhere,
// halting on failure.
func AllocateCriticalPagesWithType(count uint64, typ MemoryType) uint64 {
	return AllocateCriticalPagesWithTypeAt(0, count, typ)
}

// AllocateCriticalPagesAt allocates count pages at address tagged
// LoaderReclaimable, halting on failure.
func AllocateCriticalPagesAt(address, count uint64) uint64 {
	return AllocateCriticalPagesWithTypeAt(address, count, TypeLoaderReclaimable)
}

// AllocateCriticalPages allocates count pages anywhere tagged
// LoaderReclaimable, halting on failure.
func AllocateCriticalPages(count uint64) uint64 {
	return AllocateCriticalPagesWithType(count, TypeLoaderReclaimable)
}

// AllocateCriticalBytes is AllocateCriticalPages rounded up from a byte
// count.
func AllocateCriticalBytes(count uint64) uint64 {
	return AllocateCriticalPages(RoundUpToPages(count))
}

// FreePages releases count pages starting at address.
func FreePages(address, count uint64) {
	if backend == nil {
		panic("memsvc: no backend installed")
	}
	checkNotSealed("free")
	backend.FreePages(address, count)
}

// FreeBytes is FreePages rounded up from a byte count.
func FreeBytes(address, count uint64) {
	FreePages(address, RoundUpToPages(count))
}

// CopyMap returns the backend's current memory map and its snapshot key.
func CopyMap() ([]MemoryMapEntry, uint64) {
	if backend == nil {
		panic("memsvc: no backend installed")
	}
	return backend.CopyMap()
}

// Handover disables the backend, succeeding only if key still matches
// its current state.
func Handover(key uint64) bool {
	if backend == nil {
		panic("memsvc: no backend installed")
	}
	return backend.Handover(key)
}
