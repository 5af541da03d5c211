package memsvc

// PageSize is the boot protocol's page granularity; every allocation is
// page-aligned and page-counted, matching original_source's PAGE_SIZE.
const PageSize = 4096

// HugePageSize is the 2MiB granularity paging's direct map uses where
// the platform's page tables support it.
const HugePageSize = 2 * 1024 * 1024

// RoundUpToPages converts a byte count into a page count, rounding up.
func RoundUpToPages(bytes uint64) uint64 {
	return (bytes + PageSize - 1) / PageSize
}

// MemoryType is the boot-protocol memory map entry type (spec §3/§4.3),
// numbered to match original_source/Protocol.h exactly so a memory map
// handed to a real kernel needs no further translation.
type MemoryType uint32

const (
	TypeInvalid            MemoryType = 0
	TypeFree               MemoryType = 1
	TypeReserved           MemoryType = 2
	TypeReclaimable        MemoryType = 3
	TypeNVS                MemoryType = 4
	TypeLoaderReclaimable  MemoryType = 5
	TypeModule             MemoryType = 6
	TypeKernelStack        MemoryType = 7
	TypeKernelBinary       MemoryType = 8
	// TypeLoaderPermanent tags loader-owned structures the kernel must
	// never reclaim (page tables, the attribute array) but that are not
	// firmware-reserved in the usual sense.
	TypeLoaderPermanent MemoryType = 9
)

func (t MemoryType) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeFree:
		return "free"
	case TypeReserved:
		return "reserved"
	case TypeReclaimable:
		return "reclaimable"
	case TypeNVS:
		return "nvs"
	case TypeLoaderReclaimable:
		return "loader-reclaimable"
	case TypeModule:
		return "module"
	case TypeKernelStack:
		return "kernel-stack"
	case TypeKernelBinary:
		return "kernel-binary"
	case TypeLoaderPermanent:
		return "loader-permanent"
	default:
		return "unknown"
	}
}

// validLoaderMemoryTypeBase mirrors original_source's
// VALID_LOADER_MEMORY_TYPE_BASE (loader/uefi/uefi_memory_serivces.c:20):
// raw firmware-reported type values at or above this base are not
// native firmware types at all but the loader's own MemoryType,
// offset by the base so it never collides with a real firmware type
// code. Subtracting the base recovers the original MemoryType.
const validLoaderMemoryTypeBase = 0x80000000

// CoerceMemoryType maps an arbitrary backend-reported type value onto a
// safe boot-protocol MemoryType (spec §3): firmware-native types up to
// and including NVS pass through unchanged, the loader's own types
// reported back at or above validLoaderMemoryTypeBase are unwrapped by
// subtracting the base; anything else — a raw value the loader doesn't
// recognize — is coerced to Reserved so the kernel never mistakes
// unknown firmware memory for free memory.
func CoerceMemoryType(raw uint32) MemoryType {
	if raw >= validLoaderMemoryTypeBase {
		return MemoryType(raw - validLoaderMemoryTypeBase)
	}
	if t := MemoryType(raw); t <= TypeNVS {
		return t
	}
	return TypeReserved
}

// TopDown selects which end of the candidate range an anywhere
// allocation is placed at.
type TopDown bool

const (
	BottomUp     TopDown = false
	HighestFirst TopDown = true
)

// MemoryMapEntry is one protocol-shaped memory map record.
type MemoryMapEntry struct {
	PhysicalAddress uint64
	SizeInBytes     uint64
	Type            MemoryType
}
