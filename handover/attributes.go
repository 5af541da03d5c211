package handover

// Attribute record types (spec §6), numbered to match the boot
// protocol's kernel-side definitions exactly — these values travel
// across the loader/kernel boundary and must never be renumbered
// independently of it.
const (
	AttributePlatformInfo    uint32 = 1
	AttributeKernelInfo      uint32 = 2
	AttributeModuleInfo      uint32 = 3
	AttributeCommandLine     uint32 = 4
	AttributeFramebufferInfo uint32 = 5
	AttributeMemoryMap       uint32 = 6
)

// Platform type values for PlatformInfoAttribute.PlatformType.
const (
	PlatformInvalid uint32 = 0
	PlatformBIOS    uint32 = 1
	PlatformUEFI    uint32 = 2
)

// Magic32 and Magic64 are passed to the kernel at the jump so it can
// verify it was handed off by this protocol rather than booted some
// other way.
const (
	Magic32 uint64 = 0x48595045
	Magic64 uint64 = 0x48595045525f3634
)

// loaderName is the fixed platform-info loader identification string
// (spec §6), null-terminated inside its fixed-width buffer.
const loaderName = "HyperLoader v0.1"

// AttributeHeader prefixes every record in the array: its type and the
// total size in bytes of the record including this header.
type AttributeHeader struct {
	Type        uint32 `struc:"uint32"`
	SizeInBytes uint32 `struc:"uint32"`
}

// arrayHeader is the array's own 8-byte preamble (spec §6): a reserved
// pad word followed by the attribute count.
type arrayHeader struct {
	Pad            uint32 `struc:"uint32"`
	AttributeCount uint32 `struc:"uint32"`
}

// PlatformInfoAttribute identifies the firmware platform and loader
// version. loaderNameSize is wide enough for loaderName plus its NUL.
const loaderNameSize = 32

type PlatformInfoAttribute struct {
	Header       AttributeHeader
	PlatformType uint32 `struc:"uint32"`
	LoaderMajor  uint16 `struc:"uint16"`
	LoaderMinor  uint16 `struc:"uint16"`
	LoaderName   string `struc:"[32]byte"`
}

// KernelInfoAttribute mirrors the loaded kernel's elfload.BinaryInfo,
// so the kernel can learn where its own image physically and virtually
// lives without re-parsing its ELF headers.
type KernelInfoAttribute struct {
	Header          AttributeHeader
	Entrypoint      uint64 `struc:"uint64"`
	VirtualBase     uint64 `struc:"uint64"`
	VirtualCeiling  uint64 `struc:"uint64"`
	PhysicalBase    uint64 `struc:"uint64"`
	PhysicalCeiling uint64 `struc:"uint64"`
	Bitness         uint8 `struc:"uint8"`
	Pad             [7]byte
}

// moduleNameSize bounds a module's name field the same way
// loaderNameSize bounds the platform loader string.
const moduleNameSize = 64

// ModuleInfoAttribute describes one loaded module (spec §4.7 step 3 /
// original_source's module_info_attribute).
type ModuleInfoAttribute struct {
	Header          AttributeHeader
	PhysicalAddress uint64 `struc:"uint64"`
	Length          uint64 `struc:"uint64"`
	Name            string `struc:"[64]byte"`
}

// FramebufferAttribute carries the framebuffer descriptor video.Pick
// produced, physical address rebased to the kernel's view if higher
// half (spec §4.7 step 5).
type FramebufferAttribute struct {
	Header          AttributeHeader
	PhysicalAddress uint64 `struc:"uint64"`
	Width           uint32 `struc:"uint32"`
	Height          uint32 `struc:"uint32"`
	Pitch           uint32 `struc:"uint32"`
	Bpp             uint32 `struc:"uint32"`
	Format          uint32 `struc:"uint32"`
	Pad             uint32 `struc:"uint32"`
}

// wireMemoryMapEntry is the 24-byte on-the-wire memory map record (spec
// §6), distinct from memsvc.MemoryMapEntry's in-process shape only in
// that it carries the explicit pad word the wire format requires.
type wireMemoryMapEntry struct {
	PhysicalAddress uint64 `struc:"uint64"`
	SizeInBytes     uint64 `struc:"uint64"`
	Type            uint32 `struc:"uint32"`
	Pad             uint32 `struc:"uint32"`
}

const (
	sizeofAttributeHeader = 8
	sizeofArrayHeader     = 8
	sizeofPlatformInfo    = 8 + 4 + 2 + 2 + loaderNameSize
	sizeofKernelInfo      = 8 + 8*5 + 1 + 7
	sizeofModuleInfo      = 8 + 8 + 8 + moduleNameSize
	sizeofFramebuffer     = 8 + 8 + 4*6
	sizeofMemoryMapEntry  = 24
)
