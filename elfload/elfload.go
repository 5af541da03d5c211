// Package elfload validates and loads kernel/module ELF images into
// memory allocated through memsvc, per spec §4.4. It uses the standard
// library's debug/elf for header parsing — the same choice the teacher
// makes in go/loader/elf.go rather than hand-parsing ELF bytes — and
// layers the boot protocol's allocate-fixed vs allocate-anywhere
// semantics on top, grounded on original_source/loader/elf/elf.c.
package elfload

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/memsvc"
)

// HigherHalfBase is the virtual address at and above which a 64-bit
// kernel is considered "higher half" (original_source's
// HIGHER_HALF_BASE, 0xFFFFFFFF80000000).
const HigherHalfBase = 0xFFFFFFFF80000000

// BinaryInfo is the outcome of a successful Load: where the image
// physically landed, where the kernel's own view of it starts, its
// entrypoint, and whether that range is already covered by the page
// table's fixed higher-half mapping (spec §3/§8).
type BinaryInfo struct {
	PhysicalBase, PhysicalCeiling uint64
	VirtualBase, VirtualCeiling   uint64
	Entrypoint                    uint64
	Bitness                       int
	KernelRangeIsDirectMap        bool
}

func pageRoundDown(v uint64) uint64 { return v &^ (memsvc.PageSize - 1) }
func pageRoundUp(v uint64) uint64   { return (v + memsvc.PageSize - 1) &^ (memsvc.PageSize - 1) }

// Bitness inspects only the ELF identification bytes, matching
// original_source's elf_bitness: it does not validate program headers,
// magic, or endianness, so a caller must still treat a nonzero result
// as "worth attempting to Load", not "definitely valid".
func Bitness(data []byte) int {
	const minEhdrSize = 64 // sizeof(Elf64_Ehdr), the size both formats must clear
	if len(data) <= minEhdrSize {
		return 0
	}
	switch elf.Class(data[elf.EI_CLASS]) {
	case elf.ELFCLASS32:
		return 32
	case elf.ELFCLASS64:
		return 64
	default:
		return 0
	}
}

// Load validates data as an executable ELF of the machine's expected
// bitness, walks its PT_LOAD segments, allocates memory for them
// through memsvc, copies their file contents in and zero-fills their
// BSS tail, and returns where the result landed (spec §4.4).
//
// allocateAnywhere requests the "allocate-anywhere" 64-bit higher-half
// mode: a single physical region is allocated wherever memsvc can place
// it, and on-disk virtual addresses are used only as the kernel's own
// view, never as load targets. It is an error for a 32-bit image.
func Load(data []byte, allocateAnywhere bool, memType memsvc.MemoryType) (BinaryInfo, error) {
	bitness := Bitness(data)
	if bitness == 0 {
		return BinaryInfo{}, errs.New(errs.Binary, "invalid ELF class")
	}
	if allocateAnywhere && bitness != 64 {
		return BinaryInfo{}, errs.New(errs.Binary, "allocate-anywhere is only valid for 64-bit kernels")
	}

	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return BinaryInfo{}, errs.Wrap(err, "invalid ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return BinaryInfo{}, errs.New(errs.Binary, "not a little-endian ELF")
	}
	if f.Type != elf.ET_EXEC {
		return BinaryInfo{}, errs.New(errs.Binary, "not an executable ELF")
	}

	wantMachine := elf.EM_386
	if bitness == 64 {
		wantMachine = elf.EM_X86_64
	}
	if f.Machine != wantMachine {
		return BinaryInfo{}, errs.New(errs.Binary, "unexpected machine type %s", f.Machine)
	}

	var loads []*elf.Prog
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			loads = append(loads, p)
		}
	}
	if len(loads) == 0 {
		return BinaryInfo{}, errs.New(errs.Binary, "no PT_LOAD segments")
	}

	useVA := bitness == 64
	mustBeHigherHalf := allocateAnywhere

	info := BinaryInfo{
		Bitness:      bitness,
		Entrypoint:   f.Entry,
		VirtualBase:  ^uint64(0),
		PhysicalBase: ^uint64(0),
	}

	for _, p := range loads {
		if p.Vaddr < HigherHalfBase && mustBeHigherHalf {
			return BinaryInfo{}, errs.New(errs.Binary, "load segment %#x below higher half in allocate-anywhere mode", p.Vaddr)
		}
		if p.Vaddr < info.VirtualBase {
			info.VirtualBase = p.Vaddr
		}
		if end := p.Vaddr + p.Memsz; end > info.VirtualCeiling {
			info.VirtualCeiling = end
		}
		phys := p.Paddr
		if useVA {
			phys = p.Vaddr
			if phys >= HigherHalfBase {
				phys -= HigherHalfBase
			}
		}
		if phys < info.PhysicalBase {
			info.PhysicalBase = phys
		}
		if end := phys + p.Memsz; end > info.PhysicalCeiling {
			info.PhysicalCeiling = end
		}
	}

	refBase, refCeiling := info.PhysicalBase, info.PhysicalCeiling
	if useVA {
		refBase, refCeiling = info.VirtualBase, info.VirtualCeiling
	}
	if info.Entrypoint < refBase || info.Entrypoint >= refCeiling {
		return BinaryInfo{}, errs.New(errs.Binary, "entrypoint %#x outside loaded range [%#x, %#x)", info.Entrypoint, refBase, refCeiling)
	}

	info.VirtualBase = pageRoundDown(info.VirtualBase)
	info.VirtualCeiling = pageRoundUp(info.VirtualCeiling)
	info.PhysicalBase = pageRoundDown(info.PhysicalBase)
	info.PhysicalCeiling = pageRoundUp(info.PhysicalCeiling)

	if allocateAnywhere {
		pages := (info.VirtualCeiling - info.VirtualBase) / memsvc.PageSize
		base := memsvc.AllocateCriticalPagesWithType(pages, memType)
		info.PhysicalBase = base
		info.PhysicalCeiling = base + pages*memsvc.PageSize
		info.KernelRangeIsDirectMap = false
	} else {
		info.KernelRangeIsDirectMap = info.VirtualBase == HigherHalfBase+info.PhysicalBase
	}

	for _, p := range loads {
		if err := loadSegment(p, info, useVA, allocateAnywhere, memType); err != nil {
			return BinaryInfo{}, err
		}
	}

	return info, nil
}

// oneMB is the lower bound a translated higher-half load address must
// clear, matching original_source/loader/elf/elf.c's
// `addr < (1 * MB) && !alloc_anywhere` guard.
const oneMB = 1 * 1024 * 1024

// fourGB bounds a fixed (non-allocate-anywhere) load target, matching
// original_source's `end > (4ull * GB)` guard.
const fourGB = 4 * 1024 * 1024 * 1024

func loadSegment(p *elf.Prog, info BinaryInfo, useVA, allocateAnywhere bool, memType memsvc.MemoryType) error {
	addr := p.Paddr
	if useVA {
		addr = p.Vaddr
	}
	if addr+p.Memsz < addr {
		return errs.New(errs.Binary, "segment %#x overflows address space", addr)
	}
	if p.Memsz < p.Filesz {
		return errs.New(errs.Binary, "segment %#x: memsz smaller than filesz", addr)
	}

	if addr >= HigherHalfBase {
		if !useVA {
			return errs.New(errs.Binary, "segment %#x: higher-half load address on a non-virtual-addressed load", addr)
		}
		addr -= HigherHalfBase
		if addr < oneMB && !allocateAnywhere {
			return errs.New(errs.Binary, "segment %#x: higher-half load translates below 1MB", p.Vaddr)
		}
	}

	var loadBase uint64
	if allocateAnywhere {
		loadBase = info.PhysicalBase + (p.Vaddr - info.VirtualBase)
	} else {
		begin := pageRoundDown(addr)
		end := pageRoundUp(begin + p.Memsz)
		if end > fourGB {
			return errs.New(errs.Binary, "segment %#x: load address [%#x, %#x) exceeds 4GiB", p.Vaddr, begin, end)
		}
		pages := (end - begin) / memsvc.PageSize
		regionBase := memsvc.AllocateCriticalPagesWithTypeAt(begin, pages, memType)
		loadBase = regionBase + (addr - begin)
	}

	dst := memsvc.Bytes(loadBase, p.Memsz)
	if dst == nil {
		return errs.New(errs.Binary, "segment %#x: backend has no addressable memory at %#x", addr, loadBase)
	}
	for i := range dst {
		dst[i] = 0
	}
	if p.Filesz == 0 {
		return nil
	}
	n, err := io.ReadFull(p.Open(), dst[:p.Filesz])
	if err != nil || uint64(n) != p.Filesz {
		return errs.New(errs.Binary, "segment %#x: failed to read %d bytes from image", addr, p.Filesz)
	}
	return nil
}
