// Package elftest builds minimal, single-PT_LOAD ELF executables for
// elfload's tests, assembling real x86/x86_64 code with
// github.com/keystone-engine/keystone instead of checking in fixture
// binaries the way go/loader/elf_test.go does with a committed file.
package elftest

import (
	"bytes"
	"encoding/binary"

	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
)

// Options describes the one PT_LOAD segment a Build produces.
type Options struct {
	Bitness  int // 32 or 64
	VAddr    uint64
	PAddr    uint64 // ignored for Bitness==64, where p_paddr isn't load-significant
	Asm      string // assembly to assemble at VAddr as the segment's contents
	EntryOff uint64 // entrypoint, relative to VAddr; defaults to 0
}

func arch(bitness int) (ks.Architecture, ks.Mode) {
	if bitness == 64 {
		return ks.ARCH_X86, ks.MODE_64
	}
	return ks.ARCH_X86, ks.MODE_32
}

// Build assembles opts.Asm and wraps it in a minimal one-segment ELF
// executable of the requested bitness, returning the raw file bytes.
func Build(opts Options) ([]byte, error) {
	archv, mode := arch(opts.Bitness)
	k, err := ks.New(archv, mode)
	if err != nil {
		return nil, err
	}
	code, _, ok := k.Assemble(opts.Asm, opts.VAddr)
	if !ok {
		return nil, k.LastError()
	}

	if opts.Bitness == 64 {
		return build64(opts, code), nil
	}
	return build32(opts, code), nil
}

const (
	ehdr32Size = 52
	phdr32Size = 32
	ehdr64Size = 64
	phdr64Size = 56
)

func build32(opts Options, code []byte) []byte {
	fileOff := uint32(ehdr32Size + phdr32Size)
	ehdr := elf32Ehdr{
		Ident:     elfIdent(1),
		Type:      2, // ET_EXEC
		Machine:   3, // EM_386
		Version:   1,
		Entry:     uint32(opts.VAddr) + uint32(opts.EntryOff),
		Phoff:     ehdr32Size,
		Ehsize:    ehdr32Size,
		Phentsize: phdr32Size,
		Phnum:     1,
	}
	phdr := elf32Phdr{
		Type:   1, // PT_LOAD
		Offset: fileOff,
		Vaddr:  uint32(opts.VAddr),
		Paddr:  uint32(opts.PAddr),
		Filesz: uint32(len(code)),
		Memsz:  uint32(len(code)),
		Flags:  5, // R+X
		Align:  0x1000,
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ehdr)
	binary.Write(&buf, binary.LittleEndian, phdr)
	buf.Write(code)
	return buf.Bytes()
}

func build64(opts Options, code []byte) []byte {
	fileOff := uint64(ehdr64Size + phdr64Size)
	ehdr := elf64Ehdr{
		Ident:     elfIdent(2),
		Type:      2, // ET_EXEC
		Machine:   62, // EM_X86_64
		Version:   1,
		Entry:     opts.VAddr + opts.EntryOff,
		Phoff:     ehdr64Size,
		Ehsize:    ehdr64Size,
		Phentsize: phdr64Size,
		Phnum:     1,
	}
	phdr := elf64Phdr{
		Type:   1, // PT_LOAD
		Flags:  5, // R+X
		Offset: fileOff,
		Vaddr:  opts.VAddr,
		Paddr:  opts.PAddr,
		Filesz: uint64(len(code)),
		Memsz:  uint64(len(code)),
		Align:  0x1000,
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ehdr)
	binary.Write(&buf, binary.LittleEndian, phdr)
	buf.Write(code)
	return buf.Bytes()
}

// elfIdent builds e_ident with class (1=ELFCLASS32, 2=ELFCLASS64) and
// little-endian data encoding.
func elfIdent(class byte) [16]byte {
	var id [16]byte
	copy(id[:4], []byte{0x7f, 'E', 'L', 'F'})
	id[4] = class
	id[5] = 1 // ELFDATA2LSB
	id[6] = 1 // EV_CURRENT
	return id
}

type elf32Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf32Phdr struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

type elf64Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64Phdr struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}
