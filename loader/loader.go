// Package loader is the kernel load pipeline (spec §4/component 2):
// filesystem-agnostic path resolution over fs.Table, ELF loading via
// elfload, and the kernel stack allocation, composed into the handful
// of calls cmd/hyper's boot orchestration needs per loadable entry.
//
// This package replaces the teacher's multi-format binary loader
// (go/loader/*.go: ELF/Mach-O/cgc/com/ndh/bpf loaders for an
// emulator that can run any of those formats as a guest). A boot
// loader only ever loads one format, ELF, for one purpose, placing a
// kernel in physical memory — elfload already owns that — so what
// remains here is resolving a config path string to file bytes and
// turning a raw module file into an allocated, tagged region, the Go
// shape of original_source/loader/protocols/ultra.c's binary_options_load.
package loader

import (
	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/fs"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/pathspec"
)

// DefaultStackSize is used when a "stack" config value's size is "auto"
// (spec §6), the original's literal default kernel stack allocation.
const DefaultStackSize = 64 * 1024

// readFile resolves spec (a pathspec string) against table, opens it,
// reads it fully into a host-side buffer, and closes it immediately —
// per spec §4.2/§5, all I/O is synchronous and there is no streaming:
// the whole file is read once into memory the caller goes on to parse
// or copy from.
func readFile(table *fs.Table, spec string) ([]byte, error) {
	full, err := pathspec.Parse(spec)
	if err != nil {
		return nil, err
	}
	filesystem, within, ok := table.ByFullPath(full)
	if !ok {
		return nil, errs.New(errs.Path, "no mounted filesystem for %q", full.String())
	}
	f, ok := filesystem.Open(within)
	if !ok {
		return nil, errs.New(errs.IO, "failed to open %q", full.String())
	}
	defer f.Close()

	size := f.Size()
	buf := make([]byte, size)
	if size > 0 && !f.Read(buf, 0) {
		return nil, errs.New(errs.IO, "failed to read %q (%d bytes)", full.String(), size)
	}
	return buf, nil
}

// Kernel resolves path against table and loads it as the boot kernel
// (spec §4.4), tagging its memory TypeKernelBinary.
func Kernel(table *fs.Table, path string, allocateAnywhere bool) (elfload.BinaryInfo, error) {
	data, err := readFile(table, path)
	if err != nil {
		return elfload.BinaryInfo{}, errs.Wrap(err, "loading kernel %q", path)
	}
	info, err := elfload.Load(data, allocateAnywhere, memsvc.TypeKernelBinary)
	if err != nil {
		return elfload.BinaryInfo{}, errs.Wrap(err, "loading kernel %q", path)
	}
	return info, nil
}

// Module resolves path against table and copies its raw bytes into a
// freshly allocated TypeModule region — modules are opaque payloads to
// the loader (initrds, config blobs, anything the kernel interprets
// itself), never parsed as ELF.
func Module(table *fs.Table, path string) (address, length uint64, err error) {
	data, err := readFile(table, path)
	if err != nil {
		return 0, 0, errs.Wrap(err, "loading module %q", path)
	}
	pages := memsvc.RoundUpToPages(uint64(len(data)))
	addr := memsvc.AllocateCriticalPagesWithType(pages, memsvc.TypeModule)
	dst := memsvc.Bytes(addr, uint64(len(data)))
	if dst == nil {
		return 0, 0, errs.New(errs.IO, "module %q: backend has no addressable memory at %#x", path, addr)
	}
	n := copy(dst, data)
	if n != len(data) {
		return 0, 0, errs.New(errs.IO, "module %q: short copy (%d of %d bytes)", path, n, len(data))
	}
	return addr, uint64(len(data)), nil
}

// Stack allocates the kernel stack (spec §6's "stack" key): sizeBytes
// bytes tagged TypeKernelStack, at a fixed address if at != 0 or
// anywhere otherwise. It returns the top of the stack (address +
// sizeBytes), which is what x86/x86_64 calling convention expects in
// ESP/RSP — the kernel's own stack grows down from here.
func Stack(sizeBytes, at uint64) (top uint64, err error) {
	pages := memsvc.RoundUpToPages(sizeBytes)
	base := memsvc.AllocateCriticalPagesWithTypeAt(at, pages, memsvc.TypeKernelStack)
	return base + pages*memsvc.PageSize, nil
}

// ReadAll reads an arbitrary pathspec-addressed file fully into memory
// the same way Kernel/Module do, without the caller reaching into
// fs.Table directly.
func ReadAll(table *fs.Table, path string) ([]byte, error) {
	return readFile(table, path)
}
