package loader

import (
	"testing"

	"github.com/hyperboot/hyper/elfload/elftest"
	"github.com/hyperboot/hyper/fs"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/memsvc/hostsim"
	"github.com/hyperboot/hyper/pathspec"
)

type fakeFile struct{ data []byte }

func (f *fakeFile) Read(buf []byte, off int64) bool {
	if off < 0 || off+int64(len(buf)) > int64(len(f.data)) {
		return false
	}
	copy(buf, f.data[off:])
	return true
}
func (f *fakeFile) Size() int64  { return int64(len(f.data)) }
func (f *fakeFile) Close() error { return nil }

type fakeFS struct{ files map[string][]byte }

func (f *fakeFS) Open(path string) (fs.File, bool) {
	data, ok := f.files[path]
	if !ok {
		return nil, false
	}
	return &fakeFile{data: data}, true
}

func withBackend(t *testing.T, pages uint64) *hostsim.Backend {
	b, err := hostsim.New(0, pages)
	if err != nil {
		t.Fatalf("hostsim.New: %v", err)
	}
	prev := memsvc.SetBackend(b)
	t.Cleanup(func() {
		memsvc.SetBackend(prev)
		b.Close()
	})
	return b
}

func bootTable(files map[string][]byte) *fs.Table {
	boot := pathspec.Selector{Kind: pathspec.SelectorIndex, Index: 0}
	table := fs.NewTable(boot, boot)
	table.Mount(boot, boot, &fakeFS{files: files})
	return table
}

func TestKernelResolvesAndLoads(t *testing.T) {
	withBackend(t, 512)

	data, err := elftest.Build(elftest.Options{Bitness: 32, VAddr: 0x100000, PAddr: 0x100000, Asm: "nop;nop;nop;nop"})
	if err != nil {
		t.Fatalf("elftest.Build: %v", err)
	}
	table := bootTable(map[string][]byte{"/kernel.elf": data})

	info, err := Kernel(table, "/kernel.elf", false)
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}
	if info.PhysicalBase != 0x100000 {
		t.Errorf("PhysicalBase = %#x; want 0x100000", info.PhysicalBase)
	}
}

func TestKernelMissingFileIsError(t *testing.T) {
	withBackend(t, 16)
	table := bootTable(nil)
	if _, err := Kernel(table, "/missing.elf", false); err == nil {
		t.Fatal("Kernel: want an error for a missing file")
	}
}

func TestModuleCopiesRawBytes(t *testing.T) {
	withBackend(t, 16)
	payload := []byte("initrd contents")
	table := bootTable(map[string][]byte{"/init.img": payload})

	addr, length, err := Module(table, "/init.img")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if length != uint64(len(payload)) {
		t.Fatalf("length = %d; want %d", length, len(payload))
	}
	got := memsvc.Bytes(addr, length)
	if string(got) != string(payload) {
		t.Fatalf("module bytes = %q; want %q", got, payload)
	}
}

func TestStackReturnsTopOfAllocation(t *testing.T) {
	withBackend(t, 16)

	top, err := Stack(2*memsvc.PageSize, 0)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if top%memsvc.PageSize != 0 {
		t.Fatalf("top = %#x; want page aligned", top)
	}
}
