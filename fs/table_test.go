package fs

import (
	"testing"

	"github.com/hyperboot/hyper/pathspec"
)

type fakeFile struct {
	data []byte
}

func (f *fakeFile) Read(buf []byte, off int64) bool {
	if off < 0 || off+int64(len(buf)) > int64(len(f.data)) {
		return false
	}
	copy(buf, f.data[off:])
	return true
}
func (f *fakeFile) Size() int64 { return int64(len(f.data)) }
func (f *fakeFile) Close() error { return nil }

type fakeFS struct {
	files map[string][]byte
}

func (f *fakeFS) Open(path string) (File, bool) {
	data, ok := f.files[path]
	if !ok {
		return nil, false
	}
	return &fakeFile{data: data}, true
}

func TestTableResolvesImplicitSelectors(t *testing.T) {
	boot := pathspec.Selector{Kind: pathspec.SelectorIndex, Index: 0}
	table := NewTable(boot, boot)
	volume := &fakeFS{files: map[string][]byte{"/kernel.elf": {1, 2, 3}}}
	table.Mount(boot, boot, volume)

	p, err := pathspec.Parse("/kernel.elf")
	if err != nil {
		t.Fatalf("pathspec.Parse: %v", err)
	}
	got, within, ok := table.ByFullPath(p)
	if !ok || got != volume || within != "/kernel.elf" {
		t.Fatalf("ByFullPath = %v, %q, %v; want volume, /kernel.elf, true", got, within, ok)
	}
}

func TestTableExplicitSelectorMustMatchMount(t *testing.T) {
	boot := pathspec.Selector{Kind: pathspec.SelectorIndex, Index: 0}
	table := NewTable(boot, boot)
	esp := pathspec.Selector{Kind: pathspec.SelectorName, Name: "ESP"}
	volume := &fakeFS{files: map[string][]byte{"/kernel.elf": {1}}}
	table.Mount(boot, esp, volume)

	p, err := pathspec.Parse("[name:ESP]/kernel.elf")
	if err != nil {
		t.Fatalf("pathspec.Parse: %v", err)
	}
	if _, _, ok := table.ByFullPath(p); !ok {
		t.Fatal("ByFullPath: want a match for the mounted ESP partition")
	}

	other, err := pathspec.Parse("[name:DATA]/kernel.elf")
	if err != nil {
		t.Fatalf("pathspec.Parse: %v", err)
	}
	if _, _, ok := table.ByFullPath(other); ok {
		t.Fatal("ByFullPath: want no match for an unmounted partition name")
	}
}

func TestFileReadPastEndFails(t *testing.T) {
	volume := &fakeFS{files: map[string][]byte{"/x": {1, 2, 3}}}
	f, ok := volume.Open("/x")
	if !ok {
		t.Fatal("Open: want true")
	}
	buf := make([]byte, 4)
	if f.Read(buf, 0) {
		t.Error("Read past end of file: want false")
	}
	if f.Size() != 3 {
		t.Errorf("Size = %d; want 3", f.Size())
	}
}
