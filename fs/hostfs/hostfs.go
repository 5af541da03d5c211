// Package hostfs backs fs.Filesystem with a real host directory tree,
// standing in for a concrete FAT/ISO9660 driver the way memsvc/hostsim
// stands in for a BIOS/UEFI MemoryServices backend. Concrete filesystem
// drivers are explicitly out of scope (spec §1); this exists only so
// cmd/hyper has something to mount and read a kernel image from when
// it runs hosted, outside of any firmware.
package hostfs

import (
	"os"
	"path/filepath"

	"github.com/hyperboot/hyper/fs"
)

// Volume roots every fs.Filesystem path at Root on the host disk.
type Volume struct {
	Root string
}

// New returns a Volume rooted at root.
func New(root string) *Volume { return &Volume{Root: root} }

type file struct{ f *os.File }

func (v *Volume) Open(path string) (fs.File, bool) {
	f, err := os.Open(filepath.Join(v.Root, filepath.FromSlash(path)))
	if err != nil {
		return nil, false
	}
	return &file{f: f}, true
}

func (f *file) Read(buf []byte, off int64) bool {
	n, err := f.f.ReadAt(buf, off)
	return err == nil && n == len(buf)
}

func (f *file) Size() int64 {
	info, err := f.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (f *file) Close() error { return f.f.Close() }
