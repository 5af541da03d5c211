// Package fs defines the filesystem capability surface the loader reads
// binaries through, and the mount table that resolves a pathspec.FullPath
// to one of those mounts (spec §4.2). Only the capability interfaces are
// implemented here — concrete FAT/ISO9660 drivers are out of scope.
package fs

import "io"

// File is a single open file on a mounted partition. All I/O is
// synchronous and blocking, per spec §4.3's concurrency model: the
// loader never issues overlapping I/O.
type File interface {
	// Read fills buf starting at off, returning false if the read ran
	// past Size() or the backing medium faulted.
	Read(buf []byte, off int64) (ok bool)
	Size() int64
	io.Closer
}

// Filesystem is a mounted, read-only volume. Open returns nil, false if
// path does not exist or cannot be opened.
type Filesystem interface {
	Open(path string) (File, bool)
}
