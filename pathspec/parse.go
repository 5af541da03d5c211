// Package pathspec parses the boot loader's path syntax: an optional
// disk/partition selector pair followed by a path within that
// partition's filesystem (spec §4.2).
package pathspec

import (
	"strings"

	"github.com/hyperboot/hyper/errs"
)

// FullPath is a parsed path: a disk selector, a partition selector, and
// the path within that partition's filesystem. Disk and Partition are
// Implicit when the source omitted them (an absolute /path with no
// bracketed selector).
type FullPath struct {
	Disk      Selector
	Partition Selector
	Path      string
}

// Parse accepts the three forms spec §4.2 describes:
//
//	/abs/path          - implicit disk and partition (the boot device/partition)
//	[selector]/path     - single selector applies to the partition on the boot disk
//	[disk:partition]/path - both selectors given explicitly
func Parse(s string) (FullPath, error) {
	if s == "" {
		return FullPath{}, errs.New(errs.Path, "empty path")
	}
	if s[0] != '[' {
		if s[0] != '/' {
			return FullPath{}, errs.New(errs.Path, "path %q must start with '/' or a '[selector]'", s)
		}
		return FullPath{Disk: Implicit(), Partition: Implicit(), Path: s}, nil
	}

	closeIdx := strings.IndexByte(s, ']')
	if closeIdx < 0 {
		return FullPath{}, errs.New(errs.Path, "path %q: unterminated selector, missing ']'", s)
	}
	sel := s[1:closeIdx]
	rest := s[closeIdx+1:]
	if rest == "" || rest[0] != '/' {
		return FullPath{}, errs.New(errs.Path, "path %q: selector must be followed by '/path'", s)
	}

	first, n, err := scanSelector(sel)
	if err != nil {
		return FullPath{}, errs.Wrap(err, "path %q", s)
	}

	var disk, partition Selector
	switch {
	case n == len(sel):
		disk, partition = Implicit(), first
	case sel[n] == ':':
		partition, err = parseFullSelector(sel[n+1:])
		if err != nil {
			return FullPath{}, errs.Wrap(err, "path %q", s)
		}
		disk = first
	default:
		return FullPath{}, errs.New(errs.Path, "path %q: malformed selector %q", s, sel)
	}
	return FullPath{Disk: disk, Partition: partition, Path: rest}, nil
}

func (p FullPath) String() string {
	if p.Disk.Kind == SelectorImplicit && p.Partition.Kind == SelectorImplicit {
		return p.Path
	}
	if p.Disk.Kind == SelectorImplicit {
		return "[" + p.Partition.String() + "]" + p.Path
	}
	return "[" + p.Disk.String() + ":" + p.Partition.String() + "]" + p.Path
}
