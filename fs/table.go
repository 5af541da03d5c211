package fs

import "github.com/hyperboot/hyper/pathspec"

type mount struct {
	disk, partition pathspec.Selector
	fs              Filesystem
}

// Table resolves a pathspec.FullPath to the Filesystem mounted at its
// disk/partition and the path within that partition, mirroring
// original_source/loader/filesystem/filesystem_table.c's mount list.
type Table struct {
	mounts []mount

	bootDisk, bootPartition pathspec.Selector
}

// NewTable creates an empty mount table. bootDisk and bootPartition are
// the concrete selectors an pathspec.Implicit() disk/partition resolves
// to — the disk and partition the loader was itself started from.
func NewTable(bootDisk, bootPartition pathspec.Selector) *Table {
	return &Table{bootDisk: bootDisk, bootPartition: bootPartition}
}

// Mount registers filesystem as the volume at disk:partition.
func (t *Table) Mount(disk, partition pathspec.Selector, filesystem Filesystem) {
	t.mounts = append(t.mounts, mount{disk, partition, filesystem})
}

// ByFullPath returns the Filesystem that full satisfies, and the path
// within that filesystem's own root, or ok=false if no mount matches.
func (t *Table) ByFullPath(full pathspec.FullPath) (filesystem Filesystem, pathWithinPartition string, ok bool) {
	disk := t.concrete(full.Disk, t.bootDisk)
	partition := t.concrete(full.Partition, t.bootPartition)
	for _, m := range t.mounts {
		if selectorEqual(m.disk, disk) && selectorEqual(m.partition, partition) {
			return m.fs, full.Path, true
		}
	}
	return nil, "", false
}

func (t *Table) concrete(s, boot pathspec.Selector) pathspec.Selector {
	if s.Kind == pathspec.SelectorImplicit {
		return boot
	}
	return s
}

func selectorEqual(a, b pathspec.Selector) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case pathspec.SelectorIndex:
		return a.Index == b.Index
	case pathspec.SelectorGUID:
		return a.GUID == b.GUID
	case pathspec.SelectorName:
		return a.Name == b.Name
	default: // SelectorImplicit, shouldn't occur here but trivially equal
		return true
	}
}
