// Command hyperctl stages kernel/module images into a local cache
// directory a boot configuration can point at with a host-backed
// pathspec, and lists or clears what's staged. It is the interface an
// installer would present (discover, stage, list, remove) without the
// actual disk-partitioning/bootloader-install internals, which are out
// of scope for this repo.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shibukawa/configdir"
)

const (
	vendor = "hyper"
	app    = "hyperctl"
)

func cacheFolder() *configdir.Config {
	dirs := configdir.New(vendor, app)
	return dirs.QueryCacheFolder()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "stage":
		err = runStage(args)
	case "list":
		err = runList(args)
	case "remove":
		err = runRemove(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hyperctl: %s\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hyperctl stage <file> [<staged-name>]")
	fmt.Fprintln(os.Stderr, "       hyperctl list")
	fmt.Fprintln(os.Stderr, "       hyperctl remove <staged-name>")
}

// runStage copies src into the cache folder under name (src's base
// name if name is omitted), so a config's "binary"/"module" path can
// reference it via a host-mounted pathspec pointed at the cache dir.
func runStage(args []string) error {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	src := args[0]
	name := filepath.Base(src)
	if len(args) > 1 {
		name = args[1]
	}

	cache := cacheFolder()
	if err := cache.MkdirAll(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dstPath := filepath.Join(cache.Path, name)
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	fmt.Printf("staged %s -> %s\n", src, dstPath)
	return nil
}

func runList(args []string) error {
	cache := cacheFolder()
	entries, err := os.ReadDir(cache.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Printf("%-32s %10d bytes\n", e.Name(), info.Size())
	}
	return nil
}

func runRemove(args []string) error {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	cache := cacheFolder()
	return os.Remove(filepath.Join(cache.Path, args[0]))
}
