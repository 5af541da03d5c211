package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hyperboot/hyper/bootrun"
	"github.com/hyperboot/hyper/bootstate"
	"github.com/hyperboot/hyper/console"
	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/fs"
	"github.com/hyperboot/hyper/fs/hostfs"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/memsvc/hostsim"
	"github.com/hyperboot/hyper/pathspec"
	"github.com/hyperboot/hyper/trace"
	"github.com/hyperboot/hyper/video/hostvideo"
)

// arenaPages sizes the hosted memsvc/hostsim arena this binary boots
// against — generous enough for a real kernel plus a handful of
// modules and the attribute array.
const arenaPages = 1 << 18 // 1GiB

func main() {
	cfgPath := flag.String("config", "hyper.cfg", "path to the boot configuration file")
	bootDir := flag.String("boot-dir", ".", "host directory standing in for the boot partition")
	entry := flag.String("entry", "", "loadable entry to boot (default: the first one in the config)")
	flag.Parse()

	cfgBytes, err := os.ReadFile(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hyper: %s\n", err)
		os.Exit(1)
	}

	backend, err := hostsim.New(0x100000, arenaPages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hyper: failed to initialize simulated memory services: %s\n", err)
		os.Exit(1)
	}
	defer backend.Close()
	memsvc.SetBackend(backend)

	boot := pathspec.Selector{Kind: pathspec.SelectorIndex, Index: 0}
	table := fs.NewTable(boot, boot)
	table.Mount(boot, boot, hostfs.New(*bootDir))

	log := trace.New()
	sm := bootstate.New()

	res, err := bootrun.Boot(string(cfgBytes), *entry, bootrun.Inputs{
		Table:        table,
		Video:        hostvideo.Default(),
		PlatformType: 1, // handover.PlatformBIOS
	}, log, sm)
	if err != nil {
		errs.Fatal(os.Stderr, err, string(cfgBytes))
		return
	}

	console.Info("handover armed: attribute array at %#x, memory map key %#x", res.AttributeArrayAddress, res.MemoryMapKey)
	bootrun.Jump(res, sm)
	console.Info("jumped (state %s) -- a real build never returns here", sm.Current())
}
