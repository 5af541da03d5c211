// Command hypermon runs one loadable entry through the boot
// orchestration while rendering its bootstate.Machine transitions and
// trace log live, the spiritual descendant of cmd/repl/cmd/trace: it
// attaches to a running (simulated) loader instead of single-stepping
// an emulator, but the "watch milestones scroll by in a split view"
// shape is the same.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jroimartin/gocui"
	"github.com/nsf/termbox-go"

	"github.com/hyperboot/hyper/bootrun"
	"github.com/hyperboot/hyper/bootstate"
	"github.com/hyperboot/hyper/fs"
	"github.com/hyperboot/hyper/fs/hostfs"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/memsvc/hostsim"
	"github.com/hyperboot/hyper/pathspec"
	"github.com/hyperboot/hyper/trace"
	"github.com/hyperboot/hyper/video/hostvideo"
)

const arenaPages = 1 << 18 // 1GiB, matching cmd/hyper

func main() {
	cfgPath := flag.String("config", "hyper.cfg", "path to the boot configuration file")
	bootDir := flag.String("boot-dir", ".", "host directory standing in for the boot partition")
	entry := flag.String("entry", "", "loadable entry to boot (default: the first one in the config)")
	flag.Parse()

	cfgBytes, err := os.ReadFile(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hypermon: %s\n", err)
		os.Exit(1)
	}

	backend, err := hostsim.New(0x100000, arenaPages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hypermon: %s\n", err)
		os.Exit(1)
	}
	defer backend.Close()
	memsvc.SetBackend(backend)

	boot := pathspec.Selector{Kind: pathspec.SelectorIndex, Index: 0}
	table := fs.NewTable(boot, boot)
	table.Mount(boot, boot, hostfs.New(*bootDir))

	mon := newMonitor()
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		// No usable terminal for gocui (piped stdout, a minimal
		// container tty): fall back to a termbox status line rather
		// than failing outright.
		runTermboxFallback(mon, string(cfgBytes), *entry, table)
		return
	}
	defer g.Close()
	runGocui(g, mon, string(cfgBytes), *entry, table)
}

// monitor collects the live state as the boot runs; both the gocui and
// termbox front ends just render whatever it has accumulated so far.
type monitor struct {
	state   bootstate.State
	lines   []string
	done    bool
	failure error
}

func newMonitor() *monitor { return &monitor{} }

func (m *monitor) onState(s bootstate.State) {
	m.state = s
	m.lines = append(m.lines, "-- "+s.String()+" --")
}

// run drives bootrun.Boot/Jump to completion, routing each state
// transition through notify so a front end can redraw as it happens.
// It blocks until the boot ends; the gocui and termbox front ends start
// it in a goroutine and poll m on whatever cadence fits their event
// loop, while the headless fallback calls it directly.
func (m *monitor) run(cfgText, entryName string, table *fs.Table, notify func()) {
	sm := bootstate.New()
	sm.Observer = func(s bootstate.State) {
		m.onState(s)
		notify()
	}
	log := trace.New()

	res, err := bootrun.Boot(cfgText, entryName, bootrun.Inputs{
		Table:        table,
		Video:        hostvideo.Default(),
		PlatformType: 1,
	}, log, sm)
	for _, e := range log.Entries() {
		m.lines = append(m.lines, fmt.Sprintf("[%s] %s", e.State, e.Message))
	}
	if err != nil {
		m.failure = err
		notify()
		return
	}
	bootrun.Jump(res, sm)
	m.done = true
	notify()
}

func runGocui(g *gocui.Gui, mon *monitor, cfgText, entryName string, table *fs.Table) {
	g.SetManagerFunc(func(g *gocui.Gui) error { return layout(g, mon) })
	if err := g.SetKeybinding("", 'q', gocui.ModNone, func(*gocui.Gui, *gocui.View) error {
		return gocui.ErrQuit
	}); err != nil {
		fmt.Fprintf(os.Stderr, "hypermon: %s\n", err)
		return
	}

	go mon.run(cfgText, entryName, table, func() {
		g.Update(func(g *gocui.Gui) error { return layout(g, mon) })
	})

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		fmt.Fprintf(os.Stderr, "hypermon: %s\n", err)
	}
}

func layout(g *gocui.Gui, mon *monitor) error {
	maxX, maxY := g.Size()
	if v, err := g.SetView("state", 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "state"
	} else {
		v.Clear()
		fmt.Fprintf(v, " %s", mon.state)
		if mon.failure != nil {
			fmt.Fprintf(v, " -- FAILED: %s", mon.failure)
		} else if mon.done {
			fmt.Fprint(v, " -- jumped")
		}
	}
	if v, err := g.SetView("trace", 0, 3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "trace"
		v.Wrap = true
	} else {
		v.Clear()
		for _, line := range mon.lines {
			fmt.Fprintln(v, line)
		}
	}
	return nil
}

// runTermboxFallback renders the same information as a single
// redrawn screen using termbox directly, for environments where gocui
// itself can't acquire a controlling terminal.
func runTermboxFallback(mon *monitor, cfgText, entryName string, table *fs.Table) {
	if err := termbox.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "hypermon: no terminal available (%s); running headless\n", err)
		mon.run(cfgText, entryName, table, func() {})
		for _, line := range mon.lines {
			fmt.Println(line)
		}
		return
	}
	defer termbox.Close()

	redraw := make(chan struct{}, 1)
	go mon.run(cfgText, entryName, table, func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})

	events := make(chan termbox.Event)
	go func() {
		for {
			events <- termbox.PollEvent()
		}
	}()

	draw := func() {
		termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
		drawLine(0, fmt.Sprintf("state: %s", mon.state))
		for i, line := range mon.lines {
			drawLine(i+2, line)
		}
		termbox.Flush()
	}
	draw()
	for {
		select {
		case <-redraw:
			draw()
		case ev := <-events:
			if ev.Type == termbox.EventKey && (ev.Ch == 'q' || ev.Key == termbox.KeyCtrlC) {
				return
			}
		}
	}
}

func drawLine(y int, s string) {
	w, h := termbox.Size()
	if y >= h {
		return
	}
	for x, r := range s {
		if x >= w {
			break
		}
		termbox.SetCell(x, y, r, termbox.ColorDefault, termbox.ColorDefault)
	}
}
