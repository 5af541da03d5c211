// Command hypercfg dumps and validates a boot configuration file and,
// run without a -dump flag, drops into a small interactive REPL for
// looking up individual keys against a loaded config — useful for
// checking a "binary"/"module"/"stack" expression resolves the way a
// real boot would see it, without building a kernel image first.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/shibukawa/configdir"

	"github.com/hyperboot/hyper/config"
	"github.com/hyperboot/hyper/errs"
)

func main() {
	dump := flag.Bool("dump", false, "print every key in the config and exit")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hypercfg [-dump] <config-file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	text, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hypercfg: %s\n", err)
		os.Exit(1)
	}
	cfg, err := config.Parse(string(text))
	if err != nil {
		errs.Fatal(os.Stderr, err, string(text))
		return
	}

	if *dump {
		dumpConfig(os.Stdout, cfg)
		return
	}
	runRepl(cfg)
}

// runRepl mirrors ui.Repl's readline setup (prompt, interrupt
// handling, a history file under the user's cache directory) adapted
// to config lookups instead of Lua expressions.
func runRepl(cfg *config.Config) {
	configDirs := configdir.New("hyper", "hypercfg")
	cacheDir := configDirs.QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, "history")
	}

	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     historyPath,
		InterruptPrompt: "\n",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "hypercfg: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()
	rl.SetPrompt("hypercfg> ")

	fmt.Fprintln(rl.Stderr(), "entries:", strings.Join(cfg.LoadableEntries(), ", "))
	fmt.Fprintln(rl.Stderr(), "type an entry name to dump it, or <entry>.<key> to look up one key")

	for {
		ln := rl.Line()
		if ln.Error == readline.ErrInterrupt {
			continue
		} else if ln.CanContinue() {
			continue
		} else if ln.CanBreak() {
			return
		}
		line := strings.TrimSpace(ln.Line)
		if line == "" {
			continue
		}
		lookup(rl, cfg, line)
	}
}

func lookup(rl *readline.Instance, cfg *config.Config, line string) {
	entryName, key, hasKey := strings.Cut(line, ".")

	scope, ok := cfg.LoadableEntry(entryName)
	if !ok {
		fmt.Fprintf(rl.Stderr(), "no such entry %q\n", entryName)
		return
	}
	if !hasKey {
		dumpScope(rl.Stderr(), cfg, scope, 0)
		return
	}

	v, _, ok, err := cfg.GetFirstOneOf(scope, key, config.TypeAny)
	if err != nil {
		fmt.Fprintf(rl.Stderr(), "%s\n", err)
		return
	}
	if !ok {
		fmt.Fprintf(rl.Stderr(), "no such key %q in [%s]\n", key, entryName)
		return
	}
	dumpValue(rl.Stderr(), key, v)
}

func dumpValue(w io.Writer, key string, v config.Value) {
	switch {
	case v.IsObject():
		fmt.Fprintf(w, "%s: (object)\n", key)
	case v.IsString():
		fmt.Fprintf(w, "%s = %q\n", key, v.String)
	case v.IsUnsigned():
		fmt.Fprintf(w, "%s = %d\n", key, v.Unsigned)
	case v.IsSigned():
		fmt.Fprintf(w, "%s = %d\n", key, v.Signed)
	case v.IsBool():
		fmt.Fprintf(w, "%s = %t\n", key, v.Bool)
	default:
		fmt.Fprintf(w, "%s = <none>\n", key)
	}
}
