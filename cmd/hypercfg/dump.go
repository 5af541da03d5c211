package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/hyperboot/hyper/config"
	"github.com/lunixbochs/fvbommel-util/sortorder"
)

// dumpScope prints every key in scope, one per line, indenting nested
// objects. The keys of every scope, nested ones included, are sorted
// with sortorder.NaturalLess so "module2" sorts before "module10" the
// way a human scanning the dump expects, matching models.Arch's
// register-list ordering in the teacher repo; repeated keys keep their
// source order and are printed unnumbered.
func dumpScope(w io.Writer, cfg *config.Config, scope config.Scope, depth int) {
	type kv struct {
		key string
		val config.Value
	}
	var entries []kv
	cfg.Walk(scope, func(key string, v config.Value) {
		entries = append(entries, kv{key, v})
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return sortorder.NaturalLess(entries[i].key, entries[j].key)
	})

	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	for _, e := range entries {
		switch {
		case e.val.IsObject():
			fmt.Fprintf(w, "%s%s:\n", indent, e.key)
			dumpScope(w, cfg, config.Scope(e.val.CfgOff), depth+1)
		case e.val.IsString():
			fmt.Fprintf(w, "%s%s = %q\n", indent, e.key, e.val.String)
		case e.val.IsUnsigned():
			fmt.Fprintf(w, "%s%s = %d\n", indent, e.key, e.val.Unsigned)
		case e.val.IsSigned():
			fmt.Fprintf(w, "%s%s = %d\n", indent, e.key, e.val.Signed)
		case e.val.IsBool():
			fmt.Fprintf(w, "%s%s = %t\n", indent, e.key, e.val.Bool)
		default:
			fmt.Fprintf(w, "%s%s = <none>\n", indent, e.key)
		}
	}
}

// dumpConfig prints every loadable entry in cfg in source order,
// walking FirstLoadableEntry/NextLoadableEntry rather than
// LoadableEntries+LoadableEntry so a repeated [name] shows its own
// scope instead of the first entry sharing that name twice ("first
// declared wins" selection still only applies to Boot's own lookup).
func dumpConfig(w io.Writer, cfg *config.Config) {
	name, scope, ok := cfg.FirstLoadableEntry()
	for ok {
		fmt.Fprintf(w, "[%s]\n", name)
		dumpScope(w, cfg, scope, 1)
		name, scope, ok = cfg.NextLoadableEntry(name)
	}
}
