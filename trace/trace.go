// Package trace is an append-only log of boot milestones (bootstate
// transitions and the entrypoint disassembly). Entries are stored one
// per Note call, in order; nothing is coalesced or merged.
// Nothing in the boot path requires a trace log to exist — it exists so
// a failed or slow boot can be replayed after the fact, either printed
// live to console or flushed, snappy-compressed, into a
// loader-reclaimable region the kernel may read back post-boot.
package trace

import (
	"bytes"
	"fmt"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"

	"github.com/hyperboot/hyper/bootstate"
	"github.com/hyperboot/hyper/console"
	"github.com/hyperboot/hyper/memsvc"
)

// Entry is one milestone record in source order. Message is formatted
// ahead of time (not lazily) since the loader never has to re-render a
// trace entry after logging it.
type Entry struct {
	State   bootstate.State
	Message string
}

// wireEntry is Entry's on-disk shape for the compressed flush: a fixed
// 4-byte state tag plus a message with a 4-byte length prefix, matching the
// boot protocol's own length-prefixed-record style (spec §3) rather
// than inventing a new framing.
type wireEntry struct {
	State uint32 `struc:"uint32"`
	Len   uint32 `struc:"uint32,sizeof=Message"`
	Message string
}

// Log is an append-only sequence of boot milestones. The zero value is
// ready to use.
type Log struct {
	entries []Entry
}

// New returns an empty Log.
func New() *Log { return &Log{} }

// Note appends one milestone, formatted like fmt.Sprintf, and mirrors
// it to the console at info level. Mirroring immediately (rather than
// only at flush time) is what makes the log useful for a boot that
// never reaches the point where Flush would run.
func (l *Log) Note(state bootstate.State, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.entries = append(l.entries, Entry{State: state, Message: msg})
	console.Info("[%s] %s", state, msg)
}

// Empty reports whether any milestones have been recorded.
func (l *Log) Empty() bool { return len(l.entries) == 0 }

// Entries returns every recorded milestone in source order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset discards every recorded milestone, leaving the Log as empty as
// a fresh one.
func (l *Log) Reset() { l.entries = nil }

// encode packs every entry with struc and snappy-compresses the result,
// the same PackWithOrder-then-compress shape models/struc_stream.go
// wires a StrucStream into for usercorn's save states, generalized here
// to a batch of records instead of one at a time.
func (l *Log) encode() ([]byte, error) {
	var raw bytes.Buffer
	for _, e := range l.entries {
		w := wireEntry{State: uint32(e.State), Message: e.Message}
		if err := struc.Pack(&raw, &w); err != nil {
			return nil, err
		}
	}
	return snappy.Encode(nil, raw.Bytes()), nil
}

// Flush compresses the log and writes it into a freshly allocated
// loader-reclaimable region, returning the region's address and length.
// It must run before handover.Build takes its memory-map snapshot
// (spec §4.7's "no allocations after snapshot" invariant applies to
// this allocation exactly as it does to every other one) — callers
// flush the trace, then build the attribute array, never the reverse.
func (l *Log) Flush() (address, length uint64, err error) {
	compressed, err := l.encode()
	if err != nil {
		return 0, 0, err
	}
	if len(compressed) == 0 {
		return 0, 0, nil
	}
	addr, ok := memsvc.AllocateBytes(uint64(len(compressed)))
	// A best-effort allocation: a boot trace is diagnostic, never load
	// bearing, so losing it to memory pressure halts nothing.
	if !ok {
		console.Warn("failed to allocate %d bytes for the boot trace, dropping it", len(compressed))
		return 0, 0, nil
	}
	dst := memsvc.Bytes(addr, uint64(len(compressed)))
	if dst == nil {
		console.Warn("backend has no addressable memory for the boot trace region at %#x", addr)
		return 0, 0, nil
	}
	copy(dst, compressed)
	return addr, uint64(len(compressed)), nil
}
