// Package console is the loader's log sink. It wraps whatever writer the
// active firmware backend exposes (serial port, VGA text buffer, or in
// hosted/test builds os.Stderr) the way usercorn's cmd package writes
// straight to os.Stderr with fmt.Fprintf, with one addition: the sink can
// be permanently silenced, because per the boot protocol's resource
// discipline (spec §5) legacy tty output is not safe to use once video
// mode has been switched.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

// Writer is the process-wide log sink. Only one exists at a time,
// mirroring the single process-wide backend pointer memsvc keeps for
// MemoryServices (spec §5: "the log sink is a process-wide pointer").
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	silent bool
}

var current = New(os.Stderr)

// New wraps out, auto-detecting ANSI color support the way a CLI would:
// colorable.NewColorable on Windows consoles, isatty for everything else.
func New(out io.Writer) *Writer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		out = colorable.NewColorable(f)
	}
	return &Writer{out: out, color: color}
}

// SetBackend replaces the process-wide sink, returning the previous one
// so callers can restore it.
func SetBackend(w *Writer) *Writer {
	prev := current
	current = w
	return prev
}

// Current returns the process-wide sink.
func Current() *Writer { return current }

// Silence permanently disables output on w. There is no way back short
// of installing a fresh Writer via SetBackend: once the firmware's
// legacy tty is gone, it is gone for the rest of the boot.
func (w *Writer) Silence() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.silent = true
}

func (w *Writer) colorize(color, format string, args ...interface{}) string {
	s := fmt.Sprintf(format, args...)
	if !w.color {
		return s
	}
	return ansi.Color(s, color)
}

func (w *Writer) write(color, level, format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.silent {
		return
	}
	msg := w.colorize(color, format, args...)
	fmt.Fprintf(w.out, "[%s] %s\n", level, msg)
}

func (w *Writer) Info(format string, args ...interface{})  { w.write("cyan", "info", format, args...) }
func (w *Writer) Warn(format string, args ...interface{})  { w.write("yellow", "warn", format, args...) }
func (w *Writer) Error(format string, args ...interface{}) { w.write("red", "err ", format, args...) }

// package-level helpers operate on the current process-wide sink.
func Info(format string, args ...interface{})  { current.Info(format, args...) }
func Warn(format string, args ...interface{})  { current.Warn(format, args...) }
func Error(format string, args ...interface{}) { current.Error(format, args...) }
func Silence()                                 { current.Silence() }
