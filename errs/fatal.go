package errs

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// stackTracer is implemented by errors wrapped with github.com/pkg/errors,
// the same duck-typed check usercorn's UsercornCmd.PrintError performs.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Halt is called once Fatal has finished reporting. In the real loader
// this disables interrupts and spins forever; tests and hosted builds
// override it to something that unwinds instead of hanging the process.
var Halt = func() { select {} }

// Print writes a human-readable report for err to w: its message, its
// source-context line for ConfigSyntax errors, and a stack trace if one
// was attached by Wrap/New, in the style of usercorn's
// UsercornCmd.PrintError.
func Print(w io.Writer, err error, sourceText string) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "fatal: %s\n", err)

	if e, ok := As(err); ok && e.Kind == ConfigSyntax && sourceText != "" {
		printSourceContext(w, sourceText, e.Line, e.Offset)
	}

	if st, ok := err.(stackTracer); ok {
		for _, f := range st.StackTrace() {
			fmt.Fprintf(w, "  %+s:%d\n", f, f)
		}
	}
}

func printSourceContext(w io.Writer, text string, line, offset int) {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return
	}
	fmt.Fprintf(w, "%5d | %s\n", line+1, lines[line])
	pad := strings.Repeat(" ", offset)
	fmt.Fprintf(w, "        %s^\n", pad)
}

// Fatal prints err (with sourceText for syntax-error context, or "" if
// none is available) to w and then calls Halt. It never returns.
func Fatal(w io.Writer, err error, sourceText string) {
	Print(w, err, sourceText)
	Halt()
}
