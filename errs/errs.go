// Package errs defines the fatal error kinds the loader can produce and
// the top-level handler that prints and halts on them.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind distinguishes the fatal error categories of the boot protocol.
type Kind int

const (
	ConfigSyntax Kind = iota
	ConfigSemantic
	Path
	IO
	Binary
	Capability
	Resource
	Protocol
)

func (k Kind) String() string {
	switch k {
	case ConfigSyntax:
		return "ConfigSyntaxError"
	case ConfigSemantic:
		return "ConfigSemanticError"
	case Path:
		return "PathError"
	case IO:
		return "IOError"
	case Binary:
		return "BinaryError"
	case Capability:
		return "CapabilityError"
	case Resource:
		return "ResourceError"
	case Protocol:
		return "ProtocolError"
	default:
		return "Error"
	}
}

// Error is a fatal, kind-tagged error. Every package in this repo that
// can fail fatally returns one of these (optionally wrapped further up
// the call stack by github.com/pkg/errors, which is how the stack trace
// printed by Fatal gets populated).
type Error struct {
	Kind Kind
	Msg  string
	// Line/Offset are only meaningful for ConfigSyntax errors.
	Line, Offset, GlobalOffset int
}

func (e *Error) Error() string {
	if e.Kind == ConfigSyntax {
		return fmt.Sprintf("%s: %s (line %d, offset %d)", e.Kind, e.Msg, e.Line, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func New(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func Syntax(line, offset, global int, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind: ConfigSyntax, Msg: fmt.Sprintf(format, args...),
		Line: line, Offset: offset, GlobalOffset: global,
	})
}

// Wrap attaches additional context to err while preserving its Kind for
// callers that inspect it with As.
func Wrap(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// As extracts the innermost *Error from a (possibly wrapped) error chain.
func As(err error) (*Error, bool) {
	type causer interface{ Cause() error }
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		c, ok := err.(causer)
		if !ok {
			return nil, false
		}
		err = c.Cause()
	}
	return nil, false
}
