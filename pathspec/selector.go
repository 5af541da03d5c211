package pathspec

import (
	"strconv"
	"strings"

	"github.com/hyperboot/hyper/errs"
)

// SelectorKind distinguishes the ways a disk or partition can be picked
// out, per spec §4.2.
type SelectorKind int

const (
	SelectorImplicit SelectorKind = iota // "boot", or omitted entirely
	SelectorIndex                        // bare integer
	SelectorGUID                         // guid:XXXXXXXX-...
	SelectorName                         // name:...
)

// Selector is one disk or partition selector. Only the field matching
// Kind is meaningful.
type Selector struct {
	Kind  SelectorKind
	Index uint64
	GUID  string
	Name  string
}

// Implicit is the selector matching the boot device/partition the
// loader was itself started from.
func Implicit() Selector { return Selector{Kind: SelectorImplicit} }

// scanSelector reads one selector from the front of s and reports how
// many bytes it consumed. A disk:partition pair is two selectors
// separated by a ':', so the caller — not this function — decides what
// a trailing ':' means; scanSelector stops as soon as its own selector
// is complete rather than greedily consuming to the next ':', since
// "guid:" and "name:" selectors contain colons of their own.
func scanSelector(s string) (Selector, int, error) {
	switch {
	case strings.HasPrefix(s, "boot"):
		return Implicit(), len("boot"), nil
	case strings.HasPrefix(s, "guid:"):
		val := s[len("guid:"):]
		n := selectorValueLen(val)
		if n == 0 {
			return Selector{}, 0, errs.New(errs.Path, "empty guid selector")
		}
		return Selector{Kind: SelectorGUID, GUID: val[:n]}, len("guid:") + n, nil
	case strings.HasPrefix(s, "name:"):
		val := s[len("name:"):]
		n := selectorValueLen(val)
		if n == 0 {
			return Selector{}, 0, errs.New(errs.Path, "empty name selector")
		}
		return Selector{Kind: SelectorName, Name: val[:n]}, len("name:") + n, nil
	default:
		n := 0
		for n < len(s) && s[n] >= '0' && s[n] <= '9' {
			n++
		}
		if n == 0 {
			return Selector{}, 0, errs.New(errs.Path, "invalid selector %q: expected an index, guid:..., name:... or boot", s)
		}
		idx, err := strconv.ParseUint(s[:n], 10, 64)
		if err != nil {
			return Selector{}, 0, errs.New(errs.Path, "invalid index selector %q: %s", s[:n], err)
		}
		return Selector{Kind: SelectorIndex, Index: idx}, n, nil
	}
}

// selectorValueLen returns how much of val belongs to a guid:/name:
// selector's value: everything up to (not including) a ']' that closes
// the enclosing bracket, or a ':' that separates it from a second
// selector.
func selectorValueLen(val string) int {
	if i := strings.IndexAny(val, ":]"); i >= 0 {
		return i
	}
	return len(val)
}

// parseFullSelector parses s as exactly one selector with nothing left
// over, used for the partition half of a "disk:partition" pair.
func parseFullSelector(s string) (Selector, error) {
	sel, n, err := scanSelector(s)
	if err != nil {
		return Selector{}, err
	}
	if n != len(s) {
		return Selector{}, errs.New(errs.Path, "unexpected trailing text %q after selector", s[n:])
	}
	return sel, nil
}

func (s Selector) String() string {
	switch s.Kind {
	case SelectorImplicit:
		return "boot"
	case SelectorIndex:
		return strconv.FormatUint(s.Index, 10)
	case SelectorGUID:
		return "guid:" + s.GUID
	case SelectorName:
		return "name:" + s.Name
	default:
		return "<invalid>"
	}
}
