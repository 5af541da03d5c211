// Package bootstate tracks the loader's progress through the linear
// sequence of milestones spec §4.8 defines. It exists so the boot
// orchestration can assert its own ordering invariants (paging before
// the attribute array, the attribute array before handover, handover
// before the jump) instead of trusting call-site discipline alone.
package bootstate

import (
	"github.com/hyperboot/hyper/console"
	"github.com/hyperboot/hyper/errs"
)

// State is one point in the boot's linear progress (spec §4.8). Every
// transition moves strictly forward; there is no going back and no
// skipping ahead.
type State int

const (
	Init State = iota
	ConfigParsed
	EntrySelected
	KernelLoaded
	ModulesLoaded
	PagingBuilt
	StackReady
	VideoSet
	ArrayBuilt
	HandoverArmed
	Jumped
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case ConfigParsed:
		return "ConfigParsed"
	case EntrySelected:
		return "EntrySelected"
	case KernelLoaded:
		return "KernelLoaded"
	case ModulesLoaded:
		return "ModulesLoaded"
	case PagingBuilt:
		return "PagingBuilt"
	case StackReady:
		return "StackReady"
	case VideoSet:
		return "VideoSet"
	case ArrayBuilt:
		return "ArrayBuilt"
	case HandoverArmed:
		return "HandoverArmed"
	case Jumped:
		return "Jumped"
	default:
		return "Unknown"
	}
}

// Machine is the current boot's progress. Its zero value starts at
// Init, matching a freshly entered loader.
type Machine struct {
	current State

	// Observer, if set, is called after every successful Advance with
	// the new state -- cmd/hypermon uses it to stream the state
	// machine's progress into a live view without polling.
	Observer func(State)
}

// New returns a Machine at Init.
func New() *Machine { return &Machine{current: Init} }

// Current returns the machine's current state.
func (m *Machine) Current() State { return m.current }

// Advance moves the machine to next, halting the loader if next isn't
// exactly one step past the current state — every transition in spec
// §4.8 is linear, so skipping or repeating a state means the
// orchestration itself has a bug, not a recoverable runtime condition.
func (m *Machine) Advance(next State) {
	if next != m.current+1 {
		console.Error("invalid boot state transition %s -> %s", m.current, next)
		errs.Halt()
		return
	}
	m.current = next
	if m.Observer != nil {
		m.Observer(next)
	}
}

// Require halts the loader if the machine hasn't yet reached at, for
// code that depends on an earlier stage having completed before it
// runs.
func (m *Machine) Require(at State) {
	if m.current < at {
		console.Error("required boot state %s not reached (currently %s)", at, m.current)
		errs.Halt()
	}
}
