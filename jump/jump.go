// Package jump marshals the handover builder's final call into the
// kernel (spec §4.7 step 7) into the two argument shapes
// original_source/Loader/Handover.h declares —
// kernel_handover32(entrypoint, esp, arg0, arg1) and
// kernel_handover64(entrypoint, rsp, cr3, arg0, arg1) — and dispatches
// to whichever architecture-specific entry stub is installed.
//
// The stub itself (the far jump / long-mode switch) is an external
// collaborator per spec §1's scope: a real build links a
// architecture-specific assembly routine behind Jumper; this package
// only owns getting the right values into the right registers/stack
// slots, the same per-architecture package split the teacher uses for
// arch/x86 and arch/x86_64.
package jump

// Target32 is the argument set for the 32-bit far jump: ESP is loaded
// with Stack, and (AttributeArray, Magic) are left where the 32-bit
// boot protocol's calling convention expects them.
type Target32 struct {
	Entrypoint     uint32
	Stack          uint32
	AttributeArray uint32
	Magic          uint32
}

// Target64 is the argument set for the 64-bit jump: CR3 is loaded with
// PageTable before the jump, switching to long mode first if the CPU
// isn't already in it.
type Target64 struct {
	Entrypoint     uint64
	Stack          uint64
	PageTable      uint64
	AttributeArray uint64
	Magic          uint64
}

// Jumper performs the irreversible transfer of control to the kernel.
// Neither method returns on real hardware; implementations used in
// hosted/test builds (Simulated) return normally instead, for tests
// that need to inspect what would have been jumped to.
type Jumper interface {
	Jump32(Target32)
	Jump64(Target64)
}

var current Jumper = &Simulated{}

// SetJumper installs j as the process-wide jumper, returning the
// previous one.
func SetJumper(j Jumper) Jumper {
	prev := current
	current = j
	return prev
}

// Jump32 dispatches to the installed Jumper.
func Jump32(t Target32) { current.Jump32(t) }

// Jump64 dispatches to the installed Jumper.
func Jump64(t Target64) { current.Jump64(t) }
