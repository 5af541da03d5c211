package handover

import (
	"testing"

	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/elfload/elftest"
	"github.com/hyperboot/hyper/handover/cputest"
	"github.com/hyperboot/hyper/jump"
	"github.com/hyperboot/hyper/memsvc"
)

// TestEndToEndJumpDeliversAttributeArrayAndMagic builds a tiny kernel
// that copies its handover arguments into RAX/RBX, runs the full
// pipeline (load, build attribute array, jump) against an emulated
// CPU, and checks the kernel actually received what the loader
// promised it.
func TestEndToEndJumpDeliversAttributeArrayAndMagic(t *testing.T) {
	b := withBackend(t, 4096)

	const loadAddr = 0x100000
	data, err := elftest.Build(elftest.Options{
		Bitness: 64,
		VAddr:   loadAddr,
		Asm:     "mov rax, rdi; mov rbx, rsi",
	})
	if err != nil {
		t.Fatalf("elftest.Build: %v", err)
	}

	bin, err := elfload.Load(data, false, memsvc.TypeKernelBinary)
	if err != nil {
		t.Fatalf("elfload.Load: %v", err)
	}

	stackAddr := memsvc.AllocateCriticalPagesWithType(4, memsvc.TypeKernelStack)

	res, err := Build(Params{
		Kernel:       bin,
		StackAddress: stackAddr,
		PlatformType: PlatformBIOS,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	cj := &cputest.CPUJumper{
		Backend:   b,
		ArenaBase: 0,
		ArenaSize: 4096 * memsvc.PageSize,
		CodeLen:   16,
	}
	prevJumper := jump.SetJumper(cj)
	t.Cleanup(func() { jump.SetJumper(prevJumper) })

	res.Jump()

	if cj.Err != nil {
		t.Fatalf("CPUJumper: %v", cj.Err)
	}
	if cj.Result.RAX != res.AttributeArrayAddress {
		t.Errorf("RAX = %#x; want attribute array address %#x", cj.Result.RAX, res.AttributeArrayAddress)
	}
	if cj.Result.RBX != Magic64 {
		t.Errorf("RBX = %#x; want magic %#x", cj.Result.RBX, Magic64)
	}
}
