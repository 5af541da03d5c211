package handover

import (
	"testing"

	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/jump"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/memsvc/hostsim"
	"github.com/hyperboot/hyper/video"
)

func withBackend(t *testing.T, pages uint64) *hostsim.Backend {
	b, err := hostsim.New(0, pages)
	if err != nil {
		t.Fatalf("hostsim.New: %v", err)
	}
	prev := memsvc.SetBackend(b)
	t.Cleanup(func() {
		memsvc.SetBackend(prev)
		b.Close()
	})
	return b
}

func withSimulatedJumper(t *testing.T) *jump.Simulated {
	sim := &jump.Simulated{}
	prev := jump.SetJumper(sim)
	t.Cleanup(func() { jump.SetJumper(prev) })
	return sim
}

func lowHalfKernel() elfload.BinaryInfo {
	return elfload.BinaryInfo{
		PhysicalBase: 0x200000, PhysicalCeiling: 0x201000,
		VirtualBase: 0x200000, VirtualCeiling: 0x201000,
		Entrypoint: 0x200000,
		Bitness:    64,
	}
}

func TestBuildWritesAttributeArray(t *testing.T) {
	withBackend(t, 4096)

	modAddr := memsvc.AllocateCriticalPagesWithType(1, memsvc.TypeModule)
	stackAddr := memsvc.AllocateCriticalPagesWithType(4, memsvc.TypeKernelStack)

	res, err := Build(Params{
		Kernel:       lowHalfKernel(),
		Modules:      []Module{{Name: "initrd", PhysicalAddress: modAddr, Length: memsvc.PageSize}},
		CommandLine:  "console=ttyS0",
		StackAddress: stackAddr,
		PlatformType: PlatformBIOS,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.AttributeArrayAddress == 0 {
		t.Fatal("AttributeArrayAddress is zero")
	}

	raw := memsvc.Bytes(res.AttributeArrayAddress, 8)
	if raw == nil {
		t.Fatal("attribute array address is not addressable")
	}
	count := uint32(raw[4]) | uint32(raw[5])<<8 | uint32(raw[6])<<16 | uint32(raw[7])<<24
	// platform + kernel + module + cmdline + memory-map, no framebuffer
	if count != 5 {
		t.Fatalf("attribute_count = %d; want 5", count)
	}
}

func TestBuildSealsAllocator(t *testing.T) {
	withBackend(t, 4096)

	if _, err := Build(Params{Kernel: lowHalfKernel(), PlatformType: PlatformBIOS}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	prevHalt := errs.Halt
	defer func() { errs.Halt = prevHalt }()
	halted := false
	errs.Halt = func() { halted = true }

	memsvc.AllocatePages(1)

	if !halted {
		t.Fatal("allocating after Build: want errs.Halt to be called")
	}
}

func TestJumpDispatches64Bit(t *testing.T) {
	withBackend(t, 4096)
	sim := withSimulatedJumper(t)

	res, err := Build(Params{
		Kernel:         lowHalfKernel(),
		StackAddress:   0x300000,
		PlatformType:   PlatformBIOS,
		HasFramebuffer: true,
		Framebuffer: video.Framebuffer{
			Width: 1024, Height: 768, Bpp: 32, Format: video.FormatRGBA,
			PhysicalAddress: 0x400000,
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res.Jump()

	last, ok := sim.Last64()
	if !ok {
		t.Fatal("Jump did not call Jump64")
	}
	if last.Entrypoint != lowHalfKernel().Entrypoint {
		t.Fatalf("entrypoint = %#x; want %#x", last.Entrypoint, lowHalfKernel().Entrypoint)
	}
	if last.Magic != Magic64 {
		t.Fatalf("magic = %#x; want %#x", last.Magic, Magic64)
	}
}
