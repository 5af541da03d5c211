package elfload

import (
	"testing"

	"github.com/hyperboot/hyper/elfload/elftest"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/memsvc/hostsim"
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

func TestBitness(t *testing.T) {
	data32, err := elftest.Build(elftest.Options{Bitness: 32, VAddr: 0x100000, Asm: "nop"})
	if err != nil {
		t.Fatalf("build 32: %v", err)
	}
	if got := Bitness(data32); got != 32 {
		t.Fatalf("Bitness(32-bit) = %d; want 32", got)
	}

	data64, err := elftest.Build(elftest.Options{Bitness: 64, VAddr: HigherHalfBase + 0x100000, Asm: "nop"})
	if err != nil {
		t.Fatalf("build 64: %v", err)
	}
	if got := Bitness(data64); got != 64 {
		t.Fatalf("Bitness(64-bit) = %d; want 64", got)
	}

	if got := Bitness([]byte("short")); got != 0 {
		t.Fatalf("Bitness(short) = %d; want 0", got)
	}
}

func TestLoadFixed32(t *testing.T) {
	withBackend(t, 512)

	data, err := elftest.Build(elftest.Options{Bitness: 32, VAddr: 0x100000, PAddr: 0x100000, Asm: "nop;nop;nop;nop"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	info, err := Load(data, false, memsvc.TypeKernelBinary)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.PhysicalBase != 0x100000 {
		t.Errorf("PhysicalBase = %#x; want 0x100000", info.PhysicalBase)
	}
	if info.VirtualBase != 0x100000 {
		t.Errorf("VirtualBase = %#x; want 0x100000", info.VirtualBase)
	}
	if info.Bitness != 32 {
		t.Errorf("Bitness = %d; want 32", info.Bitness)
	}
	if info.PhysicalCeiling != 0x101000 {
		t.Errorf("PhysicalCeiling = %#x; want 0x101000 (one page)", info.PhysicalCeiling)
	}
}

func TestLoadAllocateAnywhere64(t *testing.T) {
	withBackend(t, 1024)

	vaddr := HigherHalfBase + 0x100000
	data, err := elftest.Build(elftest.Options{Bitness: 64, VAddr: vaddr, Asm: "nop;nop"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	info, err := Load(data, true, memsvc.TypeKernelBinary)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.VirtualBase != vaddr&^0xFFF {
		t.Errorf("VirtualBase = %#x; want %#x", info.VirtualBase, vaddr&^0xFFF)
	}
	if info.PhysicalBase == info.VirtualBase {
		t.Errorf("allocate-anywhere: PhysicalBase should differ from VirtualBase, both %#x", info.PhysicalBase)
	}
	if info.KernelRangeIsDirectMap {
		t.Errorf("allocate-anywhere: KernelRangeIsDirectMap should be false")
	}
}

// TestLoadFixedHigherHalf64 covers spec §8 scenario 2: a 64-bit kernel
// linked at a higher-half virtual address with allocate-anywhere=false.
// The fixed-load path must translate the higher-half vaddr down to its
// physical load target (original_source/loader/elf/elf.c:211-218)
// instead of treating the virtual address as physical.
func TestLoadFixedHigherHalf64(t *testing.T) {
	withBackend(t, 1024)

	const physBase = 0x100000
	vaddr := HigherHalfBase + physBase
	data, err := elftest.Build(elftest.Options{Bitness: 64, VAddr: vaddr, PAddr: physBase, Asm: "nop;nop;nop;nop"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	info, err := Load(data, false, memsvc.TypeKernelBinary)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.PhysicalBase != physBase {
		t.Errorf("PhysicalBase = %#x; want %#x", info.PhysicalBase, uint64(physBase))
	}
	if info.VirtualBase != vaddr {
		t.Errorf("VirtualBase = %#x; want %#x", info.VirtualBase, vaddr)
	}
	if !info.KernelRangeIsDirectMap {
		t.Errorf("KernelRangeIsDirectMap = false; want true (VirtualBase == HigherHalfBase + PhysicalBase)")
	}

	got := memsvc.Bytes(physBase, 4)
	if got == nil {
		t.Fatalf("segment not loaded at translated physical address %#x", uint64(physBase))
	}
	if got[0] == 0 {
		t.Errorf("segment at %#x reads as zero; translation likely loaded it at the raw vaddr instead", uint64(physBase))
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load([]byte("not an elf, but long enough to clear the ident size check................"), false, memsvc.TypeKernelBinary); err == nil {
		t.Fatal("Load of garbage data: want error")
	}
}
