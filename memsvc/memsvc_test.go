package memsvc

import (
	"testing"

	"github.com/hyperboot/hyper/errs"
)

func TestCoerceMemoryType(t *testing.T) {
	cases := []struct {
		raw  uint32
		want MemoryType
	}{
		{0, TypeInvalid},
		{uint32(TypeNVS), TypeNVS},
		{validLoaderMemoryTypeBase + uint32(TypeLoaderReclaimable), TypeLoaderReclaimable},
		{validLoaderMemoryTypeBase + uint32(TypeLoaderPermanent), TypeLoaderPermanent},
		{100, TypeReserved},
	}
	for _, c := range cases {
		if got := CoerceMemoryType(c.raw); got != c.want {
			t.Errorf("CoerceMemoryType(%d) = %v; want %v", c.raw, got, c.want)
		}
	}
}

func TestRoundUpToPages(t *testing.T) {
	cases := []struct {
		bytes uint64
		want  uint64
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
	}
	for _, c := range cases {
		if got := RoundUpToPages(c.bytes); got != c.want {
			t.Errorf("RoundUpToPages(%d) = %d; want %d", c.bytes, got, c.want)
		}
	}
}

type fakeBackend struct {
	nextAddr    uint64
	failAt      bool
	mapEntries  []MemoryMapEntry
	handoverKey uint64
}

func (f *fakeBackend) AllocatePagesAt(address, count uint64, typ MemoryType) (uint64, bool) {
	if f.failAt {
		return 0, false
	}
	return address, true
}

func (f *fakeBackend) AllocatePages(count, upperLimit uint64, typ MemoryType, topDown TopDown) (uint64, bool) {
	addr := f.nextAddr
	f.nextAddr += count * PageSize
	return addr, true
}

func (f *fakeBackend) FreePages(address, count uint64) {}

func (f *fakeBackend) CopyMap() ([]MemoryMapEntry, uint64) { return f.mapEntries, f.handoverKey }

func (f *fakeBackend) Handover(key uint64) bool { return key == f.handoverKey }

func TestAllocatePagesUsesBackend(t *testing.T) {
	prev := SetBackend(&fakeBackend{nextAddr: 0x1000})
	defer SetBackend(prev)

	addr, ok := AllocatePages(2)
	if !ok || addr != 0x1000 {
		t.Fatalf("AllocatePages = %x, %v; want 0x1000, true", addr, ok)
	}
}

func TestSealHaltsFurtherAllocation(t *testing.T) {
	prev := SetBackend(&fakeBackend{nextAddr: 0x1000})
	defer SetBackend(prev)

	prevHalt := errs.Halt
	defer func() { errs.Halt = prevHalt }()
	halted := false
	errs.Halt = func() { halted = true }

	Seal()
	AllocatePages(1)

	if !halted {
		t.Fatal("allocating after Seal: want errs.Halt to be called")
	}
}

func TestAllocateCriticalAtHaltsOnFailure(t *testing.T) {
	prev := SetBackend(&fakeBackend{failAt: true})
	defer SetBackend(prev)

	prevHalt := errs.Halt
	defer func() { errs.Halt = prevHalt }()

	halted := false
	errs.Halt = func() { halted = true }

	AllocateCriticalPagesWithTypeAt(0x2000, 1, TypeKernelBinary)

	if !halted {
		t.Fatal("AllocateCriticalPagesWithTypeAt on failure: want errs.Halt to be called")
	}
}
