package trace

import (
	cs "github.com/lunixbochs/capstr"

	"github.com/hyperboot/hyper/bootstate"
	"github.com/hyperboot/hyper/memsvc"
)

// instruction is the subset of models.Ins (go/models/ins.go in the
// teacher) trace needs: capstr's disassembled instruction type
// satisfies this directly, the same structural fit cpu/capstr.go relies
// on when it hands capstr results back as []models.Ins.
type instruction interface {
	Addr() uint64
	Mnemonic() string
	OpStr() string
}

func archMode(bitness int) (int, int) {
	if bitness == 64 {
		return cs.ARCH_X86, cs.MODE_64
	}
	return cs.ARCH_X86, cs.MODE_32
}

// DisassembleEntrypoint logs the first few instructions at a loaded
// kernel's entrypoint, the way cpu/capstr.go's Capstr.Dis disassembles
// on demand rather than ahead of time. It is purely diagnostic
// (spec §4.4 doesn't require it) and any failure just logs a warning
// instead of halting — a kernel that doesn't disassemble cleanly under
// x86 rules may still be a perfectly valid boot target for an
// architecture this loader build doesn't actually police here.
func (l *Log) DisassembleEntrypoint(bitness int, entrypoint uint64, count int) {
	mem := memsvc.Bytes(entrypoint, 64)
	if mem == nil {
		l.Note(bootstate.KernelLoaded, "entrypoint %#x: no addressable memory to disassemble", entrypoint)
		return
	}

	arch, mode := archMode(bitness)
	engine, err := cs.New(arch, mode)
	if err != nil {
		l.Note(bootstate.KernelLoaded, "entrypoint %#x: disassembler unavailable: %s", entrypoint, err)
		return
	}

	dis, err := engine.Dis(mem, entrypoint, count)
	if err != nil {
		l.Note(bootstate.KernelLoaded, "entrypoint %#x: disassembly failed: %s", entrypoint, err)
		return
	}
	for _, d := range dis {
		ins := instruction(d)
		l.Note(bootstate.KernelLoaded, "  %#x: %s %s", ins.Addr(), ins.Mnemonic(), ins.OpStr())
	}
}
