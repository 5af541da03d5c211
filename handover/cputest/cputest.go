// Package cputest drives the page table and jump arguments handover.Build
// produces through an emulated CPU, the same way go/cpu/unicorn/unicorn.go
// wraps github.com/unicorn-engine/unicorn for usercorn's own execution
// loop. It exists so handover's tests can assert the kernel actually
// receives what it expects in registers, not just that the Go structs
// that would carry those values are well formed.
package cputest

import (
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/hyperboot/hyper/jump"
	"github.com/hyperboot/hyper/memsvc/hostsim"
)

// Result is the register state the emulated CPU ends up in after
// running from the handover entrypoint for CodeLen bytes.
type Result struct {
	RAX, RBX, RCX, RDX uint64
	RDI, RSI, RSP, RIP uint64
}

// CPUJumper is a jump.Jumper that actually boots the emulated CPU
// instead of recording its arguments (jump.Simulated does the latter).
// Only the 64-bit path is implemented: the boot protocol's 32-bit far
// jump additionally requires switching the emulated CPU's descriptor
// tables, which is out of scope for what this harness needs to prove.
type CPUJumper struct {
	// Backend is the hostsim arena the handover builder allocated
	// from; its bytes become the emulated CPU's guest memory.
	Backend *hostsim.Backend
	// ArenaBase/ArenaSize must match the values hostsim.New was
	// called with.
	ArenaBase, ArenaSize uint64
	// CodeLen bounds how many bytes past the entrypoint to execute
	// before stopping, since there is no hlt-detection here.
	CodeLen uint64

	Result Result
	Err    error
}

func (j *CPUJumper) Jump32(jump.Target32) {
	j.Err = errors.New("cputest: 32-bit handover emulation is not implemented")
}

func (j *CPUJumper) Jump64(t jump.Target64) {
	j.Result, j.Err = j.run(t)
}

func (j *CPUJumper) run(t jump.Target64) (Result, error) {
	u, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return Result{}, errors.Wrap(err, "NewUnicorn")
	}
	defer u.Close()

	if err := u.MemMap(j.ArenaBase, j.ArenaSize); err != nil {
		return Result{}, errors.Wrap(err, "MemMap")
	}
	data := j.Backend.Bytes(j.ArenaBase, j.ArenaSize)
	if data == nil {
		return Result{}, errors.New("cputest: arena bytes not addressable")
	}
	if err := u.MemWrite(j.ArenaBase, data); err != nil {
		return Result{}, errors.Wrap(err, "MemWrite")
	}

	// RDI/RSI carry (attribute_array_address, magic) — kernel_handover64's
	// arg0/arg1 per original_source/loader/handover.h, placed per the
	// System V AMD64 calling convention the stub hands off with.
	if err := u.RegWrite(uc.X86_REG_RSP, t.Stack); err != nil {
		return Result{}, err
	}
	if err := u.RegWrite(uc.X86_REG_RDI, t.AttributeArray); err != nil {
		return Result{}, err
	}
	if err := u.RegWrite(uc.X86_REG_RSI, t.Magic); err != nil {
		return Result{}, err
	}

	if err := u.Start(t.Entrypoint, t.Entrypoint+j.CodeLen); err != nil {
		return Result{}, errors.Wrap(err, "Start")
	}

	var res Result
	for _, r := range []struct {
		reg int
		out *uint64
	}{
		{uc.X86_REG_RAX, &res.RAX}, {uc.X86_REG_RBX, &res.RBX},
		{uc.X86_REG_RCX, &res.RCX}, {uc.X86_REG_RDX, &res.RDX},
		{uc.X86_REG_RDI, &res.RDI}, {uc.X86_REG_RSI, &res.RSI},
		{uc.X86_REG_RSP, &res.RSP}, {uc.X86_REG_RIP, &res.RIP},
	} {
		v, err := u.RegRead(r.reg)
		if err != nil {
			return Result{}, err
		}
		*r.out = v
	}
	return res, nil
}
