// Package handover builds the boot protocol's attribute array, takes
// the firmware memory-map snapshot, and performs the architecture jump
// into the kernel (spec §4.7). It is the loader's critical section:
// everything here runs after every other allocation the boot has made,
// and nothing may allocate again once the snapshot commits.
//
// Grounded on build_attribute_array/ultra_protocol_load in
// original_source/loader/protocols/ultra.c, field for field.
package handover

import (
	"bytes"

	"github.com/lunixbochs/struc"

	"github.com/hyperboot/hyper/console"
	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/jump"
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/paging"
	"github.com/hyperboot/hyper/video"
)

// maxStabilizeRetries bounds the memory-map sizing loop (spec §9 open
// question: the spec leaves the retry count unspecified, risking an
// infinite loop under pathological allocator behavior). Each retry
// only happens because the previous allocation itself grew the map by
// one entry, so in practice this converges in one or two iterations.
const maxStabilizeRetries = 16

// Module is one loaded module's attribute-array entry.
type Module struct {
	Name            string
	PhysicalAddress uint64
	Length          uint64
}

// Params is everything the attribute array builder needs, gathered by
// the boot orchestration from the earlier pipeline stages.
type Params struct {
	Kernel      elfload.BinaryInfo
	PageTable   paging.Table // zero value if Kernel.Bitness == 32
	Modules     []Module
	CommandLine string

	Framebuffer    video.Framebuffer
	HasFramebuffer bool

	StackAddress uint64

	PlatformType uint32
}

// Result is the outcome of a successful Build: enough to perform the
// jump, plus the addresses actually written into the array (after any
// higher-half rebasing) for diagnostics.
type Result struct {
	AttributeArrayAddress uint64
	MemoryMapKey          uint64

	kernel       elfload.BinaryInfo
	pageTable    uint64
	stackAddress uint64
}

func alignUp8(n int) int { return (n + 7) &^ 7 }

// cmdlineRecordSize is the command-line attribute's total size
// including its header, rounded up to 8 bytes, per spec §4.7 step 3.
// An empty command line still gets a bare header with no text.
func cmdlineRecordSize(cmdline string) int {
	if cmdline == "" {
		return sizeofAttributeHeader
	}
	return alignUp8(sizeofAttributeHeader + len(cmdline))
}

func staticBytesNeeded(p Params) int {
	n := sizeofArrayHeader
	n += sizeofPlatformInfo
	n += sizeofKernelInfo
	n += len(p.Modules) * sizeofModuleInfo
	n += cmdlineRecordSize(p.CommandLine)
	if p.HasFramebuffer {
		n += sizeofFramebuffer
	}
	n += sizeofAttributeHeader // memory-map record header; entries appended during the finalize query
	return n
}

// reservedMapBytes queries the backend's current memory map size
// without holding onto the snapshot — a fresh CopyMap on every call,
// matching original_source's copy_map(NULL, 0, &key) size probe.
func reservedMapBytes() int {
	entries, _ := memsvc.CopyMap()
	return len(entries) * sizeofMemoryMapEntry
}

// stabilizeAndAllocate implements spec §4.7 step 2: grow the
// reservation by one entry's worth of headroom, allocate, and check
// whether the map grew past what was reserved. Termination is
// guaranteed because each failed attempt only happens because the
// previous allocation itself grew the map, and the map can only grow
// by a bounded number of entries per allocation.
func stabilizeAndAllocate(staticBytes int) (addr uint64, totalBytes int, err error) {
	for i := 0; i < maxStabilizeRetries; i++ {
		reserved := reservedMapBytes() + sizeofMemoryMapEntry
		total := staticBytes + reserved

		addr := memsvc.AllocateCriticalBytes(uint64(total))

		if reservedMapBytes() <= reserved {
			return addr, total, nil
		}
		memsvc.FreeBytes(addr, uint64(total))
	}
	return 0, 0, errs.New(errs.Resource, "firmware memory map did not stabilize after %d attempts", maxStabilizeRetries)
}

// higherHalf reports whether the kernel's entrypoint lives above
// HIGHER_HALF_BASE, the threshold at which kernel-visible physical
// addresses must be rebased into the direct map (spec §4.7 step 5).
func higherHalf(kernel elfload.BinaryInfo) bool {
	return kernel.Bitness == 64 && kernel.Entrypoint >= elfload.HigherHalfBase
}

func rebase(addr uint64, higher bool) uint64 {
	if !higher {
		return addr
	}
	return addr + paging.DirectMapBase
}

// Build assembles the attribute array, takes the memory-map snapshot,
// and seals the allocator, all per spec §4.7 steps 1-6. Build does not
// jump; call Result.Jump once every other "HandoverArmed" precondition
// (bootstate) is satisfied.
func Build(p Params) (Result, error) {
	staticBytes := staticBytesNeeded(p)

	addr, totalBytes, err := stabilizeAndAllocate(staticBytes)
	if err != nil {
		return Result{}, err
	}

	dest := memsvc.Bytes(addr, uint64(totalBytes))
	if dest == nil {
		return Result{}, errs.New(errs.Resource, "backend has no addressable memory for the attribute array at %#x", addr)
	}
	for i := range dest {
		dest[i] = 0
	}

	higher := higherHalf(p.Kernel)

	var buf bytes.Buffer
	// platform + kernel + modules + command-line (always present, even
	// empty) + memory-map, plus framebuffer if one was set.
	count := uint32(3 + len(p.Modules) + 1)
	if p.HasFramebuffer {
		count++
	}

	if err := struc.Pack(&buf, &arrayHeader{AttributeCount: count}); err != nil {
		return Result{}, errs.Wrap(err, "failed to pack attribute array header")
	}

	platform := PlatformInfoAttribute{
		Header:       AttributeHeader{Type: AttributePlatformInfo, SizeInBytes: sizeofPlatformInfo},
		PlatformType: p.PlatformType,
		LoaderMajor:  0,
		LoaderMinor:  1,
		LoaderName:   loaderName,
	}
	if err := struc.Pack(&buf, &platform); err != nil {
		return Result{}, errs.Wrap(err, "failed to pack platform-info attribute")
	}

	kernelInfo := KernelInfoAttribute{
		Header:          AttributeHeader{Type: AttributeKernelInfo, SizeInBytes: sizeofKernelInfo},
		Entrypoint:      p.Kernel.Entrypoint,
		VirtualBase:     p.Kernel.VirtualBase,
		VirtualCeiling:  p.Kernel.VirtualCeiling,
		PhysicalBase:    p.Kernel.PhysicalBase,
		PhysicalCeiling: p.Kernel.PhysicalCeiling,
		Bitness:         uint8(p.Kernel.Bitness),
	}
	if err := struc.Pack(&buf, &kernelInfo); err != nil {
		return Result{}, errs.Wrap(err, "failed to pack kernel-info attribute")
	}

	for _, m := range p.Modules {
		mod := ModuleInfoAttribute{
			Header:          AttributeHeader{Type: AttributeModuleInfo, SizeInBytes: sizeofModuleInfo},
			PhysicalAddress: m.PhysicalAddress,
			Length:          m.Length,
			Name:            m.Name,
		}
		if err := struc.Pack(&buf, &mod); err != nil {
			return Result{}, errs.Wrap(err, "failed to pack module-info attribute for %q", m.Name)
		}
	}

	cmdlineSize := cmdlineRecordSize(p.CommandLine)
	if err := struc.Pack(&buf, &AttributeHeader{Type: AttributeCommandLine, SizeInBytes: uint32(cmdlineSize)}); err != nil {
		return Result{}, errs.Wrap(err, "failed to pack command-line header")
	}
	buf.WriteString(p.CommandLine)
	buf.Write(make([]byte, cmdlineSize-sizeofAttributeHeader-len(p.CommandLine)))

	if p.HasFramebuffer {
		fb := FramebufferAttribute{
			Header:          AttributeHeader{Type: AttributeFramebufferInfo, SizeInBytes: sizeofFramebuffer},
			PhysicalAddress: rebase(p.Framebuffer.PhysicalAddress, higher),
			Width:           p.Framebuffer.Width,
			Height:          p.Framebuffer.Height,
			Pitch:           p.Framebuffer.Pitch,
			Bpp:             p.Framebuffer.Bpp,
			Format:          uint32(p.Framebuffer.Format),
		}
		if err := struc.Pack(&buf, &fb); err != nil {
			return Result{}, errs.Wrap(err, "failed to pack framebuffer attribute")
		}
	}

	memoryMapHeaderOffset := buf.Len()
	if err := struc.Pack(&buf, &AttributeHeader{Type: AttributeMemoryMap, SizeInBytes: sizeofAttributeHeader}); err != nil {
		return Result{}, errs.Wrap(err, "failed to pack memory-map header")
	}

	copy(dest, buf.Bytes())

	// Finalize the memory map (spec §4.7 step 4): this is the last
	// query the loader is allowed to make before the snapshot becomes
	// authoritative, so its result is what gets written and sealed.
	entries, key := memsvc.CopyMap()
	entriesOffset := buf.Len()
	if entriesOffset+len(entries)*sizeofMemoryMapEntry > totalBytes {
		return Result{}, errs.New(errs.Resource, "memory map grew past its reservation during attribute array finalize")
	}

	var entriesBuf bytes.Buffer
	for _, e := range entries {
		wire := wireMemoryMapEntry{PhysicalAddress: e.PhysicalAddress, SizeInBytes: e.SizeInBytes, Type: uint32(e.Type)}
		if err := struc.Pack(&entriesBuf, &wire); err != nil {
			return Result{}, errs.Wrap(err, "failed to pack memory-map entry")
		}
	}
	copy(dest[entriesOffset:], entriesBuf.Bytes())

	mapRecordSize := sizeofAttributeHeader + entriesBuf.Len()
	setAttributeHeaderSize(dest[memoryMapHeaderOffset:], uint32(mapRecordSize))

	memsvc.Seal()
	console.Info("memory map snapshot taken (key %#x), allocator sealed", key)

	if !memsvc.Handover(key) {
		return Result{}, errs.New(errs.Protocol, "firmware rejected handover for key %#x", key)
	}

	return Result{
		AttributeArrayAddress: rebase(addr, higher),
		MemoryMapKey:          key,
		kernel:                p.Kernel,
		pageTable:             p.PageTable.Root,
		stackAddress:          rebase(p.StackAddress, higher),
	}, nil
}

// setAttributeHeaderSize patches the SizeInBytes field of the
// AttributeHeader at the start of b in place, avoiding a second pass
// through struc for a single 4-byte field.
func setAttributeHeaderSize(b []byte, size uint32) {
	b[4] = byte(size)
	b[5] = byte(size >> 8)
	b[6] = byte(size >> 16)
	b[7] = byte(size >> 24)
}

// Jump performs the architecture-specific far jump or long-mode switch
// into the kernel (spec §4.7 step 7), dispatching on the bitness Build
// was called with. On real hardware it does not return; with
// jump.Simulated installed it records the target and returns.
func (r Result) Jump() {
	if r.kernel.Bitness == 32 {
		jump.Jump32(jump.Target32{
			Entrypoint:     uint32(r.kernel.Entrypoint),
			Stack:          uint32(r.stackAddress),
			AttributeArray: uint32(r.AttributeArrayAddress),
			Magic:          uint32(Magic32),
		})
		return
	}
	jump.Jump64(jump.Target64{
		Entrypoint:     r.kernel.Entrypoint,
		Stack:          r.stackAddress,
		PageTable:      r.pageTable,
		AttributeArray: r.AttributeArrayAddress,
		Magic:          Magic64,
	})
}
