// The boot orchestration glues together every package this repo builds
// around: config selects an entry, loader resolves and loads the
// kernel and its modules, paging builds the kernel's page table, video
// picks a mode, and handover composes the attribute array and performs
// the jump. It is the Go shape of original_source/loader/protocols/
// ultra.c's ultra_protocol_load, generalized to read its inputs from
// the boot config rather than being hardcoded per-protocol.
package bootrun

import (
	"github.com/hyperboot/hyper/bootstate"
	"github.com/hyperboot/hyper/config"
	"github.com/hyperboot/hyper/elfload"
	"github.com/hyperboot/hyper/errs"
	"github.com/hyperboot/hyper/fs"
	"github.com/hyperboot/hyper/handover"
	"github.com/hyperboot/hyper/loader"
	"github.com/hyperboot/hyper/paging"
	"github.com/hyperboot/hyper/trace"
	"github.com/hyperboot/hyper/video"
)

// binarySpec is the decoded form of the "binary" config key.
type binarySpec struct {
	Path             string
	AllocateAnywhere bool
}

func decodeBinary(cfg *config.Config, scope config.Scope) (binarySpec, error) {
	v, err := cfg.MandatoryGetOneOf(scope, "binary", config.TypeString|config.TypeObject)
	if err != nil {
		return binarySpec{}, err
	}
	if v.IsString() {
		return binarySpec{Path: v.String}, nil
	}
	obj := config.Scope(v.CfgOff)
	path, err := cfg.MandatoryGetString(obj, "path")
	if err != nil {
		return binarySpec{}, err
	}
	anywhere, _, err := cfg.GetBool(obj, "allocate-anywhere")
	if err != nil {
		return binarySpec{}, err
	}
	return binarySpec{Path: path, AllocateAnywhere: anywhere}, nil
}

// moduleSpec is one decoded occurrence of the repeatable "module" key.
type moduleSpec struct {
	Name, Path string
}

// decodeModules walks every "module" entry in scope in source order
// (spec §8 scenario 3), the get-first/get-next iteration config's
// lookup contract exists for.
func decodeModules(cfg *config.Config, scope config.Scope) ([]moduleSpec, error) {
	var out []moduleSpec
	unnamed := 0

	mask := config.TypeString | config.TypeObject
	v, cur, ok, err := cfg.GetFirstOneOf(scope, "module", mask)
	for ; ok; v, cur, ok, err = cfg.GetNextOneOf(cur, mask, false) {
		if err != nil {
			return nil, err
		}
		if v.IsString() {
			unnamed++
			out = append(out, moduleSpec{Name: unnamedModuleName(unnamed), Path: v.String})
			continue
		}
		obj := config.Scope(v.CfgOff)
		path, err := cfg.MandatoryGetString(obj, "path")
		if err != nil {
			return nil, err
		}
		name, hasName, err := cfg.GetFirstString(obj, "name")
		if err != nil {
			return nil, err
		}
		if !hasName {
			unnamed++
			name = unnamedModuleName(unnamed)
		}
		out = append(out, moduleSpec{Name: name, Path: path})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func unnamedModuleName(n int) string {
	return "unnamed_module" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// stackSpec is the decoded form of the "stack" config key.
type stackSpec struct {
	Size uint64 // bytes
	At   uint64 // 0 means "anywhere"
}

func decodeStack(cfg *config.Config, scope config.Scope) (stackSpec, error) {
	spec := stackSpec{Size: loader.DefaultStackSize}

	v, _, ok, err := cfg.GetOneOf(scope, "stack", config.TypeString|config.TypeObject)
	if err != nil {
		return stackSpec{}, err
	}
	if !ok || v.IsString() {
		// absent or "auto": default size, anywhere. Any other bare
		// string is meaningless for this key, mirroring video-mode's
		// "auto"/"unset" handling, but the spec only names "auto".
		return spec, nil
	}

	obj := config.Scope(v.CfgOff)
	if sizeVal, _, has, err := cfg.GetOneOf(obj, "size", config.TypeString|config.TypeUnsigned); err != nil {
		return stackSpec{}, err
	} else if has && sizeVal.IsUnsigned() {
		spec.Size = sizeVal.Unsigned
	}
	if atVal, _, has, err := cfg.GetOneOf(obj, "allocate-at", config.TypeString|config.TypeUnsigned); err != nil {
		return stackSpec{}, err
	} else if has && atVal.IsUnsigned() {
		spec.At = atVal.Unsigned
	}
	return spec, nil
}

// Inputs bundles everything the boot orchestration needs that isn't
// derivable from the config text itself: the mounted filesystems, the
// firmware video capability, and which platform type to report.
type Inputs struct {
	Table        *fs.Table
	Video        video.Services
	PlatformType uint32
}

// Boot runs one loadable entry end to end (spec §2's data flow,
// §4.8's state machine) and returns the handover.Result ready for
// Jump. Every failure is a fatal error per §7; callers hand it
// straight to errs.Fatal.
func Boot(cfgText string, entryName string, in Inputs, log *trace.Log, sm *bootstate.Machine) (handover.Result, error) {
	cfg, err := config.Parse(cfgText)
	if err != nil {
		return handover.Result{}, err
	}
	sm.Advance(bootstate.ConfigParsed)
	log.Note(bootstate.ConfigParsed, "parsed config (%d loadable entries)", len(cfg.LoadableEntries()))

	var scope config.Scope
	var name string
	if entryName != "" {
		var ok bool
		scope, ok = cfg.LoadableEntry(entryName)
		if !ok {
			return handover.Result{}, errs.New(errs.ConfigSemantic, "no such loadable entry %q", entryName)
		}
		name = entryName
	} else {
		var ok bool
		name, scope, ok = cfg.FirstLoadableEntry()
		if !ok {
			return handover.Result{}, errs.New(errs.ConfigSemantic, "no loadable entries in config")
		}
	}
	sm.Advance(bootstate.EntrySelected)
	log.Note(bootstate.EntrySelected, "selected entry %q", name)

	bin, err := decodeBinary(cfg, scope)
	if err != nil {
		return handover.Result{}, err
	}
	kernel, err := loader.Kernel(in.Table, bin.Path, bin.AllocateAnywhere)
	if err != nil {
		return handover.Result{}, err
	}
	sm.Advance(bootstate.KernelLoaded)
	log.Note(bootstate.KernelLoaded, "loaded kernel %q: phys [%#x,%#x) entry %#x",
		bin.Path, kernel.PhysicalBase, kernel.PhysicalCeiling, kernel.Entrypoint)
	log.DisassembleEntrypoint(kernel.Bitness, kernel.Entrypoint, 4)

	modSpecs, err := decodeModules(cfg, scope)
	if err != nil {
		return handover.Result{}, err
	}
	modules := make([]handover.Module, 0, len(modSpecs))
	for _, m := range modSpecs {
		addr, length, err := loader.Module(in.Table, m.Path)
		if err != nil {
			return handover.Result{}, err
		}
		modules = append(modules, handover.Module{Name: m.Name, PhysicalAddress: addr, Length: length})
	}
	sm.Advance(bootstate.ModulesLoaded)
	log.Note(bootstate.ModulesLoaded, "loaded %d modules", len(modules))

	var table paging.Table
	if kernel.Bitness == 64 {
		table, err = paging.Build(kernel)
		if err != nil {
			return handover.Result{}, err
		}
	}
	sm.Advance(bootstate.PagingBuilt)
	log.Note(bootstate.PagingBuilt, "page table root %#x", table.Root)

	stackCfg, err := decodeStack(cfg, scope)
	if err != nil {
		return handover.Result{}, err
	}
	stackTop, err := loader.Stack(stackCfg.Size, stackCfg.At)
	if err != nil {
		return handover.Result{}, err
	}
	sm.Advance(bootstate.StackReady)
	log.Note(bootstate.StackReady, "stack top %#x (%d bytes)", stackTop, stackCfg.Size)

	fb, hasFB, err := video.SetFromConfig(cfg, scope, in.Video)
	if err != nil {
		return handover.Result{}, err
	}
	sm.Advance(bootstate.VideoSet)
	if hasFB {
		log.Note(bootstate.VideoSet, "video mode set: %dx%d %dbpp", fb.Width, fb.Height, fb.Bpp)
	} else {
		log.Note(bootstate.VideoSet, "no video mode requested")
	}

	cmdline, _, err := cfg.GetFirstString(scope, "cmdline")
	if err != nil {
		return handover.Result{}, err
	}

	traceAddr, traceLen, err := log.Flush()
	if err != nil {
		return handover.Result{}, err
	}
	if traceLen > 0 {
		modules = append(modules, handover.Module{Name: "boot_trace", PhysicalAddress: traceAddr, Length: traceLen})
	}

	res, err := handover.Build(handover.Params{
		Kernel:         kernel,
		PageTable:      table,
		Modules:        modules,
		CommandLine:    cmdline,
		Framebuffer:    fb,
		HasFramebuffer: hasFB,
		StackAddress:   stackTop,
		PlatformType:   in.PlatformType,
	})
	if err != nil {
		return handover.Result{}, err
	}
	sm.Advance(bootstate.ArrayBuilt)
	sm.Advance(bootstate.HandoverArmed)

	return res, nil
}

// Jump performs the architecture jump and advances the state machine's
// final transition. It is split from Boot so callers can log the
// handover result before control irrevocably leaves this process (a
// real firmware build never returns from res.Jump(); jump.Simulated
// does, for hosted runs like this one).
func Jump(res handover.Result, sm *bootstate.Machine) {
	res.Jump()
	sm.Advance(bootstate.Jumped)
}
