// Package video picks a video mode from a firmware-exposed
// VideoServices capability against a config-supplied constraint and
// sets it, producing the framebuffer descriptor the handover builder
// embeds (spec §4.6). Grounded on
// original_source/loader/protocols/ultra.c's video_mode_from_value and
// set_video_mode.
package video

import (
	"github.com/hyperboot/hyper/config"
	"github.com/hyperboot/hyper/errs"
)

// FramebufferFormat mirrors Protocol.h's FORMAT_* constants.
type FramebufferFormat uint32

const (
	FormatInvalid FramebufferFormat = 0
	FormatRGB     FramebufferFormat = 1
	FormatRGBA    FramebufferFormat = 2
)

// Framebuffer is the descriptor set_video_mode hands back on success,
// the payload of the protocol's FRAMEBUFFER_INFO record.
type Framebuffer struct {
	Width, Height, Pitch, Bpp uint32
	Format                    FramebufferFormat
	PhysicalAddress           uint64
}

// Mode is one entry a VideoServices backend can enumerate or set.
type Mode struct {
	ID                 uint64
	Width, Height, Bpp uint32
}

// Resolution is a native display resolution query result.
type Resolution struct{ Width, Height uint32 }

// Services is the firmware video capability (spec §4.6), implemented
// per platform in a real build; tests use a fixed in-memory slice.
type Services interface {
	QueryResolution() (Resolution, bool)
	ListModes() []Mode
	SetMode(id uint64) (Framebuffer, bool)
}

// Constraint is the video-mode config key's "constraint" field.
type Constraint int

const (
	AtLeast Constraint = iota
	Exactly
)

// Request is the decoded form of the "video-mode" config value.
// None, when set, means no mode should be selected at all.
type Request struct {
	Width, Height, Bpp uint32
	Constraint         Constraint
	None               bool
}

// DefaultRequest is what an absent key or the string "auto" resolves
// to — original_source's DEFAULT_WIDTH/HEIGHT/BPP, at-least.
var DefaultRequest = Request{Width: 1024, Height: 768, Bpp: 32, Constraint: AtLeast}

// RequestFromConfig decodes the "video-mode" key under scope, per spec
// §6: absent or "auto" yields DefaultRequest, null/"unset" yields
// Request{None: true}, and an object gives width/height/bpp/constraint
// (each optional, defaulting from DefaultRequest/AtLeast).
func RequestFromConfig(cfg *config.Config, scope config.Scope) (Request, error) {
	v, _, ok, err := cfg.GetOneOf(scope, "video-mode", config.TypeNone|config.TypeString|config.TypeObject)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return DefaultRequest, nil
	}
	if v.IsNone() {
		return Request{None: true}, nil
	}
	if v.IsString() {
		switch v.String {
		case "unset":
			return Request{None: true}, nil
		case "auto":
			return DefaultRequest, nil
		default:
			return Request{}, errs.New(errs.ConfigSemantic, "invalid value for \"video-mode\": %q", v.String)
		}
	}

	objScope := config.Scope(v.CfgOff)
	req := DefaultRequest
	if w, ok, err := cfg.GetUnsigned(objScope, "width"); err != nil {
		return Request{}, err
	} else if ok {
		req.Width = uint32(w)
	}
	if h, ok, err := cfg.GetUnsigned(objScope, "height"); err != nil {
		return Request{}, err
	} else if ok {
		req.Height = uint32(h)
	}
	if bpp, ok, err := cfg.GetUnsigned(objScope, "bpp"); err != nil {
		return Request{}, err
	} else if ok {
		req.Bpp = uint32(bpp)
	}
	if c, ok, err := cfg.GetString(objScope, "constraint"); err != nil {
		return Request{}, err
	} else if ok {
		switch c {
		case "at-least":
			req.Constraint = AtLeast
		case "exactly":
			req.Constraint = Exactly
		default:
			return Request{}, errs.New(errs.ConfigSemantic, "invalid video mode constraint %q", c)
		}
	}
	return req, nil
}

func equalsMode(m Mode, r Request) bool {
	return m.Width == r.Width && m.Height == r.Height && m.Bpp == r.Bpp
}

func greaterOrEqual(m Mode, r Request) bool {
	return m.Width >= r.Width && m.Height >= r.Height && m.Bpp >= r.Bpp
}

func lessOrEqualResolution(m Mode, native Resolution) bool {
	return m.Width <= native.Width && m.Height <= native.Height
}

// Pick selects a Mode from vs's enumerated list matching req, per spec
// §4.6/§8: Exactly returns the first exact match; AtLeast walks the
// full (source-ordered) list with no early break, keeping the last
// candidate that is >= req and <= the native resolution on width/height
// — an upper-bound, last-match-wins scan, deliberately not the first
// match, matching original_source's VM_GREATER_OR_EQUAL/VM_LESS_OR_EQUAL
// loop exactly.
func Pick(vs Services, req Request) (Mode, bool) {
	native, ok := vs.QueryResolution()
	if !ok {
		native = Resolution{Width: DefaultRequest.Width, Height: DefaultRequest.Height}
	}

	var picked Mode
	found := false
	for _, m := range vs.ListModes() {
		if req.Constraint == Exactly {
			if equalsMode(m, req) {
				return m, true
			}
			continue
		}
		if greaterOrEqual(m, req) && lessOrEqualResolution(m, native) {
			picked = m
			found = true
		}
	}
	return picked, found
}

// SetFromConfig is set_video_mode end to end: decode the request,
// return ok=false with no framebuffer if it's None, otherwise pick and
// set a mode or fail with a ResourceError.
func SetFromConfig(cfg *config.Config, scope config.Scope, vs Services) (Framebuffer, bool, error) {
	req, err := RequestFromConfig(cfg, scope)
	if err != nil {
		return Framebuffer{}, false, err
	}
	if req.None {
		return Framebuffer{}, false, nil
	}

	mode, ok := Pick(vs, req)
	if !ok {
		return Framebuffer{}, false, errs.New(errs.Resource,
			"failed to pick a video mode according to constraints (%dx%d %d bpp)", req.Width, req.Height, req.Bpp)
	}

	fb, ok := vs.SetMode(mode.ID)
	if !ok {
		return Framebuffer{}, false, errs.New(errs.Resource, "failed to set picked video mode %dx%d", mode.Width, mode.Height)
	}
	return fb, true, nil
}
