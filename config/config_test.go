package config

import (
	"testing"

	"github.com/hyperboot/hyper/errs"
)

func TestParseSimpleGlobal(t *testing.T) {
	cfg, err := Parse(`timeout = 5
verbose = true
name = "hyper"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if u, ok, err := cfg.GetUnsigned(GlobalScope, "timeout"); err != nil || !ok || u != 5 {
		t.Errorf("timeout = %d, %v, %v; want 5, true, nil", u, ok, err)
	}
	if b, ok, err := cfg.GetBool(GlobalScope, "verbose"); err != nil || !ok || !b {
		t.Errorf("verbose = %v, %v, %v; want true, true, nil", b, ok, err)
	}
	if s, ok, err := cfg.GetString(GlobalScope, "name"); err != nil || !ok || s != "hyper" {
		t.Errorf("name = %q, %v, %v; want hyper, true, nil", s, ok, err)
	}
}

func TestParseLoadableEntry(t *testing.T) {
	cfg, err := Parse(`[hello]
binary = "boot:/kernel.elf"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	names := cfg.LoadableEntries()
	if len(names) != 1 || names[0] != "hello" {
		t.Fatalf("LoadableEntries = %v; want [hello]", names)
	}

	scope, ok := cfg.LoadableEntry("hello")
	if !ok {
		t.Fatal("LoadableEntry(hello) not found")
	}
	path, err := cfg.MandatoryGetString(scope, "binary")
	if err != nil {
		t.Fatalf("MandatoryGetString: %v", err)
	}
	if path != "boot:/kernel.elf" {
		t.Errorf("binary = %q; want boot:/kernel.elf", path)
	}
}

func TestParseNestedObject(t *testing.T) {
	cfg, err := Parse(`video = {
	width = 1024
	height = 768
}
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	scope, ok, err := cfg.GetObject(GlobalScope, "video")
	if err != nil || !ok {
		t.Fatalf("GetObject(video) = %v, %v, %v", scope, ok, err)
	}
	w, ok, err := cfg.GetUnsigned(scope, "width")
	if err != nil || !ok || w != 1024 {
		t.Errorf("width = %d, %v, %v; want 1024, true, nil", w, ok, err)
	}
}

func TestNegativeAndHexLiterals(t *testing.T) {
	cfg, err := Parse(`offset = -42
flags = 0xFF
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if i, ok, err := cfg.GetSigned(GlobalScope, "offset"); err != nil || !ok || i != -42 {
		t.Errorf("offset = %d, %v, %v; want -42, true, nil", i, ok, err)
	}
	if u, ok, err := cfg.GetUnsigned(GlobalScope, "flags"); err != nil || !ok || u != 0xFF {
		t.Errorf("flags = %d, %v, %v; want 255, true, nil", u, ok, err)
	}
}

func TestUniqueLookupRejectsDuplicateKey(t *testing.T) {
	cfg, err := Parse(`binary = "a"
binary = "b"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok, err := cfg.GetString(GlobalScope, "binary"); err == nil || ok {
		t.Fatalf("GetString on duplicate key = %v, %v; want an error", ok, err)
	}
}

func TestFirstAndNextOverDuplicateKeys(t *testing.T) {
	cfg, err := Parse(`module = "a"
module = "b"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v, cur, ok, err := cfg.GetFirstOneOf(GlobalScope, "module", TypeString)
	if err != nil || !ok || v.String != "a" {
		t.Fatalf("GetFirstOneOf = %q, %v, %v; want a, true, nil", v.String, ok, err)
	}

	v, cur, ok, err = cfg.GetNextOneOf(cur, TypeString, false)
	if err != nil || !ok || v.String != "b" {
		t.Fatalf("GetNextOneOf (2nd) = %q, %v, %v; want b, true, nil", v.String, ok, err)
	}

	_, _, ok, err = cfg.GetNextOneOf(cur, TypeString, false)
	if err != nil || ok {
		t.Fatalf("GetNextOneOf (3rd) = %v, %v; want false, nil", ok, err)
	}
}

func TestMandatoryGetMissingIsError(t *testing.T) {
	cfg, err := Parse(``)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := cfg.MandatoryGetString(GlobalScope, "binary"); err == nil {
		t.Fatal("MandatoryGetString on missing key: want error, got nil")
	}
}

func TestTypeMismatchIsError(t *testing.T) {
	cfg, err := Parse(`binary = 5`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok, err := cfg.GetString(GlobalScope, "binary"); err == nil || ok {
		t.Fatalf("GetString on unsigned value = %v, %v; want a type-mismatch error", ok, err)
	}
}

func TestSyntaxErrorIsConfigSyntaxKind(t *testing.T) {
	_, err := Parse("timeout = \n")
	if err == nil {
		t.Fatal("Parse: want a syntax error, got nil")
	}
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.ConfigSyntax {
		t.Fatalf("As(err) = %v, %v; want ConfigSyntax", e, ok)
	}
}
