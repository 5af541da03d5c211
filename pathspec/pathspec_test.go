package pathspec

import "testing"

func TestParseImplicit(t *testing.T) {
	p, err := Parse("/boot/kernel.elf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Disk.Kind != SelectorImplicit || p.Partition.Kind != SelectorImplicit {
		t.Fatalf("Parse(%q) = %+v; want implicit disk and partition", "/boot/kernel.elf", p)
	}
	if p.Path != "/boot/kernel.elf" {
		t.Errorf("Path = %q; want /boot/kernel.elf", p.Path)
	}
}

func TestParseSinglePartitionSelector(t *testing.T) {
	p, err := Parse("[1]/kernel.elf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Disk.Kind != SelectorImplicit {
		t.Errorf("Disk.Kind = %v; want SelectorImplicit", p.Disk.Kind)
	}
	if p.Partition.Kind != SelectorIndex || p.Partition.Index != 1 {
		t.Errorf("Partition = %+v; want index 1", p.Partition)
	}
}

func TestParseDiskAndPartitionSelector(t *testing.T) {
	p, err := Parse("[guid:11111111-2222-3333-4444-555555555555:name:ESP]/kernel.elf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Disk.Kind != SelectorGUID || p.Disk.GUID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("Disk = %+v; want guid", p.Disk)
	}
	if p.Partition.Kind != SelectorName || p.Partition.Name != "ESP" {
		t.Errorf("Partition = %+v; want name:ESP", p.Partition)
	}
}

func TestParseBootKeyword(t *testing.T) {
	p, err := Parse("[boot:2]/kernel.elf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Disk.Kind != SelectorImplicit {
		t.Errorf("Disk = %+v; want implicit", p.Disk)
	}
	if p.Partition.Kind != SelectorIndex || p.Partition.Index != 2 {
		t.Errorf("Partition = %+v; want index 2", p.Partition)
	}
}

func TestParseRoundTripsThroughString(t *testing.T) {
	for _, s := range []string{
		"/a/b/c",
		"[3]/kernel.elf",
		"[guid:aaaa:name:root]/x",
	} {
		p, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := p.String(); got != s {
			t.Errorf("Parse(%q).String() = %q; want %q", s, got, s)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"kernel.elf",
		"[1",
		"[1]kernel.elf",
		"[bogus:1]/x",
	} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): want error, got nil", s)
		}
	}
}
