package vfs

import "testing"

func TestMemFSWriteThenRead(t *testing.T) {
	fs := NewMemFS()
	if err := fs.WriteFile("out.bin", []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := fs.ReadFile("out.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 3 || data[0] != 1 {
		t.Fatalf("data = %v", data)
	}
}

func TestMemFSReadMissingFile(t *testing.T) {
	fs := NewMemFS()
	if _, err := fs.ReadFile("missing.asm"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestMemFSResolveRelative(t *testing.T) {
	fs := NewMemFS()
	got := fs.Resolve("src/main.asm", "defs.inc")
	if got != "src/defs.inc" {
		t.Fatalf("Resolve = %q, want src/defs.inc", got)
	}
}

func TestMemFSResolveAbsolute(t *testing.T) {
	fs := NewMemFS()
	got := fs.Resolve("src/main.asm", "/abs/defs.inc")
	if got != "/abs/defs.inc" {
		t.Fatalf("Resolve = %q, want unchanged absolute path", got)
	}
}

func TestOSFSResolveFallsBackToBaseDirCandidate(t *testing.T) {
	fs := OSFS{}
	got := fs.Resolve("/tmp/proj/main.asm", "missing.inc")
	if got != "/tmp/proj/missing.inc" {
		t.Fatalf("Resolve = %q, want /tmp/proj/missing.inc", got)
	}
}
