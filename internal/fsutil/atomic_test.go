package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCommitReplacesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "out.bin")
	af, err := CreateAtomic(target, 0o644)
	if err != nil {
		t.Fatalf("CreateAtomic: %v", err)
	}
	if _, err := af.Write([]byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target visible before commit: %v", err)
	}
	if err := af.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != "payload" {
		t.Fatalf("target = %q, %v", got, err)
	}
	if err := af.Commit(); err == nil {
		t.Fatalf("second commit should fail")
	}
	assertOnlyFile(t, filepath.Dir(target), "out.bin")
}

func TestAbortRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	af, err := CreateAtomic(filepath.Join(dir, "out.bin"), 0o644)
	if err != nil {
		t.Fatalf("CreateAtomic: %v", err)
	}
	_, _ = af.Write([]byte("partial"))
	af.Abort()
	af.Abort()
	ents, _ := os.ReadDir(dir)
	if len(ents) != 0 {
		t.Fatalf("leftover files: %v", ents)
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	p, err := SafeJoin(root, "materials/a.vmt")
	if err != nil {
		t.Fatalf("SafeJoin: %v", err)
	}
	if want := filepath.Join(root, "materials", "a.vmt"); p != want {
		t.Fatalf("got %s want %s", p, want)
	}
	for _, bad := range []string{"", "../x", "a/../../x", "/etc/passwd"} {
		if _, err := SafeJoin(root, bad); err == nil {
			t.Errorf("SafeJoin(%q) should fail", bad)
		}
	}
}

func assertOnlyFile(t *testing.T, dir, name string) {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 || ents[0].Name() != name {
		t.Fatalf("dir contents = %v, want only %s", ents, name)
	}
}
