package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	vpk "github.com/javi11/govpk"
)

func sandbox(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GOVPK_CACHE_DIR", t.TempDir())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func buildAddon(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "addon.vpk")
	w, err := vpk.NewWriter(p, vpk.WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"addoninfo.txt":             "\"AddonInfo\"\n{\n\taddontitle \"Test Addon\"\n}\n",
		"materials/wall.vmt":        "LightmappedGeneric {}",
		"sound/ambient/wind.wav":    "RIFF....",
		"scripts/vscripts/mode.nut": "printl(1)",
	}
	for name, body := range files {
		if err := w.Add(name, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func exitCode(err error) int {
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}

func TestListJSON(t *testing.T) {
	sandbox(t)
	arc := buildAddon(t, t.TempDir())
	out, err := run(t, "list", arc, "--ext", "vmt", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var entries []vpk.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Path != "materials/wall.vmt" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestExtractAndVerify(t *testing.T) {
	sandbox(t)
	arc := buildAddon(t, t.TempDir())
	dest := t.TempDir()
	out, err := run(t, "extract", arc, "-o", dest, "--workers", "2")
	if err != nil {
		t.Fatalf("extract: %v\n%s", err, out)
	}
	if !strings.Contains(out, "extracted 4 of 4") {
		t.Fatalf("unexpected output: %s", out)
	}
	got, err := os.ReadFile(filepath.Join(dest, "sound", "ambient", "wind.wav"))
	if err != nil || string(got) != "RIFF...." {
		t.Fatalf("extracted file = %q, %v", got, err)
	}
	out, err = run(t, "verify", arc, "--md5")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "4 entries checked, 0 failed") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestExtractMissingEntry(t *testing.T) {
	sandbox(t)
	arc := buildAddon(t, t.TempDir())
	_, err := run(t, "extract", arc, "nope.txt", "-o", t.TempDir())
	if exitCode(err) != exitFailure || !errors.Is(err, vpk.ErrNotFound) {
		t.Fatalf("want not found exit 1, got %v", err)
	}
}

func TestOpenGarbageIsIntegrityFailure(t *testing.T) {
	sandbox(t)
	p := filepath.Join(t.TempDir(), "bad.vpk")
	if err := os.WriteFile(p, []byte("definitely not a vpk file"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "info", p)
	if exitCode(err) != exitIntegrity || !errors.Is(err, vpk.ErrBadSignature) {
		t.Fatalf("want bad signature exit 3, got %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	sandbox(t)
	if _, err := run(t, "list"); exitCode(err) != exitUsage {
		t.Fatalf("missing arg: %v", err)
	}
	if _, err := run(t, "list", "--bogus", "x"); exitCode(err) != exitUsage {
		t.Fatalf("bad flag: %v", err)
	}
	if _, err := run(t, "config", "show", "--log-level", "shouty"); exitCode(err) != exitUsage {
		t.Fatalf("bad log level: %v", err)
	}
}

func TestInfoShowsTitle(t *testing.T) {
	sandbox(t)
	arc := buildAddon(t, t.TempDir())
	out, err := run(t, "info", arc)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(out, "Test Addon") || !strings.Contains(out, "entries") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestPackRoundTrip(t *testing.T) {
	sandbox(t)
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "models", "crate.mdl"), bytes.Repeat([]byte("m"), 300), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "readme.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "pak01_dir.vpk")
	out, err := run(t, "pack", src, dst, "--max-part-size", "100", "--preload", "4")
	if err != nil {
		t.Fatalf("pack: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "pak01_000.vpk")); err != nil {
		t.Fatalf("part 000 missing: %v", err)
	}
	if out, err := run(t, "verify", dst, "--md5"); err != nil {
		t.Fatalf("verify packed: %v\n%s", err, out)
	}
}

func TestScanExportDelete(t *testing.T) {
	sandbox(t)
	lib := t.TempDir()
	arc := buildAddon(t, lib)
	if err := os.WriteFile(filepath.Join(lib, "addon.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "scan", lib, "--json")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var rows []scanRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].Title != "Test Addon" || rows[0].Thumbnail == "" {
		t.Fatalf("rows = %+v", rows)
	}

	outDir := t.TempDir()
	if out, err := run(t, "export", arc, "-o", outDir, "--compression", "lz4"); err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Test Addon.tar.lz4")); err != nil {
		t.Fatalf("bundle missing: %v", err)
	}

	if out, err := run(t, "delete", arc); err != nil || !strings.Contains(out, "would delete") {
		t.Fatalf("dry run: %v\n%s", err, out)
	}
	if _, err := os.Stat(arc); err != nil {
		t.Fatalf("dry run deleted the archive")
	}
	if _, err := run(t, "delete", arc, "--yes"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ents, _ := os.ReadDir(lib)
	if len(ents) != 0 {
		t.Fatalf("library not empty: %v", ents)
	}
}

func TestConfigShow(t *testing.T) {
	sandbox(t)
	out, err := run(t, "config", "show", "--workers", "6")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "workers = 6") || !strings.Contains(out, "[export]") {
		t.Fatalf("unexpected output: %s", out)
	}
}
