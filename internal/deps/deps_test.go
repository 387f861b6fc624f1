package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestResolveBrowserPathPrefersConfigured(t *testing.T) {
	if got := ResolveBrowserPath("  /opt/chrome/chrome "); got != "/opt/chrome/chrome" {
		t.Fatalf("expected configured path, got %q", got)
	}
}

func TestResolveBrowserPathSearchesPath(t *testing.T) {
	binDir := t.TempDir()
	want := writeStub(t, binDir, "chromium")
	t.Setenv("PATH", binDir)

	if got := ResolveBrowserPath(""); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	status := CheckBrowser("")
	if !status.Available || status.Command != want {
		t.Fatalf("expected browser to be available at %q, got %#v", want, status)
	}
}

func TestCheckBrowserMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	status := CheckBrowser("")
	if status.Available {
		t.Fatal("expected browser to be unavailable")
	}
	if status.Detail == "" {
		t.Fatal("expected a hint when no browser is found")
	}
}
