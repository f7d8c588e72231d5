package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/eringen/pubdash/dashboard"
)

func TestRunInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-site")
	if err := runInit(io.Discard, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}
	for _, name := range []string{"pubdash.yaml", "sites.yaml", ".env.example"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	sites, err := dashboard.LoadSites(filepath.Join(dir, "sites.yaml"))
	if err != nil {
		t.Fatalf("generated sites file does not load: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "My Site" {
		t.Errorf("sites = %+v", sites)
	}
	if err := runInit(io.Discard, dir); err == nil {
		t.Error("expected error for an existing directory")
	}
}

func TestToTitle(t *testing.T) {
	tests := map[string]string{"my-blog": "My Blog", "myblog": "Myblog", "": ""}
	for in, want := range tests {
		if got := toTitle(in); got != want {
			t.Errorf("toTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
