package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/snoo/internal/reddit"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != defaultTheme || p.Sort != "" {
		t.Fatalf("prefs = %+v, want defaults", p)
	}
	if p.SortOr(reddit.SortNew) != reddit.SortNew {
		t.Fatalf("SortOr without stored sort = %q, want fallback", p.SortOr(reddit.SortNew))
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "snoo")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	prefsFile := filepath.Join(prefsDir, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("theme = \"Slate\"\nsort = \"Top\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != "Slate" {
		t.Fatalf("Theme = %q, want Slate", p.Theme)
	}
	if p.SortOr(reddit.SortHot) != reddit.SortTop {
		t.Fatalf("SortOr = %q, want top", p.SortOr(reddit.SortHot))
	}
}

func TestLoad_DegradesOnGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("theme = [broken"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error for a malformed file")
	}
	if p.Theme != defaultTheme || p.Sort != "" {
		t.Fatalf("prefs = %+v, want defaults alongside the error", p)
	}
}

func TestLoad_DropsUnknownSort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("sort = \"controversial\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p, _ := Load(path)
	if p.Sort != "" {
		t.Fatalf("Sort = %q, want empty", p.Sort)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	if err := Save(path, Prefs{Theme: "Slate", Sort: "rising"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != "Slate" || p.Sort != "rising" {
		t.Fatalf("prefs = %+v, want Slate/rising", p)
	}
}
