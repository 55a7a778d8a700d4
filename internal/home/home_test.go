package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-namefind")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-namefind" {
			t.Errorf("expected path /tmp/test-namefind, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-namefind")

	t.Run("ModelsPath", func(t *testing.T) {
		expected := "/tmp/test-namefind/models"
		if dir.ModelsPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ModelsPath())
		}
	})

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-namefind/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})
}

func TestDir_ResolveModelPath(t *testing.T) {
	dir, _ := New("/tmp/test-namefind")

	tests := []struct {
		in   string
		want string
	}{
		{"person.json", "/tmp/test-namefind/models/person.json"},
		{"sub/org.json", "/tmp/test-namefind/models/sub/org.json"},
		{"/opt/models/person.json", "/opt/models/person.json"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := dir.ResolveModelPath(tt.in); got != tt.want {
			t.Errorf("ResolveModelPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	nfDir := filepath.Join(tmpDir, "namefind-test")

	dir, err := New(nfDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("expected directory to not exist yet")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("expected directory to exist after EnsureExists")
	}
	if _, err := os.Stat(dir.ModelsPath()); err != nil {
		t.Errorf("expected models directory: %v", err)
	}
	if dir.ConfigExists() {
		t.Error("expected no config file yet")
	}
}
