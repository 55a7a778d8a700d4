package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Detection.EntityTypes) != len(cfg.Detection.ModelPaths) {
		t.Errorf("entity types %v and model paths %v differ in length",
			cfg.Detection.EntityTypes, cfg.Detection.ModelPaths)
	}
	if !cfg.Detection.DiscardStaleResults {
		t.Error("expected stale results to be discarded by default")
	}
	if cfg.Detection.SentenceType == "" || cfg.Detection.TokenType == "" {
		t.Error("expected default sentence and token types")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_MODEL_DIR", "/opt/models")

		result := ResolveEnvVars("${TEST_MODEL_DIR}/person.json")
		if result != "/opt/models/person.json" {
			t.Errorf("expected /opt/models/person.json, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
detection:
  entity_types: [PERSON, ORGANIZATION]
  model_paths: [person.json, org.json]
  recall_boosting: false
workers: 3
`)
		mgr, err := NewManager(configFile, "", nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if got := strings.Join(cfg.Detection.EntityTypes, ","); got != "PERSON,ORGANIZATION" {
			t.Errorf("entity types = %s, want PERSON,ORGANIZATION", got)
		}
		if cfg.Detection.RecallBoosting {
			t.Error("expected recall boosting to be disabled")
		}
		if cfg.Workers != 3 {
			t.Errorf("workers = %d, want 3", cfg.Workers)
		}
		// Unset keys keep their defaults.
		if cfg.Detection.TokenType != "Token" {
			t.Errorf("token type = %q, want Token", cfg.Detection.TokenType)
		}
		if !cfg.Detection.DiscardStaleResults {
			t.Error("expected discard_stale_results default to survive")
		}
		if mgr.FileUsed() != configFile {
			t.Errorf("FileUsed() = %q, want %q", mgr.FileUsed(), configFile)
		}
	})

	t.Run("runs on defaults without a file", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir(), nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Detection.SentenceType; got != "Sentence" {
			t.Errorf("sentence type = %q, want Sentence", got)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("NAMEFIND_DETECTION_TOKEN_TYPE", "Word")
		configFile := writeConfig(t, `
detection:
  token_type: Token
`)
		mgr, err := NewManager(configFile, "", nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Detection.TokenType; got != "Word" {
			t.Errorf("token type = %q, want Word", got)
		}
	})

	t.Run("rejects malformed file", func(t *testing.T) {
		configFile := writeConfig(t, "detection: [unclosed")
		if _, err := NewManager(configFile, "", nil); err == nil {
			t.Error("expected error for malformed config")
		}
	})
}

func TestManager_Detection_IsSnapshot(t *testing.T) {
	mgr, err := NewManager("", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	d := mgr.Detection()
	d.EntityTypes[0] = "MUTATED"

	if got := mgr.Get().Detection.EntityTypes[0]; got == "MUTATED" {
		t.Error("Detection() shares its slices with the live config")
	}
}

func TestManager_Set(t *testing.T) {
	mgr, err := NewManager("", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var seen atomic.Value
	mgr.OnChange(func(cfg *Config) {
		seen.Store(cfg.Detection.SentenceType)
	})

	if err := mgr.Set("detection.sentence_type", "Heading"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := mgr.Get().Detection.SentenceType; got != "Heading" {
		t.Errorf("sentence type = %q, want Heading", got)
	}
	if v := seen.Load(); v != "Heading" {
		t.Errorf("callback received %v, want Heading", v)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager("", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Register multiple callbacks
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager("", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Call Get concurrently to verify no race conditions
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Detection.TokenType
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
detection:
  sentence_type: Sentence
`)

	mgr, err := NewManager(configFile, "", nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Detection.SentenceType)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
detection:
  sentence_type: Paragraph
`
	if err := os.WriteFile(configFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lastValue.Load() == "Paragraph" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Detection.SentenceType; got != "Paragraph" {
		t.Errorf("config not updated: expected Paragraph, got %s", got)
	}
	if v := lastValue.Load(); v != "Paragraph" {
		t.Errorf("callback received wrong value: expected Paragraph, got %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# namefind configuration") {
		t.Error("expected header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Detection.TokenType != "Token" {
		t.Errorf("token type = %q, want Token", cfg.Detection.TokenType)
	}

	// The written file loads back through the manager.
	mgr, err := NewManager(path, "", nil)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	if !mgr.Get().Detection.OnlyInitialCapitalTokens {
		t.Error("expected only_initial_capital_tokens to round-trip")
	}
}
