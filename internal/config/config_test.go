package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load looks at so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "UPLOAD_DIR", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL_CHAT",
		"OPENAI_ASSISTANT_ID", "OPENAI_POLL_INTERVAL", "OPENAI_REPLY_TIMEOUT",
		"PROVIDER_NAME", "PRACTICE_NAME", "CARE_MANAGER_NAME", "LOG_LEVEL",
		"SESSION_TTL", "UPLOAD_TABULAR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.OpenAI.Model != "gpt-4.1" {
		t.Errorf("Model = %q, want gpt-4.1", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.IndexName != "MyKnowledgeBase" {
		t.Errorf("IndexName = %q", cfg.OpenAI.IndexName)
	}
	if cfg.OpenAI.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.OpenAI.PollInterval)
	}
	if cfg.OpenAI.ReplyTimeout != 0 {
		t.Errorf("ReplyTimeout = %v, want 0", cfg.OpenAI.ReplyTimeout)
	}
	if cfg.Upload.Tabular {
		t.Error("Tabular = true, want strict JSON by default")
	}
	if cfg.Server.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want 12h", cfg.Server.SessionTTL)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("Validate() = %v, want ErrAPIKeyMissing", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lyra.yaml")
	yml := `
server:
  addr: ":9000"
upload:
  dir: /tmp/lyra
  tabular: true
openai:
  apiKey: file-key
  model: gpt-4o
  pollInterval: 2s
practice:
  providerName: Dr. Patel
logger:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("PORT", "7070")
	t.Setenv("OPENAI_REPLY_TIMEOUT", "45")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Errorf("APIKey = %q, env should win", cfg.OpenAI.APIKey)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, want :7070", cfg.Server.Addr)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v", cfg.OpenAI.PollInterval)
	}
	if cfg.OpenAI.ReplyTimeout != 45*time.Second {
		t.Errorf("ReplyTimeout = %v", cfg.OpenAI.ReplyTimeout)
	}
	if !cfg.Upload.Tabular {
		t.Error("Tabular = false, want true from file")
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.Server.SessionTTL)
	}
	if cfg.Practice.ProviderName != "Dr. Patel" {
		t.Errorf("ProviderName = %q", cfg.Practice.ProviderName)
	}
	if cfg.Upload.Dir != "/tmp/lyra" || cfg.Logger.Level != "debug" {
		t.Errorf("unexpected upload/logger config: %+v %+v", cfg.Upload, cfg.Logger)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_TabularFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLOAD_TABULAR", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Upload.Tabular {
		t.Error("Tabular = false, want true from UPLOAD_TABULAR")
	}
}
