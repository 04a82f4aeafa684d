package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("expected topK 3, got %d", cfg.Search.TopK)
	}
	if cfg.Search.HistoryLimit != 12 {
		t.Errorf("expected history limit 12, got %d", cfg.Search.HistoryLimit)
	}
	if cfg.Assistant.Timeout != 45*time.Second {
		t.Errorf("expected 45s assistant timeout, got %v", cfg.Assistant.Timeout)
	}
	if cfg.Assistant.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.Assistant.MaxRetries)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
corpus:
  source: file
  corpusPath: /srv/corpus.json
search:
  topK: 5
assistant:
  endpoint: http://backend:9000/rag
  timeout: 10s
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("IAM_ASSISTANT_ENDPOINT", "http://override/rag")
	t.Setenv("IAM_REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus.CorpusPath != "/srv/corpus.json" {
		t.Errorf("corpus path not read from file: %q", cfg.Corpus.CorpusPath)
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("expected topK 5, got %d", cfg.Search.TopK)
	}
	if cfg.Search.HistoryLimit != 12 {
		t.Errorf("default history limit lost: %d", cfg.Search.HistoryLimit)
	}
	if cfg.Assistant.Endpoint != "http://override/rag" {
		t.Errorf("env override not applied: %q", cfg.Assistant.Endpoint)
	}
	if cfg.Assistant.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Assistant.Timeout)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("redis override not applied: %+v", cfg.Redis)
	}
}

func TestValidateRejectsBadSource(t *testing.T) {
	cfg := Default()
	cfg.Corpus.Source = "s3"
	cfg.Search.TopK = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
