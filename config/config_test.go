package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.ChunkSize != 4000 {
		t.Errorf("expected ChunkSize=4000, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Ingest.Concurrency != 3 {
		t.Errorf("expected Concurrency=3, got %d", cfg.Ingest.Concurrency)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Source != "als_info" {
		t.Errorf("expected Source=als_info, got %s", cfg.Retrieve.Source)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("expected Dimension=1536, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Enrich.TitlePrefixChars != 500 || cfg.Enrich.EmbedPrefixChars != 8000 {
		t.Errorf("unexpected enrich prefixes: %d/%d", cfg.Enrich.TitlePrefixChars, cfg.Enrich.EmbedPrefixChars)
	}
	if cfg.Agent.MaxChars != 230 {
		t.Errorf("expected MaxChars=230, got %d", cfg.Agent.MaxChars)
	}
	if cfg.Crawl.MaxURLs != 50 || cfg.Crawl.MinKept != 10 {
		t.Errorf("unexpected crawl caps: %d/%d", cfg.Crawl.MaxURLs, cfg.Crawl.MinKept)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "alsrag.yaml")

	content := `
index:
  chunk_size: 1000
ingest:
  replace_existing: true
retrieve:
  top_k: 10
agent:
  poll_interval: 250ms
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.ChunkSize != 1000 {
		t.Errorf("expected ChunkSize=1000, got %d", cfg.Index.ChunkSize)
	}
	if !cfg.Ingest.ReplaceExisting {
		t.Error("expected ReplaceExisting=true")
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Agent.PollInterval != 250*time.Millisecond {
		t.Errorf("expected PollInterval=250ms, got %s", cfg.Agent.PollInterval)
	}
	// untouched sections keep their defaults
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %s", cfg.Embedding.Model)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "alsrag.yaml")
	if err := os.WriteFile(configPath, []byte("index: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".alsrag", "config.yaml")

	content := `
store:
  backend: memory
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != "memory" {
		t.Errorf("expected Backend=memory, got %s", cfg.Store.Backend)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alsrag.yaml")
	cfg := DefaultConfig()
	cfg.Crawl.Seed = "https://example.org/"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Crawl.Seed != "https://example.org/" {
		t.Errorf("expected seed to survive round trip, got %s", loaded.Crawl.Seed)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ALSRAG_TEST_KEY", "")

	cfg := DefaultConfig()
	cfg.Embedding.APIKeyEnv = "ALSRAG_TEST_KEY"
	cfg.LLM.APIKeyEnv = "ALSRAG_TEST_KEY"

	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}

	t.Setenv("ALSRAG_TEST_KEY", "sk-test")
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.Store.Backend = "postgres"
	cfg.Store.DSNEnv = "ALSRAG_TEST_DSN_UNSET"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected missing DSN error, got %v", err)
	}

	cfg.Store.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown backend error")
	}
}

func TestValidate_MockProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.LLM.Provider = "mock"
	cfg.Index.ChunkSize = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected chunk size error")
	}

	cfg.Index.ChunkSize = 100
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestStoreDBPath(t *testing.T) {
	path := StoreDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".alsrag", "store.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
