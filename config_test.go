package hrgraph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Neo4jPassword = "secret"
	cfg.Chat.APIKey = "sk-test"
	cfg.Embedding.APIKey = "sk-test"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing_uri", func(c *Config) { c.Neo4jURI = "" }, true},
		{"missing_user", func(c *Config) { c.Neo4jUser = "" }, true},
		{"missing_password", func(c *Config) { c.Neo4jPassword = "" }, true},
		{"missing_chat_key", func(c *Config) { c.Chat.APIKey = "" }, true},
		{"missing_embedding_key", func(c *Config) { c.Embedding.APIKey = "" }, true},
		{"zero_dim", func(c *Config) { c.EmbeddingDim = 0 }, true},
		{"ollama_needs_no_key", func(c *Config) {
			c.Chat.Provider = "ollama"
			c.Chat.APIKey = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrConfigMissing) {
					t.Fatalf("error = %v, want ErrConfigMissing", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "neo4j://db.internal:7687")
	t.Setenv("NEO4J_USER", "svc")
	t.Setenv("NEO4J_PASSWORD", "hunter2")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("HRGRAPH_TOP_K", "8")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Neo4jURI != "neo4j://db.internal:7687" {
		t.Errorf("Neo4jURI = %q", cfg.Neo4jURI)
	}
	if cfg.Neo4jPassword != "hunter2" {
		t.Errorf("Neo4jPassword = %q", cfg.Neo4jPassword)
	}
	if cfg.Chat.APIKey != "sk-env" || cfg.Embedding.APIKey != "sk-env" {
		t.Errorf("api keys = %q / %q", cfg.Chat.APIKey, cfg.Embedding.APIKey)
	}
	if cfg.Chat.Model != "gpt-4o-mini" {
		t.Errorf("Chat.Model = %q", cfg.Chat.Model)
	}
	if cfg.TopK != 8 {
		t.Errorf("TopK = %d", cfg.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate after env load: %v", err)
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	t.Setenv("NEO4J_URI", "")
	t.Setenv("OPENAI_MODEL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
neo4j_uri: neo4j://yaml-host:7687
chat:
  provider: ollama
  model: llama3.1:8b
max_chunk_tokens: 256
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Neo4jURI != "neo4j://yaml-host:7687" {
		t.Errorf("Neo4jURI = %q", cfg.Neo4jURI)
	}
	if cfg.Chat.Provider != "ollama" || cfg.Chat.Model != "llama3.1:8b" {
		t.Errorf("chat config = %+v", cfg.Chat)
	}
	if cfg.MaxChunkTokens != 256 {
		t.Errorf("MaxChunkTokens = %d", cfg.MaxChunkTokens)
	}
	// Defaults survive where the file is silent.
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("EmbeddingDim = %d", cfg.EmbeddingDim)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDefaultModel(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Chat.Model != "gpt-4o" {
		t.Errorf("default chat model = %q, want gpt-4o", cfg.Chat.Model)
	}
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("default embedding dim = %d, want 1536", cfg.EmbeddingDim)
	}
}
