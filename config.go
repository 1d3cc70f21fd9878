package hrgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talentbase/hrgraph/llm"
)

// Config holds all configuration for the hrgraph engine.
type Config struct {
	// Neo4j connection.
	Neo4jURI      string `json:"neo4j_uri" yaml:"neo4j_uri"`
	Neo4jUser     string `json:"neo4j_user" yaml:"neo4j_user"`
	Neo4jPassword string `json:"neo4j_password" yaml:"neo4j_password"`
	Neo4jDatabase string `json:"neo4j_database" yaml:"neo4j_database"`

	// LLM providers. Chat runs extraction and answer completion;
	// Embedding produces chunk and query vectors.
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// LedgerPath is the full path to the local ingest ledger database.
	// If empty, defaults to ~/.hrgraph/ledger.db
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`

	// Chunking.
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Retrieval.
	TopK int `json:"top_k" yaml:"top_k"`

	// EmbeddingDim must match the embedding model and the vector index.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// DefaultConfig returns a Config with defaults matching the production
// setup: OpenAI for both models, text-embedding-3-small dimensions.
func DefaultConfig() Config {
	return Config{
		Neo4jURI:  "neo4j://localhost:7687",
		Neo4jUser: "neo4j",
		Chat: llm.Config{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Embedding: llm.Config{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		MaxChunkTokens: 512,
		ChunkOverlap:   64,
		TopK:           5,
		EmbeddingDim:   1536,
	}
}

// LoadConfig builds the effective configuration: defaults, then an
// optional YAML file, then environment variables. A .env file in the
// working directory is honoured the way the original tooling did.
func LoadConfig(path string) (Config, error) {
	// Ignore a missing .env; it is a convenience, not a requirement.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	setString(&c.Neo4jURI, "NEO4J_URI")
	setString(&c.Neo4jUser, "NEO4J_USER")
	setString(&c.Neo4jPassword, "NEO4J_PASSWORD")
	setString(&c.Neo4jDatabase, "NEO4J_DATABASE")

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Chat.APIKey = v
		c.Embedding.APIKey = v
	}
	setString(&c.Chat.Model, "OPENAI_MODEL")

	setString(&c.LedgerPath, "HRGRAPH_LEDGER_PATH")
	setInt(&c.MaxChunkTokens, "HRGRAPH_MAX_CHUNK_TOKENS")
	setInt(&c.ChunkOverlap, "HRGRAPH_CHUNK_OVERLAP")
	setInt(&c.TopK, "HRGRAPH_TOP_K")
	setInt(&c.EmbeddingDim, "HRGRAPH_EMBEDDING_DIM")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate fails fast before any network dial when a required value is
// missing.
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("%w: neo4j uri (NEO4J_URI)", ErrConfigMissing)
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("%w: neo4j user (NEO4J_USER)", ErrConfigMissing)
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("%w: neo4j password (NEO4J_PASSWORD)", ErrConfigMissing)
	}
	if c.Chat.Provider == "openai" && c.Chat.APIKey == "" {
		return fmt.Errorf("%w: chat api key (OPENAI_API_KEY)", ErrConfigMissing)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: embedding api key (OPENAI_API_KEY)", ErrConfigMissing)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding dimension", ErrConfigMissing)
	}
	return nil
}

// resolveLedgerPath computes the final ledger database path.
func (c *Config) resolveLedgerPath() string {
	if c.LedgerPath != "" {
		return c.LedgerPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "hrgraph-ledger.db" // fallback to cwd
	}
	return filepath.Join(home, ".hrgraph", "ledger.db")
}
