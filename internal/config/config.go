package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	VectorDB VectorDBConfig `yaml:"vector_db"`
	RAG      RAGConfig      `yaml:"rag"`
	Upload   UploadConfig   `yaml:"upload"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// requests per second allowed per owner; 0 disables limiting
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres or sqlite
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // openai or ollama
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type VectorDBConfig struct {
	Backend       string `yaml:"backend"` // chromem or pgvector
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
	Dimensions    int    `yaml:"dimensions"`
}

type RAGConfig struct {
	ChunkSize           int           `yaml:"chunk_size"`
	ChunkOverlap        int           `yaml:"chunk_overlap"`
	TopK                int           `yaml:"top_k"`
	EmbedBatchSize      int           `yaml:"embed_batch_size"`
	MaxContextChars     int           `yaml:"max_context_chars"`
	ContextExcerptChars int           `yaml:"context_excerpt_chars"`
	EmbedTimeout        time.Duration `yaml:"embed_timeout"`
	QueryTimeout        time.Duration `yaml:"query_timeout"`
	GenerationTimeout   time.Duration `yaml:"generation_timeout"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	MaxFiles int    `yaml:"max_files"`
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 5
	defaultMaxUpload    = 10 * 1024 * 1024
)

// LoadConfig reads the YAML file at path, applies .env and RAG_* environment
// overrides, fills defaults and validates the result. A missing file is not an
// error; the config is then built from the environment alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.LogLevel, "RAG_LOG_LEVEL")
	setString(&c.Server.Addr, "RAG_SERVER_ADDR")
	setString(&c.Auth.JWTSecret, "RAG_JWT_SECRET")
	setString(&c.Database.Driver, "RAG_DB_DRIVER")
	setString(&c.Database.DSN, "RAG_DB_DSN")
	setString(&c.Database.Password, "RAG_DB_PASSWORD")
	setString(&c.EmbedLLM.Provider, "RAG_EMBED_PROVIDER")
	setString(&c.EmbedLLM.BaseURL, "RAG_EMBED_BASE_URL")
	setString(&c.EmbedLLM.Key, "RAG_EMBED_KEY")
	setString(&c.EmbedLLM.Model, "RAG_EMBED_MODEL")
	setString(&c.ChatLLM.Provider, "RAG_CHAT_PROVIDER")
	setString(&c.ChatLLM.BaseURL, "RAG_CHAT_BASE_URL")
	setString(&c.ChatLLM.Key, "RAG_CHAT_KEY")
	setString(&c.ChatLLM.Model, "RAG_CHAT_MODEL")
	setString(&c.VectorDB.Backend, "RAG_VECTOR_BACKEND")
	setString(&c.VectorDB.Path, "RAG_VECTOR_PATH")
	setString(&c.VectorDB.EncryptionKey, "RAG_VECTOR_ENCRYPTION_KEY")
	setInt(&c.RAG.ChunkSize, "RAG_CHUNK_SIZE")
	setInt(&c.RAG.ChunkOverlap, "RAG_CHUNK_OVERLAP")
	setInt(&c.RAG.TopK, "RAG_TOP_K")
	setString(&c.Upload.Dir, "RAG_UPLOAD_DIR")
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{
			"http://localhost:3000",
			"http://localhost:8000",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:8000",
		}
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "file:./data/rag.db"
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = "ollama"
	}
	if c.ChatLLM.Provider == "" {
		c.ChatLLM.Provider = "openai"
	}
	if c.VectorDB.Backend == "" {
		c.VectorDB.Backend = "chromem"
	}
	if c.VectorDB.Path == "" {
		c.VectorDB.Path = "./chromemdb"
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = "documents"
	}
	if c.VectorDB.Dimensions == 0 {
		c.VectorDB.Dimensions = 768
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.EmbedBatchSize == 0 {
		c.RAG.EmbedBatchSize = 32
	}
	if c.RAG.MaxContextChars == 0 {
		c.RAG.MaxContextChars = c.RAG.TopK * c.RAG.ChunkSize
	}
	if c.RAG.ContextExcerptChars == 0 {
		c.RAG.ContextExcerptChars = 500
	}
	if c.RAG.EmbedTimeout == 0 {
		c.RAG.EmbedTimeout = 30 * time.Second
	}
	if c.RAG.QueryTimeout == 0 {
		c.RAG.QueryTimeout = 10 * time.Second
	}
	if c.RAG.GenerationTimeout == 0 {
		c.RAG.GenerationTimeout = 2 * time.Minute
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "./uploads"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = defaultMaxUpload
	}
	if c.Upload.MaxFiles == 0 {
		c.Upload.MaxFiles = 10
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, %d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.VectorDB.Backend {
	case "chromem":
	case "pgvector":
		if c.Database.Driver != "postgres" {
			return errors.New("vector_db.backend pgvector requires database.driver postgres")
		}
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorDB.Backend)
	}
	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "chat_llm": c.ChatLLM} {
		if llm.Provider != "openai" && llm.Provider != "ollama" {
			return fmt.Errorf("%s.provider must be openai or ollama, got %q", name, llm.Provider)
		}
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	c.Database.Password = mask(c.Database.Password)
	c.EmbedLLM.Key = mask(c.EmbedLLM.Key)
	c.ChatLLM.Key = mask(c.ChatLLM.Key)
	c.VectorDB.EncryptionKey = mask(c.VectorDB.EncryptionKey)
	return c
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
