package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory when
// no explicit path is given.
const DefaultFile = "coderag.yaml"

// Config is the complete coderag configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Server   ServerConfig   `yaml:"server"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Chunk    ChunkConfig    `yaml:"chunk"`
	Index    IndexConfig    `yaml:"index"`
	Vector   VectorConfig   `yaml:"vector"`
	Projects ProjectsConfig `yaml:"projects"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OllamaConfig configures the embedding service.
type OllamaConfig struct {
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	Dimensions  int           `yaml:"dimensions"`
	BatchSize   int           `yaml:"batch_size"`
	Concurrency int           `yaml:"concurrency"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheSize   int           `yaml:"cache_size"`
}

// ChunkConfig bounds the fixed-window splitter, in characters.
type ChunkConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// IndexConfig tunes index runs.
type IndexConfig struct {
	ProgressEvery int   `yaml:"progress_every"`
	MaxFileSize   int64 `yaml:"max_file_size"`
}

// Vector backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// VectorConfig selects where chunk vectors live.
type VectorConfig struct {
	// Backend is "sqlite" (vectors next to the state DB) or "postgres".
	Backend     string `yaml:"backend"`
	PostgresURL string `yaml:"postgres_url"`
}

// ProjectsConfig maps project paths between the caller's machine and this
// server, for deployments where the server sees the projects mounted at a
// different location. An empty BasePath disables the mapping.
type ProjectsConfig struct {
	BasePath   string `yaml:"base_path"`
	HostPrefix string `yaml:"host_prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 5 * time.Minute,
		},
		Ollama: OllamaConfig{
			URL:         "http://localhost:11434",
			Model:       "nomic-embed-text",
			Dimensions:  768,
			BatchSize:   32,
			Concurrency: 2,
			Timeout:     120 * time.Second,
			CacheSize:   1000,
		},
		Chunk: ChunkConfig{
			MaxChars:     800,
			OverlapChars: 80,
		},
		Index: IndexConfig{
			ProgressEvery: 50,
			MaxFileSize:   500 * 1024,
		},
		Vector: VectorConfig{
			Backend: BackendSQLite,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".coderag")
	}
	return filepath.Join(home, ".coderag")
}

// DBPath is the state database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// Load builds the configuration in order of increasing precedence:
//  1. Defaults
//  2. The YAML file at path, or DefaultFile in the working directory when
//     path is empty (a missing default file is fine)
//  3. Variables from .env in the working directory
//  4. CODERAG_* environment variables
//
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadYAML(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values, so keys absent from the
// file keep their defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"CODERAG_DATA_DIR":             &c.DataDir,
		"CODERAG_ADDR":                 &c.Server.Addr,
		"CODERAG_OLLAMA_URL":           &c.Ollama.URL,
		"CODERAG_EMBEDDING_MODEL":      &c.Ollama.Model,
		"CODERAG_OLLAMA_TOKEN":         &c.Ollama.Token,
		"CODERAG_VECTOR_BACKEND":       &c.Vector.Backend,
		"CODERAG_POSTGRES_URL":         &c.Vector.PostgresURL,
		"CODERAG_PROJECTS_BASE_PATH":   &c.Projects.BasePath,
		"CODERAG_PROJECTS_HOST_PREFIX": &c.Projects.HostPrefix,
		"CODERAG_LOG_LEVEL":            &c.Log.Level,
		"CODERAG_LOG_FORMAT":           &c.Log.Format,
		"CODERAG_LOG_FILE":             &c.Log.File,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CODERAG_EMBEDDING_DIMS":       &c.Ollama.Dimensions,
		"CODERAG_EMBEDDING_BATCH_SIZE": &c.Ollama.BatchSize,
		"CODERAG_EMBED_CONCURRENCY":    &c.Ollama.Concurrency,
		"CODERAG_CHUNK_MAX_CHARS":      &c.Chunk.MaxChars,
		"CODERAG_CHUNK_OVERLAP_CHARS":  &c.Chunk.OverlapChars,
		"CODERAG_PROGRESS_EVERY":       &c.Index.ProgressEvery,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
	}

	if v := os.Getenv("CODERAG_OLLAMA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CODERAG_OLLAMA_TIMEOUT: %w", err)
		}
		c.Ollama.Timeout = d
	}
	return nil
}

// Validate checks the configuration for values the program cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if c.Ollama.URL == "" {
		return errors.New("ollama.url must be set")
	}
	if c.Ollama.Model == "" {
		return errors.New("ollama.model must be set")
	}
	if c.Ollama.Dimensions <= 0 {
		return fmt.Errorf("ollama.dimensions must be positive, got %d", c.Ollama.Dimensions)
	}
	if c.Ollama.BatchSize <= 0 {
		return fmt.Errorf("ollama.batch_size must be positive, got %d", c.Ollama.BatchSize)
	}
	if c.Ollama.Concurrency <= 0 {
		return fmt.Errorf("ollama.concurrency must be positive, got %d", c.Ollama.Concurrency)
	}
	if c.Chunk.MaxChars <= 0 {
		return fmt.Errorf("chunk.max_chars must be positive, got %d", c.Chunk.MaxChars)
	}
	if c.Chunk.OverlapChars < 0 || c.Chunk.OverlapChars >= c.Chunk.MaxChars {
		return fmt.Errorf("chunk.overlap_chars must be in [0, %d), got %d", c.Chunk.MaxChars, c.Chunk.OverlapChars)
	}
	if c.Index.ProgressEvery <= 0 {
		return fmt.Errorf("index.progress_every must be positive, got %d", c.Index.ProgressEvery)
	}

	c.Vector.Backend = strings.ToLower(strings.TrimSpace(c.Vector.Backend))
	switch c.Vector.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Vector.PostgresURL == "" {
			return errors.New("vector.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("vector.backend must be 'sqlite' or 'postgres', got %q", c.Vector.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}
