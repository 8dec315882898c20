// Package config loads askmydocs settings from defaults, an optional YAML
// file, a .env file, ASKMYDOCS_* environment variables and CLI flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

const (
	// DefaultPath is read when no --config flag is given. It may be absent.
	DefaultPath = "askmydocs.yaml"

	// EnvPrefix prefixes every environment override, e.g. ASKMYDOCS_SERVER_PORT
	EnvPrefix = "ASKMYDOCS"
)

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Chunking    ChunkingConfig    `mapstructure:"chunking" yaml:"chunking"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval" yaml:"retrieval"`
	VectorIndex VectorIndexConfig `mapstructure:"vector_index" yaml:"vector_index"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Queue       QueueConfig       `mapstructure:"queue" yaml:"queue"`
	Lock        LockConfig        `mapstructure:"lock" yaml:"lock"`
	Registry    RegistryConfig    `mapstructure:"registry" yaml:"registry"`
	Redis       RedisConfig       `mapstructure:"redis" yaml:"redis"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Worker      WorkerConfig      `mapstructure:"worker" yaml:"worker"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins    []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" validate:"min=1"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider" validate:"oneof=openai ollama"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Dimensions int           `mapstructure:"dimensions" yaml:"dimensions" validate:"min=0"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// LLMConfig selects the language model provider
type LLMConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider" validate:"oneof=openai ollama"`
	Model        string        `mapstructure:"model" yaml:"model"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Temperature  float32       `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	SystemPrompt string        `mapstructure:"system_prompt" yaml:"system_prompt"`
}

// ChunkingConfig selects how documents are split into passages
type ChunkingConfig struct {
	Strategy  string `mapstructure:"strategy" yaml:"strategy"`
	ChunkSize int    `mapstructure:"chunk_size" yaml:"chunk_size" validate:"min=1"`
	Overlap   int    `mapstructure:"overlap" yaml:"overlap" validate:"min=0"`
}

// RetrievalConfig tunes question answering
type RetrievalConfig struct {
	TopK           int     `mapstructure:"top_k" yaml:"top_k" validate:"min=1"`
	MaxTopK        int     `mapstructure:"max_top_k" yaml:"max_top_k" validate:"min=1,gtefield=TopK"`
	MinScore       float64 `mapstructure:"min_score" yaml:"min_score" validate:"min=-1,max=1"`
	MinQueryLength int     `mapstructure:"min_query_length" yaml:"min_query_length" validate:"min=1"`
}

// VectorIndexConfig selects the index backend and where it is persisted
type VectorIndexConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend" validate:"oneof=flat qdrant"`
	Path    string       `mapstructure:"path" yaml:"path" validate:"required"`
	Qdrant  QdrantConfig `mapstructure:"qdrant" yaml:"qdrant"`
}

// QdrantConfig is used when the index backend is qdrant
type QdrantConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Collection string `mapstructure:"collection" yaml:"collection"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls" yaml:"use_tls"`
}

// StorageConfig locates uploaded files
type StorageConfig struct {
	UploadDir   string `mapstructure:"upload_dir" yaml:"upload_dir" validate:"required"`
	KeepUploads bool   `mapstructure:"keep_uploads" yaml:"keep_uploads"`
}

// QueueConfig selects the background task queue
type QueueConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=memory redis postgres"`
}

// LockConfig selects the index writer lock
type LockConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend" validate:"oneof=memory redis postgres"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"min=0"`
	Wait    time.Duration `mapstructure:"wait" yaml:"wait" validate:"min=0"`
}

// RegistryConfig selects where document records are kept
type RegistryConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" validate:"oneof=sqlite postgres"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// RedisConfig is used by the redis queue and lock
type RedisConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// DatabaseConfig is used by the postgres registry, queue and lock
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// WorkerConfig tunes background indexing
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1"`
	DequeueTimeout int           `mapstructure:"dequeue_timeout" yaml:"dequeue_timeout" validate:"min=1"`
	ReloadInterval time.Duration `mapstructure:"reload_interval" yaml:"reload_interval" validate:"min=0"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when nothing overrides it:
// a single node with OpenAI providers, a flat index, an in-process queue
// and lock, and a SQLite registry.
func Default() *Config {
	chunk := domain.DefaultChunkOptions()
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 25 << 20,
		},
		Embedding: EmbeddingConfig{
			Provider:   string(domain.AIProviderOpenAI),
			Model:      "text-embedding-3-small",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		LLM: LLMConfig{
			Provider:    string(domain.AIProviderOpenAI),
			Model:       "gpt-3.5-turbo",
			Temperature: 0,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		Chunking: ChunkingConfig{
			Strategy:  string(domain.ChunkStrategySectionAware),
			ChunkSize: chunk.ChunkSize,
			Overlap:   chunk.Overlap,
		},
		Retrieval: RetrievalConfig{
			TopK:           domain.DefaultTopK,
			MaxTopK:        domain.MaxTopK,
			MinScore:       0,
			MinQueryLength: domain.MinQueryLength,
		},
		VectorIndex: VectorIndexConfig{
			Backend: "flat",
			Path:    "data/vector_store",
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "askmydocs",
			},
		},
		Storage: StorageConfig{
			UploadDir:   "data/uploads",
			KeepUploads: true,
		},
		Queue: QueueConfig{Backend: "memory"},
		Lock: LockConfig{
			Backend: "memory",
			TTL:     10 * time.Minute,
			Wait:    30 * time.Second,
		},
		Registry: RegistryConfig{
			Backend:    "sqlite",
			SQLitePath: "data/askmydocs.db",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:    2,
			DequeueTimeout: 5,
			ReloadInterval: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// NewViper returns a viper instance with every key defaulted and
// ASKMYDOCS_* environment overrides enabled. Callers may bind CLI flags to
// it before passing it to LoadViper.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The conventional provider variables work too
	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("redis.url", EnvPrefix+"_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	return v
}

// Load reads configuration from path (DefaultPath when empty) on top of
// defaults, .env and the environment, and validates the result.
func Load(path string) (*Config, error) {
	return LoadViper(NewViper(), path)
}

// LoadViper is Load with a caller-prepared viper instance.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: read .env: %v", domain.ErrConfiguration, err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	if _, err := c.ChunkStrategy(); err != nil {
		return err
	}
	if err := c.ChunkOptions().Validate(); err != nil {
		return err
	}
	if err := c.EmbeddingSettings().Validate(); err != nil {
		return err
	}
	if err := c.LLMSettings().Validate(); err != nil {
		return err
	}

	usesRedis := c.Queue.Backend == "redis" || c.Lock.Backend == "redis"
	if usesRedis && c.Redis.URL == "" {
		return fmt.Errorf("%w: redis.url is required for the redis queue or lock", domain.ErrConfiguration)
	}
	if c.UsesPostgres() && c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is required for postgres backends", domain.ErrConfiguration)
	}
	if c.Registry.Backend == "sqlite" && c.Registry.SQLitePath == "" {
		return fmt.Errorf("%w: registry.sqlite_path is required", domain.ErrConfiguration)
	}
	if c.VectorIndex.Backend == "qdrant" && c.VectorIndex.Qdrant.Host == "" {
		return fmt.Errorf("%w: vector_index.qdrant.host is required", domain.ErrConfiguration)
	}
	return nil
}

// UsesPostgres reports whether any backend needs the database
func (c *Config) UsesPostgres() bool {
	return c.Registry.Backend == "postgres" || c.Queue.Backend == "postgres" || c.Lock.Backend == "postgres"
}

// ChunkStrategy resolves the configured chunking strategy
func (c *Config) ChunkStrategy() (domain.ChunkStrategy, error) {
	return domain.ParseChunkStrategy(c.Chunking.Strategy)
}

// ChunkOptions returns the sliding window size
func (c *Config) ChunkOptions() domain.ChunkOptions {
	return domain.ChunkOptions{ChunkSize: c.Chunking.ChunkSize, Overlap: c.Chunking.Overlap}
}

// EmbeddingSettings converts the embedding section for the AI factory
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider:   domain.AIProvider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Dimensions: c.Embedding.Dimensions,
		Timeout:    c.Embedding.Timeout,
		MaxRetries: c.Embedding.MaxRetries,
	}
}

// LLMSettings converts the llm section for the AI factory
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider:    domain.AIProvider(c.LLM.Provider),
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
		MaxRetries:  c.LLM.MaxRetries,
	}
}

// WriteFile writes c as YAML. Existing files are left alone unless
// overwrite is set.
func (c *Config) WriteFile(path string, overwrite bool) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	// API keys may end up in this file
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Handler builds the slog handler selected by the log section.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: l.level()}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (l LogConfig) level() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setDefaults registers every leaf of cfg under its dotted key so that
// AutomaticEnv can find overrides for keys missing from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	var tree map[string]any
	data, _ := yaml.Marshal(cfg)
	_ = yaml.Unmarshal(data, &tree)
	setTree(v, "", tree)
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setTree(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}
