package configfx

import (
	"fmt"
	"os"
	"strconv"

	"github.com/0x5457/decl-index/internal/constants"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	CorpusPath string          `yaml:"corpus"`
	MatrixPath string          `yaml:"matrix"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Index      IndexConfig     `yaml:"index"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"-"`
	BaseURL         string `yaml:"base_url"`
	EmbedURL        string `yaml:"embed_url"`
	Dimension       int    `yaml:"dimension"`
	BatchSize       int    `yaml:"batch_size"`
	MaxBatch        int    `yaml:"max_batch"`
	TokensPerMinute int    `yaml:"tokens_per_minute"`
}

// IndexConfig selects the ANN backend and its build parameters.
type IndexConfig struct {
	Backend          string `yaml:"backend"`
	Prefix           string `yaml:"prefix"`
	M                int    `yaml:"m"`
	EfConstruction   int    `yaml:"ef_construction"`
	EfSearch         int    `yaml:"ef_search"`
	ChunkSize        int    `yaml:"chunk_size"`
	QdrantAddr       string `yaml:"qdrant_addr"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

// Params represents the parameters needed to create configuration
type Params struct {
	fx.In

	ConfigFile string `name:"configFile" optional:"true"`
	EnvFile    string `name:"envFile"    optional:"true"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		CorpusPath: constants.DefaultCorpusPath,
		MatrixPath: constants.DefaultMatrixPath,
		Embedding: EmbeddingConfig{
			Provider:        constants.DefaultProvider,
			Model:           constants.DefaultModel,
			BaseURL:         constants.DefaultBaseURL,
			EmbedURL:        constants.DefaultEmbedURL,
			BatchSize:       constants.DefaultBatchSize,
			MaxBatch:        constants.MaxEmbedBatch,
			TokensPerMinute: constants.DefaultTokensPerMinute,
		},
		Index: IndexConfig{
			Backend:        constants.DefaultBackend,
			Prefix:         constants.DefaultPrefix,
			M:              constants.DefaultM,
			EfConstruction: constants.DefaultEfConstruction,
			EfSearch:       constants.DefaultEfSearch,
			ChunkSize:      constants.DefaultChunkSize,
			QdrantAddr:     constants.DefaultQdrantAddr,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, an optional
// dotenv file and the process environment, in increasing precedence.
func Load(configFile, envFile string) (*Config, error) {
	cfg := Default()
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
		}
	}
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// loadDotEnv populates unset environment variables from envFile, or from
// ./.env when envFile is empty and the file exists.
func loadDotEnv(envFile string) error {
	if envFile == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("cannot load env file %s: %w", envFile, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"OPENAI_API_KEY":            &cfg.Embedding.APIKey,
		"OPENAI_BASE_URL":           &cfg.Embedding.BaseURL,
		"DECL_INDEX_EMBED_PROVIDER": &cfg.Embedding.Provider,
		"DECL_INDEX_EMBED_MODEL":    &cfg.Embedding.Model,
		"DECL_INDEX_EMBED_URL":      &cfg.Embedding.EmbedURL,
		"DECL_INDEX_CORPUS":         &cfg.CorpusPath,
		"DECL_INDEX_MATRIX":         &cfg.MatrixPath,
		"DECL_INDEX_BACKEND":        &cfg.Index.Backend,
		"DECL_INDEX_PREFIX":         &cfg.Index.Prefix,
		"DECL_INDEX_QDRANT_ADDR":    &cfg.Index.QdrantAddr,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"DECL_INDEX_DIMENSION":         &cfg.Embedding.Dimension,
		"DECL_INDEX_TOKENS_PER_MINUTE": &cfg.Embedding.TokensPerMinute,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = n
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = d.Embedding.BatchSize
	}
	if c.Embedding.MaxBatch <= 0 {
		c.Embedding.MaxBatch = d.Embedding.MaxBatch
	}
	if c.Embedding.TokensPerMinute <= 0 {
		c.Embedding.TokensPerMinute = d.Embedding.TokensPerMinute
	}
	if c.Index.M <= 0 {
		c.Index.M = d.Index.M
	}
	if c.Index.EfConstruction <= 0 {
		c.Index.EfConstruction = d.Index.EfConstruction
	}
	if c.Index.EfSearch <= 0 {
		c.Index.EfSearch = d.Index.EfSearch
	}
	if c.Index.ChunkSize <= 0 {
		c.Index.ChunkSize = d.Index.ChunkSize
	}
}

// NewConfig creates a new configuration with defaults
func NewConfig(params Params) (*Config, error) {
	return Load(params.ConfigFile, params.EnvFile)
}

// Module provides configuration for the application
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
