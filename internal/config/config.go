package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"` // sqlite: one database file per schema
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"` // postgres pool size
	// ConnectAttempts is how often opening the store is tried before giving up.
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// IngestConfig configures how report files are read and loaded.
type IngestConfig struct {
	Strict   bool   `yaml:"strict" mapstructure:"strict"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	TempDir  string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// DeleteChunk is the number of key tuples matched by one DELETE.
	DeleteChunk  int `yaml:"delete_chunk" mapstructure:"delete_chunk"`
	SyncAttempts int `yaml:"sync_attempts" mapstructure:"sync_attempts"`
	// Policies overrides the sync policy of a report by id, e.g.
	// siif_rf602: "replace_by_key(ejercicio)" or icaro_carga: full_replace.
	Policies map[string]string `yaml:"policies" mapstructure:"policies"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Env var binding: REPORTSYNC_STORE_DRIVER -> store.driver
	v.SetEnvPrefix("REPORTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dir", "./data")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.strict", false)
	v.SetDefault("ingest.encoding", "ISO-8859-1")
	v.SetDefault("ingest.temp_dir", "/tmp/reportsync")
	v.SetDefault("ingest.delete_chunk", 200)
	v.SetDefault("ingest.sync_attempts", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the store settings are usable.
func (c *Config) Validate() error {
	var missing []string
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Dir == "" {
			missing = append(missing, "store.dir")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url (REPORTSYNC_STORE_DATABASE_URL)")
		}
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.MaxConns < 0 {
		return eris.Errorf("config: store.max_conns must not be negative, got %d", c.Store.MaxConns)
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
