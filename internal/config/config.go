// Package config loads wildlifecore runtime settings from defaults, an
// optional YAML file, WILDLIFE_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wildlifecore/internal/blob"
	"wildlifecore/internal/catalog"
	"wildlifecore/internal/infra/persistence/sqlite"
)

// EnvPrefix namespaces environment overrides, e.g. WILDLIFE_STORAGE_DRIVER.
const EnvPrefix = "WILDLIFE"

// Config is the full runtime configuration.
type Config struct {
	Storage StorageSettings `mapstructure:"storage"`
	Blob    BlobSettings    `mapstructure:"blob"`
	Log     LogSettings     `mapstructure:"log"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Trace   TraceSettings   `mapstructure:"trace"`
}

// StorageSettings selects the catalog persistence backend.
type StorageSettings struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// BlobSettings selects where image bytes are kept.
type BlobSettings struct {
	Driver string     `mapstructure:"driver"`
	FSRoot string     `mapstructure:"fs_root"`
	S3     S3Settings `mapstructure:"s3"`
}

// S3Settings configures the s3 blob driver. Credentials are optional and
// fall back to the default AWS chain.
type S3Settings struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LogSettings controls the slog handler.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsSettings controls metrics publication. An empty ExpvarName leaves
// expvar publication off. Prometheus collects into a private registry that
// the CLI prints in text exposition format once the command finishes.
type MetricsSettings struct {
	ExpvarName string `mapstructure:"expvar_name"`
	Prometheus bool   `mapstructure:"prometheus"`
}

// TraceSettings turns on one JSON span line per catalog operation.
type TraceSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"storage-driver":     "storage.driver",
	"sqlite-path":        "storage.sqlite_path",
	"postgres-dsn":       "storage.postgres_dsn",
	"blob-driver":        "blob.driver",
	"blob-root":          "blob.fs_root",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"metrics-prometheus": "metrics.prometheus",
	"trace":              "trace.enabled",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(catalog.StorageSQLite))
	v.SetDefault("storage.sqlite_path", sqlite.DefaultPath)
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", blob.DefaultFSRoot)
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.expvar_name", "")
	v.SetDefault("metrics.prometheus", false)
	v.SetDefault("trace.enabled", false)
}

// Load resolves the configuration. Precedence, highest first: changed flags,
// environment, the config file, defaults. An empty path looks for
// wildlife.yaml in the working directory and tolerates its absence; an
// explicit path must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("wildlife")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and log settings.
func (c *Config) Validate() error {
	switch catalog.StorageDriver(c.Storage.Driver) {
	case catalog.StorageMemory, catalog.StorageSQLite, catalog.StoragePostgres:
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("invalid blob.driver %q", c.Blob.Driver)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

// StorageConfig converts the storage settings for catalog.OpenPersistentStore.
func (c *Config) StorageConfig() catalog.StorageConfig {
	return catalog.StorageConfig{
		Driver:      catalog.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig converts the blob settings for blob.Open.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.Blob.S3.Bucket,
			Region:          c.Blob.S3.Region,
			Endpoint:        c.Blob.S3.Endpoint,
			PathStyle:       c.Blob.S3.PathStyle,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
		},
	}
}

// Logger builds a slog logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
