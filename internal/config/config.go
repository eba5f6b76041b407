package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment variables read as configuration, e.g.
// KNOLSHARE_DB_DSN for db.dsn.
const EnvPrefix = "KNOLSHARE_"

// FileFlag names the flag holding an optional YAML config path.
const FileFlag = "config"

type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite pgx"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type HTTPConfig struct {
	Addr        string        `koanf:"addr" validate:"required"`
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// ReposConfig places deck files. LocalRoot confines local directories
// registered over HTTP; when empty only remote git URLs are accepted there.
type ReposConfig struct {
	Dir       string `koanf:"dir" validate:"required"`
	LocalRoot string `koanf:"local_root"`
}

type ScheduleConfig struct {
	Timezone string `koanf:"timezone" validate:"required,timezone"`
}

// Config is the resolved application configuration.
type Config struct {
	DB       DBConfig       `koanf:"db"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
	Repos    ReposConfig    `koanf:"repos"`
	Schedule ScheduleConfig `koanf:"schedule"`
}

// flagKeys maps flag names to config keys. Flags not listed here are left to
// the caller.
var flagKeys = map[string]string{
	"db-driver":         "db.driver",
	"db-dsn":            "db.dsn",
	"http-addr":         "http.addr",
	"http-read-timeout": "http.read_timeout",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"repos-dir":         "repos.dir",
	"repos-local-root":  "repos.local_root",
	"timezone":          "schedule.timezone",
}

// RegisterFlags adds the configuration flags and their defaults to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(FileFlag, "", "Path to a YAML config file")
	flags.String("db-driver", "sqlite", "Database driver: sqlite or pgx")
	flags.String("db-dsn", "knolshare.db", "Database DSN or SQLite file path")
	flags.String("http-addr", ":8080", "HTTP listen address")
	flags.Duration("http-read-timeout", 10*time.Second, "HTTP read timeout")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("repos-dir", "repos", "Directory for git deck checkouts")
	flags.String("repos-local-root", "", "Directory that local deck sources added over HTTP must live in")
	flags.String("timezone", "UTC", "IANA time zone that decides calendar days")
}

// Load resolves configuration from, lowest to highest precedence: flag
// defaults, the YAML file named by --config, the environment (after loading
// .env), and flags set on the command line. flags must already be parsed.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	flagKey := func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}

	// An empty instance makes posflag emit every default.
	if err := k.Load(posflag.ProviderWithFlag(flags, ".", koanf.New("."), flagKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load flag defaults: %w", err)
	}

	if path, _ := flags.GetString(FileFlag); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Only flags the user actually set override the layers above.
	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns KNOLSHARE_HTTP_READ_TIMEOUT into http.read_timeout. Only the
// first underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
