// Package config loads restodb settings. Later sources win:
// defaults, restodb.yaml, .env, environment, command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultConfigFile       = "restodb.yaml"
	DefaultEnvFile          = ".env"
	DefaultURI              = "mongodb://localhost:27017"
	DefaultDatabase         = "restaurantes_db"
	DefaultTimeout          = 10 * time.Second
	DefaultRetries          = 3
	DefaultBackoff          = 200 * time.Millisecond
	DefaultWorkers          = 4
	DefaultIneffectiveRatio = 20
	DefaultListen           = ":8080"
)

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the resolved configuration of one invocation.
type Config struct {
	URI              string        `yaml:"uri"`
	Database         string        `yaml:"database"`
	SchemaFile       string        `yaml:"schema_file"`
	StrictAPI        bool          `yaml:"strict_api"`
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	Backoff          time.Duration `yaml:"backoff"`
	RateLimit        float64       `yaml:"rate_limit"`
	RateBurst        int           `yaml:"rate_burst"`
	Workers          int           `yaml:"workers"`
	PruneUndeclared  bool          `yaml:"prune_undeclared"`
	IneffectiveRatio float64       `yaml:"ineffective_ratio"`
	Strict           bool          `yaml:"strict"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	Listen           string        `yaml:"listen"`
	Output           string        `yaml:"output"`
	NoColor          bool          `yaml:"no_color"`
	Log              LogConfig     `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		URI:              DefaultURI,
		Database:         DefaultDatabase,
		Timeout:          DefaultTimeout,
		Retries:          DefaultRetries,
		Backoff:          DefaultBackoff,
		Workers:          DefaultWorkers,
		IneffectiveRatio: DefaultIneffectiveRatio,
		Listen:           DefaultListen,
		Output:           "text",
		Log:              LogConfig{Level: "info", Format: "text"},
	}
}

// Sources names where Load reads from. Empty paths use the defaults and
// tolerate missing files; explicit paths must exist.
type Sources struct {
	ConfigFile string
	EnvFile    string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load resolves defaults, the YAML file, the .env file and the environment.
// Flags are applied afterwards by Flags.Apply.
func Load(src Sources) (Config, error) {
	cfg := Default()

	path, explicit := src.ConfigFile, src.ConfigFile != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return cfg, err
	}

	dotenv, err := readEnvFile(src.EnvFile)
	if err != nil {
		return cfg, err
	}
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return values, nil
}

// applyEnv reads MONGODB_URI and DB_NAME, then the RESTODB_* overrides.
func (c *Config) applyEnv(lookup func(string) string) error {
	setString := func(target *string, keys ...string) {
		for _, k := range keys {
			if v := lookup(k); v != "" {
				*target = v
			}
		}
	}
	setString(&c.URI, "MONGODB_URI", "RESTODB_URI")
	setString(&c.Database, "DB_NAME", "RESTODB_DATABASE")
	setString(&c.SchemaFile, "RESTODB_SCHEMA")
	setString(&c.Listen, "RESTODB_LISTEN")
	setString(&c.Output, "RESTODB_OUTPUT")
	setString(&c.Log.Level, "RESTODB_LOG_LEVEL")
	setString(&c.Log.Format, "RESTODB_LOG_FORMAT")

	var errs []error
	parse := func(key string, fn func(string) error) {
		if v := lookup(key); v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
			}
		}
	}
	parse("RESTODB_TIMEOUT", durationInto(&c.Timeout))
	parse("RESTODB_BACKOFF", durationInto(&c.Backoff))
	parse("RESTODB_SNAPSHOT_INTERVAL", durationInto(&c.SnapshotInterval))
	parse("RESTODB_RETRIES", intInto(&c.Retries))
	parse("RESTODB_WORKERS", intInto(&c.Workers))
	parse("RESTODB_RATE_BURST", intInto(&c.RateBurst))
	parse("RESTODB_RATE_LIMIT", floatInto(&c.RateLimit))
	parse("RESTODB_INEFFECTIVE_RATIO", floatInto(&c.IneffectiveRatio))
	parse("RESTODB_STRICT_API", boolInto(&c.StrictAPI))
	parse("RESTODB_STRICT", boolInto(&c.Strict))
	parse("RESTODB_PRUNE_UNDECLARED", boolInto(&c.PruneUndeclared))
	parse("NO_COLOR", func(string) error { c.NoColor = true; return nil })
	return errors.Join(errs...)
}

func durationInto(target *time.Duration) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(s)
		if err == nil {
			*target = d
		}
		return err
	}
}

func intInto(target *int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err == nil {
			*target = n
		}
		return err
	}
}

func floatInto(target *float64) func(string) error {
	return func(s string) error {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			*target = f
		}
		return err
	}
}

func boolInto(target *bool) func(string) error {
	return func(s string) error {
		b, err := strconv.ParseBool(s)
		if err == nil {
			*target = b
		}
		return err
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch scheme(c.URI) {
	case "mongodb", "mongodb+srv", "mem":
	default:
		errs = append(errs, fmt.Errorf("uri: unsupported scheme in %q (want mongodb://, mongodb+srv:// or mem://)", c.uriForDisplay()))
	}
	if c.Database == "" || strings.ContainsAny(c.Database, `/\. "$`) {
		errs = append(errs, fmt.Errorf("database: invalid name %q", c.Database))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout: must be positive, got %s", c.Timeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries: must not be negative, got %d", c.Retries))
	}
	if c.Backoff <= 0 {
		errs = append(errs, fmt.Errorf("backoff: must be positive, got %s", c.Backoff))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit/rate_burst: must not be negative"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers: need at least 1, got %d", c.Workers))
	}
	if c.IneffectiveRatio <= 0 {
		errs = append(errs, fmt.Errorf("ineffective_ratio: must be positive, got %g", c.IneffectiveRatio))
	}
	if c.SnapshotInterval < 0 {
		errs = append(errs, fmt.Errorf("snapshot_interval: must not be negative"))
	}
	switch c.Output {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output: want text or json, got %q", c.Output))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Capabilities is what the configured store can build. A MongoDB server in
// strict Stable API mode rejects text indexes.
func (c Config) Capabilities() domain.Capabilities {
	caps := domain.AllCapabilities
	if c.StrictAPI && scheme(c.URI) != "mem" {
		caps.TextIndexes = false
	}
	return caps
}

func (c Config) uriForDisplay() string {
	if at := strings.LastIndex(c.URI, "@"); at >= 0 {
		if i := strings.Index(c.URI, "://"); i >= 0 && i < at {
			return c.URI[:i+3] + "…" + c.URI[at:]
		}
	}
	return c.URI
}

func scheme(uri string) string {
	s, _, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(s)
}
