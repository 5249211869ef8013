package config

import (
	"github.com/spf13/pflag"
)

// Flags binds the settings to a FlagSet. Only flags given on the command
// line override the loaded configuration.
type Flags struct {
	fs     *pflag.FlagSet
	values Config

	ConfigFile string
	EnvFile    string
}

// NewFlags registers every setting on fs.
func NewFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	v := &f.values

	fs.StringVar(&f.ConfigFile, "config", "", "YAML config file (default ./"+DefaultConfigFile+" when present)")
	fs.StringVar(&f.EnvFile, "env-file", "", "dotenv file (default ./"+DefaultEnvFile+" when present)")

	fs.StringVar(&v.URI, "uri", d.URI, "store URI: mongodb://, mongodb+srv:// or mem://[/path/file.godb]")
	fs.StringVar(&v.Database, "database", d.Database, "database name")
	fs.StringVar(&v.SchemaFile, "schema", "", "YAML schema file (default: built-in restaurant schema)")
	fs.BoolVar(&v.StrictAPI, "strict-api", false, "pin MongoDB Stable API v1 in strict mode")
	fs.DurationVar(&v.Timeout, "timeout", d.Timeout, "per-call timeout")
	fs.IntVar(&v.Retries, "retries", d.Retries, "retries of a failed store call")
	fs.DurationVar(&v.Backoff, "backoff", d.Backoff, "first retry delay")
	fs.Float64Var(&v.RateLimit, "rate-limit", 0, "max store calls per second (0 = unlimited)")
	fs.IntVar(&v.RateBurst, "rate-burst", 1, "rate limiter burst")
	fs.IntVar(&v.Workers, "workers", d.Workers, "collections converged in parallel")
	fs.BoolVar(&v.PruneUndeclared, "prune", false, "drop live indexes that no declaration names")
	fs.Float64Var(&v.IneffectiveRatio, "ineffective-ratio", d.IneffectiveRatio, "examined/returned ratio flagged as ineffective")
	fs.BoolVar(&v.Strict, "strict", false, "exit non-zero when any index action fails")
	fs.DurationVar(&v.SnapshotInterval, "snapshot-interval", 0, "periodic snapshot of a mem:// store file (0 = on exit only)")
	fs.StringVar(&v.Listen, "listen", d.Listen, "admin API listen address")
	fs.StringVarP(&v.Output, "output", "o", d.Output, "output format: text or json")
	fs.BoolVar(&v.NoColor, "no-color", false, "disable coloured output")
	fs.StringVar(&v.Log.Level, "log-level", d.Log.Level, "log level: debug, info, warn, error")
	fs.StringVar(&v.Log.Format, "log-format", d.Log.Format, "log format: text or json")
	return f
}

// Apply copies every flag set on the command line onto cfg.
func (f *Flags) Apply(cfg *Config) {
	v := f.values
	set := map[string]func(){
		"uri":               func() { cfg.URI = v.URI },
		"database":          func() { cfg.Database = v.Database },
		"schema":            func() { cfg.SchemaFile = v.SchemaFile },
		"strict-api":        func() { cfg.StrictAPI = v.StrictAPI },
		"timeout":           func() { cfg.Timeout = v.Timeout },
		"retries":           func() { cfg.Retries = v.Retries },
		"backoff":           func() { cfg.Backoff = v.Backoff },
		"rate-limit":        func() { cfg.RateLimit = v.RateLimit },
		"rate-burst":        func() { cfg.RateBurst = v.RateBurst },
		"workers":           func() { cfg.Workers = v.Workers },
		"prune":             func() { cfg.PruneUndeclared = v.PruneUndeclared },
		"ineffective-ratio": func() { cfg.IneffectiveRatio = v.IneffectiveRatio },
		"strict":            func() { cfg.Strict = v.Strict },
		"snapshot-interval": func() { cfg.SnapshotInterval = v.SnapshotInterval },
		"listen":            func() { cfg.Listen = v.Listen },
		"output":            func() { cfg.Output = v.Output },
		"no-color":          func() { cfg.NoColor = v.NoColor },
		"log-level":         func() { cfg.Log.Level = v.Log.Level },
		"log-format":        func() { cfg.Log.Format = v.Log.Format },
	}
	f.fs.Visit(func(fl *pflag.Flag) {
		if apply, ok := set[fl.Name]; ok {
			apply()
		}
	})
}

// Resolve loads the configuration named by the parsed flags and applies them.
func (f *Flags) Resolve(getenv func(string) string) (Config, error) {
	cfg, err := Load(Sources{ConfigFile: f.ConfigFile, EnvFile: f.EnvFile, Getenv: getenv})
	if err != nil {
		return cfg, err
	}
	f.Apply(&cfg)
	return cfg, nil
}
