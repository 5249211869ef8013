// Package main implements the restodb CLI, which converges a document store
// onto the declared restaurant-platform schema and audits its query plans.
//
// Usage:
//
//	restodb [run]            Converge, then audit every declared query
//	restodb plan             Show the convergence plan without applying it
//	restodb audit [query...] Audit declared queries (all by default)
//	restodb schema           Validate and print the declared schema
//	restodb serve            Start the admin HTTP API
//	restodb version          Show version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	internalerrors "github.com/adfharrison1/restodb/internal/errors"
	"github.com/adfharrison1/restodb/internal/ui"
	"github.com/adfharrison1/restodb/pkg/api"
	"github.com/adfharrison1/restodb/pkg/audit"
	"github.com/adfharrison1/restodb/pkg/config"
	"github.com/adfharrison1/restodb/pkg/converge"
	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/gateway"
	"github.com/adfharrison1/restodb/pkg/registry"
	"github.com/adfharrison1/restodb/pkg/report"
	"github.com/adfharrison1/restodb/pkg/server"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const usageText = `restodb - schema and index lifecycle for the restaurant platform store

Usage:
  restodb [command] [options]

Commands:
  run            Converge the store, then audit every declared query (default)
  plan           Show the convergence plan without applying it
  audit [query]  Audit declared queries, all of them when none is named
  schema         Validate and print the declared schema
  serve          Start the admin HTTP API
  version        Show version and exit

Configuration is read from ./restodb.yaml, then ./.env, then the
environment (MONGODB_URI, DB_NAME, RESTODB_*), then flags.

Options:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// cli carries what every command needs once the configuration is resolved.
type cli struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := pflag.NewFlagSet("restodb", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := config.NewFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return internalerrors.ExitSuccess
		}
		return internalerrors.Write(stderr, internalerrors.NewInputError(
			"Invalid arguments", err.Error(), "Run 'restodb --help' for usage"), false, false)
	}

	command, rest := "run", fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	if command == "version" {
		fmt.Fprintf(stdout, "restodb version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		return internalerrors.ExitSuccess
	}

	cfg, err := flags.Resolve(getenv)
	if err == nil {
		err = cfg.Validate()
	}
	jsonOut := cfg.Output == report.FormatJSON
	if err != nil {
		return internalerrors.Write(stderr, internalerrors.NewSchemaError(
			"Invalid configuration", err.Error(), "Fix restodb.yaml, .env, the environment or the flags", err),
			jsonOut, cfg.NoColor)
	}

	ui.InitColors(cfg.NoColor)
	logger := config.NewLogger(stderr, cfg.Log)
	slog.SetDefault(logger)

	c := &cli{cfg: cfg, stdout: stdout, stderr: stderr, logger: logger}
	switch command {
	case "run":
		err = c.run(ctx)
	case "plan":
		err = c.plan(ctx)
	case "audit":
		err = c.audit(ctx, rest)
	case "schema":
		err = c.schema()
	case "serve":
		err = c.serve(ctx)
	default:
		err = internalerrors.NewInputError(
			"Unknown command: "+command, "", "Run 'restodb --help' for the list of commands")
	}
	return internalerrors.Write(stderr, err, jsonOut, cfg.NoColor)
}

func (c *cli) registry() (*registry.Registry, error) {
	opt := registry.WithCapabilities(c.cfg.Capabilities())
	if c.cfg.SchemaFile != "" {
		return registry.LoadFile(c.cfg.SchemaFile, opt)
	}
	return registry.Default(opt)
}

func (c *cli) open(ctx context.Context) (*gateway.Resilient, error) {
	return gateway.Open(ctx, gateway.Options{
		URI:              c.cfg.URI,
		Database:         c.cfg.Database,
		StrictAPI:        c.cfg.StrictAPI,
		Timeout:          c.cfg.Timeout,
		Retries:          c.cfg.Retries,
		Backoff:          c.cfg.Backoff,
		RateLimit:        c.cfg.RateLimit,
		RateBurst:        c.cfg.RateBurst,
		SnapshotInterval: c.cfg.SnapshotInterval,
		Logger:           c.logger,
	})
}

func (c *cli) engine(reg *registry.Registry) *converge.Engine {
	return converge.NewEngine(reg,
		converge.WithWorkers(c.cfg.Workers),
		converge.WithPruneUndeclared(c.cfg.PruneUndeclared),
		converge.WithLogger(c.logger),
	)
}

func (c *cli) auditor() *audit.Auditor {
	return audit.New(audit.WithIneffectiveRatio(c.cfg.IneffectiveRatio), audit.WithLogger(c.logger))
}

// session resolves the registry and opens the store. The caller closes gw.
func (c *cli) session(ctx context.Context) (*registry.Registry, *gateway.Resilient, error) {
	reg, err := c.registry()
	if err != nil {
		return nil, nil, err
	}
	gw, err := c.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reg, gw, nil
}

func (c *cli) close(gw domain.Gateway) {
	if err := gw.Close(context.Background()); err != nil {
		c.logger.Error("gateway.close.failed", "err", err)
	}
}

func (c *cli) run(ctx context.Context) error {
	reg, gw, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer c.close(gw)

	result, err := c.engine(reg).Converge(ctx, gw)
	summary := report.Summary{Database: c.cfg.Database, Result: result}
	if err != nil {
		_ = report.Write(c.stdout, summary, c.cfg.Output)
		return err
	}
	summary.Audits = c.auditor().AuditAll(ctx, gw, reg.Queries())
	if err := report.Write(c.stdout, summary, c.cfg.Output); err != nil {
		return err
	}
	if c.cfg.Strict && result.HasFailures() {
		return internalerrors.NewIndexFailuresError(len(result.Failures), nil)
	}
	return nil
}

func (c *cli) plan(ctx context.Context) error {
	reg, gw, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer c.close(gw)

	plan, err := c.engine(reg).Plan(ctx, gw)
	if err != nil {
		return err
	}
	return report.Write(c.stdout, report.Summary{Database: c.cfg.Database, Plan: &plan}, c.cfg.Output)
}

func (c *cli) audit(ctx context.Context, names []string) error {
	reg, err := c.registry()
	if err != nil {
		return err
	}
	queries := reg.Queries()
	if len(names) > 0 {
		queries = queries[:0:0]
		for _, name := range names {
			q, ok := reg.Query(name)
			if !ok {
				return internalerrors.NewInputError(
					"Unknown query: "+name, "no declared query has this name", "Run 'restodb schema' to list the declared queries")
			}
			queries = append(queries, q)
		}
	}

	gw, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer c.close(gw)

	audits := c.auditor().AuditAll(ctx, gw, queries)
	return report.Write(c.stdout, report.Summary{Database: c.cfg.Database, Audits: audits}, c.cfg.Output)
}

func (c *cli) schema() error {
	reg, err := c.registry()
	if err != nil {
		return err
	}
	if c.cfg.Output == report.FormatJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"collections":  reg.DeclaredCollections(),
			"queries":      reg.Queries(),
			"index_count":  reg.IndexCount(),
			"capabilities": reg.Capabilities(),
		})
	}
	data, err := reg.Marshal()
	if err != nil {
		return err
	}
	if _, err := c.stdout.Write(data); err != nil {
		return err
	}
	ui.Successf(c.stderr, "%d collections, %d indexes, %d queries", len(reg.DeclaredCollections()), reg.IndexCount(), len(reg.Queries()))
	return nil
}

func (c *cli) serve(ctx context.Context) error {
	reg, gw, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer c.close(gw)

	metrics := prometheus.NewRegistry()
	if err := errors.Join(
		metrics.Register(collectors.NewGoCollector()),
		metrics.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
		converge.Register(metrics),
		gateway.Register(metrics),
		audit.Register(metrics),
	); err != nil {
		return err
	}

	handler := api.NewHandler(gw, reg, c.engine(reg), c.auditor(), api.WithLogger(c.logger))
	return server.NewServer(handler, metrics, c.logger).Serve(ctx, c.cfg.Listen)
}
