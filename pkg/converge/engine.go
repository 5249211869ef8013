// Package converge reconciles the declared schema with a live store.
package converge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds how many collections have index work in flight.
const DefaultWorkers = 4

// Declaration is the read side of the schema registry.
type Declaration interface {
	DeclaredCollections() []domain.CollectionSpec
}

// Engine converges a store towards a declaration. An Engine holds no
// per-run state and may be reused and shared.
type Engine struct {
	declaration Declaration
	logger      *slog.Logger
	workers     int
	prune       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for run and action events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers sets the size of the index worker pool.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithPruneUndeclared drops live indexes no declaration names.
func WithPruneUndeclared(prune bool) Option {
	return func(e *Engine) {
		e.prune = prune
	}
}

// NewEngine creates an engine for a declaration.
func NewEngine(declaration Declaration, opts ...Option) *Engine {
	e := &Engine{
		declaration: declaration,
		logger:      slog.Default(),
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan computes the actions a run would take, without applying any.
func (e *Engine) Plan(ctx context.Context, gw domain.Gateway) (domain.ConvergencePlan, error) {
	declared := e.declaration.DeclaredCollections()
	existing, err := gw.ListCollections(ctx)
	if err != nil {
		return domain.ConvergencePlan{}, fmt.Errorf("list collections: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	live := make(map[string][]domain.LiveIndexState, len(declared))
	for _, c := range declared {
		if !present[c.Name] {
			continue
		}
		indexes, err := listIndexes(ctx, gw, c.Name)
		if err != nil {
			return domain.ConvergencePlan{}, fmt.Errorf("list indexes of %s: %w", c.Name, err)
		}
		live[c.Name] = indexes
	}
	return Diff(declared, existing, live, e.prune), nil
}

// Converge applies the plan. Index failures are recorded in the result and
// the run continues; the returned error is non-nil only when the run was
// aborted (store unavailable, live state unreadable).
func (e *Engine) Converge(ctx context.Context, gw domain.Gateway) (*domain.ConvergenceResult, error) {
	start := time.Now()
	result := domain.NewConvergenceResult()
	declared := e.declaration.DeclaredCollections()

	err := e.converge(ctx, gw, declared, result)
	result.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "aborted"
	case result.HasFailures():
		outcome = "partial"
	}
	RunCount.WithLabelValues(outcome).Inc()
	RunDuration.Observe(result.Duration.Seconds())

	e.logger.Info("converge.done",
		"outcome", outcome,
		"applied", len(result.Applied),
		"failed", len(result.Failures),
		"skipped", len(result.Skipped),
		"unmanaged", len(result.Unmanaged),
		"duration", result.Duration)
	return result, err
}

func (e *Engine) converge(ctx context.Context, gw domain.Gateway, declared []domain.CollectionSpec, result *domain.ConvergenceResult) error {
	existing, err := gw.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	// Collections first: every create-collection completes before any index work.
	plan := Diff(declared, existing, nil, false)
	for _, action := range plan.Actions {
		if action.Kind != domain.ActionCreateCollection {
			continue
		}
		if ctx.Err() != nil {
			e.skip(result, action, ReasonCancelled)
			continue
		}
		if err := e.createCollection(ctx, gw, action, result); err != nil {
			return err
		}
	}

	// Index work, one task per collection, bounded by the worker pool.
	// Tasks never cancel each other; a fatal error stops new actions only.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	outcomes := make([]*domain.ConvergenceResult, len(declared))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, c := range declared {
		outcomes[i] = domain.NewConvergenceResult()
		task := &collectionTask{
			engine: e,
			gw:     gw,
			spec:   c,
			result: outcomes[i],
		}
		g.Go(func() error {
			if err := task.run(ctx, runCtx); err != nil {
				stop()
				return err
			}
			return nil
		})
	}
	fatal := g.Wait()

	// Reported in declaration order regardless of scheduling.
	for _, o := range outcomes {
		result.Merge(o)
	}
	return fatal
}

func (e *Engine) createCollection(ctx context.Context, gw domain.Gateway, action domain.Action, result *domain.ConvergenceResult) error {
	err := gw.CreateCollection(context.WithoutCancel(ctx), action.Collection)
	switch {
	case err == nil:
		e.logger.Info("converge.collection.create", "collection", action.Collection)
		e.apply(result, action)
	case errors.Is(err, domain.ErrAlreadyExists):
		// created concurrently by another deployer
		e.logger.Info("converge.collection.exists", "collection", action.Collection)
		ActionCount.WithLabelValues(action.Collection, string(action.Kind), resultNoop).Inc()
	case domain.IsFatal(err):
		e.logger.Error("converge.abort", "collection", action.Collection, "err", err)
		return fmt.Errorf("create collection %s: %w", action.Collection, err)
	default:
		e.fail(result, action, err)
	}
	return nil
}

func (e *Engine) apply(result *domain.ConvergenceResult, action domain.Action) {
	result.Applied = append(result.Applied, action)
	ActionCount.WithLabelValues(action.Collection, string(action.Kind), resultApplied).Inc()
}

func (e *Engine) fail(result *domain.ConvergenceResult, action domain.Action, err error) {
	e.logger.Warn("converge.action.failed",
		"kind", action.Kind,
		"collection", action.Collection,
		"index", action.IndexName,
		"err", err)
	result.Failures = append(result.Failures, domain.Failure{Action: action, Reason: err.Error(), Err: err})
	ActionCount.WithLabelValues(action.Collection, string(action.Kind), resultFailed).Inc()
}

func (e *Engine) skip(result *domain.ConvergenceResult, action domain.Action, reason string) {
	action.Reason = reason
	result.Skipped = append(result.Skipped, action)
	ActionCount.WithLabelValues(action.Collection, string(action.Kind), resultSkipped).Inc()
}

// listIndexes treats a missing collection as having no indexes.
func listIndexes(ctx context.Context, gw domain.Gateway, coll string) ([]domain.LiveIndexState, error) {
	indexes, err := gw.ListIndexes(ctx, coll)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return indexes, err
}
