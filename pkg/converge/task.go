package converge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
)

const reasonAborted = "not attempted: run aborted"

// collectionTask is the index work of one collection within a run. It owns
// its result slot, so tasks need no shared locking.
type collectionTask struct {
	engine *Engine
	gw     domain.Gateway
	spec   domain.CollectionSpec
	result *domain.ConvergenceResult
}

// run lists the live indexes once, then drops before creating. ctx is the
// caller's context; runCtx is additionally cancelled when another task hits
// a fatal error. Calls already issued run to completion.
func (t *collectionTask) run(ctx, runCtx context.Context) error {
	e := t.engine
	if runCtx.Err() != nil && ctx.Err() == nil {
		// another collection aborted the run before this one read its
		// live state; every declared index is reported as not attempted
		for _, idx := range t.spec.Indexes {
			e.skip(t.result, createAction(t.spec.Name, idx.Clone(), ReasonMissing), reasonAborted)
		}
		return nil
	}
	callCtx := context.WithoutCancel(ctx)

	live, err := listIndexes(callCtx, t.gw, t.spec.Name)
	if err != nil {
		if domain.IsFatal(err) {
			return fmt.Errorf("list indexes of %s: %w", t.spec.Name, err)
		}
		for _, idx := range t.spec.Indexes {
			e.fail(t.result, createAction(t.spec.Name, idx.Clone(), ReasonMissing), fmt.Errorf("list indexes: %w", err))
		}
		return nil
	}

	cp := diffCollection(t.spec, live, e.prune)
	for _, u := range cp.unmanaged {
		e.logger.Warn("converge.index.unmanaged", "collection", u.Collection, "index", u.Index.Name, "prune", e.prune)
	}
	t.result.Unmanaged = append(t.result.Unmanaged, cp.unmanaged...)

	actions := append(append([]domain.Action{}, cp.drops...), cp.creates...)
	failedDrops := make(map[string]bool)
	for i, action := range actions {
		if runCtx.Err() != nil {
			reason := ReasonCancelled
			if ctx.Err() == nil {
				reason = reasonAborted
			}
			e.skip(t.result, action, reason)
			continue
		}
		if action.Kind == domain.ActionCreateIndex && failedDrops[action.IndexName] {
			e.skip(t.result, action, ReasonDropFailed)
			continue
		}

		err := t.execute(callCtx, action)
		switch {
		case err == nil:
			e.apply(t.result, action)
		case action.Kind == domain.ActionDropIndex && errors.Is(err, domain.ErrNotFound):
			// already gone, the paired create still runs
			e.logger.Info("converge.index.drop.missing", "collection", action.Collection, "index", action.IndexName)
			ActionCount.WithLabelValues(action.Collection, string(action.Kind), resultNoop).Inc()
		case domain.IsFatal(err):
			e.logger.Error("converge.abort", "collection", action.Collection, "index", action.IndexName, "err", err)
			e.fail(t.result, action, err)
			for _, rest := range actions[i+1:] {
				e.skip(t.result, rest, reasonAborted)
			}
			return fmt.Errorf("%s: %w", action, err)
		default:
			e.fail(t.result, action, err)
			if action.Kind == domain.ActionDropIndex {
				failedDrops[action.IndexName] = true
			}
		}
	}
	return nil
}

func (t *collectionTask) execute(ctx context.Context, action domain.Action) error {
	start := time.Now()
	var err error
	switch action.Kind {
	case domain.ActionDropIndex:
		err = t.gw.DropIndex(ctx, action.Collection, action.IndexName)
	case domain.ActionCreateIndex:
		err = t.gw.CreateIndex(ctx, action.Collection, *action.Index)
	default:
		return fmt.Errorf("unexpected action %s", action.Kind)
	}
	if err == nil {
		t.engine.logger.Info("converge.index."+kindEvent(action.Kind),
			"collection", action.Collection,
			"index", action.IndexName,
			"reason", action.Reason,
			"elapsed", time.Since(start))
	}
	return err
}

func kindEvent(kind domain.ActionKind) string {
	if kind == domain.ActionDropIndex {
		return "drop"
	}
	return "create"
}
