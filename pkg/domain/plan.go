package domain

import (
	"errors"
	"fmt"
	"time"
)

// ActionKind identifies a convergence step.
type ActionKind string

const (
	ActionCreateCollection ActionKind = "create-collection"
	ActionCreateIndex      ActionKind = "create-index"
	ActionDropIndex        ActionKind = "drop-index"
)

// Action is one corrective step of a ConvergencePlan.
type Action struct {
	Kind       ActionKind `json:"kind"`
	Collection string     `json:"collection"`
	IndexName  string     `json:"index,omitempty"`
	Index      *IndexSpec `json:"spec,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case ActionCreateCollection:
		return fmt.Sprintf("%s %s", a.Kind, a.Collection)
	case ActionCreateIndex:
		if a.Index != nil {
			return fmt.Sprintf("%s %s.%s", a.Kind, a.Collection, a.Index)
		}
	}
	return fmt.Sprintf("%s %s.%s", a.Kind, a.Collection, a.IndexName)
}

// ConvergencePlan is the ordered action list of one run.
type ConvergencePlan struct {
	Actions   []Action         `json:"actions"`
	Unmanaged []UnmanagedIndex `json:"unmanaged,omitempty"`
}

// Empty reports whether the live store already matches the declaration.
func (p ConvergencePlan) Empty() bool {
	return len(p.Actions) == 0
}

// UnmanagedIndex is a live index that no declaration names.
type UnmanagedIndex struct {
	Collection string         `json:"collection"`
	Index      LiveIndexState `json:"index"`
}

// Failure is an action the store rejected.
type Failure struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// ConvergenceResult is the aggregated outcome of a convergence run.
type ConvergenceResult struct {
	Applied   []Action         `json:"applied"`
	Failures  []Failure        `json:"failures"`
	Skipped   []Action         `json:"skipped,omitempty"`
	Unmanaged []UnmanagedIndex `json:"unmanaged,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// NewConvergenceResult returns a result with non-nil slices, so an idempotent
// run serialises as "applied": [].
func NewConvergenceResult() *ConvergenceResult {
	return &ConvergenceResult{
		Applied:  []Action{},
		Failures: []Failure{},
	}
}

// HasFailures reports whether any action failed.
func (r *ConvergenceResult) HasFailures() bool {
	return r != nil && len(r.Failures) > 0
}

// Err joins every failure, or returns nil.
func (r *ConvergenceResult) Err() error {
	if !r.HasFailures() {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		err := f.Err
		if err == nil {
			err = errors.New(f.Reason)
		}
		errs = append(errs, fmt.Errorf("%s: %w", f.Action, err))
	}
	return errors.Join(errs...)
}

// Merge appends other's outcome to r.
func (r *ConvergenceResult) Merge(other *ConvergenceResult) {
	if other == nil {
		return
	}
	r.Applied = append(r.Applied, other.Applied...)
	r.Failures = append(r.Failures, other.Failures...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Unmanaged = append(r.Unmanaged, other.Unmanaged...)
}
