package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// StepRunnerConfig configures a StepRunner.
type StepRunnerConfig struct {
	// AfterAllOnCancel makes AfterAllSteps fire when a run is cancelled
	// before reaching the last step. Off by default: a cancelled runner may
	// still be resumed, and the hook fires when the flow actually completes.
	AfterAllOnCancel bool

	// StartAt is the initial cursor position, for resuming a flow from a
	// persisted cursor. Clamped to [0, len(steps)]. The BeforeAllSteps hook
	// still fires on the runner's first invocation.
	StartAt int
}

// StepError reports a failure at a specific step. The runner's cursor stays
// at the failing step, so a subsequent Run re-attempts it.
type StepError struct {
	Index int
	Step  flow.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step.Type(), e.Err)
}

// Unwrap returns the underlying driver or hook error.
func (e *StepError) Unwrap() error { return e.Err }

// StepRunner drives one resolved flow through a driver, one step at a time.
//
// The runner owns a cursor pointing at the next unexecuted step. Run advances
// the cursor and never rewinds it; a runner whose cursor reached the end is
// complete and further Run calls are no-ops. Steps and lifecycle hooks execute
// strictly in sequence, each completed before the next begins.
//
// A StepRunner is not safe for concurrent Run calls. The driver is supplied
// by the caller and outlives the runner; the runner never closes it.
type StepRunner struct {
	flow   *flow.Flow
	driver core.Driver
	cfg    StepRunnerConfig

	next          int
	started       bool
	afterAllFired bool
}

// NewStepRunner creates a runner bound to one resolved flow and one driver.
// The flow must not contain import markers; resolve it first (see Prepare).
func NewStepRunner(f *flow.Flow, driver core.Driver, cfg StepRunnerConfig) (*StepRunner, error) {
	if f == nil {
		return nil, errors.New("step runner: flow is nil")
	}
	if driver == nil {
		return nil, errors.New("step runner: driver is nil")
	}
	if f.HasImports() {
		return nil, errors.New("step runner: flow contains unresolved import markers")
	}

	start := cfg.StartAt
	if start < 0 {
		start = 0
	}
	if start > len(f.Steps) {
		start = len(f.Steps)
	}

	return &StepRunner{
		flow:   f,
		driver: driver,
		cfg:    cfg,
		next:   start,
	}, nil
}

// Prepare resolves any import markers in the flow and constructs a runner for
// the resolved result. The input flow is not mutated.
func Prepare(f *flow.Flow, driver core.Driver, cfg StepRunnerConfig) (*StepRunner, error) {
	resolved, err := flow.Resolve(f)
	if err != nil {
		return nil, err
	}
	return NewStepRunner(resolved, driver, cfg)
}

// Flow returns the resolved flow this runner executes.
func (r *StepRunner) Flow() *flow.Flow { return r.flow }

// Next returns the cursor: the index of the next unexecuted step.
func (r *StepRunner) Next() int { return r.next }

// Completed reports whether the flow has run to completion.
func (r *StepRunner) Completed() bool {
	return r.started && r.next == len(r.flow.Steps) && r.afterAllFired
}

// Run executes all remaining steps. It returns true once the entire flow has
// completed, possibly across multiple earlier RunUpTo calls. Calling Run on a
// completed runner is a no-op returning true.
func (r *StepRunner) Run(ctx context.Context) (bool, error) {
	return r.RunUpTo(ctx, len(r.flow.Steps))
}

// RunUpTo executes steps until the cursor reaches upTo (exclusive) or the
// flow ends, whichever comes first. It returns true only when the whole flow
// has completed. An upTo at or below the cursor performs no work.
//
// On the runner's very first invocation the driver's BeforeAllSteps hook
// fires, exactly once, before anything else. Each step is bracketed by the
// BeforeEachStep and AfterEachStep hooks when the driver implements them.
// When the cursor reaches the end of the flow, AfterAllSteps fires, once.
//
// Any hook or step failure surfaces immediately as a StepError, with the
// cursor left at the failing step; the remaining hooks for that step are
// skipped. The runner never retries. Cancellation is checked at each
// iteration boundary and never preempts an in-flight step; a cancelled
// runner keeps its cursor and may be resumed with a fresh context.
func (r *StepRunner) RunUpTo(ctx context.Context, upTo int) (bool, error) {
	if r.Completed() {
		return true, nil
	}

	steps := r.flow.Steps
	if !r.started {
		r.started = true
		if h, ok := r.driver.(core.BeforeAllHook); ok {
			if err := h.BeforeAllSteps(r.flow); err != nil {
				return false, err
			}
		}
	}

	limit := upTo
	if limit > len(steps) {
		limit = len(steps)
	}

	for r.next < limit {
		if err := ctx.Err(); err != nil {
			if r.cfg.AfterAllOnCancel {
				if hookErr := r.fireAfterAll(); hookErr != nil {
					return false, hookErr
				}
			}
			return false, err
		}

		step := steps[r.next]
		if h, ok := r.driver.(core.BeforeEachHook); ok {
			if err := h.BeforeEachStep(step, r.flow); err != nil {
				return false, &StepError{Index: r.next, Step: step, Err: err}
			}
		}

		result := r.driver.Execute(step, r.flow)
		if result == nil {
			return false, &StepError{Index: r.next, Step: step, Err: errors.New("driver returned no result")}
		}
		if !result.Success {
			err := result.Error
			if err == nil {
				err = errors.New(result.Message)
			}
			return false, &StepError{Index: r.next, Step: step, Err: err}
		}

		if h, ok := r.driver.(core.AfterEachHook); ok {
			if err := h.AfterEachStep(step, r.flow); err != nil {
				return false, &StepError{Index: r.next, Step: step, Err: err}
			}
		}

		r.next++
	}

	if r.next == len(steps) {
		if err := r.fireAfterAll(); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// fireAfterAll invokes AfterAllSteps at most once per runner, even when the
// hook itself fails or when it fired early due to AfterAllOnCancel.
func (r *StepRunner) fireAfterAll() error {
	if r.afterAllFired {
		return nil
	}
	r.afterAllFired = true
	if h, ok := r.driver.(core.AfterAllHook); ok {
		return h.AfterAllSteps(r.flow)
	}
	return nil
}
