// Package pipeline contains the stage orchestrator that sequences external
// tool invocations with dependency ordering and idempotent re-entry.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devzero-inc/selfhost-cli/internal/state"
)

// Stage is one discrete, named step in the deployment pipeline.
type Stage struct {
	// Name identifies the stage in state records and error messages.
	Name string
	// Needs lists stages that must be completed before this one runs.
	Needs []string
	// Always runs the stage even when it is recorded as completed.
	// Used for idempotent teardown.
	Always bool
	// Run executes the stage's external tool invocation.
	Run func(ctx context.Context) error
}

// ResultStatus is the per-stage outcome variant.
type ResultStatus string

const (
	// Skipped means the stage was already completed and did not run.
	Skipped ResultStatus = "skipped"
	// Succeeded means the stage ran and completed.
	Succeeded ResultStatus = "succeeded"
	// Failed means the stage ran and failed, halting the pipeline.
	Failed ResultStatus = "failed"
)

// Result records the outcome of one stage in a run.
type Result struct {
	Stage  string
	Status ResultStatus
	// Err holds the failure detail when Status is Failed.
	Err error
}

// Runner executes ordered stages against a persisted RunState.
type Runner struct {
	store  *state.Store
	logger *slog.Logger
}

// NewRunner constructs a Runner backed by the given state store.
func NewRunner(store *state.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, logger: logger}
}

// Run executes stages in order. Completed stages are skipped, a stage with
// incomplete prerequisites blocks the run before its tool is invoked, and the
// first failure halts the pipeline. The state record is persisted after every
// stage transition so a later invocation resumes where this one stopped.
func (r *Runner) Run(ctx context.Context, st *state.RunState, stages []Stage) ([]Result, error) {
	if st == nil {
		return nil, fmt.Errorf("run state is nil")
	}

	var results []Result
	for _, stage := range stages {
		if st.Completed(stage.Name) && !stage.Always {
			r.logger.Info("stage already completed, skipping", "stage", stage.Name, "deployment", st.Deployment)
			results = append(results, Result{Stage: stage.Name, Status: Skipped})
			continue
		}

		if missing := missingPrereqs(st, stage); len(missing) > 0 {
			err := &PrerequisiteError{Stage: stage.Name, Missing: missing}
			return results, err
		}

		r.logger.Info("running stage", "stage", stage.Name, "deployment", st.Deployment)
		if err := stage.Run(ctx); err != nil {
			st.Mark(stage.Name, state.StatusFailed)
			if saveErr := r.store.Save(st); saveErr != nil {
				r.logger.Error("failed to persist state after stage failure", "stage", stage.Name, "error", saveErr)
			}
			results = append(results, Result{Stage: stage.Name, Status: Failed, Err: err})
			return results, &StageError{Stage: stage.Name, Err: err}
		}

		st.Mark(stage.Name, state.StatusCompleted)
		if err := r.store.Save(st); err != nil {
			return results, fmt.Errorf("persist state after stage %q: %w", stage.Name, err)
		}
		results = append(results, Result{Stage: stage.Name, Status: Succeeded})
	}

	return results, nil
}

// missingPrereqs returns prerequisite stages of s not recorded as completed.
func missingPrereqs(st *state.RunState, s Stage) []string {
	var missing []string
	for _, need := range s.Needs {
		if !st.Completed(need) {
			missing = append(missing, need)
		}
	}
	return missing
}
