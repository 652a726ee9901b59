package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devzero-inc/selfhost-cli/internal/state"
)

// countingStage returns a stage that counts its executions and returns errs in
// order, falling back to nil once exhausted.
func countingStage(name string, needs []string, count *int, errs ...error) Stage {
	calls := 0
	return Stage{
		Name:  name,
		Needs: needs,
		Run: func(context.Context) error {
			*count++
			calls++
			if calls <= len(errs) {
				return errs[calls-1]
			}
			return nil
		},
	}
}

func newRunner(t *testing.T) (*Runner, *state.Store) {
	t.Helper()
	store := state.NewStore(t.TempDir(), nil)
	return NewRunner(store, nil), store
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	runner, store := newRunner(t)
	st, err := store.Load("example.com")
	require.NoError(t, err)

	var a, b, c int
	stages := []Stage{
		countingStage("one", nil, &a),
		countingStage("two", []string{"one"}, &b),
		countingStage("three", []string{"two"}, &c),
	}

	results, err := runner.Run(context.Background(), st, stages)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.Equal(t, Succeeded, res.Status)
	}
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
	require.Equal(t, 1, c)
}

func TestRunIsIdempotentAfterFullCompletion(t *testing.T) {
	runner, store := newRunner(t)
	st, err := store.Load("example.com")
	require.NoError(t, err)

	var runs int
	stages := []Stage{
		countingStage("one", nil, &runs),
		countingStage("two", []string{"one"}, &runs),
	}

	_, err = runner.Run(context.Background(), st, stages)
	require.NoError(t, err)
	require.Equal(t, 2, runs)

	// Re-run against reloaded state: nothing executes again.
	st, err = store.Load("example.com")
	require.NoError(t, err)
	results, err := runner.Run(context.Background(), st, stages)
	require.NoError(t, err)
	require.Equal(t, 2, runs)
	for _, res := range results {
		require.Equal(t, Skipped, res.Status)
	}
}

func TestRunResumesAtFailedStage(t *testing.T) {
	runner, store := newRunner(t)
	st, err := store.Load("example.com")
	require.NoError(t, err)

	var first, second, third int
	boom := errors.New("tool exploded")
	stages := []Stage{
		countingStage("one", nil, &first),
		countingStage("two", []string{"one"}, &second, boom),
		countingStage("three", []string{"two"}, &third),
	}

	results, err := runner.Run(context.Background(), st, stages)
	require.Error(t, err)
	require.True(t, IsStageError(err))

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, "two", stageErr.Stage)

	// Halted: the third stage never ran.
	require.Equal(t, 0, third)
	require.Equal(t, Failed, results[len(results)-1].Status)

	// Second invocation resumes at the failed stage without re-running stage one.
	st, err = store.Load("example.com")
	require.NoError(t, err)
	results, err = runner.Run(context.Background(), st, stages)
	require.NoError(t, err)
	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
	require.Equal(t, 1, third)
	require.Equal(t, Skipped, results[0].Status)
	require.Equal(t, Succeeded, results[1].Status)
	require.Equal(t, Succeeded, results[2].Status)
}

func TestRunBlocksOnMissingPrerequisite(t *testing.T) {
	runner, store := newRunner(t)
	st, err := store.Load("example.com")
	require.NoError(t, err)

	var runs int
	stages := []Stage{countingStage("deploy-helm", []string{"setup-terraform"}, &runs)}

	_, err = runner.Run(context.Background(), st, stages)
	require.Error(t, err)
	require.True(t, IsPrerequisiteError(err))

	var prereqErr *PrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	require.Equal(t, "deploy-helm", prereqErr.Stage)
	require.Equal(t, []string{"setup-terraform"}, prereqErr.Missing)

	// The stage's tool was never invoked.
	require.Equal(t, 0, runs)
}

func TestAlwaysStageRunsDespiteCompletion(t *testing.T) {
	runner, store := newRunner(t)
	st, err := store.Load("example.com")
	require.NoError(t, err)
	st.Mark("destroy", state.StatusCompleted)
	require.NoError(t, store.Save(st))

	var runs int
	destroy := countingStage("destroy", nil, &runs)
	destroy.Always = true

	results, err := runner.Run(context.Background(), st, []Stage{destroy})
	require.NoError(t, err)
	require.Equal(t, 1, runs)
	require.Equal(t, Succeeded, results[0].Status)
}

func TestFailurePersistsFailedStatus(t *testing.T) {
	runner, store := newRunner(t)
	st, err := store.Load("example.com")
	require.NoError(t, err)

	var runs int
	stages := []Stage{countingStage("one", nil, &runs, errors.New("boom"))}

	_, err = runner.Run(context.Background(), st, stages)
	require.Error(t, err)

	reloaded, err := store.Load("example.com")
	require.NoError(t, err)
	require.Equal(t, state.StatusFailed, reloaded.Stages["one"])
}
