package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/mimir-go/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecution(t *testing.T) {
	t.Run("RunsStepsInOrder", func(t *testing.T) {
		var order []string
		run := Begin("publish", logger.NewNop(), "index", "munin_poi_fr_x")

		for _, step := range []string{"refresh", "snapshot", "repoint"} {
			step := step
			err := run.Step(context.Background(), step, func(ctx context.Context) error {
				order = append(order, step)
				return nil
			})
			require.NoError(t, err)
		}

		assert.Equal(t, []string{"refresh", "snapshot", "repoint"}, order)
		assert.Equal(t, order, run.Completed())
	})

	t.Run("FailureReportsCompletedSteps", func(t *testing.T) {
		boom := errors.New("alias update rejected")
		run := Begin("publish", nil)

		require.NoError(t, run.Step(context.Background(), "refresh", func(context.Context) error { return nil }))
		err := run.Step(context.Background(), "repoint type alias", func(context.Context) error { return boom })

		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "publish", stepErr.Saga)
		assert.Equal(t, "repoint type alias", stepErr.Step)
		assert.Equal(t, []string{"refresh"}, stepErr.Completed)
		assert.Equal(t, []string{"refresh"}, run.Completed())
	})

	t.Run("CancelledContextSkipsAction", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := Begin("publish", nil).Step(ctx, "refresh", func(context.Context) error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
