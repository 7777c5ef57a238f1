package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/tally/pkg/logging"
)

func TestContextFunctions(t *testing.T) {
	t.Run("FromContext falls back to default", func(t *testing.T) {
		assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
		//nolint:staticcheck // nil context is handled explicitly
		assert.Same(t, logging.Default(), logging.FromContext(nil))
	})

	t.Run("WithRun stores the run id", func(t *testing.T) {
		testLogger := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), testLogger.Logger)
		ctx = logging.WithRun(ctx, "run-123")

		assert.Equal(t, "run-123", logging.RunID(ctx))
		logging.Ctx(ctx).Info().Msg("hello")
		testLogger.AssertContains(t, `"run_id":"run-123"`)
	})

	t.Run("WithFields adds typed fields", func(t *testing.T) {
		testLogger := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), testLogger.Logger)
		ctx = logging.WithFields(ctx, map[string]any{"rows": 12, "strict": true})
		ctx = logging.WithOperation(ctx, "match")

		logging.FromContext(ctx).Info().Msg("fields")
		assert.True(t, testLogger.Contains(`"rows":12`))
		assert.True(t, testLogger.Contains(`"strict":true`))
		assert.True(t, testLogger.Contains(`"operation":"match"`))
		assert.Len(t, testLogger.Lines(), 1)
	})

	t.Run("RunID is empty without WithRun", func(t *testing.T) {
		assert.Empty(t, logging.RunID(context.Background()))
	})
}
