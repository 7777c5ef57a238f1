package baseline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/pkg/differ"
	"github.com/agentstation/tally/pkg/errors"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := make(map[string]Store)
	for name, cfg := range map[string]Config{
		"memory": {Driver: DriverMemory},
		"badger": {Driver: DriverBadger, Path: filepath.Join(dir, "badger")},
		"sqlite": {Driver: DriverSQLite, Path: filepath.Join(dir, "tally.db")},
	} {
		s, err := Open(cfg)
		require.NoError(t, err, name)
		t.Cleanup(func() { _ = s.Close() })
		out[name] = s
	}
	return out
}

func record(name, id string, at time.Time, rows int) *Record {
	return &Record{
		ID:        id,
		Name:      name,
		CreatedAt: at,
		Schema:    differ.Schema{Name: name, Columns: []string{"id", "amount"}, RowCount: rows},
		Status:    "pass",
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Latest(ctx, "ledger")
			assert.True(t, errors.IsNotFound(err))

			require.NoError(t, s.Save(ctx, record("ledger", "a", t0, 10)))
			require.NoError(t, s.Save(ctx, record("ledger", "b", t0.Add(time.Hour), 12)))
			require.NoError(t, s.Save(ctx, record("ledger-2024", "c", t0.Add(2*time.Hour), 99)))

			latest, err := s.Latest(ctx, "ledger")
			require.NoError(t, err)
			assert.Equal(t, "b", latest.ID)
			assert.Equal(t, 12, latest.Schema.RowCount)
			assert.Equal(t, []string{"id", "amount"}, latest.Schema.Columns)

			history, err := s.History(ctx, "ledger", 10)
			require.NoError(t, err)
			require.Len(t, history, 2, "names sharing a prefix stay separate")
			assert.Equal(t, "b", history[0].ID)
			assert.Equal(t, "a", history[1].ID)
		})
	}
}

func TestSaveValidates(t *testing.T) {
	s, err := Open(Config{Driver: DriverMemory})
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Save(context.Background(), &Record{Name: "x"}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestOpenConfig(t *testing.T) {
	_, err := Open(Config{Driver: DriverBadger})
	assert.Error(t, err, "badger needs a path")
	_, err = Open(Config{Driver: DriverSQLite})
	assert.Error(t, err, "sqlite needs a path")
	_, err = Open(Config{Driver: "postgres"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	d, err := ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, DriverBadger, d)
	_, err = ParseDriver("mysql")
	assert.Error(t, err)
}
