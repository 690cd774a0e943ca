package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

func TestWriteSubstitutesPlaceholders(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sink := NewFileSink(
		filepath.Join(root, "results", "{process_id}", "{series_id}", "{calculation_date}.json"),
		map[string]string{
			"process_id":       "proc_001",
			"series_id":        "series_01",
			"calculation_date": "2024-01-01",
		},
	)

	path, err := sink.Write(context.Background(), map[string]any{"status": "passed"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "results", "proc_001", "series_01", "2024-01-01.json"), path)

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	var document map[string]any
	require.NoError(t, json.Unmarshal(payload, &document))
	assert.Equal(t, "passed", document["status"])
}

func TestWriteCreatesNestedDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sink := NewFileSink(filepath.Join(root, "a", "b", "c", "out.json"), nil)

	path, err := sink.Write(context.Background(), map[string]any{"ok": true})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestWriteUnresolvedPlaceholder(t *testing.T) {
	t.Parallel()

	sink := NewFileSink(
		filepath.Join(t.TempDir(), "{process_id}", "out.json"),
		map[string]string{"series_id": "series_01"},
	)

	_, err := sink.Write(context.Background(), map[string]any{})
	require.Error(t, err)

	var configErr *autoclaveerrors.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, err.Error(), "process_id")
}

func TestWriteOverwritesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	sink := NewFileSink(path, nil)

	_, err := sink.Write(context.Background(), map[string]any{"run": 1})
	require.NoError(t, err)
	_, err = sink.Write(context.Background(), map[string]any{"run": 2})
	require.NoError(t, err)

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	var document map[string]any
	require.NoError(t, json.Unmarshal(payload, &document))
	assert.Equal(t, 2.0, document["run"])
}

func TestWriteHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := NewFileSink(filepath.Join(t.TempDir(), "out.json"), nil)
	_, err := sink.Write(ctx, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFileSink(filepath.Join(dir, "out.json"), nil)

	_, err := sink.Write(context.Background(), map[string]any{"ok": true})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}
