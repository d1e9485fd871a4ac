package scratch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memLedger is an in-memory Sweeper for tests.
type memLedger struct {
	entries map[string]string // path -> runID
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]string)}
}

func (l *memLedger) RegisterArtifact(_ context.Context, runID, path string) error {
	l.entries[path] = runID
	return nil
}

func (l *memLedger) UnregisterArtifact(_ context.Context, path string) error {
	delete(l.entries, path)
	return nil
}

func (l *memLedger) ListArtifacts(context.Context) ([]store.Artifact, error) {
	out := make([]store.Artifact, 0, len(l.entries))
	for path, runID := range l.entries {
		out = append(out, store.Artifact{Path: path, RunID: runID})
	}
	return out, nil
}

func testGeometry(t *testing.T) *geom.MultiPolygon {
	t.Helper()
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
	})))
	require.NoError(t, mp.Push(poly))
	return mp
}

func TestWriteAndReadArtifact(t *testing.T) {
	ledger := newMemLedger()
	sc, err := New(t.TempDir(), "run-1", ledger)
	require.NoError(t, err)

	path, err := sc.WriteArtifact(context.Background(), "buffer_Library", testGeometry(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sc.Dir(), "buffer_Library.wkb"), path)
	assert.Equal(t, "run-1", ledger.entries[path])

	g, err := sc.ReadArtifact(path)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestRemove_ClearsDirAndLedger(t *testing.T) {
	ledger := newMemLedger()
	sc, err := New(t.TempDir(), "run-1", ledger)
	require.NoError(t, err)

	_, err = sc.WriteArtifact(context.Background(), "a", testGeometry(t))
	require.NoError(t, err)
	_, err = sc.WriteArtifact(context.Background(), "b", testGeometry(t))
	require.NoError(t, err)

	require.NoError(t, sc.Remove(context.Background()))
	assert.Empty(t, ledger.entries)
	_, statErr := os.Stat(sc.Dir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemove_Idempotent(t *testing.T) {
	sc, err := New(t.TempDir(), "run-1", newMemLedger())
	require.NoError(t, err)

	require.NoError(t, sc.Remove(context.Background()))
	require.NoError(t, sc.Remove(context.Background()))
}

func TestSweepOrphans(t *testing.T) {
	ledger := newMemLedger()
	base := t.TempDir()

	// A crashed run left artifacts behind with live ledger entries.
	sc, err := New(base, "crashed-run", ledger)
	require.NoError(t, err)
	first, err := sc.WriteArtifact(context.Background(), "a", testGeometry(t))
	require.NoError(t, err)
	second, err := sc.WriteArtifact(context.Background(), "b", testGeometry(t))
	require.NoError(t, err)

	// One entry whose file is already gone; sweeping still clears it.
	require.NoError(t, os.Remove(second))

	swept, err := SweepOrphans(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)
	assert.Empty(t, ledger.entries)
	_, statErr := os.Stat(first)
	assert.True(t, os.IsNotExist(statErr))

	// A second sweep finds nothing to do.
	swept, err = SweepOrphans(context.Background(), ledger)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestSweepOrphans_EmptyLedger(t *testing.T) {
	swept, err := SweepOrphans(context.Background(), newMemLedger())
	require.NoError(t, err)
	assert.Zero(t, swept)
}
