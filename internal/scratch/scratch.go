// Package scratch manages the temporary per-run geometry artifacts the
// buffer stage materializes, and guarantees their removal on every exit
// path. Artifacts are recorded in a persistent ledger at write time so a
// crashed run's leftovers can be swept by a later run.
package scratch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/store"
)

// Ledger records scratch artifacts durably. Satisfied by store.Store.
type Ledger interface {
	RegisterArtifact(ctx context.Context, runID, path string) error
	UnregisterArtifact(ctx context.Context, path string) error
}

// Scratch is the scoped scratch space for one run.
type Scratch struct {
	dir    string
	runID  string
	ledger Ledger
}

// New creates the scratch directory for a run under baseDir.
func New(baseDir, runID string, ledger Ledger) (*Scratch, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "scratch: create dir %s", dir)
	}
	return &Scratch{dir: dir, runID: runID, ledger: ledger}, nil
}

// Dir returns the run's scratch directory.
func (s *Scratch) Dir() string { return s.dir }

// WriteArtifact writes a geometry as a named WKB artifact and records it in
// the ledger. Returns the artifact path.
func (s *Scratch) WriteArtifact(ctx context.Context, name string, g geom.T) (string, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return "", eris.Wrapf(err, "scratch: encode artifact %s", name)
	}

	path := filepath.Join(s.dir, name+".wkb")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "scratch: write artifact %s", name)
	}

	// Register after the write so the ledger never lists a file that was
	// never created.
	if err := s.ledger.RegisterArtifact(ctx, s.runID, path); err != nil {
		return "", eris.Wrapf(err, "scratch: register artifact %s", name)
	}
	return path, nil
}

// ReadArtifact loads a previously written WKB artifact.
func (s *Scratch) ReadArtifact(path string) (geom.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scratch: read artifact %s", path)
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrapf(err, "scratch: decode artifact %s", path)
	}
	return g, nil
}

// Remove deletes the run's scratch directory and unregisters its artifacts.
// Idempotent: removing an already-absent directory or artifact succeeds.
func (s *Scratch) Remove(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "scratch: read dir %s", s.dir)
	}
	for _, e := range entries {
		path := filepath.Join(s.dir, e.Name())
		if err := s.ledger.UnregisterArtifact(ctx, path); err != nil {
			zap.L().Warn("scratch: failed to unregister artifact",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return eris.Wrapf(err, "scratch: remove dir %s", s.dir)
	}
	return nil
}

// Sweeper lists ledger entries for orphan sweeps. Satisfied by store.Store.
type Sweeper interface {
	Ledger
	ListArtifacts(ctx context.Context) ([]store.Artifact, error)
}

// SweepOrphans removes every artifact the ledger knows about, typically
// leftovers of runs that crashed before their deferred cleanup ran. Missing
// files are not errors. Returns the number of ledger entries cleared.
func SweepOrphans(ctx context.Context, ledger Sweeper) (int, error) {
	entries, err := ledger.ListArtifacts(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "scratch: list orphans")
	}

	swept := 0
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("scratch: failed to remove orphan",
				zap.String("path", e.Path),
				zap.Error(err),
			)
			continue
		}
		if err := ledger.UnregisterArtifact(ctx, e.Path); err != nil {
			zap.L().Warn("scratch: failed to unregister orphan",
				zap.String("path", e.Path),
				zap.Error(err),
			)
			continue
		}
		// Best effort on the now-empty run directories.
		_ = os.Remove(filepath.Dir(e.Path))
		swept++
	}
	return swept, nil
}
