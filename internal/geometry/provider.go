// Package geometry defines the geometry provider contract used by the
// coverage pipeline and its GEOS- and PostGIS-backed implementations. All
// geometry crosses the interface as go-geom values in projected planar
// coordinates; each backend adapts at its own edge.
package geometry

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrorKind classifies provider failures so callers can decide between
// recovering locally (skip the unit, keep the run) and propagating.
type ErrorKind string

const (
	KindEmptyInput  ErrorKind = "empty_input"
	KindDegenerate  ErrorKind = "degenerate"
	KindUnsupported ErrorKind = "unsupported"
	KindResource    ErrorKind = "resource_exhausted"
	KindBackend     ErrorKind = "backend"
)

// Error is a classified geometry failure from a provider operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geometry: %s: %s (%s): %v", e.Op, e.Msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("geometry: %s: %s (%s)", e.Op, e.Msg, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified provider error.
func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WrapError classifies an underlying backend error.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: "backend operation failed", Err: err}
}

// IsKind reports whether err is a provider error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ge *Error
	if eris.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}

// Provider exposes the geometric primitives the pipeline depends on. Every
// operation may fail with a classified *Error; implementations must be safe
// for concurrent use by the intersection workers.
type Provider interface {
	// Buffer expands the given points by radius meters and returns the
	// dissolved buffer polygons.
	Buffer(ctx context.Context, points []geom.Coord, radius float64) (*geom.MultiPolygon, error)

	// Intersect returns the area common to all given polygon sets.
	Intersect(ctx context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error)

	// Union merges the given polygon sets into one collection.
	Union(ctx context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error)

	// Dissolve merges touching or overlapping polygons into maximal
	// contiguous shapes with no residual interior overlap.
	Dissolve(ctx context.Context, polys *geom.MultiPolygon) (*geom.MultiPolygon, error)

	// SplitMultipart separates a multi-part collection into one polygon per
	// contiguous part.
	SplitMultipart(ctx context.Context, polys *geom.MultiPolygon) ([]*geom.Polygon, error)

	// Clip restricts polys to the study-area boundary.
	Clip(ctx context.Context, polys *geom.MultiPolygon, boundary *geom.MultiPolygon) (*geom.MultiPolygon, error)
}

// splitParts is the shared multipart-to-singlepart reshaping used by
// backends whose split needs no engine round trip.
func splitParts(polys *geom.MultiPolygon) []*geom.Polygon {
	if polys == nil {
		return nil
	}
	out := make([]*geom.Polygon, 0, polys.NumPolygons())
	for i := 0; i < polys.NumPolygons(); i++ {
		p := polys.Polygon(i)
		if p.Area() == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}
