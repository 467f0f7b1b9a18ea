package geometry

import (
	"errors"
	"fmt"
)

var (
	// ErrGeometry matches every *GeometryError.
	ErrGeometry = errors.New("geometry error")
	// ErrInvalidGeometryKind matches every *InvalidGeometryKindError.
	ErrInvalidGeometryKind = errors.New("invalid geometry kind")
)

// GeometryError reports an invalid or degenerate geometry, or a failed
// overlay operation.
type GeometryError struct {
	Op  string
	Err error
}

func (e *GeometryError) Error() string {
	if e.Err == nil {
		return "geometry: " + e.Op + " failed"
	}
	return "geometry: " + e.Op + ": " + e.Err.Error()
}

func (e *GeometryError) Unwrap() error { return e.Err }

func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

// InvalidGeometryKindError is returned when a geometry is neither a Polygon
// nor a MultiPolygon.
type InvalidGeometryKindError struct {
	Kind string
}

func (e *InvalidGeometryKindError) Error() string {
	return fmt.Sprintf("geometry: %s is not a polygon or multipolygon", e.Kind)
}

func (e *InvalidGeometryKindError) Is(target error) bool { return target == ErrInvalidGeometryKind }

func geomErr(op string, err error) error {
	return &GeometryError{Op: op, Err: err}
}
