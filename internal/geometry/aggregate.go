package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
)

// Result is the aggregated footprint of a set of polygons.
// Both fields are nil when no input carried a polygon.
type Result struct {
	Polygon  orb.MultiPolygon
	Centroid *orb.Point
}

// Union folds the non-empty inputs left to right into one multipolygon.
// It returns nil when every input is empty. Callers that need a stable
// result pass inputs in a stable order.
func Union(polys []orb.MultiPolygon) (orb.MultiPolygon, error) {
	var (
		acc  geom.Geometry
		have bool
	)
	for i, p := range polys {
		if len(p) == 0 {
			continue
		}
		g, err := toSF(p)
		if err != nil {
			return nil, geomErr("union", fmt.Errorf("input %d: %w", i, err))
		}
		if !have {
			acc, have = g, true
			continue
		}
		acc, err = geom.Union(acc, g)
		if err != nil {
			return nil, geomErr("union", err)
		}
	}
	if !have {
		return nil, nil
	}
	out, err := fromSF(acc)
	if err != nil {
		return nil, geomErr("union", err)
	}
	return out, nil
}

// Centroid returns the area-weighted centroid of mp.
func Centroid(mp orb.MultiPolygon) (orb.Point, error) {
	if len(mp) == 0 {
		return orb.Point{}, geomErr("centroid", errors.New("empty geometry"))
	}
	c, area := planar.CentroidArea(mp)
	if area == 0 || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return orb.Point{}, geomErr("centroid", errors.New("degenerate geometry"))
	}
	return c, nil
}

// Aggregate unions polys and computes the centroid of the union. When the
// union is non-empty but its centroid cannot be computed, the union is
// still returned alongside the error.
func Aggregate(polys []orb.MultiPolygon) (Result, error) {
	u, err := Union(polys)
	if err != nil {
		return Result{}, err
	}
	if len(u) == 0 {
		return Result{}, nil
	}
	c, err := Centroid(u)
	if err != nil {
		return Result{Polygon: u}, err
	}
	return Result{Polygon: u, Centroid: &c}, nil
}

func toSF(mp orb.MultiPolygon) (geom.Geometry, error) {
	b, err := wkb.Marshal(closeRings(mp))
	if err != nil {
		return geom.Geometry{}, err
	}
	return geom.UnmarshalWKB(b)
}

func fromSF(g geom.Geometry) (orb.MultiPolygon, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	og, err := wkb.Unmarshal(g.AsBinary())
	if err != nil {
		return nil, err
	}
	return polygonal(og), nil
}
