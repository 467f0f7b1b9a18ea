package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/peterstace/simplefeatures/geom"
)

// overlapEpsilon is the smallest shared area, in squared degrees, that
// counts as an overlap. Parcels that only share an edge stay below it.
const overlapEpsilon = 1e-14

// Overlaps reports whether the interiors of a and b share positive area.
func Overlaps(a, b orb.MultiPolygon) (bool, error) {
	if len(a) == 0 || len(b) == 0 {
		return false, nil
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false, nil
	}
	ga, err := toSF(a)
	if err != nil {
		return false, geomErr("overlap", err)
	}
	gb, err := toSF(b)
	if err != nil {
		return false, geomErr("overlap", err)
	}
	inter, err := geom.Intersection(ga, gb)
	if err != nil {
		return false, geomErr("overlap", err)
	}
	return inter.Area() > overlapEpsilon, nil
}

// Equivalent reports whether a and b cover the same area, ignoring vertex
// order and ring orientation.
func Equivalent(a, b orb.MultiPolygon) (bool, error) {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0, nil
	}
	ga, err := toSF(a)
	if err != nil {
		return false, geomErr("compare", err)
	}
	gb, err := toSF(b)
	if err != nil {
		return false, geomErr("compare", err)
	}
	diff, err := geom.SymmetricDifference(ga, gb)
	if err != nil {
		return false, geomErr("compare", err)
	}
	scale := math.Max(ga.Area(), gb.Area())
	return diff.Area() <= scale*1e-9, nil
}
