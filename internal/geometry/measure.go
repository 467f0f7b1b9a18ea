package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	squareFeetPerSquareMeter = 10.7639104
	metersPerMile            = 1609.344
)

// AreaSquareFeet returns the geodesic area of mp in square feet.
func AreaSquareFeet(mp orb.MultiPolygon) float64 {
	if len(mp) == 0 {
		return 0
	}
	return math.Abs(geo.Area(mp)) * squareFeetPerSquareMeter
}

// DistanceMiles returns the great-circle distance between two lon/lat points.
func DistanceMiles(a, b orb.Point) float64 {
	return geo.Distance(a, b) / metersPerMile
}

// BoundAround returns a bound containing every point within miles of p.
func BoundAround(p orb.Point, miles float64) orb.Bound {
	return geo.NewBoundAroundPoint(p, miles*metersPerMile)
}
