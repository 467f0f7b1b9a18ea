package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseFeatures decodes a GeoJSON FeatureCollection, a single Feature or a
// bare geometry object into a list of features.
func ParseFeatures(raw []byte) ([]*geojson.Feature, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, geomErr("decode geojson", err)
	}
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, geomErr("decode geojson", err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, geomErr("decode geojson", err)
		}
		return []*geojson.Feature{f}, nil
	case "":
		return nil, geomErr("decode geojson", errors.New("missing type"))
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, geomErr("decode geojson", err)
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
}

// ParsePolygons decodes raw like ParseFeatures and requires every feature
// to be a Polygon or MultiPolygon. Rings are closed if needed.
func ParsePolygons(raw []byte) ([]orb.MultiPolygon, error) {
	features, err := ParseFeatures(raw)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, geomErr("decode geojson", errors.New("no features"))
	}
	out := make([]orb.MultiPolygon, 0, len(features))
	for i, f := range features {
		mp, err := AsMultiPolygon(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, mp)
	}
	return out, nil
}
