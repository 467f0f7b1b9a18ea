package geometry

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// MultiPolygon is a nullable column holding a multipolygon as WKB.
// The JSON form is a GeoJSON geometry object, or null when empty.
type MultiPolygon orb.MultiPolygon

// Orb returns the value as an orb geometry.
func (m MultiPolygon) Orb() orb.MultiPolygon { return orb.MultiPolygon(m) }

func (m MultiPolygon) IsEmpty() bool { return len(m) == 0 }

func (m MultiPolygon) Bound() orb.Bound { return orb.MultiPolygon(m).Bound() }

func (MultiPolygon) GormDataType() string { return "bytes" }

func (m MultiPolygon) Value() (driver.Value, error) {
	if m.IsEmpty() {
		return nil, nil
	}
	return wkb.Marshal(orb.MultiPolygon(m))
}

func (m *MultiPolygon) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("geometry: cannot scan %T into MultiPolygon", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return geomErr("scan", err)
	}
	mp, err := AsMultiPolygon(g)
	if err != nil {
		return err
	}
	*m = MultiPolygon(mp)
	return nil
}

func (m MultiPolygon) MarshalJSON() ([]byte, error) {
	if m.IsEmpty() {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(orb.MultiPolygon(m)).MarshalJSON()
}

func (m *MultiPolygon) UnmarshalJSON(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return geomErr("decode geojson", err)
	}
	mp, err := AsMultiPolygon(g.Geometry())
	if err != nil {
		return err
	}
	*m = MultiPolygon(mp)
	return nil
}

// AsMultiPolygon accepts a Polygon or MultiPolygon and returns it as a
// MultiPolygon with closed rings. Any other kind is rejected.
func AsMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return closeRings(orb.MultiPolygon{v}), nil
	case orb.MultiPolygon:
		return closeRings(v), nil
	case nil:
		return nil, &InvalidGeometryKindError{Kind: "null"}
	default:
		return nil, &InvalidGeometryKindError{Kind: g.GeoJSONType()}
	}
}

// polygonal collects every areal part of g, flattening collections.
// It is used on overlay output, which may come back as any polygonal kind.
func polygonal(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	case orb.Collection:
		var out orb.MultiPolygon
		for _, part := range v {
			out = append(out, polygonal(part)...)
		}
		return out
	}
	return nil
}

func closeRings(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		p := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
				r := make(orb.Ring, len(ring), len(ring)+1)
				copy(r, ring)
				ring = append(r, ring[0])
			}
			p = append(p, ring)
		}
		out = append(out, p)
	}
	return out
}
