package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolygons_FeatureCollection(t *testing.T) {
	raw := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1]]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[2,2],[3,2],[3,3],[2,2]]]]}}
	]}`)

	polys, err := ParsePolygons(raw)
	require.NoError(t, err)
	require.Len(t, polys, 2)

	ring := polys[0][0][0]
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestParsePolygons_SingleFeatureAndBareGeometry(t *testing.T) {
	polys, err := ParsePolygons([]byte(`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`))
	require.NoError(t, err)
	assert.Len(t, polys, 1)

	polys, err = ParsePolygons([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`))
	require.NoError(t, err)
	assert.Len(t, polys, 1)
}

func TestParsePolygons_RejectsPoints(t *testing.T) {
	raw := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]}}
	]}`)
	_, err := ParsePolygons(raw)
	require.ErrorIs(t, err, ErrInvalidGeometryKind)
}

func TestParsePolygons_Malformed(t *testing.T) {
	_, err := ParsePolygons([]byte(`not json`))
	require.ErrorIs(t, err, ErrGeometry)

	_, err = ParsePolygons([]byte(`{"coordinates":[]}`))
	require.ErrorIs(t, err, ErrGeometry)

	_, err = ParsePolygons([]byte(`{"type":"FeatureCollection","features":[]}`))
	require.ErrorIs(t, err, ErrGeometry)
}

func TestMeasures(t *testing.T) {
	assert.Greater(t, AreaSquareFeet(square(-122.27, 37.8, 0.001)), 100000.0)
	assert.Zero(t, AreaSquareFeet(nil))

	d := DistanceMiles([2]float64{0, 0}, [2]float64{0, 1})
	assert.InDelta(t, 69.1, d, 0.5)

	b := BoundAround([2]float64{-75.16, 39.95}, 0.5)
	assert.True(t, b.Contains([2]float64{-75.16, 39.955}))
	assert.False(t, b.Contains([2]float64{-75.16, 39.97}))
}
