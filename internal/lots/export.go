package lots

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ExportGeometry picks the geometry written for each place.
type ExportGeometry string

const (
	// ExportPolygon writes the polygon, falling back to the centroid.
	ExportPolygon ExportGeometry = "polygon"
	// ExportCentroid writes the centroid only.
	ExportCentroid ExportGeometry = "centroid"
)

// Map layers a place can fall in.
const (
	LayerInUse   = "in use"
	LayerPublic  = "public"
	LayerPrivate = "private"
)

// Layer buckets a place for map styling.
func Layer(a Attributes) string {
	switch {
	case a.KnownUse != nil:
		return LayerInUse
	case a.Owner != nil && a.Owner.OwnerType == owners.TypePublic:
		return LayerPublic
	case a.Owner != nil && a.Owner.OwnerType == owners.TypePrivate:
		return LayerPrivate
	}
	return ""
}

// FeatureCollection renders places as GeoJSON. Places without the requested
// geometry are skipped.
func FeatureCollection(places []Place, mode ExportGeometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range places {
		var g orb.Geometry
		if poly := p.Polygon(); mode != ExportCentroid && len(poly) > 0 {
			g = poly
		} else if c := p.Centroid(); c != nil {
			g = *c
		}
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		f.ID = p.ID().String()
		attrs := p.Attributes()
		f.Properties["pk"] = p.ID().String()
		f.Properties["kind"] = string(p.Kind())
		f.Properties["display_name"] = p.DisplayName()
		f.Properties["number_of_lots"] = p.NumberOfLots()
		f.Properties["layer"] = Layer(attrs)
		if attrs.KnownUse != nil {
			f.Properties["known_use"] = attrs.KnownUse.Name
		}
		if attrs.Owner != nil {
			f.Properties["owner_type"] = attrs.Owner.OwnerType
		}
		fc.Append(f)
	}
	return fc
}

// CSVHeader lists the exported columns in order.
var CSVHeader = []string{
	"address_line1", "city", "state_province", "postal_code",
	"latitude", "longitude", "known_use", "owner", "owner_type",
}

// WriteCSV writes one row per place.
func WriteCSV(w io.Writer, places []Place) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, p := range places {
		a := p.Attributes()
		var lat, lon string
		if c := p.Centroid(); c != nil {
			lon = strconv.FormatFloat(c[0], 'f', -1, 64)
			lat = strconv.FormatFloat(c[1], 'f', -1, 64)
		}
		var use, owner, ownerType string
		if a.KnownUse != nil {
			use = a.KnownUse.Name
		}
		if a.Owner != nil {
			owner, ownerType = a.Owner.Name, a.Owner.OwnerType
		}
		row := []string{a.AddressLine1, a.City, a.StateProvince, a.PostalCode, lat, lon, use, owner, ownerType}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type kmlDocument struct {
	XMLName  xml.Name `xml:"kml"`
	Xmlns    string   `xml:"xmlns,attr"`
	Document struct {
		Name       string         `xml:"name"`
		Placemarks []kmlPlacemark `xml:"Placemark"`
	} `xml:"Document"`
}

type kmlPlacemark struct {
	ID          string `xml:"id,attr"`
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
	Point       struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
}

// WriteKML writes the places with a centroid as KML placemarks.
func WriteKML(w io.Writer, name string, places []Place) error {
	doc := kmlDocument{Xmlns: "http://www.opengis.net/kml/2.2"}
	doc.Document.Name = name
	for _, p := range places {
		c := p.Centroid()
		if c == nil {
			continue
		}
		pm := kmlPlacemark{ID: p.ID().String(), Name: p.DisplayName()}
		a := p.Attributes()
		if a.KnownUse != nil {
			pm.Description = a.KnownUse.Name
		}
		pm.Point.Coordinates = fmt.Sprintf("%s,%s",
			strconv.FormatFloat(c[0], 'f', -1, 64), strconv.FormatFloat(c[1], 'f', -1, 64))
		doc.Document.Placemarks = append(doc.Document.Placemarks, pm)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

// ExportFilename names an export download, without extension.
func ExportFilename(site string, now time.Time) string {
	return fmt.Sprintf("%s lots %s", site, now.Format("2006-01-02"))
}
