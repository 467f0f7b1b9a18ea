package parcels

import (
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Parcel is a tax parcel imported from a county GeoJSON export.
type Parcel struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// SourceID is the county's parcel number. Imports upsert on it.
	SourceID string `gorm:"not null;uniqueIndex" json:"source_id"`

	StreetAddress string `gorm:"index" json:"street_address"`
	City          string `json:"city"`
	StateCode     string `gorm:"size:2" json:"state_code"`
	PostalCode    string `json:"postal_code"`

	OwnerName string `gorm:"index" json:"owner_name,omitempty"`
	OwnerType string `json:"owner_type,omitempty"`

	Polygon   geometry.MultiPolygon `json:"polygon"`
	Longitude *float64              `json:"longitude"`
	Latitude  *float64              `json:"latitude"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Parcel) TableName() string { return "parcels" }

func (p *Parcel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeSave fills a missing centroid from the polygon.
func (p *Parcel) BeforeSave(tx *gorm.DB) error {
	if (p.Longitude != nil && p.Latitude != nil) || p.Polygon.IsEmpty() {
		return nil
	}
	c, err := geometry.Centroid(p.Polygon.Orb())
	if err != nil {
		return nil
	}
	lon, lat := c[0], c[1]
	p.Longitude, p.Latitude = &lon, &lat
	return nil
}
