package lots

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Certainty bounds for known uses.
const (
	MaxCertainty       = 10
	MaxComputedCertain = 9
	// VisibleCertainty is the certainty a lot must exceed to be shown.
	VisibleCertainty = 3
)

// Use is a category of current land use, such as "community garden".
type Use struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"not null" json:"name"`
	Slug    string    `gorm:"not null;uniqueIndex" json:"slug"`
	Visible bool      `gorm:"not null" json:"visible"`
}

func (Use) TableName() string { return "uses" }

func (u *Use) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Slug == "" {
		u.Slug = Slugify(u.Name)
	}
	return nil
}

var slugFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, strips accents and joins words with dashes.
func Slugify(s string) string {
	folded, _, err := transform.String(slugFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Footprint is the stored geometry shared by lots and groups. Area and
// bounding box are derived from Polygon on every save.
type Footprint struct {
	Polygon     geometry.MultiPolygon `json:"polygon"`
	Longitude   *float64              `json:"longitude"`
	Latitude    *float64              `json:"latitude"`
	PolygonArea *float64              `json:"polygon_area,omitempty"`
	MinLon      *float64              `gorm:"index" json:"-"`
	MinLat      *float64              `gorm:"index" json:"-"`
	MaxLon      *float64              `json:"-"`
	MaxLat      *float64              `json:"-"`
}

// Centroid returns the stored centroid, if any.
func (f *Footprint) Centroid() *orb.Point {
	if f.Longitude == nil || f.Latitude == nil {
		return nil
	}
	return &orb.Point{*f.Longitude, *f.Latitude}
}

func (f *Footprint) SetCentroid(p *orb.Point) {
	if p == nil {
		f.Longitude, f.Latitude = nil, nil
		return
	}
	lon, lat := p[0], p[1]
	f.Longitude, f.Latitude = &lon, &lat
}

// refresh recomputes the derived columns. A missing centroid is filled in
// from the polygon when possible.
func (f *Footprint) refresh() {
	if f.Polygon.IsEmpty() {
		f.PolygonArea, f.MinLon, f.MinLat, f.MaxLon, f.MaxLat = nil, nil, nil, nil, nil
		return
	}
	mp := f.Polygon.Orb()
	area := geometry.AreaSquareFeet(mp)
	b := mp.Bound()
	f.PolygonArea = &area
	f.MinLon, f.MinLat = ptr(b.Min[0]), ptr(b.Min[1])
	f.MaxLon, f.MaxLat = ptr(b.Max[0]), ptr(b.Max[1])
	if f.Centroid() == nil {
		if c, err := geometry.Centroid(mp); err == nil {
			f.SetCentroid(&c)
		}
	}
}

// followPolygon recenters f on its polygon when the polygon differs from
// previous but the centroid was left untouched. An explicitly moved
// centroid is kept.
func (f *Footprint) followPolygon(previous Footprint) {
	if f.Polygon.IsEmpty() || orb.Equal(previous.Polygon.Orb(), f.Polygon.Orb()) {
		return
	}
	if !samePoint(previous.Centroid(), f.Centroid()) {
		return
	}
	if c, err := geometry.Centroid(f.Polygon.Orb()); err == nil {
		f.SetCentroid(&c)
	}
}

func samePoint(a, b *orb.Point) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ptr(v float64) *float64 { return &v }

// Lot is a single parcel-backed or hand-drawn piece of land.
type Lot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `json:"name"`
	AddressLine1 string    `gorm:"column:address_line1" json:"address_line1"`
	AddressLine2 string    `gorm:"column:address_line2" json:"address_line2,omitempty"`
	City         string    `json:"city"`
	// StateProvince is a two-letter code.
	StateProvince string `gorm:"size:2" json:"state_province"`
	PostalCode    string `json:"postal_code"`

	Footprint

	KnownUseID        *uuid.UUID `gorm:"type:uuid;index" json:"known_use_id"`
	KnownUse          *Use       `gorm:"foreignKey:KnownUseID" json:"known_use,omitempty"`
	KnownUseCertainty int        `gorm:"not null" json:"known_use_certainty"`
	KnownUseLocked    bool       `gorm:"not null" json:"known_use_locked"`

	OwnerID        *uuid.UUID    `gorm:"type:uuid;index" json:"owner_id"`
	Owner          *owners.Owner `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	OwnerContactID *uuid.UUID    `gorm:"type:uuid" json:"owner_contact_id,omitempty"`

	ParcelID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_lots_parcel_id" json:"parcel_id"`
	GroupID  *uuid.UUID `gorm:"type:uuid;index" json:"group_id"`

	StewardInclusionOptIn bool      `gorm:"not null" json:"steward_inclusion_opt_in"`
	AddedReason           string    `json:"added_reason"`
	CreatedAt             time.Time `json:"added"`
	UpdatedAt             time.Time `json:"updated"`
}

func (Lot) TableName() string { return "lots" }

func (l *Lot) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *Lot) BeforeSave(tx *gorm.DB) error {
	l.Footprint.refresh()
	return nil
}

// DisplayName is the name, else the street address, else a placeholder.
func (l *Lot) DisplayName() string {
	return displayName(l.Name, l.AddressLine1, l.ID)
}

// IsVisible mirrors LotFilter{VisibleOnly: true, ParentsOnly: true}.
// KnownUse must be loaded when KnownUseID is set.
func (l *Lot) IsVisible() bool {
	if l.GroupID != nil {
		return false
	}
	return visible(l.KnownUseID, l.KnownUse, l.StewardInclusionOptIn, l.KnownUseCertainty)
}

// CalculateKnownUseCertainty returns the stored certainty when locked.
// Otherwise it scores the available evidence: a recorded use is worth 5, a
// known owner 2, a mapped polygon 1 and a steward opt-in 1. Only a locked
// lot can reach full certainty.
func (l *Lot) CalculateKnownUseCertainty() int {
	if l.KnownUseLocked {
		return l.KnownUseCertainty
	}
	points := 0
	if l.KnownUseID != nil {
		points += 5
	}
	if l.OwnerID != nil {
		points += 2
	}
	if !l.Polygon.IsEmpty() {
		points++
	}
	if l.StewardInclusionOptIn {
		points++
	}
	return min(points, MaxComputedCertain)
}

// LotGroup aggregates member lots. Its footprint is the union of theirs.
type LotGroup struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `json:"name"`
	AddressLine1  string    `gorm:"column:address_line1" json:"address_line1"`
	AddressLine2  string    `gorm:"column:address_line2" json:"address_line2,omitempty"`
	City          string    `json:"city"`
	StateProvince string    `gorm:"size:2" json:"state_province"`
	PostalCode    string    `json:"postal_code"`

	Footprint

	KnownUseID        *uuid.UUID `gorm:"type:uuid;index" json:"known_use_id"`
	KnownUse          *Use       `gorm:"foreignKey:KnownUseID" json:"known_use,omitempty"`
	KnownUseCertainty int        `gorm:"not null" json:"known_use_certainty"`
	KnownUseLocked    bool       `gorm:"not null" json:"known_use_locked"`

	OwnerID *uuid.UUID    `gorm:"type:uuid;index" json:"owner_id"`
	Owner   *owners.Owner `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	StewardInclusionOptIn bool      `gorm:"not null" json:"steward_inclusion_opt_in"`
	AddedReason           string    `json:"added_reason"`
	CreatedAt             time.Time `json:"added"`
	UpdatedAt             time.Time `json:"updated"`
}

func (LotGroup) TableName() string { return "lot_groups" }

func (g *LotGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

func (g *LotGroup) BeforeSave(tx *gorm.DB) error {
	g.Footprint.refresh()
	return nil
}

func (g *LotGroup) DisplayName() string {
	return displayName(g.Name, g.AddressLine1, g.ID)
}

func (g *LotGroup) IsVisible() bool {
	return visible(g.KnownUseID, g.KnownUse, g.StewardInclusionOptIn, g.KnownUseCertainty)
}

// newGroupFrom seeds a group's descriptive fields from a lot.
func newGroupFrom(l *Lot) *LotGroup {
	return &LotGroup{
		ID:                    uuid.New(),
		Name:                  l.Name,
		AddressLine1:          l.AddressLine1,
		AddressLine2:          l.AddressLine2,
		City:                  l.City,
		StateProvince:         l.StateProvince,
		PostalCode:            l.PostalCode,
		KnownUseID:            l.KnownUseID,
		KnownUseCertainty:     l.KnownUseCertainty,
		KnownUseLocked:        l.KnownUseLocked,
		OwnerID:               l.OwnerID,
		StewardInclusionOptIn: l.StewardInclusionOptIn,
		AddedReason:           l.AddedReason,
	}
}

func displayName(name, address string, id uuid.UUID) string {
	if name != "" {
		return name
	}
	if address != "" {
		return address
	}
	return fmt.Sprintf("%s (unknown address)", id)
}

func visible(useID *uuid.UUID, use *Use, optIn bool, certainty int) bool {
	if certainty <= VisibleCertainty {
		return false
	}
	if useID == nil {
		return true
	}
	return use != nil && use.Visible && optIn
}
