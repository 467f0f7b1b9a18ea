package lots

import (
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type PlaceKind string

const (
	KindLot   PlaceKind = "lot"
	KindGroup PlaceKind = "group"
)

// Place is either a standalone lot or a group with its members.
type Place interface {
	ID() uuid.UUID
	Kind() PlaceKind
	DisplayName() string
	Centroid() *orb.Point
	Polygon() orb.MultiPolygon
	NumberOfLots() int
	Attributes() Attributes
	place()
}

// Attributes are the descriptive fields every place carries.
type Attributes struct {
	AddressLine1      string
	City              string
	StateProvince     string
	PostalCode        string
	KnownUse          *Use
	KnownUseCertainty int
	Owner             *owners.Owner
	PolygonArea       *float64
}

type Single struct {
	Lot *Lot
}

func (s Single) ID() uuid.UUID             { return s.Lot.ID }
func (Single) Kind() PlaceKind             { return KindLot }
func (s Single) DisplayName() string       { return s.Lot.DisplayName() }
func (s Single) Centroid() *orb.Point      { return s.Lot.Centroid() }
func (s Single) Polygon() orb.MultiPolygon { return s.Lot.Polygon.Orb() }
func (Single) NumberOfLots() int           { return 1 }
func (Single) place()                      {}

func (s Single) Attributes() Attributes {
	return Attributes{
		AddressLine1:      s.Lot.AddressLine1,
		City:              s.Lot.City,
		StateProvince:     s.Lot.StateProvince,
		PostalCode:        s.Lot.PostalCode,
		KnownUse:          s.Lot.KnownUse,
		KnownUseCertainty: s.Lot.KnownUseCertainty,
		Owner:             s.Lot.Owner,
		PolygonArea:       s.Lot.PolygonArea,
	}
}

type Aggregate struct {
	Group   *LotGroup
	Members []*Lot
}

func (a Aggregate) ID() uuid.UUID             { return a.Group.ID }
func (Aggregate) Kind() PlaceKind             { return KindGroup }
func (a Aggregate) DisplayName() string       { return a.Group.DisplayName() }
func (a Aggregate) Centroid() *orb.Point      { return a.Group.Centroid() }
func (a Aggregate) Polygon() orb.MultiPolygon { return a.Group.Polygon.Orb() }
func (a Aggregate) NumberOfLots() int         { return len(a.Members) }
func (Aggregate) place()                      {}

func (a Aggregate) Attributes() Attributes {
	return Attributes{
		AddressLine1:      a.Group.AddressLine1,
		City:              a.Group.City,
		StateProvince:     a.Group.StateProvince,
		PostalCode:        a.Group.PostalCode,
		KnownUse:          a.Group.KnownUse,
		KnownUseCertainty: a.Group.KnownUseCertainty,
		Owner:             a.Group.Owner,
		PolygonArea:       a.Group.PolygonArea,
	}
}
