package parcels

import (
	"context"
	"fmt"
	"strings"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Property names read from imported features. The first present key wins.
var (
	sourceKeys  = []string{"parcel_id", "pin", "apn"}
	addressKeys = []string{"address", "street_address", "situs"}
	cityKeys    = []string{"city"}
	stateKeys   = []string{"state", "state_code"}
	zipKeys     = []string{"zip", "postal_code", "zipcode"}
	ownerKeys   = []string{"owner", "owner_name"}
	typeKeys    = []string{"owner_type"}
)

// Store reads and imports parcels. It is the lots package's ParcelSource.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{db: db, log: baseLog.With("service", "ParcelStore")}
}

// ParcelsByIDs loads the parcels that exist among ids. Missing IDs are
// left out.
func (s *Store) ParcelsByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]lots.ParcelRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []Parcel
	if err := dbc.Conn(s.db).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]lots.ParcelRecord, 0, len(rows))
	for _, p := range rows {
		out = append(out, toRecord(p))
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Parcel, error) {
	var p Parcel
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// BySourceID maps county parcel numbers to stored parcel IDs.
func (s *Store) BySourceID(ctx context.Context, sourceIDs []string) (map[string]uuid.UUID, error) {
	var rows []Parcel
	if err := s.db.WithContext(ctx).Select("id", "source_id").Where("source_id IN ?", sourceIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uuid.UUID, len(rows))
	for _, p := range rows {
		out[p.SourceID] = p.ID
	}
	return out, nil
}

// ImportResult counts what an import did.
type ImportResult struct {
	Imported int
	Skipped  int
}

// Import upserts every polygon feature in a GeoJSON document, keyed on its
// parcel number. Features without a parcel number or a polygon are
// skipped and logged.
func (s *Store) Import(ctx context.Context, raw []byte) (ImportResult, error) {
	features, err := geometry.ParseFeatures(raw)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	rows := make([]Parcel, 0, len(features))
	for i, f := range features {
		p, err := fromFeature(f)
		if err != nil {
			res.Skipped++
			s.log.Warn("skipping parcel feature", "index", i, "error", err)
			continue
		}
		rows = append(rows, p)
	}
	if len(rows) == 0 {
		return res, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "source_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"street_address", "city", "state_code", "postal_code",
					"owner_name", "owner_type", "polygon", "longitude", "latitude", "updated_at",
				}),
			}).Create(&rows[i]).Error
			if err != nil {
				return fmt.Errorf("parcel %s: %w", rows[i].SourceID, err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Imported = len(rows)
	s.log.Info("parcels imported", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

func fromFeature(f *geojson.Feature) (Parcel, error) {
	source := prop(f, sourceKeys)
	if source == "" && f.ID != nil {
		source = strings.TrimSpace(fmt.Sprint(f.ID))
	}
	if source == "" {
		return Parcel{}, fmt.Errorf("no parcel number")
	}
	poly, err := geometry.AsMultiPolygon(f.Geometry)
	if err != nil {
		return Parcel{}, err
	}
	return Parcel{
		SourceID:      source,
		StreetAddress: prop(f, addressKeys),
		City:          prop(f, cityKeys),
		StateCode:     strings.ToUpper(prop(f, stateKeys)),
		PostalCode:    prop(f, zipKeys),
		OwnerName:     prop(f, ownerKeys),
		OwnerType:     owners.NormalizeType(prop(f, typeKeys)),
		Polygon:       geometry.MultiPolygon(poly),
	}, nil
}

func prop(f *geojson.Feature, keys []string) string {
	for _, k := range keys {
		v, ok := f.Properties[k]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return ""
}

func toRecord(p Parcel) lots.ParcelRecord {
	r := lots.ParcelRecord{
		ID:            p.ID,
		StreetAddress: p.StreetAddress,
		City:          p.City,
		StateCode:     p.StateCode,
		PostalCode:    p.PostalCode,
		Polygon:       p.Polygon.Orb(),
		OwnerName:     p.OwnerName,
		OwnerType:     p.OwnerType,
	}
	if p.Longitude != nil && p.Latitude != nil {
		r.Centroid = &orb.Point{*p.Longitude, *p.Latitude}
	}
	return r
}
