package parcels_test

import (
	"context"
	"testing"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/EmpoweredVote/lots-backend/internal/parcels"
	"github.com/EmpoweredVote/lots-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countyExport = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"pin":"17-20-100-001","address":"1200 S Halsted St","city":"Chicago","state":"il","zip":"60608","owner":"City of Chicago","owner_type":"public"},
	 "geometry":{"type":"Polygon","coordinates":[[[-87.65,41.85],[-87.649,41.85],[-87.649,41.851],[-87.65,41.851],[-87.65,41.85]]]}},
	{"type":"Feature","properties":{"pin":"17-20-100-002","address":"1202 S Halsted St","city":"Chicago","state":"IL","zip":"60608"},
	 "geometry":{"type":"Polygon","coordinates":[[[-87.649,41.85],[-87.648,41.85],[-87.648,41.851],[-87.649,41.851],[-87.649,41.85]]]}},
	{"type":"Feature","properties":{"pin":"17-20-100-003","address":"Bus stop"},"geometry":{"type":"Point","coordinates":[-87.6,41.8]}},
	{"type":"Feature","properties":{"address":"No number"},
	 "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}
]}`

func TestImport(t *testing.T) {
	db := testutil.DB(t, parcels.Migrate)
	store := parcels.NewStore(db, testutil.Logger(t))
	ctx := context.Background()

	res, err := store.Import(ctx, []byte(countyExport))
	require.NoError(t, err)
	assert.Equal(t, parcels.ImportResult{Imported: 2, Skipped: 2}, res)

	ids, err := store.BySourceID(ctx, []string{"17-20-100-001", "17-20-100-002", "17-20-100-003"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	p, err := store.Get(ctx, ids["17-20-100-001"])
	require.NoError(t, err)
	assert.Equal(t, "1200 S Halsted St", p.StreetAddress)
	assert.Equal(t, "IL", p.StateCode)
	assert.Equal(t, owners.TypePublic, p.OwnerType)
	require.NotNil(t, p.Longitude)
	assert.InDelta(t, -87.6495, *p.Longitude, 1e-9)

	// Re-importing updates in place.
	updated := []byte(`{"type":"Feature","properties":{"pin":"17-20-100-001","address":"1200 South Halsted"},
		"geometry":{"type":"Polygon","coordinates":[[[-87.65,41.85],[-87.649,41.85],[-87.649,41.851],[-87.65,41.851],[-87.65,41.85]]]}}`)
	res, err = store.Import(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	var n int64
	require.NoError(t, db.Model(&parcels.Parcel{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
	p, err = store.Get(ctx, ids["17-20-100-001"])
	require.NoError(t, err)
	assert.Equal(t, "1200 South Halsted", p.StreetAddress)
}

func TestImport_Malformed(t *testing.T) {
	db := testutil.DB(t, parcels.Migrate)
	store := parcels.NewStore(db, testutil.Logger(t))
	_, err := store.Import(context.Background(), []byte(`not json`))
	assert.Error(t, err)
}

func TestParcelsByIDs(t *testing.T) {
	db := testutil.DB(t, parcels.Migrate)
	store := parcels.NewStore(db, testutil.Logger(t))
	ctx := context.Background()
	_, err := store.Import(ctx, []byte(countyExport))
	require.NoError(t, err)
	ids, err := store.BySourceID(ctx, []string{"17-20-100-001"})
	require.NoError(t, err)

	recs, err := store.ParcelsByIDs(dbctx.Background(), []uuid.UUID{ids["17-20-100-001"], uuid.New()})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "City of Chicago", recs[0].OwnerName)
	assert.Equal(t, "60608", recs[0].PostalCode)
	require.NotNil(t, recs[0].Centroid)
	assert.Len(t, recs[0].Polygon, 1)

	none, err := store.ParcelsByIDs(dbctx.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateLotsFromImportedParcels(t *testing.T) {
	db := testutil.DB(t, owners.Migrate, lots.Migrate, parcels.Migrate)
	log := testutil.Logger(t)
	store := parcels.NewStore(db, log)
	ctx := context.Background()
	_, err := store.Import(ctx, []byte(countyExport))
	require.NoError(t, err)
	ids, err := store.BySourceID(ctx, []string{"17-20-100-001", "17-20-100-002"})
	require.NoError(t, err)

	svc := lots.NewService(lots.Deps{DB: db, Log: log, Owners: owners.NewResolver(db, log), Parcels: store})
	res, err := svc.Creator.CreateForParcels(ctx,
		[]uuid.UUID{ids["17-20-100-001"], ids["17-20-100-002"]}, false, lots.DefaultCreateOptions(lots.ReasonParcels))
	require.NoError(t, err)
	require.NotNil(t, res.Group)
	assert.Len(t, res.Lots, 2)
	assert.Equal(t, "1200 S Halsted St", res.Group.Name)
	assert.NotNil(t, res.Group.OwnerID)
}
