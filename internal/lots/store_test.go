package lots_test

import (
	"context"
	"errors"
	"testing"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) use(t *testing.T, name string, visible bool) *lots.Use {
	t.Helper()
	u := &lots.Use{Name: name, Visible: visible}
	require.NoError(t, f.svc.Uses.Upsert(dbctx.Background(), u))
	return u
}

func TestLotStore_VisibilityAndPlaces(t *testing.T) {
	f := newFixture(t)
	garden := f.use(t, "Community Garden", true)
	parking := f.use(t, "Parking", false)
	ctx := context.Background()

	plain := f.drawn(t, square(0, 0))

	uncertain := &lots.Lot{Name: "Unsure", KnownUseCertainty: 2}
	require.NoError(t, f.svc.Lots.Save(ctx, uncertain))

	parked := &lots.Lot{Name: "Parked", KnownUseID: &parking.ID, KnownUseCertainty: 10, StewardInclusionOptIn: true}
	require.NoError(t, f.svc.Lots.Save(ctx, parked))

	gardened := &lots.Lot{Name: "Garden", KnownUseID: &garden.ID, KnownUseCertainty: 10, StewardInclusionOptIn: true}
	require.NoError(t, f.svc.Lots.Save(ctx, gardened))

	grouped := f.parcelGroup(t, [2]int{5, 5}, [2]int{6, 5})

	visible, err := f.svc.Lots.Visible(ctx)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, l := range visible {
		names[l.DisplayName()] = true
		assert.True(t, l.IsVisible(), l.DisplayName())
	}
	assert.Len(t, visible, 2)
	assert.True(t, names["Garden"])
	assert.True(t, names[plain.DisplayName()])

	places, err := f.svc.Lots.Places(ctx, lots.Visible())
	require.NoError(t, err)
	require.Len(t, places, 3)
	last := places[2]
	assert.Equal(t, lots.KindGroup, last.Kind())
	assert.Equal(t, grouped.Group.ID, last.ID())
	assert.Equal(t, 2, last.NumberOfLots())

	counts, err := f.svc.Lots.Counts(ctx, lots.Visible())
	require.NoError(t, err)
	assert.Equal(t, lots.Counts{Lots: 3, NoKnownUse: 2, InUse: 1}, counts)

	all, err := f.svc.Lots.Filter(ctx, lots.LotFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	byUse, err := f.svc.Lots.Filter(ctx, lots.LotFilter{KnownUseNames: []string{"Parking"}})
	require.NoError(t, err)
	require.Len(t, byUse, 1)
	assert.Equal(t, parked.ID, byUse[0].ID)
}

func TestLotStore_Place(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	solo := f.drawn(t, square(0, 0))
	grouped := f.parcelGroup(t, [2]int{3, 3}, [2]int{4, 3})

	p, err := f.svc.Lots.Place(ctx, solo.ID)
	require.NoError(t, err)
	assert.Equal(t, lots.KindLot, p.Kind())

	p, err = f.svc.Lots.Place(ctx, grouped.Lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, lots.KindGroup, p.Kind())
	assert.Equal(t, grouped.Group.ID, p.ID())

	p, err = f.svc.Lots.Place(ctx, grouped.Group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumberOfLots())
}

func TestLotStore_FindNearby(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	center := f.drawn(t, square(0, 0))
	next := f.drawn(t, square(1, 0))
	near := f.drawn(t, square(0, 1))
	f.drawn(t, square(200, 0))

	got, err := f.svc.Lots.FindNearby(ctx, center, lots.NearbyOptions{Miles: 0.1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []any{got[0].ID, got[1].ID}
	assert.Contains(t, ids, next.ID)
	assert.Contains(t, ids, near.ID)

	withSelf, err := f.svc.Lots.FindNearby(ctx, center, lots.NearbyOptions{Miles: 0.1, IncludeSelf: true})
	require.NoError(t, err)
	require.Len(t, withSelf, 3)
	assert.Equal(t, center.ID, withSelf[0].ID)

	none, err := f.svc.Lots.FindNearby(ctx, &lots.Lot{}, lots.NearbyOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLotStore_Hide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hidden := f.use(t, "Private yard", false)
	l := f.drawn(t, square(0, 0))
	grouped := f.parcelGroup(t, [2]int{3, 3}, [2]int{4, 3})

	require.NoError(t, f.svc.Lots.Hide(ctx, l.ID, hidden.ID))
	stored := f.lot(t, l.ID)
	require.NotNil(t, stored.KnownUse)
	assert.Equal(t, "Private yard", stored.KnownUse.Name)
	assert.Equal(t, lots.MaxCertainty, stored.KnownUseCertainty)
	assert.True(t, stored.KnownUseLocked)
	assert.False(t, stored.IsVisible())

	require.NoError(t, f.svc.Lots.Hide(ctx, grouped.Group.ID, hidden.ID))
	g := f.group(t, grouped.Group.ID)
	assert.False(t, g.Group.IsVisible())

	visible, err := f.svc.Lots.Places(ctx, lots.Visible())
	require.NoError(t, err)
	assert.Empty(t, visible)

	err = f.svc.Lots.Hide(ctx, l.ID, grouped.Group.ID)
	assert.True(t, errors.Is(err, lots.ErrNotFound))
}

func TestUseRepository_Upsert(t *testing.T) {
	f := newFixture(t)
	dbc := dbctx.Background()
	first := f.use(t, "Community Garden", true)
	assert.Equal(t, "community-garden", first.Slug)

	again := &lots.Use{Name: "Community Garden", Visible: false}
	require.NoError(t, f.svc.Uses.Upsert(dbc, again))
	assert.Equal(t, first.ID, again.ID)

	got, err := f.svc.Uses.GetBySlug(dbc, "community-garden")
	require.NoError(t, err)
	assert.False(t, got.Visible)

	list, err := f.svc.Uses.List(dbc)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLotStore_SaveMovesCentroidWithPolygon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.drawn(t, square(0, 0))

	stored := f.lot(t, l.ID)
	stored.Polygon = geometry.MultiPolygon(square(50, 50))
	require.NoError(t, f.svc.Lots.Save(ctx, stored))

	want, err := geometry.Centroid(square(50, 50))
	require.NoError(t, err)
	got := f.lot(t, l.ID).Centroid()
	require.NotNil(t, got)
	assert.InDelta(t, want[0], got[0], 1e-9)
	assert.InDelta(t, want[1], got[1], 1e-9)

	found, err := f.svc.Lots.Filter(ctx, lots.LotFilter{Bound: ptrBound(square(50, 50).Bound())})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, l.ID, found[0].ID)
}

func TestLotStore_SaveKeepsExplicitCentroid(t *testing.T) {
	f := newFixture(t)
	l := f.drawn(t, square(0, 0))

	stored := f.lot(t, l.ID)
	stored.Polygon = geometry.MultiPolygon(square(50, 50))
	pin := orb.Point{-87.0, 41.0}
	stored.SetCentroid(&pin)
	require.NoError(t, f.svc.Lots.Save(context.Background(), stored))

	got := f.lot(t, l.ID).Centroid()
	require.NotNil(t, got)
	assert.Equal(t, pin, *got)
}

func ptrBound(b orb.Bound) *orb.Bound { return &b }
