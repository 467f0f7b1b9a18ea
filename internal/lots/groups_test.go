package lots_test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) parcelGroup(t *testing.T, cells ...[2]int) lots.CreateResult {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(cells))
	for _, c := range cells {
		ids = append(ids, f.parcels.add("", square(c[0], c[1])))
	}
	res, err := f.svc.Creator.CreateForParcels(context.Background(), ids, false, lots.DefaultCreateOptions(lots.ReasonParcels))
	require.NoError(t, err)
	require.NotNil(t, res.Group)
	return res
}

func assertFootprint(t *testing.T, g *lots.LotGroup, cells ...[2]int) {
	t.Helper()
	polys := make([]orb.MultiPolygon, 0, len(cells))
	for _, c := range cells {
		polys = append(polys, square(c[0], c[1]))
	}
	want, err := geometry.Union(polys)
	require.NoError(t, err)
	same, err := geometry.Equivalent(want, g.Polygon.Orb())
	require.NoError(t, err)
	assert.True(t, same, "group polygon does not match its members")
	assert.NotNil(t, g.Centroid())
}

func TestGroup_ReassignMemberBetweenGroups(t *testing.T) {
	f := newFixture(t)
	a := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0})
	b := f.parcelGroup(t, [2]int{0, 5}, [2]int{1, 5})

	var moving *lots.Lot
	for _, l := range a.Lots {
		if orb.Equal(l.Polygon.Orb(), square(2, 0)) {
			moving = f.lot(t, l.ID)
		}
	}
	require.NotNil(t, moving)
	bid := b.Group.ID
	moving.GroupID = &bid
	require.NoError(t, f.svc.Lots.Save(context.Background(), moving))

	ga := f.group(t, a.Group.ID)
	assert.Equal(t, 2, ga.NumberOfLots())
	assertFootprint(t, ga.Group, [2]int{0, 0}, [2]int{1, 0})

	gb := f.group(t, b.Group.ID)
	assert.Equal(t, 3, gb.NumberOfLots())
	assertFootprint(t, gb.Group, [2]int{0, 5}, [2]int{1, 5}, [2]int{2, 0})
}

func TestGroup_MemberGeometryChangeRecomputes(t *testing.T) {
	f := newFixture(t)
	res := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0})

	l := f.lot(t, res.Lots[1].ID)
	moved := square(1, 1)
	if orb.Equal(l.Polygon.Orb(), square(0, 0)) {
		moved = square(0, 1)
	}
	l.Polygon = geometry.MultiPolygon(moved)
	require.NoError(t, f.svc.Lots.Save(context.Background(), l))

	g := f.group(t, res.Group.ID)
	other := f.lot(t, res.Lots[0].ID)
	polys := []orb.MultiPolygon{other.Polygon.Orb(), moved}
	want, err := geometry.Union(polys)
	require.NoError(t, err)
	same, err := geometry.Equivalent(want, g.Group.Polygon.Orb())
	require.NoError(t, err)
	assert.True(t, same)

	wantCentroid, err := geometry.Centroid(moved)
	require.NoError(t, err)
	got := f.lot(t, l.ID).Centroid()
	require.NotNil(t, got)
	assert.InDelta(t, wantCentroid[0], got[0], 1e-9)
	assert.InDelta(t, wantCentroid[1], got[1], 1e-9)
}

func TestGroup_DeleteRecomputesThenPrunes(t *testing.T) {
	f := newFixture(t)
	res := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0})
	members := f.group(t, res.Group.ID).Members

	require.NoError(t, f.svc.Lots.Delete(context.Background(), members[0].ID))
	g := f.group(t, res.Group.ID)
	assert.Equal(t, 2, g.NumberOfLots())
	remaining := make([][2]int, 0, 2)
	for _, m := range g.Members {
		for _, c := range [][2]int{{0, 0}, {1, 0}, {2, 0}} {
			if orb.Equal(m.Polygon.Orb(), square(c[0], c[1])) {
				remaining = append(remaining, c)
			}
		}
	}
	assertFootprint(t, g.Group, remaining...)

	require.NoError(t, f.svc.Lots.Delete(context.Background(), g.Members[0].ID))
	require.NoError(t, f.svc.Lots.Delete(context.Background(), g.Members[1].ID))

	_, err := f.svc.Groups.Get(context.Background(), res.Group.ID)
	assert.True(t, errors.Is(err, lots.ErrNotFound))
	assert.EqualValues(t, 0, f.countGroups(t))
	assert.Equal(t, 1, f.hooks.pruned)

	err = f.svc.Lots.Delete(context.Background(), members[0].ID)
	assert.True(t, errors.Is(err, lots.ErrNotFound))
}

func TestGroup_UpdateIsIdempotentAndOrderFree(t *testing.T) {
	f := newFixture(t)
	res := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{1, 1})
	dbc := dbctx.Background()
	g := f.group(t, res.Group.ID)

	forward := append([]*lots.Lot(nil), g.Members...)
	require.NoError(t, f.svc.Groups.Update(dbc, g.Group, forward))
	first := g.Group.Polygon.Orb()
	firstCentroid := *g.Group.Centroid()

	reversed := []*lots.Lot{forward[2], forward[1], forward[0], forward[1]}
	require.NoError(t, f.svc.Groups.Update(dbc, g.Group, reversed))
	assert.True(t, orb.Equal(first, g.Group.Polygon.Orb()))
	assert.Equal(t, firstCentroid, *g.Group.Centroid())

	require.NoError(t, f.svc.Groups.Update(dbc, g.Group, nil))
	assert.True(t, orb.Equal(first, g.Group.Polygon.Orb()))
	assert.Equal(t, 3, f.group(t, res.Group.ID).NumberOfLots())
}

func TestGroup_UpdateWithNoLotsEmptiesGroup(t *testing.T) {
	f := newFixture(t)
	res := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0})
	g := f.group(t, res.Group.ID)

	require.NoError(t, f.svc.Groups.Update(dbctx.Background(), g.Group, []*lots.Lot{}))

	_, err := f.svc.Groups.Get(context.Background(), res.Group.ID)
	assert.True(t, errors.Is(err, lots.ErrNotFound))
	assert.EqualValues(t, 0, f.countGroups(t))
	assert.Equal(t, 1, f.hooks.pruned)
	for _, l := range res.Lots {
		assert.Nil(t, f.lot(t, l.ID).GroupID)
	}
}

func TestGroupService_RecomputeDeletesEmptyGroup(t *testing.T) {
	f := newFixture(t)
	res := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0})
	require.NoError(t, f.db.Model(&lots.Lot{}).Where("group_id = ?", res.Group.ID).
		UpdateColumn("group_id", nil).Error)

	require.NoError(t, f.svc.Groups.Recompute(context.Background(), res.Group.ID))
	assert.EqualValues(t, 0, f.countGroups(t))
	assert.Equal(t, 1, f.hooks.pruned)
}

func TestGroupWith_NewGroupThenReuse(t *testing.T) {
	f := newFixture(t)
	a := f.drawn(t, square(0, 0))
	b := f.drawn(t, square(1, 0))
	c := f.drawn(t, square(2, 0))

	g, err := f.svc.Creator.GroupWith(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Contains(t, g.DisplayName(), "(unknown address)")
	assertFootprint(t, g, [2]int{0, 0}, [2]int{1, 0})

	again, err := f.svc.Creator.GroupWith(context.Background(), c.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, again.ID)
	assertFootprint(t, again, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0})
	assert.Equal(t, 3, f.group(t, g.ID).NumberOfLots())
	assert.EqualValues(t, 1, f.countGroups(t))
}

func TestGroupWith_NeedsTwoLots(t *testing.T) {
	f := newFixture(t)
	a := f.drawn(t, square(0, 0))

	_, err := f.svc.Creator.GroupWith(context.Background(), a.ID, a.ID)
	assert.True(t, errors.Is(err, lots.ErrValidation))

	_, err = f.svc.Creator.GroupWith(context.Background(), a.ID, uuid.New())
	assert.True(t, errors.Is(err, lots.ErrNotFound))
	assert.EqualValues(t, 0, f.countGroups(t))
}

func TestGroup_WithoutGeometry(t *testing.T) {
	f := newFixture(t)
	a := &lots.Lot{Name: "Empty corner", KnownUseCertainty: 5}
	b := &lots.Lot{Name: "Empty side", KnownUseCertainty: 5}
	require.NoError(t, f.svc.Lots.Save(context.Background(), a))
	require.NoError(t, f.svc.Lots.Save(context.Background(), b))

	g, err := f.svc.Creator.GroupWith(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, g.Polygon.IsEmpty())
	assert.Nil(t, g.Centroid())
	assert.Nil(t, g.PolygonArea)
}

func TestGroup_CentroidFallsBackToFirstMember(t *testing.T) {
	f := newFixture(t)
	a := &lots.Lot{Name: "Pin A"}
	a.SetCentroid(&orb.Point{-87.6, 41.8})
	b := &lots.Lot{Name: "Pin B"}
	b.SetCentroid(&orb.Point{-87.7, 41.9})
	require.NoError(t, f.svc.Lots.Save(context.Background(), a))
	require.NoError(t, f.svc.Lots.Save(context.Background(), b))

	g, err := f.svc.Creator.GroupWith(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	pins := []*lots.Lot{a, b}
	sort.Slice(pins, func(i, j int) bool { return bytes.Compare(pins[i].ID[:], pins[j].ID[:]) < 0 })
	require.NotNil(t, g.Centroid())
	assert.Equal(t, *pins[0].Centroid(), *g.Centroid())
	assert.True(t, g.Polygon.IsEmpty())
}

func TestLotStore_UngroupAndMove(t *testing.T) {
	f := newFixture(t)
	a := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0})
	b := f.parcelGroup(t, [2]int{0, 5}, [2]int{1, 5})

	out := a.Lots[0].ID
	require.NoError(t, f.svc.Lots.Ungroup(context.Background(), out))
	assert.Nil(t, f.lot(t, out).GroupID)
	assert.Equal(t, 2, f.group(t, a.Group.ID).NumberOfLots())

	// Ungrouping a standalone lot is a no-op.
	require.NoError(t, f.svc.Lots.Ungroup(context.Background(), out))

	require.NoError(t, f.svc.Lots.MoveToGroup(context.Background(), b.Group.ID, []uuid.UUID{out, a.Lots[1].ID}))
	assert.Equal(t, 4, f.group(t, b.Group.ID).NumberOfLots())
	assert.Equal(t, 1, f.group(t, a.Group.ID).NumberOfLots())

	err := f.svc.Lots.MoveToGroup(context.Background(), uuid.New(), []uuid.UUID{out})
	assert.True(t, errors.Is(err, lots.ErrNotFound))
}

func TestGroupService_Recompute(t *testing.T) {
	f := newFixture(t)
	res := f.parcelGroup(t, [2]int{0, 0}, [2]int{1, 0})
	require.NoError(t, f.db.Model(&lots.LotGroup{}).Where("id = ?", res.Group.ID).
		UpdateColumn("longitude", nil).Error)

	require.NoError(t, f.svc.Groups.Recompute(context.Background(), res.Group.ID))
	assertFootprint(t, f.group(t, res.Group.ID).Group, [2]int{0, 0}, [2]int{1, 0})
}
