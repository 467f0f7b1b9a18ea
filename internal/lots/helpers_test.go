package lots_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/EmpoweredVote/lots-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const cell = 0.001

// square returns a cell-sized square whose lower left corner is at grid
// position (x, y) near Chicago.
func square(x, y int) orb.MultiPolygon {
	lon := -87.65 + float64(x)*cell
	lat := 41.85 + float64(y)*cell
	return orb.MultiPolygon{{{
		{lon, lat}, {lon + cell, lat}, {lon + cell, lat + cell}, {lon, lat + cell}, {lon, lat},
	}}}
}

type fakeParcels struct {
	byID map[uuid.UUID]lots.ParcelRecord
}

func newFakeParcels(records ...lots.ParcelRecord) *fakeParcels {
	f := &fakeParcels{byID: map[uuid.UUID]lots.ParcelRecord{}}
	for _, r := range records {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeParcels) add(street string, poly orb.MultiPolygon) uuid.UUID {
	id := uuid.New()
	f.byID[id] = lots.ParcelRecord{ID: id, StreetAddress: street, City: "Chicago", StateCode: "IL", PostalCode: "60608", Polygon: poly}
	return id
}

func (f *fakeParcels) ParcelsByIDs(_ dbctx.Context, ids []uuid.UUID) ([]lots.ParcelRecord, error) {
	var out []lots.ParcelRecord
	for _, id := range ids {
		if r, ok := f.byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingHooks struct {
	mu         sync.Mutex
	ops        map[string]string
	conflicts  int
	recomputes int
	pruned     int
	created    map[string]int
	overlapErr int
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{ops: map[string]string{}, created: map[string]int{}}
}

func (h *recordingHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops[name] = status
}

func (h *recordingHooks) IncConflict(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conflicts++
}

func (h *recordingHooks) GroupRecomputed(int, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recomputes++
}

func (h *recordingHooks) GroupPruned() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruned++
}

func (h *recordingHooks) LotsCreated(source string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created[source] += n
}

func (h *recordingHooks) OverlapCheckFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlapErr++
}

type fixture struct {
	db      *gorm.DB
	svc     *lots.Service
	parcels *fakeParcels
	hooks   *recordingHooks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t, owners.Migrate, lots.Migrate)
	log := testutil.Logger(t)
	f := &fixture{db: db, parcels: newFakeParcels(), hooks: newRecordingHooks()}
	f.svc = lots.NewService(lots.Deps{
		DB:      db,
		Log:     log,
		Hooks:   f.hooks,
		Owners:  owners.NewResolver(db, log),
		Parcels: f.parcels,
	})
	return f
}

// drawn creates a standalone lot from a shape.
func (f *fixture) drawn(t *testing.T, poly orb.MultiPolygon) *lots.Lot {
	t.Helper()
	res, err := f.svc.Creator.CreateForPolygons(context.Background(), []orb.MultiPolygon{poly}, lots.DefaultCreateOptions(lots.ReasonDrawn))
	require.NoError(t, err)
	require.Len(t, res.Lots, 1)
	return res.Lots[0]
}

func (f *fixture) lot(t *testing.T, id uuid.UUID) *lots.Lot {
	t.Helper()
	l, err := f.svc.Lots.Get(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (f *fixture) group(t *testing.T, id uuid.UUID) lots.Aggregate {
	t.Helper()
	g, err := f.svc.Groups.Get(context.Background(), id)
	require.NoError(t, err)
	return g
}

func (f *fixture) countLots(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&lots.Lot{}).Count(&n).Error)
	return n
}

func (f *fixture) countGroups(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&lots.LotGroup{}).Count(&n).Error)
	return n
}
