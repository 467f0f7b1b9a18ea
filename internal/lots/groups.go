package lots

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// GroupService maintains group membership and the derived group footprint.
// Every method expects to run inside the caller's transaction.
type GroupService struct {
	deps Deps
	log  *logger.Logger
}

func NewGroupService(deps Deps) *GroupService {
	deps = deps.withDefaults()
	return &GroupService{deps: deps, log: deps.Log.With("service", "GroupService")}
}

// Add makes lot a member of g and recomputes g. If lot is already stored
// as a member, the in-memory copy replaces it.
func (s *GroupService) Add(dbc dbctx.Context, g *LotGroup, lot *Lot) error {
	members, err := s.deps.Lots.Members(dbc, g.ID)
	if err != nil {
		return err
	}
	next := make([]*Lot, 0, len(members)+1)
	replaced := false
	for _, m := range members {
		if m.ID == lot.ID {
			next = append(next, lot)
			replaced = true
			continue
		}
		next = append(next, m)
	}
	if !replaced {
		next = append(next, lot)
	}
	return s.Update(dbc, g, next)
}

// Remove drops lot from g and recomputes g. A group left without members
// is deleted.
func (s *GroupService) Remove(dbc dbctx.Context, g *LotGroup, lot *Lot) error {
	members, err := s.deps.Lots.Members(dbc, g.ID)
	if err != nil {
		return err
	}
	remaining := make([]*Lot, 0, len(members))
	for _, m := range members {
		if m.ID != lot.ID {
			remaining = append(remaining, m)
		}
	}
	if lot.GroupID != nil && *lot.GroupID == g.ID {
		lot.GroupID = nil
	}
	if len(remaining) == 0 {
		return s.prune(dbc, g)
	}
	return s.Update(dbc, g, remaining)
}

// Update makes lots the exact membership of g and recomputes its polygon
// and centroid. A nil slice reloads the stored membership; an empty one
// empties the group and deletes it, as does reloading a group that has no
// members left. Repeating a call with the same lots is a no-op.
func (s *GroupService) Update(dbc dbctx.Context, g *LotGroup, lots []*Lot) error {
	start := time.Now()
	if lots == nil {
		var err error
		if lots, err = s.deps.Lots.Members(dbc, g.ID); err != nil {
			return err
		}
	}
	if len(lots) == 0 {
		return s.prune(dbc, g)
	}
	sorted := sortByID(lots)
	ids := make([]uuid.UUID, 0, len(sorted))
	for _, l := range sorted {
		ids = append(ids, l.ID)
	}

	if err := s.deps.Lots.DetachFromGroup(dbc, g.ID, ids); err != nil {
		return err
	}
	if err := s.deps.Lots.AssignGroup(dbc, ids, &g.ID); err != nil {
		return err
	}
	gid := g.ID
	for _, l := range sorted {
		l.GroupID = &gid
	}

	res, err := aggregateFootprint(sorted)
	if err != nil {
		return err
	}
	g.Polygon = geometry.MultiPolygon(res.Polygon)
	g.SetCentroid(res.Centroid)
	if err := s.deps.Groups.Save(dbc, g); err != nil {
		return err
	}

	s.deps.Hooks.GroupRecomputed(len(sorted), time.Since(start))
	s.log.Debug("group recomputed", "group_id", g.ID, "members", len(sorted))
	return nil
}

// Members returns the stored members of a group ordered by ID.
func (s *GroupService) Members(ctx context.Context, groupID uuid.UUID) ([]*Lot, error) {
	return s.deps.Lots.Members(readCtx(ctx), groupID)
}

// NumberOfLots counts the stored members of a group.
func (s *GroupService) NumberOfLots(ctx context.Context, groupID uuid.UUID) (int64, error) {
	return s.deps.Lots.CountMembers(readCtx(ctx), groupID)
}

// Get loads a group together with its members.
func (s *GroupService) Get(ctx context.Context, groupID uuid.UUID) (Aggregate, error) {
	dbc := readCtx(ctx)
	g, err := s.deps.Groups.Get(dbc, groupID)
	if err != nil {
		return Aggregate{}, err
	}
	members, err := s.deps.Lots.Members(dbc, groupID)
	if err != nil {
		return Aggregate{}, err
	}
	return Aggregate{Group: g, Members: members}, nil
}

// Recompute reloads a group's members and rebuilds its footprint. A group
// without members is deleted.
func (s *GroupService) Recompute(ctx context.Context, groupID uuid.UUID) error {
	return executeWrite(ctx, s.deps, "lots.group_recompute", func(dbc dbctx.Context) error {
		g, err := s.deps.Groups.Get(dbc, groupID)
		if err != nil {
			return err
		}
		return s.Update(dbc, g, nil)
	})
}

func (s *GroupService) prune(dbc dbctx.Context, g *LotGroup) error {
	if err := s.deps.Lots.DetachFromGroup(dbc, g.ID, nil); err != nil {
		return err
	}
	if err := s.deps.Groups.Delete(dbc, g.ID); err != nil {
		return err
	}
	s.deps.Hooks.GroupPruned()
	s.log.Info("empty group deleted", "group_id", g.ID)
	return nil
}

// aggregateFootprint unions the member polygons. When the union has no
// usable centroid, or there is no polygon at all, the first member centroid
// in ID order stands in.
func aggregateFootprint(sorted []*Lot) (geometry.Result, error) {
	polys := make([]orb.MultiPolygon, 0, len(sorted))
	for _, l := range sorted {
		if !l.Polygon.IsEmpty() {
			polys = append(polys, l.Polygon.Orb())
		}
	}
	res, err := geometry.Aggregate(polys)
	if err != nil {
		if len(res.Polygon) == 0 || !errors.Is(err, geometry.ErrGeometry) {
			return geometry.Result{}, err
		}
		c := firstCentroid(sorted)
		if c == nil {
			return geometry.Result{}, err
		}
		res.Centroid = c
		return res, nil
	}
	if len(res.Polygon) == 0 {
		res.Centroid = firstCentroid(sorted)
	}
	return res, nil
}

func firstCentroid(lots []*Lot) *orb.Point {
	for _, l := range lots {
		if c := l.Centroid(); c != nil {
			return c
		}
	}
	return nil
}

func sortByID(lots []*Lot) []*Lot {
	out := make([]*Lot, 0, len(lots))
	seen := make(map[uuid.UUID]bool, len(lots))
	for _, l := range lots {
		if l == nil || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}
