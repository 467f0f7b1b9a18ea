package lots

import (
	"context"
	"errors"
	"sort"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
)

// LotStore is the write path for lots. Saves and deletes run the group
// coordinator in the same transaction as the row change.
type LotStore struct {
	deps   Deps
	groups *GroupService
	coord  *Coordinator
	log    *logger.Logger
}

func NewLotStore(deps Deps, groups *GroupService, coord *Coordinator) *LotStore {
	deps = deps.withDefaults()
	return &LotStore{deps: deps, groups: groups, coord: coord, log: deps.Log.With("service", "LotStore")}
}

func (s *LotStore) Save(ctx context.Context, l *Lot) error {
	return executeWrite(ctx, s.deps, "lots.save", func(dbc dbctx.Context) error {
		return s.SaveTx(dbc, l)
	})
}

// SaveTx writes l inside an open transaction. A lot without an ID gets one.
func (s *LotStore) SaveTx(dbc dbctx.Context, l *Lot) error {
	var previous *Lot
	isNew := l.ID == uuid.Nil
	if isNew {
		l.ID = uuid.New()
	} else {
		prev, err := s.deps.Lots.Get(dbc, l.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			isNew = true
		case err != nil:
			return err
		default:
			previous = prev
			if l.CreatedAt.IsZero() {
				l.CreatedAt = prev.CreatedAt
			}
			l.followPolygon(prev.Footprint)
		}
	}

	if err := s.coord.OnBeforeSave(dbc, previous, l); err != nil {
		return err
	}
	if isNew {
		return s.deps.Lots.Create(dbc, l)
	}
	return s.deps.Lots.Save(dbc, l)
}

func (s *LotStore) Delete(ctx context.Context, id uuid.UUID) error {
	return executeWrite(ctx, s.deps, "lots.delete", func(dbc dbctx.Context) error {
		return s.DeleteTx(dbc, id)
	})
}

// DeleteTx removes a lot and then recomputes the group it belonged to.
func (s *LotStore) DeleteTx(dbc dbctx.Context, id uuid.UUID) error {
	l, err := s.deps.Lots.Get(dbc, id)
	if err != nil {
		return err
	}
	if err := s.deps.Lots.Delete(dbc, id); err != nil {
		return err
	}
	return s.coord.OnAfterDelete(dbc, l)
}

func (s *LotStore) Get(ctx context.Context, id uuid.UUID) (*Lot, error) {
	return s.deps.Lots.Get(readCtx(ctx), id)
}

func (s *LotStore) GetByParcel(ctx context.Context, parcelID uuid.UUID) (*Lot, error) {
	return s.deps.Lots.GetByParcel(readCtx(ctx), parcelID)
}

func (s *LotStore) Filter(ctx context.Context, f LotFilter) ([]*Lot, error) {
	return s.deps.Lots.Find(readCtx(ctx), f)
}

// Visible returns the standalone lots shown on the public map.
func (s *LotStore) Visible(ctx context.Context) ([]*Lot, error) {
	return s.deps.Lots.Find(readCtx(ctx), Visible())
}

// Place resolves an ID to a lot or a group. A lot inside a group resolves
// to its group.
func (s *LotStore) Place(ctx context.Context, id uuid.UUID) (Place, error) {
	dbc := readCtx(ctx)
	l, err := s.deps.Lots.Get(dbc, id)
	switch {
	case err == nil && l.GroupID == nil:
		return Single{Lot: l}, nil
	case err == nil:
		return s.groups.Get(ctx, *l.GroupID)
	case errors.Is(err, ErrNotFound):
		return s.groups.Get(ctx, id)
	default:
		return nil, err
	}
}

// Places returns the lots matching f as places. With ParentsOnly set,
// matching groups are included and grouped lots are left out.
func (s *LotStore) Places(ctx context.Context, f LotFilter) ([]Place, error) {
	dbc := readCtx(ctx)
	lots, err := s.deps.Lots.Find(dbc, f)
	if err != nil {
		return nil, err
	}
	out := make([]Place, 0, len(lots))
	for _, l := range lots {
		out = append(out, Single{Lot: l})
	}
	if !f.ParentsOnly {
		return out, nil
	}

	groups, err := s.deps.Groups.Find(dbc, f)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	members, err := s.deps.Lots.Find(dbc, LotFilter{GroupIDs: ids})
	if err != nil {
		return nil, err
	}
	byGroup := make(map[uuid.UUID][]*Lot, len(groups))
	for _, m := range members {
		byGroup[*m.GroupID] = append(byGroup[*m.GroupID], m)
	}
	for _, g := range groups {
		out = append(out, Aggregate{Group: g, Members: byGroup[g.ID]})
	}
	return out, nil
}

type Counts struct {
	Lots       int64 `json:"lots-count"`
	NoKnownUse int64 `json:"no-known-use-count"`
	InUse      int64 `json:"in-use-count"`
}

// Counts tallies the places matching f, split by known-use existence.
func (s *LotStore) Counts(ctx context.Context, f LotFilter) (Counts, error) {
	total, err := s.countPlaces(ctx, f)
	if err != nil {
		return Counts{}, err
	}
	f.KnownUse = NotInUse
	none, err := s.countPlaces(ctx, f)
	if err != nil {
		return Counts{}, err
	}
	f.KnownUse = InUse
	inUse, err := s.countPlaces(ctx, f)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Lots: total, NoKnownUse: none, InUse: inUse}, nil
}

func (s *LotStore) countPlaces(ctx context.Context, f LotFilter) (int64, error) {
	dbc := readCtx(ctx)
	n, err := s.deps.Lots.Count(dbc, f)
	if err != nil || !f.ParentsOnly {
		return n, err
	}
	g, err := s.deps.Groups.Count(dbc, f)
	return n + g, err
}

type NearbyOptions struct {
	Miles       float64
	IncludeSelf bool
	VisibleOnly bool
}

// FindNearby returns lots whose centroid lies within opts.Miles of l's
// centroid, nearest first. A lot without a centroid has no neighbours.
func (s *LotStore) FindNearby(ctx context.Context, l *Lot, opts NearbyOptions) ([]*Lot, error) {
	center := l.Centroid()
	if center == nil {
		return nil, nil
	}
	if opts.Miles <= 0 {
		opts.Miles = 0.5
	}
	b := geometry.BoundAround(*center, opts.Miles)
	candidates, err := s.deps.Lots.Find(readCtx(ctx), LotFilter{
		Bound:       &b,
		VisibleOnly: opts.VisibleOnly,
		ParentsOnly: opts.VisibleOnly,
	})
	if err != nil {
		return nil, err
	}
	dist := make(map[uuid.UUID]float64, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c.ID == l.ID && !opts.IncludeSelf {
			continue
		}
		p := c.Centroid()
		if p == nil {
			continue
		}
		d := geometry.DistanceMiles(*center, *p)
		if d > opts.Miles {
			continue
		}
		dist[c.ID] = d
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return dist[out[i].ID] < dist[out[j].ID] })
	return out, nil
}

// Hide marks a lot, or a group, with useID at full locked certainty.
func (s *LotStore) Hide(ctx context.Context, id, useID uuid.UUID) error {
	return executeWrite(ctx, s.deps, "lots.hide", func(dbc dbctx.Context) error {
		if _, err := s.deps.Uses.Get(dbc, useID); err != nil {
			return err
		}
		l, err := s.deps.Lots.Get(dbc, id)
		if err == nil {
			l.KnownUseID, l.KnownUse = &useID, nil
			l.KnownUseCertainty = MaxCertainty
			l.KnownUseLocked = true
			return s.SaveTx(dbc, l)
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		g, err := s.deps.Groups.Get(dbc, id)
		if err != nil {
			return err
		}
		g.KnownUseID, g.KnownUse = &useID, nil
		g.KnownUseCertainty = MaxCertainty
		g.KnownUseLocked = true
		return s.deps.Groups.Save(dbc, g)
	})
}

// Ungroup takes a lot out of its group.
func (s *LotStore) Ungroup(ctx context.Context, id uuid.UUID) error {
	return executeWrite(ctx, s.deps, "lots.ungroup", func(dbc dbctx.Context) error {
		l, err := s.deps.Lots.Get(dbc, id)
		if err != nil {
			return err
		}
		if l.GroupID == nil {
			return nil
		}
		l.GroupID = nil
		return s.SaveTx(dbc, l)
	})
}

// MoveToGroup puts each lot into groupID, taking it out of any other group.
func (s *LotStore) MoveToGroup(ctx context.Context, groupID uuid.UUID, lotIDs []uuid.UUID) error {
	return executeWrite(ctx, s.deps, "lots.move_to_group", func(dbc dbctx.Context) error {
		if _, err := s.deps.Groups.Get(dbc, groupID); err != nil {
			return err
		}
		for _, id := range lotIDs {
			l, err := s.deps.Lots.Get(dbc, id)
			if err != nil {
				return err
			}
			gid := groupID
			l.GroupID = &gid
			if err := s.SaveTx(dbc, l); err != nil {
				return err
			}
		}
		return nil
	})
}
