package lots

import (
	"context"
	"fmt"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Added reasons recorded by the add-lot flows.
const (
	ReasonParcels = "Created using add-lot mode"
	ReasonDrawn   = "Drawn using add-lot mode"
)

// CreateOptions are applied to every lot, and to the group, created by one
// call.
type CreateOptions struct {
	AddedReason           string     `json:"added_reason"`
	KnownUseID            *uuid.UUID `json:"known_use_id,omitempty"`
	KnownUseCertainty     int        `json:"known_use_certainty" validate:"gte=0,lte=10"`
	KnownUseLocked        bool       `json:"known_use_locked"`
	StewardInclusionOptIn bool       `json:"steward_inclusion_opt_in"`
}

// DefaultCreateOptions marks the new lots as fully and permanently certain.
func DefaultCreateOptions(reason string) CreateOptions {
	return CreateOptions{
		AddedReason:       reason,
		KnownUseCertainty: MaxCertainty,
		KnownUseLocked:    true,
	}
}

func (o CreateOptions) applyLot(l *Lot) {
	l.AddedReason = o.AddedReason
	l.KnownUseID = o.KnownUseID
	l.KnownUseCertainty = o.KnownUseCertainty
	l.KnownUseLocked = o.KnownUseLocked
	l.StewardInclusionOptIn = o.StewardInclusionOptIn
}

func (o CreateOptions) applyGroup(g *LotGroup) {
	g.AddedReason = o.AddedReason
	g.KnownUseID = o.KnownUseID
	g.KnownUseCertainty = o.KnownUseCertainty
	g.KnownUseLocked = o.KnownUseLocked
	g.StewardInclusionOptIn = o.StewardInclusionOptIn
}

// CreateResult holds the lots written by one creation call and the group
// wrapping them when there is more than one.
type CreateResult struct {
	Lots  []*Lot
	Group *LotGroup
}

// Place is the group when one was created, otherwise the single lot.
func (r CreateResult) Place() Place {
	if r.Group != nil {
		return Aggregate{Group: r.Group, Members: r.Lots}
	}
	if len(r.Lots) == 1 {
		return Single{Lot: r.Lots[0]}
	}
	return nil
}

// Creator turns parcels or drawn shapes into lots, and merges lots into
// groups.
type Creator struct {
	deps     Deps
	store    *LotStore
	groups   *GroupService
	log      *logger.Logger
	overlaps func(a, b orb.MultiPolygon) (bool, error)
}

func NewCreator(deps Deps, store *LotStore, groups *GroupService) *Creator {
	deps = deps.withDefaults()
	return &Creator{
		deps:     deps,
		store:    store,
		groups:   groups,
		log:      deps.Log.With("service", "LotCreator"),
		overlaps: geometry.Overlaps,
	}
}

func (c *Creator) CreateForParcel(ctx context.Context, parcelID uuid.UUID, allowOverlap bool, opts CreateOptions) (CreateResult, error) {
	return c.CreateForParcels(ctx, []uuid.UUID{parcelID}, allowOverlap, opts)
}

// CreateForParcels creates one lot per parcel, grouping them when there is
// more than one. Every parcel is checked before anything is written; a
// parcel already linked to a lot, or overlapping one when allowOverlap is
// false, fails the whole call.
func (c *Creator) CreateForParcels(ctx context.Context, parcelIDs []uuid.UUID, allowOverlap bool, opts CreateOptions) (CreateResult, error) {
	ids := dedupe(parcelIDs)
	if len(ids) == 0 {
		return CreateResult{}, validationError("no parcels given")
	}
	if c.deps.Parcels == nil {
		return CreateResult{}, ErrNoParcelSource
	}

	var res CreateResult
	err := executeWrite(ctx, c.deps, "lots.create_for_parcels", func(dbc dbctx.Context) error {
		parcels, err := c.loadParcels(dbc, ids)
		if err != nil {
			return err
		}
		for _, p := range parcels {
			if err := c.checkParcel(dbc, p, allowOverlap); err != nil {
				return err
			}
		}

		lots := make([]*Lot, 0, len(parcels))
		for _, p := range parcels {
			l, err := c.lotFromParcel(dbc, p, opts)
			if err != nil {
				return err
			}
			lots = append(lots, l)
		}
		group, err := c.persist(dbc, lots, opts)
		if err != nil {
			return err
		}
		res = CreateResult{Lots: lots, Group: group}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}
	c.deps.Hooks.LotsCreated("parcels", len(res.Lots))
	c.log.Info("lots created from parcels", "lots", len(res.Lots), "grouped", res.Group != nil)
	return res, nil
}

// CreateForGeoms creates one lot per polygon in a GeoJSON document.
// Anything other than polygons is rejected before any write.
func (c *Creator) CreateForGeoms(ctx context.Context, raw []byte, opts CreateOptions) (CreateResult, error) {
	polys, err := geometry.ParsePolygons(raw)
	if err != nil {
		return CreateResult{}, mapError("lots.create_for_geoms", err)
	}
	return c.CreateForPolygons(ctx, polys, opts)
}

// CreateForPolygons is CreateForGeoms for already decoded shapes.
func (c *Creator) CreateForPolygons(ctx context.Context, polys []orb.MultiPolygon, opts CreateOptions) (CreateResult, error) {
	if len(polys) == 0 {
		return CreateResult{}, validationError("no geometries given")
	}
	var res CreateResult
	err := executeWrite(ctx, c.deps, "lots.create_for_geoms", func(dbc dbctx.Context) error {
		lots := make([]*Lot, 0, len(polys))
		for i, p := range polys {
			shape, err := geometry.Union([]orb.MultiPolygon{p})
			if err != nil {
				return fmt.Errorf("geometry %d: %w", i, err)
			}
			if len(shape) == 0 {
				return validationError(fmt.Sprintf("geometry %d is empty", i))
			}
			center, err := geometry.Centroid(shape)
			if err != nil {
				return fmt.Errorf("geometry %d: %w", i, err)
			}
			l := &Lot{ID: uuid.New(), StateProvince: c.deps.DefaultState}
			l.Polygon = geometry.MultiPolygon(shape)
			l.SetCentroid(&center)
			opts.applyLot(l)
			lots = append(lots, l)
		}
		group, err := c.persist(dbc, lots, opts)
		if err != nil {
			return err
		}
		res = CreateResult{Lots: lots, Group: group}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}
	c.deps.Hooks.LotsCreated("geoms", len(res.Lots))
	return res, nil
}

// CheckParcel reports the lot already covering a parcel, if any.
func (c *Creator) CheckParcel(ctx context.Context, parcelID uuid.UUID) (*Lot, error) {
	return c.store.GetByParcel(ctx, parcelID)
}

func (c *Creator) loadParcels(dbc dbctx.Context, ids []uuid.UUID) ([]ParcelRecord, error) {
	found, err := c.deps.Parcels.ParcelsByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]ParcelRecord, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]ParcelRecord, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("parcel %s: %w", id, ErrNotFound)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Creator) checkParcel(dbc dbctx.Context, p ParcelRecord, allowOverlap bool) error {
	existing, err := c.deps.Lots.GetByParcel(dbc, p.ID)
	if err == nil {
		return &ParcelAlreadyInLotError{ParcelID: p.ID, LotID: existing.ID}
	}
	if !isNotFound(err) {
		return err
	}
	if allowOverlap || len(p.Polygon) == 0 {
		return nil
	}

	hit, err := c.overlappingLot(dbc, p)
	if err != nil {
		c.deps.Hooks.OverlapCheckFailed()
		c.log.Warn("overlap check failed, treating as no overlap", "parcel_id", p.ID, "error", err)
		return nil
	}
	if hit != nil {
		return &ParcelAlreadyInLotError{ParcelID: p.ID, LotID: hit.ID, Overlap: true}
	}
	return nil
}

// overlappingLot returns the first stored lot whose interior overlaps the
// parcel. A candidate that cannot be compared is counted, logged and
// skipped, so the remaining candidates are still checked.
func (c *Creator) overlappingLot(dbc dbctx.Context, p ParcelRecord) (*Lot, error) {
	candidates, err := c.deps.Lots.Intersecting(dbc, p.Polygon.Bound())
	if err != nil {
		return nil, err
	}
	for _, cand := range candidates {
		ok, err := c.overlaps(p.Polygon, cand.Polygon.Orb())
		if err != nil {
			c.deps.Hooks.OverlapCheckFailed()
			c.log.Warn("overlap check against lot failed, skipping it", "parcel_id", p.ID, "lot_id", cand.ID, "error", err)
			continue
		}
		if ok {
			return cand, nil
		}
	}
	return nil, nil
}

func (c *Creator) lotFromParcel(dbc dbctx.Context, p ParcelRecord, opts CreateOptions) (*Lot, error) {
	state := p.StateCode
	if state == "" {
		state = c.deps.DefaultState
	}
	pid := p.ID
	l := &Lot{
		ID:            uuid.New(),
		Name:          p.StreetAddress,
		AddressLine1:  p.StreetAddress,
		City:          p.City,
		StateProvince: state,
		PostalCode:    p.PostalCode,
		ParcelID:      &pid,
	}
	l.Polygon = geometry.MultiPolygon(p.Polygon)
	if p.Centroid != nil {
		center := *p.Centroid
		l.SetCentroid(&center)
	}
	opts.applyLot(l)

	if c.deps.Owners != nil && p.OwnerName != "" {
		ownerID, err := c.deps.Owners.GetOrCreate(dbc, p.OwnerName, p.OwnerType)
		if err != nil {
			return nil, err
		}
		if ownerID != uuid.Nil {
			l.OwnerID = &ownerID
		}
	}
	return l, nil
}

// persist writes the lots and, for more than one, a group seeded from the
// first lot holding all of them.
func (c *Creator) persist(dbc dbctx.Context, lots []*Lot, opts CreateOptions) (*LotGroup, error) {
	for _, l := range lots {
		if err := c.store.SaveTx(dbc, l); err != nil {
			return nil, err
		}
	}
	if len(lots) < 2 {
		return nil, nil
	}
	g := newGroupFrom(lots[0])
	opts.applyGroup(g)
	if err := c.deps.Groups.Create(dbc, g); err != nil {
		return nil, err
	}
	if err := c.groups.Update(dbc, g, lots); err != nil {
		return nil, err
	}
	return g, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
