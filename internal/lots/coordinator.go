package lots

import (
	"errors"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Coordinator keeps group aggregates consistent with lot writes. LotStore
// calls OnBeforeSave before writing a lot and OnAfterDelete after removing
// one, inside the same transaction.
type Coordinator struct {
	deps   Deps
	groups *GroupService
	log    *logger.Logger
}

func NewCoordinator(deps Deps, groups *GroupService) *Coordinator {
	deps = deps.withDefaults()
	return &Coordinator{deps: deps, groups: groups, log: deps.Log.With("service", "GroupCoordinator")}
}

// OnBeforeSave reconciles group membership for a lot about to be written.
// previous is the stored version, or nil for a new lot. A lot leaving a
// group is removed before it is added to its new group. A member whose
// geometry changed has its group recomputed.
func (c *Coordinator) OnBeforeSave(dbc dbctx.Context, previous, next *Lot) error {
	var prev *uuid.UUID
	if previous != nil {
		prev = previous.GroupID
	}
	cur := next.GroupID

	if sameGroup(prev, cur) {
		if cur == nil || previous == nil || sameFootprint(previous, next) {
			return nil
		}
		g, err := c.deps.Groups.Get(dbc, *cur)
		if err != nil {
			return err
		}
		return c.groups.Add(dbc, g, next)
	}

	if prev != nil {
		g, err := c.deps.Groups.Get(dbc, *prev)
		switch {
		case errors.Is(err, ErrNotFound):
			c.log.Warn("previous group missing, skipping removal", "lot_id", next.ID, "group_id", *prev)
		case err != nil:
			return err
		default:
			if err := c.groups.Remove(dbc, g, next); err != nil {
				return err
			}
		}
	}

	if cur != nil {
		g, err := c.deps.Groups.Get(dbc, *cur)
		if err != nil {
			return err
		}
		if err := c.groups.Add(dbc, g, next); err != nil {
			return err
		}
	}
	return nil
}

// OnAfterDelete recomputes the group a deleted lot belonged to.
func (c *Coordinator) OnAfterDelete(dbc dbctx.Context, deleted *Lot) error {
	if deleted == nil || deleted.GroupID == nil {
		return nil
	}
	g, err := c.deps.Groups.Get(dbc, *deleted.GroupID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.groups.Remove(dbc, g, deleted)
}

func sameGroup(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameFootprint(a, b *Lot) bool {
	if !orb.Equal(a.Polygon.Orb(), b.Polygon.Orb()) {
		return false
	}
	return samePoint(a.Centroid(), b.Centroid())
}
