package lots

import (
	"context"
	"fmt"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/google/uuid"
)

// GroupWith merges lotID and others into one group. The first existing
// group among the lots, in argument order, is reused; otherwise a new group
// is seeded from lotID. Lots leave any other group they belonged to, and
// their dependents are reassigned to the resulting group.
func (c *Creator) GroupWith(ctx context.Context, lotID uuid.UUID, others ...uuid.UUID) (*LotGroup, error) {
	ids := dedupe(append([]uuid.UUID{lotID}, others...))
	if len(ids) < 2 {
		return nil, validationError("need at least two distinct lots to group")
	}

	var out *LotGroup
	err := executeWrite(ctx, c.deps, "lots.group_with", func(dbc dbctx.Context) error {
		lots, err := c.loadLots(dbc, ids)
		if err != nil {
			return err
		}

		group, err := c.firstExistingGroup(dbc, lots)
		if err != nil {
			return err
		}
		if group == nil {
			group = newGroupFrom(lots[0])
			if err := c.deps.Groups.Create(dbc, group); err != nil {
				return err
			}
		}

		for _, l := range lots {
			if l.GroupID != nil && *l.GroupID == group.ID {
				continue
			}
			gid := group.ID
			l.GroupID = &gid
			if err := c.store.SaveTx(dbc, l); err != nil {
				return err
			}
		}

		if err := c.deps.Dependents.ReassignToGroup(dbc, ids, group.ID); err != nil {
			return fmt.Errorf("reassign dependents: %w", err)
		}
		out, err = c.deps.Groups.Get(dbc, group.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("lots grouped", "group_id", out.ID, "lots", len(ids))
	return out, nil
}

func (c *Creator) loadLots(dbc dbctx.Context, ids []uuid.UUID) ([]*Lot, error) {
	found, err := c.deps.Lots.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*Lot, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	out := make([]*Lot, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("lot %s: %w", id, ErrNotFound)
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Creator) firstExistingGroup(dbc dbctx.Context, lots []*Lot) (*LotGroup, error) {
	for _, l := range lots {
		if l.GroupID == nil {
			continue
		}
		g, err := c.deps.Groups.Get(dbc, *l.GroupID)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, nil
}
