package lots

import (
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

// KnownUseExistence narrows places by whether a known use is recorded.
type KnownUseExistence string

const (
	KnownUseAny KnownUseExistence = ""
	InUse       KnownUseExistence = "in use"
	NotInUse    KnownUseExistence = "not in use"
)

// LotFilter selects lots or groups. The zero value matches everything.
type LotFilter struct {
	IDs      []uuid.UUID
	GroupIDs []uuid.UUID

	// VisibleOnly keeps places with no known use, or a visible use whose
	// steward opted in, and certainty above VisibleCertainty.
	VisibleOnly bool
	// ParentsOnly drops lots that belong to a group.
	ParentsOnly bool

	// Bound keeps places whose centroid falls inside it.
	Bound *orb.Bound

	CertaintyGT *int
	CertaintyLT *int
	AreaGT      *float64
	AreaLT      *float64

	KnownUse      KnownUseExistence
	KnownUseNames []string

	OwnerTypes        []string
	OwnerNameContains string

	HasPolygon  bool
	HasCentroid bool

	Limit int
}

// Visible is the filter behind the public map.
func Visible() LotFilter {
	return LotFilter{VisibleOnly: true, ParentsOnly: true}
}

// apply adds f's conditions to q, qualifying columns with table. Group
// tables have no group_id, so ParentsOnly and GroupIDs are ignored there.
func (f LotFilter) apply(q *gorm.DB, table string, groups bool) *gorm.DB {
	col := func(name string) string { return table + "." + name }

	if len(f.IDs) > 0 {
		q = q.Where(col("id")+" IN ?", f.IDs)
	}
	if !groups {
		if len(f.GroupIDs) > 0 {
			q = q.Where(col("group_id")+" IN ?", f.GroupIDs)
		}
		if f.ParentsOnly {
			q = q.Where(col("group_id") + " IS NULL")
		}
	}

	if f.VisibleOnly || len(f.KnownUseNames) > 0 {
		q = q.Joins("LEFT JOIN uses ON uses.id = " + col("known_use_id"))
	}
	if f.VisibleOnly {
		q = q.Where("("+col("known_use_id")+" IS NULL OR (uses.visible = ? AND "+col("steward_inclusion_opt_in")+" = ?))", true, true).
			Where(col("known_use_certainty")+" > ?", VisibleCertainty)
	}
	if len(f.KnownUseNames) > 0 {
		q = q.Where("uses.name IN ?", f.KnownUseNames)
	}
	switch f.KnownUse {
	case InUse:
		q = q.Where(col("known_use_id") + " IS NOT NULL")
	case NotInUse:
		q = q.Where(col("known_use_id") + " IS NULL")
	}

	if len(f.OwnerTypes) > 0 || f.OwnerNameContains != "" {
		q = q.Joins("LEFT JOIN owners ON owners.id = " + col("owner_id"))
		if len(f.OwnerTypes) > 0 {
			q = q.Where("owners.owner_type IN ?", f.OwnerTypes)
		}
		if f.OwnerNameContains != "" {
			q = q.Where("LOWER(owners.name) LIKE ?", "%"+strings.ToLower(f.OwnerNameContains)+"%")
		}
	}

	if f.Bound != nil {
		q = q.Where(col("longitude")+" BETWEEN ? AND ?", f.Bound.Min[0], f.Bound.Max[0]).
			Where(col("latitude")+" BETWEEN ? AND ?", f.Bound.Min[1], f.Bound.Max[1])
	}
	if f.CertaintyGT != nil {
		q = q.Where(col("known_use_certainty")+" > ?", *f.CertaintyGT)
	}
	if f.CertaintyLT != nil {
		q = q.Where(col("known_use_certainty")+" < ?", *f.CertaintyLT)
	}
	if f.AreaGT != nil {
		q = q.Where(col("polygon_area")+" > ?", *f.AreaGT)
	}
	if f.AreaLT != nil {
		q = q.Where(col("polygon_area")+" < ?", *f.AreaLT)
	}
	if f.HasPolygon {
		q = q.Where(col("polygon") + " IS NOT NULL")
	}
	if f.HasCentroid {
		q = q.Where(col("longitude") + " IS NOT NULL")
	}
	return q
}
