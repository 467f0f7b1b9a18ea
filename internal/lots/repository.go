package lots

import (
	"fmt"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LotRepository interface {
	Get(dbc dbctx.Context, id uuid.UUID) (*Lot, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*Lot, error)
	GetByParcel(dbc dbctx.Context, parcelID uuid.UUID) (*Lot, error)
	Find(dbc dbctx.Context, f LotFilter) ([]*Lot, error)
	Count(dbc dbctx.Context, f LotFilter) (int64, error)
	// Members returns a group's lots ordered by ID.
	Members(dbc dbctx.Context, groupID uuid.UUID) ([]*Lot, error)
	CountMembers(dbc dbctx.Context, groupID uuid.UUID) (int64, error)
	// Intersecting returns lots whose polygon bounding box meets b.
	Intersecting(dbc dbctx.Context, b orb.Bound) ([]*Lot, error)
	Create(dbc dbctx.Context, l *Lot) error
	Save(dbc dbctx.Context, l *Lot) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	// AssignGroup sets group_id on the given rows without touching anything else.
	AssignGroup(dbc dbctx.Context, ids []uuid.UUID, groupID *uuid.UUID) error
	// DetachFromGroup clears group_id on every member of groupID not in keep.
	DetachFromGroup(dbc dbctx.Context, groupID uuid.UUID, keep []uuid.UUID) error
}

type GroupRepository interface {
	Get(dbc dbctx.Context, id uuid.UUID) (*LotGroup, error)
	Find(dbc dbctx.Context, f LotFilter) ([]*LotGroup, error)
	Count(dbc dbctx.Context, f LotFilter) (int64, error)
	Create(dbc dbctx.Context, g *LotGroup) error
	Save(dbc dbctx.Context, g *LotGroup) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type UseRepository interface {
	List(dbc dbctx.Context) ([]Use, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*Use, error)
	GetBySlug(dbc dbctx.Context, slug string) (*Use, error)
	// Upsert inserts u or updates the use with the same slug.
	Upsert(dbc dbctx.Context, u *Use) error
}

type lotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLotRepo(db *gorm.DB, baseLog *logger.Logger) LotRepository {
	return &lotRepo{db: db, log: baseLog.With("repo", "LotRepo")}
}

func (r *lotRepo) read(dbc dbctx.Context) *gorm.DB {
	return dbc.Conn(r.db).Preload("KnownUse").Preload("Owner")
}

func (r *lotRepo) Get(dbc dbctx.Context, id uuid.UUID) (*Lot, error) {
	var l Lot
	if err := r.read(dbc).First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(fmt.Sprintf("lot %s", id), err)
	}
	return &l, nil
}

func (r *lotRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*Lot, error) {
	var out []*Lot
	if len(ids) == 0 {
		return out, nil
	}
	err := r.read(dbc).Where("id IN ?", ids).Order("id").Find(&out).Error
	return out, err
}

func (r *lotRepo) GetByParcel(dbc dbctx.Context, parcelID uuid.UUID) (*Lot, error) {
	var l Lot
	if err := r.read(dbc).First(&l, "parcel_id = ?", parcelID).Error; err != nil {
		return nil, notFound(fmt.Sprintf("lot for parcel %s", parcelID), err)
	}
	return &l, nil
}

func (r *lotRepo) Find(dbc dbctx.Context, f LotFilter) ([]*Lot, error) {
	q := f.apply(r.read(dbc).Model(&Lot{}), "lots", false).
		Select("lots.*").
		Order("lots.id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []*Lot
	err := q.Find(&out).Error
	return out, err
}

func (r *lotRepo) Count(dbc dbctx.Context, f LotFilter) (int64, error) {
	var n int64
	err := f.apply(dbc.Conn(r.db).Model(&Lot{}), "lots", false).Count(&n).Error
	return n, err
}

func (r *lotRepo) Members(dbc dbctx.Context, groupID uuid.UUID) ([]*Lot, error) {
	var out []*Lot
	err := r.read(dbc).Where("group_id = ?", groupID).Order("id").Find(&out).Error
	return out, err
}

func (r *lotRepo) CountMembers(dbc dbctx.Context, groupID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).Model(&Lot{}).Where("group_id = ?", groupID).Count(&n).Error
	return n, err
}

func (r *lotRepo) Intersecting(dbc dbctx.Context, b orb.Bound) ([]*Lot, error) {
	var out []*Lot
	err := dbc.Conn(r.db).
		Where("polygon IS NOT NULL").
		Where("min_lon <= ? AND max_lon >= ?", b.Max[0], b.Min[0]).
		Where("min_lat <= ? AND max_lat >= ?", b.Max[1], b.Min[1]).
		Order("id").
		Find(&out).Error
	return out, err
}

func (r *lotRepo) Create(dbc dbctx.Context, l *Lot) error {
	return dbc.Conn(r.db).Omit(clause.Associations).Create(l).Error
}

func (r *lotRepo) Save(dbc dbctx.Context, l *Lot) error {
	return dbc.Conn(r.db).Omit(clause.Associations).Save(l).Error
}

func (r *lotRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.Conn(r.db).Delete(&Lot{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lot %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *lotRepo) AssignGroup(dbc dbctx.Context, ids []uuid.UUID, groupID *uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var value interface{} = gorm.Expr("NULL")
	if groupID != nil {
		value = *groupID
	}
	return dbc.Conn(r.db).Model(&Lot{}).Where("id IN ?", ids).UpdateColumn("group_id", value).Error
}

func (r *lotRepo) DetachFromGroup(dbc dbctx.Context, groupID uuid.UUID, keep []uuid.UUID) error {
	q := dbc.Conn(r.db).Model(&Lot{}).Where("group_id = ?", groupID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.UpdateColumn("group_id", gorm.Expr("NULL")).Error
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepository {
	return &groupRepo{db: db, log: baseLog.With("repo", "GroupRepo")}
}

func (r *groupRepo) read(dbc dbctx.Context) *gorm.DB {
	return dbc.Conn(r.db).Preload("KnownUse").Preload("Owner")
}

func (r *groupRepo) Get(dbc dbctx.Context, id uuid.UUID) (*LotGroup, error) {
	var g LotGroup
	if err := r.read(dbc).First(&g, "id = ?", id).Error; err != nil {
		return nil, notFound(fmt.Sprintf("group %s", id), err)
	}
	return &g, nil
}

func (r *groupRepo) Find(dbc dbctx.Context, f LotFilter) ([]*LotGroup, error) {
	q := f.apply(r.read(dbc).Model(&LotGroup{}), "lot_groups", true).
		Select("lot_groups.*").
		Order("lot_groups.id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []*LotGroup
	err := q.Find(&out).Error
	return out, err
}

func (r *groupRepo) Count(dbc dbctx.Context, f LotFilter) (int64, error) {
	var n int64
	err := f.apply(dbc.Conn(r.db).Model(&LotGroup{}), "lot_groups", true).Count(&n).Error
	return n, err
}

func (r *groupRepo) Create(dbc dbctx.Context, g *LotGroup) error {
	return dbc.Conn(r.db).Omit(clause.Associations).Create(g).Error
}

func (r *groupRepo) Save(dbc dbctx.Context, g *LotGroup) error {
	return dbc.Conn(r.db).Omit(clause.Associations).Save(g).Error
}

func (r *groupRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.Conn(r.db).Delete(&LotGroup{}, "id = ?", id).Error
}

type useRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUseRepo(db *gorm.DB, baseLog *logger.Logger) UseRepository {
	return &useRepo{db: db, log: baseLog.With("repo", "UseRepo")}
}

func (r *useRepo) List(dbc dbctx.Context) ([]Use, error) {
	var out []Use
	err := dbc.Conn(r.db).Order("name").Find(&out).Error
	return out, err
}

func (r *useRepo) Get(dbc dbctx.Context, id uuid.UUID) (*Use, error) {
	var u Use
	if err := dbc.Conn(r.db).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(fmt.Sprintf("use %s", id), err)
	}
	return &u, nil
}

func (r *useRepo) GetBySlug(dbc dbctx.Context, slug string) (*Use, error) {
	var u Use
	if err := dbc.Conn(r.db).First(&u, "slug = ?", slug).Error; err != nil {
		return nil, notFound(fmt.Sprintf("use %q", slug), err)
	}
	return &u, nil
}

func (r *useRepo) Upsert(dbc dbctx.Context, u *Use) error {
	if u.Slug == "" {
		u.Slug = Slugify(u.Name)
	}
	conn := dbc.Conn(r.db)
	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "visible"}),
	}).Create(u).Error
	if err != nil {
		return err
	}
	var stored Use
	if err := conn.First(&stored, "slug = ?", u.Slug).Error; err != nil {
		return err
	}
	*u = stored
	return nil
}
