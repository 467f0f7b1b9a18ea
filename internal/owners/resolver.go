package owners

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resolver finds owners by name, creating them on first sight.
type Resolver struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResolver(db *gorm.DB, baseLog *logger.Logger) *Resolver {
	return &Resolver{db: db, log: baseLog.With("service", "OwnerResolver")}
}

// GetOrCreate returns the ID of the owner called name. A new owner takes
// ownerType; an existing owner keeps its type. Blank names resolve to uuid.Nil.
func (r *Resolver) GetOrCreate(dbc dbctx.Context, name, ownerType string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, nil
	}
	owner := Owner{}
	err := dbc.Conn(r.db).
		Where(Owner{Name: name}).
		Attrs(Owner{OwnerType: NormalizeType(ownerType)}).
		FirstOrCreate(&owner).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("get or create owner %q: %w", name, err)
	}
	r.log.Debug("owner resolved", "owner_id", owner.ID, "name", name)
	return owner.ID, nil
}

func (r *Resolver) Get(dbc dbctx.Context, id uuid.UUID) (*Owner, error) {
	var owner Owner
	if err := dbc.Conn(r.db).First(&owner, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &owner, nil
}

// Contacts lists the contacts recorded for an owner.
func (r *Resolver) Contacts(dbc dbctx.Context, ownerID uuid.UUID) ([]Contact, error) {
	var out []Contact
	err := dbc.Conn(r.db).Where("owner_id = ?", ownerID).Order("name").Find(&out).Error
	return out, err
}

func (r *Resolver) AddContact(dbc dbctx.Context, c *Contact) error {
	return dbc.Conn(r.db).Create(c).Error
}
