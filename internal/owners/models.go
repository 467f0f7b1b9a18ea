package owners

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Owner types recognised by exports and filters.
const (
	TypePrivate = "private"
	TypePublic  = "public"
	TypeUnknown = "unknown"
)

type Owner struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	OwnerType string    `gorm:"not null;default:'unknown';index" json:"owner_type"`
}

// Contact is a person or office reachable on behalf of an owner.
type Contact struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	Name    string    `gorm:"not null" json:"name"`
	Phone   string    `json:"phone,omitempty"`
	Email   string    `json:"email,omitempty"`
	Notes   string    `json:"notes,omitempty"`
}

func (Owner) TableName() string   { return "owners" }
func (Contact) TableName() string { return "owner_contacts" }

func (o *Owner) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OwnerType == "" {
		o.OwnerType = TypeUnknown
	}
	return nil
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// NormalizeType maps free-form owner types onto the known set.
func NormalizeType(t string) string {
	switch t {
	case TypePrivate, "Private", "PRIVATE":
		return TypePrivate
	case TypePublic, "Public", "PUBLIC":
		return TypePublic
	}
	return TypeUnknown
}
