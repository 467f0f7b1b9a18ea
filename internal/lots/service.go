package lots

import (
	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/EmpoweredVote/lots-backend/internal/lots"

// ParcelRecord is the slice of a parcel needed to create a lot from it.
type ParcelRecord struct {
	ID            uuid.UUID
	StreetAddress string
	City          string
	StateCode     string
	PostalCode    string
	Polygon       orb.MultiPolygon
	Centroid      *orb.Point
	OwnerName     string
	OwnerType     string
}

// ParcelSource loads parcels by ID.
type ParcelSource interface {
	ParcelsByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]ParcelRecord, error)
}

// OwnerResolver finds or creates an owner by name. uuid.Nil means no owner.
type OwnerResolver interface {
	GetOrCreate(dbc dbctx.Context, name, ownerType string) (uuid.UUID, error)
}

// DependentReassigner moves records hanging off lots, such as notes or
// photos, onto the group the lots were merged into.
type DependentReassigner interface {
	ReassignToGroup(dbc dbctx.Context, lotIDs []uuid.UUID, groupID uuid.UUID) error
}

type noopReassigner struct{}

func (noopReassigner) ReassignToGroup(dbctx.Context, []uuid.UUID, uuid.UUID) error { return nil }

// Deps wires the lots services. Zero fields get GORM-backed defaults.
type Deps struct {
	DB         *gorm.DB
	Log        *logger.Logger
	Runner     TxRunner
	Hooks      Hooks
	Tracer     trace.Tracer
	Lots       LotRepository
	Groups     GroupRepository
	Uses       UseRepository
	Owners     OwnerResolver
	Parcels    ParcelSource
	Dependents DependentReassigner
	// DefaultState fills state_province for parcels without one.
	DefaultState string
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}
	if d.Lots == nil {
		d.Lots = NewLotRepo(d.DB, d.Log)
	}
	if d.Groups == nil {
		d.Groups = NewGroupRepo(d.DB, d.Log)
	}
	if d.Uses == nil {
		d.Uses = NewUseRepo(d.DB, d.Log)
	}
	if d.Dependents == nil {
		d.Dependents = noopReassigner{}
	}
	if d.DefaultState == "" {
		d.DefaultState = "CA"
	}
	return d
}

// Service bundles the lots components around one set of dependencies.
type Service struct {
	Lots    *LotStore
	Groups  *GroupService
	Creator *Creator
	Uses    UseRepository
}

func NewService(deps Deps) *Service {
	deps = deps.withDefaults()
	groups := NewGroupService(deps)
	coord := NewCoordinator(deps, groups)
	store := NewLotStore(deps, groups, coord)
	return &Service{
		Lots:    store,
		Groups:  groups,
		Creator: NewCreator(deps, store, groups),
		Uses:    deps.Uses,
	}
}
