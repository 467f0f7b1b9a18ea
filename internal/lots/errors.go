package lots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("lots: not found")
	ErrParcelAlreadyInLot = errors.New("parcel already in lot")
	ErrNoParcelSource     = errors.New("lots: no parcel source configured")
	// ErrValidation marks caller input that was rejected before any write.
	ErrValidation = errors.New("lots: validation")
)

// ParcelAlreadyInLotError names the parcel that could not be turned into a
// lot and the lot that already covers it.
type ParcelAlreadyInLotError struct {
	ParcelID uuid.UUID
	LotID    uuid.UUID
	// Overlap is set when the conflict is a geometric overlap rather than
	// a lot linked to the same parcel.
	Overlap bool
}

func (e *ParcelAlreadyInLotError) Error() string {
	if e.Overlap {
		return fmt.Sprintf("parcel %s overlaps lot %s", e.ParcelID, e.LotID)
	}
	return fmt.Sprintf("parcel %s already in lot %s", e.ParcelID, e.LotID)
}

func (e *ParcelAlreadyInLotError) Is(target error) bool { return target == ErrParcelAlreadyInLot }

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, strings.TrimSpace(msg))
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// mapError folds driver errors into the package's error kinds.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrParcelAlreadyInLot),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoParcelSource),
		errors.Is(err, geometry.ErrGeometry),
		errors.Is(err, geometry.ErrInvalidGeometryKind),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "parcel") {
		return fmt.Errorf("%s: %w: %w", op, ErrParcelAlreadyInLot, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed: lots.parcel_id") {
		return fmt.Errorf("%s: %w: %w", op, ErrParcelAlreadyInLot, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// errorStatus labels an operation outcome for metrics.
func errorStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrParcelAlreadyInLot):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation), errors.Is(err, geometry.ErrInvalidGeometryKind):
		return "invalid"
	case errors.Is(err, geometry.ErrGeometry):
		return "geometry"
	}
	return "failure"
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
