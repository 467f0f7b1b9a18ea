package lots

import (
	"context"
	"errors"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// TxRunner provides the transaction boundary for lot writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return errors.New("lots: transaction runner has nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// executeWrite runs fn in one transaction, maps its error and reports the
// outcome to hooks and the tracer.
func executeWrite(ctx context.Context, deps Deps, op string, fn func(dbc dbctx.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := deps.Tracer.Start(ctx, op)
	defer span.End()

	start := time.Now()
	err := deps.Runner.InTx(ctx, fn)
	mapped := mapError(op, err)

	status := errorStatus(mapped)
	if errors.Is(mapped, ErrParcelAlreadyInLot) {
		deps.Hooks.IncConflict(op)
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	if mapped != nil {
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
		deps.Log.Warn("write failed", "op", op, "status", status, "error", mapped)
	}
	return mapped
}

func readCtx(ctx context.Context) dbctx.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return dbctx.Context{Ctx: ctx}
}
