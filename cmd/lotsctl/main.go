// Command lotsctl runs one-off maintenance tasks against the lots database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/EmpoweredVote/lots-backend/internal/cache"
	"github.com/EmpoweredVote/lots-backend/internal/config"
	"github.com/EmpoweredVote/lots-backend/internal/db"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/EmpoweredVote/lots-backend/internal/parcels"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// env is built on first use so commands without a database, such as
// addresses, start instantly.
type env struct {
	cfg     config.Config
	log     *logger.Logger
	db      *gorm.DB
	svc     *lots.Service
	parcels *parcels.Store
	exports lots.ExportCache
}

func (e *env) connect() error {
	if e.db != nil {
		return nil
	}
	conn, err := db.Connect(e.cfg, e.log)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn, owners.Migrate, lots.Migrate, parcels.Migrate); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	e.db = conn
	e.parcels = parcels.NewStore(conn, e.log)
	e.svc = lots.NewService(lots.Deps{
		DB:           conn,
		Log:          e.log,
		Owners:       owners.NewResolver(conn, e.log),
		Parcels:      e.parcels,
		DefaultState: e.cfg.DefaultState,
	})
	return nil
}

// invalidateExports bumps the shared export cache generation so the API
// stops serving exports rendered before this command's writes. Without
// REDIS_ADDR there is no shared cache to invalidate.
func (e *env) invalidateExports(ctx context.Context) {
	if e.exports == nil {
		rc, err := cache.OpenRedis(ctx, e.cfg, e.log)
		switch {
		case err != nil:
			e.log.Warn("redis unavailable, cached exports not invalidated; run rewarm", "error", err)
			return
		case rc == nil:
			e.exports = cache.Noop{}
		default:
			e.exports = rc
		}
	}
	e.exports.Bump(ctx)
}

func (e *env) close() {
	if rc, ok := e.exports.(*cache.Redis); ok {
		_ = rc.Close()
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "lotsctl",
		Short:         "Maintenance tasks for the lots database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSeedUsesCmd(e),
		newImportParcelsCmd(e),
		newCreateLotsCmd(e),
		newGroupCmd(e),
		newRecomputeCmd(e),
		newAddressesCmd(),
	)
	return root
}

func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	e := &env{cfg: cfg, log: log}
	err = newRootCmd(e).Execute()
	e.close()
	if err != nil {
		log.Error("lotsctl failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}
