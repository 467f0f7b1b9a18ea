package main

import (
	"fmt"
	"os"

	"github.com/EmpoweredVote/lots-backend/internal/config"
	"github.com/EmpoweredVote/lots-backend/internal/db"
	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/EmpoweredVote/lots-backend/internal/parcels"
	"github.com/EmpoweredVote/lots-backend/internal/seeds"
	"github.com/joho/godotenv"
)

// Migrates the database and loads the built-in known uses. Run once per
// deploy; it is safe to repeat.
func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	conn, err := db.Connect(cfg, log)
	if err != nil {
		log.Fatal("connect failed", "error", err)
	}
	if err := db.Migrate(conn, owners.Migrate, lots.Migrate, parcels.Migrate); err != nil {
		log.Fatal("migrate failed", "error", err)
	}
	if _, err := seeds.SeedUses(dbctx.Background(), lots.NewUseRepo(conn, log), nil, log); err != nil {
		log.Fatal("seeding failed", "error", err)
	}
}
