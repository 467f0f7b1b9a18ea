package main

import (
	"context"
	"fmt"
	"os"

	"github.com/EmpoweredVote/lots-backend/internal/cache"
	"github.com/EmpoweredVote/lots-backend/internal/config"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/joho/godotenv"
)

// Invalidates every cached export so the next request renders fresh data.
// Useful after editing lots directly in the database.
func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	rc, err := cache.OpenRedis(ctx, cfg, log)
	if err != nil {
		log.Fatal("redis connection error", "error", err)
	}
	if rc == nil {
		log.Fatal("REDIS_ADDR not set")
	}
	defer rc.Close()

	before := rc.Generation(ctx)
	rc.Bump(ctx)
	fmt.Printf("✓ Export cache generation %d -> %d\n", before, rc.Generation(ctx))
}
