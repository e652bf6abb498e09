package main

import (
	"context"
	"flag"
	"log"
	"time"

	"captive-portal/internal/config"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/infra/db/postgres"
	"captive-portal/internal/infra/redis"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean the Redis cache to remove stale exclusion lookups and rate-limit windows.
	if cfg.Redis.Enabled() {
		log.Println("[1/3] Wiping Redis cache...")
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		if err := redisClient.FlushDB(ctx); err != nil {
			log.Fatalf("failed to flush redis: %v", err)
		}
	} else {
		log.Println("[1/3] Redis disabled, skipping cache wipe")
	}

	// 2. Clean the database completely.
	log.Println("[2/3] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `TRUNCATE transactions, access_codes, exclusions RESTART IDENTITY CASCADE;`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. Seed fixtures the manual scenarios rely on.
	log.Println("[3/3] Seeding test fixtures...")
	seedFixtures(ctx, pool)

	log.Println("--- E2E Environment Setup Complete ---")
}

// seedFixtures creates one phone with an active session, one VIP phone that never pays,
// one blocked device and one unused access code.
func seedFixtures(ctx context.Context, pool *pgxpool.Pool) {
	txRepo := postgres.NewTransactionRepo(pool)
	exclRepo := postgres.NewExclusionRepo(pool)
	codeRepo := postgres.NewAccessCodeRepo(pool)
	now := time.Now()

	paid := &model.Transaction{
		TransactionID: uuid.NewString(),
		PhoneNumber:   "+256770000001",
		PackageID:     "2",
		Amount:        200,
		Provider:      "noop",
		Status:        model.TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := txRepo.Save(ctx, nil, paid); err != nil {
		log.Printf("failed to save paid transaction: %v", err)
	} else if _, err := txRepo.MarkSuccessful(ctx, nil, paid.TransactionID, now.Add(24*time.Hour), now); err != nil {
		log.Printf("failed to settle paid transaction: %v", err)
	}

	vip, _ := model.NewExclusion(model.IdentifierPhone, "+256770000099", "e2e: free access", true, false)
	if err := exclRepo.Save(ctx, nil, vip); err != nil {
		log.Printf("failed to save vip exclusion: %v", err)
	}
	blocked, _ := model.NewExclusion(model.IdentifierMAC, "DE:AD:BE:EF:00:01", "e2e: blocked device", false, true)
	if err := exclRepo.Save(ctx, nil, blocked); err != nil {
		log.Printf("failed to save blocked exclusion: %v", err)
	}

	code := &model.AccessCode{Code: "E2ETEST2", PlanID: "1", DurationHours: 1, Price: 50, Status: model.AccessCodeUnused, CreatedAt: now}
	if _, err := codeRepo.Insert(ctx, nil, code); err != nil {
		log.Printf("failed to save access code: %v", err)
	}
}
