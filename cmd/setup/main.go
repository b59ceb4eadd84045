package main

import (
	"context"
	"flag"

	"referral-ledger-go/internal/common"
	"referral-ledger-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seedFlag := flag.Bool("seed", false, "Load seed users and purchases when the database is empty")
	seedFile := flag.String("file", "", "Seed file (default: SEED_FILE, falling back to the built-in demo set)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Logging.Development)
	defer loggerCleanup()

	// Seeding is driven by the flag here, not by SEED_DEMO_DATA
	cfg.Service.SeedDemoData = false

	zap.L().Info("Setting up SQLite database", zap.String("path", cfg.Database.Path))
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if !*seedFlag {
		zap.L().Info("Schema ready")
		return
	}

	file := cfg.Service.SeedFile
	if *seedFile != "" {
		file = *seedFile
	}

	seed, err := common.LoadSeedConfig(file)
	if err != nil {
		zap.L().Fatal("Failed to load seed data", zap.Error(err))
	}

	seeded, err := services.Referrals.Seed(ctx, seed)
	if err != nil {
		zap.L().Fatal("Failed to seed database", zap.Error(err))
	}
	if !seeded {
		zap.L().Info("Database already populated, nothing to seed")
		return
	}

	users, err := services.DbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read users from database", zap.Error(err))
	}

	common.PrintHeader("SEEDED REFERRAL NETWORK", common.DefaultWidth)
	for _, user := range users {
		if user.HasParent() {
			continue
		}
		tree, err := services.Referrals.GetReferralTree(ctx, user.Id, -1)
		if err != nil {
			zap.L().Error("Failed to build referral tree", zap.String("user_id", user.Id), zap.Error(err))
			continue
		}
		common.PrintReferralTree(tree)
	}
	common.PrintFooter("Initialization complete", common.DefaultWidth)
}
