package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"referral-ledger-go/internal/api"
	"referral-ledger-go/internal/database"
	"referral-ledger-go/internal/formance"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/push"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// init loads environment variables from .env file if it exists
func init() {
	// godotenv returns an error when .env is absent; variables may still come
	// from the shell or the container.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Referrals *api.ReferralService
	Hub       *push.Hub
	Mirror    *formance.Service
}

// InitializeLogger installs the global logger. Development mode uses the
// console encoder with colored levels.
func InitializeLogger(development bool) (*zap.Logger, func()) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, err := config.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the ledger, connects the optional mirror, starts
// the push hub and builds the referral service. The hub stops when ctx is
// cancelled.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	hub := push.NewHub()
	go hub.Run(ctx)

	opts := []api.Option{
		api.WithTimeout(cfg.Service.StoreTimeout),
		api.WithPublisher(hub),
	}

	var mirror *formance.Service
	if cfg.Service.LedgerMirror == "formance" {
		zap.L().Info("Connecting ledger mirror", zap.String("ledger", cfg.Formance.LedgerName))
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("failed to initialize ledger mirror: %w", err)
		}
		opts = append(opts, api.WithMirror(mirror))
	}

	referrals := api.NewReferralService(dbService, opts...)

	if cfg.Service.SeedDemoData {
		if err := SeedDatabase(ctx, referrals, cfg.Service.SeedFile); err != nil {
			dbService.Close()
			return nil, err
		}
	}

	return &Services{
		DbService: dbService,
		Referrals: referrals,
		Hub:       hub,
		Mirror:    mirror,
	}, nil
}

// InitializeDatabaseOnly initializes just the ledger without the mirror or
// push hub. Useful for read-only reports.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// SeedDatabase loads the seed file (or the built-in demo set) and applies it
// when the ledger is empty
func SeedDatabase(ctx context.Context, referrals *api.ReferralService, seedFile string) error {
	seed, err := LoadSeedConfig(seedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed data: %w", err)
	}
	if _, err := referrals.Seed(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	return nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
