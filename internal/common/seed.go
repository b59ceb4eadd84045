package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// DefaultSeedConfig is the built-in demo network: John sponsors Alice and
// Bob, Alice sponsors Carol
func DefaultSeedConfig() models.SeedConfig {
	return models.SeedConfig{
		Users: []models.SeedUser{
			{Name: "John Doe", Email: "john@example.com", ReferralCode: "JOHN2024"},
			{Name: "Alice Johnson", Email: "alice@example.com", ReferralCode: "ALICE2024", ParentReferralCode: "JOHN2024"},
			{Name: "Bob Smith", Email: "bob@example.com", ReferralCode: "BOB2024", ParentReferralCode: "JOHN2024"},
			{Name: "Carol Williams", Email: "carol@example.com", ReferralCode: "CAROL2024", ParentReferralCode: "ALICE2024"},
		},
		Purchases: []models.SeedPurchase{
			{BuyerReferralCode: "ALICE2024", Amount: "5000"},
			{BuyerReferralCode: "CAROL2024", Amount: "3400"},
			{BuyerReferralCode: "BOB2024", Amount: "12000"},
		},
	}
}

// LoadSeedConfig reads seed users and purchases from a YAML file. A missing
// file yields the built-in demo set.
func LoadSeedConfig(seedFile string) (models.SeedConfig, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return models.SeedConfig{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("No seed file found, using built-in demo data", zap.String("file", seedPath))
		return DefaultSeedConfig(), nil
	}
	if err != nil {
		return models.SeedConfig{}, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	var config models.SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return models.SeedConfig{}, fmt.Errorf("unable to parse %s: %w", seedFile, err)
	}

	codes := make(map[string]bool, len(config.Users))
	for i, user := range config.Users {
		if user.ReferralCode == "" {
			return models.SeedConfig{}, fmt.Errorf("user at index %d missing referral_code", i)
		}
		if user.ParentReferralCode != "" && !codes[user.ParentReferralCode] {
			return models.SeedConfig{}, fmt.Errorf("user %s listed before its parent %s", user.ReferralCode, user.ParentReferralCode)
		}
		codes[user.ReferralCode] = true
	}

	for i, purchase := range config.Purchases {
		if !codes[purchase.BuyerReferralCode] {
			return models.SeedConfig{}, fmt.Errorf("purchase at index %d has unknown buyer %q", i, purchase.BuyerReferralCode)
		}
		if _, err := decimal.NewFromString(purchase.Amount); err != nil {
			return models.SeedConfig{}, fmt.Errorf("purchase at index %d has invalid amount %q: %w", i, purchase.Amount, err)
		}
	}

	return config, nil
}
