package models

// SeedConfig is the demo data loaded by the setup command
type SeedConfig struct {
	Users     []SeedUser     `yaml:"users"`
	Purchases []SeedPurchase `yaml:"purchases"`
}

// SeedUser is registered in file order, so sponsors must come first
type SeedUser struct {
	Name               string `yaml:"name"`
	Email              string `yaml:"email"`
	ReferralCode       string `yaml:"referral_code"`
	ParentReferralCode string `yaml:"parent_referral_code"`
}

// SeedPurchase is replayed through the purchase processor
type SeedPurchase struct {
	BuyerReferralCode string `yaml:"buyer"`
	Amount            string `yaml:"amount"`
}
