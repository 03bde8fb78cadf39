package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the node configuration loaded from TOML.
type Config struct {
	ListenAddress    string `toml:"ListenAddress"`
	DataDir          string `toml:"DataDir"`
	Environment      string `toml:"Environment"`
	Owner            string `toml:"Owner"`
	Treasury         string `toml:"Treasury"`
	FeePercent       uint64 `toml:"FeePercent"`
	MinimumFee       string `toml:"MinimumFee"`
	StorageBytePrice string `toml:"StorageBytePrice"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./trail-data"
	}
	if strings.TrimSpace(cfg.MinimumFee) == "" {
		// One tenth of a whole unit, the deployed contract default.
		cfg.MinimumFee = "100000000000000000000000"
	}
}

// Validate checks the account and amount fields for obvious misconfiguration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("config: Owner account is required")
	}
	if strings.TrimSpace(c.Treasury) == "" {
		return fmt.Errorf("config: Treasury account is required")
	}
	if c.FeePercent > 100 {
		return fmt.Errorf("config: FeePercent %d exceeds 100", c.FeePercent)
	}
	if _, err := c.MinimumFeeAmount(); err != nil {
		return err
	}
	if _, err := c.BytePriceAmount(); err != nil {
		return err
	}
	return nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must be a non-negative base-10 integer, got %q", field, value)
	}
	return amount, nil
}

// MinimumFeeAmount parses the configured minimum fee into base units.
func (c *Config) MinimumFeeAmount() (*big.Int, error) {
	return parseAmount("MinimumFee", c.MinimumFee)
}

// BytePriceAmount parses the configured per-byte storage price. Nil means the
// engine default applies.
func (c *Config) BytePriceAmount() (*big.Int, error) {
	return parseAmount("StorageBytePrice", c.StorageBytePrice)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8080",
		DataDir:       "./trail-data",
		Owner:         "owner.local",
		Treasury:      "treasury.local",
		FeePercent:    5,
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
