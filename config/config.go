package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"moneymarket/crypto"
)

const (
	defaultListenAddress = ":8080"
	defaultDataDir       = "./market-data"
	defaultStableDenom   = "uusd"

	// StorageLevelDB and StorageBolt name the supported storage backends.
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
)

type Config struct {
	ListenAddress string           `toml:"ListenAddress" yaml:"listen"`
	DataDir       string           `toml:"DataDir" yaml:"data_dir"`
	Storage       string           `toml:"Storage" yaml:"storage"`
	Environment   string           `toml:"Environment" yaml:"env"`
	StartHeight   uint64           `toml:"StartHeight" yaml:"start_height"`
	Market        Market           `toml:"Market" yaml:"market"`
	Interest      Interest         `toml:"Interest" yaml:"interest"`
	Tax           Tax              `toml:"Tax" yaml:"tax"`
	Log           Log              `toml:"Log" yaml:"log"`
	RateLimit     RateLimit        `toml:"RateLimit" yaml:"rate_limit"`
	Genesis       []GenesisBalance `toml:"Genesis" yaml:"genesis"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as TOML. A missing TOML file is
// created with defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("open config: %w", err)
		}
		return createDefault(path)
	}

	if isYAML(path) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Default returns a configuration suitable for a local single-node market.
func Default() *Config {
	cfg := &Config{
		ListenAddress: defaultListenAddress,
		DataDir:       defaultDataDir,
		Market: Market{
			StableDenom:  defaultStableDenom,
			ReceiptToken: defaultAddress(0x02),
			Contract:     defaultAddress(0x01),
		},
	}
	cfg.normalize()
	return cfg
}

func defaultAddress(suffix byte) string {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.MarketPrefix, raw).String()
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if cfg.Storage == "" {
		cfg.Storage = StorageLevelDB
	}

	cfg.Market.StableDenom = strings.TrimSpace(cfg.Market.StableDenom)
	cfg.Market.ReceiptToken = strings.TrimSpace(cfg.Market.ReceiptToken)
	cfg.Market.Contract = strings.TrimSpace(cfg.Market.Contract)

	in := &cfg.Interest
	in.BaseRate = orDefault(in.BaseRate, "0.02")
	in.Slope1 = orDefault(in.Slope1, "0.15")
	in.Slope2 = orDefault(in.Slope2, "0.6")
	in.Kink = orDefault(in.Kink, "0.8")
	in.ReserveFactor = orDefault(in.ReserveFactor, "0.05")
	if in.BlocksPerYear == 0 {
		in.BlocksPerYear = 31_536_000
	}

	cfg.Tax.Rate = orDefault(cfg.Tax.Rate, "0")
	cfg.Tax.Collector = strings.TrimSpace(cfg.Tax.Collector)

	cfg.Log.Level = orDefault(cfg.Log.Level, "info")
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	if cfg.Log.File != "" && cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}

	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 40
	}

	for i := range cfg.Genesis {
		cfg.Genesis[i].Address = strings.TrimSpace(cfg.Genesis[i].Address)
		cfg.Genesis[i].Denom = strings.TrimSpace(cfg.Genesis[i].Denom)
		cfg.Genesis[i].Amount = strings.TrimSpace(cfg.Genesis[i].Amount)
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
