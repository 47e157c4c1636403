package config

// Market names the deployment: its base asset and the two contract
// addresses, in bech32 form.
type Market struct {
	StableDenom  string `toml:"StableDenom" yaml:"stable_denom"`
	ReceiptToken string `toml:"ReceiptToken" yaml:"receipt_token"`
	Contract     string `toml:"Contract" yaml:"contract"`
}

// Interest configures borrow interest accrual. Rates are annual decimal
// strings, e.g. "0.02".
type Interest struct {
	Enabled       bool   `toml:"Enabled" yaml:"enabled"`
	BaseRate      string `toml:"BaseRate" yaml:"base_rate"`
	Slope1        string `toml:"Slope1" yaml:"slope1"`
	Slope2        string `toml:"Slope2" yaml:"slope2"`
	Kink          string `toml:"Kink" yaml:"kink"`
	ReserveFactor string `toml:"ReserveFactor" yaml:"reserve_factor"`
	BlocksPerYear uint64 `toml:"BlocksPerYear" yaml:"blocks_per_year"`
}

// Tax configures the transfer tax charged by the bank.
type Tax struct {
	Rate      string            `toml:"Rate" yaml:"rate"`
	Caps      map[string]string `toml:"Caps" yaml:"caps"`
	Collector string            `toml:"Collector" yaml:"collector"`
}

// Log controls the structured log sink.
type Log struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
}

// RateLimit throttles the HTTP API per client address.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// GenesisBalance funds an account when the data directory is first created.
type GenesisBalance struct {
	Address string `toml:"Address" yaml:"address"`
	Denom   string `toml:"Denom" yaml:"denom"`
	Amount  string `toml:"Amount" yaml:"amount"`
}
