package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	contents := fmt.Sprintf(`ListenAddress = " 127.0.0.1:9000 "
DataDir = "./data"
StartHeight = 7

[Market]
StableDenom = "uusd"
ReceiptToken = "%s"
Contract = "%s"

[Interest]
Enabled = true
ReserveFactor = "0.1"

[Tax]
Rate = "0.005"
Collector = "%s"
[Tax.Caps]
uusd = "1400000"

[[Genesis]]
Address = "%s"
Denom = "uusd"
Amount = "1000000"
`, defaultAddress(2), defaultAddress(1), defaultAddress(9), defaultAddress(10))

	cfg, err := Load(writeConfig(t, "config.toml", contents))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "0.02", cfg.Interest.BaseRate)
	require.Equal(t, uint64(31_536_000), cfg.Interest.BlocksPerYear)

	host, err := cfg.HostConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(7), host.StartHeight)
	require.Equal(t, "uusd", host.Market.StableDenom)
	require.NotNil(t, host.InterestModel)
	require.Equal(t, "0.1", host.ReserveFactor.String())
	require.NotNil(t, host.Tax)
	limit, ok := host.Tax.CapFor("uusd")
	require.True(t, ok)
	require.Equal(t, uint64(1_400_000), limit.Uint64())
	require.Len(t, host.Genesis, 1)
	require.Equal(t, uint64(1_000_000), host.Genesis[0].Coin.Amount.Uint64())
}

func TestLoadYAML(t *testing.T) {
	contents := fmt.Sprintf(`
listen: ":7000"
storage: " Bolt "
market:
  stable_denom: uusd
  receipt_token: %s
  contract: %s
log:
  level: debug
  file: /tmp/marketd.log
rate_limit:
  requests_per_second: 5
`, defaultAddress(2), defaultAddress(1))

	cfg, err := Load(writeConfig(t, "config.yml", contents))
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.ListenAddress)
	require.Equal(t, StorageBolt, cfg.Storage)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 100, cfg.Log.MaxSizeMB)
	require.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 40, cfg.RateLimit.Burst)

	host, err := cfg.HostConfig()
	require.NoError(t, err)
	require.Nil(t, host.InterestModel)
	require.Nil(t, host.Tax)
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, defaultListenAddress, cfg.ListenAddress)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Market, reloaded.Market)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad contract": `
market:
  stable_denom: uusd
  receipt_token: ` + defaultAddress(2) + `
  contract: nope
`,
		"same addresses": `
market:
  stable_denom: uusd
  receipt_token: ` + defaultAddress(2) + `
  contract: ` + defaultAddress(2) + `
`,
		"tax without collector": `
market:
  stable_denom: uusd
  receipt_token: ` + defaultAddress(2) + `
  contract: ` + defaultAddress(1) + `
tax:
  rate: "0.01"
`,
		"kink above one": `
market:
  stable_denom: uusd
  receipt_token: ` + defaultAddress(2) + `
  contract: ` + defaultAddress(1) + `
interest:
  enabled: true
  kink: "1.2"
`,
		"negative genesis": `
market:
  stable_denom: uusd
  receipt_token: ` + defaultAddress(2) + `
  contract: ` + defaultAddress(1) + `
genesis:
  - address: ` + defaultAddress(3) + `
    denom: uusd
    amount: "-5"
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", contents))
			require.Error(t, err)
		})
	}

	bad := Default()
	bad.Storage = "rocksdb"
	require.Error(t, bad.validate())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	_, err = Load(writeConfig(t, "config.toml", "Unknown = 1\n"))
	require.Error(t, err)
}
