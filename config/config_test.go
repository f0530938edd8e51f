package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-cardano"
	"github.com/x402-foundation/x402-cardano/ledger/blockfrost"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "5051", cfg.Port)
	assert.Equal(t, ":5051", cfg.Addr())
	assert.Equal(t, "cardano-mainnet", cfg.Network)
	assert.Equal(t, blockfrost.MainnetURL, cfg.BlockfrostURL)
	assert.Equal(t, []string{"cardano", "cardano-mainnet"}, cfg.AcceptedNetworks)
	assert.Equal(t, "10000", cfg.MaxAmount)
	assert.Equal(t, "/secret", cfg.ResourcePath)
	assert.Equal(t, 30*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.ConfirmBudget)
	assert.Equal(t, float64(10), cfg.BlockfrostRPS)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromLookupPreprod(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"NETWORK":        "cardano-preprod",
		"PORT":           "8080",
		"CONFIRM_BUDGET": "0",
		"POLL_INTERVAL":  "250ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, blockfrost.PreprodURL, cfg.BlockfrostURL)
	assert.Equal(t, []string{"cardano", "cardano-mainnet", "cardano-preprod"}, cfg.AcceptedNetworks)
	assert.Equal(t, []x402.Network{"cardano", "cardano-mainnet", "cardano-preprod"}, cfg.Networks())
	assert.Equal(t, time.Duration(0), cfg.ConfirmBudget)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestFromLookupExplicitAcceptedNetworks(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"ACCEPTED_NETWORKS": " cardano-mainnet , ",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"cardano-mainnet"}, cfg.AcceptedNetworks)
}

func TestFromLookupInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}},
		{"bad duration", map[string]string{"FETCH_TIMEOUT": "soon"}},
		{"zero poll interval", map[string]string{"POLL_INTERVAL": "0"}},
		{"non-numeric amount", map[string]string{"MAX_AMOUNT": "ten"}},
		{"asset name not hex", map[string]string{"ASSET_NAME_HEX": "USDM"}},
		{"resource path", map[string]string{"RESOURCE_PATH": "secret"}},
		{"log level", map[string]string{"LOG_LEVEL": "chatty"}},
		{"rps", map[string]string{"BLOCKFROST_RPS": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestPaymentRequirements(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"PAY_TO":         "addr1qxy",
		"MAX_AMOUNT":     "2500000",
		"ASSET_POLICY":   "c48cbb3d5e57ed56e276bc45f99ab39abe94e6cd7ac39fb402da47ad",
		"ASSET_NAME_HEX": "0014df105553444d",
	}))
	require.NoError(t, err)

	req := cfg.PaymentRequirements()
	assert.Equal(t, "exact", req.Scheme)
	assert.Equal(t, "cardano-mainnet", req.Network)
	assert.Equal(t, "2500000", req.MaxAmountRequired)
	assert.Equal(t, "/secret", req.Resource)
	assert.Equal(t, "Access to premium resource", req.Description)
	assert.Equal(t, "application/json", req.MimeType)
	assert.Equal(t, 600, req.MaxTimeoutSeconds)
	assert.Equal(t, "addr1qxy", req.PayTo)
	assert.Equal(t, "c48cbb3d5e57ed56e276bc45f99ab39abe94e6cd7ac39fb402da47ad0014df105553444d", req.Unit())
}
