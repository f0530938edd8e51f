// Package config loads facilitator settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	x402 "github.com/x402-foundation/x402-cardano"
	"github.com/x402-foundation/x402-cardano/ledger/blockfrost"
)

// Defaults
const (
	DefaultPort              = "5051"
	DefaultMaxAmount         = "10000"
	DefaultResourcePath      = "/secret"
	DefaultMaxTimeoutSeconds = 600
)

// Config holds all facilitator settings
type Config struct {
	Port             string   `validate:"required,numeric"`
	Network          string   `validate:"required"`
	AcceptedNetworks []string `validate:"min=1,dive,required"`

	BlockfrostProjectID string
	BlockfrostURL       string  `validate:"required,url"`
	BlockfrostRPS       float64 // negative disables rate limiting

	SubmitTimeout time.Duration `validate:"gt=0"`
	FetchTimeout  time.Duration `validate:"gt=0"`
	PollInterval  time.Duration `validate:"gt=0"`
	ConfirmBudget time.Duration `validate:"gte=0"`

	PayTo        string
	MaxAmount    string `validate:"numeric"`
	AssetPolicy  string `validate:"omitempty,hexadecimal"`
	AssetNameHex string `validate:"omitempty,hexadecimal"`
	ResourcePath string `validate:"required,startswith=/"`

	DatabaseURL string
	LogLevel    string `validate:"oneof=debug info warn warning error"`
	GinMode     string `validate:"omitempty,oneof=debug release test"`
}

var validate = validator.New()

// Load reads .env (when present) and the process environment
func Load() (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults, and validates it
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:                env("PORT", DefaultPort),
		Network:             env("NETWORK", string(x402.NetworkCardanoMainnet)),
		BlockfrostProjectID: env("BLOCKFROST_PROJECT_ID", ""),
		PayTo:               env("PAY_TO", ""),
		MaxAmount:           env("MAX_AMOUNT", DefaultMaxAmount),
		AssetPolicy:         env("ASSET_POLICY", ""),
		AssetNameHex:        env("ASSET_NAME_HEX", ""),
		ResourcePath:        env("RESOURCE_PATH", DefaultResourcePath),
		DatabaseURL:         env("DATABASE_URL", ""),
		LogLevel:            strings.ToLower(env("LOG_LEVEL", "info")),
		GinMode:             env("GIN_MODE", ""),
	}
	cfg.BlockfrostURL = env("BLOCKFROST_URL", blockfrost.BaseURLForNetwork(cfg.Network))
	cfg.AcceptedNetworks = acceptedNetworks(env("ACCEPTED_NETWORKS", ""), cfg.Network)

	var err error
	if cfg.BlockfrostRPS, err = parseFloat(env("BLOCKFROST_RPS", "10")); err != nil {
		return nil, fmt.Errorf("BLOCKFROST_RPS: %w", err)
	}
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SUBMIT_TIMEOUT", blockfrost.DefaultSubmitTimeout, &cfg.SubmitTimeout},
		{"FETCH_TIMEOUT", blockfrost.DefaultFetchTimeout, &cfg.FetchTimeout},
		{"POLL_INTERVAL", time.Second, &cfg.PollInterval},
		{"CONFIRM_BUDGET", x402.DefaultConfirmBudget, &cfg.ConfirmBudget},
	}
	for _, d := range durations {
		v, err := parseDuration(env(d.key, ""), d.def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Networks converts AcceptedNetworks to x402 networks
func (c *Config) Networks() []x402.Network {
	networks := make([]x402.Network, 0, len(c.AcceptedNetworks))
	for _, n := range c.AcceptedNetworks {
		networks = append(networks, x402.Network(n))
	}
	return networks
}

// PaymentRequirements describes how to pay for the protected resource
func (c *Config) PaymentRequirements() x402.PaymentRequirements {
	req := x402.PaymentRequirements{
		X402Version:       x402.ProtocolVersion,
		Scheme:            x402.SchemeExact,
		Network:           c.Network,
		MaxAmountRequired: c.MaxAmount,
		Resource:          c.ResourcePath,
		Description:       "Access to premium resource",
		MimeType:          "application/json",
		PayTo:             c.PayTo,
		MaxTimeoutSeconds: DefaultMaxTimeoutSeconds,
		Asset:             c.AssetPolicy,
	}
	if c.AssetNameHex != "" {
		req.Extra = map[string]interface{}{"assetNameHex": c.AssetNameHex}
	}
	return req
}

func acceptedNetworks(list, network string) []string {
	var out []string
	if list == "" {
		for _, n := range x402.DefaultAcceptedNetworks {
			out = append(out, string(n))
		}
	} else {
		for _, n := range strings.Split(list, ",") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
	}
	for _, n := range out {
		if n == network {
			return out
		}
	}
	return append(out, network)
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	// Bare integers are seconds
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func parseFloat(v string) (float64, error) {
	return strconv.ParseFloat(v, 64)
}
