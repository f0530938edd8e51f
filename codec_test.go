package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTx = []byte{0x84, 0xa4, 0x00, 0x81, 0x82, 0x58, 0x20, 0x01, 0x02, 0x03}

func encodeEnvelope(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func validEnvelope(t *testing.T, tx []byte) string {
	return encodeEnvelope(t, map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     "cardano",
		"payload": map[string]interface{}{
			"transaction": base64.StdEncoding.EncodeToString(tx),
		},
	})
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr), "expected *ParseError, got %v", err)
	assert.Equal(t, reason, parseErr.Reason)
}

func TestParseEnvelope_Valid(t *testing.T) {
	env, err := ParseEnvelope(validEnvelope(t, sampleTx), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.X402Version)
	assert.Equal(t, "exact", env.Scheme)
	assert.Equal(t, "cardano", env.Network)

	raw, err := DecodeTransaction(env)
	require.NoError(t, err)
	assert.Equal(t, sampleTx, raw)
}

func TestParseEnvelope_ExtraPayloadKeys(t *testing.T) {
	encoded := encodeEnvelope(t, map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     "cardano-mainnet",
		"payload": map[string]interface{}{
			"transaction": base64.StdEncoding.EncodeToString(sampleTx),
			"witness":     "ignored",
		},
	})
	env, err := ParseEnvelope(encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, "ignored", env.Payload["witness"])
}

func TestParseEnvelope_VersionGate(t *testing.T) {
	tx := base64.StdEncoding.EncodeToString(sampleTx)
	tests := []struct {
		name     string
		envelope map[string]interface{}
	}{
		{"version 2", map[string]interface{}{"x402Version": 2, "scheme": "exact", "network": "cardano", "payload": map[string]interface{}{"transaction": tx}}},
		{"version 0 with bad payload", map[string]interface{}{"x402Version": 0, "scheme": "exact", "network": "cardano", "payload": "garbage"}},
		{"version as string", map[string]interface{}{"x402Version": "1", "scheme": "exact", "network": "cardano", "payload": map[string]interface{}{"transaction": tx}}},
		{"missing version", map[string]interface{}{"scheme": "exact", "network": "cardano", "payload": map[string]interface{}{"transaction": tx}}},
		{"wrong scheme", map[string]interface{}{"x402Version": 1, "scheme": "upto", "network": "cardano", "payload": map[string]interface{}{"transaction": tx}}},
		{"wrong network", map[string]interface{}{"x402Version": 1, "scheme": "exact", "network": "base-sepolia", "payload": map[string]interface{}{"transaction": tx}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(encodeEnvelope(t, tt.envelope), nil)
			requireReason(t, err, ReasonInvalidVersionSchemeNetwork)
		})
	}
}

func TestParseEnvelope_AcceptedNetworks(t *testing.T) {
	encoded := encodeEnvelope(t, map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     "cardano-preprod",
		"payload":     map[string]interface{}{"transaction": base64.StdEncoding.EncodeToString(sampleTx)},
	})

	_, err := ParseEnvelope(encoded, nil)
	requireReason(t, err, ReasonInvalidVersionSchemeNetwork)

	_, err = ParseEnvelope(encoded, []Network{NetworkCardanoPreprod})
	assert.NoError(t, err)
}

func TestParseEnvelope_InvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("hello"))},
		{"json array", base64.StdEncoding.EncodeToString([]byte("[1,2]"))},
		{"missing payload", encodeEnvelope(t, map[string]interface{}{"x402Version": 1, "scheme": "exact", "network": "cardano"})},
		{"missing transaction", encodeEnvelope(t, map[string]interface{}{"x402Version": 1, "scheme": "exact", "network": "cardano", "payload": map[string]interface{}{}})},
		{"empty transaction", encodeEnvelope(t, map[string]interface{}{"x402Version": 1, "scheme": "exact", "network": "cardano", "payload": map[string]interface{}{"transaction": ""}})},
		{"numeric transaction", encodeEnvelope(t, map[string]interface{}{"x402Version": 1, "scheme": "exact", "network": "cardano", "payload": map[string]interface{}{"transaction": 42}})},
		{"payload not object", encodeEnvelope(t, map[string]interface{}{"x402Version": 1, "scheme": "exact", "network": "cardano", "payload": "tx"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.encoded, nil)
			requireReason(t, err, ReasonInvalidPayload)
		})
	}
}

func TestDecodeTransaction_Undecodable(t *testing.T) {
	env := &PaymentEnvelope{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "cardano",
		Payload:     map[string]interface{}{"transaction": "%%%"},
	}
	_, err := DecodeTransaction(env)
	requireReason(t, err, ReasonInvalidPayload)

	// Whitespace only decodes to nothing
	env.Payload["transaction"] = "  \n"
	_, err = DecodeTransaction(env)
	requireReason(t, err, ReasonInvalidPayload)
}

func TestDecodeBase64_Lenient(t *testing.T) {
	padded := base64.StdEncoding.EncodeToString(sampleTx)
	unpadded := base64.RawStdEncoding.EncodeToString(sampleTx)
	wrapped := padded[:4] + "\n" + padded[4:8] + " \t" + padded[8:]

	for _, in := range []string{padded, unpadded, wrapped} {
		out, err := DecodeBase64(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, sampleTx, out)
	}

	_, err := DecodeBase64("a")
	assert.Error(t, err)
}

func TestSelectRequirements(t *testing.T) {
	req, err := SelectRequirements([]byte(`{"x402Version":1,"accepts":[{"scheme":"exact","network":"cardano","maxAmountRequired":"5","payTo":"addr1","asset":"p"},{"payTo":"addr2"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "addr1", req.PayTo)

	for _, raw := range []string{"", "null", "{}", `{"accepts":[]}`, `{"accepts":"nope"}`, "not json"} {
		_, err := SelectRequirements([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidPaymentRequirements, "input %q", raw)
	}
}

func TestPaymentRequirements_UnitAndMinAmount(t *testing.T) {
	req := PaymentRequirements{
		Asset:             "policy",
		MaxAmountRequired: "10000",
		Extra:             map[string]interface{}{"assetNameHex": "4e4654"},
	}
	assert.Equal(t, "policy4e4654", req.Unit())
	assert.True(t, req.MinAmount().Equal(decimal.NewFromInt(10000)))

	assert.Equal(t, "policy", PaymentRequirements{Asset: "policy"}.Unit())
	assert.Equal(t, UnitLovelace, PaymentRequirements{}.Unit())

	assert.True(t, PaymentRequirements{MaxAmountRequired: "abc"}.MinAmount().IsZero())
	assert.True(t, PaymentRequirements{}.MinAmount().IsZero())
	assert.True(t, PaymentRequirements{MaxAmountRequired: "12.9"}.MinAmount().Equal(decimal.NewFromInt(12)))

	// Leading integer prefix only
	assert.True(t, PaymentRequirements{MaxAmountRequired: "1e3"}.MinAmount().Equal(decimal.NewFromInt(1)))
	assert.True(t, PaymentRequirements{MaxAmountRequired: "12abc"}.MinAmount().Equal(decimal.NewFromInt(12)))
	assert.True(t, PaymentRequirements{MaxAmountRequired: "  42 "}.MinAmount().Equal(decimal.NewFromInt(42)))
	assert.True(t, PaymentRequirements{MaxAmountRequired: "-5"}.MinAmount().Equal(decimal.NewFromInt(-5)))
	assert.True(t, PaymentRequirements{MaxAmountRequired: ".5"}.MinAmount().IsZero())

	big := PaymentRequirements{MaxAmountRequired: "123456789012345678901234567890"}
	assert.Equal(t, "123456789012345678901234567890", big.MinAmount().String())
}
