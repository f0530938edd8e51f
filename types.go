package x402

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Network identifies a ledger network (e.g. "cardano-mainnet")
type Network string

func (n Network) String() string {
	return string(n)
}

// Protocol constants
const (
	ProtocolVersion = 1
	SchemeExact     = "exact"

	NetworkCardano        Network = "cardano"
	NetworkCardanoMainnet Network = "cardano-mainnet"
	NetworkCardanoPreprod Network = "cardano-preprod"

	// UnitLovelace is the ledger's native unit, used when requirements name no asset
	UnitLovelace = "lovelace"
)

// DefaultAcceptedNetworks are the network tags an envelope may carry unless configured otherwise
var DefaultAcceptedNetworks = []Network{NetworkCardano, NetworkCardanoMainnet}

// ============================================================================
// Payment Requirements
// ============================================================================

// PaymentRequirements describes a single acceptable way to pay for a resource
type PaymentRequirements struct {
	X402Version       int                    `json:"x402Version,omitempty"`
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource,omitempty"`
	Description       string                 `json:"description,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Asset             string                 `json:"asset"`
	OutputSchema      *json.RawMessage       `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// AssetNameHex returns extra.assetNameHex, or "" when absent
func (r PaymentRequirements) AssetNameHex() string {
	if r.Extra == nil {
		return ""
	}
	name, _ := r.Extra["assetNameHex"].(string)
	return name
}

// Unit is the indexer unit for the required asset: policy id followed by the hex asset name.
// Requirements naming neither pay in lovelace.
func (r PaymentRequirements) Unit() string {
	unit := r.Asset + r.AssetNameHex()
	if unit == "" {
		return UnitLovelace
	}
	return unit
}

// MinAmount reads MaxAmountRequired as an integer quantity: leading whitespace and
// an optional sign, then the longest run of decimal digits ("12abc" and "12.9" are 12,
// "1e3" is 1). Values with no leading digits yield zero.
func (r PaymentRequirements) MinAmount() decimal.Decimal {
	s := strings.TrimLeft(r.MaxAmountRequired, " \t\n\r\v\f")
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(sign + s[:end])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PaymentRequired is the 402 body and the payment_requirements field of facilitator requests
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// ============================================================================
// Payment Envelope
// ============================================================================

// PaymentEnvelope is the decoded X-PAYMENT value
type PaymentEnvelope struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Payload     map[string]interface{} `json:"payload"`
}

// Transaction returns the base64 signed transaction carried by the payload
func (e *PaymentEnvelope) Transaction() string {
	if e == nil || e.Payload == nil {
		return ""
	}
	tx, _ := e.Payload["transaction"].(string)
	return tx
}

// ConfirmationQuery describes the output a confirmed payment must have produced
type ConfirmationQuery struct {
	TxHash      string
	Address     string
	Unit        string
	MinQuantity decimal.Decimal
}

// NewConfirmationQuery derives the query for txHash from requirements
func NewConfirmationQuery(txHash string, requirements PaymentRequirements) ConfirmationQuery {
	return ConfirmationQuery{
		TxHash:      txHash,
		Address:     requirements.PayTo,
		Unit:        requirements.Unit(),
		MinQuantity: requirements.MinAmount(),
	}
}

// ============================================================================
// Facilitator Responses
// ============================================================================

// VerifyResponse contains the verification result
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse contains the settlement result.
// Pending responses report a submitted transaction the indexer has not confirmed yet.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network,omitempty"`
	Pending     bool   `json:"pending,omitempty"`
}

// SupportedKind represents a supported payment configuration
type SupportedKind struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

// SupportedResponse describes what payment kinds a facilitator supports
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}
