package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// payloadSchema is the shape of an exact-scheme payload
const payloadSchema = `{
  "type": "object",
  "required": ["transaction"],
  "properties": {
    "transaction": {"type": "string", "minLength": 1}
  }
}`

var payloadSchemaLoader = gojsonschema.NewStringLoader(payloadSchema)

// rawEnvelope defers typing so a mistyped tag is reported as a tag mismatch
type rawEnvelope struct {
	X402Version json.RawMessage `json:"x402Version"`
	Scheme      json.RawMessage `json:"scheme"`
	Network     json.RawMessage `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

// DecodeBase64 decodes standard base64, ignoring ASCII whitespace and missing padding
func DecodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimRight(cleaned, "=")
	return base64.RawStdEncoding.DecodeString(cleaned)
}

// ParseEnvelope decodes an X-PAYMENT value and validates its protocol tags and payload.
// The version/scheme/network check runs before the payload check.
func ParseEnvelope(encoded string, accepted []Network) (*PaymentEnvelope, error) {
	raw, err := DecodeBase64(encoded)
	if err != nil {
		return nil, NewParseError(ReasonInvalidPayload, fmt.Errorf("decode envelope: %w", err))
	}

	var fields rawEnvelope
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, NewParseError(ReasonInvalidPayload, fmt.Errorf("unmarshal envelope: %w", err))
	}

	var envelope PaymentEnvelope
	versionErr := json.Unmarshal(fields.X402Version, &envelope.X402Version)
	schemeErr := json.Unmarshal(fields.Scheme, &envelope.Scheme)
	networkErr := json.Unmarshal(fields.Network, &envelope.Network)
	if versionErr != nil || schemeErr != nil || networkErr != nil ||
		envelope.X402Version != ProtocolVersion ||
		envelope.Scheme != SchemeExact ||
		!networkAccepted(Network(envelope.Network), accepted) {
		return nil, NewParseError(ReasonInvalidVersionSchemeNetwork, fmt.Errorf(
			"unsupported x402Version=%s scheme=%s network=%s",
			fields.X402Version, fields.Scheme, fields.Network))
	}

	if len(fields.Payload) > 0 {
		if err := json.Unmarshal(fields.Payload, &envelope.Payload); err != nil {
			return nil, NewParseError(ReasonInvalidPayload, fmt.Errorf("unmarshal payload: %w", err))
		}
	}
	if err := validatePayload(envelope.Payload); err != nil {
		return nil, NewParseError(ReasonInvalidPayload, err)
	}

	return &envelope, nil
}

// DecodeTransaction returns the raw signed transaction bytes carried by the envelope
func DecodeTransaction(envelope *PaymentEnvelope) ([]byte, error) {
	tx := envelope.Transaction()
	if tx == "" {
		return nil, NewParseError(ReasonInvalidPayload, errors.New("missing payload transaction"))
	}
	raw, err := DecodeBase64(tx)
	if err != nil {
		return nil, NewParseError(ReasonInvalidPayload, fmt.Errorf("decode transaction: %w", err))
	}
	if len(raw) == 0 {
		return nil, NewParseError(ReasonInvalidPayload, errors.New("empty transaction"))
	}
	return raw, nil
}

// SelectRequirements returns accepts[0] from a payment_requirements document
func SelectRequirements(requirementsBytes []byte) (PaymentRequirements, error) {
	if len(requirementsBytes) == 0 {
		return PaymentRequirements{}, ErrInvalidPaymentRequirements
	}
	var required PaymentRequired
	if err := json.Unmarshal(requirementsBytes, &required); err != nil {
		return PaymentRequirements{}, fmt.Errorf("%w: %v", ErrInvalidPaymentRequirements, err)
	}
	if len(required.Accepts) == 0 {
		return PaymentRequirements{}, ErrInvalidPaymentRequirements
	}
	return required.Accepts[0], nil
}

func validatePayload(payload map[string]interface{}) error {
	if payload == nil {
		return errors.New("missing payload")
	}
	result, err := gojsonschema.Validate(payloadSchemaLoader, gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("payload schema: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
		}
		return fmt.Errorf("payload invalid: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func networkAccepted(network Network, accepted []Network) bool {
	if len(accepted) == 0 {
		accepted = DefaultAcceptedNetworks
	}
	for _, n := range accepted {
		if n == network {
			return true
		}
	}
	return false
}
