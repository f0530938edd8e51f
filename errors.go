package x402

import (
	"errors"
	"fmt"
)

// Reasons reported in invalidReason / errorReason
const (
	ReasonInvalidPayload              = "invalid_payload"
	ReasonInvalidVersionSchemeNetwork = "invalid_x402_version/scheme/network"
	ReasonInvalidPaymentRequirements  = "invalid_payment_requirements"
	ReasonInvalidTransactionState     = "invalid_transaction_state"
	ReasonUnexpectedSettleError       = "unexpected_settle_error"
)

// ErrInvalidPaymentRequirements is returned when payment_requirements has no usable accepts[0]
var ErrInvalidPaymentRequirements = errors.New(ReasonInvalidPaymentRequirements)

// ParseError reports why a payment envelope was rejected
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a parse error with the given reason
func NewParseError(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// SubmitError reports a rejected transaction submission.
// Reason is the ledger's message when it gave one.
type SubmitError struct {
	Reason string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("submit failed (%s)", e.Reason)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// NewSubmitError creates a submit error, defaulting the reason to invalid_transaction_state
func NewSubmitError(reason string, err error) *SubmitError {
	if reason == "" {
		reason = ReasonInvalidTransactionState
	}
	return &SubmitError{Reason: reason, Err: err}
}

// reasonOf extracts the protocol reason carried by err, falling back to def
func reasonOf(err error, def string) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Reason
	}
	var submitErr *SubmitError
	if errors.As(err, &submitErr) {
		return submitErr.Reason
	}
	return def
}
