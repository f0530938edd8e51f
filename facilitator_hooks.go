package x402

import (
	"context"
	"time"
)

// ============================================================================
// Facilitator Hook Context Types
// ============================================================================

// Operation names passed to hooks
const (
	OperationVerify = "verify"
	OperationSettle = "settle"
	OperationStatus = "status"
)

// FacilitatorVerifyResultContext contains the verify result and its duration
type FacilitatorVerifyResultContext struct {
	Ctx      context.Context
	Envelope *PaymentEnvelope
	Result   VerifyResponse
	Duration time.Duration
}

// FacilitatorSettleResultContext contains a settle or status result and its context.
// Requirements is the zero value when payment_requirements could not be read.
// Transaction is the hash known so far, if any.
type FacilitatorSettleResultContext struct {
	Ctx          context.Context
	Operation    string
	Fingerprint  string
	Transaction  string
	Requirements PaymentRequirements
	Result       SettleResponse
	Err          error
	Duration     time.Duration
}

// ============================================================================
// Facilitator Hook Function Types
// ============================================================================

// FacilitatorAfterVerifyHook is called after every verification
type FacilitatorAfterVerifyHook func(FacilitatorVerifyResultContext)

// FacilitatorAfterSettleHook is called after every settle and status call
type FacilitatorAfterSettleHook func(FacilitatorSettleResultContext)
