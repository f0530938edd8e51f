package x402

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultConfirmBudget bounds the confirmation check made by Settle and Status
const DefaultConfirmBudget = time.Second

// Facilitator verifies payment envelopes, submits their transactions and
// reports on-chain confirmation.
type Facilitator struct {
	mu sync.RWMutex

	gateway       LedgerGateway
	tracker       *SettlementTracker
	network       Network
	accepted      []Network
	confirmBudget time.Duration
	logger        *zap.Logger

	// Lifecycle hooks
	afterVerifyHooks []FacilitatorAfterVerifyHook
	afterSettleHooks []FacilitatorAfterSettleHook
}

// FacilitatorOption configures a Facilitator
type FacilitatorOption func(*Facilitator)

// WithNetwork sets the network reported by Supported and successful settlements
func WithNetwork(network Network) FacilitatorOption {
	return func(f *Facilitator) {
		f.network = network
	}
}

// WithAcceptedNetworks sets the network tags an envelope may carry
func WithAcceptedNetworks(networks ...Network) FacilitatorOption {
	return func(f *Facilitator) {
		f.accepted = append([]Network(nil), networks...)
	}
}

// WithSettlementStore sets the store behind the settlement tracker
func WithSettlementStore(store SettlementStore) FacilitatorOption {
	return func(f *Facilitator) {
		f.tracker = NewSettlementTracker(store)
	}
}

// WithConfirmBudget sets how long Settle and Status poll for confirmation
func WithConfirmBudget(budget time.Duration) FacilitatorOption {
	return func(f *Facilitator) {
		f.confirmBudget = budget
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) FacilitatorOption {
	return func(f *Facilitator) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFacilitator creates a facilitator over gateway.
// Defaults: cardano-mainnet, in-memory settlement store, one second confirmation budget.
func NewFacilitator(gateway LedgerGateway, opts ...FacilitatorOption) *Facilitator {
	f := &Facilitator{
		gateway:       gateway,
		network:       NetworkCardanoMainnet,
		confirmBudget: DefaultConfirmBudget,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.tracker == nil {
		f.tracker = NewSettlementTracker(nil)
	}
	if len(f.accepted) == 0 {
		f.accepted = append([]Network(nil), DefaultAcceptedNetworks...)
	}
	if !networkAccepted(f.network, f.accepted) {
		f.accepted = append(f.accepted, f.network)
	}
	return f
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (f *Facilitator) OnAfterVerify(hook FacilitatorAfterVerifyHook) *Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterVerifyHooks = append(f.afterVerifyHooks, hook)
	return f
}

func (f *Facilitator) OnAfterSettle(hook FacilitatorAfterSettleHook) *Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterSettleHooks = append(f.afterSettleHooks, hook)
	return f
}

// ============================================================================
// Core Payment Methods
// ============================================================================

// Network returns the network this facilitator settles on
func (f *Facilitator) Network() Network {
	return f.network
}

// AcceptedNetworks returns the network tags an envelope may carry
func (f *Facilitator) AcceptedNetworks() []Network {
	return append([]Network(nil), f.accepted...)
}

// Supported returns the payment kinds this facilitator handles
func (f *Facilitator) Supported() SupportedResponse {
	return SupportedResponse{
		Kinds: []SupportedKind{{
			X402Version: ProtocolVersion,
			Scheme:      SchemeExact,
			Network:     string(f.network),
		}},
	}
}

// Verify checks that an X-PAYMENT value is well formed. It performs no network I/O
// and does not touch the settlement tracker.
func (f *Facilitator) Verify(ctx context.Context, encoded string) VerifyResponse {
	start := time.Now()

	envelope, err := ParseEnvelope(encoded, f.accepted)
	if err == nil {
		_, err = DecodeTransaction(envelope)
	}

	result := VerifyResponse{IsValid: true}
	if err != nil {
		result = VerifyResponse{IsValid: false, InvalidReason: reasonOf(err, ReasonInvalidPayload)}
		f.logger.Debug("payment envelope rejected", zap.String("reason", result.InvalidReason), zap.Error(err))
	}

	f.mu.RLock()
	hooks := f.afterVerifyHooks
	f.mu.RUnlock()
	for _, hook := range hooks {
		hook(FacilitatorVerifyResultContext{
			Ctx:      ctx,
			Envelope: envelope,
			Result:   result,
			Duration: time.Since(start),
		})
	}
	return result
}

// Settle submits the envelope's transaction once per distinct transaction and reports
// its confirmation state. A first submission is always reported as pending; a repeated
// settle of the same bytes checks confirmation instead of submitting again.
func (f *Facilitator) Settle(ctx context.Context, encoded string, requirementsBytes []byte) SettleResponse {
	return f.observe(ctx, OperationSettle, func(info *FacilitatorSettleResultContext) SettleResponse {
		return f.settle(ctx, encoded, requirementsBytes, info)
	})
}

// Status reports the confirmation state of a previously submitted transaction
func (f *Facilitator) Status(ctx context.Context, txHash string, requirementsBytes []byte) SettleResponse {
	return f.observe(ctx, OperationStatus, func(info *FacilitatorSettleResultContext) SettleResponse {
		info.Transaction = txHash
		requirements, err := SelectRequirements(requirementsBytes)
		if err != nil {
			info.Err = err
			return settleFailure(ReasonInvalidPaymentRequirements, "")
		}
		info.Requirements = requirements
		if txHash == "" {
			info.Err = fmt.Errorf("%w: missing transaction", ErrInvalidPaymentRequirements)
			return settleFailure(ReasonInvalidPaymentRequirements, "")
		}
		return f.confirm(ctx, NewConfirmationQuery(txHash, requirements), info)
	})
}

// ============================================================================
// Internal Methods
// ============================================================================

// observe runs op, converting panics into unexpected_settle_error and running hooks
func (f *Facilitator) observe(ctx context.Context, operation string, op func(*FacilitatorSettleResultContext) SettleResponse) (resp SettleResponse) {
	start := time.Now()
	info := FacilitatorSettleResultContext{Ctx: ctx, Operation: operation}

	defer func() {
		if r := recover(); r != nil {
			info.Err = fmt.Errorf("panic: %v", r)
			resp = settleFailure(ReasonUnexpectedSettleError, info.Transaction)
		}
		if info.Err != nil && resp.ErrorReason == ReasonUnexpectedSettleError {
			f.logger.Error(operation+" failed unexpectedly",
				zap.String("fingerprint", info.Fingerprint),
				zap.String("transaction", resp.Transaction),
				zap.Error(info.Err))
		}
		info.Result = resp
		info.Duration = time.Since(start)

		f.mu.RLock()
		hooks := f.afterSettleHooks
		f.mu.RUnlock()
		for _, hook := range hooks {
			hook(info)
		}
	}()

	return op(&info)
}

func (f *Facilitator) settle(ctx context.Context, encoded string, requirementsBytes []byte, info *FacilitatorSettleResultContext) SettleResponse {
	requirements, err := SelectRequirements(requirementsBytes)
	if err != nil {
		info.Err = err
		return settleFailure(ReasonInvalidPaymentRequirements, "")
	}
	info.Requirements = requirements

	envelope, err := ParseEnvelope(encoded, f.accepted)
	var rawTx []byte
	if err == nil {
		rawTx, err = DecodeTransaction(envelope)
	}
	if err != nil {
		info.Err = err
		return settleFailure(reasonOf(err, ReasonInvalidPayload), "")
	}

	fingerprint := Fingerprint(rawTx)
	info.Fingerprint = fingerprint

	for {
		status, txHash, done, err := f.tracker.CheckAndMark(ctx, fingerprint)
		if err != nil {
			info.Err = fmt.Errorf("settlement lookup: %w", err)
			return settleFailure(ReasonUnexpectedSettleError, "")
		}

		switch status {
		case StatusKnown:
			info.Transaction = txHash
			f.logger.Debug("transaction already submitted",
				zap.String("fingerprint", fingerprint),
				zap.String("transaction", txHash))
			return f.confirm(ctx, NewConfirmationQuery(txHash, requirements), info)

		case StatusInFlight:
			if err := f.tracker.Wait(ctx, done); err != nil {
				info.Err = fmt.Errorf("waiting for in-flight settlement: %w", err)
				return settleFailure(ReasonUnexpectedSettleError, "")
			}
			// Owner finished; re-check for its record
			continue

		default:
			return f.submit(ctx, fingerprint, rawTx, done, info)
		}
	}
}

func (f *Facilitator) submit(ctx context.Context, fingerprint string, rawTx []byte, done chan struct{}, info *FacilitatorSettleResultContext) SettleResponse {
	released := false
	defer func() {
		if !released {
			f.tracker.Fail(fingerprint, done)
		}
	}()

	// Submission outlives the request; the backend bounds it with its own timeout
	txHash, err := f.gateway.Submit(context.WithoutCancel(ctx), rawTx)
	if err != nil {
		info.Err = err
		reason := reasonOf(err, ReasonInvalidTransactionState)
		f.logger.Info("transaction submission rejected",
			zap.String("fingerprint", fingerprint),
			zap.String("reason", reason),
			zap.Error(err))
		return settleFailure(reason, "")
	}

	released = true
	info.Transaction = txHash
	stored, err := f.tracker.Complete(context.WithoutCancel(ctx), fingerprint, txHash, done)
	if err != nil {
		f.logger.Error("failed to record settlement, keeping it in process",
			zap.String("fingerprint", fingerprint),
			zap.String("transaction", txHash),
			zap.Error(err))
		stored = txHash
	}

	f.logger.Info("transaction submitted",
		zap.String("fingerprint", fingerprint),
		zap.String("transaction", stored))
	return settlePending(stored)
}

func (f *Facilitator) confirm(ctx context.Context, query ConfirmationQuery, info *FacilitatorSettleResultContext) SettleResponse {
	confirmed, err := f.gateway.FetchConfirmedOutput(ctx, query, f.confirmBudget)
	if err != nil {
		info.Err = err
		return settleFailure(ReasonUnexpectedSettleError, query.TxHash)
	}
	if !confirmed {
		return settlePending(query.TxHash)
	}
	return SettleResponse{
		Success:     true,
		Transaction: query.TxHash,
		Network:     string(f.network),
	}
}

func settleFailure(reason, txHash string) SettleResponse {
	return SettleResponse{
		Success:     false,
		ErrorReason: reason,
		Transaction: txHash,
	}
}

func settlePending(txHash string) SettleResponse {
	return SettleResponse{
		Success:     false,
		ErrorReason: ReasonInvalidTransactionState,
		Transaction: txHash,
		Pending:     true,
	}
}
