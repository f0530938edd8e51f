package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-cardano"
)

// Backend call names reported to observers
const (
	CallSubmit  = "submit"
	CallOutputs = "outputs"
)

// CallObserver is notified after every backend call
type CallObserver func(call string, err error, duration time.Duration)

// Gateway implements x402.LedgerGateway over a Backend
type Gateway struct {
	backend  Backend
	policy   PollPolicy
	logger   *zap.Logger
	observer CallObserver
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithPollPolicy replaces the default polling policy
func WithPollPolicy(policy PollPolicy) GatewayOption {
	return func(g *Gateway) {
		g.policy = policy.withDefaults()
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithCallObserver registers an observer for backend calls
func WithCallObserver(observer CallObserver) GatewayOption {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// NewGateway creates a gateway over backend
func NewGateway(backend Backend, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend: backend,
		policy:  DefaultPollPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit sends rawTx to the network exactly once.
// Rejections carry the backend's message as the reason when it provided one.
func (g *Gateway) Submit(ctx context.Context, rawTx []byte) (string, error) {
	start := time.Now()
	txHash, err := g.backend.SubmitTx(ctx, rawTx)
	g.observe(CallSubmit, err, time.Since(start))
	if err != nil {
		var backendErr *BackendError
		if errors.As(err, &backendErr) {
			return "", x402.NewSubmitError(backendErr.Message, err)
		}
		return "", x402.NewSubmitError("", err)
	}
	if txHash == "" {
		return "", x402.NewSubmitError("", errors.New("backend returned empty transaction hash"))
	}
	return txHash, nil
}

// FetchConfirmedOutput polls until the indexer reports a matching output or budget elapses.
// At least one attempt is always made. Not-found and backend errors count as not yet confirmed.
func (g *Gateway) FetchConfirmedOutput(ctx context.Context, query x402.ConfirmationQuery, budget time.Duration) (bool, error) {
	if query.TxHash == "" {
		return false, errors.New("ledger: confirmation query has no transaction hash")
	}

	deadline := g.policy.Now().Add(budget)
	for attempt := 1; ; attempt++ {
		start := time.Now()
		outputs, err := g.backend.TxOutputs(ctx, query.TxHash)
		g.observe(CallOutputs, err, time.Since(start))

		switch {
		case err == nil:
			if MatchOutput(outputs, query) {
				return true, nil
			}
		case ctx.Err() != nil:
			return false, ctx.Err()
		case errors.Is(err, ErrNotFound):
			g.logger.Debug("transaction not indexed yet",
				zap.String("transaction", query.TxHash),
				zap.Int("attempt", attempt))
		default:
			g.logger.Warn("indexer lookup failed",
				zap.String("transaction", query.TxHash),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if !g.policy.Now().Add(g.policy.Interval).Before(deadline) {
			return false, nil
		}
		if err := g.policy.Sleep(ctx, g.policy.Interval); err != nil {
			return false, err
		}
	}
}

// MatchOutput reports whether any output pays at least query.MinQuantity of
// query.Unit to exactly query.Address
func MatchOutput(outputs []Output, query x402.ConfirmationQuery) bool {
	for _, out := range outputs {
		if out.Address != query.Address {
			continue
		}
		for _, amt := range out.Amount {
			if amt.Unit != query.Unit {
				continue
			}
			qty, err := decimal.NewFromString(amt.Quantity)
			if err != nil {
				continue
			}
			if qty.GreaterThanOrEqual(query.MinQuantity) {
				return true
			}
		}
	}
	return false
}

func (g *Gateway) observe(call string, err error, d time.Duration) {
	if g.observer != nil {
		g.observer(call, err, d)
	}
}

var _ x402.LedgerGateway = (*Gateway)(nil)
