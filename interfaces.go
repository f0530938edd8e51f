package x402

import (
	"context"
	"time"
)

// LedgerGateway is the facilitator's view of the ledger and its indexer.
// Implemented by ledger.Gateway.
type LedgerGateway interface {
	// Submit sends raw signed transaction bytes to the network and returns the
	// transaction hash. Failures are reported as *SubmitError. Never retried.
	Submit(ctx context.Context, rawTx []byte) (string, error)

	// FetchConfirmedOutput polls the indexer until an output of query.TxHash pays
	// at least query.MinQuantity of query.Unit to query.Address, or budget elapses.
	// A zero budget performs a single check. Errors are reserved for faults.
	FetchConfirmedOutput(ctx context.Context, query ConfirmationQuery, budget time.Duration) (bool, error)
}
