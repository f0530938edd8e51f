package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Backend when the indexer does not know a transaction.
// Freshly submitted transactions are reported this way until they are indexed.
var ErrNotFound = errors.New("ledger: transaction not found")

// Amount is a quantity of one unit held by an output
type Amount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// Output is a transaction output as reported by the indexer
type Output struct {
	Address     string   `json:"address"`
	Amount      []Amount `json:"amount"`
	OutputIndex int      `json:"output_index"`
}

// Backend talks to a ledger indexer
type Backend interface {
	// SubmitTx submits raw signed transaction bytes and returns the transaction hash
	SubmitTx(ctx context.Context, rawTx []byte) (string, error)

	// TxOutputs returns the outputs of a transaction, or ErrNotFound
	TxOutputs(ctx context.Context, txHash string) ([]Output, error)
}

// BackendError is a non-success response from the indexer
type BackendError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ledger backend returned %d", e.StatusCode)
}
