package x402

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// SettlementTracker prevents duplicate submission of byte-identical transactions.
// It combines a SettlementStore with per-fingerprint in-flight markers so that
// lookup, submit and record for one fingerprint never interleave in this process.
// The mutex guards only the marker map; store I/O happens outside it.
//
// Submissions the store failed to record are kept in an in-process fallback
// so the same bytes are not submitted again while this process lives.
type SettlementTracker struct {
	mu         sync.Mutex
	store      SettlementStore
	unrecorded *InMemoryStore
	inFlight   map[string]chan struct{}
}

// NewSettlementTracker creates a tracker backed by store (in-memory when nil)
func NewSettlementTracker(store SettlementStore) *SettlementTracker {
	if store == nil {
		store = NewInMemoryStore()
	}
	return &SettlementTracker{
		store:      store,
		unrecorded: NewInMemoryStore(),
		inFlight:   make(map[string]chan struct{}),
	}
}

// Fingerprint identifies a transaction by the hex SHA-256 of its raw bytes
func Fingerprint(rawTx []byte) string {
	hash := sha256.Sum256(rawTx)
	return hex.EncodeToString(hash[:])
}

// SettlementStatus represents the result of checking the tracker.
type SettlementStatus int

const (
	// StatusNotFound means no record exists and the caller now owns the fingerprint.
	StatusNotFound SettlementStatus = iota
	// StatusKnown means the fingerprint was already submitted.
	StatusKnown
	// StatusInFlight means another request is currently submitting this fingerprint.
	StatusInFlight
)

func (s SettlementStatus) String() string {
	switch s {
	case StatusNotFound:
		return "not_found"
	case StatusKnown:
		return "known"
	case StatusInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// CheckAndMark checks the store and marks the fingerprint in-flight if needed.
// Returns:
// - StatusKnown + hash if the fingerprint is recorded
// - StatusInFlight + wait channel if another request owns it
// - StatusNotFound + done channel if this request should submit (now marked in-flight)
//
// A StatusNotFound caller must finish with Complete or Fail.
func (t *SettlementTracker) CheckAndMark(ctx context.Context, fingerprint string) (SettlementStatus, string, chan struct{}, error) {
	t.mu.Lock()
	if done, exists := t.inFlight[fingerprint]; exists {
		t.mu.Unlock()
		return StatusInFlight, "", done, nil
	}
	done := make(chan struct{})
	t.inFlight[fingerprint] = done
	t.mu.Unlock()

	owned := false
	defer func() {
		if !owned {
			t.release(fingerprint, done)
		}
	}()

	hash, ok, err := t.Lookup(ctx, fingerprint)
	if err != nil {
		return StatusNotFound, "", nil, err
	}
	if ok {
		return StatusKnown, hash, nil, nil
	}
	owned = true
	return StatusNotFound, "", done, nil
}

// Wait blocks until the owner of done finishes, respecting context cancellation.
func (t *SettlementTracker) Wait(ctx context.Context, done chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lookup returns the recorded hash for fingerprint, including submissions the
// store failed to record
func (t *SettlementTracker) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	if hash, ok, _ := t.unrecorded.Lookup(ctx, fingerprint); ok {
		return hash, true, nil
	}
	return t.store.Lookup(ctx, fingerprint)
}

// Complete records txHash for fingerprint and signals waiters.
// Returns the stored hash, which differs from txHash only if another writer got there first.
// When the store write fails the hash is kept in process and returned with the error.
func (t *SettlementTracker) Complete(ctx context.Context, fingerprint, txHash string, done chan struct{}) (string, error) {
	defer t.release(fingerprint, done)
	stored, err := t.store.RecordIfAbsent(ctx, fingerprint, txHash)
	if err != nil {
		stored, _ = t.unrecorded.RecordIfAbsent(ctx, fingerprint, txHash)
		return stored, err
	}
	return stored, nil
}

// Fail removes the in-flight marker without recording anything,
// allowing the settlement to be retried.
func (t *SettlementTracker) Fail(fingerprint string, done chan struct{}) {
	t.release(fingerprint, done)
}

func (t *SettlementTracker) release(fingerprint string, done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight[fingerprint] == done {
		delete(t.inFlight, fingerprint)
	}
	close(done)
}
