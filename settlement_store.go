package x402

import (
	"context"
	"sync"
)

// SettlementStore persists fingerprint -> transaction hash records.
//
// Records are append-only: once a fingerprint is recorded its hash never changes.
// Implementations must be safe for concurrent use. For multi-instance deployments
// use a shared implementation such as extensions/idempotency.PostgresStore.
type SettlementStore interface {
	// Lookup returns the recorded hash for fingerprint, if any.
	Lookup(ctx context.Context, fingerprint string) (txHash string, ok bool, err error)

	// RecordIfAbsent stores txHash unless fingerprint is already recorded,
	// and returns whichever hash is stored afterwards.
	RecordIfAbsent(ctx context.Context, fingerprint, txHash string) (stored string, err error)
}

// InMemoryStore is a process-local SettlementStore.
// Entries are retained for the life of the process.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]string
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]string)}
}

func (s *InMemoryStore) Lookup(_ context.Context, fingerprint string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.records[fingerprint]
	return hash, ok, nil
}

func (s *InMemoryStore) RecordIfAbsent(_ context.Context, fingerprint, txHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[fingerprint]; ok {
		return existing, nil
	}
	s.records[fingerprint] = txHash
	return txHash, nil
}

// Len returns the number of recorded settlements
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ SettlementStore = (*InMemoryStore)(nil)
