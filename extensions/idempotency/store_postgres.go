package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-cardano"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore is a SettlementStore backed by a Postgres table
type PostgresStore struct {
	db     *sql.DB
	owned  bool
	logger *zap.Logger

	createSQL string
	lookupSQL string
	insertSQL string
}

// OpenPostgresStore connects to dsn with the pgx driver, verifies the connection
// and creates the table unless WithoutMigration is given.
func OpenPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	store, err := NewPostgresStore(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewPostgresStore wraps an existing connection pool. The caller keeps ownership of db.
func NewPostgresStore(ctx context.Context, db *sql.DB, opts ...Option) (*PostgresStore, error) {
	cfg := newConfig(opts)
	if !tableNamePattern.MatchString(cfg.table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.table)
	}

	store := &PostgresStore{
		db:     db,
		logger: cfg.logger,
		createSQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	fingerprint TEXT PRIMARY KEY,
	tx_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, cfg.table),
		lookupSQL: fmt.Sprintf(`SELECT tx_hash FROM %s WHERE fingerprint = $1`, cfg.table),
		insertSQL: fmt.Sprintf(`INSERT INTO %s (fingerprint, tx_hash) VALUES ($1, $2) ON CONFLICT (fingerprint) DO NOTHING`, cfg.table),
	}

	if cfg.migrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Migrate creates the settlements table if it does not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createSQL); err != nil {
		return fmt.Errorf("failed to create settlements table: %w", err)
	}
	return nil
}

// Lookup returns the recorded hash for fingerprint
func (s *PostgresStore) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	var txHash string
	err := s.db.QueryRowContext(ctx, s.lookupSQL, fingerprint).Scan(&txHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up settlement: %w", err)
	}
	return txHash, true, nil
}

// RecordIfAbsent inserts the record unless one exists and returns the stored hash
func (s *PostgresStore) RecordIfAbsent(ctx context.Context, fingerprint, txHash string) (string, error) {
	res, err := s.db.ExecContext(ctx, s.insertSQL, fingerprint, txHash)
	if err != nil {
		return "", fmt.Errorf("failed to record settlement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return txHash, nil
	}

	stored, ok, err := s.Lookup(ctx, fingerprint)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("settlement %s vanished after conflicting insert", fingerprint)
	}
	if stored != txHash {
		s.logger.Warn("settlement already recorded with a different hash",
			zap.String("fingerprint", fingerprint),
			zap.String("stored", stored),
			zap.String("submitted", txHash))
	}
	return stored, nil
}

// Close closes the connection pool if the store opened it
func (s *PostgresStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

var _ x402.SettlementStore = (*PostgresStore)(nil)
