package idempotency

import "go.uber.org/zap"

// DefaultTable is the table used when none is configured
const DefaultTable = "x402_settlements"

// config holds the configuration for PostgresStore.
type config struct {
	table   string
	migrate bool
	logger  *zap.Logger
}

// Option configures a PostgresStore.
type Option func(*config)

// WithTable sets the table name.
//
// Default: x402_settlements
func WithTable(table string) Option {
	return func(c *config) {
		c.table = table
	}
}

// WithoutMigration skips CREATE TABLE IF NOT EXISTS on open, for databases
// whose schema is managed elsewhere.
func WithoutMigration() Option {
	return func(c *config) {
		c.migrate = false
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		table:   DefaultTable,
		migrate: true,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
