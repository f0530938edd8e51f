// Package idempotency provides durable settlement records for x402 facilitators.
//
// # Overview
//
// The facilitator's settlement tracker maps a transaction fingerprint to the hash the
// ledger returned when the transaction was first submitted. The default store keeps
// those records in process memory, which is enough for a single instance. Load-balanced
// or restarting deployments share records through PostgresStore instead, so a retried
// settle that lands on another instance still finds the original submission.
//
// # Usage
//
//	store, err := idempotency.OpenPostgresStore(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	facilitator := x402.NewFacilitator(gateway,
//	    x402.WithSettlementStore(store),
//	)
//
// # Semantics
//
// Records are append-only. RecordIfAbsent inserts with ON CONFLICT DO NOTHING and reads
// back the stored row, so when two instances race the first writer wins and both observe
// the same hash. Rows are never updated or deleted by this package.
//
// The in-flight marker that keeps concurrent settles of one fingerprint from both
// submitting lives in the tracker and is per process.
package idempotency
