// Package postledger implements the append-only post ledger.
//
// Posts receive dense, zero-based identifiers in creation order. Each stored
// post also records the hash of its predecessor, so an edit made behind the
// ledger's back (directly in the database, say) is detectable via Verify.
//
// Three implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for tests and single-node deployments.
//   - PostgresLedger: durable, safe across several server instances.
//   - SQLiteLedger: durable, embedded, single process.
package postledger
