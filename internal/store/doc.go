// Package store provides the SQLite-backed local durable store.
//
// The store holds three things:
//   - Entries: JSON snapshots keyed by string (menu items, stock items,
//     selling sessions, settings, transactions)
//   - Pending operations: the FIFO queue of mutations awaiting replication
//   - Applied operations: idempotency records kept by the back-office
//
// # Atomicity
//
// Update runs a function inside one SQLite transaction. Checkout writes the
// transaction record, the stock counts and the queued operations through a
// single Update, so a crash leaves either all of them or none.
//
// # Ordering
//
// Queue reads are ORDER BY seq ASC. seq comes from an AUTOINCREMENT column
// and is never reused.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
