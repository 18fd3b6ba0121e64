// Package storage provides session storage backends for CredGate.
//
// Three backends implement the Store interface:
//
//   - memory: sharded in-memory maps with WAL durability and periodic
//     snapshots; the default for single-node deployments
//   - badger: embedded Badger key-value store with TTL-based expiry
//   - redis: external Redis with key TTLs, for deployments that already
//     run one
//
// The memory engine combines three layers:
//
//   - Memory Store: Primary storage using sharded concurrent maps
//   - WAL: Write-ahead logging for durability and crash recovery
//   - Snapshot: Periodic snapshots for faster recovery
//
// All backends honor the same semantics: optimistic locking via session
// versions, token hash uniqueness, per-user session quotas, and expired
// session filtering. Encryption at rest is available for the memory
// engine's WAL and snapshot files using adaptive ciphers.
package storage
