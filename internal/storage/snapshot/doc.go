// Package snapshot provides snapshot management for CredGate.
//
// Snapshots are periodic full dumps of the in-memory state,
// enabling faster recovery by reducing WAL replay time.
//
// File format:
//
//	snapshot-<timestamp>-<sequence>.snap
//	[magic:8 "CREDSNAP"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON sessions, or encrypted bytes)
//	[checksum:32 SHA-256 of all bytes above]
//
// Recovery Process:
//
//  1. Load latest valid snapshot
//  2. Replay WAL entries after snapshot's WAL offset
//  3. Rebuild secondary indexes
package snapshot
