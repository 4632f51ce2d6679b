// Package store archives scenario runs in SQLite.
//
// Each run keeps its verdict, its failure messages and every recorded call
// with the call's outcome. Arguments and outcomes are stored as canonical
// JSON so archived traces compare byte for byte with golden files.
//
// Runs are ordered by created_seq, a logical counter assigned on insert.
// Invocations are ordered by their sequence number within the run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Deleting a run deletes its invocations
package store
