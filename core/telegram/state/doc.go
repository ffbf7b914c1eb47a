// Package state keeps per-user conversation sessions in memory. Updates for
// one user are serialized; different users proceed in parallel. Sessions idle
// for longer than the configured timeout are treated as absent and removed by
// the janitor.
package state
