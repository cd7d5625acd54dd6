// Package engine implements the playlist reconciliation core.
//
// # Pipeline
//
// One cycle flows through three pure steps:
//
//  1. [Normalize] : Raw remote track list → canonical [State]
//     - Collapses duplicate tracks to their topmost occurrence
//     - Truncates to capacity
//     - The idempotence boundary: never trusts the remote playlist to be clean
//
//  2. [Reconcile] : (previous [State], [models.ListeningWindow]) → target [State]
//     - Candidate order: now playing, then window events newest first, then previous
//     - Deduplicates keeping the highest-priority occurrence
//     - Truncates to capacity, evicting the least recently relevant tail
//
//  3. [NewPlan] : (previous, target) → [Plan]
//     - Longest common subsequence by track ID keeps the maximum set in place
//     - Everything else becomes one removal batch and one insertion batch
//     - Removals apply before insertions so the playlist never exceeds capacity
//
// All three are pure functions of their inputs with no I/O, so the whole
// engine is testable without a Spotify account. Execution of a [Plan]
// against the remote API lives in the tasks package.
package engine
