// Package timeline turns irregular, multi-source aircraft position reports
// into a continuous display state that can be sampled at any wall-clock time.
//
// Each aircraft owns a small, fixed-capacity history of observations. The
// Store answers two kinds of questions about that history:
//
//   - Peek(id, now) computes one aircraft's display state without touching
//     any derived state. It is safe for ad hoc queries.
//   - Advance(now) computes every aircraft's display state for a render tick
//     and commits the derived per-aircraft caches (last reliable heading,
//     last rendered position and reconciliation target) in one step.
//
// Display time is anchored to the oldest retained observation:
//
//	displayTime = oldest.ObservedAt + (now - oldest.ReceivedAt) - newest.DisplayDelay
//
// so it advances with the wall clock instead of jumping every time a fresh
// sample arrives. Between two samples the position is reconciled from
// whatever was drawn on the previous tick toward the next sample, which keeps
// the rendered track continuous when the interpolation target changes.
// Beyond the newest sample the position is dead-reckoned along the ground
// track for at most Config.MaxExtrapolation.
package timeline
