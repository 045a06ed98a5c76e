// Package breaker provides per-dependency circuit breakers for external
// calls. Each named circuit counts consecutive failures and opens at a
// threshold; open circuits reject calls immediately so a dead dependency
// cannot stall every request behind its timeout.
//
// Circuits do not probe. An open circuit closes only when a success is
// recorded (for example by a health check calling RecordSuccess) or
// through an explicit Reset or ResetAll.
package breaker
