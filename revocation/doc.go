// Package revocation decides whether a token identifier is still usable.
// It keeps two logical sets: blacklisted token ids (denial list, expiring
// with the token) and used refresh token ids (single-use enforcement).
//
// Two implementations are provided: Memory for single-process deployments
// and Redis for shared multi-process deployments. Both make MarkRefreshUsed
// a single atomic claim, which is the operation that closes the concurrent
// refresh replay window.
package revocation
