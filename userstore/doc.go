// Package userstore ships ready-made credential backends for the
// engine's UserStore port: Memory for tests and single-process use,
// Redis for shared deployments. Both hash with argon2id and own the
// failed-attempt lockout policy, so the engine only ever sees the
// resulting Locked flag.
package userstore
