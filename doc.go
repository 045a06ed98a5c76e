// Package authcore is an embeddable authentication engine: JWT access
// and refresh tokens, single-use refresh rotation with replay
// detection, token blacklisting, a session registry, and circuit
// breakers around every external dependency.
//
// The engine is transport-agnostic. It authenticates and reports who a
// token belongs to; HTTP handlers, middleware, and authorization policy
// are the caller's business.
//
// Build one with the Builder:
//
//	engine, err := authcore.New().
//		WithConfig(authcore.PresetDevelopment(key)).
//		WithUserStore(users).
//		Build()
//
// Without WithRedis the revocation and session stores are in-memory and
// the engine is single-process; with it, both are shared.
package authcore
