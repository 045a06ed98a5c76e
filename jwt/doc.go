// Package jwt implements the engine's token codec: signed access, refresh,
// and service tokens with registered claims plus kind, email, and permission
// claims. The codec is pure (no I/O, no shared state) and collapses every
// parse failure into a single invalid result so callers cannot leak which
// check rejected a token.
package jwt
