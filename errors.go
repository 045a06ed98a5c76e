package authcore

import "errors"

var (
	// ErrInvalidCredentials covers unknown identifier and wrong password
	// alike, so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the account is locked out.
	ErrAccountLocked = errors.New("account locked")
	// ErrTokenInvalid is the uniform rejection for any unusable token:
	// malformed, expired, tampered, wrong kind, or blacklisted.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenReused is returned when a refresh token's single use has
	// already been spent. Callers must not retry with the same token.
	ErrTokenReused = errors.New("refresh token already used")
	// ErrServiceUnavailable is returned when a dependency is down or its
	// circuit is open.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrExternalTimeout marks a dependency call that exceeded
	// Config.External.CallTimeout. Always wrapped in ErrServiceUnavailable.
	ErrExternalTimeout = errors.New("external call timed out")
	// ErrUserNotFound is returned by UserStore implementations; the engine
	// folds it into ErrInvalidCredentials before it crosses the API.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is an exported constant for session lookups.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEngineNotReady is returned when a required collaborator was not
	// wired at build time.
	ErrEngineNotReady = errors.New("engine not initialized")
)
