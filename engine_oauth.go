package authcore

import (
	"context"
	"errors"
)

// LoginWithOAuth exchanges a provider token for a verified identity and
// establishes a session through the same issuance path as Login.
//
// A token the provider rejects returns ErrInvalidCredentials; a down or
// circuit-open provider returns ErrServiceUnavailable.
func (e *Engine) LoginWithOAuth(ctx context.Context, providerToken string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.oauth == nil {
		return nil, ErrEngineNotReady
	}

	var info UserInfo
	rejected := false
	err := e.callExternal(ctx, BreakerOAuthProvider, func(cctx context.Context) error {
		ui, err := e.oauth.Exchange(cctx, providerToken)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				rejected = true
				return nil
			}
			return err
		}
		info = ui
		return nil
	})
	if err != nil {
		e.metrics.Inc(MetricOAuthLoginFailure)
		return nil, err
	}

	if rejected || info.UserID == "" {
		e.metrics.Inc(MetricOAuthLoginFailure)
		e.emitAudit(AuditEvent{
			EventType: AuditLoginFailure,
			IP:        clientIPFromContext(ctx),
			Error:     "oauth token rejected",
		})
		return nil, ErrInvalidCredentials
	}

	result, err := e.establishSession(ctx, info, AuditOAuthLogin)
	if err != nil {
		e.metrics.Inc(MetricOAuthLoginFailure)
		return nil, err
	}
	e.metrics.Inc(MetricOAuthLoginSuccess)
	return result, nil
}
