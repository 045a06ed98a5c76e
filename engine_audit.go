package authcore

import (
	"context"
	"time"
)

// emitAudit queues an event without ever blocking the caller. A nil
// dispatcher (audit disabled) makes this a no-op.
func (e *Engine) emitAudit(event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(context.Background(), event)
}

// AuditDropped reports how many audit events were discarded under
// backpressure since the engine started.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}
