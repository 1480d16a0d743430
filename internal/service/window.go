package service

import (
	"time"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// WindowGuard enforces the provider's customer-service window: free-form
// outbound messages are only allowed within a fixed duration after the last
// inbound message on the conversation.
type WindowGuard struct {
	window time.Duration
	now    func() time.Time
}

func NewWindowGuard(window time.Duration) *WindowGuard {
	return &WindowGuard{window: window, now: time.Now}
}

// NewWindowGuardAt builds a guard with an injected clock, for tests.
func NewWindowGuardAt(window time.Duration, now func() time.Time) *WindowGuard {
	return &WindowGuard{window: window, now: now}
}

// CanSendFreeForm reports whether a free-form message may be sent on the
// conversation right now. A conversation that never received an inbound
// message is always outside the window.
func (g *WindowGuard) CanSendFreeForm(conv *model.Conversation) bool {
	if conv == nil || conv.LastInboundAt == nil {
		return false
	}
	return g.now().Sub(*conv.LastInboundAt) < g.window
}
