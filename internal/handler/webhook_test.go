package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/whatsapp-server-go/internal/debug"
)

type stubProcessor struct {
	mu     sync.Mutex
	bodies [][]byte
	done   chan struct{}
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{done: make(chan struct{}, 1)}
}

func (s *stubProcessor) ProcessDelivery(ctx context.Context, body []byte) error {
	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *stubProcessor) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was never processed")
	}
}

func TestWebhookVerify(t *testing.T) {
	h := NewWebhookHandler(newStubProcessor(), "verify-me", nil)

	t.Run("echoes the challenge on a valid handshake", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()

		h.Verify(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12345", rec.Body.String())
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()

		h.Verify(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects a missing mode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/whatsapp/webhook?hub.verify_token=verify-me", nil)
		rec := httptest.NewRecorder()

		h.Verify(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWebhookReceive(t *testing.T) {
	t.Run("acknowledges immediately and processes asynchronously", func(t *testing.T) {
		processor := newStubProcessor()
		ring := debug.NewRing(10)
		h := NewWebhookHandler(processor, "verify-me", ring)

		payload := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
		req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", bytes.NewReader(payload))
		rec := httptest.NewRecorder()

		h.Receive(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		processor.wait(t)
		require.Len(t, processor.bodies, 1)
		assert.Equal(t, payload, processor.bodies[0])
	})

	t.Run("records the raw payload in the debug ring", func(t *testing.T) {
		processor := newStubProcessor()
		ring := debug.NewRing(10)
		h := NewWebhookHandler(processor, "verify-me", ring)

		payload := []byte(`{"object":"whatsapp_business_account"}`)
		req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", bytes.NewReader(payload))
		rec := httptest.NewRecorder()

		h.Receive(rec, req)
		processor.wait(t)

		snap := ring.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, payload, []byte(snap[0].Payload))
	})
}
