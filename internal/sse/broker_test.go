package sse

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	redisclient "github.com/clinicdesk/whatsapp-server-go/internal/redis"
)

// go-redis dials lazily, so an unreachable address works for tests that
// exercise subscription bookkeeping without publishing.
func testBroker() *Broker {
	client := &redisclient.Client{Client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})}
	return NewBroker(client)
}

func (b *Broker) pumpCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func TestBrokerSubscribe(t *testing.T) {
	t.Run("shares one channel pump per tenant", func(t *testing.T) {
		b := testBroker()
		defer b.Close()

		c1 := b.Subscribe("tenant-1")
		c2 := b.Subscribe("tenant-1")

		assert.NotEqual(t, c1.ID, c2.ID)
		assert.Equal(t, 2, b.ClientCount("tenant-1"))
		assert.Equal(t, 1, b.pumpCount())
	})

	t.Run("stops the pump when the last client leaves", func(t *testing.T) {
		b := testBroker()
		defer b.Close()

		c1 := b.Subscribe("tenant-1")
		c2 := b.Subscribe("tenant-1")

		b.Unsubscribe(c1)
		assert.Equal(t, 1, b.pumpCount())

		b.Unsubscribe(c2)
		assert.Equal(t, 0, b.ClientCount("tenant-1"))
		assert.Equal(t, 0, b.pumpCount())
	})

	t.Run("resubscribing after a drain starts a single fresh pump", func(t *testing.T) {
		b := testBroker()
		defer b.Close()

		c1 := b.Subscribe("tenant-1")
		b.Unsubscribe(c1)

		b.Subscribe("tenant-1")
		assert.Equal(t, 1, b.ClientCount("tenant-1"))
		assert.Equal(t, 1, b.pumpCount())
	})
}

func TestBrokerBroadcast(t *testing.T) {
	t.Run("delivers to every client of the tenant", func(t *testing.T) {
		b := testBroker()
		defer b.Close()

		c1 := b.Subscribe("tenant-1")
		c2 := b.Subscribe("tenant-1")
		other := b.Subscribe("tenant-2")

		b.broadcast("tenant-1", Event{Type: "message.created", Data: json.RawMessage(`{}`)})

		assert.Equal(t, "message.created", (<-c1.Events).Type)
		assert.Equal(t, "message.created", (<-c2.Events).Type)
		assert.Empty(t, other.Events)
	})
}

func TestBrokerClose(t *testing.T) {
	t.Run("releases every client and pump", func(t *testing.T) {
		b := testBroker()

		c := b.Subscribe("tenant-1")
		b.Close()

		select {
		case <-c.Done:
		default:
			t.Fatal("expected client Done to be closed")
		}
		assert.Equal(t, 0, b.ClientCount("tenant-1"))
		assert.Equal(t, 0, b.pumpCount())
	})
}
