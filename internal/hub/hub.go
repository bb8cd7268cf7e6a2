// Package hub broadcasts vault snapshots to subscribed websocket clients.
// It runs as a single actor goroutine over a typed message inbox, so no
// locking is needed around the subscriber map.
package hub

import (
	"context"

	"github.com/jikoent/cipher-squad-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

type Subscribe struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

type Unsubscribe struct{ ClientID string }

type Publish struct {
	Vault types.VaultResponse
}

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (GetState) isHubMsg()    {}
func (Shutdown) isHubMsg()    {}

type Snapshot struct {
	Version int
	Vault   types.VaultResponse
}

// View reflects internal state for tests without data races.
type View struct {
	Version    int
	NumClients int
}

type Hub struct {
	inbox   chan HubMsg
	last    types.VaultResponse
	version int
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				// Register client + send the last snapshot immediately so a
				// fresh connection isn't blank until the next mutation.
				h.clients[msg.ClientID] = msg.Outbox
				if h.version > 0 {
					msg.Outbox <- Snapshot{Version: h.version, Vault: h.last}
				}

			case Unsubscribe:
				delete(h.clients, msg.ClientID)

			case Publish:
				h.last = msg.Vault
				h.version++
				h.broadcast(Snapshot{Version: h.version, Vault: h.last})

			case GetState:
				msg.Reply <- View{Version: h.version, NumClients: len(h.clients)}

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.cancel()
}

func (h *Hub) broadcast(snap Snapshot) {
	for id, ch := range h.clients {
		select {
		case ch <- snap:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(h.clients, id)
		}
	}
}
