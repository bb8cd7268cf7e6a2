// Package ws streams vault snapshots to browser clients. Mutations stay on
// the HTTP surface; the socket is one-way UI freshness on top of polling.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jikoent/cipher-squad-backend/internal/hub"
	"github.com/jikoent/cipher-squad-backend/pkg/types"
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Telegram WebApps embed the page from telegram.org origins.
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan hub.Snapshot, 8)
		clientID := uuid.NewString()

		h.Inbox() <- hub.Subscribe{ClientID: clientID, Outbox: out}
		defer func() { h.Inbox() <- hub.Unsubscribe{ClientID: clientID} }()

		log.Debug("client connected", zap.String("client", clientID))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{Type: "VaultSnapshot", Version: snap.Version, Vault: &snap.Vault}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop: clients never send commands; this only detects close.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}
		}
	}
}
