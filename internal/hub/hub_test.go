package hub

import (
	"context"
	"testing"
	"time"

	"github.com/jikoent/cipher-squad-backend/pkg/types"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestHub_Publish_BroadcastsAndVersionIncrements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx)

	out := make(chan Snapshot, 4)
	h.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}

	h.Inbox() <- Publish{Vault: types.VaultResponse{Date: "2026-09-01"}}
	snap := recvSnapshot(t, out, time.Second)
	if snap.Version != 1 || snap.Vault.Date != "2026-09-01" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	h.Inbox() <- Publish{Vault: types.VaultResponse{Date: "2026-09-01"}}
	snap = recvSnapshot(t, out, time.Second)
	if snap.Version != 2 {
		t.Fatalf("expected version 2, got %d", snap.Version)
	}
}

func TestHub_SubscribeAfterPublish_GetsLastSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx)

	h.Inbox() <- Publish{Vault: types.VaultResponse{Date: "2026-09-01"}}

	out := make(chan Snapshot, 1)
	h.Inbox() <- Subscribe{ClientID: "late", Outbox: out}
	snap := recvSnapshot(t, out, time.Second)
	if snap.Version != 1 {
		t.Fatalf("expected replayed snapshot, got %+v", snap)
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx)

	// Unbuffered outbox with no reader: the first broadcast drops the client.
	out := make(chan Snapshot)
	h.Inbox() <- Subscribe{ClientID: "slow", Outbox: out}
	h.Inbox() <- Publish{Vault: types.VaultResponse{}}

	reply := make(chan View, 1)
	h.Inbox() <- GetState{Reply: reply}
	v := recvView(t, reply, time.Second)
	if v.NumClients != 0 {
		t.Fatalf("expected slow client dropped, got %d clients", v.NumClients)
	}
}
