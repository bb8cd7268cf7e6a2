// Package mirror is the client-side cache of the last known vault state.
// The session's poll loop and UI intent handlers touch it from different
// goroutines, so access is guarded internally; the authoritative copy
// always wins on the next load.
package mirror

import (
	"sync"

	"github.com/jikoent/cipher-squad-backend/internal/vault"
)

// Patch is the shallow-merge primitive used for both optimistic application
// and rollback. Nil fields are left untouched; zero values are written
// explicitly, so clearing an owner is ClaimedBy: ptr("").
type Patch struct {
	Status      *vault.TileStatus
	ClaimedBy   *string
	LockExpiry  *int64
	CompletedBy *string
	CompletedAt *int64
}

type Store struct {
	mu    sync.RWMutex
	tiles map[string]*vault.Tile
}

func New() *Store {
	return &Store{tiles: make(map[string]*vault.Tile)}
}

// Load replaces the entire tile map with the snapshot. Full replacement,
// never a merge.
func (s *Store) Load(v vault.Vault) {
	tiles := make(map[string]*vault.Tile, len(v.Grid))
	for i := range v.Grid {
		t := v.Grid[i]
		tiles[t.ID] = &t
	}
	s.mu.Lock()
	s.tiles = tiles
	s.mu.Unlock()
}

func (s *Store) Get(tileID string) (vault.Tile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiles[tileID]
	if !ok {
		return vault.Tile{}, false
	}
	return *t, true
}

func (s *Store) ListAll() []vault.Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]vault.Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		out = append(out, *t)
	}
	return out
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}

// Update merges the patch into the stored tile. Returns the updated tile,
// or nil when the tile is unknown.
func (s *Store) Update(tileID string, p Patch) *vault.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiles[tileID]
	if !ok {
		return nil
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ClaimedBy != nil {
		t.ClaimedBy = *p.ClaimedBy
	}
	if p.LockExpiry != nil {
		t.LockExpiry = *p.LockExpiry
	}
	if p.CompletedBy != nil {
		t.CompletedBy = *p.CompletedBy
	}
	if p.CompletedAt != nil {
		t.CompletedAt = *p.CompletedAt
	}
	out := *t
	return &out
}

// FindActiveLockForUser scans for a CLAIMED tile owned by the user.
func (s *Store) FindActiveLockForUser(userID string) *vault.Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tiles {
		if t.Status == vault.StatusClaimed && t.ClaimedBy == userID {
			out := *t
			return &out
		}
	}
	return nil
}

// SweepExpiredLocks reopens every claimed tile whose lock has passed and
// returns their ids. Local-only: the backend treats expired locks as open
// on the next claim, so no release call is needed for correctness.
func (s *Store) SweepExpiredLocks(now int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []string
	for _, t := range s.tiles {
		if t.LockExpired(now) {
			t.Status = vault.StatusOpen
			t.ClaimedBy = ""
			t.LockExpiry = 0
			swept = append(swept, t.ID)
		}
	}
	return swept
}

// AllSolved reports vault completion; false for an empty store.
func (s *Store) AllSolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.tiles) == 0 {
		return false
	}
	for _, t := range s.tiles {
		if t.Status != vault.StatusSolved {
			return false
		}
	}
	return true
}
