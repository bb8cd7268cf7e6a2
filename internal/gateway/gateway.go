// Package gateway turns user intents into rollback-safe interactions with
// the authoritative store: optimistic local mutation, remote call, then
// commit or revert depending on the outcome.
package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jikoent/cipher-squad-backend/internal/mirror"
	"github.com/jikoent/cipher-squad-backend/internal/puzzle"
	"github.com/jikoent/cipher-squad-backend/internal/vault"
)

// Remote is the authoritative backend as seen by the client. Precondition
// failures surface as *APIError with the documented status codes.
type Remote interface {
	FetchVault(ctx context.Context) (vault.Vault, error)
	Claim(ctx context.Context, tileID string) (*vault.Tile, error)
	Release(ctx context.Context, tileID string) error
	Solve(ctx context.Context, tileID string, solution [][]int) (string, error)
}

type Gateway struct {
	userID string
	mirror *mirror.Store
	remote Remote
	clock  func() int64 // unix ms
	log    *zap.Logger

	sf singleflight.Group

	// In-flight markers: one token per tile with an optimistic mutation
	// awaiting its remote verdict. A late response only reverts state it
	// still owns.
	mu      sync.Mutex
	seq     uint64
	pending map[string]uint64
}

func New(userID string, m *mirror.Store, remote Remote, clock func() int64, log *zap.Logger) *Gateway {
	return &Gateway{
		userID:  userID,
		mirror:  m,
		remote:  remote,
		clock:   clock,
		log:     log.Named("gateway"),
		pending: make(map[string]uint64),
	}
}

// ClaimTile acquires a time-limited lock on an open tile.
func (g *Gateway) ClaimTile(ctx context.Context, tileID string) error {
	if g.userID == "" {
		return actionErr(CodeUserNotInitialized)
	}

	tile, ok := g.mirror.Get(tileID)
	if !ok {
		return actionErr(CodeTileNotFound)
	}
	if tile.Status != vault.StatusOpen {
		return actionErr(CodeTileNotOpen)
	}

	now := g.clock()
	token := g.begin(tileID)
	g.mirror.Update(tileID, claimedPatch(g.userID, now+vault.LockDurationMS))

	if _, err := g.remote.Claim(ctx, tileID); err != nil {
		if g.finish(tileID, token) {
			g.mirror.Update(tileID, openPatch())
		}
		mapped := mapRemoteError(err)
		g.log.Warn("claim rejected", zap.String("tile", tileID), zap.String("code", string(mapped.Code)))
		return mapped
	}

	// Optimistic state already matches the server's result, modulo clock
	// skew on the expiry. Acceptable; the next fetch reconciles.
	g.finish(tileID, token)
	g.log.Info("tile claimed", zap.String("tile", tileID))
	return nil
}

// SolveTile validates the proposed grid locally, then submits it. The local
// check is an optimization only; the server's verdict is final.
func (g *Gateway) SolveTile(ctx context.Context, tileID string, proposed [][]int) (string, error) {
	if g.userID == "" {
		return "", actionErr(CodeUserNotInitialized)
	}

	tile, ok := g.mirror.Get(tileID)
	if !ok {
		return "", actionErr(CodeTileNotFound)
	}
	if tile.Status != vault.StatusClaimed || tile.ClaimedBy != g.userID {
		return "", actionErr(CodeInvalidClaimOrOwner)
	}

	if verr := puzzle.ValidateSolution(tile.Data.SolutionGrid, proposed); verr != nil {
		return "", &ActionError{Code: CodeInvalidSolution, Reason: verr.Error()}
	}

	now := g.clock()
	token := g.begin(tileID)
	g.mirror.Update(tileID, solvedPatch(g.userID, now))

	reward, err := g.remote.Solve(ctx, tileID, proposed)
	if err != nil {
		if g.finish(tileID, token) {
			// Revert to claimed-by-us with a fresh expiry so the player can
			// retry without losing the tile.
			g.mirror.Update(tileID, claimedPatch(g.userID, g.clock()+vault.LockDurationMS))
		}
		mapped := mapRemoteError(err)
		g.log.Warn("solve rejected", zap.String("tile", tileID), zap.String("code", string(mapped.Code)))
		return "", mapped
	}

	g.finish(tileID, token)
	g.log.Info("tile solved", zap.String("tile", tileID))
	return reward, nil
}

// ReleaseTile reopens the tile locally and fires the remote release. A
// remote failure is reported but never rolls the local state back: staying
// unlocked is the safer bias, and the next fetch reconciles either way.
func (g *Gateway) ReleaseTile(ctx context.Context, tileID string) error {
	g.mirror.Update(tileID, openPatch())

	if err := g.remote.Release(ctx, tileID); err != nil {
		mapped := mapRemoteError(err)
		g.log.Warn("release failed remotely", zap.String("tile", tileID), zap.String("code", string(mapped.Code)))
		return mapped
	}
	return nil
}

// FetchVault pulls the full authoritative snapshot into the mirror.
// Concurrent refreshes collapse into one request.
func (g *Gateway) FetchVault(ctx context.Context) error {
	_, err, _ := g.sf.Do("vault", func() (any, error) {
		v, err := g.remote.FetchVault(ctx)
		if err != nil {
			return nil, err
		}
		normalizeVault(&v)
		g.mirror.Load(v)
		return nil, nil
	})
	if err != nil {
		return mapRemoteError(err)
	}
	return nil
}

// normalizeVault fills in deterministic fallback payloads for tiles whose
// puzzle data came back incomplete, so the UI never renders a broken grid.
func normalizeVault(v *vault.Vault) {
	for i := range v.Grid {
		t := &v.Grid[i]
		if len(t.Data.SolutionGrid) == 0 {
			t.Data.SolutionGrid = FallbackGrid(t.ID)
		}
		if t.Data.Clue == "" {
			t.Data.Clue = "Decode tile " + t.ID
		}
	}
}

func (g *Gateway) begin(tileID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.pending[tileID] = g.seq
	return g.seq
}

// finish clears the in-flight marker and reports whether this caller still
// owned it. A stale token means a newer operation took over the tile.
func (g *Gateway) finish(tileID string, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending[tileID] != token {
		return false
	}
	delete(g.pending, tileID)
	return true
}

// claimedPatch also clears the completer fields: a CLAIMED tile never
// carries them, and the solve-rollback path reverts an optimistic
// solvedPatch that set both.
func claimedPatch(userID string, expiry int64) mirror.Patch {
	status := vault.StatusClaimed
	empty := ""
	zero := int64(0)
	return mirror.Patch{
		Status:      &status,
		ClaimedBy:   &userID,
		LockExpiry:  &expiry,
		CompletedBy: &empty,
		CompletedAt: &zero,
	}
}

func openPatch() mirror.Patch {
	status := vault.StatusOpen
	empty := ""
	zero := int64(0)
	return mirror.Patch{Status: &status, ClaimedBy: &empty, LockExpiry: &zero}
}

func solvedPatch(userID string, now int64) mirror.Patch {
	status := vault.StatusSolved
	empty := ""
	zero := int64(0)
	return mirror.Patch{
		Status:      &status,
		ClaimedBy:   &empty,
		LockExpiry:  &zero,
		CompletedBy: &userID,
		CompletedAt: &now,
	}
}
