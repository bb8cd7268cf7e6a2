// Package httpapi exposes the tile-lock surface consumed by the game client.
// Handlers enforce identity and the one-lock-per-user business rule; the
// race-safety of claim/solve lives in the store's conditional updates.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jikoent/cipher-squad-backend/internal/auth"
	"github.com/jikoent/cipher-squad-backend/internal/hub"
	"github.com/jikoent/cipher-squad-backend/internal/puzzle"
	"github.com/jikoent/cipher-squad-backend/internal/store"
	"github.com/jikoent/cipher-squad-backend/internal/vault"
	"github.com/jikoent/cipher-squad-backend/pkg/types"
)

// VaultStore is the authoritative tile repository the handlers call. All
// mutations are conditional: a nil tile result means the precondition
// failed, an error means infrastructure trouble.
type VaultStore interface {
	FetchVault(ctx context.Context, periodKey string) (vault.Vault, error)
	Claim(ctx context.Context, tileID, userID string, now int64) (*vault.Tile, error)
	Release(ctx context.Context, tileID, userID string) error
	Solve(ctx context.Context, tileID, userID string, now int64) (*vault.Tile, error)
	GetActiveLockForUser(ctx context.Context, userID string, now int64) (*vault.Tile, error)
	GetSolution(ctx context.Context, tileID string) ([][]int, error)
	Leaderboard(ctx context.Context, periodKey string) ([]store.LeaderboardEntry, error)
}

type Seeder interface {
	SeedToday(ctx context.Context, now time.Time) (int, error)
}

type Deps struct {
	Store    VaultStore
	Hub      *hub.Hub
	Seeder   Seeder
	AdminKey string
	Log      *zap.Logger
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func GetVault(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := d.Store.FetchVault(r.Context(), vault.DayKey(d.now()))
		if err != nil {
			d.Log.Error("fetch vault failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}
		writeJSON(w, http.StatusOK, types.VaultResponse{Date: v.Date, Grid: v.Grid})
	}
}

func ClaimTile(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}

		var req types.ClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TileID == "" {
			writeError(w, http.StatusBadRequest, "MISSING_TILE_ID")
			return
		}

		now := vault.NowMS(d.now())

		// Business rule, not race safety: one active lock per user.
		existing, err := d.Store.GetActiveLockForUser(r.Context(), userID, now)
		if err != nil {
			d.Log.Error("lock lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}
		if existing != nil {
			writeError(w, http.StatusTooManyRequests, "USER_HAS_ACTIVE_LOCK")
			return
		}

		tile, err := d.Store.Claim(r.Context(), req.TileID, userID, now)
		if err != nil {
			d.Log.Error("claim failed", zap.String("tile", req.TileID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}
		if tile == nil {
			writeError(w, http.StatusConflict, "TILE_NOT_OPEN")
			return
		}

		d.Log.Info("tile claimed", zap.String("tile", tile.ID), zap.String("user", userID))
		d.publishSnapshot(r.Context())
		writeJSON(w, http.StatusOK, types.TileResponse{Success: true, Data: *tile})
	}
}

func ReleaseTile(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}

		var req types.ReleaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TileID == "" {
			writeError(w, http.StatusBadRequest, "MISSING_TILE_ID")
			return
		}

		// Conditional on ownership; releasing someone else's tile is a no-op.
		if err := d.Store.Release(r.Context(), req.TileID, userID); err != nil {
			d.Log.Error("release failed", zap.String("tile", req.TileID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}

		d.publishSnapshot(r.Context())
		writeJSON(w, http.StatusOK, types.OKResponse{Success: true})
	}
}

func SolveTile(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}

		var req types.SolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TileID == "" {
			writeError(w, http.StatusBadRequest, "MISSING_TILE_ID")
			return
		}
		if req.Solution == nil {
			writeError(w, http.StatusBadRequest, "MISSING_SOLUTION")
			return
		}

		// The client validates locally as an optimization; this check is the
		// authoritative verdict.
		expected, err := d.Store.GetSolution(r.Context(), req.TileID)
		if err != nil {
			d.Log.Error("solution lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}
		if expected != nil {
			if verr := puzzle.ValidateSolution(expected, req.Solution); verr != nil {
				writeError(w, http.StatusBadRequest, "INVALID_SOLUTION")
				return
			}
		}

		tile, err := d.Store.Solve(r.Context(), req.TileID, userID, vault.NowMS(d.now()))
		if err != nil {
			d.Log.Error("solve failed", zap.String("tile", req.TileID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}
		if tile == nil {
			writeError(w, http.StatusForbidden, "INVALID_CLAIM_OR_OWNER")
			return
		}

		d.Log.Info("tile solved", zap.String("tile", tile.ID), zap.String("user", userID))
		d.publishSnapshot(r.Context())
		writeJSON(w, http.StatusOK, types.SolveResponse{Success: true, Data: types.SolveResult{Reward: "SHARD_FOUND"}})
	}
}

func GetLeaderboard(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := d.Store.Leaderboard(r.Context(), vault.DayKey(d.now()))
		if err != nil {
			d.Log.Error("leaderboard failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "STORE_ERROR")
			return
		}
		out := make([]types.LeaderboardEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, types.LeaderboardEntry{UserID: e.UserID, Score: e.Score})
		}
		writeJSON(w, http.StatusOK, types.LeaderboardResponse{Success: true, Data: out})
	}
}

func AdminSeed(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.AdminKey != "" && r.Header.Get("X-Admin-Key") != d.AdminKey {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED_ADMIN")
			return
		}

		now := d.now()
		n, err := d.Seeder.SeedToday(r.Context(), now)
		if err != nil {
			d.Log.Error("seed failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "SEED_ERROR")
			return
		}

		d.publishSnapshot(r.Context())
		writeJSON(w, http.StatusOK, types.OKResponse{
			Success: true,
			Message: fmt.Sprintf("Seeded vault for %s with %d tiles", vault.DayKey(now), n),
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// publishSnapshot pushes a fresh vault to websocket subscribers. Best
// effort; polling remains the baseline.
func (d Deps) publishSnapshot(ctx context.Context) {
	if d.Hub == nil {
		return
	}
	v, err := d.Store.FetchVault(ctx, vault.DayKey(d.now()))
	if err != nil {
		d.Log.Warn("snapshot fetch failed", zap.Error(err))
		return
	}
	select {
	case d.Hub.Inbox() <- hub.Publish{Vault: types.VaultResponse{Date: v.Date, Grid: v.Grid}}:
	default:
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, types.ErrorResponse{Success: false, Error: code})
}
