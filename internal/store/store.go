// Package store is the authoritative repository for vault and tile rows.
// All writes go through conditional updates; precondition failure is
// signalled with a nil result, never an error.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jikoent/cipher-squad-backend/internal/vault"
)

// TileRow is the persisted shape of a tile. Data carries the client-facing
// puzzle payload; Solution is the server-side grid used for re-validation.
type TileRow struct {
	ID          string  `gorm:"primaryKey"`
	VaultID     string  `gorm:"index"`
	Status      string  `gorm:"index"`
	ClaimedBy   *string `gorm:"index"`
	LockExpiry  *int64
	CompletedBy *string
	CompletedAt *int64
	Data        string
	Solution    string
}

type VaultRow struct {
	ActiveDate string `gorm:"primaryKey"`
	Status     string
	CreatedAt  int64
}

type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.Named("store")}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&VaultRow{}, &TileRow{})
}

// FetchVault returns all tiles for the period. Read-only.
func (s *Store) FetchVault(ctx context.Context, periodKey string) (vault.Vault, error) {
	var rows []TileRow
	if err := s.db.WithContext(ctx).
		Where("vault_id = ?", periodKey).
		Order("id").
		Find(&rows).Error; err != nil {
		return vault.Vault{}, err
	}

	v := vault.Vault{Date: periodKey, Grid: make([]vault.Tile, 0, len(rows))}
	for i := range rows {
		v.Grid = append(v.Grid, rowToTile(&rows[i]))
	}
	return v, nil
}

// Claim performs the atomic conditional claim. It succeeds when the tile is
// OPEN, or CLAIMED with an expired lock (the store treats stale locks as
// implicitly open, so no sweep is required before reclaiming). The updated
// row comes back in the same statement via RETURNING; nil means the
// precondition failed.
func (s *Store) Claim(ctx context.Context, tileID, userID string, now int64) (*vault.Tile, error) {
	var rows []TileRow
	res := s.db.WithContext(ctx).Model(&rows).
		Clauses(clause.Returning{}).
		Where("id = ? AND (status = ? OR (status = ? AND lock_expiry < ?))",
			tileID, vault.StatusOpen, vault.StatusClaimed, now).
		Updates(map[string]any{
			"status":      string(vault.StatusClaimed),
			"claimed_by":  userID,
			"lock_expiry": now + vault.LockDurationMS,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, nil
	}
	t := rowToTile(&rows[0])
	return &t, nil
}

// Release clears ownership if the caller currently owns the tile. A no-op
// (not an error) otherwise.
func (s *Store) Release(ctx context.Context, tileID, userID string) error {
	return s.db.WithContext(ctx).Model(&TileRow{}).
		Where("id = ? AND claimed_by = ? AND status = ?", tileID, userID, vault.StatusClaimed).
		Updates(map[string]any{
			"status":      string(vault.StatusOpen),
			"claimed_by":  nil,
			"lock_expiry": nil,
		}).Error
}

// Solve transitions CLAIMED -> SOLVED when the caller owns the claim.
// Returns nil when the precondition failed (stale claim, wrong user,
// already solved). SOLVED is terminal: no predicate here ever matches a
// solved row again.
func (s *Store) Solve(ctx context.Context, tileID, userID string, now int64) (*vault.Tile, error) {
	var rows []TileRow
	res := s.db.WithContext(ctx).Model(&rows).
		Clauses(clause.Returning{}).
		Where("id = ? AND claimed_by = ? AND status = ?", tileID, userID, vault.StatusClaimed).
		Updates(map[string]any{
			"status":       string(vault.StatusSolved),
			"claimed_by":   nil,
			"lock_expiry":  nil,
			"completed_by": userID,
			"completed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, nil
	}
	t := rowToTile(&rows[0])
	return &t, nil
}

// GetActiveLockForUser returns the user's currently claimed, non-expired
// tile, or nil. Used to enforce one lock per user before granting a claim.
func (s *Store) GetActiveLockForUser(ctx context.Context, userID string, now int64) (*vault.Tile, error) {
	var row TileRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND claimed_by = ? AND lock_expiry > ?", vault.StatusClaimed, userID, now).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := rowToTile(&row)
	return &t, nil
}

// GetSolution loads the authoritative solution grid for a tile.
func (s *Store) GetSolution(ctx context.Context, tileID string) ([][]int, error) {
	var row TileRow
	err := s.db.WithContext(ctx).Select("id", "solution").Where("id = ?", tileID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Solution == "" {
		return nil, nil
	}
	var grid [][]int
	if err := json.Unmarshal([]byte(row.Solution), &grid); err != nil {
		s.log.Warn("malformed solution payload", zap.String("tile", tileID), zap.Error(err))
		return nil, nil
	}
	return grid, nil
}

// EnsureVault creates the vault row for a period if absent. Idempotent.
func (s *Store) EnsureVault(ctx context.Context, periodKey string, now int64) error {
	row := VaultRow{ActiveDate: periodKey, Status: "OPEN", CreatedAt: now}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// SeedTiles inserts tiles for a period, skipping ones that already exist.
func (s *Store) SeedTiles(ctx context.Context, rows []TileRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// Leaderboard counts solved tiles per user for the period, highest first.
func (s *Store) Leaderboard(ctx context.Context, periodKey string) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := s.db.WithContext(ctx).Raw(`
		SELECT completed_by AS user_id, COUNT(*) AS score
		FROM tile_rows
		WHERE vault_id = ? AND completed_by IS NOT NULL
		GROUP BY completed_by
		ORDER BY score DESC`, periodKey).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return entries, nil
}

func rowToTile(r *TileRow) vault.Tile {
	t := vault.Tile{
		ID:     r.ID,
		Status: vault.TileStatus(r.Status),
	}
	if r.ClaimedBy != nil {
		t.ClaimedBy = *r.ClaimedBy
	}
	if r.LockExpiry != nil {
		t.LockExpiry = *r.LockExpiry
	}
	if r.CompletedBy != nil {
		t.CompletedBy = *r.CompletedBy
	}
	if r.CompletedAt != nil {
		t.CompletedAt = *r.CompletedAt
	}
	if r.Data != "" {
		_ = json.Unmarshal([]byte(r.Data), &t.Data)
	}
	return t
}
