// Package seed creates the daily vault. Seeding is idempotent: the vault
// row and every tile insert ignore conflicts, so reseeding an active day
// never clobbers live claims.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jikoent/cipher-squad-backend/internal/store"
	"github.com/jikoent/cipher-squad-backend/internal/vault"
)

// patterns are the 3x3 vault's tile solutions, one 5x5 glyph per tile.
// Together they form the day's master image.
var patterns = [][][]int{
	{ // plus
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
		{1, 1, 1, 1, 1},
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
	},
	{ // ring
		{0, 1, 1, 1, 0},
		{1, 0, 0, 0, 1},
		{1, 0, 0, 0, 1},
		{1, 0, 0, 0, 1},
		{0, 1, 1, 1, 0},
	},
	{ // stairs
		{1, 0, 0, 0, 0},
		{1, 1, 0, 0, 0},
		{0, 1, 1, 0, 0},
		{0, 0, 1, 1, 0},
		{0, 0, 0, 1, 1},
	},
	{ // heart
		{0, 1, 0, 1, 0},
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
		{0, 1, 1, 1, 0},
		{0, 0, 1, 0, 0},
	},
	{ // checker
		{1, 0, 1, 0, 1},
		{0, 1, 0, 1, 0},
		{1, 0, 1, 0, 1},
		{0, 1, 0, 1, 0},
		{1, 0, 1, 0, 1},
	},
	{ // arrow
		{0, 0, 1, 0, 0},
		{0, 1, 1, 1, 0},
		{1, 0, 1, 0, 1},
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
	},
	{ // frame
		{1, 1, 1, 1, 1},
		{1, 0, 0, 0, 1},
		{1, 0, 1, 0, 1},
		{1, 0, 0, 0, 1},
		{1, 1, 1, 1, 1},
	},
	{ // diamond
		{0, 0, 1, 0, 0},
		{0, 1, 0, 1, 0},
		{1, 0, 0, 0, 1},
		{0, 1, 0, 1, 0},
		{0, 0, 1, 0, 0},
	},
	{ // key
		{0, 1, 1, 0, 0},
		{1, 0, 0, 1, 0},
		{0, 1, 1, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 1, 1, 0},
	},
}

type Seeder struct {
	store *store.Store
	log   *zap.Logger
}

func New(s *store.Store, log *zap.Logger) *Seeder {
	return &Seeder{store: s, log: log.Named("seed")}
}

// SeedToday ensures today's vault exists with its full tile grid. Returns
// the number of tiles in the grid.
func (s *Seeder) SeedToday(ctx context.Context, now time.Time) (int, error) {
	date := vault.DayKey(now)
	nowMS := vault.NowMS(now)

	if err := s.store.EnsureVault(ctx, date, nowMS); err != nil {
		return 0, err
	}

	rows := make([]store.TileRow, 0, len(patterns))
	for i, grid := range patterns {
		data, err := json.Marshal(vault.PuzzleData{
			Clue:         fmt.Sprintf("Daily clue %d", i+1),
			SolutionGrid: grid,
		})
		if err != nil {
			return 0, err
		}
		solution, err := json.Marshal(grid)
		if err != nil {
			return 0, err
		}
		rows = append(rows, store.TileRow{
			// Date-scoped ids keep day N's tiles distinct from day N+1's.
			ID:       fmt.Sprintf("%s-t%d", date, i+1),
			VaultID:  date,
			Status:   string(vault.StatusOpen),
			Data:     string(data),
			Solution: string(solution),
		})
	}

	if err := s.store.SeedTiles(ctx, rows); err != nil {
		return 0, err
	}

	s.log.Info("vault seeded", zap.String("date", date), zap.Int("tiles", len(rows)))
	return len(rows), nil
}
