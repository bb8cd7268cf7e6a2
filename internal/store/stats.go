package store

import "context"

// DailyStats is the per-period activity summary reported upstream.
// DAU is a lower bound: distinct users who currently hold or have completed
// a tile today.
type DailyStats struct {
	Date             string `json:"date"`
	DailyActiveUsers int    `json:"daily_active_users"`
	TilesSolved      int    `json:"tiles_solved"`
	TilesClaimed     int    `json:"tiles_claimed"`
}

func (s *Store) GetDailyStats(ctx context.Context, periodKey string) (DailyStats, error) {
	stats := DailyStats{Date: periodKey}

	var dau int
	err := s.db.WithContext(ctx).Raw(`
		SELECT COUNT(DISTINCT user_id) FROM (
			SELECT claimed_by AS user_id FROM tile_rows WHERE vault_id = ? AND claimed_by IS NOT NULL
			UNION
			SELECT completed_by AS user_id FROM tile_rows WHERE vault_id = ? AND completed_by IS NOT NULL
		) AS active`, periodKey, periodKey).Scan(&dau).Error
	if err != nil {
		return stats, err
	}
	stats.DailyActiveUsers = dau

	var counts struct {
		Solved  int
		Claimed int
	}
	err = s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN status = 'SOLVED' THEN 1 ELSE 0 END), 0) AS solved,
			COALESCE(SUM(CASE WHEN status = 'CLAIMED' THEN 1 ELSE 0 END), 0) AS claimed
		FROM tile_rows WHERE vault_id = ?`, periodKey).Scan(&counts).Error
	if err != nil {
		return stats, err
	}
	stats.TilesSolved = counts.Solved
	stats.TilesClaimed = counts.Claimed
	return stats, nil
}
