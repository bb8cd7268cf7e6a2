package vault

import "time"

type TileStatus string

const (
	StatusLocked  TileStatus = "LOCKED" // reserved for pre-requisite gating
	StatusOpen    TileStatus = "OPEN"
	StatusClaimed TileStatus = "CLAIMED"
	StatusSolved  TileStatus = "SOLVED"
)

const (
	// LockDurationMS is how long a claim holds a tile before it goes stale.
	LockDurationMS int64 = 300000

	GridSize = 3

	// HeartbeatInterval drives session state re-evaluation; PollInterval
	// drives the slower vault refresh.
	HeartbeatInterval = 100 * time.Millisecond
	PollInterval      = 500 * time.Millisecond
)

// PuzzleData is the payload a tile carries: a binary solution grid and a
// display clue. SolutionGrid may be absent on partially seeded tiles; the
// client derives a fallback in that case.
type PuzzleData struct {
	Clue         string  `json:"clue,omitempty"`
	SolutionGrid [][]int `json:"solutionGrid,omitempty"`
}

type Tile struct {
	ID          string     `json:"id"`
	Status      TileStatus `json:"status"`
	ClaimedBy   string     `json:"claimedBy,omitempty"`
	LockExpiry  int64      `json:"lockExpiry,omitempty"` // unix ms, 0 when unset
	CompletedBy string     `json:"completedBy,omitempty"`
	CompletedAt int64      `json:"completedAt,omitempty"`
	Data        PuzzleData `json:"data"`
}

// LockExpired reports whether the tile holds a claim that has gone stale.
func (t *Tile) LockExpired(now int64) bool {
	return t.Status == StatusClaimed && t.LockExpiry != 0 && t.LockExpiry < now
}

// Vault is the full set of tiles for one play period.
type Vault struct {
	Date string `json:"date"`
	Grid []Tile `json:"grid"`
}

// DayKey returns the vault period key for the main daily game.
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// NowMS converts a time to the millisecond timestamps the lock protocol uses.
func NowMS(now time.Time) int64 {
	return now.UnixMilli()
}
