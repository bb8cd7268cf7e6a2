package types

import "github.com/jikoent/cipher-squad-backend/internal/vault"

// Client -> Server request bodies for the vault surface.

type ClaimRequest struct {
	TileID string `json:"tileId"`
}

type ReleaseRequest struct {
	TileID string `json:"tileId"`
}

type SolveRequest struct {
	TileID   string  `json:"tileId"`
	Solution [][]int `json:"solution"`
}

// Server -> Client responses.

type VaultResponse struct {
	Date string       `json:"date"`
	Grid []vault.Tile `json:"grid"`
}

type TileResponse struct {
	Success bool       `json:"success"`
	Data    vault.Tile `json:"data"`
}

type SolveResult struct {
	Reward string `json:"reward"`
}

type SolveResponse struct {
	Success bool        `json:"success"`
	Data    SolveResult `json:"data"`
}

type OKResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

type LeaderboardResponse struct {
	Success bool               `json:"success"`
	Data    []LeaderboardEntry `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
