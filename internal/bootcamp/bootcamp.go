// Package bootcamp holds the static tutorial vault. Bootcamp play is fully
// offline: the session loads this content into the mirror and never calls
// the remote surface.
package bootcamp

import "github.com/jikoent/cipher-squad-backend/internal/vault"

const VaultID = "bootcamp_v1"

// Vault returns a fresh copy of the 2x2 tutorial grid.
func Vault() vault.Vault {
	return vault.Vault{
		Date: VaultID,
		Grid: []vault.Tile{
			{
				ID:     "b_0_0",
				Status: vault.StatusOpen,
				Data: vault.PuzzleData{
					Clue: "1",
					SolutionGrid: [][]int{
						{0, 0, 1, 0, 0},
						{0, 1, 1, 1, 0},
						{1, 1, 1, 1, 1},
						{0, 1, 1, 1, 0},
						{0, 0, 1, 0, 0},
					},
				},
			},
			{
				ID:     "b_0_1",
				Status: vault.StatusOpen,
				Data: vault.PuzzleData{
					Clue: "2",
					SolutionGrid: [][]int{
						{1, 1, 1, 1, 0},
						{1, 0, 0, 0, 1},
						{1, 0, 0, 0, 1},
						{1, 0, 0, 0, 1},
						{1, 1, 1, 1, 0},
					},
				},
			},
			{
				ID:     "b_1_0",
				Status: vault.StatusOpen,
				Data: vault.PuzzleData{
					Clue: "3",
					SolutionGrid: [][]int{
						{1, 1, 1, 1, 0},
						{0, 0, 0, 1, 0},
						{1, 1, 1, 1, 0},
						{0, 0, 0, 1, 0},
						{1, 1, 1, 1, 0},
					},
				},
			},
			{
				ID:     "b_1_1",
				Status: vault.StatusOpen,
				Data: vault.PuzzleData{
					Clue: "4",
					SolutionGrid: [][]int{
						{1, 0, 0, 1, 0},
						{1, 0, 0, 1, 0},
						{1, 1, 1, 1, 0},
						{0, 0, 0, 1, 0},
						{0, 0, 0, 1, 0},
					},
				},
			},
		},
	}
}
