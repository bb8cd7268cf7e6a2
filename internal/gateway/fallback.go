package gateway

import "hash/fnv"

const fallbackSize = 5

// FallbackGrid derives a stable 5x5 binary grid from a tile id. Used when
// the server payload is missing its solution data; every client derives the
// same grid for the same tile.
func FallbackGrid(tileID string) [][]int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tileID))
	state := h.Sum64()

	grid := make([][]int, fallbackSize)
	filled := 0
	for y := range grid {
		row := make([]int, fallbackSize)
		for x := range row {
			state = state*6364136223846793005 + 1442695040888963407
			if state>>62&1 == 1 {
				row[x] = 1
				filled++
			}
		}
		grid[y] = row
	}

	// A blank puzzle is unsolvable to present; pin one cell.
	if filled == 0 {
		grid[fallbackSize/2][fallbackSize/2] = 1
	}
	return grid
}
