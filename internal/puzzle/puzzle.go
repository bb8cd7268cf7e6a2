// Package puzzle holds the pure nonogram logic: solution validation and
// clue generation. Input + state -> output, no external dependencies.
package puzzle

import "errors"

// Cell values. The MARKED annotation is a UI convenience for "definitely
// empty"; validation treats it the same as empty on both sides.
const (
	CellEmpty  = 0
	CellFilled = 1
	CellMarked = 2
)

var ErrMissingSolution = errors.New("MISSING_SOLUTION_DEFINITION")
var ErrInvalidInput = errors.New("INVALID_INPUT_FORMAT")
var ErrDimensionMismatch = errors.New("DIMENSION_MISMATCH")
var ErrIncorrectSolution = errors.New("INCORRECT_SOLUTION")

// ValidateSolution compares a proposed grid against the expected one.
// Returns nil when the proposal is correct. Validation is binary: any
// non-filled value counts as empty regardless of annotation.
func ValidateSolution(expected, proposed [][]int) error {
	if len(expected) == 0 {
		return ErrMissingSolution
	}
	if proposed == nil {
		return ErrInvalidInput
	}

	flatExpected := flatten(expected)
	flatProposed := flatten(proposed)

	if len(flatExpected) != len(flatProposed) {
		return ErrDimensionMismatch
	}

	for i := range flatExpected {
		if normalize(flatProposed[i]) != normalize(flatExpected[i]) {
			return ErrIncorrectSolution
		}
	}
	return nil
}

// GenerateClues run-length-encodes consecutive filled cells along each row
// and each column. An all-empty line yields a single clue of 0.
func GenerateClues(grid [][]int) (rows, cols [][]int) {
	if len(grid) == 0 {
		return [][]int{}, [][]int{}
	}

	rows = make([][]int, 0, len(grid))
	for _, row := range grid {
		rows = append(rows, rle(row))
	}

	// Ragged rows are tolerated: width is the longest row, and missing
	// cells read as empty.
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	cols = make([][]int, 0, width)
	for x := 0; x < width; x++ {
		col := make([]int, 0, len(grid))
		for y := 0; y < len(grid); y++ {
			v := CellEmpty
			if x < len(grid[y]) {
				v = grid[y][x]
			}
			col = append(col, v)
		}
		cols = append(cols, rle(col))
	}
	return rows, cols
}

func normalize(v int) int {
	if v == CellFilled {
		return CellFilled
	}
	return CellEmpty
}

func flatten(grid [][]int) []int {
	n := 0
	for _, row := range grid {
		n += len(row)
	}
	flat := make([]int, 0, n)
	for _, row := range grid {
		flat = append(flat, row...)
	}
	return flat
}

// rle encodes one line: [0,1,1,0,1] -> [2,1]; an empty line -> [0].
func rle(line []int) []int {
	out := []int{}
	count := 0
	for _, v := range line {
		if v == CellFilled {
			count++
			continue
		}
		if count > 0 {
			out = append(out, count)
		}
		count = 0
	}
	if count > 0 {
		out = append(out, count)
	}
	if len(out) == 0 {
		return []int{0}
	}
	return out
}
