package board

import (
	"math"

	"github.com/wfunc/memoryserver/models"
)

// MaxDimension caps rows and columns of every board.
const MaxDimension = 24

// Level is a freshly generated board pair.
type Level struct {
	Solution [][]bool
	Guesses  [][]models.Cell
	// Target is the number of true cells in Solution.
	Target int
}

// Generator places target tiles using an injected RNG.
type Generator struct {
	rng RNG
}

func NewGenerator(rng RNG) *Generator {
	if rng == nil {
		rng = NewRandom()
	}
	return &Generator{rng: rng}
}

// TargetCount is ceil(rows*columns*pct), bounded by the number of cells.
func TargetCount(size models.BoardSize, pct float64) int {
	cells := size.Rows * size.Columns
	if cells <= 0 || pct <= 0 {
		return 0
	}
	target := int(math.Ceil(float64(cells) * pct))
	if target > cells {
		target = cells
	}
	return target
}

// Clamp limits both dimensions to MaxDimension.
func Clamp(size models.BoardSize) models.BoardSize {
	return models.BoardSize{
		Rows:    min(size.Rows, MaxDimension),
		Columns: min(size.Columns, MaxDimension),
	}
}

// Grow adds one row and one column, respecting MaxDimension.
func Grow(size models.BoardSize) models.BoardSize {
	return Clamp(models.BoardSize{Rows: size.Rows + 1, Columns: size.Columns + 1})
}

// Generate builds a solution with exactly TargetCount true cells by rejection
// sampling, and an all-unknown guess board of the same size.
func (g *Generator) Generate(size models.BoardSize, pct float64) Level {
	target := TargetCount(size, pct)
	level := Level{
		Solution: make([][]bool, size.Rows),
		Guesses:  NewGuesses(size),
		Target:   target,
	}
	for i := range level.Solution {
		level.Solution[i] = make([]bool, size.Columns)
	}

	placed := 0
	for placed < target {
		row := g.index(size.Rows)
		column := g.index(size.Columns)
		if !level.Solution[row][column] {
			level.Solution[row][column] = true
			placed++
		}
	}
	return level
}

func (g *Generator) index(n int) int {
	i := int(math.Floor(g.rng.Float64() * float64(n)))
	if i >= n {
		i = n - 1
	}
	return i
}

// NewGuesses returns a rows x columns board of unknown cells.
func NewGuesses(size models.BoardSize) [][]models.Cell {
	guesses := make([][]models.Cell, size.Rows)
	for i := range guesses {
		guesses[i] = make([]models.Cell, size.Columns)
	}
	return guesses
}

// CountTrue counts the true cells of a solution board.
func CountTrue(solution [][]bool) int {
	n := 0
	for _, row := range solution {
		for _, cell := range row {
			if cell {
				n++
			}
		}
	}
	return n
}
