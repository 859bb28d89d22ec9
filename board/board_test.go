package board

import (
	"math"
	"reflect"
	"testing"

	"github.com/wfunc/memoryserver/models"
)

func TestTargetCount(t *testing.T) {
	tests := []struct {
		name string
		size models.BoardSize
		pct  float64
		want int
	}{
		{"half of 4x4", models.BoardSize{Rows: 4, Columns: 4}, 0.5, 8},
		{"rounds up", models.BoardSize{Rows: 3, Columns: 3}, 0.5, 5},
		{"tiny density still one tile", models.BoardSize{Rows: 4, Columns: 4}, 0.0001, 1},
		{"zero density", models.BoardSize{Rows: 4, Columns: 4}, 0, 0},
		{"full board", models.BoardSize{Rows: 24, Columns: 24}, 1, 576},
		{"quarter of 4x4", models.BoardSize{Rows: 4, Columns: 4}, 0.25, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetCount(tt.size, tt.pct); got != tt.want {
				t.Errorf("TargetCount(%v, %v) = %d, want %d", tt.size, tt.pct, got, tt.want)
			}
		})
	}
}

func TestGenerate_ExactTargetCount(t *testing.T) {
	gen := NewGenerator(NewSeeded("exact-count"))
	densities := []float64{0, 0.1, 0.25, 0.33, 0.5, 0.9, 1}

	for rows := 1; rows <= MaxDimension; rows += 3 {
		for columns := 1; columns <= MaxDimension; columns += 5 {
			for _, pct := range densities {
				size := models.BoardSize{Rows: rows, Columns: columns}
				level := gen.Generate(size, pct)

				want := int(math.Ceil(float64(rows*columns) * pct))
				if got := CountTrue(level.Solution); got != want {
					t.Fatalf("%dx%d at %v: expected %d true cells, got %d", rows, columns, pct, want, got)
				}
				if level.Target != want {
					t.Fatalf("%dx%d at %v: expected Target %d, got %d", rows, columns, pct, want, level.Target)
				}
				if len(level.Solution) != rows || len(level.Guesses) != rows {
					t.Fatalf("%dx%d: wrong row count", rows, columns)
				}
				for r := 0; r < rows; r++ {
					if len(level.Solution[r]) != columns || len(level.Guesses[r]) != columns {
						t.Fatalf("%dx%d: wrong column count in row %d", rows, columns, r)
					}
					for c := 0; c < columns; c++ {
						if level.Guesses[r][c] != models.CellUnknown {
							t.Fatalf("%dx%d: guess cell (%d,%d) is not unknown", rows, columns, r, c)
						}
					}
				}
			}
		}
	}
}

func TestGenerate_SameSeedSameBoard(t *testing.T) {
	size := models.BoardSize{Rows: 4, Columns: 4}

	first := NewGenerator(NewSeeded("test")).Generate(size, 0.5)
	second := NewGenerator(NewSeeded("test")).Generate(size, 0.5)

	if !reflect.DeepEqual(first.Solution, second.Solution) {
		t.Errorf("Same seed produced different boards:\n%v\n%v", first.Solution, second.Solution)
	}
}

func TestGenerate_DifferentSeedsDiffer(t *testing.T) {
	size := models.BoardSize{Rows: MaxDimension, Columns: MaxDimension}

	first := NewGenerator(NewSeeded("alpha")).Generate(size, 0.5)
	second := NewGenerator(NewSeeded("beta")).Generate(size, 0.5)

	if reflect.DeepEqual(first.Solution, second.Solution) {
		t.Error("Different seeds should not reproduce the same 24x24 board")
	}
}

func TestHMACSource_Range(t *testing.T) {
	rng := NewSeeded("range")
	for i := 0; i < 10000; i++ {
		f := rng.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64 out of [0,1): %v", f)
		}
	}
}

func TestClampAndGrow(t *testing.T) {
	if got := Clamp(models.BoardSize{Rows: 30, Columns: 5}); got != (models.BoardSize{Rows: 24, Columns: 5}) {
		t.Errorf("Clamp returned %v", got)
	}
	if got := Grow(models.BoardSize{Rows: 4, Columns: 4}); got != (models.BoardSize{Rows: 5, Columns: 5}) {
		t.Errorf("Grow returned %v", got)
	}
	if got := Grow(models.BoardSize{Rows: 24, Columns: 23}); got != (models.BoardSize{Rows: 24, Columns: 24}) {
		t.Errorf("Grow past the cap returned %v", got)
	}
}

// fixedRNG replays a fixed sequence, to exercise duplicate draws.
type fixedRNG struct {
	values []float64
	i      int
}

func (f *fixedRNG) Float64() float64 {
	v := f.values[f.i%len(f.values)]
	f.i++
	return v
}

func TestGenerate_RejectsDuplicates(t *testing.T) {
	// (0,0) twice, then (1,1).
	rng := &fixedRNG{values: []float64{0.1, 0.1, 0.1, 0.1, 0.9, 0.9}}
	level := NewGenerator(rng).Generate(models.BoardSize{Rows: 2, Columns: 2}, 0.5)

	want := [][]bool{{true, false}, {false, true}}
	if !reflect.DeepEqual(level.Solution, want) {
		t.Errorf("Expected %v, got %v", want, level.Solution)
	}
}
