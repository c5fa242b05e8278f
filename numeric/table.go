package numeric

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/floats"
)

// ErrTable is returned when table data cannot be used for interpolation.
var ErrTable = errors.New("invalid table")

// Table1D is a piecewise linear function of one variable.
// Values outside the key range are held at the end values.
type Table1D struct {
	keys, values []float64
}

// NewTable1D returns a table after checking that keys are strictly increasing.
func NewTable1D(keys, values []float64) (Table1D, error) {
	if len(keys) == 0 || len(keys) != len(values) {
		return Table1D{}, fmt.Errorf("%w: %d keys for %d values", ErrTable, len(keys), len(values))
	}
	if err := checkKeys(keys); err != nil {
		return Table1D{}, err
	}
	t := Table1D{make([]float64, len(keys)), make([]float64, len(values))}
	copy(t.keys, keys)
	copy(t.values, values)
	return t, nil
}

// ConstTable1D returns a table of a single constant value.
func ConstTable1D(v float64) Table1D {
	return Table1D{[]float64{0}, []float64{v}}
}

// Len returns the number of rows.
func (t Table1D) Len() int {
	return len(t.keys)
}

// Value interpolates the table at x.
func (t Table1D) Value(x float64) float64 {
	n := len(t.keys)
	switch {
	case n == 0:
		return 0
	case math.IsNaN(x):
		return math.NaN()
	case x <= t.keys[0]:
		return t.values[0]
	case x >= t.keys[n-1]:
		return t.values[n-1]
	}
	i := floats.Within(t.keys, x)
	if i < 0 {
		return math.NaN()
	}
	return lerp(t.keys[i], t.keys[i+1], t.values[i], t.values[i+1], x)
}

// Table2D is a bilinear function of two variables, rows being the first variable.
type Table2D struct {
	rows, cols []float64
	data       [][]float64
}

// NewTable2D returns a 2-D table; data is indexed [row][col].
func NewTable2D(rows, cols []float64, data [][]float64) (Table2D, error) {
	if len(rows) == 0 || len(cols) == 0 || len(data) != len(rows) {
		return Table2D{}, fmt.Errorf("%w: %d rows, %d cols, %d data rows", ErrTable, len(rows), len(cols), len(data))
	}
	if err := checkKeys(rows); err != nil {
		return Table2D{}, err
	}
	if err := checkKeys(cols); err != nil {
		return Table2D{}, err
	}
	t := Table2D{rows: append([]float64(nil), rows...), cols: append([]float64(nil), cols...)}
	for i, r := range data {
		if len(r) != len(cols) {
			return Table2D{}, fmt.Errorf("%w: row %d has %d values for %d cols", ErrTable, i, len(r), len(cols))
		}
		t.data = append(t.data, append([]float64(nil), r...))
	}
	return t, nil
}

// Value interpolates the table at (r, c).
func (t Table2D) Value(r, c float64) float64 {
	if len(t.rows) == 0 {
		return 0
	}
	if math.IsNaN(r) || math.IsNaN(c) {
		return math.NaN()
	}
	i0, i1, fr := bracket(t.rows, r)
	j0, j1, fc := bracket(t.cols, c)
	v0 := t.data[i0][j0] + fc*(t.data[i0][j1]-t.data[i0][j0])
	v1 := t.data[i1][j0] + fc*(t.data[i1][j1]-t.data[i1][j0])
	return v0 + fr*(v1-v0)
}

// bracket returns the surrounding indexes and the interpolation fraction of x.
func bracket(keys []float64, x float64) (int, int, float64) {
	n := len(keys)
	switch {
	case n == 1 || x <= keys[0]:
		return 0, 0, 0
	case x >= keys[n-1]:
		return n - 1, n - 1, 0
	}
	i := floats.Within(keys, x)
	return i, i + 1, (x - keys[i]) / (keys[i+1] - keys[i])
}

func lerp(x0, x1, y0, y1, x float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

func checkKeys(keys []float64) error {
	for i := 1; i < len(keys); i++ {
		if !(keys[i] > keys[i-1]) {
			return fmt.Errorf("%w: keys not strictly increasing at index %d", ErrTable, i)
		}
	}
	return nil
}
