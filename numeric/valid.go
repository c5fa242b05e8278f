package numeric

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// ErrNotFinite is returned when a NaN or an infinity is found.
var ErrNotFinite = errors.New("value is not finite")

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite reports whether every element of each slice is finite.
func AllFinite(vs ...[]float64) bool {
	for _, v := range vs {
		if floats.HasNaN(v) {
			return false
		}
		for _, x := range v {
			if math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// DenseFinite reports whether every element of m is finite.
func DenseFinite(m *mat64.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		if !AllFinite(m.RawRowView(i)[:c]) {
			return false
		}
	}
	return true
}

// CheckFinite returns an ErrNotFinite wrapped with name if any value is not finite.
func CheckFinite(name string, vs ...[]float64) error {
	if !AllFinite(vs...) {
		return fmt.Errorf("%s: %w", name, ErrNotFinite)
	}
	return nil
}
