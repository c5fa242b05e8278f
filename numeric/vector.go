// Package numeric holds the small numerical toolbox shared by every model of the
// flight dynamics kernel: 3-vectors stored as []float64, passive rotations and
// direction cosine matrices, quaternions, interpolation tables, saturation,
// rate limiting, first-order lags and finiteness checks.
package numeric

import (
	"math"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

const (
	deg2rad = math.Pi / 180
	// Zeroε is the magnitude under which a vector norm is treated as zero.
	Zeroε = 1e-12
)

// Norm returns the norm of a given vector which is supposed to be 3x1.
func Norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Unit returns the unit vector of a given vector, or the nil vector if its norm is zero.
func Unit(a []float64) (b []float64) {
	n := Norm(a)
	if floats.EqualWithinAbs(n, 0, Zeroε) {
		return []float64{0, 0, 0}
	}
	b = make([]float64, len(a))
	for i, val := range a {
		b[i] = val / n
	}
	return
}

// Dot performs the inner product via mat64/BLAS.
func Dot(a, b []float64) float64 {
	return mat64.Dot(mat64.NewVector(len(a), a), mat64.NewVector(len(b), b))
}

// Cross performs the cross product.
func Cross(a, b []float64) []float64 {
	return []float64{a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0]}
}

// Add returns a+b without modifying either.
func Add(a, b []float64) []float64 {
	return floats.AddTo(make([]float64, len(a)), a, b)
}

// Sub returns a-b without modifying either.
func Sub(a, b []float64) []float64 {
	return floats.SubTo(make([]float64, len(a)), a, b)
}

// Scale returns c*a without modifying a.
func Scale(c float64, a []float64) []float64 {
	b := make([]float64, len(a))
	copy(b, a)
	floats.Scale(c, b)
	return b
}

// Skew returns the tilde (cross product) matrix of v, i.e. Skew(a)*b = a x b.
func Skew(v []float64) *mat64.Dense {
	return mat64.NewDense(3, 3, []float64{0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0})
}

// Deg2rad converts degrees to radians.
func Deg2rad(a float64) float64 {
	return a * deg2rad
}

// Rad2deg converts radians to degrees.
func Rad2deg(a float64) float64 {
	return a / deg2rad
}

// WrapPi returns the angle folded into [-π, π).
func WrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Wrap2Pi returns the angle folded into [0, 2π).
func Wrap2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
