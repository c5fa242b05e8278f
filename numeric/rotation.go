package numeric

import (
	"math"

	"github.com/ChristopherRabotin/gokalman"
	"github.com/gonum/matrix/mat64"
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// Identity3 returns a fresh 3x3 identity matrix.
func Identity3() *mat64.Dense {
	return gokalman.DenseIdentity(3)
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat64.Matrix, v []float64) []float64 {
	vVec := mat64.NewVector(len(v), v)
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

// MtxV33 multiplies the transpose of a matrix with a vector.
func MtxV33(m mat64.Matrix, v []float64) []float64 {
	return MxV33(m.T(), v)
}

// Mul returns the product a*b in a newly allocated matrix.
func Mul(a, b mat64.Matrix) *mat64.Dense {
	var r mat64.Dense
	r.Mul(a, b)
	return &r
}

// Transpose returns a dense copy of the transpose of m.
func Transpose(m mat64.Matrix) *mat64.Dense {
	return mat64.DenseCopyOf(m.T())
}

// EulerToDCM returns the 3-2-1 (yaw, pitch, roll) direction cosine matrix which maps
// reference frame components into body components.
func EulerToDCM(φ, θ, ψ float64) *mat64.Dense {
	return Mul(R1(φ), Mul(R2(θ), R3(ψ)))
}

// DCMToEuler extracts roll, pitch and yaw from a reference to body DCM.
func DCMToEuler(m mat64.Matrix) (φ, θ, ψ float64) {
	θ = -math.Asin(Clamp(m.At(0, 2), -1, 1))
	φ = math.Atan2(m.At(1, 2), m.At(2, 2))
	ψ = Wrap2Pi(math.Atan2(m.At(0, 1), m.At(0, 0)))
	return
}
