package numeric

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
)

// Quaternion is a scalar-first attitude quaternion.
// When used as an attitude, it rotates body components into reference components:
// v_ref = q ⊗ v_body ⊗ q*.
type Quaternion struct {
	E0, Ex, Ey, Ez float64
}

// QuaternionIdentity is the null rotation.
var QuaternionIdentity = Quaternion{1, 0, 0, 0}

// NewQuaternion builds a quaternion from a 4-element slice.
func NewQuaternion(v []float64) Quaternion {
	return Quaternion{v[0], v[1], v[2], v[3]}
}

// Slice returns the four components as a newly allocated slice.
func (q Quaternion) Slice() []float64 {
	return []float64{q.E0, q.Ex, q.Ey, q.Ez}
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.E0*q.E0 + q.Ex*q.Ex + q.Ey*q.Ey + q.Ez*q.Ez)
}

// Normalized returns the unit quaternion; a null quaternion becomes the identity.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n < Zeroε {
		return QuaternionIdentity
	}
	return Quaternion{q.E0 / n, q.Ex / n, q.Ey / n, q.Ez / n}
}

// Conj returns the conjugate.
func (q Quaternion) Conj() Quaternion {
	return Quaternion{q.E0, -q.Ex, -q.Ey, -q.Ez}
}

// Mul returns the Hamilton product q⊗p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return Quaternion{
		E0: q.E0*p.E0 - q.Ex*p.Ex - q.Ey*p.Ey - q.Ez*p.Ez,
		Ex: q.E0*p.Ex + q.Ex*p.E0 + q.Ey*p.Ez - q.Ez*p.Ey,
		Ey: q.E0*p.Ey - q.Ex*p.Ez + q.Ey*p.E0 + q.Ez*p.Ex,
		Ez: q.E0*p.Ez + q.Ex*p.Ey - q.Ey*p.Ex + q.Ez*p.E0,
	}
}

// Derivative returns the time derivative ½ q⊗[0, ω] for the body rates ω.
func (q Quaternion) Derivative(ω []float64) Quaternion {
	d := q.Mul(Quaternion{0, ω[0], ω[1], ω[2]})
	return Quaternion{0.5 * d.E0, 0.5 * d.Ex, 0.5 * d.Ey, 0.5 * d.Ez}
}

// Rotate returns the vector v expressed in the reference frame.
func (q Quaternion) Rotate(v []float64) []float64 {
	return MxV33(q.DCM(), v)
}

// DCM returns the rotation matrix mapping body components into reference components.
func (q Quaternion) DCM() *mat64.Dense {
	e0, ex, ey, ez := q.E0, q.Ex, q.Ey, q.Ez
	return mat64.NewDense(3, 3, []float64{
		1 - 2*(ey*ey+ez*ez), 2 * (ex*ey - e0*ez), 2 * (ex*ez + e0*ey),
		2 * (ex*ey + e0*ez), 1 - 2*(ex*ex+ez*ez), 2 * (ey*ez - e0*ex),
		2 * (ex*ez - e0*ey), 2 * (ey*ez + e0*ex), 1 - 2*(ex*ex+ey*ey),
	})
}

// QuaternionFromDCM returns the unit quaternion of a rotation matrix mapping body
// components into reference components (Shepperd's method).
func QuaternionFromDCM(m mat64.Matrix) Quaternion {
	if r, c := m.Dims(); r != 3 || c != 3 {
		panic(fmt.Errorf("DCM must be 3x3, got %dx%d", r, c))
	}
	tr := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	var q Quaternion
	switch {
	case tr > m.At(0, 0) && tr > m.At(1, 1) && tr > m.At(2, 2):
		s := 2 * math.Sqrt(1+tr)
		q = Quaternion{0.25 * s, (m.At(2, 1) - m.At(1, 2)) / s, (m.At(0, 2) - m.At(2, 0)) / s, (m.At(1, 0) - m.At(0, 1)) / s}
	case m.At(0, 0) > m.At(1, 1) && m.At(0, 0) > m.At(2, 2):
		s := 2 * math.Sqrt(1+m.At(0, 0)-m.At(1, 1)-m.At(2, 2))
		q = Quaternion{(m.At(2, 1) - m.At(1, 2)) / s, 0.25 * s, (m.At(0, 1) + m.At(1, 0)) / s, (m.At(0, 2) + m.At(2, 0)) / s}
	case m.At(1, 1) > m.At(2, 2):
		s := 2 * math.Sqrt(1+m.At(1, 1)-m.At(0, 0)-m.At(2, 2))
		q = Quaternion{(m.At(0, 2) - m.At(2, 0)) / s, (m.At(0, 1) + m.At(1, 0)) / s, 0.25 * s, (m.At(1, 2) + m.At(2, 1)) / s}
	default:
		s := 2 * math.Sqrt(1+m.At(2, 2)-m.At(0, 0)-m.At(1, 1))
		q = Quaternion{(m.At(1, 0) - m.At(0, 1)) / s, (m.At(0, 2) + m.At(2, 0)) / s, (m.At(1, 2) + m.At(2, 1)) / s, 0.25 * s}
	}
	if q.E0 < 0 {
		q = Quaternion{-q.E0, -q.Ex, -q.Ey, -q.Ez}
	}
	return q.Normalized()
}

func (q Quaternion) String() string {
	return fmt.Sprintf("[%.9f %.9f %.9f %.9f]", q.E0, q.Ex, q.Ey, q.Ez)
}
