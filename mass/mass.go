// Package mass computes the aircraft mass, center of gravity, inertia and generalized
// mass matrix from the empty aircraft and its variable masses (crew, payload, fuel).
package mass

import (
	"fmt"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/gokalman"
	"github.com/gonum/matrix/mat64"
)

// Point is a variable point mass.
type Point struct {
	Name     string
	Max      float64   // kg
	Position []float64 // BAS
	Mass     float64   // kg
}

// Model is the mass model. It also contributes the weight of the aircraft.
type Model struct {
	empty        float64
	emptyCG      []float64
	emptyInertia *mat64.Dense // about the empty CG
	points       []Point

	mass    float64
	cg      []float64
	inertia *mat64.Dense // about the BAS origin
	matrix  *mat64.Dense
}

// New reads the mass model from the "mass" subtree:
//
//	empty = 767.0                 # kg
//	cg = [x, y, z]                # BAS, m
//	inertia = [[..], [..], [..]]  # about the empty CG, kg.m^2
//	[[mass.point]]
//	name = "pilot"; max = 120.0; position = [x, y, z]
func New(t *conf.Tree) (*Model, error) {
	d := t.Decoder()
	m := &Model{
		empty:        d.Positive("empty"),
		emptyCG:      d.Vector3("cg"),
		emptyInertia: d.Matrix3("inertia"),
	}
	if t.IsSet("point") {
		for _, p := range d.List("point") {
			pd := p.Decoder()
			pt := Point{Name: pd.String("name"), Max: pd.Positive("max"), Position: pd.Vector3("position")}
			pt.Mass = numeric.Clamp(pd.ScalarOr("initial", 0), 0, pt.Max)
			if err := pd.Err(); err != nil {
				return nil, err
			}
			m.points = append(m.points, pt)
		}
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if m.emptyInertia.At(i, i) <= 0 {
			return nil, fmt.Errorf("%w: %s.inertia: non positive moment of inertia on axis %d", conf.ErrMalformed, t.Path(), i)
		}
	}
	m.Recompute()
	return m, nil
}

// Points returns a copy of the variable masses.
func (m *Model) Points() []Point {
	return append([]Point(nil), m.points...)
}

// SetPointMass sets variable mass i, clamped to [0, Max]. It returns false if the value
// was clamped or the index does not exist.
func (m *Model) SetPointMass(i int, kg float64) bool {
	if i < 0 || i >= len(m.points) {
		return false
	}
	v := numeric.Clamp(kg, 0, m.points[i].Max)
	if !numeric.IsFinite(kg) {
		v = 0
	}
	m.points[i].Mass = v
	return v == kg
}

// Recompute updates the mass, CG, inertia and generalized mass matrix.
func (m *Model) Recompute() {
	m.mass = m.empty
	first := numeric.Scale(m.empty, m.emptyCG)
	I := mat64.DenseCopyOf(m.emptyInertia)
	addPoint(I, m.empty, m.emptyCG)
	for _, p := range m.points {
		m.mass += p.Mass
		first = numeric.Add(first, numeric.Scale(p.Mass, p.Position))
		addPoint(I, p.Mass, p.Position)
	}
	m.cg = numeric.Scale(1/m.mass, first)
	m.inertia = I

	S := numeric.Skew(m.cg)
	M := gokalman.DenseIdentity(6)
	M.Scale(m.mass, M)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			M.Set(i, 3+j, -m.mass*S.At(i, j))
			M.Set(3+i, j, m.mass*S.At(i, j))
			M.Set(3+i, 3+j, I.At(i, j))
		}
	}
	m.matrix = M
}

// addPoint adds the inertia about the origin of a point mass at r.
func addPoint(I *mat64.Dense, m float64, r []float64) {
	r2 := numeric.Dot(r, r)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -m * r[i] * r[j]
			if i == j {
				v += m * r2
			}
			I.Set(i, j, I.At(i, j)+v)
		}
	}
}

// Mass returns the total mass.
func (m *Model) Mass() float64 { return m.mass }

// CG returns a copy of the center of gravity, BAS.
func (m *Model) CG() []float64 { return append([]float64(nil), m.cg...) }

// Inertia returns the inertia matrix about the BAS origin.
func (m *Model) Inertia() *mat64.Dense { return mat64.DenseCopyOf(m.inertia) }

// InertiaCG returns the inertia matrix about the CG.
func (m *Model) InertiaCG() *mat64.Dense {
	I := mat64.DenseCopyOf(m.inertia)
	addPoint(I, -m.mass, m.cg)
	return I
}

// Matrix returns the 6x6 generalized mass matrix
//
//	[ m E     -m S(r) ]
//	[ m S(r)   I      ]
//
// where r is the CG, S the cross product matrix and I the inertia about the origin.
func (m *Model) Matrix() *mat64.Dense { return m.matrix }

// Name implements the dynamics.ForceContributor interface.
func (m *Model) Name() string { return "mass" }

// ComputeForceAndMoment implements the dynamics.ForceContributor interface: the weight
// applied at the CG.
func (m *Model) ComputeForceAndMoment(k *dynamics.Kinematics, _ *dynamics.Controls, _ *dynamics.Shared) (dynamics.Wrench, error) {
	return dynamics.ForceAt(numeric.Scale(m.mass, k.GravityBAS), m.cg), nil
}

// Update implements the dynamics.ForceContributor interface.
func (m *Model) Update(float64, *dynamics.Kinematics, *dynamics.Controls, *dynamics.Shared) error {
	return nil
}
