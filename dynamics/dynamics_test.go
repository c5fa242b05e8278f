package dynamics

import (
	"errors"
	"math"
	"testing"

	"github.com/ChristopherRabotin/fdm/atmos"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/wgs84"
	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// constantModel applies the same wrench whatever the state.
type constantModel struct {
	w     Wrench
	m     *mat64.Dense
	evals int
}

func (c *constantModel) Evaluate(s *State) (Wrench, error) {
	c.evals++
	return Wrench{For: append([]float64(nil), c.w.For...), Mom: append([]float64(nil), c.w.Mom...)}, nil
}

func (c *constantModel) MassMatrix() *mat64.Dense { return c.m }

// massMatrix builds the generalized mass matrix of a body of mass m with its CG at r
// and the inertia I about the BAS origin.
func massMatrix(m float64, r []float64, I *mat64.Dense) *mat64.Dense {
	M := mat64.NewDense(6, 6, nil)
	S := numeric.Skew(r)
	for i := 0; i < 3; i++ {
		M.Set(i, i, m)
		for j := 0; j < 3; j++ {
			M.Set(i, 3+j, -m*S.At(i, j))
			M.Set(3+i, j, m*S.At(i, j))
			M.Set(3+i, 3+j, I.At(i, j))
		}
	}
	return M
}

func TestQuaternionStaysUnitary(t *testing.T) {
	I := mat64.NewDense(3, 3, []float64{1000, 0, 0, 0, 2000, 0, 0, 0, 2600})
	model := &constantModel{w: NewWrench(), m: massMatrix(1000, []float64{0, 0, 0}, I)}
	s := NewState()
	s.Omg = []float64{0.3, 0.02, 1.1}
	H0 := s.Att.Rotate(numeric.MxV33(I, s.Omg))
	var integ Integrator
	for i := 0; i < 2000; i++ {
		if err := integ.Step(s, 0.01, model); err != nil {
			t.Fatal(err)
		}
		if n := s.Att.Norm(); math.Abs(n-1) > 1e-9 {
			t.Fatalf("|q|=%.12f after step %d", n, i)
		}
	}
	H := s.Att.Rotate(numeric.MxV33(I, s.Omg))
	if !vectorsEqual(H, H0, 1e-3) {
		t.Fatalf("angular momentum not conserved: %v -> %v", H0, H)
	}
	if model.evals != 4*2000 {
		t.Fatalf("the model should be evaluated at every stage, got %d evaluations", model.evals)
	}
}

func TestConstantForce(t *testing.T) {
	model := &constantModel{
		w: Wrench{For: []float64{10, 0, -5}, Mom: []float64{0, 0, 0}},
		m: massMatrix(5, []float64{0, 0, 0}, numeric.Identity3()),
	}
	s := NewState()
	var integ Integrator
	for i := 0; i < 100; i++ {
		if err := integ.Step(s, 0.01, model); err != nil {
			t.Fatal(err)
		}
	}
	if !floats.EqualApprox(s.Vel, []float64{2, 0, -1}, 1e-9) {
		t.Fatalf("velocity %v", s.Vel)
	}
	if !floats.EqualApprox(s.Pos, []float64{1, 0, -0.5}, 1e-9) {
		t.Fatalf("position %v", s.Pos)
	}
	if !floats.EqualApprox(s.Acc, []float64{2, 0, -1}, 1e-12) {
		t.Fatalf("acceleration %v", s.Acc)
	}
}

func TestCGOffset(t *testing.T) {
	r := []float64{1, 0, 0.2}
	m := 10.0
	I := mat64.NewDense(3, 3, []float64{20, 0, 0, 0, 30, 0, 0, 0, 40})
	F := []float64{0, 3, 98.1}
	acc, eps, err := Accelerations([]float64{0, 0, 0}, []float64{0, 0, 0}, ForceAt(F, r), massMatrix(m, r, I))
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(acc, numeric.Scale(1/m, F), 1e-12) || !floats.EqualApprox(eps, []float64{0, 0, 0}, 1e-12) {
		t.Fatalf("force through the CG: acc=%v eps=%v", acc, eps)
	}
	if _, _, err := Accelerations([]float64{0, 0, 0}, []float64{0, 0, 0}, NewWrench(), mat64.NewDense(6, 6, nil)); !errors.Is(err, ErrSingularMass) {
		t.Fatalf("expected ErrSingularMass, got %v", err)
	}
}

func TestFreeze(t *testing.T) {
	model := &constantModel{
		w: Wrench{For: []float64{1, 2, 3}, Mom: []float64{1, 1, 1}},
		m: massMatrix(1, []float64{0, 0, 0}, numeric.Identity3()),
	}
	s := NewState()
	s.Vel = []float64{1, 0, 0}
	integ := Integrator{Freeze: Freeze{Velocity: true, Attitude: true}}
	if err := integ.Step(s, 0.5, model); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(s.Vel, []float64{1, 0, 0}) || !floats.Equal(s.Omg, []float64{0, 0, 0}) {
		t.Fatal("velocities should be frozen")
	}
	if s.Att != numeric.QuaternionIdentity {
		t.Fatal("attitude should be frozen")
	}
	if !floats.EqualApprox(s.Pos, []float64{0.5, 0, 0}, 1e-12) {
		t.Fatalf("position should move %v", s.Pos)
	}
	integ.Freeze = Freeze{Position: true}
	if err := integ.Step(s, 0.5, model); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(s.Pos, []float64{0.5, 0, 0}, 1e-12) {
		t.Fatal("position should be frozen")
	}
}

func TestNonFiniteWrench(t *testing.T) {
	model := &constantModel{
		w: Wrench{For: []float64{math.NaN(), 0, 0}, Mom: []float64{0, 0, 0}},
		m: massMatrix(1, []float64{0, 0, 0}, numeric.Identity3()),
	}
	s := NewState()
	before := s.Copy()
	var integ Integrator
	err := integ.Step(s, 0.01, model)
	if !errors.Is(err, numeric.ErrNotFinite) {
		t.Fatalf("expected ErrNotFinite, got %v", err)
	}
	if !floats.Equal(s.Vector(), before.Vector()) {
		t.Fatal("state should be untouched on error")
	}
	if err := integ.Step(s, 0, model); err == nil {
		t.Fatal("a null time step should be rejected")
	}
}

func TestStateVector(t *testing.T) {
	s := NewState()
	v := []float64{1, 2, 3, 1, 0, 0, 0, 4, 5, 6, 7, 8, 9}
	s.SetVector(v)
	if !floats.Equal(s.Vector(), v) {
		t.Fatal("state vector round trip")
	}
	c := s.Copy()
	c.Pos[0] = 42
	if s.Pos[0] == 42 {
		t.Fatal("copy shares memory")
	}
	s.Vel[1] = math.Inf(1)
	if !errors.Is(s.Check(), numeric.ErrNotFinite) {
		t.Fatal("infinite velocity not detected")
	}
	assertPanic(t, func() { s.SetVector(v[:5]) })
}

func TestKinematics(t *testing.T) {
	geo := wgs84.Geo{Lat: 0, Lon: 0, Alt: 100}
	pos := wgs84.NewPositionGeo(geo)
	ψ, θ := math.Pi/2, 0.1
	ned2bas := numeric.EulerToDCM(0, θ, ψ)
	bas2wgs := numeric.Mul(pos.NEDToWGS(), numeric.Transpose(ned2bas))
	s := NewState()
	s.Pos = pos.WGS()
	s.Att = numeric.QuaternionFromDCM(bas2wgs)
	s.Vel = []float64{50, 0, 5}
	ground := wgs84.GeoToWGS(wgs84.Geo{Lat: 0, Lon: 0, Alt: 0})
	env := &Environment{
		Atmosphere: atmos.New(),
		Wind:       []float64{0, 0, 0},
		Ground:     Ground{Point: ground, Normal: wgs84.Normal(0, 0)},
	}
	k := NewKinematics(s, env)
	if ok, err := anglesEqual(k.Heading, ψ); !ok {
		t.Fatalf("heading: %s", err)
	}
	if !floats.EqualWithinAbs(k.Pitch, θ, 1e-9) || !floats.EqualWithinAbs(k.Roll, 0, 1e-9) {
		t.Fatalf("euler angles %f %f %f", k.Roll, k.Pitch, k.Heading)
	}
	if !floats.EqualWithinAbs(k.AltitudeAGL, 100, 1e-6) || !floats.EqualWithinAbs(k.Altitude, 100, 1e-6) {
		t.Fatalf("altitudes %f %f", k.Altitude, k.AltitudeAGL)
	}
	if !floats.EqualWithinAbs(k.AoA, math.Atan2(5, 50), 1e-12) || !floats.EqualWithinAbs(k.Sideslip, 0, 1e-12) {
		t.Fatalf("aerodynamic angles %f %f", k.AoA, k.Sideslip)
	}
	if !floats.EqualWithinAbs(k.GravityBAS[2], wgs84.NormalGravity(0, 100)*math.Cos(θ), 1e-9) {
		t.Fatalf("gravity %v", k.GravityBAS)
	}
	// Flying east: NED velocity is mostly along east.
	if k.VelNED[1] < 49 {
		t.Fatalf("NED velocity %v", k.VelNED)
	}
	if h := k.HeightAboveGround([]float64{0, 0, 2}); !floats.EqualWithinAbs(h, 100-2*math.Cos(θ), 1e-6) {
		t.Fatalf("point height %f", h)
	}
	// A headwind adds to the airspeed.
	env.Wind = atmos.WindNED(math.Pi/2, 10)
	k = NewKinematics(s, env)
	if !floats.EqualWithinAbs(k.Airspeed, math.Hypot(50+10*math.Cos(θ), 5+10*math.Sin(θ)), 1e-9) {
		t.Fatalf("airspeed with headwind %f", k.Airspeed)
	}
	if !floats.EqualWithinAbs(k.DynPress, 0.5*k.Air.Density*k.Airspeed*k.Airspeed, 1e-9) {
		t.Fatal("dynamic pressure")
	}
}
