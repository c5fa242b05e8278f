package numeric

import (
	"errors"
	"math"
	"testing"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := len(a) - 1; i >= 0; i-- {
		if !floats.EqualWithinAbs(a[i], b[i], 1e-9) {
			return false
		}
	}
	return true
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}

func TestCross(t *testing.T) {
	i := []float64{1, 0, 0}
	j := []float64{0, 1, 0}
	k := []float64{0, 0, 1}
	if !vectorsEqual(Cross(i, j), k) {
		t.Fatal("i x j != k")
	}
	if !vectorsEqual(Cross(j, k), i) {
		t.Fatal("j x k != i")
	}
	if !vectorsEqual(Cross([]float64{2, 3, 4}, []float64{5, 6, 7}), []float64{-3, 6, -3}) {
		t.Fatal("cross fail")
	}
	a, b := []float64{1, -2, 0.5}, []float64{0.3, 4, -1}
	if !vectorsEqual(MxV33(Skew(a), b), Cross(a, b)) {
		t.Fatal("skew matrix does not match cross product")
	}
}

func TestUnitAndNorm(t *testing.T) {
	if n := Norm([]float64{3, 4, 12}); n != 13 {
		t.Fatalf("norm=%f", n)
	}
	if !vectorsEqual(Unit([]float64{0, 0, 0}), []float64{0, 0, 0}) {
		t.Fatal("unit of nil vector should be nil")
	}
	if !floats.EqualWithinAbs(Norm(Unit([]float64{1, 2, 3})), 1, 1e-15) {
		t.Fatal("unit vector is not unitary")
	}
	if !vectorsEqual(Sub(Add([]float64{1, 2, 3}, []float64{4, 5, 6}), []float64{4, 5, 6}), []float64{1, 2, 3}) {
		t.Fatal("add/sub fail")
	}
	if !vectorsEqual(Scale(2, []float64{1, -1, 0}), []float64{2, -2, 0}) {
		t.Fatal("scale fail")
	}
}

func TestWrap(t *testing.T) {
	for _, tc := range []struct{ in, pi, twoPi float64 }{
		{0, 0, 0},
		{3 * math.Pi / 2, -math.Pi / 2, 3 * math.Pi / 2},
		{-math.Pi / 2, -math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, -math.Pi, math.Pi},
	} {
		if !floats.EqualWithinAbs(WrapPi(tc.in), tc.pi, 1e-12) {
			t.Fatalf("WrapPi(%f)=%f expected %f", tc.in, WrapPi(tc.in), tc.pi)
		}
		if !floats.EqualWithinAbs(Wrap2Pi(tc.in), tc.twoPi, 1e-12) {
			t.Fatalf("Wrap2Pi(%f)=%f expected %f", tc.in, Wrap2Pi(tc.in), tc.twoPi)
		}
	}
	if !floats.EqualWithinAbs(Rad2deg(Deg2rad(123.4)), 123.4, 1e-12) {
		t.Fatal("deg/rad round trip")
	}
}

func TestRotations(t *testing.T) {
	// Passive rotation: a frame rotated by +90 deg about z sees the x axis along -y.
	if !vectorsEqual(MxV33(R3(math.Pi/2), []float64{1, 0, 0}), []float64{0, -1, 0}) {
		t.Fatal("R3 fail")
	}
	if !vectorsEqual(MxV33(R2(math.Pi/2), []float64{0, 0, 1}), []float64{-1, 0, 0}) {
		t.Fatal("R2 fail")
	}
	if !vectorsEqual(MxV33(R1(math.Pi/2), []float64{0, 1, 0}), []float64{0, 0, -1}) {
		t.Fatal("R1 fail")
	}
	m := EulerToDCM(0.1, -0.2, 0.3)
	if !mat64.EqualApprox(Mul(m, Transpose(m)), Identity3(), 1e-12) {
		t.Fatal("DCM is not orthonormal")
	}
	v := []float64{1, 2, 3}
	if !vectorsEqual(MtxV33(m, MxV33(m, v)), v) {
		t.Fatal("transpose product fail")
	}
}

func TestEulerRoundTrip(t *testing.T) {
	for _, e := range [][3]float64{{0, 0, 0}, {0.1, 0.2, 0.3}, {-1.2, 0.7, 5.9}, {3, -1.4, 1}} {
		φ, θ, ψ := DCMToEuler(EulerToDCM(e[0], e[1], e[2]))
		if !vectorsEqual([]float64{φ, θ, ψ}, []float64{e[0], e[1], Wrap2Pi(e[2])}) {
			t.Fatalf("euler round trip %v -> %f %f %f", e, φ, θ, ψ)
		}
	}
}

func TestQuaternionDCM(t *testing.T) {
	for _, e := range [][3]float64{{0, 0, 0}, {0.1, 0.2, 0.3}, {-2.5, 1.2, 4}, {math.Pi, 0, 0}, {0, 0, math.Pi}} {
		bodyToRef := Transpose(EulerToDCM(e[0], e[1], e[2]))
		q := QuaternionFromDCM(bodyToRef)
		if !floats.EqualWithinAbs(q.Norm(), 1, 1e-12) {
			t.Fatalf("quaternion not unitary: %s", q)
		}
		if !mat64.EqualApprox(q.DCM(), bodyToRef, 1e-9) {
			t.Fatalf("DCM mismatch for %v\n%v\n%v", e, mat64.Formatted(q.DCM()), mat64.Formatted(bodyToRef))
		}
	}
	assertPanic(t, func() {
		QuaternionFromDCM(mat64.NewDense(2, 2, nil))
	})
}

func TestQuaternionAlgebra(t *testing.T) {
	a := QuaternionFromDCM(Transpose(EulerToDCM(0.3, 0, 0)))
	b := QuaternionFromDCM(Transpose(EulerToDCM(0, 0.4, 0)))
	ab := a.Mul(b)
	if !mat64.EqualApprox(ab.DCM(), Mul(a.DCM(), b.DCM()), 1e-12) {
		t.Fatal("product does not compose rotations")
	}
	if p := a.Mul(a.Conj()); !vectorsEqual(p.Slice(), QuaternionIdentity.Slice()) {
		t.Fatalf("q*conj(q)=%s", p)
	}
	if q := (Quaternion{}).Normalized(); q != QuaternionIdentity {
		t.Fatal("null quaternion should normalize to the identity")
	}
	if !vectorsEqual(NewQuaternion([]float64{1, 2, 3, 4}).Slice(), []float64{1, 2, 3, 4}) {
		t.Fatal("slice round trip")
	}
	// Rotating about z at 1 rad/s for ~1s using Euler steps must yield ~1 rad of yaw.
	q := QuaternionIdentity
	ω := []float64{0, 0, 1}
	dt := 1e-4
	for i := 0; i < 10000; i++ {
		d := q.Derivative(ω)
		q = Quaternion{q.E0 + d.E0*dt, q.Ex + d.Ex*dt, q.Ey + d.Ey*dt, q.Ez + d.Ez*dt}.Normalized()
	}
	_, _, ψ := DCMToEuler(Transpose(q.DCM()))
	if !floats.EqualWithinAbs(ψ, 1, 1e-3) {
		t.Fatalf("integrated yaw %f", ψ)
	}
	if !vectorsEqual(q.Rotate([]float64{0, 0, 1}), []float64{0, 0, 1}) {
		t.Fatal("rotation about z moved the z axis")
	}
}

func TestTable1D(t *testing.T) {
	tbl, err := NewTable1D([]float64{-1, 0, 2}, []float64{10, 0, 4})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ x, exp float64 }{
		{-5, 10}, {-1, 10}, {-0.5, 5}, {0, 0}, {1, 2}, {2, 4}, {100, 4},
	} {
		if v := tbl.Value(tc.x); !floats.EqualWithinAbs(v, tc.exp, 1e-12) {
			t.Fatalf("Value(%f)=%f expected %f", tc.x, v, tc.exp)
		}
	}
	if !math.IsNaN(tbl.Value(math.NaN())) {
		t.Fatal("NaN should propagate")
	}
	if v := ConstTable1D(3).Value(-12); v != 3 {
		t.Fatalf("constant table %f", v)
	}
	if _, err := NewTable1D([]float64{0, 0}, []float64{1, 2}); !errors.Is(err, ErrTable) {
		t.Fatalf("expected ErrTable, got %v", err)
	}
	if _, err := NewTable1D([]float64{0, 1}, []float64{1}); !errors.Is(err, ErrTable) {
		t.Fatalf("expected ErrTable, got %v", err)
	}
}

func TestTable2D(t *testing.T) {
	tbl, err := NewTable2D([]float64{0, 1}, []float64{0, 10, 20}, [][]float64{{0, 1, 2}, {10, 11, 12}})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ r, c, exp float64 }{
		{0, 0, 0}, {1, 20, 12}, {0.5, 5, 5.5}, {-1, -1, 0}, {2, 30, 12}, {0.25, 15, 4},
	} {
		if v := tbl.Value(tc.r, tc.c); !floats.EqualWithinAbs(v, tc.exp, 1e-12) {
			t.Fatalf("Value(%f, %f)=%f expected %f", tc.r, tc.c, v, tc.exp)
		}
	}
	if _, err := NewTable2D([]float64{0, 1}, []float64{0}, [][]float64{{0}, {1, 2}}); !errors.Is(err, ErrTable) {
		t.Fatalf("expected ErrTable, got %v", err)
	}
}

func TestSaturationAndRate(t *testing.T) {
	if Clamp(5, 0, 1) != 1 || Clamp(-5, 0, 1) != 0 || Clamp(0.5, 0, 1) != 0.5 {
		t.Fatal("clamp fail")
	}
	if Saturate(-3.0, 2) != -2 || Sign(-0.1) != -1 || Sign(0.0) != 1 {
		t.Fatal("saturate/sign fail")
	}
	r := NewRateLimiter(1)
	for i := 0; i < 5; i++ {
		r.Update(0.1, 10)
	}
	if !floats.EqualWithinAbs(r.Value(), 0.5, 1e-12) {
		t.Fatalf("rate limited value %f", r.Value())
	}
	r.Reset(0)
	if r.Update(0.1, -0.01) != -0.01 {
		t.Fatal("small step should pass through")
	}
}

func TestLag(t *testing.T) {
	l := NewLag(2, 0)
	var y float64
	for i := 0; i < 200; i++ {
		y = l.Update(0.01, 1)
	}
	// After one time constant the response reaches 1-1/e.
	if !floats.EqualWithinAbs(y, 1-math.Exp(-1), 1e-9) {
		t.Fatalf("lag response %f", y)
	}
	l.Reset(3)
	if l.Value() != 3 {
		t.Fatal("reset fail")
	}
	if NewLag(0, 0).Update(0.1, 7) != 7 {
		t.Fatal("zero time constant should pass through")
	}
}

func TestFinite(t *testing.T) {
	if !AllFinite([]float64{1, 2}, []float64{3}) {
		t.Fatal("finite values flagged")
	}
	if AllFinite([]float64{1, math.NaN()}) || AllFinite([]float64{math.Inf(-1)}) {
		t.Fatal("non finite values not flagged")
	}
	if err := CheckFinite("force", []float64{0, math.Inf(1), 0}); !errors.Is(err, ErrNotFinite) {
		t.Fatalf("expected ErrNotFinite, got %v", err)
	}
	m := Identity3()
	if !DenseFinite(m) {
		t.Fatal("identity flagged")
	}
	m.Set(1, 2, math.NaN())
	if DenseFinite(m) {
		t.Fatal("NaN matrix not flagged")
	}
	if IsFinite(math.NaN()) || !IsFinite(1) {
		t.Fatal("IsFinite fail")
	}
}
