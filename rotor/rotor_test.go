package rotor

import (
	"errors"
	"math"
	"testing"

	"github.com/ChristopherRabotin/fdm/atmos"
	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/gonum/floats"
)

func mainRotor(t *testing.T) *MainRotor {
	m, err := NewMainRotor(conf.FromMap(map[string]interface{}{
		"radius":        8.18,
		"blades":        4,
		"chord":         0.53,
		"twist":         -16.0,
		"lock":          8.1,
		"hub":           []float64{0, 0, -1.7},
		"shaft_tilt":    3.0,
		"omega":         27.0,
		"inertia":       7500.0,
		"collective":    []float64{10, 30},
		"hub_stiffness": 40000.0,
	}))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func tailRotor(t *testing.T) *TailRotor {
	r, err := NewTailRotor(conf.FromMap(map[string]interface{}{
		"radius":     1.68,
		"blades":     4,
		"chord":      0.25,
		"position":   []float64{-9.9, 0, -1.5},
		"gear_ratio": 4.62,
		"pitch":      []float64{25, -10},
	}))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func kinematics(agl float64, airVel []float64) *dynamics.Kinematics {
	air, _ := atmos.New().At(0)
	return &dynamics.Kinematics{
		AltitudeAGL:     agl,
		Vel:             airVel,
		AirVel:          airVel,
		Omg:             []float64{0, 0, 0},
		GroundNormalBAS: []float64{0, 0, -1},
		Air:             air,
	}
}

func TestInflowHover(t *testing.T) {
	a, σ, θ0 := 5.73, 0.08, 0.15
	cT := func(λ float64) float64 { return thrustCoefficient(a, σ, θ0, 0, 0, λ) }
	λi, ct, ok := inflow(cT, 0, 0, 1, 0.05)
	if !ok {
		t.Fatal("hover inflow did not converge")
	}
	if !floats.EqualWithinAbs(λi, math.Sqrt(ct/2), 1e-8) {
		t.Fatalf("hover momentum theory: λi=%f, sqrt(cT/2)=%f", λi, math.Sqrt(ct/2))
	}
	λiClimb, _, _ := inflow(cT, 0, -0.02, 1, 0.05)
	if λiClimb >= λi {
		t.Fatal("climbing reduces the induced velocity")
	}
	if groundEffect(8, 100) > 1.001 || groundEffect(8, 4) <= groundEffect(8, 8) || !floats.EqualWithinAbs(groundEffect(8, 0), 4.0/3, 1e-12) {
		t.Fatal("ground effect")
	}
}

func TestMainRotorHover(t *testing.T) {
	m := mainRotor(t)
	var sh dynamics.Shared
	low, err := m.ComputeForceAndMoment(kinematics(500, []float64{0, 0, 0}), &dynamics.Controls{Collective: 0.4}, &sh)
	if err != nil {
		t.Fatal(err)
	}
	lowThrust := m.State().Thrust
	high, _ := m.ComputeForceAndMoment(kinematics(500, []float64{0, 0, 0}), &dynamics.Controls{Collective: 0.6}, &sh)
	if m.State().Thrust <= lowThrust || high.For[2] >= low.For[2] || low.For[2] >= 0 {
		t.Fatalf("thrust should grow upward with collective: %v %v", low.For, high.For)
	}
	if !m.State().Converged || sh.InducedVelocity <= 0 || sh.MainRotorTorque <= 0 || sh.MainRotorOmega != 27 {
		t.Fatalf("shared values %+v", sh)
	}
	// Forward shaft tilt gives a forward thrust component; the counterclockwise rotor yaws the nose right.
	if high.For[0] <= 0 || high.Mom[2] <= 0 {
		t.Fatalf("hover wrench %v %v", high.For, high.Mom)
	}
	if sh.WakeSkew > 1e-6 {
		t.Fatalf("wake skew in hover %f", sh.WakeSkew)
	}
	near, _ := m.ComputeForceAndMoment(kinematics(3, []float64{0, 0, 0}), &dynamics.Controls{Collective: 0.6}, &sh)
	if near.For[2] >= high.For[2] {
		t.Fatal("ground effect should increase the thrust")
	}
}

func TestFlapping(t *testing.T) {
	m := mainRotor(t)
	var sh dynamics.Shared
	k := kinematics(500, []float64{40, 0, 0})
	m.ComputeForceAndMoment(k, &dynamics.Controls{Collective: 0.5}, &sh)
	blowback := m.State().Longitudinal
	if blowback <= 0 {
		t.Fatalf("the disc should blow back in forward flight, a1=%f", blowback)
	}
	if sh.WakeSkew <= 0 {
		t.Fatal("the wake is skewed in forward flight")
	}
	m.ComputeForceAndMoment(k, &dynamics.Controls{Collective: 0.5, Pitch: -1}, &sh)
	if m.State().Longitudinal >= blowback {
		t.Fatal("forward cyclic should tilt the disc forward")
	}
	stickRight, _ := m.ComputeForceAndMoment(kinematics(500, []float64{0, 0, 0}), &dynamics.Controls{Collective: 0.5, Roll: 1}, &sh)
	if m.State().Lateral <= 0 || stickRight.For[1] <= 0 || stickRight.Mom[0] <= 0 {
		t.Fatalf("right cyclic: b1=%f %v %v", m.State().Lateral, stickRight.For, stickRight.Mom)
	}
}

func TestRotorSpeed(t *testing.T) {
	m := mainRotor(t)
	m.Initialize(false)
	var sh dynamics.Shared
	w, _ := m.ComputeForceAndMoment(kinematics(500, []float64{0, 0, 0}), &dynamics.Controls{Collective: 0.5}, &sh)
	if !floats.Equal(w.For, []float64{0, 0, 0}) || sh.MainRotorTorque != 0 {
		t.Fatal("a stopped rotor produces no load")
	}
	sh.EngineShaftTorque = 7500
	if err := m.Update(0.1, nil, nil, &sh); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualWithinAbs(m.omega, 0.1, 1e-12) {
		t.Fatalf("rotor speed %f", m.omega)
	}
	if m.azimuth <= 0 {
		t.Fatal("azimuth should advance")
	}
	m.Initialize(true)
	if m.omega != m.Nominal() {
		t.Fatal("a running engine starts the rotor at the nominal speed")
	}
}

func TestTailRotor(t *testing.T) {
	r := tailRotor(t)
	k := kinematics(500, []float64{0, 0, 0})
	sh := dynamics.Shared{MainRotorOmega: 27}
	w, err := r.ComputeForceAndMoment(k, &dynamics.Controls{}, &sh)
	if err != nil {
		t.Fatal(err)
	}
	// Side thrust at the tail yaws the nose left against the main rotor torque.
	if w.For[1] <= 0 || w.Mom[2] >= 0 || sh.TailRotorTorque <= 0 {
		t.Fatalf("tail rotor %v %v %f", w.For, w.Mom, sh.TailRotorTorque)
	}
	right, _ := r.ComputeForceAndMoment(k, &dynamics.Controls{Yaw: 1}, &sh)
	if right.For[1] >= w.For[1] {
		t.Fatal("right pedal should reduce the anti-torque thrust")
	}
	sh.MainRotorOmega = 0
	stopped, _ := r.ComputeForceAndMoment(k, &dynamics.Controls{}, &sh)
	if !floats.Equal(stopped.For, []float64{0, 0, 0}) || sh.TailRotorTorque != 0 {
		t.Fatal("a stopped tail rotor produces no load")
	}
}

func TestRotorConfig(t *testing.T) {
	_, err := NewMainRotor(conf.FromMap(map[string]interface{}{
		"radius": 8.0, "chord": 0.5, "lock": 8.0, "hub": []float64{0, 0, -1}, "omega": 27.0,
		"inertia": 7000.0, "collective": []float64{10, 0},
	}))
	if !errors.Is(err, conf.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	_, err = NewTailRotor(conf.FromMap(map[string]interface{}{"radius": 1.0}))
	if !errors.Is(err, conf.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}
