package rotor

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
)

// TailRotor is an anti-torque rotor geared to the main rotor.
type TailRotor struct {
	radius, chord, liftSlope, twist, profileDrag float64
	solidity, area                               float64
	position, axis                               []float64
	ratio                                        float64
	pitchMin, pitchMax                           float64

	λi    float64
	state State
}

// NewTailRotor reads a tail rotor:
//
//	radius = 1.68; blades = 4; chord = 0.25; position = [x, y, z]
//	axis = [0, 1, 0] # thrust direction, BAS
//	gear_ratio = 4.6; pitch = [min, max] # deg, full left and full right pedal
func NewTailRotor(t *conf.Tree) (*TailRotor, error) {
	d := t.Decoder()
	r := &TailRotor{
		radius:      d.Positive("radius"),
		chord:       d.Positive("chord"),
		liftSlope:   d.ScalarOr("lift_slope", 5.73),
		twist:       numeric.Deg2rad(d.ScalarOr("twist", 0)),
		profileDrag: d.ScalarOr("profile_drag", 0.01),
		position:    d.Vector3("position"),
		axis:        d.Vector3Or("axis", []float64{0, 1, 0}),
		ratio:       d.Positive("gear_ratio"),
	}
	blades := d.IntOr("blades", 2)
	if err := d.Err(); err != nil {
		return nil, err
	}
	p, err := t.Vector("pitch")
	if err != nil {
		return nil, err
	}
	if len(p) != 2 {
		return nil, fmt.Errorf("%w: %s.pitch must be [full left, full right]", conf.ErrMalformed, t.Path())
	}
	if numeric.Norm(r.axis) < numeric.Zeroε {
		return nil, fmt.Errorf("%w: %s.axis is null", conf.ErrMalformed, t.Path())
	}
	r.axis = numeric.Unit(r.axis)
	r.pitchMin, r.pitchMax = numeric.Deg2rad(p[0]), numeric.Deg2rad(p[1])
	r.solidity = float64(blades) * r.chord / (math.Pi * r.radius)
	r.area = math.Pi * r.radius * r.radius
	r.λi = 0.05
	return r, nil
}

// State returns the state at the last evaluation.
func (r *TailRotor) State() State { return r.state }

// Name implements the dynamics.ForceContributor interface.
func (r *TailRotor) Name() string { return "tail rotor" }

// ComputeForceAndMoment implements the dynamics.ForceContributor interface. It reads the main
// rotor speed and publishes the tail rotor torque at the main rotor shaft.
func (r *TailRotor) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	Ω := sh.MainRotorOmega * r.ratio
	r.state = State{Omega: Ω, Converged: true}
	sh.TailRotorTorque = 0
	if Ω < minOmega {
		return dynamics.NewWrench(), nil
	}
	ΩR := Ω * r.radius
	v := numeric.Add(k.AirVel, numeric.Cross(k.Omg, r.position))
	va := numeric.Dot(v, r.axis)
	μ := numeric.Norm(numeric.Sub(v, numeric.Scale(va, r.axis))) / ΩR
	μz := -va / ΩR
	pedal := (numeric.Clamp(c.Yaw+c.TrimYaw, -1, 1) + 1) / 2
	θ0 := r.pitchMin + pedal*(r.pitchMax-r.pitchMin)
	cT := func(λ float64) float64 {
		return thrustCoefficient(r.liftSlope, r.solidity, θ0, r.twist, μ, λ)
	}
	λi, ct, ok := inflow(cT, μ, μz, 1, r.λi)
	if !numeric.IsFinite(λi) {
		return dynamics.Wrench{}, fmt.Errorf("%s: %w: inflow", r.Name(), numeric.ErrNotFinite)
	}
	r.λi = λi
	ρ := k.Air.Density
	thrust := ct * ρ * r.area * ΩR * ΩR
	torque := torqueCoefficient(ct, λi-μz, r.solidity, r.profileDrag, μ) * ρ * r.area * ΩR * ΩR * r.radius
	sh.TailRotorTorque = torque * r.ratio
	r.state = State{Omega: Ω, Thrust: thrust, Torque: torque, InducedVelocity: λi * ΩR, Converged: ok}
	return dynamics.ForceAt(numeric.Scale(thrust, r.axis), r.position), nil
}

// Update implements the dynamics.ForceContributor interface.
func (r *TailRotor) Update(float64, *dynamics.Kinematics, *dynamics.Controls, *dynamics.Shared) error {
	return nil
}
