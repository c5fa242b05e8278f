package rotor

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/gonum/matrix/mat64"
)

// Direction is the sense of rotation of a rotor seen from above.
type Direction float64

const (
	// CounterClockwise rotors push the nose right by reaction.
	CounterClockwise Direction = 1
	// Clockwise rotors push the nose left by reaction.
	Clockwise Direction = -1
)

func parseDirection(s string) (Direction, error) {
	switch s {
	case "", "ccw":
		return CounterClockwise, nil
	case "cw":
		return Clockwise, nil
	}
	return CounterClockwise, fmt.Errorf("%w: unknown rotation direction %q", conf.ErrMalformed, s)
}

// State is the rotor state published for the outputs.
type State struct {
	Omega           float64 // rad/s
	Azimuth         float64 // rad, blade 1 from the tail
	Coning          float64 // rad
	Longitudinal    float64 // rad, flapping a1, positive tilting back
	Lateral         float64 // rad, flapping b1, positive tilting right
	Thrust          float64 // N
	Torque          float64 // N.m
	InducedVelocity float64 // m/s
	Converged       bool
}

// MainRotor is a helicopter main rotor.
type MainRotor struct {
	radius, chord, liftSlope, twist, profileDrag, lock float64
	blades                                            int
	solidity, area                                    float64
	hub                                               []float64
	shaftToBAS, basToShaft                            *mat64.Dense
	direction                                         Direction
	nominal, inertia                                  float64
	collectiveMin, collectiveMax                      float64
	cyclicLon, cyclicLat                              float64
	hubStiffness                                      float64

	omega, azimuth, λi float64
	state              State
}

// NewMainRotor reads a main rotor:
//
//	radius = 8.18; blades = 4; chord = 0.53; lift_slope = 5.73; twist = -16 # deg
//	profile_drag = 0.01; lock = 8.1; hub = [x, y, z]; shaft_tilt = 3 # deg, forward
//	omega = 27.0 # rad/s; inertia = 7500 # kg.m^2; direction = "ccw"
//	collective = [min, max] # deg; cyclic_longitudinal = 12; cyclic_lateral = 8 # deg
//	hub_stiffness = 50000 # N.m/rad
func NewMainRotor(t *conf.Tree) (*MainRotor, error) {
	d := t.Decoder()
	m := &MainRotor{
		radius:       d.Positive("radius"),
		blades:       d.IntOr("blades", 2),
		chord:        d.Positive("chord"),
		liftSlope:    d.ScalarOr("lift_slope", 5.73),
		twist:        numeric.Deg2rad(d.ScalarOr("twist", 0)),
		profileDrag:  d.ScalarOr("profile_drag", 0.01),
		lock:         d.Positive("lock"),
		hub:          d.Vector3("hub"),
		nominal:      d.Positive("omega"),
		inertia:      d.Positive("inertia"),
		cyclicLon:    numeric.Deg2rad(d.ScalarOr("cyclic_longitudinal", 10)),
		cyclicLat:    numeric.Deg2rad(d.ScalarOr("cyclic_lateral", 8)),
		hubStiffness: d.ScalarOr("hub_stiffness", 0),
	}
	tilt := numeric.Deg2rad(d.ScalarOr("shaft_tilt", 0))
	dir, err := parseDirection(d.StringOr("direction", "ccw"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Path(), err)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	c, err := t.Vector("collective")
	if err != nil {
		return nil, err
	}
	if len(c) != 2 || c[1] <= c[0] {
		return nil, fmt.Errorf("%w: %s.collective must be [min, max]", conf.ErrMalformed, t.Path())
	}
	if m.blades < 1 {
		return nil, fmt.Errorf("%w: %s.blades must be positive", conf.ErrMalformed, t.Path())
	}
	m.direction = dir
	m.collectiveMin, m.collectiveMax = numeric.Deg2rad(c[0]), numeric.Deg2rad(c[1])
	m.solidity = float64(m.blades) * m.chord / (math.Pi * m.radius)
	m.area = math.Pi * m.radius * m.radius
	m.shaftToBAS = numeric.R2(tilt)
	m.basToShaft = numeric.Transpose(m.shaftToBAS)
	m.Initialize(true)
	return m, nil
}

// Initialize implements the dynamics.Initializer interface: the rotor turns at its nominal
// speed when the engines are running.
func (m *MainRotor) Initialize(engineOn bool) {
	m.omega, m.azimuth, m.λi = 0, 0, 0.05
	if engineOn {
		m.omega = m.nominal
	}
	m.state = State{Omega: m.omega}
}

// SetAzimuth sets the azimuth of blade 1, wrapped in [0, 2π).
func (m *MainRotor) SetAzimuth(ψ float64) {
	m.azimuth = numeric.Wrap2Pi(ψ)
}

// Nominal returns the nominal rotor speed.
func (m *MainRotor) Nominal() float64 { return m.nominal }

// State returns the state at the last evaluation.
func (m *MainRotor) State() State { return m.state }

// Name implements the dynamics.ForceContributor interface.
func (m *MainRotor) Name() string { return "main rotor" }

// collective returns the blade root collective pitch.
func (m *MainRotor) collective(c *dynamics.Controls) float64 {
	return m.collectiveMin + numeric.Clamp(c.Collective, 0, 1)*(m.collectiveMax-m.collectiveMin)
}

// ComputeForceAndMoment implements the dynamics.ForceContributor interface. It publishes the
// rotor speed, torque, induced velocity and wake skew.
func (m *MainRotor) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	sh.MainRotorOmega = m.omega
	m.state = State{Omega: m.omega, Azimuth: m.azimuth, Converged: true}
	if m.omega < minOmega {
		return dynamics.NewWrench(), nil
	}
	ρ := k.Air.Density
	ΩR := m.omega * m.radius
	v := numeric.MxV33(m.basToShaft, numeric.Add(k.AirVel, numeric.Cross(k.Omg, m.hub)))
	μx, μy, μz := v[0]/ΩR, v[1]/ΩR, v[2]/ΩR
	μ := math.Hypot(μx, μy)
	θ0 := m.collective(c)
	kGE := groundEffect(m.radius, k.HeightAboveGround(m.hub))
	cT := func(λ float64) float64 {
		return thrustCoefficient(m.liftSlope, m.solidity, θ0, m.twist, μ, λ)
	}
	λi, ct, ok := inflow(cT, μ, μz, kGE, m.λi)
	if !numeric.IsFinite(λi) {
		return dynamics.Wrench{}, fmt.Errorf("%s: %w: inflow", m.Name(), numeric.ErrNotFinite)
	}
	m.λi = λi
	λ := λi - μz
	μ2 := μ * μ

	// Quasi-static flapping in hub-wind axes, then rotated to shaft axes.
	a0 := m.lock / 8 * (θ0*(1+μ2) + 0.8*m.twist*(1+5.0/6*μ2) - 4.0/3*λ)
	a1w := 2 * μ * (4.0/3*θ0 + m.twist - λ) / (1 - μ2/2)
	b1w := float64(m.direction) * 4.0 / 3 * μ * a0 / (1 + μ2/2)
	ψw := math.Atan2(μy, μx)
	sψ, cψ := math.Sincos(ψw)
	a1 := a1w*cψ + b1w*sψ
	b1 := -a1w*sψ + b1w*cψ
	// Cyclic and rate damping.
	q := numeric.MxV33(m.basToShaft, k.Omg)
	a1 += numeric.Clamp(c.Pitch+c.TrimPitch, -1, 1)*m.cyclicLon - 16/(m.lock*m.omega)*q[1]
	b1 += numeric.Clamp(c.Roll+c.TrimRoll, -1, 1)*m.cyclicLat - 16/(m.lock*m.omega)*q[0]

	thrust := ct * ρ * m.area * ΩR * ΩR
	torque := torqueCoefficient(ct, λ, m.solidity, m.profileDrag, μ) * ρ * m.area * ΩR * ΩR * m.radius
	sa1, ca1 := math.Sincos(a1)
	sb1, cb1 := math.Sincos(b1)
	fs := numeric.Scale(thrust, numeric.Unit([]float64{-sa1, sb1 * ca1, -ca1 * cb1}))
	ms := []float64{m.hubStiffness * b1, m.hubStiffness * a1, float64(m.direction) * torque}

	w := dynamics.ForceAt(numeric.MxV33(m.shaftToBAS, fs), m.hub)
	w.Add(dynamics.Wrench{For: []float64{0, 0, 0}, Mom: numeric.MxV33(m.shaftToBAS, ms)})

	sh.MainRotorTorque = torque
	sh.InducedVelocity = λi * ΩR
	sh.WakeSkew = wakeSkew(μ, λ)
	m.state = State{
		Omega:           m.omega,
		Azimuth:         m.azimuth,
		Coning:          a0,
		Longitudinal:    a1,
		Lateral:         b1,
		Thrust:          thrust,
		Torque:          torque,
		InducedVelocity: sh.InducedVelocity,
		Converged:       ok,
	}
	return w, nil
}

// Update implements the dynamics.ForceContributor interface: the rotor speed follows the
// balance of the engine torque and the main and tail rotor torques.
func (m *MainRotor) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	Ωdot := (sh.EngineShaftTorque - sh.MainRotorTorque - sh.TailRotorTorque) / m.inertia
	m.omega = math.Max(0, m.omega+Ωdot*dt)
	m.azimuth = numeric.Wrap2Pi(m.azimuth + m.omega*dt)
	if !numeric.IsFinite(m.omega) {
		return fmt.Errorf("%s: %w: rotor speed", m.Name(), numeric.ErrNotFinite)
	}
	return nil
}
