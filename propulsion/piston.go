package propulsion

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/atmos"
	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
)

const (
	rpmToRad = 2 * math.Pi / 60
	// mixtureCutoff is the mixture under which a piston engine starves.
	mixtureCutoff = 0.1
)

// Piston is a normally aspirated piston engine driving a fixed pitch propeller.
type Piston struct {
	index          int
	position, axis []float64
	direction      float64 // +1 when the propeller turns clockwise seen from behind
	maxTorque      float64 // N.m at sea level, full throttle
	ratedRPM       float64
	idleRPM        float64
	idleThrottle   float64
	friction       float64 // N.m per rad/s
	starterTorque  float64
	startRPM       float64
	sfc            float64 // kg/J
	inertia        float64 // engine and propeller at the crankshaft
	prop           *Propeller

	status Status
	rpm    float64
	tlm    Telemetry
}

// NewPiston reads a piston engine; i is the index of its controls.
//
//	type = "piston"; position = [x, y, z]; axis = [1, 0, 0]; direction = "cw"
//	max_power = 119000 # W; rated_rpm = 2700; idle_rpm = 650; idle_throttle = 0.08
//	inertia = 0.6; starter_torque = 60; start_rpm = 150; sfc = 7.6e-8 # kg/J
//	[engine.propeller] ...
func NewPiston(t *conf.Tree, i int) (*Piston, error) {
	d := t.Decoder()
	p := &Piston{
		index:         i,
		position:      d.Vector3("position"),
		axis:          d.Vector3Or("axis", []float64{1, 0, 0}),
		ratedRPM:      d.Positive("rated_rpm"),
		idleRPM:       d.ScalarOr("idle_rpm", 600),
		idleThrottle:  numeric.Clamp(d.ScalarOr("idle_throttle", 0.08), 0, 1),
		starterTorque: d.ScalarOr("starter_torque", 50),
		startRPM:      d.ScalarOr("start_rpm", 150),
		sfc:           d.ScalarOr("sfc", 7.6e-8),
		inertia:       d.Positive("inertia"),
	}
	maxPower := d.Positive("max_power")
	friction := d.ScalarOr("friction", -1)
	dir := d.StringOr("direction", "cw")
	pt := d.Sub("propeller")
	if err := d.Err(); err != nil {
		return nil, err
	}
	switch dir {
	case "cw":
		p.direction = 1
	case "ccw":
		p.direction = -1
	default:
		return nil, fmt.Errorf("%w: %s.direction: unknown propeller direction %q", conf.ErrMalformed, t.Path(), dir)
	}
	if numeric.Norm(p.axis) < numeric.Zeroε {
		return nil, fmt.Errorf("%w: %s.axis is null", conf.ErrMalformed, t.Path())
	}
	p.axis = numeric.Unit(p.axis)
	var err error
	if p.prop, err = NewPropeller(pt); err != nil {
		return nil, err
	}
	p.maxTorque = maxPower / (p.ratedRPM * rpmToRad)
	p.friction = friction
	if friction < 0 {
		// Losses default to a tenth of the rated torque at the rated speed.
		p.friction = 0.1 * p.maxTorque / (p.ratedRPM * rpmToRad)
	}
	p.inertia += p.prop.Inertia * p.prop.Ratio * p.prop.Ratio
	p.Initialize(false)
	return p, nil
}

// Name implements the dynamics.ForceContributor interface.
func (p *Piston) Name() string { return fmt.Sprintf("piston engine %d", p.index+1) }

// Initialize implements the dynamics.Initializer interface: a running engine starts at
// idle speed.
func (p *Piston) Initialize(engineOn bool) {
	p.status, p.rpm = Stopped, 0
	if engineOn {
		p.status, p.rpm = Running, p.idleRPM
	}
	p.tlm = Telemetry{Status: p.status, RPM: p.rpm, PropellerRPM: p.rpm * p.prop.Ratio}
}

// Telemetry returns the engine state at the last evaluation.
func (p *Piston) Telemetry() Telemetry { return p.tlm }

// combustionTorque returns the indicated torque and the manifold pressure.
func (p *Piston) combustionTorque(ec dynamics.EngineControls, air atmos.State) (torque, manifold float64) {
	throttle := p.idleThrottle + (1-p.idleThrottle)*numeric.Clamp(ec.Throttle, 0, 1)
	manifold = air.Pressure
	if p.status != Running {
		return 0, manifold
	}
	manifold = air.Pressure * (0.25 + 0.75*throttle)
	σ := air.Density / atmos.StdDensitySL
	// Gagg and Ferrar altitude power lapse.
	lapse := math.Max(0, σ-(1-σ)/7.55)
	mix := numeric.Clamp(ec.Mixture, 0, 1)
	mixture := numeric.Clamp(1-2*(mix-math.Min(1, σ))*(mix-math.Min(1, σ)), 0, 1)
	return p.maxTorque * throttle * lapse * mixture, manifold
}

// loads returns the propeller thrust and torque at the crankshaft.
func (p *Piston) loads(k *dynamics.Kinematics) (thrust, torque float64) {
	V := numeric.Dot(numeric.Add(k.AirVel, numeric.Cross(k.Omg, p.position)), p.axis)
	n := p.rpm / 60 * p.prop.Ratio
	thrust, torque = p.prop.Loads(n, V, k.Air.Density)
	return thrust, torque * p.prop.Ratio
}

// ComputeForceAndMoment implements the dynamics.ForceContributor interface.
func (p *Piston) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	ec := c.Engine(p.index)
	thrust, torque := p.loads(k)
	q, manifold := p.combustionTorque(ec, k.Air)
	ω := p.rpm * rpmToRad
	p.tlm = Telemetry{
		Status:           p.status,
		RPM:              p.rpm,
		PropellerRPM:     p.rpm * p.prop.Ratio,
		ManifoldPressure: manifold,
		Power:            q * ω,
		Torque:           q,
		FuelFlow:         p.sfc * q * ω,
		Thrust:           thrust,
	}
	w := dynamics.ForceAt(numeric.Scale(thrust, p.axis), p.position)
	// The propeller drag torque reacts on the airframe against the rotation.
	w.Add(dynamics.Wrench{For: []float64{0, 0, 0}, Mom: numeric.Scale(-p.direction*torque/p.prop.Ratio, p.axis)})
	return w, nil
}

// Update implements the dynamics.ForceContributor interface: it advances the engine status and
// the crankshaft speed.
func (p *Piston) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	ec := c.Engine(p.index)
	canRun := ec.Fuel && ec.Ignition && ec.Mixture >= mixtureCutoff
	switch {
	case !canRun && ec.Starter:
		p.status = Cranking
	case !canRun:
		p.status = Stopped
	case p.status == Running:
		// Keeps running.
	case ec.Starter && p.rpm >= p.startRPM:
		p.status = Running
	case ec.Starter:
		p.status = Cranking
	default:
		p.status = Stopped
	}
	_, load := p.loads(k)
	q, _ := p.combustionTorque(ec, k.Air)
	if ec.Starter && p.status != Running {
		q += p.starterTorque
	}
	ω := p.rpm * rpmToRad
	ωdot := (q - p.friction*ω - load) / p.inertia
	p.rpm = math.Max(0, ω+ωdot*dt) / rpmToRad
	if p.status == Running && p.rpm < p.startRPM/2 {
		// The engine stalls.
		p.status = Stopped
	}
	if !numeric.IsFinite(p.rpm) {
		return fmt.Errorf("%s: %w: engine speed", p.Name(), numeric.ErrNotFinite)
	}
	return nil
}
