package propulsion

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/atmos"
	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
)

// Turboshaft is a free turbine engine driving the main rotor. Its power follows the demand of
// a proportional-integral governor holding the rotor speed, with a first order lag.
type Turboshaft struct {
	index         int
	maxPower      float64 // W at sea level
	idle          float64 // fraction of max power
	ratio         float64 // output shaft over rotor speed
	starterTorque float64 // N.m at the rotor shaft
	sfc           float64
	kp, ki, ff    float64

	governed float64 // rad/s
	status   Status
	power    *numeric.Lag
	integral float64
	tlm      Telemetry
}

// NewTurboshaft reads a turboshaft engine; i is the index of its controls.
//
//	type = "turboshaft"; max_power = 1.2e6 # W; idle = 0.08; time_constant = 1.2 # s
//	gear_ratio = 81.0; starter_torque = 400; sfc = 8.5e-8 # kg/J
//	governor = { omega = 27.0, kp = 6.0, ki = 2.0, collective = 0.6 }
func NewTurboshaft(t *conf.Tree, i int) (*Turboshaft, error) {
	d := t.Decoder()
	e := &Turboshaft{
		index:         i,
		maxPower:      d.Positive("max_power"),
		idle:          numeric.Clamp(d.ScalarOr("idle", 0.08), 0, 1),
		ratio:         d.ScalarOr("gear_ratio", 1),
		starterTorque: d.ScalarOr("starter_torque", 0),
		sfc:           d.ScalarOr("sfc", 8.5e-8),
	}
	τ := d.Positive("time_constant")
	gt := d.Sub("governor")
	if err := d.Err(); err != nil {
		return nil, err
	}
	gd := gt.Decoder()
	e.governed = gd.ScalarOr("omega", 0)
	e.kp = gd.ScalarOr("kp", 5)
	e.ki = gd.ScalarOr("ki", 1)
	e.ff = gd.ScalarOr("collective", 0)
	if err := gd.Err(); err != nil {
		return nil, err
	}
	e.power = numeric.NewLag(τ, 0)
	e.Initialize(false)
	return e, nil
}

// SetGovernedSpeed sets the rotor speed the governor holds when none is configured.
func (e *Turboshaft) SetGovernedSpeed(Ω float64) {
	if e.governed <= 0 {
		e.governed = Ω
	}
}

// Name implements the dynamics.ForceContributor interface.
func (e *Turboshaft) Name() string { return fmt.Sprintf("turboshaft engine %d", e.index+1) }

// Initialize implements the dynamics.Initializer interface: a running engine starts at idle
// power with a reset governor.
func (e *Turboshaft) Initialize(engineOn bool) {
	e.status, e.integral = Stopped, 0
	e.power.Reset(0)
	if engineOn {
		e.status = Running
		e.power.Reset(e.idle * e.maxPower)
	}
	e.tlm = Telemetry{Status: e.status}
}

// Telemetry returns the engine state at the last evaluation.
func (e *Turboshaft) Telemetry() Telemetry { return e.tlm }

// ComputeForceAndMoment implements the dynamics.ForceContributor interface: the engine adds its
// torque to the main rotor shaft. The reaction on the airframe is carried by the rotor.
func (e *Turboshaft) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	Ω := sh.MainRotorOmega
	P := e.power.Value()
	var Q float64
	switch {
	case e.status == Cranking:
		Q, P = e.starterTorque, 0
	case Ω > 1:
		Q = P / Ω
	default:
		// Torque limited at very low rotor speed.
		Q = P
	}
	sh.EngineShaftTorque += Q
	e.tlm = Telemetry{
		Status:       e.status,
		RPM:          Ω * e.ratio / rpmToRad,
		PropellerRPM: Ω / rpmToRad,
		Power:        P,
		Torque:       Q,
		FuelFlow:     e.sfc * P,
	}
	return dynamics.NewWrench(), nil
}

// demand returns the governor power demand, as a fraction of the available power.
func (e *Turboshaft) demand(dt, Ω float64, c *dynamics.Controls, ec dynamics.EngineControls) float64 {
	if e.governed <= 0 {
		return e.idle + (1-e.idle)*numeric.Clamp(ec.Throttle, 0, 1)
	}
	err := (e.governed - Ω) / e.governed
	limit := e.idle + (1-e.idle)*numeric.Clamp(ec.Throttle, 0, 1)
	u := e.ff*numeric.Clamp(c.Collective, 0, 1) + e.kp*err + e.integral
	if u > e.idle && u < limit || u <= e.idle && err > 0 || u >= limit && err < 0 {
		// Integrate only while unsaturated, or when coming back from saturation.
		e.integral += e.ki * err * dt
	}
	return numeric.Clamp(u, e.idle, limit)
}

// Update implements the dynamics.ForceContributor interface: it advances the engine status,
// the governor and the power response.
func (e *Turboshaft) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	ec := c.Engine(e.index)
	canRun := ec.Fuel && ec.Ignition
	switch {
	case !canRun && ec.Starter:
		e.status = Cranking
	case !canRun:
		e.status = Stopped
	case e.status == Running || ec.Starter:
		e.status = Running
	}
	target := 0.0
	if e.status == Running {
		σ := k.Air.Density / atmos.StdDensitySL
		target = e.demand(dt, sh.MainRotorOmega, c, ec) * e.maxPower * math.Min(1, σ)
	} else {
		e.integral = 0
	}
	e.power.Update(dt, target)
	if !numeric.IsFinite(e.power.Value()) {
		return fmt.Errorf("%s: %w: power", e.Name(), numeric.ErrNotFinite)
	}
	return nil
}
