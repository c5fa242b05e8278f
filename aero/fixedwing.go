// Package aero computes the aerodynamic loads of the airframe.
//
// FixedWing is a coefficient build-up about a reference point, with the static coefficients
// tabulated against the angle of attack. Helicopter combines the rotors with the fuselage drag
// and the stabilizers immersed in the rotor wake.
package aero

import (
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
)

// minAirspeed is the airspeed under which no aerodynamic load is computed.
const minAirspeed = 1.0

// Coefficients are the non-dimensional aerodynamic coefficients. Lift, drag and side force
// are in wind axes, the moments in body axes.
type Coefficients struct {
	Lift, Drag, Side  float64
	Roll, Pitch, Yaw  float64
	Elevator, Aileron float64 // normalized deflections after trim
	Rudder            float64
	Stall             bool
}

// FixedWing is the aerodynamic model of an airplane.
type FixedWing struct {
	area, span, chord float64
	reference         []float64
	aspect, oswald    float64
	alphaStall        float64

	lift, drag, pitch                numeric.Table1D // vs angle of attack, degrees
	flapsLift, flapsDrag, flapsPitch float64
	liftQ, liftElevator              float64
	pitchQ, pitchElevator            float64
	sideBeta, sideRudder             float64
	rollBeta, rollP, rollR           float64
	rollAileron, rollRudder          float64
	yawBeta, yawP, yawR              float64
	yawAileron, yawRudder            float64

	last Coefficients
}

// NewFixedWing reads the airplane aerodynamics:
//
//	wing_area = 16.2; span = 11.0; chord = 1.49; reference = [x, y, z]; oswald = 0.75
//	alpha_stall = 16.0 # deg
//	lift = [[alpha, CL], ...]; drag = [[alpha, CD], ...]; pitch = [[alpha, Cm], ...]
//	flaps_lift = 0.7; flaps_drag = 0.05; flaps_pitch = -0.1   # at full flaps
//	lift_q, lift_elevator, pitch_q, pitch_elevator, side_beta, side_rudder,
//	roll_beta, roll_p, roll_r, roll_aileron, roll_rudder,
//	yaw_beta, yaw_p, yaw_r, yaw_aileron, yaw_rudder   # per rad or per unit control
//
// Control derivatives are given per normalized control, positive for the natural response:
// stick back pitches up, stick right rolls right and right pedal yaws right.
func NewFixedWing(t *conf.Tree) (*FixedWing, error) {
	d := t.Decoder()
	a := &FixedWing{
		area:          d.Positive("wing_area"),
		span:          d.Positive("span"),
		chord:         d.Positive("chord"),
		reference:     d.Vector3Or("reference", []float64{0, 0, 0}),
		oswald:        d.ScalarOr("oswald", 0.75),
		alphaStall:    numeric.Deg2rad(d.ScalarOr("alpha_stall", 16)),
		lift:          d.Table("lift"),
		drag:          d.Table("drag"),
		pitch:         d.TableOr("pitch", 0),
		flapsLift:     d.ScalarOr("flaps_lift", 0),
		flapsDrag:     d.ScalarOr("flaps_drag", 0),
		flapsPitch:    d.ScalarOr("flaps_pitch", 0),
		liftQ:         d.ScalarOr("lift_q", 0),
		liftElevator:  d.ScalarOr("lift_elevator", 0),
		pitchQ:        d.ScalarOr("pitch_q", 0),
		pitchElevator: d.ScalarOr("pitch_elevator", 0),
		sideBeta:      d.ScalarOr("side_beta", 0),
		sideRudder:    d.ScalarOr("side_rudder", 0),
		rollBeta:      d.ScalarOr("roll_beta", 0),
		rollP:         d.ScalarOr("roll_p", 0),
		rollR:         d.ScalarOr("roll_r", 0),
		rollAileron:   d.ScalarOr("roll_aileron", 0),
		rollRudder:    d.ScalarOr("roll_rudder", 0),
		yawBeta:       d.ScalarOr("yaw_beta", 0),
		yawP:          d.ScalarOr("yaw_p", 0),
		yawR:          d.ScalarOr("yaw_r", 0),
		yawAileron:    d.ScalarOr("yaw_aileron", 0),
		yawRudder:     d.ScalarOr("yaw_rudder", 0),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	a.aspect = a.span * a.span / a.area
	return a, nil
}

// Last returns the coefficients at the last evaluation.
func (a *FixedWing) Last() Coefficients { return a.last }

// Name implements the dynamics.ForceContributor interface.
func (a *FixedWing) Name() string { return "aerodynamics" }

// groundEffect returns the induced drag factor of a wing of span b at height h.
func groundEffect(b, h float64) float64 {
	x := 16 * math.Max(h, 0) / b
	x *= x
	return x / (1 + x)
}

// Coefficients returns the aerodynamic coefficients in the given conditions.
func (a *FixedWing) Coefficients(k *dynamics.Kinematics, c *dynamics.Controls) Coefficients {
	el := numeric.Clamp(c.Pitch+c.TrimPitch, -1, 1)
	ail := numeric.Clamp(c.Roll+c.TrimRoll, -1, 1)
	rud := numeric.Clamp(c.Yaw+c.TrimYaw, -1, 1)
	flaps := numeric.Clamp(c.Flaps, 0, 1)
	α, β := k.AoA, k.Sideslip
	αd := numeric.Rad2deg(α)

	var p, q, r float64
	if k.Airspeed > minAirspeed {
		p = k.Omg[0] * a.span / (2 * k.Airspeed)
		q = k.Omg[1] * a.chord / (2 * k.Airspeed)
		r = k.Omg[2] * a.span / (2 * k.Airspeed)
	}
	cl := a.lift.Value(αd) + flaps*a.flapsLift + a.liftQ*q + a.liftElevator*el
	induced := cl * cl / (math.Pi * a.oswald * a.aspect) * groundEffect(a.span, k.AltitudeAGL)
	return Coefficients{
		Lift:     cl,
		Drag:     a.drag.Value(αd) + flaps*a.flapsDrag + induced,
		Side:     a.sideBeta*β + a.sideRudder*rud,
		Roll:     a.rollBeta*β + a.rollP*p + a.rollR*r + a.rollAileron*ail + a.rollRudder*rud,
		Pitch:    a.pitch.Value(αd) + flaps*a.flapsPitch + a.pitchQ*q + a.pitchElevator*el,
		Yaw:      a.yawBeta*β + a.yawP*p + a.yawR*r + a.yawAileron*ail + a.yawRudder*rud,
		Elevator: el,
		Aileron:  ail,
		Rudder:   rud,
		Stall:    math.Abs(α) > a.alphaStall && k.Airspeed > minAirspeed,
	}
}

// ComputeForceAndMoment implements the dynamics.ForceContributor interface.
func (a *FixedWing) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, _ *dynamics.Shared) (dynamics.Wrench, error) {
	co := a.Coefficients(k, c)
	a.last = co
	if k.Airspeed <= minAirspeed {
		return dynamics.NewWrench(), nil
	}
	qS := k.DynPress * a.area
	sα, cα := math.Sincos(k.AoA)
	sβ, cβ := math.Sincos(k.Sideslip)
	drag := []float64{-cα * cβ, -sβ, -sα * cβ}
	lift := []float64{sα, 0, -cα}
	side := []float64{-cα * sβ, cβ, -sα * sβ}
	f := numeric.Scale(qS, numeric.Add(numeric.Add(numeric.Scale(co.Lift, lift), numeric.Scale(co.Drag, drag)), numeric.Scale(co.Side, side)))
	w := dynamics.ForceAt(f, a.reference)
	w.Add(dynamics.Wrench{
		For: []float64{0, 0, 0},
		Mom: []float64{qS * a.span * co.Roll, qS * a.chord * co.Pitch, qS * a.span * co.Yaw},
	})
	return w, nil
}

// Update implements the dynamics.ForceContributor interface.
func (a *FixedWing) Update(float64, *dynamics.Kinematics, *dynamics.Controls, *dynamics.Shared) error {
	return nil
}
