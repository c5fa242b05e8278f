// Package gear models the ground reactions: wheels and contact points acting as
// spring-damper struts against the ground plane, with rolling, braking and side friction.
package gear

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
)

// BrakeGroup tells which brake pedal acts on a wheel.
type BrakeGroup uint8

const (
	// BrakeNone is an unbraked wheel.
	BrakeNone BrakeGroup = iota
	// BrakeLeft is a wheel braked by the left pedal.
	BrakeLeft
	// BrakeRight is a wheel braked by the right pedal.
	BrakeRight
)

func parseBrakeGroup(s string) (BrakeGroup, error) {
	switch s {
	case "", "none":
		return BrakeNone, nil
	case "left":
		return BrakeLeft, nil
	case "right":
		return BrakeRight, nil
	}
	return BrakeNone, fmt.Errorf("%w: unknown brake group %q", conf.ErrMalformed, s)
}

// Unit is a single wheel or contact point.
type Unit struct {
	Name           string
	Position       []float64 // BAS, contact point with the strut fully extended
	Stiffness      float64   // N/m
	Damping        float64   // N.s/m
	MaxCompression float64   // m
	Rolling        float64   // rolling friction coefficient
	Side           float64   // side (and sliding) friction coefficient
	Braking        float64   // friction coefficient with full brakes
	Brake          BrakeGroup
	Steerable      bool
	MaxSteering    float64 // rad
	Wheel          bool    // wheels roll, other contact points slide
	Crash          bool    // any contact is a collision

	compression float64
	normal      float64
}

// Compression returns the last computed strut compression.
func (u Unit) Compression() float64 { return u.compression }

// NormalForce returns the last computed normal reaction.
func (u Unit) NormalForce() float64 { return u.normal }

// Gear is the landing gear model.
type Gear struct {
	units []Unit
	// frictionVelocity is the slip velocity at which the friction force saturates.
	frictionVelocity float64
	onGround         bool
	collision        bool
}

// New reads the landing gear from the "gear" subtree.
func New(t *conf.Tree) (*Gear, error) {
	d := t.Decoder()
	g := &Gear{frictionVelocity: d.ScalarOr("friction_velocity", 0.1)}
	if g.frictionVelocity <= 0 {
		return nil, fmt.Errorf("%w: %s.friction_velocity must be positive", conf.ErrMalformed, t.Path())
	}
	for _, ut := range d.List("unit") {
		ud := ut.Decoder()
		u := Unit{
			Name:           ud.String("name"),
			Position:       ud.Vector3("position"),
			Stiffness:      ud.Positive("stiffness"),
			Damping:        ud.ScalarOr("damping", 0),
			MaxCompression: ud.Positive("max_compression"),
			Rolling:        ud.ScalarOr("rolling", 0.02),
			Side:           ud.ScalarOr("side", 0.8),
			Braking:        ud.ScalarOr("braking", 0.6),
			Steerable:      ud.BoolOr("steerable", false),
			MaxSteering:    numeric.Deg2rad(ud.ScalarOr("max_steering", 0)),
			Wheel:          ud.BoolOr("wheel", true),
			Crash:          ud.BoolOr("crash", false),
		}
		bg, err := parseBrakeGroup(ud.StringOr("brake", "none"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ut.Path(), err)
		}
		u.Brake = bg
		if err := ud.Err(); err != nil {
			return nil, err
		}
		g.units = append(g.units, u)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// Units returns a copy of the units with their last computed state.
func (g *Gear) Units() []Unit {
	return append([]Unit(nil), g.units...)
}

// OnGround reports whether a wheel touched the ground at the last update.
func (g *Gear) OnGround() bool { return g.onGround }

// Name implements the dynamics.ForceContributor interface.
func (g *Gear) Name() string { return "landing gear" }

// ComputeForceAndMoment implements the dynamics.ForceContributor interface.
func (g *Gear) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	total := dynamics.NewWrench()
	n := k.GroundNormalBAS
	for i := range g.units {
		u := &g.units[i]
		u.compression, u.normal = 0, 0
		h := k.HeightAboveGround(u.Position)
		if h >= 0 {
			continue
		}
		δ := -h
		if u.Crash || δ > u.MaxCompression {
			sh.Collision = true
		}
		if u.Wheel {
			sh.OnGround = true
		}
		vp := k.PointVelocity(u.Position)
		vn := numeric.Dot(vp, n)
		N := math.Max(0, u.Stiffness*δ-u.Damping*vn)
		u.compression, u.normal = δ, N
		if N == 0 {
			continue
		}
		// Wheel axes in the ground plane: el along the rolling direction, es to its right.
		steer := 0.0
		if u.Steerable && c.NoseWheelSteering {
			steer = u.MaxSteering * numeric.Clamp(c.Yaw, -1, 1)
		}
		sδ, cδ := math.Sincos(steer)
		x := []float64{cδ, sδ, 0}
		el := numeric.Unit(numeric.Sub(x, numeric.Scale(numeric.Dot(x, n), n)))
		es := numeric.Cross(el, n)
		vt := numeric.Sub(vp, numeric.Scale(vn, n))
		vl, vs := numeric.Dot(vt, el), numeric.Dot(vt, es)

		μl, μs := u.Side, u.Side
		if u.Wheel {
			μl = u.Rolling + brake(u.Brake, c)*(u.Braking-u.Rolling)
			if u.Steerable && !c.NoseWheelSteering {
				// A castering wheel does not resist side slip.
				μs = 0
			}
		}
		fl := -N * μl * numeric.Clamp(vl/g.frictionVelocity, -1, 1)
		fs := -N * μs * numeric.Clamp(vs/g.frictionVelocity, -1, 1)
		f := numeric.Add(numeric.Scale(N, n), numeric.Add(numeric.Scale(fl, el), numeric.Scale(fs, es)))
		contact := numeric.Add(u.Position, numeric.Scale(δ, n))
		total.Add(dynamics.ForceAt(f, contact))
	}
	return total, nil
}

func brake(b BrakeGroup, c *dynamics.Controls) float64 {
	switch b {
	case BrakeLeft:
		return numeric.Clamp(c.BrakeLeft, 0, 1)
	case BrakeRight:
		return numeric.Clamp(c.BrakeRight, 0, 1)
	}
	return 0
}

// Update implements the dynamics.ForceContributor interface.
func (g *Gear) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	g.onGround, g.collision = sh.OnGround, sh.Collision
	return nil
}

// Collision reports whether a crash contact was made at the last update.
func (g *Gear) Collision() bool { return g.collision }
