package aero

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/rotor"
)

// Fuselage is a drag body with an equivalent flat plate area along each body axis.
type Fuselage struct {
	Position   []float64
	DragArea   []float64 // m^2 along x, y and z
	WakeFactor float64   // fraction of the rotor induced velocity felt by the body
}

// Stabilizer is a lifting surface. Its normal is the body axis along which it lifts: z for a
// horizontal surface, y for a vertical one.
type Stabilizer struct {
	Name       string
	Position   []float64
	Normal     []float64
	Area       float64
	LiftSlope  float64 // per rad
	Incidence  float64 // rad
	MaxLift    float64
	Drag       float64
	WakeFactor float64
}

// wake returns the rotor wake velocity felt at a component, BAS.
func wake(factor float64, sh *dynamics.Shared) []float64 {
	return []float64{0, 0, factor * sh.InducedVelocity * math.Cos(sh.WakeSkew)}
}

// localAir returns the velocity relative to the air of point r, in the rotor wake.
func localAir(k *dynamics.Kinematics, r []float64, factor float64, sh *dynamics.Shared) []float64 {
	v := numeric.Add(k.AirVel, numeric.Cross(k.Omg, r))
	return numeric.Sub(v, wake(factor, sh))
}

func (f *Fuselage) wrench(k *dynamics.Kinematics, sh *dynamics.Shared) dynamics.Wrench {
	v := localAir(k, f.Position, f.WakeFactor, sh)
	V := numeric.Norm(v)
	force := make([]float64, 3)
	for i := range force {
		force[i] = -0.5 * k.Air.Density * V * v[i] * f.DragArea[i]
	}
	return dynamics.ForceAt(force, f.Position)
}

func (s *Stabilizer) wrench(k *dynamics.Kinematics, sh *dynamics.Shared) dynamics.Wrench {
	v := localAir(k, s.Position, s.WakeFactor, sh)
	V := numeric.Norm(v)
	if V < minAirspeed {
		return dynamics.NewWrench()
	}
	u := numeric.Scale(1/V, v)
	vn := numeric.Dot(v, s.Normal)
	α := math.Atan2(vn, v[0]) + s.Incidence
	cl := numeric.Clamp(s.LiftSlope*α, -s.MaxLift, s.MaxLift)
	ln := numeric.Sub(s.Normal, numeric.Scale(numeric.Dot(s.Normal, u), u))
	if numeric.Norm(ln) < numeric.Zeroε {
		// Flow along the normal: flat plate drag only.
		cl = 0
		ln = []float64{0, 0, 0}
	} else {
		ln = numeric.Scale(-1, numeric.Unit(ln))
	}
	qS := 0.5 * k.Air.Density * V * V * s.Area
	f := numeric.Scale(qS, numeric.Sub(numeric.Scale(cl, ln), numeric.Scale(s.Drag, u)))
	return dynamics.ForceAt(f, s.Position)
}

// Helicopter is the aerodynamic model of a single main rotor helicopter. The main rotor is
// evaluated first since the tail rotor, fuselage and stabilizers read its state.
type Helicopter struct {
	Main        *rotor.MainRotor
	Tail        *rotor.TailRotor
	Fuselage    Fuselage
	Stabilizers []Stabilizer
}

// NewHelicopter reads the helicopter aerodynamics from the "main_rotor", "tail_rotor",
// "fuselage" and "stabilizer" entries of t.
func NewHelicopter(t *conf.Tree) (*Helicopter, error) {
	d := t.Decoder()
	mt, tt, ft := d.Sub("main_rotor"), d.Sub("tail_rotor"), d.Sub("fuselage")
	if err := d.Err(); err != nil {
		return nil, err
	}
	h := &Helicopter{}
	var err error
	if h.Main, err = rotor.NewMainRotor(mt); err != nil {
		return nil, err
	}
	if h.Tail, err = rotor.NewTailRotor(tt); err != nil {
		return nil, err
	}
	fd := ft.Decoder()
	h.Fuselage = Fuselage{
		Position:   fd.Vector3Or("position", []float64{0, 0, 0}),
		DragArea:   fd.Vector3("drag_area"),
		WakeFactor: fd.ScalarOr("wake_factor", 1),
	}
	if err := fd.Err(); err != nil {
		return nil, err
	}
	if t.IsSet("stabilizer") {
		for _, st := range d.List("stabilizer") {
			sd := st.Decoder()
			s := Stabilizer{
				Name:       sd.String("name"),
				Position:   sd.Vector3("position"),
				Normal:     sd.Vector3("normal"),
				Area:       sd.Positive("area"),
				LiftSlope:  sd.ScalarOr("lift_slope", 3.5),
				Incidence:  numeric.Deg2rad(sd.ScalarOr("incidence", 0)),
				MaxLift:    sd.ScalarOr("max_lift", 1.0),
				Drag:       sd.ScalarOr("drag", 0.01),
				WakeFactor: sd.ScalarOr("wake_factor", 0),
			}
			if err := sd.Err(); err != nil {
				return nil, err
			}
			if numeric.Norm(s.Normal) < numeric.Zeroε {
				return nil, fmt.Errorf("%w: %s.normal is null", conf.ErrMalformed, st.Path())
			}
			s.Normal = numeric.Unit(s.Normal)
			h.Stabilizers = append(h.Stabilizers, s)
		}
		if err := d.Err(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Name implements the dynamics.ForceContributor interface.
func (h *Helicopter) Name() string { return "helicopter aerodynamics" }

// Initialize implements the dynamics.Initializer interface.
func (h *Helicopter) Initialize(engineOn bool) {
	h.Main.Initialize(engineOn)
}

// ComputeForceAndMoment implements the dynamics.ForceContributor interface.
func (h *Helicopter) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	w, err := h.Main.ComputeForceAndMoment(k, c, sh)
	if err != nil {
		return w, err
	}
	tail, err := h.Tail.ComputeForceAndMoment(k, c, sh)
	if err != nil {
		return w, err
	}
	w.Add(tail)
	w.Add(h.Fuselage.wrench(k, sh))
	for i := range h.Stabilizers {
		w.Add(h.Stabilizers[i].wrench(k, sh))
	}
	return w, nil
}

// Update implements the dynamics.ForceContributor interface.
func (h *Helicopter) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	if err := h.Main.Update(dt, k, c, sh); err != nil {
		return err
	}
	return h.Tail.Update(dt, k, c, sh)
}
