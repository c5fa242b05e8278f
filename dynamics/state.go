// Package dynamics holds the rigid body state of the aircraft, the force and moment
// contract every subcomponent implements and the 6-DOF equations of motion.
//
// Frames: WGS is the Earth-centered Earth-fixed frame (treated as inertial, the Earth
// rotation is neglected), NED the local geodetic frame and BAS the body axes
// (x forward, y right, z down).
package dynamics

import (
	"fmt"

	"github.com/ChristopherRabotin/fdm/numeric"
)

// StateSize is the length of the integrated state vector.
const StateSize = 13

// State is the aircraft rigid body state.
type State struct {
	Pos []float64          // position, WGS (m)
	Att numeric.Quaternion // attitude, rotates BAS components into WGS components
	Vel []float64          // velocity relative to WGS, BAS (m/s)
	Omg []float64          // angular velocity, BAS (rad/s)
	Acc []float64          // linear acceleration dVel/dt, BAS (m/s^2)
	Eps []float64          // angular acceleration dOmg/dt, BAS (rad/s^2)
}

// NewState returns a state at the Earth center with the identity attitude.
func NewState() *State {
	return &State{
		Pos: []float64{0, 0, 0},
		Att: numeric.QuaternionIdentity,
		Vel: []float64{0, 0, 0},
		Omg: []float64{0, 0, 0},
		Acc: []float64{0, 0, 0},
		Eps: []float64{0, 0, 0},
	}
}

// Copy returns a deep copy.
func (s *State) Copy() *State {
	c := &State{Att: s.Att}
	c.Pos = append([]float64(nil), s.Pos...)
	c.Vel = append([]float64(nil), s.Vel...)
	c.Omg = append([]float64(nil), s.Omg...)
	c.Acc = append([]float64(nil), s.Acc...)
	c.Eps = append([]float64(nil), s.Eps...)
	return c
}

// Vector returns the integrated part of the state: position, attitude, velocity and
// angular velocity.
func (s *State) Vector() []float64 {
	v := make([]float64, 0, StateSize)
	v = append(v, s.Pos...)
	v = append(v, s.Att.Slice()...)
	v = append(v, s.Vel...)
	return append(v, s.Omg...)
}

// SetVector sets the integrated part of the state.
func (s *State) SetVector(v []float64) {
	if len(v) != StateSize {
		panic(fmt.Errorf("state vector of length %d, expected %d", len(v), StateSize))
	}
	s.Pos = []float64{v[0], v[1], v[2]}
	s.Att = numeric.NewQuaternion(v[3:7])
	s.Vel = []float64{v[7], v[8], v[9]}
	s.Omg = []float64{v[10], v[11], v[12]}
}

// Check returns an error if any component is not finite.
func (s *State) Check() error {
	return numeric.CheckFinite("aircraft state", s.Pos, s.Att.Slice(), s.Vel, s.Omg, s.Acc, s.Eps)
}

// Wrench is a force and a moment expressed in BAS, the moment being about the BAS origin.
type Wrench struct {
	For, Mom []float64
}

// NewWrench returns the null wrench.
func NewWrench() Wrench {
	return Wrench{For: []float64{0, 0, 0}, Mom: []float64{0, 0, 0}}
}

// ForceAt returns the wrench of force f applied at point r.
func ForceAt(f, r []float64) Wrench {
	return Wrench{For: append([]float64(nil), f...), Mom: numeric.Cross(r, f)}
}

// Add adds o to w in place.
func (w *Wrench) Add(o Wrench) {
	for i := 0; i < 3; i++ {
		w.For[i] += o.For[i]
		w.Mom[i] += o.Mom[i]
	}
}

// Check returns an error naming the contributor if the wrench is not finite.
func (w Wrench) Check(name string) error {
	if len(w.For) != 3 || len(w.Mom) != 3 {
		return fmt.Errorf("%s: malformed wrench", name)
	}
	return numeric.CheckFinite(name, w.For, w.Mom)
}
