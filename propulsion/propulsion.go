// Package propulsion models the engines: piston engines driving propellers, and turboshafts
// driving a helicopter rotor through a speed governor.
package propulsion

import (
	"fmt"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
)

// Status is the running status of an engine.
type Status uint8

const (
	// Stopped engines deliver no power.
	Stopped Status = iota + 1
	// Cranking engines are turned by the starter.
	Cranking
	// Running engines burn fuel.
	Running
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Cranking:
		return "cranking"
	case Running:
		return "running"
	}
	panic("cannot stringify unknown engine status")
}

// Telemetry is the state of an engine published for the outputs.
type Telemetry struct {
	Status           Status
	RPM              float64 // engine (turboshaft: output shaft) revolutions per minute
	PropellerRPM     float64 // propeller or rotor revolutions per minute
	ManifoldPressure float64 // Pa, piston engines only
	Power            float64 // W
	Torque           float64 // N.m at the output shaft
	FuelFlow         float64 // kg/s
	Thrust           float64 // N, propellers only
}

// Engine is a single engine.
type Engine interface {
	dynamics.ForceContributor
	dynamics.Initializer
	Telemetry() Telemetry
}

// Group is the set of engines of an aircraft, evaluated in order. Engine i reads the
// controls of engine i.
type Group struct {
	engines []Engine
}

// NewGroup reads the "engine" list of t. The kind of every engine is given by its "type"
// key, "piston" or "turboshaft".
func NewGroup(t *conf.Tree) (*Group, error) {
	list, err := t.List("engine")
	if err != nil {
		return nil, err
	}
	g := &Group{}
	for i, et := range list {
		kind, err := et.String("type")
		if err != nil {
			return nil, err
		}
		var e Engine
		switch kind {
		case "piston":
			e, err = NewPiston(et, i)
		case "turboshaft":
			e, err = NewTurboshaft(et, i)
		default:
			err = fmt.Errorf("%w: %s.type: unknown engine type %q", conf.ErrMalformed, et.Path(), kind)
		}
		if err != nil {
			return nil, err
		}
		g.engines = append(g.engines, e)
	}
	return g, nil
}

// Engines returns the engines.
func (g *Group) Engines() []Engine { return g.engines }

// Telemetry returns the telemetry of every engine.
func (g *Group) Telemetry() []Telemetry {
	t := make([]Telemetry, len(g.engines))
	for i, e := range g.engines {
		t[i] = e.Telemetry()
	}
	return t
}

// Name implements the dynamics.ForceContributor interface.
func (g *Group) Name() string { return "propulsion" }

// Initialize implements the dynamics.Initializer interface.
func (g *Group) Initialize(engineOn bool) {
	for _, e := range g.engines {
		e.Initialize(engineOn)
	}
}

// ComputeForceAndMoment implements the dynamics.ForceContributor interface.
func (g *Group) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	total := dynamics.NewWrench()
	for _, e := range g.engines {
		w, err := e.ComputeForceAndMoment(k, c, sh)
		if err != nil {
			return total, err
		}
		if err := w.Check(e.Name()); err != nil {
			return total, err
		}
		total.Add(w)
	}
	return total, nil
}

// Update implements the dynamics.ForceContributor interface.
func (g *Group) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	for _, e := range g.engines {
		if err := e.Update(dt, k, c, sh); err != nil {
			return err
		}
	}
	return nil
}
