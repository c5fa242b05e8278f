package propulsion

import (
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/numeric"
)

// minPropellerSpeed is the rotation speed, rev/s, under which a propeller produces no load.
const minPropellerSpeed = 0.5

// Propeller is a fixed pitch propeller described by its thrust and power coefficients
// against the advance ratio J = V/(nD).
type Propeller struct {
	Diameter float64
	Ratio    float64 // propeller speed over engine speed
	Inertia  float64 // kg.m^2
	thrust   numeric.Table1D
	power    numeric.Table1D
}

// NewPropeller reads a propeller:
//
//	diameter = 1.9; gear_ratio = 1.0; inertia = 1.7
//	thrust = [[J, CT], ...]; power = [[J, CP], ...]
func NewPropeller(t *conf.Tree) (*Propeller, error) {
	d := t.Decoder()
	p := &Propeller{
		Diameter: d.Positive("diameter"),
		Ratio:    d.ScalarOr("gear_ratio", 1),
		Inertia:  d.Positive("inertia"),
		thrust:   d.Table("thrust"),
		power:    d.Table("power"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Loads returns the thrust and the absorbed torque at n revolutions per second and the axial
// airspeed V, in air of density ρ.
func (p *Propeller) Loads(n, V, ρ float64) (thrust, torque float64) {
	if n < minPropellerSpeed {
		return 0, 0
	}
	D := p.Diameter
	J := math.Max(V, 0) / (n * D)
	thrust = p.thrust.Value(J) * ρ * n * n * D * D * D * D
	power := p.power.Value(J) * ρ * n * n * n * D * D * D * D * D
	return thrust, power / (2 * math.Pi * n)
}
