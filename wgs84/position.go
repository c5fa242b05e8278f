package wgs84

import (
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/gonum/matrix/mat64"
)

// Position caches the geodetic and WGS representations of a point together with its
// local frame rotations, so that each is computed once per state.
type Position struct {
	geo     Geo
	wgs     []float64
	wgs2ned *mat64.Dense
	ned2wgs *mat64.Dense
}

// NewPositionGeo returns a position given its geodetic coordinates.
func NewPositionGeo(g Geo) *Position {
	p := &Position{geo: g, wgs: GeoToWGS(g)}
	p.frames()
	return p
}

// NewPositionWGS returns a position given its WGS coordinates.
func NewPositionWGS(r []float64) *Position {
	p := &Position{wgs: append([]float64(nil), r...), geo: WGSToGeo(r)}
	p.frames()
	return p
}

func (p *Position) frames() {
	p.wgs2ned = WGSToNED(p.geo.Lat, p.geo.Lon)
	p.ned2wgs = numeric.Transpose(p.wgs2ned)
}

// Geo returns the geodetic coordinates.
func (p *Position) Geo() Geo { return p.geo }

// WGS returns a copy of the WGS coordinates.
func (p *Position) WGS() []float64 { return append([]float64(nil), p.wgs...) }

// WGSToNED returns the DCM from WGS to the local NED frame.
func (p *Position) WGSToNED() *mat64.Dense { return p.wgs2ned }

// NEDToWGS returns the DCM from the local NED frame to WGS.
func (p *Position) NEDToWGS() *mat64.Dense { return p.ned2wgs }

// Normal returns the outward ellipsoid normal at this position.
func (p *Position) Normal() []float64 { return Normal(p.geo.Lat, p.geo.Lon) }

// Gravity returns the normal gravity vector in WGS components.
func (p *Position) Gravity() []float64 { return Gravity(p.geo) }

// GravityNED returns the normal gravity vector in NED components.
func (p *Position) GravityNED() []float64 {
	return []float64{0, 0, NormalGravity(p.geo.Lat, p.geo.Alt)}
}
