// Package wgs84 implements the WGS84 ellipsoid: geodetic to Earth-centered Earth-fixed
// conversions, local NED and ENU frames, normal gravity, geoid undulation and magnetic
// declination.
//
// Angles are in radians and distances in meters unless the name says otherwise.
package wgs84

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

const (
	// A is the equatorial radius.
	A = 6378137.0
	// F is the flattening.
	F = 1.0 / 298.257223563
	// B is the polar radius.
	B = A * (1 - F)
	// E2 is the first eccentricity squared.
	E2 = F * (2 - F)
	// EP2 is the second eccentricity squared.
	EP2 = E2 / (1 - E2)
	// GM is the Earth gravitational constant (m^3/s^2).
	GM = 3.986004418e14
	// Omega is the Earth rotation rate (rad/s).
	Omega = 7.2921151467e-5

	// Somigliana normal gravity constants.
	gammaE = 9.7803253359
	gammaK = 0.00193185265241
	gammaM = 0.00344978650684

	geoε       = 1e-12
	geoMaxIter = 10
)

// Geo is a geodetic position: latitude, longitude and height above the ellipsoid.
type Geo struct {
	Lat, Lon, Alt float64
}

// RadiusPrimeVertical returns the radius of curvature in the prime vertical, N.
func RadiusPrimeVertical(lat float64) float64 {
	s := math.Sin(lat)
	return A / math.Sqrt(1-E2*s*s)
}

// RadiusMeridian returns the radius of curvature in the meridian, M.
func RadiusMeridian(lat float64) float64 {
	s := math.Sin(lat)
	d := 1 - E2*s*s
	return A * (1 - E2) / (d * math.Sqrt(d))
}

// GeoToWGS converts a geodetic position to WGS (ECEF) coordinates.
func GeoToWGS(g Geo) []float64 {
	sLat, cLat := math.Sincos(g.Lat)
	sLon, cLon := math.Sincos(g.Lon)
	n := RadiusPrimeVertical(g.Lat)
	return []float64{
		(n + g.Alt) * cLat * cLon,
		(n + g.Alt) * cLat * sLon,
		(n*(1-E2) + g.Alt) * sLat,
	}
}

// WGSToGeo converts WGS (ECEF) coordinates to a geodetic position.
// The latitude is found by fixed point iteration starting from Bowring's guess;
// the height formula is the one that remains well conditioned at the poles.
func WGSToGeo(r []float64) Geo {
	p := math.Hypot(r[0], r[1])
	z := r[2]
	g := Geo{Lon: math.Atan2(r[1], r[0])}
	if p < 1e-9 {
		g.Lat = math.Copysign(math.Pi/2, z)
		g.Alt = math.Abs(z) - B
		return g
	}
	θ := math.Atan2(z*A, p*B)
	sθ, cθ := math.Sincos(θ)
	lat := math.Atan2(z+EP2*B*sθ*sθ*sθ, p-E2*A*cθ*cθ*cθ)
	for i := 0; i < geoMaxIter; i++ {
		s := math.Sin(lat)
		n := A / math.Sqrt(1-E2*s*s)
		next := math.Atan2(z+E2*n*s, p)
		if math.Abs(next-lat) < geoε {
			lat = next
			break
		}
		lat = next
	}
	sLat, cLat := math.Sincos(lat)
	g.Lat = lat
	g.Alt = p*cLat + z*sLat - A*math.Sqrt(1-E2*sLat*sLat)
	return g
}

// WGSToNED returns the DCM mapping WGS components into local NED components.
func WGSToNED(lat, lon float64) *mat64.Dense {
	sLat, cLat := math.Sincos(lat)
	sLon, cLon := math.Sincos(lon)
	return mat64.NewDense(3, 3, []float64{
		-sLat * cLon, -sLat * sLon, cLat,
		-sLon, cLon, 0,
		-cLat * cLon, -cLat * sLon, -sLat,
	})
}

// NEDToWGS returns the DCM mapping local NED components into WGS components.
func NEDToWGS(lat, lon float64) *mat64.Dense {
	return mat64.DenseCopyOf(WGSToNED(lat, lon).T())
}

// WGSToENU returns the DCM mapping WGS components into local ENU components.
func WGSToENU(lat, lon float64) *mat64.Dense {
	sLat, cLat := math.Sincos(lat)
	sLon, cLon := math.Sincos(lon)
	return mat64.NewDense(3, 3, []float64{
		-sLon, cLon, 0,
		-sLat * cLon, -sLat * sLon, cLat,
		cLat * cLon, cLat * sLon, sLat,
	})
}

// Normal returns the outward unit normal to the ellipsoid, in WGS components.
func Normal(lat, lon float64) []float64 {
	sLat, cLat := math.Sincos(lat)
	sLon, cLon := math.Sincos(lon)
	return []float64{cLat * cLon, cLat * sLon, sLat}
}

// NormalGravity returns the magnitude of the WGS84 normal gravity at latitude lat and
// height alt, using Somigliana's formula with the second order free air correction.
func NormalGravity(lat, alt float64) float64 {
	s2 := math.Sin(lat) * math.Sin(lat)
	γ := gammaE * (1 + gammaK*s2) / math.Sqrt(1-E2*s2)
	return γ * (1 - 2/A*(1+F+gammaM-2*F*s2)*alt + 3*alt*alt/(A*A))
}

// Gravity returns the normal gravity vector in WGS components.
// It points along the inward ellipsoid normal.
func Gravity(g Geo) []float64 {
	γ := NormalGravity(g.Lat, g.Alt)
	n := Normal(g.Lat, g.Lon)
	return []float64{-γ * n[0], -γ * n[1], -γ * n[2]}
}
