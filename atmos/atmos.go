// Package atmos implements the U.S. Standard Atmosphere 1976 up to 86 km with
// user defined sea level temperature and pressure, together with the wind models
// (steady wind, turbulence and microburst wind shear) of the environment.
package atmos

import (
	"math"

	"github.com/ChristopherRabotin/fdm/numeric"
)

const (
	// R is the specific gas constant of dry air (J/(kg.K)).
	R = 287.05287
	// Gamma is the ratio of specific heats of air.
	Gamma = 1.4
	// G0 is the standard gravity used by the geopotential altitude.
	G0 = 9.80665
	// StdTemperatureSL is the standard sea level temperature (K).
	StdTemperatureSL = 288.15
	// StdPressureSL is the standard sea level pressure (Pa).
	StdPressureSL = 101325.0
	// StdDensitySL is the standard sea level density (kg/m^3).
	StdDensitySL = 1.225

	// MinAltitude and MaxAltitude bound the geometric altitude range of the model.
	MinAltitude = -2000.0
	MaxAltitude = 86000.0

	earthRadius = 6356766.0 // effective radius of the geopotential altitude
	sutherlandβ = 1.458e-6
	sutherlandS = 110.4
)

// Layer base geopotential altitudes and temperature gradients.
var (
	baseAltitudes = [...]float64{0, 11000, 20000, 32000, 47000, 51000, 71000, 84852}
	lapseRates    = [...]float64{-6.5e-3, 0, 1e-3, 2.8e-3, 0, -2.8e-3, -2e-3}
)

// State is the atmosphere at a given altitude.
type State struct {
	Temperature  float64 // K
	Pressure     float64 // Pa
	Density      float64 // kg/m^3
	SpeedOfSound float64 // m/s
	DynViscosity float64 // Pa.s
	KinViscosity float64 // m^2/s
}

// Model is the pure function altitude → atmosphere for given sea level conditions.
type Model struct {
	temperatureSL, pressureSL float64
	baseTemperatures          [len(baseAltitudes)]float64
	basePressures             [len(baseAltitudes)]float64
}

// New returns the standard atmosphere.
func New() *Model {
	m := &Model{}
	m.SetSeaLevel(StdTemperatureSL, StdPressureSL)
	return m
}

// SetSeaLevel sets the sea level temperature (K) and pressure (Pa); non physical
// values are replaced by standard conditions and false is returned.
func (m *Model) SetSeaLevel(temperature, pressure float64) bool {
	ok := true
	if !(temperature > 150 && temperature < 400) {
		temperature, ok = StdTemperatureSL, false
	}
	if !(pressure > 10000 && pressure < 200000) {
		pressure, ok = StdPressureSL, false
	}
	if temperature == m.temperatureSL && pressure == m.pressureSL {
		return ok
	}
	m.temperatureSL, m.pressureSL = temperature, pressure
	m.baseTemperatures[0], m.basePressures[0] = temperature, pressure
	for i := 0; i < len(lapseRates); i++ {
		Δh := baseAltitudes[i+1] - baseAltitudes[i]
		m.baseTemperatures[i+1] = m.baseTemperatures[i] + lapseRates[i]*Δh
		m.basePressures[i+1] = layerPressure(m.basePressures[i], m.baseTemperatures[i], lapseRates[i], Δh)
	}
	return ok
}

// SeaLevel returns the sea level temperature and pressure in use.
func (m *Model) SeaLevel() (temperature, pressure float64) {
	return m.temperatureSL, m.pressureSL
}

// At returns the atmosphere at the geometric altitude above mean sea level. Altitudes
// outside [MinAltitude, MaxAltitude] are clamped and reported by clamped.
func (m *Model) At(altitude float64) (s State, clamped bool) {
	z := numeric.Clamp(altitude, MinAltitude, MaxAltitude)
	clamped = z != altitude
	h := earthRadius * z / (earthRadius + z)
	i := 0
	for i < len(lapseRates)-1 && h >= baseAltitudes[i+1] {
		i++
	}
	Δh := h - baseAltitudes[i]
	s.Temperature = m.baseTemperatures[i] + lapseRates[i]*Δh
	s.Pressure = layerPressure(m.basePressures[i], m.baseTemperatures[i], lapseRates[i], Δh)
	s.Density = s.Pressure / (R * s.Temperature)
	s.SpeedOfSound = math.Sqrt(Gamma * R * s.Temperature)
	s.DynViscosity = sutherlandβ * math.Pow(s.Temperature, 1.5) / (s.Temperature + sutherlandS)
	s.KinViscosity = s.DynViscosity / s.Density
	return
}

func layerPressure(pb, tb, lapse, Δh float64) float64 {
	if lapse == 0 {
		return pb * math.Exp(-G0*Δh/(R*tb))
	}
	return pb * math.Pow(tb/(tb+lapse*Δh), G0/(R*lapse))
}
