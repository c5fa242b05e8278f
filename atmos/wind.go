package atmos

import (
	"math"
	"math/rand"

	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

// WindNED returns the steady wind vector in NED given the direction it blows from and
// its speed.
func WindNED(fromDirection, speed float64) []float64 {
	s, c := math.Sincos(fromDirection)
	return []float64{-speed * c, -speed * s, 0}
}

const (
	ft2m = 0.3048
	// severeW20 is the wind speed at 20 ft for severe turbulence (45 kt).
	severeW20 = 23.15
)

// Turbulence generates gusts from first-order Gauss-Markov processes whose intensity
// and scale lengths follow the low altitude Dryden model.
type Turbulence struct {
	noise *distmv.Normal
	lags  [3]*numeric.Lag
}

// NewTurbulence returns a generator whose random sequence is defined by the seed.
func NewTurbulence(seed int64) *Turbulence {
	n, ok := distmv.NewNormal([]float64{0, 0, 0}, mat64.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), rand.New(rand.NewSource(seed)))
	if !ok {
		panic("turbulence covariance is not positive definite")
	}
	t := &Turbulence{noise: n}
	for i := range t.lags {
		t.lags[i] = numeric.NewLag(1, 0)
	}
	return t
}

// Update advances the gust state by dt and returns the gust in NED. The intensity is
// in [0, 1], 1 being severe turbulence.
func (t *Turbulence) Update(dt, intensity, airspeed, altitudeAGL float64) []float64 {
	intensity = numeric.Clamp(intensity, 0, 1)
	if intensity == 0 || dt <= 0 {
		t.Reset()
		return []float64{0, 0, 0}
	}
	hft := numeric.Clamp(altitudeAGL/ft2m, 10, 1000)
	σw := 0.1 * intensity * severeW20
	σu := σw / math.Pow(0.177+0.000823*hft, 0.4)
	Lw := hft * ft2m
	Lu := hft / math.Pow(0.177+0.000823*hft, 1.2) * ft2m
	V := math.Max(airspeed, 1)
	n := t.noise.Rand(nil)
	σ := [3]float64{σu, σu, σw}
	L := [3]float64{Lu, Lu, Lw}
	gust := make([]float64, 3)
	for i := range gust {
		τ := L[i] / V
		a := math.Exp(-dt / τ)
		t.lags[i].TimeConstant = τ
		// Input scaled so that the lag output has the standard deviation σ.
		u := σ[i] * math.Sqrt((1+a)/(1-a)) * n[i]
		gust[i] = t.lags[i].Update(dt, u)
	}
	return gust
}

// Reset zeroes the gust state.
func (t *Turbulence) Reset() {
	for _, l := range t.lags {
		l.Reset(0)
	}
}

// Microburst is an axisymmetric downburst: a downdraft core surrounded by a radial
// outflow which peaks near the ground at the core radius.
type Microburst struct {
	North, East  float64 // center, relative to a local NED origin
	Radius       float64 // core radius
	MaxOutflow   float64 // peak radial outflow
	MaxDowndraft float64 // downdraft at the center, well above ground
	Depth        float64 // height scale of the outflow layer
}

// DefaultMicroburst is a strong microburst 3 km north of the origin.
var DefaultMicroburst = Microburst{North: 3000, Radius: 1000, MaxOutflow: 15, MaxDowndraft: 10, Depth: 300}

// Wind returns the microburst wind in NED at a point given relative to the origin.
func (m Microburst) Wind(north, east, altitudeAGL float64) []float64 {
	if m.Radius <= 0 || m.Depth <= 0 {
		return []float64{0, 0, 0}
	}
	dn, de := north-m.North, east-m.East
	r := math.Hypot(dn, de)
	ρ := r / m.Radius
	h := math.Max(altitudeAGL, 0)
	out := m.MaxOutflow * ρ * math.Exp((1-ρ*ρ)/2) * math.Exp(-(h/m.Depth)*(h/m.Depth))
	down := m.MaxDowndraft * math.Exp(-ρ*ρ) * (1 - math.Exp(-h/m.Depth))
	w := []float64{0, 0, down}
	if r > 1e-6 {
		w[0] = out * dn / r
		w[1] = out * de / r
	}
	return w
}
