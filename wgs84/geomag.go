package wgs84

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ChristopherRabotin/fdm/numeric"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/unit"
	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// cellSize is the quantization of the geomagnetic cache, in degrees.
const cellSize = 0.05

// lonCells is the number of cells around a parallel.
const lonCells = int32(360 / cellSize)

// wmmValidity is the number of years a magnetic model is valid after its epoch.
const wmmValidity = 5

// models serializes the geoid and magnetic model calls, both libraries keeping
// unguarded package state.
var models sync.Mutex

// undulationEpoch keys undulation-only lookups; the geoid does not depend on the date.
var undulationEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type cell struct {
	lat, lon int32
	day      int32
}

type magnetics struct {
	undulation  float64
	declination float64
	geoidErr    error
	magErr      error
}

// GeoModel provides the geoid undulation (EGM96) and the magnetic declination (WMM).
// Both models are expensive compared to a simulation step, so values are cached per
// cell of cellSize degrees and per day.
type GeoModel struct {
	cache *lru.Cache[cell, magnetics]
}

// NewGeoModel returns a model caching at most size cells.
func NewGeoModel(size int) (*GeoModel, error) {
	c, err := lru.New[cell, magnetics](size)
	if err != nil {
		return nil, err
	}
	return &GeoModel{cache: c}, nil
}

func (m *GeoModel) lookup(lat, lon float64, date time.Time) magnetics {
	// Both grids are sampled inside [-90, 90] latitudes and [0, 360) longitudes. The cells
	// touching a pole are moved inwards: WMM is singular there and the EGM96 interpolation
	// reads past the last row at -90.
	latDeg := numeric.Clamp(numeric.Rad2deg(lat), -90+cellSize, 90-cellSize)
	k := cell{
		lat: int32(math.Round(latDeg / cellSize)),
		lon: int32(math.Round(numeric.Rad2deg(numeric.Wrap2Pi(lon))/cellSize)) % lonCells,
		day: int32(date.Unix() / 86400),
	}
	if v, ok := m.cache.Get(k); ok {
		return v
	}
	latDeg = float64(k.lat) * cellSize
	lonDeg := float64(k.lon) * cellSize
	var v magnetics
	loc := egm96.NewLocationGeodetic(latDeg, lonDeg, 0)
	models.Lock()
	if msl, err := loc.HeightAboveMSL(); err == nil {
		v.undulation = -msl
	} else {
		v.geoidErr = fmt.Errorf("egm96: %s", err)
	}
	if mag, err := wmm.CalculateWMMMagneticField(loc, date); err == nil {
		v.declination = numeric.Deg2rad(mag.D())
		if date.Before(wmm.ValidDate) || wmm.TimeToDecimalYears(date) > wmm.Epoch+wmmValidity {
			v.magErr = fmt.Errorf("wmm: %s outside of the %s model validity", date.Format(time.DateOnly), wmm.COFName)
		}
	} else {
		v.magErr = fmt.Errorf("wmm: %s", err)
	}
	models.Unlock()
	m.cache.Add(k, v)
	return v
}

// Undulation returns the geoid height above the ellipsoid at the given position.
func (m *GeoModel) Undulation(lat, lon float64) (float64, error) {
	v := m.lookup(lat, lon, undulationEpoch)
	return v.undulation, v.geoidErr
}

// Declination returns the magnetic declination (positive east) at the given position
// and date. An error is returned when the date is outside the magnetic model validity.
func (m *GeoModel) Declination(lat, lon float64, date time.Time) (float64, error) {
	v := m.lookup(lat, lon, date)
	return v.declination, v.magErr
}

var earth = globe.Ellipsoid{Er: A / 1000, Fl: F}

// Distance returns the geodesic distance in meters between two points on the ellipsoid.
func Distance(a, b Geo) float64 {
	// Meeus counts longitudes positive west.
	c1 := globe.Coord{Lat: unit.Angle(a.Lat), Lon: unit.Angle(-a.Lon)}
	c2 := globe.Coord{Lat: unit.Angle(b.Lat), Lon: unit.Angle(-b.Lon)}
	// Points on the same pole coincide whatever their longitudes.
	if c1 == c2 || (a.Lat == b.Lat && math.Cos(a.Lat) < 1e-12) {
		return 0
	}
	return earth.Distance(c1, c2) * 1000
}

// Bearing returns the initial great circle bearing from a to b, in [0, 2π).
func Bearing(a, b Geo) float64 {
	sΔ, cΔ := math.Sincos(b.Lon - a.Lon)
	s1, c1 := math.Sincos(a.Lat)
	s2, c2 := math.Sincos(b.Lat)
	return numeric.Wrap2Pi(math.Atan2(sΔ*c2, c1*s2-s1*c2*cΔ))
}
