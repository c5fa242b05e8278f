package wgs84

import (
	"math"
	"testing"
	"time"

	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

func TestGeoRoundTrip(t *testing.T) {
	for _, g := range []Geo{
		{0, 0, 0},
		{0, 0, 10000},
		{math.Pi / 2, 0, 0},
		{-math.Pi / 2, 0, 1500},
		{numeric.Deg2rad(45), numeric.Deg2rad(45), 0},
		{numeric.Deg2rad(45), numeric.Deg2rad(45), 3000},
		{numeric.Deg2rad(-33.9), numeric.Deg2rad(151.2), 120},
		{numeric.Deg2rad(89.999), numeric.Deg2rad(-120), 50},
		{numeric.Deg2rad(10), numeric.Deg2rad(-179.9), -50},
	} {
		back := WGSToGeo(GeoToWGS(g))
		if !floats.EqualWithinAbs(back.Lat, g.Lat, 1e-5) || !floats.EqualWithinAbs(back.Lon, g.Lon, 1e-5) {
			t.Fatalf("angles %+v -> %+v", g, back)
		}
		if !floats.EqualWithinAbs(back.Alt, g.Alt, 1e-4) {
			t.Fatalf("altitude %+v -> %+v (Δ=%g m)", g, back, back.Alt-g.Alt)
		}
	}
}

func TestGeoToWGSKnownPoints(t *testing.T) {
	r := GeoToWGS(Geo{0, 0, 0})
	if !floats.EqualWithinAbs(r[0], A, 1e-6) || r[1] != 0 || r[2] != 0 {
		t.Fatalf("equator %v", r)
	}
	r = GeoToWGS(Geo{math.Pi / 2, 0, 0})
	if !floats.EqualWithinAbs(r[2], B, 1e-6) {
		t.Fatalf("north pole z=%f expected %f", r[2], B)
	}
}

func TestLocalFrames(t *testing.T) {
	lat, lon := numeric.Deg2rad(52.2), numeric.Deg2rad(21)
	ned := WGSToNED(lat, lon)
	if !mat64.EqualApprox(numeric.Mul(ned, NEDToWGS(lat, lon)), numeric.Identity3(), 1e-12) {
		t.Fatal("NED DCM is not orthonormal")
	}
	down := numeric.MtxV33(ned, []float64{0, 0, 1})
	n := Normal(lat, lon)
	if !floats.EqualApprox(down, numeric.Scale(-1, n), 1e-12) {
		t.Fatalf("down %v is not the inward normal %v", down, n)
	}
	up := numeric.MtxV33(WGSToENU(lat, lon), []float64{0, 0, 1})
	if !floats.EqualApprox(up, n, 1e-12) {
		t.Fatal("ENU up is not the normal")
	}
	// The normal is orthogonal to the surface: moving north along the ellipsoid.
	p0 := GeoToWGS(Geo{lat, lon, 0})
	p1 := GeoToWGS(Geo{lat + 1e-7, lon, 0})
	if d := numeric.Dot(numeric.Sub(p1, p0), n); math.Abs(d) > 1e-6 {
		t.Fatalf("normal not orthogonal to meridian tangent: %g", d)
	}
	north := numeric.MtxV33(ned, []float64{1, 0, 0})
	if !floats.EqualApprox(numeric.Unit(numeric.Sub(p1, p0)), north, 1e-6) {
		t.Fatal("north axis mismatch")
	}
}

func TestNormalGravity(t *testing.T) {
	if g := NormalGravity(0, 0); !floats.EqualWithinAbs(g, 9.7803253359, 1e-9) {
		t.Fatalf("equator gravity %f", g)
	}
	if g := NormalGravity(math.Pi/2, 0); !floats.EqualWithinAbs(g, 9.8321849378, 1e-6) {
		t.Fatalf("pole gravity %f", g)
	}
	if NormalGravity(0, 1000) >= NormalGravity(0, 0) {
		t.Fatal("gravity should decrease with height")
	}
	p := NewPositionGeo(Geo{numeric.Deg2rad(30), numeric.Deg2rad(-97), 200})
	gNED := numeric.MxV33(p.WGSToNED(), p.Gravity())
	if !floats.EqualApprox(gNED, p.GravityNED(), 1e-9) {
		t.Fatalf("gravity NED %v expected %v", gNED, p.GravityNED())
	}
}

func TestPosition(t *testing.T) {
	g := Geo{numeric.Deg2rad(-12), numeric.Deg2rad(77), 1234}
	a := NewPositionGeo(g)
	b := NewPositionWGS(a.WGS())
	if !floats.EqualWithinAbs(b.Geo().Alt, g.Alt, 1e-4) {
		t.Fatal("position round trip")
	}
	if !mat64.EqualApprox(a.WGSToNED(), b.WGSToNED(), 1e-9) {
		t.Fatal("cached frames differ")
	}
	w := a.WGS()
	w[0] = 0
	if a.WGS()[0] == 0 {
		t.Fatal("WGS must return a copy")
	}
}

func TestDistanceAndBearing(t *testing.T) {
	a := Geo{0, 0, 0}
	b := Geo{0, numeric.Deg2rad(1), 0}
	if d := Distance(a, b); !floats.EqualWithinRel(d, 111319.49, 1e-3) {
		t.Fatalf("one degree of longitude at the equator: %f m", d)
	}
	if Distance(a, a) != 0 {
		t.Fatal("self distance")
	}
	if brg := Bearing(a, b); !floats.EqualWithinAbs(brg, math.Pi/2, 1e-9) {
		t.Fatalf("bearing east %f", brg)
	}
	if brg := Bearing(a, Geo{-0.01, 0, 0}); !floats.EqualWithinAbs(brg, math.Pi, 1e-9) {
		t.Fatalf("bearing south %f", brg)
	}
}

func TestGeoModel(t *testing.T) {
	m, err := NewGeoModel(16)
	if err != nil {
		t.Fatal(err)
	}
	n, err := m.Undulation(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// EGM96 undulation in the Gulf of Guinea is about +17 m.
	if !floats.EqualWithinAbs(n, 17, 5) {
		t.Fatalf("undulation %f", n)
	}
	if m.cache.Len() != 1 {
		t.Fatalf("cache has %d entries", m.cache.Len())
	}
	if n2, _ := m.Undulation(1e-6, 0); n2 != n || m.cache.Len() != 1 {
		t.Fatal("cache miss for the same cell")
	}
	d, err := m.Declination(numeric.Deg2rad(39.7), numeric.Deg2rad(-105), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	// Denver declination is a few degrees east.
	if d < 0 || d > numeric.Deg2rad(15) {
		t.Fatalf("declination %f deg", numeric.Rad2deg(d))
	}
	if _, err := m.Declination(numeric.Deg2rad(39.7), numeric.Deg2rad(-105), time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expired magnetic model not reported")
	}
}

func TestGeoModelWorldwide(t *testing.T) {
	m, err := NewGeoModel(64)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name     string
		lat, lon float64 // deg
		n        float64 // m
	}{
		{"New York", 40.7, -74, -33},
		{"Santiago", -33.4, -70.7, 28},
		{"antimeridian west", 0, -180, 21},
		{"antimeridian east", 0, 180, 21},
		{"north pole", 90, 0, 14},
		{"south pole", -90, 0, -30},
		{"south pole, far longitude", -90, -135, -30},
	} {
		n, err := m.Undulation(numeric.Deg2rad(tc.lat), numeric.Deg2rad(tc.lon))
		if err != nil {
			t.Fatalf("%s: %s", tc.name, err)
		}
		if !floats.EqualWithinAbs(n, tc.n, 5) {
			t.Fatalf("%s: undulation %f m, expected about %f m", tc.name, n, tc.n)
		}
		d, err := m.Declination(numeric.Deg2rad(tc.lat), numeric.Deg2rad(tc.lon), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		if err != nil || !numeric.IsFinite(d) {
			t.Fatalf("%s: declination %f, %v", tc.name, d, err)
		}
	}
	// Longitudes are wrapped before caching.
	before := m.cache.Len()
	if _, err := m.Undulation(numeric.Deg2rad(40.7), numeric.Deg2rad(286)); err != nil || m.cache.Len() != before {
		t.Fatalf("east and west longitudes of the same meridian use distinct cells: %v", err)
	}
}

func TestDistanceAtPole(t *testing.T) {
	a := Geo{Lat: -math.Pi / 2, Lon: 0}
	b := Geo{Lat: -math.Pi / 2, Lon: 2}
	if d := Distance(a, b); d != 0 {
		t.Fatalf("distance between two representations of the pole: %f", d)
	}
	// A degree of latitude from the pole is about 111.7 km.
	c := Geo{Lat: numeric.Deg2rad(-89), Lon: 1}
	if d := Distance(a, c); !floats.EqualWithinAbs(d, 111.7e3, 0.5e3) {
		t.Fatalf("distance from the pole %f", d)
	}
}
