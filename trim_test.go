package fdm

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/recorder"
	"github.com/ChristopherRabotin/fdm/wgs84"
	"github.com/gonum/floats"
)

// slopedGround returns the ground through the origin, tilted by the given angle towards the north.
func slopedGround(slope float64) Ground {
	sa, ca := math.Sincos(slope)
	// At the origin, the WGS x axis points up and z points north.
	return Ground{Point: wgs84.GeoToWGS(wgs84.Geo{}), Normal: []float64{ca, 0, sa}}
}

func TestInitOnSlopedGround(t *testing.T) {
	for _, tc := range []struct {
		aircraft       string
		slope, heading float64 // deg
	}{
		{"c172", 3, 0},
		{"c172", 5, 0},
		{"c172", 8, 0},
		{"c172", 5, 90},
		{"c172", 8, 90},
		{"c172", 8, 225},
		{"c172", 8, 315},
		{"uh60", 5, 0},
		{"uh60", 8, 135},
	} {
		in := initInput(tc.aircraft, InitialConditions{Heading: numeric.Deg2rad(tc.heading)})
		in.Ground = slopedGround(numeric.Deg2rad(tc.slope))
		f := New(Options{})
		out, err := f.Step(in, dt)
		if err != nil {
			t.Fatalf("%s on a %.0f deg slope, heading %.0f: %s", tc.aircraft, tc.slope, tc.heading, err)
		}
		if out.Phase != Ready || !out.OnGround {
			t.Fatalf("%s on a %.0f deg slope, heading %.0f: phase=%s on ground=%v", tc.aircraft, tc.slope, tc.heading, out.Phase, out.OnGround)
		}
		if out.AltitudeAGL < 0.5 || out.AltitudeAGL > 2.5 {
			t.Fatalf("%s on a %.0f deg slope, heading %.0f: AGL %f m", tc.aircraft, tc.slope, tc.heading, out.AltitudeAGL)
		}
		// The aircraft lies on the slope as it does on flat ground: the angle between its z
		// axis and the ground normal is the same.
		_, flat := ready(t, Options{}, initInput(tc.aircraft, InitialConditions{Heading: numeric.Deg2rad(tc.heading)}))
		onFlat := math.Acos(math.Cos(flat.Roll) * math.Cos(flat.Pitch))
		sa, ca := math.Sincos(numeric.Deg2rad(tc.slope))
		n := numeric.MxV33(numeric.EulerToDCM(out.Roll, out.Pitch, out.Heading), []float64{sa, 0, -ca})
		if onSlope := math.Acos(-n[2]); math.Abs(onSlope-onFlat) > numeric.Deg2rad(0.5) {
			t.Fatalf("%s on a %.0f deg slope, heading %.0f: tilt to the ground %f deg, %f deg on flat ground", tc.aircraft,
				tc.slope, tc.heading, numeric.Rad2deg(onSlope), numeric.Rad2deg(onFlat))
		}
		if floats.Norm(out.Vel, 2) != 0 || floats.Norm(out.Omg, 2) != 0 {
			t.Fatalf("%s on a %.0f deg slope: velocities not null", tc.aircraft, tc.slope)
		}
	}
}

func TestInitWorldwide(t *testing.T) {
	for _, tc := range []struct {
		name     string
		lat, lon float64 // deg
		geoid    float64 // m, EGM96 undulation
	}{
		{"gulf of guinea", 0, 0, 17.16},
		{"new york", 40.64, -73.78, -32.58},
		{"antimeridian", 0, -180, 21.15},
		{"north pole", 90, 0, 13.67},
		{"south pole", -90, 0, -29.54},
	} {
		ic := InitialConditions{Latitude: numeric.Deg2rad(tc.lat), Longitude: numeric.Deg2rad(tc.lon), Heading: numeric.Deg2rad(60)}
		f := New(Options{})
		out, err := f.Step(initInput("c172", ic), dt)
		if err != nil {
			t.Fatalf("%s: %s", tc.name, err)
		}
		if out.Phase != Ready || !out.OnGround {
			t.Fatalf("%s: phase=%s on ground=%v", tc.name, out.Phase, out.OnGround)
		}
		if out.Warnings.Has(WarnMagneticModel) {
			t.Fatalf("%s: geoid or magnetic model unavailable", tc.name)
		}
		if n := out.Altitude - out.AltitudeMSL; !floats.EqualWithinAbs(n, tc.geoid, 0.5) {
			t.Fatalf("%s: undulation %f m, expected %f m", tc.name, n, tc.geoid)
		}
		if !floats.EqualWithinAbs(out.Latitude, ic.Latitude, 1e-6) || !numeric.IsFinite(out.MagneticHeading) {
			t.Fatalf("%s: latitude=%f magnetic heading=%f", tc.name, numeric.Rad2deg(out.Latitude), out.MagneticHeading)
		}
		if out.Range > 1e-3 {
			t.Fatalf("%s: range %f m after initialization", tc.name, out.Range)
		}
	}
}

func TestInitHelicopterInFlight(t *testing.T) {
	for _, airspeed := range []float64{0, 30} {
		ic := InitialConditions{AltitudeAGL: 500, Airspeed: airspeed, Heading: numeric.Deg2rad(20), EngineOn: true}
		_, out := ready(t, Options{}, initInput("uh60", ic))
		if out.OnGround {
			t.Fatalf("V=%.0f: helicopter initialized at 500 m AGL is on ground", airspeed)
		}
		if c := out.Controls.Collective; c < 0.2 || c > 0.8 {
			t.Fatalf("V=%.0f: trimmed collective %f", airspeed, c)
		}
		if math.Abs(out.Pitch) > numeric.Deg2rad(15) || math.Abs(out.Roll) > numeric.Deg2rad(10) {
			t.Fatalf("V=%.0f: roll=%f pitch=%f deg", airspeed, numeric.Rad2deg(out.Roll), numeric.Rad2deg(out.Pitch))
		}
		// No angular velocity: the body frame derivative is the inertial acceleration.
		nedToBAS := numeric.EulerToDCM(out.Roll, out.Pitch, out.Heading)
		if acc := numeric.MxV33(numeric.Transpose(nedToBAS), out.Acc); numeric.Norm(acc) > 5e-3 {
			t.Fatalf("V=%.0f: acceleration %v m/s^2 after trim", airspeed, acc)
		}
		if !floats.EqualWithinAbs(out.Airspeed, airspeed, 1e-6) || !out.MainRotor.Converged {
			t.Fatalf("V=%.0f: airspeed=%f inflow converged=%v", airspeed, out.Airspeed, out.MainRotor.Converged)
		}
	}
}

func TestHelicopterHoverNeedsRotor(t *testing.T) {
	f := New(Options{})
	out, err := f.Step(initInput("uh60", InitialConditions{AltitudeAGL: 500}), dt)
	if err == nil || Classify(err) != ClassConvergence {
		t.Fatalf("hover with a stopped rotor: expected a convergence error, got %v", err)
	}
	if out.Phase != Stopped {
		t.Fatalf("phase=%s", out.Phase)
	}
}

func TestReplayRotorAzimuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hover.rec")
	w, err := recorder.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	hover := InitialConditions{AltitudeAGL: 500, EngineOn: true}
	f, out := ready(t, Options{Recorder: w}, initInput("uh60", hover))
	in := DataInp{Phase: RequestWork, Recording: Record, Controls: out.Controls}
	var azimuths []float64
	for i := 0; i < 20; i++ {
		out, err := f.Step(in, dt)
		if err != nil {
			t.Fatalf("step %d: %s", i, err)
		}
		azimuths = append(azimuths, out.MainRotor.Azimuth)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if last := azimuths[len(azimuths)-1]; last < 1 {
		t.Fatalf("rotor barely turned: azimuth %f rad", last)
	}

	r, err := recorder.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	// The replaying rotor is stopped: its azimuth only comes from the recording.
	f, _ = ready(t, Options{Recorder: r}, initInput("uh60", InitialConditions{}))
	in = DataInp{Phase: RequestWork, Recording: Replay}
	for i, exp := range azimuths {
		out, err := f.Step(in, dt)
		if err != nil {
			t.Fatalf("replay %d: %s", i, err)
		}
		if !floats.EqualWithinAbs(out.MainRotor.Azimuth, exp, 1e-12) {
			t.Fatalf("replay %d: azimuth %f, recorded %f", i, out.MainRotor.Azimuth, exp)
		}
	}
}
