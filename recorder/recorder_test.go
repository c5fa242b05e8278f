package recorder

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/wgs84"
	"github.com/gonum/floats"
)

// levelState returns a state on the equator at the prime meridian, level and heading north.
func levelState() *dynamics.State {
	s := dynamics.NewState()
	s.Pos = wgs84.GeoToWGS(wgs84.Geo{Lat: 0, Lon: 0, Alt: 100})
	s.Att = numeric.QuaternionFromDCM(wgs84.NEDToWGS(0, 0))
	s.Vel = []float64{50, 0, 1}
	return s
}

func TestRecordReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.rec")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	epoch := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	s := levelState()
	c := dynamics.Controls{Roll: 0.1, Collective: 0.5, Engines: []dynamics.EngineControls{{Throttle: 0.7, Fuel: true}}}
	var frames []Frame
	for i := 0; i < 3; i++ {
		s.Vel[0] += float64(i)
		f := NewFrame(epoch.Add(time.Duration(i)*10*time.Millisecond), float64(i)*0.01, s, float64(i), c)
		frames = append(frames, f)
		if err := w.Record(f); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.Replay(); !errors.Is(err, ErrWriteOnly) {
		t.Fatalf("expected ErrWriteOnly, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Record(frames[0]); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	for i, exp := range frames {
		f, err := r.Replay()
		if err != nil {
			t.Fatalf("frame %d: %s", i, err)
		}
		if !floats.Equal(f.State, exp.State) || f.Time != exp.Time || f.Azimuth != exp.Azimuth || f.JD != exp.JD {
			t.Fatalf("frame %d:\n%+v\n%+v", i, f, exp)
		}
		if f.Controls.Roll != 0.1 || len(f.Controls.Engines) != 1 || !f.Controls.Engines[0].Fuel {
			t.Fatalf("frame %d controls %+v", i, f.Controls)
		}
	}
	if _, err := r.Replay(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if r.Frames() != 3 {
		t.Fatalf("replayed %d frames", r.Frames())
	}
}

func TestFrameEpochAndApply(t *testing.T) {
	epoch := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	f := NewFrame(epoch, 1.5, levelState(), 0, dynamics.Controls{})
	if d := f.Epoch().Sub(epoch); math.Abs(d.Seconds()) > 1e-3 {
		t.Fatalf("epoch off by %s", d)
	}
	s := dynamics.NewState()
	if err := f.Apply(s); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(s.Vector(), levelState().Vector()) {
		t.Fatal("applied state differs")
	}
	f.State = f.State[:5]
	if err := f.Apply(s); !errors.Is(err, ErrFrame) {
		t.Fatalf("expected ErrFrame, got %v", err)
	}
}

func TestStreamCSV(t *testing.T) {
	var buf bytes.Buffer
	st := StreamCSV(&buf, 4)
	c := dynamics.Controls{Pitch: -0.2, Engines: []dynamics.EngineControls{{Throttle: 0.8}}}
	for i := 0; i < 2; i++ {
		st.Send(NewFrame(time.Now(), float64(i), levelState(), 0, c))
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || len(rows[0]) != len(csvHeader) {
		t.Fatalf("unexpected rows %v", rows)
	}
	expected := map[string]float64{
		"time": 1, "lat": 0, "lon": 0, "alt": 100, "roll": 0, "pitch": 0, "heading": 0,
		"u": 50, "w": 1, "ctrl_pitch": -0.2, "throttle": 0.8,
	}
	for i, name := range csvHeader {
		exp, ok := expected[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(rows[2][i], 64)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.EqualWithinAbs(v, exp, 1e-4) {
			t.Fatalf("%s: %f instead of %f", name, v, exp)
		}
	}
}

func TestStreamBadFrame(t *testing.T) {
	var buf bytes.Buffer
	st := StreamCSV(&buf, 0)
	st.Send(Frame{State: []float64{1, 2}})
	st.Send(NewFrame(time.Now(), 0, levelState(), 0, dynamics.Controls{}))
	if err := st.Close(); !errors.Is(err, ErrFrame) {
		t.Fatalf("expected ErrFrame, got %v", err)
	}
}
