// Package fdm is a six degree of freedom flight dynamics model of fixed wing aircraft and
// helicopters.
//
// An FDM is driven by the host one tick at a time: Step copies a DataInp in, applies the
// requested phase, advances the aircraft and copies a DataOut out. The phases are
//
//	Idle → Initializing → Ready → Working ⇄ Paused → Stopped
//
// The initialization trims the aircraft at rest on its gear or in level flight. Any non
// finite force, moment or state stops the simulation with a numerical fault.
package fdm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ChristopherRabotin/fdm/atmos"
	"github.com/ChristopherRabotin/fdm/autopilot"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/recorder"
	"github.com/ChristopherRabotin/fdm/wgs84"
	"github.com/brunoga/deep"
	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

const (
	g0 = 9.80665
	// geoCacheSize is the number of geoid and magnetic cells kept.
	geoCacheSize = 256
	// minSpeed is the speed, m/s, under which the track and flight path are not defined.
	minSpeed = 0.1
)

// defaultEpoch is the simulated date when the host gives none.
var defaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Recorder is the record and replay collaborator, e.g. a *recorder.File.
type Recorder interface {
	Record(recorder.Frame) error
	Replay() (recorder.Frame, error)
}

// Options configure an FDM.
type Options struct {
	Loader   Loader        // EmbeddedLoader when nil
	Logger   kitlog.Logger // no logging when nil
	Recorder Recorder      // needed by the Record and Replay modes
	Seed     int64         // seed of the turbulence
}

// FDM is the flight dynamics model. It is not safe for concurrent use: the host must
// serialize the calls.
type FDM struct {
	loader   Loader
	logger   kitlog.Logger
	recorder Recorder

	phase    Phase
	crash    CrashCause
	warnings Warning
	reported Warning // warnings already logged

	in       DataInp
	out      DataOut
	aircraft *Aircraft
	state    *dynamics.State
	integ    dynamics.Integrator
	time     float64 // s simulated while working
	ctl      dynamics.Controls

	atmos      *atmos.Model
	turbulence *atmos.Turbulence
	microburst atmos.Microburst
	gust       []float64
	env        dynamics.Environment
	geo        *wgs84.GeoModel

	origin    wgs84.Geo
	originWGS []float64
	wgsToNED  *mat64.Dense // at the origin
}

// New returns an idle FDM.
func New(opts Options) *FDM {
	f := &FDM{
		loader:     opts.Loader,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
		atmos:      atmos.New(),
		turbulence: atmos.NewTurbulence(opts.Seed),
		gust:       []float64{0, 0, 0},
	}
	if f.loader == nil {
		f.loader = EmbeddedLoader
	}
	if f.logger == nil {
		f.logger = kitlog.NewNopLogger()
	}
	f.logger = kitlog.With(f.logger, "subsys", "fdm")
	geo, err := wgs84.NewGeoModel(geoCacheSize)
	if err != nil {
		panic(fmt.Errorf("geomagnetic cache: %s", err))
	}
	f.geo = geo
	f.out = DataOut{Phase: Idle}
	return f
}

// Phase returns the current phase.
func (f *FDM) Phase() Phase { return f.phase }

// Output returns a copy of the last output.
func (f *FDM) Output() DataOut { return deep.MustCopy(f.out) }

// Aircraft returns the aircraft of the last initialization, nil before.
func (f *FDM) Aircraft() *Aircraft { return f.aircraft }

// Step runs one tick of dt seconds. The returned error is fatal, the phase being then
// Stopped, unless Classify reports ClassRange.
func (f *FDM) Step(in DataInp, dt float64) (DataOut, error) {
	f.in = deep.MustCopy(in)
	f.warnings = 0
	err := f.step(dt)
	f.out.Phase, f.out.Crash, f.out.Warnings = f.phase, f.crash, f.warnings
	if fresh := f.warnings &^ f.reported; fresh != 0 {
		f.logger.Log("level", "warning", "warnings", fresh, "phase", f.phase, "t", f.time)
	}
	f.reported = f.warnings
	return deep.MustCopy(f.out), err
}

func (f *FDM) step(dt float64) error {
	switch req := f.in.Phase; req {
	case RequestStop:
		if f.phase != Stopped {
			f.logger.Log("level", "info", "phase", Stopped, "from", f.phase, "t", f.time)
		}
		f.phase, f.state = Stopped, nil
		f.out = DataOut{}
		return nil
	case RequestIdle:
		if f.phase == Stopped || f.phase == Idle {
			f.phase, f.crash = Idle, CrashNone
			return nil
		}
		f.reject(req)
	case RequestInit:
		switch f.phase {
		case Idle, Stopped:
			return f.initialize()
		default:
			f.reject(req)
		}
	case RequestWork, RequestPause:
		switch f.phase {
		case Ready, Working, Paused:
			next := Working
			if req == RequestPause {
				next = Paused
			}
			if next != f.phase {
				f.logger.Log("level", "info", "phase", next, "from", f.phase, "t", f.time)
			}
			f.phase = next
		default:
			f.reject(req)
		}
	default:
		f.reject(req)
	}
	switch f.phase {
	case Working:
		return f.work(dt)
	case Ready, Paused:
		return f.hold()
	}
	return nil
}

func (f *FDM) reject(req RequestedPhase) {
	f.warnings |= WarnPhaseRejected
	if !f.reported.Has(WarnPhaseRejected) {
		f.logger.Log("level", "warning", "msg", "requested phase rejected", "requested", req, "phase", f.phase)
	}
}

// fault stops the simulation on a fatal error.
func (f *FDM) fault(op string, err error) error {
	prev := f.phase
	err = wrap(op, prev, err)
	if f.crash == CrashNone {
		switch {
		case errors.Is(err, ErrInvalidGround):
			f.crash = CrashGround
		case Classify(err) == ClassNumerical:
			f.crash = CrashNumerical
		}
	}
	f.phase, f.state = Stopped, nil
	f.logger.Log("level", "critical", "op", op, "from", prev, "crash", f.crash, "err", err)
	return err
}

// initialize loads the aircraft and trims it at the initial conditions.
func (f *FDM) initialize() error {
	f.phase, f.crash = Initializing, CrashNone
	ic := f.in.Initial
	f.logger.Log("level", "info", "phase", Initializing, "aircraft", f.in.AircraftType,
		"lat", numeric.Rad2deg(ic.Latitude), "lon", numeric.Rad2deg(ic.Longitude), "agl", ic.AltitudeAGL,
		"airspeed", ic.Airspeed, "engine", ic.EngineOn)
	tree, err := f.loader.Load(f.in.AircraftType)
	if err != nil {
		return f.fault("init", err)
	}
	ac, err := NewAircraft(tree, f.logger)
	if err != nil {
		return f.fault("init", err)
	}
	if !numeric.AllFinite([]float64{ic.Latitude, ic.Longitude, ic.AltitudeAGL, ic.Heading, ic.Airspeed}) {
		return f.fault("init", fmt.Errorf("initial conditions: %w", numeric.ErrNotFinite))
	}
	lat := numeric.Clamp(ic.Latitude, -math.Pi/2, math.Pi/2)
	if lat != ic.Latitude {
		f.warnings |= WarnInputClamped
	}
	lon, ψ := numeric.WrapPi(ic.Longitude), numeric.Wrap2Pi(ic.Heading)
	f.aircraft = ac
	ac.Initialize(ic.EngineOn)
	f.masses()

	f.origin = wgs84.Geo{Lat: lat, Lon: lon}
	f.originWGS = wgs84.GeoToWGS(f.origin)
	f.wgsToNED = wgs84.WGSToNED(lat, lon)
	f.microburst = atmos.DefaultMicroburst
	sψ, cψ := math.Sincos(ψ)
	f.microburst.North, f.microburst.East = atmos.DefaultMicroburst.North*cψ, atmos.DefaultMicroburst.North*sψ
	f.turbulence.Reset()
	f.gust = []float64{0, 0, 0}
	f.time = 0
	if err := f.ground(); err != nil {
		return f.fault("init", err)
	}
	f.ctl = f.controls()
	f.environment(0, f.originWGS, ic.AltitudeAGL)

	fm := &forceModel{ac: ac, env: &f.env, ctl: &f.ctl}
	var (
		p     pose
		iters int
		mode  string
	)
	if ic.AltitudeAGL <= ac.Init.GroundThreshold {
		mode = "ground"
		t := newTrimmer(fm, lat, lon, ψ, nil)
		h0 := math.Inf(-1)
		for _, u := range ac.Gear.Units() {
			if u.Wheel {
				h0 = math.Max(h0, u.Position[2])
			}
		}
		if math.IsInf(h0, -1) {
			h0 = 0
		}
		p, iters, err = t.ground(ac.Init.Ground, h0)
		if err == nil {
			f.state = t.state(p)
		}
	} else {
		mode = "flight"
		velNED := numeric.Add([]float64{ic.Airspeed * math.Cos(ψ), ic.Airspeed * math.Sin(ψ), 0}, f.env.Wind)
		t := newTrimmer(fm, lat, lon, ψ, velNED)
		p.h = ic.AltitudeAGL
		if ac.Variant == Helicopter {
			p, iters, err = t.rotorcraft(ac.Init.Flight, p.h)
		} else {
			p.θ, iters, err = t.flight(ac.Init.Flight, p.h)
		}
		if err == nil {
			f.state = t.state(p)
		}
	}
	if err != nil {
		return f.fault("init", err)
	}
	fm, err = f.evaluate()
	if err != nil {
		return f.fault("init", err)
	}
	f.output(fm)
	f.phase = Ready
	f.logger.Log("level", "notice", "trim", mode, "iterations", iters, "agl", p.h,
		"pitch", numeric.Rad2deg(p.θ), "roll", numeric.Rad2deg(p.φ))
	f.logger.Log("level", "info", "phase", Ready, "aircraft", ac.Name, "on_ground", f.out.OnGround)
	return nil
}

// ground resolves the ground plane, the ellipsoid under the initial position by default.
func (f *FDM) ground() error {
	g := f.in.Ground
	if len(g.Normal) == 0 {
		f.env.Ground = dynamics.Ground{
			Point:  wgs84.GeoToWGS(f.origin),
			Normal: wgs84.Normal(f.origin.Lat, f.origin.Lon),
		}
		return nil
	}
	if len(g.Normal) != 3 || len(g.Point) != 3 {
		return fmt.Errorf("%w: point and normal must be 3-vectors", ErrInvalidGround)
	}
	if !numeric.AllFinite(g.Point, g.Normal) {
		return fmt.Errorf("%w: %w", ErrInvalidGround, numeric.ErrNotFinite)
	}
	if numeric.Norm(g.Normal) < numeric.Zeroε {
		return fmt.Errorf("%w: null normal", ErrInvalidGround)
	}
	// The normal must point away from the Earth center.
	if numeric.Dot(g.Normal, wgs84.Normal(f.origin.Lat, f.origin.Lon)) <= 0 {
		return fmt.Errorf("%w: normal pointing into the ground", ErrInvalidGround)
	}
	f.env.Ground = dynamics.Ground{
		Point:  append([]float64(nil), g.Point...),
		Normal: numeric.Unit(g.Normal),
	}
	return nil
}

// masses applies the variable masses of the input.
func (f *FDM) masses() {
	if f.in.Masses == nil {
		return
	}
	m := f.aircraft.Mass
	n := len(m.Points())
	for i, kg := range f.in.Masses {
		if !m.SetPointMass(i, kg) || i >= n {
			f.warnings |= WarnMassClamped
		}
	}
	m.Recompute()
}

// controls returns the input controls clamped to their ranges.
func (f *FDM) controls() dynamics.Controls {
	c := f.in.Controls
	c.Engines = append([]dynamics.EngineControls(nil), c.Engines...)
	clamped := false
	clamp := func(v *float64, lo, hi float64) {
		x := *v
		if !numeric.IsFinite(x) {
			x = 0
		}
		x = numeric.Clamp(x, lo, hi)
		if x != *v {
			clamped = true
		}
		*v = x
	}
	for _, v := range []*float64{&c.Roll, &c.Pitch, &c.Yaw, &c.TrimRoll, &c.TrimPitch, &c.TrimYaw} {
		clamp(v, -1, 1)
	}
	for _, v := range []*float64{&c.Collective, &c.Flaps, &c.BrakeLeft, &c.BrakeRight} {
		clamp(v, 0, 1)
	}
	for i := range c.Engines {
		e := &c.Engines[i]
		clamp(&e.Throttle, 0, 1)
		clamp(&e.Mixture, 0, 1)
		clamp(&e.Propeller, 0, 1)
	}
	if clamped {
		f.warnings |= WarnInputClamped
	}
	return c
}

// environment updates the atmosphere and the wind at pos, dt being zero when the state
// does not advance.
func (f *FDM) environment(dt float64, pos []float64, agl float64) {
	e := f.in.Environment
	t, p := e.TemperatureSL, e.PressureSL
	if t == 0 {
		t = atmos.StdTemperatureSL
	}
	if p == 0 {
		p = atmos.StdPressureSL
	}
	if !f.atmos.SetSeaLevel(t, p) {
		f.warnings |= WarnAtmosphere
	}
	wind := atmos.WindNED(e.WindDirection, e.WindSpeed)
	if !numeric.AllFinite(wind) {
		wind = []float64{0, 0, 0}
		f.warnings |= WarnInputClamped
	}
	if dt > 0 {
		f.gust = f.turbulence.Update(dt, e.Turbulence, f.out.Airspeed, agl)
	}
	wind = numeric.Add(wind, f.gust)
	if e.WindShear == WindShearMicroburst {
		ne := numeric.MxV33(f.wgsToNED, numeric.Sub(pos, f.originWGS))
		wind = numeric.Add(wind, f.microburst.Wind(ne[0], ne[1], agl))
	}
	f.env.Atmosphere = f.atmos
	f.env.Wind = wind
}

// epoch returns the simulated instant.
func (f *FDM) epoch() time.Time {
	d := f.in.DateTime
	if d.IsZero() {
		d = defaultEpoch
	}
	return d.Add(time.Duration(f.time * float64(time.Second)))
}

// evaluate computes the forces and accelerations at the current state, without advancing.
func (f *FDM) evaluate() (*forceModel, error) {
	fm := &forceModel{ac: f.aircraft, env: &f.env, ctl: &f.ctl}
	_, acc, eps, err := fm.accelerations(f.state)
	if err != nil {
		return nil, err
	}
	f.state.Acc, f.state.Eps = acc, eps
	return fm, nil
}

// hold refreshes the outputs of a Ready or Paused simulation.
func (f *FDM) hold() error {
	f.masses()
	f.ctl = f.controls()
	f.environment(0, f.state.Pos, f.out.AltitudeAGL)
	fm, err := f.evaluate()
	if err != nil {
		return f.fault("step", err)
	}
	f.output(fm)
	return nil
}

// work advances the simulation by dt.
func (f *FDM) work(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 1) {
		return &Error{Class: ClassRange, Op: "step", Phase: f.phase, Err: fmt.Errorf("invalid time step %g", dt)}
	}
	ac := f.aircraft
	f.masses()
	f.ctl = f.controls()
	f.autopilot(dt)
	f.environment(dt, f.state.Pos, f.out.AltitudeAGL)
	f.integ.Freeze = f.in.Freeze

	if f.in.Recording == Replay {
		if err := f.replay(); err != nil {
			return f.fault("replay", err)
		}
	} else {
		fm := &forceModel{ac: ac, env: &f.env, ctl: &f.ctl}
		if err := f.integ.Step(f.state, dt, fm); err != nil {
			return f.fault("step", err)
		}
		f.time += dt
	}
	fm, err := f.evaluate()
	if err != nil {
		return f.fault("step", err)
	}
	if err := ac.Update(dt, fm.k, &f.ctl, fm.sh); err != nil {
		return f.fault("step", err)
	}
	if f.in.Recording == Record {
		f.record()
	}
	f.output(fm)
	if cause := f.crashed(); cause != CrashNone {
		f.crash = cause
		prev := f.phase
		f.phase, f.state = Stopped, nil
		f.logger.Log("level", "critical", "crash", cause, "from", prev, "t", f.time,
			"airspeed", f.out.Airspeed, "nz", f.out.LoadFactor[2], "agl", f.out.AltitudeAGL)
	}
	return nil
}

// autopilot flies the controls when engaged.
func (f *FDM) autopilot(dt float64) {
	o, nav := f.out, f.in.Navigation
	m := autopilot.Measurements{
		Roll:                o.Roll,
		Pitch:               o.Pitch,
		Heading:             o.Heading,
		Altitude:            o.AltitudeMSL,
		ClimbRate:           o.ClimbRate,
		Airspeed:            o.Airspeed,
		NavDeviation:        nav.NavDeviation,
		NavValid:            nav.NavValid,
		GlideslopeDeviation: nav.GlideslopeDeviation,
		GlideslopeValid:     nav.GlideslopeValid,
	}
	if len(o.Omg) == 3 {
		m.RollRate, m.PitchRate, m.YawRate = o.Omg[0], o.Omg[1], o.Omg[2]
	}
	cmd := f.aircraft.Autopilot.Update(dt, m, f.in.Autopilot)
	if cmd.Engaged {
		f.ctl.Roll, f.ctl.Pitch = cmd.Roll, cmd.Pitch
	}
	if cmd.YawDamper {
		f.ctl.Yaw = numeric.Clamp(f.ctl.Yaw+cmd.Yaw, -1, 1)
	}
}

// replay sets the state to the next recorded frame. The last state is held at the end of
// the recording or when the recorder fails.
func (f *FDM) replay() error {
	if f.recorder == nil {
		f.warnings |= WarnRecorder
		return nil
	}
	fr, err := f.recorder.Replay()
	switch {
	case err == io.EOF:
		f.warnings |= WarnReplayEnd
		return nil
	case errors.Is(err, recorder.ErrFrame):
		return fmt.Errorf("%w: %s", numeric.ErrNotFinite, err)
	case err != nil:
		f.warnings |= WarnRecorder
		if !f.reported.Has(WarnRecorder) {
			f.logger.Log("level", "warning", "subsys", "recorder", "err", err)
		}
		return nil
	}
	if err := fr.Apply(f.state); err != nil {
		return err
	}
	if err := f.state.Check(); err != nil {
		return err
	}
	f.state.Att = f.state.Att.Normalized()
	f.time = fr.Time
	f.ctl = fr.Controls
	if h := f.aircraft.Rotorcraft; h != nil {
		h.Main.SetAzimuth(fr.Azimuth)
	}
	return nil
}

// record appends the current state to the recording.
func (f *FDM) record() {
	if f.recorder == nil {
		f.warnings |= WarnRecorder
		return
	}
	var azimuth float64
	if h := f.aircraft.Rotorcraft; h != nil {
		azimuth = h.Main.State().Azimuth
	}
	if err := f.recorder.Record(recorder.NewFrame(f.epoch(), f.time, f.state, azimuth, f.ctl)); err != nil {
		f.warnings |= WarnRecorder
		if !f.reported.Has(WarnRecorder) {
			f.logger.Log("level", "warning", "subsys", "recorder", "err", err)
		}
	}
}

// crashed returns the crash cause of the last output, if any.
func (f *FDM) crashed() CrashCause {
	o, l := &f.out, f.aircraft.Limits
	switch {
	case f.aircraft.Gear.Collision():
		return CrashCollision
	case o.Airspeed > l.AirspeedMax:
		return CrashOverspeed
	case o.LoadFactor[2] < l.NzMin || o.LoadFactor[2] > l.NzMax:
		return CrashOverstress
	}
	return CrashNone
}

// output derives the outputs from the state and its last evaluation.
func (f *FDM) output(fm *forceModel) {
	k, s, ac := fm.k, f.state, f.aircraft
	if k.AtmosClamped {
		f.warnings |= WarnAtmosphere
	}
	geo := k.Position.Geo()
	o := DataOut{
		Time:        f.time,
		Latitude:    geo.Lat,
		Longitude:   geo.Lon,
		Altitude:    geo.Alt,
		AltitudeMSL: geo.Alt,
		AltitudeAGL: k.AltitudeAGL,
		Roll:        k.Roll,
		Pitch:       k.Pitch,
		Heading:     k.Heading,
		Attitude:    s.Att.Slice(),
		Position:    append([]float64(nil), s.Pos...),
		Vel:         append([]float64(nil), s.Vel...),
		Omg:         append([]float64(nil), s.Omg...),
		Acc:         append([]float64(nil), s.Acc...),
		Eps:         append([]float64(nil), s.Eps...),
		VelNED:      append([]float64(nil), k.VelNED...),
		Airspeed:    k.Airspeed,
		IAS:         k.Airspeed * math.Sqrt(k.Air.Density/atmos.StdDensitySL),
		Mach:        k.Mach,
		AoA:         k.AoA,
		Sideslip:    k.Sideslip,
		DynPress:    k.DynPress,
		ClimbRate:   -k.VelNED[2],
		OnGround:    fm.sh.OnGround,
		Mass:        ac.Mass.Mass(),
		CG:          ac.Mass.CG(),
		Controls:    deep.MustCopy(f.ctl),
		Engines:     ac.Propulsion.Telemetry(),
		Autopilot:   ac.Autopilot.Commands(),
	}
	o.MagneticHeading = k.Heading
	if n, err := f.geo.Undulation(geo.Lat, geo.Lon); err == nil {
		o.AltitudeMSL = geo.Alt - n
	} else {
		f.warnings |= WarnMagneticModel
	}
	if d, err := f.geo.Declination(geo.Lat, geo.Lon, f.epoch()); err == nil {
		o.MagneticHeading = numeric.Wrap2Pi(k.Heading - d)
	} else {
		f.warnings |= WarnMagneticModel
	}

	vn, ve, vd := k.VelNED[0], k.VelNED[1], k.VelNED[2]
	o.GroundSpeed = math.Hypot(vn, ve)
	o.Track = k.Heading
	if o.GroundSpeed > minSpeed {
		o.Track = numeric.Wrap2Pi(math.Atan2(ve, vn))
	}
	if math.Hypot(o.GroundSpeed, vd) > minSpeed {
		o.FlightPath = math.Atan2(-vd, o.GroundSpeed)
	}
	sφ, cφ := math.Sincos(k.Roll)
	if cθ := math.Cos(k.Pitch); math.Abs(cθ) > numeric.Zeroε {
		o.TurnRate = (s.Omg[1]*sφ + s.Omg[2]*cφ) / cθ
	}

	// Specific force: what accelerometers at the BAS origin measure.
	fs := numeric.Sub(numeric.Add(s.Acc, numeric.Cross(s.Omg, s.Vel)), k.GravityBAS)
	o.LoadFactor = []float64{fs[0] / g0, fs[1] / g0, -fs[2] / g0}
	o.SlipSkid = o.LoadFactor[1]
	o.Range = wgs84.Distance(f.origin, geo)

	if ac.Wing != nil {
		o.Stall = ac.Wing.Last().Stall
	}
	if h := ac.Rotorcraft; h != nil {
		o.MainRotor, o.TailRotor = h.Main.State(), h.Tail.State()
		if !o.MainRotor.Converged {
			f.warnings |= WarnRotorInflow
		}
	}
	f.out = o
}
