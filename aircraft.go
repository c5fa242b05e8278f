package fdm

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChristopherRabotin/fdm/aero"
	"github.com/ChristopherRabotin/fdm/autopilot"
	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/gear"
	"github.com/ChristopherRabotin/fdm/mass"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/propulsion"
	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

//go:embed aircraft/*.toml
var embedded embed.FS

// Loader resolves an aircraft type to its configuration.
type Loader interface {
	Load(aircraftType string) (*conf.Tree, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(aircraftType string) (*conf.Tree, error)

// Load implements the Loader interface.
func (f LoaderFunc) Load(aircraftType string) (*conf.Tree, error) { return f(aircraftType) }

// EmbeddedLoader loads the aircraft shipped with the package: "c172" and "uh60".
var EmbeddedLoader Loader = LoaderFunc(func(aircraftType string) (*conf.Tree, error) {
	data, err := embedded.ReadFile("aircraft/" + aircraftType + ".toml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAircraft, aircraftType)
	}
	return conf.Parse(data, "toml")
})

// DirLoader loads the aircraft from the <type>.toml files of dir.
func DirLoader(dir string) Loader {
	return LoaderFunc(func(aircraftType string) (*conf.Tree, error) {
		path := filepath.Join(dir, aircraftType+".toml")
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %q: %s", ErrUnknownAircraft, aircraftType, err)
		}
		return conf.Load(path)
	})
}

// Variant is the closed set of aircraft kinds.
type Variant uint8

const (
	// FixedWing is an airplane.
	FixedWing Variant = iota + 1
	// Helicopter is a single main rotor helicopter.
	Helicopter
)

func (v Variant) String() string {
	switch v {
	case FixedWing:
		return "fixed_wing"
	case Helicopter:
		return "helicopter"
	}
	panic("cannot stringify unknown aircraft variant")
}

// Limits are the structural limits, exceeding them is a crash.
type Limits struct {
	AirspeedMax  float64 // m/s
	NzMin, NzMax float64 // normal load factor
}

// GroundTrim tunes the on ground initialization.
type GroundTrim struct {
	Epsilon       float64 // largest change of the last iteration, m and rad
	MaxIterations int
	MaxStepAlt    float64 // m
	MaxStepAngle  float64 // rad
}

// FlightTrim tunes the in flight initialization.
type FlightTrim struct {
	Epsilon       float64 // largest pitch change of the last iteration, rad
	Tolerance     float64 // largest vertical acceleration, m/s^2
	MaxIterations int
}

// InitSettings tune the initialization.
type InitSettings struct {
	GroundThreshold float64 // AGL, m, under which the aircraft is initialized on ground
	Ground          GroundTrim
	Flight          FlightTrim
}

// Aircraft is an assembled aircraft: its configuration turned into force contributors.
type Aircraft struct {
	Name       string
	Variant    Variant
	Mass       *mass.Model
	Wing       *aero.FixedWing  // nil for helicopters
	Rotorcraft *aero.Helicopter // nil for airplanes
	Propulsion *propulsion.Group
	Gear       *gear.Gear
	Autopilot  *autopilot.Autopilot
	Limits     Limits
	Init       InitSettings

	// contributors in evaluation order: mass, aerodynamics, propulsion, gear.
	contributors []dynamics.ForceContributor
}

// NewAircraft assembles the aircraft described by t.
func NewAircraft(t *conf.Tree, logger kitlog.Logger) (*Aircraft, error) {
	d := t.Decoder()
	a := &Aircraft{Name: d.StringOr("name", "")}
	kind := d.String("type")
	mt, at, pt, gt := d.Sub("mass"), d.Sub("aero"), d.Sub("propulsion"), d.Sub("gear")
	if err := d.Err(); err != nil {
		return nil, err
	}
	var err error
	if a.Mass, err = mass.New(mt); err != nil {
		return nil, err
	}
	if a.Propulsion, err = propulsion.NewGroup(pt); err != nil {
		return nil, err
	}
	var aeroModel dynamics.ForceContributor
	switch kind {
	case "fixed_wing":
		a.Variant = FixedWing
		if a.Wing, err = aero.NewFixedWing(at); err != nil {
			return nil, err
		}
		aeroModel = a.Wing
	case "helicopter":
		a.Variant = Helicopter
		if a.Rotorcraft, err = aero.NewHelicopter(at); err != nil {
			return nil, err
		}
		aeroModel = a.Rotorcraft
		for _, e := range a.Propulsion.Engines() {
			if ts, ok := e.(*propulsion.Turboshaft); ok {
				ts.SetGovernedSpeed(a.Rotorcraft.Main.Nominal())
			}
		}
	default:
		return nil, fmt.Errorf("%w: type: unknown aircraft variant %q", conf.ErrMalformed, kind)
	}
	if a.Gear, err = gear.New(gt); err != nil {
		return nil, err
	}
	apt := conf.FromMap(map[string]interface{}{})
	if t.IsSet("autopilot") {
		if apt, err = t.Sub("autopilot"); err != nil {
			return nil, err
		}
	}
	if a.Autopilot, err = autopilot.New(apt, logger); err != nil {
		return nil, err
	}
	if a.Limits, err = readLimits(t); err != nil {
		return nil, err
	}
	if a.Init, err = readInit(t); err != nil {
		return nil, err
	}
	a.contributors = []dynamics.ForceContributor{a.Mass, aeroModel, a.Propulsion, a.Gear}
	return a, nil
}

func readLimits(t *conf.Tree) (Limits, error) {
	l := Limits{AirspeedMax: 1e3, NzMin: -10, NzMax: 10}
	if !t.IsSet("limits") {
		return l, nil
	}
	lt, err := t.Sub("limits")
	if err != nil {
		return l, err
	}
	d := lt.Decoder()
	l.AirspeedMax = d.ScalarOr("airspeed_max", l.AirspeedMax)
	l.NzMin = d.ScalarOr("nz_min", l.NzMin)
	l.NzMax = d.ScalarOr("nz_max", l.NzMax)
	if err := d.Err(); err != nil {
		return l, err
	}
	if l.AirspeedMax <= 0 || l.NzMin >= l.NzMax {
		return l, fmt.Errorf("%w: %s: inconsistent limits", conf.ErrMalformed, lt.Path())
	}
	return l, nil
}

func readInit(t *conf.Tree) (InitSettings, error) {
	s := InitSettings{
		GroundThreshold: 1,
		Ground:          GroundTrim{Epsilon: 1e-6, MaxIterations: 100, MaxStepAlt: 0.1, MaxStepAngle: numeric.Deg2rad(2)},
		Flight:          FlightTrim{Epsilon: 1e-6, Tolerance: 1e-3, MaxIterations: 50},
	}
	d := t.Decoder()
	s.GroundThreshold = d.ScalarOr("init.ground.agl_threshold", s.GroundThreshold)
	s.Ground.Epsilon = d.ScalarOr("init.ground.epsilon", s.Ground.Epsilon)
	s.Ground.MaxIterations = d.IntOr("init.ground.max_iterations", s.Ground.MaxIterations)
	s.Ground.MaxStepAlt = d.ScalarOr("init.ground.max_step_alt", s.Ground.MaxStepAlt)
	s.Ground.MaxStepAngle = numeric.Deg2rad(d.ScalarOr("init.ground.max_step_angle", numeric.Rad2deg(s.Ground.MaxStepAngle)))
	s.Flight.Epsilon = d.ScalarOr("init.flight.epsilon", s.Flight.Epsilon)
	s.Flight.Tolerance = d.ScalarOr("init.flight.tolerance", s.Flight.Tolerance)
	s.Flight.MaxIterations = d.IntOr("init.flight.max_iterations", s.Flight.MaxIterations)
	if err := d.Err(); err != nil {
		return s, err
	}
	if s.Ground.Epsilon <= 0 || s.Ground.MaxIterations < 1 || s.Ground.MaxStepAlt <= 0 || s.Ground.MaxStepAngle <= 0 ||
		s.Flight.Epsilon <= 0 || s.Flight.Tolerance <= 0 || s.Flight.MaxIterations < 1 {
		return s, fmt.Errorf("%w: init: tunables must be positive", conf.ErrMalformed)
	}
	return s, nil
}

// Contributors returns the force contributors in evaluation order.
func (a *Aircraft) Contributors() []dynamics.ForceContributor {
	return append([]dynamics.ForceContributor(nil), a.contributors...)
}

// Initialize resets the incidental state of the contributors to the initial conditions.
func (a *Aircraft) Initialize(engineOn bool) {
	for _, fc := range a.contributors {
		if i, ok := fc.(dynamics.Initializer); ok {
			i.Initialize(engineOn)
		}
	}
	a.Autopilot.Reset()
}

// ComputeForceAndMoment sums the contributions in evaluation order. Any non finite
// contribution is an error naming its contributor.
func (a *Aircraft) ComputeForceAndMoment(k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) (dynamics.Wrench, error) {
	total := dynamics.NewWrench()
	for _, fc := range a.contributors {
		w, err := fc.ComputeForceAndMoment(k, c, sh)
		if err != nil {
			return total, fmt.Errorf("%s: %w", fc.Name(), err)
		}
		if err := w.Check(fc.Name()); err != nil {
			return total, err
		}
		total.Add(w)
	}
	return total, nil
}

// Update advances the incidental state of the contributors, in evaluation order.
func (a *Aircraft) Update(dt float64, k *dynamics.Kinematics, c *dynamics.Controls, sh *dynamics.Shared) error {
	for _, fc := range a.contributors {
		if err := fc.Update(dt, k, c, sh); err != nil {
			return fmt.Errorf("%s: %w", fc.Name(), err)
		}
	}
	return nil
}

// forceModel evaluates the aircraft in an environment with fixed controls. It keeps the
// kinematics and shared values of the last evaluation.
type forceModel struct {
	ac  *Aircraft
	env *dynamics.Environment
	ctl *dynamics.Controls

	k  *dynamics.Kinematics
	sh *dynamics.Shared
}

// Evaluate implements the dynamics.ForceModel interface.
func (m *forceModel) Evaluate(s *dynamics.State) (dynamics.Wrench, error) {
	m.k = dynamics.NewKinematics(s, m.env)
	m.sh = &dynamics.Shared{}
	return m.ac.ComputeForceAndMoment(m.k, m.ctl, m.sh)
}

// MassMatrix implements the dynamics.ForceModel interface.
func (m *forceModel) MassMatrix() *mat64.Dense {
	return m.ac.Mass.Matrix()
}

// accelerations evaluates s and returns its wrench and accelerations.
func (m *forceModel) accelerations(s *dynamics.State) (dynamics.Wrench, []float64, []float64, error) {
	w, err := m.Evaluate(s)
	if err != nil {
		return w, nil, nil, err
	}
	acc, eps, err := dynamics.Accelerations(s.Vel, s.Omg, w, m.MassMatrix())
	return w, acc, eps, err
}
