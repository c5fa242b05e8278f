package fdm

import (
	"strings"
	"time"

	"github.com/ChristopherRabotin/fdm/autopilot"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/propulsion"
	"github.com/ChristopherRabotin/fdm/rotor"
)

// Phase is the state of the simulation state machine.
type Phase uint8

const (
	// Idle is the state before the first initialization.
	Idle Phase = iota
	// Initializing is the state while the initial conditions are trimmed.
	Initializing
	// Ready is the state once trimmed, before the simulation runs.
	Ready
	// Working is the state while the simulation runs.
	Working
	// Paused is the state while the simulation is paused: outputs are computed but the state
	// does not advance.
	Paused
	// Stopped is the state after a stop request, a crash or a fatal error.
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Working:
		return "working"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	panic("cannot stringify unknown phase")
}

// RequestedPhase is the phase requested by the host.
type RequestedPhase uint8

const (
	// RequestIdle returns a stopped simulation to idle.
	RequestIdle RequestedPhase = iota
	// RequestInit initializes the simulation from the initial conditions. Only accepted when
	// idle or stopped.
	RequestInit
	// RequestWork runs the simulation. Only accepted once ready.
	RequestWork
	// RequestPause pauses the simulation. Only accepted once ready.
	RequestPause
	// RequestStop stops the simulation, from any phase.
	RequestStop
)

func (r RequestedPhase) String() string {
	switch r {
	case RequestIdle:
		return "idle"
	case RequestInit:
		return "init"
	case RequestWork:
		return "work"
	case RequestPause:
		return "pause"
	case RequestStop:
		return "stop"
	}
	panic("cannot stringify unknown requested phase")
}

// CrashCause is the reason the simulation stopped on its own.
type CrashCause uint8

const (
	// CrashNone is no crash.
	CrashNone CrashCause = iota
	// CrashCollision is a contact of the airframe with the ground, or an over compressed strut.
	CrashCollision
	// CrashOverspeed is an airspeed above the structural limit.
	CrashOverspeed
	// CrashOverstress is a load factor outside the structural limits.
	CrashOverstress
	// CrashNumerical is a non finite force, moment or state.
	CrashNumerical
	// CrashGround is an invalid ground contact geometry.
	CrashGround
)

func (c CrashCause) String() string {
	switch c {
	case CrashNone:
		return "none"
	case CrashCollision:
		return "collision"
	case CrashOverspeed:
		return "overspeed"
	case CrashOverstress:
		return "overstress"
	case CrashNumerical:
		return "numerical fault"
	case CrashGround:
		return "invalid ground"
	}
	panic("cannot stringify unknown crash cause")
}

// RecordingMode selects the record and replay hooks.
type RecordingMode uint8

const (
	// RecordingNone neither records nor replays.
	RecordingNone RecordingMode = iota
	// Record records every working step.
	Record
	// Replay replaces the integration by the recorded frames.
	Replay
)

// WindShear selects the wind shear model.
type WindShear uint8

const (
	// WindShearNone is no wind shear.
	WindShearNone WindShear = iota
	// WindShearMicroburst is a microburst centered ahead of the initial position.
	WindShearMicroburst
)

// Warning is a set of recoverable conditions.
type Warning uint16

const (
	// WarnAtmosphere is an altitude outside the atmosphere model, clamped.
	WarnAtmosphere Warning = 1 << iota
	// WarnInputClamped is a control input outside its range, clamped.
	WarnInputClamped
	// WarnMassClamped is a variable mass outside its range, clamped.
	WarnMassClamped
	// WarnRotorInflow is a main rotor inflow which did not converge.
	WarnRotorInflow
	// WarnMagneticModel is a magnetic or geoid model outside its validity.
	WarnMagneticModel
	// WarnRecorder is a failure of the recorder.
	WarnRecorder
	// WarnReplayEnd is the end of a replayed recording: the last state is held.
	WarnReplayEnd
	// WarnPhaseRejected is a requested phase not accepted in the current phase.
	WarnPhaseRejected
)

var warningNames = []string{
	"atmosphere", "input clamped", "mass clamped", "rotor inflow",
	"magnetic model", "recorder", "replay end", "phase rejected",
}

// Has reports whether w contains f.
func (w Warning) Has(f Warning) bool { return w&f != 0 }

func (w Warning) String() string {
	var names []string
	for i, name := range warningNames {
		if w&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// Environment are the conditions outside the aircraft.
type Environment struct {
	TemperatureSL float64 // K, zero for standard
	PressureSL    float64 // Pa, zero for standard
	WindDirection float64 // rad, direction the wind blows from
	WindSpeed     float64 // m/s
	Turbulence    float64 // intensity in [0, 1]
	WindShear     WindShear
}

// InitialConditions are read when the initialization is requested.
type InitialConditions struct {
	Latitude    float64 // rad
	Longitude   float64 // rad
	AltitudeAGL float64 // m
	Heading     float64 // rad, true
	Airspeed    float64 // m/s
	EngineOn    bool
}

// Ground is the local ground plane: a point and its outward normal, WGS. An empty ground is
// the ellipsoid surface under the initial position.
type Ground struct {
	Point, Normal []float64
}

// Navigation are the navigation receiver deviations read by the flight director.
type Navigation struct {
	NavDeviation        float64 // full scale, positive when the course is on the right
	NavValid            bool
	GlideslopeDeviation float64 // full scale, positive when the glide path is above
	GlideslopeValid     bool
}

// DataInp is the input snapshot of a step. It is copied in at the start of the step.
type DataInp struct {
	AircraftType string
	Phase        RequestedPhase
	Recording    RecordingMode
	DateTime     time.Time

	Environment Environment
	Initial     InitialConditions
	Ground      Ground

	Controls   dynamics.Controls
	Masses     []float64 // kg, per variable mass of the aircraft; nil keeps the current ones
	Autopilot  autopilot.Settings
	Navigation Navigation
	Freeze     dynamics.Freeze
}

// DataOut is the output snapshot of a step. It is copied out at the end of the step.
type DataOut struct {
	Phase    Phase
	Crash    CrashCause
	Warnings Warning
	Time     float64 // s simulated while working

	Latitude, Longitude float64 // rad
	Altitude            float64 // m above the ellipsoid
	AltitudeMSL         float64 // m above the geoid
	AltitudeAGL         float64 // m above the ground plane

	Roll, Pitch, Heading float64 // rad
	MagneticHeading      float64 // rad
	Attitude             []float64
	Position             []float64 // WGS

	Vel, Omg []float64 // BAS
	Acc, Eps []float64 // BAS
	VelNED   []float64

	Airspeed    float64 // m/s, true
	IAS         float64 // m/s
	Mach        float64
	AoA         float64 // rad
	Sideslip    float64 // rad
	DynPress    float64 // Pa
	GroundSpeed float64 // m/s
	Track       float64 // rad, true
	ClimbRate   float64 // m/s
	TurnRate    float64 // rad/s
	FlightPath  float64 // rad
	SlipSkid    float64 // lateral load factor, the slip ball
	LoadFactor  []float64
	Range       float64 // m from the initial position

	OnGround, Stall bool

	Mass float64
	CG   []float64

	// Controls are the applied controls, after the autopilot and clamping. After an in
	// flight helicopter initialization they carry the trimmed collective.
	Controls  dynamics.Controls
	Engines   []propulsion.Telemetry
	MainRotor rotor.State
	TailRotor rotor.State
	Autopilot autopilot.Commands
}
