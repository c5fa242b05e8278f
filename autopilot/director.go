package autopilot

import (
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/numeric"
	kitlog "github.com/go-kit/kit/log"
)

// LateralMode is the lateral mode of the flight director.
type LateralMode uint8

const (
	// RollHold holds the set bank angle.
	RollHold LateralMode = iota
	// HeadingHold turns to and holds the set heading.
	HeadingHold
	// Nav tracks the set course using the lateral deviation of the navigation receiver.
	Nav
	// Approach holds the set heading until the localizer is captured, then tracks it.
	Approach
)

func (m LateralMode) String() string {
	switch m {
	case RollHold:
		return "roll"
	case HeadingHold:
		return "heading"
	case Nav:
		return "nav"
	case Approach:
		return "approach"
	}
	panic("cannot stringify unknown lateral mode")
}

// VerticalMode is the vertical mode of the flight director.
type VerticalMode uint8

const (
	// PitchHold holds the set pitch angle.
	PitchHold VerticalMode = iota
	// AltitudeHold holds the set altitude.
	AltitudeHold
	// AirspeedHold holds the set airspeed with the pitch.
	AirspeedHold
	// VerticalSpeedHold holds the set climb rate.
	VerticalSpeedHold
	// AltitudeArm climbs or descends at the set climb rate, then captures the set altitude.
	AltitudeArm
	// Glideslope holds the altitude until the glide path is captured, then tracks it.
	Glideslope
)

func (m VerticalMode) String() string {
	switch m {
	case PitchHold:
		return "pitch"
	case AltitudeHold:
		return "altitude"
	case AirspeedHold:
		return "airspeed"
	case VerticalSpeedHold:
		return "vertical speed"
	case AltitudeArm:
		return "altitude arm"
	case Glideslope:
		return "glideslope"
	}
	panic("cannot stringify unknown vertical mode")
}

const (
	maxBank          = 25 * math.Pi / 180
	maxPitchUp       = 15 * math.Pi / 180
	maxPitchDown     = -10 * math.Pi / 180
	maxIntercept     = 45 * math.Pi / 180
	glidePathAngle   = 3 * math.Pi / 180
	defaultClimbRate = 2.5 // m/s
	maxClimbRate     = 7.5 // m/s
	altitudeGain     = 0.2 // 1/s
	captureMin       = 15  // m
	captureTime      = 5   // s
	localizerCapture = 0.8 // full scale
	glideCapture     = 0.1 // full scale
	glideRange       = 50  // m of altitude per full scale deviation
)

// FlightDirector computes the bank and pitch commands from the navigation goals. Each axis
// runs a small mode state machine; a mode change resets the loops of its axis.
type FlightDirector struct {
	logger kitlog.Logger

	heading  *PID // heading error to bank angle
	climb    *PID // climb rate error to pitch angle
	airspeed *PID // airspeed error to pitch angle

	navGain, locGain, glideGain float64

	lateral                LateralMode
	verticalMode           VerticalMode
	latCaptured, vCaptured bool
	heldAltitude           float64
	held                   bool
	rollBar, pitchBar      float64
}

func newFlightDirector(t *conf.Tree, logger kitlog.Logger) (*FlightDirector, error) {
	fd := &FlightDirector{
		logger:    logger,
		heading:   &PID{Kp: 1.2, Ki: 0.02, Kd: 0, Min: -maxBank, Max: maxBank},
		climb:     &PID{Kp: 0.02, Ki: 0.005, Kd: 0, Min: maxPitchDown, Max: maxPitchUp},
		airspeed:  &PID{Kp: 0.02, Ki: 0.002, Kd: 0.01, Min: maxPitchDown, Max: maxPitchUp},
		navGain:   maxIntercept,
		locGain:   0.6 * maxIntercept,
		glideGain: 1.5,
	}
	if t != nil {
		for key, p := range map[string]*PID{"heading": fd.heading, "climb": fd.climb, "airspeed": fd.airspeed} {
			if !t.IsSet(key) {
				continue
			}
			st, err := t.Sub(key)
			if err != nil {
				return nil, err
			}
			if err := p.configure(st); err != nil {
				return nil, err
			}
		}
		d := t.Decoder()
		fd.navGain = d.ScalarOr("nav_gain", fd.navGain)
		fd.locGain = d.ScalarOr("localizer_gain", fd.locGain)
		fd.glideGain = d.ScalarOr("glideslope_gain", fd.glideGain)
		if err := d.Err(); err != nil {
			return nil, err
		}
	}
	fd.Reset()
	return fd, nil
}

// Reset resets every loop and the mode state machines.
func (fd *FlightDirector) Reset() {
	fd.heading.Reset()
	fd.climb.Reset()
	fd.airspeed.Reset()
	fd.lateral, fd.verticalMode = RollHold, PitchHold
	fd.latCaptured, fd.vCaptured, fd.held = false, false, false
	fd.heldAltitude = 0
	fd.rollBar, fd.pitchBar = 0, 0
}

// Bars returns the last bank and pitch commands, in radians.
func (fd *FlightDirector) Bars() (roll, pitch float64) { return fd.rollBar, fd.pitchBar }

func (fd *FlightDirector) setModes(m Measurements, in Settings) {
	if in.Lateral != fd.lateral {
		fd.heading.Reset()
		fd.lateral, fd.latCaptured = in.Lateral, false
	}
	if in.Vertical != fd.verticalMode {
		fd.climb.Reset()
		fd.airspeed.Reset()
		fd.verticalMode, fd.vCaptured, fd.held = in.Vertical, false, false
	}
	if !fd.held && fd.verticalMode == Glideslope {
		fd.heldAltitude, fd.held = m.Altitude, true
	}
}

// headingBar returns the bank command turning towards ψ.
func (fd *FlightDirector) headingBar(dt float64, m Measurements, ψ float64) float64 {
	return fd.heading.Update(dt, numeric.WrapPi(ψ-m.Heading))
}

func (fd *FlightDirector) lateralBar(dt float64, m Measurements, in Settings) float64 {
	switch fd.lateral {
	case HeadingHold:
		return fd.headingBar(dt, m, in.Heading)
	case Nav:
		ψ := in.Course
		if m.NavValid {
			ψ += numeric.Saturate(fd.navGain*m.NavDeviation, maxIntercept)
		}
		return fd.headingBar(dt, m, ψ)
	case Approach:
		if !fd.latCaptured && m.NavValid && math.Abs(m.NavDeviation) < localizerCapture {
			fd.latCaptured = true
			fd.heading.Reset()
			fd.logger.Log("level", "info", "subsys", "autopilot", "msg", "localizer captured", "deviation", m.NavDeviation)
		}
		if !fd.latCaptured {
			return fd.headingBar(dt, m, in.Heading)
		}
		ψ := in.Course
		if m.NavValid {
			ψ += numeric.Saturate(fd.locGain*m.NavDeviation, maxIntercept)
		}
		return fd.headingBar(dt, m, ψ)
	default:
		return numeric.Saturate(in.Roll, maxBank)
	}
}

// climbBar returns the pitch command holding the climb rate ḣ.
func (fd *FlightDirector) climbBar(dt float64, m Measurements, ḣ float64) float64 {
	return fd.climb.Update(dt, numeric.Saturate(ḣ, maxClimbRate)-m.ClimbRate)
}

func (fd *FlightDirector) altitudeBar(dt float64, m Measurements, h float64) float64 {
	return fd.climbBar(dt, m, altitudeGain*(h-m.Altitude))
}

func (fd *FlightDirector) verticalBar(dt float64, m Measurements, in Settings) float64 {
	switch fd.verticalMode {
	case AltitudeHold:
		return fd.altitudeBar(dt, m, in.Altitude)
	case AirspeedHold:
		// Too fast: nose up.
		return fd.airspeed.Update(dt, m.Airspeed-in.Airspeed)
	case VerticalSpeedHold:
		return fd.climbBar(dt, m, in.ClimbRate)
	case AltitudeArm:
		δh := in.Altitude - m.Altitude
		if !fd.vCaptured && math.Abs(δh) < math.Max(captureMin, math.Abs(m.ClimbRate)*captureTime) {
			fd.vCaptured = true
			fd.logger.Log("level", "info", "subsys", "autopilot", "msg", "altitude captured", "altitude", m.Altitude, "target", in.Altitude)
		}
		if fd.vCaptured {
			return fd.altitudeBar(dt, m, in.Altitude)
		}
		rate := math.Abs(in.ClimbRate)
		if rate < numeric.Zeroε {
			rate = defaultClimbRate
		}
		return fd.climbBar(dt, m, math.Copysign(rate, δh))
	case Glideslope:
		if !fd.vCaptured && m.GlideslopeValid && math.Abs(m.GlideslopeDeviation) < glideCapture {
			fd.vCaptured = true
			fd.logger.Log("level", "info", "subsys", "autopilot", "msg", "glideslope captured", "deviation", m.GlideslopeDeviation)
		}
		if !fd.vCaptured {
			return fd.altitudeBar(dt, m, fd.heldAltitude)
		}
		// Descend along the glide path and correct the deviation, positive when the path is
		// above the aircraft.
		ḣ := -m.Airspeed * math.Tan(glidePathAngle)
		if m.GlideslopeValid {
			ḣ += fd.glideGain * altitudeGain * glideRange * m.GlideslopeDeviation
		}
		return fd.climbBar(dt, m, ḣ)
	default:
		return numeric.Clamp(in.Pitch, maxPitchDown, maxPitchUp)
	}
}

// Update advances the mode state machines and returns the bank and pitch commands.
func (fd *FlightDirector) Update(dt float64, m Measurements, in Settings) (roll, pitch float64) {
	fd.setModes(m, in)
	fd.rollBar = fd.lateralBar(dt, m, in)
	fd.pitchBar = fd.verticalBar(dt, m, in)
	return fd.rollBar, fd.pitchBar
}

// Captured returns whether the armed lateral and vertical modes have captured their target.
func (fd *FlightDirector) Captured() (lateral, vertical bool) { return fd.latCaptured, fd.vCaptured }
