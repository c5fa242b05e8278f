// Package autopilot implements a two layer automatic flight control system: a flight director
// computing attitude commands from the navigation goals, and an autopilot flying those
// commands with the control surfaces.
//
// Every loop is a PID controller with conditional integration, saturation to [-1, 1] and a
// rate limit. Engaging or disengaging a layer resets its loops and zeroes its outputs.
package autopilot

import (
	"math"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/numeric"
	kitlog "github.com/go-kit/kit/log"
)

const (
	g0 = 9.80665
	// minTurnAirspeed is the airspeed, m/s, under which no turn rate is expected in a bank.
	minTurnAirspeed = 10
)

// Measurements are the aircraft states the control loops close on.
type Measurements struct {
	Roll, Pitch, Heading         float64 // rad
	RollRate, PitchRate, YawRate float64 // rad/s, body axes
	Altitude                     float64 // m
	ClimbRate                    float64 // m/s
	Airspeed                     float64 // m/s
	NavDeviation                 float64 // full scale, positive when the course is on the right
	NavValid                     bool
	GlideslopeDeviation          float64 // full scale, positive when the glide path is above
	GlideslopeValid              bool
}

// Settings are the pilot selections of the control panel.
type Settings struct {
	Engaged   bool // autopilot engaged, the flight director is then on too
	Director  bool // flight director on
	YawDamper bool
	Lateral   LateralMode
	Vertical  VerticalMode
	Roll      float64 // rad, RollHold
	Pitch     float64 // rad, PitchHold
	Heading   float64 // rad, HeadingHold and Approach before the capture
	Course    float64 // rad, Nav and Approach
	Altitude  float64 // m
	Airspeed  float64 // m/s
	ClimbRate float64 // m/s
}

// Commands are the autopilot outputs. The control deflections are only meaningful for the
// engaged layers: the roll and pitch for the autopilot, the yaw for the yaw damper.
type Commands struct {
	Engaged, Director, YawDamper bool
	Roll, Pitch, Yaw             float64 // [-1, 1]
	RollBar, PitchBar            float64 // rad
	Lateral                      LateralMode
	Vertical                     VerticalMode
	LateralCaptured              bool
	VerticalCaptured             bool
}

// Autopilot is the automatic flight control system.
type Autopilot struct {
	logger kitlog.Logger
	fd     *FlightDirector

	roll, pitch, yaw *PID

	engaged, director, damper bool
	last                      Commands
}

// New returns an autopilot. Its gains may be overridden by the optional tree t:
//
//	[autopilot.roll]      # bank error to aileron
//	kp = 1.5; ki = 0.1; kd = 0.3; max_rate = 1.0
//	[autopilot.pitch]     # pitch error to elevator
//	[autopilot.yaw]       # yaw rate error to rudder
//	[autopilot.director]  # heading, climb and airspeed subtrees, nav_gain, localizer_gain
func New(t *conf.Tree, logger kitlog.Logger) (*Autopilot, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.With(logger, "subsys", "autopilot")
	a := &Autopilot{
		logger: logger,
		roll:   NewPID(1.5, 0.1, 0.3, 1),
		pitch:  NewPID(2, 0.5, 0.5, 1),
		yaw:    NewPID(1, 0, 0, 1),
	}
	var fdt *conf.Tree
	if t != nil {
		for key, p := range map[string]*PID{"roll": a.roll, "pitch": a.pitch, "yaw": a.yaw} {
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
		if t.IsSet("director") {
			var err error
			if fdt, err = t.Sub("director"); err != nil {
				return nil, err
			}
		}
	}
	var err error
	if a.fd, err = newFlightDirector(fdt, logger); err != nil {
		return nil, err
	}
	a.Reset()
	return a, nil
}

// Reset disengages every layer and resets every loop.
func (a *Autopilot) Reset() {
	a.roll.Reset()
	a.pitch.Reset()
	a.yaw.Reset()
	a.fd.Reset()
	a.engaged, a.director, a.damper = false, false, false
	a.last = Commands{}
}

// Director returns the flight director.
func (a *Autopilot) Director() *FlightDirector { return a.fd }

// Commands returns the last commands.
func (a *Autopilot) Commands() Commands { return a.last }

// engage handles the engagement changes of the three layers.
func (a *Autopilot) engage(in Settings) {
	director := in.Director || in.Engaged
	if director != a.director {
		a.fd.Reset()
		a.director = director
		a.logger.Log("level", "info", "msg", "flight director", "on", director)
	}
	if in.Engaged != a.engaged {
		a.roll.Reset()
		a.pitch.Reset()
		a.engaged = in.Engaged
		a.logger.Log("level", "info", "msg", "autopilot", "engaged", in.Engaged)
	}
	if in.YawDamper != a.damper {
		a.yaw.Reset()
		a.damper = in.YawDamper
		a.logger.Log("level", "info", "msg", "yaw damper", "engaged", in.YawDamper)
	}
}

// Update advances the control loops by dt and returns the commands.
func (a *Autopilot) Update(dt float64, m Measurements, in Settings) Commands {
	a.engage(in)
	c := Commands{Engaged: a.engaged, Director: a.director, YawDamper: a.damper}
	if a.director {
		c.RollBar, c.PitchBar = a.fd.Update(dt, m, in)
		c.Lateral, c.Vertical = in.Lateral, in.Vertical
		c.LateralCaptured, c.VerticalCaptured = a.fd.Captured()
	}
	if a.engaged {
		// The bars are constant over a step: the error rates are the opposite of the body rates.
		c.Roll = a.roll.UpdateRate(dt, c.RollBar-m.Roll, -m.RollRate)
		c.Pitch = a.pitch.UpdateRate(dt, c.PitchBar-m.Pitch, -m.PitchRate)
	}
	if a.damper {
		// Coordinated turn rate of the current bank.
		var r float64
		if m.Airspeed > minTurnAirspeed {
			r = g0 * math.Tan(numeric.Saturate(m.Roll, math.Pi/3)) / m.Airspeed
		}
		c.Yaw = a.yaw.Update(dt, r-m.YawRate)
	}
	a.last = c
	return c
}
