package main

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/fdm"
	"github.com/ChristopherRabotin/fdm/autopilot"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/spf13/viper"
)

// run is one simulation of a scenario file. Angles are in degrees.
type run struct {
	Name          string        `mapstructure:"name"`
	Aircraft      string        `mapstructure:"aircraft"`
	Duration      time.Duration `mapstructure:"duration"`
	Step          time.Duration `mapstructure:"step"`
	Seed          int64         `mapstructure:"seed"`
	Latitude      float64       `mapstructure:"latitude"`
	Longitude     float64       `mapstructure:"longitude"`
	AGL           float64       `mapstructure:"agl"`
	Heading       float64       `mapstructure:"heading"`
	Airspeed      float64       `mapstructure:"airspeed"`
	EngineOn      bool          `mapstructure:"engine_on"`
	Throttle      float64       `mapstructure:"throttle"`
	Collective    float64       `mapstructure:"collective"`
	Flaps         float64       `mapstructure:"flaps"`
	WindDirection float64       `mapstructure:"wind_direction"`
	WindSpeed     float64       `mapstructure:"wind_speed"`
	Turbulence    float64       `mapstructure:"turbulence"`
	Microburst    bool          `mapstructure:"microburst"`
	Record        bool          `mapstructure:"record"` // also writes <name>.rec
	Autopilot     struct {
		Engaged  bool    `mapstructure:"engaged"`
		Heading  float64 `mapstructure:"heading"`
		Altitude float64 `mapstructure:"altitude"` // m MSL
	} `mapstructure:"autopilot"`
}

// readRuns reads the [[run]] tables of the scenario loaded in viper.
func readRuns() ([]run, error) {
	var runs []run
	if err := viper.UnmarshalKey("run", &runs); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no [[run]] in %s", viper.ConfigFileUsed())
	}
	for i := range runs {
		r := &runs[i]
		if r.Name == "" {
			r.Name = fmt.Sprintf("run%d", i)
		}
		if r.Aircraft == "" {
			return nil, fmt.Errorf("run %s: no aircraft", r.Name)
		}
		if r.Step <= 0 {
			r.Step = viper.GetDuration("step")
		}
		if r.Duration <= 0 {
			r.Duration = viper.GetDuration("duration")
		}
	}
	return runs, nil
}

// initial returns the input requesting the initialization.
func (r run) initial() fdm.DataInp {
	in := fdm.DataInp{
		AircraftType: r.Aircraft,
		Phase:        fdm.RequestInit,
		Recording:    fdm.Record,
		DateTime:     viper.GetTime("date"),
		Initial: fdm.InitialConditions{
			Latitude:    numeric.Deg2rad(r.Latitude),
			Longitude:   numeric.Deg2rad(r.Longitude),
			AltitudeAGL: r.AGL,
			Heading:     numeric.Deg2rad(r.Heading),
			Airspeed:    r.Airspeed,
			EngineOn:    r.EngineOn,
		},
		Environment: fdm.Environment{
			WindDirection: numeric.Deg2rad(r.WindDirection),
			WindSpeed:     r.WindSpeed,
			Turbulence:    r.Turbulence,
		},
	}
	if r.Microburst {
		in.Environment.WindShear = fdm.WindShearMicroburst
	}
	return in
}

// working returns the input of the working steps of an aircraft with the given engines.
// An unset collective keeps the one of the initialization.
func (r run) working(start fdm.DataInp, trimmed dynamics.Controls, engines int) fdm.DataInp {
	in := start
	in.Phase = fdm.RequestWork
	in.Controls = dynamics.Controls{Collective: r.Collective, Flaps: r.Flaps}
	if r.Collective == 0 {
		in.Controls.Collective = trimmed.Collective
	}
	for i := 0; i < engines; i++ {
		in.Controls.Engines = append(in.Controls.Engines, dynamics.EngineControls{
			Throttle:  r.Throttle,
			Mixture:   1,
			Propeller: 1,
			Fuel:      r.EngineOn,
			Ignition:  r.EngineOn,
		})
	}
	if r.Autopilot.Engaged {
		in.Autopilot = autopilot.Settings{
			Engaged:  true,
			Lateral:  autopilot.HeadingHold,
			Vertical: autopilot.AltitudeHold,
			Heading:  numeric.Deg2rad(r.Autopilot.Heading),
			Altitude: r.Autopilot.Altitude,
		}
	}
	return in
}
