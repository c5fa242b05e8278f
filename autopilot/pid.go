package autopilot

import (
	"fmt"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/numeric"
)

// PID is a proportional-integral-derivative controller with conditional integration, output
// saturation to [Min, Max] and an output rate limit.
type PID struct {
	Kp, Ki, Kd float64
	Min, Max   float64
	MaxRate    float64 // output units per second, zero for no limit

	integral float64
	prevErr  float64
	primed   bool
	rate     numeric.RateLimiter
}

// NewPID returns a controller saturating to [-1, 1].
func NewPID(kp, ki, kd, maxRate float64) *PID {
	p := &PID{Kp: kp, Ki: ki, Kd: kd, Min: -1, Max: 1, MaxRate: maxRate}
	p.Reset()
	return p
}

// configure overrides the gains and limits of p with the keys of t, when set:
//
//	kp = 1.5; ki = 0.1; kd = 0.3; min = -1; max = 1; max_rate = 0.5
func (p *PID) configure(t *conf.Tree) error {
	d := t.Decoder()
	p.Kp = d.ScalarOr("kp", p.Kp)
	p.Ki = d.ScalarOr("ki", p.Ki)
	p.Kd = d.ScalarOr("kd", p.Kd)
	p.Min = d.ScalarOr("min", p.Min)
	p.Max = d.ScalarOr("max", p.Max)
	p.MaxRate = d.ScalarOr("max_rate", p.MaxRate)
	if err := d.Err(); err != nil {
		return err
	}
	if p.Min >= p.Max {
		return fmt.Errorf("%w: %s: min %f must be less than max %f", conf.ErrMalformed, t.Path(), p.Min, p.Max)
	}
	if p.MaxRate < 0 {
		return fmt.Errorf("%w: %s.max_rate is negative", conf.ErrMalformed, t.Path())
	}
	return nil
}

// Reset clears the integrator, the derivative memory and the output.
func (p *PID) Reset() {
	p.integral, p.prevErr, p.primed = 0, 0, false
	p.rate = numeric.RateLimiter{Rate: p.MaxRate}
	p.rate.Reset(0)
}

// Output returns the last output.
func (p *PID) Output() float64 { return p.rate.Value() }

// Integral returns the integrator state.
func (p *PID) Integral() float64 { return p.integral }

// Update returns the output for the error e, differentiating e numerically. The derivative
// term is null on the first update after a reset.
func (p *PID) Update(dt, e float64) float64 {
	var de float64
	if p.primed && dt > 0 {
		de = (e - p.prevErr) / dt
	}
	return p.UpdateRate(dt, e, de)
}

// UpdateRate returns the output for the error e and its known rate of change de.
func (p *PID) UpdateRate(dt, e, de float64) float64 {
	if dt <= 0 {
		return p.Output()
	}
	p.prevErr, p.primed = e, true
	next := p.integral + p.Ki*e*dt
	u := p.Kp*e + next + p.Kd*de
	switch {
	case u > p.Max && e > 0, u < p.Min && e < 0:
		// Saturated and the error would wind the integrator further.
		u = p.Kp*e + p.integral + p.Kd*de
	default:
		p.integral = next
	}
	p.rate.Rate = p.MaxRate
	return p.rate.Update(dt, numeric.Clamp(u, p.Min, p.Max))
}
