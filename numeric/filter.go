package numeric

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp returns v limited to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Saturate returns v limited to [-limit, limit].
func Saturate[T constraints.Signed | constraints.Float](v, limit T) T {
	return Clamp(v, -limit, limit)
}

// Sign returns the sign of a given number; zero is positive.
func Sign[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -1
	}
	return 1
}

// RateLimiter limits the rate of change of a signal.
type RateLimiter struct {
	Rate  float64 // maximum absolute rate, per second
	value float64
}

// NewRateLimiter returns a rate limiter starting at zero.
func NewRateLimiter(rate float64) *RateLimiter {
	return &RateLimiter{Rate: rate}
}

// Update moves the output towards u by at most Rate*dt.
func (r *RateLimiter) Update(dt, u float64) float64 {
	if r.Rate <= 0 || dt <= 0 {
		r.value = u
		return u
	}
	step := r.Rate * dt
	r.value += Saturate(u-r.value, step)
	return r.value
}

// Value returns the last output.
func (r *RateLimiter) Value() float64 { return r.value }

// Reset sets the output to v.
func (r *RateLimiter) Reset(v float64) { r.value = v }

// Lag is a first-order lag y' = (u - y)/τ, discretized exactly for a held input.
type Lag struct {
	TimeConstant float64
	value        float64
}

// NewLag returns a first-order lag starting at y0.
func NewLag(τ, y0 float64) *Lag {
	return &Lag{TimeConstant: τ, value: y0}
}

// Update advances the lag by dt with input u.
func (l *Lag) Update(dt, u float64) float64 {
	if l.TimeConstant <= 0 {
		l.value = u
		return u
	}
	if dt > 0 {
		l.value += (u - l.value) * (1 - math.Exp(-dt/l.TimeConstant))
	}
	return l.value
}

// Value returns the current output.
func (l *Lag) Value() float64 { return l.value }

// Reset sets the output to v.
func (l *Lag) Reset(v float64) { l.value = v }
