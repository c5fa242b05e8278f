// Package rotor models helicopter rotors with blade element and uniform momentum inflow theory.
//
// The main rotor is a rigid disc with quasi-static coning and first harmonic flapping, expressed
// in shaft axes (x forward, y right, z down along the shaft). The tail rotor is an unflapped disc
// producing thrust along a fixed body axis.
package rotor

import (
	"math"
)

const (
	// minOmega is the rotor speed under which the rotor produces no load.
	minOmega = 1.0
	// inflowε is the convergence threshold of the normalized induced velocity.
	inflowε = 1e-9
	// maxInflowIterations bounds the inflow fixed-point iteration.
	maxInflowIterations = 200
)

// thrustCoefficient returns the blade element thrust coefficient of a rotor of solidity σ and
// lift slope a, for the collective θ0 and the linear twist θtw, at the advance ratio μ and the
// total inflow ratio λ.
func thrustCoefficient(a, σ, θ0, θtw, μ, λ float64) float64 {
	μ2 := μ * μ
	return a * σ / 2 * (θ0*(1.0/3+μ2/2) + θtw/4*(1+μ2) - λ/2)
}

// torqueCoefficient returns the induced, climb and profile torque coefficient.
func torqueCoefficient(cT, λ, σ, δ0, μ float64) float64 {
	return cT*λ + σ*δ0/8*(1+4.65*μ*μ)
}

// inflow solves the uniform momentum inflow
//
//	λi = kGE⁻¹ cT(λ) / (2 sqrt(μ² + λ²)), with λ = λi - μz,
//
// by a relaxed fixed point iteration started from λ0. μz is the normalized velocity of the
// rotor along the shaft, positive down. It returns the induced inflow ratio, the thrust
// coefficient and whether the iteration converged.
func inflow(cT func(λ float64) float64, μ, μz, kGE, λ0 float64) (λi, ct float64, converged bool) {
	λi = λ0
	for i := 0; i < maxInflowIterations; i++ {
		λ := λi - μz
		ct = cT(λ)
		den := 2 * math.Max(math.Sqrt(μ*μ+λ*λ), 1e-6) * kGE
		Δ := ct/den - λi
		λi += 0.5 * Δ
		if math.Abs(Δ) < inflowε {
			return λi, cT(λi - μz), true
		}
	}
	return λi, cT(λi - μz), false
}

// groundEffect returns the Cheeseman-Bennett thrust ratio of a rotor of radius r whose hub is h
// above the ground, saturated for h below r/2.
func groundEffect(r, h float64) float64 {
	h = math.Max(h, r/2)
	x := r / (4 * h)
	return 1 / (1 - x*x)
}

// wakeSkew returns the angle between the rotor wake and the shaft.
func wakeSkew(μ, λ float64) float64 {
	if λ <= 0 {
		return math.Pi / 2
	}
	return math.Atan2(μ, λ)
}
