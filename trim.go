package fdm

import (
	"errors"
	"fmt"
	"math"

	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/wgs84"
	"github.com/gonum/matrix/mat64"
)

const (
	// Finite difference steps of the trim derivatives.
	trimΔh = 1e-4 // m
	trimΔa = 1e-5 // rad
	trimΔc = 1e-4 // collective
	// trimε is the derivative magnitude under which a residual is insensitive to a variable.
	trimε = 1e-9
	// Largest pitch step and trimmed pitch of the in flight initialization.
	maxFlightStep  = 5 * math.Pi / 180
	maxFlightPitch = 30 * math.Pi / 180
	// maxCollectiveStep is the largest collective change of an in flight iteration.
	maxCollectiveStep = 0.1
	// groundTolerance is the largest residual of the on ground trim, relative to the weight.
	groundTolerance = 1e-6
	// Levenberg-Marquardt damping of the trim solver.
	lmDamping, lmMinDamping, lmMaxDamping = 1e-3, 1e-9, 1e9
	lmFloor                               = 1e-12
)

// errDiverged is returned by system.solve when the iterations run out or stall.
var errDiverged = errors.New("trim did not converge")

// system is a square non linear system of trim variables and residuals.
type system struct {
	residuals func(x []float64) ([]float64, error)
	δ         []float64 // finite difference steps
	maxStep   []float64 // largest change of an iteration
	lo, hi    []float64 // bounds, none when nil
}

// jacobian returns the central finite difference derivatives of the residuals at x.
func (s *system) jacobian(x []float64) (*mat64.Dense, error) {
	n := len(x)
	j := mat64.NewDense(n, n, nil)
	xp := append([]float64(nil), x...)
	for col := 0; col < n; col++ {
		xp[col] = x[col] + s.δ[col]
		up, err := s.residuals(xp)
		if err != nil {
			return nil, err
		}
		xp[col] = x[col] - s.δ[col]
		down, err := s.residuals(xp)
		if err != nil {
			return nil, err
		}
		xp[col] = x[col]
		for row := 0; row < n; row++ {
			j.Set(row, col, (up[row]-down[row])/(2*s.δ[col]))
		}
	}
	return j, nil
}

// step returns x moved by -Δ, scaled down to the largest changes and clamped to the bounds.
func (s *system) step(x []float64, Δ *mat64.Dense) []float64 {
	scale := 1.0
	for i := range x {
		if d := math.Abs(Δ.At(i, 0)); d > s.maxStep[i] {
			scale = math.Min(scale, s.maxStep[i]/d)
		}
	}
	next := make([]float64, len(x))
	for i := range x {
		next[i] = x[i] - scale*Δ.At(i, 0)
		if s.lo != nil {
			next[i] = numeric.Clamp(next[i], s.lo[i], s.hi[i])
		}
	}
	return next
}

// solve runs damped Newton iterations from x. An iteration is accepted only when it lowers
// the residual norm, the damping growing until it does. It converges when the residual norm
// is under tol and the last change under ε, and returns errDiverged when the iterations run
// out or no step lowers the residuals.
func (s *system) solve(x []float64, maxIterations int, ε, tol float64) ([]float64, int, error) {
	n := len(x)
	x = append([]float64(nil), x...)
	r, err := s.residuals(x)
	if err != nil {
		return x, 0, err
	}
	λ := lmDamping
	for it := 1; it <= maxIterations; it++ {
		j, err := s.jacobian(x)
		if err != nil {
			return x, it, err
		}
		var jtj, g mat64.Dense
		jtj.Mul(j.T(), j)
		g.Mul(j.T(), mat64.NewDense(n, 1, r))
		moved, change := false, 0.0
		for ; λ < lmMaxDamping; λ *= 10 {
			a := mat64.DenseCopyOf(&jtj)
			for i := 0; i < n; i++ {
				a.Set(i, i, (jtj.At(i, i)+lmFloor)*(1+λ))
			}
			var Δ mat64.Dense
			if err := Δ.Solve(a, &g); err != nil {
				continue
			}
			next := s.step(x, &Δ)
			rn, err := s.residuals(next)
			if err != nil {
				return x, it, err
			}
			if numeric.Norm(rn) < numeric.Norm(r) {
				for i := range x {
					change = math.Max(change, math.Abs(next[i]-x[i]))
				}
				x, r = next, rn
				λ = math.Max(λ/10, lmMinDamping)
				moved = true
				break
			}
		}
		if numeric.Norm(r) <= tol && (!moved || change < ε) {
			return x, it, nil
		}
		if !moved {
			return x, it, errDiverged
		}
	}
	return x, maxIterations, errDiverged
}

// pose is a candidate initial attitude and height above the ground plane.
type pose struct {
	h, θ, φ float64
}

// trimmer builds and evaluates candidate initial states.
type trimmer struct {
	model    *forceModel
	lat, lon float64
	ψ        float64
	velNED   []float64
	n, p0    []float64 // ground normal and the point under the initial position, WGS
	d        float64   // height of p0 above the ground plane
}

func newTrimmer(m *forceModel, lat, lon, ψ float64, velNED []float64) *trimmer {
	g := m.env.Ground
	t := &trimmer{model: m, lat: lat, lon: lon, ψ: ψ, velNED: velNED}
	t.n = numeric.Unit(g.Normal)
	t.p0 = wgs84.GeoToWGS(wgs84.Geo{Lat: lat, Lon: lon})
	t.d = numeric.Dot(numeric.Sub(t.p0, g.Point), t.n)
	return t
}

// state returns the state at pose p, at rest when velNED is nil.
func (t *trimmer) state(p pose) *dynamics.State {
	s := dynamics.NewState()
	s.Pos = numeric.Add(t.p0, numeric.Scale(p.h-t.d, t.n))
	nedToBAS := numeric.EulerToDCM(p.φ, p.θ, t.ψ)
	basToWGS := numeric.Mul(wgs84.NewPositionWGS(s.Pos).NEDToWGS(), numeric.Transpose(nedToBAS))
	s.Att = numeric.QuaternionFromDCM(basToWGS)
	if t.velNED != nil {
		s.Vel = numeric.MxV33(nedToBAS, t.velNED)
	}
	return s
}

// groundResiduals returns the force along the ground normal and the roll and pitch moments.
func (t *trimmer) groundResiduals(p pose) (fn, mx, my float64, err error) {
	w, err := t.model.Evaluate(t.state(p))
	if err != nil {
		return 0, 0, 0, err
	}
	return numeric.Dot(w.For, t.model.k.GroundNormalBAS), w.Mom[0], w.Mom[1], nil
}

// ground finds the pose at which the aircraft rests on its gear. The aircraft is first
// lowered until a wheel touches, then the height, roll and pitch are solved together for
// the normal load and the roll and pitch moments to vanish.
func (t *trimmer) ground(gt GroundTrim, h0 float64) (pose, int, error) {
	p := pose{h: h0}
	it := 0
	for ; it < gt.MaxIterations; it++ {
		if _, _, _, err := t.groundResiduals(p); err != nil {
			return p, it, err
		}
		if t.model.sh.OnGround {
			break
		}
		p.h -= gt.MaxStepAlt
	}
	w := t.model.ac.Mass.Mass() * g0
	s := &system{
		residuals: func(x []float64) ([]float64, error) {
			fn, mx, my, err := t.groundResiduals(pose{h: x[0], φ: x[1], θ: x[2]})
			// Relative to the weight, the moments over a meter arm.
			return []float64{fn / w, mx / w, my / w}, err
		},
		δ:       []float64{trimΔh, trimΔa, trimΔa},
		maxStep: []float64{gt.MaxStepAlt, gt.MaxStepAngle, gt.MaxStepAngle},
	}
	x, n, err := s.solve([]float64{p.h, p.φ, p.θ}, gt.MaxIterations-it, gt.Epsilon, groundTolerance)
	p = pose{h: x[0], φ: x[1], θ: x[2]}
	it += n
	if errors.Is(err, errDiverged) {
		return p, it, fmt.Errorf("%w: on ground after %d iterations", ErrNotConverged, it)
	}
	return p, it, err
}

// verticalAcceleration returns the NED down acceleration at pitch θ and height h.
func (t *trimmer) verticalAcceleration(h, θ float64) (float64, error) {
	s := t.state(pose{h: h, θ: θ})
	_, acc, _, err := t.model.accelerations(s)
	if err != nil {
		return 0, err
	}
	// At zero angular velocity the body frame derivative is the inertial acceleration.
	return numeric.MxV33(t.model.k.BASToNED, acc)[2], nil
}

// flight finds the pitch at which the vertical acceleration vanishes in wings level flight,
// the velocity being held level in NED.
func (t *trimmer) flight(ft FlightTrim, h float64) (float64, int, error) {
	var θ float64
	for it := 1; it <= ft.MaxIterations; it++ {
		a, err := t.verticalAcceleration(h, θ)
		if err != nil {
			return θ, it, err
		}
		a1, err := t.verticalAcceleration(h, θ+trimΔa)
		if err != nil {
			return θ, it, err
		}
		a2, err := t.verticalAcceleration(h, θ-trimΔa)
		if err != nil {
			return θ, it, err
		}
		dadθ := (a1 - a2) / (2 * trimΔa)
		if math.Abs(dadθ) < trimε {
			return θ, it, fmt.Errorf("%w: in flight: vertical acceleration %.3g m/s^2 insensitive to the pitch", ErrNotConverged, a)
		}
		Δθ := numeric.Saturate(-a/dadθ, maxFlightStep)
		θ = numeric.Clamp(θ+Δθ, -maxFlightPitch, maxFlightPitch)
		if math.Abs(Δθ) < ft.Epsilon {
			if a, err = t.verticalAcceleration(h, θ); err != nil {
				return θ, it, err
			}
			if math.Abs(a) <= ft.Tolerance {
				return θ, it, nil
			}
		}
	}
	return θ, ft.MaxIterations, fmt.Errorf("%w: in flight after %d iterations", ErrNotConverged, ft.MaxIterations)
}

// nedAcceleration returns the acceleration in NED at pose p.
func (t *trimmer) nedAcceleration(p pose) ([]float64, error) {
	_, acc, _, err := t.model.accelerations(t.state(p))
	if err != nil {
		return nil, err
	}
	return numeric.MxV33(t.model.k.BASToNED, acc), nil
}

// rotorcraft finds the collective, pitch and roll at which the acceleration vanishes, the
// velocity being held in NED. The trimmed collective is left in the controls.
func (t *trimmer) rotorcraft(ft FlightTrim, h float64) (pose, int, error) {
	ctl := t.model.ctl
	c0 := ctl.Collective
	if c0 == 0 {
		c0 = 0.5
	}
	s := &system{
		residuals: func(x []float64) ([]float64, error) {
			ctl.Collective = x[0]
			return t.nedAcceleration(pose{h: h, θ: x[1], φ: x[2]})
		},
		δ:       []float64{trimΔc, trimΔa, trimΔa},
		maxStep: []float64{maxCollectiveStep, maxFlightStep, maxFlightStep},
		lo:      []float64{0, -maxFlightPitch, -maxFlightPitch},
		hi:      []float64{1, maxFlightPitch, maxFlightPitch},
	}
	x, it, err := s.solve([]float64{c0, 0, 0}, ft.MaxIterations, ft.Epsilon, ft.Tolerance)
	ctl.Collective = x[0]
	p := pose{h: h, θ: x[1], φ: x[2]}
	if errors.Is(err, errDiverged) {
		return p, it, fmt.Errorf("%w: in flight after %d iterations", ErrNotConverged, it)
	}
	return p, it, err
}
