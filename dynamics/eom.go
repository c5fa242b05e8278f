package dynamics

import (
	"errors"
	"fmt"

	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/ode"
	"github.com/gonum/matrix/mat64"
)

// ErrSingularMass is returned when the generalized mass matrix cannot be inverted.
var ErrSingularMass = errors.New("singular generalized mass matrix")

// ForceModel is what the equations of motion integrate: the total generalized force
// at any state, and the generalized mass matrix, constant over a step.
type ForceModel interface {
	Evaluate(s *State) (Wrench, error)
	MassMatrix() *mat64.Dense
}

// Freeze holds the flags freezing parts of the state.
type Freeze struct {
	Position, Attitude, Velocity bool
}

// Accelerations solves the rigid body equations about the BAS origin,
//
//	M [dv/dt; dω/dt] = [F; M] - [ω×p; ω×h + v×p], with [p; h] = M [v; ω],
//
// where M is the 6x6 generalized mass matrix which accounts for the CG offset.
func Accelerations(vel, omg []float64, w Wrench, m *mat64.Dense) (acc, eps []float64, err error) {
	x := mat64.NewVector(6, []float64{vel[0], vel[1], vel[2], omg[0], omg[1], omg[2]})
	var ph mat64.Vector
	ph.MulVec(m, x)
	p := []float64{ph.At(0, 0), ph.At(1, 0), ph.At(2, 0)}
	h := []float64{ph.At(3, 0), ph.At(4, 0), ph.At(5, 0)}
	gf := numeric.Sub(w.For, numeric.Cross(omg, p))
	gm := numeric.Sub(w.Mom, numeric.Add(numeric.Cross(omg, h), numeric.Cross(vel, p)))
	rhs := mat64.NewDense(6, 1, []float64{gf[0], gf[1], gf[2], gm[0], gm[1], gm[2]})
	var sol mat64.Dense
	if err := sol.Solve(m, rhs); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrSingularMass, err)
	}
	acc = []float64{sol.At(0, 0), sol.At(1, 0), sol.At(2, 0)}
	eps = []float64{sol.At(3, 0), sol.At(4, 0), sol.At(5, 0)}
	return acc, eps, nil
}

// Integrator advances the state by one fixed step of a fourth order Runge-Kutta.
// The force model is evaluated at every stage so that the contributions follow the
// intermediate states. The quaternion is normalized after every step.
type Integrator struct {
	Freeze Freeze

	model   ForceModel
	state   *State
	stage   *State
	first   bool
	stepped bool
	err     error
}

// Step integrates s in place over dt. On error s is left untouched.
func (i *Integrator) Step(s *State, dt float64, fm ForceModel) error {
	if !(dt > 0) {
		return fmt.Errorf("invalid time step %g", dt)
	}
	i.model, i.state, i.stage = fm, s.Copy(), s.Copy()
	i.first, i.stepped, i.err = true, false, nil
	ode.NewRK4(0, dt, i).Solve()
	if i.err != nil {
		return i.err
	}
	i.state.Att = i.state.Att.Normalized()
	if err := i.state.Check(); err != nil {
		return err
	}
	*s = *i.state
	return nil
}

// GetState implements the ode.Integrable interface.
func (i *Integrator) GetState() []float64 {
	return i.state.Vector()
}

// SetState implements the ode.Integrable interface.
func (i *Integrator) SetState(t float64, v []float64) {
	acc, eps := i.state.Acc, i.state.Eps
	i.state.SetVector(v)
	i.state.Acc, i.state.Eps = acc, eps
	i.stepped = true
}

// Stop implements the ode.Integrable interface: a single step is performed.
func (i *Integrator) Stop(t float64) bool {
	return i.stepped
}

// Func implements the ode.Integrable interface.
func (i *Integrator) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, StateSize)
	if i.err != nil {
		return fDot
	}
	i.stage.SetVector(f)
	i.stage.Att = i.stage.Att.Normalized()
	w, err := i.model.Evaluate(i.stage)
	if err != nil {
		i.err = err
		return fDot
	}
	acc, eps, err := Accelerations(i.stage.Vel, i.stage.Omg, w, i.model.MassMatrix())
	if err != nil {
		i.err = err
		return fDot
	}
	if i.first {
		// Accelerations are reported at the beginning of the step.
		i.state.Acc, i.state.Eps = acc, eps
		i.first = false
	}
	if !i.Freeze.Position {
		copy(fDot[0:3], i.stage.Att.Rotate(i.stage.Vel))
	}
	if !i.Freeze.Attitude {
		copy(fDot[3:7], i.stage.Att.Derivative(i.stage.Omg).Slice())
	}
	if !i.Freeze.Velocity {
		copy(fDot[7:10], acc)
		copy(fDot[10:13], eps)
	}
	if err := numeric.CheckFinite("state derivative", fDot); err != nil {
		i.err = err
		return make([]float64, StateSize)
	}
	return fDot
}
