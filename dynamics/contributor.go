package dynamics

// Controls are the normalized pilot (or autopilot) inputs after clamping.
type Controls struct {
	Roll, Pitch, Yaw             float64 // [-1, 1]
	TrimRoll, TrimPitch, TrimYaw float64 // [-1, 1]
	Collective                   float64 // [0, 1]
	Flaps                        float64 // [0, 1]
	BrakeLeft, BrakeRight        float64 // [0, 1]
	NoseWheelSteering            bool
	Engines                      []EngineControls
}

// EngineControls are the controls of a single engine.
type EngineControls struct {
	Throttle  float64 // [0, 1]
	Mixture   float64 // [0, 1]
	Propeller float64 // [0, 1]
	Fuel      bool
	Ignition  bool
	Starter   bool
}

// Engine returns the controls of engine i, or idle cut-off controls if there are none.
func (c *Controls) Engine(i int) EngineControls {
	if i < len(c.Engines) {
		return c.Engines[i]
	}
	return EngineControls{}
}

// Shared carries values published by a contributor for the ones that follow it in the
// evaluation order, e.g. the main rotor downwash read by the fuselage and stabilizers,
// or the rotor torques read by the engine governor.
type Shared struct {
	MainRotorOmega    float64 // rad/s
	MainRotorTorque   float64 // N.m, required by the main rotor
	TailRotorTorque   float64 // N.m, required by the tail rotor, at the main rotor shaft
	InducedVelocity   float64 // m/s, main rotor, positive down through the disk
	WakeSkew          float64 // rad, angle of the rotor wake from the shaft axis
	EngineShaftTorque float64 // N.m, delivered by the engines at the main rotor shaft
	OnGround          bool
	Collision         bool
}

// ForceContributor is implemented by every model which produces a force and a moment:
// mass (gravity), aerodynamics, propulsion and landing gear.
//
// ComputeForceAndMoment must not modify anything but the Shared values it publishes;
// it may be called several times per step, at intermediate states. Update advances the
// incidental state of the contributor (engine speed, rotor azimuth, filters) once per
// step, after the integration.
type ForceContributor interface {
	Name() string
	ComputeForceAndMoment(k *Kinematics, c *Controls, sh *Shared) (Wrench, error)
	Update(dt float64, k *Kinematics, c *Controls, sh *Shared) error
}

// Initializer is implemented by contributors whose incidental state depends on the
// initial conditions.
type Initializer interface {
	Initialize(engineOn bool)
}
