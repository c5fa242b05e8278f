package dynamics

import (
	"math"

	"github.com/ChristopherRabotin/fdm/atmos"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/wgs84"
	"github.com/gonum/matrix/mat64"
)

// minAirspeed is the airspeed under which the aerodynamic angles are set to zero.
const minAirspeed = 1e-2

// Ground is the local ground plane, given by a point and its outward normal in WGS.
type Ground struct {
	Point, Normal []float64
}

// Environment is everything outside the aircraft which the kinematics depend on.
type Environment struct {
	Atmosphere *atmos.Model
	Wind       []float64 // total wind (steady, shear and gusts), NED
	Ground     Ground
}

// Kinematics are the quantities derived from a State and the Environment that the
// force contributors read. They are computed once per state evaluation.
type Kinematics struct {
	Position    *wgs84.Position
	Altitude    float64 // height above the ellipsoid
	AltitudeAGL float64 // height of the BAS origin above the ground plane

	WGSToBAS, BASToWGS *mat64.Dense
	NEDToBAS, BASToNED *mat64.Dense

	Roll, Pitch, Heading float64

	Vel, Omg   []float64 // BAS
	VelNED     []float64
	GravityBAS []float64

	GroundNormalBAS []float64 // outward ground normal, BAS

	Air          atmos.State
	AtmosClamped bool
	WindBAS      []float64
	AirVel       []float64 // velocity relative to the air, BAS
	Airspeed     float64
	AoA          float64 // angle of attack
	Sideslip     float64
	DynPress     float64
	Mach         float64
}

// NewKinematics computes the kinematics of s in env.
func NewKinematics(s *State, env *Environment) *Kinematics {
	k := &Kinematics{Vel: s.Vel, Omg: s.Omg}
	k.Position = wgs84.NewPositionWGS(s.Pos)
	geo := k.Position.Geo()
	k.Altitude = geo.Alt

	k.BASToWGS = s.Att.DCM()
	k.WGSToBAS = numeric.Transpose(k.BASToWGS)
	k.NEDToBAS = numeric.Mul(k.WGSToBAS, k.Position.NEDToWGS())
	k.BASToNED = numeric.Transpose(k.NEDToBAS)
	k.Roll, k.Pitch, k.Heading = numeric.DCMToEuler(k.NEDToBAS)

	k.VelNED = numeric.MxV33(k.BASToNED, s.Vel)
	k.GravityBAS = numeric.MxV33(k.WGSToBAS, k.Position.Gravity())

	n := numeric.Unit(env.Ground.Normal)
	k.GroundNormalBAS = numeric.MxV33(k.WGSToBAS, n)
	k.AltitudeAGL = numeric.Dot(numeric.Sub(s.Pos, env.Ground.Point), n)

	model := env.Atmosphere
	if model == nil {
		model = atmos.New()
	}
	k.Air, k.AtmosClamped = model.At(k.Altitude)

	wind := env.Wind
	if wind == nil {
		wind = []float64{0, 0, 0}
	}
	k.WindBAS = numeric.MxV33(k.NEDToBAS, wind)
	k.AirVel = numeric.Sub(s.Vel, k.WindBAS)
	k.Airspeed = numeric.Norm(k.AirVel)
	if k.Airspeed > minAirspeed {
		k.AoA = math.Atan2(k.AirVel[2], k.AirVel[0])
		k.Sideslip = math.Asin(numeric.Clamp(k.AirVel[1]/k.Airspeed, -1, 1))
	}
	k.DynPress = 0.5 * k.Air.Density * k.Airspeed * k.Airspeed
	k.Mach = k.Airspeed / k.Air.SpeedOfSound
	return k
}

// HeightAboveGround returns the height above the ground plane of a point given in BAS.
func (k *Kinematics) HeightAboveGround(r []float64) float64 {
	return k.AltitudeAGL + numeric.Dot(r, k.GroundNormalBAS)
}

// PointVelocity returns the velocity relative to the ground of a point given in BAS.
func (k *Kinematics) PointVelocity(r []float64) []float64 {
	return numeric.Add(k.Vel, numeric.Cross(k.Omg, r))
}
