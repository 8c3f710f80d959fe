package orientation

import (
	"math"
)

// Pose is an orientation in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is left at 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// ComputeHeading returns the tilt-compensated magnetic heading in degrees,
// in [0, 360), for a field vector measured at the given pose.
func ComputeHeading(mx, my, mz float64, p Pose) float64 {
	roll := p.Roll * math.Pi / 180.0
	pitch := p.Pitch * math.Pi / 180.0

	// rotate the field back onto the horizontal plane
	xh := mx*math.Cos(pitch) + my*math.Sin(roll)*math.Sin(pitch) + mz*math.Cos(roll)*math.Sin(pitch)
	yh := my*math.Cos(roll) - mz*math.Sin(roll)

	heading := math.Atan2(-yh, xh) * 180.0 / math.Pi
	if heading < 0 {
		heading += 360
	}
	return heading
}
