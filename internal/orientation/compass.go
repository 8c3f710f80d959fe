package orientation

import (
	"math"

	"github.com/relabs-tech/magd/internal/imu"
)

// DefaultScale matches the divisor the eCompass HAL applies to angles.
const DefaultScale = 16

// TiltCompass turns a raw accelerometer/magnetometer pair into an eCompass
// frame: pitch and roll from gravity, yaw from the tilt-compensated field.
// It does no hard/soft-iron calibration; the field is passed through as
// measured.
type TiltCompass struct {
	Scale float64 // angle units per degree
}

// NewTiltCompass returns a compass that scales angles by scale. A
// non-positive scale means DefaultScale.
func NewTiltCompass(scale int) *TiltCompass {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &TiltCompass{Scale: float64(scale)}
}

// Fuse implements the fusion stage.
func (c *TiltCompass) Fuse(accel, mag imu.Triple) imu.Frame {
	pose := ComputePoseFromAccel(float64(accel.X), float64(accel.Y), float64(accel.Z))
	pose.Yaw = ComputeHeading(float64(mag.X), float64(mag.Y), float64(mag.Z), pose)

	status := int32(imu.StatusAccuracyHigh)
	if mag == (imu.Triple{}) {
		status = imu.StatusUnreliable
	}

	return imu.Frame{
		FieldX: int32(mag.X),
		FieldY: int32(mag.Y),
		FieldZ: int32(mag.Z),
		Yaw:    c.scaled(pose.Yaw),
		Pitch:  c.scaled(pose.Pitch),
		Roll:   c.scaled(pose.Roll),
		Status: status,
	}
}

func (c *TiltCompass) scaled(deg float64) int32 {
	return int32(math.Round(deg * c.Scale))
}
