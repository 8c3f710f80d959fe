package imu

import "time"

// Triple is the latest full x/y/z reading of one raw source.
type Triple struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// RawSample is one accelerometer + magnetometer pair as handed to fusion.
type RawSample struct {
	Time  time.Time `json:"time"`
	Accel Triple    `json:"accel"`
	Mag   Triple    `json:"mag"`
}

// Frame is a calibrated eCompass result ready for injection.
type Frame struct {
	FieldX int32 `json:"field_x"` // corrected magnetic field
	FieldY int32 `json:"field_y"`
	FieldZ int32 `json:"field_z"`

	Yaw   int32 `json:"yaw"` // rotation around z
	Pitch int32 `json:"pitch"`
	Roll  int32 `json:"roll"`

	Status int32 `json:"status"` // calibration accuracy, 0 (unreliable) to 3 (high)
}

// Calibration accuracy values carried in Frame.Status.
const (
	StatusUnreliable   = 0
	StatusAccuracyLow  = 1
	StatusAccuracyMed  = 2
	StatusAccuracyHigh = 3
)
