// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/evdev"
	"github.com/relabs-tech/magd/internal/imu"
)

// frameField names one record of an injected frame in diagnostics.
type frameField struct {
	name string
	ev   evdev.Event
}

// frameRecords lays a frame out in the order the eCompass HAL reads it.
func frameRecords(f imu.Frame) [8]frameField {
	return [8]frameField{
		{"field x", evdev.Abs(evdev.ABS_X, f.FieldX)},
		{"field y", evdev.Abs(evdev.ABS_Y, f.FieldY)},
		{"field z", evdev.Abs(evdev.ABS_Z, f.FieldZ)},
		{"yaw", evdev.Abs(evdev.ABS_RX, f.Yaw)},
		{"pitch", evdev.Abs(evdev.ABS_RY, f.Pitch)},
		{"roll", evdev.Abs(evdev.ABS_RZ, f.Roll)},
		{"status", evdev.Abs(evdev.ABS_STATUS, f.Status)},
		{"sync", evdev.Sync()},
	}
}

// Inject writes f to the eCompass sink and returns how many of its eight
// records were written. A failed write is logged and the remaining records
// are still attempted, so the closing SYN_REPORT always goes out last.
func (s *Session) Inject(f imu.Frame) int {
	return injectFrame(s.sink, f, s.log)
}

func injectFrame(w io.Writer, f imu.Frame, logger log.FieldLogger) int {
	written := 0
	for _, r := range frameRecords(f) {
		if _, err := w.Write(r.ev.Marshal()); err != nil {
			logger.Errorf("write error (%s): %v", r.name, err)
			continue
		}
		written++
	}
	return written
}
