// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/sys/unix"

	"github.com/relabs-tech/magd/internal/device"
	"github.com/relabs-tech/magd/internal/evdev"
	"github.com/relabs-tech/magd/internal/imu"
)

// WaitForever makes ReadSample block until each source has data.
const WaitForever time.Duration = -1

// ErrPollTimeout is wrapped by a PollError when nothing became readable
// within the timeout.
var ErrPollTimeout = errors.New("no data before timeout")

// ErrHangup is wrapped by a PollError when a source reports an error or
// hangup with nothing left to read, as when the device is unplugged.
var ErrHangup = errors.New("device hung up")

// PollError reports a failed or empty wait on one source.
type PollError struct {
	Role device.Role
	Err  error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("%s: poll: %v", e.Role, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// ReadSample waits for the magnetometer and drains it, then does the same
// for the accelerometer, and returns the latest committed triple of each.
//
// Triples are cumulative: an axis not re-reported keeps its previous value.
// Only values closed by a SYN_REPORT are returned. A wait failure or timeout
// on either source returns a *PollError right away; retrying is up to the
// caller. A source that hung up yields a PollError wrapping ErrHangup.
func (s *Session) ReadSample(timeout time.Duration) (accel, mag imu.Triple, err error) {
	for _, slot := range [...]int{magSlot, accelSlot} {
		if err := s.wait(slot, timeout); err != nil {
			return s.src[accelSlot].committed, s.src[magSlot].committed, err
		}
		s.drain(slot)
	}
	return s.src[accelSlot].committed, s.src[magSlot].committed, nil
}

func (s *Session) wait(slot int, timeout time.Duration) error {
	role := s.src[slot].h.Role()
	n, err := unix.Poll(s.pollSet[slot:slot+1], pollMillis(timeout))
	if err != nil {
		return &PollError{Role: role, Err: err}
	}
	if n <= 0 {
		return &PollError{Role: role, Err: ErrPollTimeout}
	}
	rev := s.pollSet[slot].Revents
	if rev&unix.POLLIN == 0 && rev&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return &PollError{Role: role, Err: fmt.Errorf("%w (revents 0x%x)", ErrHangup, rev)}
	}
	return nil
}

// pollMillis converts a timeout for poll(2); negative waits forever. The
// kernel takes a 32-bit int, so longer timeouts are clamped.
func pollMillis(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d > 0 && d < time.Millisecond:
		return 1
	case d/time.Millisecond > math.MaxInt32:
		return math.MaxInt32
	default:
		return int(d / time.Millisecond)
	}
}

// drain decodes queued records of one source until a SYN_REPORT, an empty
// queue or a desync. A record of the wrong size drops the in-progress update
// so the caller never sees half of one.
func (s *Session) drain(slot int) {
	pfd := &s.pollSet[slot]
	src := &s.src[slot]
	role := src.h.Role()

	if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		s.log.Printf("%s: poll revents 0x%x", role, pfd.Revents)
	}
	if pfd.Revents&unix.POLLIN == 0 {
		return
	}

	for {
		n, err := src.h.Read(s.buf[:])
		if err != nil {
			if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, io.EOF) {
				s.log.Printf("%s: read: %v", role, err)
			}
			return
		}
		ev, err := evdev.Unmarshal(s.buf[:n])
		if err != nil {
			s.log.Printf("%s: byte read %d, dropping update: %v", role, n, err)
			src.pending = src.committed
			return
		}
		if s.tap != nil {
			s.tap(role, ev)
		}

		switch ev.Type {
		case evdev.EV_ABS:
			switch ev.Code {
			case evdev.ABS_X:
				src.pending.X = int16(ev.Value)
			case evdev.ABS_Y:
				src.pending.Y = int16(ev.Value)
			case evdev.ABS_Z:
				src.pending.Z = int16(ev.Value)
			}
		case evdev.EV_SYN:
			src.committed = src.pending
			pfd.Revents = 0
			return
		}
	}
}
