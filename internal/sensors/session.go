// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors owns the accelerometer and magnetometer input devices and
// the eCompass sink for one daemon session: it opens them together, reads
// raw axis triples from the sources and injects calibrated frames.
//
// A Session is not safe for concurrent use.
package sensors

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/relabs-tech/magd/internal/device"
	"github.com/relabs-tech/magd/internal/evdev"
	"github.com/relabs-tech/magd/internal/imu"
)

// DefaultSinkName is the name the eCompass virtual input device registers.
const DefaultSinkName = "eCompass"

// Options selects the devices a Session opens.
type Options struct {
	Dir       string // defaults to /dev/input
	AccelName string
	MagName   string
	SinkName  string // defaults to DefaultSinkName

	Log log.FieldLogger

	// Resolver overrides the directory scan, mainly for tests.
	Resolver *device.Resolver

	// Tap, if set, sees every record decoded from a source.
	Tap func(device.Role, evdev.Event)
}

// poll set slots
const (
	accelSlot = iota
	magSlot
	numSlots
)

// source is the decode state of one raw input. pending collects axis values
// until the next SYN_REPORT moves them into committed.
type source struct {
	h         *device.Handle
	pending   imu.Triple
	committed imu.Triple
}

// Session holds the three devices of a running bridge.
type Session struct {
	src     [numSlots]source
	pollSet [numSlots]unix.PollFd
	sink    *device.Handle

	log log.FieldLogger
	tap func(device.Role, evdev.Event)
	buf [evdev.Size]byte
}

// Open resolves the accelerometer, the magnetometer and the eCompass sink, in
// that order. If any of them cannot be opened, the ones already opened are
// closed again and no descriptor is left behind.
func Open(opts Options) (*Session, error) {
	logger := opts.Log
	if logger == nil {
		logger = log.StandardLogger()
	}
	r := opts.Resolver
	if r == nil {
		r = device.NewResolver(opts.Dir, logger)
	}
	sinkName := opts.SinkName
	if sinkName == "" {
		sinkName = DefaultSinkName
	}

	logger.Println("init sensors")

	accel, err := r.Resolve(opts.AccelName, device.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}
	mag, err := r.Resolve(opts.MagName, device.ReadOnly)
	if err != nil {
		accel.Close()
		return nil, fmt.Errorf("mag: %w", err)
	}
	sink, err := r.Resolve(sinkName, device.WriteOnly)
	if err != nil {
		accel.Close()
		mag.Close()
		return nil, fmt.Errorf("orientation: %w", err)
	}

	s := newSession(accel.Tag(device.RoleAccel), mag.Tag(device.RoleMag), sink.Tag(device.RoleOrientation), logger)
	s.tap = opts.Tap
	return s, nil
}

// newSession registers both sources in the poll set.
func newSession(accel, mag, sink *device.Handle, logger log.FieldLogger) *Session {
	s := &Session{sink: sink, log: logger}
	s.src[accelSlot].h = accel
	s.src[magSlot].h = mag
	for i := range s.src {
		s.pollSet[i] = unix.PollFd{
			Fd:     int32(s.src[i].h.Fd()),
			Events: unix.POLLIN | unix.POLLPRI,
		}
	}
	return s
}

// Close closes all three devices. It may be called any number of times.
func (s *Session) Close() error {
	var errs []error
	for _, h := range []*device.Handle{s.src[accelSlot].h, s.src[magSlot].h, s.sink} {
		if err := h.Close(); err != nil {
			s.log.Printf("close %s: %v", h.Role(), err)
			errs = append(errs, fmt.Errorf("%s: %w", h.Role(), err))
		}
	}
	return errors.Join(errs...)
}

// Accel, Mag and Sink expose the handles for diagnostics.
func (s *Session) Accel() *device.Handle { return s.src[accelSlot].h }
func (s *Session) Mag() *device.Handle   { return s.src[magSlot].h }
func (s *Session) Sink() *device.Handle  { return s.sink }
