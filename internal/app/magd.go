// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/relabs-tech/magd/internal/config"
	"github.com/relabs-tech/magd/internal/device"
	"github.com/relabs-tech/magd/internal/evdev"
	"github.com/relabs-tech/magd/internal/imu"
	"github.com/relabs-tech/magd/internal/orientation"
	"github.com/relabs-tech/magd/internal/sensors"
	"github.com/relabs-tech/magd/internal/telemetry"
)

// Fusion turns a raw accelerometer/magnetometer pair into a calibrated
// frame.
type Fusion interface {
	Fuse(accel, mag imu.Triple) imu.Frame
}

// sampleSession is the part of sensors.Session the bridge loop drives.
type sampleSession interface {
	ReadSample(timeout time.Duration) (accel, mag imu.Triple, err error)
	Inject(f imu.Frame) int
}

// bridge moves samples from the raw sources through fusion to the sink.
type bridge struct {
	session      sampleSession
	fusion       Fusion
	pub          telemetry.Publisher
	timeout      time.Duration
	publishEvery uint64
	log          log.FieldLogger

	frames uint64
}

// step runs one read → fuse → inject cycle and reports whether a frame was
// injected. A source that hung up is returned as an error since no further
// reads can succeed.
func (b *bridge) step() (bool, error) {
	accel, mag, err := b.session.ReadSample(b.timeout)
	switch {
	case err == nil:
	case errors.Is(err, sensors.ErrHangup):
		return false, err
	case errors.Is(err, sensors.ErrPollTimeout), errors.Is(err, unix.EINTR):
		// timeouts only give the loop a chance to notice shutdown
		return false, nil
	default:
		b.log.Printf("read sample: %v", err)
		return false, nil
	}

	frame := b.fusion.Fuse(accel, mag)
	b.session.Inject(frame)
	b.frames++

	if b.frames%b.publishEvery == 0 {
		b.pub.PublishSample(imu.RawSample{Time: time.Now(), Accel: accel, Mag: mag})
		b.pub.PublishFrame(frame)
		b.log.Debugf("frame %d: accel=%+v mag=%+v -> %+v", b.frames, accel, mag, frame)
	}
	return true, nil
}

func (b *bridge) run(ctx context.Context) error {
	for ctx.Err() == nil {
		if _, err := b.step(); err != nil {
			return err
		}
	}
	return nil
}

// pollTimeout maps POLL_TIMEOUT_MS onto ReadSample's timeout.
func pollTimeout(ms int) time.Duration {
	if ms < 0 {
		return sensors.WaitForever
	}
	return time.Duration(ms) * time.Millisecond
}

// RunDaemon opens the sensors named in the global config and bridges them
// to the eCompass device until ctx is cancelled.
func RunDaemon(ctx context.Context) error {
	log.Println("starting magd eCompass bridge")

	cfg := config.Get()

	opts := sensors.Options{
		Dir:       cfg.InputDir,
		AccelName: cfg.AccelName,
		MagName:   cfg.MagName,
		SinkName:  cfg.SinkName,
		Log:       log.StandardLogger(),
	}
	if log.IsLevelEnabled(log.TraceLevel) {
		opts.Tap = func(role device.Role, ev evdev.Event) {
			log.Tracef("%s: %v", role, ev)
		}
	}

	session, err := sensors.Open(opts)
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer session.Close()
	log.Printf("bridging %v + %v -> %v", session.Accel(), session.Mag(), session.Sink())

	pub, err := telemetry.New(telemetry.Options{
		Broker:     cfg.MQTTBroker,
		ClientID:   cfg.MQTTClientIDDaemon,
		TopicRaw:   cfg.TopicRaw,
		TopicFrame: cfg.TopicFrame,
	}, log.StandardLogger())
	if err != nil {
		log.Printf("telemetry disabled: %v", err)
		pub = telemetry.Nop{}
	}
	defer pub.Close()

	if cfg.PollTimeoutMS < 0 {
		log.Warn("POLL_TIMEOUT_MS=-1: shutdown waits for the next sample, send the signal twice to force exit")
	}

	b := &bridge{
		session:      session,
		fusion:       orientation.NewTiltCompass(cfg.OrientationScale),
		pub:          pub,
		timeout:      pollTimeout(cfg.PollTimeoutMS),
		publishEvery: uint64(cfg.PublishEvery),
		log:          log.StandardLogger(),
	}
	err = b.run(ctx)

	log.Printf("magd: shutting down after %d frames", b.frames)
	if err != nil {
		return fmt.Errorf("magd: %w", err)
	}
	return nil
}
