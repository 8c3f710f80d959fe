// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry mirrors raw samples and injected frames to MQTT so they
// can be watched without reading the eCompass device.
package telemetry

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/imu"
)

// Publisher sends telemetry. Failures are logged, never returned, so a
// missing broker cannot stall acquisition.
type Publisher interface {
	PublishSample(imu.RawSample)
	PublishFrame(imu.Frame)
	Close()
}

// Options configures an MQTT publisher.
type Options struct {
	Broker     string
	ClientID   string
	TopicRaw   string
	TopicFrame string
}

type mqttPublisher struct {
	client mqtt.Client
	opts   Options
	log    log.FieldLogger
}

// New connects to the broker and returns a publisher. An empty broker
// returns a publisher that drops everything.
func New(opts Options, logger log.FieldLogger) (Publisher, error) {
	if opts.Broker == "" {
		return Nop{}, nil
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", opts.Broker, token.Error())
	}
	logger.Printf("telemetry: connected to MQTT broker at %s", opts.Broker)
	return newMQTTPublisher(client, opts, logger), nil
}

func newMQTTPublisher(client mqtt.Client, opts Options, logger log.FieldLogger) *mqttPublisher {
	return &mqttPublisher{client: client, opts: opts, log: logger}
}

func (p *mqttPublisher) PublishSample(s imu.RawSample) {
	p.publish(p.opts.TopicRaw, s)
}

func (p *mqttPublisher) PublishFrame(f imu.Frame) {
	p.publish(p.opts.TopicFrame, f)
}

func (p *mqttPublisher) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Printf("telemetry: json marshal error (%s): %v", topic, err)
		return
	}
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		p.log.Printf("MQTT publish error (%s): %v", topic, token.Error())
	}
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// Nop discards telemetry.
type Nop struct{}

func (Nop) PublishSample(imu.RawSample) {}
func (Nop) PublishFrame(imu.Frame)      {}
func (Nop) Close()                      {}
