package telemetry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/relabs-tech/magd/internal/imu"
)

// doneToken is an already completed MQTT token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// recordingClient implements the Publish/Disconnect part of mqtt.Client.
type recordingClient struct {
	mqtt.Client
	err          error
	sent         []published
	disconnected bool
}

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return doneToken{c.err}
}

func (c *recordingClient) Disconnect(uint) { c.disconnected = true }

func TestPublishFrame(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := &recordingClient{}
	p := newMQTTPublisher(c, Options{TopicRaw: "magd/raw", TopicFrame: "magd/frame"}, logger)

	frame := imu.Frame{FieldX: 1, FieldY: 2, FieldZ: 3, Yaw: 4, Pitch: 5, Roll: 6, Status: 3}
	p.PublishFrame(frame)

	if len(c.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(c.sent))
	}
	msg := c.sent[0]
	if msg.topic != "magd/frame" || msg.qos != 0 || !msg.retained {
		t.Errorf("message = %s qos=%d retained=%v", msg.topic, msg.qos, msg.retained)
	}
	var got imu.Frame
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got != frame {
		t.Errorf("payload = %+v, want %+v", got, frame)
	}
	if !strings.Contains(string(msg.payload), `"yaw":4`) {
		t.Errorf("payload %s lacks yaw field", msg.payload)
	}
}

func TestPublishSampleTopic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := &recordingClient{}
	p := newMQTTPublisher(c, Options{TopicRaw: "magd/raw", TopicFrame: "magd/frame"}, logger)

	p.PublishSample(imu.RawSample{Accel: imu.Triple{X: 1}, Mag: imu.Triple{Z: -2}})
	if len(c.sent) != 1 || c.sent[0].topic != "magd/raw" {
		t.Fatalf("sent = %+v", c.sent)
	}
	if !strings.Contains(string(c.sent[0].payload), `"mag":{"x":0,"y":0,"z":-2}`) {
		t.Errorf("payload = %s", c.sent[0].payload)
	}
}

func TestPublishErrorIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := &recordingClient{err: errors.New("not connected")}
	p := newMQTTPublisher(c, Options{TopicFrame: "magd/frame"}, logger)

	p.PublishFrame(imu.Frame{})
	if hook.LastEntry() == nil || !strings.Contains(hook.LastEntry().Message, "not connected") {
		t.Errorf("publish error not logged: %v", hook.AllEntries())
	}

	p.Close()
	if !c.disconnected {
		t.Error("Close did not disconnect")
	}
}

func TestNewWithoutBroker(t *testing.T) {
	p, err := New(Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(Nop); !ok {
		t.Errorf("publisher = %T, want Nop", p)
	}
	p.PublishFrame(imu.Frame{})
	p.Close()
}
