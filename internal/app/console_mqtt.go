package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/config"
	"github.com/relabs-tech/magd/internal/imu"
)

// RunConsoleMQTT prints the daemon's raw samples and frames as they arrive
// over MQTT, until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not set")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	printer := consolePrinter{out: os.Stdout}
	subs := map[string]mqtt.MessageHandler{
		cfg.TopicRaw:   func(_ mqtt.Client, msg mqtt.Message) { printer.raw(msg.Payload()) },
		cfg.TopicFrame: func(_ mqtt.Client, msg mqtt.Message) { printer.frame(msg.Payload()) },
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

type consolePrinter struct {
	out io.Writer
}

func (p consolePrinter) raw(payload []byte) {
	var s imu.RawSample
	if err := json.Unmarshal(payload, &s); err != nil {
		log.Printf("console: raw sample unmarshal error: %v", err)
		return
	}
	fmt.Fprintf(p.out,
		"[RAW ] ax=%6d ay=%6d az=%6d  mx=%6d my=%6d mz=%6d\n",
		s.Accel.X, s.Accel.Y, s.Accel.Z, s.Mag.X, s.Mag.Y, s.Mag.Z,
	)
}

func (p consolePrinter) frame(payload []byte) {
	var f imu.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		log.Printf("console: frame unmarshal error: %v", err)
		return
	}
	fmt.Fprintf(p.out,
		"[ECMP] bx=%6d by=%6d bz=%6d  yaw=%6d pitch=%6d roll=%6d  status=%d\n",
		f.FieldX, f.FieldY, f.FieldZ, f.Yaw, f.Pitch, f.Roll, f.Status,
	)
}
