package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/app"
)

func main() {
	log.Println("starting magd console (MQTT subscriber)")

	cmd := app.NewCommand("console_mqtt", "print magd telemetry received over MQTT", app.RunConsoleMQTT)
	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
