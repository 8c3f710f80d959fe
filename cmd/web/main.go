// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/app"
)

func main() {
	log.Println("starting magd web server (MQTT subscriber)")
	log.Println("Note: frames only arrive while magd runs with MQTT_BROKER set")

	cmd := app.NewCommand("web", "serve the latest eCompass frame over HTTP and websocket", app.RunWeb)
	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
