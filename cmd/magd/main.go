// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/app"
)

func main() {
	cmd := app.NewCommand("magd", "bridge raw accelerometer/magnetometer input devices to the eCompass device", app.RunDaemon)
	cmd.Long = `magd reads the accelerometer and magnetometer input devices named in the
configuration, turns each sample pair into an orientation frame and injects it
into the eCompass input device, where the sensor HAL picks it up.

Configuration keys can be overridden with MAGD_<KEY> environment variables.`
	cmd.Example = `  sudo magd --config=/etc/magd/magd_config.txt`

	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
