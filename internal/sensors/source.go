// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/imu"
)

// NewSource builds the sample source selected by SENSOR_SOURCE.
func NewSource(cfg *config.Config) (imu.Source, error) {
	switch cfg.SensorSource {
	case "mpu9250":
		return NewIMUSource(cfg)
	case "serial":
		return NewSerialSource(cfg)
	case "mock":
		log.Println("sensors: using mock IMU source")
		return NewMockSource(), nil
	default:
		return nil, fmt.Errorf("unknown sensor source %q", cfg.SensorSource)
	}
}
