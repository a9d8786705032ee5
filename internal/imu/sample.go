// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"
)

// Axes is the number of values in a Sample.
const Axes = 6

// Axis indices into a Sample, in the order the classifier was trained with.
const (
	AccelX = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
)

// AxisNames matches the Axis indices.
var AxisNames = [Axes]string{"ax", "ay", "az", "gx", "gy", "gz"}

// Sample is one 6-axis reading: acceleration in m/s² followed by angular rate in °/s.
type Sample [Axes]float64

// Validate rejects readings that can't have come from a working sensor.
func (s Sample) Validate() error {
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("axis %s is %v", AxisNames[i], v)
		}
	}
	return nil
}

// Source is anything that can provide samples on demand: the SPI IMU,
// a serial bridge, a mock, a replay in tests.
type Source interface {
	ReadSample() (Sample, error)
}
