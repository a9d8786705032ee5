// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/gesture_arm/internal/imu"
)

type mockSource struct {
	start time.Time
	rng   *rand.Rand
}

// NewMockSource creates a mock IMU that sits flat (1 g on Z) and sways
// slowly, with a little noise on every axis.
func NewMockSource() imu.Source {
	return &mockSource{
		start: time.Now(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *mockSource) ReadSample() (imu.Sample, error) {
	elapsed := time.Since(m.start).Seconds()
	noise := func(scale float64) float64 { return (m.rng.Float64() - 0.5) * scale }

	return imu.Sample{
		2*math.Sin(elapsed) + noise(0.2),
		1.5*math.Cos(elapsed*0.7) + noise(0.2),
		imu.StandardGravity + noise(0.2),
		20*math.Cos(elapsed) + noise(2),
		15*math.Sin(elapsed*0.7) + noise(2),
		noise(2),
	}, nil
}
