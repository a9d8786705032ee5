// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gesture_arm/internal/arm"
	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/gesture"
	"github.com/relabs-tech/gesture_arm/internal/imu"
)

// offlineConfig is a valid config with a fast window, no Redis and a broker
// nobody listens on.
func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.ModelPath = "../../model.yaml"
	cfg.MQTTBroker = "tcp://127.0.0.1:1"
	cfg.RedisAddr = ""
	cfg.WindowSize = 4
	cfg.SampleIntervalMS = 5
	return cfg
}

// writeCountingSource remembers how many servo writes had happened when the
// first sample was read.
type writeCountingSource struct {
	act *stubActuator

	mu          sync.Mutex
	reads       int
	writesFirst int
}

func (s *writeCountingSource) ReadSample() (imu.Sample, error) {
	s.act.mu.Lock()
	writes := s.act.writes
	s.act.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.reads == 1 {
		s.writesFirst = writes
	}
	return imu.Sample{0, 0, imu.StandardGravity, 0, 0, 0}, nil
}

func (s *writeCountingSource) counts() (reads, writesFirst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writesFirst
}

func TestRunGestureArm(t *testing.T) {
	t.Run("dry run controls until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		require.NoError(t, RunGestureArm(ctx, offlineConfig(), true))
	})

	t.Run("invalid config is rejected before hardware", func(t *testing.T) {
		cfg := offlineConfig()
		cfg.WindowSize = 0
		// Without dry run a valid config would open the I2C bus.
		cfg.SensorSource = "mpu9250"
		cfg.Actuator = "pca9685"

		err := RunGestureArm(context.Background(), cfg, false)
		var ce *config.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "WINDOW_SIZE", ce.Key)
	})

	t.Run("missing model is a model error", func(t *testing.T) {
		cfg := offlineConfig()
		cfg.ModelPath = t.TempDir() + "/none.yaml"

		err := RunGestureArm(context.Background(), cfg, true)
		var me *gesture.ModelError
		require.ErrorAs(t, err, &me)
	})
}

func TestRunController(t *testing.T) {
	t.Run("arm is homed before the first sample", func(t *testing.T) {
		act := &stubActuator{}
		src := &writeCountingSource{act: act}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		require.NoError(t, runController(ctx, offlineConfig(), always(gesture.Unrecognized), src, act))

		reads, writesFirst := src.counts()
		require.Positive(t, reads)
		assert.Equal(t, 3, writesFirst, "one write per joint")
	})

	t.Run("homing failure stops before sampling", func(t *testing.T) {
		act := &stubActuator{failNext: 1}
		src := &writeCountingSource{act: act}

		err := runController(context.Background(), offlineConfig(), always(gesture.Up), src, act)
		var ae *arm.ActuatorError
		require.ErrorAs(t, err, &ae)
		reads, _ := src.counts()
		assert.Zero(t, reads)
	})
}
