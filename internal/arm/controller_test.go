// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arm

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/gesture"
)

type command struct {
	joint JointID
	angle int
}

// recordingActuator records every command and can fail the n-th one (1-based).
type recordingActuator struct {
	cmds   []command
	failAt int
	err    error
}

func (a *recordingActuator) SetAngle(joint JointID, degrees int) error {
	if a.failAt > 0 && len(a.cmds)+1 == a.failAt {
		a.failAt = 0
		return a.err
	}
	a.cmds = append(a.cmds, command{joint, degrees})
	return nil
}

func baseConfig() Config {
	return Config{
		Step:     20,
		SubSteps: 1,
		Near:     JointConfig{Min: 0, Max: 180, Init: 90, UpDirection: 1},
		Far:      JointConfig{Min: 0, Max: 180, Init: 90, UpDirection: -1},
		Base:     JointConfig{Min: 20, Max: 160, Init: 90},
	}
}

func newTestController(t *testing.T, cfg Config) (*Controller, *recordingActuator) {
	t.Helper()
	act := &recordingActuator{}
	c, err := NewController(cfg, act)
	require.NoError(t, err)
	c.sleep = func(time.Duration) {}
	return c, act
}

func TestNewControllerRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero step":         func(c *Config) { c.Step = 0 },
		"zero substeps":     func(c *Config) { c.SubSteps = 0 },
		"min above max":     func(c *Config) { c.Base.Min = 170 },
		"init out of range": func(c *Config) { c.Near.Init = 181 },
		"bad up direction":  func(c *Config) { c.Far.UpDirection = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			_, err := NewController(cfg, &recordingActuator{})
			var ce *config.ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestConfigFrom(t *testing.T) {
	app := config.Default()
	app.SmoothingSubSteps = 4
	app.SmoothingDelayMS = 10

	cfg := ConfigFrom(app)
	assert.Equal(t, 20, cfg.Step)
	assert.Equal(t, 4, cfg.SubSteps)
	assert.Equal(t, 10*time.Millisecond, cfg.SubStepDelay)
	assert.Equal(t, JointConfig{Min: 20, Max: 160, Init: 90}, cfg.Base)
	assert.Equal(t, -1, cfg.Far.UpDirection)
}

func TestHome(t *testing.T) {
	c, act := newTestController(t, baseConfig())
	require.NoError(t, c.Home())
	assert.Equal(t, []command{{Near, 90}, {Far, 90}, {Base, 90}}, act.cmds)
	assert.False(t, c.Desynchronized())
}

func TestVerticalGroupClampsIndependently(t *testing.T) {
	cfg := baseConfig()
	cfg.Near = JointConfig{Min: 0, Max: 180, Init: 170, UpDirection: 1}
	cfg.Far = JointConfig{Min: 0, Max: 70, Init: 10, UpDirection: -1}
	c, act := newTestController(t, cfg)

	r, err := c.ApplyGesture(gesture.Up)
	require.NoError(t, err)
	assert.True(t, r.Recognized)
	assert.False(t, r.LimitReached)
	assert.Equal(t, 180, r.State.Near.Angle)
	assert.Equal(t, 0, r.State.Far.Angle)
	assert.Equal(t, []command{{Near, 180}, {Far, 0}}, act.cmds)

	near, ok := r.Move(Near)
	require.True(t, ok)
	assert.Equal(t, JointMove{Joint: Near, From: 170, To: 180, Delta: 10, Moved: true}, near)

	// Both joints are now where "up" pushes them.
	act.cmds = nil
	r, err = c.ApplyGesture(gesture.Up)
	require.NoError(t, err)
	assert.True(t, r.LimitReached)
	assert.False(t, r.Moved())
	assert.Empty(t, act.cmds)
	assert.Equal(t, 180, c.State().Near.Angle)
	assert.Equal(t, 0, c.State().Far.Angle)
	assert.Equal(t, "near already at UP limit, far already at UP limit", r.Summary())

	// down mirrors up
	r, err = c.ApplyGesture(gesture.Down)
	require.NoError(t, err)
	assert.Equal(t, 160, r.State.Near.Angle)
	assert.Equal(t, 20, r.State.Far.Angle)
}

func TestOneVerticalJointAtLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.Near.Init = 180
	c, act := newTestController(t, cfg)

	r, err := c.ApplyGesture(gesture.Up)
	require.NoError(t, err)
	assert.False(t, r.LimitReached)

	near, _ := r.Move(Near)
	far, _ := r.Move(Far)
	assert.True(t, near.AtLimit)
	assert.False(t, near.Moved)
	assert.True(t, far.Moved)
	assert.Equal(t, []command{{Far, 70}}, act.cmds)
	assert.Equal(t, "near already at UP limit, far moved UP to 70°", r.Summary())
}

func TestBaseJointLeftToLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.Step = 40
	c, _ := newTestController(t, cfg)

	var angles []int
	var r MovementReport
	for i := 0; i < 3; i++ {
		var err error
		r, err = c.ApplyGesture(gesture.Left)
		require.NoError(t, err)
		angles = append(angles, r.State.Base.Angle)
	}
	assert.Equal(t, []int{130, 160, 160}, angles)
	assert.True(t, r.LimitReached)

	r, err := c.ApplyGesture(gesture.Right)
	require.NoError(t, err)
	assert.Equal(t, 120, r.State.Base.Angle)
	assert.Equal(t, 90, r.State.Near.Angle)
	assert.Equal(t, 90, r.State.Far.Angle)
}

func TestUnrecognizedIsInert(t *testing.T) {
	for _, l := range []gesture.Label{gesture.Unrecognized, gesture.Label("wave"), ""} {
		c, act := newTestController(t, baseConfig())
		before := c.State()

		r, err := c.ApplyGesture(l)
		require.NoError(t, err)
		assert.False(t, r.Recognized)
		assert.False(t, r.LimitReached)
		assert.Empty(t, r.Moves)
		assert.Equal(t, before, c.State())
		assert.Empty(t, act.cmds)
		assert.Equal(t, "unknown gesture; no movement", r.Summary())
	}
}

func TestRandomSequencesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	labels := []gesture.Label{gesture.Up, gesture.Down, gesture.Left, gesture.Right, gesture.Unrecognized}

	for run := 0; run < 20; run++ {
		cfg := baseConfig()
		cfg.Step = 1 + rng.Intn(60)
		cfg.SubSteps = 1 + rng.Intn(4)
		cfg.Far.Max = 70
		cfg.Far.Init = 10
		c, act := newTestController(t, cfg)

		for i := 0; i < 200; i++ {
			_, err := c.ApplyGesture(labels[rng.Intn(len(labels))])
			require.NoError(t, err)
			for _, j := range c.State().Joints() {
				require.True(t, j.InRange(j.Angle), "run %d step %d: %s=%d", run, i, j.ID, j.Angle)
			}
		}
		for _, cmd := range act.cmds {
			j, ok := c.State().Joint(cmd.joint)
			require.True(t, ok)
			require.True(t, j.InRange(cmd.angle), "command %v out of range", cmd)
		}
	}
}

func TestIdempotentAtLimit(t *testing.T) {
	cfg := baseConfig()
	c, _ := newTestController(t, cfg)
	for i := 0; i < 10; i++ {
		_, err := c.ApplyGesture(gesture.Right)
		require.NoError(t, err)
	}
	at := c.State()
	require.Equal(t, 20, at.Base.Angle)

	for i := 0; i < 5; i++ {
		r, err := c.ApplyGesture(gesture.Right)
		require.NoError(t, err)
		assert.True(t, r.LimitReached)
		assert.Equal(t, at, c.State())
	}
}

func TestSmoothing(t *testing.T) {
	cfg := baseConfig()
	cfg.Step = 20
	cfg.SubSteps = 4
	cfg.SubStepDelay = 5 * time.Millisecond
	cfg.Near.Init = 175
	c, act := newTestController(t, cfg)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	r, err := c.ApplyGesture(gesture.Up)
	require.NoError(t, err)

	// near: 175 -> 180 clamped target, far: 90 -> 70
	assert.Equal(t, 180, r.State.Near.Angle)
	assert.Equal(t, 70, r.State.Far.Angle)

	var nearSteps, farSteps []int
	for _, cmd := range act.cmds {
		switch cmd.joint {
		case Near:
			nearSteps = append(nearSteps, cmd.angle)
		case Far:
			farSteps = append(farSteps, cmd.angle)
		}
	}
	assert.Equal(t, []int{85, 80, 75, 70}, farSteps)
	assert.Equal(t, 180, nearSteps[len(nearSteps)-1])
	for _, a := range nearSteps {
		assert.LessOrEqual(t, a, 180)
	}
	// pauses between sub-steps only
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}, slept)
}

func TestActuatorFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.SubSteps = 2
	c, act := newTestController(t, cfg)
	act.failAt = 2
	act.err = errors.New("i2c nack")

	// first sub-step: near 90->100 succeeds, far 90->80 fails
	r, err := c.ApplyGesture(gesture.Up)
	var ae *ActuatorError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, Far, ae.Joint)
	assert.Equal(t, 80, ae.Angle)
	assert.ErrorContains(t, err, "i2c nack")

	// state holds only what was written
	assert.Equal(t, 100, c.State().Near.Angle)
	assert.Equal(t, 90, c.State().Far.Angle)
	assert.Equal(t, c.State(), r.State)
	near, _ := r.Move(Near)
	assert.Equal(t, 10, near.Delta)
	far, _ := r.Move(Far)
	assert.False(t, far.Moved)
	assert.True(t, c.Desynchronized())

	// refused until resynchronized
	act.cmds = nil
	_, err = c.ApplyGesture(gesture.Left)
	assert.ErrorIs(t, err, ErrDesynchronized)
	assert.Empty(t, act.cmds)
	assert.Equal(t, 90, c.State().Base.Angle)

	require.NoError(t, c.Resync())
	assert.False(t, c.Desynchronized())
	assert.Equal(t, []command{{Near, 100}, {Far, 90}, {Base, 90}}, act.cmds)

	_, err = c.ApplyGesture(gesture.Left)
	require.NoError(t, err)
	assert.Equal(t, 110, c.State().Base.Angle)
}

func TestResyncFailureKeepsDesync(t *testing.T) {
	c, act := newTestController(t, baseConfig())
	act.failAt = 1
	act.err = errors.New("bus gone")

	err := c.Resync()
	var ae *ActuatorError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, Near, ae.Joint)
	assert.True(t, c.Desynchronized())
}
