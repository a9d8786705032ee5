// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arm

import (
	"fmt"
	"time"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/gesture"
)

// JointConfig is the range and start angle of one joint.
type JointConfig struct {
	Min  int
	Max  int
	Init int
	// UpDirection is the sign of the angle change on "up" (+1 toward Max,
	// -1 toward Min). Only the vertical joints use it.
	UpDirection int
}

// Config parameterizes the movement state machine.
type Config struct {
	Step         int           // degrees per gesture
	SubSteps     int           // hardware writes per gesture, >= 1
	SubStepDelay time.Duration // pause between sub-steps

	Near JointConfig
	Far  JointConfig
	Base JointConfig
}

// ConfigFrom builds the controller configuration from the application config.
func ConfigFrom(cfg *config.Config) Config {
	jc := func(j config.Joint) JointConfig {
		return JointConfig{Min: j.Min, Max: j.Max, Init: j.Init, UpDirection: j.UpDirection}
	}
	return Config{
		Step:         cfg.StepDegrees,
		SubSteps:     cfg.SmoothingSubSteps,
		SubStepDelay: time.Duration(cfg.SmoothingDelayMS) * time.Millisecond,
		Near:         jc(cfg.JointNear),
		Far:          jc(cfg.JointFar),
		Base:         jc(cfg.JointBase),
	}
}

func (c Config) validate() error {
	if c.Step <= 0 {
		return &config.ConfigError{Key: "STEP_DEGREES", Reason: fmt.Sprintf("must be positive, got %d", c.Step)}
	}
	if c.SubSteps < 1 {
		return &config.ConfigError{Key: "SMOOTHING_SUBSTEPS", Reason: fmt.Sprintf("must be >= 1, got %d", c.SubSteps)}
	}
	for _, j := range []struct {
		id       JointID
		cfg      JointConfig
		vertical bool
	}{{Near, c.Near, true}, {Far, c.Far, true}, {Base, c.Base, false}} {
		if j.cfg.Min > j.cfg.Max {
			return &config.ConfigError{Key: string(j.id), Reason: fmt.Sprintf("min %d > max %d", j.cfg.Min, j.cfg.Max)}
		}
		if j.cfg.Init < j.cfg.Min || j.cfg.Init > j.cfg.Max {
			return &config.ConfigError{Key: string(j.id), Reason: fmt.Sprintf("initial angle %d outside [%d,%d]", j.cfg.Init, j.cfg.Min, j.cfg.Max)}
		}
		if j.vertical && j.cfg.UpDirection != 1 && j.cfg.UpDirection != -1 {
			return &config.ConfigError{Key: string(j.id), Reason: fmt.Sprintf("up direction must be 1 or -1, got %d", j.cfg.UpDirection)}
		}
	}
	return nil
}

// Controller owns the arm state and turns gestures into clamped joint moves.
// It is not safe for concurrent use: exactly one goroutine (the one running
// the control loop) may call it.
type Controller struct {
	cfg   Config
	act   Actuator
	state ArmState

	desynced bool

	sleep func(time.Duration)
}

// NewController validates cfg and sets every joint to its initial angle.
// Nothing is sent to the actuator until Home.
func NewController(cfg Config, act Actuator) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	js := func(id JointID, j JointConfig) JointState {
		return JointState{ID: id, Angle: j.Init, Min: j.Min, Max: j.Max}
	}
	return &Controller{
		cfg: cfg,
		act: act,
		state: ArmState{
			Near: js(Near, cfg.Near),
			Far:  js(Far, cfg.Far),
			Base: js(Base, cfg.Base),
		},
		sleep: time.Sleep,
	}, nil
}

// State returns a copy of the current arm state.
func (c *Controller) State() ArmState { return c.state }

// Desynchronized reports whether a failed write left the hardware in an
// unknown position. Gestures are refused until Resync succeeds.
func (c *Controller) Desynchronized() bool { return c.desynced }

// Home drives every joint to its recorded angle. Called once at startup so
// the hardware matches the initial state.
func (c *Controller) Home() error {
	return c.Resync()
}

// Resync re-sends the recorded angle of every joint. On success the
// controller accepts gestures again.
func (c *Controller) Resync() error {
	for _, j := range c.state.Joints() {
		if err := c.act.SetAngle(j.ID, j.Angle); err != nil {
			c.desynced = true
			return &ActuatorError{Joint: j.ID, Angle: j.Angle, Err: err}
		}
	}
	c.desynced = false
	return nil
}

// drive is the direction a gesture pushes one joint: +1 toward Max, -1 toward Min.
type drive struct {
	id  JointID
	dir int
}

// target is one joint's planned move for a gesture.
type target struct {
	id   JointID
	from int
	to   int
}

// ApplyGesture moves the arm for one label.
//
// up/down move the near and far joints one step each in their configured
// direction, clamped independently. left/right move the base joint one step
// toward Max/Min. Anything else is a no-op that touches neither the state nor
// the hardware. When every targeted joint already sits at the limit the
// gesture pushes toward, nothing is written and LimitReached is set.
//
// A failed write returns an *ActuatorError; the state keeps the last angle
// that was written successfully and the controller is marked desynchronized.
func (c *Controller) ApplyGesture(label gesture.Label) (MovementReport, error) {
	report := MovementReport{Label: label}

	var dirs []drive
	switch label {
	case gesture.Up:
		dirs = []drive{{Near, c.cfg.Near.UpDirection}, {Far, c.cfg.Far.UpDirection}}
	case gesture.Down:
		dirs = []drive{{Near, -c.cfg.Near.UpDirection}, {Far, -c.cfg.Far.UpDirection}}
	case gesture.Left:
		dirs = []drive{{Base, 1}}
	case gesture.Right:
		dirs = []drive{{Base, -1}}
	default:
		report.State = c.state
		return report, nil
	}
	report.Recognized = true

	if c.desynced {
		report.State = c.state
		return report, &ActuatorError{Err: ErrDesynchronized}
	}

	targets := make([]target, 0, len(dirs))
	report.LimitReached = true
	for _, d := range dirs {
		j := c.state.joint(d.id)
		to := j.Clamp(j.Angle + d.dir*c.cfg.Step)
		report.Moves = append(report.Moves, JointMove{
			Joint:   d.id,
			From:    j.Angle,
			To:      to,
			Delta:   to - j.Angle,
			Moved:   to != j.Angle,
			AtLimit: to == j.Angle,
		})
		if to != j.Angle {
			report.LimitReached = false
			targets = append(targets, target{id: d.id, from: j.Angle, to: to})
		}
	}

	if report.LimitReached {
		report.State = c.state
		return report, nil
	}

	if err := c.move(targets); err != nil {
		// Report what actually happened before the failure.
		for i := range report.Moves {
			m := &report.Moves[i]
			m.To = c.state.joint(m.Joint).Angle
			m.Delta = m.To - m.From
			m.Moved = m.Delta != 0
		}
		report.State = c.state
		return report, err
	}

	report.State = c.state
	return report, nil
}

// move walks all targets to their destination in SubSteps increments,
// writing each joint and recording its angle in the same step.
func (c *Controller) move(targets []target) error {
	n := c.cfg.SubSteps
	for k := 1; k <= n; k++ {
		for _, t := range targets {
			j := c.state.joint(t.id)
			angle := j.Clamp(t.from + (t.to-t.from)*k/n)
			if angle == j.Angle {
				continue
			}
			if err := c.act.SetAngle(t.id, angle); err != nil {
				c.desynced = true
				return &ActuatorError{Joint: t.id, Angle: angle, Err: err}
			}
			j.Angle = angle
		}
		if k < n && c.cfg.SubStepDelay > 0 {
			c.sleep(c.cfg.SubStepDelay)
		}
	}
	return nil
}
