// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package servo implements arm.Actuator on real and simulated servo hardware.
package servo

import (
	"fmt"
	"log"

	"github.com/relabs-tech/gesture_arm/internal/arm"
	"github.com/relabs-tech/gesture_arm/internal/config"
)

// Channel maps a joint to its PWM output and its allowed range.
type Channel struct {
	Joint   arm.JointID
	Channel int
	Min     int
	Max     int
}

// ChannelsFrom returns the joint to channel mapping from the config file.
func ChannelsFrom(cfg *config.Config) []Channel {
	return []Channel{
		{Joint: arm.Near, Channel: cfg.JointNear.Channel, Min: cfg.JointNear.Min, Max: cfg.JointNear.Max},
		{Joint: arm.Far, Channel: cfg.JointFar.Channel, Min: cfg.JointFar.Min, Max: cfg.JointFar.Max},
		{Joint: arm.Base, Channel: cfg.JointBase.Channel, Min: cfg.JointBase.Min, Max: cfg.JointBase.Max},
	}
}

// check rejects unknown joints and out-of-range angles. The controller never
// asks for those, so reaching here means a bug upstream.
func check(chans map[arm.JointID]Channel, joint arm.JointID, degrees int) (Channel, error) {
	ch, ok := chans[joint]
	if !ok {
		return Channel{}, fmt.Errorf("unknown joint %q", joint)
	}
	if degrees < ch.Min || degrees > ch.Max {
		return Channel{}, fmt.Errorf("%s %d° not in [%d,%d]: %w", joint, degrees, ch.Min, ch.Max, arm.ErrOutOfRange)
	}
	return ch, nil
}

func index(channels []Channel) map[arm.JointID]Channel {
	m := make(map[arm.JointID]Channel, len(channels))
	for _, c := range channels {
		m[c.Joint] = c
	}
	return m
}

// LogActuator only logs the commands. Used for dry runs without a servo board.
type LogActuator struct {
	chans map[arm.JointID]Channel
}

// NewLogActuator creates a LogActuator enforcing the same ranges as the hardware one.
func NewLogActuator(channels []Channel) *LogActuator {
	return &LogActuator{chans: index(channels)}
}

func (a *LogActuator) SetAngle(joint arm.JointID, degrees int) error {
	ch, err := check(a.chans, joint, degrees)
	if err != nil {
		return err
	}
	log.Printf("servo: %s (ch %d) -> %d°", joint, ch.Channel, degrees)
	return nil
}

// Close is a no-op.
func (a *LogActuator) Close() error { return nil }

// Actuator is an arm.Actuator that owns hardware and must be closed.
type Actuator interface {
	arm.Actuator
	Close() error
}

// New builds the actuator selected by ACTUATOR.
func New(cfg *config.Config) (Actuator, error) {
	switch cfg.Actuator {
	case "pca9685":
		return NewPCA9685(cfg)
	case "log":
		log.Println("servo: using log-only actuator")
		return NewLogActuator(ChannelsFrom(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown actuator %q", cfg.Actuator)
	}
}
