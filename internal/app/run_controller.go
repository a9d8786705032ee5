// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/gesture_arm/internal/arm"
	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/gesture"
	"github.com/relabs-tech/gesture_arm/internal/imu"
	"github.com/relabs-tech/gesture_arm/internal/sensors"
	"github.com/relabs-tech/gesture_arm/internal/servo"
	"github.com/relabs-tech/gesture_arm/internal/telemetry"
)

// RunGestureArm wires sensor, model, servos and telemetry from cfg and runs
// the control loop until ctx is cancelled. With dryRun the mock sensor and
// the log-only actuator replace the hardware.
func RunGestureArm(ctx context.Context, cfg *config.Config, dryRun bool) error {
	// Everything that can be rejected without touching hardware goes first.
	if err := cfg.Validate(); err != nil {
		return err
	}
	model, err := gesture.LoadCentroidModel(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	log.Printf("control: model %s loaded (%d classes)", model.Name, len(model.Classes))
	classifier := gesture.WithBudget(model, time.Duration(cfg.ClassifyBudgetMS)*time.Millisecond)

	// --- sensor ---
	var src imu.Source
	if dryRun {
		src = sensors.NewMockSource()
	} else if src, err = sensors.NewSource(cfg); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	// --- servos ---
	var act servo.Actuator
	if dryRun {
		act = servo.NewLogActuator(servo.ChannelsFrom(cfg))
	} else if act, err = servo.New(cfg); err != nil {
		return fmt.Errorf("servo: %w", err)
	}
	defer act.Close()

	return runController(ctx, cfg, classifier, src, act)
}

// runController homes the arm, attaches the telemetry sinks and runs the loop
// on already opened hardware. cfg must be valid.
func runController(ctx context.Context, cfg *config.Config, classifier gesture.Classifier, src imu.Source, act arm.Actuator) error {
	collector, err := gesture.NewWindowCollector(src, cfg.WindowSize, time.Duration(cfg.SampleIntervalMS)*time.Millisecond)
	if err != nil {
		return err
	}

	controller, err := arm.NewController(arm.ConfigFrom(cfg), act)
	if err != nil {
		return err
	}
	if err := controller.Home(); err != nil {
		return fmt.Errorf("homing: %w", err)
	}
	state := controller.State()
	log.Printf("control: arm homed: near=%d° far=%d° base=%d°", state.Near.Angle, state.Far.Angle, state.Base.Angle)

	// --- telemetry ---
	// The arm runs without a broker or Redis; both only observe.
	var sinks telemetry.Multi
	if client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDController); err != nil {
		log.Printf("control: %v; cycle records will not be published", err)
	} else {
		defer client.Disconnect(250)
		mq := telemetry.NewMQTTSink(client, cfg.TopicCycle, cfg.TopicArmState)
		if err := mq.PublishState(state); err != nil {
			log.Printf("control: publish arm state: %v", err)
		}
		sinks = append(sinks, mq)
	}
	if cfg.RedisAddr != "" {
		history, err := telemetry.NewRedisHistory(ctx, cfg.RedisAddr, cfg.RedisHistoryKey, cfg.RedisHistoryLen)
		if err != nil {
			log.Printf("control: %v; cycle history disabled", err)
		} else {
			defer history.Close()
			sinks = append(sinks, history)
		}
	}

	loop := NewControlLoop(collector, classifier, controller, sinks)
	log.Printf("control: window=%d samples @ %dms, step=%d°, substeps=%d",
		cfg.WindowSize, cfg.SampleIntervalMS, cfg.StepDegrees, cfg.SmoothingSubSteps)

	if err := loop.Start(ctx, cfg.PipelineQueueDepth); err != nil {
		return err
	}
	log.Println("control: stopping live control")
	return nil
}
