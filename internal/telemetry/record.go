// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/relabs-tech/gesture_arm/internal/arm"
)

// JointRecord is one joint's angle and what the cycle did to it.
type JointRecord struct {
	Joint   arm.JointID `json:"joint"`
	Angle   int         `json:"angle"`
	Moved   bool        `json:"moved"`
	Delta   int         `json:"delta"`
	AtLimit bool        `json:"at_limit"`
}

// CycleRecord is the per-cycle observability record published by the
// controller and consumed by the console, web and display binaries.
type CycleRecord struct {
	Session      string        `json:"session"`
	Seq          uint64        `json:"seq"`
	Time         time.Time     `json:"time"`
	Label        string        `json:"label,omitempty"`
	Recognized   bool          `json:"recognized"`
	LimitReached bool          `json:"limit_reached"`
	Joints       []JointRecord `json:"joints"`
	DurationMS   float64       `json:"duration_ms"`
	Dropped      uint64        `json:"dropped_windows,omitempty"`

	// Error and ErrorKind ("sensor", "model", "actuator") are set for cycles
	// that were aborted.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// FillJoints sets Joints from the arm state, merging in the moves of a report.
func (r *CycleRecord) FillJoints(state arm.ArmState, moves []arm.JointMove) {
	r.Joints = r.Joints[:0]
	for _, j := range state.Joints() {
		jr := JointRecord{Joint: j.ID, Angle: j.Angle}
		for _, m := range moves {
			if m.Joint == j.ID {
				jr.Moved = m.Moved
				jr.Delta = m.Delta
				jr.AtLimit = m.AtLimit
			}
		}
		r.Joints = append(r.Joints, jr)
	}
}

// Sink receives one record per cycle. Sinks must not block the loop for long;
// a sink error is logged and never aborts a cycle.
type Sink interface {
	Publish(ctx context.Context, rec CycleRecord) error
}

// Multi fans a record out to several sinks.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, rec CycleRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Publish(context.Context, CycleRecord) error { return nil }
