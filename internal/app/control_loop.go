// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gesture_arm/internal/arm"
	"github.com/relabs-tech/gesture_arm/internal/gesture"
	"github.com/relabs-tech/gesture_arm/internal/imu"
	"github.com/relabs-tech/gesture_arm/internal/telemetry"
)

// ControlLoop runs collect -> extract -> classify -> actuate until cancelled.
//
// The controller is only ever touched by the goroutine processing windows,
// in both the sequential and the pipelined mode.
type ControlLoop struct {
	collector  *gesture.WindowCollector
	classifier gesture.Classifier
	controller *arm.Controller
	sink       telemetry.Sink

	session string
	seq     atomic.Uint64
	dropped atomic.Uint64

	now func() time.Time
}

// NewControlLoop wires the stages together. A nil sink discards records.
func NewControlLoop(collector *gesture.WindowCollector, classifier gesture.Classifier, controller *arm.Controller, sink telemetry.Sink) *ControlLoop {
	if sink == nil {
		sink = telemetry.Discard{}
	}
	return &ControlLoop{
		collector:  collector,
		classifier: classifier,
		controller: controller,
		sink:       sink,
		session:    uuid.NewString(),
		now:        time.Now,
	}
}

// Session is the id stamped on every record of this run.
func (l *ControlLoop) Session() string { return l.session }

// Dropped is the number of windows discarded by the pipelined sampler.
func (l *ControlLoop) Dropped() uint64 { return l.dropped.Load() }

// Start runs sequentially when queueDepth is 0, pipelined otherwise.
func (l *ControlLoop) Start(ctx context.Context, queueDepth int) error {
	if queueDepth <= 0 {
		return l.Run(ctx)
	}
	return l.RunPipelined(ctx, queueDepth)
}

// Run executes cycles one after another on the calling goroutine. It returns
// nil once ctx is cancelled, or the fatal error that stopped it.
func (l *ControlLoop) Run(ctx context.Context) error {
	log.Printf("control: session %s started (sequential)", l.session)
	for ctx.Err() == nil {
		_, err := l.RunCycle(ctx)
		if err := l.handle(ctx, err); err != nil {
			return err
		}
	}
	log.Printf("control: session %s stopped", l.session)
	return nil
}

// RunCycle performs one full cycle and publishes its record.
func (l *ControlLoop) RunCycle(ctx context.Context) (telemetry.CycleRecord, error) {
	start := l.now()
	w, err := l.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return telemetry.CycleRecord{}, ctx.Err()
		}
		state := l.controller.State()
		return l.fail(ctx, start, err, &state), err
	}
	return l.process(ctx, start, w)
}

// RunPipelined samples on one goroutine and processes on another, with a
// bounded queue between them. When the queue is full the oldest window is
// dropped so the sampler keeps its cadence.
func (l *ControlLoop) RunPipelined(ctx context.Context, queueDepth int) error {
	if queueDepth < 1 {
		queueDepth = 1
	}
	log.Printf("control: session %s started (pipelined, queue=%d)", l.session, queueDepth)

	type queued struct {
		w     gesture.Window
		start time.Time
	}
	queue := make(chan queued, queueDepth)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for gctx.Err() == nil {
			start := l.now()
			w, err := l.collector.Collect(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				// The arm belongs to the processing goroutine; report no joints.
				l.fail(gctx, start, err, nil)
				log.Printf("control: cycle aborted: %v", err)
				continue
			}
			enqueueDropOldest(queue, queued{w, start}, func() {
				n := l.dropped.Add(1)
				log.Printf("control: processing behind, dropped oldest window (%d total)", n)
			})
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case q, ok := <-queue:
				if !ok || gctx.Err() != nil {
					return nil
				}
				_, err := l.process(gctx, q.start, q.w)
				if err := l.handle(gctx, err); err != nil {
					return err
				}
			}
		}
	})

	err := g.Wait()
	log.Printf("control: session %s stopped (dropped %d windows)", l.session, l.Dropped())
	return err
}

// enqueueDropOldest never blocks: if q is full it discards the oldest entry.
// There is a single producer, so after one discard the send succeeds unless
// the consumer raced us, in which case the send succeeds anyway.
func enqueueDropOldest[T any](q chan T, v T, onDrop func()) {
	for {
		select {
		case q <- v:
			return
		default:
		}
		select {
		case <-q:
			onDrop()
		default:
		}
	}
}

// process runs the stages after collection for one complete window.
func (l *ControlLoop) process(ctx context.Context, start time.Time, w gesture.Window) (telemetry.CycleRecord, error) {
	fv := gesture.Extract(w)

	label, err := l.classifier.Classify(fv)
	if err != nil {
		var me *gesture.ModelError
		if !errors.As(err, &me) {
			err = &gesture.ModelError{Model: "classifier", Err: err}
		}
		state := l.controller.State()
		return l.fail(ctx, start, err, &state), err
	}

	report, err := l.controller.ApplyGesture(label)

	rec := l.newRecord(start)
	rec.Label = string(label)
	rec.Recognized = report.Recognized
	rec.LimitReached = report.LimitReached
	rec.FillJoints(report.State, report.Moves)
	if err != nil {
		rec.Error = err.Error()
		rec.ErrorKind = errorKind(err)
	}
	l.publish(ctx, rec)

	if err == nil {
		log.Printf("control: cycle %d: predicted gesture: %s | %s", rec.Seq, label, report.Summary())
	}
	return rec, err
}

// fail publishes the record of an aborted cycle. Nothing moved, so state
// (when the caller owns the arm) is reported as-is.
func (l *ControlLoop) fail(ctx context.Context, start time.Time, err error, state *arm.ArmState) telemetry.CycleRecord {
	rec := l.newRecord(start)
	rec.Error = err.Error()
	rec.ErrorKind = errorKind(err)
	if state != nil {
		rec.FillJoints(*state, nil)
	}
	l.publish(ctx, rec)
	return rec
}

func (l *ControlLoop) newRecord(start time.Time) telemetry.CycleRecord {
	return telemetry.CycleRecord{
		Session:    l.session,
		Seq:        l.seq.Add(1),
		Time:       start,
		DurationMS: float64(l.now().Sub(start).Microseconds()) / 1000,
		Dropped:    l.dropped.Load(),
	}
}

func (l *ControlLoop) publish(ctx context.Context, rec telemetry.CycleRecord) {
	// The last record of a cancelled run is still worth delivering.
	if err := l.sink.Publish(context.WithoutCancel(ctx), rec); err != nil {
		log.Printf("control: publish error: %v", err)
	}
}

// handle decides whether the loop survives a cycle error. Sensor and model
// failures cost one cycle. An actuator failure gets one resync attempt; if
// the hardware still does not take the recorded angles the loop stops.
func (l *ControlLoop) handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}

	var (
		se *imu.SensorError
		me *gesture.ModelError
		ae *arm.ActuatorError
	)
	switch {
	case errors.As(err, &se):
		log.Printf("control: sensor error, cycle skipped: %v", err)
		return nil
	case errors.As(err, &me):
		log.Printf("control: model error, arm not moved: %v", err)
		return nil
	case errors.As(err, &ae):
		log.Printf("control: actuator failure, arm position uncertain: %v", err)
		if rerr := l.controller.Resync(); rerr != nil {
			return fmt.Errorf("actuator resync failed, stopping: %w", rerr)
		}
		log.Printf("control: actuator resynchronized to recorded state")
		return nil
	default:
		return fmt.Errorf("control: unexpected error: %w", err)
	}
}

func errorKind(err error) string {
	var (
		se *imu.SensorError
		me *gesture.ModelError
		ae *arm.ActuatorError
	)
	switch {
	case errors.As(err, &se):
		return "sensor"
	case errors.As(err, &me):
		return "model"
	case errors.As(err, &ae):
		return "actuator"
	default:
		return "other"
	}
}
