// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/imu"
)

// Window is a complete, time-ordered batch of samples. Collectors never hand
// out a partial one.
type Window []imu.Sample

// WindowCollector reads a fixed number of samples at a fixed interval.
type WindowCollector struct {
	src      imu.Source
	size     int
	interval time.Duration

	// sleep waits between reads; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindowCollector validates size and interval up front so a bad setting
// is a ConfigError at startup instead of a runtime surprise.
func NewWindowCollector(src imu.Source, size int, interval time.Duration) (*WindowCollector, error) {
	if size < 1 {
		return nil, &config.ConfigError{Key: "WINDOW_SIZE", Reason: fmt.Sprintf("must be >= 1, got %d", size)}
	}
	if interval <= 0 {
		return nil, &config.ConfigError{Key: "SAMPLE_INTERVAL_MS", Reason: fmt.Sprintf("must be positive, got %s", interval)}
	}
	return &WindowCollector{
		src:      src,
		size:     size,
		interval: interval,
		sleep:    sleepCtx,
	}, nil
}

// Size returns the number of samples per window.
func (c *WindowCollector) Size() int { return c.size }

// Interval returns the pause between consecutive reads.
func (c *WindowCollector) Interval() time.Duration { return c.interval }

// Collect issues exactly Size reads, pausing Interval between them but not
// after the last one. A read failure or cancellation discards everything read
// so far; the next call starts again from the first sample.
func (c *WindowCollector) Collect(ctx context.Context) (Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := make(Window, 0, c.size)
	for i := 0; i < c.size; i++ {
		if i > 0 {
			if err := c.sleep(ctx, c.interval); err != nil {
				return nil, err
			}
		}

		s, err := c.src.ReadSample()
		if err != nil {
			var se *imu.SensorError
			if !errors.As(err, &se) {
				err = &imu.SensorError{Source: "unknown", Err: err}
			}
			return nil, fmt.Errorf("sample %d/%d: %w", i+1, c.size, err)
		}
		w = append(w, s)
	}
	return w, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
