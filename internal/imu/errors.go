// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// SensorError is a failed or malformed read. It aborts the current window only.
type SensorError struct {
	Source string
	Err    error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("sensor %s: %v", e.Source, e.Err)
}

func (e *SensorError) Unwrap() error { return e.Err }
