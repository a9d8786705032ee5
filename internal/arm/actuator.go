// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arm

import (
	"errors"
	"fmt"
)

// Actuator drives one joint to an absolute angle. The controller only ever
// asks for angles inside the joint's range; implementations reject anything
// else instead of clamping it.
type Actuator interface {
	SetAngle(joint JointID, degrees int) error
}

var (
	// ErrOutOfRange is returned by actuators for a request outside the joint's range.
	ErrOutOfRange = errors.New("angle outside joint range")
	// ErrDesynchronized is returned while the recorded state may not match the hardware.
	ErrDesynchronized = errors.New("arm state not synchronized with hardware")
)

// ActuatorError means a hardware write failed and the physical arm may no
// longer match the recorded ArmState.
type ActuatorError struct {
	Joint JointID
	Angle int
	Err   error
}

func (e *ActuatorError) Error() string {
	if e.Joint == "" {
		return fmt.Sprintf("actuator: %v", e.Err)
	}
	return fmt.Sprintf("actuator %s -> %d°: %v", e.Joint, e.Angle, e.Err)
}

func (e *ActuatorError) Unwrap() error { return e.Err }
