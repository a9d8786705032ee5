// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arm

// JointID names one actuated degree of freedom.
type JointID string

const (
	// Near and Far are the coupled vertical joints (shoulder and elbow side).
	Near JointID = "near"
	Far  JointID = "far"
	// Base rotates the whole arm left and right.
	Base JointID = "base"
)

// JointIDs lists every joint in reporting order.
var JointIDs = []JointID{Near, Far, Base}

// JointState is one joint's current angle and its mechanical range, in degrees.
// Min <= Angle <= Max holds after every mutation.
type JointState struct {
	ID    JointID `json:"joint"`
	Angle int     `json:"angle"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
}

// Clamp limits a to the joint's range.
func (j JointState) Clamp(a int) int {
	if a < j.Min {
		return j.Min
	}
	if a > j.Max {
		return j.Max
	}
	return a
}

// InRange reports whether a is inside [Min, Max].
func (j JointState) InRange(a int) bool {
	return a >= j.Min && a <= j.Max
}

// ArmState is a snapshot of every joint.
type ArmState struct {
	Near JointState `json:"near"`
	Far  JointState `json:"far"`
	Base JointState `json:"base"`
}

// Joints returns the joints in JointIDs order.
func (s ArmState) Joints() []JointState {
	return []JointState{s.Near, s.Far, s.Base}
}

// Joint returns the state of the named joint.
func (s ArmState) Joint(id JointID) (JointState, bool) {
	switch id {
	case Near:
		return s.Near, true
	case Far:
		return s.Far, true
	case Base:
		return s.Base, true
	}
	return JointState{}, false
}

func (s *ArmState) joint(id JointID) *JointState {
	switch id {
	case Near:
		return &s.Near
	case Far:
		return &s.Far
	case Base:
		return &s.Base
	}
	return nil
}
