// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arm

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/gesture_arm/internal/gesture"
)

// JointMove is what one gesture did to one joint.
type JointMove struct {
	Joint   JointID `json:"joint"`
	From    int     `json:"from"`
	To      int     `json:"to"`
	Delta   int     `json:"delta"`
	Moved   bool    `json:"moved"`
	AtLimit bool    `json:"at_limit"` // already at the limit the gesture pushes toward
}

// MovementReport is the outcome of ApplyGesture.
type MovementReport struct {
	Label      gesture.Label `json:"label"`
	Recognized bool          `json:"recognized"`
	Moves      []JointMove   `json:"moves,omitempty"`
	// LimitReached is set when every joint the gesture drives was already at
	// its limit, so nothing moved. It distinguishes "already there" from "moved".
	LimitReached bool     `json:"limit_reached"`
	State        ArmState `json:"state"`
}

// Moved reports whether any joint changed angle.
func (r MovementReport) Moved() bool {
	for _, m := range r.Moves {
		if m.Moved {
			return true
		}
	}
	return false
}

// Move returns the entry for a joint, if the gesture targeted it.
func (r MovementReport) Move(id JointID) (JointMove, bool) {
	for _, m := range r.Moves {
		if m.Joint == id {
			return m, true
		}
	}
	return JointMove{}, false
}

// Summary is the one-line console description of the report.
func (r MovementReport) Summary() string {
	if !r.Recognized {
		return "unknown gesture; no movement"
	}
	parts := make([]string, 0, len(r.Moves))
	for _, m := range r.Moves {
		switch {
		case m.Moved:
			parts = append(parts, fmt.Sprintf("%s moved %s to %d°", m.Joint, strings.ToUpper(string(r.Label)), m.To))
		case m.AtLimit:
			parts = append(parts, fmt.Sprintf("%s already at %s limit", m.Joint, strings.ToUpper(string(r.Label))))
		}
	}
	return strings.Join(parts, ", ")
}
