// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import "strings"

// Label is a classifier output.
type Label string

const (
	Up    Label = "up"
	Down  Label = "down"
	Left  Label = "left"
	Right Label = "right"

	// Unrecognized is the "don't know" answer. It never moves the arm.
	Unrecognized Label = "unrecognized"
)

// Labels is the vocabulary the arm has movements for.
var Labels = []Label{Up, Down, Left, Right}

// ParseLabel normalizes a model's raw class name. Anything outside the
// vocabulary becomes Unrecognized.
func ParseLabel(s string) Label {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if l.Known() {
		return l
	}
	return Unrecognized
}

// Known reports whether l is one of Labels.
func (l Label) Known() bool {
	switch l {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

func (l Label) String() string { return string(l) }
