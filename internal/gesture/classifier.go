// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Classifier maps a feature vector to a label. Implementations must be
// synchronous and free of side effects; the control loop treats them as
// opaque.
type Classifier interface {
	Classify(FeatureVector) (Label, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(FeatureVector) (Label, error)

func (f ClassifierFunc) Classify(fv FeatureVector) (Label, error) { return f(fv) }

var (
	// ErrNonFinite is returned for vectors containing NaN or ±Inf.
	ErrNonFinite = errors.New("feature vector has non-finite values")
	// ErrBudgetExceeded is returned when a classification overruns its time budget.
	ErrBudgetExceeded = errors.New("classification exceeded its time budget")
	// ErrClassifierBusy is returned while an overrun classification is still running.
	ErrClassifierBusy = errors.New("previous classification still running")
)

// ModelError is a classifier contract violation. It aborts the current cycle;
// the arm does not move.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// CheckVector rejects vectors no model could have been trained on.
func CheckVector(fv FeatureVector) error {
	for _, v := range fv {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	return nil
}

type budgeted struct {
	inner  Classifier
	budget time.Duration
	// busy holds a token while the inner classifier runs, so at most one
	// call is in flight even after its caller gave up on it.
	busy chan struct{}
}

type classifyResult struct {
	label Label
	err   error
}

// WithBudget bounds how long a classification may take. A late answer is
// discarded and reported as a ModelError wrapping ErrBudgetExceeded, so a slow
// model costs one cycle instead of stalling the sampling cadence. The overrun
// call keeps running in the background; until it returns, further calls fail
// at once with a ModelError wrapping ErrClassifierBusy instead of starting
// another one. A zero or negative budget returns c unchanged.
func WithBudget(c Classifier, budget time.Duration) Classifier {
	if budget <= 0 {
		return c
	}
	return &budgeted{inner: c, budget: budget, busy: make(chan struct{}, 1)}
}

func (b *budgeted) Classify(fv FeatureVector) (Label, error) {
	select {
	case b.busy <- struct{}{}:
	default:
		return Unrecognized, &ModelError{Model: "budget", Err: ErrClassifierBusy}
	}

	done := make(chan classifyResult, 1)
	go func() {
		defer func() { <-b.busy }()
		l, err := b.inner.Classify(fv)
		done <- classifyResult{l, err}
	}()

	t := time.NewTimer(b.budget)
	defer t.Stop()
	select {
	case r := <-done:
		return r.label, r.err
	case <-t.C:
		return Unrecognized, &ModelError{Model: "budget", Err: fmt.Errorf("%w (%s)", ErrBudgetExceeded, b.budget)}
	}
}
