// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	assert.Equal(t, Up, ParseLabel("up"))
	assert.Equal(t, Left, ParseLabel("  LEFT "))
	assert.Equal(t, Unrecognized, ParseLabel("wave"))
	assert.Equal(t, Unrecognized, ParseLabel(""))
	assert.False(t, Unrecognized.Known())
	assert.Len(t, Labels, 4)
}

func axisVector(i int, v float64) []float64 {
	c := make([]float64, FeatureLen)
	c[i] = v
	return c
}

func testModel() *CentroidModel {
	return &CentroidModel{
		Name:        "test",
		MaxDistance: 2,
		Classes: []CentroidClass{
			{Label: "up", Centroid: axisVector(0, 5)},
			{Label: "down", Centroid: axisVector(0, -5)},
			{Label: "left", Centroid: axisVector(2, 5)},
			{Label: "shake", Centroid: axisVector(4, 5)},
		},
	}
}

func TestCentroidClassify(t *testing.T) {
	m := testModel()
	require.NoError(t, m.Validate())

	var fv FeatureVector
	fv[0] = 4.5
	l, err := m.Classify(fv)
	require.NoError(t, err)
	assert.Equal(t, Up, l)

	fv = FeatureVector{}
	fv[2] = 5.5
	l, err = m.Classify(fv)
	require.NoError(t, err)
	assert.Equal(t, Left, l)

	t.Run("unknown class name maps to unrecognized", func(t *testing.T) {
		var fv FeatureVector
		fv[4] = 5
		l, err := m.Classify(fv)
		require.NoError(t, err)
		assert.Equal(t, Unrecognized, l)
	})

	t.Run("too far from every centroid", func(t *testing.T) {
		var fv FeatureVector
		fv[11] = 50
		l, err := m.Classify(fv)
		require.NoError(t, err)
		assert.Equal(t, Unrecognized, l)
	})

	t.Run("standardization", func(t *testing.T) {
		sm := testModel()
		sm.Offset = make([]float64, FeatureLen)
		sm.Scale = make([]float64, FeatureLen)
		for i := range sm.Scale {
			sm.Offset[i] = 1
			sm.Scale[i] = 10
		}
		// (−49 − 1) / 10 = −5 on feature 0, 0 elsewhere
		var fv FeatureVector
		for i := range fv {
			fv[i] = 1
		}
		fv[0] = -49
		l, err := sm.Classify(fv)
		require.NoError(t, err)
		assert.Equal(t, Down, l)
	})

	t.Run("non-finite input is a model error", func(t *testing.T) {
		var fv FeatureVector
		fv[3] = math.NaN()
		l, err := m.Classify(fv)
		var me *ModelError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrNonFinite)
		assert.Equal(t, Unrecognized, l)
	})
}

func TestCentroidValidate(t *testing.T) {
	cases := map[string]func(m *CentroidModel){
		"no classes":     func(m *CentroidModel) { m.Classes = nil },
		"short centroid": func(m *CentroidModel) { m.Classes[0].Centroid = []float64{1, 2} },
		"short offset":   func(m *CentroidModel) { m.Offset = []float64{0} },
		"zero scale": func(m *CentroidModel) {
			m.Scale = make([]float64, FeatureLen)
		},
		"negative distance": func(m *CentroidModel) { m.MaxDistance = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := testModel()
			mutate(m)
			var me *ModelError
			assert.ErrorAs(t, m.Validate(), &me)
		})
	}
}

func TestLoadCentroidModel(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
name: tiny
max_distance: 3
classes:
  - label: right
    centroid: [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
`), 0o644))
	m, err := LoadCentroidModel(good)
	require.NoError(t, err)
	assert.Equal(t, "tiny", m.Name)
	l, err := m.Classify(FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, Right, l)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("classes:\n  - label: up\n    centroid: [1, 2, 3]\n"), 0o644))
	_, err = LoadCentroidModel(bad)
	var me *ModelError
	assert.ErrorAs(t, err, &me)

	_, err = LoadCentroidModel(filepath.Join(dir, "missing.yaml"))
	assert.ErrorAs(t, err, &me)
}

func TestBundledModelLoads(t *testing.T) {
	m, err := LoadCentroidModel(filepath.Join("..", "..", "model.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "centroid-v1", m.Name)

	// A device lying still classifies as nothing.
	var rest FeatureVector
	rest[4] = 9.8
	l, err := m.Classify(rest)
	require.NoError(t, err)
	assert.Equal(t, Unrecognized, l)
}

func TestWithBudget(t *testing.T) {
	fast := ClassifierFunc(func(FeatureVector) (Label, error) { return Left, nil })

	t.Run("no budget returns the classifier itself", func(t *testing.T) {
		c := WithBudget(fast, 0)
		l, err := c.Classify(FeatureVector{})
		require.NoError(t, err)
		assert.Equal(t, Left, l)
	})

	t.Run("within budget", func(t *testing.T) {
		l, err := WithBudget(fast, time.Second).Classify(FeatureVector{})
		require.NoError(t, err)
		assert.Equal(t, Left, l)
	})

	t.Run("over budget", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		slow := ClassifierFunc(func(FeatureVector) (Label, error) {
			<-release
			return Up, nil
		})

		l, err := WithBudget(slow, 10*time.Millisecond).Classify(FeatureVector{})
		var me *ModelError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Equal(t, Unrecognized, l)
	})

	t.Run("overrun call blocks the next one until it returns", func(t *testing.T) {
		release := make(chan struct{})
		var calls atomic.Int32
		slow := ClassifierFunc(func(FeatureVector) (Label, error) {
			if calls.Add(1) == 1 {
				<-release
			}
			return Down, nil
		})
		c := WithBudget(slow, 10*time.Millisecond)

		_, err := c.Classify(FeatureVector{})
		require.ErrorIs(t, err, ErrBudgetExceeded)

		l, err := c.Classify(FeatureVector{})
		var me *ModelError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrClassifierBusy)
		assert.Equal(t, Unrecognized, l)
		assert.Equal(t, int32(1), calls.Load(), "busy call must not reach the model")

		close(release)
		require.Eventually(t, func() bool {
			l, err := c.Classify(FeatureVector{})
			return err == nil && l == Down
		}, time.Second, 5*time.Millisecond)
	})
}
