// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// CentroidModel is a nearest-centroid classifier over standardized features.
// It is the bundled model; anything else can be plugged in through Classifier.
//
//	name: centroid-v1
//	max_distance: 4.0
//	offset: [12 floats]   # per-feature mean, optional
//	scale:  [12 floats]   # per-feature std, optional
//	classes:
//	  - label: up
//	    centroid: [12 floats]
type CentroidModel struct {
	Name        string          `yaml:"name"`
	MaxDistance float64         `yaml:"max_distance"`
	Offset      []float64       `yaml:"offset"`
	Scale       []float64       `yaml:"scale"`
	Classes     []CentroidClass `yaml:"classes"`
}

// CentroidClass is one labelled centroid in standardized feature space.
type CentroidClass struct {
	Label    string    `yaml:"label"`
	Centroid []float64 `yaml:"centroid"`
}

// LoadCentroidModel reads and validates a YAML model file.
func LoadCentroidModel(path string) (*CentroidModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelError{Model: path, Err: err}
	}

	var m CentroidModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ModelError{Model: path, Err: fmt.Errorf("parse: %w", err)}
	}
	if m.Name == "" {
		m.Name = path
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every vector in the model has the agreed length.
func (m *CentroidModel) Validate() error {
	bad := func(format string, args ...any) error {
		return &ModelError{Model: m.Name, Err: fmt.Errorf(format, args...)}
	}

	if len(m.Classes) == 0 {
		return bad("no classes")
	}
	if m.Offset != nil && len(m.Offset) != FeatureLen {
		return bad("offset has %d values, want %d", len(m.Offset), FeatureLen)
	}
	if m.Scale != nil {
		if len(m.Scale) != FeatureLen {
			return bad("scale has %d values, want %d", len(m.Scale), FeatureLen)
		}
		for i, s := range m.Scale {
			if s <= 0 {
				return bad("scale[%d] = %v must be positive", i, s)
			}
		}
	}
	for _, c := range m.Classes {
		if len(c.Centroid) != FeatureLen {
			return bad("class %q centroid has %d values, want %d", c.Label, len(c.Centroid), FeatureLen)
		}
	}
	if m.MaxDistance < 0 {
		return bad("max_distance %v is negative", m.MaxDistance)
	}
	return nil
}

// Classify returns the label of the closest centroid, or Unrecognized when
// even the closest one is farther than MaxDistance (if set).
func (m *CentroidModel) Classify(fv FeatureVector) (Label, error) {
	if err := CheckVector(fv); err != nil {
		return Unrecognized, &ModelError{Model: m.Name, Err: err}
	}

	x := make([]float64, FeatureLen)
	copy(x, fv[:])
	if m.Offset != nil {
		floats.Sub(x, m.Offset)
	}
	if m.Scale != nil {
		floats.Div(x, m.Scale)
	}

	best, bestDist := -1, math.Inf(1)
	for i, c := range m.Classes {
		d := floats.Distance(x, c.Centroid, 2)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	if m.MaxDistance > 0 && bestDist > m.MaxDistance {
		return Unrecognized, nil
	}
	return ParseLabel(m.Classes[best].Label), nil
}
