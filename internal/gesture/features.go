// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/gesture_arm/internal/imu"
)

// FeatureLen is the classifier input length: mean and std for each axis.
const FeatureLen = 2 * imu.Axes

// FeatureVector is laid out as [mean_ax, std_ax, mean_ay, std_ay, ..., mean_gz, std_gz].
// The order is the one the model was trained with and must not change.
type FeatureVector [FeatureLen]float64

// Mean returns the mean for the given axis index.
func (f FeatureVector) Mean(axis int) float64 { return f[2*axis] }

// Std returns the standard deviation for the given axis index.
func (f FeatureVector) Std(axis int) float64 { return f[2*axis+1] }

// Extract reduces a window to its feature vector.
//
// The standard deviation is the population one (divide by N). Models are
// trained on features computed that way, and the sample (N-1) form shifts the
// feature scale enough to hurt accuracy. A single-sample window has std 0.
// An empty window yields the zero vector.
func Extract(w Window) FeatureVector {
	var fv FeatureVector
	if len(w) == 0 {
		return fv
	}

	axis := make([]float64, len(w))
	for a := 0; a < imu.Axes; a++ {
		for i, s := range w {
			axis[i] = s[a]
		}
		mean, std := stat.PopMeanStdDev(axis, nil)
		fv[2*a] = mean
		fv[2*a+1] = std
	}
	return fv
}
