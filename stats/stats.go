// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats accumulates scalar distance/residual measurements and
// reports summary statistics over them, grounded on
// original_source/src/utils/Statistics.hpp's DistanceAccumulator.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DistanceAccumulator collects a running sample of scalar values (e.g.
// per-iteration convergence-measure residual norms) and reports min,
// max, mean, variance and count on demand, the way SerialCouplingScheme
// records "newConvergenceMeasurements" for reporting.
type DistanceAccumulator struct {
	values []float64
	min    float64
	max    float64
}

// NewDistanceAccumulator returns an empty accumulator.
func NewDistanceAccumulator() *DistanceAccumulator {
	return &DistanceAccumulator{min: math.Inf(1), max: math.Inf(-1)}
}

// Add accumulates one value.
func (a *DistanceAccumulator) Add(value float64) {
	a.values = append(a.values, value)
	if value < a.min {
		a.min = value
	}
	if value > a.max {
		a.max = value
	}
}

// Min returns the minimum of all accumulated values.
func (a *DistanceAccumulator) Min() float64 { return a.min }

// Max returns the maximum of all accumulated values.
func (a *DistanceAccumulator) Max() float64 { return a.max }

// Count returns how many values have been accumulated.
func (a *DistanceAccumulator) Count() int { return len(a.values) }

// Mean returns the mean of all accumulated values.
func (a *DistanceAccumulator) Mean() float64 {
	return stat.Mean(a.values, nil)
}

// Variance returns the sample variance of all accumulated values.
func (a *DistanceAccumulator) Variance() float64 {
	if len(a.values) < 2 {
		return 0
	}
	_, variance := stat.MeanVariance(a.values, nil)
	return variance
}

// String renders the accumulator the way DistanceAccumulator's
// operator<< does, for log lines.
func (a *DistanceAccumulator) String() string {
	return fmt.Sprintf("min:%v max:%v avg:%v var:%v cnt:%d", a.Min(), a.Max(), a.Mean(), a.Variance(), a.Count())
}
