// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package convergence implements norm-based convergence predicates over
// residual/value pairs, with an optional design-specification offset.
package convergence

import "github.com/cpmech/gosl/la"

// Measure is the contract every convergence measure implements. The
// designSpec offset is subtracted from the residual before the norm is
// computed so a user can drive the residual toward a configured non-zero
// target instead of zero.
type Measure interface {
	// Measure reports whether old -> new has converged.
	Measure(old, neu, designSpec []float64) bool
	// NormResidual returns the norm of the last residual evaluated.
	NormResidual() float64
}

func residual(old, neu, designSpec []float64) []float64 {
	r := make([]float64, len(neu))
	for i := range r {
		r[i] = neu[i] - old[i]
		if designSpec != nil {
			r[i] -= designSpec[i]
		}
	}
	return r
}

// AbsoluteMeasure converges when the residual's norm falls below a fixed
// threshold, computed with la.VecNorm.
type AbsoluteMeasure struct {
	Limit    float64
	lastNorm float64
}

// NewAbsoluteMeasure returns a Measure converging once ||r|| <= limit.
func NewAbsoluteMeasure(limit float64) *AbsoluteMeasure {
	return &AbsoluteMeasure{Limit: limit}
}

func (m *AbsoluteMeasure) Measure(old, neu, designSpec []float64) bool {
	m.lastNorm = la.VecNorm(residual(old, neu, designSpec))
	return m.lastNorm <= m.Limit
}

func (m *AbsoluteMeasure) NormResidual() float64 { return m.lastNorm }

// RelativeMeasure converges when the residual's norm falls below a
// fraction of the norm of the new value.
type RelativeMeasure struct {
	Limit    float64
	lastNorm float64
}

// NewRelativeMeasure returns a Measure converging once
// ||r|| <= limit * ||new||.
func NewRelativeMeasure(limit float64) *RelativeMeasure {
	return &RelativeMeasure{Limit: limit}
}

func (m *RelativeMeasure) Measure(old, neu, designSpec []float64) bool {
	r := residual(old, neu, designSpec)
	m.lastNorm = la.VecNorm(r)
	denom := la.VecNorm(neu)
	if denom == 0 {
		return m.lastNorm == 0
	}
	return m.lastNorm/denom <= m.Limit
}

func (m *RelativeMeasure) NormResidual() float64 { return m.lastNorm }

// Set aggregates a list of measures by conjunction: convergence requires
// every configured measure to report convergence.
type Set []Measure

// Evaluate runs every measure in the set and returns true only if all of
// them converge. It always evaluates every measure (not short-circuiting)
// so NormResidual() stays current on every measure for reporting.
func (s Set) Evaluate(old, neu, designSpec []float64) bool {
	converged := true
	for _, m := range s {
		if !m.Measure(old, neu, designSpec) {
			converged = false
		}
	}
	return converged
}
