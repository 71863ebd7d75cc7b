// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acceleration implements fixed-point relaxation operators that
// operate on the concatenated residual vector of exchanged coupling data
// and produce the next input estimate.
package acceleration

import (
	"github.com/huangq1234553/precice/cpldata"
)

// ControlView is passed into every acceleration call instead of a shared
// pointer back into the scheme: it carries the handful of scheme flags a
// multi-level acceleration needs to read or flip, without the
// acceleration owning any part of the scheme.
type ControlView struct {
	CoarseActive *bool
}

// Acceleration is the capability set CouplingSchemeBase drives. Concrete
// variants include Aitken and ConstantRelaxation; IQN-ILS/IQN-MVJ are
// documented extension points, not implemented by this core.
type Acceleration interface {
	// Initialize reserves memory and seeds history columns for the data
	// IDs this acceleration operates on.
	Initialize(sendData cpldata.Map) error

	// PerformAcceleration relaxes every data ID's Values in place using
	// the acceleration's current state, and advances that state by one
	// iteration.
	PerformAcceleration(sendData cpldata.Map, ctrl ControlView) error

	// IterationsConverged resets per-time-step state so the next time
	// step starts from a clean slate.
	IterationsConverged(sendData cpldata.Map)

	// DataIDs returns the data IDs this acceleration concatenates into
	// its residual. PerformAcceleration relaxes every send data ID, not
	// only these.
	DataIDs() []int

	// DesignSpecification returns, per data ID, the offset subtracted
	// from residuals before a convergence measure computes its norm.
	DesignSpecification(sendData cpldata.Map) map[int][]float64

	// SetDesignSpecification installs a user-supplied design
	// specification. Aitken refuses any non-zero q (ErrUnsupported).
	SetDesignSpecification(q []float64) error
}

// concatValues (and concatOld) gather the Values (or OldValues column 0) of every data ID in
// ids, in ids order, into one slice.
func concatValues(sendData cpldata.Map, ids []int) []float64 {
	var out []float64
	for _, id := range ids {
		out = append(out, sendData[id].Values...)
	}
	return out
}

func concatOld(sendData cpldata.Map, ids []int) []float64 {
	var out []float64
	for _, id := range ids {
		out = append(out, sendData[id].OldColumn0()...)
	}
	return out
}
