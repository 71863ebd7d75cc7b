// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpldata holds the in-memory vector of interface values per data
// ID, plus the column-history of prior time-step values used for
// extrapolation and residual computation.
package cpldata

import "github.com/cpmech/gosl/chk"

// Data is the coupling-data vector for a single data ID on this rank.
type Data struct {
	ID         int
	MeshID     int // routes this data to M2N's per-mesh DistributedExchange
	Dim        int // value dimension per vertex (1 for scalar, 2/3 for vector)
	Values     []float64
	OldValues  [][]float64 // [n][k]; column 0 is the previous timestep's end value
	Initialize bool        // nonzero at t=0; must be exchanged during init handshake
}

// NewData allocates a Data vector of length n with no history columns yet.
func NewData(id, dim, n int) *Data {
	return &Data{ID: id, Dim: dim, Values: make([]float64, n)}
}

// Map is the set of coupling data a scheme sends or receives, keyed by ID.
type Map map[int]*Data

// CheckInvariant panics (a programming-error assertion, not a user error)
// if Values and OldValues disagree in length whenever OldValues has any
// columns, per the data-model invariant in the spec.
func (d *Data) CheckInvariant() {
	if len(d.OldValues) == 0 {
		return
	}
	if len(d.OldValues) != len(d.Values) {
		chk.Panic("cpldata: data %d: len(OldValues)=%d != len(Values)=%d", d.ID, len(d.OldValues), len(d.Values))
	}
}

// EnsureHistory grows OldValues to have at least cols columns, zero-filled,
// without disturbing existing columns. Mirrors the original's lazy
// "append column for old values if not done by coupling scheme yet".
func (d *Data) EnsureHistory(cols int) {
	n := len(d.Values)
	if len(d.OldValues) == 0 {
		d.OldValues = make([][]float64, n)
		for i := range d.OldValues {
			d.OldValues[i] = make([]float64, 0, cols)
		}
	}
	for i := range d.OldValues {
		for len(d.OldValues[i]) < cols {
			d.OldValues[i] = append(d.OldValues[i], 0)
		}
	}
}

// ShiftHistory pushes Values into column 0 after shifting older columns
// one slot to the right, used by extrapolation and by the second
// participant's initializeData() to seed the history with the initial
// value.
func (d *Data) ShiftHistory() {
	for i, row := range d.OldValues {
		for j := len(row) - 1; j > 0; j-- {
			row[j] = row[j-1]
		}
		if len(row) > 0 {
			row[0] = d.Values[i]
		}
	}
}

// StoreCurrentAsOld copies Values into column 0 of OldValues without
// shifting, used to retain the current solver output for the next
// iteration's residual computation when a coupling iteration does not
// converge.
func (d *Data) StoreCurrentAsOld() {
	for i, row := range d.OldValues {
		if len(row) > 0 {
			row[0] = d.Values[i]
		}
	}
}

// OldColumn0 returns column 0 of OldValues (the previous timestep's end
// value), or nil if no history has been allocated yet.
func (d *Data) OldColumn0() []float64 {
	if len(d.OldValues) == 0 {
		return nil
	}
	col := make([]float64, len(d.OldValues))
	for i, row := range d.OldValues {
		col[i] = row[0]
	}
	return col
}
