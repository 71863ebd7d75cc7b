// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acceleration

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/collective"
	"github.com/huangq1234553/precice/cpldata"
)

// TestAitkenStagnation is scenario 2 from spec.md §8: a solver that
// always returns oldValues+2 produces a zero Δr on the second
// iteration, which Aitken must report as stagnation rather than divide
// by zero.
func TestAitkenStagnation(tst *testing.T) {
	chk.PrintTitle("aitken01. stagnation is detected, not divided through")

	bus := collective.NewSingle()
	a, err := NewAitken(bus, 0.5, []int{0})
	if err != nil {
		tst.Fatalf("NewAitken: %v", err)
	}

	data := cpldata.Map{0: cpldata.NewData(0, 1, 1)}
	if err := a.Initialize(data); err != nil {
		tst.Fatalf("Initialize: %v", err)
	}

	// iteration 1: solver returns oldValues + 2
	data[0].Values[0] = data[0].OldColumn0()[0] + 2
	if err := a.PerformAcceleration(data, ControlView{}); err != nil {
		tst.Fatalf("iteration 1 should not fail: %v", err)
	}
	if math.Abs(a.aitkenFactor-0.5) > 1e-12 {
		tst.Fatalf("expected omega = initialRelaxation = 0.5 on the first iteration, got %v", a.aitkenFactor)
	}
	// relaxed value = omega*rawFromSolver + (1-omega)*oldValues.col(0) = 0.5*2 + 0.5*0 = 1
	chk.Vector(tst, "relaxed value after iteration 1", 1e-12, data[0].Values, []float64{1})

	// the scheme stores the relaxed value as the next iteration's old value
	data[0].StoreCurrentAsOld()

	// iteration 2: solver again returns oldValues + 2 => same residual as
	// iteration 1 => Δr = 0 => stagnation.
	data[0].Values[0] = data[0].OldColumn0()[0] + 2
	err = a.PerformAcceleration(data, ControlView{})
	if err != ErrStagnation {
		tst.Fatalf("expected ErrStagnation, got %v", err)
	}
}

// TestAitkenGeometricConvergence is scenario 3 from spec.md §8: a solver
// that returns 0.9*oldValues from a non-zero start should decay
// geometrically and reach an absolute residual below the test's limit
// within a bounded number of iterations, with oldValues.col(0) == values
// afterward.
func TestAitkenGeometricConvergence(tst *testing.T) {
	chk.PrintTitle("aitken02. geometric decay converges within a bounded iteration count")

	bus := collective.NewSingle()
	a, err := NewAitken(bus, 0.5, []int{0})
	if err != nil {
		tst.Fatalf("NewAitken: %v", err)
	}

	data := cpldata.Map{0: cpldata.NewData(0, 1, 1)}
	data[0].Values[0] = 10.0
	if err := a.Initialize(data); err != nil {
		tst.Fatalf("Initialize: %v", err)
	}
	data[0].StoreCurrentAsOld() // seed a non-zero starting point

	const limit = 1e-6
	converged := false
	for i := 0; i < 100; i++ {
		data[0].Values[0] = 0.9 * data[0].OldColumn0()[0]
		if err := a.PerformAcceleration(data, ControlView{}); err != nil {
			tst.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		residual := data[0].Values[0] - data[0].OldColumn0()[0]
		data[0].StoreCurrentAsOld()
		if math.Abs(residual) <= limit {
			converged = true
			break
		}
	}
	if !converged {
		tst.Fatalf("expected geometric decay to converge within 100 iterations")
	}
	chk.Vector(tst, "oldValues.col(0) equals values after convergence", 1e-12, data[0].Values, data[0].OldColumn0())
}

func TestAitkenRejectsOutOfRangeRelaxation(tst *testing.T) {
	chk.PrintTitle("aitken03. constructor rejects relaxation factors outside (0,1]")

	bus := collective.NewSingle()
	if _, err := NewAitken(bus, 0, []int{0}); err == nil {
		tst.Fatalf("expected an error for initialRelaxation = 0")
	}
	if _, err := NewAitken(bus, 1.5, []int{0}); err == nil {
		tst.Fatalf("expected an error for initialRelaxation > 1")
	}
}
