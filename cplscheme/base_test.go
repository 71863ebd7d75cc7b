// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cplscheme

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/cpldata"
)

func testConfig() Config {
	return Config{
		TimestepLength:     1.0,
		ValidDigits:        8,
		FirstParticipant:   "first",
		SecondParticipant:  "second",
		LocalParticipant:   "second",
		CouplingMode:       Implicit,
		MaxIterations:      10,
		ExtrapolationOrder: 1,
	}
}

// TestExtrapolateDataRotatesBeforePredicting guards against regressing the
// ordering bug where extrapolateData computed the order-1 prediction from
// stale history and then overwrote OldValues column 0 with the prediction
// instead of the step's actual converged value.
func TestExtrapolateDataRotatesBeforePredicting(tst *testing.T) {
	chk.PrintTitle("cplscheme01. extrapolateData rotates history with the converged value before predicting")

	d := cpldata.NewData(0, 1, 1)
	d.EnsureHistory(2)
	// Two prior converged steps: the one before last was 1, the last was 3.
	d.OldValues[0][0] = 3
	d.OldValues[0][1] = 1
	// This step's solver converged to 7; extrapolateData must rotate this
	// value into column 0 before predicting the next step's input.
	d.Values[0] = 7

	base, err := newBase(testConfig(), nil, nil, cpldata.Map{0: d}, cpldata.Map{}, nil)
	if err != nil {
		tst.Fatalf("newBase: %v", err)
	}

	base.extrapolateData(cpldata.Map{0: d})

	chk.Vector(tst, "oldValues.col(0) after rotation", 1e-15, d.OldColumn0(), []float64{7})
	chk.Vector(tst, "oldValues.col(1) after rotation", 1e-15, []float64{d.OldValues[0][1]}, []float64{3})
	// Order-1 extrapolation from the freshly rotated history: 2*7 - 3 = 11.
	chk.Vector(tst, "predicted next-step input", 1e-15, d.Values, []float64{11})
}
