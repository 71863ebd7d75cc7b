// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acceleration

import (
	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/cpldata"
)

// ConstantRelaxation applies a fixed relaxation factor every iteration,
// with no residual history: values <- omega*values + (1-omega)*oldValues.
// Listed alongside Aitken in the spec's fixed set of concrete
// Acceleration variants; useful as a baseline and for testing the
// Acceleration interface independently of Aitken's state machine.
type ConstantRelaxation struct {
	omega   float64
	dataIDs []int
}

// NewConstantRelaxation returns a ConstantRelaxation with the given
// relaxation factor, which must lie in (0,1].
func NewConstantRelaxation(omega float64, dataIDs []int) (*ConstantRelaxation, error) {
	if omega <= 0.0 || omega > 1.0 {
		return nil, chk.Err("acceleration: relaxation factor must be in (0,1], got %v", omega)
	}
	return &ConstantRelaxation{omega: omega, dataIDs: dataIDs}, nil
}

func (c *ConstantRelaxation) DataIDs() []int { return c.dataIDs }

func (c *ConstantRelaxation) Initialize(sendData cpldata.Map) error {
	for _, d := range sendData {
		if len(d.OldValues) == 0 {
			d.EnsureHistory(1)
		}
	}
	return nil
}

func (c *ConstantRelaxation) PerformAcceleration(sendData cpldata.Map, ctrl ControlView) error {
	// Relax every data ID in the send set, not only the accelerated
	// ones, matching Aitken's full-map relaxation in
	// AitkenAcceleration.cpp's performAcceleration.
	oneMinusOmega := 1.0 - c.omega
	for _, d := range sendData {
		old := d.OldColumn0()
		for i := range d.Values {
			d.Values[i] = c.omega*d.Values[i] + oneMinusOmega*old[i]
		}
	}
	return nil
}

func (c *ConstantRelaxation) IterationsConverged(sendData cpldata.Map) {}

func (c *ConstantRelaxation) DesignSpecification(sendData cpldata.Map) map[int][]float64 {
	out := make(map[int][]float64, len(c.dataIDs))
	for _, id := range c.dataIDs {
		out[id] = make([]float64, len(sendData[id].Values))
	}
	return out
}

func (c *ConstantRelaxation) SetDesignSpecification(q []float64) error {
	for _, v := range q {
		if v != 0 {
			return ErrUnsupported
		}
	}
	return nil
}
