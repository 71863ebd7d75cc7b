// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acceleration

import (
	"errors"
	"math"

	"github.com/cpmech/gosl/chk"
	"gonum.org/v1/gonum/mat"

	"github.com/huangq1234553/precice/collective"
	"github.com/huangq1234553/precice/cpldata"
)

// ErrUnsupported is returned by Aitken.SetDesignSpecification for any
// non-zero q: the original source passes q through by mutable reference
// but Aitken never honors it.
var ErrUnsupported = errors.New("acceleration: design specification is not supported by Aitken")

// ErrStagnation is returned when the Aitken denominator (deltaR . deltaR)
// is zero: the residual stopped changing between iterations and the
// fixed-point update carries no information to relax with.
var ErrStagnation = errors.New("acceleration: aitken denominator is zero, no progress between iterations")

const noResidual = math.MaxFloat64

// Aitken implements dynamic Aitken under-relaxation: the concatenated
// residual of all DataIDs' Values is used to pick a new relaxation
// factor every iteration, per original_source/src/acceleration/AitkenAcceleration.cpp.
type Aitken struct {
	bus collective.Bus

	initialRelaxation float64
	dataIDs           []int

	aitkenFactor     float64
	iterationCounter int
	residuals        []float64 // sentinel noResidual entries mean "no prior residual"

	designSpecification []float64

	// precond scales the concatenated residual before it enters the
	// omega computation, so data blocks of very different magnitude
	// contribute comparably. Defaults to NoOpPreconditioner. The
	// original AitkenAcceleration.cpp never preconditions (only the
	// quasi-Newton accelerations it doesn't implement do); this core
	// generalizes the hook onto Aitken since Aitken is the only
	// acceleration it ships, per Preconditioner.hpp's contract.
	precond Preconditioner
}

// NewAitken returns an Aitken acceleration operating on dataIDs, reducing
// cross-rank inner products over bus.
func NewAitken(bus collective.Bus, initialRelaxation float64, dataIDs []int) (*Aitken, error) {
	if initialRelaxation <= 0.0 || initialRelaxation > 1.0 {
		return nil, chk.Err("acceleration: initial relaxation factor must be in (0,1], got %v", initialRelaxation)
	}
	return &Aitken{
		bus:               bus,
		initialRelaxation: initialRelaxation,
		dataIDs:           dataIDs,
		aitkenFactor:      initialRelaxation,
	}, nil
}

// SetPreconditioner installs p, replacing the default NoOpPreconditioner.
// Must be called before Initialize.
func (a *Aitken) SetPreconditioner(p Preconditioner) { a.precond = p }

func (a *Aitken) DataIDs() []int { return a.dataIDs }

func (a *Aitken) Initialize(sendData cpldata.Map) error {
	if _, ok := sendData[a.dataIDs[0]]; !ok {
		return chk.Err("acceleration: data with ID %d is not contained in data given at initialization", a.dataIDs[0])
	}
	entries := 0
	for _, id := range a.dataIDs {
		entries += len(sendData[id].Values)
	}
	a.residuals = make([]float64, entries)
	for i := range a.residuals {
		a.residuals[i] = noResidual
	}
	a.designSpecification = make([]float64, entries)
	if a.precond == nil {
		a.precond = NewNoOpPreconditioner(entries)
	}

	for _, d := range sendData {
		if len(d.OldValues) == 0 {
			d.EnsureHistory(1)
		}
	}
	return nil
}

func (a *Aitken) PerformAcceleration(sendData cpldata.Map, ctrl ControlView) error {
	x := concatValues(sendData, a.dataIDs)
	xOld := concatOld(sendData, a.dataIDs)

	residual := mat.NewVecDense(len(x), nil)
	for i := range x {
		residual.SetVec(i, x[i]-xOld[i])
	}

	weights := a.precond.Weights()
	scaled := mat.NewVecDense(residual.Len(), nil)
	for i := 0; i < residual.Len(); i++ {
		scaled.SetVec(i, residual.AtVec(i)*weights[i])
	}

	if a.iterationCounter == 0 {
		a.aitkenFactor = sign(a.aitkenFactor) * math.Min(a.initialRelaxation, math.Abs(a.aitkenFactor))
	} else {
		deltaR := mat.NewVecDense(scaled.Len(), nil)
		deltaR.SubVec(scaled, vecDense(a.residuals))

		nominator := a.bus.Dot(a.residuals, deltaR.RawVector().Data)
		denominator := a.bus.Dot(deltaR.RawVector().Data, deltaR.RawVector().Data)
		if denominator == 0 {
			return ErrStagnation
		}
		a.aitkenFactor = -a.aitkenFactor * (nominator / denominator)
	}

	// Relax every data ID in the send set, not only the accelerated
	// ones: AitkenAcceleration.cpp's performAcceleration loops over the
	// entire cplData map it is given, so data outside _dataIDs still
	// gets the same omega applied.
	omega := a.aitkenFactor
	oneMinusOmega := 1.0 - omega
	for _, d := range sendData {
		old := d.OldColumn0()
		for i := range d.Values {
			d.Values[i] = omega*d.Values[i] + oneMinusOmega*old[i]
		}
	}

	a.residuals = append([]float64(nil), scaled.RawVector().Data...)
	a.precond.Update(residual.RawVector().Data)
	a.iterationCounter++
	return nil
}

func (a *Aitken) IterationsConverged(sendData cpldata.Map) {
	a.iterationCounter = 0
	for i := range a.residuals {
		a.residuals[i] = noResidual
	}
	if r, ok := a.precond.(interface{ Reset() }); ok {
		r.Reset()
	}
}

func (a *Aitken) DesignSpecification(sendData cpldata.Map) map[int][]float64 {
	out := make(map[int][]float64, len(a.dataIDs))
	off := 0
	for _, id := range a.dataIDs {
		size := len(sendData[id].Values)
		out[id] = append([]float64(nil), a.designSpecification[off:off+size]...)
		off += size
	}
	return out
}

func (a *Aitken) SetDesignSpecification(q []float64) error {
	for _, v := range q {
		if v != 0 {
			return ErrUnsupported
		}
	}
	return nil
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func vecDense(v []float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}
