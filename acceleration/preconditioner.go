// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acceleration

import (
	"math"
)

// Preconditioner scales a concatenated residual per data block before an
// acceleration computes its relaxation factor from it, so that data IDs
// of very different magnitude (e.g. pressure vs. velocity) contribute
// comparably to the Aitken factor; the relaxed values themselves are not
// scaled. Optional: every
// Acceleration in this package works identically with NoOpPreconditioner.
// Grounded on original_source/src/acceleration/impl/Preconditioner.hpp
// and its ValuePreconditioner/ResidualSumPreconditioner subclasses.
type Preconditioner interface {
	// Weights returns the current multiplicative weight for each entry
	// of the concatenated residual.
	Weights() []float64
	// Update recomputes the weights from a freshly observed residual.
	Update(residuals []float64)
}

// NoOpPreconditioner applies a weight of 1 to every entry.
type NoOpPreconditioner struct {
	n int
}

// NewNoOpPreconditioner returns a Preconditioner that leaves residuals
// untouched.
func NewNoOpPreconditioner(n int) *NoOpPreconditioner {
	return &NoOpPreconditioner{n: n}
}

func (p *NoOpPreconditioner) Weights() []float64 {
	w := make([]float64, p.n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func (p *NoOpPreconditioner) Update(residuals []float64) {}

// ValuePreconditioner weights each data block by the reciprocal of the
// mean absolute value observed in that block's last residual, the same
// per-block scale normalization AitkenAcceleration.cpp's
// ValuePreconditioner applies before performAcceleration.
type ValuePreconditioner struct {
	blockSizes []int
	weights    []float64
}

// NewValuePreconditioner returns a ValuePreconditioner over the given
// per-data-ID block sizes (in concatenation order).
func NewValuePreconditioner(blockSizes []int) *ValuePreconditioner {
	n := 0
	for _, s := range blockSizes {
		n += s
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return &ValuePreconditioner{blockSizes: blockSizes, weights: w}
}

func (p *ValuePreconditioner) Weights() []float64 { return p.weights }

func (p *ValuePreconditioner) Update(residuals []float64) {
	off := 0
	for _, size := range p.blockSizes {
		block := residuals[off : off+size]
		var sum float64
		for _, v := range block {
			sum += math.Abs(v)
		}
		mean := sum / float64(size)
		weight := 1.0
		if mean > 1e-12 {
			weight = 1.0 / mean
		}
		for i := off; i < off+size; i++ {
			p.weights[i] = weight
		}
		off += size
	}
}

// ResidualSumPreconditioner weights each data block by the reciprocal of
// the running sum of that block's normalized residual norm across
// iterations of the current time step, resetting at convergence. Ported
// from ResidualSumPreconditioner.cpp's _update_, dropping the QR-refresh
// flag since this core does not implement IQN-ILS/IQN-MVJ.
type ResidualSumPreconditioner struct {
	blockSizes  []int
	weights     []float64
	residualSum []float64
}

// NewResidualSumPreconditioner returns a ResidualSumPreconditioner over
// the given per-data-ID block sizes (in concatenation order).
func NewResidualSumPreconditioner(blockSizes []int) *ResidualSumPreconditioner {
	n := 0
	for _, s := range blockSizes {
		n += s
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return &ResidualSumPreconditioner{
		blockSizes:  blockSizes,
		weights:     w,
		residualSum: make([]float64, len(blockSizes)),
	}
}

func (p *ResidualSumPreconditioner) Weights() []float64 { return p.weights }

// Update recomputes weights from a mid-iteration residual. Call Reset
// instead at convergence, mirroring the original's timestepComplete branch.
func (p *ResidualSumPreconditioner) Update(residuals []float64) {
	norms := make([]float64, len(p.blockSizes))
	var sum float64
	off := 0
	for k, size := range p.blockSizes {
		var dot float64
		for i := off; i < off+size; i++ {
			dot += residuals[i] * residuals[i]
		}
		norms[k] = dot
		sum += dot
		off += size
	}
	sum = math.Sqrt(sum)
	if sum <= 0 {
		return
	}
	for k := range p.blockSizes {
		p.residualSum[k] += math.Sqrt(norms[k]) / sum
	}
	off = 0
	for k, size := range p.blockSizes {
		weight := 1.0
		if p.residualSum[k] > 0 {
			weight = 1.0 / p.residualSum[k]
		}
		for i := off; i < off+size; i++ {
			p.weights[i] = weight
		}
		off += size
	}
}

// Reset zeros the running residual sums, called when a time step converges.
func (p *ResidualSumPreconditioner) Reset() {
	for k := range p.residualSum {
		p.residualSum[k] = 0
	}
}
