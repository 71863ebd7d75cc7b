// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cplscheme

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/huangq1234553/precice/acceleration"
	"github.com/huangq1234553/precice/convergence"
	"github.com/huangq1234553/precice/cpldata"
	"github.com/huangq1234553/precice/m2n"
	"github.com/huangq1234553/precice/stats"
)

// MeasureLevel tags a MeasureSet as belonging to the fine or the coarse
// model in multi-level (manifold-mapping) acceleration, resolving the
// coarse/fine Open Question as a tagged variant rather than index
// arithmetic on data IDs.
type MeasureLevel int

const (
	Fine MeasureLevel = iota
	Coarse
)

// MeasureSet binds a convergence.Set to the data IDs it is evaluated
// over and to a fine/coarse level.
type MeasureSet struct {
	Level    MeasureLevel
	Measures convergence.Set
	DataIDs  []int

	// Stats accumulates this set's residual norm at every converged time
	// step, one DistanceAccumulator per measure, for reporting.
	Stats []*stats.DistanceAccumulator
}

// Base provides every derived coupling scheme (only SerialCouplingScheme
// in this core) the shared time/iteration/action/extrapolation
// bookkeeping described in spec.md §4.H.
type Base struct {
	cfg Config

	m2n          *m2n.M2N
	acceleration acceleration.Acceleration
	measureSets  []MeasureSet

	sendData    cpldata.Map
	receiveData cpldata.Map

	time                  float64
	timesteps             int
	thisTimestepRemainder float64
	iterationsInStep      int

	isCoarseModelOptimizationActive bool

	isInitialized              bool
	hasToSendInitData          bool
	hasToReceiveInitData       bool
	hasDataBeenExchanged       bool
	isCouplingTimestepComplete bool

	requiredActions  map[Action]bool
	fulfilledActions map[Action]bool
}

// newBase validates cfg and wires the shared state every derived scheme
// needs. sendData/receiveData are keyed by data ID and shared by
// reference with the caller's solver code, per the ownership rule in
// spec.md §3.
func newBase(cfg Config, bridge *m2n.M2N, accel acceleration.Acceleration, sendData, receiveData cpldata.Map, measureSets []MeasureSet) (*Base, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Base{
		cfg:              cfg,
		m2n:              bridge,
		acceleration:     accel,
		measureSets:      measureSets,
		sendData:         sendData,
		receiveData:      receiveData,
		requiredActions:  make(map[Action]bool),
		fulfilledActions: make(map[Action]bool),
	}, nil
}

func (b *Base) doesFirstStep() bool { return b.cfg.doesFirstStep() }

// Time returns the current coupled simulation time.
func (b *Base) Time() float64 { return b.time }

// Timesteps returns the number of completed time steps.
func (b *Base) Timesteps() int { return b.timesteps }

// IsCouplingOngoing reports whether the run should continue: neither the
// configured maxTime nor maxTimesteps has been reached.
func (b *Base) IsCouplingOngoing() bool {
	if b.cfg.MaxTimesteps > 0 && b.timesteps >= b.cfg.MaxTimesteps {
		return false
	}
	if b.cfg.MaxTime > 0 && b.time >= b.cfg.MaxTime {
		return false
	}
	return true
}

// IsCouplingTimestepComplete reports whether the step just advanced
// crossed a full time-step boundary.
func (b *Base) IsCouplingTimestepComplete() bool { return b.isCouplingTimestepComplete }

// HasDataBeenExchanged reports whether the most recent Advance/Initialize
// call performed a data exchange.
func (b *Base) HasDataBeenExchanged() bool { return b.hasDataBeenExchanged }

// NextTimestepMaxLength returns the largest step length that will not
// overshoot maxTime.
func (b *Base) NextTimestepMaxLength() float64 {
	if b.cfg.MaxTime <= 0 {
		return b.cfg.TimestepLength
	}
	remaining := b.cfg.MaxTime - b.time
	if remaining < b.cfg.TimestepLength {
		return remaining
	}
	return b.cfg.TimestepLength
}

// requireAction registers an action a solver must fulfil before the next
// step boundary.
func (b *Base) requireAction(a Action) {
	b.requiredActions[a] = true
	delete(b.fulfilledActions, a)
}

// IsActionRequired reports whether the given action is outstanding.
func (b *Base) IsActionRequired(a Action) bool {
	return b.requiredActions[a] && !b.fulfilledActions[a]
}

// MarkActionFulfilled clears an outstanding action.
func (b *Base) MarkActionFulfilled(a Action) {
	if !b.requiredActions[a] {
		chk.Panic("cplscheme: action %q was marked fulfilled but never required", a)
	}
	b.fulfilledActions[a] = true
}

// checkCompletenessRequiredActions fails if any required action is still
// outstanding at a step boundary, per spec.md §4.H.
func (b *Base) checkCompletenessRequiredActions() error {
	for a := range b.requiredActions {
		if !b.fulfilledActions[a] {
			return chk.Err("cplscheme: required action %q was not fulfilled before advance()", a)
		}
	}
	b.requiredActions = make(map[Action]bool)
	b.fulfilledActions = make(map[Action]bool)
	return nil
}

// measureConvergence evaluates every MeasureSet at the given level by
// conjunction, subtracting the supplied per-data design specification
// offset before each measure computes its residual norm.
func (b *Base) measureConvergence(designSpecs map[int][]float64, level MeasureLevel) bool {
	converged := true
	for _, ms := range b.measureSets {
		if ms.Level != level {
			continue
		}
		old := make([]float64, 0)
		neu := make([]float64, 0)
		spec := make([]float64, 0)
		for _, id := range ms.DataIDs {
			d := b.sendData[id]
			neu = append(neu, d.Values...)
			old = append(old, d.OldColumn0()...)
			if s, ok := designSpecs[id]; ok {
				spec = append(spec, s...)
			} else {
				spec = append(spec, make([]float64, len(d.Values))...)
			}
		}
		if !ms.Measures.Evaluate(old, neu, spec) {
			converged = false
		}
	}
	return converged
}

// recordConvergenceStats pushes each measure's residual norm, at the
// given level, into its DistanceAccumulator, mirroring
// SerialCouplingScheme's newConvergenceMeasurements() call on a
// converged step.
func (b *Base) recordConvergenceStats(level MeasureLevel) {
	for i := range b.measureSets {
		ms := &b.measureSets[i]
		if ms.Level != level {
			continue
		}
		if len(ms.Stats) != len(ms.Measures) {
			ms.Stats = make([]*stats.DistanceAccumulator, len(ms.Measures))
			for i := range ms.Stats {
				ms.Stats[i] = stats.NewDistanceAccumulator()
			}
		}
		for i, m := range ms.Measures {
			ms.Stats[i].Add(m.NormResidual())
		}
	}
}

// maxIterationsReached reports whether the iteration in progress is the
// last one the configured iteration cap allows for the current time step.
// iterationsInStep counts the step's earlier, non-converged iterations.
func (b *Base) maxIterationsReached() bool {
	return b.cfg.MaxIterations > 0 && b.iterationsInStep+1 >= b.cfg.MaxIterations
}

// timestepCompleted resets the per-step iteration counter. History
// rotation itself happens in storeIterationData/extrapolateData, which
// run regardless of convergence, per spec.md §4.I tie-break rules.
func (b *Base) timestepCompleted() {
	b.iterationsInStep = 0
}

// storeIterationData copies current values into history column 0 without
// advancing time, retaining them for the next iteration's residual
// computation, per spec.md §4.I tie-break rules.
func (b *Base) storeIterationData() {
	for _, d := range b.sendData {
		if len(d.OldValues) > 0 {
			d.StoreCurrentAsOld()
		}
	}
	for _, d := range b.receiveData {
		if len(d.OldValues) > 0 {
			d.StoreCurrentAsOld()
		}
	}
}

// extrapolateData rotates the column history with this step's converged
// values, then predicts the next time step's initial value from the
// updated history using a linear (order 1) extrapolation; higher orders
// are a documented extension point. Only called for ExtrapolationOrder >
// 0 (order 0 needs no more than the single history column storeIterationData
// already maintains).
func (b *Base) extrapolateData(data cpldata.Map) {
	for _, d := range data {
		if len(d.OldValues) == 0 {
			continue
		}
		d.ShiftHistory()
		if len(d.OldValues[0]) < 2 {
			continue
		}
		for i, row := range d.OldValues {
			d.Values[i] = 2*row[0] - row[1]
		}
	}
}

// updateTimeAndIterations counts one more iteration of the current time
// step or, once the step has converged, advances the time/step counters
// (the iteration counter stays at the zero timestepCompleted left).
// Subcycling within a time step (a solver computing with dt <
// timestepLength) is outside this core's scope, so thisTimestepRemainder
// is always driven back to zero by a single full-length step.
func (b *Base) updateTimeAndIterations(converged bool) {
	if !converged {
		b.iterationsInStep++
		return
	}
	b.time += b.cfg.TimestepLength
	b.timesteps++
	b.thisTimestepRemainder = 0
	b.isCouplingTimestepComplete = true
}

func (b *Base) logAdvance(tag string) {
	io.Pf("cplscheme: %s: t=%v step=%d\n", tag, b.time, b.timesteps)
}
