// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cplscheme

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/huangq1234553/precice/acceleration"
	"github.com/huangq1234553/precice/cpldata"
	"github.com/huangq1234553/precice/m2n"
)

// SerialCouplingScheme is the concrete staggered coupling scheme: the
// first participant always sends before receiving within a step; the
// second participant receives, (optionally) accelerates, and replies
// with a convergence decision, per spec.md §4.I.
type SerialCouplingScheme struct {
	*Base
}

// NewSerialCouplingScheme validates cfg and wires a SerialCouplingScheme
// on top of the shared Base state machine. accel may be nil for a
// one-way (Explicit) coupling with no acceleration. measureSets are only
// evaluated by the second participant of an Implicit coupling; the first
// participant and Explicit coupling may pass none.
func NewSerialCouplingScheme(cfg Config, bridge *m2n.M2N, accel acceleration.Acceleration, sendData, receiveData cpldata.Map, measureSets []MeasureSet) (*SerialCouplingScheme, error) {
	base, err := newBase(cfg, bridge, accel, sendData, receiveData, measureSets)
	if err != nil {
		return nil, err
	}
	return &SerialCouplingScheme{Base: base}, nil
}

// Initialize validates startTime/startTimestep, sets up Implicit-mode
// bookkeeping (checkpoint action, convergence measures, acceleration
// memory), determines which side initializes data, and, when the second
// participant does not initialize data, performs the second participant's
// initial receive of the first participant's dt and data, per spec.md §4.I.
func (s *SerialCouplingScheme) Initialize(startTime float64, startTimestep int) error {
	if s.isInitialized {
		chk.Panic("cplscheme: Initialize called twice")
	}
	if startTime < 0 {
		return chk.Err("cplscheme: startTime must be >= 0, got %v", startTime)
	}
	if startTimestep < 0 {
		return chk.Err("cplscheme: startTimestep must be >= 0, got %d", startTimestep)
	}
	s.time = startTime
	s.timesteps = startTimestep

	if s.cfg.CouplingMode == Implicit {
		if len(s.sendData) == 0 {
			return chk.Err("cplscheme: no send data configured; use Explicit scheme for one-way coupling")
		}
		if !s.doesFirstStep() {
			if s.acceleration != nil {
				if err := s.acceleration.Initialize(s.sendData); err != nil {
					return err
				}
			}
		} else if s.acceleration != nil && len(s.acceleration.DataIDs()) > 0 {
			id := s.acceleration.DataIDs()[0]
			if _, ok := s.sendData[id]; ok {
				return chk.Err("cplscheme: in serial coupling, acceleration can be defined for data of the second participant only")
			}
		}
		s.requireAction(ActionWriteIterationCheckpoint)
	}

	for _, d := range s.sendData {
		if d.Initialize {
			if s.doesFirstStep() {
				return chk.Err("cplscheme: only the second participant can initialize data to be sent")
			}
			s.hasToSendInitData = true
			break
		}
	}
	for _, d := range s.receiveData {
		if d.Initialize {
			if !s.doesFirstStep() {
				return chk.Err("cplscheme: only the first participant can initialize data to be received")
			}
			s.hasToReceiveInitData = true
		}
	}

	if !s.doesFirstStep() && !s.hasToSendInitData && s.IsCouplingOngoing() {
		if err := s.receiveAndSetDt(); err != nil {
			return err
		}
		if err := s.receiveAllData(s.receiveData); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}

	if s.hasToSendInitData {
		s.requireAction(ActionWriteInitialData)
	}

	s.isInitialized = true
	return nil
}

// InitializeData performs the initialization handshake's data transfer,
// a no-op when neither side flagged any data for initialization.
func (s *SerialCouplingScheme) InitializeData() error {
	if !s.isInitialized {
		return chk.Err("cplscheme: InitializeData can only be called after Initialize")
	}
	if !s.hasToSendInitData && !s.hasToReceiveInitData {
		io.Pf("cplscheme: initializeData is skipped since no data has to be initialized\n")
		return nil
	}
	if s.hasToSendInitData && s.IsActionRequired(ActionWriteInitialData) {
		return chk.Err("cplscheme: initial data has to be written before calling InitializeData")
	}
	s.hasDataBeenExchanged = false

	if s.hasToReceiveInitData && s.IsCouplingOngoing() {
		if !s.doesFirstStep() {
			chk.Panic("cplscheme: hasToReceiveInitData is only ever set on the first participant")
		}
		if err := s.receiveAllData(s.receiveData); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}

	if s.hasToSendInitData && s.IsCouplingOngoing() {
		if s.doesFirstStep() {
			chk.Panic("cplscheme: hasToSendInitData is only ever set on the second participant")
		}
		for _, d := range s.sendData {
			if len(d.OldValues) == 0 {
				continue
			}
			d.StoreCurrentAsOld()
			d.ShiftHistory()
		}
		if err := s.sendAllData(s.sendData); err != nil {
			return err
		}
		// This receive takes the place of the one Initialize skips when
		// the second participant initializes data.
		if err := s.receiveAndSetDt(); err != nil {
			return err
		}
		if err := s.receiveAllData(s.receiveData); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}

	s.hasToSendInitData = false
	s.hasToReceiveInitData = false
	return nil
}

// Advance is the central state transition, driving exactly one Explicit
// round trip or one Implicit iteration per call, per spec.md §4.I.
func (s *SerialCouplingScheme) Advance() error {
	s.logAdvance("advance")
	if err := s.checkCompletenessRequiredActions(); err != nil {
		return err
	}
	if s.hasToReceiveInitData || s.hasToSendInitData {
		return chk.Err("cplscheme: InitializeData must be called before Advance when data has to be initialized")
	}

	s.hasDataBeenExchanged = false
	s.isCouplingTimestepComplete = false

	if s.cfg.CouplingMode == Explicit {
		return s.advanceExplicit()
	}
	return s.advanceImplicit()
}

func (s *SerialCouplingScheme) advanceExplicit() error {
	s.isCouplingTimestepComplete = true
	s.timesteps++
	if err := s.sendDt(); err != nil {
		return err
	}
	if err := s.sendAllData(s.sendData); err != nil {
		return err
	}
	if s.IsCouplingOngoing() || s.doesFirstStep() {
		if err := s.receiveAndSetDt(); err != nil {
			return err
		}
		if err := s.receiveAllData(s.receiveData); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}
	s.time += s.cfg.TimestepLength
	return nil
}

func (s *SerialCouplingScheme) advanceImplicit() error {
	convergence := true

	if s.doesFirstStep() {
		if err := s.sendDt(); err != nil {
			return err
		}
		if err := s.sendAllData(s.sendData); err != nil {
			return err
		}
		var err error
		convergence, err = s.m2n.ReceiveBool()
		if err != nil {
			return err
		}
		coarseActive, err := s.m2n.ReceiveBool()
		if err != nil {
			return err
		}
		s.isCoarseModelOptimizationActive = coarseActive
		if convergence {
			s.timestepCompleted()
		}
		if err := s.receiveAllData(s.receiveData); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
		s.updateTimeAndIterations(convergence)
	} else {
		var designSpecs map[int][]float64
		if s.acceleration != nil {
			designSpecs = s.acceleration.DesignSpecification(s.sendData)
		}
		level := Fine
		if s.isCoarseModelOptimizationActive {
			level = Coarse
		}
		convergence = s.measureConvergence(designSpecs, level)
		if s.maxIterationsReached() {
			convergence = true
		}

		if convergence {
			if s.acceleration != nil {
				s.acceleration.IterationsConverged(s.sendData)
			}
			s.recordConvergenceStats(level)
			s.timestepCompleted()
		} else if s.acceleration != nil {
			coarse := s.isCoarseModelOptimizationActive
			if err := s.acceleration.PerformAcceleration(s.sendData, acceleration.ControlView{CoarseActive: &coarse}); err != nil {
				return err
			}
			s.isCoarseModelOptimizationActive = coarse
		}

		// Either extrapolate the next input (converged, extrapolation
		// configured) or retain the current values for the next
		// iteration's residual/extrapolation/acceleration bookkeeping.
		if convergence && s.cfg.ExtrapolationOrder > 0 {
			s.extrapolateData(s.sendData)
		} else {
			s.storeIterationData()
		}

		if err := s.m2n.SendBool(convergence); err != nil {
			return err
		}
		if err := s.m2n.SendBool(s.isCoarseModelOptimizationActive); err != nil {
			return err
		}
		if err := s.sendAllData(s.sendData); err != nil {
			return err
		}

		// Advance the step counters before asking whether coupling goes
		// on, so the last converged step does not wait for data the first
		// participant never sends.
		s.updateTimeAndIterations(convergence)
		if s.IsCouplingOngoing() || !convergence {
			if err := s.receiveAndSetDt(); err != nil {
				return err
			}
			if err := s.receiveAllData(s.receiveData); err != nil {
				return err
			}
			s.hasDataBeenExchanged = true
		}
	}

	if !convergence {
		s.requireAction(ActionReadIterationCheckpoint)
	}
	return nil
}

// Finalize tears down the master-master connection and every mesh's
// DistributedExchange. Safe to call once Advance has reported the
// coupling has ended.
func (s *SerialCouplingScheme) Finalize() error {
	return s.m2n.CloseConnection()
}

func (s *SerialCouplingScheme) sendDt() error {
	return s.m2n.SendDouble(s.cfg.TimestepLength)
}

func (s *SerialCouplingScheme) receiveAndSetDt() error {
	dt, err := s.m2n.ReceiveDouble()
	if err != nil {
		return err
	}
	switch s.cfg.DtMethod {
	case First:
		if !s.doesFirstStep() {
			s.thisTimestepRemainder = dt
		}
	case Second:
		if s.doesFirstStep() {
			s.thisTimestepRemainder = dt
		}
	case FirstFirst:
		s.thisTimestepRemainder = dt
	}
	return nil
}

func (s *SerialCouplingScheme) sendAllData(data cpldata.Map) error {
	for _, d := range data {
		if err := s.m2n.SendData(d.Values, len(d.Values), d.MeshID, d.Dim); err != nil {
			return err
		}
	}
	return nil
}

func (s *SerialCouplingScheme) receiveAllData(data cpldata.Map) error {
	for _, d := range data {
		if err := s.m2n.ReceiveData(d.Values, len(d.Values), d.MeshID, d.Dim); err != nil {
			return err
		}
	}
	return nil
}
