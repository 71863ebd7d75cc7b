// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command preciced demonstrates the coupling core end-to-end: two
// single-rank participants, "first" and "second", coupled over an
// in-memory Transport, running an Implicit Aitken-accelerated scheme for
// a handful of time steps.
package main

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/huangq1234553/precice/acceleration"
	"github.com/huangq1234553/precice/collective"
	"github.com/huangq1234553/precice/convergence"
	"github.com/huangq1234553/precice/cpldata"
	"github.com/huangq1234553/precice/cplscheme"
	"github.com/huangq1234553/precice/m2n"
	"github.com/huangq1234553/precice/runtimectx"
	"github.com/huangq1234553/precice/transport"
)

func main() {
	defer func() {
		if err := recover(); err != nil {
			io.PfRed("\nERROR: %v\n", err)
		}
	}()

	chFirst, chSecond := transport.NewInMemoryPair()

	firstDone := make(chan error, 1)
	go func() { firstDone <- runParticipant("first", "second", "first", chFirst) }()

	secondDone := make(chan error, 1)
	go func() { secondDone <- runParticipant("first", "second", "second", chSecond) }()

	if err := <-firstDone; err != nil {
		chk.Panic("first participant failed: %v", err)
	}
	if err := <-secondDone; err != nil {
		chk.Panic("second participant failed: %v", err)
	}
	io.Pf("preciced: coupled run completed successfully\n")
}

func runParticipant(firstName, secondName, local string, channel transport.Transport) error {
	bus := collective.NewSingle()
	ctx := runtimectx.New(bus)
	bridge := m2n.New(ctx, channel)

	sendData := cpldata.Map{}
	receiveData := cpldata.Map{}

	cfg := cplscheme.Config{
		MaxTime:            0,
		MaxTimesteps:       3,
		TimestepLength:     1.0,
		ValidDigits:        8,
		FirstParticipant:   firstName,
		SecondParticipant:  secondName,
		LocalParticipant:   local,
		CouplingMode:       cplscheme.Implicit,
		MaxIterations:      20,
		ExtrapolationOrder: 0,
	}

	var accel acceleration.Acceleration
	var measureSets []cplscheme.MeasureSet
	if local == secondName {
		d := cpldata.NewData(0, 1, 3)
		sendData[0] = d
		receiveData[1] = cpldata.NewData(1, 1, 3)
		a, err := acceleration.NewAitken(bus, 0.5, []int{0})
		if err != nil {
			return err
		}
		accel = a
		measureSets = []cplscheme.MeasureSet{{
			Level:    cplscheme.Fine,
			Measures: convergence.Set{convergence.NewAbsoluteMeasure(1e-6)},
			DataIDs:  []int{0},
		}}
	} else {
		receiveData[0] = cpldata.NewData(0, 1, 3)
		sendData[1] = cpldata.NewData(1, 1, 3)
	}

	scheme, err := cplscheme.NewSerialCouplingScheme(cfg, bridge, accel, sendData, receiveData, measureSets)
	if err != nil {
		return err
	}

	if local == firstName {
		if err := bridge.AcceptMasterConnection(firstName, secondName); err != nil {
			return err
		}
	} else {
		if err := bridge.RequestMasterConnection(firstName, secondName); err != nil {
			return err
		}
	}

	if err := scheme.Initialize(0, 0); err != nil {
		return err
	}
	if err := scheme.InitializeData(); err != nil {
		return err
	}
	for scheme.IsCouplingOngoing() {
		if scheme.IsActionRequired(cplscheme.ActionWriteIterationCheckpoint) {
			scheme.MarkActionFulfilled(cplscheme.ActionWriteIterationCheckpoint)
		}
		if err := scheme.Advance(); err != nil {
			return err
		}
		if scheme.IsActionRequired(cplscheme.ActionReadIterationCheckpoint) {
			scheme.MarkActionFulfilled(cplscheme.ActionReadIterationCheckpoint)
		}
	}
	return scheme.Finalize()
}
