// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cplscheme

import (
	"fmt"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/acceleration"
	"github.com/huangq1234553/precice/collective"
	"github.com/huangq1234553/precice/convergence"
	"github.com/huangq1234553/precice/cpldata"
	"github.com/huangq1234553/precice/m2n"
	"github.com/huangq1234553/precice/runtimectx"
	"github.com/huangq1234553/precice/transport"
)

// newTestBridge wires an M2N over an in-memory master channel for a
// single-rank participant, the same pattern cmd/preciced/main.go uses for
// its demo run.
func newTestBridge(channel transport.Transport) *m2n.M2N {
	bus := collective.NewSingle()
	ctx := runtimectx.New(bus)
	return m2n.New(ctx, channel)
}

func connectMasters(tst *testing.T, first, second *m2n.M2N) {
	done := make(chan error, 2)
	go func() { done <- first.AcceptMasterConnection("first", "second") }()
	go func() { done <- second.RequestMasterConnection("first", "second") }()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			tst.Fatalf("connect masters: %v", err)
		}
	}
}

// TestExplicitOneWay is scenario 1 from spec.md §8: a one-way Explicit
// coupling where the first participant sends a vector datum and the
// second only reads it. After Advance() returns, timestep must be 1 and
// hasDataBeenExchanged must be true on the first participant.
func TestExplicitOneWay(tst *testing.T) {
	chk.PrintTitle("serial01. explicit one-way exchange")

	chFirst, chSecond := transport.NewInMemoryPair()
	bridgeFirst := newTestBridge(chFirst)
	bridgeSecond := newTestBridge(chSecond)
	connectMasters(tst, bridgeFirst, bridgeSecond)

	cfg := func(local string) Config {
		return Config{
			// A single time step suffices: the second participant
			// receives the first participant's data in Initialize, and
			// its last step's Advance does not receive.
			MaxTimesteps:      1,
			TimestepLength:    1.0,
			ValidDigits:       8,
			FirstParticipant:  "first",
			SecondParticipant: "second",
			LocalParticipant:  local,
			CouplingMode:      Explicit,
			MaxIterations:     1,
		}
	}

	firstSend := cpldataMap(0, 1, 4)
	firstSend[0].Values = []float64{1, 2, 3, 4}
	firstScheme, err := NewSerialCouplingScheme(cfg("first"), bridgeFirst, nil, firstSend, cpldata.Map{}, nil)
	if err != nil {
		tst.Fatalf("NewSerialCouplingScheme(first): %v", err)
	}

	secondReceive := cpldataMap(0, 1, 4)
	secondScheme, err := NewSerialCouplingScheme(cfg("second"), bridgeSecond, nil, cpldata.Map{}, secondReceive, nil)
	if err != nil {
		tst.Fatalf("NewSerialCouplingScheme(second): %v", err)
	}

	initAndAdvance := func(s *SerialCouplingScheme) func() error {
		return func() error {
			if err := initialize(s); err != nil {
				return err
			}
			if err := s.Advance(); err != nil {
				return fmt.Errorf("Advance: %v", err)
			}
			return nil
		}
	}
	runParticipants(tst, initAndAdvance(firstScheme), initAndAdvance(secondScheme))

	if firstScheme.Timesteps() != 1 {
		tst.Fatalf("expected timestep 1 on first participant, got %d", firstScheme.Timesteps())
	}
	if !firstScheme.HasDataBeenExchanged() {
		tst.Fatalf("expected hasDataBeenExchanged == true on first participant")
	}
	chk.Vector(tst, "second participant's received data", 1e-15, secondReceive[0].Values, []float64{1, 2, 3, 4})
}

// TestInitializationHandshake is scenario 4 from spec.md §8: the second
// participant flags its send datum for initialization with [5,5,5]; after
// both participants call Initialize then InitializeData, the first
// participant's receive buffer must equal [5,5,5] and both init flags
// must be cleared on both sides.
func TestInitializationHandshake(tst *testing.T) {
	chk.PrintTitle("serial02. initialization handshake transfers flagged data")

	chFirst, chSecond := transport.NewInMemoryPair()
	bridgeFirst := newTestBridge(chFirst)
	bridgeSecond := newTestBridge(chSecond)
	connectMasters(tst, bridgeFirst, bridgeSecond)

	cfg := func(local string) Config {
		return Config{
			MaxTimesteps:      1,
			TimestepLength:    1.0,
			ValidDigits:       8,
			FirstParticipant:  "first",
			SecondParticipant: "second",
			LocalParticipant:  local,
			CouplingMode:      Explicit,
			MaxIterations:     1,
		}
	}

	firstReceive := cpldataMap(0, 1, 3)
	firstReceive[0].Initialize = true
	firstScheme, err := NewSerialCouplingScheme(cfg("first"), bridgeFirst, nil, cpldata.Map{}, firstReceive, nil)
	if err != nil {
		tst.Fatalf("NewSerialCouplingScheme(first): %v", err)
	}

	secondSend := cpldataMap(0, 1, 3)
	secondSend[0].Initialize = true
	secondSend[0].Values = []float64{5, 5, 5}
	secondScheme, err := NewSerialCouplingScheme(cfg("second"), bridgeSecond, nil, secondSend, cpldata.Map{}, nil)
	if err != nil {
		tst.Fatalf("NewSerialCouplingScheme(second): %v", err)
	}

	// Both participants also advance once: the second participant's
	// InitializeData only returns after receiving the dt and data that
	// the first participant sends in its first Advance. The first
	// participant's buffer is captured right after its InitializeData.
	var afterInit []float64
	first := func() error {
		if err := initialize(firstScheme); err != nil {
			return err
		}
		afterInit = append([]float64(nil), firstReceive[0].Values...)
		if err := firstScheme.Advance(); err != nil {
			return fmt.Errorf("Advance: %v", err)
		}
		return nil
	}
	second := func() error {
		if err := secondScheme.Initialize(0, 0); err != nil {
			return fmt.Errorf("Initialize: %v", err)
		}
		// The second participant must write its initial value and mark
		// the action fulfilled before InitializeData() will send it.
		if secondScheme.IsActionRequired(ActionWriteInitialData) {
			secondScheme.MarkActionFulfilled(ActionWriteInitialData)
		}
		if err := secondScheme.InitializeData(); err != nil {
			return fmt.Errorf("InitializeData: %v", err)
		}
		if err := secondScheme.Advance(); err != nil {
			return fmt.Errorf("Advance: %v", err)
		}
		return nil
	}
	runParticipants(tst, first, second)

	chk.Vector(tst, "first participant's receive buffer after init handshake", 1e-15, afterInit, []float64{5, 5, 5})

	if firstScheme.hasToSendInitData || firstScheme.hasToReceiveInitData {
		tst.Fatalf("expected both init flags cleared on first participant")
	}
	if secondScheme.hasToSendInitData || secondScheme.hasToReceiveInitData {
		tst.Fatalf("expected both init flags cleared on second participant")
	}
}

// TestCheckpointCycle is scenario 6 from spec.md §8: after a
// non-converged implicit iteration, readIterationCheckpoint must be
// required; marking it fulfilled must let the next Advance() proceed
// without the "incomplete required action" error.
func TestCheckpointCycle(tst *testing.T) {
	chk.PrintTitle("serial03. checkpoint action cycle does not block a fulfilled Advance")

	chFirst, chSecond := transport.NewInMemoryPair()
	bridgeFirst := newTestBridge(chFirst)
	bridgeSecond := newTestBridge(chSecond)
	connectMasters(tst, bridgeFirst, bridgeSecond)

	cfg := func(local string) Config {
		return Config{
			MaxTimesteps:      5,
			TimestepLength:    1.0,
			ValidDigits:       8,
			FirstParticipant:  "first",
			SecondParticipant: "second",
			LocalParticipant:  local,
			CouplingMode:      Implicit,
			MaxIterations:     10,
		}
	}

	firstSend := cpldataMap(0, 1, 1)
	firstReceive := cpldataMap(1, 1, 1)
	firstScheme, err := NewSerialCouplingScheme(cfg("first"), bridgeFirst, nil, firstSend, firstReceive, nil)
	if err != nil {
		tst.Fatalf("NewSerialCouplingScheme(first): %v", err)
	}

	secondReceive := cpldataMap(0, 1, 1)
	secondSend := cpldataMap(1, 1, 1)
	// A serial scheme's acceleration always lives on the second
	// participant (SerialCouplingScheme.Initialize rejects it on the
	// first participant's send data); its Initialize also seeds
	// secondSend's history column, which measureConvergence's residual
	// needs.
	secondAccel, err := acceleration.NewConstantRelaxation(0.5, []int{1})
	if err != nil {
		tst.Fatalf("NewConstantRelaxation: %v", err)
	}
	measureSets := []MeasureSet{{
		Level:    Fine,
		Measures: convergence.Set{convergence.NewAbsoluteMeasure(1e-9)},
		DataIDs:  []int{1},
	}}
	secondScheme, err := NewSerialCouplingScheme(cfg("second"), bridgeSecond, secondAccel, secondSend, secondReceive, measureSets)
	if err != nil {
		tst.Fatalf("NewSerialCouplingScheme(second): %v", err)
	}

	// cycle drives one participant: one iteration that must not converge,
	// then Advance() until the coupling ends. Both participants see the
	// same broadcast convergence decision, so both must fulfil the
	// readIterationCheckpoint action before their next Advance(), which
	// must not fail with "incomplete required action".
	cycle := func(s *SerialCouplingScheme, beforeAdvance func()) func() error {
		return func() error {
			if err := initialize(s); err != nil {
				return err
			}
			beforeAdvance()
			if s.IsActionRequired(ActionWriteIterationCheckpoint) {
				s.MarkActionFulfilled(ActionWriteIterationCheckpoint)
			}
			if err := s.Advance(); err != nil {
				return fmt.Errorf("Advance (iteration 1): %v", err)
			}
			if !s.IsActionRequired(ActionReadIterationCheckpoint) {
				return fmt.Errorf("expected readIterationCheckpoint to be required after a non-converged iteration")
			}
			s.MarkActionFulfilled(ActionReadIterationCheckpoint)
			for s.IsCouplingOngoing() {
				if err := s.Advance(); err != nil {
					return fmt.Errorf("Advance: %v", err)
				}
				if s.IsActionRequired(ActionReadIterationCheckpoint) {
					s.MarkActionFulfilled(ActionReadIterationCheckpoint)
				}
			}
			return nil
		}
	}

	// Drive one non-converging iteration: the second participant's
	// solver output is 1 while the stored history is still zero, so the
	// residual does not vanish on the first try.
	runParticipants(tst,
		cycle(firstScheme, func() {}),
		cycle(secondScheme, func() { secondSend[1].Values[0] = 1.0 }))
}

// runParticipants runs each participant's script in its own goroutine and
// fails the test on the first error. The scripts must run concurrently
// from the start: every receive blocks until the peer's matching send
// arrives, and the second participant's receive in Initialize (or
// InitializeData) is only satisfied by the first participant's first
// Advance.
func runParticipants(tst *testing.T, first, second func() error) {
	done := make(chan error, 2)
	go func() { done <- first() }()
	go func() { done <- second() }()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			tst.Fatalf("%v", err)
		}
	}
}

// initialize calls Initialize then InitializeData on s.
func initialize(s *SerialCouplingScheme) error {
	if err := s.Initialize(0, 0); err != nil {
		return fmt.Errorf("Initialize: %v", err)
	}
	if err := s.InitializeData(); err != nil {
		return fmt.Errorf("InitializeData: %v", err)
	}
	return nil
}

func cpldataMap(id, dim, n int) cpldata.Map {
	return cpldata.Map{id: cpldata.NewData(id, dim, n)}
}
