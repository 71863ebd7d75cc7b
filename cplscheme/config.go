// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cplscheme implements the coupling-scheme state machine: time
// and iteration bookkeeping, the action registry solvers poll to learn
// when to checkpoint, convergence-measure wiring, extrapolation, and the
// concrete serial (staggered) time-stepping scheme on top of it.
package cplscheme

import "github.com/cpmech/gosl/chk"

// CouplingMode selects between one-way (Explicit) and iterated (Implicit)
// coupling within a time step.
type CouplingMode int

const (
	Explicit CouplingMode = iota
	Implicit
)

// DtMethod selects which participant's requested time-step length wins
// when the two disagree.
type DtMethod int

const (
	First DtMethod = iota
	Second
	FirstFirst
)

// Action is one of the recognized checkpoint/initial-data flags a solver
// polls with IsActionRequired and clears with MarkActionFulfilled.
type Action string

const (
	ActionWriteIterationCheckpoint Action = "writeIterationCheckpoint"
	ActionReadIterationCheckpoint  Action = "readIterationCheckpoint"
	ActionWriteInitialData         Action = "writeInitialData"
)

// Config is the construction-time configuration of a coupling scheme,
// validated field-by-field at construction time rather than deferred to
// first use.
type Config struct {
	MaxTime          float64
	MaxTimesteps     int
	TimestepLength   float64
	ValidDigits      int
	FirstParticipant string
	SecondParticipant string
	LocalParticipant string
	DtMethod         DtMethod
	CouplingMode     CouplingMode
	MaxIterations    int

	// ExtrapolationOrder is the polynomial order used to predict the next
	// time step's initial value from history; 0 disables extrapolation.
	ExtrapolationOrder int
}

// validate checks the invariants spec.md §6/§7 attach to construction:
// maxIterations == 1 iff Explicit, and the obvious non-negativity checks.
func (c Config) validate() error {
	if c.TimestepLength <= 0 {
		return chk.Err("cplscheme: timestepLength must be positive, got %v", c.TimestepLength)
	}
	if c.ValidDigits <= 0 {
		return chk.Err("cplscheme: validDigits must be positive, got %d", c.ValidDigits)
	}
	if c.FirstParticipant == "" || c.SecondParticipant == "" || c.LocalParticipant == "" {
		return chk.Err("cplscheme: participant names must not be empty")
	}
	if c.LocalParticipant != c.FirstParticipant && c.LocalParticipant != c.SecondParticipant {
		return chk.Err("cplscheme: localParticipant %q must equal first or second participant", c.LocalParticipant)
	}
	if c.CouplingMode == Explicit && c.MaxIterations != 1 {
		return chk.Err("cplscheme: maxIterations must be 1 for Explicit coupling, got %d", c.MaxIterations)
	}
	if c.CouplingMode == Implicit && c.MaxIterations < 2 {
		return chk.Err("cplscheme: maxIterations must be > 1 for Implicit coupling, got %d", c.MaxIterations)
	}
	return nil
}

// doesFirstStep reports whether the local participant is the first one,
// i.e. the one that always initiates a time step's send.
func (c Config) doesFirstStep() bool {
	return c.LocalParticipant == c.FirstParticipant
}
