// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collective

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/mpi"
)

// MPIBus implements Bus over gosl/mpi's package-level functions operating
// on the implicit world communicator, the same ones fem.NewMain and
// main.go call directly: mpi.IsOn(), mpi.Rank(), mpi.Size(). gosl/mpi
// exposes no Communicator object anywhere in this call chain, so MPIBus
// does not invent one.
type MPIBus struct{}

// NewMPIBus returns a Bus reading the implicit MPI world communicator.
// mpi.Start must have been called by the host before this constructor runs,
// matching the mpi.Start/mpi.Stop pairing main.go wraps around fem.Run.
func NewMPIBus() *MPIBus {
	if !mpi.IsOn() {
		chk.Panic("collective: MPIBus requires mpi.Start to have been called")
	}
	return &MPIBus{}
}

func (o *MPIBus) IsMaster() bool { return mpi.Rank() == 0 }
func (o *MPIBus) IsSlave() bool  { return mpi.Rank() != 0 }
func (o *MPIBus) Rank() int      { return mpi.Rank() }
func (o *MPIBus) Size() int      { return mpi.Size() }

// Broadcast, BroadcastInt, BroadcastBool, and Dot all need a genuine
// cross-rank collective (an MPI broadcast and an MPI reduce). No call to
// any such primitive is evidenced anywhere in the retrieved gofem sources;
// fem/main.go and main.go only ever read mpi.IsOn/mpi.Rank/mpi.Size and
// call mpi.Start/mpi.Stop around the run. Rather than invent a
// Communicator/BcastFromRoot/AllReduceSum surface with no call site to
// ground it on, these methods only support the single-rank case these
// free functions can express (mpi.Size() == 1) and panic otherwise, so a
// real multi-rank deployment fails loudly instead of silently computing
// the wrong thing until gosl/mpi's actual collective API is confirmed.

func (o *MPIBus) Broadcast(v []float64) {
	o.requireSingleRank("Broadcast")
}

func (o *MPIBus) BroadcastInt(v []int) {
	o.requireSingleRank("BroadcastInt")
}

func (o *MPIBus) BroadcastBool(v *bool) {
	o.requireSingleRank("BroadcastBool")
}

func (o *MPIBus) Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		chk.Panic("collective: Dot requires equal-length vectors: %d != %d", len(a), len(b))
	}
	o.requireSingleRank("Dot")
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func (o *MPIBus) requireSingleRank(op string) {
	if mpi.Size() > 1 {
		chk.Panic("collective: MPIBus.%s has no confirmed gosl/mpi collective to cross ranks with; only mpi.Size() == 1 is supported until one is", op)
	}
}
