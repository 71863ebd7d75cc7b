// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package collective implements intra-participant broadcast/reduce across
// a master rank and its slave ranks.
package collective

// Bus is the capability set the coupling core needs from a participant's
// intra-process communicator. It is deliberately narrow: the core never
// addresses an individual slave rank directly, only the master/slaves as
// a whole.
type Bus interface {
	IsMaster() bool
	IsSlave() bool
	Rank() int
	Size() int

	// Broadcast sends v from the master to every slave and overwrites v on
	// slaves with the master's value. No-op on a single-rank bus.
	Broadcast(v []float64)

	// BroadcastInt is Broadcast for integer-valued vectors.
	BroadcastInt(v []int)

	// BroadcastBool is Broadcast for a single boolean flag, used to
	// propagate the M2N master-connection/slaves-connection status and
	// the isCoarseModelOptimizationActive toggle.
	BroadcastBool(v *bool)

	// Dot returns the inner product of a and b reduced (summed) across
	// all ranks of this participant. Used by Aitken acceleration to form
	// cross-rank residual inner products without each rank holding the
	// full concatenated vector.
	Dot(a, b []float64) float64
}
