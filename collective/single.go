// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collective

// Single is a one-rank Bus: the sole rank is always master, broadcast is a
// no-op, and Dot is a plain local inner product. Used for single-process
// runs and by every package test in this repo.
type Single struct{}

// NewSingle returns a one-rank Bus.
func NewSingle() *Single { return &Single{} }

func (*Single) IsMaster() bool { return true }
func (*Single) IsSlave() bool  { return false }
func (*Single) Rank() int      { return 0 }
func (*Single) Size() int      { return 1 }

func (*Single) Broadcast(v []float64)    {}
func (*Single) BroadcastInt(v []int)     {}
func (*Single) BroadcastBool(v *bool)    {}

func (*Single) Dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
