// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mesh defines the read-only view the coupling core needs of a
// participant's mesh partition. Everything else about meshes (geometry,
// connectivity, mapping/interpolation) lives outside this module.
package mesh

// View exposes the subset of a mesh a DistributedExchange needs:
// identity, its own vertices, and which rank owns which global vertex ID.
type View interface {
	// ID is the mesh identifier used to key M2N's per-mesh exchanges.
	ID() int

	// Vertices returns the global vertex IDs owned by the local rank, in
	// ascending order.
	Vertices() []int

	// VertexDistribution returns, for every remote rank, the global
	// vertex IDs that rank owns. Both sides of a coupled mesh compute
	// Mapping entries deterministically from this distribution.
	VertexDistribution() map[int][]int
}

// Static is a plain in-memory View, used by tests and the demo driver in
// place of a real mesh data structure.
type Static struct {
	IDVal        int
	LocalVerts   []int
	Distribution map[int][]int
}

func (s *Static) ID() int                        { return s.IDVal }
func (s *Static) Vertices() []int                 { return s.LocalVerts }
func (s *Static) VertexDistribution() map[int][]int { return s.Distribution }
