// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exchange

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/mesh"
	"github.com/huangq1234553/precice/transport"
)

func pairFactory(a, b *transport.InMemory) (Factory, Factory) {
	return func(remoteRank int) (transport.Transport, error) { return a, nil },
		func(remoteRank int) (transport.Transport, error) { return b, nil }
}

// TestSendReceiveRoundTrip is scenario 5 from spec.md §8: rank 0 of P1
// owns global IDs {0,1,2}, rank 1 owns {3,4}; rank 0 of P2 owns {0,3},
// rank 1 owns {1,2,4}. Sending [10,20,30] from P1 rank 0 must deliver
// [10] to P2 rank 0 and [20,30] to P2 rank 1.
func TestSendReceiveRoundTrip(tst *testing.T) {
	chk.PrintTitle("exchange01. vertex-distribution mapping and send/receive round trip")

	chAB, chBA := transport.NewInMemoryPair()
	chAC, chCA := transport.NewInMemoryPair()

	p1r0 := New(&mesh.Static{IDVal: 0, LocalVerts: []int{0, 1, 2}})
	p2r0 := New(&mesh.Static{IDVal: 0, LocalVerts: []int{0, 3}})
	p2r1 := New(&mesh.Static{IDVal: 0, LocalVerts: []int{1, 2, 4}})

	done := make(chan error, 3)
	go func() {
		done <- p1r0.AcceptPreConnection("p1", "p2", []int{0, 1}, func(r int) (transport.Transport, error) {
			if r == 0 {
				return chAB, nil
			}
			return chAC, nil
		})
	}()
	go func() {
		done <- p2r0.RequestPreConnection("p1", "p2", []int{0}, func(r int) (transport.Transport, error) { return chBA, nil })
	}()
	go func() {
		done <- p2r1.RequestPreConnection("p1", "p2", []int{0}, func(r int) (transport.Transport, error) { return chCA, nil })
	}()
	for i := 0; i < 3; i++ {
		if err := <-done; err != nil {
			tst.Fatalf("establish: %v", err)
		}
	}

	go func() { done <- p1r0.UpdateVertexList() }()
	go func() { done <- p2r0.UpdateVertexList() }()
	go func() { done <- p2r1.UpdateVertexList() }()
	for i := 0; i < 3; i++ {
		if err := <-done; err != nil {
			tst.Fatalf("UpdateVertexList: %v", err)
		}
	}

	mappings := p1r0.Mappings()
	if len(mappings) != 2 {
		tst.Fatalf("expected 2 mappings on p1 rank 0, got %d", len(mappings))
	}
	for _, m := range mappings {
		switch m.RemoteRank {
		case 0:
			chk.Ints(tst, "mapping to remote rank 0", m.Indices, []int{0})
		case 1:
			chk.Ints(tst, "mapping to remote rank 1", m.Indices, []int{1, 2})
		default:
			tst.Fatalf("unexpected remote rank %d", m.RemoteRank)
		}
	}

	sent := []float64{10, 20, 30}
	recv0 := make([]float64, 1)
	recv1 := make([]float64, 2)

	sendDone := make(chan error, 1)
	go func() { sendDone <- p1r0.Send(sent, len(sent), 1) }()
	go func() { done <- p2r0.Receive(recv0, len(recv0), 1) }()
	go func() { done <- p2r1.Receive(recv1, len(recv1), 1) }()

	if err := <-sendDone; err != nil {
		tst.Fatalf("Send: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			tst.Fatalf("Receive: %v", err)
		}
	}

	chk.Array(tst, "p2 rank 0 receives ID 0", 1e-15, recv0, []float64{10})
	chk.Array(tst, "p2 rank 1 receives IDs 1,2", 1e-15, recv1, []float64{20, 30})

	if err := p1r0.CloseConnection(); err != nil {
		tst.Fatalf("CloseConnection p1r0: %v", err)
	}
	if err := p2r0.CloseConnection(); err != nil {
		tst.Fatalf("CloseConnection p2r0: %v", err)
	}
	if err := p2r1.CloseConnection(); err != nil {
		tst.Fatalf("CloseConnection p2r1: %v", err)
	}
}

// TestBroadcastRoundTrip exercises spec.md §4.C's collective helpers:
// BroadcastSend/BroadcastReceiveAll for a scalar int, BroadcastSendMesh/
// BroadcastReceiveMesh for a vertex partition, and BroadcastSendLCM/
// BroadcastReceiveLCM for a local communication map, all over the same
// pre-connection topology UpdateVertexList uses.
func TestBroadcastRoundTrip(tst *testing.T) {
	chk.PrintTitle("exchange03. broadcastSend/Mesh/LCM round trip")

	chAB, chBA := transport.NewInMemoryPair()

	p1 := New(&mesh.Static{IDVal: 0, LocalVerts: []int{0, 1, 2}})
	p2 := New(&mesh.Static{IDVal: 0, LocalVerts: []int{3, 4}})

	done := make(chan error, 2)
	go func() {
		done <- p1.AcceptPreConnection("p1", "p2", []int{0}, func(r int) (transport.Transport, error) { return chAB, nil })
	}()
	go func() {
		done <- p2.RequestPreConnection("p1", "p2", []int{0}, func(r int) (transport.Transport, error) { return chBA, nil })
	}()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			tst.Fatalf("establish: %v", err)
		}
	}

	// BroadcastSend / BroadcastReceiveAll
	sendDone := make(chan error, 1)
	go func() { sendDone <- p1.BroadcastSend(42) }()
	var got []int
	recvDone := make(chan error, 1)
	go func() {
		v, err := p2.BroadcastReceiveAll()
		got = v
		recvDone <- err
	}()
	if err := <-sendDone; err != nil {
		tst.Fatalf("BroadcastSend: %v", err)
	}
	if err := <-recvDone; err != nil {
		tst.Fatalf("BroadcastReceiveAll: %v", err)
	}
	chk.Ints(tst, "BroadcastReceiveAll result", got, []int{42})

	// BroadcastSendMesh / BroadcastReceiveMesh
	go func() { sendDone <- p1.BroadcastSendMesh() }()
	var gotMesh map[int][]int
	go func() {
		v, err := p2.BroadcastReceiveMesh()
		gotMesh = v
		recvDone <- err
	}()
	if err := <-sendDone; err != nil {
		tst.Fatalf("BroadcastSendMesh: %v", err)
	}
	if err := <-recvDone; err != nil {
		tst.Fatalf("BroadcastReceiveMesh: %v", err)
	}
	chk.Ints(tst, "BroadcastReceiveMesh partition from rank 0", gotMesh[0], []int{0, 1, 2})

	// BroadcastSendLCM / BroadcastReceiveLCM
	lcm := map[int][]int{0: {7, 8}, 1: {9}}
	go func() { sendDone <- p1.BroadcastSendLCM(lcm) }()
	var gotLCM map[int]map[int][]int
	go func() {
		v, err := p2.BroadcastReceiveLCM()
		gotLCM = v
		recvDone <- err
	}()
	if err := <-sendDone; err != nil {
		tst.Fatalf("BroadcastSendLCM: %v", err)
	}
	if err := <-recvDone; err != nil {
		tst.Fatalf("BroadcastReceiveLCM: %v", err)
	}
	chk.Ints(tst, "BroadcastReceiveLCM map[0]", gotLCM[0][0], []int{7, 8})
	chk.Ints(tst, "BroadcastReceiveLCM map[1]", gotLCM[0][1], []int{9})

	if err := p1.CloseConnection(); err != nil {
		tst.Fatalf("CloseConnection p1: %v", err)
	}
	if err := p2.CloseConnection(); err != nil {
		tst.Fatalf("CloseConnection p2: %v", err)
	}
}

// TestRemoteRanksDerivedFromVertexDistribution covers the N×M topology
// derivation spec.md §1 calls for: the set of remote ranks to
// pre-connect to comes from the mesh's vertex distribution, not a
// caller-supplied list.
func TestRemoteRanksDerivedFromVertexDistribution(tst *testing.T) {
	chk.PrintTitle("exchange04. RemoteRanks is derived from the mesh's vertex distribution")

	e := New(&mesh.Static{
		IDVal:      0,
		LocalVerts: []int{0, 1, 2},
		Distribution: map[int][]int{
			1: {3, 4},
			0: {0, 3},
		},
	})
	chk.Ints(tst, "remote ranks", e.RemoteRanks(), []int{0, 1})
}

func TestSendSizeMismatchPanics(tst *testing.T) {
	chk.PrintTitle("exchange02. Send panics on a size mismatch, an assertion failure")

	defer func() {
		if r := recover(); r == nil {
			tst.Fatalf("expected a panic on mismatched size")
		}
	}()
	e := New(&mesh.Static{IDVal: 0, LocalVerts: []int{0}})
	e.Send([]float64{1, 2}, 3, 1)
}
