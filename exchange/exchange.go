// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exchange establishes and drives rank-to-rank point-to-point
// mappings for a mesh, sending and receiving per-vertex scalar/vector
// data subsets between the ranks of two coupled participants.
package exchange

import (
	"encoding/binary"
	"sort"

	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/mesh"
	"github.com/huangq1234553/precice/transport"
)

// Mapping routes a subset of the local values vector to/from one remote
// rank. Indices lists which positions of the local values vector belong
// to that remote rank; the disjoint union over all mappings covers
// exactly the vertices this rank owns that the remote partition also
// claims. Built once by UpdateVertexList and stable thereafter.
type Mapping struct {
	RemoteRank int
	Indices    []int
}

// connectionData pairs a reachable remote rank with the Transport
// connecting to it, mirroring PointToPointCommunication's
// _connectionDataVector.
type connectionData struct {
	remoteRank int
	t          transport.Transport
}

// pendingSend is a posted, not-yet-harvested asynchronous send, drained
// with a blocking Wait on the next Send/Receive/CloseConnection call.
type pendingSend struct {
	req transport.Request
	buf []byte
}

// Factory dials or accepts a Transport to a specific remote rank.
type Factory func(remoteRank int) (transport.Transport, error)

// Exchange is a DistributedExchange for a single coupled mesh.
type Exchange struct {
	mesh        mesh.View
	connections []connectionData
	mappings    []Mapping
	pending     []pendingSend
}

// New returns an Exchange for the given mesh view. Connections are
// established afterward via AcceptPreConnection/RequestPreConnection.
func New(m mesh.View) *Exchange {
	return &Exchange{mesh: m}
}

// RemoteRanks returns the remote ranks the N×M pre-connection topology
// must span, derived from the mesh's vertex distribution rather than
// requiring the caller to enumerate them, per spec.md §1's "N×M
// connection topology from vertex distributions". Ascending order.
func (e *Exchange) RemoteRanks() []int {
	dist := e.mesh.VertexDistribution()
	ranks := make([]int, 0, len(dist))
	for r := range dist {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return ranks
}

// AcceptPreConnection accepts an initial connection from every remote
// rank in remoteRanks using factory, populating the connection vector.
func (e *Exchange) AcceptPreConnection(acceptorName, requesterName string, remoteRanks []int, factory Factory) error {
	return e.establish(acceptorName, requesterName, remoteRanks, factory, true)
}

// RequestPreConnection requests a connection to every remote rank in
// remoteRanks using factory.
func (e *Exchange) RequestPreConnection(acceptorName, requesterName string, remoteRanks []int, factory Factory) error {
	return e.establish(acceptorName, requesterName, remoteRanks, factory, false)
}

func (e *Exchange) establish(acceptorName, requesterName string, remoteRanks []int, factory Factory, accepting bool) error {
	for _, r := range remoteRanks {
		t, err := factory(r)
		if err != nil {
			return &transport.Error{Op: "establish", Err: err}
		}
		if accepting {
			if err := t.Accept(acceptorName, requesterName, r); err != nil {
				return err
			}
		} else {
			if err := t.Request(acceptorName, requesterName, r, len(remoteRanks)); err != nil {
				return err
			}
		}
		e.connections = append(e.connections, connectionData{remoteRank: r, t: t})
	}
	return nil
}

// UpdateVertexList exchanges each rank's owned global vertex IDs over
// every connection and deterministically builds the Mapping for each
// remote rank that shares at least one vertex with the local partition.
// Both sides compute the identical mapping from the same vertex
// distributions; local indices are ascending.
func (e *Exchange) UpdateVertexList() error {
	local := e.mesh.Vertices()
	e.mappings = e.mappings[:0]
	for _, c := range e.connections {
		lenHeader, body := encodeInts(local)
		if err := c.t.Send(lenHeader, c.remoteRank); err != nil {
			return err
		}
		if len(body) > 0 {
			if err := c.t.Send(body, c.remoteRank); err != nil {
				return err
			}
		}
		// the peer sends its length prefix and body as two separate
		// messages too, in the same order.
		remoteVerts, err := e.receiveInts(c)
		if err != nil {
			return err
		}
		remoteSet := make(map[int]bool, len(remoteVerts))
		for _, v := range remoteVerts {
			remoteSet[v] = true
		}

		var indices []int
		for i, v := range local {
			if remoteSet[v] {
				indices = append(indices, i)
			}
		}
		if len(indices) > 0 {
			e.mappings = append(e.mappings, Mapping{RemoteRank: c.remoteRank, Indices: indices})
		}
	}
	return nil
}

// Mappings returns the mappings built by UpdateVertexList.
func (e *Exchange) Mappings() []Mapping { return e.mappings }

// BroadcastSend sends item to every connected remote rank, per
// PointToPointCommunication::broadcastSend.
func (e *Exchange) BroadcastSend(item int) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(item)))
	for _, c := range e.connections {
		if err := c.t.Send(buf, c.remoteRank); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastReceiveAll receives one int from every connected remote rank,
// ordered by the sender-rank order recorded at connection time, per
// PointToPointCommunication::broadcastReceiveAll.
func (e *Exchange) BroadcastReceiveAll() ([]int, error) {
	out := make([]int, len(e.connections))
	for i, c := range e.connections {
		buf := make([]byte, 4)
		if err := c.t.Receive(buf, c.remoteRank); err != nil {
			return nil, err
		}
		out[i] = int(int32(binary.LittleEndian.Uint32(buf)))
	}
	return out, nil
}

// BroadcastSendMesh sends this rank's mesh partition (the vertex IDs
// exposed by the injected mesh.View; the core has no view onto
// coordinates or connectivity, per spec.md §1) to every connected remote
// rank, per PointToPointCommunication::broadcastSendMesh.
func (e *Exchange) BroadcastSendMesh() error {
	header, body := encodeInts(e.mesh.Vertices())
	for _, c := range e.connections {
		if err := c.t.Send(header, c.remoteRank); err != nil {
			return err
		}
		if len(body) > 0 {
			if err := c.t.Send(body, c.remoteRank); err != nil {
				return err
			}
		}
	}
	return nil
}

// BroadcastReceiveMesh receives every connected remote rank's mesh
// partition, keyed by remote rank, per
// PointToPointCommunication::broadcastReceiveMesh.
func (e *Exchange) BroadcastReceiveMesh() (map[int][]int, error) {
	out := make(map[int][]int, len(e.connections))
	for _, c := range e.connections {
		verts, err := e.receiveInts(c)
		if err != nil {
			return nil, err
		}
		out[c.remoteRank] = verts
	}
	return out, nil
}

// BroadcastSendLCM sends this rank's local communication map (remote
// rank -> the local participant's rank IDs participating in that
// connection) to every connected remote rank, per
// PointToPointCommunication::broadcastSendLCM.
func (e *Exchange) BroadcastSendLCM(lcm map[int][]int) error {
	header, body := encodeIntMap(lcm)
	for _, c := range e.connections {
		if err := c.t.Send(header, c.remoteRank); err != nil {
			return err
		}
		if len(body) > 0 {
			if err := c.t.Send(body, c.remoteRank); err != nil {
				return err
			}
		}
	}
	return nil
}

// BroadcastReceiveLCM receives every connected remote rank's local
// communication map, keyed by remote rank, per
// PointToPointCommunication::broadcastReceiveLCM.
func (e *Exchange) BroadcastReceiveLCM() (map[int]map[int][]int, error) {
	out := make(map[int]map[int][]int, len(e.connections))
	for _, c := range e.connections {
		lenBuf := make([]byte, 4)
		if err := c.t.Receive(lenBuf, c.remoteRank); err != nil {
			return nil, err
		}
		n := decodeIntsLen(lenBuf)
		body := make([]byte, 8*n)
		if n > 0 {
			if err := c.t.Receive(body, c.remoteRank); err != nil {
				return nil, err
			}
		}
		out[c.remoteRank] = decodeIntMap(body, n)
	}
	return out, nil
}

// receiveInts receives one length-prefixed int slice over c, the
// receive-side counterpart of encodeInts' two-message split.
func (e *Exchange) receiveInts(c connectionData) ([]int, error) {
	lenBuf := make([]byte, 4)
	if err := c.t.Receive(lenBuf, c.remoteRank); err != nil {
		return nil, err
	}
	n := decodeIntsLen(lenBuf)
	body := make([]byte, 8*n)
	if n > 0 {
		if err := c.t.Receive(body, c.remoteRank); err != nil {
			return nil, err
		}
	}
	return decodeInts(body, n), nil
}

// Send gathers, for each Mapping, the valueDimension*len(Indices) entries
// of items addressed by that mapping and posts one asynchronous send per
// mapping. Sends still pending from a prior call are first drained with a
// blocking wait. The ones just posted are not waited for: before
// returning, Send only harvests those that have already completed; the
// rest drain on the next Send/Receive or CloseConnection.
func (e *Exchange) Send(items []float64, size, valueDimension int) error {
	if size != len(items) {
		chk.Panic("exchange: send size mismatch: %d != %d", size, len(items))
	}
	if err := e.harvestPending(true); err != nil {
		return err
	}
	for _, m := range e.mappings {
		buf := make([]float64, len(m.Indices)*valueDimension)
		for k, idx := range m.Indices {
			copy(buf[k*valueDimension:(k+1)*valueDimension], items[idx*valueDimension:(idx+1)*valueDimension])
		}
		data := EncodeFloats(buf)
		req := e.connFor(m.RemoteRank).SendAsync(data, m.RemoteRank)
		e.pending = append(e.pending, pendingSend{req: req, buf: data})
	}
	return e.harvestPending(false)
}

// Receive scatters, for each Mapping, a valueDimension*len(Indices)-sized
// subset received from that remote rank back into items.
func (e *Exchange) Receive(items []float64, size, valueDimension int) error {
	if size != len(items) {
		chk.Panic("exchange: receive size mismatch: %d != %d", size, len(items))
	}
	if err := e.harvestPending(true); err != nil {
		return err
	}
	for _, m := range e.mappings {
		n := len(m.Indices) * valueDimension
		buf := make([]byte, 8*n)
		if err := e.connFor(m.RemoteRank).Receive(buf, m.RemoteRank); err != nil {
			return err
		}
		vals := DecodeFloats(buf, n)
		for k, idx := range m.Indices {
			copy(items[idx*valueDimension:(idx+1)*valueDimension], vals[k*valueDimension:(k+1)*valueDimension])
		}
	}
	return nil
}

// harvestPending drains the pending-send list. When blocking is false it
// only removes already-completed entries (used by Send right after it
// posts its work); when true it waits for every entry to finish (used
// before Send posts new work, before a Receive, since a matching peer send
// must land first, and before CloseConnection so no request is abandoned
// mid-flight).
func (e *Exchange) harvestPending(blocking bool) error {
	remaining := e.pending[:0]
	for _, p := range e.pending {
		if blocking {
			if err := p.req.Wait(); err != nil {
				return err
			}
			continue
		}
		done, err := p.req.Test()
		if err != nil {
			return err
		}
		if !done {
			remaining = append(remaining, p)
		}
	}
	e.pending = remaining
	return nil
}

func (e *Exchange) connFor(remoteRank int) transport.Transport {
	for _, c := range e.connections {
		if c.remoteRank == remoteRank {
			return c.t
		}
	}
	chk.Panic("exchange: no connection for remote rank %d", remoteRank)
	return nil
}

// CloseConnection drains pending async requests and closes every
// connection.
func (e *Exchange) CloseConnection() error {
	if err := e.harvestPending(true); err != nil {
		return err
	}
	for _, c := range e.connections {
		if err := c.t.Close(); err != nil {
			return err
		}
	}
	return nil
}
