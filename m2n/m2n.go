// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package m2n (mesh-to-mesh) composes a single master-master control
// channel with one DistributedExchange per coupled mesh, presenting a
// combined façade to the coupling scheme.
package m2n

import (
	"github.com/cpmech/gosl/chk"

	"github.com/huangq1234553/precice/exchange"
	"github.com/huangq1234553/precice/mesh"
	"github.com/huangq1234553/precice/runtimectx"
	"github.com/huangq1234553/precice/transport"
)

// M2N is the mesh-to-mesh communication façade between two participants.
type M2N struct {
	ctx *runtimectx.Context

	masterChannel transport.Transport
	masterPeer    int

	exchanges map[int]*exchange.Exchange

	isMasterConnected  bool
	areSlavesConnected bool
}

// New returns an M2N using masterChannel for the master-master control
// connection. Per-mesh exchanges are registered with RegisterMesh before
// connection establishment.
func New(ctx *runtimectx.Context, masterChannel transport.Transport) *M2N {
	return &M2N{
		ctx:           ctx,
		masterChannel: masterChannel,
		exchanges:     make(map[int]*exchange.Exchange),
	}
}

// RegisterMesh creates the DistributedExchange serving the given mesh.
func (o *M2N) RegisterMesh(m mesh.View) {
	o.exchanges[m.ID()] = exchange.New(m)
}

// IsConnected reports whether the master-master connection is up.
func (o *M2N) IsConnected() bool { return o.isMasterConnected }

// AcceptMasterConnection performs the master-master handshake on the
// master rank only, then broadcasts the resulting status to slaves.
func (o *M2N) AcceptMasterConnection(acceptorName, requesterName string) error {
	if !o.ctx.Bus.IsSlave() {
		if err := o.masterChannel.Accept(acceptorName, requesterName, o.ctx.Bus.Rank()); err != nil {
			return err
		}
		o.isMasterConnected = true
	}
	o.ctx.Bus.BroadcastBool(&o.isMasterConnected)
	return nil
}

// RequestMasterConnection performs the master-master handshake from the
// requester side, master rank only.
func (o *M2N) RequestMasterConnection(acceptorName, requesterName string) error {
	if !o.ctx.Bus.IsSlave() {
		if err := o.masterChannel.Request(acceptorName, requesterName, 0, 1); err != nil {
			return err
		}
		o.isMasterConnected = true
	}
	o.ctx.Bus.BroadcastBool(&o.isMasterConnected)
	return nil
}

// AcceptSlavesConnection establishes, for every registered mesh, the
// slave-side connections of its DistributedExchange. All local ranks
// (slaves and master) participate. The remote ranks to connect to are
// derived per-mesh from its DistributedExchange's vertex distribution
// (Exchange.RemoteRanks), not supplied by the caller.
func (o *M2N) AcceptSlavesConnection(acceptorName, requesterName string, factory exchange.Factory) error {
	o.areSlavesConnected = true
	for _, ex := range o.exchanges {
		if err := ex.AcceptPreConnection(acceptorName, requesterName, ex.RemoteRanks(), factory); err != nil {
			return err
		}
		if err := ex.UpdateVertexList(); err != nil {
			return err
		}
	}
	return nil
}

// RequestSlavesConnection is the requester-side counterpart of
// AcceptSlavesConnection.
func (o *M2N) RequestSlavesConnection(acceptorName, requesterName string, factory exchange.Factory) error {
	o.areSlavesConnected = true
	for _, ex := range o.exchanges {
		if err := ex.RequestPreConnection(acceptorName, requesterName, ex.RemoteRanks(), factory); err != nil {
			return err
		}
		if err := ex.UpdateVertexList(); err != nil {
			return err
		}
	}
	return nil
}

// isParallel reports whether this participant has slave ranks, i.e.
// whether data transfer must route through a DistributedExchange rather
// than directly over the master channel.
func (o *M2N) isParallel() bool {
	return o.ctx.Bus.Size() > 1
}

func (o *M2N) syncPing() error {
	if !o.ctx.SyncMode || o.ctx.Bus.IsSlave() {
		return nil
	}
	ack := []byte{1}
	if err := o.masterChannel.Send(ack, o.masterPeer); err != nil {
		return err
	}
	if err := o.masterChannel.Receive(ack, o.masterPeer); err != nil {
		return err
	}
	return o.masterChannel.Send(ack, o.masterPeer)
}

// SendData sends items for the given mesh/value dimension, routing
// through the mesh's DistributedExchange in parallel mode or the master
// channel in coupling mode.
func (o *M2N) SendData(items []float64, size, meshID, valueDimension int) error {
	if o.isParallel() {
		if !o.areSlavesConnected {
			chk.Panic("m2n: slaves are not connected")
		}
		ex := o.exchangeFor(meshID)
		if err := o.syncPing(); err != nil {
			return err
		}
		return ex.Send(items, size, valueDimension)
	}
	if !o.isMasterConnected {
		chk.Panic("m2n: master channel is not connected")
	}
	return o.masterChannel.Send(exchange.EncodeFloats(items), o.masterPeer)
}

// ReceiveData is the receiving counterpart of SendData.
func (o *M2N) ReceiveData(items []float64, size, meshID, valueDimension int) error {
	if o.isParallel() {
		if !o.areSlavesConnected {
			chk.Panic("m2n: slaves are not connected")
		}
		ex := o.exchangeFor(meshID)
		if err := o.syncPing(); err != nil {
			return err
		}
		return ex.Receive(items, size, valueDimension)
	}
	if !o.isMasterConnected {
		chk.Panic("m2n: master channel is not connected")
	}
	buf := make([]byte, 8*size)
	if err := o.masterChannel.Receive(buf, o.masterPeer); err != nil {
		return err
	}
	copy(items, exchange.DecodeFloats(buf, size))
	return nil
}

// BroadcastSend sends item to every rank connected to meshID's
// DistributedExchange.
func (o *M2N) BroadcastSend(item, meshID int) error {
	return o.exchangeFor(meshID).BroadcastSend(item)
}

// BroadcastReceiveAll receives one int per rank connected to meshID's
// DistributedExchange, ordered by connection order.
func (o *M2N) BroadcastReceiveAll(meshID int) ([]int, error) {
	return o.exchangeFor(meshID).BroadcastReceiveAll()
}

// BroadcastSendMesh sends meshID's local mesh partition to every rank
// connected to its DistributedExchange.
func (o *M2N) BroadcastSendMesh(meshID int) error {
	return o.exchangeFor(meshID).BroadcastSendMesh()
}

// BroadcastReceiveMesh receives every connected remote rank's mesh
// partition for meshID, keyed by remote rank.
func (o *M2N) BroadcastReceiveMesh(meshID int) (map[int][]int, error) {
	return o.exchangeFor(meshID).BroadcastReceiveMesh()
}

// BroadcastSendLCM sends meshID's local communication map to every rank
// connected to its DistributedExchange.
func (o *M2N) BroadcastSendLCM(lcm map[int][]int, meshID int) error {
	return o.exchangeFor(meshID).BroadcastSendLCM(lcm)
}

// BroadcastReceiveLCM receives every connected remote rank's local
// communication map for meshID, keyed by remote rank.
func (o *M2N) BroadcastReceiveLCM(meshID int) (map[int]map[int][]int, error) {
	return o.exchangeFor(meshID).BroadcastReceiveLCM()
}

func (o *M2N) exchangeFor(meshID int) *exchange.Exchange {
	ex, ok := o.exchanges[meshID]
	if !ok {
		chk.Panic("m2n: no exchange registered for mesh %d", meshID)
	}
	return ex
}

// SendBool sends a single control-flow boolean over the master channel
// only, master rank only. Per spec §9(b), this scalar overload always
// bypasses the distributed path even in parallel mode.
func (o *M2N) SendBool(v bool) error {
	if o.ctx.Bus.IsSlave() {
		return nil
	}
	buf := []byte{0}
	if v {
		buf[0] = 1
	}
	return o.masterChannel.Send(buf, o.masterPeer)
}

// ReceiveBool receives a control-flow boolean over the master channel and
// broadcasts it to slaves locally.
func (o *M2N) ReceiveBool() (bool, error) {
	var v bool
	if !o.ctx.Bus.IsSlave() {
		buf := []byte{0}
		if err := o.masterChannel.Receive(buf, o.masterPeer); err != nil {
			return false, err
		}
		v = buf[0] != 0
	}
	o.ctx.Bus.BroadcastBool(&v)
	return v, nil
}

// SendDouble is SendBool's scalar-double counterpart.
func (o *M2N) SendDouble(v float64) error {
	if o.ctx.Bus.IsSlave() {
		return nil
	}
	return o.masterChannel.Send(exchange.EncodeFloats([]float64{v}), o.masterPeer)
}

// ReceiveDouble is ReceiveBool's scalar-double counterpart.
func (o *M2N) ReceiveDouble() (float64, error) {
	var v float64
	if !o.ctx.Bus.IsSlave() {
		buf := make([]byte, 8)
		if err := o.masterChannel.Receive(buf, o.masterPeer); err != nil {
			return 0, err
		}
		v = exchange.DecodeFloats(buf, 1)[0]
	}
	vs := []float64{v}
	o.ctx.Bus.Broadcast(vs)
	return vs[0], nil
}

// CloseConnection closes the master channel (master rank only, with the
// resulting status broadcast) and every mesh's DistributedExchange.
func (o *M2N) CloseConnection() error {
	if !o.ctx.Bus.IsSlave() && o.isMasterConnected {
		if err := o.masterChannel.Close(); err != nil {
			return err
		}
		o.isMasterConnected = false
	}
	o.ctx.Bus.BroadcastBool(&o.isMasterConnected)

	o.areSlavesConnected = false
	for _, ex := range o.exchanges {
		if err := ex.CloseConnection(); err != nil {
			return err
		}
	}
	return nil
}
