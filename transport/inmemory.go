// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import "fmt"

// InMemory is a Transport implemented over a pair of Go channels, used by
// tests and the demo driver in place of a real socket or MPI port. Accept
// and Request on the two ends of a Pair rendezvous immediately since the
// channels already exist.
type InMemory struct {
	out    chan []byte
	in     chan []byte
	closed bool
}

// NewInMemoryPair returns two ends of a duplex in-memory transport: a's
// Send feeds b's Receive and vice versa.
func NewInMemoryPair() (a, b *InMemory) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a = &InMemory{out: ab, in: ba}
	b = &InMemory{out: ba, in: ab}
	return
}

func (o *InMemory) Accept(acceptorName, requesterName string, rank int) error  { return nil }
func (o *InMemory) Request(acceptorName, requesterName string, localRank, remoteSize int) error {
	return nil
}

func (o *InMemory) Send(data []byte, peer int) error {
	if o.closed {
		return &Error{Op: "send", Err: fmt.Errorf("transport closed")}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	o.out <- buf
	return nil
}

func (o *InMemory) Receive(data []byte, peer int) error {
	buf, ok := <-o.in
	if !ok {
		return &Error{Op: "receive", Err: fmt.Errorf("peer closed the connection")}
	}
	if len(buf) != len(data) {
		return &Error{Op: "receive", Err: fmt.Errorf("expected %d bytes, got %d", len(data), len(buf))}
	}
	copy(data, buf)
	return nil
}

func (o *InMemory) SendAsync(data []byte, peer int) Request {
	return &inMemoryRequest{done: true, err: o.Send(data, peer)}
}

func (o *InMemory) ReceiveAsync(data []byte, peer int) Request {
	return &inMemoryRequest{done: true, err: o.Receive(data, peer)}
}

func (o *InMemory) Close() error {
	if !o.closed {
		o.closed = true
		close(o.out)
	}
	return nil
}

// inMemoryRequest implements Request for the synchronous InMemory
// transport: the operation has always already completed by the time the
// Request is constructed, so Wait/Test just report the stored result.
type inMemoryRequest struct {
	done bool
	err  error
}

func (r *inMemoryRequest) Wait() error              { return r.err }
func (r *inMemoryRequest) Test() (bool, error)       { return r.done, r.err }
