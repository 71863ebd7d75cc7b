// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport defines the byte-level send/receive capability the
// coupling core is built on. Low-level socket/MPI primitives are assumed
// provided by the host; this package only fixes the contract.
package transport

import "fmt"

// Request represents a pending asynchronous send or receive.
type Request interface {
	// Wait blocks until the operation completes.
	Wait() error
	// Test reports whether the operation has completed, without blocking.
	Test() (done bool, err error)
}

// Transport is a point-to-point byte channel between exactly two ranks,
// one of which accepted and the other requested the connection.
type Transport interface {
	// Accept waits for a matching Request call from requesterName.
	Accept(acceptorName, requesterName string, rank int) error
	// Request connects to a participant that is calling Accept.
	Request(acceptorName, requesterName string, localRank, remoteSize int) error

	Send(data []byte, peer int) error
	Receive(data []byte, peer int) error

	SendAsync(data []byte, peer int) Request
	ReceiveAsync(data []byte, peer int) Request

	Close() error
}

// Error wraps a transport-layer failure (peer loss, truncated read). The
// core treats every Error as fatal for the offending rank; there is no
// intra-run recovery per spec.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
