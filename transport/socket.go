// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Socket is a Transport over a single persistent websocket connection
// between the two ranks of a point-to-point pair.
type Socket struct {
	conn *websocket.Conn
}

// NewSocket wraps an already-established websocket connection. Use Accept
// or Request to establish one from scratch.
func NewSocket(conn *websocket.Conn) *Socket {
	return &Socket{conn: conn}
}

// Accept starts an HTTP server at addr and blocks until requesterName
// dials in, mirroring the accept/dial handshake
// orchestrator/gui/websocket.InitServer/WaitForClientConnection uses for
// its single GUI client.
func (o *Socket) Accept(acceptorName, requesterName string, rank int) error {
	accepted := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		accepted <- c
	})
	srv := &http.Server{Addr: o.addr(acceptorName, rank), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case conn := <-accepted:
		o.conn = conn
		return nil
	case err := <-errCh:
		return &Error{Op: "accept", Err: err}
	}
}

// Request dials the acceptor's websocket endpoint.
func (o *Socket) Request(acceptorName, requesterName string, localRank, remoteSize int) error {
	url := fmt.Sprintf("ws://%s/", o.addr(acceptorName, localRank))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return &Error{Op: "request", Err: err}
	}
	o.conn = conn
	return nil
}

func (o *Socket) addr(name string, rank int) string {
	return fmt.Sprintf("localhost:%d", 20000+rank)
}

func (o *Socket) Send(data []byte, peer int) error {
	if err := o.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &Error{Op: "send", Err: err}
	}
	return nil
}

func (o *Socket) Receive(data []byte, peer int) error {
	_, msg, err := o.conn.ReadMessage()
	if err != nil {
		return &Error{Op: "receive", Err: err}
	}
	if len(msg) != len(data) {
		return &Error{Op: "receive", Err: fmt.Errorf("expected %d bytes, got %d", len(data), len(msg))}
	}
	copy(data, msg)
	return nil
}

func (o *Socket) SendAsync(data []byte, peer int) Request {
	return &socketRequest{err: o.Send(data, peer)}
}

func (o *Socket) ReceiveAsync(data []byte, peer int) Request {
	return &socketRequest{err: o.Receive(data, peer)}
}

func (o *Socket) Close() error {
	return o.conn.Close()
}

// socketRequest is a completed-on-construction Request: gorilla/websocket
// has no native async I/O, so SendAsync/ReceiveAsync run synchronously and
// report their result immediately, same as InMemory's Request.
type socketRequest struct {
	err error
}

func (r *socketRequest) Wait() error        { return r.err }
func (r *socketRequest) Test() (bool, error) { return true, r.err }
