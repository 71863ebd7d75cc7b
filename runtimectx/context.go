// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runtimectx carries the handful of process-wide settings the
// original source kept as package globals (a syncMode flag, a
// master/slave registry) as a single value threaded explicitly through
// constructors instead, so no component reaches into module-level state.
package runtimectx

import "github.com/huangq1234553/precice/collective"

// Context is constructed once per rank and passed to every component
// (M2N, CollectiveBus consumers, CouplingSchemeBase) that previously
// would have reached for a global.
type Context struct {
	Bus collective.Bus

	// SyncMode enables the master-channel three-way ack ping before
	// every parallel data transfer, a debugging aid that otherwise has
	// no effect on coupling semantics.
	SyncMode bool
}

// New returns a Context for the given bus with sync mode off.
func New(bus collective.Bus) *Context {
	return &Context{Bus: bus}
}

// WithSyncMode returns a copy of the Context with SyncMode set.
func (c *Context) WithSyncMode(on bool) *Context {
	cp := *c
	cp.SyncMode = on
	return &cp
}
