// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package crdt

import (
	"github.com/sourcenetwork/crdt/clock"
)

// baseCRDT is the common embedding every concrete CRDT in this package
// uses, the way defradb's core/crdt types embed a shared baseCRDT for
// store/key plumbing. Here it owns the Clock, the applied-delta log used
// to satisfy history()/checksums()/Merkle sync, and the listener set.
//
// Per spec.md §5, a baseCRDT (and therefore every CRDT built on it) is
// logically single-threaded: concurrent calls into the same instance are
// not supported. Callers needing concurrent access must add their own
// synchronization wrapper.
type baseCRDT struct {
	clk       clock.Clock
	deltas    []StateUpdate
	listeners listenerSet
}

func newBaseCRDT(clk clock.Clock) baseCRDT {
	return baseCRDT{clk: clk}
}

// ClockUUID returns the owning clock's instance identifier.
func (b *baseCRDT) ClockUUID() []byte { return b.clk.UUID() }

// Clock exposes the underlying Clock, e.g. for embedding applications that
// need Read() without going through a mutator.
func (b *baseCRDT) Clock() clock.Clock { return b.clk }

// AddListener registers f to be invoked before every subsequent Update.
func (b *baseCRDT) AddListener(f Listener) ListenerHandle {
	return b.listeners.add(f)
}

// RemoveListener deregisters a previously-added listener.
func (b *baseCRDT) RemoveListener(h ListenerHandle) {
	b.listeners.remove(h)
}

// InvokeListeners dispatches u to every registered listener without
// applying it, primarily useful for testing listener wiring.
func (b *baseCRDT) InvokeListeners(u StateUpdate) error {
	return b.listeners.invoke(u)
}

// nextLocalTS advances the clock for a freshly-created local mutation by
// merging the clock's own current reading, the generic equivalent of the
// teacher's `clock.Apply()` that works for any Clock implementation,
// including ones (vector clocks) that do more than increment a scalar.
func (b *baseCRDT) nextLocalTS() (clock.Timestamp, error) {
	return b.clk.Update(b.clk.Read())
}

// applyGuarded implements the apply sequence spec.md §7 mandates: validate
// (clock uuid match), dispatch listeners, then mutate. If mutate returns
// an error the delta is not recorded and the CRDT-specific mutate
// closure is responsible for having made no partial change (every mutate
// closure in this package validates the payload shape before touching any
// field). On success the delta is appended to the replay log.
func (b *baseCRDT) applyGuarded(u StateUpdate, mutate func() error) error {
	if err := checkClockUUID(b.clk.UUID(), u); err != nil {
		return err
	}
	if err := b.listeners.invoke(u); err != nil {
		return err
	}
	if err := mutate(); err != nil {
		return err
	}
	b.deltas = append(b.deltas, u)
	return nil
}

// rawHistory returns the full applied-delta log, unfiltered. Individual
// CRDTs may override History to compact this (e.g. LWWMap keeping only
// the latest winning write per key), per spec.md §3 invariant 4.
func (b *baseCRDT) rawHistory() []StateUpdate {
	out := make([]StateUpdate, len(b.deltas))
	copy(out, b.deltas)
	return out
}
