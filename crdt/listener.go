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

// Listener is invoked before a StateUpdate is applied (spec.md §4.10). It
// must not mutate the CRDT it is registered on; doing so is undefined
// behavior. Returning a non-nil error aborts the apply, leaving the CRDT
// state unchanged.
type Listener func(StateUpdate) error

// ListenerHandle identifies a registered Listener for later removal.
type ListenerHandle uint64

type listenerEntry struct {
	handle ListenerHandle
	fn     Listener
}

// listenerSet is an ordered, append/remove collection of Listeners,
// embedded in baseCRDT. Dispatch snapshots the registration order at the
// start of invoke so listeners added mid-dispatch do not fire for the
// in-flight event (spec.md §9 "Listener ordering").
type listenerSet struct {
	entries []listenerEntry
	nextID  ListenerHandle
}

func (s *listenerSet) add(f Listener) ListenerHandle {
	s.nextID++
	h := s.nextID
	s.entries = append(s.entries, listenerEntry{handle: h, fn: f})
	return h
}

func (s *listenerSet) remove(h ListenerHandle) {
	for i, e := range s.entries {
		if e.handle == h {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// invoke calls every currently-registered listener, in registration
// order, against a snapshot taken before the first call. The first
// listener error aborts dispatch and is returned to the update caller.
func (s *listenerSet) invoke(u StateUpdate) (err error) {
	snapshot := make([]listenerEntry, len(s.entries))
	copy(snapshot, s.entries)

	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()

	for _, e := range snapshot {
		if err := e.fn(u); err != nil {
			return err
		}
	}
	return nil
}
