// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package clock implements spec.md §3/§4.1: the logical-clock contract
// every CRDT depends on, plus a default Lamport-scalar implementation.
// Alternative clocks (vector clocks producing concurrent timestamps) only
// need to satisfy Timestamp/Clock below; nothing elsewhere in this module
// assumes a total order.
package clock

import "github.com/sourcenetwork/crdt/value"

// Order is the result of comparing two Timestamps. Concurrent is only
// ever produced by clocks (such as vector clocks) whose timestamps form a
// partial order; the default LamportClock never returns it.
type Order int

const (
	Before     Order = -1
	Equal      Order = 0
	After      Order = 1
	Concurrent Order = 2
)

// Timestamp is an opaque logical time value. It must also be a
// value.Value so it can be stored, serialized, and totally-ordered as a
// tie-break of last resort the way every other payload field is.
type Timestamp interface {
	value.Value

	// OrderAgainst compares this timestamp against other. Implementations
	// of a total-order clock (e.g. Lamport scalars) never return
	// Concurrent.
	OrderAgainst(other Timestamp) Order
}

// Clock is the logical-clock contract spec.md §3/§4.1 requires of every
// CRDT. A CRDT owns exactly one Clock instance for its lifetime.
type Clock interface {
	// Read returns the current local timestamp. Never decreases across
	// calls on the same instance.
	Read() Timestamp

	// Update merges a foreign timestamp into local state and returns the
	// new local timestamp, which is strictly later than both Read()
	// before the call and ts.
	Update(ts Timestamp) (Timestamp, error)

	// DefaultTS returns the sentinel "never updated" timestamp used for
	// absence comparisons (e.g. a key never observed in an ORSet).
	DefaultTS() Timestamp

	// WrapTS renders ts as a value.Value, suitable for storage inside a
	// StateUpdate payload or for Codec serialization.
	WrapTS(ts Timestamp) value.Value

	// UnwrapTS is WrapTS's inverse: it reconstructs a concrete Timestamp
	// from the generic value.Value form produced by WrapTS (or by
	// round-tripping that value through Codec, which erases concrete
	// Timestamp types down to plain value.Value primitives). Every Clock
	// implementation must supply this so nested payloads carrying a
	// timestamp (e.g. RGArray's ItemWrapper) can be parsed back into a
	// comparable Timestamp after a decode.
	UnwrapTS(v value.Value) (Timestamp, error)

	// UUID returns the opaque identifier shared by every replica of this
	// CRDT instance. StateUpdates carry this uuid and are rejected by any
	// CRDT whose clock has a different one (spec.md §3 invariant 5).
	UUID() []byte
}

// IsLater reports whether a is strictly later than b.
func IsLater(a, b Timestamp) bool {
	return a.OrderAgainst(b) == After
}

// AreConcurrent reports whether a and b are incomparable under the
// clock's partial order.
func AreConcurrent(a, b Timestamp) bool {
	return a.OrderAgainst(b) == Concurrent
}

// Compare returns -1, 0, or 1 for Before/Equal/After. Concurrent
// timestamps compare as 0 so callers that only need a tie-break (rather
// than full partial-order awareness) can fall through to the next
// criterion, exactly as LWWRegister's ordering rule (spec.md §4.5) does.
func Compare(a, b Timestamp) int {
	switch a.OrderAgainst(b) {
	case Before:
		return -1
	case After:
		return 1
	default:
		return 0
	}
}
