// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package crdt implements the twelve CRDTs of spec.md §4: Counter,
// PNCounter, CounterSet, GSet, ORSet, LWWRegister, LWWMap, MVRegister,
// MVMap, RGArray, FIArray, and CausalTree, sharing one delta envelope,
// one history/checksum/Merkle-sync mechanism, and one listener-dispatch
// mechanism (§4.10).
package crdt

import (
	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/codec"
	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

// StateUpdate is the delta envelope of spec.md §3/§4.2: an immutable
// (clock_uuid, ts, payload) triple. Every CRDT in this package uses the
// same envelope type; only the shape of Payload differs per CRDT. Most
// shapes are value.Sequence tuples as described in §4.2's payload table;
// GSet and MVRegister carry the bare member or value.
type StateUpdate struct {
	ClockUUID []byte
	TS        clock.Timestamp
	Payload   value.Value
}

// Class reports the operation tag of this update when the payload is a
// tagged tuple whose first element is a value.String (e.g. "observe",
// "remove", "set", "unset", "append", "delete"). Used to satisfy the
// `update_class` filter on History/Checksums. Returns "" for payload
// shapes with no leading op tag (e.g. plain Counter amounts).
func (u StateUpdate) Class() string {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) == 0 {
		return ""
	}
	if s, ok := seq[0].(value.String); ok {
		return string(s)
	}
	return ""
}

// wireStateUpdate is the canonical codec shape: a 3-element sequence of
// (clock_uuid, ts, payload), so StateUpdate round-trips through the same
// recursive Codec every Value does.
func (u StateUpdate) toSequence(clk clock.Clock) value.Sequence {
	return value.Sequence{value.Bytes(u.ClockUUID), clk.WrapTS(u.TS), u.Payload}
}

// Pack canonically encodes this StateUpdate. clk supplies WrapTS so the
// timestamp's concrete representation matches the owning CRDT's clock.
func (u StateUpdate) Pack(clk clock.Clock) ([]byte, error) {
	b, err := codec.Encode(u.toSequence(clk))
	if err != nil {
		return nil, errors.Wrap("failed to pack state update", err)
	}
	return b, nil
}

// UnpackStateUpdate decodes a canonical StateUpdate. clk's UnwrapTS
// converts the wire-form timestamp value.Value back into a
// clock.Timestamp understood by the receiving CRDT's clock implementation.
func UnpackStateUpdate(
	b []byte,
	clk clock.Clock,
	inject map[string]value.UserFactory,
) (StateUpdate, error) {
	v, err := codec.Decode(b, inject)
	if err != nil {
		return StateUpdate{}, errors.Wrap("failed to unpack state update", err)
	}
	seq, ok := v.(value.Sequence)
	if !ok || len(seq) != 3 {
		return StateUpdate{}, errors.NewErrCodec("state update must decode to a 3-tuple")
	}
	uuidVal, ok := seq[0].(value.Bytes)
	if !ok {
		return StateUpdate{}, errors.NewErrCodec("state update clock uuid must be bytes")
	}
	ts, err := clk.UnwrapTS(seq[1])
	if err != nil {
		return StateUpdate{}, errors.Wrap("failed to unwrap state update timestamp", err)
	}
	return StateUpdate{ClockUUID: []byte(uuidVal), TS: ts, Payload: seq[2]}, nil
}

// checkClockUUID enforces spec.md §3 invariant 5: every delta must carry
// the owning CRDT's clock_uuid; cross-instance application is rejected.
func checkClockUUID(want []byte, u StateUpdate) error {
	if string(want) != string(u.ClockUUID) {
		return errors.NewErrMismatchedClockUUID(want, u.ClockUUID)
	}
	return nil
}
