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
	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

const (
	orSetObserve = "observe"
	orSetRemove  = "remove"
)

// ORSet is the observed/removed-set CRDT of spec.md §4.4: add-biased, so
// a tie at equal timestamps resolves in favor of the observe.
type ORSet struct {
	baseCRDT
	observed map[string]clock.Timestamp
	removed  map[string]clock.Timestamp
	members  map[string]value.Value
}

// NewORSet creates an empty ORSet bound to clk.
func NewORSet(clk clock.Clock) *ORSet {
	return &ORSet{
		baseCRDT: newBaseCRDT(clk),
		observed: map[string]clock.Timestamp{},
		removed:  map[string]clock.Timestamp{},
		members:  map[string]value.Value{},
	}
}

// Read returns { v | v in observed and (v not in removed or
// observed[v] >= removed[v]) }. The >= (rather than a strict >) is what
// makes the set add-biased: spec.md §4.4 states the tie-break explicitly
// ("Tie at equal timestamps: observe wins") and the worked example in §8
// scenario 2 requires a concurrent observe/remove at equal timestamp to
// leave the member visible, which a strict > would not satisfy.
func (s *ORSet) Read() []value.Value {
	out := make([]value.Value, 0, len(s.observed))
	for key, obsTS := range s.observed {
		remTS, removedAt := s.removed[key]
		if !removedAt || clock.Compare(obsTS, remTS) >= 0 {
			out = append(out, s.members[key])
		}
	}
	return out
}

// Contains reports whether v is currently visible.
func (s *ORSet) Contains(v value.Value) (bool, error) {
	key, err := memberKey(v)
	if err != nil {
		return false, err
	}
	obsTS, observedAt := s.observed[key]
	if !observedAt {
		return false, nil
	}
	remTS, removedAt := s.removed[key]
	return !removedAt || clock.Compare(obsTS, remTS) >= 0, nil
}

// Observe creates and applies a local delta observing (adding) v.
func (s *ORSet) Observe(v value.Value) (StateUpdate, error) {
	return s.apply(orSetObserve, v)
}

// Remove creates and applies a local delta removing v. Removing an
// element not yet observed is permitted (preemptive removal).
func (s *ORSet) Remove(v value.Value) (StateUpdate, error) {
	return s.apply(orSetRemove, v)
}

func (s *ORSet) apply(op string, v value.Value) (StateUpdate, error) {
	ts, err := s.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: s.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(op), v},
	}
	if err := s.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func parseORSetPayload(u StateUpdate) (op string, member value.Value, err error) {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) != 2 {
		return "", nil, errors.NewErrType("orset payload must be a 2-tuple (op, member)")
	}
	opVal, ok := seq[0].(value.String)
	if !ok {
		return "", nil, errors.NewErrType("orset op must be a String")
	}
	op = string(opVal)
	if op != orSetObserve && op != orSetRemove {
		return "", nil, errors.NewErrValue("orset op must be observe or remove", errors.NewKV("op", op))
	}
	return op, seq[1], nil
}

// Update validates and applies an incoming StateUpdate.
func (s *ORSet) Update(u StateUpdate) error {
	return s.applyGuarded(u, func() error {
		op, member, err := parseORSetPayload(u)
		if err != nil {
			return err
		}
		key, err := memberKey(member)
		if err != nil {
			return err
		}
		if _, err := s.clockUpdateForHistory(u.TS); err != nil {
			return err
		}
		switch op {
		case orSetObserve:
			if cur, ok := s.observed[key]; !ok || clock.Compare(u.TS, cur) > 0 {
				s.observed[key] = u.TS
				s.members[key] = member
			}
		case orSetRemove:
			if cur, ok := s.removed[key]; !ok || clock.Compare(u.TS, cur) > 0 {
				s.removed[key] = u.TS
				if _, known := s.members[key]; !known {
					s.members[key] = member
				}
			}
		}
		return nil
	})
}

// History returns the filtered applied-delta log.
func (s *ORSet) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(s.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (s *ORSet) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(s.rawHistory(), opts), s.Clock())
}

// GetMerkleHistory returns this ORSet's Merkle triple over its full history.
func (s *ORSet) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(s.rawHistory(), s.Clock())
}
