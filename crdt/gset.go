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
	"encoding/hex"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

// GSet is the grow-only set CRDT of spec.md §4.4: add(v) is idempotent,
// convergence is by set union, and each member records the earliest
// observed timestamp for history filtering.
type GSet struct {
	baseCRDT
	members    map[string]value.Value
	firstSeen  map[string]clock.Timestamp
}

// NewGSet creates an empty GSet bound to clk.
func NewGSet(clk clock.Clock) *GSet {
	return &GSet{
		baseCRDT:  newBaseCRDT(clk),
		members:   map[string]value.Value{},
		firstSeen: map[string]clock.Timestamp{},
	}
}

func memberKey(v value.Value) (string, error) {
	b, err := v.Serialize()
	if err != nil {
		return "", errors.Wrap("failed to serialize set member", err)
	}
	return hex.EncodeToString(b), nil
}

// Read returns the current member set.
func (s *GSet) Read() []value.Value {
	out := make([]value.Value, 0, len(s.members))
	for _, v := range s.members {
		out = append(out, v)
	}
	return out
}

// Add creates and applies a local delta adding v to the set.
func (s *GSet) Add(v value.Value) (StateUpdate, error) {
	ts, err := s.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{ClockUUID: s.ClockUUID(), TS: ts, Payload: v}
	if err := s.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

// Update validates and applies an incoming StateUpdate.
func (s *GSet) Update(u StateUpdate) error {
	return s.applyGuarded(u, func() error {
		if u.Payload == nil {
			return errors.NewErrType("gset payload must be a member value")
		}
		key, err := memberKey(u.Payload)
		if err != nil {
			return err
		}
		if _, err := s.clockUpdateForHistory(u.TS); err != nil {
			return err
		}
		if _, ok := s.members[key]; ok {
			if clock.IsLater(s.firstSeen[key], u.TS) {
				s.firstSeen[key] = u.TS
			}
			return nil
		}
		s.members[key] = u.Payload
		s.firstSeen[key] = u.TS
		return nil
	})
}

// History returns the filtered applied-delta log.
func (s *GSet) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(s.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (s *GSet) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(s.rawHistory(), opts), s.Clock())
}

// GetMerkleHistory returns this GSet's Merkle triple over its full history.
func (s *GSet) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(s.rawHistory(), s.Clock())
}
