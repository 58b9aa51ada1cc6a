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

// CounterSet is a GSet of counter_id values plus a counter_id -> PNCounter
// map (spec.md §4.3), used where distinct replicas must each own an
// additive contribution without colliding.
type CounterSet struct {
	baseCRDT
	ids      map[string]value.Value
	counters map[string]*PNCounter
}

// NewCounterSet creates an empty CounterSet bound to clk. Every PNCounter
// it lazily installs shares this same Clock instance, since a CounterSet
// owns exactly one Clock per spec.md §3.
func NewCounterSet(clk clock.Clock) *CounterSet {
	return &CounterSet{
		baseCRDT: newBaseCRDT(clk),
		ids:      map[string]value.Value{},
		counters: map[string]*PNCounter{},
	}
}

func counterIDKey(id value.Value) (string, error) {
	b, err := id.Serialize()
	if err != nil {
		return "", errors.Wrap("failed to serialize counter id", err)
	}
	return hex.EncodeToString(b), nil
}

// Read returns the sum of every installed PNCounter's value.
func (c *CounterSet) Read() int64 {
	var total int64
	for _, pnc := range c.counters {
		total += pnc.Read()
	}
	return total
}

func (c *CounterSet) install(id value.Value) (string, *PNCounter, error) {
	key, err := counterIDKey(id)
	if err != nil {
		return "", nil, err
	}
	pnc, ok := c.counters[key]
	if !ok {
		pnc = NewPNCounter(c.Clock())
		c.counters[key] = pnc
		c.ids[key] = id
	}
	return key, pnc, nil
}

// Increase lazily installs the PNCounter for id and adds n to its
// positive accumulator, returning the StateUpdate for propagation.
func (c *CounterSet) Increase(id value.Value, n int64, writer value.Value) (StateUpdate, error) {
	return c.mutateCounter(id, n, 0, writer)
}

// Decrease lazily installs the PNCounter for id and adds n to its
// negative accumulator, returning the StateUpdate for propagation.
func (c *CounterSet) Decrease(id value.Value, n int64, writer value.Value) (StateUpdate, error) {
	return c.mutateCounter(id, 0, n, writer)
}

func (c *CounterSet) mutateCounter(id value.Value, pos, neg int64, writer value.Value) (StateUpdate, error) {
	if _, _, err := c.install(id); err != nil {
		return StateUpdate{}, err
	}
	ts, err := c.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: c.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{id, value.Sequence{value.Int(pos), value.Int(neg), writer}},
	}
	if err := c.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func parseCounterSetPayload(u StateUpdate) (id value.Value, inner StateUpdate, err error) {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) != 2 {
		return nil, StateUpdate{}, errors.NewErrType("counterset payload must be a 2-tuple (counter_id, pncounter_payload)")
	}
	return seq[0], StateUpdate{ClockUUID: u.ClockUUID, TS: u.TS, Payload: seq[1]}, nil
}

// Update validates and applies an incoming StateUpdate.
func (c *CounterSet) Update(u StateUpdate) error {
	return c.applyGuarded(u, func() error {
		id, inner, err := parseCounterSetPayload(u)
		if err != nil {
			return err
		}
		_, pnc, err := c.install(id)
		if err != nil {
			return err
		}
		return pnc.Update(inner)
	})
}

// History returns the filtered applied-delta log.
func (c *CounterSet) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(c.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (c *CounterSet) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(c.rawHistory(), opts), c.Clock())
}

// GetMerkleHistory returns this CounterSet's Merkle triple over its full history.
func (c *CounterSet) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(c.rawHistory(), c.Clock())
}
