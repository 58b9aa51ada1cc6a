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

// PNCounter is a pair of Counter-like accumulators: read() = positive -
// negative (spec.md §4.3). Each delta carries either a positive or a
// negative increment, never both.
type PNCounter struct {
	baseCRDT
	applied  map[string]struct{}
	positive int64
	negative int64
}

// NewPNCounter creates an empty PNCounter bound to clk.
func NewPNCounter(clk clock.Clock) *PNCounter {
	return &PNCounter{baseCRDT: newBaseCRDT(clk), applied: map[string]struct{}{}}
}

// Read returns positive - negative.
func (c *PNCounter) Read() int64 { return c.positive - c.negative }

// Increase creates and applies a local delta adding n to the positive
// accumulator.
func (c *PNCounter) Increase(n int64, writer value.Value) (StateUpdate, error) {
	return c.apply(n, 0, writer)
}

// Decrease creates and applies a local delta adding n to the negative
// accumulator.
func (c *PNCounter) Decrease(n int64, writer value.Value) (StateUpdate, error) {
	return c.apply(0, n, writer)
}

func (c *PNCounter) apply(pos, neg int64, writer value.Value) (StateUpdate, error) {
	if pos < 0 || neg < 0 || (pos == 0 && neg == 0) || (pos != 0 && neg != 0) {
		return StateUpdate{}, errors.NewErrValue("pncounter delta must set exactly one of positive/negative to a positive amount")
	}
	ts, err := c.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: c.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.Int(pos), value.Int(neg), writer},
	}
	if err := c.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func parsePNCounterPayload(u StateUpdate) (pos, neg int64, writer value.Value, err error) {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) != 3 {
		return 0, 0, nil, errors.NewErrType("pncounter payload must be a 3-tuple (positive_delta, negative_delta, writer_id)")
	}
	p, ok := seq[0].(value.Int)
	if !ok {
		return 0, 0, nil, errors.NewErrType("pncounter positive_delta must be an Int")
	}
	n, ok := seq[1].(value.Int)
	if !ok {
		return 0, 0, nil, errors.NewErrType("pncounter negative_delta must be an Int")
	}
	if p < 0 || n < 0 || (p != 0 && n != 0) {
		return 0, 0, nil, errors.NewErrValue("pncounter delta must carry exactly one non-negative increment")
	}
	return int64(p), int64(n), seq[2], nil
}

// Update validates and applies an incoming StateUpdate.
func (c *PNCounter) Update(u StateUpdate) error {
	return c.applyGuarded(u, func() error {
		pos, neg, writer, err := parsePNCounterPayload(u)
		if err != nil {
			return err
		}
		key, err := deltaKey(c.Clock(), u.TS, writer)
		if err != nil {
			return err
		}
		if _, err := c.clockUpdateForHistory(u.TS); err != nil {
			return err
		}
		if _, ok := c.applied[key]; ok {
			return nil
		}
		c.applied[key] = struct{}{}
		c.positive += pos
		c.negative += neg
		return nil
	})
}

// History returns the filtered applied-delta log.
func (c *PNCounter) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(c.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (c *PNCounter) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(c.rawHistory(), opts), c.Clock())
}

// GetMerkleHistory returns this PNCounter's Merkle triple over its full history.
func (c *PNCounter) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(c.rawHistory(), c.Clock())
}
