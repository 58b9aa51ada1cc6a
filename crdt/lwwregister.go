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

// lwwWins decides whether a candidate write (ts, writer, val) should
// replace the currently-held (curTS, curWriter, curVal), per the ordering
// rule of spec.md §4.5:
//  1. later timestamp wins;
//  2. else higher writer_id (by the library total order) wins;
//  3. else higher serialized value wins.
// This three-step tie-break is what makes merge commutative despite
// concurrent writers.
func lwwWins(ts clock.Timestamp, writer, val value.Value, curTS clock.Timestamp, curWriter, curVal value.Value) (bool, error) {
	if c := clock.Compare(ts, curTS); c != 0 {
		return c > 0, nil
	}
	wc, err := value.Compare(writer, curWriter)
	if err != nil {
		return false, errors.Wrap("failed to compare writer ids", err)
	}
	if wc != 0 {
		return wc > 0, nil
	}
	vc, err := value.Compare(val, curVal)
	if err != nil {
		return false, errors.Wrap("failed to compare register values", err)
	}
	return vc > 0, nil
}

// LWWRegister is the last-writer-wins register CRDT of spec.md §4.5.
type LWWRegister struct {
	baseCRDT
	name     value.Value
	hasValue bool
	value    value.Value
	ts       clock.Timestamp
	writer   value.Value
}

// NewLWWRegister creates an empty LWWRegister identified by name, bound
// to clk.
func NewLWWRegister(clk clock.Clock, name value.Value) *LWWRegister {
	return &LWWRegister{baseCRDT: newBaseCRDT(clk), name: name, ts: clk.DefaultTS()}
}

// Read returns the current value and whether one has ever been written.
func (r *LWWRegister) Read() (value.Value, bool) {
	return r.value, r.hasValue
}

// Write creates and applies a local write of newVal attributed to writer.
func (r *LWWRegister) Write(newVal value.Value, writer value.Value) (StateUpdate, error) {
	ts, err := r.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: r.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{writer, newVal},
	}
	if err := r.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func parseLWWRegisterPayload(u StateUpdate) (writer, val value.Value, err error) {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) != 2 {
		return nil, nil, errors.NewErrType("lwwregister payload must be a 2-tuple (writer_id, new_value)")
	}
	return seq[0], seq[1], nil
}

// Update validates and applies an incoming StateUpdate, overwriting the
// held value iff the incoming write wins the ordering rule.
func (r *LWWRegister) Update(u StateUpdate) error {
	return r.applyGuarded(u, func() error {
		writer, val, err := parseLWWRegisterPayload(u)
		if err != nil {
			return err
		}
		if _, err := r.clockUpdateForHistory(u.TS); err != nil {
			return err
		}
		if !r.hasValue {
			r.hasValue = true
			r.value, r.ts, r.writer = val, u.TS, writer
			return nil
		}
		wins, err := lwwWins(u.TS, writer, val, r.ts, r.writer, r.value)
		if err != nil {
			return err
		}
		if wins {
			r.value, r.ts, r.writer = val, u.TS, writer
		}
		return nil
	})
}

// History compacts to a single synthetic delta carrying the current
// winning (ts, writer, value), since replaying just that onto an empty
// register reconstructs an observationally equal state (spec.md §3
// invariant 4 permits this compaction). The compacted delta's timestamp
// may differ from any literal input delta's, which §9's open question
// explicitly allows.
func (r *LWWRegister) History(opts HistoryOpts) []StateUpdate {
	if !r.hasValue {
		return nil
	}
	winning := StateUpdate{
		ClockUUID: r.ClockUUID(),
		TS:        r.ts,
		Payload:   value.Sequence{r.writer, r.value},
	}
	if !opts.includes(winning) {
		return nil
	}
	return []StateUpdate{winning}
}

// Checksums summarizes the filtered (uncompacted) applied-delta log.
func (r *LWWRegister) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(r.rawHistory(), opts), r.Clock())
}

// GetMerkleHistory returns this register's Merkle triple over its full
// (uncompacted) history, so Merkle sync can still diff individual writes.
func (r *LWWRegister) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(r.rawHistory(), r.Clock())
}
