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
	"sort"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

// MVRegister is the multi-value register CRDT of spec.md §4.6: concurrent
// writes are all preserved rather than one being discarded, so a reader
// sees every value written by a maximal, pairwise-concurrent set of
// writes.
type MVRegister struct {
	baseCRDT
	name   value.Value
	values []value.Value
	ts     clock.Timestamp
}

// NewMVRegister creates an empty MVRegister identified by name, bound to clk.
func NewMVRegister(clk clock.Clock, name value.Value) *MVRegister {
	return &MVRegister{baseCRDT: newBaseCRDT(clk), name: name, ts: clk.DefaultTS()}
}

// Read returns the current (possibly multi-valued) set of values, sorted
// by serialized form for deterministic iteration.
func (r *MVRegister) Read() []value.Value {
	out := make([]value.Value, len(r.values))
	copy(out, r.values)
	return out
}

// Write creates and applies a local write of v, replacing any existing
// values (including other concurrent ones this replica has seen so far).
func (r *MVRegister) Write(v value.Value) (StateUpdate, error) {
	ts, err := r.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{ClockUUID: r.ClockUUID(), TS: ts, Payload: v}
	if err := r.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func sortValues(vs []value.Value) error {
	var sortErr error
	sort.Slice(vs, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		c, err := value.Compare(vs[i], vs[j])
		if err != nil {
			sortErr = err
			return false
		}
		return c < 0
	})
	return sortErr
}

func dedupValues(vs []value.Value) ([]value.Value, error) {
	out := make([]value.Value, 0, len(vs))
	for _, v := range vs {
		dup := false
		for _, o := range out {
			eq, err := value.Equal(v, o)
			if err != nil {
				return nil, err
			}
			if eq {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out, nil
}

// Update validates and applies an incoming StateUpdate using the merge
// rule of spec.md §4.6:
//   - U strictly later than S        -> adopt U, drop existing values;
//   - U concurrent with S            -> union the value sets;
//   - U strictly earlier than S      -> discard U's value but still
//     record it in the replay log for history().
func (r *MVRegister) Update(u StateUpdate) error {
	return r.applyGuarded(u, func() error {
		if u.Payload == nil {
			return errors.NewErrType("mvregister payload must be a value")
		}
		if _, err := r.clockUpdateForHistory(u.TS); err != nil {
			return err
		}
		if len(r.values) == 0 {
			r.values = []value.Value{u.Payload}
			r.ts = u.TS
			return nil
		}
		order := u.TS.OrderAgainst(r.ts)
		switch order {
		case clock.After:
			r.values = []value.Value{u.Payload}
			r.ts = u.TS
		case clock.Before:
			// Discarded from observable state; the delta still lives in
			// rawHistory() for replay.
		default: // Equal or Concurrent: union then dedup then sort.
			merged := append(append([]value.Value{}, r.values...), u.Payload)
			deduped, err := dedupValues(merged)
			if err != nil {
				return err
			}
			if err := sortValues(deduped); err != nil {
				return err
			}
			r.values = deduped
		}
		return nil
	})
}

// History returns the filtered applied-delta log (no compaction: every
// write may still be relevant to a future concurrent merge).
func (r *MVRegister) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(r.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (r *MVRegister) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(r.rawHistory(), opts), r.Clock())
}

// GetMerkleHistory returns this register's Merkle triple over its full history.
func (r *MVRegister) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(r.rawHistory(), r.Clock())
}
