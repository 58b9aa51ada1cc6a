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
	rgArrayAppend = "append"
	rgArrayDelete = "delete"
)

// RGItem is the ItemWrapper of spec.md §4.7: (value, ts, writer_id).
type RGItem struct {
	Value  value.Value
	TS     clock.Timestamp
	Writer value.Value
}

func (it RGItem) wrapper(clk clock.Clock) value.Sequence {
	return value.Sequence{it.Value, clk.WrapTS(it.TS), it.Writer}
}

func rgItemFromWrapper(clk clock.Clock, w value.Value) (RGItem, error) {
	seq, ok := w.(value.Sequence)
	if !ok || len(seq) != 3 {
		return RGItem{}, errors.NewErrType("rgarray item wrapper must be a 3-tuple (value, ts, writer_id)")
	}
	ts, err := clk.UnwrapTS(seq[1])
	if err != nil {
		return RGItem{}, errors.Wrap("failed to unwrap rgarray item timestamp", err)
	}
	return RGItem{Value: seq[0], TS: ts, Writer: seq[2]}, nil
}

func rgLess(a, b RGItem) bool {
	if c := clock.Compare(a.TS, b.TS); c != 0 {
		return c < 0
	}
	if c, _ := value.Compare(a.Writer, b.Writer); c != 0 {
		return c < 0
	}
	c, _ := value.Compare(a.Value, b.Value)
	return c < 0
}

// RGArray is the append-only list-with-deletion CRDT of spec.md §4.7: an
// ORSet of ItemWrappers, with an incrementally-maintained ordering cache
// giving O(log n) insert/remove per apply.
type RGArray struct {
	baseCRDT
	set   *ORSet
	cache *orderingCache[RGItem]
}

// NewRGArray creates an empty RGArray bound to clk.
func NewRGArray(clk clock.Clock) *RGArray {
	return &RGArray{
		baseCRDT: newBaseCRDT(clk),
		set:      NewORSet(clk),
		cache:    newOrderingCache[RGItem](rgLess),
	}
}

// Read returns the currently-visible items in the total order of spec.md
// §4.7: by ts, then writer_id, then serialized value, all ascending.
func (a *RGArray) Read() []value.Value {
	items := a.cache.Items()
	out := make([]value.Value, len(items))
	for i, it := range items {
		out[i] = it.Value
	}
	return out
}

// Items returns the currently-visible ItemWrappers in list order, letting
// a caller build a Delete call for any of them.
func (a *RGArray) Items() []RGItem {
	return a.cache.Items()
}

// Append creates and applies a local delta appending val, attributed to
// writer, using the clock's next timestamp.
func (a *RGArray) Append(val value.Value, writer value.Value) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	item := RGItem{Value: val, TS: ts, Writer: writer}
	u := StateUpdate{
		ClockUUID: a.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(rgArrayAppend), item.wrapper(a.Clock())},
	}
	if err := a.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

// Delete creates and applies a local delta removing item.
func (a *RGArray) Delete(item RGItem) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: a.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(rgArrayDelete), item.wrapper(a.Clock())},
	}
	if err := a.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func parseRGArrayPayload(u StateUpdate) (op string, wrapper value.Value, err error) {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) != 2 {
		return "", nil, errors.NewErrType("rgarray payload must be a 2-tuple (op, item_wrapper)")
	}
	opVal, ok := seq[0].(value.String)
	if !ok {
		return "", nil, errors.NewErrType("rgarray op must be a String")
	}
	op = string(opVal)
	if op != rgArrayAppend && op != rgArrayDelete {
		return "", nil, errors.NewErrValue("rgarray op must be append or delete", errors.NewKV("op", op))
	}
	return op, seq[1], nil
}

// Update validates and applies an incoming StateUpdate, incrementally
// updating the ordering cache for whichever single item changed
// visibility.
func (a *RGArray) Update(u StateUpdate) error {
	return a.applyGuarded(u, func() error {
		op, wrapper, err := parseRGArrayPayload(u)
		if err != nil {
			return err
		}
		item, err := rgItemFromWrapper(a.Clock(), wrapper)
		if err != nil {
			return err
		}
		setOp := orSetObserve
		if op == rgArrayDelete {
			setOp = orSetRemove
		}
		setUpdate := StateUpdate{
			ClockUUID: u.ClockUUID,
			TS:        u.TS,
			Payload:   value.Sequence{value.String(setOp), wrapper},
		}
		if err := a.set.Update(setUpdate); err != nil {
			return err
		}
		visible, err := a.set.Contains(wrapper)
		if err != nil {
			return err
		}
		if visible {
			a.cache.Insert(item)
		} else {
			a.cache.Remove(item)
		}
		return nil
	})
}

// History returns the filtered applied-delta log.
func (a *RGArray) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(a.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (a *RGArray) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(a.rawHistory(), opts), a.Clock())
}

// GetMerkleHistory returns this RGArray's Merkle triple over its full history.
func (a *RGArray) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(a.rawHistory(), a.Clock())
}
