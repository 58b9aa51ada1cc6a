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

// MVMap composes an ORSet of keys with one MVRegister per key, exactly
// as LWWMap composes ORSet with LWWRegister (spec.md §4.6).
type MVMap struct {
	baseCRDT
	keys      *ORSet
	registers map[string]*MVRegister
}

// NewMVMap creates an empty MVMap bound to clk.
func NewMVMap(clk clock.Clock) *MVMap {
	return &MVMap{
		baseCRDT:  newBaseCRDT(clk),
		keys:      NewORSet(clk),
		registers: map[string]*MVRegister{},
	}
}

func (m *MVMap) register(key value.Value) (string, *MVRegister, error) {
	k, err := memberKey(key)
	if err != nil {
		return "", nil, err
	}
	reg, ok := m.registers[k]
	if !ok {
		reg = NewMVRegister(m.Clock(), key)
		m.registers[k] = reg
	}
	return k, reg, nil
}

// Read returns every visible key mapped to its (possibly multi-valued) set.
func (m *MVMap) Read() (map[string][]value.Value, error) {
	out := map[string][]value.Value{}
	for _, key := range m.keys.Read() {
		k, err := memberKey(key)
		if err != nil {
			return nil, err
		}
		reg, ok := m.registers[k]
		if !ok {
			continue
		}
		vs := reg.Read()
		if len(vs) > 0 {
			out[k] = vs
		}
	}
	return out, nil
}

// Set creates and applies a local delta setting key to val.
func (m *MVMap) Set(key, val value.Value) (StateUpdate, error) {
	return m.apply(lwwMapSet, key, val)
}

// Unset creates and applies a local delta removing key.
func (m *MVMap) Unset(key value.Value) (StateUpdate, error) {
	return m.apply(lwwMapUnset, key, value.None{})
}

func (m *MVMap) apply(op string, key, val value.Value) (StateUpdate, error) {
	ts, err := m.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: m.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(op), key, val},
	}
	if err := m.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func parseMVMapPayload(u StateUpdate) (op string, key, val value.Value, err error) {
	seq, ok := u.Payload.(value.Sequence)
	if !ok || len(seq) != 3 {
		return "", nil, nil, errors.NewErrType("mvmap payload must be a 3-tuple (op, key, value)")
	}
	opVal, ok := seq[0].(value.String)
	if !ok {
		return "", nil, nil, errors.NewErrType("mvmap op must be a String")
	}
	op = string(opVal)
	if op != lwwMapSet && op != lwwMapUnset {
		return "", nil, nil, errors.NewErrValue("mvmap op must be set or unset", errors.NewKV("op", op))
	}
	return op, seq[1], seq[2], nil
}

// Update validates and applies an incoming StateUpdate.
func (m *MVMap) Update(u StateUpdate) error {
	return m.applyGuarded(u, func() error {
		op, key, val, err := parseMVMapPayload(u)
		if err != nil {
			return err
		}
		setOp := orSetObserve
		if op == lwwMapUnset {
			setOp = orSetRemove
			val = value.None{}
		}
		keyUpdate := StateUpdate{
			ClockUUID: u.ClockUUID,
			TS:        u.TS,
			Payload:   value.Sequence{value.String(setOp), key},
		}
		if err := m.keys.Update(keyUpdate); err != nil {
			return err
		}
		_, reg, err := m.register(key)
		if err != nil {
			return err
		}
		regUpdate := StateUpdate{ClockUUID: u.ClockUUID, TS: u.TS, Payload: val}
		return reg.Update(regUpdate)
	})
}

// History concatenates every per-key register's history, re-wrapping each
// raw register delta into MVMap's own 3-tuple payload shape (op, key,
// value) that parseMVMapPayload/Update expects. MVRegister.History
// returns bare value.Value payloads (mvregister.go's own wire shape, one
// level down) with no key attached; forwarding those verbatim would fail
// parseMVMapPayload's type assertion on replay. No per-key compaction is
// performed here, unlike LWWMap.History — every concurrent write a
// register kept is still individually relevant to a future merge.
func (m *MVMap) History(opts HistoryOpts) []StateUpdate {
	out := make([]StateUpdate, 0, len(m.registers))
	for _, reg := range m.registers {
		for _, u := range reg.History(opts) {
			val := u.Payload
			op := lwwMapSet
			if value.IsNone(val) {
				op = lwwMapUnset
			}
			out = append(out, StateUpdate{
				ClockUUID: m.ClockUUID(),
				TS:        u.TS,
				Payload:   value.Sequence{value.String(op), reg.name, val},
			})
		}
	}
	return out
}

// Checksums summarizes the filtered applied-delta log.
func (m *MVMap) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(m.rawHistory(), opts), m.Clock())
}

// GetMerkleHistory returns this MVMap's Merkle triple over its full history.
func (m *MVMap) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(m.rawHistory(), m.Clock())
}
