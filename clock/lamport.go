// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package clock

import (
	"encoding/binary"

	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

// LamportTimestamp is a non-negative Lamport scalar. Two LamportTimestamps
// are never Concurrent: it is a total order.
type LamportTimestamp uint64

func (LamportTimestamp) Tag() value.Tag { return value.TagInt }

func (t LamportTimestamp) Serialize() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t))
	return buf, nil
}

func (t LamportTimestamp) Hash() (string, error) {
	b, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return value.Bytes(b).Hash()
}

func (t LamportTimestamp) OrderAgainst(other Timestamp) Order {
	o, ok := other.(LamportTimestamp)
	if !ok {
		// Heterogeneous comparison falls back to the library-wide total
		// order rather than panicking; this only arises if a caller mixes
		// clock implementations, which is a usage error caught earlier.
		c, _ := value.Compare(t, other)
		return orderFromInt(c)
	}
	switch {
	case t < o:
		return Before
	case t > o:
		return After
	default:
		return Equal
	}
}

func orderFromInt(c int) Order {
	switch {
	case c < 0:
		return Before
	case c > 0:
		return After
	default:
		return Equal
	}
}

// LamportClock is the default Clock implementation named in spec.md §3:
// timestamp is a non-negative integer; Update(x) sets counter to
// max(counter, x)+1.
type LamportClock struct {
	uuid    []byte
	counter LamportTimestamp
}

// NewLamportClock creates a clock for the CRDT instance identified by uuid.
func NewLamportClock(uuid []byte) *LamportClock {
	return &LamportClock{uuid: append([]byte(nil), uuid...)}
}

func (c *LamportClock) UUID() []byte { return c.uuid }

func (c *LamportClock) Read() Timestamp { return c.counter }

func (c *LamportClock) DefaultTS() Timestamp { return LamportTimestamp(0) }

func (c *LamportClock) WrapTS(ts Timestamp) value.Value {
	lt, ok := ts.(LamportTimestamp)
	if !ok {
		return ts
	}
	return value.Int(lt)
}

// UnwrapTS reconstructs a LamportTimestamp from its generic value.Value
// form (a value.Int, as produced by WrapTS and by Codec decode).
func (c *LamportClock) UnwrapTS(v value.Value) (Timestamp, error) {
	if lt, ok := v.(LamportTimestamp); ok {
		return lt, nil
	}
	i, ok := v.(value.Int)
	if !ok {
		return nil, errors.NewErrType("lamport clock requires an Int-encoded timestamp",
			errors.NewKV("got", v))
	}
	if i < 0 {
		return nil, errors.NewErrValue("lamport timestamp cannot be negative", errors.NewKV("value", int64(i)))
	}
	return LamportTimestamp(i), nil
}

// Update merges a foreign Lamport timestamp: counter = max(counter, x)+1.
func (c *LamportClock) Update(ts Timestamp) (Timestamp, error) {
	x, ok := ts.(LamportTimestamp)
	if !ok {
		return nil, errors.NewErrType("clock update requires a LamportTimestamp",
			errors.NewKV("got", ts))
	}
	if c.counter >= x {
		c.counter = c.counter + 1
	} else {
		c.counter = x + 1
	}
	return c.counter, nil
}

// Apply advances the clock unconditionally and returns the new local
// timestamp, used for local mutations that have no foreign timestamp to
// merge against (append-only local writes).
func (c *LamportClock) Apply() LamportTimestamp {
	c.counter++
	return c.counter
}
