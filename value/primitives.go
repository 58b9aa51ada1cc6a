// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package value

import (
	"encoding/binary"
	"math"

	"github.com/shopspring/decimal"

	"github.com/sourcenetwork/crdt/errors"
)

// None is the sentinel "absent value" variant, used e.g. as the LWWMap
// unset payload (spec.md §4.2).
type None struct{}

func (None) Tag() Tag                  { return TagNone }
func (None) Serialize() ([]byte, error) { return []byte{}, nil }
func (n None) Hash() (string, error)   { return hashSerialized(n) }

// IsNone reports whether v is the None sentinel.
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}

// Int wraps a signed integer payload.
type Int int64

func (Int) Tag() Tag { return TagInt }

func (i Int) Serialize() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i))
	return buf, nil
}

func (i Int) Hash() (string, error) { return hashSerialized(i) }

// Float wraps an IEEE-754 double-precision payload.
type Float float64

func (Float) Tag() Tag { return TagFloat }

func (f Float) Serialize() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(float64(f)))
	return buf, nil
}

func (f Float) Hash() (string, error) { return hashSerialized(f) }

// Decimal wraps an arbitrary-precision decimal payload, used for FIArray
// fractional indices (spec.md §4.8). Canonical form is the decimal's
// normalized text representation, matching the Codec contract in §4.11.
type Decimal struct {
	decimal.Decimal
}

// NewDecimal wraps d as a Value.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

func (Decimal) Tag() Tag { return TagDecimal }

func (d Decimal) Serialize() ([]byte, error) {
	return []byte(d.Decimal.String()), nil
}

func (d Decimal) Hash() (string, error) { return hashSerialized(d) }

// ParseDecimal parses a canonical decimal text form back into a Decimal Value.
func ParseDecimal(b []byte) (Decimal, error) {
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return Decimal{}, errors.NewErrCodec("malformed decimal literal", errors.NewKV("text", string(b)))
	}
	return Decimal{Decimal: d}, nil
}

// String wraps a UTF-8 string payload.
type String string

func (String) Tag() Tag                   { return TagString }
func (s String) Serialize() ([]byte, error) { return []byte(s), nil }
func (s String) Hash() (string, error)    { return hashSerialized(s) }

// Bytes wraps a raw byte-sequence payload.
type Bytes []byte

func (Bytes) Tag() Tag                   { return TagBytes }
func (b Bytes) Serialize() ([]byte, error) { return []byte(b), nil }
func (b Bytes) Hash() (string, error)    { return hashSerialized(b) }
