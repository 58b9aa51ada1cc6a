// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package value implements the Serializable "Value" contract from
// spec.md §3: a closed set of primitive payload variants plus an escape
// hatch for user-defined types, all carrying deterministic serialization,
// a stable hash, and a total order over serialized form.
package value

import (
	mh "github.com/multiformats/go-multihash"

	"github.com/sourcenetwork/crdt/errors"
)

// Tag identifies a Value variant. Tag ids are part of the wire format
// (they participate in the heterogeneous total order) and must never be
// renumbered once released.
type Tag uint8

const (
	TagNone Tag = iota
	TagInt
	TagFloat
	TagDecimal
	TagString
	TagBytes
	TagSequence
	TagUser
)

// Value is the capability set every payload carrier must implement:
// deterministic serialization, a stable hash, and participation in the
// library-wide total order.
type Value interface {
	// Tag identifies which variant this is, for the heterogeneous total
	// order and for Codec dispatch.
	Tag() Tag

	// Serialize produces the canonical byte encoding of this value. Equal
	// logical values must always produce byte-identical output, on any
	// implementation, or checksums and Merkle trees across replicas will
	// disagree.
	Serialize() ([]byte, error)

	// Hash returns a stable content hash of the serialized form, encoded
	// as a multihash hex string.
	Hash() (string, error)
}

// Compare imposes the library-wide total order: compare (Tag, serialized
// bytes) lexicographically. This is used for every tie-break in the spec
// (LWW writer-id/value comparisons, MVRegister multiset sort, sibling
// ordering in CausalTree, and so on) so that all
// conforming implementations, regardless of language, agree on ordering.
func Compare(a, b Value) (int, error) {
	if a == nil && b == nil {
		return 0, nil
	}
	if a == nil {
		return -1, nil
	}
	if b == nil {
		return 1, nil
	}
	if a.Tag() != b.Tag() {
		if a.Tag() < b.Tag() {
			return -1, nil
		}
		return 1, nil
	}
	ab, err := a.Serialize()
	if err != nil {
		return 0, errors.Wrap("failed to serialize left operand for compare", err)
	}
	bb, err := b.Serialize()
	if err != nil {
		return 0, errors.Wrap("failed to serialize right operand for compare", err)
	}
	switch {
	case len(ab) < len(bb):
		return bytesCompare(ab, bb), nil
	default:
		return bytesCompare(ab, bb), nil
	}
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal under Compare.
func Equal(a, b Value) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// hashSerialized multihashes the canonical serialized bytes of v with
// SHA2-256, giving every Value variant the same stable-hash mechanics
// used for Merkle leaves (history.go) without re-deriving hashing logic
// per variant.
func hashSerialized(v Value) (string, error) {
	b, err := v.Serialize()
	if err != nil {
		return "", err
	}
	sum, err := mh.Sum(b, mh.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap("failed to multihash value", err)
	}
	return sum.HexString(), nil
}
