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

	"github.com/sourcenetwork/crdt/errors"
)

// Sequence is a homogeneous or heterogeneous ordered collection of
// Values, used to carry composite payloads such as MVRegister's sorted
// multiset or tuple-shaped deltas (spec.md §4.2/§4.11).
type Sequence []Value

func (Sequence) Tag() Tag { return TagSequence }

// Serialize concatenates a (tag byte, length-prefixed bytes) frame per
// element so heterogeneous sequences round-trip without ambiguity.
func (s Sequence) Serialize() ([]byte, error) {
	out := make([]byte, 0, 16*len(s))
	for _, elem := range s {
		eb, err := elem.Serialize()
		if err != nil {
			return nil, errors.Wrap("failed to serialize sequence element", err)
		}
		frame := make([]byte, 1+4)
		frame[0] = byte(elem.Tag())
		binary.BigEndian.PutUint32(frame[1:], uint32(len(eb)))
		out = append(out, frame...)
		out = append(out, eb...)
	}
	return out, nil
}

func (s Sequence) Hash() (string, error) { return hashSerialized(s) }

// UserFactory resolves a stable type_tag id to a zero-value decoder able
// to Unpack previously-Packed bytes for a custom Value type. Passed into
// Codec.Decode as the injection map named in spec.md §4.11.
type UserFactory interface {
	Unpack(b []byte) (Value, error)
}

// User carries a custom Value type through the core as an opaque
// (type_tag, bytes) pair. The core never interprets Payload itself; it
// is handed back to the matching UserFactory on decode.
type User struct {
	TypeTag string
	Payload []byte
}

func (User) Tag() Tag { return TagUser }

func (u User) Serialize() ([]byte, error) {
	out := make([]byte, 4, 4+len(u.TypeTag)+len(u.Payload))
	binary.BigEndian.PutUint32(out, uint32(len(u.TypeTag)))
	out = append(out, []byte(u.TypeTag)...)
	out = append(out, u.Payload...)
	return out, nil
}

func (u User) Hash() (string, error) { return hashSerialized(u) }
