// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package codec implements spec.md §4.11: a recursive, injection-friendly
// canonical encode/decode pair over the value.Value sum type. It mirrors
// core/crdt's use of github.com/ugorji/go/codec for Delta marshaling in
// the teacher, but runs the CBOR handle in Canonical mode so the same
// logical Value always produces the same bytes on any implementation,
// which checksums and Merkle trees (crdt/history.go) depend on.
package codec

import (
	"bytes"

	cbor "github.com/ugorji/go/codec"

	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

// node is the canonical wire shape, selected by T: S holds a sequence's
// children, B holds a primitive's serialized bytes, and a user type sets
// both U (its type tag) and B (its payload).
type node struct {
	T uint8
	B []byte `codec:",omitempty"`
	S []node `codec:",omitempty"`
	U string `codec:",omitempty"`
}

func handle() *cbor.CborHandle {
	h := &cbor.CborHandle{}
	h.Canonical = true
	return h
}

func toNode(v value.Value) (node, error) {
	if v == nil {
		v = value.None{}
	}
	switch vv := v.(type) {
	case value.Sequence:
		children := make([]node, 0, len(vv))
		for _, elem := range vv {
			n, err := toNode(elem)
			if err != nil {
				return node{}, err
			}
			children = append(children, n)
		}
		return node{T: uint8(value.TagSequence), S: children}, nil
	case value.User:
		return node{T: uint8(value.TagUser), U: vv.TypeTag, B: vv.Payload}, nil
	default:
		b, err := v.Serialize()
		if err != nil {
			return node{}, errors.Wrap("failed to serialize value", err)
		}
		return node{T: uint8(v.Tag()), B: b}, nil
	}
}

func fromNode(n node, inject map[string]value.UserFactory) (value.Value, error) {
	switch value.Tag(n.T) {
	case value.TagNone:
		return value.None{}, nil
	case value.TagInt:
		return decodeInt(n.B)
	case value.TagFloat:
		return decodeFloat(n.B)
	case value.TagDecimal:
		return value.ParseDecimal(n.B)
	case value.TagString:
		return value.String(n.B), nil
	case value.TagBytes:
		return value.Bytes(n.B), nil
	case value.TagSequence:
		seq := make(value.Sequence, 0, len(n.S))
		for _, child := range n.S {
			elem, err := fromNode(child, inject)
			if err != nil {
				return nil, err
			}
			seq = append(seq, elem)
		}
		return seq, nil
	case value.TagUser:
		factory, ok := inject[n.U]
		if !ok {
			return nil, errors.NewErrCodec("no factory registered for user type tag",
				errors.NewKV("type_tag", n.U))
		}
		return factory.Unpack(n.B)
	default:
		return nil, errors.NewErrCodec("unknown type tag in encoded value",
			errors.NewKV("tag", n.T))
	}
}

// Encode produces the canonical byte encoding of v. Equal logical values
// always produce identical bytes, which is the property history.go relies
// on for checksums and Merkle leaves.
func Encode(v value.Value) ([]byte, error) {
	n, err := toNode(v)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(nil)
	enc := cbor.NewEncoder(buf, handle())
	if err := enc.Encode(n); err != nil {
		return nil, errors.Wrap("failed to cbor-encode value", err)
	}
	return buf.Bytes(), nil
}

// Decode parses b back into a value.Value tree. inject resolves
// user-defined type tags to factories able to Unpack their payload; it
// may be nil if no user types are expected.
func Decode(b []byte, inject map[string]value.UserFactory) (value.Value, error) {
	if len(b) == 0 {
		return nil, errors.NewErrCodec("cannot decode empty byte sequence")
	}
	var n node
	dec := cbor.NewDecoderBytes(b, handle())
	if err := dec.Decode(&n); err != nil {
		return nil, errors.NewErrCodec("malformed cbor payload", errors.NewKV("cause", err.Error()))
	}
	if inject == nil {
		inject = map[string]value.UserFactory{}
	}
	return fromNode(n, inject)
}
