// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package codec_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/codec"
	"github.com/sourcenetwork/crdt/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	b, err := codec.Encode(v)
	require.NoError(t, err)
	out, err := codec.Decode(b, nil)
	require.NoError(t, err)
	return out
}

func TestRoundTripPrimitives(t *testing.T) {
	cases := []value.Value{
		value.None{},
		value.Int(-123),
		value.Float(3.14159),
		value.NewDecimal(decimal.NewFromFloat(98.76)),
		value.String("hello world"),
		value.Bytes([]byte{0xde, 0xad, 0xbe, 0xef}),
	}
	for _, v := range cases {
		out := roundTrip(t, v)
		eq, err := value.Equal(v, out)
		require.NoError(t, err)
		require.True(t, eq, "round trip mismatch for %#v -> %#v", v, out)
	}
}

func TestRoundTripNestedSequence(t *testing.T) {
	v := value.Sequence{
		value.String("op"),
		value.Int(7),
		value.Sequence{value.Bytes([]byte{1, 2}), value.String("nested")},
	}
	out := roundTrip(t, v)
	eq, err := value.Equal(v, out)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestEncodeIsCanonicalAndDeterministic(t *testing.T) {
	v := value.Sequence{value.Int(1), value.String("a"), value.Bytes([]byte{9})}
	b1, err := codec.Encode(v)
	require.NoError(t, err)
	b2, err := codec.Encode(v)
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestDecodeEmptyBytesErrors(t *testing.T) {
	_, err := codec.Decode(nil, nil)
	require.Error(t, err)
}

func TestDecodeMalformedBytesErrors(t *testing.T) {
	_, err := codec.Decode([]byte{0xff, 0x00, 0x01}, nil)
	require.Error(t, err)
}

type upperCaseFactory struct{}

func (upperCaseFactory) Unpack(b []byte) (value.Value, error) {
	return value.String(b), nil
}

func TestUserTypeRoundTripWithInjectedFactory(t *testing.T) {
	u := value.User{TypeTag: "upper", Payload: []byte("ABC")}
	b, err := codec.Encode(u)
	require.NoError(t, err)

	out, err := codec.Decode(b, map[string]value.UserFactory{"upper": upperCaseFactory{}})
	require.NoError(t, err)
	require.Equal(t, value.String("ABC"), out)
}

func TestUserTypeDecodeFailsWithoutFactory(t *testing.T) {
	u := value.User{TypeTag: "missing", Payload: []byte("x")}
	b, err := codec.Encode(u)
	require.NoError(t, err)

	_, err = codec.Decode(b, nil)
	require.Error(t, err)
}
