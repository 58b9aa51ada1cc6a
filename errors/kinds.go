// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package errors

// Sentinel base errors for the five error kinds in spec.md §7. Use
// errors.Is against these to classify a failure without string matching.
var (
	ErrType     = New("type error")
	ErrValue    = New("value error")
	ErrMismatch = New("mismatch error")
	ErrCodec    = New("codec error")
	ErrUsage    = New("usage error")
)

// NewErrType reports an argument violating the declared Value/bytes/integer
// contract, e.g. a Clock fed a foreign Timestamp implementation.
func NewErrType(reason string, kvs ...KV) error {
	return Wrap(reason, ErrType, kvs...)
}

// NewErrValue reports an in-domain-type argument that is out of range,
// e.g. a negative Counter amount or an empty item uuid.
func NewErrValue(reason string, kvs ...KV) error {
	return Wrap(reason, ErrValue, kvs...)
}

// NewErrMismatchedClockUUID reports a StateUpdate whose clock uuid does not
// match the receiving CRDT's clock uuid.
func NewErrMismatchedClockUUID(want, got []byte) error {
	return Wrap("state update clock uuid does not match CRDT", ErrMismatch,
		NewKV("want", string(want)), NewKV("got", string(got)))
}

// NewErrCodec reports truncated or malformed bytes on unpack.
func NewErrCodec(reason string, kvs ...KV) error {
	return Wrap(reason, ErrCodec, kvs...)
}

// NewErrUsage reports an operation that requires a referenced item which is
// not present, e.g. put_before(x) where x has no position yet.
func NewErrUsage(reason string, kvs ...KV) error {
	return Wrap(reason, ErrUsage, kvs...)
}
