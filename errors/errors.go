// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package errors wraps github.com/go-errors/errors so every error raised
// by this module carries a stack trace and a stable, greppable message.
package errors

import (
	goerrors "github.com/go-errors/errors"
)

// KV is a single structured key/value pair attached to an error message.
type KV struct {
	Key   string
	Value any
}

// NewKV builds a KV pair for use with New and Wrap.
func NewKV(key string, value any) KV {
	return KV{Key: key, Value: value}
}

// New creates an error with the supplied message and any structured context.
func New(message string, kvs ...KV) error {
	return goerrors.New(appendKVs(message, kvs))
}

// Wrap annotates err with message and structured context, preserving err
// for errors.Is/errors.As.
func Wrap(message string, err error, kvs ...KV) error {
	if err == nil {
		return nil
	}
	return goerrors.WrapPrefix(err, appendKVs(message, kvs), 0)
}

// Is is a passthrough to the standard library's errors.Is.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As is a passthrough to the standard library's errors.As.
func As(err error, target any) bool {
	return goerrors.As(err, target)
}

func appendKVs(message string, kvs []KV) string {
	if len(kvs) == 0 {
		return message
	}
	out := message
	for _, kv := range kvs {
		out += " " + kv.Key + ":"
		out += stringify(kv.Value)
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmtStringer); ok {
		return s.String()
	}
	return goerrors.Errorf("%v", v).Error()
}

type fmtStringer interface {
	String() string
}
