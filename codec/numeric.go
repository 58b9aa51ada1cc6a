// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package codec

import (
	"encoding/binary"
	"math"

	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

func decodeInt(b []byte) (value.Int, error) {
	if len(b) != 8 {
		return 0, errors.NewErrCodec("truncated integer payload", errors.NewKV("len", len(b)))
	}
	return value.Int(int64(binary.BigEndian.Uint64(b))), nil
}

func decodeFloat(b []byte) (value.Float, error) {
	if len(b) != 8 {
		return 0, errors.NewErrCodec("truncated float payload", errors.NewKV("len", len(b)))
	}
	return value.Float(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
}
