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

import "github.com/sourcenetwork/crdt/errors"

// recoverToError converts a recovered panic value from a listener
// callback into a regular error so it propagates to the update caller
// instead of crashing the replica (spec.md §7: "Listener exceptions
// propagate to the update caller and prevent the mutation").
func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrap("listener panicked", err)
	}
	return errors.New("listener panicked", errors.NewKV("value", r))
}
