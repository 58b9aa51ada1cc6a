// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package crdt_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/crdt"
	"github.com/sourcenetwork/crdt/value"
)

func TestListenersFireInRegistrationOrderBeforeApply(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))

	var order []string
	c.AddListener(func(u crdt.StateUpdate) error {
		order = append(order, "first")
		require.Equal(t, int64(0), c.Read(), "listener fires before the mutation is applied")
		return nil
	})
	c.AddListener(func(u crdt.StateUpdate) error {
		order = append(order, "second")
		return nil
	})

	_, err := c.Increase(5, value.String("alice"))
	require.NoError(t, err)

	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, int64(5), c.Read())
}

func TestListenerErrorAbortsApplyLeavingStateUnchanged(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	boom := errors.New("boom")
	c.AddListener(func(u crdt.StateUpdate) error {
		return boom
	})

	_, err := c.Increase(5, value.String("alice"))
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(0), c.Read())
}

func TestListenerRemovalStopsFutureDispatch(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	calls := 0
	h := c.AddListener(func(u crdt.StateUpdate) error {
		calls++
		return nil
	})

	_, err := c.Increase(1, value.String("alice"))
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	c.RemoveListener(h)
	_, err = c.Increase(1, value.String("alice"))
	require.NoError(t, err)
	require.Equal(t, 1, calls, "removed listener must not fire again")
}

func TestListenerAddedDuringDispatchDoesNotFireForInFlightEvent(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	var secondCalls int
	c.AddListener(func(u crdt.StateUpdate) error {
		c.AddListener(func(u crdt.StateUpdate) error {
			secondCalls++
			return nil
		})
		return nil
	})

	_, err := c.Increase(1, value.String("alice"))
	require.NoError(t, err)
	require.Equal(t, 0, secondCalls, "listener registered mid-dispatch must not fire for the in-flight event")

	_, err = c.Increase(1, value.String("alice"))
	require.NoError(t, err)
	require.Equal(t, 1, secondCalls)
}

func TestListenerPanicIsConvertedToErrorAndAbortsApply(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	c.AddListener(func(u crdt.StateUpdate) error {
		panic("listener exploded")
	})

	_, err := c.Increase(1, value.String("alice"))
	require.Error(t, err)
	require.Equal(t, int64(0), c.Read())
}
