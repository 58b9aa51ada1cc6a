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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/crdt"
	"github.com/sourcenetwork/crdt/value"
)

func TestCounterConvergesAcrossReplicasRegardlessOfOrder(t *testing.T) {
	a := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	b := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))

	u1, err := a.Increase(3, value.String("alice"))
	require.NoError(t, err)
	u2, err := a.Increase(4, value.String("bob"))
	require.NoError(t, err)

	require.NoError(t, b.Update(u2))
	require.NoError(t, b.Update(u1))

	require.Equal(t, a.Read(), b.Read())
	require.Equal(t, int64(7), a.Read())
}

func TestCounterUpdateIsIdempotent(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	u, err := c.Increase(5, value.String("alice"))
	require.NoError(t, err)
	require.NoError(t, c.Update(u))
	require.NoError(t, c.Update(u))
	require.Equal(t, int64(5), c.Read())
}

func TestCounterRejectsNonPositiveIncrease(t *testing.T) {
	c := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	_, err := c.Increase(0, value.String("alice"))
	require.Error(t, err)
}

func TestCounterRejectsMismatchedClockUUID(t *testing.T) {
	a := crdt.NewCounter(clock.NewLamportClock([]byte("doc-1")))
	b := crdt.NewCounter(clock.NewLamportClock([]byte("doc-2")))
	u, err := a.Increase(1, value.String("alice"))
	require.NoError(t, err)
	err = b.Update(u)
	require.Error(t, err)
}

func TestPNCounterReadIsPositiveMinusNegative(t *testing.T) {
	c := crdt.NewPNCounter(clock.NewLamportClock([]byte("doc-1")))
	_, err := c.Increase(10, value.String("alice"))
	require.NoError(t, err)
	_, err = c.Decrease(4, value.String("alice"))
	require.NoError(t, err)
	require.Equal(t, int64(6), c.Read())
}

func TestPNCounterRejectsZeroDelta(t *testing.T) {
	c := crdt.NewPNCounter(clock.NewLamportClock([]byte("doc-1")))
	_, err := c.Increase(0, value.String("alice"))
	require.Error(t, err)
}

func TestPNCounterConvergesConcurrentIncreaseAndDecrease(t *testing.T) {
	a := crdt.NewPNCounter(clock.NewLamportClock([]byte("doc-1")))
	b := crdt.NewPNCounter(clock.NewLamportClock([]byte("doc-1")))

	u1, err := a.Increase(10, value.String("alice"))
	require.NoError(t, err)
	u2, err := a.Decrease(3, value.String("alice"))
	require.NoError(t, err)

	require.NoError(t, b.Update(u2))
	require.NoError(t, b.Update(u1))

	require.Equal(t, a.Read(), b.Read())
	require.Equal(t, int64(7), a.Read())
}

func TestCounterSetSumsIndependentlyKeyedCounters(t *testing.T) {
	clk := clock.NewLamportClock([]byte("doc-1"))
	cs := crdt.NewCounterSet(clk)

	_, err := cs.Increase(value.String("replica-a"), 5, value.String("alice"))
	require.NoError(t, err)
	_, err = cs.Increase(value.String("replica-b"), 2, value.String("bob"))
	require.NoError(t, err)
	_, err = cs.Decrease(value.String("replica-a"), 1, value.String("alice"))
	require.NoError(t, err)

	require.Equal(t, int64(6), cs.Read())
}

func TestCounterSetConvergesAcrossReplicas(t *testing.T) {
	clkA := clock.NewLamportClock([]byte("doc-1"))
	a := crdt.NewCounterSet(clkA)
	b := crdt.NewCounterSet(clock.NewLamportClock([]byte("doc-1")))

	u1, err := a.Increase(value.String("replica-a"), 5, value.String("alice"))
	require.NoError(t, err)
	u2, err := a.Increase(value.String("replica-b"), 9, value.String("bob"))
	require.NoError(t, err)

	require.NoError(t, b.Update(u2))
	require.NoError(t, b.Update(u1))

	require.Equal(t, a.Read(), b.Read())
	require.Equal(t, int64(14), a.Read())
}
