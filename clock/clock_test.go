// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

package clock_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/value"
)

func TestLamportClockDefaultTSIsZero(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))
	require.Equal(t, clock.LamportTimestamp(0), c.DefaultTS())
	require.Equal(t, clock.LamportTimestamp(0), c.Read())
}

func TestLamportClockUpdateTakesMaxPlusOne(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))

	ts, err := c.Update(clock.LamportTimestamp(5))
	require.NoError(t, err)
	require.Equal(t, clock.LamportTimestamp(6), ts)
	require.Equal(t, clock.LamportTimestamp(6), c.Read())

	// updating with something lower than the local counter still strictly
	// advances local state, using local counter as the max.
	ts, err = c.Update(clock.LamportTimestamp(2))
	require.NoError(t, err)
	require.Equal(t, clock.LamportTimestamp(7), ts)
}

func TestLamportClockUpdateRejectsWrongType(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))
	_, err := c.Update(fakeTimestamp{})
	require.Error(t, err)
}

func TestLamportClockApplyAdvancesUnconditionally(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))
	a := c.Apply()
	b := c.Apply()
	require.True(t, b > a)
}

func TestWrapUnwrapTSRoundTrip(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))
	ts := clock.LamportTimestamp(42)
	wrapped := c.WrapTS(ts)
	require.Equal(t, value.Int(42), wrapped)

	unwrapped, err := c.UnwrapTS(wrapped)
	require.NoError(t, err)
	require.Equal(t, ts, unwrapped)
}

func TestUnwrapTSRejectsNegative(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))
	_, err := c.UnwrapTS(value.Int(-1))
	require.Error(t, err)
}

func TestUnwrapTSRejectsNonInt(t *testing.T) {
	c := clock.NewLamportClock([]byte("uuid-a"))
	_, err := c.UnwrapTS(value.String("nope"))
	require.Error(t, err)
}

func TestIsLaterAndAreConcurrent(t *testing.T) {
	a := clock.LamportTimestamp(1)
	b := clock.LamportTimestamp(2)
	require.True(t, clock.IsLater(b, a))
	require.False(t, clock.IsLater(a, b))
	require.False(t, clock.AreConcurrent(a, b))
}

func TestCompareCollapsesToSignedInt(t *testing.T) {
	a := clock.LamportTimestamp(1)
	b := clock.LamportTimestamp(2)
	require.Equal(t, -1, clock.Compare(a, b))
	require.Equal(t, 1, clock.Compare(b, a))
	require.Equal(t, 0, clock.Compare(a, a))
}

func TestUUIDIsStable(t *testing.T) {
	c := clock.NewLamportClock([]byte("fixed-uuid"))
	require.Equal(t, []byte("fixed-uuid"), c.UUID())
}

// fakeTimestamp is a minimal clock.Timestamp used only to exercise
// LamportClock's type-mismatch rejection path.
type fakeTimestamp struct{}

func (fakeTimestamp) Tag() value.Tag                     { return value.TagInt }
func (fakeTimestamp) Serialize() ([]byte, error)          { return []byte{0}, nil }
func (fakeTimestamp) Hash() (string, error)               { return "", nil }
func (fakeTimestamp) OrderAgainst(clock.Timestamp) clock.Order { return clock.Equal }
