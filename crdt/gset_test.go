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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/crdt"
	"github.com/sourcenetwork/crdt/value"
)

func sortedStrings(vs []value.Value) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, string(v.(value.String)))
	}
	sort.Strings(out)
	return out
}

func TestGSetAddIsIdempotent(t *testing.T) {
	s := crdt.NewGSet(clock.NewLamportClock([]byte("doc-1")))
	u, err := s.Add(value.String("a"))
	require.NoError(t, err)
	require.NoError(t, s.Update(u))
	require.Equal(t, []string{"a"}, sortedStrings(s.Read()))
}

func TestGSetConvergesByUnion(t *testing.T) {
	a := crdt.NewGSet(clock.NewLamportClock([]byte("doc-1")))
	b := crdt.NewGSet(clock.NewLamportClock([]byte("doc-1")))

	u1, err := a.Add(value.String("a"))
	require.NoError(t, err)
	u2, err := a.Add(value.String("b"))
	require.NoError(t, err)

	require.NoError(t, b.Update(u2))
	require.NoError(t, b.Update(u1))

	require.Equal(t, sortedStrings(a.Read()), sortedStrings(b.Read()))
	require.Equal(t, []string{"a", "b"}, sortedStrings(a.Read()))
}

func TestORSetObserveAndRemove(t *testing.T) {
	s := crdt.NewORSet(clock.NewLamportClock([]byte("doc-1")))
	_, err := s.Observe(value.String("a"))
	require.NoError(t, err)
	has, err := s.Contains(value.String("a"))
	require.NoError(t, err)
	require.True(t, has)

	_, err = s.Remove(value.String("a"))
	require.NoError(t, err)
	has, err = s.Contains(value.String("a"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestORSetTieAtEqualTimestampFavorsObserve(t *testing.T) {
	clk := clock.NewLamportClock([]byte("doc-1"))
	s := crdt.NewORSet(clk)

	ts := clock.LamportTimestamp(5)
	observe := crdtStateUpdate(s.ClockUUID(), ts, value.Sequence{value.String("observe"), value.String("x")})
	remove := crdtStateUpdate(s.ClockUUID(), ts, value.Sequence{value.String("remove"), value.String("x")})

	require.NoError(t, s.Update(remove))
	require.NoError(t, s.Update(observe))

	has, err := s.Contains(value.String("x"))
	require.NoError(t, err)
	require.True(t, has, "a tie between observe and remove at equal timestamp resolves to visible")
}

func TestORSetPreemptiveRemovalIsPermitted(t *testing.T) {
	s := crdt.NewORSet(clock.NewLamportClock([]byte("doc-1")))
	_, err := s.Remove(value.String("never-observed"))
	require.NoError(t, err)
	has, err := s.Contains(value.String("never-observed"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestORSetConcurrentObserveRemoveConverges(t *testing.T) {
	a := crdt.NewORSet(clock.NewLamportClock([]byte("doc-1")))
	b := crdt.NewORSet(clock.NewLamportClock([]byte("doc-1")))

	uObs, err := a.Observe(value.String("x"))
	require.NoError(t, err)
	uRem, err := a.Remove(value.String("x"))
	require.NoError(t, err)

	require.NoError(t, b.Update(uRem))
	require.NoError(t, b.Update(uObs))

	hasA, err := a.Contains(value.String("x"))
	require.NoError(t, err)
	hasB, err := b.Contains(value.String("x"))
	require.NoError(t, err)
	require.Equal(t, hasA, hasB)
}

// crdtStateUpdate is a small local helper for constructing a hand-built
// StateUpdate against a concrete clock uuid, used to exercise tie-break
// behavior that the constructor methods cannot produce deterministically.
func crdtStateUpdate(clockUUID []byte, ts clock.Timestamp, payload value.Value) crdt.StateUpdate {
	return crdt.StateUpdate{ClockUUID: clockUUID, TS: ts, Payload: payload}
}
