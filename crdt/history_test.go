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

	"github.com/sourcenetwork/immutable"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/crdt"
	"github.com/sourcenetwork/crdt/value"
)

func TestCounterHistoryReplayReconstructsEquivalentState(t *testing.T) {
	clkUUID := []byte("doc-1")
	a := crdt.NewCounter(clock.NewLamportClock(clkUUID))

	_, err := a.Increase(3, value.String("alice"))
	require.NoError(t, err)
	_, err = a.Increase(4, value.String("bob"))
	require.NoError(t, err)

	fresh := crdt.NewCounter(clock.NewLamportClock(clkUUID))
	for _, u := range a.History(crdt.HistoryOpts{}) {
		require.NoError(t, fresh.Update(u))
	}

	require.Equal(t, a.Read(), fresh.Read())

	wantCS, err := a.Checksums(crdt.HistoryOpts{})
	require.NoError(t, err)
	gotCS, err := fresh.Checksums(crdt.HistoryOpts{})
	require.NoError(t, err)
	require.Equal(t, wantCS, gotCS)
}

func TestChecksumsDivergeOnDifferentDeltaSets(t *testing.T) {
	clkUUID := []byte("doc-1")
	a := crdt.NewCounter(clock.NewLamportClock(clkUUID))
	b := crdt.NewCounter(clock.NewLamportClock(clkUUID))

	_, err := a.Increase(3, value.String("alice"))
	require.NoError(t, err)
	_, err = b.Increase(4, value.String("alice"))
	require.NoError(t, err)

	csA, err := a.Checksums(crdt.HistoryOpts{})
	require.NoError(t, err)
	csB, err := b.Checksums(crdt.HistoryOpts{})
	require.NoError(t, err)
	require.NotEqual(t, csA, csB)
}

func TestMerkleSyncResolvesMissingLeavesAndConverges(t *testing.T) {
	clkUUID := []byte("doc-1")
	a := crdt.NewGSet(clock.NewLamportClock(clkUUID))
	b := crdt.NewGSet(clock.NewLamportClock(clkUUID))

	_, err := a.Add(value.String("d1"))
	require.NoError(t, err)
	u2, err := a.Add(value.String("d2"))
	require.NoError(t, err)
	u3, err := a.Add(value.String("d3"))
	require.NoError(t, err)

	// b starts with d2, d3 and an extra d4 that a has never seen.
	require.NoError(t, b.Update(u2))
	require.NoError(t, b.Update(u3))
	_, err = b.Add(value.String("d4"))
	require.NoError(t, err)

	aHist, err := a.GetMerkleHistory()
	require.NoError(t, err)
	bHist, err := b.GetMerkleHistory()
	require.NoError(t, err)

	aSession := crdt.NewMerkleSession(aHist)
	require.False(t, aSession.RootsMatch(bHist.Root))
	missingFromA := aSession.Missing(bHist.LeafIDs)
	require.Len(t, missingFromA, 1)

	bSession := crdt.NewMerkleSession(bHist)
	missingFromB := bSession.Missing(aHist.LeafIDs)
	require.Len(t, missingFromB, 1)

	// a is missing u4's packed leaf from b; apply it.
	packed := bHist.PackedByID[missingFromA[0]]
	u, err := crdt.UnpackStateUpdate(packed, a.Clock(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Update(u))

	// b is missing u1's packed leaf from a.
	packedFromA := aHist.PackedByID[missingFromB[0]]
	uFromA, err := crdt.UnpackStateUpdate(packedFromA, b.Clock(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Update(uFromA))

	require.ElementsMatch(t, a.Read(), b.Read())

	finalA, err := a.GetMerkleHistory()
	require.NoError(t, err)
	finalB, err := b.GetMerkleHistory()
	require.NoError(t, err)
	require.Equal(t, finalA.Root, finalB.Root)
}

func TestHistoryFiltersByTimestampRange(t *testing.T) {
	clk := clock.NewLamportClock([]byte("doc-1"))
	c := crdt.NewCounter(clk)

	_, err := c.Increase(1, value.String("alice"))
	require.NoError(t, err)
	_, err = c.Increase(2, value.String("alice"))
	require.NoError(t, err)
	_, err = c.Increase(3, value.String("alice"))
	require.NoError(t, err)

	full := c.History(crdt.HistoryOpts{})
	require.Len(t, full, 3)

	from := full[1].TS
	filtered := c.History(crdt.HistoryOpts{FromTS: immutable.Some(from)})
	require.Len(t, filtered, 2)
}
