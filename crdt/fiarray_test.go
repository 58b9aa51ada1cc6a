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

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/crdt"
	"github.com/sourcenetwork/crdt/value"
)

// fiItemUUID extracts the item_uuid an FIArray mutator assigned to a
// newly-created item from the StateUpdate it returned: the payload is the
// embedded LWWMap shape (op, item_uuid, item, writer), spec.md §4.8.
func fiItemUUID(t *testing.T, u crdt.StateUpdate) []byte {
	t.Helper()
	seq, ok := u.Payload.(value.Sequence)
	require.True(t, ok)
	require.Len(t, seq, 4)
	id, ok := seq[1].(value.Bytes)
	require.True(t, ok)
	return []byte(id)
}

func TestFIArrayPutFirstAndPutLastOrderByIndex(t *testing.T) {
	a := crdt.NewFIArray(clock.NewLamportClock([]byte("doc-1")))

	_, err := a.PutFirst(value.String("first"), value.String("alice"))
	require.NoError(t, err)
	_, err = a.PutLast(value.String("last"), value.String("alice"))
	require.NoError(t, err)

	require.Equal(t, []value.Value{value.String("first"), value.String("last")}, a.Read())
}

func TestFIArrayDeleteRemovesItemFromReadView(t *testing.T) {
	a := crdt.NewFIArray(clock.NewLamportClock([]byte("doc-1")))

	u, err := a.PutFirst(value.String("only"), value.String("alice"))
	require.NoError(t, err)

	_, err = a.Delete(fiItemUUID(t, u), value.String("alice"))
	require.NoError(t, err)

	require.Empty(t, a.Read())
}

func TestFIArrayConcurrentInterleaveConvergesAcrossReplicas(t *testing.T) {
	clkUUID := []byte("doc-1")
	a := crdt.NewFIArray(clock.NewLamportClock(clkUUID))
	b := crdt.NewFIArray(clock.NewLamportClock(clkUUID))

	uFirst, err := a.PutFirst(value.String("first"), value.String("alice"))
	require.NoError(t, err)
	require.NoError(t, b.Update(uFirst))
	uLast, err := a.PutLast(value.String("last"), value.String("alice"))
	require.NoError(t, err)
	require.NoError(t, b.Update(uLast))

	lastID := fiItemUUID(t, uLast)

	// a concurrently puts after "last"; b concurrently puts before "last".
	uA, err := a.PutAfter(value.String("A"), lastID, value.String("alice"))
	require.NoError(t, err)
	uB, err := b.PutBefore(value.String("B"), lastID, value.String("bob"))
	require.NoError(t, err)

	require.NoError(t, a.Update(uB))
	require.NoError(t, b.Update(uA))

	require.Equal(t, a.Read(), b.Read())
	require.Len(t, a.Read(), 4)
}

func TestFIArrayMoveItemRelocatesByNewIndex(t *testing.T) {
	a := crdt.NewFIArray(clock.NewLamportClock([]byte("doc-1")))

	uX, err := a.PutFirst(value.String("x"), value.String("alice"))
	require.NoError(t, err)
	_, err = a.PutLast(value.String("y"), value.String("alice"))
	require.NoError(t, err)

	xID := fiItemUUID(t, uX)
	newIndex := decimal.NewFromFloat(0.99)
	_, err = a.MoveItem(xID, value.String("alice"), &newIndex, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []value.Value{value.String("y"), value.String("x")}, a.Read())
}

func TestFIArrayNormalizeRedistributesIndicesWithoutChangingOrder(t *testing.T) {
	a := crdt.NewFIArray(clock.NewLamportClock([]byte("doc-1")))

	for i := 0; i < 5; i++ {
		_, err := a.PutLast(value.Int(i), value.String("alice"))
		require.NoError(t, err)
	}
	before := a.Read()

	updates, err := a.Normalize(decimal.NewFromInt(1), value.String("alice"))
	require.NoError(t, err)
	require.Len(t, updates, 5)
	require.Equal(t, before, a.Read())
}
