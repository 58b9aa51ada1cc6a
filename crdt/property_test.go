// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// This file exercises spec.md §8's universal properties (idempotence,
// commutativity, associativity) across randomized fuzz seeds, generated
// with github.com/bxcodec/faker the same way the teacher's fixture
// generators lean on it for randomized struct fields rather than
// hand-rolled random strings.
package crdt_test

import (
	"testing"

	"github.com/bxcodec/faker/v3"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/crdt"
	"github.com/sourcenetwork/crdt/value"
)

type fuzzSeed struct {
	WriterA string `faker:"username"`
	WriterB string `faker:"username"`
	Member  string `faker:"first_name"`
	Amount  int    `faker:"boundary_start=1, boundary_end=50"`
}

func newFuzzSeed(t *testing.T) fuzzSeed {
	t.Helper()
	var s fuzzSeed
	require.NoError(t, faker.FakeData(&s))
	if s.Amount < 1 {
		s.Amount = 1
	}
	return s
}

func TestCounterUniversalPropertiesUnderRandomSeeds(t *testing.T) {
	for i := 0; i < 20; i++ {
		seed := newFuzzSeed(t)
		clkUUID := []byte("fuzz-doc")

		idempotent := crdt.NewCounter(clock.NewLamportClock(clkUUID))
		u, err := idempotent.Increase(int64(seed.Amount), value.String(seed.WriterA))
		require.NoError(t, err)
		require.NoError(t, idempotent.Update(u))
		require.Equal(t, int64(seed.Amount), idempotent.Read(), "update(d); update(d) must equal update(d)")

		a := crdt.NewCounter(clock.NewLamportClock(clkUUID))
		b := crdt.NewCounter(clock.NewLamportClock(clkUUID))
		u1, err := a.Increase(int64(seed.Amount), value.String(seed.WriterA))
		require.NoError(t, err)
		u2, err := a.Increase(int64(seed.Amount)+1, value.String(seed.WriterB))
		require.NoError(t, err)

		require.NoError(t, b.Update(u2))
		require.NoError(t, b.Update(u1))
		require.Equal(t, a.Read(), b.Read(), "commutativity: order of application must not affect read()")
	}
}

func TestGSetUniversalPropertiesUnderRandomSeeds(t *testing.T) {
	for i := 0; i < 20; i++ {
		seed := newFuzzSeed(t)
		clkUUID := []byte("fuzz-doc")

		idempotent := crdt.NewGSet(clock.NewLamportClock(clkUUID))
		u, err := idempotent.Add(value.String(seed.Member))
		require.NoError(t, err)
		require.NoError(t, idempotent.Update(u))
		require.Equal(t, sortedStrings(idempotent.Read()), sortedStrings([]value.Value{value.String(seed.Member)}))

		a := crdt.NewGSet(clock.NewLamportClock(clkUUID))
		b := crdt.NewGSet(clock.NewLamportClock(clkUUID))
		c := crdt.NewGSet(clock.NewLamportClock(clkUUID))

		u1, err := a.Add(value.String(seed.WriterA))
		require.NoError(t, err)
		u2, err := a.Add(value.String(seed.WriterB))
		require.NoError(t, err)
		u3, err := a.Add(value.String(seed.Member))
		require.NoError(t, err)

		// b applies in 1,2,3 order; c applies in 3,2,1 order.
		require.NoError(t, b.Update(u1))
		require.NoError(t, b.Update(u2))
		require.NoError(t, b.Update(u3))

		require.NoError(t, c.Update(u3))
		require.NoError(t, c.Update(u2))
		require.NoError(t, c.Update(u1))

		require.Equal(t, sortedStrings(b.Read()), sortedStrings(c.Read()), "associativity across a three-delta replay")
	}
}

func TestLWWRegisterUniversalPropertiesUnderRandomSeeds(t *testing.T) {
	for i := 0; i < 20; i++ {
		seed := newFuzzSeed(t)
		clkUUID := []byte("fuzz-doc")

		r := crdt.NewLWWRegister(clock.NewLamportClock(clkUUID), value.String("name"))
		u, err := r.Write(value.String(seed.Member), value.String(seed.WriterA))
		require.NoError(t, err)
		require.NoError(t, r.Update(u))
		v, ok := r.Read()
		require.True(t, ok)
		require.Equal(t, value.String(seed.Member), v)

		a := crdt.NewLWWRegister(clock.NewLamportClock(clkUUID), value.String("name"))
		b := crdt.NewLWWRegister(clock.NewLamportClock(clkUUID), value.String("name"))

		ts := clock.LamportTimestamp(7)
		fromA := crdtStateUpdate(a.ClockUUID(), ts, value.Sequence{value.String(seed.WriterA), value.String("va")})
		fromB := crdtStateUpdate(a.ClockUUID(), ts, value.Sequence{value.String(seed.WriterB), value.String("vb")})

		require.NoError(t, a.Update(fromA))
		require.NoError(t, a.Update(fromB))
		require.NoError(t, b.Update(fromB))
		require.NoError(t, b.Update(fromA))

		va, _ := a.Read()
		vb, _ := b.Read()
		require.Equal(t, va, vb, "commutativity: concurrent-write tie-break must agree regardless of application order")
	}
}
