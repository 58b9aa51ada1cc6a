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

import (
	"hash/fnv"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/value"
)

// appendIncrement is the fixed constant spec.md §4.8 names for the
// append fast-path: "add a fixed tiny constant (specifically 10^-20) to
// the current last index", instead of dividing remaining space.
var appendIncrement = decimal.New(1, -20)

var half = decimal.NewFromFloat(0.5)

func average(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b).Mul(half)
}

// deterministicRand builds a PRNG seeded from (writer, ts) so that index
// perturbation is a pure function of delta-visible state -- the §9 open
// question ("seeded vs. true randomness... not documented") is resolved
// here in favor of a seeded, reproducible offset (SPEC_FULL.md §C.2).
func deterministicRand(clk clock.Clock, writer value.Value, ts clock.Timestamp) (*rand.Rand, error) {
	h := fnv.New64a()
	if wb, err := writer.Serialize(); err == nil {
		h.Write(wb)
	} else {
		return nil, err
	}
	if tb, err := clk.WrapTS(ts).Serialize(); err == nil {
		h.Write(tb)
	} else {
		return nil, err
	}
	return rand.New(rand.NewSource(int64(h.Sum64()))), nil
}

// randomOffset perturbs mid by a bounded random amount so two replicas
// inserting concurrently at the same logical slot almost certainly
// produce different indices, while guaranteeing the result stays
// strictly between lo and hi.
func randomOffset(rnd *rand.Rand, lo, mid, hi decimal.Decimal) decimal.Decimal {
	gapLo := mid.Sub(lo)
	gapHi := hi.Sub(mid)
	gap := gapLo
	if gapHi.LessThan(gap) {
		gap = gapHi
	}
	if !gap.IsPositive() {
		return mid
	}
	maxOffset := gap.Mul(decimal.NewFromFloat(0.01))
	r := rnd.Float64()*2 - 1 // [-1, 1)
	offset := maxOffset.Mul(decimal.NewFromFloat(r))
	candidate := mid.Add(offset)
	if candidate.LessThanOrEqual(lo) || candidate.GreaterThanOrEqual(hi) {
		return mid
	}
	return candidate
}

// generateBetween produces an index strictly between lo and hi, with a
// bounded random offset from the midpoint.
func generateBetween(rnd *rand.Rand, lo, hi decimal.Decimal) decimal.Decimal {
	mid := average(lo, hi)
	return randomOffset(rnd, lo, mid, hi)
}
