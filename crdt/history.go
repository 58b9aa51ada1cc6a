// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// This file implements spec.md §4.10: history/checksums/Merkle sync,
// generically over any CRDT's applied-delta log. Content addressing
// reuses the same cid/multihash stack the teacher uses for its own
// merkle-dag block identifiers in net/peer.go.
package crdt

import (
	"sort"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/sourcenetwork/immutable"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/errors"
)

// HistoryOpts narrows history()/checksums() to a sub-range, the optional
// from_ts/until_ts/update_class parameters of spec.md §4.10. Option[T]
// comes from sourcenetwork/immutable, mirroring how the teacher's own
// events pipeline (db.Events().Updates) models optional values.
type HistoryOpts struct {
	FromTS      immutable.Option[clock.Timestamp]
	UntilTS     immutable.Option[clock.Timestamp]
	UpdateClass immutable.Option[string]
}

func (o HistoryOpts) includes(u StateUpdate) bool {
	if o.FromTS.HasValue() && clock.Compare(u.TS, o.FromTS.Value()) < 0 {
		return false
	}
	if o.UntilTS.HasValue() && clock.Compare(u.TS, o.UntilTS.Value()) > 0 {
		return false
	}
	if o.UpdateClass.HasValue() && u.Class() != o.UpdateClass.Value() {
		return false
	}
	return true
}

// filterHistory applies opts to a raw delta log, preserving order.
func filterHistory(deltas []StateUpdate, opts HistoryOpts) []StateUpdate {
	out := make([]StateUpdate, 0, len(deltas))
	for _, u := range deltas {
		if opts.includes(u) {
			out = append(out, u)
		}
	}
	return out
}

// Checksums summarizes a delta set per spec.md §4.10: count, a sum of a
// per-delta integer signature, and a SHA-256 digest over sorted packed
// deltas. Equal checksums over the same range imply identical delta sets
// with overwhelming probability.
type Checksums struct {
	Count int
	Sum   uint64
	Digest string
}

// calcChecksums computes Checksums over deltas, packing each with clk.
func calcChecksums(deltas []StateUpdate, clk clock.Clock) (Checksums, error) {
	packed := make([][]byte, 0, len(deltas))
	var sum uint64
	for _, u := range deltas {
		b, err := u.Pack(clk)
		if err != nil {
			return Checksums{}, errors.Wrap("failed to pack delta for checksum", err)
		}
		packed = append(packed, b)
		sig, err := mh.Sum(b, mh.SHA2_256, -1)
		if err != nil {
			return Checksums{}, errors.Wrap("failed to hash delta for checksum", err)
		}
		var deltaSig uint64
		for _, bb := range sig[:8] {
			deltaSig = deltaSig*31 + uint64(bb)
		}
		sum += deltaSig
	}
	sort.Slice(packed, func(i, j int) bool { return lessBytes(packed[i], packed[j]) })
	digest, err := digestOf(packed)
	if err != nil {
		return Checksums{}, err
	}
	return Checksums{Count: len(deltas), Sum: sum, Digest: digest}, nil
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func digestOf(sortedPacked [][]byte) (string, error) {
	buf := make([]byte, 0)
	for _, p := range sortedPacked {
		buf = append(buf, p...)
	}
	sum, err := mh.Sum(buf, mh.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap("failed to hash sorted delta set", err)
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// MerkleHistory is the (root, leaf_ids, id_to_packed_delta) triple of
// spec.md §4.10.
type MerkleHistory struct {
	Root       string
	LeafIDs    []string
	PackedByID map[string][]byte
}

func leafID(packed []byte) (string, error) {
	sum, err := mh.Sum(packed, mh.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap("failed to hash delta for merkle leaf", err)
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// calcMerkleHistory builds a MerkleHistory over deltas.
func calcMerkleHistory(deltas []StateUpdate, clk clock.Clock) (MerkleHistory, error) {
	packedByID := make(map[string][]byte, len(deltas))
	for _, u := range deltas {
		b, err := u.Pack(clk)
		if err != nil {
			return MerkleHistory{}, errors.Wrap("failed to pack delta for merkle leaf", err)
		}
		id, err := leafID(b)
		if err != nil {
			return MerkleHistory{}, err
		}
		packedByID[id] = b
	}
	leafIDs := make([]string, 0, len(packedByID))
	for id := range packedByID {
		leafIDs = append(leafIDs, id)
	}
	sort.Strings(leafIDs)

	var rootInput []byte
	for _, id := range leafIDs {
		rootInput = append(rootInput, []byte(id)...)
	}
	rootSum, err := mh.Sum(rootInput, mh.SHA2_256, -1)
	if err != nil {
		return MerkleHistory{}, errors.Wrap("failed to hash merkle root", err)
	}
	root := cid.NewCidV1(cid.Raw, rootSum).String()

	return MerkleHistory{Root: root, LeafIDs: leafIDs, PackedByID: packedByID}, nil
}

// resolveMerkleHistories returns the subset of peerLeafIDs not present in
// localLeafIDs -- the leaves the caller must request from the peer.
func resolveMerkleHistories(localLeafIDs, peerLeafIDs []string) []string {
	local := make(map[string]struct{}, len(localLeafIDs))
	for _, id := range localLeafIDs {
		local[id] = struct{}{}
	}
	var missing []string
	for _, id := range peerLeafIDs {
		if _, ok := local[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// MerkleSession pairs GetMerkleHistory with resolveMerkleHistories into the
// documented two-/three-step exchange (spec.md §4.10), supplementing the
// spec with a concrete helper shape (SPEC_FULL.md §C.4). It carries no
// transport of its own; callers marshal and send the returned ID slices.
type MerkleSession struct {
	Local MerkleHistory
}

// NewMerkleSession snapshots local's current merkle history for a sync
// round.
func NewMerkleSession(local MerkleHistory) MerkleSession {
	return MerkleSession{Local: local}
}

// RootsMatch is step one of the exchange: compare roots without
// exchanging any leaf data.
func (s MerkleSession) RootsMatch(peerRoot string) bool {
	return s.Local.Root == peerRoot
}

// Missing is step two/three: given the peer's leaf-id list, return the
// ids the caller must request before it can reconstruct the peer's state.
func (s MerkleSession) Missing(peerLeafIDs []string) []string {
	return resolveMerkleHistories(s.Local.LeafIDs, peerLeafIDs)
}
