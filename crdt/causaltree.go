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
	"encoding/hex"
	"sort"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/value"
)

const (
	ctVisibleTrue  = value.Int(1)
	ctVisibleFalse = value.Int(0)
)

// CTNode is the payload spec.md §4.9 stores per item_uuid in the
// embedded LWWMap: (value, item_uuid, parent_uuid, visible). An empty
// ParentUUID denotes a root.
type CTNode struct {
	Value      value.Value
	UUID       []byte
	ParentUUID []byte
	Visible    bool
}

func (n CTNode) toSequence() value.Sequence {
	vis := ctVisibleFalse
	if n.Visible {
		vis = ctVisibleTrue
	}
	return value.Sequence{n.Value, value.Bytes(n.UUID), value.Bytes(n.ParentUUID), vis}
}

func ctNodeFromValue(v value.Value) (CTNode, error) {
	seq, ok := v.(value.Sequence)
	if !ok || len(seq) != 4 {
		return CTNode{}, errors.NewErrType("causaltree node must be a 4-tuple (value, item_uuid, parent_uuid, visible)")
	}
	id, ok := seq[1].(value.Bytes)
	if !ok {
		return CTNode{}, errors.NewErrType("causaltree item_uuid must be Bytes")
	}
	parent, ok := seq[2].(value.Bytes)
	if !ok {
		return CTNode{}, errors.NewErrType("causaltree parent_uuid must be Bytes")
	}
	vis, ok := seq[3].(value.Int)
	if !ok {
		return CTNode{}, errors.NewErrType("causaltree visible flag must be an Int")
	}
	return CTNode{Value: seq[0], UUID: []byte(id), ParentUUID: []byte(parent), Visible: vis != 0}, nil
}

func hexOf(b []byte) string { return hex.EncodeToString(b) }

// ctEntry is the ordering-cache element: a node together with its
// preorder traversal position, assigned whenever the whole tree is
// recomputed.
type ctEntry struct {
	seq  int
	node CTNode
}

func ctLess(a, b ctEntry) bool { return a.seq < b.seq }

// ExcludedNode reports a present-but-unreachable node, tagged with why it
// was excluded from read()/read_full() (spec.md §4.9, supplemented by
// read_excluded() per this module's own design note).
type ExcludedNode struct {
	UUID   []byte
	Reason string // "cycle" or "orphan"
}

// CausalTree is the parent-linked ordered-list CRDT of spec.md §4.9: an
// embedded LWWMap keyed by item_uuid, with a preorder-traversal ordering
// cache rebuilt in full on every apply (permitted by spec.md §5's caching
// note: "correctness is maintained even if the cache is thrown away and
// rebuilt").
type CausalTree struct {
	baseCRDT
	m        *LWWMap
	cache    *orderingCache[ctEntry]
	excluded map[string]string // uuid hex -> reason
}

// NewCausalTree creates an empty CausalTree bound to clk.
func NewCausalTree(clk clock.Clock) *CausalTree {
	return &CausalTree{
		baseCRDT: newBaseCRDT(clk),
		m:        NewLWWMap(clk),
		cache:    newOrderingCache[ctEntry](ctLess),
		excluded: map[string]string{},
	}
}

// Read returns the values of every traversal-reachable, non-tombstoned
// node in preorder.
func (t *CausalTree) Read() []value.Value {
	items := t.cache.Items()
	out := make([]value.Value, 0, len(items))
	for _, it := range items {
		if it.node.Visible {
			out = append(out, it.node.Value)
		}
	}
	return out
}

// ReadFull returns every traversal-reachable node (including tombstoned
// ones, so a caller can still inspect ancestor chains) in preorder.
func (t *CausalTree) ReadFull() []CTNode {
	items := t.cache.Items()
	out := make([]CTNode, len(items))
	for i, it := range items {
		out[i] = it.node
	}
	return out
}

// ReadExcluded returns every present node unreachable from any root,
// tagged with why: "cycle" for nodes whose ancestor chain loops back on
// itself without reaching a root, "orphan" for nodes whose ancestor chain
// terminates at a missing parent.
func (t *CausalTree) ReadExcluded() []ExcludedNode {
	out := make([]ExcludedNode, 0, len(t.excluded))
	for h, reason := range t.excluded {
		id, err := hex.DecodeString(h)
		if err != nil {
			continue
		}
		out = append(out, ExcludedNode{UUID: id, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return hexOf(out[i].UUID) < hexOf(out[j].UUID) })
	return out
}

func (t *CausalTree) currentNodes() (map[string]CTNode, error) {
	raw, err := t.m.Read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]CTNode, len(raw))
	for key, v := range raw {
		node, err := ctNodeFromValue(v)
		if err != nil {
			return nil, err
		}
		out[key] = node
	}
	return out, nil
}

func sortSiblings(ids []string, nodes map[string]CTNode) {
	sort.Slice(ids, func(i, j int) bool {
		c, _ := value.Compare(nodes[ids[i]].toSequence(), nodes[ids[j]].toSequence())
		return c < 0
	})
}

// recompute rebuilds the full preorder traversal and excluded set from
// the embedded LWWMap's current visible key/value state.
func (t *CausalTree) recompute() error {
	nodes, err := t.currentNodes()
	if err != nil {
		return err
	}
	childrenOf := map[string][]string{}
	for h, n := range nodes {
		parentHex := hexOf(n.ParentUUID)
		childrenOf[parentHex] = append(childrenOf[parentHex], h)
	}

	roots := append([]string(nil), childrenOf[""]...)
	sortSiblings(roots, nodes)

	order := make([]string, 0, len(nodes))
	visited := map[string]bool{}
	var visit func(h string)
	visit = func(h string) {
		if visited[h] {
			return
		}
		visited[h] = true
		order = append(order, h)
		kids := append([]string(nil), childrenOf[h]...)
		sortSiblings(kids, nodes)
		for _, k := range kids {
			visit(k)
		}
	}
	for _, r := range roots {
		visit(r)
	}

	entries := make([]ctEntry, 0, len(order))
	for i, h := range order {
		entries = append(entries, ctEntry{seq: i, node: nodes[h]})
	}
	t.cache.Reset(entries)

	excluded := map[string]string{}
	for h := range nodes {
		if visited[h] {
			continue
		}
		excluded[h] = exclusionReason(nodes, h)
	}
	t.excluded = excluded
	return nil
}

// exclusionReason walks hex's ancestor chain: a missing parent is an
// orphan, a revisited uuid is a cycle.
func exclusionReason(nodes map[string]CTNode, h string) string {
	seen := map[string]bool{}
	cur := h
	for i := 0; i <= len(nodes); i++ {
		if seen[cur] {
			return "cycle"
		}
		seen[cur] = true
		node, ok := nodes[cur]
		if !ok {
			return "orphan"
		}
		parentHex := hexOf(node.ParentUUID)
		if parentHex == "" {
			return "cycle"
		}
		if _, ok := nodes[parentHex]; !ok {
			return "orphan"
		}
		cur = parentHex
	}
	return "cycle"
}

// put commits (or updates) a node with the given visibility, through
// CausalTree's own Update so the traversal cache and excluded set stay in
// sync the same way FIArray's put drives its own Update.
func (t *CausalTree) put(id []byte, val value.Value, parent []byte, visible bool, writer value.Value, ts clock.Timestamp) (StateUpdate, error) {
	node := CTNode{Value: val, UUID: id, ParentUUID: parent, Visible: visible}
	u := StateUpdate{
		ClockUUID: t.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(lwwMapSet), value.Bytes(id), node.toSequence(), writer},
	}
	if err := t.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

// Put is the base operation of spec.md §4.9: sets (or re-sets) the node
// identified by itemUUID, with the given parent (empty for a root).
func (t *CausalTree) Put(val value.Value, itemUUID, parentUUID []byte, writer value.Value) (StateUpdate, error) {
	ts, err := t.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	return t.put(itemUUID, val, parentUUID, true, writer, ts)
}

// PutFirst inserts val as a new root. If other roots already exist, this
// also re-parents each of them under the new node, returning every
// emitted update as a batch so the caller propagates them together.
func (t *CausalTree) PutFirst(val, writer value.Value) ([]StateUpdate, error) {
	nodes, err := t.currentNodes()
	if err != nil {
		return nil, err
	}
	var priorRoots []string
	for h, n := range nodes {
		if len(n.ParentUUID) == 0 {
			priorRoots = append(priorRoots, h)
		}
	}
	sortSiblings(priorRoots, nodes)

	newID := newItemUUID()
	ts, err := t.nextLocalTS()
	if err != nil {
		return nil, err
	}
	u, err := t.put(newID, val, nil, true, writer, ts)
	if err != nil {
		return nil, err
	}
	updates := []StateUpdate{u}
	for _, h := range priorRoots {
		n := nodes[h]
		idBytes, err := hex.DecodeString(h)
		if err != nil {
			return nil, err
		}
		ts, err := t.nextLocalTS()
		if err != nil {
			return nil, err
		}
		ru, err := t.put(idBytes, n.Value, newID, n.Visible, writer, ts)
		if err != nil {
			return nil, err
		}
		updates = append(updates, ru)
	}
	return updates, nil
}

// PutAfter is convenience for put with a generated item_uuid under the
// supplied parent.
func (t *CausalTree) PutAfter(val value.Value, parentUUID []byte, writer value.Value) (StateUpdate, error) {
	ts, err := t.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	return t.put(newItemUUID(), val, parentUUID, true, writer, ts)
}

// Append is put_after on the current last visible node, or a new root if
// no node is currently visible.
func (t *CausalTree) Append(val, writer value.Value) (StateUpdate, error) {
	items := t.cache.Items()
	var parent []byte
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].node.Visible {
			parent = items[i].node.UUID
			break
		}
	}
	ts, err := t.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	return t.put(newItemUUID(), val, parent, true, writer, ts)
}

// MoveItem emits a single LWWMap write changing only nodeUUID's parent.
func (t *CausalTree) MoveItem(nodeUUID, newParentUUID []byte, writer value.Value) (StateUpdate, error) {
	key := value.Bytes(nodeUUID)
	v, visible, err := t.m.Get(key)
	if err != nil {
		return StateUpdate{}, err
	}
	if !visible {
		return StateUpdate{}, errors.NewErrValue("causaltree move_item target not visible")
	}
	node, err := ctNodeFromValue(v)
	if err != nil {
		return StateUpdate{}, err
	}
	ts, err := t.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	return t.put(node.UUID, node.Value, newParentUUID, node.Visible, writer, ts)
}

// Delete tombstones the node identified by nodeUUID: same uuid and
// parent, visible=false. The value is retained so descendants can still
// resolve their ancestor chain.
func (t *CausalTree) Delete(nodeUUID []byte, writer value.Value) (StateUpdate, error) {
	key := value.Bytes(nodeUUID)
	v, visible, err := t.m.Get(key)
	if err != nil {
		return StateUpdate{}, err
	}
	if !visible {
		return StateUpdate{}, errors.NewErrValue("causaltree delete target not visible")
	}
	node, err := ctNodeFromValue(v)
	if err != nil {
		return StateUpdate{}, err
	}
	ts, err := t.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	return t.put(node.UUID, node.Value, node.ParentUUID, false, writer, ts)
}

// Remove is the ListProtocol wrapper around delete: it tombstones the
// node currently at the given preorder index among visible nodes.
func (t *CausalTree) Remove(index int, writer value.Value) (StateUpdate, error) {
	var visiblePos int
	for _, it := range t.cache.Items() {
		if !it.node.Visible {
			continue
		}
		if visiblePos == index {
			return t.Delete(it.node.UUID, writer)
		}
		visiblePos++
	}
	return StateUpdate{}, errors.NewErrValue("causaltree remove index out of range")
}

// Update validates and applies an incoming StateUpdate, which has exactly
// the LWWMap payload shape (CausalTree adds no op tag of its own, the
// same embedding CausalTree shares with FIArray), then fully recomputes
// the traversal cache and excluded set.
func (t *CausalTree) Update(u StateUpdate) error {
	return t.applyGuarded(u, func() error {
		if _, _, _, _, err := parseLWWMapPayload(u); err != nil {
			return err
		}
		if err := t.m.Update(u); err != nil {
			return err
		}
		return t.recompute()
	})
}

// History returns the filtered applied-delta log.
func (t *CausalTree) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(t.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (t *CausalTree) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(t.rawHistory(), opts), t.Clock())
}

// GetMerkleHistory returns this CausalTree's Merkle triple over its full history.
func (t *CausalTree) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(t.rawHistory(), t.Clock())
}
