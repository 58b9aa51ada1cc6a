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

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/sourcenetwork/crdt/clock"
	"github.com/sourcenetwork/crdt/errors"
	"github.com/sourcenetwork/crdt/logging"
	"github.com/sourcenetwork/crdt/value"
)

func decodeUUIDHex(h string) ([]byte, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, errors.Wrap("malformed item_uuid hex key", err)
	}
	return b, nil
}

var log = logging.MustNewLogger("crdt")

var (
	zeroIndex = decimal.NewFromInt(0)
	oneIndex  = decimal.NewFromInt(1)
)

// fiEntry is the ordering-cache element for FIArray: a decimal fractional
// index, the item_uuid that owns it (for a deterministic tie-break and
// for removal-before-reinsert on move), and the visible value.
type fiEntry struct {
	uuidHex string
	index   decimal.Decimal
	value   value.Value
}

func fiLess(a, b fiEntry) bool {
	if c := a.index.Cmp(b.index); c != 0 {
		return c < 0
	}
	return a.uuidHex < b.uuidHex
}

// FIAItem is the payload spec.md §4.8 stores per item_uuid in the
// embedded LWWMap: (value, index, item_uuid).
type FIAItem struct {
	Value value.Value
	Index decimal.Decimal
	UUID  []byte
}

func (it FIAItem) toSequence() value.Sequence {
	return value.Sequence{it.Value, value.NewDecimal(it.Index), value.Bytes(it.UUID)}
}

func fiaItemFromValue(v value.Value) (FIAItem, error) {
	seq, ok := v.(value.Sequence)
	if !ok || len(seq) != 3 {
		return FIAItem{}, errors.NewErrType("fiarray item must be a 3-tuple (value, index, item_uuid)")
	}
	idx, ok := seq[1].(value.Decimal)
	if !ok {
		return FIAItem{}, errors.NewErrType("fiarray index must be a Decimal")
	}
	id, ok := seq[2].(value.Bytes)
	if !ok {
		return FIAItem{}, errors.NewErrType("fiarray item_uuid must be Bytes")
	}
	return FIAItem{Value: seq[0], Index: idx.Decimal, UUID: []byte(id)}, nil
}

// FIArray is the fractional-index list CRDT of spec.md §4.8: an embedded
// LWWMap keyed by item_uuid, with an incrementally-maintained ordering
// cache over each item's decimal index.
type FIArray struct {
	baseCRDT
	m         *LWWMap
	cache     *orderingCache[fiEntry]
	lastEntry map[string]fiEntry
}

// NewFIArray creates an empty FIArray bound to clk.
func NewFIArray(clk clock.Clock) *FIArray {
	return &FIArray{
		baseCRDT:  newBaseCRDT(clk),
		m:         NewLWWMap(clk),
		cache:     newOrderingCache[fiEntry](fiLess),
		lastEntry: map[string]fiEntry{},
	}
}

// Read returns the currently-visible values in ascending index order.
func (a *FIArray) Read() []value.Value {
	items := a.cache.Items()
	out := make([]value.Value, len(items))
	for i, it := range items {
		out[i] = it.value
	}
	return out
}

// Entries returns the currently-visible (index, item_uuid, value) triples
// in ascending index order, letting a caller target move_item/delete at a
// specific item_uuid.
func (a *FIArray) Entries() []fiEntry {
	return a.cache.Items()
}

func (a *FIArray) neighborIndices(pos int) (lo, hi decimal.Decimal) {
	items := a.cache.Items()
	lo, hi = zeroIndex, oneIndex
	if pos > 0 {
		lo = items[pos-1].index
	}
	if pos < len(items) {
		hi = items[pos].index
	}
	return lo, hi
}

func (a *FIArray) positionOf(uuidHex string) (int, bool) {
	items := a.cache.Items()
	for i, it := range items {
		if it.uuidHex == uuidHex {
			return i, true
		}
	}
	return -1, false
}

// put commits a new or relocated FIAItem at the given decimal index. The
// update is applied through FIArray's own Update, which in turn delegates
// to the embedded LWWMap and then repositions the cache entry -- mirroring
// how LWWMap.apply drives its own Update rather than mutating state
// directly.
func (a *FIArray) put(id []byte, val value.Value, index decimal.Decimal, writer value.Value, ts clock.Timestamp) (StateUpdate, error) {
	item := FIAItem{Value: val, Index: index, UUID: id}
	u := StateUpdate{
		ClockUUID: a.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(lwwMapSet), value.Bytes(id), item.toSequence(), writer},
	}
	if err := a.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

func (a *FIArray) checkCollision(index decimal.Decimal) {
	for _, it := range a.cache.Items() {
		if it.index.Equal(index) {
			log.Warn("fractional index collision",
				logging.NewKV("index", index.String()),
				logging.NewKV("item_uuid", it.uuidHex))
			return
		}
	}
}

func newItemUUID() []byte {
	id := uuid.NewV4()
	return id.Bytes()
}

// PutFirst inserts val before every currently-visible item.
func (a *FIArray) PutFirst(val, writer value.Value) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	rnd, err := deterministicRand(a.Clock(), writer, ts)
	if err != nil {
		return StateUpdate{}, err
	}
	lo, hi := zeroIndex, oneIndex
	if first, ok := a.firstEntry(); ok {
		hi = first.index
	}
	index := generateBetween(rnd, lo, hi)
	a.checkCollision(index)
	return a.put(newItemUUID(), val, index, writer, ts)
}

// PutLast inserts val after every currently-visible item.
func (a *FIArray) PutLast(val, writer value.Value) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	rnd, err := deterministicRand(a.Clock(), writer, ts)
	if err != nil {
		return StateUpdate{}, err
	}
	lo, hi := zeroIndex, oneIndex
	if last, ok := a.lastEntryVisible(); ok {
		lo = last.index
	}
	index := generateBetween(rnd, lo, hi)
	a.checkCollision(index)
	return a.put(newItemUUID(), val, index, writer, ts)
}

// Append is the fast path of spec.md §4.8: add a fixed tiny constant to
// the current last index rather than dividing remaining space, avoiding
// precision loss on long monotonic append sequences.
func (a *FIArray) Append(val, writer value.Value) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	index := appendIncrement
	if last, ok := a.lastEntryVisible(); ok {
		index = last.index.Add(appendIncrement)
	}
	return a.put(newItemUUID(), val, index, writer, ts)
}

// PutBefore inserts val immediately before the item identified by
// beforeUUID.
func (a *FIArray) PutBefore(val value.Value, beforeUUID []byte, writer value.Value) (StateUpdate, error) {
	return a.putRelative(val, beforeUUID, writer, true)
}

// PutAfter inserts val immediately after the item identified by
// afterUUID.
func (a *FIArray) PutAfter(val value.Value, afterUUID []byte, writer value.Value) (StateUpdate, error) {
	return a.putRelative(val, afterUUID, writer, false)
}

func (a *FIArray) putRelative(val value.Value, anchor []byte, writer value.Value, before bool) (StateUpdate, error) {
	anchorHex, err := memberKey(value.Bytes(anchor))
	if err != nil {
		return StateUpdate{}, err
	}
	pos, ok := a.positionOf(anchorHex)
	if !ok {
		return StateUpdate{}, errors.NewErrUsage("fiarray anchor item_uuid not visible")
	}
	if before {
		lo, hi := a.neighborIndices(pos)
		return a.insertAt(val, writer, lo, hi)
	}
	lo, hi := a.neighborIndices(pos + 1)
	return a.insertAt(val, writer, lo, hi)
}

// PutBetween inserts val strictly between the items identified by
// beforeUUID and afterUUID, which must be adjacent in the current order.
func (a *FIArray) PutBetween(val value.Value, beforeUUID, afterUUID []byte, writer value.Value) (StateUpdate, error) {
	beforeHex, err := memberKey(value.Bytes(beforeUUID))
	if err != nil {
		return StateUpdate{}, err
	}
	afterHex, err := memberKey(value.Bytes(afterUUID))
	if err != nil {
		return StateUpdate{}, err
	}
	posBefore, ok := a.positionOf(beforeHex)
	if !ok {
		return StateUpdate{}, errors.NewErrValue("fiarray before item_uuid not visible")
	}
	posAfter, ok := a.positionOf(afterHex)
	if !ok {
		return StateUpdate{}, errors.NewErrValue("fiarray after item_uuid not visible")
	}
	if posAfter != posBefore+1 {
		return StateUpdate{}, errors.NewErrValue("fiarray before/after items must be adjacent")
	}
	items := a.cache.Items()
	return a.insertAt(val, writer, items[posBefore].index, items[posAfter].index)
}

func (a *FIArray) insertAt(val, writer value.Value, lo, hi decimal.Decimal) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	rnd, err := deterministicRand(a.Clock(), writer, ts)
	if err != nil {
		return StateUpdate{}, err
	}
	index := generateBetween(rnd, lo, hi)
	a.checkCollision(index)
	return a.put(newItemUUID(), val, index, writer, ts)
}

// MoveItem relocates the item identified by id to a new index, computed
// from exactly one of newIndex, beforeUUID, or afterUUID.
func (a *FIArray) MoveItem(id []byte, writer value.Value, newIndex *decimal.Decimal, beforeUUID, afterUUID []byte) (StateUpdate, error) {
	given := 0
	for _, set := range []bool{newIndex != nil, beforeUUID != nil, afterUUID != nil} {
		if set {
			given++
		}
	}
	if given != 1 {
		return StateUpdate{}, errors.NewErrUsage("fiarray move_item requires exactly one of new_index, before, after")
	}
	val, visible, err := a.m.Get(value.Bytes(id))
	if err != nil {
		return StateUpdate{}, err
	}
	if !visible {
		return StateUpdate{}, errors.NewErrValue("fiarray move_item target not visible")
	}
	item, err := fiaItemFromValue(val)
	if err != nil {
		return StateUpdate{}, err
	}

	var index decimal.Decimal
	switch {
	case newIndex != nil:
		index = *newIndex
	case beforeUUID != nil:
		anchorHex, err := memberKey(value.Bytes(beforeUUID))
		if err != nil {
			return StateUpdate{}, err
		}
		anchorPos, ok := a.positionOf(anchorHex)
		if !ok {
			return StateUpdate{}, errors.NewErrValue("fiarray before item_uuid not visible")
		}
		lo, hi := a.neighborIndices(anchorPos)
		index = average(lo, hi)
	case afterUUID != nil:
		anchorHex, err := memberKey(value.Bytes(afterUUID))
		if err != nil {
			return StateUpdate{}, err
		}
		anchorPos, ok := a.positionOf(anchorHex)
		if !ok {
			return StateUpdate{}, errors.NewErrValue("fiarray after item_uuid not visible")
		}
		lo, hi := a.neighborIndices(anchorPos + 1)
		index = average(lo, hi)
	default:
		return StateUpdate{}, errors.NewErrUsage("fiarray move_item requires exactly one of new_index, before, after")
	}
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	a.checkCollision(index)
	return a.put(item.UUID, item.Value, index, writer, ts)
}

// Delete removes the item identified by id.
func (a *FIArray) Delete(id []byte, writer value.Value) (StateUpdate, error) {
	ts, err := a.nextLocalTS()
	if err != nil {
		return StateUpdate{}, err
	}
	u := StateUpdate{
		ClockUUID: a.ClockUUID(),
		TS:        ts,
		Payload:   value.Sequence{value.String(lwwMapUnset), value.Bytes(id), value.None{}, writer},
	}
	if err := a.Update(u); err != nil {
		return StateUpdate{}, err
	}
	return u, nil
}

// Normalize redistributes every currently-visible item's index evenly
// across (0, maxIndex), returning one StateUpdate per repositioned item in
// list order. Used when repeated put_between/move_item calls have driven
// adjacent indices too close together for decimal precision to keep
// distinguishing them.
func (a *FIArray) Normalize(maxIndex decimal.Decimal, writer value.Value) ([]StateUpdate, error) {
	items := a.cache.Items()
	n := len(items)
	if n == 0 {
		return nil, nil
	}
	step := maxIndex.Div(decimal.NewFromInt(int64(n + 1)))
	updates := make([]StateUpdate, 0, n)
	for i, it := range items {
		newIndex := step.Mul(decimal.NewFromInt(int64(i + 1)))
		idBytes, err := decodeUUIDHex(it.uuidHex)
		if err != nil {
			return nil, err
		}
		val, visible, err := a.m.Get(value.Bytes(idBytes))
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		item, err := fiaItemFromValue(val)
		if err != nil {
			return nil, err
		}
		ts, err := a.nextLocalTS()
		if err != nil {
			return nil, err
		}
		u, err := a.put(item.UUID, item.Value, newIndex, writer, ts)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func (a *FIArray) firstEntry() (fiEntry, bool) {
	items := a.cache.Items()
	if len(items) == 0 {
		return fiEntry{}, false
	}
	return items[0], true
}

func (a *FIArray) lastEntryVisible() (fiEntry, bool) {
	items := a.cache.Items()
	if len(items) == 0 {
		return fiEntry{}, false
	}
	return items[len(items)-1], true
}

// Update validates and applies an incoming StateUpdate, which has exactly
// the LWWMap payload shape (FIArray adds no op tag of its own: it embeds
// LWWMap's payload verbatim, as spec.md §4.8 describes), then
// incrementally repositions the affected item in the ordering cache.
func (a *FIArray) Update(u StateUpdate) error {
	return a.applyGuarded(u, func() error {
		_, key, _, _, err := parseLWWMapPayload(u)
		if err != nil {
			return err
		}
		if err := a.m.Update(u); err != nil {
			return err
		}
		return a.syncCache(key)
	})
}

func (a *FIArray) syncCache(key value.Value) error {
	keyHex, err := memberKey(key)
	if err != nil {
		return err
	}
	if old, ok := a.lastEntry[keyHex]; ok {
		a.cache.Remove(old)
		delete(a.lastEntry, keyHex)
	}
	val, visible, err := a.m.Get(key)
	if err != nil {
		return err
	}
	if !visible {
		return nil
	}
	item, err := fiaItemFromValue(val)
	if err != nil {
		return err
	}
	entry := fiEntry{uuidHex: keyHex, index: item.Index, value: item.Value}
	a.cache.Insert(entry)
	a.lastEntry[keyHex] = entry
	return nil
}

// History returns the filtered applied-delta log.
func (a *FIArray) History(opts HistoryOpts) []StateUpdate {
	return filterHistory(a.rawHistory(), opts)
}

// Checksums summarizes the filtered applied-delta log.
func (a *FIArray) Checksums(opts HistoryOpts) (Checksums, error) {
	return calcChecksums(filterHistory(a.rawHistory(), opts), a.Clock())
}

// GetMerkleHistory returns this FIArray's Merkle triple over its full history.
func (a *FIArray) GetMerkleHistory() (MerkleHistory, error) {
	return calcMerkleHistory(a.rawHistory(), a.Clock())
}
