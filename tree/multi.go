package tree

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uuidbtree/node"
)

// MultiTree is the one-key-to-ordered-item-collection variant: spec.md
// §1's "multi-item" index. Each leaf record stores the head page and item
// count of an auxiliary Items chain (spec.md §4.5) rather than the items
// themselves.
type MultiTree struct {
	s *store
}

// OpenMulti opens or creates a multi-item tree file at path. cfg.ValueSize
// is the fixed item width; cfg.ItemOrder bounds items per chain page.
func OpenMulti(path string, cfg Config) (*MultiTree, error) {
	recordSize := node.ItemsRecordSize
	s, err := openStore(path, kindMulti, cfg, recordSize)
	if err != nil {
		return nil, err
	}
	return &MultiTree{s: s}, nil
}

func (t *MultiTree) order() int    { return int(t.s.meta.Order) }
func (t *MultiTree) itemSize() int { return int(t.s.meta.ValueSize) }

// Close releases the underlying file handle.
func (t *MultiTree) Close() error { return t.s.close() }

// Flush delegates to the host file's fsync.
func (t *MultiTree) Flush() error { return t.s.flush() }

// Sync is an alias for Flush.
func (t *MultiTree) Sync() error { return t.s.flush() }

func (t *MultiTree) loadLeaf(page int32) (node.ItemsRecordNode, error) {
	buf, err := t.s.readPage(page)
	if err != nil {
		return node.ItemsRecordNode{}, fmt.Errorf("tree: load leaf %d: %w", page, err)
	}
	rn, err := node.DecodeItemsRecordNode(buf, t.s.pageSize, t.order())
	if err != nil {
		t.s.log.Warn("structural error", zap.Int32("page", page), zap.String("kind", "items_record"), zap.Error(err))
		return node.ItemsRecordNode{}, &StructuralError{Page: page, Err: err}
	}
	return rn, nil
}

func (t *MultiTree) writeLeaf(page int32, rn node.ItemsRecordNode) error {
	buf, err := node.EncodeItemsRecordNode(rn, t.s.pageSize, t.order())
	if err != nil {
		return err
	}
	return t.s.writePage(page, buf)
}

func (t *MultiTree) leafSeek(key uuid.UUID) (page int32, path []int32, idx int, rn node.ItemsRecordNode, err error) {
	page, path, err = t.s.descend(key)
	if err != nil {
		return
	}
	rn, err = t.loadLeaf(page)
	if err != nil {
		return
	}
	idx = sort.Search(len(rn.Records), func(i int) bool { return !uuidLess(rn.Records[i].Key, key) })
	return
}

// Insert adds key mapping to a fresh chain holding items, in order.
func (t *MultiTree) Insert(key uuid.UUID, items [][]byte) error {
	for _, item := range items {
		if len(item) != t.itemSize() {
			return fmt.Errorf("tree: insert %s: item is %d bytes, want %d: %w", key, len(item), t.itemSize(), ErrValueSizeError)
		}
	}
	page, path, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx < len(rn.Records) && rn.Records[idx].Key == key {
		return fmt.Errorf("tree: insert %s: %w", key, ErrRecordExists)
	}

	head, err := t.chain().create(items)
	if err != nil {
		return err
	}
	rec := node.NewItemsRecord(key, head, uint32(len(items)))

	rn.Records = append(rn.Records, node.ItemsRecord{})
	copy(rn.Records[idx+1:], rn.Records[idx:])
	rn.Records[idx] = rec

	t.s.log.Debug("insert", zap.String("key", key.String()), zap.Int("items", len(items)))

	if len(rn.Records) <= t.order() {
		return t.writeLeaf(page, rn)
	}
	return t.splitLeaf(page, path, rn)
}

func (t *MultiTree) splitLeaf(page int32, path []int32, rn node.ItemsRecordNode) error {
	if len(rn.Records) <= 4 {
		return fmt.Errorf("tree: split leaf %d: %w", page, ErrCleaveError)
	}
	wasRoot := rn.Kind == node.KindStart
	mid := len(rn.Records) / 2
	lower := rn.Records[:mid]
	upper := rn.Records[mid:]

	newPage, err := t.s.allocate()
	if err != nil {
		return fmt.Errorf("tree: split leaf: %w", err)
	}

	lowerNode := node.ItemsRecordNode{Kind: node.KindLeaf, Next: newPage, Records: append([]node.ItemsRecord(nil), lower...)}
	upperNode := node.ItemsRecordNode{Kind: node.KindLeaf, Next: rn.Next, Records: append([]node.ItemsRecord(nil), upper...)}

	if err := t.writeLeaf(page, lowerNode); err != nil {
		return fmt.Errorf("tree: split leaf: write lower %d: %w", page, err)
	}
	if err := t.writeLeaf(newPage, upperNode); err != nil {
		return fmt.Errorf("tree: split leaf: write upper %d: %w", newPage, err)
	}

	ref := node.Reference{Before: page, After: newPage, Key: upper[0].Key}
	t.s.log.Info("leaf split", zap.Int32("left", page), zap.Int32("right", newPage))

	if wasRoot {
		return t.s.createRoot(ref)
	}
	return t.s.promote(path, ref)
}

// Get returns a copy of every item stored for key, in order.
func (t *MultiTree) Get(key uuid.UUID) ([][]byte, error) {
	_, _, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return nil, err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return nil, ErrEntryNotFound
	}
	rec := rn.Records[idx]
	return t.chain().traverse(rec.Page, int(rec.Count))
}

// Traverse returns the advertised item count up front and a lazy cursor
// over key's chain, for callers that don't want the full collection
// materialized the way Get does it. Traverse never mutates the chain;
// only Update, Clear, and Delete recycle its pages.
func (t *MultiTree) Traverse(key uuid.UUID) (int, *ItemCursor, error) {
	_, _, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return 0, nil, err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return 0, nil, ErrEntryNotFound
	}
	rec := rn.Records[idx]
	if rec.Page == node.NoPage && rec.Count != 0 {
		return 0, nil, fmt.Errorf("tree: traverse %s: record advertises %d items: %w", key, rec.Count, node.ErrPageNotSet)
	}
	c := &ItemCursor{chain: t.chain(), next: rec.Page, length: int(rec.Count)}
	c.settle()
	return c.length, c, c.err
}

// Update streams insertions into the chain and filters out anything
// byte-equal to a deletion, per spec.md §4.5.
func (t *MultiTree) Update(key uuid.UUID, insertions, deletions [][]byte) error {
	for _, item := range insertions {
		if len(item) != t.itemSize() {
			return fmt.Errorf("tree: update %s: item is %d bytes, want %d: %w", key, len(item), t.itemSize(), ErrValueSizeError)
		}
	}
	page, _, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return ErrEntryNotFound
	}
	rec := rn.Records[idx]
	newHead, newCount, err := t.chain().update(rec.Page, int(rec.Count), insertions, deletions)
	if err != nil {
		return err
	}
	rn.Records[idx] = node.NewItemsRecord(key, newHead, uint32(newCount))
	return t.writeLeaf(page, rn)
}

// Clear empties key's chain in place, leaving the key present with zero
// items.
func (t *MultiTree) Clear(key uuid.UUID) error {
	page, _, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return ErrEntryNotFound
	}
	rec := rn.Records[idx]
	if err := t.chain().clear(rec.Page); err != nil {
		return err
	}
	rn.Records[idx] = node.NewItemsRecord(key, node.NoPage, 0)
	return t.writeLeaf(page, rn)
}

// Delete removes key and recycles its item chain. A leaf drained to zero
// records is detached from its parent and recycled under the same
// conditions as SimpleTree.Delete.
func (t *MultiTree) Delete(key uuid.UUID) error {
	page, path, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return ErrEntryNotFound
	}
	rec := rn.Records[idx]
	if err := t.chain().clear(rec.Page); err != nil {
		return err
	}
	rn.Records = append(rn.Records[:idx], rn.Records[idx+1:]...)

	if len(rn.Records) > 0 || rn.Kind == node.KindStart {
		return t.writeLeaf(page, rn)
	}

	prevPage, ok, err := t.s.detachLeafFromParent(page, path)
	if err != nil {
		return err
	}
	if !ok {
		return t.writeLeaf(page, rn)
	}

	prev, err := t.loadLeaf(prevPage)
	if err != nil {
		return err
	}
	prev.Next = rn.Next
	if err := t.writeLeaf(prevPage, prev); err != nil {
		return err
	}
	return t.s.recycle(page)
}

// MultiCursor iterates multi-tree leaf records (not their items) in
// ascending key order, mirroring SimpleCursor.
type MultiCursor struct {
	t     *MultiTree
	stop  *uuid.UUID
	node  node.ItemsRecordNode
	idx   int
	valid bool
	err   error
}

// Range returns a cursor over leaf records with key in [start, stop).
func (t *MultiTree) Range(start, stop *uuid.UUID) (*MultiCursor, error) {
	if start != nil && stop != nil {
		if *start == *stop {
			return &MultiCursor{t: t, stop: stop, valid: false}, nil
		}
		if uuidLess(*stop, *start) {
			return nil, fmt.Errorf("tree: range: %w", ErrIterBackwardError)
		}
	}
	var seekKey uuid.UUID
	if start != nil {
		seekKey = *start
	}
	_, _, idx, rn, err := t.leafSeek(seekKey)
	if err != nil {
		return nil, err
	}
	c := &MultiCursor{t: t, stop: stop, node: rn, idx: idx}
	c.settle()
	return c, nil
}

// RangeStep is Range with an explicit step. Only a step of one is
// supported; anything else fails with ErrIterCustomError.
func (t *MultiTree) RangeStep(start, stop *uuid.UUID, step int) (*MultiCursor, error) {
	if step != 1 {
		return nil, fmt.Errorf("tree: range: step %d: %w", step, ErrIterCustomError)
	}
	return t.Range(start, stop)
}

// Seek repositions a cursor at the first key >= target.
func (c *MultiCursor) Seek(target uuid.UUID) error {
	_, _, idx, rn, err := c.t.leafSeek(target)
	if err != nil {
		return err
	}
	c.node, c.idx = rn, idx
	c.settle()
	return c.err
}

func (c *MultiCursor) settle() {
	for {
		if c.idx < len(c.node.Records) {
			if c.stop != nil && uuidLessEq(*c.stop, c.node.Records[c.idx].Key) {
				c.valid = false
				return
			}
			c.valid = true
			return
		}
		if c.node.Next == node.NoPage {
			c.valid = false
			return
		}
		rn, err := c.t.loadLeaf(c.node.Next)
		if err != nil {
			c.err = err
			c.valid = false
			return
		}
		c.node = rn
		c.idx = 0
	}
}

// Valid reports whether the cursor is positioned at a record.
func (c *MultiCursor) Valid() bool { return c.valid }

// Err returns the first error encountered while advancing, if any.
func (c *MultiCursor) Err() error { return c.err }

// Key returns the current record's key. Call only when Valid.
func (c *MultiCursor) Key() uuid.UUID { return c.node.Records[c.idx].Key }

// Count returns the current record's item count. Call only when Valid.
func (c *MultiCursor) Count() uint32 { return c.node.Records[c.idx].Count }

// Next advances to the next record in key order.
func (c *MultiCursor) Next() error {
	if !c.valid {
		return c.err
	}
	c.idx++
	c.settle()
	return c.err
}
