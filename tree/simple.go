package tree

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uuidbtree/node"
)

// SimpleTree is the one-key-to-one-fixed-value variant: spec.md §1's
// "simple" index.
type SimpleTree struct {
	s *store
}

// OpenSimple opens or creates a simple tree file at path.
func OpenSimple(path string, cfg Config) (*SimpleTree, error) {
	recordSize := node.SimpleRecordSize(int(cfg.withDefaults().ValueSize))
	s, err := openStore(path, kindSimple, cfg, recordSize)
	if err != nil {
		return nil, err
	}
	return &SimpleTree{s: s}, nil
}

func (t *SimpleTree) order() int     { return int(t.s.meta.Order) }
func (t *SimpleTree) valueSize() int { return int(t.s.meta.ValueSize) }

// Close releases the underlying file handle.
func (t *SimpleTree) Close() error { return t.s.close() }

// Flush delegates to the host file's fsync. The engine does not call this
// implicitly; durability beyond the OS page cache is the caller's choice.
func (t *SimpleTree) Flush() error { return t.s.flush() }

// Sync is an alias for Flush, matching the common Go naming for the same
// operation.
func (t *SimpleTree) Sync() error { return t.s.flush() }

func (t *SimpleTree) loadLeaf(page int32) (node.RecordNode, error) {
	buf, err := t.s.readPage(page)
	if err != nil {
		return node.RecordNode{}, fmt.Errorf("tree: load leaf %d: %w", page, err)
	}
	rn, err := node.DecodeRecordNode(buf, t.s.pageSize, t.order(), t.valueSize())
	if err != nil {
		t.s.log.Warn("structural error", zap.Int32("page", page), zap.String("kind", "record"), zap.Error(err))
		return node.RecordNode{}, &StructuralError{Page: page, Err: err}
	}
	return rn, nil
}

func (t *SimpleTree) writeLeaf(page int32, rn node.RecordNode) error {
	buf, err := node.EncodeRecordNode(rn, t.s.pageSize, t.order(), t.valueSize())
	if err != nil {
		return err
	}
	return t.s.writePage(page, buf)
}

// leafSeek descends to the leaf that should hold key and binary-searches
// it for the first record with Key >= key, mirroring table.Cursor.Seek in
// the teacher this engine is descended from.
func (t *SimpleTree) leafSeek(key uuid.UUID) (page int32, path []int32, idx int, rn node.RecordNode, err error) {
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

// Get returns a copy of the value stored for key, or ErrEntryNotFound.
func (t *SimpleTree) Get(key uuid.UUID) ([]byte, error) {
	_, _, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return nil, err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return nil, ErrEntryNotFound
	}
	return append([]byte(nil), rn.Records[idx].Value...), nil
}

// Insert adds (key, value). value must be at most valueSize bytes; it is
// zero-padded on write. Fails with ErrRecordExists if key is present.
func (t *SimpleTree) Insert(key uuid.UUID, value []byte) error {
	if len(value) > t.valueSize() {
		return fmt.Errorf("tree: insert %s: %w", key, ErrValueSizeError)
	}
	page, path, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx < len(rn.Records) && rn.Records[idx].Key == key {
		return fmt.Errorf("tree: insert %s: %w", key, ErrRecordExists)
	}

	padded := make([]byte, t.valueSize())
	copy(padded, value)
	rec := node.NewSimpleRecord(key, padded)

	rn.Records = append(rn.Records, node.SimpleRecord{})
	copy(rn.Records[idx+1:], rn.Records[idx:])
	rn.Records[idx] = rec

	t.s.log.Debug("insert", zap.String("key", key.String()))

	if len(rn.Records) <= t.order() {
		return t.writeLeaf(page, rn)
	}
	return t.splitLeaf(page, path, rn)
}

// splitLeaf partitions an overfull leaf, writing both halves and promoting
// a reference to the new leaf's smallest key per spec.md §4.3.
func (t *SimpleTree) splitLeaf(page int32, path []int32, rn node.RecordNode) error {
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

	lowerNode := node.RecordNode{Kind: node.KindLeaf, Next: newPage, Records: append([]node.SimpleRecord(nil), lower...)}
	upperNode := node.RecordNode{Kind: node.KindLeaf, Next: rn.Next, Records: append([]node.SimpleRecord(nil), upper...)}

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

// Update replaces the value for an existing key. Fails with
// ErrEntryNotFound if key is absent.
func (t *SimpleTree) Update(key uuid.UUID, value []byte) error {
	if len(value) > t.valueSize() {
		return fmt.Errorf("tree: update %s: %w", key, ErrValueSizeError)
	}
	page, _, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return ErrEntryNotFound
	}
	padded := make([]byte, t.valueSize())
	copy(padded, value)
	rn.Records[idx] = node.NewSimpleRecord(key, padded)
	return t.writeLeaf(page, rn)
}

// Delete removes key. The core never rebalances on underflow (spec.md
// §4.3); this is a conscious simplification, not a bug. A leaf drained to
// zero records is detached from its parent and recycled when
// detachLeafFromParent can do so with a single local edit (see its doc
// comment); otherwise the emptied leaf is left in place, same as any other
// benign underflow.
func (t *SimpleTree) Delete(key uuid.UUID) error {
	page, path, idx, rn, err := t.leafSeek(key)
	if err != nil {
		return err
	}
	if idx >= len(rn.Records) || rn.Records[idx].Key != key {
		return ErrEntryNotFound
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

// SimpleCursor iterates simple-tree records in ascending key order.
type SimpleCursor struct {
	t     *SimpleTree
	stop  *uuid.UUID
	page  int32
	idx   int
	node  node.RecordNode
	valid bool
	err   error
}

// Range returns a cursor over [start, stop). A nil start begins at the
// left-most record; a nil stop runs to the end of the tree. start == stop
// yields an immediately-invalid cursor; start > stop fails eagerly with
// ErrIterBackwardError.
func (t *SimpleTree) Range(start, stop *uuid.UUID) (*SimpleCursor, error) {
	if start != nil && stop != nil {
		if *start == *stop {
			return &SimpleCursor{t: t, stop: stop, valid: false}, nil
		}
		if uuidLess(*stop, *start) {
			return nil, fmt.Errorf("tree: range: %w", ErrIterBackwardError)
		}
	}

	var seekKey uuid.UUID
	if start != nil {
		seekKey = *start
	}
	page, _, idx, rn, err := t.leafSeek(seekKey)
	if err != nil {
		return nil, err
	}
	c := &SimpleCursor{t: t, stop: stop, page: page, idx: idx, node: rn}
	c.settle()
	return c, nil
}

// RangeStep is Range with an explicit step. Only a step of one is
// supported; anything else fails with ErrIterCustomError.
func (t *SimpleTree) RangeStep(start, stop *uuid.UUID, step int) (*SimpleCursor, error) {
	if step != 1 {
		return nil, fmt.Errorf("tree: range: step %d: %w", step, ErrIterCustomError)
	}
	return t.Range(start, stop)
}

// Seek repositions a cursor at the first key >= target.
func (c *SimpleCursor) Seek(target uuid.UUID) error {
	page, _, idx, rn, err := c.t.leafSeek(target)
	if err != nil {
		return err
	}
	c.page, c.idx, c.node = page, idx, rn
	c.settle()
	return c.err
}

func (c *SimpleCursor) settle() {
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
		c.page = c.node.Next
		c.node = rn
		c.idx = 0
	}
}

// Valid reports whether the cursor is positioned at a record.
func (c *SimpleCursor) Valid() bool { return c.valid }

// Err returns the first error encountered while advancing, if any.
func (c *SimpleCursor) Err() error { return c.err }

// Key returns the current record's key. Call only when Valid.
func (c *SimpleCursor) Key() uuid.UUID { return c.node.Records[c.idx].Key }

// Value returns a copy of the current record's value. Call only when Valid.
func (c *SimpleCursor) Value() []byte {
	return append([]byte(nil), c.node.Records[c.idx].Value...)
}

// Next advances to the next record in key order.
func (c *SimpleCursor) Next() error {
	if !c.valid {
		return c.err
	}
	c.idx++
	c.settle()
	return c.err
}
