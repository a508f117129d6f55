package tree

import (
	"fmt"

	"go.uber.org/zap"

	"uuidbtree/node"
)

// itemChain manages the auxiliary Items ('I') page chain a multi-tree
// leaf record points at (spec.md §4.5). Every operation here runs against
// a store and the configured item width/order; it knows nothing about the
// leaf record that references the chain, only about the chain itself.
type itemChain struct {
	s        *store
	itemSize int
	capacity int
}

func (t *MultiTree) chain() itemChain {
	return itemChain{s: t.s, itemSize: t.itemSize(), capacity: int(t.s.cfg.ItemOrder)}
}

// create builds a fresh chain from items, capacity items per page, and
// returns the head page (node.NoPage if items is empty).
func (c itemChain) create(items [][]byte) (int32, error) {
	if len(items) == 0 {
		return node.NoPage, nil
	}

	pages := make([]int32, 0, (len(items)+c.capacity-1)/c.capacity)
	for start := 0; start < len(items); start += c.capacity {
		page, err := c.s.allocate()
		if err != nil {
			return 0, fmt.Errorf("tree: create item chain: %w", err)
		}
		pages = append(pages, page)
	}

	for i, page := range pages {
		start := i * c.capacity
		end := start + c.capacity
		if end > len(items) {
			end = len(items)
		}
		next := int32(node.NoPage)
		if i+1 < len(pages) {
			next = pages[i+1]
		}
		in := node.ItemsNode{Next: next, Items: items[start:end]}
		buf, err := node.EncodeItemsNode(in, c.s.pageSize, c.itemSize, c.capacity)
		if err != nil {
			return 0, fmt.Errorf("tree: create item chain: encode page %d: %w", page, err)
		}
		if err := c.s.writePage(page, buf); err != nil {
			return 0, fmt.Errorf("tree: create item chain: write page %d: %w", page, err)
		}
	}

	c.s.log.Debug("item chain created", zap.Int32("head", pages[0]), zap.Int("items", len(items)))
	return pages[0], nil
}

// traverse reads every item in the chain headed at page, in order, without
// mutating anything. want is the record's advertised count; a mismatch
// fails with ErrPageIterError.
func (c itemChain) traverse(page int32, want int) ([][]byte, error) {
	if page == node.NoPage {
		if want != 0 {
			return nil, fmt.Errorf("tree: traverse item chain: record advertises %d items: %w", want, node.ErrPageNotSet)
		}
		return nil, nil
	}

	var items [][]byte
	cur := page
	for cur != node.NoPage {
		buf, err := c.s.readPage(cur)
		if err != nil {
			return nil, fmt.Errorf("tree: traverse item chain: read page %d: %w", cur, err)
		}
		in, err := node.DecodeItemsNode(buf, c.s.pageSize, c.itemSize, c.capacity)
		if err != nil {
			c.s.log.Warn("structural error", zap.Int32("page", cur), zap.String("kind", "items"), zap.Error(err))
			return nil, &StructuralError{Page: cur, Err: err}
		}
		items = append(items, in.Items...)
		cur = in.Next
	}
	if len(items) != want {
		return nil, fmt.Errorf("tree: traverse item chain: got %d items, record advertises %d: %w", len(items), want, ErrPageIterError)
	}
	return items, nil
}

// clear recycles every page in the chain headed at page.
func (c itemChain) clear(page int32) error {
	cur := page
	for cur != node.NoPage {
		buf, err := c.s.readPage(cur)
		if err != nil {
			return fmt.Errorf("tree: clear item chain: read page %d: %w", cur, err)
		}
		in, err := node.DecodeItemsNode(buf, c.s.pageSize, c.itemSize, c.capacity)
		if err != nil {
			c.s.log.Warn("structural error", zap.Int32("page", cur), zap.String("kind", "items"), zap.Error(err))
			return &StructuralError{Page: cur, Err: err}
		}
		next := in.Next
		if err := c.s.recycle(cur); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// update streams insertions concatenated after the current chain's items,
// filtering out anything byte-equal to a deletion, writes the result as a
// new chain, then recycles every page of the old chain, and returns the new
// head page and item count.
func (c itemChain) update(page int32, count int, insertions [][]byte, deletions [][]byte) (int32, int, error) {
	current, err := c.traverse(page, count)
	if err != nil {
		return 0, 0, err
	}

	filtered := make([][]byte, 0, len(current)+len(insertions))
	for _, item := range append(current, insertions...) {
		if !containsItem(deletions, item) {
			filtered = append(filtered, item)
		}
	}

	newHead, err := c.create(filtered)
	if err != nil {
		return 0, 0, err
	}
	if page != node.NoPage {
		if err := c.clear(page); err != nil {
			return 0, 0, err
		}
	}
	return newHead, len(filtered), nil
}

// ItemCursor is a lazy successor over one record's item chain, loading
// one chain page at a time. It verifies on exhaustion that the total
// items produced equals the record's advertised count (ErrPageIterError
// otherwise), the same check the eager traverse performs.
type ItemCursor struct {
	chain  itemChain
	next   int32
	page   [][]byte
	idx    int
	seen   int
	length int
	valid  bool
	err    error
}

// Len returns the record's advertised item count.
func (c *ItemCursor) Len() int { return c.length }

// Valid reports whether the cursor is positioned at an item.
func (c *ItemCursor) Valid() bool { return c.valid }

// Err returns the first error encountered while advancing, if any.
func (c *ItemCursor) Err() error { return c.err }

// Item returns a copy of the current item. Call only when Valid.
func (c *ItemCursor) Item() []byte {
	return append([]byte(nil), c.page[c.idx]...)
}

// Next advances to the following item in chain order.
func (c *ItemCursor) Next() error {
	if !c.valid {
		return c.err
	}
	c.idx++
	c.settle()
	return c.err
}

func (c *ItemCursor) settle() {
	for c.idx >= len(c.page) {
		if c.next == node.NoPage {
			if c.seen != c.length {
				c.err = fmt.Errorf("tree: traverse item chain: got %d items, record advertises %d: %w", c.seen, c.length, ErrPageIterError)
			}
			c.valid = false
			return
		}
		buf, err := c.chain.s.readPage(c.next)
		if err != nil {
			c.err = fmt.Errorf("tree: traverse item chain: read page %d: %w", c.next, err)
			c.valid = false
			return
		}
		in, err := node.DecodeItemsNode(buf, c.chain.s.pageSize, c.chain.itemSize, c.chain.capacity)
		if err != nil {
			c.chain.s.log.Warn("structural error", zap.Int32("page", c.next), zap.String("kind", "items"), zap.Error(err))
			c.err = &StructuralError{Page: c.next, Err: err}
			c.valid = false
			return
		}
		c.page = in.Items
		c.idx = 0
		c.seen += len(in.Items)
		c.next = in.Next
	}
	c.valid = true
}

func containsItem(set [][]byte, item []byte) bool {
	for _, s := range set {
		if string(s) == string(item) {
			return true
		}
	}
	return false
}
