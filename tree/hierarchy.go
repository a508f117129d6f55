package tree

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uuidbtree/node"
)

// descend walks from the root to the record-bearing page that should
// contain key, returning that page and the stack of interior pages visited
// on the way down (nearest ancestor last), mirroring spec.md §4.3's
// explicit-path-stack alternative to a parent back-pointer.
func (s *store) descend(key uuid.UUID) (leaf int32, path []int32, err error) {
	cur := s.meta.Root
	for {
		page, err := s.readPage(cur)
		if err != nil {
			return 0, nil, fmt.Errorf("tree: descend: read page %d: %w", cur, err)
		}
		kind, err := node.PeekKind(page)
		if err != nil {
			s.log.Warn("structural error", zap.Int32("page", cur), zap.String("kind", "unknown"), zap.Error(err))
			return 0, nil, &StructuralError{Page: cur, Err: err}
		}
		if kind.IsRecordBearing() {
			return cur, path, nil
		}
		if !kind.IsInterior() {
			s.log.Warn("structural error", zap.Int32("page", cur), zap.String("kind", kind.String()), zap.Error(node.ErrWrongNodeKind))
			return 0, nil, &StructuralError{Page: cur, Err: node.ErrWrongNodeKind}
		}
		sn, err := node.DecodeStructure(page, s.pageSize, int(s.meta.RefOrder))
		if err != nil {
			s.log.Warn("structural error", zap.Int32("page", cur), zap.String("kind", "structure"), zap.Error(err))
			return 0, nil, &StructuralError{Page: cur, Err: err}
		}
		next, ok := chooseChild(sn.Refs, key)
		if !ok {
			return 0, nil, fmt.Errorf("tree: descend at page %d: %w", cur, ErrSearchError)
		}
		path = append(path, cur)
		cur = next
	}
}

// chooseChild implements the three-way descent rule from spec.md §4.3.
func chooseChild(refs []node.Reference, key uuid.UUID) (int32, bool) {
	if len(refs) == 0 {
		return 0, false
	}
	if uuidLess(key, refs[0].Key) {
		return refs[0].Before, true
	}
	last := refs[len(refs)-1]
	if uuidLessEq(last.Key, key) {
		return last.After, true
	}
	for i := 0; i < len(refs)-1; i++ {
		if uuidLessEq(refs[i].Key, key) && uuidLess(key, refs[i+1].Key) {
			return refs[i].After, true
		}
	}
	return 0, false
}

// detachLeafFromParent removes the reference to a just-emptied leaf from
// its immediate parent (the last entry of path), fixing adjacency between
// the reference's former neighbors so the parent stays a valid structure
// node. It is the counterpart to splitLeaf's reference insertion, run in
// reverse: one local edit, never cascading into the grandparent.
//
// Detaching is skipped (ok=false, no change made) whenever it cannot be
// done safely without the back-pointers or rebalancing spec.md §1's
// Non-goals rule out:
//   - page is the tree's own root (path is empty): nothing to detach from.
//   - page is its parent's left-most child: no reference in this parent
//     has After == page, so the leaf immediately before it in the chain
//     isn't reachable from here without re-descending the whole tree.
//   - the parent holds fewer than two references: removing one would
//     leave zero, which (unlike benign record-count underflow) makes the
//     parent unable to choose a child at all.
// A leaf that can't be detached is simply left in place, empty — the same
// benign-underflow tolerance spec.md §4.3 already grants steady-state
// leaves that fall under minimum fill.
func (s *store) detachLeafFromParent(page int32, path []int32) (prevLeaf int32, ok bool, err error) {
	if len(path) == 0 {
		return 0, false, nil
	}
	parentPage := path[len(path)-1]
	buf, err := s.readPage(parentPage)
	if err != nil {
		return 0, false, fmt.Errorf("tree: detach leaf: read parent %d: %w", parentPage, err)
	}
	sn, err := node.DecodeStructure(buf, s.pageSize, int(s.meta.RefOrder))
	if err != nil {
		s.log.Warn("structural error", zap.Int32("page", parentPage), zap.String("kind", "structure"), zap.Error(err))
		return 0, false, &StructuralError{Page: parentPage, Err: err}
	}
	if len(sn.Refs) < 2 {
		return 0, false, nil
	}

	j := -1
	for i, r := range sn.Refs {
		if r.After == page {
			j = i
			break
		}
	}
	if j == -1 {
		return 0, false, nil
	}
	prev := sn.Refs[j].Before

	refs := append([]node.Reference(nil), sn.Refs...)
	if j+1 < len(refs) {
		refs[j] = node.Reference{Before: refs[j].Before, After: refs[j+1].After, Key: refs[j+1].Key}
		refs = append(refs[:j+1], refs[j+2:]...)
	} else {
		refs = append(refs[:j], refs[j+1:]...)
	}
	sn.Refs = refs

	out, err := node.EncodeStructure(sn, s.pageSize, int(s.meta.RefOrder))
	if err != nil {
		return 0, false, err
	}
	if err := s.writePage(parentPage, out); err != nil {
		return 0, false, fmt.Errorf("tree: detach leaf: write parent %d: %w", parentPage, err)
	}
	s.log.Info("leaf detached", zap.Int32("page", page), zap.Int32("parent", parentPage))
	return prev, true, nil
}

// promote inserts a freshly split child's reference into its parent,
// cascading splits up the path and creating a new root when the split
// child had no parent.
func (s *store) promote(path []int32, ref node.Reference) error {
	if len(path) == 0 {
		return s.createRoot(ref)
	}
	parent := path[len(path)-1]
	return s.insertRefInto(parent, path[:len(path)-1], ref)
}

// createRoot allocates a fresh Root page holding a single reference,
// replacing whatever the previous root was (the caller is responsible for
// having already demoted the previous root's kind and rewritten it).
func (s *store) createRoot(ref node.Reference) error {
	newRootPage, err := s.allocate()
	if err != nil {
		return fmt.Errorf("tree: create root: %w", err)
	}
	sn := node.StructureNode{Kind: node.KindRoot, Refs: []node.Reference{ref}}
	buf, err := node.EncodeStructure(sn, s.pageSize, int(s.meta.RefOrder))
	if err != nil {
		return err
	}
	if err := s.writePage(newRootPage, buf); err != nil {
		return fmt.Errorf("tree: create root: write page %d: %w", newRootPage, err)
	}
	s.meta.Root = newRootPage
	if err := s.saveMeta(); err != nil {
		return err
	}
	s.log.Info("root promoted", zap.Int32("root", newRootPage))
	return nil
}

// insertRefInto splices ref into the structure node at page, fixing up
// adjacency with its new neighbors, and splits page (cascading through
// ancestors) if it overflows ref_order.
func (s *store) insertRefInto(page int32, ancestors []int32, ref node.Reference) error {
	buf, err := s.readPage(page)
	if err != nil {
		return fmt.Errorf("tree: insert reference: read page %d: %w", page, err)
	}
	sn, err := node.DecodeStructure(buf, s.pageSize, int(s.meta.RefOrder))
	if err != nil {
		s.log.Warn("structural error", zap.Int32("page", page), zap.String("kind", "structure"), zap.Error(err))
		return &StructuralError{Page: page, Err: err}
	}

	idx := sort.Search(len(sn.Refs), func(i int) bool { return !uuidLess(sn.Refs[i].Key, ref.Key) })
	refs := append(sn.Refs, node.Reference{})
	copy(refs[idx+1:], refs[idx:])
	refs[idx] = ref
	if idx > 0 {
		refs[idx-1].After = ref.Before
	}
	if idx+1 < len(refs) {
		refs[idx+1].Before = ref.After
	}
	sn.Refs = refs

	if len(refs) <= int(s.meta.RefOrder) {
		out, err := node.EncodeStructure(sn, s.pageSize, int(s.meta.RefOrder))
		if err != nil {
			return err
		}
		return s.writePage(page, out)
	}

	return s.splitStructure(page, ancestors, sn)
}

// splitStructure partitions an overflowed structure node, promoting the
// smallest key of the upper half, exactly mirroring leaf split's
// partition rule (spec.md §4.3 "Parent split").
func (s *store) splitStructure(page int32, ancestors []int32, sn node.StructureNode) error {
	if len(sn.Refs) <= 4 {
		return fmt.Errorf("tree: split structure page %d: %w", page, ErrCleaveError)
	}
	wasRoot := sn.Kind == node.KindRoot
	mid := len(sn.Refs) / 2
	lower := sn.Refs[:mid]
	promoted := sn.Refs[mid]
	upper := sn.Refs[mid+1:]

	newPage, err := s.allocate()
	if err != nil {
		return fmt.Errorf("tree: split structure: %w", err)
	}

	lowerNode := node.StructureNode{Kind: node.KindStructure, Refs: append([]node.Reference(nil), lower...)}
	upperNode := node.StructureNode{Kind: node.KindStructure, Refs: append([]node.Reference(nil), upper...)}

	lowerBuf, err := node.EncodeStructure(lowerNode, s.pageSize, int(s.meta.RefOrder))
	if err != nil {
		return err
	}
	if err := s.writePage(page, lowerBuf); err != nil {
		return fmt.Errorf("tree: split structure: write lower %d: %w", page, err)
	}
	upperBuf, err := node.EncodeStructure(upperNode, s.pageSize, int(s.meta.RefOrder))
	if err != nil {
		return err
	}
	if err := s.writePage(newPage, upperBuf); err != nil {
		return fmt.Errorf("tree: split structure: write upper %d: %w", newPage, err)
	}

	promotedRef := node.Reference{Before: page, After: newPage, Key: promoted.Key}
	s.log.Info("structure split", zap.Int32("left", page), zap.Int32("right", newPage))

	if wasRoot {
		return s.createRoot(promotedRef)
	}
	if len(ancestors) == 0 {
		return s.createRoot(promotedRef)
	}
	parent := ancestors[len(ancestors)-1]
	return s.insertRefInto(parent, ancestors[:len(ancestors)-1], promotedRef)
}
