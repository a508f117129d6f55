package tree

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uuidbtree/node"
	"uuidbtree/pager"
)

// cacheCapacity is the number of pages the LRU byte cache in front of the
// pager keeps hot. The pager itself stays single-seek-then-I/O per spec.md
// §4.1; the cache wraps it and sits in front of it.
const cacheCapacity = 256

// store is the shared low-level engine underneath both SimpleTree and
// MultiTree: pager I/O, meta bookkeeping, the free-page stack, and B+Tree
// descent/split/promotion. Both public tree variants hold one and layer
// their own record codec and leaf-split logic on top.
type store struct {
	pgr      *pager.Pager
	cache    *pager.Cache
	pageSize int
	cfg      Config
	meta     meta
	log      *zap.Logger
}

// openStore opens or creates path as a tree file of the given kind,
// validating stored meta against cfg on reopen. recordSize is the leaf
// record width used to compute a default page size.
func openStore(path string, kind treeKind, cfg Config, recordSize int) (*store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	computed := minPageSize(cfg, recordSize)
	pageSize := computed
	if cfg.PageSize != 0 {
		if cfg.PageSize < computed {
			return nil, &ConfigError{Field: "page_size", Err: ErrConfigSizeError}
		}
		pageSize = cfg.PageSize
	}

	// Check stored meta before the pager frames the file with a page size
	// derived from cfg, which a mismatched Order or ValueSize would change.
	if f, err := os.Open(path); err == nil {
		raw := make([]byte, cfg.MetaSize)
		_, readErr := io.ReadFull(f, raw)
		fi, statErr := f.Stat()
		f.Close()
		if readErr == nil && statErr == nil && fi.Size() > int64(cfg.MetaSize) {
			if m, err := decodeMeta(raw); err == nil && (m.Kind != kind || m.Order != cfg.Order || m.RefOrder != cfg.RefOrder || m.ValueSize != cfg.ValueSize) {
				return nil, &ConfigError{Field: "meta", Err: ErrConfigurationError}
			}
		}
	}

	pgr, err := pager.Open(path, pageSize, cfg.MetaSize, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("tree: open store: %w", err)
	}

	s := &store{pgr: pgr, cache: pager.NewCache(pgr, cacheCapacity), pageSize: pageSize, cfg: cfg, log: cfg.Logger}

	if pgr.NumPages() == 0 {
		s.meta = meta{Kind: kind, Root: 0, FreeHead: node.NoPage, Order: cfg.Order, RefOrder: cfg.RefOrder, ValueSize: cfg.ValueSize}
		root := node.RecordNode{Kind: node.KindStart, Next: node.NoPage}
		buf, err := encodeEmptyStartRecord(root, pageSize, int(cfg.Order), int(cfg.ValueSize), kind)
		if err != nil {
			return nil, err
		}
		if _, err := s.pgr.Append(buf); err != nil {
			return nil, fmt.Errorf("tree: initialize root page: %w", err)
		}
		if err := s.saveMeta(); err != nil {
			return nil, err
		}
		s.log.Info("tree created", zap.String("kind", string(kind)), zap.Int("page_size", pageSize))
		return s, nil
	}

	rawMeta, err := pgr.Meta()
	if err != nil {
		return nil, fmt.Errorf("tree: read meta: %w", err)
	}
	m, err := decodeMeta(rawMeta)
	if err != nil {
		return nil, fmt.Errorf("tree: decode meta: %w", err)
	}
	if m.Kind != kind || m.Order != cfg.Order || m.RefOrder != cfg.RefOrder || m.ValueSize != cfg.ValueSize {
		return nil, &ConfigError{Field: "meta", Err: ErrConfigurationError}
	}
	s.meta = m
	s.log.Debug("tree opened", zap.String("kind", string(kind)), zap.Int32("root", m.Root))
	return s, nil
}

// encodeEmptyStartRecord builds the initial, empty Start page for either
// tree variant; both record shapes encode identically when there are zero
// records, but we keep the switch explicit for clarity at the call site.
func encodeEmptyStartRecord(n node.RecordNode, pageSize, order, valueSize int, kind treeKind) ([]byte, error) {
	switch kind {
	case kindSimple:
		return node.EncodeRecordNode(n, pageSize, order, valueSize)
	case kindMulti:
		in := node.ItemsRecordNode{Kind: n.Kind, Next: n.Next}
		return node.EncodeItemsRecordNode(in, pageSize, order)
	default:
		return nil, fmt.Errorf("tree: unknown kind %q", byte(kind))
	}
}

func (s *store) readPage(idx int32) ([]byte, error) {
	return s.cache.Read(idx)
}

func (s *store) writePage(idx int32, data []byte) error {
	return s.cache.Write(data, idx)
}

func (s *store) appendPage(data []byte) (int32, error) {
	return s.cache.Append(data)
}

func (s *store) saveMeta() error {
	buf := encodeMeta(s.meta)
	if want := s.pgr.MetaSize(); len(buf) < want {
		padded := make([]byte, want)
		copy(padded, buf)
		buf = padded
	}
	return s.pgr.SetMeta(buf)
}

// allocate returns a page ready to be overwritten with a fresh node: either
// a popped free-stack entry, or a freshly appended zero page.
func (s *store) allocate() (int32, error) {
	if s.meta.FreeHead == node.NoPage {
		page, err := s.appendPage(make([]byte, s.pageSize))
		if err != nil {
			return 0, fmt.Errorf("tree: allocate: append: %w", err)
		}
		return page, nil
	}
	head := s.meta.FreeHead
	buf, err := s.readPage(head)
	if err != nil {
		return 0, fmt.Errorf("tree: allocate: read free head %d: %w", head, err)
	}
	en, err := node.DecodeEmptyNode(buf, s.pageSize)
	if err != nil {
		s.log.Warn("structural error", zap.Int32("page", head), zap.String("kind", "empty"), zap.Error(err))
		return 0, &StructuralError{Page: head, Err: err}
	}
	s.meta.FreeHead = en.Next
	if err := s.saveMeta(); err != nil {
		return 0, err
	}
	return head, nil
}

// recycle pushes page onto the free stack.
func (s *store) recycle(page int32) error {
	buf, err := node.EncodeEmptyNode(node.EmptyNode{Next: s.meta.FreeHead}, s.pageSize)
	if err != nil {
		return err
	}
	if err := s.writePage(page, buf); err != nil {
		return fmt.Errorf("tree: recycle: write page %d: %w", page, err)
	}
	s.meta.FreeHead = page
	if err := s.saveMeta(); err != nil {
		return err
	}
	s.log.Debug("page recycled", zap.Int32("page", page))
	return nil
}

func (s *store) flush() error {
	return s.pgr.Sync()
}

func (s *store) close() error {
	return s.pgr.Close()
}

func uuidLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func uuidLessEq(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) <= 0
}
