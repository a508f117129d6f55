package analyze

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uuidbtree/node"
	"uuidbtree/pager"
	"uuidbtree/tree"
)

// RescueOptions describes both the file being rescued (so its pages can be
// read directly, bypassing any trust in its own hierarchy or free stack)
// and the configuration of the fresh tree to build from what is found.
// Callers must know the original PageSize/MetaSize/Order/ValueSize; an
// unreadable or unknown configuration cannot be rescued blind.
type RescueOptions struct {
	PageSize  int
	MetaSize  int
	Kind      byte // 'S' simple, 'M' multi
	Order     uint32
	ValueSize uint32
	RefOrder  uint32
	ItemOrder uint32
	Logger    *zap.Logger
}

func (o RescueOptions) withDefaults() RescueOptions {
	if o.MetaSize == 0 {
		o.MetaSize = 64
	}
	if o.RefOrder == 0 {
		o.RefOrder = o.Order
	}
	if o.ItemOrder == 0 {
		o.ItemOrder = o.Order
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// RescueResult summarizes one rescue pass.
type RescueResult struct {
	Inserted    int
	Skipped     int
	SkippedKeys []uuid.UUID
}

// Rescue creates a fresh tree file at outPath with the given configuration
// and reinserts every record reachable from a direct, physical scan of
// inPath's S/L pages, in scan order (not key order) — spec.md §4.6.
// Duplicate keys (which a healthy tree never produces) are skipped and
// logged rather than failing the whole pass.
func Rescue(inPath, outPath string, opts RescueOptions) (*RescueResult, error) {
	opts = opts.withDefaults()

	pgr, err := pager.Open(inPath, opts.PageSize, opts.MetaSize, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("analyze: rescue: open input: %w", err)
	}
	defer pgr.Close()

	cfg := tree.Config{
		Order:     opts.Order,
		ValueSize: opts.ValueSize,
		RefOrder:  opts.RefOrder,
		ItemOrder: opts.ItemOrder,
		PageSize:  opts.PageSize,
		MetaSize:  opts.MetaSize,
		Logger:    opts.Logger,
	}

	result := &RescueResult{}

	switch opts.Kind {
	case 'S':
		out, err := tree.OpenSimple(outPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("analyze: rescue: open output: %w", err)
		}
		defer out.Close()

		err = pgr.ForEach(func(idx int32, data []byte) error {
			kind, kErr := node.PeekKind(data)
			if kErr != nil || !kind.IsRecordBearing() {
				return nil
			}
			rn, dErr := node.DecodeRecordNode(data, opts.PageSize, int(opts.Order), int(opts.ValueSize))
			if dErr != nil {
				opts.Logger.Warn("rescue: skipping unreadable page", zap.Int32("page", idx), zap.Error(dErr))
				return nil
			}
			for _, rec := range rn.Records {
				if insErr := out.Insert(rec.Key, rec.Value); insErr != nil {
					if errors.Is(insErr, tree.ErrRecordExists) {
						result.Skipped++
						result.SkippedKeys = append(result.SkippedKeys, rec.Key)
						opts.Logger.Warn("rescue: duplicate key", zap.String("key", rec.Key.String()))
						continue
					}
					return fmt.Errorf("analyze: rescue: insert %s: %w", rec.Key, insErr)
				}
				result.Inserted++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if err := out.Flush(); err != nil {
			return nil, fmt.Errorf("analyze: rescue: flush output: %w", err)
		}

	case 'M':
		out, err := tree.OpenMulti(outPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("analyze: rescue: open output: %w", err)
		}
		defer out.Close()

		err = pgr.ForEach(func(idx int32, data []byte) error {
			kind, kErr := node.PeekKind(data)
			if kErr != nil || !kind.IsRecordBearing() {
				return nil
			}
			rn, dErr := node.DecodeItemsRecordNode(data, opts.PageSize, int(opts.Order))
			if dErr != nil {
				opts.Logger.Warn("rescue: skipping unreadable page", zap.Int32("page", idx), zap.Error(dErr))
				return nil
			}
			for _, rec := range rn.Records {
				items, tErr := rawTraverseItems(pgr, rec.Page, int(rec.Count), int(opts.ValueSize), int(opts.ItemOrder))
				if tErr != nil {
					opts.Logger.Warn("rescue: skipping unreadable item chain", zap.String("key", rec.Key.String()), zap.Error(tErr))
					continue
				}
				if insErr := out.Insert(rec.Key, items); insErr != nil {
					if errors.Is(insErr, tree.ErrRecordExists) {
						result.Skipped++
						result.SkippedKeys = append(result.SkippedKeys, rec.Key)
						opts.Logger.Warn("rescue: duplicate key", zap.String("key", rec.Key.String()))
						continue
					}
					return fmt.Errorf("analyze: rescue: insert %s: %w", rec.Key, insErr)
				}
				result.Inserted++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if err := out.Flush(); err != nil {
			return nil, fmt.Errorf("analyze: rescue: flush output: %w", err)
		}

	default:
		return nil, fmt.Errorf("analyze: rescue: unknown kind %q", opts.Kind)
	}

	return result, nil
}

// rawTraverseItems reads an item chain directly off pgr, without going
// through a store's cache or write path — the input file to a rescue pass
// may be damaged, so reads here stay as close to the bytes as possible.
func rawTraverseItems(pgr *pager.Pager, head int32, want, itemSize, capacity int) ([][]byte, error) {
	if head == node.NoPage {
		if want != 0 {
			return nil, fmt.Errorf("analyze: rescue: item chain advertises %d items: %w", want, node.ErrPageNotSet)
		}
		return nil, nil
	}
	var items [][]byte
	cur := head
	for cur != node.NoPage {
		data, err := pgr.Read(cur)
		if err != nil {
			return nil, fmt.Errorf("analyze: rescue: read item page %d: %w", cur, err)
		}
		in, err := node.DecodeItemsNode(data, pgr.PageSize(), itemSize, capacity)
		if err != nil {
			return nil, fmt.Errorf("analyze: rescue: decode item page %d: %w", cur, err)
		}
		items = append(items, in.Items...)
		cur = in.Next
	}
	if len(items) != want {
		return nil, fmt.Errorf("analyze: rescue: item chain produced %d items, record advertises %d", len(items), want)
	}
	return items, nil
}
