// Package column gives the multi-tree an optional typed item schema:
// int/text sub-fields packed into a fixed-width item, the same way the
// teacher's column package gave typed fixed-width rows to its single-value
// tree. Opaque []byte items remain the default; a Schema is only needed
// when a caller wants named, typed sub-fields within one item.
package column

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ColumnType is the type tag for one field of a Schema.
type ColumnType int

const (
	ColumnTypeInt ColumnType = iota
	ColumnTypeText
)

// Column describes one fixed-width field within an item.
type Column struct {
	Name      string
	Type      ColumnType
	Offset    uint32
	ByteSize  uint32
	MaxLength uint32 // ColumnTypeText only
}

// Schema is an ordered list of Columns describing one multi-tree item's
// layout. Build one with BuildSchema so Offset/ByteSize are computed
// consistently.
type Schema []Column

// Row is one item's typed values, keyed by column name.
type Row map[string]any

// BuildSchema computes Offset and ByteSize for each column and returns the
// finished schema alongside the item's total fixed width.
func BuildSchema(columns []Column) (Schema, uint32, error) {
	schema := make(Schema, len(columns))
	var offset uint32
	for i, c := range columns {
		switch c.Type {
		case ColumnTypeInt:
			c.ByteSize = 4
		case ColumnTypeText:
			if c.MaxLength == 0 {
				return nil, 0, fmt.Errorf("column: %q: text column needs MaxLength", c.Name)
			}
			c.ByteSize = c.MaxLength
		default:
			return nil, 0, fmt.Errorf("column: %q: unknown column type %d", c.Name, c.Type)
		}
		c.Offset = offset
		offset += c.ByteSize
		schema[i] = c
	}
	return schema, offset, nil
}

// ItemSize returns the schema's total fixed width in bytes.
func (s Schema) ItemSize() uint32 {
	var total uint32
	for _, c := range s {
		total += c.ByteSize
	}
	return total
}

// Encode packs row into a fresh item of exactly ItemSize bytes.
func (s Schema) Encode(row Row) ([]byte, error) {
	dst := make([]byte, s.ItemSize())
	for _, c := range s {
		v, ok := row[c.Name]
		if !ok {
			continue // absent fields stay zero
		}
		switch c.Type {
		case ColumnTypeInt:
			val, ok := v.(uint32)
			if !ok {
				return nil, fmt.Errorf("column: encode %q: expected uint32, got %T", c.Name, v)
			}
			binary.BigEndian.PutUint32(dst[c.Offset:c.Offset+4], val)
		case ColumnTypeText:
			str, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("column: encode %q: expected string, got %T", c.Name, v)
			}
			b := []byte(str)
			if uint32(len(b)) > c.MaxLength {
				b = b[:c.MaxLength]
			}
			copy(dst[c.Offset:c.Offset+c.ByteSize], b)
		}
	}
	return dst, nil
}

// Decode unpacks an item of exactly ItemSize bytes into a Row.
func (s Schema) Decode(item []byte) (Row, error) {
	if uint32(len(item)) != s.ItemSize() {
		return nil, fmt.Errorf("column: decode: item is %d bytes, want %d", len(item), s.ItemSize())
	}
	row := make(Row, len(s))
	for _, c := range s {
		field := item[c.Offset : c.Offset+c.ByteSize]
		switch c.Type {
		case ColumnTypeInt:
			row[c.Name] = binary.BigEndian.Uint32(field)
		case ColumnTypeText:
			row[c.Name] = strings.TrimRight(string(field), "\x00")
		}
	}
	return row, nil
}
