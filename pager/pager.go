// Package pager implements the fixed-size-page file framing that every
// higher layer of the engine is built on: a meta block at offset zero
// followed by a flat run of equal-size pages, addressed by a zero-based
// signed index. The pager does no caching or coalescing of its own; every
// read or write is a single seek followed by a single I/O call, so the
// contract stays simple enough for the tree layer to reason about page
// lifetimes precisely (see cache.go for an optional LRU in front of it).
package pager

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// NoPage is the sentinel page index meaning "none" wherever a page
// reference can be absent (a leaf's next pointer, an empty chain head, ...).
const NoPage int32 = -1

var (
	// ErrUnevenLength is returned by Open when the file's length, after
	// subtracting the meta block, isn't an exact multiple of the page size.
	ErrUnevenLength = errors.New("pager: file length is not an even multiple of page size")
	// ErrMetaSizeInvalid is returned when a meta buffer passed to SetMeta
	// doesn't match the configured meta size.
	ErrMetaSizeInvalid = errors.New("pager: meta buffer size mismatch")
	// ErrOutOfBounds is returned by Read/Write for a page index outside
	// [0, NumPages).
	ErrOutOfBounds = errors.New("pager: page index out of bounds")
	// ErrPageSizeInvalid is returned by Write when the supplied buffer
	// isn't exactly PageSize bytes.
	ErrPageSizeInvalid = errors.New("pager: page buffer size mismatch")
	// ErrSeekOffsetError is returned whenever a seek lands somewhere other
	// than the offset requested; it signals a corrupt or truncated file.
	ErrSeekOffsetError = errors.New("pager: seek landed at an unexpected offset")
)

// Pager is a typed random-access store of equal-size pages over a single
// seekable file, with a fixed-size meta block preceding page 0.
type Pager struct {
	file     *os.File
	pageSize int
	metaSize int
	numPages int32
	log      *zap.Logger
}

// Open opens (or creates) path as a page file with the given page and meta
// sizes. If the file is empty, metaSize zero bytes are written as a meta
// placeholder and the page count starts at zero. Otherwise the existing
// length is validated against pageSize/metaSize.
func Open(path string, pageSize, metaSize int, log *zap.Logger) (*Pager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %q: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %q: %w", path, err)
	}

	p := &Pager{file: f, pageSize: pageSize, metaSize: metaSize, log: log}

	if fi.Size() == 0 {
		if err := p.writeAt(make([]byte, metaSize), 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: init meta placeholder: %w", err)
		}
		return p, nil
	}

	remainder := fi.Size() - int64(metaSize)
	if remainder < 0 || remainder%int64(pageSize) != 0 {
		f.Close()
		return nil, fmt.Errorf("pager: %q: %w", path, ErrUnevenLength)
	}
	p.numPages = int32(remainder / int64(pageSize))
	log.Debug("pager opened", zap.String("path", path), zap.Int32("pages", p.numPages))
	return p, nil
}

// PageSize returns the configured page size in bytes.
func (p *Pager) PageSize() int { return p.pageSize }

// MetaSize returns the configured meta block size in bytes.
func (p *Pager) MetaSize() int { return p.metaSize }

// NumPages returns the current page count.
func (p *Pager) NumPages() int32 { return p.numPages }

// Meta reads the meta block back from offset zero.
func (p *Pager) Meta() ([]byte, error) {
	buf := make([]byte, p.metaSize)
	if _, err := p.file.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("pager: read meta: %w", err)
	}
	return buf, nil
}

// SetMeta overwrites the meta block. data must be exactly MetaSize bytes.
func (p *Pager) SetMeta(data []byte) error {
	if len(data) != p.metaSize {
		return fmt.Errorf("pager: set meta: got %d bytes, want %d: %w", len(data), p.metaSize, ErrMetaSizeInvalid)
	}
	return p.writeAt(data, 0)
}

func (p *Pager) pageOffset(index int32) int64 {
	return int64(p.metaSize) + int64(index)*int64(p.pageSize)
}

// Read returns a copy of page index's bytes.
func (p *Pager) Read(index int32) ([]byte, error) {
	if index < 0 || index >= p.numPages {
		return nil, fmt.Errorf("pager: read page %d: %w", index, ErrOutOfBounds)
	}
	buf := make([]byte, p.pageSize)
	off := p.pageOffset(index)
	if err := p.readAt(buf, off); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", index, err)
	}
	return buf, nil
}

// Write overwrites page index with data, which must be exactly PageSize
// bytes.
func (p *Pager) Write(data []byte, index int32) error {
	if len(data) != p.pageSize {
		return fmt.Errorf("pager: write page %d: got %d bytes, want %d: %w", index, len(data), p.pageSize, ErrPageSizeInvalid)
	}
	if index < 0 || index >= p.numPages {
		return fmt.Errorf("pager: write page %d: %w", index, ErrOutOfBounds)
	}
	return p.writeAt(data, p.pageOffset(index))
}

// Append writes data as a brand-new page at the end of the file and
// returns its index. data must be exactly PageSize bytes.
func (p *Pager) Append(data []byte) (int32, error) {
	if len(data) != p.pageSize {
		return NoPage, fmt.Errorf("pager: append: got %d bytes, want %d: %w", len(data), p.pageSize, ErrPageSizeInvalid)
	}
	index := p.numPages
	if err := p.writeAt(data, p.pageOffset(index)); err != nil {
		return NoPage, fmt.Errorf("pager: append: %w", err)
	}
	p.numPages++
	p.log.Debug("pager appended page", zap.Int32("page", index))
	return index, nil
}

// ForEach calls fn for every page in ascending index order, stopping (and
// returning fn's error) on the first error.
func (p *Pager) ForEach(fn func(index int32, data []byte) error) error {
	for i := int32(0); i < p.numPages; i++ {
		data, err := p.Read(i)
		if err != nil {
			return err
		}
		if err := fn(i, data); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes the host file to stable storage. The engine itself never
// calls this implicitly; callers that want durability guarantees invoke it
// explicitly (see SimpleTree.Flush and MultiTree.Flush in package tree).
func (p *Pager) Sync() error {
	return p.file.Sync()
}

// Close closes the underlying file. It does not implicitly sync.
func (p *Pager) Close() error {
	return p.file.Close()
}

func (p *Pager) readAt(buf []byte, off int64) error {
	newOff, err := p.file.Seek(off, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	if newOff != off {
		return ErrSeekOffsetError
	}
	if _, err := io.ReadFull(p.file, buf); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

func (p *Pager) writeAt(buf []byte, off int64) error {
	newOff, err := p.file.Seek(off, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	if newOff != off {
		return ErrSeekOffsetError
	}
	if _, err := p.file.Write(buf); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
