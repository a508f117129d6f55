package pager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const testPageSize = 256
const testMetaSize = 32

func newTempPager(t *testing.T) (*Pager, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	p, err := Open(path, testPageSize, testMetaSize, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p, path
}

func TestOpenEmptyFile(t *testing.T) {
	p, path := newTempPager(t)
	defer p.Close()

	if p.NumPages() != 0 {
		t.Errorf("NumPages() = %d; want 0", p.NumPages())
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Size() != int64(testMetaSize) {
		t.Errorf("file size = %d; want %d (meta placeholder only)", fi.Size(), testMetaSize)
	}
}

func TestReadOutOfBounds(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	if _, err := p.Read(0); err == nil {
		t.Errorf("expected error reading page 0 of empty pager")
	}
}

func TestAppendAndRead(t *testing.T) {
	p, path := newTempPager(t)
	defer p.Close()

	page := bytes.Repeat([]byte{0xAB}, testPageSize)
	idx, err := p.Append(page)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if idx != 0 {
		t.Errorf("Append index = %d; want 0", idx)
	}
	if p.NumPages() != 1 {
		t.Errorf("NumPages() = %d; want 1", p.NumPages())
	}

	got, err := p.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, page) {
		t.Errorf("Read returned %v; want %v", got, page)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Size() != int64(testMetaSize+testPageSize) {
		t.Errorf("file size = %d; want %d", fi.Size(), testMetaSize+testPageSize)
	}
}

func TestWriteRejectsWrongSize(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	if _, err := p.Append(make([]byte, testPageSize)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := p.Write(make([]byte, testPageSize-1), 0); err == nil {
		t.Errorf("expected ErrPageSizeInvalid writing undersized page")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	meta := bytes.Repeat([]byte{0x7A}, testMetaSize)
	if err := p.SetMeta(meta); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	got, err := p.Meta()
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if !bytes.Equal(got, meta) {
		t.Errorf("Meta() = %v; want %v", got, meta)
	}
}

func TestSetMetaRejectsWrongSize(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	if err := p.SetMeta(make([]byte, testMetaSize+1)); err == nil {
		t.Errorf("expected ErrMetaSizeInvalid for oversized meta")
	}
}

func TestOpenExistingFileValidatesLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uneven.db")

	// meta + one full page + a stray byte -> not an even multiple.
	buf := make([]byte, testMetaSize+testPageSize+1)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(path, testPageSize, testMetaSize, nil); err == nil {
		t.Errorf("expected ErrUnevenLength opening a misaligned file")
	}
}

func TestOpenExistingComputesPageCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "three.db")

	buf := make([]byte, testMetaSize+3*testPageSize)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Open(path, testPageSize, testMetaSize, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if p.NumPages() != 3 {
		t.Errorf("NumPages() = %d; want 3", p.NumPages())
	}
}

func TestForEach(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	want := [][]byte{
		bytes.Repeat([]byte{1}, testPageSize),
		bytes.Repeat([]byte{2}, testPageSize),
		bytes.Repeat([]byte{3}, testPageSize),
	}
	for _, page := range want {
		if _, err := p.Append(page); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var got [][]byte
	err := p.ForEach(func(index int32, data []byte) error {
		cp := make([]byte, len(data))
		copy(cp, data)
		got = append(got, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ForEach visited %d pages; want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("page %d = %v; want %v", i, got[i], want[i])
		}
	}
}
