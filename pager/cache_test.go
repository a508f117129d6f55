package pager

import (
	"bytes"
	"testing"
)

func TestCacheReadThroughAndHit(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	page := bytes.Repeat([]byte{0x11}, testPageSize)
	if _, err := p.Append(page); err != nil {
		t.Fatalf("Append: %v", err)
	}

	c := NewCache(p, 2)
	got, err := c.Read(0)
	if err != nil {
		t.Fatalf("Read (miss): %v", err)
	}
	if !bytes.Equal(got, page) {
		t.Errorf("Read (miss) = %v; want %v", got, page)
	}

	got2, err := c.Read(0)
	if err != nil {
		t.Fatalf("Read (hit): %v", err)
	}
	if !bytes.Equal(got2, page) {
		t.Errorf("Read (hit) = %v; want %v", got2, page)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	for i := 0; i < 3; i++ {
		if _, err := p.Append(bytes.Repeat([]byte{byte(i)}, testPageSize)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	c := NewCache(p, 2)
	if _, err := c.Read(0); err != nil {
		t.Fatalf("Read 0: %v", err)
	}
	if _, err := c.Read(1); err != nil {
		t.Fatalf("Read 1: %v", err)
	}
	// Touching page 2 should evict page 0 (least recently used), not 1.
	if _, err := c.Read(2); err != nil {
		t.Fatalf("Read 2: %v", err)
	}

	if _, ok := c.entries[0]; ok {
		t.Errorf("expected page 0 to have been evicted")
	}
	if _, ok := c.entries[1]; !ok {
		t.Errorf("expected page 1 to remain cached")
	}
	if _, ok := c.entries[2]; !ok {
		t.Errorf("expected page 2 to be cached")
	}
}

func TestCacheWriteThrough(t *testing.T) {
	p, _ := newTempPager(t)
	defer p.Close()

	if _, err := p.Append(make([]byte, testPageSize)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	c := NewCache(p, 2)
	updated := bytes.Repeat([]byte{0x99}, testPageSize)
	if err := c.Write(updated, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fromPager, err := p.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(fromPager, updated) {
		t.Errorf("underlying pager not updated: got %v want %v", fromPager, updated)
	}

	fromCache, err := c.Read(0)
	if err != nil {
		t.Fatalf("cache Read: %v", err)
	}
	if !bytes.Equal(fromCache, updated) {
		t.Errorf("cache stale after write: got %v want %v", fromCache, updated)
	}
}
