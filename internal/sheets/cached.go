package sheets

import (
	"context"
	"time"

	"invoicedash/internal/cache"
	"invoicedash/internal/core"
)

const worksheetListKey = "\x00worksheets"

// CachedStore keeps recent worksheet reads of another store in memory.
// Writes go straight through and drop the cached copy of the worksheet
// they touch.
type CachedStore struct {
	next   RecordStore
	tables *cache.LRUCache[core.RawTable]
	lists  *cache.LRUCache[[]string]
}

var _ RecordStore = (*CachedStore)(nil)

// NewCachedStore wraps next with a cache of at most size worksheets, each
// kept for ttl.
func NewCachedStore(next RecordStore, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:   next,
		tables: cache.NewLRUCache[core.RawTable](size, ttl),
		lists:  cache.NewLRUCache[[]string](1, ttl),
	}
}

// Cleaners exposes the underlying caches for periodic expiry.
func (s *CachedStore) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{s.tables, s.lists}
}

func (s *CachedStore) ListWorksheets(ctx context.Context) ([]string, error) {
	if names, ok := s.lists.Get(worksheetListKey); ok {
		return append([]string(nil), names...), nil
	}
	names, err := s.next.ListWorksheets(ctx)
	if err != nil {
		return nil, err
	}
	s.lists.Set(worksheetListKey, append([]string(nil), names...))
	return names, nil
}

func (s *CachedStore) ReadAll(ctx context.Context, worksheet string) (core.RawTable, error) {
	if rt, ok := s.tables.Get(worksheet); ok {
		return rt, nil
	}
	rt, err := s.next.ReadAll(ctx, worksheet)
	if err != nil {
		return core.RawTable{}, err
	}
	s.tables.Set(worksheet, rt)
	return rt, nil
}

func (s *CachedStore) WriteAll(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	defer s.Invalidate(worksheet)
	return s.next.WriteAll(ctx, worksheet, header, rows)
}

func (s *CachedStore) AppendRow(ctx context.Context, worksheet string, row []string) error {
	defer s.Invalidate(worksheet)
	return s.next.AppendRow(ctx, worksheet, row)
}

// Invalidate forgets the cached copy of worksheet.
func (s *CachedStore) Invalidate(worksheet string) {
	s.tables.Delete(worksheet)
	s.lists.Delete(worksheetListKey)
}
