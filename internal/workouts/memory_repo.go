package workouts

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryRepo keeps records in process memory. Used in tests and with the
// "memory" store driver for local development.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]map[string]Record // owner -> date -> record
	writes  int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		records: make(map[string]map[string]Record),
	}
}

func (r *MemoryRepo) FindOne(_ context.Context, owner, date string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[owner][date]
	if !ok {
		return nil, nil
	}
	record.Entries = record.Entries.Merge(nil)
	return &record, nil
}

func (r *MemoryRepo) FindRange(_ context.Context, owner, from, to string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]Record, 0)
	for date, record := range r.records[owner] {
		if date < from || date > to {
			continue
		}
		record.Entries = record.Entries.Merge(nil)
		records = append(records, record)
	}
	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(a.Date, b.Date)
	})
	return records, nil
}

func (r *MemoryRepo) Upsert(_ context.Context, owner, date string, entries Entries, lastUpdatedTime string) (SaveStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDate, ok := r.records[owner]
	if !ok {
		byDate = make(map[string]Record)
		r.records[owner] = byDate
	}

	stored, ok := byDate[date]
	if !ok {
		byDate[date] = Record{
			Owner:           owner,
			Date:            date,
			Entries:         entries.Merge(nil),
			LastUpdatedTime: lastUpdatedTime,
		}
		r.writes++
		return Created, nil
	}

	if stored.Entries.Equal(entries) {
		return Unchanged, nil
	}

	stored.Entries = stored.Entries.Merge(entries)
	stored.LastUpdatedTime = lastUpdatedTime
	byDate[date] = stored
	r.writes++
	return Updated, nil
}

// Writes returns how many times a record was created or changed.
func (r *MemoryRepo) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Count returns the number of records stored for owner.
func (r *MemoryRepo) Count(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records[owner])
}

// ForEach calls fn for every record, ordered by owner and date.
func (r *MemoryRepo) ForEach(_ context.Context, fn func(Record) error) (int, error) {
	r.mu.Lock()
	records := make([]Record, 0)
	for _, byDate := range r.records {
		for _, record := range byDate {
			record.Entries = record.Entries.Merge(nil)
			records = append(records, record)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(records, func(a, b Record) int {
		if c := strings.Compare(a.Owner, b.Owner); c != 0 {
			return c
		}
		return strings.Compare(a.Date, b.Date)
	})
	for _, record := range records {
		if err := fn(record); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
