package rowstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
)

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Record), now: time.Now}
}

// SetClock overrides the time source used for created_at/updated_at.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Select(ctx context.Context, table string, q backend.Query) ([]Record, error) {
	if err := checkQuery(table, q); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for _, r := range m.tables[table] {
		if !r.Matches(q.Eq) {
			continue
		}
		row := r.clone()
		if q.Embed != nil {
			row[q.Embed.As] = m.lookup(q.Embed.Table, fmt.Sprint(r[q.Embed.Column]))
		}
		out = append(out, row)
	}
	sortRecords(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i := range out {
		out[i] = shape(out[i], q)
	}
	return out, nil
}

// lookup expects the read lock to be held.
func (m *MemoryStore) lookup(table, id string) Record {
	if id == "" {
		return nil
	}
	for _, r := range m.tables[table] {
		if fmt.Sprint(r["id"]) == id {
			return r.clone()
		}
	}
	return nil
}

func (m *MemoryStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := prepareInsert(rec, m.now())
	for _, existing := range m.tables[table] {
		for _, col := range append([]string{"id"}, Unique[table]...) {
			if v, ok := row[col]; ok && v != nil && fmt.Sprint(existing[col]) == fmt.Sprint(v) {
				return nil, &backend.APIError{Kind: backend.ErrConflict, Code: "23505",
					Message: fmt.Sprintf("duplicate key value violates unique constraint on %s.%s", table, col)}
			}
		}
	}
	m.tables[table] = append(m.tables[table], row)
	return row.clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, table string, eq map[string]string, patch Record) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := preparePatch(patch, m.now())
	var n int64
	for _, r := range m.tables[table] {
		if !r.Matches(eq) {
			continue
		}
		for k, v := range p {
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (m *MemoryStore) Delete(ctx context.Context, table string, eq map[string]string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	kept := rows[:0]
	var n int64
	for _, r := range rows {
		if r.Matches(eq) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return n, nil
}
