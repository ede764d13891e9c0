package exame

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store. WithinTx snapshots the table and restores it when fn
// fails, so partial cascades are never visible after an error.
type memStore struct {
	mu     sync.Mutex
	rows   map[int64]Exam
	nextID int64

	// failOn makes the named Tx method return errStoreDown.
	failOn map[string]bool
	calls  []string
}

var (
	_ Store = (*memStore)(nil)
	_ Tx    = (*memTx)(nil)
)

var errStoreDown = errors.New("store unavailable")

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]Exam), failOn: make(map[string]bool)}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]Exam, len(m.rows))
	for id, row := range m.rows {
		snapshot[id] = row
	}
	nextID := m.nextID

	if err := fn(&memTx{m: m}); err != nil {
		m.rows = snapshot
		m.nextID = nextID
		return err
	}
	return nil
}

func (m *memStore) Find(ctx context.Context, id int64) (*Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLive(id)
}

func (m *memStore) FindAll(ctx context.Context) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Exam, 0)
	for _, row := range m.rows {
		if row.DeletedAt == nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) FindBases(ctx context.Context) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Exam, 0)
	for _, row := range m.rows {
		if row.DeletedAt == nil && row.Active && row.Kind == KindBase {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// raw returns a row regardless of soft deletion.
func (m *memStore) raw(id int64) (Exam, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return row, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) findLive(id int64) (*Exam, error) {
	row, ok := m.rows[id]
	if !ok || row.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return &row, nil
}

type memTx struct {
	m *memStore
}

func (t *memTx) hit(method string) error {
	t.m.calls = append(t.m.calls, method)
	if t.m.failOn[method] {
		return errStoreDown
	}
	return nil
}

func (t *memTx) FindForUpdate(ctx context.Context, id int64) (*Exam, error) {
	if err := t.hit("FindForUpdate"); err != nil {
		return nil, err
	}
	return t.m.findLive(id)
}

func (t *memTx) FindBase(ctx context.Context, id int64) (*Exam, error) {
	if err := t.hit("FindBase"); err != nil {
		return nil, err
	}
	row, err := t.m.findLive(id)
	if err != nil {
		return nil, err
	}
	if row.Kind != KindBase {
		return nil, ErrNotFound
	}
	return row, nil
}

func (t *memTx) FindByCode(ctx context.Context, code string, excludeID int64) (*Exam, error) {
	if err := t.hit("FindByCode"); err != nil {
		return nil, err
	}
	for _, row := range t.m.rows {
		if row.DeletedAt == nil && row.Code == code && row.ID != excludeID {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) Insert(ctx context.Context, row NewExam) (int64, error) {
	if err := t.hit("Insert"); err != nil {
		return 0, err
	}
	for _, other := range t.m.rows {
		if other.DeletedAt == nil && other.Name == row.Name {
			return 0, ErrDuplicateName
		}
	}
	t.m.nextID++
	id := t.m.nextID
	t.m.rows[id] = Exam{
		ID:          id,
		Code:        row.Code,
		Name:        row.Name,
		Description: row.Description,
		Price:       row.Price,
		Kind:        row.Kind,
		Active:      row.Active,
		BaseID:      copyID(row.BaseID),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.CreatedAt,
	}
	return id, nil
}

func (t *memTx) Update(ctx context.Context, id int64, f Fields) error {
	if err := t.hit("Update"); err != nil {
		return err
	}
	row, ok := t.m.rows[id]
	if !ok {
		return nil
	}
	for _, other := range t.m.rows {
		if other.ID != id && other.DeletedAt == nil && other.Name == f.Name {
			return ErrDuplicateName
		}
	}
	row.Code = f.Code
	row.Name = f.Name
	row.Description = f.Description
	row.Price = f.Price
	row.Active = f.Active
	row.BaseID = copyID(f.BaseID)
	row.UpdatedAt = f.UpdatedAt
	t.m.rows[id] = row
	return nil
}

func (t *memTx) UpdateChildren(ctx context.Context, baseID int64, f ChildFields) (int64, error) {
	if err := t.hit("UpdateChildren"); err != nil {
		return 0, err
	}
	var n int64
	for id, row := range t.m.rows {
		if row.DeletedAt != nil || row.BaseID == nil || *row.BaseID != baseID {
			continue
		}
		if f.Price != nil {
			row.Price = *f.Price
		}
		if f.Active != nil {
			row.Active = *f.Active
		}
		row.UpdatedAt = f.UpdatedAt
		t.m.rows[id] = row
		n++
	}
	return n, nil
}

func (t *memTx) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if err := t.hit("SoftDelete"); err != nil {
		return err
	}
	row, ok := t.m.rows[id]
	if !ok {
		return nil
	}
	stamp := at
	row.DeletedAt = &stamp
	t.m.rows[id] = row
	return nil
}

func (t *memTx) SoftDeleteChildren(ctx context.Context, baseID int64, at time.Time) (int64, error) {
	if err := t.hit("SoftDeleteChildren"); err != nil {
		return 0, err
	}
	var n int64
	for id, row := range t.m.rows {
		if row.DeletedAt != nil || row.BaseID == nil || *row.BaseID != baseID {
			continue
		}
		stamp := at
		row.DeletedAt = &stamp
		t.m.rows[id] = row
		n++
	}
	return n, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
