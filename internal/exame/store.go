package exame

import (
	"context"
	"time"
)

// Reader covers the side-effect free lookups. Every method ignores soft-deleted rows.
type Reader interface {
	// Find returns ErrNotFound when id does not resolve to a live row.
	Find(ctx context.Context, id int64) (*Exam, error)
	// FindAll orders by created_at descending.
	FindAll(ctx context.Context) ([]Exam, error)
	// FindBases returns active base exams ordered by name.
	FindBases(ctx context.Context) ([]Exam, error)
}

// Tx is the write boundary used inside one engine call. All writes issued through a Tx
// commit or roll back together.
type Tx interface {
	// FindForUpdate locks the live row for the rest of the transaction.
	FindForUpdate(ctx context.Context, id int64) (*Exam, error)
	// FindBase resolves a live base exam, returning ErrNotFound for anything else.
	FindBase(ctx context.Context, id int64) (*Exam, error)
	// FindByCode returns the live row using code other than excludeID, or nil.
	FindByCode(ctx context.Context, code string, excludeID int64) (*Exam, error)
	Insert(ctx context.Context, row NewExam) (int64, error)
	Update(ctx context.Context, id int64, f Fields) error
	// UpdateChildren patches every live row whose base_id is baseID.
	UpdateChildren(ctx context.Context, baseID int64, f ChildFields) (int64, error)
	// SoftDelete stamps deleted_at without checking whether the row is already deleted.
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	SoftDeleteChildren(ctx context.Context, baseID int64, at time.Time) (int64, error)
}

type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
