package exame

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/paulodtn/exames-customizados-poc/internal/logger"
)

// Service applies exam writes while keeping personalized prices and the lifecycle of
// child exams in step with their base exam. Each write runs in a single store transaction.
type Service struct {
	store    Store
	log      *logger.Logger
	now      func() time.Time
	cascades CascadeRecorder
}

// Cascade kinds reported to a CascadeRecorder.
const (
	CascadePrice      = "price"
	CascadeDeactivate = "deactivate"
	CascadeDelete     = "delete"
)

// CascadeRecorder is told how many child rows each committed cascade touched.
type CascadeRecorder interface {
	RecordCascade(kind string, rows int64)
}

type nopCascadeRecorder struct{}

func (nopCascadeRecorder) RecordCascade(string, int64) {}

type cascadeResult struct {
	kind string
	rows int64
}

func NewService(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now, cascades: nopCascadeRecorder{}}
}

// SetCascadeRecorder replaces the recorder; nil disables recording.
func (s *Service) SetCascadeRecorder(r CascadeRecorder) {
	if r == nil {
		r = nopCascadeRecorder{}
	}
	s.cascades = r
}

// recordCascades runs after commit so rolled back cascades are never counted.
func (s *Service) recordCascades(done []cascadeResult) {
	for _, c := range done {
		s.cascades.RecordCascade(c.kind, c.rows)
	}
}

func (s *Service) List(ctx context.Context) ([]Exam, error) {
	return s.store.FindAll(ctx)
}

func (s *Service) ListBases(ctx context.Context) ([]Exam, error) {
	return s.store.FindBases(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*Exam, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	return s.store.Find(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (int64, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" {
		return 0, ErrCodeRequired
	}
	if name == "" {
		return 0, ErrNameRequired
	}
	if !in.Kind.Valid() {
		return 0, ErrInvalidKind
	}

	row := NewExam{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Kind:        in.Kind,
		Active:      true,
		CreatedAt:   s.now(),
	}
	if in.Active != nil {
		row.Active = *in.Active
	}

	if in.Kind == KindBase {
		price, ok := parsePrice(in.Price)
		if !ok {
			return 0, ErrInvalidPrice
		}
		row.Price = price
	} else if in.BaseID == nil || *in.BaseID <= 0 {
		return 0, ErrBaseRequired
	}

	var id int64
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		if in.Kind == KindPersonalized {
			parent, err := resolveBase(ctx, tx, *in.BaseID)
			if err != nil {
				return err
			}
			row.Price = parent.Price
			row.BaseID = &parent.ID
		}

		if err := ensureCodeFree(ctx, tx, code, 0); err != nil {
			return err
		}

		var err error
		id, err = tx.Insert(ctx, row)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("exam created", "exam_id", id, "code", code, "kind", string(row.Kind), "price", row.Price.StringFixed(2))
	return id, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) error {
	if id <= 0 {
		return ErrNotFound
	}
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)

	var done []cascadeResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		done = done[:0]
		current, err := tx.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if code == "" {
			return ErrCodeRequired
		}
		if name == "" {
			return ErrNameRequired
		}
		if err := ensureCodeFree(ctx, tx, code, id); err != nil {
			return err
		}

		now := s.now()
		fields := Fields{
			Code:        code,
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Active:      current.Active,
			UpdatedAt:   now,
		}
		if in.Active != nil {
			fields.Active = *in.Active
		}

		switch current.Kind {
		case KindPersonalized:
			// The submitted price is never trusted here; the parent is always re-read.
			var parentID int64
			switch {
			case in.BaseID != nil:
				parentID = *in.BaseID
			case current.BaseID != nil:
				parentID = *current.BaseID
			default:
				return ErrBaseRequired
			}
			parent, err := resolveBase(ctx, tx, parentID)
			if err != nil {
				return err
			}
			fields.Price = parent.Price
			fields.BaseID = &parent.ID

		default:
			price, ok := parsePrice(in.Price)
			if !ok {
				return ErrInvalidPrice
			}
			fields.Price = price

			if !price.Equal(current.Price) {
				n, err := tx.UpdateChildren(ctx, id, ChildFields{Price: &price, UpdatedAt: now})
				if err != nil {
					return err
				}
				done = append(done, cascadeResult{kind: CascadePrice, rows: n})
				s.log.Info("base price propagated", "exam_id", id, "price", price.StringFixed(2), "children", n)
			}
		}

		if err := tx.Update(ctx, id, fields); err != nil {
			return err
		}

		// Only true -> false cascades. Reactivating a base leaves its children as they are.
		if current.Kind == KindBase && current.Active && !fields.Active {
			inactive := false
			n, err := tx.UpdateChildren(ctx, id, ChildFields{Active: &inactive, UpdatedAt: now})
			if err != nil {
				return err
			}
			done = append(done, cascadeResult{kind: CascadeDeactivate, rows: n})
			s.log.Info("base deactivation cascaded", "exam_id", id, "children", n)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordCascades(done)
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}

	var done []cascadeResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		done = done[:0]
		current, err := tx.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if current.Kind == KindBase {
			n, err := tx.SoftDeleteChildren(ctx, id, now)
			if err != nil {
				return err
			}
			done = append(done, cascadeResult{kind: CascadeDelete, rows: n})
			if n > 0 {
				s.log.Info("base deletion cascaded", "exam_id", id, "children", n)
			}
		}
		return tx.SoftDelete(ctx, id, now)
	})
	if err != nil {
		return err
	}
	s.recordCascades(done)
	return nil
}

func resolveBase(ctx context.Context, tx Tx, id int64) (*Exam, error) {
	if id <= 0 {
		return nil, ErrBaseNotFound
	}
	parent, err := tx.FindBase(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBaseNotFound
		}
		return nil, err
	}
	return parent, nil
}

func ensureCodeFree(ctx context.Context, tx Tx, code string, excludeID int64) error {
	other, err := tx.FindByCode(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if other != nil {
		return ErrDuplicateCode
	}
	return nil
}
