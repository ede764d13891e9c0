package exame

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const (
	pgUniqueViolation = "23505"

	codeIndexName = "uq_exames_code_live"
	nameIndexName = "uq_exames_name_live"
)

const examColumns = `
	id, code, name, COALESCE(description, '') AS description, price, kind,
	active, base_id, deleted_at, created_at, updated_at
`

// PostgresStore implements Store on the exames table.
type PostgresStore struct {
	db *sqlx.DB
	pgQueries
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Tx     = pgQueries{}
	_ Reader = pgQueries{}
)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	x := sqlx.NewDb(db, "pgx")
	return &PostgresStore{db: x, pgQueries: pgQueries{ext: x}}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(pgQueries{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgQueries runs the same statements against either the pool or an open transaction.
type pgQueries struct {
	ext sqlx.ExtContext
}

func (q pgQueries) Find(ctx context.Context, id int64) (*Exam, error) {
	return q.getOne(ctx, "load exam", `
		SELECT `+examColumns+`
		FROM exames
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
}

func (q pgQueries) FindForUpdate(ctx context.Context, id int64) (*Exam, error) {
	return q.getOne(ctx, "load exam for update", `
		SELECT `+examColumns+`
		FROM exames
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, id)
}

func (q pgQueries) FindBase(ctx context.Context, id int64) (*Exam, error) {
	return q.getOne(ctx, "load base exam", `
		SELECT `+examColumns+`
		FROM exames
		WHERE id = $1 AND kind = 'base' AND deleted_at IS NULL
		FOR SHARE
	`, id)
}

func (q pgQueries) FindByCode(ctx context.Context, code string, excludeID int64) (*Exam, error) {
	out, err := q.getOne(ctx, "load exam by code", `
		SELECT `+examColumns+`
		FROM exames
		WHERE code = $1 AND id <> $2 AND deleted_at IS NULL
		LIMIT 1
	`, code, excludeID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

func (q pgQueries) FindAll(ctx context.Context) ([]Exam, error) {
	return q.selectMany(ctx, "list exams", `
		SELECT `+examColumns+`
		FROM exames
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
	`)
}

func (q pgQueries) FindBases(ctx context.Context) ([]Exam, error) {
	return q.selectMany(ctx, "list base exams", `
		SELECT `+examColumns+`
		FROM exames
		WHERE kind = 'base' AND active = TRUE AND deleted_at IS NULL
		ORDER BY name ASC, id ASC
	`)
}

func (q pgQueries) Insert(ctx context.Context, row NewExam) (int64, error) {
	query, args, err := sqlx.Named(`
		INSERT INTO exames (
			code, name, description, price, kind, active, base_id, created_at, updated_at
		) VALUES (
			:code, :name, NULLIF(:description, ''), :price, :kind, :active, :base_id, :created_at, :created_at
		)
		RETURNING id
	`, row)
	if err != nil {
		return 0, fmt.Errorf("bind insert exam: %w", err)
	}

	var id int64
	if err := q.ext.QueryRowxContext(ctx, q.ext.Rebind(query), args...).Scan(&id); err != nil {
		return 0, translateError("insert exam", err)
	}
	return id, nil
}

func (q pgQueries) Update(ctx context.Context, id int64, f Fields) error {
	query, args, err := sqlx.Named(`
		UPDATE exames
		SET code = :code,
			name = :name,
			description = NULLIF(:description, ''),
			price = :price,
			active = :active,
			base_id = :base_id,
			updated_at = :updated_at
		WHERE id = :id
	`, struct {
		ID int64 `db:"id"`
		Fields
	}{ID: id, Fields: f})
	if err != nil {
		return fmt.Errorf("bind update exam: %w", err)
	}

	if _, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...); err != nil {
		return translateError("update exam", err)
	}
	return nil
}

func (q pgQueries) UpdateChildren(ctx context.Context, baseID int64, f ChildFields) (int64, error) {
	args := []interface{}{f.UpdatedAt}
	sets := []string{"updated_at = $1"}
	if f.Price != nil {
		args = append(args, *f.Price)
		sets = append(sets, fmt.Sprintf("price = $%d", len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		sets = append(sets, fmt.Sprintf("active = $%d", len(args)))
	}
	args = append(args, baseID)

	query := fmt.Sprintf(`
		UPDATE exames
		SET %s
		WHERE base_id = $%d AND deleted_at IS NULL
	`, strings.Join(sets, ", "), len(args))

	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update child exams: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (q pgQueries) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if _, err := q.ext.ExecContext(ctx, `
		UPDATE exames
		SET deleted_at = $1
		WHERE id = $2
	`, at, id); err != nil {
		return fmt.Errorf("soft delete exam: %w", err)
	}
	return nil
}

func (q pgQueries) SoftDeleteChildren(ctx context.Context, baseID int64, at time.Time) (int64, error) {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE exames
		SET deleted_at = $1
		WHERE base_id = $2 AND deleted_at IS NULL
	`, at, baseID)
	if err != nil {
		return 0, fmt.Errorf("soft delete child exams: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (q pgQueries) getOne(ctx context.Context, op, query string, args ...interface{}) (*Exam, error) {
	var out Exam
	if err := sqlx.GetContext(ctx, q.ext, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

func (q pgQueries) selectMany(ctx context.Context, op, query string, args ...interface{}) ([]Exam, error) {
	out := make([]Exam, 0)
	if err := sqlx.SelectContext(ctx, q.ext, &out, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// translateError maps unique-index violations onto the matching validation error.
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case codeIndexName:
			return ErrDuplicateCode
		case nameIndexName:
			return ErrDuplicateName
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
