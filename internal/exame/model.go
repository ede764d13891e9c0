package exame

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of exam variants. Only personalized exams carry a base reference.
type Kind string

const (
	KindBase         Kind = "base"
	KindPersonalized Kind = "personalized"
)

func (k Kind) Valid() bool {
	return k == KindBase || k == KindPersonalized
}

// ParseKind accepts the API names plus the legacy form values "Exame" and
// "ExamePersonalizado". An empty value means a base exam.
func ParseKind(v string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "base", "exame":
		return KindBase, nil
	case "personalized", "personalizado", "exame_personalizado", "examepersonalizado":
		return KindPersonalized, nil
	default:
		return "", ErrInvalidKind
	}
}

type Exam struct {
	ID          int64           `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Kind        Kind            `db:"kind" json:"kind"`
	Active      bool            `db:"active" json:"active"`
	BaseID      *int64          `db:"base_id" json:"base_id"`
	DeletedAt   *time.Time      `db:"deleted_at" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// MarshalJSON writes the price as a JSON number with two decimal places.
func (e Exam) MarshalJSON() ([]byte, error) {
	type plain Exam
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain: plain(e), Price: json.Number(e.Price.StringFixed(2))})
}

// CreateInput carries caller-supplied fields. Price is the raw submitted value and is
// ignored for personalized exams.
type CreateInput struct {
	Code        string
	Name        string
	Description string
	Price       string
	Kind        Kind
	Active      *bool
	BaseID      *int64
}

// UpdateInput has no Kind: the variant is fixed at creation. A nil Active keeps the stored
// flag and a nil BaseID keeps the current parent.
type UpdateInput struct {
	Code        string
	Name        string
	Description string
	Price       string
	Active      *bool
	BaseID      *int64
}

// NewExam is a fully resolved row ready for insertion.
type NewExam struct {
	Code        string          `db:"code"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Kind        Kind            `db:"kind"`
	Active      bool            `db:"active"`
	BaseID      *int64          `db:"base_id"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Fields is the full set of mutable columns written by an update.
type Fields struct {
	Code        string          `db:"code"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Active      bool            `db:"active"`
	BaseID      *int64          `db:"base_id"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// ChildFields is a batch patch applied to every live child of a base exam.
// Nil fields are left untouched; UpdatedAt is always written.
type ChildFields struct {
	Price     *decimal.Decimal
	Active    *bool
	UpdatedAt time.Time
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
