package exame

import "errors"

type Class int

const (
	ClassValidation Class = iota + 1
	ClassNotFound
)

// Error is a caller-recoverable failure. Its message is safe to show to end users.
type Error struct {
	Class Class
	msg   string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrCodeRequired  = &Error{Class: ClassValidation, msg: "Código é obrigatório"}
	ErrNameRequired  = &Error{Class: ClassValidation, msg: "Nome é obrigatório"}
	ErrInvalidPrice  = &Error{Class: ClassValidation, msg: "Preço deve ser maior que zero"}
	ErrInvalidKind   = &Error{Class: ClassValidation, msg: "Tipo de exame inválido"}
	ErrBaseRequired  = &Error{Class: ClassValidation, msg: "Exame base é obrigatório para exames personalizados"}
	ErrBaseNotFound  = &Error{Class: ClassValidation, msg: "Exame base não encontrado"}
	ErrDuplicateCode = &Error{Class: ClassValidation, msg: "Código já existe"}
	ErrDuplicateName = &Error{Class: ClassValidation, msg: "Nome já existe"}

	ErrNotFound = &Error{Class: ClassNotFound, msg: "Exame não encontrado"}
)

func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ClassValidation
}

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ClassNotFound
}
