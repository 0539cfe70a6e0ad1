package dbal

import (
	"errors"
	"fmt"
)

// Dialect identifies the SQL dialect for literal quoting and DSN construction.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
	SQLite
)

var (
	ErrArity          = errors.New("dbal: placeholder/parameter count mismatch")
	ErrType           = errors.New("dbal: parameter type mismatch")
	ErrColumnNotFound = errors.New("dbal: column not found")
	ErrNoCursor       = errors.New("dbal: no open cursor")
)

// Row is a convenient alias for a fetched row keyed by column name.
type Row = map[string]any

// Escaper converts a raw value into a literal that is safe to splice
// directly into SQL. It is supplied by the active connection's dialect
// but can be replaced with a custom implementation.
type Escaper interface {
	Quote(v any) string
}

// ArityError reports a disagreement between the number of placeholder
// tokens in a template and the number of supplied parameters.
type ArityError struct {
	Expected int    // placeholder tokens found in the template
	Actual   int    // parameters supplied by the caller
	Template string // the offending template, verbatim
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("dbal: template has %d placeholders but %d parameters were supplied: %s",
		e.Expected, e.Actual, e.Template)
}

func (e *ArityError) Unwrap() error { return ErrArity }

// TypeError reports a value whose shape does not match what its
// placeholder token requires (e.g. a scalar bound to ?a, or an ordered
// slice bound to ?A where a map is required).
type TypeError struct {
	Token string // the token kind, e.g. "?a"
	Value any    // the rejected value
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("dbal: %s cannot bind a value of type %T", e.Token, e.Value)
}

func (e *TypeError) Unwrap() error { return ErrType }

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}
