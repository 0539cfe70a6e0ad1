package dbal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Escaper returns the default literal escaper for the dialect. MySQL uses
// backslash escaping; Postgres and SQLite double embedded single quotes.
func (d Dialect) Escaper() Escaper {
	if d == MySQL {
		return mysqlEscaper{}
	}
	return ansiEscaper{}
}

type mysqlEscaper struct{}

type ansiEscaper struct{}

// Quote renders v as a single-quoted MySQL string literal, escaping the
// characters the protocol treats specially. nil renders as NULL; numeric
// and boolean values pass through as bare literals.
func (mysqlEscaper) Quote(v any) string {
	if n, ok := numericLiteral(v); ok {
		return n
	}
	s, ok := literal(v)
	if !ok {
		return "NULL"
	}
	var buf strings.Builder
	buf.Grow(len(s) + 2)
	buf.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			buf.WriteString(`\0`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case 0x1a:
			buf.WriteString(`\Z`)
		case '\'':
			buf.WriteString(`\'`)
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('\'')
	return buf.String()
}

// Quote renders v as an ANSI string literal with embedded quotes doubled.
// nil renders as NULL; numeric and boolean values pass through as bare
// literals.
func (ansiEscaper) Quote(v any) string {
	if n, ok := numericLiteral(v); ok {
		return n
	}
	s, ok := literal(v)
	if !ok {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// numericLiteral renders integer, float and boolean values as bare SQL
// literals. Numbers cannot carry an injection payload and quoting them
// would defeat numeric comparison in some dialects.
func numericLiteral(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case bool:
		if n {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

// literal renders v as the raw text to be wrapped in quotes. It reports
// false for nil, which both escapers emit as SQL NULL.
func literal(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case []byte:
		return string(s), true
	case time.Time:
		return s.Format("2006-01-02 15:04:05"), true
	}
	return fmt.Sprint(v), true
}
