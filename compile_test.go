package dbal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEscaper wraps a real escaper and records how many times Quote is
// invoked, so tests can prove numeric tokens never reach the escaper.
type countingEscaper struct {
	inner Escaper
	calls int
}

func (c *countingEscaper) Quote(v any) string {
	c.calls++
	return c.inner.Quote(v)
}

func TestCompile_Substitution(t *testing.T) {
	e := MySQL.Escaper()

	tests := []struct {
		name     string
		template string
		params   []any
		want     string
	}{
		{
			name:     "string and integer",
			template: "WHERE group = ?s AND points > ?i",
			params:   []any{"user", 7000},
			want:     "WHERE group = 'user' AND points > 7000",
		},
		{
			name:     "slice expansion for IN",
			template: "WHERE name IN(?a)",
			params:   []any{[]string{"foo", "bar"}},
			want:     "WHERE name IN('foo', 'bar')",
		},
		{
			name:     "map expansion for SET",
			template: "SET ?A",
			params:   []any{map[string]any{"name": "User Name", "points": 7000}},
			want:     "SET `name`='User Name', `points`=7000",
		},
		{
			name:     "identifier",
			template: "SELECT * FROM ?t WHERE id = ?i",
			params:   []any{"users", "42"},
			want:     "SELECT * FROM `users` WHERE id = 42",
		},
		{
			name:     "raw fragment",
			template: "SELECT * FROM t ?p",
			params:   []any{"ORDER BY id DESC"},
			want:     "SELECT * FROM t ORDER BY id DESC",
		},
		{
			name:     "float with comma separator",
			template: "WHERE price > ?f",
			params:   []any{"19,95"},
			want:     "WHERE price > 19.95",
		},
		{
			name:     "adjacent tokens",
			template: "?s?i?s",
			params:   []any{"a", 1, "b"},
			want:     "'a'1'b'",
		},
		{
			name:     "token at start and end",
			template: "?t.id = ?i",
			params:   []any{"users", 3},
			want:     "`users`.id = 3",
		},
		{
			name:     "mixed element types in slice",
			template: "IN(?a)",
			params:   []any{[]any{"foo", 42, nil}},
			want:     "IN('foo', 42, NULL)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compile(e, tc.template, tc.params...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompile_LiteralQuestionMark(t *testing.T) {
	e := MySQL.Escaper()

	// A '?' not followed by one of the seven kind letters is literal text.
	tests := []struct {
		template string
		params   []any
		want     string
	}{
		{"SELECT 'a?b' FROM t WHERE x = ?s", []any{"v"}, "SELECT 'a?b' FROM t WHERE x = 'v'"},
		{"WHERE x ?? y", nil, "WHERE x ?? y"},
		{"trailing ?", nil, "trailing ?"},
		{"?z is not a token", nil, "?z is not a token"},
		{"??s", []any{"v"}, "?'v'"},
		{"?S upper is not string", nil, "?S upper is not string"},
	}
	for _, tc := range tests {
		got, err := Compile(e, tc.template, tc.params...)
		require.NoError(t, err, "template %q", tc.template)
		assert.Equal(t, tc.want, got, "template %q", tc.template)
	}
}

func TestCompile_NoTokens(t *testing.T) {
	e := MySQL.Escaper()

	got, err := Compile(e, "no placeholders here")
	require.NoError(t, err)
	assert.Equal(t, "no placeholders here", got)

	// Extra parameters without tokens are not an arity error: the arity
	// check only fires when the template actually contains tokens.
	got, err = Compile(e, "no placeholders here", "unused", 42)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders here", got)
}

func TestCompile_ArityMismatch(t *testing.T) {
	e := MySQL.Escaper()

	_, err := Compile(e, "WHERE a = ?s AND b = ?i", "only-one")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArity))

	var ae *ArityError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 2, ae.Expected)
	assert.Equal(t, 1, ae.Actual)
	assert.Equal(t, "WHERE a = ?s AND b = ?i", ae.Template)

	// Too many parameters fail the same way.
	_, err = Compile(e, "WHERE a = ?s", "x", "y")
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 1, ae.Expected)
	assert.Equal(t, 2, ae.Actual)
}

func TestCompile_ArityCheckedBeforeEscaping(t *testing.T) {
	ce := &countingEscaper{inner: MySQL.Escaper()}

	_, err := Compile(ce, "?s ?s ?s", "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArity))
	assert.Zero(t, ce.calls, "no escaping may happen on arity failure")
}

func TestCompile_TypeMismatch(t *testing.T) {
	e := MySQL.Escaper()

	// ?a requires an ordered sequence.
	_, err := Compile(e, "IN(?a)", 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrType))

	var te *TypeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "?a", te.Token)
	assert.Equal(t, 42, te.Value)

	// A byte slice is a scalar, not a sequence.
	_, err = Compile(e, "IN(?a)", []byte("raw"))
	assert.True(t, errors.Is(err, ErrType))

	// ?A requires a mapping; an ordered slice is rejected outright.
	_, err = Compile(e, "SET ?A", []string{"a", "b"})
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "?A", te.Token)
	assert.True(t, errors.Is(err, ErrType))

	_, err = Compile(e, "SET ?A", "not a map")
	assert.True(t, errors.Is(err, ErrType))

	// Maps must be string-keyed to name fields.
	_, err = Compile(e, "SET ?A", map[int]any{1: "x"})
	assert.True(t, errors.Is(err, ErrType))
}

func TestCompile_NumericTokensNeverEscape(t *testing.T) {
	ce := &countingEscaper{inner: MySQL.Escaper()}

	// Even string-typed inputs to ?i/?f go through numeric coercion only.
	got, err := Compile(ce, "a = ?i AND b = ?f", "12' OR '1'='1", "3,14'--")
	require.NoError(t, err)
	assert.Equal(t, "a = 12 AND b = 3.14", got)
	assert.Zero(t, ce.calls)
}

func TestCompile_IntegerCoercion(t *testing.T) {
	e := MySQL.Escaper()

	tests := []struct {
		in   any
		want string
	}{
		{7000, "7000"},
		{int64(-5), "-5"},
		{uint8(255), "255"},
		{3.9, "3"},
		{true, "1"},
		{false, "0"},
		{nil, "0"},
		{"42", "42"},
		{"12abc", "12"},
		{" -7 ", "-7"},
		{"abc", "0"},
		{"", "0"},
		{[]byte("31337"), "31337"},
	}
	for _, tc := range tests {
		got, err := Compile(e, "?i", tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "input %#v", tc.in)
	}
}

func TestCompile_FloatCoercion(t *testing.T) {
	e := MySQL.Escaper()

	tests := []struct {
		in   any
		want string
	}{
		{1.5, "1.5"},
		{7000.0, "7000"},
		{42, "42"},
		{"1,5", "1.5"},
		{"3.14", "3.14"},
		{"2,5kg", "2.5"},
		{"abc", "0"},
		{nil, "0"},
	}
	for _, tc := range tests {
		got, err := Compile(e, "?f", tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "input %#v", tc.in)
	}
}

func TestCompile_RawFragmentIdempotent(t *testing.T) {
	e := MySQL.Escaper()

	frag, err := Compile(e, "points > ?i AND name = ?s", 7000, "O'Reilly")
	require.NoError(t, err)

	// Splicing a previously compiled fragment through ?p must reproduce it
	// verbatim: no double escaping.
	got, err := Compile(e, "SELECT * FROM t WHERE ?p", frag)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE "+frag, got)
}

func TestCompile_FailsAtomically(t *testing.T) {
	e := MySQL.Escaper()

	// A type failure on the second token yields no output at all.
	out, err := Compile(e, "a = ?s AND b IN(?a)", "ok", 42)
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestParseTemplate(t *testing.T) {
	segs, toks := parseTemplate("a ?s b ?i c")
	assert.Equal(t, []string{"a ", " b ", " c"}, segs)
	assert.Equal(t, []byte("si"), toks)

	segs, toks = parseTemplate("?s")
	assert.Equal(t, []string{"", ""}, segs)
	assert.Equal(t, []byte("s"), toks)

	segs, toks = parseTemplate("plain")
	assert.Equal(t, []string{"plain"}, segs)
	assert.Empty(t, toks)
}
