package dbal

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// tokenKinds is the fixed set of letters recognized after '?'. Any '?' not
// followed by one of these is ordinary literal text.
const tokenKinds = "sifaAtp"

// Compile substitutes the typed placeholders of template with the supplied
// parameters, escaping through e where the token kind demands it, and
// returns the final SQL string.
//
// Compilation is all-or-nothing: the template is parsed first, the token
// count is validated against len(params), and only then are values
// converted. A template without tokens is returned unchanged and params
// are not consulted. Templates are parsed fresh on every call; nothing is
// cached between calls.
func Compile(e Escaper, template string, params ...any) (string, error) {
	segs, toks := parseTemplate(template)
	if len(toks) == 0 {
		return template, nil
	}
	if len(toks) != len(params) {
		return "", &ArityError{Expected: len(toks), Actual: len(params), Template: template}
	}

	var buf strings.Builder
	// Small oversizing to reduce reallocations; quoted values grow the output.
	buf.Grow(len(template) + len(toks)*8)

	for i, kind := range toks {
		buf.WriteString(segs[i])
		out, err := convert(e, kind, params[i])
		if err != nil {
			return "", err
		}
		buf.WriteString(out)
	}
	buf.WriteString(segs[len(toks)])
	return buf.String(), nil
}

// parseTemplate splits q into alternating literal segments and placeholder
// tokens in one pass. It returns len(toks)+1 segments (possibly empty), so
// that segs[i] precedes toks[i] and segs[len(toks)] is the trailing text.
func parseTemplate(q string) (segs []string, toks []byte) {
	start := 0
	for i := 0; i+1 < len(q); {
		if q[i] == '?' && strings.IndexByte(tokenKinds, q[i+1]) >= 0 {
			segs = append(segs, q[start:i])
			toks = append(toks, q[i+1])
			i += 2
			start = i
			continue
		}
		i++
	}
	segs = append(segs, q[start:])
	return segs, toks
}

// convert produces the exact text to splice into the output for one token.
// ?i and ?f never touch the escaper: numeric coercion cannot carry an
// injection payload. ?t and ?p are deliberate escape hatches — the caller
// owns the safety of identifiers and raw fragments.
func convert(e Escaper, kind byte, v any) (string, error) {
	switch kind {
	case 's':
		return e.Quote(v), nil
	case 'i':
		return strconv.FormatInt(toInt64(v), 10), nil
	case 'f':
		return strconv.FormatFloat(toFloat64(v), 'f', -1, 64), nil
	case 'a':
		return convertList(e, v)
	case 'A':
		return convertSet(e, v)
	case 't':
		return "`" + toString(v) + "`", nil
	default: // 'p'
		return toString(v), nil
	}
}

// convertList renders a ?a value: a slice or array of scalars, each element
// quoted and joined with ", " for IN(...) clauses.
func convertList(e Escaper, v any) (string, error) {
	rv := deIndirect(reflect.ValueOf(v))
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return "", &TypeError{Token: "?a", Value: v}
	}
	// A byte slice is a scalar in disguise, not a sequence of values.
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return "", &TypeError{Token: "?a", Value: v}
	}

	var buf strings.Builder
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.Quote(rv.Index(i).Interface()))
	}
	return buf.String(), nil
}

// convertSet renders a ?A value: a string-keyed map of field→value, emitted
// as `field`=value pairs joined with ", " for SET clauses. Keys are emitted
// in sorted order so the output is deterministic. An ordered slice is
// rejected outright: positional values carry no field names to assign.
func convertSet(e Escaper, v any) (string, error) {
	rv := deIndirect(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return "", &TypeError{Token: "?A", Value: v}
	}

	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)

	keyT := rv.Type().Key()
	var buf strings.Builder
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		kv := reflect.ValueOf(k)
		if kv.Type() != keyT {
			kv = kv.Convert(keyT)
		}
		buf.WriteByte('`')
		buf.WriteString(k)
		buf.WriteString("`=")
		buf.WriteString(e.Quote(rv.MapIndex(kv).Interface()))
	}
	return buf.String(), nil
}

// toInt64 coerces v to an integer with PHP-style semantics: numerics
// truncate, booleans map to 0/1, strings contribute their leading numeric
// prefix, and anything non-numeric collapses to 0.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		return intPrefix(n)
	case []byte:
		return intPrefix(string(n))
	case nil:
		return 0
	}
	return intPrefix(fmt.Sprint(v))
}

// toFloat64 coerces v to a float. Textual input may use a comma as the
// decimal separator; it is normalized to a dot before parsing.
func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		return floatPrefix(strings.ReplaceAll(n, ",", "."))
	case []byte:
		return floatPrefix(strings.ReplaceAll(string(n), ",", "."))
	case nil:
		return 0
	}
	return floatPrefix(fmt.Sprint(v))
}

// intPrefix parses the leading base-10 integer of s, if any.
func intPrefix(s string) int64 {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0
	}
	n, err := strconv.ParseInt(s[:j], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// floatPrefix parses the leading decimal number of s, if any.
func floatPrefix(s string) float64 {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && (s[j] >= '0' && s[j] <= '9') {
		j++
	}
	if j < len(s) && s[j] == '.' {
		j++
		for j < len(s) && (s[j] >= '0' && s[j] <= '9') {
			j++
		}
	}
	if j == i {
		return 0
	}
	f, err := strconv.ParseFloat(s[:j], 64)
	if err != nil {
		return 0
	}
	return f
}

// toString renders v as raw text for ?t and ?p without any escaping.
func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// deIndirect unwraps interface and pointers until a concrete value (or nil).
func deIndirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}
