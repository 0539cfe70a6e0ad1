// Package dbal is a minimal SQL templating layer over database/sql. It turns a query string with typed placeholders (?s ?i ?f ?a ?A ?t ?p) and a positional parameter list into a fully escaped SQL string — strings quoted per dialect, sequences expanded for IN(...), maps expanded for SET ..., integers and floats coerced to bare numeric literals — and offers thin helpers to run the result and materialize rows, all without an ORM or a fluent DSL.

package dbal
