package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is wrapped by every store when a row does not exist in the caller's company.
var ErrNotFound = errors.New("not found")

// TimeLayout is the fixed-width UTC layout all timestamps are stored in.
// Fixed width keeps lexical and chronological order identical on every backend.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout. The zero time renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// NullTime renders t for a nullable column: nil for the zero time.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return FormatTime(t)
}

// ParseTime parses a stored timestamp. Empty input yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	formats := []string{TimeLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}

// ParseNullTime parses a nullable timestamp column.
func ParseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, _ := ParseTime(ns.String)
	return t
}

// BoolToInt stores booleans as INTEGER, which both backends accept.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LikePattern builds a case-insensitive substring pattern for `LOWER(col) LIKE ?`.
func LikePattern(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
	return "%" + s + "%"
}

// LikeExpr is the case-insensitive match expression paired with LikePattern.
func LikeExpr(col string) string {
	return "LOWER(" + col + `) LIKE ? ESCAPE '\'`
}

// SearchAny adds an OR-group matching q against every column.
func (w *Where) SearchAny(q string, cols ...string) {
	if strings.TrimSpace(q) == "" || len(cols) == 0 {
		return
	}
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	pattern := LikePattern(q)
	for i, c := range cols {
		parts[i] = LikeExpr(c)
		args[i] = pattern
	}
	w.Add("("+strings.Join(parts, " OR ")+")", args...)
}

// NotFound wraps ErrNotFound with the entity name.
func NotFound(entity string) error {
	return fmt.Errorf("%s not found: %w", entity, ErrNotFound)
}

// Where accumulates AND-ed conditions and their arguments.
type Where struct {
	clauses []string
	args    []any
}

// Add appends a condition with its arguments.
func (w *Where) Add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// SQL renders " WHERE a AND b" or "" when empty.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the accumulated arguments.
func (w *Where) Args() []any {
	return w.args
}

// OrderBy renders an ORDER BY clause for a whitelisted column.
// col must come from a fixed allow-list, never from raw user input.
func OrderBy(col, dir, fallback string) string {
	if col == "" {
		return " ORDER BY " + fallback
	}
	if dir != "desc" {
		dir = "asc"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, strings.ToUpper(dir))
}
