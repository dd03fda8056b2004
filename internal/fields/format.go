package fields

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrValueRequired is returned when an operator needs a value and none was
// supplied.
var ErrValueRequired = errors.New("a value is required")

// FormatError reports a raw value that does not satisfy its field's declared
// type.
type FormatError struct {
	Value string
	Kind  string
	Hint  string
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%q is not a valid %s", e.Value, e.Kind)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Literal is one formatted value. Text is the literal body; Quoted marks
// string literals, which each target syntax wraps in its own quote style.
type Literal struct {
	Text   string
	Quoted bool
}

// SQL renders the literal for a SQL-92 where clause. String literals are
// single quoted with embedded quotes doubled.
func (l Literal) SQL() string {
	if l.Quoted {
		return quoteSQL(l.Text)
	}
	return l.Text
}

// Arcade renders the literal as an Arcade expression body. String literals
// become double-quoted, escaped strings.
func (l Literal) Arcade() string {
	if l.Quoted {
		return strconv.Quote(l.Text)
	}
	return l.Text
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Formatter applies the declared-type formatting rules to raw configuration
// values.
type Formatter struct {
	logger *slog.Logger
}

// NewFormatter returns a Formatter. A nil logger falls back to slog.Default().
func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{logger: logger}
}

// Format converts one raw value into a literal according to its field's
// declared type.
//
// Integer and float families must parse as numbers and stay unquoted. Date
// values that already look like date literals (a call-style date constructor,
// a timestamp keyword, or an epoch number) pass through unchanged; otherwise
// a YYYY-MM-DD calendar date is converted to epoch milliseconds. Everything
// else, including unrecognized types, is treated as a string: quoted, with
// values longer than MaxStringLength accepted under a warning.
func (f *Formatter) Format(raw, declaredType string) (Literal, error) {
	if raw == "" {
		return Literal{}, ErrValueRequired
	}

	switch FamilyOf(declaredType) {
	case FamilyInteger:
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return Literal{}, &FormatError{Value: raw, Kind: "integer"}
		}
		return Literal{Text: raw}, nil

	case FamilyFloat:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return Literal{}, &FormatError{Value: raw, Kind: "number"}
		}
		return Literal{Text: raw}, nil

	case FamilyDate:
		if isDateLiteral(raw) {
			return Literal{Text: raw}, nil
		}
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Literal{}, &FormatError{
				Value: raw,
				Kind:  "date",
				Hint:  "use YYYY-MM-DD format or a timestamp",
			}
		}
		return Literal{Text: strconv.FormatInt(day.UnixMilli(), 10)}, nil

	default:
		if len(raw) > MaxStringLength {
			f.logger.Warn("value exceeds typical string field limit",
				"length", len(raw), "limit", MaxStringLength)
		}
		return Literal{Text: raw, Quoted: true}, nil
	}
}

// Operand formats the operand of a filter condition. Nullity tests take no
// operand and yield no literal. Membership lists are split on commas and
// each token is formatted independently; any bad token fails the whole list.
// Every other operator takes exactly one literal.
func (f *Formatter) Operand(raw, declaredType, operator string) ([]Literal, error) {
	switch operator {
	case OpIsNull, OpIsNotNull:
		return nil, nil
	case OpIn:
		tokens := splitList(raw)
		if len(tokens) == 0 {
			return nil, ErrValueRequired
		}
		literals := make([]Literal, 0, len(tokens))
		for _, token := range tokens {
			literal, err := f.Format(token, declaredType)
			if err != nil {
				return nil, err
			}
			literals = append(literals, literal)
		}
		return literals, nil
	default:
		literal, err := f.Format(raw, declaredType)
		if err != nil {
			return nil, err
		}
		return []Literal{literal}, nil
	}
}

// isDateLiteral reports whether raw is already usable as a date literal: a
// call-style date constructor, a timestamp keyword, or an epoch number.
func isDateLiteral(raw string) bool {
	if strings.HasPrefix(raw, "date(") || strings.HasPrefix(raw, "Date(") {
		return true
	}
	if strings.HasPrefix(raw, "timestamp") {
		return true
	}
	_, err := strconv.ParseInt(raw, 10, 64)
	return err == nil
}

// splitList splits a comma-separated value list, trimming whitespace and
// dropping empty tokens.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
