package fields

import (
	"fmt"
	"strings"
)

// SQL operators accepted in filter conditions.
const (
	OpEquals        = "="
	OpNotEquals     = "!="
	OpGreater       = ">"
	OpLess          = "<"
	OpGreaterEquals = ">="
	OpLessEquals    = "<="
	OpLike          = "LIKE"
	OpIn            = "IN"
	OpIsNull        = "IS NULL"
	OpIsNotNull     = "IS NOT NULL"
)

// Operators lists every operator accepted by Where, in display order.
func Operators() []string {
	return []string{
		OpEquals, OpNotEquals, OpGreater, OpLess, OpGreaterEquals,
		OpLessEquals, OpLike, OpIn, OpIsNull, OpIsNotNull,
	}
}

// ValidOperator reports whether op is one of the supported operators.
func ValidOperator(op string) bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreater, OpLess, OpGreaterEquals,
		OpLessEquals, OpLike, OpIn, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Where builds a SQL where clause from a field name, an operator, and a raw
// value.
//
// Nullity operators ignore the value. LIKE always quotes, since the value may
// carry wildcards. Membership lists format each token independently, so a
// mixed list may hold quoted and unquoted tokens side by side. A value that
// fails its declared type's rule is quoted as a string under a warning
// rather than rejected; strict rejection is the form-default path's job, not
// the filter builder's.
func (f *Formatter) Where(field, operator, raw, declaredType string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("a field name is required")
	}
	if !ValidOperator(operator) {
		return "", fmt.Errorf("unsupported operator %q", operator)
	}

	switch operator {
	case OpIsNull, OpIsNotNull:
		return field + " " + operator, nil

	case OpIn:
		tokens := splitList(raw)
		if len(tokens) == 0 {
			return "", ErrValueRequired
		}
		literals := make([]string, 0, len(tokens))
		for _, token := range tokens {
			literals = append(literals, f.filterLiteral(token, declaredType))
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(literals, ", ")), nil

	case OpLike:
		if raw == "" {
			return "", ErrValueRequired
		}
		return fmt.Sprintf("%s LIKE %s", field, quoteSQL(raw)), nil

	default:
		if raw == "" {
			return "", ErrValueRequired
		}
		return fmt.Sprintf("%s %s %s", field, operator, f.filterLiteral(raw, declaredType)), nil
	}
}

// filterLiteral formats one operand for a where clause, falling back to a
// quoted string when the value does not satisfy the declared type.
func (f *Formatter) filterLiteral(raw, declaredType string) string {
	literal, err := f.Format(raw, declaredType)
	if err != nil {
		f.logger.Warn("value does not match declared field type, quoting as string",
			"value", raw, "type", declaredType)
		return quoteSQL(raw)
	}
	return literal.SQL()
}
