package fields

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIntegerFamily(t *testing.T) {
	f := NewFormatter(nil)

	for _, declaredType := range []string{TypeInteger, TypeSmallInteger, TypeOID} {
		literal, err := f.Format("123", declaredType)
		require.NoError(t, err, declaredType)
		assert.Equal(t, Literal{Text: "123"}, literal)
	}

	literal, err := f.Format("-5", TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, "-5", literal.SQL())

	_, err = f.Format("abc", TypeInteger)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "abc", formatErr.Value)
	assert.Equal(t, `"abc" is not a valid integer`, formatErr.Error())

	_, err = f.Format("12.5", TypeInteger)
	assert.Error(t, err, "decimals are not integers")
}

func TestFormatFloatFamily(t *testing.T) {
	f := NewFormatter(nil)

	for _, value := range []string{"3.14", "-2", "10"} {
		literal, err := f.Format(value, TypeDouble)
		require.NoError(t, err, value)
		assert.Equal(t, Literal{Text: value}, literal)
	}

	_, err := f.Format("abc", TypeSingle)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "number", formatErr.Kind)
}

func TestFormatDateFamily(t *testing.T) {
	f := NewFormatter(nil)

	// 2024-01-15T00:00:00Z in epoch milliseconds.
	literal, err := f.Format("2024-01-15", TypeDate)
	require.NoError(t, err)
	assert.Equal(t, Literal{Text: "1705276800000"}, literal)

	// Ready-made date literals pass through unchanged.
	for _, value := range []string{
		"date(2024, 0, 15)",
		"Date(2024, 0, 15)",
		"timestamp '2024-01-15 00:00:00'",
		"1705276800000",
	} {
		literal, err := f.Format(value, TypeDate)
		require.NoError(t, err, value)
		assert.Equal(t, Literal{Text: value}, literal)
	}

	for _, value := range []string{"2024-13-45", "01/15/2024", "tomorrow"} {
		_, err := f.Format(value, TypeDate)
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr, value)
		assert.Contains(t, formatErr.Error(), "YYYY-MM-DD")
	}
}

func TestFormatStringFamily(t *testing.T) {
	f := NewFormatter(nil)

	for _, declaredType := range []string{TypeString, TypeGUID, TypeGlobalID} {
		literal, err := f.Format("hello", declaredType)
		require.NoError(t, err, declaredType)
		assert.Equal(t, Literal{Text: "hello", Quoted: true}, literal)
	}

	// Unrecognized types quote like strings.
	literal, err := f.Format("hello", "esriFieldTypeGeometry")
	require.NoError(t, err)
	assert.True(t, literal.Quoted)
}

func TestFormatEmptyValue(t *testing.T) {
	f := NewFormatter(nil)

	for _, declaredType := range []string{TypeString, TypeInteger, TypeDate} {
		_, err := f.Format("", declaredType)
		assert.ErrorIs(t, err, ErrValueRequired, declaredType)
	}
}

func TestFormatLongStringWarnsButAccepts(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(slog.New(slog.NewTextHandler(&buf, nil)))

	long := strings.Repeat("x", MaxStringLength+1)
	literal, err := f.Format(long, TypeString)
	require.NoError(t, err)
	assert.True(t, literal.Quoted)
	assert.Contains(t, buf.String(), "exceeds typical string field limit")
}

func TestLiteralRendering(t *testing.T) {
	quoted := Literal{Text: "O'Brien", Quoted: true}
	assert.Equal(t, "'O''Brien'", quoted.SQL())
	assert.Equal(t, `"O'Brien"`, quoted.Arcade())

	bare := Literal{Text: "42"}
	assert.Equal(t, "42", bare.SQL())
	assert.Equal(t, "42", bare.Arcade())
}

func TestOperandNullityNeedsNoValue(t *testing.T) {
	f := NewFormatter(nil)

	for _, op := range []string{OpIsNull, OpIsNotNull} {
		literals, err := f.Operand("ignored", TypeInteger, op)
		require.NoError(t, err, op)
		assert.Nil(t, literals)
	}
}

func TestOperandMembershipList(t *testing.T) {
	f := NewFormatter(nil)

	literals, err := f.Operand("1, 2,3", TypeInteger, OpIn)
	require.NoError(t, err)
	assert.Equal(t, []Literal{{Text: "1"}, {Text: "2"}, {Text: "3"}}, literals)

	literals, err = f.Operand("a, b", TypeString, OpIn)
	require.NoError(t, err)
	assert.Equal(t, []Literal{{Text: "a", Quoted: true}, {Text: "b", Quoted: true}}, literals)

	_, err = f.Operand("1, x", TypeInteger, OpIn)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "x", formatErr.Value)

	_, err = f.Operand(" , ,", TypeString, OpIn)
	assert.ErrorIs(t, err, ErrValueRequired)
}

func TestOperandSingleValue(t *testing.T) {
	f := NewFormatter(nil)

	literals, err := f.Operand("West", TypeString, OpEquals)
	require.NoError(t, err)
	require.Len(t, literals, 1)
	assert.Equal(t, "'West'", literals[0].SQL())
}
