package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrNotNumeric is returned when a token does not parse as a finite decimal.
var ErrNotNumeric = errors.New("token is not a finite decimal number")

// TokenError locates a token that failed numeric parsing within a row.
type TokenError struct {
	// Column is the 1-based position of the token in its row.
	Column int
	// Token is the offending text.
	Token string
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("column %d: %q: %v", e.Column, e.Token, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// IsNumericLine reports whether line contains only digits, decimal points
// and whitespace. Blank lines are numeric lines.
func IsNumericLine(line string) bool {
	for _, r := range line {
		if r == '.' || (r >= '0' && r <= '9') || unicode.IsSpace(r) {
			continue
		}
		return false
	}
	return true
}

// IsBlank reports whether line holds only whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// SplitRow splits a line into whitespace-separated tokens.
func SplitRow(line string) []string {
	return strings.Fields(line)
}

// ParseValue parses a single token as a finite float64.
func ParseValue(token string) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotNumeric
	}
	return v, nil
}

// ParseRow parses every token as a float64, preserving order.
// The returned error is a *TokenError for the first bad token.
func ParseRow(tokens []string) ([]float64, error) {
	values := make([]float64, len(tokens))
	for i, tok := range tokens {
		v, err := ParseValue(tok)
		if err != nil {
			return nil, &TokenError{Column: i + 1, Token: tok, Err: err}
		}
		values[i] = v
	}
	return values, nil
}
