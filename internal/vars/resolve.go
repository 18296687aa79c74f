package vars

import (
	"fmt"
	"strings"

	"github.com/roach88/tabledriver/internal/record"
)

// Lookup returns the value of a variable, or "" when it is unset.
type Lookup func(name string) (string, error)

// Assign stores a variable.
type Assign func(name, value string) error

// Resolve evaluates variable expressions field by field.
//
// A field is an expression when it holds a ^ outside double quotes:
//
//	^name              the value of name
//	"text" & ^name     concatenation of quoted literals and references
//	^name = expr       assigns expr to name and yields the value
//
// Other fields are returned untouched. A resolved value containing the
// separator is quoted so the record still splits into the same fields.
func Resolve(text, separator string, lookup Lookup, assign Assign) (string, error) {
	fields := record.Tokenize(text, separator)
	if len(fields) == 0 {
		return text, nil
	}
	changed := false
	for i, f := range fields {
		if !hasReference(f) {
			continue
		}
		value, err := evalField(strings.TrimSpace(f), lookup, assign)
		if err != nil {
			return text, fmt.Errorf("field %d: %w", i, err)
		}
		if separator != "" && strings.Contains(value, separator) {
			value = `"` + value + `"`
		}
		fields[i] = leading(f) + value + trailing(f)
		changed = true
	}
	if !changed {
		return text, nil
	}
	return strings.Join(fields, separator), nil
}

func evalField(field string, lookup Lookup, assign Assign) (string, error) {
	if strings.HasPrefix(field, "^") {
		if eq := indexOutsideQuotes(field, '='); eq > 0 {
			name := strings.TrimSpace(field[1:eq])
			if name == "" {
				return "", fmt.Errorf("assignment without a variable name: %q", field)
			}
			value, err := evalExpr(field[eq+1:], lookup)
			if err != nil {
				return "", err
			}
			if err := assign(name, value); err != nil {
				return "", fmt.Errorf("assign %s: %w", name, err)
			}
			return value, nil
		}
	}
	return evalExpr(field, lookup)
}

func evalExpr(expr string, lookup Lookup) (string, error) {
	var b strings.Builder
	for _, operand := range splitOutsideQuotes(expr, '&') {
		operand = strings.TrimSpace(operand)
		switch {
		case strings.HasPrefix(operand, "^"):
			name := strings.TrimSpace(operand[1:])
			if name == "" {
				return "", fmt.Errorf("empty variable reference in %q", expr)
			}
			v, err := lookup(name)
			if err != nil {
				return "", fmt.Errorf("lookup %s: %w", name, err)
			}
			b.WriteString(v)
		default:
			b.WriteString(record.Unquote(operand))
		}
	}
	return b.String(), nil
}

func hasReference(field string) bool {
	return indexOutsideQuotes(field, '^') >= 0
}

func indexOutsideQuotes(s string, c byte) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == c && !inQuote:
			return i
		}
	}
	return -1
}

func splitOutsideQuotes(s string, c byte) []string {
	var parts []string
	start, inQuote := 0, false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == c && !inQuote:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func leading(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func trailing(s string) string {
	return s[len(strings.TrimRight(s, " \t")):]
}
