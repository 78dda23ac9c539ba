package condition

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/text/cases"
)

// Operator compares a property value with an expected value.
type Operator string

// Supported operators.
const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpEqualsFold     Operator = "equals_fold"
	OpVersionAtLeast Operator = "version_at_least"
	OpMatches        Operator = "matches"
)

// ParseOperator accepts the canonical names plus a few symbolic aliases.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equals", "eq", "==", "":
		return OpEquals, nil
	case "not_equals", "ne", "!=":
		return OpNotEquals, nil
	case "contains":
		return OpContains, nil
	case "starts_with":
		return OpStartsWith, nil
	case "ends_with":
		return OpEndsWith, nil
	case "equals_fold", "equals_ignore_case":
		return OpEqualsFold, nil
	case "version_at_least", ">=":
		return OpVersionAtLeast, nil
	case "matches", "glob":
		return OpMatches, nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
}

// Symbol renders the operator for descriptions.
func (o Operator) Symbol() string {
	switch o {
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpContains:
		return "contains"
	case OpStartsWith:
		return "starts with"
	case OpEndsWith:
		return "ends with"
	case OpEqualsFold:
		return "equals (ignoring case)"
	case OpVersionAtLeast:
		return ">="
	case OpMatches:
		return "matches"
	default:
		return string(o)
	}
}

// Compare applies the operator to an actual and an expected value.
func (o Operator) Compare(actual, expected string) (bool, error) {
	switch o {
	case OpEquals:
		return actual == expected, nil
	case OpNotEquals:
		return actual != expected, nil
	case OpContains:
		return strings.Contains(actual, expected), nil
	case OpStartsWith:
		return strings.HasPrefix(actual, expected), nil
	case OpEndsWith:
		return strings.HasSuffix(actual, expected), nil
	case OpEqualsFold:
		fold := cases.Fold()
		return fold.String(actual) == fold.String(expected), nil
	case OpVersionAtLeast:
		a, e := canonicalVersion(actual), canonicalVersion(expected)
		if !semver.IsValid(e) {
			return false, fmt.Errorf("expected value %q is not a version", expected)
		}
		if !semver.IsValid(a) {
			return false, nil
		}
		return semver.Compare(a, e) >= 0, nil
	case OpMatches:
		re, err := regexp.Compile(globToRegex(expected))
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", expected, err)
		}
		return re.MatchString(actual), nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", string(o))
	}
}

// canonicalVersion turns distro-style versions ("22.04", "v1.2.3") into
// semver form. Leading zeros are dropped per component.
func canonicalVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, ".", 3)
	for i, p := range parts {
		trimmed := strings.TrimLeft(p, "0")
		if trimmed == "" || trimmed[0] < '0' || trimmed[0] > '9' {
			trimmed = "0" + trimmed
		}
		parts[i] = trimmed
	}
	return "v" + strings.Join(parts, ".")
}

// globToRegex converts a shell glob (* and ?) into an anchored regexp.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
