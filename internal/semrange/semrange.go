// Package semrange computes the lowest version satisfying an npm-style
// dependency range. Version comparison is delegated to Masterminds/semver.
package semrange

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Resolver implements the range collaborator used by the version window.
type Resolver struct{}

// MinimumSatisfying returns the lowest version matching expr, or false if
// expr is unparsable or nothing can satisfy it.
func (Resolver) MinimumSatisfying(expr string) (string, bool) {
	return MinVersion(expr)
}

// MinVersion returns the lowest version matching expr.
//
// The minimum of a union of intervals is one of the interval lower bounds,
// so every comparator's lower bound (plus 0.0.0) is a candidate and the
// smallest candidate accepted by the full constraint wins.
func MinVersion(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = "*"
	}

	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return "", false
	}

	var best *semver.Version
	for _, candidate := range lowerBounds(expr) {
		v, err := semver.NewVersion(candidate)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.LessThan(best) {
			best = v
		}
	}

	if best == nil {
		return "", false
	}
	return best.String(), true
}

// lowerBounds lists the candidate minimum of every comparator in expr.
func lowerBounds(expr string) []string {
	candidates := []string{"0.0.0"}

	for _, set := range strings.Split(expr, "||") {
		tokens := comparatorTokens(set)
		for i := 0; i < len(tokens); i++ {
			tok := tokens[i]
			if tok == "-" {
				// upper bound of a hyphen range
				i++
				continue
			}

			op, ver := splitOperator(tok)
			switch op {
			case "<", "<=", "!=":
				continue
			}

			parts, pre, wild := components(ver)
			if op == ">" {
				parts, pre = bump(parts, pre, wild)
			}
			candidates = append(candidates, format(parts, pre))
		}
	}

	return candidates
}

// comparatorTokens splits a comparator set on whitespace and commas,
// joining an operator separated from its version by spaces ("> 1.2").
func comparatorTokens(set string) []string {
	fields := strings.FieldsFunc(set, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})

	var tokens []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) && i+1 < len(fields) {
			f += fields[i+1]
			i++
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isOperator(s string) bool {
	switch s {
	case "=", ">", ">=", "<", "<=", "~", "~>", "^", "!=":
		return true
	}
	return false
}

func splitOperator(tok string) (op, ver string) {
	i := strings.IndexFunc(tok, func(r rune) bool {
		return !strings.ContainsRune("=<>~^!", r)
	})
	if i < 0 {
		return tok, ""
	}
	return tok[:i], tok[i:]
}

// components parses a possibly partial version. Missing or wildcard parts
// are zero; wild reports how many leading parts were given concretely.
func components(ver string) (parts [3]int, pre string, wild int) {
	ver = strings.TrimPrefix(strings.TrimPrefix(ver, "v"), "V")
	if i := strings.IndexByte(ver, '+'); i >= 0 {
		ver = ver[:i]
	}
	if i := strings.IndexByte(ver, '-'); i >= 0 {
		ver, pre = ver[:i], ver[i+1:]
	}

	wild = 0
	for i, p := range strings.SplitN(ver, ".", 3) {
		if p == "" || p == "x" || p == "X" || p == "*" {
			break
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		parts[i] = n
		wild = i + 1
	}
	return parts, pre, wild
}

// bump returns the smallest version strictly greater than the given
// comparator operand, honoring its precision.
func bump(parts [3]int, pre string, given int) ([3]int, string) {
	switch {
	case pre != "":
		return parts, pre + ".0"
	case given >= 3:
		parts[2]++
	case given == 2:
		parts[1]++
		parts[2] = 0
	case given == 1:
		parts[0]++
		parts[1], parts[2] = 0, 0
	default:
		// ">*" matches nothing
		return parts, ""
	}
	return parts, ""
}

func format(parts [3]int, pre string) string {
	s := strconv.Itoa(parts[0]) + "." + strconv.Itoa(parts[1]) + "." + strconv.Itoa(parts[2])
	if pre != "" {
		s += "-" + pre
	}
	return s
}
