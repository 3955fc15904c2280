package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/systmms/cloudtruth/internal/logging"
)

var (
	// ErrTooManyEnvironments is a warning: at most two environments compare.
	ErrTooManyEnvironments = errors.New("Can specify a maximum of 2 environment values.")
	// ErrTooManyTimes is a warning: at most two as-of values compare.
	ErrTooManyTimes = errors.New("Can specify a maximum of 2 as-of values.")
	// ErrSelfCompare is a warning: both sides resolve to the same thing.
	ErrSelfCompare = errors.New("Invalid comparing an environment to itself")
)

// Side is one half of a comparison.
type Side struct {
	Environment string
	AsOf        string
}

// Comparison is the normalized pair of sides.
type Comparison struct {
	Left  Side
	Right Side
}

// NormalizeComparison expands the user's environment and as-of lists into two
// sides. With one environment the left side is current; with one as-of the
// left side is now. The returned errors are warnings to print before stopping.
func NormalizeComparison(current string, envs, asOfs []string) (Comparison, error) {
	if len(envs) > 2 {
		return Comparison{}, ErrTooManyEnvironments
	}
	if len(asOfs) > 2 {
		return Comparison{}, ErrTooManyTimes
	}

	var c Comparison
	switch len(envs) {
	case 0:
		c.Left.Environment, c.Right.Environment = current, current
	case 1:
		c.Left.Environment, c.Right.Environment = current, envs[0]
	default:
		c.Left.Environment, c.Right.Environment = envs[0], envs[1]
	}
	switch len(asOfs) {
	case 1:
		c.Right.AsOf = asOfs[0]
	case 2:
		c.Left.AsOf, c.Right.AsOf = asOfs[0], asOfs[1]
	}

	if c.Left == c.Right {
		return Comparison{}, ErrSelfCompare
	}
	return c, nil
}

// Headers returns the column labels for the two sides.
func (c Comparison) Headers() (string, string) {
	if c.Left.Environment == c.Right.Environment {
		left, right := c.Left.AsOf, c.Right.AsOf
		if left == "" {
			left = "Current"
		}
		if right == "" {
			right = "Unspecified"
		}
		return left, right
	}
	if c.Left.AsOf == c.Right.AsOf {
		return c.Left.Environment, c.Right.Environment
	}
	return label(c.Left), label(c.Right)
}

func label(s Side) string {
	asOf := s.AsOf
	if asOf == "" {
		asOf = "current"
	}
	return fmt.Sprintf("%s (%s)", s.Environment, asOf)
}

// DiffResult is the outcome of comparing two detail sets.
type DiffResult struct {
	// Rows hold [name, left, right] for every differing parameter.
	Rows [][]string
	// Errors hold formatted per-parameter errors from either side.
	Errors []string
}

// Diff compares left and right on the selected properties.
func Diff(left, right []Detail, properties []string) DiffResult {
	leftByName := index(left)
	rightByName := index(right)

	names := make([]string, 0, len(leftByName)+len(rightByName))
	for name := range leftByName {
		names = append(names, name)
	}
	for name := range rightByName {
		if _, ok := leftByName[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li == lj {
			return names[i] < names[j]
		}
		return li < lj
	})

	var result DiffResult
	for _, name := range names {
		l, r := leftByName[name], rightByName[name]
		lText, rText := Joined(l, properties), Joined(r, properties)
		if lText != rText {
			result.Rows = append(result.Rows, []string{name, lText, rText})
		}
		if l != nil && l.Error != "" {
			result.Errors = append(result.Errors, logging.FormatParamError(name, l.Error))
		}
		if r != nil && r.Error != "" && (l == nil || l.Error != r.Error) {
			result.Errors = append(result.Errors, logging.FormatParamError(name, r.Error))
		}
	}
	return result
}

func index(details []Detail) map[string]*Detail {
	out := make(map[string]*Detail, len(details))
	for i := range details {
		out[details[i].Name] = &details[i]
	}
	return out
}
