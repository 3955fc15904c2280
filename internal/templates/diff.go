package templates

import (
	"context"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// Side is one body to compare along with the label printed for it.
type Side struct {
	Label string
	Query Query
}

// Unified renders the differences between left and right. Equal bodies
// produce an empty string.
func Unified(left, right, leftLabel, rightLabel string, lines int) (string, error) {
	if lines < 0 {
		lines = DefaultContext
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(left),
		B:        difflib.SplitLines(right),
		FromFile: leftLabel,
		ToFile:   rightLabel,
		Context:  lines,
	})
}

// Diff fetches the named template for both sides and compares them.
func (e *Evaluator) Diff(ctx context.Context, projectID, projectName, name string, left, right Side, lines int) (string, error) {
	a, err := e.Get(ctx, projectID, projectName, name, left.Query)
	if err != nil {
		return "", err
	}
	b, err := e.Get(ctx, projectID, projectName, name, right.Query)
	if err != nil {
		return "", err
	}
	return Unified(a, b, left.Label, right.Label, lines)
}
