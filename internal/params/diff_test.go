package params

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cloudtruth/tests/fakes"
)

func TestNormalizeComparison(t *testing.T) {
	tests := []struct {
		name  string
		envs  []string
		asOfs []string
		want  Comparison
		err   error
	}{
		{
			name:  "one time",
			asOfs: []string{"2024-01-01"},
			want:  Comparison{Left: Side{Environment: "dev"}, Right: Side{Environment: "dev", AsOf: "2024-01-01"}},
		},
		{
			name: "one env",
			envs: []string{"prod"},
			want: Comparison{Left: Side{Environment: "dev"}, Right: Side{Environment: "prod"}},
		},
		{
			name:  "two of each",
			envs:  []string{"a", "b"},
			asOfs: []string{"t1", "t2"},
			want:  Comparison{Left: Side{Environment: "a", AsOf: "t1"}, Right: Side{Environment: "b", AsOf: "t2"}},
		},
		{name: "nothing", err: ErrSelfCompare},
		{name: "same env named", envs: []string{"dev"}, err: ErrSelfCompare},
		{name: "same pair", envs: []string{"x", "x"}, asOfs: []string{"t", "t"}, err: ErrSelfCompare},
		{name: "too many envs", envs: []string{"a", "b", "c"}, err: ErrTooManyEnvironments},
		{name: "too many times", asOfs: []string{"1", "2", "3"}, err: ErrTooManyTimes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeComparison("dev", tt.envs, tt.asOfs)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComparisonHeaders(t *testing.T) {
	tests := []struct {
		name        string
		c           Comparison
		left, right string
	}{
		{
			name:  "same env, right time",
			c:     Comparison{Left: Side{Environment: "dev"}, Right: Side{Environment: "dev", AsOf: "2024-01-01"}},
			left:  "Current",
			right: "2024-01-01",
		},
		{
			name:  "same env, two times",
			c:     Comparison{Left: Side{Environment: "dev", AsOf: "t1"}, Right: Side{Environment: "dev", AsOf: "t2"}},
			left:  "t1",
			right: "t2",
		},
		{
			name:  "different envs",
			c:     Comparison{Left: Side{Environment: "dev"}, Right: Side{Environment: "prod"}},
			left:  "dev",
			right: "prod",
		},
		{
			name:  "different envs and times",
			c:     Comparison{Left: Side{Environment: "dev", AsOf: "t1"}, Right: Side{Environment: "prod", AsOf: "t2"}},
			left:  "dev (t1)",
			right: "prod (t2)",
		},
		{
			name:  "different envs, one time",
			c:     Comparison{Left: Side{Environment: "dev"}, Right: Side{Environment: "prod", AsOf: "t2"}},
			left:  "dev (current)",
			right: "prod (t2)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, r := tt.c.Headers()
			assert.Equal(t, tt.left, l)
			assert.Equal(t, tt.right, r)
		})
	}
}

func TestDiffEnvironments(t *testing.T) {
	fake := fakes.NewFakeCloudTruth().
		WithEnvironment("dev", "default").
		WithEnvironment("prod", "default").
		WithProject("app", "").
		WithParameter("app", "DB_HOST", fakes.ParamOpts{}).
		WithValue("app", "DB_HOST", "dev", "localhost").
		WithValue("app", "DB_HOST", "prod", "db.prod").
		WithParameter("app", "PORT", fakes.ParamOpts{}).
		WithValue("app", "PORT", "default", "5432")
	a := newAssembler(t, fake)
	ctx := context.Background()
	projectID := fake.Project("app").ID

	dev, err := a.Details(ctx, projectID, envOpts(fake, "dev"))
	require.NoError(t, err)
	prod, err := a.Details(ctx, projectID, envOpts(fake, "prod"))
	require.NoError(t, err)

	result := Diff(dev, prod, []string{PropValue, PropSecret})
	assert.Equal(t, [][]string{{"DB_HOST", "localhost,\nfalse", "db.prod,\nfalse"}}, result.Rows)
	assert.Empty(t, result.Errors)
}

func TestDiffUnionAndOrdering(t *testing.T) {
	left := []Detail{
		{Name: "beta", Value: "1"},
		{Name: "Alpha", Value: "1"},
		{Name: "same", Value: "x"},
	}
	right := []Detail{
		{Name: "alpha", Value: "1"},
		{Name: "beta", Value: "2"},
		{Name: "same", Value: "x"},
		{Name: "Gamma", Value: "3"},
	}

	result := Diff(left, right, []string{PropValue})
	assert.Equal(t, [][]string{
		{"Alpha", "1", ""},
		{"alpha", "", "1"},
		{"beta", "1", "2"},
		{"Gamma", "", "3"},
	}, result.Rows)
}

func TestDiffErrors(t *testing.T) {
	left := []Detail{
		{Name: "A", Value: Unset, Error: "denied"},
		{Name: "B", Value: Unset, Error: "timeout"},
	}
	right := []Detail{
		{Name: "A", Value: Unset, Error: "denied"},
		{Name: "B", Value: Unset, Error: "not found"},
		{Name: "C", Value: Unset, Error: "bad fqn"},
	}

	result := Diff(left, right, []string{PropValue})
	assert.Equal(t, []string{
		"   A: denied",
		"   B: timeout",
		"   B: not found",
		"   C: bad fqn",
	}, result.Errors)
	assert.Equal(t, [][]string{{"C", "", Unset}}, result.Rows)
}
