package asof

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	now = func() time.Time { return time.Date(2022, 3, 4, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	tests := []struct {
		input    string
		expected string
	}{
		{"Tue, 1 Jul 2003 10:52:37 +0200", "2003-07-01T08:52:37Z"},
		{"1996-12-19T16:39:57-08:00", "1996-12-20T00:39:57Z"},
		{"2021-01-20T13:57:59.270824Z", "2021-01-20T13:57:59.270824Z"},
		{"2021-01-20T13:57:59", "2021-01-20T13:57:59Z"},
		{"2021-01-20T13:57:59.5", "2021-01-20T13:57:59.500Z"},
		{"2021-01-20T13:57:59.123456789Z", "2021-01-20T13:57:59.123456789Z"},
		{"2021-01-20T13:57:59.120000Z", "2021-01-20T13:57:59.120Z"},
		{"13:57:59", "2022-03-04T13:57:59Z"},
		{"13:57:59.345", "2022-03-04T13:57:59.345Z"},
		{"2020-02-02", "2020-02-02T00:00:00Z"},
		{"01-19-2021", "2021-01-19T00:00:00Z"},
		{"01/19/2021", "2021-01-19T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)

			again, ok := ParseTime(got)
			require.True(t, ok)
			assert.Equal(t, got, again, "canonical form must be stable")
		})
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, input := range []string{"", "my-tag", "2021-13-45", "12:00", "stable-2021"} {
		_, ok := ParseTime(input)
		assert.False(t, ok, input)
	}
}

func TestTagAndTimeAreExclusive(t *testing.T) {
	for _, input := range []string{"", "my-tag", "2020-02-02", "01/19/2021", "13:57:59"} {
		ts, tag := Split(input)
		assert.False(t, ts != "" && tag != "", input)
		_, isTime := ParseTime(input)
		assert.Equal(t, isTime || input == "", ParseTag(input) == "", input)
	}

	ts, tag := Split("release-1")
	assert.Empty(t, ts)
	assert.Equal(t, "release-1", tag)
}

func TestRequireTime(t *testing.T) {
	ts, err := RequireTime("--before", "2021-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2021-01-01T00:00:00Z", ts)

	ts, err = RequireTime("--before", "")
	require.NoError(t, err)
	assert.Empty(t, ts)

	_, err = RequireTime("--before", "soon")
	var invalid *InvalidTimeError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "Invalid --before value: soon", err.Error())
}

func TestNow(t *testing.T) {
	now = func() time.Time { return time.Date(2022, 3, 4, 9, 0, 0, 250000000, time.FixedZone("x", 3600)) }
	t.Cleanup(func() { now = time.Now })
	assert.Equal(t, "2022-03-04T08:00:00.250Z", Now())
}

type stubTags map[string]map[string]string

func (s stubTags) TagTimestamp(ctx context.Context, envID, tag string) (string, bool, error) {
	if envID == "boom" {
		return "", false, errors.New("server down")
	}
	ts, ok := s[envID][tag]
	return ts, ok, nil
}

func TestNormalizerResolve(t *testing.T) {
	n := NewNormalizer(stubTags{"e1": {"stable": "2021-05-01T10:00:00.000000Z"}})
	ctx := context.Background()

	ts, err := n.Resolve(ctx, "", []string{"e1"}, "default")
	require.NoError(t, err)
	assert.Empty(t, ts)

	ts, err = n.Resolve(ctx, "2021-01-01", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "2021-01-01T00:00:00Z", ts)

	ts, err = n.Resolve(ctx, "stable", []string{"e1"}, "default")
	require.NoError(t, err)
	assert.Equal(t, "2021-05-01T10:00:00Z", ts)

	_, err = n.Resolve(ctx, "missing", []string{"e1"}, "default")
	var notFound *TagNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Tag `missing` could not be found in environment `default`", err.Error())

	_, err = n.Resolve(ctx, "stable", []string{"e1", "e2"}, "")
	assert.ErrorIs(t, err, ErrInvalidUsage)

	_, err = n.Resolve(ctx, "stable", []string{"boom"}, "x")
	assert.EqualError(t, err, "server down")
}
