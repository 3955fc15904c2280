// Package asof normalizes the --as-of argument shared by the read commands.
// The argument is either a point in time in one of several accepted formats
// or the name of an environment tag.
package asof

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Layout is the canonical form every accepted timestamp is rewritten to.
// Fractional seconds are printed in groups of 3, 6 or 9 digits, whichever
// keeps the full precision, and left out when zero.
const Layout = "2006-01-02T15:04:05.000Z"

const (
	layoutSeconds = "2006-01-02T15:04:05Z"
	layoutMicros  = "2006-01-02T15:04:05.000000Z"
	layoutNanos   = "2006-01-02T15:04:05.000000000Z"
)

// ErrInvalidUsage is returned when a tag cannot be tied to one environment.
var ErrInvalidUsage = errors.New("a tag can only be resolved against a single environment")

// TagNotFoundError reports a tag that does not exist in the environment.
type TagNotFoundError struct {
	Tag         string
	Environment string
}

func (e *TagNotFoundError) Error() string {
	return fmt.Sprintf("Tag `%s` could not be found in environment `%s`", e.Tag, e.Environment)
}

// InvalidTimeError is returned when a value must be a time but is not.
type InvalidTimeError struct {
	Flag  string
	Value string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("Invalid %s value: %s", e.Flag, e.Value)
}

// now is swapped in tests.
var now = time.Now

// Ordered list of full timestamp layouts tried after RFC 2822.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// Date-only layouts. The matched date is pinned to midnight UTC.
var dateLayouts = []string{
	"2006-01-02",
	"01-02-2006",
	"01/02/2006",
}

// ParseTime converts input into the canonical timestamp. The second return
// is false when input is not a recognized time.
func ParseTime(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}

	if t, err := mail.ParseDate(input); err == nil {
		return format(t), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return format(t), true
		}
	}
	if t, err := time.Parse("15:04:05", input); err == nil {
		today := now().UTC()
		full := time.Date(today.Year(), today.Month(), today.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		return format(full), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return format(t), true
		}
	}
	return "", false
}

// ParseTag returns input when it is not a time, else "".
func ParseTag(input string) string {
	if input == "" {
		return ""
	}
	if _, ok := ParseTime(input); ok {
		return ""
	}
	return input
}

// Split classifies input as either a timestamp or a tag. At most one of the
// results is non-empty.
func Split(input string) (timestamp, tag string) {
	if ts, ok := ParseTime(input); ok {
		return ts, ""
	}
	return "", ParseTag(input)
}

// RequireTime is used by flags that do not accept tags.
func RequireTime(flag, input string) (string, error) {
	if input == "" {
		return "", nil
	}
	ts, ok := ParseTime(input)
	if !ok {
		return "", &InvalidTimeError{Flag: flag, Value: input}
	}
	return ts, nil
}

// Now returns the current time in canonical form.
func Now() string {
	return format(now())
}

func format(t time.Time) string {
	t = t.UTC()
	switch ns := t.Nanosecond(); {
	case ns == 0:
		return t.Format(layoutSeconds)
	case ns%int(time.Millisecond) == 0:
		return t.Format(Layout)
	case ns%int(time.Microsecond) == 0:
		return t.Format(layoutMicros)
	default:
		return t.Format(layoutNanos)
	}
}

// TagLookup finds the timestamp of a named tag in one environment.
type TagLookup interface {
	TagTimestamp(ctx context.Context, envID, tag string) (timestamp string, found bool, err error)
}

// Normalizer resolves --as-of arguments into timestamps the server accepts.
type Normalizer struct {
	tags TagLookup
}

// NewNormalizer creates a Normalizer backed by tags.
func NewNormalizer(tags TagLookup) *Normalizer {
	return &Normalizer{tags: tags}
}

// Resolve turns input into a timestamp. A tag is looked up in the single
// environment listed in envIDs. envName only feeds the not-found message.
func (n *Normalizer) Resolve(ctx context.Context, input string, envIDs []string, envName string) (string, error) {
	if input == "" {
		return "", nil
	}
	ts, tag := Split(input)
	if tag == "" {
		return ts, nil
	}
	if len(envIDs) != 1 {
		return "", ErrInvalidUsage
	}
	ts, found, err := n.tags.TagTimestamp(ctx, envIDs[0], tag)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &TagNotFoundError{Tag: tag, Environment: envName}
	}
	if canon, ok := ParseTime(ts); ok {
		return canon, nil
	}
	return ts, nil
}
