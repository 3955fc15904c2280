package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/cloudtruth/internal/api"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/tests/testutil"
)

func TestReportSuccess(t *testing.T) {
	log := testutil.NewTestLogger(t)

	assert.Equal(t, dserrors.ExitSuccess, report(log.Logger, nil))
	assert.Empty(t, log.GetOutput())
}

func TestReportAuthFailure(t *testing.T) {
	log := testutil.NewTestLogger(t)
	err := fmt.Errorf("listing environments: %w", &api.Error{
		Kind:   api.KindAuthFailed,
		Method: http.MethodGet,
		URL:    "https://api.cloudtruth.io/api/v1/environments/",
		Status: http.StatusUnauthorized,
		Body:   `{"detail":"Invalid API key."}`,
	})

	code := report(log.Logger, err)

	assert.Equal(t, dserrors.ExitFailure, code)
	log.AssertContains(t, "Not Authenticated")
	log.AssertContains(t, "Run 'cloudtruth login'")
	log.AssertContains(t, "CLOUDTRUTH_API_KEY")
}

func TestReportRetryable(t *testing.T) {
	log := testutil.NewTestLogger(t)
	err := &api.Error{
		Kind:   api.KindTransport,
		Method: http.MethodGet,
		URL:    "https://api.cloudtruth.io/api/v1/projects/",
		Err:    errors.New("dial tcp: i/o timeout"),
	}

	report(log.Logger, err)

	log.AssertContains(t, "Try the command again")
	assert.NotContains(t, log.GetOutput(), "login")
}

func TestReportRedactsKeys(t *testing.T) {
	log := testutil.NewTestLogger(t)
	err := dserrors.Exit(dserrors.ExitFailure, "bad key sk-live-12345 rejected")

	code := report(log.Logger, err, "sk-live-12345", "")

	assert.Equal(t, dserrors.ExitFailure, code)
	log.AssertRedacted(t, "sk-live-12345")
}
