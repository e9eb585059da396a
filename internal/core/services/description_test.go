package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// stubDescriber fails a fixed number of calls before succeeding.
type stubDescriber struct {
	failures int
	calls    int
}

func (s *stubDescriber) Describe(context.Context, string, string) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", errors.New("upstream overloaded")
	}
	return "a passenger list with per-passenger name and type code", nil
}

func (s *stubDescriber) Name() string { return "stub" }

// fastDescription removes the production backoff and rate limit so
// retry behaviour is testable without waiting.
func fastDescription(d *stubDescriber) *DescriptionService {
	svc := NewDescriptionService(d)
	svc.backoff = time.Millisecond
	svc.limiter = rate.NewLimiter(rate.Inf, 1)
	return svc
}

func TestDescriptionService_Describe(t *testing.T) {
	stub := &stubDescriber{}
	svc := fastDescription(stub)

	desc, err := svc.Describe(context.Background(), "OrderViewRS", "<PaxList/>")
	require.NoError(t, err)
	assert.Contains(t, desc, "passenger list")
	assert.Equal(t, 1, stub.calls)
}

func TestDescriptionService_Describe_RetriesTransientFailures(t *testing.T) {
	stub := &stubDescriber{failures: 2}
	svc := fastDescription(stub)

	desc, err := svc.Describe(context.Background(), "OrderViewRS", "<PaxList/>")
	require.NoError(t, err)
	assert.NotEmpty(t, desc)
	assert.Equal(t, 3, stub.calls)
}

func TestDescriptionService_Describe_ExhaustsRetryBudget(t *testing.T) {
	stub := &stubDescriber{failures: 10}
	svc := fastDescription(stub)

	_, err := svc.Describe(context.Background(), "OrderViewRS", "<PaxList/>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stub")
	assert.Equal(t, describeAttempts, stub.calls)
}

func TestDescriptionService_Describe_NilDescriber(t *testing.T) {
	svc := NewDescriptionService(nil)
	_, err := svc.Describe(context.Background(), "OrderViewRS", "<PaxList/>")
	assert.ErrorIs(t, err, domain.ErrDescriberUnavailable)

	var none *DescriptionService
	_, err = none.Describe(context.Background(), "OrderViewRS", "<PaxList/>")
	assert.ErrorIs(t, err, domain.ErrDescriberUnavailable)
}

func TestDescriptionService_Describe_CancelledContext(t *testing.T) {
	stub := &stubDescriber{failures: 10}
	svc := NewDescriptionService(stub)
	svc.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Describe(ctx, "OrderViewRS", "<PaxList/>")
	assert.ErrorIs(t, err, context.Canceled)
}
