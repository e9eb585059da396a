package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Default retry and rate limits for the description collaborator. The
// retry budget is deliberately small: descriptions are best-effort and
// matching must never block indefinitely on them.
const (
	describeAttempts = 3
	describeBackoff  = 500 * time.Millisecond
	describeTimeout  = 30 * time.Second
)

// DescriptionService wraps an optional Describer with a bounded retry
// policy and a rate limit respecting downstream collaborator quotas.
// Every failure mode degrades to "no description".
type DescriptionService struct {
	describer driven.Describer
	limiter   *rate.Limiter
	backoff   time.Duration
}

// NewDescriptionService creates the wrapper. describer may be nil, in
// which case Describe always reports unavailability.
func NewDescriptionService(describer driven.Describer) *DescriptionService {
	return &DescriptionService{
		describer: describer,
		limiter:   rate.NewLimiter(rate.Limit(1), 2),
		backoff:   describeBackoff,
	}
}

// Describe produces a pattern description, retrying transient failures
// up to describeAttempts times with exponential backoff. Callers treat
// any error as "leave the description empty".
func (s *DescriptionService) Describe(ctx context.Context, documentType, canonicalXML string) (string, error) {
	if s == nil || s.describer == nil {
		return "", domain.ErrDescriberUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < describeAttempts; attempt++ {
		if attempt > 0 {
			delay := s.backoff << (attempt - 1)
			logger.Debug("describe attempt %d after %s", attempt+1, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		desc, err := s.describer.Describe(ctx, documentType, canonicalXML)
		if err == nil {
			return desc, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%s: %w", s.describer.Name(), lastErr)
}
