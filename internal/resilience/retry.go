// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package resilience implements retry with exponential backoff for the
// replacement provider's network calls. A provider failure is never fatal
// to an anonymization run; retries only reduce how often the pipeline has
// to fall back to an empty replacement map.
package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial retry interval
	MaxInterval     time.Duration // Maximum retry interval
	Multiplier      float64       // Exponential backoff multiplier
	Jitter          bool          // Add up to 25% random jitter to spread retries

	// OnRetry, when set, is invoked before each retry attempt.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns defaults suited to a model-API call that the
// caller will degrade gracefully from anyway: few attempts, short waits.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	}
}

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) error

// Retry executes operation with exponential backoff. The delay before
// attempt n is InitialInterval * Multiplier^(n-1), capped at MaxInterval.
// Permanent errors (see Classify) abort immediately.
func Retry(ctx context.Context, config RetryConfig, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := float64(config.InitialInterval)
			for i := 1; i < attempt; i++ {
				delay *= config.Multiplier
			}
			if config.Jitter {
				delay += delay * 0.25 * rand.Float64()
			}
			capped := time.Duration(delay)
			if capped > config.MaxInterval {
				capped = config.MaxInterval
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(capped):
			}

			if config.OnRetry != nil {
				config.OnRetry(attempt, lastErr)
			}
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !Classify(err).Retryable {
			return err
		}
	}

	return lastErr
}
