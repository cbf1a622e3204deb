// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"errors"
	"fmt"
	"net"
)

// ErrorKind categorizes a provider-call failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransient
	KindPermanent
	KindTimeout
	KindRateLimit
)

// ClassifiedError wraps an error with retry semantics.
type ClassifiedError struct {
	Original  error
	Kind      ErrorKind
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// NewTransientError marks err as safe to retry.
func NewTransientError(err error) *ClassifiedError {
	return &ClassifiedError{Original: err, Kind: KindTransient, Retryable: true}
}

// NewPermanentError marks err as not worth retrying (bad credentials,
// malformed request, unsupported model).
func NewPermanentError(err error) *ClassifiedError {
	return &ClassifiedError{Original: err, Kind: KindPermanent, Retryable: false}
}

// FromHTTPStatus classifies an HTTP response status from the model API.
// 429 and 5xx are retryable; other non-2xx statuses are permanent.
func FromHTTPStatus(status int) *ClassifiedError {
	err := fmt.Errorf("provider API returned status %d", status)
	switch {
	case status == 429:
		return &ClassifiedError{Original: err, Kind: KindRateLimit, Retryable: true}
	case status >= 500:
		return &ClassifiedError{Original: err, Kind: KindTransient, Retryable: true}
	default:
		return &ClassifiedError{Original: err, Kind: KindPermanent, Retryable: false}
	}
}

// Classify categorizes an arbitrary error. Already-classified errors pass
// through; network and timeout errors are transient; everything else is
// unknown and retried once by the default config.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		kind := KindTransient
		if netErr.Timeout() {
			kind = KindTimeout
		}
		return &ClassifiedError{Original: err, Kind: kind, Retryable: true}
	}

	return &ClassifiedError{Original: err, Kind: KindUnknown, Retryable: true}
}
