// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package llm implements the generative replacement provider. It asks an
// OpenAI-compatible chat-completions endpoint for a structured list of
// (original, replacement) pairs covering the PII in a text.
//
// The provider never surfaces a failure to its caller: transport errors,
// bad statuses, malformed JSON and empty responses all degrade to an empty
// map, which the pipeline treats as "no detected PII". Silently emitting
// un-anonymized output is the documented cost of that policy; the CLI
// surfaces an explicit warning when it happens.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"anonymail/internal/observability"
	"anonymail/internal/replacement"
	"anonymail/internal/resilience"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

const systemPrompt = `You are a PII detection engine. Given a document, find every span of
personally identifiable information (names, email addresses, phone numbers,
postal addresses, government identifiers, account numbers) and propose a
consistent replacement for each. The same original string must always map
to the same replacement. Respond with JSON only, in the form
{"replacements": [{"original": "...", "replacement": "..."}]}.`

// Options configures the provider.
type Options struct {
	Endpoint string        // OpenAI-compatible chat completions URL
	Model    string        // model identifier, e.g. "gpt-4o-mini"
	APIKey   string        // bearer token
	Timeout  time.Duration // per-attempt HTTP timeout
	Retry    resilience.RetryConfig
}

// Provider calls a language model for replacement mappings.
type Provider struct {
	opts     Options
	client   *http.Client
	observer *observability.Observer
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// New creates a generative provider. Zero-value option fields get defaults.
func New(opts Options, observer *observability.Observer) *Provider {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialInterval == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	return &Provider{
		opts:     opts,
		client:   &http.Client{Timeout: opts.Timeout},
		observer: observer,
	}
}

// Name implements providers.Provider.
func (p *Provider) Name() string {
	return "llm"
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat responseFmt   `json:"response_format"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type structuredOutput struct {
	Replacements []replacementPair `json:"replacements"`
}

type replacementPair struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// Generate implements providers.Provider. Any failure degrades to an empty
// map with a nil error; callers must treat an empty map as "nothing
// detected", never as success confirmation.
func (p *Provider) Generate(text, contextLabel string) (replacement.Map, error) {
	done := p.observer.StartTiming("llm_provider", "generate", contextLabel)

	if strings.TrimSpace(text) == "" {
		done(true, map[string]interface{}{"empty_input": true})
		return replacement.Map{}, nil
	}

	var result replacement.Map
	err := resilience.Retry(context.Background(), p.opts.Retry, func(ctx context.Context) error {
		m, callErr := p.call(ctx, text, contextLabel)
		if callErr != nil {
			return callErr
		}
		result = m
		return nil
	})
	if err != nil {
		done(false, map[string]interface{}{"error": err.Error(), "degraded_to_empty": true})
		return replacement.Map{}, nil
	}

	done(true, map[string]interface{}{"map_size": len(result)})
	return result, nil
}

func (p *Provider) call(ctx context.Context, text, contextLabel string) (replacement.Map, error) {
	prompt := systemPrompt
	if contextLabel != "" {
		prompt = fmt.Sprintf("%s\n\nContext: %s", systemPrompt, contextLabel)
	}

	body, err := json.Marshal(chatRequest{
		Model: p.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: responseFmt{Type: "json_object"},
		Temperature:    0,
	})
	if err != nil {
		return nil, resilience.NewPermanentError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.NewPermanentError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resilience.FromHTTPStatus(resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseStructuredOutput(raw)
}

// parseStructuredOutput decodes the chat response and the embedded
// structured JSON. A response with no choices or unparseable content is a
// permanent error; retrying the same prompt rarely fixes a schema problem.
func parseStructuredOutput(raw []byte) (replacement.Map, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, resilience.NewPermanentError(fmt.Errorf("malformed API response: %w", err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, resilience.NewPermanentError(fmt.Errorf("API response contained no content"))
	}

	var out structuredOutput
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, resilience.NewPermanentError(fmt.Errorf("model output is not valid JSON: %w", err))
	}

	m := make(replacement.Map, len(out.Replacements))
	for _, pair := range out.Replacements {
		if pair.Original == "" || pair.Original == pair.Replacement {
			continue
		}
		if _, exists := m[pair.Original]; exists {
			continue
		}
		m[pair.Original] = pair.Replacement
	}
	return m, nil
}
