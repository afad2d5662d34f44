// Package narrative asks an external text-generation service to interpret a
// session's metrics and contour report. Every failure is returned as a value;
// callers turn it into an advisory and carry on.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yangatekane/bh-ea-dashboard/internal/ai"
	"github.com/yangatekane/bh-ea-dashboard/internal/config"
	"github.com/yangatekane/bh-ea-dashboard/internal/logger"
)

// DefaultTimeout bounds a single narrative request.
const DefaultTimeout = 30 * time.Second

// ErrNotConfigured means no provider is set up.
var ErrNotConfigured = errors.New("narrative service is not configured")

// ExternalServiceError wraps transport, status and timeout failures.
type ExternalServiceError struct {
	Provider string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s narrative request timed out", e.Provider)
	}
	return fmt.Sprintf("%s narrative request failed: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Options tune a Requestor.
type Options struct {
	Provider  string
	Model     string
	Timeout   time.Duration
	MaxTokens int
	Log       *logger.Logger
}

// Requestor sends prompt bundles to one runtime.
type Requestor struct {
	runtime ai.Runtime
	opt     Options
}

// New wraps an already-built runtime.
func New(rt ai.Runtime, opt Options) *Requestor {
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.Log == nil {
		opt.Log = logger.Nop()
	}
	return &Requestor{runtime: rt, opt: opt}
}

// FromConfig builds a Requestor from configuration. An empty provider yields
// ErrNotConfigured.
func FromConfig(n config.Narrative, h config.HTTP, log *logger.Logger) (*Requestor, error) {
	provider := strings.ToLower(strings.TrimSpace(n.Provider))
	if provider == "" || provider == "none" {
		return nil, ErrNotConfigured
	}
	timeout := DefaultTimeout
	if n.TimeoutSec > 0 {
		timeout = time.Duration(n.TimeoutSec) * time.Second
	}
	rc := ai.RuntimeConfig{
		HTTPTimeout: timeout,
		RetryMax:    h.RetryMaxAttempts,
		BaseDelay:   time.Duration(h.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(h.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      n.ResolveAPIKey(provider),
		BaseURL:     n.BaseURL,
		Host:        n.OllamaHost,
	}
	if provider != ai.ProviderOllama && rc.APIKey == "" {
		return nil, fmt.Errorf("%w: %s api key is missing", ErrNotConfigured, provider)
	}
	rt, err := ai.GetRuntime(provider, rc)
	if err != nil {
		return nil, err
	}
	return New(rt, Options{Provider: provider, Model: n.Model, Timeout: timeout, MaxTokens: n.MaxTokens, Log: log}), nil
}

// Close releases the runtime's connections when it holds any. Safe on nil.
func (r *Requestor) Close() error {
	if r == nil {
		return nil
	}
	if c, ok := r.runtime.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Request sends the bundle and parses the reply. A nil Requestor returns
// ErrNotConfigured.
func (r *Requestor) Request(ctx context.Context, b Bundle) (*Interpretation, error) {
	if r == nil || r.runtime == nil {
		return nil, ErrNotConfigured
	}
	system, user, tokens := BuildPrompt(b)
	ctx, cancel := context.WithTimeout(ctx, r.opt.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.runtime.Generate(ctx, ai.GenerateRequest{
		Model: r.opt.Model,
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   r.opt.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		r.opt.Log.Warn("narrative request failed", "provider", r.opt.Provider, "model", r.opt.Model, "error", err)
		return nil, &ExternalServiceError{Provider: r.opt.Provider, Err: err}
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &ExternalServiceError{Provider: r.opt.Provider, Err: errors.New("empty response")}
	}
	out := ParseResponse(text)
	out.Provider, out.Model = r.opt.Provider, r.opt.Model
	r.opt.Log.Info("narrative received",
		"provider", r.opt.Provider,
		"model", r.opt.Model,
		"prompt_tokens_est", tokens,
		"request_id", resp.RequestID,
		"structured", out.RawText == "",
		"elapsed", time.Since(start).String(),
	)
	return out, nil
}
