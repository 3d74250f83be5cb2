// Package feedback turns a finished interview transcript into structured
// coaching feedback via an LLM completion.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/herowayua/livevoice/pkg/provider/llm"
)

// Default retry parameters for the analysis request.
const (
	defaultMaxAttempts = 4
	defaultBackoff     = 1 * time.Second
	defaultMaxBackoff  = 10 * time.Second
)

const systemPrompt = `You are an experienced hiring manager and interview coach.
You are given the job the candidate applied for and the full transcript of a
mock interview. Analyse the candidate's performance and reply with:
1. A short overall assessment (2-3 sentences).
2. The candidate's strongest answers, and why they worked.
3. The weakest answers, with a concrete better phrasing for each.
4. Three specific things to practise before the real interview.
Address the candidate directly and keep the tone supportive but honest.`

// Job describes the position the mock interview was conducted for.
type Job struct {
	Title       string
	Company     string
	Description string
}

// Option configures a [Coach].
type Option func(*Coach)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Coach) { c.logger = l }
}

// WithRetry overrides the retry schedule. maxAttempts includes the first
// try; backoff doubles each attempt up to maxBackoff.
func WithRetry(maxAttempts int, backoff, maxBackoff time.Duration) Option {
	return func(c *Coach) {
		c.maxAttempts = maxAttempts
		c.backoff = backoff
		c.maxBackoff = maxBackoff
	}
}

// Coach generates interview feedback from a transcript. Transient provider
// failures are retried with exponential backoff; client-side errors are not.
type Coach struct {
	provider    llm.Provider
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

// NewCoach returns a coach backed by the given completion provider.
func NewCoach(provider llm.Provider, opts ...Option) *Coach {
	c := &Coach{
		provider:    provider,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate requests feedback for the given job and rendered transcript.
// Returns an error when the transcript is empty, when ctx is cancelled, or
// when the provider keeps failing after all retry attempts.
func (c *Coach) Generate(ctx context.Context, job Job, conversation string) (string, error) {
	if strings.TrimSpace(conversation) == "" {
		return "", errors.New("feedback: empty transcript")
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(job, conversation)},
		},
		Temperature: 0.7,
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.provider.Complete(ctx, req)
		if err == nil {
			if resp.Content == "" {
				return "", errors.New("feedback: provider returned empty analysis")
			}
			return resp.Content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("feedback: %w", ctx.Err())
		}
		if !retryable(err) {
			return "", fmt.Errorf("feedback: analysis request failed: %w", err)
		}

		c.logger.Warn("analysis request failed, retrying",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"backoff", backoff,
			"error", err,
		)

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("feedback: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
	return "", fmt.Errorf("feedback: analysis failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func buildPrompt(job Job, conversation string) string {
	var b strings.Builder
	b.WriteString("Position: ")
	b.WriteString(job.Title)
	if job.Company != "" {
		b.WriteString(" at ")
		b.WriteString(job.Company)
	}
	b.WriteString("\n")
	if job.Description != "" {
		b.WriteString("Job description:\n")
		b.WriteString(job.Description)
		b.WriteString("\n")
	}
	b.WriteString("\nInterview transcript:\n")
	b.WriteString(conversation)
	return b.String()
}

// retryable reports whether err looks transient. Network failures, timeouts
// and server-side throttling are retried; anything that smells like a bad
// request (auth, validation) is not, since repeating it cannot succeed.
func retryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "quota",
		"500", "502", "503", "504",
		"internal server", "unavailable", "overloaded",
		"timeout", "connection reset", "connection refused", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
