// Package executor performs one logical request against the completions
// endpoint, applying the retry policy and producing a single Outcome record
// regardless of how many attempts were spent.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/llmburst/llmburst/internal/httpclient"
	"github.com/llmburst/llmburst/internal/prompt"
	"github.com/llmburst/llmburst/internal/results"
	"github.com/llmburst/llmburst/internal/tracing"
)

const (
	defaultBackoffUnit = time.Second
	maxErrorChars      = 200
	maxResponseBytes   = 1 << 20
)

// Gauge tracks requests currently in flight. Satisfied by *results.Store.
type Gauge interface {
	IncInFlight()
	DecInFlight()
}

// Options configure an Executor.
type Options struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Model    string

	Timeout    time.Duration // per attempt
	MaxRetries int

	// BackoffUnit is the base delay: server errors back off exponentially
	// (unit, 2*unit, 4*unit, ...), timeouts and transport failures use the
	// fixed unit. Defaults to one second; tests shrink it.
	BackoffUnit time.Duration

	Gauge  Gauge
	Logger *zap.Logger
	Tracer trace.Tracer

	// Propagate injects W3C trace context headers into each attempt so the
	// server can correlate its spans with ours.
	Propagate bool
}

// Executor issues chat-completions requests with retries.
type Executor struct {
	opt Options
}

func New(opt Options) *Executor {
	if opt.BackoffUnit <= 0 {
		opt.BackoffUnit = defaultBackoffUnit
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Executor{opt: opt}
}

type attemptError struct {
	kind    results.Status // the exhausted status this failure maps to
	message string
	backoff func(attempt int, unit time.Duration) time.Duration
}

// Execute runs the attempt loop for one logical request and returns the
// terminal Outcome. The recorded latency is that of the final attempt only;
// the clock restarts on every retry. That understates end-to-end delay for
// retried requests and is kept for compatibility with established runs.
func (e *Executor) Execute(ctx context.Context, userID int, promptText, workload string, targetTokens int) results.Outcome {
	if e.opt.Gauge != nil {
		e.opt.Gauge.IncInFlight()
		defer e.opt.Gauge.DecInFlight()
	}

	if e.opt.Tracer != nil {
		var span trace.Span
		ctx, span = e.opt.Tracer.Start(ctx, "llm.request", trace.WithAttributes(
			attribute.Int("user.id", userID),
			attribute.String("workload", workload),
			attribute.Int("target.tokens", targetTokens),
		))
		defer span.End()
		outcome := e.execute(ctx, userID, promptText, workload, targetTokens)
		span.SetAttributes(
			attribute.String("outcome.status", string(outcome.Status)),
			attribute.Int("outcome.retries", outcome.Retries),
		)
		return outcome
	}

	return e.execute(ctx, userID, promptText, workload, targetTokens)
}

func (e *Executor) execute(ctx context.Context, userID int, promptText, workload string, targetTokens int) results.Outcome {
	base := results.Outcome{
		UserID:       userID,
		Workload:     workload,
		TargetTokens: targetTokens,
		TokensSent:   prompt.EstimateTokens(promptText),
	}

	var last *attemptError
	var lastElapsed time.Duration
	attempt := 0
	for {
		start := time.Now()
		completion, attemptErr := e.attempt(ctx, promptText)
		elapsed := time.Since(start)

		if attemptErr == nil {
			out := base
			out.Status = results.StatusSuccess
			out.Latency = elapsed
			out.TokensReceived = completion.CompletionTokens
			out.Response = completion.Content
			out.Timestamp = time.Now()
			out.Retries = attempt
			return out
		}

		if attemptErr.kind == results.StatusClientError {
			// 4xx means the request itself is malformed or rejected, not a
			// transient fault: terminal immediately, never counted as a retry.
			out := base
			out.Status = results.StatusClientError
			out.Latency = elapsed
			out.Error = attemptErr.message
			out.Timestamp = time.Now()
			out.Retries = 0
			return out
		}

		last = attemptErr
		lastElapsed = elapsed
		if attempt >= e.opt.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := attemptErr.backoff(attempt+1, e.opt.BackoffUnit)
		e.opt.Logger.Warn("retrying request",
			zap.Int("user_id", userID),
			zap.String("workload", workload),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", e.opt.MaxRetries),
			zap.Duration("backoff", delay),
			zap.String("cause", attemptErr.message),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		// A cancel during backoff means the retry never runs, so it is
		// not counted.
		if ctx.Err() != nil {
			break
		}
		attempt++
	}

	out := base
	out.Status = last.kind
	out.Latency = lastElapsed
	out.Error = last.message
	out.Timestamp = time.Now()
	out.Retries = attempt
	return out
}

// attempt performs a single HTTP exchange and classifies the result.
func (e *Executor) attempt(ctx context.Context, promptText string) (httpclient.Completion, *attemptError) {
	attemptCtx := ctx
	if e.opt.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.opt.Timeout)
		defer cancel()
	}

	req, err := httpclient.ChatRequest{
		Endpoint:    e.opt.Endpoint,
		APIKey:      e.opt.APIKey,
		Model:       e.opt.Model,
		Prompt:      promptText,
		MaxTokens:   httpclient.WorkloadMaxTokens,
		Temperature: httpclient.WorkloadTemperature,
	}.Build(attemptCtx)
	if err != nil {
		return httpclient.Completion{}, &attemptError{
			kind:    results.StatusTransportErrorExhausted,
			message: bound(err.Error()),
			backoff: fixedBackoff,
		}
	}
	if e.opt.Propagate {
		tracing.InjectHTTPHeaders(attemptCtx, req.Header)
	}

	resp, err := e.opt.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return httpclient.Completion{}, &attemptError{
				kind:    results.StatusTimeoutExhausted,
				message: "request timeout",
				backoff: fixedBackoff,
			}
		}
		return httpclient.Completion{}, &attemptError{
			kind:    results.StatusTransportErrorExhausted,
			message: bound(err.Error()),
			backoff: fixedBackoff,
		}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if readErr != nil {
			return httpclient.Completion{}, &attemptError{
				kind:    results.StatusTransportErrorExhausted,
				message: bound(readErr.Error()),
				backoff: fixedBackoff,
			}
		}
		return httpclient.ParseCompletion(body), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return httpclient.Completion{}, &attemptError{
			kind:    results.StatusClientError,
			message: httpErrorMessage(resp.StatusCode, body),
		}
	default:
		return httpclient.Completion{}, &attemptError{
			kind:    results.StatusServerErrorExhausted,
			message: httpErrorMessage(resp.StatusCode, body),
			backoff: exponentialBackoff,
		}
	}
}

func exponentialBackoff(attempt int, unit time.Duration) time.Duration {
	return unit << uint(attempt-1)
}

func fixedBackoff(_ int, unit time.Duration) time.Duration {
	return unit
}

func httpErrorMessage(status int, body []byte) string {
	return bound(fmt.Sprintf("HTTP %d: %s", status, strings.TrimSpace(string(body))))
}

func bound(msg string) string {
	if len(msg) > maxErrorChars {
		return msg[:maxErrorChars]
	}
	return msg
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
