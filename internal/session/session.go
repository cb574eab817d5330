// Package session drives one simulated user: pick a workload, size it,
// issue the request, think, repeat until the run deadline.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/llmburst/llmburst/internal/executor"
	"github.com/llmburst/llmburst/internal/prompt"
	"github.com/llmburst/llmburst/internal/results"
)

const (
	defaultJitterMax = 5 * time.Second
	defaultThinkMin  = 2 * time.Second
	defaultThinkMax  = 8 * time.Second
)

// Observer is notified after each outcome is stored, for progress output.
type Observer func(results.Outcome)

// Options configure a Session.
type Options struct {
	ID               int
	Catalog          *prompt.Catalog
	Executor         *executor.Executor
	Store            *results.Store
	MaxContextTokens int
	Deadline         time.Time

	// JitterMax delays the first iteration by U(0, JitterMax) to
	// desynchronize session start times. Think time between iterations is
	// U(ThinkMin, ThinkMax). Zero values take the defaults; tests shrink them.
	JitterMax time.Duration
	ThinkMin  time.Duration
	ThinkMax  time.Duration

	// Limiter, when set, is a global request-rate cap shared by all sessions.
	Limiter *rate.Limiter

	Observer Observer
	Logger   *zap.Logger
	Seed     int64
}

// Session is one simulated user.
type Session struct {
	opt Options

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(opt Options) *Session {
	if opt.JitterMax <= 0 {
		opt.JitterMax = defaultJitterMax
	}
	if opt.ThinkMin <= 0 {
		opt.ThinkMin = defaultThinkMin
	}
	if opt.ThinkMax < opt.ThinkMin {
		opt.ThinkMax = defaultThinkMax
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano() + int64(opt.ID)
	}
	return &Session{opt: opt, rnd: rand.New(rand.NewSource(seed))}
}

// Run loops until the deadline. The deadline is checked only between
// iterations: a request started before the deadline runs to completion and
// is still recorded. Cancelling ctx stops the loop at the next check.
func (s *Session) Run(ctx context.Context) {
	if !s.sleep(ctx, s.uniform(0, s.opt.JitterMax)) {
		return
	}

	for time.Now().Before(s.opt.Deadline) && ctx.Err() == nil {
		if s.opt.Limiter != nil {
			if err := s.opt.Limiter.Wait(ctx); err != nil {
				return
			}
		}

		tmpl := s.opt.Catalog.Pick()
		target := s.opt.Catalog.TargetTokens(tmpl, s.opt.MaxContextTokens)
		promptText := tmpl.Render(target)

		out := s.opt.Executor.Execute(ctx, s.opt.ID, promptText, tmpl.Workload(), target)
		s.opt.Store.AppendOutcome(out)
		if s.opt.Observer != nil {
			s.opt.Observer(out)
		}

		if !s.sleep(ctx, s.uniform(s.opt.ThinkMin, s.opt.ThinkMax)) {
			return
		}
	}
}

func (s *Session) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rnd.Int63n(int64(max-min)))
}

// sleep waits for d or until ctx is cancelled; reports whether the session
// should continue.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
