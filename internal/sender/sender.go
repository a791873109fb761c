// Package sender implements the wakeup dispatcher: it submits wakeup
// messages to a push gateway and funnels every asynchronous delivery outcome
// through a single serialized worker lane for reconciliation.
package sender

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// outcomeBuffer bounds the lane so a burst of completions cannot pile up
// unbounded goroutines behind the single worker.
const outcomeBuffer = 64

// Sender dispatches wakeups for one push platform. Send never blocks the
// caller and never returns an error; everything after submission is handled
// on the sender's own goroutines.
//
// All reconciliation — and hence every outcome-driven mutation of the
// account store — happens on one worker goroutine, so two outcomes are never
// processed concurrently. Staleness across time is handled by the race guard
// in reconcile.go, not by locks.
type Sender struct {
	gateway wakeup.PushGateway
	store   wakeup.AccountStore
	metrics wakeup.Metrics
	logger  *slog.Logger

	enabled bool
	now     func() time.Time

	outcomes   chan wakeup.Outcome
	submits    sync.WaitGroup
	workerDone chan struct{}
	closeOnce  sync.Once
}

// Option configures a Sender at construction time.
type Option func(*Sender)

// WithClock replaces the wall clock used by the freshness guard.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

// New creates an enabled sender and starts its reconciliation worker.
func New(gateway wakeup.PushGateway, store wakeup.AccountStore, metrics wakeup.Metrics, logger *slog.Logger, opts ...Option) *Sender {
	s := &Sender{
		gateway:    gateway,
		store:      store,
		metrics:    metrics,
		logger:     logger.With("component", "WakeupSender"),
		enabled:    true,
		now:        time.Now,
		outcomes:   make(chan wakeup.Outcome, outcomeBuffer),
		workerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// NewDisabled creates a sender whose Send is a deliberate no-op. This is the
// unconfigured-gateway state: not an error, logged once here at startup. No
// worker lane is created.
func NewDisabled(logger *slog.Logger) *Sender {
	logger.Warn("Push gateway unconfigured; wakeups for this platform are disabled")
	return &Sender{
		logger:  logger.With("component", "WakeupSender"),
		enabled: false,
	}
}

// Enabled reports whether this sender was constructed with a gateway.
func (s *Sender) Enabled() bool {
	return s.enabled
}

// Send submits one wakeup. It returns immediately; the gateway call runs on
// its own goroutine and the outcome is routed to the worker lane. The
// outbound counter is marked here, at submission time — submission, not
// delivery, is what that counter measures.
//
// Send must not be called after Close.
func (s *Sender) Send(msg wakeup.Message) {
	if !s.enabled {
		return
	}

	s.metrics.MarkOutbound(msg.Kind)

	s.submits.Add(1)
	go func() {
		defer s.submits.Done()

		outcome, err := s.gateway.Submit(context.Background(), msg)
		if err != nil {
			// Transport failure: the call itself failed, so there is no
			// structured outcome and nothing for the reconciler to do.
			s.logger.Warn("Push gateway submit failed",
				"err", err,
				"account", msg.Account.String(),
				"device_id", msg.DeviceID,
			)
			return
		}
		s.outcomes <- outcome
	}()
}

// Close waits for in-flight submissions, drains the worker lane and shuts
// the gateway down. It is safe to call more than once.
func (s *Sender) Close() {
	s.closeOnce.Do(func() {
		if !s.enabled {
			return
		}
		s.submits.Wait()
		close(s.outcomes)
		<-s.workerDone
		s.gateway.Shutdown()
	})
}

func (s *Sender) run() {
	defer close(s.workerDone)
	for outcome := range s.outcomes {
		s.reconcile(outcome)
	}
}
