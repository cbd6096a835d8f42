package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var ErrSchedulerStarted = errors.New("scheduler already started")

type processFn func(ctx context.Context) error

// Runner blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler supervises a single dispatcher for the lifetime of the process.
type Scheduler struct {
	dispatcher Runner
	started    *atomic.Bool

	log *slog.Logger
}

// Handle stops a started dispatcher.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(dispatcher Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		started:    &atomic.Bool{},

		log: log.With("component", "scheduler"),
	}
}

// Start launches the dispatcher in the background and returns immediately.
// Only the first call starts anything; later calls return ErrSchedulerStarted.
func (s *Scheduler) Start(ctx context.Context) (*Handle, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrSchedulerStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		s.run(ctx, "announce", s.dispatcher.Run)
	}()

	return h, nil
}

func (s *Scheduler) run(ctx context.Context, process string, fn processFn) {
	log := s.log.With("process", process)
	log.InfoContext(ctx, "Starting scheduler")
	defer func() {
		log.InfoContext(ctx, "Stopped scheduler")
	}()

	err := withRecovery(ctx, fn, log)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.InfoContext(ctx, "Process interrupted", "error", err)
			return
		}
		log.ErrorContext(ctx, "Failed to run process", "error", err)
	}
}

func withRecovery(ctx context.Context, fn processFn, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Recovered from panic", "error", r)
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Cancel requests the dispatcher to stop. It is safe to call more than once.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the dispatcher has stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the dispatcher has stopped or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // it's ok
	}
}
