package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Roma7-7-7/telegram"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Roma7-7-7/livestream-notifier/internal/calendar"
	"github.com/Roma7-7-7/livestream-notifier/internal/dal"
	"github.com/Roma7-7-7/livestream-notifier/internal/metrics"
)

//go:generate mockgen -package mocks -destination mocks/telegram.go . TelegramClient

//go:generate mockgen -package mocks -destination mocks/subscribers.go . SubscribersReader

const (
	defaultConcurrency = 4
	defaultSendTimeout = 10 * time.Second
)

const (
	StateIdle State = iota
	StateWaiting
	StateFiring
	StateStopped
)

type (
	TelegramClient interface {
		SendMessage(ctx context.Context, chatID, msg string) error
	}

	SubscribersReader interface {
		GetAll() ([]dal.ChatID, error)
	}

	State int

	DispatcherConfig struct {
		Rule          calendar.Rule
		Text          string
		Concurrency   int
		RatePerSecond float64
		SendTimeout   time.Duration
	}

	// DeliveryError is a failed send to a single recipient. It never aborts a round.
	DeliveryError struct {
		ChatID dal.ChatID
		Err    error
	}

	// Report summarizes one firing round.
	Report struct {
		StartedAt  time.Time
		FinishedAt time.Time
		Recipients int
		Delivered  []dal.ChatID
		Failed     []*DeliveryError
	}

	// Dispatcher waits for the next occurrence of the rule and announces Text to every subscriber.
	Dispatcher struct {
		subscribers SubscribersReader
		telegram    TelegramClient
		clock       clockwork.Clock
		limiter     *rate.Limiter

		conf DispatcherConfig
		log  *slog.Logger

		mx    *sync.Mutex
		state State
		until time.Time
	}
)

func NewDispatcher(
	subscribers SubscribersReader,
	telegram TelegramClient,
	clock clockwork.Clock,
	conf DispatcherConfig,
	log *slog.Logger,
) (*Dispatcher, error) {
	if conf.Rule.IsZero() {
		return nil, fmt.Errorf("dispatcher: %w", calendar.ErrInvalidRule)
	}
	if conf.Text == "" {
		return nil, errors.New("dispatcher: empty announcement text")
	}
	if conf.Concurrency <= 0 {
		conf.Concurrency = defaultConcurrency
	}
	if conf.SendTimeout <= 0 {
		conf.SendTimeout = defaultSendTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if conf.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(conf.RatePerSecond), max(1, int(conf.RatePerSecond)))
	}

	return &Dispatcher{
		subscribers: subscribers,
		telegram:    telegram,
		clock:       clock,
		limiter:     limiter,

		conf: conf,
		log:  log.With("component", "service").With("service", "dispatcher"),

		mx:    &sync.Mutex{},
		state: StateIdle,
	}, nil
}

// Run loops Waiting -> Firing -> Waiting until ctx is done.
// Cancellation while waiting returns at once; a round in progress is completed first.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.InfoContext(ctx, "Starting dispatcher", "rule", d.conf.Rule.String())
	defer func() {
		d.setState(StateStopped, time.Time{})
		d.log.InfoContext(ctx, "Stopped dispatcher")
	}()

	var last time.Time
	for {
		from := d.clock.Now()
		// wall clock may lag behind the slot we just fired
		if from.Before(last) {
			from = last
		}
		next := calendar.NextOccurrence(from, d.conf.Rule)

		d.setState(StateWaiting, next)
		metrics.NextOccurrence.Set(float64(next.Unix()))
		d.log.InfoContext(ctx, "Waiting for next occurrence", "next", next)

		if !d.wait(ctx, next) {
			return ctx.Err() //nolint:wrapcheck // it's ok
		}

		d.setState(StateFiring, time.Time{})
		last = next
		err := withRecovery(ctx, func(ctx context.Context) error {
			_, err := d.Fire(ctx)
			return err
		}, d.log)
		if err != nil {
			d.log.ErrorContext(ctx, "Failed to fire announcement", "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err() //nolint:wrapcheck // it's ok
		}
	}
}

// Status returns the current state and, while waiting, the instant being waited for.
func (d *Dispatcher) Status() (State, time.Time) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state, d.until
}

// Fire sends the announcement to a snapshot of the current subscribers.
// Per-recipient failures are collected in the report; an error is returned only when
// subscribers cannot be read.
func (d *Dispatcher) Fire(ctx context.Context) (Report, error) {
	report := Report{StartedAt: d.clock.Now()}
	metrics.FiringsTotal.Inc()

	recipients, err := d.subscribers.GetAll()
	if err != nil {
		return report, fmt.Errorf("get subscribers: %w", err)
	}
	report.Recipients = len(recipients)
	metrics.Subscribers.Set(float64(len(recipients)))
	d.log.InfoContext(ctx, "Firing announcement", "recipients", len(recipients))

	// in-flight rounds are not abandoned on shutdown
	sendCtx := context.WithoutCancel(ctx)

	mx := &sync.Mutex{}
	g := &errgroup.Group{}
	g.SetLimit(d.conf.Concurrency)
	for _, chatID := range recipients {
		g.Go(func() error {
			derr := d.deliver(sendCtx, chatID)

			mx.Lock()
			defer mx.Unlock()
			if derr != nil {
				report.Failed = append(report.Failed, derr)
			} else {
				report.Delivered = append(report.Delivered, chatID)
			}
			// failures are isolated per recipient
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = d.clock.Now()
	d.log.InfoContext(ctx, "Announcement round finished",
		"recipients", report.Recipients,
		"delivered", len(report.Delivered),
		"failed", len(report.Failed))

	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, chatID dal.ChatID) (derr *DeliveryError) {
	log := d.log.With("chatID", chatID)
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Recovered from panic while sending", "error", r)
			metrics.DeliveriesTotal.WithLabelValues(metrics.ResultFailed).Inc()
			derr = &DeliveryError{ChatID: chatID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := d.limiter.Wait(ctx); err != nil {
		metrics.DeliveriesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return &DeliveryError{ChatID: chatID, Err: fmt.Errorf("wait rate limiter: %w", err)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.conf.SendTimeout)
	defer cancel()

	if err := d.telegram.SendMessage(sendCtx, chatID.String(), d.conf.Text); err != nil {
		if errors.Is(err, telegram.ErrForbidden) {
			log.WarnContext(ctx, "Bot is blocked by chat. Skipping", "error", err)
			metrics.DeliveriesTotal.WithLabelValues(metrics.ResultBlocked).Inc()
		} else {
			log.ErrorContext(ctx, "Failed to send announcement", "error", err)
			metrics.DeliveriesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		}
		return &DeliveryError{ChatID: chatID, Err: err}
	}

	metrics.DeliveriesTotal.WithLabelValues(metrics.ResultDelivered).Inc()
	log.DebugContext(ctx, "Announcement sent")
	return nil
}

// wait blocks until the clock reaches until. It reports false when ctx is done first.
func (d *Dispatcher) wait(ctx context.Context, until time.Time) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		remaining := until.Sub(d.clock.Now())
		if remaining <= 0 {
			return true
		}

		timer := d.clock.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.Chan():
		}
	}
}

func (d *Dispatcher) setState(state State, until time.Time) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.state = state
	d.until = until
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateFiring:
		return "firing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
