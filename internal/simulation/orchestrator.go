// Package simulation drives quality-prediction runs against the prediction
// service and publishes their progress as an observable Outcome.
//
// A run snapshots the current parameters, publishes Attempting(0) at once and
// then attempts the request up to RetryPolicy.MaxAttempts times, sleeping
// 2^k * BaseDelay before attempt k. Every failure kind is retried. A run ends
// with exactly one terminal publication: Succeeded(verdict) or Failed(message).
// Only one run may be active; overlapping triggers are rejected.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"goldenbatch/internal/types"
)

// ErrSimulationInProgress is returned when a run is triggered while another
// is still attempting.
var ErrSimulationInProgress = errors.New("simulation already in progress")

// Predictor performs a single prediction attempt.
type Predictor interface {
	Predict(ctx context.Context, params types.ParameterSet) (types.Verdict, error)
	Endpoint() string
}

// ParameterSource supplies the payload snapshot for a run.
type ParameterSource interface {
	Snapshot() types.ParameterSet
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		o.policy = p
	}
}

// WithSleepFunc overrides the backoff wait. Intended for tests.
func WithSleepFunc(fn SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = fn
	}
}

// WithClock overrides the time source used for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator owns the request state of the simulation panel.
type Orchestrator struct {
	predictor Predictor
	params    ParameterSource
	policy    RetryPolicy
	sleep     SleepFunc
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger

	// mu guards the outcome slot, the subscribers and the delivery queue.
	// Deliveries leave in publication order; one goroutine drains at a time.
	mu          sync.Mutex
	outcome     types.Outcome
	seq         uint64
	subscribers map[int]*subscriber
	nextSubID   int
	pending     []delivery
	delivering  bool

	// runMu guards the busy guard. active is nil once the terminal outcome of
	// the run has been stored.
	runMu  sync.Mutex
	active *run
	last   *run
}

type subscriber struct {
	fn    func(types.Outcome)
	since uint64
}

// delivery is a queued publication. to < 0 addresses every subscriber
// registered before seq; otherwise only subscriber to.
type delivery struct {
	out types.Outcome
	seq uint64
	to  int
}

type run struct {
	id        string
	payload   types.ParameterSet
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	logger    *slog.Logger
	done      chan struct{}
}

// New creates an Orchestrator in the Idle state.
func New(predictor Predictor, params ParameterSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		predictor:   predictor,
		params:      params,
		policy:      DefaultRetryPolicy(),
		sleep:       contextSleep,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		logger:      slog.Default(),
		outcome:     types.IdleOutcome(),
		subscribers: make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the active retry policy.
func (o *Orchestrator) Policy() RetryPolicy {
	return o.policy
}

// Endpoint returns the prediction service address used in diagnostics.
func (o *Orchestrator) Endpoint() string {
	return o.predictor.Endpoint()
}

// Outcome returns the most recently published state.
func (o *Orchestrator) Outcome() types.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcome
}

// Busy reports whether a run is in progress. It is false as soon as the
// run's terminal outcome is published.
func (o *Orchestrator) Busy() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.active != nil
}

// Subscribe registers fn for every future publication. fn is called
// synchronously, in publication order, and must not block. It may trigger a
// new run; that run's publications are delivered after the current one.
func (o *Orchestrator) Subscribe(fn func(types.Outcome)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.addSubscriberLocked(fn)
	o.mu.Unlock()
	return func() { o.unsubscribe(id) }
}

// Watch is Subscribe plus a delivery of the current outcome, with no
// publication lost or duplicated in between. When no other goroutine is
// delivering, fn has seen the current outcome by the time Watch returns.
func (o *Orchestrator) Watch(fn func(types.Outcome)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.addSubscriberLocked(fn)
	o.pending = append(o.pending, delivery{out: o.outcome, seq: o.seq, to: id})
	o.deliverLocked()
	return func() { o.unsubscribe(id) }
}

func (o *Orchestrator) addSubscriberLocked(fn func(types.Outcome)) int {
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = &subscriber{fn: fn, since: o.seq}
	return id
}

func (o *Orchestrator) unsubscribe(id int) {
	o.mu.Lock()
	delete(o.subscribers, id)
	o.mu.Unlock()
}

// Start triggers a run and returns once Attempting(0) is published. The run
// continues in the background and is not bound to ctx cancellation (only to
// its values); use Cancel or Close to stop it.
func (o *Orchestrator) Start(ctx context.Context) (types.Outcome, error) {
	r, first, err := o.begin(context.WithoutCancel(ctx))
	if err != nil {
		return o.Outcome(), err
	}
	go o.execute(r)
	return first, nil
}

// Run triggers a run and blocks until its terminal outcome. Cancelling ctx
// ends the run with a Failed outcome.
func (o *Orchestrator) Run(ctx context.Context) (types.Outcome, error) {
	r, _, err := o.begin(ctx)
	if err != nil {
		return o.Outcome(), err
	}
	return o.execute(r), nil
}

// Cancel stops the active run, if any. The run still publishes its terminal
// Failed outcome. It reports whether a run was active.
func (o *Orchestrator) Cancel() bool {
	o.runMu.Lock()
	r := o.active
	o.runMu.Unlock()
	if r == nil {
		return false
	}
	r.cancel()
	return true
}

// Wait blocks until the most recent run has finished or ctx is done, then
// returns the current outcome.
func (o *Orchestrator) Wait(ctx context.Context) (types.Outcome, error) {
	o.runMu.Lock()
	r := o.last
	o.runMu.Unlock()
	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return o.Outcome(), ctx.Err()
		}
	}
	return o.Outcome(), nil
}

// Close cancels the active run and waits for it to publish its terminal state.
func (o *Orchestrator) Close() {
	o.Cancel()
	_, _ = o.Wait(context.Background())
}

func (o *Orchestrator) begin(parent context.Context) (*run, types.Outcome, error) {
	o.runMu.Lock()
	if o.active != nil {
		o.runMu.Unlock()
		return nil, types.Outcome{}, ErrSimulationInProgress
	}

	ctx, cancel := context.WithCancel(parent)
	r := &run{
		id:        o.newID(),
		payload:   o.params.Snapshot(),
		ctx:       ctx,
		cancel:    cancel,
		startedAt: o.now(),
		done:      make(chan struct{}),
	}
	r.logger = o.logger.With("run_id", r.id)
	r.ctx = types.WithRequestID(r.ctx, r.id)
	o.active = r
	o.last = r
	o.runMu.Unlock()

	r.logger.Info("simulation started",
		"temperature", r.payload.Temperature,
		"pressure", r.payload.Pressure,
		"speed", r.payload.Speed,
		"endpoint", o.predictor.Endpoint(),
	)

	first := o.publish(r, types.AttemptingOutcome(r.id, 0, 0))
	return r, first, nil
}

// execute runs the retry loop and returns the terminal outcome.
func (o *Orchestrator) execute(r *run) types.Outcome {
	defer o.finish(r)

	maxAttempts := o.policy.MaxAttempts
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := o.policy.Delay(attempt)
			o.publish(r, types.AttemptingOutcome(r.id, attempt, delay))
			r.logger.Info("retrying prediction",
				"attempt", attempt+1,
				"delay", delay,
			)
			if err := o.sleep(r.ctx, delay); err != nil {
				return o.publish(r, types.FailedOutcome(r.id, attempt, o.canceledMessage(attempt, err)))
			}
		}

		verdict, err := o.predictor.Predict(r.ctx, r.payload)
		if err == nil {
			r.logger.Info("simulation succeeded",
				"attempt", attempt+1,
				"verdict", string(verdict),
			)
			return o.publish(r, types.SucceededOutcome(r.id, attempt, verdict))
		}

		lastErr = err
		var ae *types.AttemptError
		errors.As(err, &ae)
		r.logger.Warn("prediction attempt failed",
			"attempt", attempt+1,
			"kind", string(types.FailureKindOf(err)),
			"error", err.Error(),
		)

		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return o.publish(r, types.FailedOutcome(r.id, attempt, o.canceledMessage(attempt+1, ctxErr)))
		}
		if attempt == maxAttempts-1 || !o.policy.shouldRetry(ae) {
			msg := o.exhaustedMessage(attempt+1, lastErr)
			r.logger.Error("simulation failed", "attempts", attempt+1, "error", lastErr.Error())
			return o.publish(r, types.FailedOutcome(r.id, attempt, msg))
		}
	}

	// Unreachable with MaxAttempts >= 1; kept so the loop has a terminal exit.
	return o.publish(r, types.FailedOutcome(r.id, maxAttempts-1, o.exhaustedMessage(maxAttempts, lastErr)))
}

func (o *Orchestrator) finish(r *run) {
	o.release(r)
	r.cancel()
	close(r.done)
}

// release clears the busy guard if r still holds it.
func (o *Orchestrator) release(r *run) {
	o.runMu.Lock()
	if o.active == r {
		o.active = nil
	}
	o.runMu.Unlock()
}

// publish stamps, stores and delivers an outcome. A terminal outcome releases
// the busy guard before any subscriber sees it.
func (o *Orchestrator) publish(r *run, out types.Outcome) types.Outcome {
	out.StartedAt = r.startedAt
	out.UpdatedAt = o.now()

	o.mu.Lock()
	o.seq++
	o.outcome = out
	if out.State.IsTerminal() {
		o.release(r)
	}
	o.pending = append(o.pending, delivery{out: out, seq: o.seq, to: -1})
	o.deliverLocked()
	return out
}

// deliverLocked is entered with o.mu held and returns with it released. If
// another goroutine is already draining the queue, it leaves the queued
// deliveries to that goroutine.
func (o *Orchestrator) deliverLocked() {
	if o.delivering {
		o.mu.Unlock()
		return
	}
	o.delivering = true

	locked := true
	defer func() {
		if !locked {
			o.mu.Lock()
		}
		o.delivering = false
		o.mu.Unlock()
	}()

	for len(o.pending) > 0 {
		d := o.pending[0]
		o.pending = o.pending[1:]

		var fns []func(types.Outcome)
		if d.to >= 0 {
			if s, ok := o.subscribers[d.to]; ok {
				fns = append(fns, s.fn)
			}
		} else {
			for _, s := range o.subscribers {
				if s.since < d.seq {
					fns = append(fns, s.fn)
				}
			}
		}

		o.mu.Unlock()
		locked = false
		for _, fn := range fns {
			fn(d.out)
		}
		o.mu.Lock()
		locked = true
	}
}

func (o *Orchestrator) exhaustedMessage(attempts int, lastErr error) string {
	detail := "unknown error"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return fmt.Sprintf(
		"Failed to get a prediction after %d attempts. Ensure the prediction service is running on %s. Error: %s",
		attempts, o.predictor.Endpoint(), detail,
	)
}

func (o *Orchestrator) canceledMessage(attempts int, err error) string {
	return fmt.Sprintf("Simulation canceled after %d attempts against %s: %v",
		attempts, o.predictor.Endpoint(), err)
}
