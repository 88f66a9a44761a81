package trade

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pokemon-trade-client/internal/client"
	"pokemon-trade-client/internal/models"
	"pokemon-trade-client/internal/polling"
	"pokemon-trade-client/internal/telemetry"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultMaxPollErrors  = 10
	DefaultPollBackoffMax = 30 * time.Second

	terminalRefreshTimeout = 15 * time.Second
)

// Client is the subset of the trade service API the controller drives
type Client interface {
	SelectForTrade(ctx context.Context, storageIndex int) (*models.SelectResponse, error)
	StartTrade(ctx context.Context) (*models.StartResponse, error)
	GetTradeStatus(ctx context.Context) (*models.StatusSnapshot, error)
}

// Refresher reloads the local inventory after a session ends
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TargetSource supplies the Pokémon selected for trade
type TargetSource interface {
	TradeTarget() (int, bool)
}

// Scheduler runs the status poll loop
type Scheduler interface {
	Start(ctx context.Context, interval time.Duration, callback polling.Callback) error
	Stop()
	Trigger() bool
}

// Options tunes the controller. Zero values take the defaults.
type Options struct {
	PollInterval    time.Duration
	MaxPollErrors   int
	PollBackoffMax  time.Duration
	AutoAcknowledge bool
	Telemetry       *telemetry.TradeTelemetry
	Logger          *slog.Logger
}

// Controller owns the trade session lifecycle: select, start, poll, terminal outcome
type Controller struct {
	client    Client
	refresher Refresher
	targets   TargetSource
	scheduler Scheduler
	opts      Options
	logger    *slog.Logger
	metrics   *telemetry.TradeTelemetry
	now       func() time.Time

	mu         sync.Mutex
	cond       *sync.Cond
	session    Session
	last       *Session
	generation uint64
	pollSeq    uint64
	appliedSeq uint64
	backoff    *backoff.ExponentialBackOff
	nextPollAt time.Time
	stopWatch  func() bool
	closed     bool

	queue        []Event
	listeners    []subscription
	nextListener int
	dispatchDone chan struct{}
}

type subscription struct {
	id int
	fn Listener
}

// NewController wires the controller to its collaborators and starts event dispatch
func NewController(c Client, refresher Refresher, targets TargetSource, scheduler Scheduler, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollErrors <= 0 {
		opts.MaxPollErrors = DefaultMaxPollErrors
	}
	if opts.PollBackoffMax < opts.PollInterval {
		opts.PollBackoffMax = DefaultPollBackoffMax
		if opts.PollBackoffMax < opts.PollInterval {
			opts.PollBackoffMax = opts.PollInterval
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.PollInterval
	b.MaxInterval = opts.PollBackoffMax
	b.RandomizationFactor = 0.2
	b.Reset()

	ctrl := &Controller{
		client:       c,
		refresher:    refresher,
		targets:      targets,
		scheduler:    scheduler,
		opts:         opts,
		logger:       opts.Logger,
		metrics:      opts.Telemetry,
		now:          time.Now,
		session:      Session{Phase: PhaseIdle},
		backoff:      b,
		dispatchDone: make(chan struct{}),
	}
	ctrl.cond = sync.NewCond(&ctrl.mu)

	go ctrl.dispatchLoop()
	return ctrl
}

// Initiate runs select then start for the current trade target and begins polling. ctx
// bounds the two calls and the polling loop that follows: cancelling it while polling ends
// the session FAILED.
func (c *Controller) Initiate(ctx context.Context) error {
	target, hasTarget := c.targets.TradeTarget()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.session.Phase.IsTerminal():
		c.mu.Unlock()
		return models.ErrOutcomePending
	case c.session.Phase != PhaseIdle:
		c.mu.Unlock()
		return models.ErrSessionInProgress
	case !hasTarget:
		c.mu.Unlock()
		return models.ErrNoTargetSelected
	}

	c.generation++
	gen := c.generation
	c.session = Session{
		ID:          uuid.NewString(),
		Generation:  gen,
		Phase:       PhaseSelecting,
		TargetIndex: target,
		StartedAt:   c.now(),
	}
	c.resetPollErrorsLocked()
	sessionID := c.session.ID
	c.enqueueLocked(c.phaseEventLocked(PhaseIdle, PhaseSelecting))
	stopWatch := c.takeWatchLocked()
	c.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	c.scheduler.Stop()

	c.logger.Info("Trade session initiated", "session_id", sessionID, "storage_index", target)

	selectResp, err := c.client.SelectForTrade(ctx, target)
	if err != nil {
		return c.abortAttempt(gen, StageSelect, err)
	}
	c.logger.Info("Pokemon selected for trade",
		"session_id", sessionID,
		"storage_index", target,
		"message", selectResp.Message)

	if !c.advance(gen, PhaseSelecting, PhaseStarting) {
		return ErrClosed
	}

	startResp, err := c.client.StartTrade(ctx)
	if err != nil {
		return c.abortAttempt(gen, StageStart, err)
	}

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		return ErrClosed
	}
	c.session.Phase = PhasePolling
	c.session.LastStatus = startResp.StatusCode
	c.session.LastMessage = startResp.Message
	c.enqueueLocked(
		c.phaseEventLocked(PhaseStarting, PhasePolling),
		c.statusEventLocked(startResp.StatusCode, startResp.Message, nil),
	)
	c.mu.Unlock()

	c.logger.Info("Trade started, polling for status",
		"session_id", sessionID,
		"status_code", startResp.StatusCode,
		"interval", c.opts.PollInterval)

	if err := c.scheduler.Start(ctx, c.opts.PollInterval, func(pollCtx context.Context) {
		c.pollOnce(pollCtx, gen)
	}); err != nil {
		c.logger.Error("Failed to start status polling", "session_id", sessionID, "error", err)
		c.terminate(ctx, gen, PhaseFailed, err.Error(), err)
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		c.cancelPolling(ctx, gen)
	})
	c.mu.Lock()
	if c.closed || c.generation != gen || c.session.Phase != PhasePolling {
		c.mu.Unlock()
		stop()
		return nil
	}
	c.stopWatch = stop
	c.mu.Unlock()
	return nil
}

// Acknowledge returns a terminal session to IDLE so a new one may be initiated
func (c *Controller) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.session.Phase == PhaseIdle:
		return nil
	case c.session.Phase.IsTerminal() && c.session.outcomeReported:
		c.acknowledgeLocked()
		return nil
	default:
		return models.ErrSessionInProgress
	}
}

// CheckStatus asks for a status poll now. While polling it triggers an immediate tick of the
// running loop, skipping any backoff wait. Otherwise it performs a one-off request and reports
// the result as an EventStatus without changing the session.
func (c *Controller) CheckStatus(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session.Phase == PhasePolling {
		c.nextPollAt = time.Time{}
		c.mu.Unlock()
		c.scheduler.Trigger()
		return nil
	}
	c.mu.Unlock()

	snap, err := c.client.GetTradeStatus(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ev := c.statusEventLocked(snap.StatusCode, snap.StatusMessage, nil)
	ev.OfferedIndex = snap.OfferedIndex
	ev.Received = snap.Received
	c.enqueueLocked(ev)
	c.mu.Unlock()
	return nil
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Phase
}

// Session returns a copy of the current session
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastOutcome returns the most recent session that reached a terminal phase
func (c *Controller) LastOutcome() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return Session{}, false
	}
	return *c.last, true
}

// InProgress reports whether a session is between initiate and its terminal status
func (c *Controller) InProgress() bool {
	return c.Phase().IsActive()
}

// Subscribe registers l for all future events and returns a function that removes it
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, subscription{id: id, fn: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close stops polling, abandons any in-flight initiation and waits for queued events to be
// delivered. It must not be called from a Listener.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.dispatchDone
		return
	}
	c.closed = true
	c.generation++
	c.cond.Broadcast()
	stopWatch := c.takeWatchLocked()
	c.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	c.scheduler.Stop()
	<-c.dispatchDone
	c.logger.Debug("Trade controller closed")
}

// advance moves the session from one phase to the next if it is still the same session
func (c *Controller) advance(gen uint64, from, to Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.generation != gen || c.session.Phase != from {
		return false
	}
	c.session.Phase = to
	c.enqueueLocked(c.phaseEventLocked(from, to))
	return true
}

// abortAttempt reports a select or start failure. The session passes through FAILED and is
// back in IDLE before the error is returned; no polling is started.
func (c *Controller) abortAttempt(gen uint64, stage Stage, err error) error {
	c.metrics.RecordAttemptFailure(context.Background(), string(stage))
	attemptErr := &AttemptError{Stage: stage, Err: err}

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		return attemptErr
	}

	prev := c.session.Phase
	c.session.Phase = PhaseFailed
	c.session.FailureReason = client.Message(err)
	c.session.EndedAt = c.now()
	c.session.outcomeReported = true

	failed := c.phaseEventLocked(prev, PhaseFailed)
	attempt := c.eventLocked(EventAttemptFailed)
	attempt.Stage = stage
	attempt.Message = c.session.FailureReason
	attempt.Err = err
	c.enqueueLocked(failed, attempt)
	c.acknowledgeLocked()
	c.mu.Unlock()

	c.logger.Warn("Trade attempt failed",
		"stage", stage,
		"error", err)
	return attemptErr
}

// acknowledgeLocked records the finished session and resets to IDLE
func (c *Controller) acknowledgeLocked() {
	finished := c.session
	c.last = &finished

	prev := c.session.Phase
	c.session = Session{Phase: PhaseIdle}
	ev := c.phaseEventLocked(prev, PhaseIdle)
	ev.SessionID = finished.ID
	c.enqueueLocked(ev)
}

// takeWatchLocked detaches the cancellation watcher of the polling session, if any
func (c *Controller) takeWatchLocked() func() bool {
	stop := c.stopWatch
	c.stopWatch = nil
	return stop
}

func (c *Controller) resetPollErrorsLocked() {
	c.session.ConsecutivePollErrors = 0
	c.backoff.Reset()
	c.nextPollAt = time.Time{}
}

func (c *Controller) eventLocked(t EventType) Event {
	return Event{
		Type:      t,
		SessionID: c.session.ID,
		Time:      c.now(),
		Phase:     c.session.Phase,
	}
}

func (c *Controller) phaseEventLocked(from, to Phase) Event {
	ev := c.eventLocked(EventPhaseChanged)
	ev.Previous = from
	ev.Phase = to
	return ev
}

func (c *Controller) statusEventLocked(code models.StatusCode, message string, err error) Event {
	ev := c.eventLocked(EventStatus)
	ev.StatusCode = code
	ev.Message = message
	ev.OfferedIndex = c.session.OfferedIndex
	ev.Received = c.session.Received
	ev.Err = err
	return ev
}

func (c *Controller) enqueueLocked(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.queue = append(c.queue, events...)
	c.cond.Signal()
}

// dispatchLoop delivers queued events outside the controller lock, one at a time and in order
func (c *Controller) dispatchLoop() {
	defer close(c.dispatchDone)

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		batch := c.queue
		c.queue = nil
		listeners := make([]subscription, len(c.listeners))
		copy(listeners, c.listeners)
		c.mu.Unlock()

		for _, ev := range batch {
			for _, s := range listeners {
				s.fn(ev)
			}
		}
	}
}
