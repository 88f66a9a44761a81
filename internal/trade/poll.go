package trade

import (
	"context"
	"fmt"
	"time"

	"pokemon-trade-client/internal/client"
	"pokemon-trade-client/internal/models"
)

// pollOnce is the scheduler callback: one status round trip for session gen
func (c *Controller) pollOnce(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.closed || c.generation != gen || c.session.Phase != PhasePolling {
		c.mu.Unlock()
		return
	}
	startedAt := c.now()
	if startedAt.Before(c.nextPollAt) {
		c.mu.Unlock()
		return
	}
	c.pollSeq++
	seq := c.pollSeq
	c.mu.Unlock()

	start := time.Now()
	snap, err := c.client.GetTradeStatus(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Loop was stopped or replaced mid-request
			return
		}
		c.metrics.RecordPollError(ctx, err, elapsed)
		c.recordPollError(ctx, gen, seq, startedAt, err)
		return
	}

	c.metrics.RecordPoll(ctx, string(snap.StatusCode), elapsed)
	c.apply(ctx, gen, seq, snap)
}

// apply folds one snapshot into the session. Snapshots from an earlier session, with a
// sequence number at or below the last applied one, or arriving after a terminal phase are
// discarded.
func (c *Controller) apply(ctx context.Context, gen, seq uint64, snap *models.StatusSnapshot) {
	c.mu.Lock()
	switch {
	case c.closed || c.generation != gen:
		c.mu.Unlock()
		c.metrics.RecordStaleResponse(ctx)
		c.logger.Debug("Discarding status from a previous session", "seq", seq)
		return
	case c.session.Phase != PhasePolling:
		c.mu.Unlock()
		c.logger.Debug("Ignoring status after terminal phase",
			"seq", seq,
			"status_code", snap.StatusCode)
		return
	case seq <= c.appliedSeq:
		applied := c.appliedSeq
		c.mu.Unlock()
		c.metrics.RecordStaleResponse(ctx)
		c.logger.Debug("Discarding out-of-order status",
			"seq", seq,
			"applied_seq", applied)
		return
	}

	c.appliedSeq = seq
	c.resetPollErrorsLocked()
	c.session.LastStatus = snap.StatusCode
	c.session.LastMessage = snap.StatusMessage
	if snap.TradeID != nil {
		c.session.TradeID = snap.TradeID
	}
	c.session.OfferedIndex = snap.OfferedIndex
	c.session.Received = snap.Received
	c.enqueueLocked(c.statusEventLocked(snap.StatusCode, snap.StatusMessage, nil))

	if !snap.IsTerminal() {
		c.mu.Unlock()
		return
	}

	outcome := outcomeFor(snap)
	reason := ""
	if outcome != PhaseComplete {
		reason = snap.StatusMessage
	}
	prev := c.markTerminalLocked(outcome, reason)
	c.mu.Unlock()

	c.finish(ctx, gen, prev, nil)
}

// recordPollError surfaces a failed poll as an ERROR status and backs off. Once MaxPollErrors
// consecutive polls have failed the session ends FAILED.
func (c *Controller) recordPollError(ctx context.Context, gen, seq uint64, startedAt time.Time, err error) {
	c.mu.Lock()
	if c.closed || c.generation != gen || c.session.Phase != PhasePolling || seq <= c.appliedSeq {
		c.mu.Unlock()
		return
	}

	c.appliedSeq = seq
	c.session.ConsecutivePollErrors++
	failures := c.session.ConsecutivePollErrors
	message := client.Message(err)
	c.session.LastStatus = models.StatusError
	c.session.LastMessage = message
	c.enqueueLocked(c.statusEventLocked(models.StatusError, message, err))

	if failures >= c.opts.MaxPollErrors {
		cause := fmt.Errorf("%w after %d consecutive errors: %w", ErrPollingAbandoned, failures, err)
		prev := c.markTerminalLocked(PhaseFailed, ErrPollingAbandoned.Error())
		c.mu.Unlock()

		c.logger.Error("Too many consecutive status poll failures",
			"failures", failures,
			"error", err)
		c.finish(ctx, gen, prev, cause)
		return
	}

	// Ticks may land slightly early; a quarter interval of slack keeps the first retry on the next tick.
	delay := c.backoff.NextBackOff()
	c.nextPollAt = startedAt.Add(delay - c.opts.PollInterval/4)
	c.mu.Unlock()

	c.logger.Warn("Status poll failed",
		"consecutive_failures", failures,
		"max_failures", c.opts.MaxPollErrors,
		"retry_in", delay,
		"error", err)
}

// markTerminalLocked moves a polling session to outcome and returns the phase it left
func (c *Controller) markTerminalLocked(outcome Phase, reason string) Phase {
	prev := c.session.Phase
	c.session.Phase = outcome
	c.session.FailureReason = reason
	c.session.EndedAt = c.now()
	return prev
}

// terminate ends polling session gen from outside the poll loop. It reports false when the
// session has already left POLLING.
func (c *Controller) terminate(ctx context.Context, gen uint64, outcome Phase, reason string, cause error) bool {
	c.mu.Lock()
	if c.closed || c.generation != gen || c.session.Phase != PhasePolling {
		c.mu.Unlock()
		return false
	}
	prev := c.markTerminalLocked(outcome, reason)
	c.mu.Unlock()

	c.finish(ctx, gen, prev, cause)
	return true
}

// cancelPolling runs once the context given to Initiate is done
func (c *Controller) cancelPolling(ctx context.Context, gen uint64) {
	cause := fmt.Errorf("%w: %w", ErrPollingCancelled, context.Cause(ctx))
	if c.terminate(ctx, gen, PhaseFailed, ErrPollingCancelled.Error(), cause) {
		c.logger.Warn("Status polling cancelled", "error", context.Cause(ctx))
	}
}

// finish runs the terminal side effects in order: stop polling, refresh the inventory, then
// report the outcome and, for a completed trade with a stored Pokémon, the received item.
func (c *Controller) finish(ctx context.Context, gen uint64, prev Phase, cause error) {
	c.scheduler.Stop()

	c.mu.Lock()
	var stopWatch func() bool
	if c.generation == gen {
		stopWatch = c.takeWatchLocked()
	}
	c.mu.Unlock()
	if stopWatch != nil {
		stopWatch()
	}

	bg := context.WithoutCancel(ctx)
	refreshCtx, cancel := context.WithTimeout(bg, terminalRefreshTimeout)
	if err := c.refresher.Refresh(refreshCtx); err != nil {
		c.logger.Warn("Inventory refresh after trade failed", "error", err)
	}
	cancel()

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		return
	}

	s := c.session
	phaseEv := c.phaseEventLocked(prev, s.Phase)
	outcome := c.eventLocked(EventOutcome)
	outcome.StatusCode = s.LastStatus
	outcome.Message = s.LastMessage
	if s.FailureReason != "" {
		outcome.Message = s.FailureReason
	}
	outcome.OfferedIndex = s.OfferedIndex
	outcome.Received = s.Received
	outcome.Err = cause
	events := []Event{phaseEv, outcome}

	if s.LastStatus == models.StatusTradeComplete && s.Received != nil && s.Received.NewStorageIndex != nil {
		received := c.eventLocked(EventItemReceived)
		received.Received = s.Received
		events = append(events, received)
	}

	c.session.outcomeReported = true
	c.enqueueLocked(events...)
	if c.opts.AutoAcknowledge {
		c.acknowledgeLocked()
	}
	c.mu.Unlock()

	c.metrics.RecordOutcome(bg, s.Phase.String())
	c.logger.Info("Trade session finished",
		"session_id", s.ID,
		"outcome", s.Phase.String(),
		"status_code", s.LastStatus,
		"reason", s.FailureReason)
}
