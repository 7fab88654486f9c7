package controller

import (
	"context"
	"fmt"
)

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the controller has been stopped.
func (c *Controller) Enqueue(ev Event) bool {
	return c.queue.Enqueue(ev)
}

// QueueLen returns the number of events waiting for the Run loop.
func (c *Controller) QueueLen() int {
	return c.queue.Len()
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called; events queued
// before Stop are drained first.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: On event processing failure, the error is logged with
// full event context and processing continues. A rejected reading or a
// failed log write must not stop the valve from being driven by the
// readings that follow.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "controller starting")

	if _, err := c.Start(ctx); err != nil {
		c.queue.Close()
		return err
	}

	for {
		event, ok := c.queue.TryDequeue()
		if ok {
			if err := c.processEvent(ctx, event); err != nil {
				c.logEventError(ctx, event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "controller stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()

		case <-c.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// case fires immediately once Stop has been called.
			if c.queue.Len() == 0 && c.queue.Closed() {
				c.logger.InfoContext(ctx, "controller stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the Run loop.
// Closes the event queue; Run returns once the queue has drained.
func (c *Controller) Stop() {
	c.queue.Close()
}

// processEvent routes an event to the matching controller operation.
func (c *Controller) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeTick:
		_, err := c.Step(ctx, event.Reading)
		return err

	case EventTypeReconfigure:
		_, err := c.Reconfigure(ctx, event.Document)
		return err

	case EventTypeRemove:
		return c.RemoveCriterion(ctx, event.Index)

	case EventTypeAdd:
		return c.AddCriterion(ctx, event.Criterion)

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// logEventError logs an event processing failure with full context.
func (c *Controller) logEventError(ctx context.Context, event Event, err error) {
	attrs := []any{"error", err, "event_type", event.Type.String()}

	switch event.Type {
	case EventTypeTick:
		attrs = append(attrs,
			"flow_rate", event.Reading.FlowRate,
			"elapsed", int64(event.Reading.Elapsed),
			"probes", len(event.Reading.Probes),
		)
	case EventTypeReconfigure:
		attrs = append(attrs, "document", event.Document)
	case EventTypeRemove:
		attrs = append(attrs, "index", event.Index)
	case EventTypeAdd:
		attrs = append(attrs, "criterion", event.Criterion.String())
	}

	c.logger.ErrorContext(ctx, "event processing failed", attrs...)
}
