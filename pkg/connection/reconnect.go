package connection

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
	"github.com/ajitpratap0/rtconn-go/pkg/reconnect"
)

// reconnect follows the reconnect policy after the active transport closed
// with cause. It runs on its own goroutine.
func (c *Connection) reconnect(cause error) {
	c.mu.Lock()
	done := c.attemptDone
	c.mu.Unlock()
	if done != nil {
		// Its error, if any, was already returned to the caller of Start.
		<-done
	}

	policy := c.cfg.reconnectPolicy
	retries := 0
	delay, retry := policy.NextRetryDelay(reconnect.RetryContext{Reason: cause}).Retry()
	if !retry {
		c.logger.Info("Connection not reconnecting because of the reconnect policy")
		c.cfg.metrics.ReconnectAttempt(observability.OutcomeGiveUp)
		c.stopConnection(nil, cause)
		return
	}

	if !c.state.transition(Connected, Reconnecting) {
		return
	}

	c.mu.Lock()
	epoch := c.epoch
	wake := c.wake
	c.mu.Unlock()

	if cause != nil {
		c.logger.WithError(cause).Info("Connection reconnecting")
	} else {
		c.logger.Info("Connection reconnecting")
	}
	c.events.emit(Event{Type: EventReconnecting, Err: cause})
	if c.state.current() != Reconnecting {
		return
	}

	began := time.Now()
	for {
		c.logger.Info("Next reconnect attempt scheduled", logging.Duration("delay", delay))
		sleep(delay, wake)

		if c.state.current() != Reconnecting {
			return
		}

		err := c.reconnectAttempt(epoch, retries)
		if err == nil {
			c.cfg.metrics.ReconnectAttempt(observability.OutcomeSuccess)
			if c.state.current() == Connected {
				id := c.ConnectionID()
				c.logger.Info("Connection reconnected", logging.String("connection_id", id))
				c.events.emit(Event{Type: EventReconnected, ConnectionID: id})
			}
			return
		}

		c.cfg.metrics.ReconnectAttempt(observability.OutcomeFailure)
		c.logger.WithError(err).Info("Reconnect attempt failed")
		if c.state.current() != Reconnecting {
			return
		}

		retries++
		delay, retry = policy.NextRetryDelay(reconnect.RetryContext{
			PreviousRetryCount: retries,
			Elapsed:            time.Since(began),
			Reason:             err,
		}).Retry()
		if !retry {
			break
		}
	}

	c.logger.Info("Reconnect retry attempts have been exhausted, disconnecting")
	c.cfg.metrics.ReconnectAttempt(observability.OutcomeGiveUp)
	if c.state.transition(Reconnecting, Disconnected) {
		c.stopConnection(nil, nil)
	}
}

// reconnectAttempt runs one pass of the start pipeline while Reconnecting.
func (c *Connection) reconnectAttempt(epoch uint64, retries int) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return rterrors.StoppedWhileConnecting()
	}
	format := c.format
	done := make(chan struct{})
	c.attemptDone = done
	c.mu.Unlock()
	defer c.endAttempt(done)

	ctx := logging.ContextWithTraceID(context.Background(), c.traceID)
	ctx, span := c.tracer.Start(ctx, observability.SpanReconnect, trace.WithAttributes(
		observability.AttrRetryCount.Int(retries),
		observability.AttrTraceID.String(c.traceID),
	))
	err := c.connectOnce(ctx, format, Reconnecting, epoch)
	observability.EndSpan(span, err)
	return err
}

// sleep waits for d, or until wake is closed by Stop. The caller re-checks
// the state either way.
func sleep(d time.Duration, wake <-chan struct{}) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-wake:
	}
}
