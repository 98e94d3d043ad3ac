package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/infrastructure/resilience"
)

type Queue struct {
	conn       *nats.Conn
	subject    string
	dlqSubject string
	executor   *resilience.Executor
}

func New(url, subject, dlqSubject string) (*Queue, error) {
	return NewWithOptions(url, subject, dlqSubject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject, dlqSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("crmparse"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		dlqSubject: dlqSubject,
		executor:   options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishInteraction(ctx context.Context, event domain.InteractionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal interaction event: %w", err)
	}
	return q.publish(ctx, q.subject, payload, "nats.publish")
}

func (q *Queue) PublishDeadLetter(ctx context.Context, letter domain.DeadLetter) error {
	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	return q.publish(ctx, q.dlqSubject, payload, "nats.publish_dlq")
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte, operation string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeInteractions consumes the interaction subject in the shared
// worker queue group and blocks until ctx is cancelled. Handler failures
// are the handler's responsibility to dead-letter; they are logged here and
// the message is not redelivered.
func (q *Queue) SubscribeInteractions(ctx context.Context, handler func(context.Context, domain.InteractionEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var event domain.InteractionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("event_decode_failed", "subject", q.subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Warn("worker_handler_failed", "event_id", event.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
