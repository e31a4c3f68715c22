// Package service implements the coordination-core use cases on top of the
// store, queue and registry ports.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/CrewLink/internal/adapter/otel"
	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/port/database"
	"github.com/Strob0t/CrewLink/internal/port/messagequeue"
	"github.com/Strob0t/CrewLink/internal/port/registry"
	"github.com/Strob0t/CrewLink/internal/resilience"
)

// Router owns the two delivery surfaces over the persisted message log:
// best-effort push fan-out to live connections, and the authoritative
// pull-with-consume claim against the store.
type Router struct {
	store    database.Store
	queue    messagequeue.Queue
	registry registry.Registry
	metrics  *otel.Metrics
	breaker  *resilience.Breaker
}

// NewRouter creates a Router. metrics may be nil. Publishes run behind a
// circuit breaker so a dead bus degrades to pull-only delivery instead of
// stalling every send.
func NewRouter(store database.Store, queue messagequeue.Queue, reg registry.Registry, metrics *otel.Metrics) *Router {
	return &Router{
		store:    store,
		queue:    queue,
		registry: reg,
		metrics:  metrics,
		breaker:  resilience.NewBreaker(5, 30*time.Second),
	}
}

func (r *Router) publish(ctx context.Context, subject string, data []byte) error {
	return r.breaker.Execute(func() error {
		return r.queue.Publish(ctx, subject, data)
	})
}

// Deliver publishes an already-persisted message for push fan-out.
// Fire-and-forget: publish failures and unreachable recipients are logged,
// never surfaced, and never touch the message row. The row stays sent and
// will be picked up by a later consume.
func (r *Router) Deliver(ctx context.Context, msg *message.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message for push", "message_id", msg.ID, "error", err)
		return
	}

	subject := messagequeue.PushSubject(msg.ToAgent)
	if err := r.publish(ctx, subject, data); err != nil {
		slog.Warn("push publish failed, message remains for pull",
			"message_id", msg.ID, "subject", subject, "error", err)
		return
	}

	if r.metrics != nil {
		r.metrics.MessagesPublished.Add(ctx, 1)
	}
}

// StartPushSubscriber subscribes to the push subjects and fans incoming
// messages out to live connections via the registry. The returned function
// cancels the subscription.
func (r *Router) StartPushSubscriber(ctx context.Context) (func(), error) {
	return r.queue.Subscribe(ctx, messagequeue.SubjectMessagePush+".>", r.handlePush)
}

func (r *Router) handlePush(ctx context.Context, subject string, data []byte) error {
	target := strings.TrimPrefix(subject, messagequeue.SubjectMessagePush+".")

	var n int
	if target == message.Broadcast {
		n = r.registry.PushBroadcast(ctx, data)
	} else {
		n = r.registry.PushToRole(ctx, target, data)
	}

	if n == 0 {
		// Delivery miss is not an error: the message stays sent in the
		// store for pull consumption.
		slog.Info("push delivery miss", "target", target)
	} else if r.metrics != nil {
		r.metrics.PushDeliveries.Add(ctx, int64(n))
	}
	return nil
}

// Consume atomically claims and returns every unread message for the role,
// including broadcasts the role has not yet read. Concurrent calls for the
// same role return disjoint sets.
func (r *Router) Consume(ctx context.Context, role string) ([]message.Message, error) {
	if role == "" {
		return nil, fmt.Errorf("role is required: %w", domain.ErrValidation)
	}

	msgs, err := r.store.ConsumeForRole(ctx, role)
	if err != nil {
		return nil, err
	}

	if r.metrics != nil && len(msgs) > 0 {
		r.metrics.MessagesConsumed.Add(ctx, int64(len(msgs)))
	}
	return msgs, nil
}

// Announce publishes an agent status change on the queue. Best-effort.
func (r *Router) Announce(ctx context.Context, a *agent.Agent) {
	data, err := json.Marshal(a)
	if err != nil {
		slog.Error("marshal agent for announce", "agent_id", a.ID, "error", err)
		return
	}
	if err := r.publish(ctx, messagequeue.SubjectAgentStatus, data); err != nil {
		slog.Warn("agent status publish failed", "agent_id", a.ID, "error", err)
	}
}
