package services

import (
	"context"

	redisclient "github.com/openshelf/openshelf-backend/internal/clients/redis"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/sse"
)

// Notifier publishes circulation events for dashboard consumers. Delivery is
// best effort: a lost event only delays a stats refresh, it never affects
// ledger state.
type Notifier interface {
	Emit(ctx context.Context, event sse.SSEEvent, data any)
}

type notifier struct {
	log     *logger.Logger
	hub     *sse.SSEHub
	bus     redisclient.EventBus
	onLocal func(msg sse.SSEMessage)
}

// NewNotifier wires event delivery. onLocal runs whenever an event is
// delivered in-process (no bus, or bus publish failed) so local caches get
// the same invalidation the bus forwarder would have given them.
func NewNotifier(log *logger.Logger, hub *sse.SSEHub, bus redisclient.EventBus, onLocal func(msg sse.SSEMessage)) Notifier {
	return &notifier{
		log:     log.With("service", "Notifier"),
		hub:     hub,
		bus:     bus,
		onLocal: onLocal,
	}
}

func (n *notifier) Emit(ctx context.Context, event sse.SSEEvent, data any) {
	if n == nil {
		return
	}
	msg := sse.SSEMessage{
		Channel: sse.ChannelStats,
		Event:   event,
		Data:    data,
	}
	// With a bus, the forwarder loops events back into every instance's hub,
	// this one included. Without one, deliver locally.
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Bus publish failed, delivering locally", "event", event, "error", err)
			n.deliverLocal(msg)
		}
		return
	}
	n.deliverLocal(msg)
}

func (n *notifier) deliverLocal(msg sse.SSEMessage) {
	if n.hub != nil {
		n.hub.Publish(msg)
	}
	if n.onLocal != nil {
		n.onLocal(msg)
	}
}
