package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
)

type SSEEvent string

const (
	SSEEventBookCheckedOut SSEEvent = "BookCheckedOut"
	SSEEventBookReturned   SSEEvent = "BookReturned"
	SSEEventLoanRenewed    SSEEvent = "LoanRenewed"
	SSEEventHoldPlaced     SSEEvent = "HoldPlaced"
	SSEEventHoldFulfilled  SSEEvent = "HoldFulfilled"
	SSEEventHoldCancelled  SSEEvent = "HoldCancelled"
	SSEEventFineSettled    SSEEvent = "FineSettled"
	SSEEventStatsChanged   SSEEvent = "StatsChanged"
)

// ChannelStats is the channel the dashboard subscribes to for refresh
// notifications; consumers must treat the payload as a hint, not as data.
const ChannelStats = "stats"

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Channels  map[string]bool
	Outbound  chan SSEMessage
	done      chan struct{}
	Logger    *logger.Logger
}

type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:        log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

func (hub *SSEHub) NewSSEClient(profileID uuid.UUID) *SSEClient {
	return &SSEClient{
		ID:        uuid.New(),
		ProfileID: profileID,
		Channels:  make(map[string]bool),
		Outbound:  make(chan SSEMessage, 10),
		done:      make(chan struct{}),
		Logger:    hub.logger,
	}
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	client.Channels[channel] = true

	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true

	hub.logger.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *SSEHub) RemoveChannel(client *SSEClient, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	delete(client.Channels, channel)

	if clients, exists := hub.subscriptions[channel]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(hub.subscriptions, channel)
		}
	}
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for channel := range client.Channels {
		if clients, exists := hub.subscriptions[channel]; exists {
			delete(clients, client)
			if len(clients) == 0 {
				delete(hub.subscriptions, channel)
			}
		}
	}
	close(client.done)
}

// Publish fans msg out to every client subscribed to its channel. Slow
// clients are skipped rather than blocked on.
func (hub *SSEHub) Publish(msg SSEMessage) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	clients, exists := hub.subscriptions[msg.Channel]
	if !exists {
		return
	}
	for client := range clients {
		select {
		case client.Outbound <- msg:
		default:
			hub.logger.Warn("Dropping SSE message for slow client", "clientID", client.ID, "channel", msg.Channel)
		}
	}
}

// Serve streams hub messages to one HTTP client until the connection drops.
func (client *SSEClient) Serve(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			raw, err := json.Marshal(msg)
			if err != nil {
				client.Logger.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
			flusher.Flush()
		}
	}
}
