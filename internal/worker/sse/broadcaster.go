// Package sse streams prediction events to dashboard clients.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// WriteTimeout bounds a single write so a stale client cannot stall a
	// broadcast.
	WriteTimeout = 2 * time.Second

	// KeepAliveInterval is how often an idle stream receives a comment line.
	KeepAliveInterval = 30 * time.Second
)

// Event types.
const (
	EventPrediction = "prediction"
	EventWarning    = "warning"
	EventReset      = "reset"
)

// Event is one message on the stream. SessionID scopes delivery: clients
// subscribed to a session only receive that session's events.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// Client is one connected stream.
type Client struct {
	Writer    http.ResponseWriter
	Flusher   http.Flusher
	Done      chan struct{}
	ID        string
	SessionID string // empty receives every session

	writeMu sync.Mutex
}

// Broadcaster fans events out to connected clients.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers w as a stream for sessionID.
func (b *Broadcaster) AddClient(w http.ResponseWriter, sessionID string) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	client := &Client{
		ID:        fmt.Sprintf("client-%d", b.nextID),
		SessionID: sessionID,
		Writer:    w,
		Flusher:   flusher,
		Done:      make(chan struct{}),
	}
	b.clients[client.ID] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", client.ID).
		Str("session", sessionID).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient unregisters client and closes its Done channel.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	_, exists := b.clients[client.ID]
	delete(b.clients, client.ID)
	clientCount := len(b.clients)
	b.mu.Unlock()

	select {
	case <-client.Done:
	default:
		close(client.Done)
	}

	if exists {
		log.Debug().
			Str("clientId", client.ID).
			Int("totalClients", clientCount).
			Msg("SSE client disconnected")
	}
}

// Publish sends ev to every client subscribed to its session. It returns the
// number of clients written to.
func (b *Broadcaster) Publish(ev Event) int {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to marshal SSE event")
		return 0
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload)

	b.mu.RLock()
	targets := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.SessionID == "" || c.SessionID == ev.SessionID {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	dead := make(chan *Client, len(targets))
	var wg sync.WaitGroup
	for _, c := range targets {
		select {
		case <-c.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !b.writeToClient(c, message) {
				dead <- c
			}
		}(c)
	}
	wg.Wait()
	close(dead)

	delivered := len(targets)
	for c := range dead {
		delivered--
		b.RemoveClient(c)
	}
	return delivered
}

// writeToClient writes message with WriteTimeout and reports success.
func (b *Broadcaster) writeToClient(c *Client, message string) bool {
	done := make(chan error, 1)
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_, err := c.Writer.Write([]byte(message))
		if err == nil {
			c.Flusher.Flush()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Debug().Str("clientId", c.ID).Err(err).Msg("SSE write failed, dropping client")
			return false
		}
		return true
	case <-time.After(WriteTimeout):
		log.Warn().Str("clientId", c.ID).Dur("timeout", WriteTimeout).Msg("SSE write timed out, dropping client")
		return false
	case <-c.Done:
		return true
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Serve streams events for sessionID to w until the request ends.
func (b *Broadcaster) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w, sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	client.writeMu.Lock()
	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	client.Flusher.Flush()
	client.writeMu.Unlock()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case <-keepAlive.C:
			if !b.writeToClient(client, ": keep-alive\n\n") {
				return
			}
		}
	}
}
