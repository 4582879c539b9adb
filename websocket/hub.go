package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"civicaid/metrics"
)

// Connection represents a reviewer subscribed to a feed channel.
type Connection struct {
	ID      string
	UserID  uuid.UUID
	Channel string
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub manages reviewer feed connections and event broadcasting.
type Hub struct {
	connections  map[string]*Connection
	channelUsers map[string]map[string]*Connection // channel -> connection ID -> connection
	register     chan *Connection
	unregister   chan *Connection
	mu           sync.RWMutex
	done         chan struct{}
}

// NewHub creates a new Hub instance for the reviewer feed
func NewHub() *Hub {
	return &Hub{
		connections:  make(map[string]*Connection),
		channelUsers: make(map[string]map[string]*Connection),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		done:         make(chan struct{}),
	}
}

// RegisterConnection schedules a connection to be added to the hub.
func (h *Hub) RegisterConnection(conn *Connection) {
	h.register <- conn
}

// UnregisterConnection schedules a connection to be removed from the hub.
func (h *Hub) UnregisterConnection(conn *Connection) {
	h.unregister <- conn
}

// Run starts the Hub's main event loop for managing connections
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn

			if h.channelUsers[conn.Channel] == nil {
				h.channelUsers[conn.Channel] = make(map[string]*Connection)
			}
			h.channelUsers[conn.Channel][conn.ID] = conn
			count := len(h.connections)
			h.mu.Unlock()

			metrics.UpdateWebSocketConnections(count)

			// Notify channel peers about the new reviewer
			h.broadcastToChannel(conn.Channel, WSMessage{
				Type:    "presence",
				Channel: conn.Channel,
				Content: PresenceMessage{
					UserID: conn.UserID.String(),
					Status: "online",
				},
			}, conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.connections[conn.ID]; exists {
				delete(h.connections, conn.ID)
				if chanConns, exists := h.channelUsers[conn.Channel]; exists {
					delete(chanConns, conn.ID)
					if len(chanConns) == 0 {
						delete(h.channelUsers, conn.Channel)
					}
				}
				close(conn.Send)
			}
			count := len(h.connections)
			h.mu.Unlock()

			metrics.UpdateWebSocketConnections(count)

			h.broadcastToChannel(conn.Channel, WSMessage{
				Type:    "presence",
				Channel: conn.Channel,
				Content: PresenceMessage{
					UserID: conn.UserID.String(),
					Status: "offline",
				},
			}, conn.ID)
		}
	}
}

// PublishSubmissionEvent pushes a submission event to the matching channel
// and to everyone on the "all" channel.
func (h *Hub) PublishSubmissionEvent(event SubmissionEvent) {
	if event.UpdatedAt == 0 {
		event.UpdatedAt = time.Now().Unix()
	}

	channel := channelForType(event.SubmissionType)
	msg := WSMessage{
		Type:    "submission",
		Channel: channel,
		Content: event,
	}
	h.broadcastToChannel(channel, msg, "")
	if channel != ChannelAll {
		msg.Channel = ChannelAll
		h.broadcastToChannel(ChannelAll, msg, "")
	}
}

// broadcastToChannel sends a message to all reviewers on a channel, skipping
// the connection with excludeID. Slow consumers are handed to the unregister
// path; only the Run loop may close Send or mutate the connection maps.
func (h *Hub) broadcastToChannel(channel string, message WSMessage, excludeID string) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.channelUsers[channel]))
	for id, conn := range h.channelUsers[channel] {
		if id != excludeID {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Send buffer full: drop the connection rather than block
			// the intake path behind a stalled reviewer socket.
			h.dropSlowConsumer(conn)
		}
	}
}

// dropSlowConsumer asks the Run loop to evict a connection that cannot keep
// up. The handoff is asynchronous because broadcastToChannel is called from
// the Run loop itself (presence messages) and must not deadlock on its own
// unregister channel.
func (h *Hub) dropSlowConsumer(conn *Connection) {
	go func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()
}

// Stop gracefully shuts down the Hub. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ConnectedReviewers returns the reviewer IDs currently on a channel.
func (h *Hub) ConnectedReviewers(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chanConns := h.channelUsers[channel]
	if chanConns == nil {
		return []string{}
	}

	users := make([]string, 0, len(chanConns))
	for _, conn := range chanConns {
		users = append(users, conn.UserID.String())
	}
	return users
}
