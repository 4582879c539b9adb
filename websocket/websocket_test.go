package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedConnection(channel string) *Connection {
	return &Connection{
		ID:      uuid.New().String(),
		UserID:  uuid.New(),
		Channel: channel,
		Conn:    nil, // Not needed for these tests
		Send:    make(chan []byte, 256),
	}
}

// TestNewHub verifies that NewHub creates a properly initialized Hub
func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.connections)
	assert.NotNil(t, hub.channelUsers)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Equal(t, 0, len(hub.connections))
	assert.Equal(t, 0, len(hub.channelUsers))
}

// TestHubRegisterConnection tests registering a new connection
func TestHubRegisterConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := newFeedConnection(ChannelComplaints)

	// Register the connection
	hub.register <- conn

	// Give the goroutine time to process
	time.Sleep(50 * time.Millisecond)

	// Verify the connection was registered
	hub.mu.RLock()
	assert.Equal(t, 1, len(hub.connections))
	assert.Equal(t, 1, len(hub.channelUsers))
	assert.NotNil(t, hub.channelUsers[ChannelComplaints])
	assert.Equal(t, conn, hub.channelUsers[ChannelComplaints][conn.ID])
	hub.mu.RUnlock()

	// Clean up
	hub.Stop()
	close(conn.Send)
}

// TestHubUnregisterConnection tests unregistering a connection
func TestHubUnregisterConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := newFeedConnection(ChannelAll)

	// Register then unregister
	hub.register <- conn
	time.Sleep(50 * time.Millisecond)

	hub.unregister <- conn
	time.Sleep(50 * time.Millisecond)

	// Verify the connection was unregistered
	hub.mu.RLock()
	assert.Equal(t, 0, len(hub.connections))
	assert.Equal(t, 0, len(hub.channelUsers))
	hub.mu.RUnlock()

	// Clean up
	hub.Stop()
}

// TestHubMultipleReviewersPerChannel tests several reviewers on one channel
func TestHubMultipleReviewersPerChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn1 := newFeedConnection(ChannelRTI)
	conn2 := newFeedConnection(ChannelRTI)

	// Register both connections
	hub.register <- conn1
	hub.register <- conn2
	time.Sleep(50 * time.Millisecond)

	hub.mu.RLock()
	assert.Equal(t, 2, len(hub.connections))
	assert.Equal(t, 1, len(hub.channelUsers))
	assert.Equal(t, 2, len(hub.channelUsers[ChannelRTI]))
	hub.mu.RUnlock()

	// Clean up
	hub.Stop()
	close(conn1.Send)
	close(conn2.Send)
}

// TestHubMultipleChannels tests reviewers on different channels
func TestHubMultipleChannels(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn1 := newFeedConnection(ChannelComplaints)
	conn2 := newFeedConnection(ChannelTraffic)

	hub.register <- conn1
	hub.register <- conn2
	time.Sleep(50 * time.Millisecond)

	hub.mu.RLock()
	assert.Equal(t, 2, len(hub.connections))
	assert.Equal(t, 2, len(hub.channelUsers))
	assert.Equal(t, 1, len(hub.channelUsers[ChannelComplaints]))
	assert.Equal(t, 1, len(hub.channelUsers[ChannelTraffic]))
	hub.mu.RUnlock()

	// Clean up
	hub.Stop()
	close(conn1.Send)
	close(conn2.Send)
}

// TestConnectedReviewers tests retrieving reviewers on a channel
func TestConnectedReviewers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn1 := newFeedConnection(ChannelComplaints)
	conn2 := newFeedConnection(ChannelComplaints)

	hub.register <- conn1
	hub.register <- conn2
	time.Sleep(50 * time.Millisecond)

	users := hub.ConnectedReviewers(ChannelComplaints)
	assert.Equal(t, 2, len(users))
	assert.Contains(t, users, conn1.UserID.String())
	assert.Contains(t, users, conn2.UserID.String())

	// Channel nobody subscribed to
	assert.Equal(t, 0, len(hub.ConnectedReviewers(ChannelTraffic)))

	// Clean up
	hub.Stop()
	close(conn1.Send)
	close(conn2.Send)
}

// TestPublishSubmissionEvent tests event fan-out to the typed channel and "all"
func TestPublishSubmissionEvent(t *testing.T) {
	hub := NewHub()

	complaintsConn := newFeedConnection(ChannelComplaints)
	allConn := newFeedConnection(ChannelAll)
	trafficConn := newFeedConnection(ChannelTraffic)

	// Manually add connections (bypass Run() for this test)
	hub.mu.Lock()
	hub.channelUsers[ChannelComplaints] = map[string]*Connection{complaintsConn.ID: complaintsConn}
	hub.mu.Unlock()
	hub.mu.Lock()
	hub.channelUsers[ChannelAll] = map[string]*Connection{allConn.ID: allConn}
	hub.channelUsers[ChannelTraffic] = map[string]*Connection{trafficConn.ID: trafficConn}
	hub.mu.Unlock()

	hub.PublishSubmissionEvent(SubmissionEvent{
		Reference:      "CMP-20260830-123456",
		SubmissionType: "complaint",
		Status:         "received",
	})

	expectEvent := func(t *testing.T, conn *Connection) WSMessage {
		t.Helper()
		select {
		case raw := <-conn.Send:
			var msg WSMessage
			require.NoError(t, json.Unmarshal(raw, &msg))
			return msg
		case <-time.After(100 * time.Millisecond):
			t.Fatal("Expected to receive submission event")
			return WSMessage{}
		}
	}

	msg := expectEvent(t, complaintsConn)
	assert.Equal(t, "submission", msg.Type)
	assert.Equal(t, ChannelComplaints, msg.Channel)

	msg = expectEvent(t, allConn)
	assert.Equal(t, "submission", msg.Type)
	assert.Equal(t, ChannelAll, msg.Channel)

	// Traffic channel must not see complaint events
	select {
	case <-trafficConn.Send:
		t.Fatal("Traffic channel should not receive complaint events")
	case <-time.After(100 * time.Millisecond):
	}

	// Clean up
	close(complaintsConn.Send)
	close(allConn.Send)
	close(trafficConn.Send)
}

// TestBroadcastExcludesSender tests that broadcast skips the excluded connection
func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()

	senderConn := newFeedConnection(ChannelAll)
	receiverConn := newFeedConnection(ChannelAll)

	hub.mu.Lock()
	hub.channelUsers[ChannelAll] = map[string]*Connection{
		senderConn.ID:   senderConn,
		receiverConn.ID: receiverConn,
	}
	hub.mu.Unlock()

	hub.broadcastToChannel(ChannelAll, WSMessage{
		Type:    "presence",
		Channel: ChannelAll,
		UserID:  senderConn.UserID.String(),
	}, senderConn.ID)
	time.Sleep(50 * time.Millisecond)

	// Verify sender did NOT receive the message
	select {
	case <-senderConn.Send:
		t.Fatal("Sender should not receive their own broadcast")
	case <-time.After(100 * time.Millisecond):
		// Expected
	}

	// Verify receiver DID receive the message
	select {
	case raw := <-receiverConn.Send:
		var received WSMessage
		require.NoError(t, json.Unmarshal(raw, &received))
		assert.Equal(t, "presence", received.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Expected receiver to receive message")
	}

	// Clean up
	close(senderConn.Send)
	close(receiverConn.Send)
}

// TestChannelMapping tests submission type to channel mapping
func TestChannelMapping(t *testing.T) {
	assert.Equal(t, ChannelComplaints, channelForType("complaint"))
	assert.Equal(t, ChannelRTI, channelForType("rti"))
	assert.Equal(t, ChannelTraffic, channelForType("traffic_violation"))
	assert.Equal(t, ChannelAll, channelForType("something-else"))

	assert.True(t, IsValidChannel(ChannelAll))
	assert.True(t, IsValidChannel(ChannelComplaints))
	assert.False(t, IsValidChannel("notes"))
}

// TestConnectionLifecycle tests the full lifecycle of a connection
func TestConnectionLifecycle(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := newFeedConnection(ChannelAll)

	// 1. Register
	hub.register <- conn
	time.Sleep(50 * time.Millisecond)

	hub.mu.RLock()
	assert.Equal(t, 1, len(hub.connections))
	hub.mu.RUnlock()

	// 2. Visible on the channel
	users := hub.ConnectedReviewers(ChannelAll)
	assert.Equal(t, 1, len(users))
	assert.Contains(t, users, conn.UserID.String())

	// 3. Unregister
	hub.unregister <- conn
	time.Sleep(50 * time.Millisecond)

	hub.mu.RLock()
	assert.Equal(t, 0, len(hub.connections))
	hub.mu.RUnlock()

	assert.Equal(t, 0, len(hub.ConnectedReviewers(ChannelAll)))

	// Clean up
	hub.Stop()
}

// TestHubEvictsSlowConsumer verifies that a reviewer socket with a full Send
// buffer is removed by the Run loop, its channel closed exactly once, and a
// later unregister of the same connection is a no-op.
func TestHubEvictsSlowConsumer(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := &Connection{
		ID:      uuid.New().String(),
		UserID:  uuid.New(),
		Channel: ChannelAll,
		Send:    make(chan []byte), // unbuffered: the first broadcast overflows
	}
	hub.RegisterConnection(slow)

	require.Eventually(t, func() bool {
		return len(hub.ConnectedReviewers(ChannelAll)) == 1
	}, time.Second, 10*time.Millisecond)

	hub.PublishSubmissionEvent(SubmissionEvent{
		Reference:      "CMP-20260830-654321",
		SubmissionType: "complaint",
		Status:         "received",
	})

	require.Eventually(t, func() bool {
		return len(hub.ConnectedReviewers(ChannelAll)) == 0
	}, time.Second, 10*time.Millisecond)

	select {
	case _, open := <-slow.Send:
		assert.False(t, open, "Send should be closed after eviction")
	case <-time.After(time.Second):
		t.Fatal("Send channel was not closed")
	}

	// Explicitly unregistering the evicted connection must not close Send
	// a second time.
	hub.UnregisterConnection(slow)
	require.Eventually(t, func() bool {
		return len(hub.ConnectedReviewers(ChannelAll)) == 0
	}, time.Second, 10*time.Millisecond)
}

// TestHubStopIdempotent verifies repeated Stop calls are safe.
func TestHubStopIdempotent(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	hub.Stop()
	hub.Stop()
}

// BenchmarkHubRegister benchmarks connection registration
func BenchmarkHubRegister(b *testing.B) {
	hub := NewHub()
	go hub.Run()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.register <- newFeedConnection(ChannelAll)
	}
}

// BenchmarkPublishSubmissionEvent benchmarks event fan-out
func BenchmarkPublishSubmissionEvent(b *testing.B) {
	hub := NewHub()

	hub.mu.Lock()
	hub.channelUsers[ChannelComplaints] = make(map[string]*Connection)
	for i := 0; i < 10; i++ {
		conn := newFeedConnection(ChannelComplaints)
		hub.channelUsers[ChannelComplaints][conn.ID] = conn
	}
	hub.mu.Unlock()

	event := SubmissionEvent{
		Reference:      "CMP-20260830-123456",
		SubmissionType: "complaint",
		Status:         "received",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.PublishSubmissionEvent(event)
	}
}
