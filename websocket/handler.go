package websocket

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"civicaid/database"
)

// HandleWebSocket handles reviewer feed connections. It authenticates the
// reviewer with a JWT, checks the account still exists, and streams
// submission events for the requested channel.
func HandleWebSocket(c *websocket.Conn, hub *Hub, db database.Database, jwtSecret []byte) {
	defer c.Close()

	channel := c.Query("channel", ChannelAll)
	tokenStr := c.Query("token")

	if tokenStr == "" {
		log.Printf("WebSocket connection rejected: missing token")
		return
	}

	if !IsValidChannel(channel) {
		log.Printf("WebSocket connection rejected: unknown channel %q", channel)
		return
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		log.Printf("WebSocket connection rejected: invalid token")
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		log.Printf("WebSocket connection rejected: invalid token claims")
		return
	}

	tokenUserID, ok := claims["user_id"].(string)
	if !ok {
		log.Printf("WebSocket connection rejected: missing user_id claim")
		return
	}

	userID, err := uuid.Parse(tokenUserID)
	if err != nil {
		log.Printf("Invalid reviewer ID: %v", err)
		return
	}

	// The account may have been deleted since the token was issued
	ctx := context.Background()
	var exists bool
	err = db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil || !exists {
		log.Printf("Reviewer %s not found, rejecting feed connection", userID)
		return
	}

	conn := &Connection{
		ID:      uuid.New().String(),
		UserID:  userID,
		Channel: channel,
		Conn:    c,
		Send:    make(chan []byte, 256),
	}

	hub.register <- conn

	// Handle outgoing messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		for message := range conn.Send {
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		}
		_ = c.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	// Incoming messages: only presence pings are accepted from reviewers,
	// everything else on the feed originates server-side
	for {
		var msg WSMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if msg.Type == "presence" {
			hub.broadcastToChannel(channel, WSMessage{
				Type:    "presence",
				Channel: channel,
				UserID:  userID.String(),
				Content: msg.Content,
			}, conn.ID)
		}
	}

	hub.unregister <- conn
	<-done
}
