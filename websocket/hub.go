package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// The hub pushes ledger activity (commissions recorded/decided, payouts
// moving through their lifecycle) to connected admin dashboards.

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

type ActivityEvent struct {
	Type        string    `json:"type"`
	AffiliateID uuid.UUID `json:"affiliate_id"`
	EntityID    uuid.UUID `json:"entity_id"`
	Amount      string    `json:"amount,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan *ActivityEvent, 64)

func init() {
	go RunHub()
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Activity feed client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Activity feed client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case event := <-Broadcast:
			clientsMu.RLock()
			var dead []uuid.UUID
			for userID, conn := range clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Error sending activity event to client %s: %v", userID, err)
					conn.Close()
					dead = append(dead, userID)
				}
			}
			clientsMu.RUnlock()

			if len(dead) > 0 {
				clientsMu.Lock()
				for _, userID := range dead {
					delete(clients, userID)
				}
				clientsMu.Unlock()
			}
		}
	}
}

// Publish never blocks a request handler: if the buffer is full the event
// is dropped, the feed is best-effort.
func Publish(eventType string, affiliateID, entityID uuid.UUID, amount string) {
	event := &ActivityEvent{
		Type:        eventType,
		AffiliateID: affiliateID,
		EntityID:    entityID,
		Amount:      amount,
		OccurredAt:  time.Now(),
	}
	select {
	case Broadcast <- event:
	default:
	}
}
