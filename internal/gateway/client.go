package gateway

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/baz1ga/scenarwall/internal/models"
)

const sendBufferSize = 32

// Client is one live push connection. Tenant and role are fixed at connection
// setup; the session stays unknown until a hello message binds it.
type Client struct {
	id     uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	tenant string
	role   models.Role

	mu      sync.Mutex
	session string
}

func newClient(conn *websocket.Conn, tenant string, role models.Role) *Client {
	return &Client{
		id:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		tenant: tenant,
		role:   role,
	}
}

func (c *Client) bind(session string) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}

func (c *Client) boundSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	c.conn.Close()
}
