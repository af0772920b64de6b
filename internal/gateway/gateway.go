package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/baz1ga/scenarwall/internal/models"
	"github.com/baz1ga/scenarwall/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const helloType = "presence:hello"

// envelope is the minimal shape shared by every inbound message; the full
// payload is relayed verbatim.
type envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type presenceUpdate struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	*models.PresenceEntry
}

// Gateway owns the live connections of all tenants and routes inbound
// messages to liveness updates or gated broadcast. Fan-out never crosses
// tenants or processes.
type Gateway struct {
	registry  *presence.Registry
	jwtSecret []byte

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func New(registry *presence.Registry, jwtSecret string) *Gateway {
	g := &Gateway{
		registry:  registry,
		jwtSecret: []byte(jwtSecret),
		clients:   make(map[*Client]struct{}),
	}
	registry.SetNotifier(g.broadcastPresence)
	return g
}

// HandleWebSocket upgrades the connection. The token query param carries the
// tenant; the role query param picks presenter or viewer. This is the only
// authentication this subsystem performs — message senders are trusted once
// the connection is set up.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tenant, _ := claims["tenant_id"].(string)
	if tenant == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	role := models.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		http.Error(w, "role must be presenter or viewer", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed: %v", err)
		return
	}

	client := newClient(conn, tenant, role)
	g.register(client)

	go client.writePump()
	go g.readPump(client)
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	g.clients[c] = struct{}{}
	total := len(g.clients)
	g.mu.Unlock()

	log.Printf("gateway: %s %s connected for tenant %s (total: %d)", c.role, c.id, c.tenant, total)
}

// unregister removes the connection and flips the role offline, but only when
// no sibling connection (another tab) still holds the same (tenant, session,
// role).
func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)
	close(c.send)
	session := c.boundSession()
	lastForRole := session != "" && !g.hasConnectionLocked(c.tenant, session, c.role)
	g.mu.Unlock()

	log.Printf("gateway: %s %s disconnected for tenant %s", c.role, c.id, c.tenant)

	if lastForRole {
		g.registry.UpdateStatus(c.tenant, session, c.role, models.StatusOffline)
	}
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		c.conn.Close()
		g.unregister(c)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		g.route(c, data)
	}
}

// route dispatches one inbound message. Malformed payloads are dropped
// silently and the connection stays open.
func (g *Gateway) route(c *Client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return
	}

	switch {
	case env.Type == helloType:
		if env.SessionID == "" {
			return
		}
		c.bind(env.SessionID)
		g.registry.UpdateStatus(c.tenant, env.SessionID, c.role, models.StatusOnline)

	case strings.HasSuffix(env.Type, ":config"):
		// Full resync always relays so a freshly reconnected viewer can
		// recover state before the presenter is detected online.
		g.broadcast(c.tenant, c, data)

	default:
		if g.counterpartOnline(c, env.SessionID) {
			g.broadcast(c.tenant, c, data)
		}
	}
}

// counterpartOnline is the gating check: a control message only relays when
// the other role of its session is confirmed live. Messages without a session
// are tenant-wide and pass through.
func (g *Gateway) counterpartOnline(c *Client, session string) bool {
	if session == "" {
		return true
	}
	state := g.registry.GetState(c.tenant, session)
	return state.RoleStatus(c.role.Counterpart()) == models.StatusOnline
}

// broadcast fans data out to every other connection of the tenant. A client
// whose send buffer is full loses the message rather than stalling the hub.
func (g *Gateway) broadcast(tenant string, exclude *Client, data []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for client := range g.clients {
		if client.tenant != tenant || client == exclude {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

func (g *Gateway) broadcastPresence(tenant, session string, entry *models.PresenceEntry) {
	data, err := json.Marshal(presenceUpdate{
		Type:          "presence:update",
		SessionID:     session,
		PresenceEntry: entry,
	})
	if err != nil {
		return
	}
	g.broadcast(tenant, nil, data)
}

// HasConnection reports whether any open connection is bound to the given
// (tenant, session, role). The reaper uses this to catch connection loss the
// heartbeat never reported.
func (g *Gateway) HasConnection(tenant, session string, role models.Role) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasConnectionLocked(tenant, session, role)
}

func (g *Gateway) hasConnectionLocked(tenant, session string, role models.Role) bool {
	for client := range g.clients {
		if client.tenant == tenant && client.role == role && client.boundSession() == session {
			return true
		}
	}
	return false
}
