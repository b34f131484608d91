// Package ws streams the match lifecycle feed to websocket subscribers.
package ws

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/sim/events"
)

const (
	ProtocolVersion = "1.0"
	TypeSubscribe   = "SUBSCRIBE"

	sendBuffer = 256

	pongWait   = 60 * time.Second
	pingPeriod = pongWait / 2
)

// SubscribeMsg is the first frame a client must send. An empty Arenas list
// subscribes to every arena.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Arenas          []string `json:"arenas,omitempty"`
}

type client struct {
	id     uint64
	arenas map[string]bool
	out    chan []byte
	cancel context.CancelFunc
}

func (c *client) wants(arena string) bool {
	return len(c.arenas) == 0 || c.arenas[strings.ToLower(arena)]
}

// Hub is an events.Sink. Emit never blocks: a subscriber whose buffer is
// full is disconnected.
type Hub struct {
	log zerolog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// LoopbackOnly refuses non-local peers.
	LoopbackOnly bool

	// A subscriber that answers no ping within pongWait is disconnected.
	pongWait   time.Duration
	pingPeriod time.Duration

	mu      sync.Mutex
	clients map[uint64]*client
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    map[uint64]*client{},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Emit(e events.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if !c.wants(e.Arena) {
			continue
		}
		select {
		case c.out <- b:
		default:
			h.log.Warn().Uint64("client", id).Msg("subscriber too slow, dropping")
			delete(h.clients, id)
			c.cancel()
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.cancel()
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if h.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub, ok := handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		c := &client{
			id:     h.nextID.Add(1),
			arenas: map[string]bool{},
			out:    make(chan []byte, sendBuffer),
			cancel: cancel,
		}
		for _, a := range sub.Arenas {
			c.arenas[strings.ToLower(strings.TrimSpace(a))] = true
		}
		h.add(c)
		defer h.remove(c.id)
		h.log.Debug().Uint64("client", c.id).Strs("arenas", sub.Arenas).Msg("subscriber connected")

		go func() {
			ping := time.NewTicker(h.pingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
					_ = conn.Close()
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						cancel()
						return
					}
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Inbound frames are ignored; reading keeps control frames flowing and
		// notices the peer leaving.
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

func handshake(conn *websocket.Conn) (SubscribeMsg, bool) {
	var sub SubscribeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, false
	}
	if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != TypeSubscribe || sub.ProtocolVersion != ProtocolVersion {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
		return sub, false
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
