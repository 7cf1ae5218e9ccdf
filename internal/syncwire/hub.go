package syncwire

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/registry"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	peerBufferSize = 16
)

// Hub fans store changes out across every connection attached to the same
// store id. Topology is hub-and-spoke but the merge logic is symmetric:
// the hub merges inbound change sets into the server store and relays the
// frame to every other peer of that store.
type Hub struct {
	logger *zap.Logger

	mu       sync.Mutex
	peers    map[string]map[int64]*hubPeer
	attached map[string]bool
	nextID   int64
}

type hubPeer struct {
	id     int64
	stream chan []byte
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		peers:    make(map[string]map[int64]*hubPeer),
		attached: make(map[string]bool),
	}
}

// Serve attaches one WebSocket connection to a store entry and blocks
// until the connection closes. Closing a connection deregisters the peer
// only; the store stays alive for other peers and later reconnects.
func (h *Hub) Serve(conn *websocket.Conn, entry *registry.Entry) {
	storeKey := entry.StoreID.String()
	peer := h.register(storeKey, entry)
	defer h.unregister(storeKey, peer.id)
	defer conn.Close()

	done := make(chan struct{})
	go h.writeLoop(conn, peer, done)
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		frame, err := DecodeFrame(message)
		if err != nil {
			// drop the single bad frame, keep both connection and store
			h.logger.Warn("dropping malformed sync frame",
				zap.String("store_id", storeKey), zap.Error(err))
			continue
		}

		switch frame.Type {
		case FrameLoad:
			reply, err := EncodeFrame(Frame{Type: FrameChanges, Changes: entry.Store.ChangeSet()})
			if err != nil {
				h.logger.Error("encode full state failed",
					zap.String("store_id", storeKey), zap.Error(err))
				continue
			}
			peer.deliver(reply)
		case FrameChanges:
			entry.Store.Merge(frame.Changes)
			h.broadcast(storeKey, peer.id, message)
		}
	}
}

// register adds the peer and, on first contact with a store, subscribes to
// its local commits so server-side writers (notification jobs) reach
// connected clients too.
func (h *Hub) register(storeKey string, entry *registry.Entry) *hubPeer {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	peer := &hubPeer{id: h.nextID, stream: make(chan []byte, peerBufferSize)}
	if _, ok := h.peers[storeKey]; !ok {
		h.peers[storeKey] = make(map[int64]*hubPeer)
	}
	h.peers[storeKey][peer.id] = peer

	if !h.attached[storeKey] {
		h.attached[storeKey] = true
		entry.Store.AddLocalChangeListener(func(delta store.ChangeSet) {
			message, err := EncodeFrame(Frame{Type: FrameChanges, Changes: delta})
			if err != nil {
				h.logger.Error("encode local delta failed",
					zap.String("store_id", storeKey), zap.Error(err))
				return
			}
			h.broadcast(storeKey, 0, message)
		})
	}
	return peer
}

func (h *Hub) unregister(storeKey string, peerID int64) {
	h.mu.Lock()
	peers := h.peers[storeKey]
	if peers != nil {
		delete(peers, peerID)
		if len(peers) == 0 {
			delete(h.peers, storeKey)
		}
	}
	h.mu.Unlock()
}

// broadcast relays a message to every peer of the store except the origin.
// Slow peers drop frames; the reconnect handshake recovers anything lost.
func (h *Hub) broadcast(storeKey string, originID int64, message []byte) {
	h.mu.Lock()
	targets := make([]*hubPeer, 0, len(h.peers[storeKey]))
	for _, peer := range h.peers[storeKey] {
		if peer.id != originID {
			targets = append(targets, peer)
		}
	}
	h.mu.Unlock()

	for _, peer := range targets {
		peer.deliver(message)
	}
}

func (p *hubPeer) deliver(message []byte) {
	select {
	case p.stream <- message:
	default:
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, peer *hubPeer, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case message := <-peer.stream:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
