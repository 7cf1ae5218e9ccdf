package syncwire

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
)

const (
	defaultDialTimeout    = time.Second
	defaultReconnectDelay = time.Second
)

var (
	errMissingSyncURL = errors.New("syncwire: sync server url is required")
	errMissingStore   = errors.New("syncwire: store is required")
)

// SynchronizerConfig configures a client synchronizer. ServerURL is an
// explicit required value resolved once at startup; there is no implicit
// host fallback chain.
type SynchronizerConfig struct {
	// ServerURL is the ws:// or wss:// base, e.g. "ws://host:8080/sync".
	ServerURL string
	StoreID   storeid.StoreID
	Store     *store.Store
	// DialTimeout bounds each connection attempt. Defaults to 1s so flaky
	// networks fail fast and retry.
	DialTimeout time.Duration
	// ReconnectDelay bounds the pause between attempts. Defaults to 1s.
	ReconnectDelay time.Duration
	Logger         *zap.Logger
}

// Synchronizer keeps one store converged with the sync server: local
// commits push incrementally, inbound frames merge, and every (re)connect
// repeats the load-then-save handshake so outages are recovered by full
// reconciliation instead of a gap-sensitive message log. Synchronizers for
// different store ids are fully independent.
type Synchronizer struct {
	cfg    SynchronizerConfig
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu         sync.Mutex
	outbox     chan []byte
	listenerID int
}

// StartSynchronizer validates the configuration and starts the reconnect
// loop in the background. Store writes never block on the network.
func StartSynchronizer(ctx context.Context, cfg SynchronizerConfig) (*Synchronizer, error) {
	if cfg.ServerURL == "" {
		return nil, errMissingSyncURL
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Synchronizer{cfg: cfg, ctx: runCtx, cancel: cancel, logger: logger}

	s.listenerID = cfg.Store.AddLocalChangeListener(func(delta store.ChangeSet) {
		message, err := EncodeFrame(Frame{Type: FrameChanges, Changes: delta})
		if err != nil {
			s.logger.Error("encode local delta failed", zap.Error(err))
			return
		}
		s.enqueue(message)
	})

	go s.run()
	return s, nil
}

// Close stops the synchronizer and detaches from the store.
func (s *Synchronizer) Close() {
	s.cancel()
	s.cfg.Store.DelListener(s.listenerID)
}

func (s *Synchronizer) run() {
	url := s.cfg.ServerURL + "/" + s.cfg.StoreID.String()
	for {
		conn, err := s.dial(url)
		if err != nil {
			s.logger.Debug("sync dial failed",
				zap.String("store_id", s.cfg.StoreID.String()), zap.Error(err))
		} else {
			s.serveConnection(conn)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *Synchronizer) dial(url string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	return conn, err
}

func (s *Synchronizer) serveConnection(conn *websocket.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	outbox := make(chan []byte, peerBufferSize)
	s.mu.Lock()
	s.outbox = outbox
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.outbox = nil
		s.mu.Unlock()
	}()

	// reconciliation handshake: pull the server's state, then push ours
	if err := s.sendHandshake(conn); err != nil {
		return
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-connCtx.Done():
				return
			case message := <-outbox:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
					return
				}
			case <-time.After(pingPeriod):
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		frame, err := DecodeFrame(message)
		if err != nil {
			// reject the single change set, keep local state and the
			// connection
			s.logger.Warn("dropping malformed sync frame",
				zap.String("store_id", s.cfg.StoreID.String()), zap.Error(err))
			continue
		}
		if frame.Type == FrameChanges {
			s.cfg.Store.Merge(frame.Changes)
		}
	}
}

func (s *Synchronizer) sendHandshake(conn *websocket.Conn) error {
	load, err := EncodeFrame(Frame{Type: FrameLoad})
	if err != nil {
		return err
	}
	save, err := EncodeFrame(Frame{Type: FrameChanges, Changes: s.cfg.Store.ChangeSet()})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, load); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, save)
}

// enqueue hands a frame to the live connection, dropping when offline or
// backed up: the next reconnect handshake restores anything missed.
func (s *Synchronizer) enqueue(message []byte) {
	s.mu.Lock()
	outbox := s.outbox
	s.mu.Unlock()
	if outbox == nil {
		return
	}
	select {
	case outbox <- message:
	default:
	}
}
