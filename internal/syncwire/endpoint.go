package syncwire

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/registry"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
)

var errMissingRegistry = errors.New("syncwire: registry dependency required")

// EndpointConfig describes endpoint dependencies.
type EndpointConfig struct {
	Registry *registry.Registry
	Hub      *Hub
	Logger   *zap.Logger
}

// Endpoint accepts WebSocket upgrades on /sync/<storeId> and attaches each
// connection to the corresponding server store as a plain sync peer.
type Endpoint struct {
	registry *registry.Registry
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewEndpoint validates dependencies and returns an Endpoint.
func NewEndpoint(cfg EndpointConfig) (*Endpoint, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Endpoint{
		registry: cfg.Registry,
		hub:      hub,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// peers authenticate at the identity layer, not by origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Register mounts the sync route on a gin engine.
func (e *Endpoint) Register(router *gin.Engine) {
	router.GET("/sync/*storeId", e.handleSync)
}

func (e *Endpoint) handleSync(c *gin.Context) {
	raw := strings.TrimPrefix(c.Param("storeId"), "/")
	id, err := storeid.Parse(raw)
	if err != nil {
		// reject outside the namespace before any store is touched
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	entry, err := e.registry.GetOrCreate(c.Request.Context(), id)
	if err != nil {
		e.logger.Error("store creation failed",
			zap.String("store_id", id.String()), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	conn, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed",
			zap.String("store_id", id.String()), zap.Error(err))
		return
	}

	e.hub.Serve(conn, entry)
}
