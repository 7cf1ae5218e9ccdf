// Package server assembles the HTTP surface of the sync server: the
// WebSocket sync endpoint plus thin query routes over the document mirror.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/identity"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/mirror"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/notifications"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/syncwire"
)

var errMissingSyncEndpoint = errors.New("sync endpoint dependency required")

// Dependencies carries everything the HTTP handler needs. Mirror,
// Identity and Notifications are optional; their routes degrade when
// absent.
type Dependencies struct {
	SyncEndpoint *syncwire.Endpoint
	Mirror       *mirror.Bridge
	Identity     identity.Provider
	// Notifications publishes into the global store; rows reach clients
	// through their sync connections, not through this API.
	Notifications *notifications.Writer
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SyncEndpoint == nil {
		return nil, errMissingSyncEndpoint
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		mirror:        deps.Mirror,
		identity:      deps.Identity,
		notifications: deps.Notifications,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/lists", handler.handleListDocuments)
	router.GET("/lists/:listId", handler.handleListSnapshot)
	router.GET("/me", handler.handleWhoAmI)
	router.POST("/notifications", handler.handlePublishNotification)
	deps.SyncEndpoint.Register(router)

	return router, nil
}

type httpHandler struct {
	mirror        *mirror.Bridge
	identity      identity.Provider
	notifications *notifications.Writer
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type listDocumentPayload struct {
	ListID    string  `json:"list_id"`
	Name      string  `json:"name"`
	Budget    float64 `json:"budget"`
	Status    string  `json:"status"`
	UpdatedAt int64   `json:"updated_at_s"`
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	if h.mirror == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mirror_disabled"})
		return
	}
	documents, err := h.mirror.ListDocuments(c.Request.Context())
	if err != nil {
		h.logger.Error("list documents query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	payload := make([]listDocumentPayload, 0, len(documents))
	for _, document := range documents {
		payload = append(payload, listDocumentPayload{
			ListID:    document.ListID,
			Name:      document.Name,
			Budget:    document.Budget,
			Status:    document.Status,
			UpdatedAt: document.UpdatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"lists": payload})
}

func (h *httpHandler) handleListSnapshot(c *gin.Context) {
	if h.mirror == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mirror_disabled"})
		return
	}
	snapshot, err := h.mirror.LoadSnapshot(c.Request.Context(), c.Param("listId"))
	if errors.Is(err, mirror.ErrNoDocument) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("snapshot query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"list_id": c.Param("listId"), "snapshot": snapshot})
}

func (h *httpHandler) handleWhoAmI(c *gin.Context) {
	if h.identity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity_disabled"})
		return
	}
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	resolved, err := h.identity.Identify(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("identity token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	storeIDs := make([]string, 0, 3)
	for _, id := range resolved.StoreIDs() {
		storeIDs = append(storeIDs, id.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  resolved.UserID,
		"nickname": resolved.Nickname,
		"stores":   storeIDs,
	})
}

type publishNotificationPayload struct {
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	ListID        string `json:"list_id"`
	ProductName   string `json:"product_name"`
	ScheduledDate string `json:"scheduled_date"`
}

func (h *httpHandler) handlePublishNotification(c *gin.Context) {
	if h.notifications == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications_disabled"})
		return
	}
	var request publishNotificationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	notificationID, err := h.notifications.Publish(notifications.Draft{
		UserID:        request.UserID,
		Type:          request.Type,
		Title:         request.Title,
		Message:       request.Message,
		ListID:        request.ListID,
		ProductName:   request.ProductName,
		ScheduledDate: request.ScheduledDate,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_notification"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notification_id": notificationID})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
