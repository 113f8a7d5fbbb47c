package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/Dosada05/league-engine/brackets"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
	"github.com/gorilla/websocket"
)

type categoryLookup interface {
	GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error)
}

type WebSocketHandler struct {
	hub        *brackets.Hub
	categories categoryLookup
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; "*" allows any.
func NewWebSocketHandler(hub *brackets.Hub, categories categoryLookup, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	anyOrigin := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return &WebSocketHandler{
		hub:        hub,
		categories: categories,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWs joins the caller to the live room of a category:
// /ws/categories/{categoryID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	categoryID, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.categories.GetByID(r.Context(), nil, categoryID); err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			notFoundResponse(w, r)
			return
		}
		serverErrorResponse(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed", slog.Int("category_id", categoryID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: brackets.RoomForCategory(categoryID),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
