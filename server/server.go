// Package server exposes the DM subsystem over HTTP: the REST collaborator
// endpoints and the WebSocket hub at /hubs/chat.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"feed-lab/auth"
	"feed-lab/contract"
	"feed-lab/domain/dm"
	"feed-lab/errors"
	"feed-lab/observability"
	"feed-lab/repositories"
	"feed-lab/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type Server struct {
	log                  *slog.Logger
	engine               *gin.Engine
	hub                  contract.IHub
	store                repositories.IConversationRepository
	directory            contract.IUserDirectory
	authService          services.IAuthService
	monitor              *observability.Monitor
	connectionBufferSize int
}

func New(log *slog.Logger, hub contract.IHub,
	store repositories.IConversationRepository, directory contract.IUserDirectory,
	authService services.IAuthService, tokens auth.Tokens,
	monitor *observability.Monitor, connectionBufferSize int) *Server {
	s := &Server{
		log:                  log,
		hub:                  hub,
		store:                store,
		directory:            directory,
		authService:          authService,
		monitor:              monitor,
		connectionBufferSize: connectionBufferSize,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	engine.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	engine.POST("/api/register", s.handleRegister)
	engine.POST("/api/login", s.handleLogin)

	protected := engine.Group("/")
	protected.Use(auth.Middleware(tokens))
	{
		protected.POST("/conversation-messages", s.handleSendMessage)
		protected.GET("/conversation-messages/:otherUserId", s.handleGetConversation)
		protected.GET(auth.HubPath, s.handleHub)
		protected.GET("/debug/stats", s.handleStats)
	}

	s.engine = engine
	return s
}

// Handler returns the root http.Handler, used both by the real server and by
// httptest in the end-to-end tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// messageDTO is the REST shape of a persisted message, names included as a
// convenience for clients.
type messageDTO struct {
	ID           dm.MessageID `json:"id"`
	SenderID     dm.UserID    `json:"senderId"`
	SenderName   string       `json:"senderName"`
	ReceiverID   dm.UserID    `json:"receiverId"`
	ReceiverName string       `json:"receiverName"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, user, err := s.authService.Register(req.Username, req.Password)
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username},
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, user, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username},
	})
}

type sendMessageRequest struct {
	ReceiverID int    `json:"receiverId"`
	Content    string `json:"content"`
}

// handleSendMessage sends a message outside of a live connection. It goes
// through the same router as the WebSocket path, so persistence ordering and
// fan-out semantics are identical.
func (s *Server) handleSendMessage(c *gin.Context) {
	senderID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	evt, err := s.hub.OnSend(c.Request.Context(), senderID, dm.UserID(req.ReceiverID), req.Content)
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messageDTO{
		ID:           evt.ID,
		SenderID:     evt.SenderID,
		SenderName:   evt.SenderName,
		ReceiverID:   evt.ReceiverID,
		ReceiverName: evt.ReceiverName,
		Content:      evt.Content,
		CreatedAt:    evt.CreatedAt,
	})
}

// handleGetConversation returns the full ordered conversation with another
// user, both directions, sorted by (createdAt, id) ascending.
func (s *Server) handleGetConversation(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
		return
	}

	otherID, err := strconv.Atoi(c.Param("otherUserId"))
	if err != nil || otherID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	messages, err := s.store.ListConversation(c.Request.Context(), userID, dm.UserID(otherID))
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	// Two participants only, resolve each name once.
	names := make(map[dm.UserID]string, 2)
	for _, id := range []dm.UserID{userID, dm.UserID(otherID)} {
		name, err := s.directory.DisplayName(c.Request.Context(), id)
		if err != nil {
			name = "Unknown"
		}
		names[id] = name
	}

	dtos := lo.Map(messages, func(m dm.Message, _ int) messageDTO {
		return messageDTO{
			ID:           m.ID,
			SenderID:     m.SenderID,
			SenderName:   names[m.SenderID],
			ReceiverID:   m.ReceiverID,
			ReceiverName: names[m.ReceiverID],
			Content:      m.Content,
			CreatedAt:    m.CreatedAt,
		}
	})
	c.JSON(http.StatusOK, dtos)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Stats())
}
