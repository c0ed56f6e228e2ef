package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PabloGalante/amika-agent/internal/app/conversation"
	"github.com/PabloGalante/amika-agent/internal/app/relations"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// Deps are the services behind the routes. Metrics is optional.
type Deps struct {
	Conversation *conversation.Service
	Relations    *relations.Service
	Links        domain.LinkIssuer
	Metrics      http.Handler
	CORSOrigins  []string
}

type Server struct {
	conv      *conversation.Service
	relations *relations.Service
	links     domain.LinkIssuer
}

func NewServer(d Deps) http.Handler {
	s := &Server{conv: d.Conversation, relations: d.Relations, links: d.Links}

	r := gin.New()
	r.Use(withRequestID(), withLogging(), withRecovery(), withCORS(d.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	chat := r.Group("/chat")
	chat.POST("/ask", s.handleAsk)
	chat.POST("/prompt", s.handlePrompt)

	r.POST("/auth/verify-token", s.handleVerifyToken)

	users := r.Group("/users")
	users.POST("", s.handleCreateUser)
	users.GET("/:userId", s.handleGetUser)
	users.POST("/:userId/threads", s.handleStartSession)
	users.GET("/:userId/reminders", s.handleListReminders)
	users.GET("/:userId/relations", s.handleListRelations)
	users.POST("/:userId/relations", s.handleAddRelation)
	users.GET("/:userId/relations/:relationId", s.handleGetRelation)
	users.PATCH("/:userId/relations/:relationId", s.handleEditRelation)
	users.DELETE("/:userId/relations/:relationId", s.handleDeleteRelation)

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	// GoogleID is the field name used by older web clients.
	GoogleID string `json:"googleId"`
}

func (r chatRequest) user() domain.UserID {
	if r.UserID != "" {
		return domain.UserID(r.UserID)
	}
	return domain.UserID(r.GoogleID)
}

type messageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Messages []messageResponse `json:"messages"`
}

type verifyTokenResponse struct {
	GoogleID     string `json:"googleId"`
	Email        string `json:"email"`
	EmailContent string `json:"emailContent"`
}

type createUserRequest struct {
	GoogleID  string `json:"googleId"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Pronouns  string `json:"pronouns"`
	Picture   string `json:"picture"`
	Interests string `json:"interests"`
}

type startSessionResponse struct {
	RespondentThreadID string `json:"first_thread_id"`
	ClassifierThreadID string `json:"second_thread_id"`
}

// ─────────────────────────────────────────────
// Chat handlers
// ─────────────────────────────────────────────

func (s *Server) handleAsk(c *gin.Context) {
	s.handleChat(c, s.conv.SendMessage)
}

func (s *Server) handlePrompt(c *gin.Context) {
	s.handleChat(c, s.conv.SendInitialPrompt)
}

func (s *Server) handleChat(c *gin.Context, send func(context.Context, conversation.SendMessageInput) (*conversation.SendMessageOutput, error)) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.user() == "" {
		badRequest(c, "userId is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(c, "message is required")
		return
	}

	out, err := send(c.Request.Context(), conversation.SendMessageInput{UserID: req.user(), Text: req.Message})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := chatResponse{Messages: make([]messageResponse, 0, len(out.Messages))}
	for _, m := range out.Messages {
		resp.Messages = append(resp.Messages, messageResponse{Role: string(m.Role), Content: m.Content})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerifyToken(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		_ = c.ShouldBindJSON(&body)
		token = strings.TrimSpace(body.Token)
	}
	if token == "" {
		writeJSONError(c, http.StatusUnauthorized, "token is required")
		return
	}

	claims, err := s.links.Verify(token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyTokenResponse{
		GoogleID:     string(claims.UserID),
		Email:        claims.Email,
		EmailContent: claims.Prompt,
	})
}

// ─────────────────────────────────────────────
// User handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	u := &domain.User{
		ID:        domain.UserID(req.GoogleID),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Pronouns:  req.Pronouns,
		Picture:   req.Picture,
		Interests: req.Interests,
	}
	if err := s.relations.CreateUser(c.Request.Context(), u); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleGetUser(c *gin.Context) {
	u, err := s.relations.GetUser(c.Request.Context(), userParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleStartSession(c *gin.Context) {
	out, err := s.conv.StartSession(c.Request.Context(), conversation.StartSessionInput{UserID: userParam(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, startSessionResponse{
		RespondentThreadID: string(out.RespondentThread),
		ClassifierThreadID: string(out.ClassifierThread),
	})
}

func (s *Server) handleListReminders(c *gin.Context) {
	rels, err := s.relations.Reminders(c.Request.Context(), userParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rels)
}

// ─────────────────────────────────────────────
// Relation handlers
// ─────────────────────────────────────────────

func (s *Server) handleListRelations(c *gin.Context) {
	rels, err := s.relations.List(c.Request.Context(), userParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rels)
}

func (s *Server) handleAddRelation(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	rel, err := s.relations.Add(c.Request.Context(), userParam(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

func (s *Server) handleGetRelation(c *gin.Context) {
	rel, err := s.relations.Get(c.Request.Context(), userParam(c), relationParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (s *Server) handleEditRelation(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	rel, _, err := s.relations.Edit(c.Request.Context(), userParam(c), relationParam(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (s *Server) handleDeleteRelation(c *gin.Context) {
	removed, err := s.relations.Delete(c.Request.Context(), userParam(c), relationParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		writeError(c, domain.ErrRelationNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func userParam(c *gin.Context) domain.UserID {
	return domain.UserID(c.Param("userId"))
}

func relationParam(c *gin.Context) domain.RelationID {
	return domain.RelationID(c.Param("relationId"))
}

func readBody(c *gin.Context) (json.RawMessage, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(raw) {
		badRequest(c, "invalid JSON body")
		return nil, false
	}
	return raw, true
}

// statusFor maps the error taxonomy to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrRelationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRelation), errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidLink):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAgentUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(c.Request.Context()).Error("request failed", "error", err)
		writeJSONError(c, status, "internal server error")
		return
	}
	writeJSONError(c, status, err.Error())
}

func badRequest(c *gin.Context, msg string) {
	writeJSONError(c, http.StatusBadRequest, msg)
}

func writeJSONError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
