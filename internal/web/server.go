// Package web is the HTTP bridge. It exposes health probes, an admin
// message relay, and ticket actions for external tooling. Every ticket
// action goes through the coordinator, so HTTP callers hit the same policy
// and per-ticket locking as chat-originated actions.
package web

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/config"
	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/internal/lifecycle"
	"github.com/ideahatch/booking-bot/internal/observability"
	"github.com/ideahatch/booking-bot/internal/persistence"
	"github.com/ideahatch/booking-bot/internal/policy"
	"github.com/ideahatch/booking-bot/internal/service"
	"github.com/ideahatch/booking-bot/pkg/util"
)

// EffectExecutor carries coordinator instructions into the chat layer. The
// gateway implements it; tests substitute a recorder.
type EffectExecutor interface {
	PostMessage(ctx context.Context, channelID, content string) (string, error)
	ExecuteEffects(channelID string, effects []domain.Effect) error
}

// Server hosts the bridge endpoints.
type Server struct {
	app         *fiber.App
	cfg         config.BridgeConfig
	appCfg      config.AppConfig
	coordinator *service.TicketCoordinator
	policy      *policy.AccessPolicy
	executor    EffectExecutor
	tokens      *TokenManager
	postgres    *persistence.Postgres
	redis       *persistence.Redis
	logger      *zap.Logger
}

// Dependencies bundles construction inputs for the bridge.
type Dependencies struct {
	Coordinator *service.TicketCoordinator
	Policy      *policy.AccessPolicy
	Executor    EffectExecutor
	Metrics     *observability.Metrics
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	Logger      *zap.Logger
}

// NewServer builds the fiber app and wires routes.
func NewServer(cfg config.BridgeConfig, appCfg config.AppConfig, deps Dependencies) *Server {
	s := &Server{
		app:         fiber.New(fiber.Config{DisableStartupMessage: true}),
		cfg:         cfg,
		appCfg:      appCfg,
		coordinator: deps.Coordinator,
		policy:      deps.Policy,
		executor:    deps.Executor,
		tokens:      NewTokenManager(cfg.JWTSecret, cfg.TokenTTLMinutes),
		postgres:    deps.Postgres,
		redis:       deps.Redis,
		logger:      deps.Logger,
	}

	registerMiddlewares(s.app, deps.Logger, deps.Metrics, cfg.RequestTimeout(), cfg.AllowedOrigin)

	s.app.Get("/", s.handleStatus)
	s.app.Get("/health", s.handleStatus)
	s.app.Get("/health/ready", s.handleReady)
	s.app.Post("/auth/token", s.handleToken)
	s.app.Post("/send-message", s.handleSendMessage)
	s.app.Post("/tickets/:id/:action", s.requireToken, s.handleTicketAction)

	return s
}

// Listen serves until the app shuts down.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr())
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": s.appCfg.Name,
		"version": s.appCfg.Version,
	})
}

// handleReady checks the optional backends. A backend that is not configured
// is reported as skipped, not failed.
func (s *Server) handleReady(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if s.postgres.Enabled() {
		if err := s.postgres.Ping(ctx); err != nil {
			depStatus["postgres"] = err.Error()
			ready = false
		} else {
			depStatus["postgres"] = "ok"
		}
	} else {
		depStatus["postgres"] = "skipped"
	}

	if s.redis.Enabled() {
		if err := s.redis.Ping(ctx); err != nil {
			depStatus["redis"] = err.Error()
			ready = false
		} else {
			depStatus["redis"] = "ok"
		}
	} else {
		depStatus["redis"] = "skipped"
	}

	if ready {
		return c.JSON(fiber.Map{"status": "ready", "dependencies": depStatus})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

type tokenRequest struct {
	Secret     string `json:"secret"`
	ReviewerID string `json:"reviewer_id"`
}

// handleToken exchanges the shared secret for a reviewer-scoped bearer token.
func (s *Server) handleToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Secret == "" || req.ReviewerID == "" {
		return util.NewValidationError("secret and reviewer_id required", nil)
	}
	if err := s.verifySecret(req.Secret); err != nil {
		return err
	}
	if !s.policy.IsReviewer(req.ReviewerID) {
		return util.NewForbidden("reviewer_id is not on the reviewer list")
	}

	token, expiresAt, err := s.tokens.GenerateToken(req.ReviewerID)
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}})
}

type sendMessageRequest struct {
	Secret    string `json:"secret"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// handleSendMessage posts an admin message into a channel.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ChannelID == "" || req.Content == "" {
		return util.NewValidationError("channel_id and content required", nil)
	}
	if err := s.verifySecret(req.Secret); err != nil {
		return err
	}

	messageID, err := s.executor.PostMessage(c.UserContext(), req.ChannelID, req.Content)
	if err != nil {
		return util.NewUpstreamFailure("unable to deliver the message", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"message_id": messageID}})
}

const reviewerKey = "bridge_reviewer"

// requireToken validates the bearer token and stashes the reviewer identity.
func (s *Server) requireToken(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}
	claims, err := s.tokens.ParseToken(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}
	c.Locals(reviewerKey, claims.ReviewerID)
	return c.Next()
}

type ticketActionRequest struct {
	Reason string         `json:"reason,omitempty"`
	Fields []domain.Field `json:"fields,omitempty"`
}

// handleTicketAction applies one lifecycle action on behalf of the token's
// reviewer. Effects are executed against the ticket channel; instructions
// that need a source control message are skipped by the executor.
func (s *Server) handleTicketAction(c *fiber.Ctx) error {
	action, ok := parseAction(c.Params("action"))
	if !ok {
		return util.NewValidationError("unknown action", map[string]any{"action": c.Params("action")})
	}
	ticketID := c.Params("id")

	var req ticketActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return util.NewValidationError("invalid payload", nil)
		}
	}

	reviewerID, _ := c.Locals(reviewerKey).(string)
	rec, effects, err := s.coordinator.Perform(c.UserContext(), ticketID, reviewerID,
		action, lifecycle.Payload{Fields: req.Fields, Reason: req.Reason})
	if err != nil {
		return err
	}

	if err := s.executor.ExecuteEffects(ticketID, effects); err != nil {
		s.logger.Warn("bridge effects failed",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket_id": rec.ID,
		"status":    string(rec.Status),
	}})
}

func (s *Server) verifySecret(secret string) error {
	if s.cfg.SecretHash == "" {
		return util.NewUnauthorized("bridge secret is not configured")
	}
	if err := CompareSecret(s.cfg.SecretHash, secret); err != nil {
		return util.NewUnauthorized("invalid secret")
	}
	return nil
}

func parseAction(raw string) (domain.TicketAction, bool) {
	switch action := domain.TicketAction(strings.ToLower(raw)); action {
	case domain.ActionApprove, domain.ActionDeny, domain.ActionClose,
		domain.ActionReopen, domain.ActionDelete:
		return action, true
	}
	return "", false
}
