package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/modules/broadcast"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/messages"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Snapshotter builds the online roster of a room on demand.
type Snapshotter interface {
	OnlineUsers(ctx context.Context, roomID domain.RoomID) (broadcast.OnlineUsersFrame, error)
}

// server holds what the HTTP and WebSocket handlers need.
type server struct {
	gw        *Gateway
	resolver  IdentityResolver
	members   membership.Directory
	snapshots Snapshotter
	origins   string
	health    func() map[string]any
}

// newApp builds the Fiber app with middleware and routes.
func newApp(s *server) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Group Chat Gateway",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(loggerMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	s.registerRoutes(app)
	return app
}

func (s *server) registerRoutes(app *fiber.App) {
	timeout := s.gw.opts.StoreTimeout

	app.Get("/health", s.healthCheck)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rooms/:roomId",
		authenticate(s.resolver),
		requireMember(s.members, timeout),
		websocket.New(s.handleWebSocket),
	)

	api := app.Group("/api/v1", authenticate(s.resolver))
	api.Get("/rooms/:roomId/messages", requireMember(s.members, timeout), s.getHistory)
	api.Get("/rooms/:roomId/presence", requireMember(s.members, timeout), s.getPresence)
	api.Post("/presence", s.postPresence)
}

// healthCheck handles GET /health.
func (s *server) healthCheck(c *fiber.Ctx) error {
	details := map[string]any{"module": moduleName}
	if s.health != nil {
		for k, v := range s.health() {
			details[k] = v
		}
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// handleWebSocket serves one authenticated member for the life of the socket.
func (s *server) handleWebSocket(ws *websocket.Conn) {
	identity, _ := ws.Locals(localIdentity).(domain.Identity)
	roomID, _ := ws.Locals(localRoom).(domain.RoomID)

	opts := s.gw.opts
	conn := newConnection(uuid.New().String(), identity, roomID, ws, opts)
	ctx := context.Background()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		conn.writePump(opts.PingInterval, opts.WriteTimeout)
	}()

	s.gw.Connect(ctx, conn)
	conn.readLoop(opts.HeartbeatWindow,
		func(data []byte) { s.gw.HandleFrame(ctx, conn, data) },
		func() { s.gw.Heartbeat(ctx, conn) },
	)
	s.gw.Disconnect(ctx, conn)

	_ = conn.Close()
	<-pumpDone
}

// getHistory handles GET /api/v1/rooms/:roomId/messages.
func (s *server) getHistory(c *fiber.Ctx) error {
	roomID := roomFrom(c)
	limit := c.QueryInt("limit", s.gw.opts.HistoryLimit)
	if limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_limit",
			Message: messages.ErrInvalidLimit.Error(),
		})
	}

	frame, err := s.gw.History(c.UserContext(), roomID, limit)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).Stringer("room", roomID).Msg("history failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load message history",
		})
	}

	return c.JSON(HistoryResponse{
		RoomID:   int64(roomID),
		Messages: frame.Messages,
	})
}

// getPresence handles GET /api/v1/rooms/:roomId/presence.
func (s *server) getPresence(c *fiber.Ctx) error {
	roomID := roomFrom(c)

	frame, err := s.snapshots.OnlineUsers(c.UserContext(), roomID)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).Stringer("room", roomID).Msg("presence snapshot failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "presence_failed",
			Message: "Failed to load presence",
		})
	}
	return c.JSON(frame)
}

// postPresence handles POST /api/v1/presence.
func (s *server) postPresence(c *fiber.Ctx) error {
	var req PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if req.RoomID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_room",
			Message: domain.ErrInvalidRoomID.Error(),
		})
	}

	roomID := domain.RoomID(req.RoomID)
	identity := identityFrom(c)
	if err := checkMember(c.UserContext(), s.members, s.gw.opts.StoreTimeout, roomID, identity.UserID); err != nil {
		return err
	}

	active := req.IsActive == nil || *req.IsActive
	if err := s.gw.RefreshPresence(c.UserContext(), roomID, identity.UserID, active); err != nil {
		log.Error().Err(err).Str("module", moduleName).Stringer("room", roomID).Msg("presence refresh failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "presence_failed",
			Message: "Failed to update presence",
		})
	}

	return c.JSON(PresenceResponse{RoomID: req.RoomID, IsActive: active})
}

// errorHandler handles Fiber errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("module", moduleName).Int("code", code).Msg("HTTP error")
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   strings.ToLower(strings.ReplaceAll(utils.StatusMessage(code), " ", "_")),
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		log.Debug().Str("module", moduleName).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
