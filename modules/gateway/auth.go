package gateway

import (
	"context"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Locals keys set by the auth middleware.
const (
	localIdentity = "identity"
	localRoom     = "room_id"
)

// IdentityResolver turns a bearer token into an identity.
type IdentityResolver interface {
	Resolve(token string) (domain.Identity, error)
}

var _ IdentityResolver = (*membership.IdentityResolver)(nil)

// authenticate resolves the token from the "token" query parameter or the
// Authorization header. Browsers cannot set headers on a WebSocket upgrade.
func authenticate(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := membership.TokenFromRequest(c.Query("token"), c.Get(fiber.HeaderAuthorization))
		identity, err := resolver.Resolve(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: err.Error(),
			})
		}
		c.Locals(localIdentity, identity)
		return c.Next()
	}
}

// requireMember parses :roomId and rejects users who are not members of it.
func requireMember(members membership.Directory, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roomID, err := domain.ParseRoomID(c.Params("roomId"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_room",
				Message: err.Error(),
			})
		}
		identity := identityFrom(c)
		if err := checkMember(c.UserContext(), members, timeout, roomID, identity.UserID); err != nil {
			return err
		}
		c.Locals(localRoom, roomID)
		return c.Next()
	}
}

// checkMember returns a *fiber.Error when userID may not act in roomID.
func checkMember(ctx context.Context, members membership.Directory, timeout time.Duration, roomID domain.RoomID, userID domain.UserID) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := members.IsMember(ctx, roomID, userID)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).
			Stringer("room", roomID).
			Msg("membership check failed")
		return fiber.NewError(fiber.StatusServiceUnavailable, "membership unavailable")
	}
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "not a member of this room")
	}
	return nil
}

func identityFrom(c *fiber.Ctx) domain.Identity {
	identity, _ := c.Locals(localIdentity).(domain.Identity)
	return identity
}

func roomFrom(c *fiber.Ctx) domain.RoomID {
	roomID, _ := c.Locals(localRoom).(domain.RoomID)
	return roomID
}
