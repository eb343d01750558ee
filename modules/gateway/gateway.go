package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/groupchat-realtime/config"
	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/events"
	"github.com/example/groupchat-realtime/modules/broadcast"
	"github.com/example/groupchat-realtime/modules/membership"
	"github.com/example/groupchat-realtime/modules/messages"
	"github.com/example/groupchat-realtime/modules/presence"
	"github.com/rs/zerolog/log"
)

// Error texts echoed to the sending client only.
const (
	errTextEmpty       = "message cannot be empty"
	errTextTooLong     = "message too long"
	errTextInvalid     = "message contains invalid characters"
	errTextRateLimited = "rate limit exceeded"
	errTextSendFailed  = "failed to send message"
	errTextRefresh     = "failed to refresh presence"
)

// Registry is the part of the hub a gateway needs.
type Registry interface {
	Join(roomID domain.RoomID, sub broadcast.Subscriber)
	Leave(roomID domain.RoomID, subscriberID string)
	Subscribers(roomID domain.RoomID) []broadcast.Subscriber
}

// Options tunes the gateway and its connections.
type Options struct {
	StoreTimeout       time.Duration
	HistoryLimit       int
	SendBuffer         int
	RateLimitBurst     int
	RateLimitPerSecond int
	RefreshBurst       int
	RefreshPerSecond   int
	HeartbeatWindow    time.Duration
	PingInterval       time.Duration
	WriteTimeout       time.Duration
}

// OptionsFromConfig copies the gateway settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StoreTimeout:       cfg.StoreTimeout,
		HistoryLimit:       cfg.HistoryLimit,
		SendBuffer:         cfg.SendBuffer,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RefreshBurst:       cfg.RefreshBurst,
		RefreshPerSecond:   cfg.RefreshRatePerSecond,
		HeartbeatWindow:    cfg.HeartbeatWindow,
		PingInterval:       cfg.PingInterval,
		WriteTimeout:       cfg.WriteTimeout,
	}
}

// inboundFrame is what clients send: a chat message or a presence refresh.
type inboundFrame struct {
	Message     *string `json:"message"`
	RefreshUser *bool   `json:"refresh_user"`
}

// Gateway drives the lifecycle of connections independent of the transport.
type Gateway struct {
	messages messages.Store
	presence presence.Store
	members  membership.Directory
	registry Registry
	notifier broadcast.Notifier
	opts     Options
}

// NewGateway creates a Gateway.
func NewGateway(
	messageStore messages.Store,
	presenceStore presence.Store,
	members membership.Directory,
	registry Registry,
	notifier broadcast.Notifier,
	opts Options,
) *Gateway {
	return &Gateway{
		messages: messageStore,
		presence: presenceStore,
		members:  members,
		registry: registry,
		notifier: notifier,
		opts:     opts,
	}
}

// Connect registers an authenticated member's connection, announces it and
// sends the recent history to that connection only.
func (g *Gateway) Connect(ctx context.Context, c *Connection) {
	if profile, err := g.profile(ctx, c.identity.UserID); err == nil {
		c.profile = *profile
	}

	g.registry.Join(c.roomID, c)

	if err := g.markOnline(ctx, c.roomID, c.identity.UserID); err != nil {
		log.Warn().Err(err).Str("module", moduleName).
			Stringer("room", c.roomID).
			Stringer("user", c.identity.UserID).
			Msg("mark online on connect failed")
	}
	g.presenceChanged(ctx, c.roomID)

	if err := g.sendHistory(ctx, c); err != nil {
		log.Warn().Err(err).Str("module", moduleName).
			Stringer("room", c.roomID).
			Str("conn", c.id).
			Msg("history not sent")
	}

	log.Info().Str("module", moduleName).
		Stringer("room", c.roomID).
		Str("username", c.identity.Username).
		Str("conn", c.id).
		Msg("client connected")
}

// HandleFrame processes one inbound text frame. Malformed frames are dropped
// and the connection stays open.
func (g *Gateway) HandleFrame(ctx context.Context, c *Connection, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Debug().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("malformed frame dropped")
		return
	}

	switch {
	case frame.Message != nil:
		g.handleChat(ctx, c, *frame.Message)
	case frame.RefreshUser != nil && *frame.RefreshUser:
		g.handleRefresh(ctx, c)
	default:
		log.Debug().Str("module", moduleName).Str("conn", c.id).Msg("frame without message or refresh_user dropped")
	}
}

func (g *Gateway) handleChat(ctx context.Context, c *Connection, text string) {
	if !c.limiter.allow() {
		g.echoError(c, errTextRateLimited)
		return
	}

	text, err := messages.ValidateText(text)
	if err != nil {
		g.echoError(c, validationText(err))
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()
	msg, err := g.messages.Append(storeCtx, c.roomID, c.identity.UserID, text)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).
			Stringer("room", c.roomID).
			Stringer("user", c.identity.UserID).
			Msg("append failed")
		g.echoError(c, errTextSendFailed)
		return
	}

	event := events.MessageAppendedEvent{
		MessageID:      msg.ID,
		RoomID:         msg.RoomID,
		UserID:         msg.UserID,
		Username:       c.profile.Username,
		ProfilePicture: c.profile.ProfilePicture,
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
	}
	if err := g.notifier.MessageAppended(ctx, event); err != nil {
		log.Error().Err(err).Str("module", moduleName).
			Int64("message_id", msg.ID).
			Msg("message stored but not broadcast")
	}
}

// handleRefresh always renews presence, but only refreshes within the
// connection's refresh budget fan a roster out to the room.
func (g *Gateway) handleRefresh(ctx context.Context, c *Connection) {
	if err := g.markOnline(ctx, c.roomID, c.identity.UserID); err != nil {
		log.Warn().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("refresh failed")
		g.echoError(c, errTextRefresh)
		return
	}
	if !c.refreshLimiter.allow() {
		log.Debug().Str("module", moduleName).Str("conn", c.id).Msg("refresh broadcast throttled")
		return
	}
	g.presenceChanged(ctx, c.roomID)
}

// Heartbeat refreshes presence after a pong. A snapshot is broadcast only
// when the user had lapsed to offline.
func (g *Gateway) Heartbeat(ctx context.Context, c *Connection) {
	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()

	wasOnline, err := g.presence.IsOnline(storeCtx, c.roomID, c.identity.UserID)
	if err != nil {
		wasOnline = true
	}
	if err := g.presence.MarkOnline(storeCtx, c.roomID, c.identity.UserID); err != nil {
		log.Warn().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("heartbeat refresh failed")
		return
	}
	if !wasOnline {
		g.presenceChanged(ctx, c.roomID)
	}
}

// Disconnect removes the connection and announces the departure. It runs
// after the read loop has returned.
func (g *Gateway) Disconnect(ctx context.Context, c *Connection) {
	g.registry.Leave(c.roomID, c.id)

	if g.stillConnected(c) {
		log.Info().Str("module", moduleName).
			Stringer("room", c.roomID).
			Str("username", c.identity.Username).
			Str("conn", c.id).
			Msg("client disconnected, user still connected elsewhere")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	err := g.presence.MarkOffline(storeCtx, c.roomID, c.identity.UserID)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("module", moduleName).
			Stringer("room", c.roomID).
			Stringer("user", c.identity.UserID).
			Msg("mark offline failed, entry will expire")
	}
	g.presenceChanged(ctx, c.roomID)

	log.Info().Str("module", moduleName).
		Stringer("room", c.roomID).
		Str("username", c.identity.Username).
		Str("conn", c.id).
		Msg("client disconnected")
}

// stillConnected reports whether the user of c holds another connection to
// the same room on this process.
func (g *Gateway) stillConnected(c *Connection) bool {
	for _, sub := range g.registry.Subscribers(c.roomID) {
		if other, ok := sub.(*Connection); ok && other.id != c.id && other.identity.UserID == c.identity.UserID {
			return true
		}
	}
	return false
}

// RefreshPresence is the HTTP fallback for clients that cannot hold a socket.
func (g *Gateway) RefreshPresence(ctx context.Context, roomID domain.RoomID, userID domain.UserID, active bool) error {
	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()

	var err error
	if active {
		err = g.presence.MarkOnline(storeCtx, roomID, userID)
	} else {
		err = g.presence.MarkOffline(storeCtx, roomID, userID)
	}
	if err != nil {
		return err
	}
	g.presenceChanged(ctx, roomID)
	return nil
}

// History returns the latest limit messages of a room, oldest first.
func (g *Gateway) History(ctx context.Context, roomID domain.RoomID, limit int) (broadcast.HistoryFrame, error) {
	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()

	recent, err := g.messages.Recent(storeCtx, roomID, limit)
	if err != nil {
		return broadcast.HistoryFrame{}, err
	}
	profiles, err := g.authorProfiles(storeCtx, roomID, recent)
	if err != nil {
		return broadcast.HistoryFrame{}, err
	}
	return broadcast.NewHistoryFrame(recent, profiles), nil
}

func (g *Gateway) sendHistory(ctx context.Context, c *Connection) error {
	frame, err := g.History(ctx, c.roomID, g.opts.HistoryLimit)
	if err != nil {
		return err
	}
	data, err := broadcast.Encode(frame)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// authorProfiles resolves the authors of msgs, looking up departed members
// one by one.
func (g *Gateway) authorProfiles(ctx context.Context, roomID domain.RoomID, msgs []domain.Message) (map[domain.UserID]domain.Member, error) {
	members, err := g.members.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	profiles := make(map[domain.UserID]domain.Member, len(members))
	for _, m := range members {
		profiles[m.UserID] = m
	}

	for _, msg := range msgs {
		if _, ok := profiles[msg.UserID]; ok {
			continue
		}
		profile, err := g.members.Profile(ctx, msg.UserID)
		if errors.Is(err, membership.ErrUserNotFound) {
			profiles[msg.UserID] = domain.Member{UserID: msg.UserID, ProfilePicture: domain.DefaultProfilePicture}
			continue
		}
		if err != nil {
			return nil, err
		}
		profiles[msg.UserID] = *profile
	}
	return profiles, nil
}

func (g *Gateway) profile(ctx context.Context, userID domain.UserID) (*domain.Member, error) {
	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()
	return g.members.Profile(storeCtx, userID)
}

func (g *Gateway) markOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	storeCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()
	return g.presence.MarkOnline(storeCtx, roomID, userID)
}

func (g *Gateway) presenceChanged(ctx context.Context, roomID domain.RoomID) {
	if err := g.notifier.PresenceChanged(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("module", moduleName).
			Stringer("room", roomID).
			Msg("presence snapshot not broadcast")
	}
}

func (g *Gateway) echoError(c *Connection, text string) {
	data, err := broadcast.Encode(broadcast.NewErrorFrame(text))
	if err != nil {
		return
	}
	if err := c.Send(data); err != nil {
		log.Debug().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("error frame not delivered")
	}
}

func validationText(err error) string {
	switch {
	case errors.Is(err, messages.ErrEmptyMessage):
		return errTextEmpty
	case errors.Is(err, messages.ErrMessageTooLong):
		return errTextTooLong
	default:
		return errTextInvalid
	}
}
