package presence

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter implements Store over the presence module's services.
type Adapter struct {
	container mono.ServiceContainer
}

var _ Store = (*Adapter)(nil)

// NewAdapter creates an Adapter from the presence module's ServiceContainer.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("presence: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

func (a *Adapter) MarkOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	var resp MarkResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMarkOnline,
		json.Marshal,
		json.Unmarshal,
		&MarkRequest{RoomID: roomID, UserID: userID},
		&resp,
	); err != nil {
		return fmt.Errorf("failed to mark online: %w", err)
	}
	return nil
}

func (a *Adapter) MarkOffline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	var resp MarkResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMarkOffline,
		json.Marshal,
		json.Unmarshal,
		&MarkRequest{RoomID: roomID, UserID: userID},
		&resp,
	); err != nil {
		return fmt.Errorf("failed to mark offline: %w", err)
	}
	return nil
}

func (a *Adapter) IsOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	var resp IsOnlineResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceIsOnline,
		json.Marshal,
		json.Unmarshal,
		&MarkRequest{RoomID: roomID, UserID: userID},
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return resp.Online, nil
}

func (a *Adapter) Snapshot(ctx context.Context, roomID domain.RoomID, userIDs []domain.UserID) ([]domain.PresenceStatus, error) {
	var resp SnapshotResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSnapshot,
		json.Marshal,
		json.Unmarshal,
		&SnapshotRequest{RoomID: roomID, UserIDs: userIDs},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to read presence snapshot: %w", err)
	}
	return resp.Statuses, nil
}

func (a *Adapter) Sweep(ctx context.Context) ([]domain.RoomID, error) {
	var resp SweepResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSweep,
		json.Marshal,
		json.Unmarshal,
		&SweepRequest{},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to sweep presence: %w", err)
	}
	return resp.Rooms, nil
}
