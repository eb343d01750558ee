package presence

import (
	"context"

	"github.com/go-monolith/mono"
)

func (m *Module) handleMarkOnline(ctx context.Context, req MarkRequest, _ *mono.Msg) (MarkResponse, error) {
	if err := m.store.MarkOnline(ctx, req.RoomID, req.UserID); err != nil {
		return MarkResponse{}, err
	}
	return MarkResponse{Success: true}, nil
}

func (m *Module) handleMarkOffline(ctx context.Context, req MarkRequest, _ *mono.Msg) (MarkResponse, error) {
	if err := m.store.MarkOffline(ctx, req.RoomID, req.UserID); err != nil {
		return MarkResponse{}, err
	}
	return MarkResponse{Success: true}, nil
}

func (m *Module) handleIsOnline(ctx context.Context, req MarkRequest, _ *mono.Msg) (IsOnlineResponse, error) {
	online, err := m.store.IsOnline(ctx, req.RoomID, req.UserID)
	if err != nil {
		return IsOnlineResponse{}, err
	}
	return IsOnlineResponse{Online: online}, nil
}

func (m *Module) handleSnapshot(ctx context.Context, req SnapshotRequest, _ *mono.Msg) (SnapshotResponse, error) {
	statuses, err := m.store.Snapshot(ctx, req.RoomID, req.UserIDs)
	if err != nil {
		return SnapshotResponse{}, err
	}
	return SnapshotResponse{Statuses: statuses}, nil
}

func (m *Module) handleSweep(ctx context.Context, _ SweepRequest, _ *mono.Msg) (SweepResponse, error) {
	rooms, err := m.store.Sweep(ctx)
	if err != nil {
		return SweepResponse{}, err
	}
	return SweepResponse{Rooms: rooms}, nil
}
