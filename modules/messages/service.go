package messages

import (
	"context"

	"github.com/go-monolith/mono"
)

func (m *Module) handleAppend(ctx context.Context, req AppendRequest, _ *mono.Msg) (AppendResponse, error) {
	msg, err := m.store.Append(ctx, req.RoomID, req.UserID, req.Text)
	if err != nil {
		return AppendResponse{}, err
	}
	return AppendResponse{Message: *msg}, nil
}

func (m *Module) handleRecent(ctx context.Context, req RecentRequest, _ *mono.Msg) (RecentResponse, error) {
	msgs, err := m.store.Recent(ctx, req.RoomID, req.Limit)
	if err != nil {
		return RecentResponse{}, err
	}
	return RecentResponse{Messages: msgs}, nil
}
