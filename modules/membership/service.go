package membership

import (
	"context"
	"errors"

	"github.com/go-monolith/mono"
)

func (m *Module) handleMembers(ctx context.Context, req MembersRequest, _ *mono.Msg) (MembersResponse, error) {
	members, err := m.directory.Members(ctx, req.RoomID)
	if err != nil {
		return MembersResponse{}, err
	}
	return MembersResponse{Members: members}, nil
}

func (m *Module) handleIsMember(ctx context.Context, req IsMemberRequest, _ *mono.Msg) (IsMemberResponse, error) {
	ok, err := m.directory.IsMember(ctx, req.RoomID, req.UserID)
	if err != nil {
		return IsMemberResponse{}, err
	}
	return IsMemberResponse{Member: ok}, nil
}

// handleProfile reports a missing user as Found=false so the caller can tell
// it apart from a transport failure.
func (m *Module) handleProfile(ctx context.Context, req ProfileRequest, _ *mono.Msg) (ProfileResponse, error) {
	profile, err := m.directory.Profile(ctx, req.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return ProfileResponse{Found: false}, nil
	}
	if err != nil {
		return ProfileResponse{}, err
	}
	return ProfileResponse{Found: true, Profile: profile}, nil
}
