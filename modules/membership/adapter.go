package membership

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter implements Directory over the membership module's services.
type Adapter struct {
	container mono.ServiceContainer
}

var _ Directory = (*Adapter)(nil)

// NewAdapter creates an Adapter from the membership module's ServiceContainer.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("membership: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Members calls services.membership.members.
func (a *Adapter) Members(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	req := MembersRequest{RoomID: roomID}
	var resp MembersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMembers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	return resp.Members, nil
}

// IsMember calls services.membership.is-member.
func (a *Adapter) IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	req := IsMemberRequest{RoomID: roomID, UserID: userID}
	var resp IsMemberResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceIsMember,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return resp.Member, nil
}

// Profile calls services.membership.profile.
func (a *Adapter) Profile(ctx context.Context, userID domain.UserID) (*domain.Member, error) {
	req := ProfileRequest{UserID: userID}
	var resp ProfileResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceProfile,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if !resp.Found {
		return nil, ErrUserNotFound
	}
	return resp.Profile, nil
}
