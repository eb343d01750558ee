package messages

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter implements Store over the messages module's services.
type Adapter struct {
	container mono.ServiceContainer
}

var _ Store = (*Adapter)(nil)

// NewAdapter creates an Adapter. container is the messages module's
// ServiceContainer received via SetDependencyServiceContainer.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("messages: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Append calls services.messages.append.
func (a *Adapter) Append(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error) {
	req := AppendRequest{RoomID: roomID, UserID: userID, Text: text}
	var resp AppendResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceAppend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &resp.Message, nil
}

// Recent calls services.messages.recent.
func (a *Adapter) Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	req := RecentRequest{RoomID: roomID, Limit: limit}
	var resp RecentResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRecent,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return resp.Messages, nil
}
