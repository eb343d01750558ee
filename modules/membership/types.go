package membership

import domain "github.com/example/groupchat-realtime/domain/groupchat"

// Service names, prefixed by the framework with "services.membership.".
const (
	ServiceMembers  = "members"
	ServiceIsMember = "is-member"
	ServiceProfile  = "profile"
)

// MembersRequest is the request for members.
type MembersRequest struct {
	RoomID domain.RoomID `json:"room_id"`
}

// MembersResponse is the response for members.
type MembersResponse struct {
	Members []domain.Member `json:"members"`
}

// IsMemberRequest is the request for is-member.
type IsMemberRequest struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
}

// IsMemberResponse is the response for is-member.
type IsMemberResponse struct {
	Member bool `json:"member"`
}

// ProfileRequest is the request for profile.
type ProfileRequest struct {
	UserID domain.UserID `json:"user_id"`
}

// ProfileResponse is the response for profile.
type ProfileResponse struct {
	Found   bool           `json:"found"`
	Profile *domain.Member `json:"profile,omitempty"`
}
