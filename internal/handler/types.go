package handler

import (
	"time"

	"authentik-admin/internal/domain"
)

type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	InvitedBy string `json:"invited_by"`
	Intro     string `json:"intro"`
}

type UserActionRequest struct {
	Action    domain.UserAction `json:"action"`
	Usernames []string          `json:"usernames"`
	Password  string            `json:"password,omitempty"`
	Intro     string            `json:"intro,omitempty"`
	InvitedBy string            `json:"invited_by,omitempty"`
}

type RecoveryRequest struct {
	Username string `json:"username"`
}

type InviteRequest struct {
	Label   string    `json:"label"`
	Expires time.Time `json:"expires"`
}

type SearchUsersParams struct {
	Q string `form:"q" json:"q"`
}

type UsernameParams struct {
	First *string `form:"first,omitempty" json:"first,omitempty"`
	Last  *string `form:"last,omitempty" json:"last,omitempty"`
}
