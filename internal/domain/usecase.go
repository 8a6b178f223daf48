package domain

import (
	"context"
	"time"
)

// AccountRequest describes an account to be provisioned.
type AccountRequest struct {
	FirstName string
	LastName  string
	// Username overrides the derived base when the operator edited it.
	Username  string
	Email     string
	InvitedBy string
	Intro     string
	// Origin labels metrics and logs, e.g. "admin" or "bot".
	Origin string
	// MatrixID links the account to a Matrix user. At most one account is
	// created per Matrix ID.
	MatrixID string
}

// AccountResult is returned after an account was provisioned.
type AccountResult struct {
	User *UserRecord
	// Stale means the username was chosen while the directory could not be refreshed.
	Stale        bool
	RecoveryLink string
	Message      string
}

// RecoveryResult holds a generated recovery link for an existing user.
type RecoveryResult struct {
	Username string
	Link     string
	Message  string
}

// InviteResult holds a generated invitation.
type InviteResult struct {
	Invite  *Invite
	Message string
}

// SearchSource tells where search results came from.
type SearchSource string

const (
	SourceLocal    SearchSource = "local"
	SourceProvider SearchSource = "provider"
	SourceNone     SearchSource = "none"
)

// SearchResult holds users matching a query.
type SearchResult struct {
	Users  []UserRecord
	Source SearchSource
}

// UserAction is a bulk operation applied to selected users.
type UserAction string

const (
	ActionActivate      UserAction = "activate"
	ActionDeactivate    UserAction = "deactivate"
	ActionResetPassword UserAction = "reset_password"
	ActionDelete        UserAction = "delete"
	ActionSetIntro      UserAction = "set_intro"
	ActionSetInvitedBy  UserAction = "set_invited_by"
)

// ActionRequest applies Action to every user in Usernames.
type ActionRequest struct {
	Action    UserAction
	Usernames []string
	Password  string
	Intro     string
	InvitedBy string
}

// ActionOutcome is the per-user result of a bulk action.
type ActionOutcome struct {
	Username string `json:"username"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// ActionResult summarises a bulk action.
type ActionResult struct {
	Action    UserAction
	Succeeded int
	Total     int
	Outcomes  []ActionOutcome
}

// AccountUseCase defines account administration.
type AccountUseCase interface {
	CreateAccount(ctx context.Context, req AccountRequest) (*AccountResult, error)
	RecoveryLink(ctx context.Context, username string) (*RecoveryResult, error)
	CreateInvite(ctx context.Context, label string, expires time.Time) (*InviteResult, error)
	SearchUsers(ctx context.Context, query string) (*SearchResult, error)
	ApplyAction(ctx context.Context, req ActionRequest) (*ActionResult, error)
	RefreshDirectory(ctx context.Context) (int, error)
	SuggestUsername(ctx context.Context, firstName, lastName string) Resolution
}
