package domain

import (
	"context"
	"time"
)

// UserRecord is one row of the local user directory.
type UserRecord struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	InvitedBy string `json:"invited_by"`
	Intro     string `json:"intro"`
	ID        string `json:"id"`
	IsActive  bool   `json:"is_active"`
	// MatrixID is set for accounts provisioned by the welcome bot. It lives in
	// provider attributes and is not part of the snapshot.
	MatrixID string `json:"matrix_id,omitempty"`
}

// NewUser carries the fields needed to create an account at the identity provider.
type NewUser struct {
	Username  string
	FullName  string
	Email     string
	InvitedBy string
	Intro     string
	MatrixID  string
}

// Invite is an enrollment invitation issued by the identity provider.
type Invite struct {
	ID      string    `json:"id"`
	Label   string    `json:"label"`
	Link    string    `json:"link"`
	Expires time.Time `json:"expires"`
}

// UserLister returns the complete user listing of the identity provider.
type UserLister interface {
	ListAllUsers(ctx context.Context) ([]UserRecord, error)
}

// IdentityProvider defines the contract with the upstream identity provider.
type IdentityProvider interface {
	UserLister
	SearchUsers(ctx context.Context, query string) ([]UserRecord, error)
	FindByAttribute(ctx context.Context, key, value string) ([]UserRecord, error)
	CreateUser(ctx context.Context, user NewUser) (*UserRecord, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetPassword(ctx context.Context, id, password string) error
	DeleteUser(ctx context.Context, id string) error
	UpdateAttributes(ctx context.Context, id string, attrs map[string]string) error
	RecoveryLink(ctx context.Context, id string) (string, error)
	CreateInvite(ctx context.Context, label string, expires time.Time) (*Invite, error)
}

// URLShortener turns long links into short ones.
type URLShortener interface {
	Shorten(ctx context.Context, longURL, kind, title string) (string, error)
}

// DirectoryCache is the local, eventually refreshed mirror of provider users.
type DirectoryCache interface {
	Refresh(ctx context.Context) error
	Exists(username string) bool
	Find(query string) []UserRecord
	Get(username string) (UserRecord, bool)
	All() []UserRecord
	Upsert(ctx context.Context, record UserRecord) error
	Remove(ctx context.Context, username string) error
}

// UsernameResolver derives and disambiguates usernames.
type UsernameResolver interface {
	ResolveUnique(ctx context.Context, base string) Resolution
}

// Resolution is the outcome of a unique-username search.
type Resolution struct {
	Username string `json:"username"`
	// Stale is set when the directory could not be refreshed and the name was
	// chosen against the previous snapshot.
	Stale  bool `json:"stale"`
	Probes int  `json:"probes"`
}

// EventNotifier announces account events to external systems. Delivery
// problems are the notifier's to log; they never fail the caller.
type EventNotifier interface {
	Notify(ctx context.Context, event string, data map[string]any)
}

// Account event names shared by the notifier and its settings toggles.
const (
	EventUserCreated   = "user_created"
	EventPasswordReset = "password_reset"
)
