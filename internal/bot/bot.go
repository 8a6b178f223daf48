// Package bot provisions an account for every member that joins one of the
// watched Matrix rooms and sends them their welcome message in a direct room.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"authentik-admin/internal/domain"
	"authentik-admin/internal/matrix"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRestartDelay = 5 * time.Second

	syncTimeout = 30 * time.Second
	seenSize    = 4096
	seenTTL     = 7 * 24 * time.Hour

	welcomeRoomName  = "Welcome"
	welcomeRoomTopic = "Your account information"
)

// Homeserver is the part of the Matrix API the bot uses.
type Homeserver interface {
	WhoAmI(ctx context.Context) (string, error)
	JoinRoom(ctx context.Context, roomID string) error
	Sync(ctx context.Context, since string, timeout time.Duration) (*matrix.SyncResponse, error)
	DisplayName(ctx context.Context, userID string) (string, error)
	CreateDirectRoom(ctx context.Context, userID, name, topic string) (string, error)
	SendText(ctx context.Context, roomID, text string) error
}

// Provisioner creates accounts.
type Provisioner interface {
	CreateAccount(ctx context.Context, req domain.AccountRequest) (*domain.AccountResult, error)
}

type Bot struct {
	hs       Homeserver
	accounts Provisioner
	rooms    map[string]struct{}
	logger   *logrus.Logger

	// seen holds Matrix IDs that were already provisioned or skipped.
	seen *lru.LRU[string, struct{}]

	userID string
	// since is the last processed sync position. It survives restarts of the
	// sync loop so joins during an outage are still seen.
	since        string
	RestartDelay time.Duration
}

func New(hs Homeserver, accounts Provisioner, roomIDs []string, logger *logrus.Logger) *Bot {
	rooms := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		rooms[id] = struct{}{}
	}
	return &Bot{
		hs:           hs,
		accounts:     accounts,
		rooms:        rooms,
		logger:       logger,
		seen:         lru.NewLRU[string, struct{}](seenSize, nil, seenTTL),
		RestartDelay: DefaultRestartDelay,
	}
}

// Run keeps the bot syncing until ctx ends, restarting after RestartDelay
// whenever the sync loop fails.
func (b *Bot) Run(ctx context.Context) error {
	for {
		err := b.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		b.logger.WithError(err).WithField("retry_in", b.RestartDelay).Error("Bot stopped, restarting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.RestartDelay):
		}
	}
}

func (b *Bot) runOnce(ctx context.Context) error {
	me, err := b.hs.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}
	b.userID = me

	for roomID := range b.rooms {
		if err := b.hs.JoinRoom(ctx, roomID); err != nil {
			b.logger.WithError(err).WithField("room", roomID).Warn("Failed to join room")
			continue
		}
		b.logger.WithField("room", roomID).Info("Joined room")
	}

	// The first sync only establishes a position; members already present
	// are not provisioned.
	if b.since == "" {
		resp, err := b.hs.Sync(ctx, "", 0)
		if err != nil {
			return fmt.Errorf("initial sync: %w", err)
		}
		b.since = resp.NextBatch
	}

	for {
		resp, err := b.hs.Sync(ctx, b.since, syncTimeout)
		if err != nil {
			return fmt.Errorf("sync from %s: %w", b.since, err)
		}
		b.HandleSync(ctx, resp)
		b.since = resp.NextBatch
	}
}

// HandleSync provisions every new member found in resp.
func (b *Bot) HandleSync(ctx context.Context, resp *matrix.SyncResponse) {
	for roomID, room := range resp.Rooms.Join {
		if _, watched := b.rooms[roomID]; !watched {
			continue
		}
		for _, ev := range room.Timeline.Events {
			userID, displayName, ok := b.newMember(ev)
			if !ok {
				continue
			}
			if err := b.Provision(ctx, userID, displayName); err != nil {
				b.logger.WithError(err).WithFields(logrus.Fields{
					"room":   roomID,
					"member": userID,
				}).Error("Failed to provision member")
			}
		}
	}
}

// newMember reports whether ev is a fresh join by someone else.
func (b *Bot) newMember(ev matrix.Event) (string, string, bool) {
	if ev.Type != "m.room.member" || ev.StateKey == nil {
		return "", "", false
	}
	userID := *ev.StateKey
	if userID == "" || userID == b.userID || ev.Sender != userID {
		return "", "", false
	}

	var content matrix.MemberContent
	if err := json.Unmarshal(ev.Content, &content); err != nil || content.Membership != "join" {
		return "", "", false
	}
	if len(ev.Unsigned.PrevContent) > 0 {
		var prev matrix.MemberContent
		if err := json.Unmarshal(ev.Unsigned.PrevContent, &prev); err == nil && prev.Membership == "join" {
			// Profile change, not a join.
			return "", "", false
		}
	}
	return userID, content.DisplayName, true
}

// Provision creates an account for userID and sends the welcome message.
// Members provisioned recently are skipped.
func (b *Bot) Provision(ctx context.Context, userID, displayName string) error {
	if b.seen.Contains(userID) {
		return nil
	}

	if displayName == "" {
		name, err := b.hs.DisplayName(ctx, userID)
		if err != nil {
			b.logger.WithError(err).WithField("member", userID).Warn("Failed to get display name")
		}
		displayName = name
	}
	first, last := NameParts(displayName, userID)
	if first == "" && last == "" {
		b.seen.Add(userID, struct{}{})
		return fmt.Errorf("no usable name for %s", userID)
	}

	result, err := b.accounts.CreateAccount(ctx, domain.AccountRequest{
		FirstName: first,
		LastName:  last,
		Origin:    "bot",
		MatrixID:  userID,
	})
	if errors.Is(err, domain.ErrAccountExists) {
		b.seen.Add(userID, struct{}{})
		b.logger.WithError(err).WithField("member", userID).Info("Member already has an account")
		return nil
	}
	if result == nil {
		return fmt.Errorf("create account: %w", err)
	}
	b.seen.Add(userID, struct{}{})

	log := b.logger.WithFields(logrus.Fields{"member": userID, "username": result.User.Username})
	if err != nil {
		log.WithError(err).Warn("Account created with follow-up failures")
	}
	if result.Stale {
		log.Warn("Username chosen against a stale directory")
	}
	if result.Message == "" {
		return fmt.Errorf("no welcome message for %s", result.User.Username)
	}

	roomID, err := b.hs.CreateDirectRoom(ctx, userID, welcomeRoomName, welcomeRoomTopic)
	if err != nil {
		return fmt.Errorf("create welcome room: %w", err)
	}
	if err := b.hs.SendText(ctx, roomID, result.Message); err != nil {
		return fmt.Errorf("send welcome message: %w", err)
	}
	log.WithField("room", roomID).Info("Sent welcome message")
	return nil
}

// NameParts splits a display name into first and last name. Without a display
// name it falls back to the localpart of userID after its first underscore,
// so "@signal_alice:example.org" yields "alice".
func NameParts(displayName, userID string) (string, string) {
	if fields := strings.Fields(displayName); len(fields) > 0 {
		if len(fields) == 1 {
			return fields[0], ""
		}
		return fields[0], fields[1]
	}

	local := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(local, ':'); i >= 0 {
		local = local[:i]
	}
	if i := strings.IndexByte(local, '_'); i >= 0 {
		local = local[i+1:]
	}
	return local, ""
}
