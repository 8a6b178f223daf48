package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authentik-admin/internal/domain"
	"authentik-admin/internal/metrics"
	"authentik-admin/internal/resolver"

	"github.com/sirupsen/logrus"
)

const (
	tagFirstLogin = "first-login"
	tagRecovery   = "recovery"

	defaultOrigin = "admin"

	attrMatrixID = "matrix_id"
)

var _ domain.AccountUseCase = (*AccountUseCase)(nil)

// AccountOptions carries deployment details used in generated accounts and texts.
type AccountOptions struct {
	// BaseDomain builds the default email, <username>@BaseDomain.
	BaseDomain string
	LoginURL   string
}

// AccountUseCase implements account administration on top of the identity
// provider and the local directory.
type AccountUseCase struct {
	provider   domain.IdentityProvider
	shortener  domain.URLShortener
	cache      domain.DirectoryCache
	names      domain.UsernameResolver
	notifier   domain.EventNotifier
	messages   *Messages
	baseDomain string
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	provider domain.IdentityProvider,
	shortener domain.URLShortener,
	cache domain.DirectoryCache,
	names domain.UsernameResolver,
	notifier domain.EventNotifier,
	opts AccountOptions,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		provider:   provider,
		shortener:  shortener,
		cache:      cache,
		names:      names,
		notifier:   notifier,
		messages:   NewMessages(opts.LoginURL),
		baseDomain: opts.BaseDomain,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// CreateAccount provisions a user under a unique username. Failures after a
// successful create (cache write, message rendering) are returned together
// with the result.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, req domain.AccountRequest) (*domain.AccountResult, error) {
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" && last == "" {
		return nil, domain.ErrNameRequired
	}
	origin := req.Origin
	if origin == "" {
		origin = defaultOrigin
	}

	matrixID := strings.TrimSpace(req.MatrixID)
	if matrixID != "" {
		linked, err := uc.provider.FindByAttribute(ctx, attrMatrixID, matrixID)
		if err != nil {
			return nil, fmt.Errorf("failed to check accounts of %s: %w", matrixID, err)
		}
		if len(linked) > 0 {
			return nil, fmt.Errorf("%w: %s is linked to %s", domain.ErrAccountExists, matrixID, linked[0].Username)
		}
	}

	base := normalizeUsername(req.Username)
	if base == "" {
		base = resolver.DeriveBase(first, last)
	}
	res := uc.names.ResolveUnique(ctx, base)
	log := uc.logger.WithFields(logrus.Fields{"username": res.Username, "origin": origin})
	if res.Stale {
		log.Warn("Username chosen against a stale directory")
	}
	if res.Username != base {
		log.WithField("requested", base).Info("Requested username taken, using a suffixed one")
	}

	email := strings.TrimSpace(req.Email)
	if email == "" && uc.baseDomain != "" {
		email = res.Username + "@" + uc.baseDomain
	}

	created, err := uc.provider.CreateUser(ctx, domain.NewUser{
		Username:  res.Username,
		FullName:  strings.TrimSpace(first + " " + last),
		Email:     email,
		InvitedBy: strings.TrimSpace(req.InvitedBy),
		Intro:     strings.TrimSpace(req.Intro),
		MatrixID:  matrixID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", res.Username, err)
	}
	if created.Username == "" {
		created.Username = res.Username
	}
	uc.metrics.AccountCreated(origin)
	log.WithField("id", created.ID).Info("User created")

	persistErr := uc.cache.Upsert(ctx, *created)
	if persistErr != nil {
		log.WithError(persistErr).Error("Failed to record new user locally")
	}

	result := &domain.AccountResult{User: created, Stale: res.Stale}
	if link, err := uc.provider.RecoveryLink(ctx, created.ID); err != nil {
		log.WithError(err).Warn("Failed to generate first-login link")
	} else {
		result.RecoveryLink = uc.shorten(ctx, link, tagFirstLogin, created.Username)
	}

	msg, renderErr := uc.messages.Welcome(created.Username, result.RecoveryLink)
	if renderErr != nil {
		log.WithError(renderErr).Error("Failed to render welcome message")
	}
	result.Message = msg

	uc.notifier.Notify(ctx, domain.EventUserCreated, map[string]any{
		"username":   created.Username,
		"full_name":  created.FullName,
		"email":      created.Email,
		"invited_by": created.InvitedBy,
		"intro":      created.Intro,
		"origin":     origin,
	})

	// The account exists upstream, so the result is returned with any
	// follow-up failure.
	if err := errors.Join(persistErr, renderErr); err != nil {
		return result, err
	}
	return result, nil
}

// RecoveryLink issues a shortened password recovery link for username.
func (uc *AccountUseCase) RecoveryLink(ctx context.Context, username string) (*domain.RecoveryResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrUsernameRequired
	}

	rec, err := uc.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	link, err := uc.provider.RecoveryLink(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recovery link for %s: %w", rec.Username, err)
	}
	short := uc.shorten(ctx, link, tagRecovery, rec.Username)

	msg, err := uc.messages.Recovery(rec.Username, short)
	if err != nil {
		return nil, err
	}

	uc.notifier.Notify(ctx, domain.EventPasswordReset, map[string]any{
		"username": rec.Username,
		"email":    rec.Email,
	})
	return &domain.RecoveryResult{Username: rec.Username, Link: short, Message: msg}, nil
}

func (uc *AccountUseCase) CreateInvite(ctx context.Context, label string, expires time.Time) (*domain.InviteResult, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, domain.ErrInviteLabelRequired
	}
	if !expires.After(uc.now()) {
		return nil, domain.ErrInviteExpiryInvalid
	}

	invite, err := uc.provider.CreateInvite(ctx, label, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite %q: %w", label, err)
	}
	msg, err := uc.messages.Invite(invite.Label, invite.Link, invite.Expires)
	if err != nil {
		return nil, err
	}
	uc.logger.WithFields(logrus.Fields{"label": label, "expires": invite.Expires}).Info("Invite created")
	return &domain.InviteResult{Invite: invite, Message: msg}, nil
}

// SearchUsers answers from the local directory first and asks the provider
// only when nothing matched locally.
func (uc *AccountUseCase) SearchUsers(ctx context.Context, query string) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrQueryRequired
	}

	if local := uc.cache.Find(query); len(local) > 0 {
		return &domain.SearchResult{Users: local, Source: domain.SourceLocal}, nil
	}

	remote, err := uc.provider.SearchUsers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	if len(remote) == 0 {
		return &domain.SearchResult{Users: []domain.UserRecord{}, Source: domain.SourceNone}, nil
	}
	return &domain.SearchResult{Users: remote, Source: domain.SourceProvider}, nil
}

// ApplyAction runs req.Action for every selected user and mirrors each
// confirmed change into the directory.
func (uc *AccountUseCase) ApplyAction(ctx context.Context, req domain.ActionRequest) (*domain.ActionResult, error) {
	switch req.Action {
	case domain.ActionActivate, domain.ActionDeactivate, domain.ActionDelete,
		domain.ActionSetIntro, domain.ActionSetInvitedBy:
	case domain.ActionResetPassword:
		if req.Password == "" {
			return nil, domain.ErrPasswordRequired
		}
	default:
		return nil, domain.ErrUnknownAction
	}
	if len(req.Usernames) == 0 {
		return nil, domain.ErrNoUsersSelected
	}

	result := &domain.ActionResult{
		Action:   req.Action,
		Total:    len(req.Usernames),
		Outcomes: make([]domain.ActionOutcome, 0, len(req.Usernames)),
	}
	for _, username := range req.Usernames {
		outcome := domain.ActionOutcome{Username: username, OK: true}
		if err := uc.applyOne(ctx, req, username); err != nil {
			outcome.OK = false
			outcome.Error = err.Error()
			uc.logger.WithError(err).WithFields(logrus.Fields{
				"action":   req.Action,
				"username": username,
			}).Warn("User action failed")
		} else {
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	uc.logger.WithFields(logrus.Fields{
		"action":    req.Action,
		"succeeded": result.Succeeded,
		"total":     result.Total,
	}).Info("User action applied")
	return result, nil
}

func (uc *AccountUseCase) applyOne(ctx context.Context, req domain.ActionRequest, username string) error {
	rec, err := uc.lookup(ctx, username)
	if err != nil {
		return err
	}

	switch req.Action {
	case domain.ActionActivate, domain.ActionDeactivate:
		active := req.Action == domain.ActionActivate
		if err := uc.provider.SetActive(ctx, rec.ID, active); err != nil {
			return err
		}
		rec.IsActive = active
	case domain.ActionResetPassword:
		return uc.provider.SetPassword(ctx, rec.ID, req.Password)
	case domain.ActionDelete:
		if err := uc.provider.DeleteUser(ctx, rec.ID); err != nil {
			return err
		}
		return uc.cache.Remove(ctx, rec.Username)
	case domain.ActionSetIntro:
		if err := uc.provider.UpdateAttributes(ctx, rec.ID, map[string]string{"intro": req.Intro}); err != nil {
			return err
		}
		rec.Intro = req.Intro
	case domain.ActionSetInvitedBy:
		if err := uc.provider.UpdateAttributes(ctx, rec.ID, map[string]string{"invited_by": req.InvitedBy}); err != nil {
			return err
		}
		rec.InvitedBy = req.InvitedBy
	}
	return uc.cache.Upsert(ctx, rec)
}

// RefreshDirectory reloads the directory from the provider and returns its size.
func (uc *AccountUseCase) RefreshDirectory(ctx context.Context) (int, error) {
	if err := uc.cache.Refresh(ctx); err != nil {
		return 0, err
	}
	n := len(uc.cache.All())
	uc.logger.WithField("records", n).Info("Directory refreshed")
	return n, nil
}

func (uc *AccountUseCase) SuggestUsername(ctx context.Context, firstName, lastName string) domain.Resolution {
	return uc.names.ResolveUnique(ctx, resolver.DeriveBase(firstName, lastName))
}

// lookup finds the provider record for username, first locally and then
// through provider search. Provider hits are mirrored into the directory.
func (uc *AccountUseCase) lookup(ctx context.Context, username string) (domain.UserRecord, error) {
	if rec, ok := uc.cache.Get(username); ok && rec.ID != "" {
		return rec, nil
	}

	found, err := uc.provider.SearchUsers(ctx, username)
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("failed to look up %s: %w", username, err)
	}
	for _, rec := range found {
		if !strings.EqualFold(rec.Username, username) {
			continue
		}
		if rec.ID == "" {
			return domain.UserRecord{}, fmt.Errorf("%s: %w", username, domain.ErrUserMissingID)
		}
		if err := uc.cache.Upsert(ctx, rec); err != nil {
			uc.logger.WithError(err).WithField("username", rec.Username).Warn("Failed to mirror provider user locally")
		}
		return rec, nil
	}
	return domain.UserRecord{}, fmt.Errorf("%s: %w", username, domain.ErrUserNotFound)
}

// shorten returns the short link, or the long one when shortening fails.
func (uc *AccountUseCase) shorten(ctx context.Context, link, kind, title string) string {
	if uc.shortener == nil {
		return link
	}
	short, err := uc.shortener.Shorten(ctx, link, kind, title)
	if err != nil {
		level := logrus.WarnLevel
		if !errors.Is(err, domain.ErrShortenFailed) {
			level = logrus.ErrorLevel
		}
		uc.logger.WithError(err).WithField("kind", kind).Log(level, "Using unshortened link")
		return link
	}
	return short
}

func normalizeUsername(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
