// Package authentik is a client for the parts of the Authentik v3 REST API used
// to administer member accounts. Provider payloads are mapped to
// domain.UserRecord here and nowhere else.
package authentik

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"authentik-admin/internal/domain"

	"github.com/sirupsen/logrus"
)

const (
	pageSize = 100

	attrMatrixID = "matrix_id"
)

type Config struct {
	BaseURL       string
	Token         string
	MainGroupID   string
	FlowID        string
	InviteBaseURL string
	Timeout       time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type apiUser struct {
	PK         int            `json:"pk"`
	Username   string         `json:"username"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	IsActive   bool           `json:"is_active"`
	Attributes map[string]any `json:"attributes"`
}

type userPage struct {
	Pagination struct {
		Next  int `json:"next"`
		Count int `json:"count"`
	} `json:"pagination"`
	Results []apiUser `json:"results"`
}

func (u apiUser) toRecord() domain.UserRecord {
	return domain.UserRecord{
		Username:  u.Username,
		FullName:  u.Name,
		Email:     u.Email,
		InvitedBy: stringAttr(u.Attributes, "invited_by"),
		Intro:     stringAttr(u.Attributes, "intro"),
		ID:        strconv.Itoa(u.PK),
		IsActive:  u.IsActive,
		MatrixID:  stringAttr(u.Attributes, attrMatrixID),
	}
}

func stringAttr(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

// ListAllUsers walks every page of the user listing.
func (c *Client) ListAllUsers(ctx context.Context) ([]domain.UserRecord, error) {
	var users []domain.UserRecord
	for page := 1; page > 0; {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))

		var parsed userPage
		if err := c.do(ctx, http.MethodGet, "/core/users/", q, nil, &parsed); err != nil {
			return nil, err
		}
		for _, u := range parsed.Results {
			users = append(users, u.toRecord())
		}
		page = parsed.Pagination.Next
	}
	c.logger.WithField("count", len(users)).Debug("authentik: listed users")
	return users, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]domain.UserRecord, error) {
	q := url.Values{}
	q.Set("search", query)
	q.Set("page_size", strconv.Itoa(pageSize))

	var parsed userPage
	if err := c.do(ctx, http.MethodGet, "/core/users/", q, nil, &parsed); err != nil {
		return nil, err
	}
	users := make([]domain.UserRecord, 0, len(parsed.Results))
	for _, u := range parsed.Results {
		users = append(users, u.toRecord())
	}
	return users, nil
}

// FindByAttribute returns the users whose attribute key equals value.
func (c *Client) FindByAttribute(ctx context.Context, key, value string) ([]domain.UserRecord, error) {
	filter, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode attribute filter: %w", err)
	}
	q := url.Values{}
	q.Set("attributes", string(filter))

	var parsed userPage
	if err := c.do(ctx, http.MethodGet, "/core/users/", q, nil, &parsed); err != nil {
		return nil, err
	}
	users := make([]domain.UserRecord, 0, len(parsed.Results))
	for _, u := range parsed.Results {
		users = append(users, u.toRecord())
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, user domain.NewUser) (*domain.UserRecord, error) {
	attrs := map[string]string{
		"invited_by": user.InvitedBy,
		"intro":      user.Intro,
	}
	if user.MatrixID != "" {
		attrs[attrMatrixID] = user.MatrixID
	}
	payload := map[string]any{
		"username":   user.Username,
		"name":       user.FullName,
		"is_active":  true,
		"email":      user.Email,
		"attributes": attrs,
	}
	if c.cfg.MainGroupID != "" {
		payload["groups"] = []string{c.cfg.MainGroupID}
	}

	var created apiUser
	if err := c.do(ctx, http.MethodPost, "/core/users/", nil, payload, &created); err != nil {
		return nil, err
	}
	rec := created.toRecord()
	c.logger.WithFields(logrus.Fields{"username": rec.Username, "pk": rec.ID}).Info("authentik: user created")
	return &rec, nil
}

func (c *Client) SetActive(ctx context.Context, id string, active bool) error {
	return c.do(ctx, http.MethodPatch, userPath(id), nil, map[string]bool{"is_active": active}, nil)
}

func (c *Client) SetPassword(ctx context.Context, id, password string) error {
	return c.do(ctx, http.MethodPost, userPath(id)+"set_password/", nil, map[string]string{"password": password}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil, nil)
}

// UpdateAttributes merges attrs into the user's existing attributes.
func (c *Client) UpdateAttributes(ctx context.Context, id string, attrs map[string]string) error {
	var current apiUser
	if err := c.do(ctx, http.MethodGet, userPath(id), nil, nil, &current); err != nil {
		return err
	}
	merged := make(map[string]any, len(current.Attributes)+len(attrs))
	for k, v := range current.Attributes {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return c.do(ctx, http.MethodPatch, userPath(id), nil, map[string]any{"attributes": merged}, nil)
}

func (c *Client) RecoveryLink(ctx context.Context, id string) (string, error) {
	var out struct {
		Link string `json:"link"`
	}
	if err := c.do(ctx, http.MethodPost, userPath(id)+"recovery/", nil, nil, &out); err != nil {
		return "", err
	}
	if out.Link == "" {
		return "", fmt.Errorf("%w: empty recovery link", domain.ErrUpstreamRejected)
	}
	return out.Link, nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

func (c *Client) CreateInvite(ctx context.Context, label string, expires time.Time) (*domain.Invite, error) {
	name := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "-"), "-")
	payload := map[string]any{
		"name":       name,
		"expires":    expires.UTC().Format(time.RFC3339),
		"fixed_data": map[string]any{},
		"single_use": true,
		"flow":       c.cfg.FlowID,
	}

	var out struct {
		PK      string    `json:"pk"`
		Name    string    `json:"name"`
		Expires time.Time `json:"expires"`
	}
	if err := c.do(ctx, http.MethodPost, "/stages/invitation/invitations/", nil, payload, &out); err != nil {
		return nil, err
	}

	link := c.cfg.InviteBaseURL + "?itoken=" + url.QueryEscape(out.PK)
	return &domain.Invite{ID: out.PK, Label: label, Link: link, Expires: out.Expires}, nil
}

func userPath(id string) string {
	return "/core/users/" + url.PathEscape(id) + "/"
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("authentik: request failed")
		return statusError(method, path, resp.Status, resp.StatusCode, b)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response from %s: %v", domain.ErrUpstreamRejected, path, err)
	}
	return nil
}

func statusError(method, path, status string, code int, body []byte) error {
	var kind error
	switch {
	case code == http.StatusNotFound:
		kind = domain.ErrUserNotFound
	case code >= 500:
		kind = domain.ErrUpstreamUnavailable
	default:
		kind = domain.ErrUpstreamRejected
	}
	return fmt.Errorf("%w: authentik %s %s: %s: %s", kind, method, path, status, strings.TrimSpace(string(body)))
}
