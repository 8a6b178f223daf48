// Package matrix is a minimal Matrix client-server API client covering what
// the welcome bot needs: joining rooms, syncing, profiles and direct messages.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const apiPrefix = "/_matrix/client/v3"

type Client struct {
	homeserver string
	token      string
	httpClient *http.Client
}

func NewClient(homeserver, accessToken string) *Client {
	return &Client{
		homeserver: strings.TrimRight(homeserver, "/"),
		token:      accessToken,
		// Long-poll syncs hold the connection for up to the sync timeout.
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Error is a non-2xx response from the homeserver.
type Error struct {
	Status  int
	ErrCode string `json:"errcode"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("matrix: %d %s: %s", e.Status, e.ErrCode, e.Message)
}

type Event struct {
	Type     string          `json:"type"`
	EventID  string          `json:"event_id"`
	Sender   string          `json:"sender"`
	StateKey *string         `json:"state_key,omitempty"`
	Content  json.RawMessage `json:"content"`
	Unsigned struct {
		PrevContent json.RawMessage `json:"prev_content,omitempty"`
	} `json:"unsigned"`
}

// MemberContent is the content of an m.room.member event.
type MemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname"`
}

type JoinedRoom struct {
	State struct {
		Events []Event `json:"events"`
	} `json:"state"`
	Timeline struct {
		Events []Event `json:"events"`
	} `json:"timeline"`
}

type SyncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join map[string]JoinedRoom `json:"join"`
	} `json:"rooms"`
}

func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/whoami", nil, nil, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/join/"+url.PathEscape(roomID), nil, map[string]any{}, nil)
}

// Sync long-polls for new events. An empty since starts a fresh sync.
func (c *Client) Sync(ctx context.Context, since string, timeout time.Duration) (*SyncResponse, error) {
	q := url.Values{}
	q.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	if since != "" {
		q.Set("since", since)
	}
	var out SyncResponse
	if err := c.do(ctx, http.MethodGet, "/sync", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	var out struct {
		DisplayName string `json:"displayname"`
	}
	if err := c.do(ctx, http.MethodGet, "/profile/"+url.PathEscape(userID)+"/displayname", nil, nil, &out); err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

// CreateDirectRoom opens a private room with userID invited and returns its ID.
func (c *Client) CreateDirectRoom(ctx context.Context, userID, name, topic string) (string, error) {
	body := map[string]any{
		"invite":    []string{userID},
		"is_direct": true,
		"preset":    "trusted_private_chat",
		"name":      name,
		"topic":     topic,
	}
	var out struct {
		RoomID string `json:"room_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/createRoom", nil, body, &out); err != nil {
		return "", err
	}
	return out.RoomID, nil
}

func (c *Client) SendText(ctx context.Context, roomID, text string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/send/m.room.message/" + uuid.NewString()
	return c.do(ctx, http.MethodPut, path, nil, map[string]string{"msgtype": "m.text", "body": text}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.homeserver + apiPrefix + path
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
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("matrix %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("matrix %s %s: invalid response: %w", method, path, err)
	}
	return nil
}
