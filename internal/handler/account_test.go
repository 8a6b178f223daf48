package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"authentik-admin/internal/domain"
	"authentik-admin/internal/mocks"
	"authentik-admin/internal/settings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*echo.Echo, *mocks.AccountUseCase, *settings.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	uc := &mocks.AccountUseCase{}
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"), settings.Settings{
		WebhookEnabled: true,
		Webhooks:       map[string]bool{settings.EventUserCreated: true},
		WebhookURL:     "https://hooks.example.org",
		WebhookSecret:  "hidden",
	})

	e := echo.New()
	RegisterHandlers(e, NewAPIHandler(uc, store, logger))
	return e, uc, store
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPostUsers_Created(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("CreateAccount", mock.Anything, domain.AccountRequest{FirstName: "Alice", LastName: "Smith", Origin: "admin"}).
		Return(&domain.AccountResult{
			User:         &domain.UserRecord{Username: "alice-s", ID: "1"},
			Stale:        true,
			RecoveryLink: "https://s/x",
			Message:      "Welcome",
		}, nil)

	rec := do(e, http.MethodPost, "/api/users", `{"first_name":"Alice","last_name":"Smith"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "alice-s", body["user"].(map[string]any)["username"])
	assert.Equal(t, true, body["stale"])
	assert.Equal(t, "https://s/x", body["recovery_link"])
	assert.NotContains(t, body, "warning")
}

func TestPostUsers_PersistenceFailureStillCreated(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("CreateAccount", mock.Anything, mock.Anything).
		Return(&domain.AccountResult{User: &domain.UserRecord{Username: "bob"}}, fmt.Errorf("%w: disk full", domain.ErrPersistenceWrite))

	rec := do(e, http.MethodPost, "/api/users", `{"first_name":"Bob"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	warning := decode(t, rec)["warning"].(map[string]any)
	assert.Equal(t, "PERSISTENCE_FAILED", warning["code"])
}

func TestPostUsers_RenderFailureStillCreated(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("CreateAccount", mock.Anything, mock.Anything).
		Return(&domain.AccountResult{User: &domain.UserRecord{Username: "gina"}, RecoveryLink: "https://s/g"}, fmt.Errorf("%w: welcome", domain.ErrMessageRender))

	rec := do(e, http.MethodPost, "/api/users", `{"first_name":"Gina"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "https://s/g", body["recovery_link"])
	assert.Equal(t, "MESSAGE_RENDER_FAILED", body["warning"].(map[string]any)["code"])
}

func TestPostUsers_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"name required", domain.ErrNameRequired, http.StatusBadRequest, "INVALID_REQUEST"},
		{"provider down", fmt.Errorf("failed to create user x: %w", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"provider rejects", fmt.Errorf("wrapped: %w", domain.ErrUpstreamRejected), http.StatusBadGateway, "UPSTREAM_REJECTED"},
		{"already linked", fmt.Errorf("%w: @a:example.org", domain.ErrAccountExists), http.StatusConflict, "ACCOUNT_EXISTS"},
		{"unmapped", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, uc, _ := setupServer(t)
			uc.On("CreateAccount", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := do(e, http.MethodPost, "/api/users", `{"last_name":"X"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["error"].(map[string]any)["code"])
		})
	}
}

func TestPostUsers_InvalidJSON(t *testing.T) {
	e, uc, _ := setupServer(t)

	rec := do(e, http.MethodPost, "/api/users", `{"first_name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uc.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestGetUsersSearch(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("SearchUsers", mock.Anything, "smith").Return(&domain.SearchResult{
		Users:  []domain.UserRecord{{Username: "alice", FullName: "Alice Smith"}},
		Source: domain.SourceLocal,
	}, nil)

	rec := do(e, http.MethodGet, "/api/users/search?q=smith", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "local", body["source"])
	assert.Len(t, body["users"], 1)
}

func TestGetUsersSearch_MissingQuery(t *testing.T) {
	e, uc, _ := setupServer(t)

	rec := do(e, http.MethodGet, "/api/users/search", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uc.AssertNotCalled(t, "SearchUsers", mock.Anything, mock.Anything)
}

func TestPostUsersActions(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("ApplyAction", mock.Anything, domain.ActionRequest{
		Action: domain.ActionResetPassword, Usernames: []string{"a", "b"}, Password: "pw",
	}).Return(&domain.ActionResult{
		Action: domain.ActionResetPassword, Succeeded: 1, Total: 2,
		Outcomes: []domain.ActionOutcome{{Username: "a", OK: true}, {Username: "b", Error: "user not found"}},
	}, nil)

	rec := do(e, http.MethodPost, "/api/users/actions", `{"action":"reset_password","usernames":["a","b"],"password":"pw"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["succeeded"])
	assert.Len(t, body["outcomes"], 2)
}

func TestPostUsersActions_UnknownAction(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("ApplyAction", mock.Anything, mock.Anything).Return(nil, domain.ErrUnknownAction)

	rec := do(e, http.MethodPost, "/api/users/actions", `{"action":"promote","usernames":["a"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostUsersRecovery_NotFound(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("RecoveryLink", mock.Anything, "ghost").Return(nil, fmt.Errorf("ghost: %w", domain.ErrUserNotFound))

	rec := do(e, http.MethodPost, "/api/users/recovery", `{"username":"ghost"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["error"].(map[string]any)["code"])
}

func TestPostUsersRecovery(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("RecoveryLink", mock.Anything, "alice").Return(&domain.RecoveryResult{Username: "alice", Link: "https://s/r", Message: "reset"}, nil)

	rec := do(e, http.MethodPost, "/api/users/recovery", `{"username":"alice"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://s/r", decode(t, rec)["link"])
}

func TestPostInvites(t *testing.T) {
	e, uc, _ := setupServer(t)
	expires := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	uc.On("CreateInvite", mock.Anything, "Meetup", mock.MatchedBy(func(ts time.Time) bool { return ts.Equal(expires) })).
		Return(&domain.InviteResult{Invite: &domain.Invite{ID: "i1", Label: "Meetup", Link: "https://l", Expires: expires}, Message: "m"}, nil)

	rec := do(e, http.MethodPost, "/api/invites", `{"label":"Meetup","expires":"2030-05-01T10:00:00Z"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "i1", decode(t, rec)["invite"].(map[string]any)["id"])
}

func TestPostDirectoryRefresh(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("RefreshDirectory", mock.Anything).Return(0, fmt.Errorf("%w: timeout", domain.ErrUpstreamUnavailable)).Once()
	uc.On("RefreshDirectory", mock.Anything).Return(42, nil).Once()

	rec := do(e, http.MethodPost, "/api/directory/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(e, http.MethodPost, "/api/directory/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), decode(t, rec)["records"])
}

func TestGetUsername(t *testing.T) {
	e, uc, _ := setupServer(t)
	uc.On("SuggestUsername", mock.Anything, "Mary Ann", "").Return(domain.Resolution{Username: "mary-ann-2", Probes: 1})

	rec := do(e, http.MethodGet, "/api/username?first=Mary+Ann", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "mary-ann", body["base"])
	assert.Equal(t, "mary-ann-2", body["username"])
	assert.Equal(t, false, body["stale"])
}

func TestSettings_GetMasksSecret(t *testing.T) {
	e, _, _ := setupServer(t)

	rec := do(e, http.MethodGet, "/api/settings", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.Mask, decode(t, rec)["webhook_secret"])
}

func TestSettings_PutKeepsMaskedSecret(t *testing.T) {
	e, _, store := setupServer(t)

	rec := do(e, http.MethodPut, "/api/settings",
		`{"webhook_enabled":false,"webhooks":{"user_created":false},"webhook_url":"https://new","webhook_secret":"****","page_title":"T"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.Mask, decode(t, rec)["webhook_secret"])
	got := store.Get()
	assert.Equal(t, "hidden", got.WebhookSecret)
	assert.Equal(t, "https://new", got.WebhookURL)
	assert.False(t, got.WebhookEnabled)
}

func TestGetHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, getHTTPStatusCode(fmt.Errorf("x: %w", domain.ErrUserMissingID)))
	assert.Equal(t, http.StatusBadRequest, getHTTPStatusCode(domain.ErrInviteExpiryInvalid))
	assert.Equal(t, http.StatusBadGateway, getHTTPStatusCode(domain.ErrShortenFailed))
	assert.Equal(t, http.StatusInternalServerError, getHTTPStatusCode(domain.ErrPersistenceWrite))
}
