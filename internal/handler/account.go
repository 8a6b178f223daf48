package handler

import (
	"net/http"

	"authentik-admin/internal/domain"
	"authentik-admin/internal/resolver"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	"github.com/sirupsen/logrus"
)

// AccountHandler serves account administration requests.
type AccountHandler struct {
	*BaseHandler
	accountUseCase domain.AccountUseCase
}

func NewAccountHandler(accountUseCase domain.AccountUseCase, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{
		BaseHandler:    NewBaseHandler(logger),
		accountUseCase: accountUseCase,
	}
}

// PostUsers creates an account under a unique username.
func (h *AccountHandler) PostUsers(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind create user request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "create_user").WithFields(logrus.Fields{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"username":   req.Username,
	})
	logEntry.Info("Creating user")

	result, err := h.accountUseCase.CreateAccount(c.Request().Context(), domain.AccountRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		InvitedBy: req.InvitedBy,
		Intro:     req.Intro,
		Origin:    "admin",
	})
	if err != nil && result == nil {
		return h.fail(c, logEntry, err, "Failed to create user")
	}

	body := map[string]interface{}{
		"user":          result.User,
		"stale":         result.Stale,
		"recovery_link": result.RecoveryLink,
		"message":       result.Message,
	}
	if err != nil {
		logEntry.WithError(err).Error("User created with follow-up failures")
		body["warning"] = toWarning(err)
	}

	logEntry.WithFields(logrus.Fields{
		"created": result.User.Username,
		"stale":   result.Stale,
	}).Info("User created successfully")
	return c.JSON(http.StatusCreated, body)
}

// GetUsersSearch searches the local directory, then the provider.
func (h *AccountHandler) GetUsersSearch(c echo.Context) error {
	var params SearchUsersParams
	if err := runtime.BindQueryParameter("form", true, true, "q", c.QueryParams(), &params.Q); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "search_users").WithField("query", params.Q)

	result, err := h.accountUseCase.SearchUsers(c.Request().Context(), params.Q)
	if err != nil {
		return h.fail(c, logEntry, err, "Failed to search users")
	}

	logEntry.WithFields(logrus.Fields{
		"source": result.Source,
		"count":  len(result.Users),
	}).Info("Users searched")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":  toAPIUsers(result.Users),
		"source": result.Source,
	})
}

// PostUsersActions applies a bulk action to the selected users.
func (h *AccountHandler) PostUsersActions(c echo.Context) error {
	var req UserActionRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind user action request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "user_action").WithFields(logrus.Fields{
		"action": req.Action,
		"users":  len(req.Usernames),
	})
	logEntry.Info("Applying user action")

	result, err := h.accountUseCase.ApplyAction(c.Request().Context(), domain.ActionRequest{
		Action:    req.Action,
		Usernames: req.Usernames,
		Password:  req.Password,
		Intro:     req.Intro,
		InvitedBy: req.InvitedBy,
	})
	if err != nil {
		return h.fail(c, logEntry, err, "Failed to apply user action")
	}

	logEntry.WithField("succeeded", result.Succeeded).Info("User action applied")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"action":    result.Action,
		"succeeded": result.Succeeded,
		"total":     result.Total,
		"outcomes":  result.Outcomes,
	})
}

// PostUsersRecovery issues a password recovery link.
func (h *AccountHandler) PostUsersRecovery(c echo.Context) error {
	var req RecoveryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "recovery_link").WithField("username", req.Username)
	logEntry.Info("Generating recovery link")

	result, err := h.accountUseCase.RecoveryLink(c.Request().Context(), req.Username)
	if err != nil {
		return h.fail(c, logEntry, err, "Failed to generate recovery link")
	}

	logEntry.Info("Recovery link generated")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"username": result.Username,
		"link":     result.Link,
		"message":  result.Message,
	})
}

// PostInvites creates an enrollment invite.
func (h *AccountHandler) PostInvites(c echo.Context) error {
	var req InviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "create_invite").WithFields(logrus.Fields{
		"label":   req.Label,
		"expires": req.Expires,
	})
	logEntry.Info("Creating invite")

	result, err := h.accountUseCase.CreateInvite(c.Request().Context(), req.Label, req.Expires)
	if err != nil {
		return h.fail(c, logEntry, err, "Failed to create invite")
	}

	logEntry.WithField("invite_id", result.Invite.ID).Info("Invite created")
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"invite":  result.Invite,
		"message": result.Message,
	})
}

// PostDirectoryRefresh reloads the local directory from the provider.
func (h *AccountHandler) PostDirectoryRefresh(c echo.Context) error {
	logEntry := h.logRequest(c, "refresh_directory")

	n, err := h.accountUseCase.RefreshDirectory(c.Request().Context())
	if err != nil {
		return h.fail(c, logEntry, err, "Failed to refresh directory")
	}

	logEntry.WithField("records", n).Info("Directory refreshed")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": n,
	})
}

// GetUsername suggests a free username for the given name parts.
func (h *AccountHandler) GetUsername(c echo.Context) error {
	var params UsernameParams
	if err := runtime.BindQueryParameter("form", true, false, "first", c.QueryParams(), &params.First); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}
	if err := runtime.BindQueryParameter("form", true, false, "last", c.QueryParams(), &params.Last); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	var first, last string
	if params.First != nil {
		first = *params.First
	}
	if params.Last != nil {
		last = *params.Last
	}

	res := h.accountUseCase.SuggestUsername(c.Request().Context(), first, last)
	h.logRequest(c, "suggest_username").WithFields(logrus.Fields{
		"username": res.Username,
		"stale":    res.Stale,
	}).Debug("Username suggested")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"base":     resolver.DeriveBase(first, last),
		"username": res.Username,
		"stale":    res.Stale,
		"probes":   res.Probes,
	})
}
