package handler

import (
	"authentik-admin/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type APIHandler struct {
	*AccountHandler
	*SettingsHandler
}

func NewAPIHandler(
	accountUseCase domain.AccountUseCase,
	settingsStore SettingsStore,
	logger *logrus.Logger,
) *APIHandler {

	return &APIHandler{
		AccountHandler:  NewAccountHandler(accountUseCase, logger),
		SettingsHandler: NewSettingsHandler(settingsStore, logger),
	}
}

// RegisterHandlers mounts the admin API on e.
func RegisterHandlers(e *echo.Echo, h *APIHandler) {
	api := e.Group("/api")

	api.POST("/users", h.PostUsers)
	api.GET("/users/search", h.GetUsersSearch)
	api.POST("/users/actions", h.PostUsersActions)
	api.POST("/users/recovery", h.PostUsersRecovery)
	api.POST("/invites", h.PostInvites)
	api.POST("/directory/refresh", h.PostDirectoryRefresh)
	api.GET("/username", h.GetUsername)

	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.PutSettings)
}
