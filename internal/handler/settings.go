package handler

import (
	"net/http"

	"authentik-admin/internal/settings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// SettingsStore is the runtime settings storage used by SettingsHandler.
type SettingsStore interface {
	Get() settings.Settings
	Update(next settings.Settings) (settings.Settings, error)
}

// SettingsHandler reads and updates operator settings. Secrets never leave
// the process unmasked.
type SettingsHandler struct {
	*BaseHandler
	store SettingsStore
}

func NewSettingsHandler(store SettingsStore, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{
		BaseHandler: NewBaseHandler(logger),
		store:       store,
	}
}

func (h *SettingsHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Get().Masked())
}

func (h *SettingsHandler) PutSettings(c echo.Context) error {
	var req settings.Settings
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "update_settings").WithField("webhook_enabled", req.WebhookEnabled)

	saved, err := h.store.Update(req)
	if err != nil {
		logEntry.WithError(err).Error("Failed to save settings")
		return c.JSON(http.StatusInternalServerError, toErrorResponse("SETTINGS_WRITE_FAILED", err.Error()))
	}

	logEntry.Info("Settings saved")
	return c.JSON(http.StatusOK, saved)
}
