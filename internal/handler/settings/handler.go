package settings

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/service/settings"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

type Handler struct {
	service settings.SettingsService
}

func NewHandler(service settings.SettingsService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	s := r.Group("/settings")
	{
		s.GET("/office", h.GetOffice)
		s.PUT("/office", h.SaveOffice)
		s.GET("/therapeut", h.GetTherapeut)
		s.PUT("/therapeut", h.SaveTherapeut)
	}
}

func (h *Handler) GetOffice(c *gin.Context) {
	office, err := h.service.Office(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, office)
}

// SaveOffice replaces the office settings. A changed invoice sequence is
// journaled under the caller.
func (h *Handler) SaveOffice(c *gin.Context) {
	var office model.OfficeSettings
	if !handler.BindJSON(c, &office) {
		return
	}
	office.ID = model.OfficeSettingsID
	if err := h.service.SaveOffice(c.Request.Context(), &office); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, &office)
}

func (h *Handler) GetTherapeut(c *gin.Context) {
	userID, err := auth.MustUserID(c.Request.Context())
	if err != nil {
		handler.Fail(c, errors.Unauthorized(err))
		return
	}
	ts, err := h.service.Therapeut(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, ts)
}

func (h *Handler) SaveTherapeut(c *gin.Context) {
	userID, err := auth.MustUserID(c.Request.Context())
	if err != nil {
		handler.Fail(c, errors.Unauthorized(err))
		return
	}
	// Start from the stored settings, or the defaults, so that omitted
	// fields are not reset to their zero value.
	ts, err := h.service.Therapeut(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !handler.BindJSON(c, ts) {
		return
	}
	ts.UserID = userID
	if err := h.service.SaveTherapeut(c.Request.Context(), ts); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, ts)
}
