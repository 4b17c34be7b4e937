package event

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/service/event"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

type Handler struct {
	service event.EventService
}

func NewHandler(service event.EventService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/events", h.ListEvents)
}

// ListEvents returns the office journal, newest first. It can be narrowed
// with ?clazz= and ?user=.
func (h *Handler) ListEvents(c *gin.Context) {
	var filters model.OfficeEventFilters
	if !handler.BindQuery(c, &filters) {
		return
	}
	if raw := c.Query("user"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.Fail(c, errors.NewBadRequest("invalid user", err))
			return
		}
		filters.UserID = &id
	}
	events, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, events)
}
