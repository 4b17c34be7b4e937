package invoice

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/service/invoice"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

type Handler struct {
	service invoice.InvoiceService
}

func NewHandler(service invoice.InvoiceService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/examinations/:id/invoice", h.CreateInvoice)

	invoices := r.Group("/invoices")
	{
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("/:id/cancel", h.CancelInvoice)
		invoices.GET("/:id/paiments", h.PaimentsForInvoice)
	}

	paiments := r.Group("/paiments")
	{
		paiments.POST("", h.CreatePaiment)
		paiments.GET("", h.ListPaiments)
	}

	means := r.Group("/paiment-means")
	{
		means.POST("", h.CreatePaimentMean)
		means.GET("", h.ListPaimentMeans)
		means.GET("/:id", h.GetPaimentMean)
		means.PUT("/:id", h.UpdatePaimentMean)
		means.DELETE("/:id", h.DeletePaimentMean)
	}
}

// CreateInvoice issues the invoice of an examination. The body is an
// optional draft whose amount, paiment mode and therapeut names are kept.
func (h *Handler) CreateInvoice(c *gin.Context) {
	examID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var draft model.Invoice
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &draft) {
		return
	}
	inv, err := h.service.Create(c.Request.Context(), examID, &draft)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, inv)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, inv)
}

func (h *Handler) ListInvoices(c *gin.Context) {
	var filters model.InvoiceFilters
	if !handler.BindQuery(c, &filters.Pagination) {
		return
	}
	dates, ok := handler.DateRangeQuery(c)
	if !ok {
		return
	}
	filters.DateRange = dates
	if raw := c.Query("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		status := model.InvoiceStatus(n)
		if err != nil || !status.Valid() {
			handler.Fail(c, errors.NewBadRequest("invalid status", err))
			return
		}
		filters.Status = &status
	}
	invoices, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, invoices)
}

// CancelInvoice answers the credit note or the reissued invoice.
func (h *Handler) CancelInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req invoice.CancelRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}
	replacement, err := h.service.Cancel(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, replacement)
}

func (h *Handler) PaimentsForInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	paiments, err := h.service.PaimentsForInvoice(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, paiments)
}

func (h *Handler) CreatePaiment(c *gin.Context) {
	var p model.Paiment
	if !handler.BindJSON(c, &p) {
		return
	}
	p.ID = uuid.Nil
	if err := h.service.CreatePaiment(c.Request.Context(), &p); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &p)
}

func (h *Handler) ListPaiments(c *gin.Context) {
	dates, ok := handler.DateRangeQuery(c)
	if !ok {
		return
	}
	paiments, err := h.service.ListPaiments(c.Request.Context(), dates)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, paiments)
}

// CreatePaimentMean creates an enabled mean unless the body says otherwise.
func (h *Handler) CreatePaimentMean(c *gin.Context) {
	mean := model.PaimentMean{Enable: true}
	if !handler.BindJSON(c, &mean) {
		return
	}
	mean.ID = uuid.Nil
	if err := h.service.CreatePaimentMean(c.Request.Context(), &mean); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &mean)
}

func (h *Handler) GetPaimentMean(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	mean, err := h.service.GetPaimentMean(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, mean)
}

func (h *Handler) UpdatePaimentMean(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	// Fields left out of the body keep their stored values.
	mean, err := h.service.GetPaimentMean(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !handler.BindJSON(c, mean) {
		return
	}
	mean.ID = id
	if err := h.service.UpdatePaimentMean(c.Request.Context(), mean); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, mean)
}

func (h *Handler) DeletePaimentMean(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeletePaimentMean(c.Request.Context(), id))
}

// ListPaimentMeans lists every mean, or only the enabled ones with
// ?enabled=true.
func (h *Handler) ListPaimentMeans(c *gin.Context) {
	enabledOnly, _ := strconv.ParseBool(c.Query("enabled"))
	means, err := h.service.ListPaimentMeans(c.Request.Context(), enabledOnly)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, means)
}
