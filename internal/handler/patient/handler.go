package patient

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/service/patient"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)

		patients.POST("/:id/children", h.CreateChild)
		patients.GET("/:id/children", h.ListChildren)
	}
	r.DELETE("/children/:id", h.DeleteChild)

	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PUT("/:id", h.UpdateDoctor)
		doctors.DELETE("/:id", h.DeleteDoctor)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var p model.Patient
	if !handler.BindJSON(c, &p) {
		return
	}
	p.ID = uuid.Nil
	if err := h.service.CreatePatient(c.Request.Context(), &p); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var p model.Patient
	if !handler.BindJSON(c, &p) {
		return
	}
	p.ID = id
	if err := h.service.UpdatePatient(c.Request.Context(), &p); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, &p)
}

// DeletePatient answers 200 with warnings when stored files remain.
func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeletePatient(c.Request.Context(), id))
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filters model.PatientFilters
	if !handler.BindQuery(c, &filters) {
		return
	}
	if raw := c.Query("doctor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.Fail(c, errors.NewBadRequest("invalid doctor", err))
			return
		}
		filters.DoctorID = &id
	}
	patients, err := h.service.ListPatients(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, patients)
}

func (h *Handler) CreateChild(c *gin.Context) {
	parentID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var child model.Children
	if !handler.BindJSON(c, &child) {
		return
	}
	child.ID = uuid.Nil
	child.ParentID = parentID
	if err := h.service.CreateChild(c.Request.Context(), &child); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &child)
}

func (h *Handler) ListChildren(c *gin.Context) {
	parentID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	children, err := h.service.ListChildren(c.Request.Context(), parentID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, children)
}

func (h *Handler) DeleteChild(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeleteChild(c.Request.Context(), id))
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var d model.RegularDoctor
	if !handler.BindJSON(c, &d) {
		return
	}
	d.ID = uuid.Nil
	if err := h.service.CreateDoctor(c.Request.Context(), &d); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &d)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	d, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, d)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var d model.RegularDoctor
	if !handler.BindJSON(c, &d) {
		return
	}
	d.ID = id
	if err := h.service.UpdateDoctor(c.Request.Context(), &d); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, &d)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeleteDoctor(c.Request.Context(), id))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, doctors)
}
