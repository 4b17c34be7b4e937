package examination

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/service/examination"
)

type Handler struct {
	service examination.ExaminationService
}

func NewHandler(service examination.ExaminationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	exams := r.Group("/examinations")
	{
		exams.POST("", h.CreateExamination)
		exams.GET("/:id", h.GetExamination)
		exams.PUT("/:id", h.UpdateExamination)
		exams.DELETE("/:id", h.DeleteExamination)

		exams.POST("/:id/comments", h.AddComment)
		exams.GET("/:id/comments", h.ListComments)
		exams.GET("/:id/invoices", h.InvoiceView)
	}
	r.GET("/patients/:id/examinations", h.ListByPatient)
}

func (h *Handler) CreateExamination(c *gin.Context) {
	var exam model.Examination
	if !handler.BindJSON(c, &exam) {
		return
	}
	exam.ID = uuid.Nil
	if err := h.service.CreateExamination(c.Request.Context(), &exam); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &exam)
}

func (h *Handler) GetExamination(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	exam, err := h.service.GetExamination(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, exam)
}

func (h *Handler) UpdateExamination(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var exam model.Examination
	if !handler.BindJSON(c, &exam) {
		return
	}
	exam.ID = id
	if err := h.service.UpdateExamination(c.Request.Context(), &exam); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, &exam)
}

func (h *Handler) DeleteExamination(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeleteExamination(c.Request.Context(), id))
}

func (h *Handler) ListByPatient(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	exams, err := h.service.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, exams)
}

func (h *Handler) AddComment(c *gin.Context) {
	examID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var comment model.ExaminationComment
	if !handler.BindJSON(c, &comment) {
		return
	}
	comment.ID = uuid.Nil
	comment.ExaminationID = examID
	if err := h.service.AddComment(c.Request.Context(), &comment); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &comment)
}

func (h *Handler) ListComments(c *gin.Context) {
	examID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	comments, err := h.service.ListComments(c.Request.Context(), examID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, comments)
}

// InvoiceView returns the live invoice of the examination and its history.
func (h *Handler) InvoiceView(c *gin.Context) {
	examID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.InvoiceView(c.Request.Context(), examID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, view)
}
