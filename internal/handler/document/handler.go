package document

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/service/document"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

const (
	fieldDocumentFile    = "document_file"
	fieldFilePatient     = "file_patient"
	fieldFileExamination = "file_examination"
)

type Handler struct {
	service document.DocumentService
}

func NewHandler(service document.DocumentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	docs := r.Group("/documents")
	{
		docs.POST("", h.UploadDocument)
		docs.GET("/:id", h.GetDocument)
		docs.GET("/:id/download", h.DownloadDocument)
		docs.DELETE("/:id", h.DeleteDocument)
	}

	r.POST("/patients/:id/documents", h.UploadForPatient)
	r.GET("/patients/:id/documents", h.ListForPatient)

	pds := r.Group("/patient-documents")
	{
		pds.POST("", h.AttachToPatient)
		pds.GET("/:id", h.GetPatientDocument)
		pds.DELETE("/:id", h.DeletePatientDocument)
	}

	imports := r.Group("/file-imports")
	{
		imports.POST("", h.CreateFileImport)
		imports.GET("/:id", h.GetFileImport)
		imports.DELETE("/:id", h.DeleteFileImport)
	}
}

func (h *Handler) UploadDocument(c *gin.Context) {
	var doc model.Document
	if !bindDocument(c, &doc) {
		return
	}
	file, ok := formFile(c, fieldDocumentFile, true)
	if !ok {
		return
	}
	defer file.close()

	if err := h.service.Upload(c.Request.Context(), &doc, file.Upload); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &doc)
}

func (h *Handler) UploadForPatient(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	attachment, ok := attachmentType(c, c.PostForm("attachment_type"))
	if !ok {
		return
	}
	pd := &model.PatientDocument{
		PatientID: patientID,
		Document:  &model.Document{},
	}
	if attachment != nil {
		pd.AttachmentType = *attachment
	}
	if !bindDocument(c, pd.Document) {
		return
	}
	file, ok := formFile(c, fieldDocumentFile, true)
	if !ok {
		return
	}
	defer file.close()

	if err := h.service.UploadForPatient(c.Request.Context(), pd, file.Upload); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, pd)
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, doc)
}

// DownloadDocument streams the stored file with its detected mime type.
func (h *Handler) DownloadDocument(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	doc, content, err := h.service.Open(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	defer content.Close()

	contentType := "application/octet-stream"
	if doc.MimeType != nil {
		contentType = *doc.MimeType
	}
	c.DataFromReader(http.StatusOK, -1, contentType, content, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filepath.Base(doc.DocumentFile)),
	})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeleteDocument(c.Request.Context(), id))
}

func (h *Handler) ListForPatient(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	attachment, ok := attachmentType(c, c.Query("attachment_type"))
	if !ok {
		return
	}
	docs, err := h.service.ListForPatient(c.Request.Context(), patientID, attachment)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, docs)
}

func (h *Handler) AttachToPatient(c *gin.Context) {
	var pd model.PatientDocument
	if !handler.BindJSON(c, &pd) {
		return
	}
	pd.Document = nil
	if err := h.service.AttachToPatient(c.Request.Context(), &pd); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &pd)
}

func (h *Handler) GetPatientDocument(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	pd, err := h.service.GetPatientDocument(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, pd)
}

func (h *Handler) DeletePatientDocument(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeletePatientDocument(c.Request.Context(), id))
}

func (h *Handler) CreateFileImport(c *gin.Context) {
	patients, ok := formFile(c, fieldFilePatient, true)
	if !ok {
		return
	}
	defer patients.close()

	var examinations *document.Upload
	exams, ok := formFile(c, fieldFileExamination, false)
	if !ok {
		return
	}
	if exams != nil {
		defer exams.close()
		examinations = &exams.Upload
	}

	var fi model.FileImport
	if raw := c.PostForm("status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil {
			handler.Fail(c, errors.NewBadRequest("invalid status", err))
			return
		}
		fi.Status = &status
	}
	if err := h.service.CreateFileImport(c.Request.Context(), &fi, patients.Upload, examinations); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, &fi)
}

func (h *Handler) GetFileImport(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	fi, err := h.service.GetFileImport(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, fi)
}

func (h *Handler) DeleteFileImport(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	handler.Deleted(c, h.service.DeleteFileImport(c.Request.Context(), id))
}

type formUpload struct {
	document.Upload
	file multipart.File
}

func (f *formUpload) close() { _ = f.file.Close() }

// formFile opens the multipart file of field. A missing optional file
// yields nil.
func formFile(c *gin.Context, field string, required bool) (*formUpload, bool) {
	header, err := c.FormFile(field)
	if err == http.ErrMissingFile && !required {
		return nil, true
	}
	if err != nil {
		handler.Fail(c, errors.NewValidation("upload", []errors.FieldError{{
			Field:   field,
			Message: "a file is required",
		}}))
		return nil, false
	}
	file, err := header.Open()
	if err != nil {
		handler.Fail(c, errors.NewBadRequest("failed to read upload", err))
		return nil, false
	}
	return &formUpload{
		Upload: document.Upload{Name: header.Filename, Content: file},
		file:   file,
	}, true
}

// bindDocument reads the document metadata form fields.
func bindDocument(c *gin.Context, doc *model.Document) bool {
	doc.Title = c.PostForm("title")
	if notes, ok := c.GetPostForm("notes"); ok {
		doc.Notes = &notes
	}
	if raw := c.PostForm("document_date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			handler.Fail(c, errors.NewBadRequest("invalid document_date", err))
			return false
		}
		doc.DocumentDate = &d
	}
	return true
}

func attachmentType(c *gin.Context, raw string) (*model.AttachmentType, bool) {
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		handler.Fail(c, errors.NewBadRequest("invalid attachment_type", err))
		return nil, false
	}
	t := model.AttachmentType(n)
	return &t, true
}
