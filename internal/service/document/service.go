package document

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/internal/storage"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/mimeutil"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

type DocumentService interface {
	Upload(ctx context.Context, doc *model.Document, file Upload) error
	UploadForPatient(ctx context.Context, pd *model.PatientDocument, file Upload) error
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	Open(ctx context.Context, id uuid.UUID) (*model.Document, io.ReadCloser, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	AttachToPatient(ctx context.Context, pd *model.PatientDocument) error
	GetPatientDocument(ctx context.Context, documentID uuid.UUID) (*model.PatientDocument, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, attachment *model.AttachmentType) ([]*model.PatientDocument, error)
	DeletePatientDocument(ctx context.Context, documentID uuid.UUID) error

	CreateFileImport(ctx context.Context, fi *model.FileImport, patients Upload, examinations *Upload) error
	GetFileImport(ctx context.Context, id uuid.UUID) (*model.FileImport, error)
	DeleteFileImport(ctx context.Context, id uuid.UUID) error
	PurgeFileImports(ctx context.Context, before time.Time, limit int) (int, error)
}

// Upload is a file received from a client.
type Upload struct {
	Name    string
	Content io.Reader
}

type Service struct {
	store     repository.Store
	files     storage.FileStore
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store repository.Store, files storage.FileStore, v validator.Validator, m *metrics.Metrics, logger zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		files:     files,
		validator: v,
		metrics:   m,
		logger:    logger.With().Str("service", "document").Logger(),
		now:       now,
	}
}

func notFound(resource string, err error) error {
	if repository.IsNotFound(err) {
		return errors.NewNotFound(resource, err)
	}
	return err
}

// Upload stores the file under documents/, detects its media type from the
// stored bytes and persists doc. The stored file is removed again when doc
// cannot be saved.
func (s *Service) Upload(ctx context.Context, doc *model.Document, file Upload) error {
	return s.upload(ctx, doc, file, func(repos *repository.Repositories) error {
		if err := repos.Documents.Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		return nil
	})
}

// UploadForPatient uploads pd.Document and files it under the patient in
// one transaction.
func (s *Service) UploadForPatient(ctx context.Context, pd *model.PatientDocument, file Upload) error {
	if pd.Document == nil {
		pd.Document = &model.Document{}
	}
	if !pd.AttachmentType.Valid() {
		return errors.NewValidation("PatientDocument", []errors.FieldError{{
			Field:   "attachment_type",
			Message: "attachment_type is not a known value",
		}})
	}
	return s.upload(ctx, pd.Document, file, func(repos *repository.Repositories) error {
		if _, err := repos.Patients.Get(ctx, pd.PatientID); err != nil {
			return notFound("patient", fmt.Errorf("failed to get patient: %w", err))
		}
		if err := repos.Documents.Create(ctx, pd.Document); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		pd.DocumentID = pd.Document.ID
		if err := repos.PatientDocuments.Create(ctx, pd); err != nil {
			return fmt.Errorf("failed to attach document: %w", err)
		}
		return nil
	})
}

func (s *Service) upload(ctx context.Context, doc *model.Document, file Upload, persist func(*repository.Repositories) error) error {
	if file.Content == nil {
		return errors.NewBadRequest("document file is required", nil)
	}
	p, err := s.files.Save(ctx, model.DocumentsDir, file.Name, file.Content)
	if err != nil {
		return fmt.Errorf("failed to store document file: %w", err)
	}
	doc.DocumentFile = p

	if err := s.detect(ctx, doc, file.Name); err != nil {
		return s.discard(ctx, err, p)
	}
	if doc.UserID == nil {
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			doc.UserID = &userID
		}
	}
	doc.Clean(s.now())
	if err := s.validator.Validate(doc); err != nil {
		return s.discard(ctx, err, p)
	}
	if err := s.store.WithTx(ctx, persist); err != nil {
		return s.discard(ctx, err, p)
	}

	s.logger.Info().Str("document_id", doc.ID.String()).Str("file", p).Msg("document uploaded")
	return nil
}

func (s *Service) detect(ctx context.Context, doc *model.Document, name string) error {
	rc, err := s.files.Open(ctx, doc.DocumentFile)
	if err != nil {
		return fmt.Errorf("failed to open stored document: %w", err)
	}
	defer rc.Close()

	media, err := mimeutil.Detect(rc, name)
	if err != nil {
		return err
	}
	if media == "" {
		doc.MimeType = nil
	} else {
		doc.MimeType = &media
	}
	return nil
}

// discard removes files saved for a write that failed and returns cause.
func (s *Service) discard(ctx context.Context, cause error, paths ...string) error {
	if err := storage.RemoveFiles(ctx, s.files, paths...); err != nil {
		s.logger.Warn().Err(err).Msg("failed to remove files of a rejected upload")
	}
	return cause
}

// cleanup removes the files of committed deletes. Failures are counted and
// logged but the delete stands.
func (s *Service) cleanup(ctx context.Context, paths ...string) error {
	err := storage.RemoveFiles(ctx, s.files, paths...)
	if err == nil {
		return nil
	}
	if fcErr, ok := errors.AsFileCleanup(err); ok {
		s.metrics.FileCleanupFailed(len(fcErr.Paths))
	}
	s.logger.Warn().Err(err).Msg("stored files left behind")
	return err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	doc, err := s.store.Repos().Documents.Get(ctx, id)
	if err != nil {
		return nil, notFound("document", fmt.Errorf("failed to get document: %w", err))
	}
	return doc, nil
}

// Open returns the document and a reader over its stored file. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (*model.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, doc.DocumentFile)
	if err != nil {
		if stderrors.Is(err, storage.ErrNoObject) {
			return nil, nil, errors.NewDataIntegrity(fmt.Sprintf("file of document %s is missing", id), err)
		}
		return nil, nil, fmt.Errorf("failed to open document file: %w", err)
	}
	return doc, rc, nil
}

// DeleteDocument removes the document, and its patient filing if any, then
// its stored file.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	var doc *model.Document
	err := s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		var err error
		doc, err = repos.Documents.Get(ctx, id)
		if err != nil {
			return notFound("document", fmt.Errorf("failed to get document: %w", err))
		}
		if err := repos.Documents.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("document_id", id.String()).Msg("document deleted")
	return s.cleanup(ctx, doc.DocumentFile)
}

func (s *Service) AttachToPatient(ctx context.Context, pd *model.PatientDocument) error {
	if err := s.validator.Validate(pd); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Patients.Get(ctx, pd.PatientID); err != nil {
			return notFound("patient", fmt.Errorf("failed to get patient: %w", err))
		}
		if _, err := repos.Documents.Get(ctx, pd.DocumentID); err != nil {
			return notFound("document", fmt.Errorf("failed to get document: %w", err))
		}
		if _, err := repos.PatientDocuments.Get(ctx, pd.DocumentID); err == nil {
			return errors.NewConflict(fmt.Sprintf("document %s is already filed", pd.DocumentID), nil)
		} else if !repository.IsNotFound(err) {
			return fmt.Errorf("failed to get patient document: %w", err)
		}
		if err := repos.PatientDocuments.Create(ctx, pd); err != nil {
			return fmt.Errorf("failed to attach document: %w", err)
		}
		return nil
	})
}

func (s *Service) GetPatientDocument(ctx context.Context, documentID uuid.UUID) (*model.PatientDocument, error) {
	pd, err := s.store.Repos().PatientDocuments.Get(ctx, documentID)
	if err != nil {
		return nil, notFound("patient document", fmt.Errorf("failed to get patient document: %w", err))
	}
	return pd, nil
}

// ListForPatient returns the patient's documents, newest first, optionally
// restricted to one attachment type.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, attachment *model.AttachmentType) ([]*model.PatientDocument, error) {
	if attachment != nil && !attachment.Valid() {
		return nil, errors.NewBadRequest(fmt.Sprintf("unknown attachment type %d", *attachment), nil)
	}
	docs, err := s.store.Repos().PatientDocuments.ListByPatient(ctx, patientID, attachment)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient documents: %w", err)
	}
	return docs, nil
}

// DeletePatientDocument removes the filing, its document and then the
// document's file.
func (s *Service) DeletePatientDocument(ctx context.Context, documentID uuid.UUID) error {
	var file string
	err := s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		pd, err := repos.PatientDocuments.Get(ctx, documentID)
		if err != nil {
			return notFound("patient document", fmt.Errorf("failed to get patient document: %w", err))
		}
		if pd.Document != nil {
			file = pd.Document.DocumentFile
		}
		if err := repos.Documents.Delete(ctx, documentID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("document_id", documentID.String()).Msg("patient document deleted")
	return s.cleanup(ctx, file)
}
