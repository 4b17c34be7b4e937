package examination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/invoicechain"
	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

type ExaminationService interface {
	CreateExamination(ctx context.Context, exam *model.Examination) error
	GetExamination(ctx context.Context, id uuid.UUID) (*model.Examination, error)
	UpdateExamination(ctx context.Context, exam *model.Examination) error
	DeleteExamination(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Examination, error)

	AddComment(ctx context.Context, comment *model.ExaminationComment) error
	ListComments(ctx context.Context, examID uuid.UUID) ([]*model.ExaminationComment, error)

	InvoiceView(ctx context.Context, examID uuid.UUID) (*model.InvoiceView, error)
	AttachInvoice(ctx context.Context, examID, invoiceID uuid.UUID) error
}

type Service struct {
	store     repository.Store
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store repository.Store, v validator.Validator, m *metrics.Metrics, logger zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		validator: v,
		metrics:   m,
		logger:    logger.With().Str("service", "examination").Logger(),
		now:       now,
	}
}

func notFound(resource string, err error) error {
	if repository.IsNotFound(err) {
		return errors.NewNotFound(resource, err)
	}
	return err
}

// CreateExamination stores a new examination. Without an explicit therapeut
// the authenticated user is recorded.
func (s *Service) CreateExamination(ctx context.Context, exam *model.Examination) error {
	if exam.TherapeutID == nil {
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			exam.TherapeutID = &userID
		}
	}
	if err := s.validator.Validate(exam); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Patients.Get(ctx, exam.PatientID); err != nil {
			return notFound("patient", fmt.Errorf("failed to get patient: %w", err))
		}
		if err := repos.Examinations.Create(ctx, exam); err != nil {
			return fmt.Errorf("failed to create examination: %w", err)
		}
		return nil
	})
}

func (s *Service) GetExamination(ctx context.Context, id uuid.UUID) (*model.Examination, error) {
	exam, err := s.store.Repos().Examinations.Get(ctx, id)
	if err != nil {
		return nil, notFound("examination", fmt.Errorf("failed to get examination: %w", err))
	}
	return exam, nil
}

func (s *Service) UpdateExamination(ctx context.Context, exam *model.Examination) error {
	if err := s.validator.Validate(exam); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Patients.Get(ctx, exam.PatientID); err != nil {
			return notFound("patient", fmt.Errorf("failed to get patient: %w", err))
		}
		if err := repos.Examinations.Update(ctx, exam); err != nil {
			return notFound("examination", fmt.Errorf("failed to update examination: %w", err))
		}
		return nil
	})
}

func (s *Service) DeleteExamination(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().Examinations.Delete(ctx, id); err != nil {
		return notFound("examination", fmt.Errorf("failed to delete examination: %w", err))
	}
	return nil
}

// ListByPatient returns the patient's examinations, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Examination, error) {
	exams, err := s.store.Repos().Examinations.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list examinations: %w", err)
	}
	return exams, nil
}

func (s *Service) AddComment(ctx context.Context, comment *model.ExaminationComment) error {
	comment.Clean(s.now())
	if comment.UserID == nil {
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			comment.UserID = &userID
		}
	}
	if err := s.validator.Validate(comment); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Examinations.Get(ctx, comment.ExaminationID); err != nil {
			return notFound("examination", fmt.Errorf("failed to get examination: %w", err))
		}
		if err := repos.Comments.Create(ctx, comment); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		return nil
	})
}

func (s *Service) ListComments(ctx context.Context, examID uuid.UUID) ([]*model.ExaminationComment, error) {
	comments, err := s.store.Repos().Comments.ListByExamination(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// InvoiceView resolves the examination's invoices into its current number,
// last live invoice and history. A cyclic or broken chain is reported as a
// data integrity error.
func (s *Service) InvoiceView(ctx context.Context, examID uuid.UUID) (*model.InvoiceView, error) {
	repos := s.store.Repos()
	if _, err := repos.Examinations.Get(ctx, examID); err != nil {
		return nil, notFound("examination", fmt.Errorf("failed to get examination: %w", err))
	}

	associated, err := repos.Examinations.ListInvoices(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list examination invoices: %w", err)
	}
	chains, err := repos.Examinations.InvoiceChains(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice chains: %w", err)
	}

	view, err := invoicechain.View(invoicechain.NewIndex(chains...), associated)
	if err != nil {
		s.metrics.ChainIntegrityFailed()
		s.logger.Error().Err(err).Str("examination_id", examID.String()).Msg("invoice chain integrity failure")
		return nil, err
	}
	return view, nil
}

func (s *Service) AttachInvoice(ctx context.Context, examID, invoiceID uuid.UUID) error {
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Examinations.Get(ctx, examID); err != nil {
			return notFound("examination", fmt.Errorf("failed to get examination: %w", err))
		}
		if _, err := repos.Invoices.Get(ctx, invoiceID); err != nil {
			return notFound("invoice", fmt.Errorf("failed to get invoice: %w", err))
		}
		if err := repos.Examinations.AttachInvoice(ctx, examID, invoiceID); err != nil {
			return fmt.Errorf("failed to attach invoice: %w", err)
		}
		return nil
	})
}
