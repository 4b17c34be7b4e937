package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/internal/service/settings"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

type InvoiceService interface {
	Create(ctx context.Context, examID uuid.UUID, draft *model.Invoice) (*model.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error)
	Cancel(ctx context.Context, id uuid.UUID, req *CancelRequest) (*model.Invoice, error)

	CreatePaimentMean(ctx context.Context, mean *model.PaimentMean) error
	GetPaimentMean(ctx context.Context, id uuid.UUID) (*model.PaimentMean, error)
	UpdatePaimentMean(ctx context.Context, mean *model.PaimentMean) error
	DeletePaimentMean(ctx context.Context, id uuid.UUID) error
	ListPaimentMeans(ctx context.Context, enabledOnly bool) ([]*model.PaimentMean, error)

	CreatePaiment(ctx context.Context, paiment *model.Paiment) error
	ListPaiments(ctx context.Context, dates model.DateRange) ([]*model.Paiment, error)
	PaimentsForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Paiment, error)
}

// CancelRequest describes how an invoice is cancelled. With Reissue a new
// invoice replaces it, taking Amount and PaimentMode when set; otherwise a
// credit note is generated.
type CancelRequest struct {
	Reissue     bool             `json:"reissue"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	PaimentMode string           `json:"paiment_mode,omitempty"`
}

const (
	replacementReissue    = "reissue"
	replacementCreditNote = "creditnote"
)

type Service struct {
	store     repository.Store
	settings  settings.SettingsService
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store repository.Store, settingsSvc settings.SettingsService, v validator.Validator, m *metrics.Metrics, logger zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		settings:  settingsSvc,
		validator: v,
		metrics:   m,
		logger:    logger.With().Str("service", "invoice").Logger(),
		now:       now,
	}
}

func notFound(resource string, err error) error {
	if repository.IsNotFound(err) {
		return errors.NewNotFound(resource, err)
	}
	return err
}

// Create issues an invoice for the examination. The draft carries what the
// practitioner typed (amount, paiment mode, names); the rest is copied from
// the office, therapeut and patient records. The invoice takes the next
// number of the office sequence and the examination waits for paiement.
func (s *Service) Create(ctx context.Context, examID uuid.UUID, draft *model.Invoice) (*model.Invoice, error) {
	userID, _ := auth.UserIDFromContext(ctx)

	err := s.settings.UpdateOffice(ctx, func(repos *repository.Repositories, office *model.OfficeSettings) error {
		exam, err := repos.Examinations.Get(ctx, examID)
		if err != nil {
			return notFound("examination", fmt.Errorf("failed to get examination: %w", err))
		}
		if err := s.prepare(ctx, repos, draft, office, exam, userID); err != nil {
			return err
		}
		draft.Type = model.InvoiceTypeInvoice
		draft.Status = model.InvoiceStatusWaitingForPaiement
		draft.CanceledBy = nil
		if err := s.issue(ctx, repos, draft, office, exam, userID); err != nil {
			return err
		}

		exam.Status = model.ExaminationStatusWaitingForPaiement
		if err := repos.Examinations.Update(ctx, exam); err != nil {
			return fmt.Errorf("failed to update examination status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceCreated()
	s.logger.Info().Str("invoice_id", draft.ID.String()).Str("number", draft.Number).Msg("invoice issued")
	return draft, nil
}

// prepare snapshots the office, therapeut and patient data into inv.
func (s *Service) prepare(ctx context.Context, repos *repository.Repositories, inv *model.Invoice, office *model.OfficeSettings, exam *model.Examination, userID uuid.UUID) error {
	patient, err := repos.Patients.Get(ctx, exam.PatientID)
	if err != nil {
		return notFound("patient", fmt.Errorf("failed to get patient: %w", err))
	}

	therapeutID := userID
	if therapeutID == uuid.Nil && exam.TherapeutID != nil {
		therapeutID = *exam.TherapeutID
	}
	ts := model.DefaultTherapeutSettings(therapeutID)
	if therapeutID != uuid.Nil {
		found, err := repos.TherapeutSettings.GetByUser(ctx, therapeutID)
		switch {
		case err == nil:
			ts = found
		case !repository.IsNotFound(err):
			return fmt.Errorf("failed to get therapeut settings: %w", err)
		}
	}

	snapshot(inv, office, ts, patient, exam)
	if therapeutID == uuid.Nil {
		inv.TherapeutID = nil
	}
	return nil
}

// issue numbers, validates and stores inv, then links it to the examination.
func (s *Service) issue(ctx context.Context, repos *repository.Repositories, inv *model.Invoice, office *model.OfficeSettings, exam *model.Examination, userID uuid.UUID) error {
	number, next := settings.NextInvoiceNumber(office.InvoiceStartSequence)
	inv.Number = number
	office.InvoiceStartSequence = next
	inv.Clean(s.now())

	if err := s.validator.Validate(inv); err != nil {
		return err
	}
	if err := repos.Invoices.Create(ctx, inv); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	if err := repos.Examinations.AttachInvoice(ctx, exam.ID, inv.ID); err != nil {
		return fmt.Errorf("failed to attach invoice: %w", err)
	}
	if userID != uuid.Nil {
		return s.settings.RecordSequenceChange(ctx, repos, next, userID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.store.Repos().Invoices.Get(ctx, id)
	if err != nil {
		return nil, notFound("invoice", fmt.Errorf("failed to get invoice: %w", err))
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error) {
	invoices, err := s.store.Repos().Invoices.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// Cancel marks the invoice CANCELED and links it to its replacement, a
// reissued invoice or a credit note, all in one transaction. It returns the
// replacement. Cancelling an already cancelled invoice is a conflict.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, req *CancelRequest) (*model.Invoice, error) {
	if req == nil {
		req = &CancelRequest{}
	}
	userID, _ := auth.UserIDFromContext(ctx)
	var replacement *model.Invoice

	err := s.settings.UpdateOffice(ctx, func(repos *repository.Repositories, office *model.OfficeSettings) error {
		original, err := repos.Invoices.Get(ctx, id)
		if err != nil {
			return notFound("invoice", fmt.Errorf("failed to get invoice: %w", err))
		}
		if original.CanceledBy != nil {
			return errors.NewConflict(fmt.Sprintf("invoice %s is already cancelled", original.Number), nil)
		}
		exam, err := repos.Examinations.FindByInvoice(ctx, id)
		if err != nil {
			return notFound("examination", fmt.Errorf("failed to find examination of invoice: %w", err))
		}

		if req.Reissue {
			replacement = &model.Invoice{
				Amount:             original.Amount,
				PaimentMode:        original.PaimentMode,
				Currency:           original.Currency,
				Location:           original.Location,
				TherapeutName:      original.TherapeutName,
				TherapeutFirstName: original.TherapeutFirstName,
			}
			if req.Amount != nil {
				replacement.Amount = *req.Amount
			}
			if req.PaimentMode != "" {
				replacement.PaimentMode = req.PaimentMode
			}
			if err := s.prepare(ctx, repos, replacement, office, exam, userID); err != nil {
				return err
			}
			replacement.Type = model.InvoiceTypeInvoice
			replacement.Status = model.InvoiceStatusWaitingForPaiement
			exam.Status = model.ExaminationStatusWaitingForPaiement
		} else {
			replacement = creditNote(original)
			exam.Status = model.ExaminationStatusInProgress
		}

		if err := s.issue(ctx, repos, replacement, office, exam, userID); err != nil {
			return err
		}
		if err := repos.Invoices.MarkCanceled(ctx, original.ID, replacement.ID); err != nil {
			if repository.IsNotFound(err) {
				return errors.NewConflict(fmt.Sprintf("invoice %s is already cancelled", original.Number), err)
			}
			return fmt.Errorf("failed to cancel invoice: %w", err)
		}
		if err := repos.Examinations.Update(ctx, exam); err != nil {
			return fmt.Errorf("failed to update examination status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := replacementCreditNote
	if req.Reissue {
		kind = replacementReissue
	}
	s.metrics.InvoiceCanceled(kind)
	s.logger.Info().
		Str("invoice_id", id.String()).
		Str("replacement_id", replacement.ID.String()).
		Str("replacement", kind).
		Msg("invoice cancelled")
	return replacement, nil
}

func (s *Service) CreatePaimentMean(ctx context.Context, mean *model.PaimentMean) error {
	if err := s.validator.Validate(mean); err != nil {
		return err
	}
	if err := s.store.Repos().PaimentMeans.Create(ctx, mean); err != nil {
		return fmt.Errorf("failed to create paiment mean: %w", err)
	}
	return nil
}

func (s *Service) GetPaimentMean(ctx context.Context, id uuid.UUID) (*model.PaimentMean, error) {
	mean, err := s.store.Repos().PaimentMeans.Get(ctx, id)
	if err != nil {
		return nil, notFound("paiment mean", fmt.Errorf("failed to get paiment mean: %w", err))
	}
	return mean, nil
}

func (s *Service) UpdatePaimentMean(ctx context.Context, mean *model.PaimentMean) error {
	if err := s.validator.Validate(mean); err != nil {
		return err
	}
	if err := s.store.Repos().PaimentMeans.Update(ctx, mean); err != nil {
		return notFound("paiment mean", fmt.Errorf("failed to update paiment mean: %w", err))
	}
	return nil
}

func (s *Service) DeletePaimentMean(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().PaimentMeans.Delete(ctx, id); err != nil {
		return notFound("paiment mean", fmt.Errorf("failed to delete paiment mean: %w", err))
	}
	return nil
}

func (s *Service) ListPaimentMeans(ctx context.Context, enabledOnly bool) ([]*model.PaimentMean, error) {
	means, err := s.store.Repos().PaimentMeans.List(ctx, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list paiment means: %w", err)
	}
	return means, nil
}

// CreatePaiment records a paiment against its invoices. An invoice whose
// paiments reach its amount becomes INVOICED_PAID, and so does its
// examination.
func (s *Service) CreatePaiment(ctx context.Context, paiment *model.Paiment) error {
	if err := s.validator.Validate(paiment); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		invoices := make([]*model.Invoice, 0, len(paiment.InvoiceIDs))
		for _, id := range paiment.InvoiceIDs {
			inv, err := repos.Invoices.Get(ctx, id)
			if err != nil {
				return notFound("invoice", fmt.Errorf("failed to get invoice: %w", err))
			}
			if !inv.IsLive() {
				return errors.NewConflict(fmt.Sprintf("invoice %s cannot be paid", inv.Number), nil)
			}
			invoices = append(invoices, inv)
		}
		if err := repos.Paiments.Create(ctx, paiment); err != nil {
			return fmt.Errorf("failed to create paiment: %w", err)
		}
		for _, inv := range invoices {
			if err := s.settle(ctx, repos, inv); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) settle(ctx context.Context, repos *repository.Repositories, inv *model.Invoice) error {
	paiments, err := repos.Paiments.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to list invoice paiments: %w", err)
	}
	paid := decimal.Zero
	for _, p := range paiments {
		paid = paid.Add(p.Amount)
	}
	if paid.LessThan(inv.Amount) || inv.Status == model.InvoiceStatusInvoicedPaid {
		return nil
	}

	if err := repos.Invoices.UpdateStatus(ctx, inv.ID, model.InvoiceStatusInvoicedPaid); err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	exam, err := repos.Examinations.FindByInvoice(ctx, inv.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to find examination of invoice: %w", err)
	}
	exam.Status = model.ExaminationStatusInvoicedPaid
	if err := repos.Examinations.Update(ctx, exam); err != nil {
		return fmt.Errorf("failed to update examination status: %w", err)
	}
	return nil
}

func (s *Service) ListPaiments(ctx context.Context, dates model.DateRange) ([]*model.Paiment, error) {
	paiments, err := s.store.Repos().Paiments.List(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list paiments: %w", err)
	}
	return paiments, nil
}

// PaimentsForInvoice returns the invoice's paiments, most recent first.
func (s *Service) PaimentsForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Paiment, error) {
	if _, err := s.store.Repos().Invoices.Get(ctx, invoiceID); err != nil {
		return nil, notFound("invoice", fmt.Errorf("failed to get invoice: %w", err))
	}
	paiments, err := s.store.Repos().Paiments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice paiments: %w", err)
	}
	return paiments, nil
}
