package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
)

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.RegularDoctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.RegularDoctor, error)
		Update(ctx context.Context, doctor *model.RegularDoctor) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.RegularDoctor, error)
	}

	ChildrenRepository interface {
		Create(ctx context.Context, child *model.Children) error
		Get(ctx context.Context, id uuid.UUID) (*model.Children, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListByParent(ctx context.Context, parentID uuid.UUID) ([]*model.Children, error)
		DeleteByParent(ctx context.Context, parentID uuid.UUID) (int64, error)
	}

	ExaminationRepository interface {
		Create(ctx context.Context, exam *model.Examination) error
		Get(ctx context.Context, id uuid.UUID) (*model.Examination, error)
		Update(ctx context.Context, exam *model.Examination) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Examination, error)
		AttachInvoice(ctx context.Context, examID, invoiceID uuid.UUID) error
		// ListInvoices returns the invoices directly associated with the examination.
		ListInvoices(ctx context.Context, examID uuid.UUID) ([]*model.Invoice, error)
		// InvoiceChains returns every invoice reachable from the associated
		// ones through canceled_by, the associated ones included.
		InvoiceChains(ctx context.Context, examID uuid.UUID) ([]*model.Invoice, error)
		FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (*model.Examination, error)
	}

	ExaminationCommentRepository interface {
		Create(ctx context.Context, comment *model.ExaminationComment) error
		ListByExamination(ctx context.Context, examID uuid.UUID) ([]*model.ExaminationComment, error)
	}

	InvoiceRepository interface {
		Create(ctx context.Context, invoice *model.Invoice) error
		Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
		// MarkCanceled sets the status to CANCELED and links the successor.
		// It fails with sql.ErrNoRows when the invoice is already cancelled.
		MarkCanceled(ctx context.Context, id, canceledBy uuid.UUID) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.InvoiceStatus) error
		List(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error)
	}

	PaimentMeanRepository interface {
		Create(ctx context.Context, mean *model.PaimentMean) error
		Get(ctx context.Context, id uuid.UUID) (*model.PaimentMean, error)
		Update(ctx context.Context, mean *model.PaimentMean) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, enabledOnly bool) ([]*model.PaimentMean, error)
	}

	PaimentRepository interface {
		Create(ctx context.Context, paiment *model.Paiment) error
		ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Paiment, error)
		List(ctx context.Context, dates model.DateRange) ([]*model.Paiment, error)
	}

	OfficeEventRepository interface {
		Create(ctx context.Context, event *model.OfficeEvent) error
		List(ctx context.Context, filters *model.OfficeEventFilters) ([]*model.OfficeEvent, error)
	}

	OfficeSettingsRepository interface {
		Get(ctx context.Context) (*model.OfficeSettings, error)
		// Save inserts or replaces the single settings row.
		Save(ctx context.Context, settings *model.OfficeSettings) error
	}

	TherapeutSettingsRepository interface {
		GetByUser(ctx context.Context, userID uuid.UUID) (*model.TherapeutSettings, error)
		Save(ctx context.Context, settings *model.TherapeutSettings) error
	}

	DocumentRepository interface {
		Create(ctx context.Context, doc *model.Document) error
		Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	}

	PatientDocumentRepository interface {
		Create(ctx context.Context, pd *model.PatientDocument) error
		Get(ctx context.Context, documentID uuid.UUID) (*model.PatientDocument, error)
		// ListByPatient returns the patient's documents with their Document
		// loaded, optionally restricted to one attachment type.
		ListByPatient(ctx context.Context, patientID uuid.UUID, attachment *model.AttachmentType) ([]*model.PatientDocument, error)
	}

	FileImportRepository interface {
		Create(ctx context.Context, fi *model.FileImport) error
		Get(ctx context.Context, id uuid.UUID) (*model.FileImport, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*model.FileImport, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// LockPending locks due events; it must run inside a transaction.
		LockPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		ScheduleRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories groups every repository bound to the same connection or
// transaction.
type Repositories struct {
	Patients          PatientRepository
	Doctors           DoctorRepository
	Children          ChildrenRepository
	Examinations      ExaminationRepository
	Comments          ExaminationCommentRepository
	Invoices          InvoiceRepository
	PaimentMeans      PaimentMeanRepository
	Paiments          PaimentRepository
	Events            OfficeEventRepository
	OfficeSettings    OfficeSettingsRepository
	TherapeutSettings TherapeutSettingsRepository
	Documents         DocumentRepository
	PatientDocuments  PatientDocumentRepository
	FileImports       FileImportRepository
	Outbox            OutboxRepository
}

// Store gives access to the repositories and runs units of work.
type Store interface {
	Repos() *Repositories
	// WithTx runs fn with repositories bound to one transaction, committing
	// when fn returns nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(*Repositories) error) error
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
