package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/osteo-api/internal/repository"
)

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	BaseRepository
	repos *repository.Repositories
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		BaseRepository: NewBaseRepository(db),
		repos:          newRepositories(db),
	}
}

func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

func (s *Store) WithTx(ctx context.Context, fn func(*repository.Repositories) error) error {
	return s.BaseRepository.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(q Querier) *repository.Repositories {
	return &repository.Repositories{
		Patients:          NewPatientRepository(q),
		Doctors:           NewDoctorRepository(q),
		Children:          NewChildrenRepository(q),
		Examinations:      NewExaminationRepository(q),
		Comments:          NewExaminationCommentRepository(q),
		Invoices:          NewInvoiceRepository(q),
		PaimentMeans:      NewPaimentMeanRepository(q),
		Paiments:          NewPaimentRepository(q),
		Events:            NewOfficeEventRepository(q),
		OfficeSettings:    NewOfficeSettingsRepository(q),
		TherapeutSettings: NewTherapeutSettingsRepository(q),
		Documents:         NewDocumentRepository(q),
		PatientDocuments:  NewPatientDocumentRepository(q),
		FileImports:       NewFileImportRepository(q),
		Outbox:            NewOutboxRepository(q),
	}
}
