package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/internal/service/event"
	"github.com/jwalitptl/osteo-api/internal/storage"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

type PatientService interface {
	CreatePatient(ctx context.Context, patient *model.Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, patient *model.Patient) error
	DeletePatient(ctx context.Context, id uuid.UUID) error
	ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)

	CreateChild(ctx context.Context, child *model.Children) error
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.Children, error)
	DeleteChild(ctx context.Context, id uuid.UUID) error

	CreateDoctor(ctx context.Context, doctor *model.RegularDoctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*model.RegularDoctor, error)
	UpdateDoctor(ctx context.Context, doctor *model.RegularDoctor) error
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	ListDoctors(ctx context.Context) ([]*model.RegularDoctor, error)
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
		logger:    logger.With().Str("service", "patient").Logger(),
		now:       now,
	}
}

func notFound(resource string, err error) error {
	if repository.IsNotFound(err) {
		return errors.NewNotFound(resource, err)
	}
	return err
}

func (s *Service) CreatePatient(ctx context.Context, patient *model.Patient) error {
	patient.Clean(s.now())
	if err := s.validator.Validate(patient); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if err := s.checkDoctor(ctx, repos, patient.DoctorID); err != nil {
			return err
		}
		if err := repos.Patients.Create(ctx, patient); err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
		}
		return s.journal(ctx, repos, model.OfficeEventNewPatient, patient)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("patient_id", patient.ID.String()).Msg("patient created")
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.store.Repos().Patients.Get(ctx, id)
	if err != nil {
		return nil, notFound("patient", fmt.Errorf("failed to get patient: %w", err))
	}
	return patient, nil
}

// UpdatePatient replaces the patient. The creation date set at creation is
// kept whatever the caller sends.
func (s *Service) UpdatePatient(ctx context.Context, patient *model.Patient) error {
	patient.Clean(s.now())
	if err := s.validator.Validate(patient); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		current, err := repos.Patients.Get(ctx, patient.ID)
		if err != nil {
			return notFound("patient", fmt.Errorf("failed to get patient: %w", err))
		}
		patient.CreationDate = current.CreationDate
		if err := s.checkDoctor(ctx, repos, patient.DoctorID); err != nil {
			return err
		}
		if err := repos.Patients.Update(ctx, patient); err != nil {
			return notFound("patient", fmt.Errorf("failed to update patient: %w", err))
		}
		return s.journal(ctx, repos, model.OfficeEventUpdatePatient, patient)
	})
}

// DeletePatient removes the patient with its children and filed documents in
// one transaction, then removes the stored document files. A
// *errors.FileCleanupError means the patient is gone but some files remain.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	var paths []string
	err := s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		docs, err := repos.PatientDocuments.ListByPatient(ctx, id, nil)
		if err != nil {
			return fmt.Errorf("failed to list patient documents: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(docs))
		for _, pd := range docs {
			ids = append(ids, pd.DocumentID)
			if pd.Document != nil {
				paths = append(paths, pd.Document.DocumentFile)
			}
		}
		if _, err := repos.Documents.DeleteMany(ctx, ids); err != nil {
			return fmt.Errorf("failed to delete patient documents: %w", err)
		}
		if _, err := repos.Children.DeleteByParent(ctx, id); err != nil {
			return fmt.Errorf("failed to delete children: %w", err)
		}
		if err := repos.Patients.Delete(ctx, id); err != nil {
			return notFound("patient", fmt.Errorf("failed to delete patient: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("patient_id", id.String()).Int("documents", len(paths)).Msg("patient deleted")
	return s.cleanup(ctx, paths)
}

func (s *Service) cleanup(ctx context.Context, paths []string) error {
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

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	patients, err := s.store.Repos().Patients.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) checkDoctor(ctx context.Context, repos *repository.Repositories, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := repos.Doctors.Get(ctx, *id); err != nil {
		if repository.IsNotFound(err) {
			return errors.NewValidation("patient", []errors.FieldError{{Field: "doctor", Message: "doctor does not exist"}})
		}
		return fmt.Errorf("failed to get doctor: %w", err)
	}
	return nil
}

// journal records a patient event when the request is authenticated.
func (s *Service) journal(ctx context.Context, repos *repository.Repositories, typ model.OfficeEventType, patient *model.Patient) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		s.logger.Debug().Str("patient_id", patient.ID.String()).Msg("anonymous change, no office event")
		return nil
	}
	id := patient.ID
	return event.Write(ctx, repos, &model.OfficeEvent{
		Clazz:    model.OfficeEventClassPatient,
		Type:     typ,
		Comment:  patient.FamilyName + " " + patient.FirstName,
		EntityID: &id,
		UserID:   userID,
	}, s.now())
}

func (s *Service) CreateChild(ctx context.Context, child *model.Children) error {
	if err := s.validator.Validate(child); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Patients.Get(ctx, child.ParentID); err != nil {
			return notFound("patient", fmt.Errorf("failed to get parent: %w", err))
		}
		if err := repos.Children.Create(ctx, child); err != nil {
			return fmt.Errorf("failed to create child: %w", err)
		}
		return nil
	})
}

func (s *Service) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.Children, error) {
	children, err := s.store.Repos().Children.ListByParent(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

func (s *Service) DeleteChild(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().Children.Delete(ctx, id); err != nil {
		return notFound("child", fmt.Errorf("failed to delete child: %w", err))
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, doctor *model.RegularDoctor) error {
	if err := s.validator.Validate(doctor); err != nil {
		return err
	}
	if err := s.store.Repos().Doctors.Create(ctx, doctor); err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.RegularDoctor, error) {
	doctor, err := s.store.Repos().Doctors.Get(ctx, id)
	if err != nil {
		return nil, notFound("doctor", fmt.Errorf("failed to get doctor: %w", err))
	}
	return doctor, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, doctor *model.RegularDoctor) error {
	if err := s.validator.Validate(doctor); err != nil {
		return err
	}
	if err := s.store.Repos().Doctors.Update(ctx, doctor); err != nil {
		return notFound("doctor", fmt.Errorf("failed to update doctor: %w", err))
	}
	return nil
}

// DeleteDoctor removes the doctor; patients keep existing without one.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().Doctors.Delete(ctx, id); err != nil {
		return notFound("doctor", fmt.Errorf("failed to delete doctor: %w", err))
	}
	return nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.RegularDoctor, error) {
	doctors, err := s.store.Repos().Doctors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
