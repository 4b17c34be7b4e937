package document

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

// CreateFileImport stores the patient file and the optional examination file
// under imports/ and records them.
func (s *Service) CreateFileImport(ctx context.Context, fi *model.FileImport, patients Upload, examinations *Upload) error {
	if patients.Content == nil {
		return errors.NewValidation("FileImport", []errors.FieldError{{
			Field:   "file_patient",
			Message: "file_patient is required",
		}})
	}

	var saved []string
	p, err := s.files.Save(ctx, model.FileImportsDir, patients.Name, patients.Content)
	if err != nil {
		return fmt.Errorf("failed to store patient file: %w", err)
	}
	saved = append(saved, p)
	fi.FilePatient = p

	if examinations != nil && examinations.Content != nil {
		p, err := s.files.Save(ctx, model.FileImportsDir, examinations.Name, examinations.Content)
		if err != nil {
			return s.discard(ctx, fmt.Errorf("failed to store examination file: %w", err), saved...)
		}
		saved = append(saved, p)
		fi.FileExamination = p
	}

	if err := s.validator.Validate(fi); err != nil {
		return s.discard(ctx, err, saved...)
	}
	if err := s.store.Repos().FileImports.Create(ctx, fi); err != nil {
		return s.discard(ctx, fmt.Errorf("failed to create file import: %w", err), saved...)
	}
	return nil
}

func (s *Service) GetFileImport(ctx context.Context, id uuid.UUID) (*model.FileImport, error) {
	fi, err := s.store.Repos().FileImports.Get(ctx, id)
	if err != nil {
		return nil, notFound("file import", fmt.Errorf("failed to get file import: %w", err))
	}
	return fi, nil
}

// DeleteFileImport removes the record, then both of its files. Each file is
// attempted even when the other fails.
func (s *Service) DeleteFileImport(ctx context.Context, id uuid.UUID) error {
	fi, err := s.deleteImport(ctx, id)
	if err != nil {
		return err
	}
	return s.cleanup(ctx, fi.Files()...)
}

func (s *Service) deleteImport(ctx context.Context, id uuid.UUID) (*model.FileImport, error) {
	var fi *model.FileImport
	err := s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		var err error
		fi, err = repos.FileImports.Get(ctx, id)
		if err != nil {
			return notFound("file import", fmt.Errorf("failed to get file import: %w", err))
		}
		if err := repos.FileImports.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete file import: %w", err)
		}
		return nil
	})
	return fi, err
}

// PurgeFileImports deletes up to limit imports created before the cutoff and
// returns how many records were removed. File cleanup failures do not stop
// the purge; they are returned joined once every import was processed.
func (s *Service) PurgeFileImports(ctx context.Context, before time.Time, limit int) (int, error) {
	stale, err := s.store.Repos().FileImports.ListCreatedBefore(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale file imports: %w", err)
	}

	var (
		purged  int
		cleanup []error
	)
	for _, fi := range stale {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if _, err := s.deleteImport(ctx, fi.ID); err != nil {
			if errors.HasCode(err, errors.ErrNotFound) {
				continue
			}
			return purged, err
		}
		purged++
		s.metrics.FileImportPurged()
		if err := s.cleanup(ctx, fi.Files()...); err != nil {
			cleanup = append(cleanup, err)
		}
	}

	if purged > 0 {
		s.logger.Info().Int("purged", purged).Time("before", before).Msg("file imports purged")
	}
	return purged, stderrors.Join(cleanup...)
}
