package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/internal/service/event"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

const (
	officeKey       = "office"
	therapeutPrefix = "therapeut:"
)

type SettingsService interface {
	Office(ctx context.Context) (*model.OfficeSettings, error)
	SaveOffice(ctx context.Context, settings *model.OfficeSettings) error
	UpdateOffice(ctx context.Context, fn func(repos *repository.Repositories, office *model.OfficeSettings) error) error
	RecordSequenceChange(ctx context.Context, repos *repository.Repositories, sequence string, userID uuid.UUID) error
	Therapeut(ctx context.Context, userID uuid.UUID) (*model.TherapeutSettings, error)
	SaveTherapeut(ctx context.Context, settings *model.TherapeutSettings) error
}

// Service manages the office singleton and the per user settings. Writers
// of the office row are serialised; reads go through a short lived cache
// that every write invalidates.
type Service struct {
	store     repository.Store
	validator validator.Validator
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	cache *cache.Cache
}

func NewService(store repository.Store, v validator.Validator, logger zerolog.Logger, now func() time.Time, ttl time.Duration) *Service {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		store:     store,
		validator: v,
		logger:    logger.With().Str("service", "settings").Logger(),
		now:       now,
		cache:     cache.New(ttl, 2*ttl),
	}
}

// Office returns the office settings. A cache miss is filled under the
// writer lock so a row read before a save cannot outlive that save in the
// cache.
func (s *Service) Office(ctx context.Context) (*model.OfficeSettings, error) {
	if cached, ok := s.cache.Get(officeKey); ok {
		o := cached.(model.OfficeSettings)
		return &o, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache.Get(officeKey); ok {
		o := cached.(model.OfficeSettings)
		return &o, nil
	}
	office, err := s.store.Repos().OfficeSettings.Get(ctx)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NewNotFound("office settings", err)
		}
		return nil, fmt.Errorf("failed to get office settings: %w", err)
	}
	s.cache.SetDefault(officeKey, *office)
	return office, nil
}

// SaveOffice replaces the office settings. A changed invoice sequence is
// journaled as an UPDATE_INVOICE_SEQUENCE event when the caller is known.
func (s *Service) SaveOffice(ctx context.Context, settings *model.OfficeSettings) error {
	if err := s.validator.Validate(settings); err != nil {
		return err
	}
	userID, _ := auth.UserIDFromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cache.Delete(officeKey)

	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		previous, err := repos.OfficeSettings.Get(ctx)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("failed to get office settings: %w", err)
		}
		if err := repos.OfficeSettings.Save(ctx, settings); err != nil {
			return fmt.Errorf("failed to save office settings: %w", err)
		}
		if previous != nil && previous.InvoiceStartSequence != settings.InvoiceStartSequence && userID != uuid.Nil {
			return s.sequenceEvent(ctx, repos, settings.InvoiceStartSequence, userID)
		}
		return nil
	})
}

// UpdateOffice runs fn on the current office settings inside one
// transaction, holding the writer lock, and saves what fn left in office.
func (s *Service) UpdateOffice(ctx context.Context, fn func(repos *repository.Repositories, office *model.OfficeSettings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cache.Delete(officeKey)

	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		office, err := repos.OfficeSettings.Get(ctx)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.NewNotFound("office settings", err)
			}
			return fmt.Errorf("failed to get office settings: %w", err)
		}
		if err := fn(repos, office); err != nil {
			return err
		}
		if err := repos.OfficeSettings.Save(ctx, office); err != nil {
			return fmt.Errorf("failed to save office settings: %w", err)
		}
		return nil
	})
}

// RecordSequenceChange journals a new invoice sequence inside repos' transaction.
func (s *Service) RecordSequenceChange(ctx context.Context, repos *repository.Repositories, sequence string, userID uuid.UUID) error {
	return s.sequenceEvent(ctx, repos, sequence, userID)
}

func (s *Service) sequenceEvent(ctx context.Context, repos *repository.Repositories, sequence string, userID uuid.UUID) error {
	s.logger.Info().Str("sequence", sequence).Str("user_id", userID.String()).Msg("invoice sequence updated")
	return event.Write(ctx, repos, &model.OfficeEvent{
		Clazz:   model.OfficeEventClassOfficeSettings,
		Type:    model.OfficeEventUpdateInvoiceSequence,
		Comment: sequence,
		UserID:  userID,
	}, s.now())
}

// Therapeut returns the user's settings, or the defaults when none were saved.
func (s *Service) Therapeut(ctx context.Context, userID uuid.UUID) (*model.TherapeutSettings, error) {
	key := therapeutPrefix + userID.String()
	if cached, ok := s.cache.Get(key); ok {
		ts := cached.(model.TherapeutSettings)
		return &ts, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts, err := s.store.Repos().TherapeutSettings.GetByUser(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return model.DefaultTherapeutSettings(userID), nil
		}
		return nil, fmt.Errorf("failed to get therapeut settings: %w", err)
	}
	s.cache.SetDefault(key, *ts)
	return ts, nil
}

func (s *Service) SaveTherapeut(ctx context.Context, settings *model.TherapeutSettings) error {
	settings.Normalize()
	if err := s.validator.Validate(settings); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cache.Delete(therapeutPrefix + settings.UserID.String())

	if err := s.store.Repos().TherapeutSettings.Save(ctx, settings); err != nil {
		return fmt.Errorf("failed to save therapeut settings: %w", err)
	}
	return nil
}
