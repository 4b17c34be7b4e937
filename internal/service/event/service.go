package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

// OutboxEventType is the outbox event_type of published office events.
const OutboxEventType = "office_event"

type EventService interface {
	Record(ctx context.Context, event *model.OfficeEvent) error
	List(ctx context.Context, filters *model.OfficeEventFilters) ([]*model.OfficeEvent, error)
}

type Service struct {
	store     repository.Store
	validator validator.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store repository.Store, v validator.Validator, logger zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		validator: v,
		logger:    logger.With().Str("service", "event").Logger(),
		now:       now,
	}
}

// Record validates and stores an office event together with its outbox row.
func (s *Service) Record(ctx context.Context, event *model.OfficeEvent) error {
	event.Clean(s.now())
	if err := s.validator.Validate(event); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(repos *repository.Repositories) error {
		return Write(ctx, repos, event, s.now())
	})
}

func (s *Service) List(ctx context.Context, filters *model.OfficeEventFilters) ([]*model.OfficeEvent, error) {
	events, err := s.store.Repos().Events.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list office events: %w", err)
	}
	return events, nil
}

// Write stores event and queues it for publication using repos, which the
// caller usually binds to its own transaction.
func Write(ctx context.Context, repos *repository.Repositories, event *model.OfficeEvent, now time.Time) error {
	event.Clean(now)
	if err := repos.Events.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create office event: %w", err)
	}

	payload, err := json.Marshal(model.NewOfficeEventMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal office event: %w", err)
	}
	if err := repos.Outbox.Create(ctx, &model.OutboxEvent{
		EventType: OutboxEventType,
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("failed to queue office event: %w", err)
	}
	return nil
}
