package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
)

type officeEventRepository struct {
	q Querier
}

func NewOfficeEventRepository(q Querier) repository.OfficeEventRepository {
	return &officeEventRepository{q: q}
}

func (r *officeEventRepository) Create(ctx context.Context, event *model.OfficeEvent) error {
	query := `
		INSERT INTO office_events (id, created_at, updated_at, date, clazz, type, comment, reference, entity_id, user_id)
		VALUES (:id, :created_at, :updated_at, :date, :clazz, :type, :comment, :reference, :entity_id, :user_id)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to create office event: %w", err)
	}
	return nil
}

func (r *officeEventRepository) List(ctx context.Context, filters *model.OfficeEventFilters) ([]*model.OfficeEvent, error) {
	if filters == nil {
		filters = &model.OfficeEventFilters{}
	}
	var (
		where []string
		args  []interface{}
	)
	if filters.Clazz != "" {
		args = append(args, filters.Clazz)
		where = append(where, fmt.Sprintf("clazz = $%d", len(args)))
	}
	if filters.UserID != nil {
		args = append(args, *filters.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT * FROM office_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit(), filters.Offset())
	query += fmt.Sprintf(" ORDER BY date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var events []*model.OfficeEvent
	if err := r.q.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list office events: %w", err)
	}
	return events, nil
}

type officeSettingsRepository struct {
	q Querier
}

func NewOfficeSettingsRepository(q Querier) repository.OfficeSettingsRepository {
	return &officeSettingsRepository{q: q}
}

func (r *officeSettingsRepository) Get(ctx context.Context) (*model.OfficeSettings, error) {
	var settings model.OfficeSettings
	err := r.q.GetContext(ctx, &settings, `SELECT * FROM office_settings WHERE id = $1`, model.OfficeSettingsID)
	if err != nil {
		return nil, fmt.Errorf("failed to get office settings: %w", err)
	}
	return &settings, nil
}

// Save always writes row 1, whatever identifier the caller set.
func (r *officeSettingsRepository) Save(ctx context.Context, settings *model.OfficeSettings) error {
	query := `
		INSERT INTO office_settings (
			id, icon, invoice_office_header, office_address_street, office_address_complement,
			office_address_zipcode, office_address_city, office_phone, office_siret, amount,
			currency, invoice_content, invoice_footer, invoice_start_sequence, updated_at
		) VALUES (
			:id, :icon, :invoice_office_header, :office_address_street, :office_address_complement,
			:office_address_zipcode, :office_address_city, :office_phone, :office_siret, :amount,
			:currency, :invoice_content, :invoice_footer, :invoice_start_sequence, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			icon = EXCLUDED.icon,
			invoice_office_header = EXCLUDED.invoice_office_header,
			office_address_street = EXCLUDED.office_address_street,
			office_address_complement = EXCLUDED.office_address_complement,
			office_address_zipcode = EXCLUDED.office_address_zipcode,
			office_address_city = EXCLUDED.office_address_city,
			office_phone = EXCLUDED.office_phone,
			office_siret = EXCLUDED.office_siret,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			invoice_content = EXCLUDED.invoice_content,
			invoice_footer = EXCLUDED.invoice_footer,
			invoice_start_sequence = EXCLUDED.invoice_start_sequence,
			updated_at = EXCLUDED.updated_at
	`
	settings.ID = model.OfficeSettingsID
	settings.UpdatedAt = time.Now()

	if _, err := r.q.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("failed to save office settings: %w", err)
	}
	return nil
}

type therapeutSettingsRepository struct {
	q Querier
}

func NewTherapeutSettingsRepository(q Querier) repository.TherapeutSettingsRepository {
	return &therapeutSettingsRepository{q: q}
}

func (r *therapeutSettingsRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.TherapeutSettings, error) {
	var settings model.TherapeutSettings
	err := r.q.GetContext(ctx, &settings, `SELECT * FROM therapeut_settings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapeut settings: %w", err)
	}
	return &settings, nil
}

func (r *therapeutSettingsRepository) Save(ctx context.Context, settings *model.TherapeutSettings) error {
	query := `
		INSERT INTO therapeut_settings (
			id, created_at, updated_at, user_id, num_diplome, code_ape, adeli, quality, siret,
			invoice_footer, stats_enabled, last_events_enabled
		) VALUES (
			:id, :created_at, :updated_at, :user_id, :num_diplome, :code_ape, :adeli, :quality, :siret,
			:invoice_footer, :stats_enabled, :last_events_enabled
		)
		ON CONFLICT (user_id) DO UPDATE SET
			num_diplome = EXCLUDED.num_diplome,
			code_ape = EXCLUDED.code_ape,
			adeli = EXCLUDED.adeli,
			quality = EXCLUDED.quality,
			siret = EXCLUDED.siret,
			invoice_footer = EXCLUDED.invoice_footer,
			stats_enabled = EXCLUDED.stats_enabled,
			last_events_enabled = EXCLUDED.last_events_enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	q, args, err := r.q.BindNamed(query, settings)
	if err != nil {
		return fmt.Errorf("failed to bind therapeut settings: %w", err)
	}
	if err := r.q.QueryRowxContext(ctx, q, args...).Scan(&settings.ID, &settings.CreatedAt); err != nil {
		return fmt.Errorf("failed to save therapeut settings: %w", err)
	}
	return nil
}
