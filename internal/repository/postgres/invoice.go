package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
)

type invoiceRepository struct {
	q Querier
}

func NewInvoiceRepository(q Querier) repository.InvoiceRepository {
	return &invoiceRepository{q: q}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, created_at, updated_at, icon, date_examination, num_diplome, code_ape, num_ss,
			num_mut, date, amount, currency, paiment_mode, header, therapeut_name,
			therapeut_first_name, quality, adeli, location, number, patient_family_name,
			patient_original_name, patient_first_name, patient_address_street,
			patient_address_complement, patient_address_zipcode, patient_address_city,
			content_invoice, footer, office_siret, office_address_street,
			office_address_complement, office_address_zipcode, office_address_city,
			office_phone, status, therapeut_id, canceled_by, type
		) VALUES (
			:id, :created_at, :updated_at, :icon, :date_examination, :num_diplome, :code_ape, :num_ss,
			:num_mut, :date, :amount, :currency, :paiment_mode, :header, :therapeut_name,
			:therapeut_first_name, :quality, :adeli, :location, :number, :patient_family_name,
			:patient_original_name, :patient_first_name, :patient_address_street,
			:patient_address_complement, :patient_address_zipcode, :patient_address_city,
			:content_invoice, :footer, :office_siret, :office_address_street,
			:office_address_complement, :office_address_zipcode, :office_address_city,
			:office_phone, :status, :therapeut_id, :canceled_by, :type
		)
	`
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = invoice.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := r.q.GetContext(ctx, &invoice, `SELECT * FROM invoices WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) MarkCanceled(ctx context.Context, id, canceledBy uuid.UUID) error {
	query := `
		UPDATE invoices
		SET status = $1, canceled_by = $2, updated_at = $3
		WHERE id = $4 AND canceled_by IS NULL
	`
	res, err := r.q.ExecContext(ctx, query, model.InvoiceStatusCanceled, canceledBy, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}
	return expectOne(res)
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.InvoiceStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return expectOne(res)
}

func (r *invoiceRepository) List(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error) {
	if filters == nil {
		filters = &model.InvoiceFilters{}
	}
	var (
		where []string
		args  []interface{}
	)
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		where = append(where, fmt.Sprintf("date < $%d", len(args)))
	}
	if filters.Status != nil {
		args = append(args, *filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT * FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit(), filters.Offset())
	query += fmt.Sprintf(" ORDER BY date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var invoices []*model.Invoice
	if err := r.q.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

type paimentMeanRepository struct {
	q Querier
}

func NewPaimentMeanRepository(q Querier) repository.PaimentMeanRepository {
	return &paimentMeanRepository{q: q}
}

func (r *paimentMeanRepository) Create(ctx context.Context, mean *model.PaimentMean) error {
	query := `
		INSERT INTO paiment_means (id, created_at, updated_at, code, text, enable)
		VALUES (:id, :created_at, :updated_at, :code, :text, :enable)
	`
	if mean.ID == uuid.Nil {
		mean.ID = uuid.New()
	}
	mean.CreatedAt = time.Now()
	mean.UpdatedAt = mean.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, mean); err != nil {
		return fmt.Errorf("failed to create paiment mean: %w", err)
	}
	return nil
}

func (r *paimentMeanRepository) Get(ctx context.Context, id uuid.UUID) (*model.PaimentMean, error) {
	var mean model.PaimentMean
	if err := r.q.GetContext(ctx, &mean, `SELECT * FROM paiment_means WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get paiment mean: %w", err)
	}
	return &mean, nil
}

func (r *paimentMeanRepository) Update(ctx context.Context, mean *model.PaimentMean) error {
	query := `
		UPDATE paiment_means
		SET code = :code, text = :text, enable = :enable, updated_at = :updated_at
		WHERE id = :id
	`
	mean.UpdatedAt = time.Now()
	res, err := r.q.NamedExecContext(ctx, query, mean)
	if err != nil {
		return fmt.Errorf("failed to update paiment mean: %w", err)
	}
	return expectOne(res)
}

func (r *paimentMeanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM paiment_means WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paiment mean: %w", err)
	}
	return expectOne(res)
}

func (r *paimentMeanRepository) List(ctx context.Context, enabledOnly bool) ([]*model.PaimentMean, error) {
	query := `SELECT * FROM paiment_means`
	if enabledOnly {
		query += ` WHERE enable`
	}
	query += ` ORDER BY code`

	var means []*model.PaimentMean
	if err := r.q.SelectContext(ctx, &means, query); err != nil {
		return nil, fmt.Errorf("failed to list paiment means: %w", err)
	}
	return means, nil
}

type paimentRepository struct {
	q Querier
}

func NewPaimentRepository(q Querier) repository.PaimentRepository {
	return &paimentRepository{q: q}
}

// Create inserts the paiment and its invoice links. Callers run it inside a
// transaction so both land together.
func (r *paimentRepository) Create(ctx context.Context, paiment *model.Paiment) error {
	query := `
		INSERT INTO paiments (id, created_at, updated_at, amount, currency, paiment_mode, date)
		VALUES (:id, :created_at, :updated_at, :amount, :currency, :paiment_mode, :date)
	`
	if paiment.ID == uuid.Nil {
		paiment.ID = uuid.New()
	}
	paiment.CreatedAt = time.Now()
	paiment.UpdatedAt = paiment.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, paiment); err != nil {
		return fmt.Errorf("failed to create paiment: %w", err)
	}
	if len(paiment.InvoiceIDs) == 0 {
		return nil
	}

	link := `
		INSERT INTO paiment_invoices (paiment_id, invoice_id)
		SELECT $1, unnest($2::uuid[])
	`
	ids := make([]string, len(paiment.InvoiceIDs))
	for i, id := range paiment.InvoiceIDs {
		ids[i] = id.String()
	}
	if _, err := r.q.ExecContext(ctx, link, paiment.ID, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to link paiment invoices: %w", err)
	}
	return nil
}

func (r *paimentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Paiment, error) {
	query := `
		SELECT p.* FROM paiments p
		JOIN paiment_invoices pi ON pi.paiment_id = p.id
		WHERE pi.invoice_id = $1
		ORDER BY p.date DESC
	`
	var paiments []*model.Paiment
	if err := r.q.SelectContext(ctx, &paiments, query, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to list invoice paiments: %w", err)
	}
	return paiments, r.loadInvoiceIDs(ctx, paiments)
}

func (r *paimentRepository) List(ctx context.Context, dates model.DateRange) ([]*model.Paiment, error) {
	query := `SELECT * FROM paiments WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date < $2) ORDER BY date DESC`
	var paiments []*model.Paiment
	if err := r.q.SelectContext(ctx, &paiments, query, nullTime(dates.From), nullTime(dates.To)); err != nil {
		return nil, fmt.Errorf("failed to list paiments: %w", err)
	}
	return paiments, r.loadInvoiceIDs(ctx, paiments)
}

func (r *paimentRepository) loadInvoiceIDs(ctx context.Context, paiments []*model.Paiment) error {
	if len(paiments) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*model.Paiment, len(paiments))
	ids := make([]string, 0, len(paiments))
	for _, p := range paiments {
		p.InvoiceIDs = []uuid.UUID{}
		byID[p.ID] = p
		ids = append(ids, p.ID.String())
	}

	var links []struct {
		PaimentID uuid.UUID `db:"paiment_id"`
		InvoiceID uuid.UUID `db:"invoice_id"`
	}
	query := `SELECT paiment_id, invoice_id FROM paiment_invoices WHERE paiment_id = ANY($1::uuid[])`
	if err := r.q.SelectContext(ctx, &links, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to load paiment invoices: %w", err)
	}
	for _, l := range links {
		if p, ok := byID[l.PaimentID]; ok {
			p.InvoiceIDs = append(p.InvoiceIDs, l.InvoiceID)
		}
	}
	return nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
