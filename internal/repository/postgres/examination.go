package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
)

type examinationRepository struct {
	q Querier
}

func NewExaminationRepository(q Querier) repository.ExaminationRepository {
	return &examinationRepository{q: q}
}

const examinationColumns = `id, created_at, updated_at, patient_id, therapeut_id, anatomy, reason,
	reason_description, orl, visceral, pulmo, uro_gyneco, periphery, general_state,
	medical_examination, diagnosis, treatments, conclusion, date, status, status_reason, type`

func (r *examinationRepository) Create(ctx context.Context, exam *model.Examination) error {
	query := `
		INSERT INTO examinations (` + examinationColumns + `)
		VALUES (:id, :created_at, :updated_at, :patient_id, :therapeut_id, :anatomy, :reason,
			:reason_description, :orl, :visceral, :pulmo, :uro_gyneco, :periphery, :general_state,
			:medical_examination, :diagnosis, :treatments, :conclusion, :date, :status,
			:status_reason, :type)
	`
	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	exam.CreatedAt = time.Now()
	exam.UpdatedAt = exam.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("failed to create examination: %w", err)
	}
	return nil
}

func (r *examinationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Examination, error) {
	var exam model.Examination
	query := `SELECT ` + examinationColumns + ` FROM examinations WHERE id = $1`
	if err := r.q.GetContext(ctx, &exam, query, id); err != nil {
		return nil, fmt.Errorf("failed to get examination: %w", err)
	}
	return &exam, nil
}

func (r *examinationRepository) Update(ctx context.Context, exam *model.Examination) error {
	query := `
		UPDATE examinations SET
			therapeut_id = :therapeut_id, anatomy = :anatomy, reason = :reason,
			reason_description = :reason_description, orl = :orl, visceral = :visceral,
			pulmo = :pulmo, uro_gyneco = :uro_gyneco, periphery = :periphery,
			general_state = :general_state, medical_examination = :medical_examination,
			diagnosis = :diagnosis, treatments = :treatments, conclusion = :conclusion,
			date = :date, status = :status, status_reason = :status_reason, type = :type,
			updated_at = :updated_at
		WHERE id = :id
	`
	exam.UpdatedAt = time.Now()
	res, err := r.q.NamedExecContext(ctx, query, exam)
	if err != nil {
		return fmt.Errorf("failed to update examination: %w", err)
	}
	return expectOne(res)
}

func (r *examinationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM examinations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete examination: %w", err)
	}
	return expectOne(res)
}

func (r *examinationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Examination, error) {
	query := `SELECT ` + examinationColumns + ` FROM examinations WHERE patient_id = $1 ORDER BY date DESC`
	var exams []*model.Examination
	if err := r.q.SelectContext(ctx, &exams, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list examinations: %w", err)
	}
	return exams, nil
}

func (r *examinationRepository) AttachInvoice(ctx context.Context, examID, invoiceID uuid.UUID) error {
	query := `
		INSERT INTO examination_invoices (examination_id, invoice_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.q.ExecContext(ctx, query, examID, invoiceID); err != nil {
		return fmt.Errorf("failed to attach invoice: %w", err)
	}
	return nil
}

func (r *examinationRepository) ListInvoices(ctx context.Context, examID uuid.UUID) ([]*model.Invoice, error) {
	query := `
		SELECT i.* FROM invoices i
		JOIN examination_invoices ei ON ei.invoice_id = i.id
		WHERE ei.examination_id = $1
		ORDER BY i.date, i.created_at, i.id
	`
	var invoices []*model.Invoice
	if err := r.q.SelectContext(ctx, &invoices, query, examID); err != nil {
		return nil, fmt.Errorf("failed to list examination invoices: %w", err)
	}
	return invoices, nil
}

// InvoiceChains walks canceled_by links from the associated invoices. UNION
// drops duplicate rows, so a cyclic chain still terminates and is reported
// by the resolver instead.
func (r *examinationRepository) InvoiceChains(ctx context.Context, examID uuid.UUID) ([]*model.Invoice, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT i.* FROM invoices i
			JOIN examination_invoices ei ON ei.invoice_id = i.id
			WHERE ei.examination_id = $1
			UNION
			SELECT n.* FROM invoices n
			JOIN chain c ON n.id = c.canceled_by
		)
		SELECT * FROM chain
	`
	var invoices []*model.Invoice
	if err := r.q.SelectContext(ctx, &invoices, query, examID); err != nil {
		return nil, fmt.Errorf("failed to load invoice chains: %w", err)
	}
	return invoices, nil
}

func (r *examinationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (*model.Examination, error) {
	query := `
		SELECT ` + prefixed("e", examinationColumns) + ` FROM examinations e
		JOIN examination_invoices ei ON ei.examination_id = e.id
		WHERE ei.invoice_id = $1
		LIMIT 1
	`
	var exam model.Examination
	if err := r.q.GetContext(ctx, &exam, query, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to find examination of invoice: %w", err)
	}
	return &exam, nil
}

type examinationCommentRepository struct {
	q Querier
}

func NewExaminationCommentRepository(q Querier) repository.ExaminationCommentRepository {
	return &examinationCommentRepository{q: q}
}

func (r *examinationCommentRepository) Create(ctx context.Context, comment *model.ExaminationComment) error {
	query := `
		INSERT INTO examination_comments (id, created_at, updated_at, examination_id, user_id, comment, date)
		VALUES (:id, :created_at, :updated_at, :examination_id, :user_id, :comment, :date)
	`
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *examinationCommentRepository) ListByExamination(ctx context.Context, examID uuid.UUID) ([]*model.ExaminationComment, error) {
	var comments []*model.ExaminationComment
	err := r.q.SelectContext(ctx, &comments,
		`SELECT * FROM examination_comments WHERE examination_id = $1 ORDER BY date DESC`, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
