package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
)

type documentRepository struct {
	q Querier
}

func NewDocumentRepository(q Querier) repository.DocumentRepository {
	return &documentRepository{q: q}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (
			id, created_at, updated_at, document_file, title, notes, internal_date,
			document_date, user_id, mime_type
		) VALUES (
			:id, :created_at, :updated_at, :document_file, :title, :notes, :internal_date,
			:document_date, :user_id, :mime_type
		)
	`
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := r.q.GetContext(ctx, &doc, `SELECT * FROM documents WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// Delete removes the document; the foreign key removes its patient link.
func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOne(res)
}

func (r *documentRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM documents WHERE id = ANY($1::uuid[])`, pq.Array(strIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return res.RowsAffected()
}

type patientDocumentRepository struct {
	q Querier
}

func NewPatientDocumentRepository(q Querier) repository.PatientDocumentRepository {
	return &patientDocumentRepository{q: q}
}

func (r *patientDocumentRepository) Create(ctx context.Context, pd *model.PatientDocument) error {
	query := `
		INSERT INTO patient_documents (patient_id, document_id, attachment_type)
		VALUES (:patient_id, :document_id, :attachment_type)
	`
	if _, err := r.q.NamedExecContext(ctx, query, pd); err != nil {
		return fmt.Errorf("failed to create patient document: %w", err)
	}
	return nil
}

func (r *patientDocumentRepository) Get(ctx context.Context, documentID uuid.UUID) (*model.PatientDocument, error) {
	var pd model.PatientDocument
	err := r.q.GetContext(ctx, &pd,
		`SELECT patient_id, document_id, attachment_type FROM patient_documents WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient document: %w", err)
	}
	return &pd, nil
}

type patientDocumentRow struct {
	PatientID      uuid.UUID            `db:"patient_id"`
	AttachmentType model.AttachmentType `db:"attachment_type"`
	model.Document
}

func (r *patientDocumentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, attachment *model.AttachmentType) ([]*model.PatientDocument, error) {
	query := `
		SELECT pd.patient_id, pd.attachment_type, d.*
		FROM patient_documents pd
		JOIN documents d ON d.id = pd.document_id
		WHERE pd.patient_id = $1 AND ($2::smallint IS NULL OR pd.attachment_type = $2)
		ORDER BY d.internal_date DESC
	`
	var rows []patientDocumentRow
	if err := r.q.SelectContext(ctx, &rows, query, patientID, attachment); err != nil {
		return nil, fmt.Errorf("failed to list patient documents: %w", err)
	}

	docs := make([]*model.PatientDocument, 0, len(rows))
	for i := range rows {
		doc := rows[i].Document
		docs = append(docs, &model.PatientDocument{
			PatientID:      rows[i].PatientID,
			DocumentID:     doc.ID,
			AttachmentType: rows[i].AttachmentType,
			Document:       &doc,
		})
	}
	return docs, nil
}

type fileImportRepository struct {
	q Querier
}

func NewFileImportRepository(q Querier) repository.FileImportRepository {
	return &fileImportRepository{q: q}
}

func (r *fileImportRepository) Create(ctx context.Context, fi *model.FileImport) error {
	query := `
		INSERT INTO file_imports (id, created_at, updated_at, file_patient, file_examination, status)
		VALUES (:id, :created_at, :updated_at, :file_patient, :file_examination, :status)
	`
	if fi.ID == uuid.Nil {
		fi.ID = uuid.New()
	}
	fi.CreatedAt = time.Now()
	fi.UpdatedAt = fi.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, fi); err != nil {
		return fmt.Errorf("failed to create file import: %w", err)
	}
	return nil
}

func (r *fileImportRepository) Get(ctx context.Context, id uuid.UUID) (*model.FileImport, error) {
	var fi model.FileImport
	if err := r.q.GetContext(ctx, &fi, `SELECT * FROM file_imports WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get file import: %w", err)
	}
	return &fi, nil
}

func (r *fileImportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM file_imports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file import: %w", err)
	}
	return expectOne(res)
}

func (r *fileImportRepository) ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*model.FileImport, error) {
	var imports []*model.FileImport
	err := r.q.SelectContext(ctx, &imports,
		`SELECT * FROM file_imports WHERE created_at < $1 ORDER BY created_at LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list file imports: %w", err)
	}
	return imports, nil
}
