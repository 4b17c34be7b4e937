package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentsDir is the storage directory of uploaded documents.
const DocumentsDir = "documents"

// FileImportsDir is the storage directory of import files.
const FileImportsDir = "imports"

type Document struct {
	Base
	DocumentFile string     `db:"document_file" json:"document_file" validate:"required"`
	Title        string     `db:"title" json:"title" validate:"required"`
	Notes        *string    `db:"notes" json:"notes"`
	InternalDate *time.Time `db:"internal_date" json:"internal_date"`
	DocumentDate *time.Time `db:"document_date" json:"document_date"`
	UserID       *uuid.UUID `db:"user_id" json:"user"`
	MimeType     *string    `db:"mime_type" json:"mime_type"`
}

func (d *Document) Clean(now time.Time) {
	if d.InternalDate == nil {
		d.InternalDate = &now
	}
}

// PatientDocument files a document under a patient. It shares the
// document's identifier.
type PatientDocument struct {
	PatientID      uuid.UUID      `db:"patient_id" json:"patient" validate:"required"`
	DocumentID     uuid.UUID      `db:"document_id" json:"document_id" validate:"required"`
	AttachmentType AttachmentType `db:"attachment_type" json:"attachment_type" validate:"enum"`
	Document       *Document      `db:"-" json:"document,omitempty"`
}

// FileImport is a pair of uploaded files used to import patients and
// examinations.
type FileImport struct {
	Base
	FilePatient     string `db:"file_patient" json:"file_patient" validate:"required"`
	FileExamination string `db:"file_examination" json:"file_examination"`
	Status          *int   `db:"status" json:"status"`
}

// Files returns the non-empty stored paths of the import.
func (f *FileImport) Files() []string {
	var paths []string
	if f.FilePatient != "" {
		paths = append(paths, f.FilePatient)
	}
	if f.FileExamination != "" {
		paths = append(paths, f.FileExamination)
	}
	return paths
}
