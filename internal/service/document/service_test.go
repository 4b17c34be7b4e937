package document

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository/memory"
	"github.com/jwalitptl/osteo-api/internal/storage"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/logger"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

const pdf = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

type fixture struct {
	svc     *Service
	store   *memory.Store
	files   *storage.MemoryStore
	metrics *metrics.Metrics
	patient *model.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		files:   storage.NewMemoryStore(),
		metrics: metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
	f.svc = NewService(f.store, f.files, validator.New(), f.metrics, logger.Nop(), nil)

	f.patient = &model.Patient{
		FamilyName: "Martin",
		BirthDate:  time.Date(1975, 2, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.store.Repos().Patients.Create(context.Background(), f.patient))
	return f
}

func upload(name, content string) Upload {
	return Upload{Name: name, Content: strings.NewReader(content)}
}

func (f *fixture) file(t *testing.T, pd *model.PatientDocument, name, content string) {
	t.Helper()
	require.NoError(t, f.svc.UploadForPatient(context.Background(), pd, upload(name, content)))
}

func TestUploadDetectsMimeType(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := auth.WithUserID(context.Background(), user)

	doc := &model.Document{Title: "X-ray report"}
	require.NoError(t, f.svc.Upload(ctx, doc, upload("report.pdf", pdf)))

	assert.True(t, strings.HasPrefix(doc.DocumentFile, model.DocumentsDir+"/"))
	assert.True(t, f.files.Exists(doc.DocumentFile))
	require.NotNil(t, doc.MimeType)
	assert.Equal(t, "application/pdf", *doc.MimeType)
	require.NotNil(t, doc.InternalDate)
	require.NotNil(t, doc.UserID)
	assert.Equal(t, user, *doc.UserID)

	got, rc, err := f.svc.Open(ctx, doc.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, doc.Title, got.Title)
}

func TestUploadTextStripsParameters(t *testing.T) {
	f := newFixture(t)
	doc := &model.Document{Title: "notes"}
	require.NoError(t, f.svc.Upload(context.Background(), doc, upload("notes.txt", "plain notes about the patient")))
	require.NotNil(t, doc.MimeType)
	assert.Equal(t, "text/plain", *doc.MimeType)
}

func TestUploadValidationRemovesStoredFile(t *testing.T) {
	f := newFixture(t)
	doc := &model.Document{}
	err := f.svc.Upload(context.Background(), doc, upload("scan.pdf", pdf))
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
	require.NotEmpty(t, doc.DocumentFile)
	assert.False(t, f.files.Exists(doc.DocumentFile))
}

func TestUploadForUnknownPatient(t *testing.T) {
	f := newFixture(t)
	pd := &model.PatientDocument{
		PatientID: uuid.New(),
		Document:  &model.Document{Title: "letter"},
	}
	err := f.svc.UploadForPatient(context.Background(), pd, upload("letter.pdf", pdf))
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.False(t, f.files.Exists(pd.Document.DocumentFile))

	_, err = f.svc.Get(context.Background(), pd.Document.ID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestListForPatientFiltersByAttachment(t *testing.T) {
	f := newFixture(t)
	medical := &model.PatientDocument{
		PatientID:      f.patient.ID,
		AttachmentType: model.AttachmentTypeMedical,
		Document:       &model.Document{Title: "blood test"},
	}
	trauma := &model.PatientDocument{
		PatientID:      f.patient.ID,
		AttachmentType: model.AttachmentTypeTrauma,
		Document:       &model.Document{Title: "fracture"},
	}
	f.file(t, medical, "blood.pdf", pdf)
	f.file(t, trauma, "fracture.pdf", pdf)

	all, err := f.svc.ListForPatient(context.Background(), f.patient.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	kind := model.AttachmentTypeTrauma
	only, err := f.svc.ListForPatient(context.Background(), f.patient.ID, &kind)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, trauma.DocumentID, only[0].DocumentID)
	require.NotNil(t, only[0].Document)
	assert.Equal(t, "fracture", only[0].Document.Title)

	bad := model.AttachmentType(42)
	_, err = f.svc.ListForPatient(context.Background(), f.patient.ID, &bad)
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))
}

func TestAttachToPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := &model.Document{Title: "consent"}
	require.NoError(t, f.svc.Upload(ctx, doc, upload("consent.pdf", pdf)))

	pd := &model.PatientDocument{PatientID: f.patient.ID, DocumentID: doc.ID, AttachmentType: model.AttachmentTypeFamilial}
	require.NoError(t, f.svc.AttachToPatient(ctx, pd))

	got, err := f.svc.GetPatientDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, got.PatientID)

	err = f.svc.AttachToPatient(ctx, pd)
	assert.True(t, errors.HasCode(err, errors.ErrConflict))

	err = f.svc.AttachToPatient(ctx, &model.PatientDocument{PatientID: f.patient.ID, DocumentID: uuid.New()})
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestDeletePatientDocumentCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pd := &model.PatientDocument{PatientID: f.patient.ID, Document: &model.Document{Title: "mri"}}
	f.file(t, pd, "mri.pdf", pdf)
	path := pd.Document.DocumentFile

	require.NoError(t, f.svc.DeletePatientDocument(ctx, pd.DocumentID))

	_, err := f.svc.Get(ctx, pd.DocumentID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	_, err = f.svc.GetPatientDocument(ctx, pd.DocumentID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.False(t, f.files.Exists(path))

	assert.True(t, errors.HasCode(f.svc.DeletePatientDocument(ctx, pd.DocumentID), errors.ErrNotFound))
}

func TestDeleteDocumentKeepsDeleteWhenFileStays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := &model.Document{Title: "scan"}
	require.NoError(t, f.svc.Upload(ctx, doc, upload("scan.pdf", pdf)))
	f.files.FailDelete(doc.DocumentFile, stderrors.New("permission denied"))

	err := f.svc.DeleteDocument(ctx, doc.ID)
	fcErr, ok := errors.AsFileCleanup(err)
	require.True(t, ok)
	assert.Equal(t, []string{doc.DocumentFile}, fcErr.Paths)

	_, err = f.svc.Get(ctx, doc.ID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.FileCleanupFailures))
}

func TestOpenMissingFileIsDataIntegrity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := &model.Document{DocumentFile: "documents/gone.pdf", Title: "gone"}
	require.NoError(t, f.store.Repos().Documents.Create(ctx, doc))

	_, _, err := f.svc.Open(ctx, doc.ID)
	assert.True(t, errors.HasCode(err, errors.ErrDataIntegrity))
}

func TestCreateFileImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exams := upload("exams.csv", "date;reason\n")
	fi := &model.FileImport{}
	require.NoError(t, f.svc.CreateFileImport(ctx, fi, upload("patients.csv", "name;birth\n"), &exams))

	assert.True(t, strings.HasPrefix(fi.FilePatient, model.FileImportsDir+"/"))
	assert.True(t, f.files.Exists(fi.FilePatient))
	assert.True(t, f.files.Exists(fi.FileExamination))

	got, err := f.svc.GetFileImport(ctx, fi.ID)
	require.NoError(t, err)
	assert.Equal(t, fi.FilePatient, got.FilePatient)

	err = f.svc.CreateFileImport(ctx, &model.FileImport{}, Upload{}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
}

func TestDeleteFileImportAttemptsBothFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exams := upload("exams.csv", "x")
	fi := &model.FileImport{}
	require.NoError(t, f.svc.CreateFileImport(ctx, fi, upload("patients.csv", "y"), &exams))

	f.files.FailDelete(fi.FilePatient, stderrors.New("io error"))
	f.files.FailDelete(fi.FileExamination, stderrors.New("io error"))

	err := f.svc.DeleteFileImport(ctx, fi.ID)
	fcErr, ok := errors.AsFileCleanup(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{fi.FilePatient, fi.FileExamination}, fcErr.Paths)

	_, err = f.svc.GetFileImport(ctx, fi.ID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.FileCleanupFailures))
}

func TestDeleteFileImportSecondFileStillRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exams := upload("exams.csv", "x")
	fi := &model.FileImport{}
	require.NoError(t, f.svc.CreateFileImport(ctx, fi, upload("patients.csv", "y"), &exams))
	f.files.FailDelete(fi.FilePatient, stderrors.New("io error"))

	err := f.svc.DeleteFileImport(ctx, fi.ID)
	require.True(t, errors.IsFileCleanup(err))
	assert.False(t, f.files.Exists(fi.FileExamination))
}

func TestPurgeFileImports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)

	var old []*model.FileImport
	for i := 0; i < 3; i++ {
		fi := &model.FileImport{}
		require.NoError(t, f.svc.CreateFileImport(ctx, fi, upload("patients.csv", "x"), nil))
		f.store.SetFileImportCreatedAt(fi.ID, cutoff.Add(-time.Duration(i+1)*time.Hour))
		old = append(old, fi)
	}
	fresh := &model.FileImport{}
	require.NoError(t, f.svc.CreateFileImport(ctx, fresh, upload("patients.csv", "x"), nil))

	n, err := f.svc.PurgeFileImports(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.PurgeFileImports(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, fi := range old {
		assert.False(t, f.files.Exists(fi.FilePatient))
	}
	_, err = f.svc.GetFileImport(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.FileImportsPurged))
}
