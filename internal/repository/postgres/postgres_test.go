package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestStoreWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM children WHERE parent_id = $1`)).
			WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM patients WHERE id = $1`)).
			WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(repos *repository.Repositories) error {
			n, err := repos.Children.DeleteByParent(ctx, id)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(2), n)
			return repos.Patients.Delete(ctx, id)
		})
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM patients WHERE id = $1`)).
			WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(repos *repository.Repositories) error {
			return repos.Patients.Delete(ctx, id)
		})
		assert.True(t, repository.IsNotFound(err))
	})
}

func TestPatientRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPatientRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO patients`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		p := &model.Patient{FamilyName: "Durand", BirthDate: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, repo.Create(ctx, p))
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("update never touches creation date", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPatientRepository(db)

		mock.ExpectExec(`(?s)UPDATE patients SET\s.*sex = \$\d+, updated_at = \$\d+\s+WHERE id = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		p := &model.Patient{FamilyName: "Durand"}
		p.ID = uuid.New()
		require.NoError(t, repo.Update(ctx, p))
	})

	t.Run("get missing", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPatientRepository(db)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM patients WHERE id = $1`)).
			WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(ctx, id)
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("list with search and paging", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPatientRepository(db)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta(
			`(family_name ILIKE $1 OR first_name ILIKE $1 OR original_name ILIKE $1) ORDER BY family_name, first_name LIMIT $2 OFFSET $3`)).
			WithArgs("%dur%", 10, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "family_name"}).AddRow(id.String(), "Durand"))

		patients, err := repo.List(ctx, &model.PatientFilters{
			SearchTerm: " dur ",
			Pagination: model.Pagination{Page: 2, PageSize: 10},
		})
		require.NoError(t, err)
		require.Len(t, patients, 1)
		assert.Equal(t, "Durand", patients[0].FamilyName)
		assert.Equal(t, id, patients[0].ID)
	})
}

func TestExaminationInvoiceChains(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewExaminationRepository(db)

	examID := uuid.New()
	a, b := uuid.New(), uuid.New()
	date := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)WITH RECURSIVE chain AS \(.*UNION.*JOIN chain c ON n.id = c.canceled_by`).
		WithArgs(examID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "date", "type", "status", "canceled_by"}).
			AddRow(a.String(), "2024-001", date, "invoice", 3, b.String()).
			AddRow(b.String(), "2024-002", date.Add(time.Hour), "invoice", 1, nil))

	invoices, err := repo.InvoiceChains(ctx, examID)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	require.NotNil(t, invoices[0].CanceledBy)
	assert.Equal(t, b, *invoices[0].CanceledBy)
	assert.Nil(t, invoices[1].CanceledBy)
	assert.Equal(t, model.InvoiceStatusCanceled, invoices[0].Status)
}

func TestExaminationListInvoicesStableOrder(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewExaminationRepository(db)

	examID := uuid.New()
	a, b := uuid.New(), uuid.New()
	date := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)WHERE ei.examination_id = \$1\s+ORDER BY i.date, i.created_at, i.id`).
		WithArgs(examID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "date", "type"}).
			AddRow(a.String(), "2024-001", date, "invoice").
			AddRow(b.String(), "2024-002", date, "invoice"))

	invoices, err := repo.ListInvoices(ctx, examID)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, a, invoices[0].ID)
	assert.Equal(t, b, invoices[1].ID)
}

func TestInvoiceMarkCanceled(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewInvoiceRepository(db)
	id, by := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $4 AND canceled_by IS NULL`)).
		WithArgs(model.InvoiceStatusCanceled, by, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkCanceled(ctx, id, by)
	assert.True(t, repository.IsNotFound(err))
}

func TestPaimentCreateLinksInvoices(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewPaimentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO paiments`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO paiment_invoices`)).WillReturnResult(sqlmock.NewResult(0, 2))

	p := &model.Paiment{Currency: "EUR", PaimentMode: "CB", Date: time.Now(), InvoiceIDs: []uuid.UUID{uuid.New(), uuid.New()}}
	require.NoError(t, repo.Create(ctx, p))
}

func TestOfficeSettingsSaveForcesSingleRow(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewOfficeSettingsRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO office_settings.*ON CONFLICT \(id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := &model.OfficeSettings{ID: 42, OfficeSiret: "123", Currency: "EUR"}
	require.NoError(t, repo.Save(ctx, s))
	assert.Equal(t, model.OfficeSettingsID, s.ID)
}

func TestOutboxLockPending(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewOutboxRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`(?s)FROM outbox_events\s.*FOR UPDATE SKIP LOCKED`).
		WithArgs(model.OutboxStatusPending, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "retry_count"}).
			AddRow(id.String(), "office_events", []byte(`{"clazz":"Patient"}`), "PENDING", 0))

	events, err := repo.LockPending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"clazz":"Patient"}`, string(events[0].Payload))
}

func TestDocumentDeleteManyEmpty(t *testing.T) {
	db, _ := newMock(t)
	n, err := NewDocumentRepository(db).DeleteMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpectOne(t *testing.T) {
	assert.NoError(t, expectOne(sqlmock.NewResult(0, 1)))
	assert.True(t, errors.Is(expectOne(sqlmock.NewResult(0, 0)), sql.ErrNoRows))
	assert.Error(t, expectOne(sqlmock.NewErrorResult(errors.New("boom"))))
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "e.id, e.date", prefixed("e", "id,\n\tdate"))
}
