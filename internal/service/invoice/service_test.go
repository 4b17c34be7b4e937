package invoice

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository/memory"
	"github.com/jwalitptl/osteo-api/internal/service/settings"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
	"github.com/jwalitptl/osteo-api/pkg/logger"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

var examDate = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	settings *settings.Service
	store    *memory.Store
	metrics  *metrics.Metrics
	user     uuid.UUID
	ctx      context.Context
	exam     *model.Examination
	patient  *model.Patient
}

func newFixture(t *testing.T, sequence string) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		metrics: metrics.NewMetrics("test", prometheus.NewRegistry()),
		user:    uuid.New(),
	}
	f.ctx = auth.WithUserID(context.Background(), f.user)
	v := validator.New()
	f.settings = settings.NewService(f.store, v, logger.Nop(), nil, time.Minute)
	f.svc = NewService(f.store, f.settings, v, f.metrics, logger.Nop(), nil)

	require.NoError(t, f.settings.SaveOffice(context.Background(), &model.OfficeSettings{
		OfficeSiret:          "12345678900011",
		OfficeAddressCity:    "Lyon",
		Currency:             "EUR",
		Amount:               decimal.NewNullDecimal(decimal.NewFromInt(55)),
		InvoiceFooter:        "office footer",
		InvoiceStartSequence: sequence,
	}))

	repos := f.store.Repos()
	f.patient = &model.Patient{
		FamilyName:  "Durand",
		FirstName:   "Alice",
		BirthDate:   time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC),
		AddressCity: "Villeurbanne",
	}
	require.NoError(t, repos.Patients.Create(context.Background(), f.patient))
	f.exam = &model.Examination{
		PatientID: f.patient.ID,
		Date:      examDate,
		Type:      model.ExaminationTypeNormal,
	}
	require.NoError(t, repos.Examinations.Create(context.Background(), f.exam))
	return f
}

func (f *fixture) issue(t *testing.T) *model.Invoice {
	t.Helper()
	inv, err := f.svc.Create(f.ctx, f.exam.ID, &model.Invoice{PaimentMode: "CB"})
	require.NoError(t, err)
	return inv
}

func (f *fixture) sequence(t *testing.T) string {
	t.Helper()
	office, err := f.store.Repos().OfficeSettings.Get(context.Background())
	require.NoError(t, err)
	return office.InvoiceStartSequence
}

func (f *fixture) examStatus(t *testing.T) model.ExaminationStatus {
	t.Helper()
	exam, err := f.store.Repos().Examinations.Get(context.Background(), f.exam.ID)
	require.NoError(t, err)
	return exam.Status
}

func TestCreateSnapshotsAndNumbers(t *testing.T) {
	f := newFixture(t, "FA-0009")
	siret := "99999999900099"
	require.NoError(t, f.settings.SaveTherapeut(f.ctx, &model.TherapeutSettings{
		UserID: f.user,
		Adeli:  "123456789",
		Siret:  &siret,
	}))

	inv := f.issue(t)

	assert.Equal(t, "FA-0009", inv.Number)
	assert.Equal(t, "FA-0010", f.sequence(t))
	assert.True(t, decimal.NewFromInt(55).Equal(inv.Amount))
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, "Lyon", inv.Location)
	assert.Equal(t, siret, inv.OfficeSiret)
	assert.Equal(t, "office footer", inv.Footer)
	assert.Equal(t, "123456789", inv.Adeli)
	assert.Equal(t, "Durand", inv.PatientFamilyName)
	assert.Equal(t, "Villeurbanne", inv.PatientAddressCity)
	require.NotNil(t, inv.DateExamination)
	assert.Equal(t, examDate, *inv.DateExamination)
	require.NotNil(t, inv.TherapeutID)
	assert.Equal(t, f.user, *inv.TherapeutID)
	assert.Equal(t, model.InvoiceStatusWaitingForPaiement, inv.Status)
	assert.Equal(t, model.InvoiceTypeInvoice, inv.Type)

	assert.Equal(t, model.ExaminationStatusWaitingForPaiement, f.examStatus(t))
	linked, err := f.store.Repos().Examinations.ListInvoices(context.Background(), f.exam.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, inv.ID, linked[0].ID)

	events, err := f.store.Repos().Events.List(context.Background(), &model.OfficeEventFilters{Clazz: model.OfficeEventClassOfficeSettings})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "FA-0010", events[0].Comment)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvoicesCreated))
}

func TestCreateKeepsDraftValues(t *testing.T) {
	f := newFixture(t, "1")
	inv, err := f.svc.Create(f.ctx, f.exam.ID, &model.Invoice{
		PaimentMode: "CHQ",
		Amount:      decimal.NewFromInt(40),
		Location:    "Paris",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(inv.Amount))
	assert.Equal(t, "Paris", inv.Location)
	assert.Equal(t, "1", inv.Number)
	assert.Equal(t, "2", f.sequence(t))
}

func TestCreateUnknownExamination(t *testing.T) {
	f := newFixture(t, "FA-0001")
	_, err := f.svc.Create(f.ctx, uuid.New(), &model.Invoice{PaimentMode: "CB"})
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.Equal(t, "FA-0001", f.sequence(t))
}

func TestCreateValidationKeepsSequence(t *testing.T) {
	f := newFixture(t, "FA-0001")
	_, err := f.svc.Create(f.ctx, f.exam.ID, &model.Invoice{})
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
	assert.Equal(t, "FA-0001", f.sequence(t))

	invoices, err := f.svc.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestCreateWithoutOfficeSettings(t *testing.T) {
	store := memory.NewStore()
	v := validator.New()
	settingsSvc := settings.NewService(store, v, logger.Nop(), nil, time.Minute)
	svc := NewService(store, settingsSvc, v, nil, logger.Nop(), nil)

	_, err := svc.Create(context.Background(), uuid.New(), &model.Invoice{PaimentMode: "CB"})
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestConcurrentCreateNumbersAreUnique(t *testing.T) {
	f := newFixture(t, "FA-0001")

	var wg sync.WaitGroup
	numbers := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := f.svc.Create(f.ctx, f.exam.ID, &model.Invoice{PaimentMode: "CB"})
			if assert.NoError(t, err) {
				numbers <- inv.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, 10)
	assert.Equal(t, "FA-0011", f.sequence(t))
}

func TestCancelWithCreditNote(t *testing.T) {
	f := newFixture(t, "FA-0001")
	original := f.issue(t)

	cn, err := f.svc.Cancel(f.ctx, original.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceTypeCreditNote, cn.Type)
	assert.Equal(t, model.InvoiceStatusInvoicedPaid, cn.Status)
	assert.Equal(t, "FA-0002", cn.Number)
	assert.True(t, original.Amount.Equal(cn.Amount))
	assert.Equal(t, original.PatientFamilyName, cn.PatientFamilyName)
	assert.NotEqual(t, original.ID, cn.ID)

	canceled, err := f.svc.Get(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledBy)
	assert.Equal(t, cn.ID, *canceled.CanceledBy)

	assert.Equal(t, model.ExaminationStatusInProgress, f.examStatus(t))
	assert.Equal(t, "FA-0003", f.sequence(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvoicesCanceled.WithLabelValues(replacementCreditNote)))
}

func TestCancelWithReissue(t *testing.T) {
	f := newFixture(t, "FA-0001")
	original := f.issue(t)

	amount := decimal.NewFromInt(45)
	reissued, err := f.svc.Cancel(f.ctx, original.ID, &CancelRequest{Reissue: true, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceTypeInvoice, reissued.Type)
	assert.Equal(t, model.InvoiceStatusWaitingForPaiement, reissued.Status)
	assert.Equal(t, "FA-0002", reissued.Number)
	assert.True(t, amount.Equal(reissued.Amount))
	assert.Equal(t, "CB", reissued.PaimentMode)
	assert.True(t, reissued.IsLive())

	linked, err := f.store.Repos().Examinations.ListInvoices(context.Background(), f.exam.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
	assert.Equal(t, model.ExaminationStatusWaitingForPaiement, f.examStatus(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvoicesCanceled.WithLabelValues(replacementReissue)))
}

func TestCancelTwiceConflicts(t *testing.T) {
	f := newFixture(t, "FA-0001")
	original := f.issue(t)

	_, err := f.svc.Cancel(f.ctx, original.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, original.ID, nil)
	assert.True(t, errors.HasCode(err, errors.ErrConflict))
	assert.Equal(t, "FA-0003", f.sequence(t))
}

func TestCancelUnknownInvoice(t *testing.T) {
	f := newFixture(t, "FA-0001")
	_, err := f.svc.Cancel(f.ctx, uuid.New(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestCancelRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, "FA-0001")
	original := f.issue(t)

	f.store.FailOn("Invoices.MarkCanceled", stderrors.New("disk full"))
	_, err := f.svc.Cancel(f.ctx, original.ID, nil)
	require.Error(t, err)

	assert.Equal(t, "FA-0002", f.sequence(t))
	invoices, err := f.svc.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Nil(t, invoices[0].CanceledBy)
	assert.Equal(t, model.ExaminationStatusWaitingForPaiement, f.examStatus(t))
}

func TestPaimentSettlesInvoice(t *testing.T) {
	f := newFixture(t, "FA-0001")
	inv := f.issue(t)

	first := &model.Paiment{
		Amount:      decimal.NewFromInt(30),
		Currency:    "EUR",
		PaimentMode: "CB",
		Date:        examDate,
		InvoiceIDs:  []uuid.UUID{inv.ID},
	}
	require.NoError(t, f.svc.CreatePaiment(f.ctx, first))

	got, err := f.svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusWaitingForPaiement, got.Status)

	second := &model.Paiment{
		Amount:      decimal.NewFromInt(25),
		Currency:    "EUR",
		PaimentMode: "ESP",
		Date:        examDate.Add(24 * time.Hour),
		InvoiceIDs:  []uuid.UUID{inv.ID},
	}
	require.NoError(t, f.svc.CreatePaiment(f.ctx, second))

	got, err = f.svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusInvoicedPaid, got.Status)
	assert.Equal(t, model.ExaminationStatusInvoicedPaid, f.examStatus(t))

	paiments, err := f.svc.PaimentsForInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, paiments, 2)
	assert.Equal(t, second.ID, paiments[0].ID)
	assert.Equal(t, first.ID, paiments[1].ID)

	inMarch, err := f.svc.ListPaiments(context.Background(), model.DateRange{
		From: examDate,
		To:   examDate.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, inMarch, 1)
	assert.Equal(t, first.ID, inMarch[0].ID)
}

func TestPaimentRejectsCancelledInvoice(t *testing.T) {
	f := newFixture(t, "FA-0001")
	inv := f.issue(t)
	_, err := f.svc.Cancel(f.ctx, inv.ID, nil)
	require.NoError(t, err)

	err = f.svc.CreatePaiment(f.ctx, &model.Paiment{
		Amount:      decimal.NewFromInt(55),
		Currency:    "EUR",
		PaimentMode: "CB",
		Date:        examDate,
		InvoiceIDs:  []uuid.UUID{inv.ID},
	})
	assert.True(t, errors.HasCode(err, errors.ErrConflict))
}

func TestPaimentUnknownInvoice(t *testing.T) {
	f := newFixture(t, "FA-0001")
	err := f.svc.CreatePaiment(f.ctx, &model.Paiment{
		Amount:      decimal.NewFromInt(10),
		Currency:    "EUR",
		PaimentMode: "CB",
		Date:        examDate,
		InvoiceIDs:  []uuid.UUID{uuid.New()},
	})
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))

	_, err = f.svc.PaimentsForInvoice(context.Background(), uuid.New())
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestPaimentMeans(t *testing.T) {
	f := newFixture(t, "FA-0001")
	ctx := context.Background()

	cb := &model.PaimentMean{Code: "CB", Text: "Card", Enable: true}
	chq := &model.PaimentMean{Code: "CHQ", Text: "Cheque"}
	require.NoError(t, f.svc.CreatePaimentMean(ctx, cb))
	require.NoError(t, f.svc.CreatePaimentMean(ctx, chq))

	err := f.svc.CreatePaimentMean(ctx, &model.PaimentMean{Code: "TOO-LONG-CODE", Text: "x"})
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	enabled, err := f.svc.ListPaimentMeans(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "CB", enabled[0].Code)

	chq.Enable = true
	require.NoError(t, f.svc.UpdatePaimentMean(ctx, chq))
	all, err := f.svc.ListPaimentMeans(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.svc.DeletePaimentMean(ctx, cb.ID))
	_, err = f.svc.GetPaimentMean(ctx, cb.ID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.True(t, errors.HasCode(f.svc.DeletePaimentMean(ctx, cb.ID), errors.ErrNotFound))
}
