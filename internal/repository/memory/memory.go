// Package memory is a map backed repository.Store used by service and
// handler tests. It mirrors the foreign key behaviour of the postgres schema
// (cascades, unique canceled_by) and rolls a failed WithTx back.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
)

type state struct {
	patients         map[uuid.UUID]model.Patient
	doctors          map[uuid.UUID]model.RegularDoctor
	children         map[uuid.UUID]model.Children
	examinations     map[uuid.UUID]model.Examination
	comments         map[uuid.UUID]model.ExaminationComment
	examInvoices     map[uuid.UUID][]uuid.UUID
	invoices         map[uuid.UUID]model.Invoice
	means            map[uuid.UUID]model.PaimentMean
	paiments         map[uuid.UUID]model.Paiment
	events           map[uuid.UUID]model.OfficeEvent
	office           *model.OfficeSettings
	therapeut        map[uuid.UUID]model.TherapeutSettings
	documents        map[uuid.UUID]model.Document
	patientDocuments map[uuid.UUID]model.PatientDocument
	fileImports      map[uuid.UUID]model.FileImport
	outbox           map[uuid.UUID]model.OutboxEvent
	deadLetter       []model.OutboxEvent
}

func newState() *state {
	return &state{
		patients:         map[uuid.UUID]model.Patient{},
		doctors:          map[uuid.UUID]model.RegularDoctor{},
		children:         map[uuid.UUID]model.Children{},
		examinations:     map[uuid.UUID]model.Examination{},
		comments:         map[uuid.UUID]model.ExaminationComment{},
		examInvoices:     map[uuid.UUID][]uuid.UUID{},
		invoices:         map[uuid.UUID]model.Invoice{},
		means:            map[uuid.UUID]model.PaimentMean{},
		paiments:         map[uuid.UUID]model.Paiment{},
		events:           map[uuid.UUID]model.OfficeEvent{},
		therapeut:        map[uuid.UUID]model.TherapeutSettings{},
		documents:        map[uuid.UUID]model.Document{},
		patientDocuments: map[uuid.UUID]model.PatientDocument{},
		fileImports:      map[uuid.UUID]model.FileImport{},
		outbox:           map[uuid.UUID]model.OutboxEvent{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		patients:         cloneMap(s.patients),
		doctors:          cloneMap(s.doctors),
		children:         cloneMap(s.children),
		examinations:     cloneMap(s.examinations),
		comments:         cloneMap(s.comments),
		examInvoices:     make(map[uuid.UUID][]uuid.UUID, len(s.examInvoices)),
		invoices:         cloneMap(s.invoices),
		means:            cloneMap(s.means),
		paiments:         cloneMap(s.paiments),
		events:           cloneMap(s.events),
		therapeut:        cloneMap(s.therapeut),
		documents:        cloneMap(s.documents),
		patientDocuments: cloneMap(s.patientDocuments),
		fileImports:      cloneMap(s.fileImports),
		outbox:           cloneMap(s.outbox),
		deadLetter:       append([]model.OutboxEvent(nil), s.deadLetter...),
	}
	for k, v := range s.examInvoices {
		c.examInvoices[k] = append([]uuid.UUID(nil), v...)
	}
	if s.office != nil {
		o := *s.office
		c.office = &o
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	data  *state
	fail  map[string]error
	repos *repository.Repositories
	now   func() time.Time
}

func NewStore() *Store {
	s := &Store{data: newState(), fail: map[string]error{}, now: time.Now}
	s.repos = &repository.Repositories{
		Patients:          &patients{s},
		Doctors:           &doctors{s},
		Children:          &children{s},
		Examinations:      &examinations{s},
		Comments:          &comments{s},
		Invoices:          &invoices{s},
		PaimentMeans:      &means{s},
		Paiments:          &paiments{s},
		Events:            &events{s},
		OfficeSettings:    &officeSettings{s},
		TherapeutSettings: &therapeutSettings{s},
		Documents:         &documents{s},
		PatientDocuments:  &patientDocuments{s},
		FileImports:       &fileImports{s},
		Outbox:            &outbox{s},
	}
	return s
}

func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

// WithTx serialises units of work and restores the previous state when fn
// fails.
func (s *Store) WithTx(ctx context.Context, fn func(*repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s.repos); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the named operation ("Patients.Delete") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// DeadLetters returns the events moved out of the outbox.
func (s *Store) DeadLetters() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.data.deadLetter...)
}

// OutboxEvent returns the stored outbox row.
func (s *Store) OutboxEvent(id uuid.UUID) (model.OutboxEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.outbox[id]
	return e, ok
}

// lock takes the data mutex and reports an injected failure for op.
func (s *Store) lock(op string) (*state, func(), error) {
	s.mu.Lock()
	if err := s.fail[op]; err != nil {
		s.mu.Unlock()
		return nil, func() {}, err
	}
	return s.data, s.mu.Unlock, nil
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, sql.ErrNoRows)
}

func stamp(b *model.Base, now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}

func page[T any](items []T, p model.Pagination) []T {
	off := p.Offset()
	if off >= len(items) {
		return []T{}
	}
	end := off + p.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

type patients struct{ s *Store }

func (r *patients) Create(_ context.Context, p *model.Patient) error {
	d, unlock, err := r.s.lock("Patients.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&p.Base, r.s.now())
	d.patients[p.ID] = *p
	return nil
}

func (r *patients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	d, unlock, err := r.s.lock("Patients.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	p, ok := d.patients[id]
	if !ok {
		return nil, notFound("patient")
	}
	return &p, nil
}

func (r *patients) Update(_ context.Context, p *model.Patient) error {
	d, unlock, err := r.s.lock("Patients.Update")
	defer unlock()
	if err != nil {
		return err
	}
	old, ok := d.patients[p.ID]
	if !ok {
		return notFound("patient")
	}
	p.CreatedAt = old.CreatedAt
	p.CreationDate = old.CreationDate
	p.UpdatedAt = r.s.now()
	d.patients[p.ID] = *p
	return nil
}

func (r *patients) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("Patients.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.patients[id]; !ok {
		return notFound("patient")
	}
	delete(d.patients, id)
	for cid, c := range d.children {
		if c.ParentID == id {
			delete(d.children, cid)
		}
	}
	for eid, e := range d.examinations {
		if e.PatientID == id {
			deleteExamination(d, eid)
		}
	}
	for did, pd := range d.patientDocuments {
		if pd.PatientID == id {
			delete(d.patientDocuments, did)
		}
	}
	return nil
}

func (r *patients) List(_ context.Context, f *model.PatientFilters) ([]*model.Patient, error) {
	d, unlock, err := r.s.lock("Patients.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	if f == nil {
		f = &model.PatientFilters{}
	}
	term := strings.ToLower(f.SearchTerm)
	var out []*model.Patient
	for _, p := range d.patients {
		p := p
		if f.DoctorID != nil && (p.DoctorID == nil || *p.DoctorID != *f.DoctorID) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.FamilyName), term) &&
			!strings.Contains(strings.ToLower(p.FirstName), term) &&
			!strings.Contains(strings.ToLower(p.OriginalName), term) {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FamilyName != out[j].FamilyName {
			return out[i].FamilyName < out[j].FamilyName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return page(out, f.Pagination), nil
}

type doctors struct{ s *Store }

func (r *doctors) Create(_ context.Context, doc *model.RegularDoctor) error {
	d, unlock, err := r.s.lock("Doctors.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&doc.Base, r.s.now())
	d.doctors[doc.ID] = *doc
	return nil
}

func (r *doctors) Get(_ context.Context, id uuid.UUID) (*model.RegularDoctor, error) {
	d, unlock, err := r.s.lock("Doctors.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	doc, ok := d.doctors[id]
	if !ok {
		return nil, notFound("doctor")
	}
	return &doc, nil
}

func (r *doctors) Update(_ context.Context, doc *model.RegularDoctor) error {
	d, unlock, err := r.s.lock("Doctors.Update")
	defer unlock()
	if err != nil {
		return err
	}
	old, ok := d.doctors[doc.ID]
	if !ok {
		return notFound("doctor")
	}
	doc.CreatedAt = old.CreatedAt
	doc.UpdatedAt = r.s.now()
	d.doctors[doc.ID] = *doc
	return nil
}

func (r *doctors) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("Doctors.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.doctors[id]; !ok {
		return notFound("doctor")
	}
	delete(d.doctors, id)
	for pid, p := range d.patients {
		if p.DoctorID != nil && *p.DoctorID == id {
			p.DoctorID = nil
			d.patients[pid] = p
		}
	}
	return nil
}

func (r *doctors) List(_ context.Context) ([]*model.RegularDoctor, error) {
	d, unlock, err := r.s.lock("Doctors.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*model.RegularDoctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		doc := doc
		out = append(out, &doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FamilyName != out[j].FamilyName {
			return out[i].FamilyName < out[j].FamilyName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

type children struct{ s *Store }

func (r *children) Create(_ context.Context, c *model.Children) error {
	d, unlock, err := r.s.lock("Children.Create")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.patients[c.ParentID]; !ok {
		return fmt.Errorf("children parent: %w", sql.ErrNoRows)
	}
	stamp(&c.Base, r.s.now())
	d.children[c.ID] = *c
	return nil
}

func (r *children) Get(_ context.Context, id uuid.UUID) (*model.Children, error) {
	d, unlock, err := r.s.lock("Children.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	c, ok := d.children[id]
	if !ok {
		return nil, notFound("child")
	}
	return &c, nil
}

func (r *children) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("Children.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.children[id]; !ok {
		return notFound("child")
	}
	delete(d.children, id)
	return nil
}

func (r *children) ListByParent(_ context.Context, parentID uuid.UUID) ([]*model.Children, error) {
	d, unlock, err := r.s.lock("Children.ListByParent")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.Children
	for _, c := range d.children {
		c := c
		if c.ParentID == parentID {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BirthdayDate.Before(out[j].BirthdayDate) })
	return out, nil
}

func (r *children) DeleteByParent(_ context.Context, parentID uuid.UUID) (int64, error) {
	d, unlock, err := r.s.lock("Children.DeleteByParent")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for id, c := range d.children {
		if c.ParentID == parentID {
			delete(d.children, id)
			n++
		}
	}
	return n, nil
}

type examinations struct{ s *Store }

func deleteExamination(d *state, id uuid.UUID) {
	delete(d.examinations, id)
	delete(d.examInvoices, id)
	for cid, c := range d.comments {
		if c.ExaminationID == id {
			delete(d.comments, cid)
		}
	}
}

func (r *examinations) Create(_ context.Context, e *model.Examination) error {
	d, unlock, err := r.s.lock("Examinations.Create")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.patients[e.PatientID]; !ok {
		return fmt.Errorf("examination patient: %w", sql.ErrNoRows)
	}
	stamp(&e.Base, r.s.now())
	d.examinations[e.ID] = *e
	return nil
}

func (r *examinations) Get(_ context.Context, id uuid.UUID) (*model.Examination, error) {
	d, unlock, err := r.s.lock("Examinations.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	e, ok := d.examinations[id]
	if !ok {
		return nil, notFound("examination")
	}
	return &e, nil
}

func (r *examinations) Update(_ context.Context, e *model.Examination) error {
	d, unlock, err := r.s.lock("Examinations.Update")
	defer unlock()
	if err != nil {
		return err
	}
	old, ok := d.examinations[e.ID]
	if !ok {
		return notFound("examination")
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = r.s.now()
	d.examinations[e.ID] = *e
	return nil
}

func (r *examinations) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("Examinations.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.examinations[id]; !ok {
		return notFound("examination")
	}
	deleteExamination(d, id)
	return nil
}

func (r *examinations) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Examination, error) {
	d, unlock, err := r.s.lock("Examinations.ListByPatient")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.Examination
	for _, e := range d.examinations {
		e := e
		if e.PatientID == patientID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *examinations) AttachInvoice(_ context.Context, examID, invoiceID uuid.UUID) error {
	d, unlock, err := r.s.lock("Examinations.AttachInvoice")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.examinations[examID]; !ok {
		return notFound("examination")
	}
	if _, ok := d.invoices[invoiceID]; !ok {
		return notFound("invoice")
	}
	for _, id := range d.examInvoices[examID] {
		if id == invoiceID {
			return nil
		}
	}
	d.examInvoices[examID] = append(append([]uuid.UUID(nil), d.examInvoices[examID]...), invoiceID)
	return nil
}

func (r *examinations) ListInvoices(_ context.Context, examID uuid.UUID) ([]*model.Invoice, error) {
	d, unlock, err := r.s.lock("Examinations.ListInvoices")
	defer unlock()
	if err != nil {
		return nil, err
	}
	out := associated(d, examID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func associated(d *state, examID uuid.UUID) []*model.Invoice {
	var out []*model.Invoice
	for _, id := range d.examInvoices[examID] {
		if inv, ok := d.invoices[id]; ok {
			inv := inv
			out = append(out, &inv)
		}
	}
	return out
}

func (r *examinations) InvoiceChains(_ context.Context, examID uuid.UUID) ([]*model.Invoice, error) {
	d, unlock, err := r.s.lock("Examinations.InvoiceChains")
	defer unlock()
	if err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]bool{}
	var out []*model.Invoice
	queue := associated(d, examID)
	for len(queue) > 0 {
		inv := queue[0]
		queue = queue[1:]
		if seen[inv.ID] {
			continue
		}
		seen[inv.ID] = true
		out = append(out, inv)
		if inv.CanceledBy != nil {
			if next, ok := d.invoices[*inv.CanceledBy]; ok {
				next := next
				queue = append(queue, &next)
			}
		}
	}
	return out, nil
}

func (r *examinations) FindByInvoice(_ context.Context, invoiceID uuid.UUID) (*model.Examination, error) {
	d, unlock, err := r.s.lock("Examinations.FindByInvoice")
	defer unlock()
	if err != nil {
		return nil, err
	}
	for examID, ids := range d.examInvoices {
		for _, id := range ids {
			if id == invoiceID {
				e := d.examinations[examID]
				return &e, nil
			}
		}
	}
	return nil, notFound("examination of invoice")
}

type comments struct{ s *Store }

func (r *comments) Create(_ context.Context, c *model.ExaminationComment) error {
	d, unlock, err := r.s.lock("Comments.Create")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.examinations[c.ExaminationID]; !ok {
		return fmt.Errorf("comment examination: %w", sql.ErrNoRows)
	}
	stamp(&c.Base, r.s.now())
	d.comments[c.ID] = *c
	return nil
}

func (r *comments) ListByExamination(_ context.Context, examID uuid.UUID) ([]*model.ExaminationComment, error) {
	d, unlock, err := r.s.lock("Comments.ListByExamination")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.ExaminationComment
	for _, c := range d.comments {
		c := c
		if c.ExaminationID == examID {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return dateOf(out[i].Date).After(dateOf(out[j].Date)) })
	return out, nil
}

func dateOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

type invoices struct{ s *Store }

func (r *invoices) Create(_ context.Context, inv *model.Invoice) error {
	d, unlock, err := r.s.lock("Invoices.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&inv.Base, r.s.now())
	d.invoices[inv.ID] = *inv
	return nil
}

func (r *invoices) Get(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	d, unlock, err := r.s.lock("Invoices.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	inv, ok := d.invoices[id]
	if !ok {
		return nil, notFound("invoice")
	}
	return &inv, nil
}

func (r *invoices) MarkCanceled(_ context.Context, id, canceledBy uuid.UUID) error {
	d, unlock, err := r.s.lock("Invoices.MarkCanceled")
	defer unlock()
	if err != nil {
		return err
	}
	inv, ok := d.invoices[id]
	if !ok || inv.CanceledBy != nil {
		return notFound("live invoice")
	}
	for _, other := range d.invoices {
		if other.CanceledBy != nil && *other.CanceledBy == canceledBy {
			return fmt.Errorf("invoice %s already replaces another invoice", canceledBy)
		}
	}
	inv.Status = model.InvoiceStatusCanceled
	inv.CanceledBy = &canceledBy
	inv.UpdatedAt = r.s.now()
	d.invoices[id] = inv
	return nil
}

func (r *invoices) UpdateStatus(_ context.Context, id uuid.UUID, status model.InvoiceStatus) error {
	d, unlock, err := r.s.lock("Invoices.UpdateStatus")
	defer unlock()
	if err != nil {
		return err
	}
	inv, ok := d.invoices[id]
	if !ok {
		return notFound("invoice")
	}
	inv.Status = status
	inv.UpdatedAt = r.s.now()
	d.invoices[id] = inv
	return nil
}

func (r *invoices) List(_ context.Context, f *model.InvoiceFilters) ([]*model.Invoice, error) {
	d, unlock, err := r.s.lock("Invoices.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	if f == nil {
		f = &model.InvoiceFilters{}
	}
	var out []*model.Invoice
	for _, inv := range d.invoices {
		inv := inv
		if !inRange(inv.Date, f.DateRange) {
			continue
		}
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		out = append(out, &inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return page(out, f.Pagination), nil
}

func inRange(t time.Time, r model.DateRange) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

type means struct{ s *Store }

func (r *means) Create(_ context.Context, m *model.PaimentMean) error {
	d, unlock, err := r.s.lock("PaimentMeans.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&m.Base, r.s.now())
	d.means[m.ID] = *m
	return nil
}

func (r *means) Get(_ context.Context, id uuid.UUID) (*model.PaimentMean, error) {
	d, unlock, err := r.s.lock("PaimentMeans.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	m, ok := d.means[id]
	if !ok {
		return nil, notFound("paiment mean")
	}
	return &m, nil
}

func (r *means) Update(_ context.Context, m *model.PaimentMean) error {
	d, unlock, err := r.s.lock("PaimentMeans.Update")
	defer unlock()
	if err != nil {
		return err
	}
	old, ok := d.means[m.ID]
	if !ok {
		return notFound("paiment mean")
	}
	m.CreatedAt = old.CreatedAt
	m.UpdatedAt = r.s.now()
	d.means[m.ID] = *m
	return nil
}

func (r *means) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("PaimentMeans.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.means[id]; !ok {
		return notFound("paiment mean")
	}
	delete(d.means, id)
	return nil
}

func (r *means) List(_ context.Context, enabledOnly bool) ([]*model.PaimentMean, error) {
	d, unlock, err := r.s.lock("PaimentMeans.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.PaimentMean
	for _, m := range d.means {
		m := m
		if enabledOnly && !m.Enable {
			continue
		}
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type paiments struct{ s *Store }

func (r *paiments) Create(_ context.Context, p *model.Paiment) error {
	d, unlock, err := r.s.lock("Paiments.Create")
	defer unlock()
	if err != nil {
		return err
	}
	for _, id := range p.InvoiceIDs {
		if _, ok := d.invoices[id]; !ok {
			return fmt.Errorf("paiment invoice %s: %w", id, sql.ErrNoRows)
		}
	}
	stamp(&p.Base, r.s.now())
	stored := *p
	stored.InvoiceIDs = append([]uuid.UUID(nil), p.InvoiceIDs...)
	d.paiments[p.ID] = stored
	return nil
}

func (r *paiments) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*model.Paiment, error) {
	d, unlock, err := r.s.lock("Paiments.ListByInvoice")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.Paiment
	for _, p := range d.paiments {
		p := p
		for _, id := range p.InvoiceIDs {
			if id == invoiceID {
				out = append(out, &p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *paiments) List(_ context.Context, dates model.DateRange) ([]*model.Paiment, error) {
	d, unlock, err := r.s.lock("Paiments.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.Paiment
	for _, p := range d.paiments {
		p := p
		if inRange(p.Date, dates) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

type events struct{ s *Store }

func (r *events) Create(_ context.Context, e *model.OfficeEvent) error {
	d, unlock, err := r.s.lock("Events.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&e.Base, r.s.now())
	d.events[e.ID] = *e
	return nil
}

func (r *events) List(_ context.Context, f *model.OfficeEventFilters) ([]*model.OfficeEvent, error) {
	d, unlock, err := r.s.lock("Events.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	if f == nil {
		f = &model.OfficeEventFilters{}
	}
	var out []*model.OfficeEvent
	for _, e := range d.events {
		e := e
		if f.Clazz != "" && e.Clazz != f.Clazz {
			continue
		}
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return dateOf(out[i].Date).After(dateOf(out[j].Date)) })
	return page(out, f.Pagination), nil
}

type officeSettings struct{ s *Store }

func (r *officeSettings) Get(_ context.Context) (*model.OfficeSettings, error) {
	d, unlock, err := r.s.lock("OfficeSettings.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	if d.office == nil {
		return nil, notFound("office settings")
	}
	o := *d.office
	return &o, nil
}

func (r *officeSettings) Save(_ context.Context, o *model.OfficeSettings) error {
	d, unlock, err := r.s.lock("OfficeSettings.Save")
	defer unlock()
	if err != nil {
		return err
	}
	o.ID = model.OfficeSettingsID
	o.UpdatedAt = r.s.now()
	stored := *o
	d.office = &stored
	return nil
}

type therapeutSettings struct{ s *Store }

func (r *therapeutSettings) GetByUser(_ context.Context, userID uuid.UUID) (*model.TherapeutSettings, error) {
	d, unlock, err := r.s.lock("TherapeutSettings.GetByUser")
	defer unlock()
	if err != nil {
		return nil, err
	}
	ts, ok := d.therapeut[userID]
	if !ok {
		return nil, notFound("therapeut settings")
	}
	return &ts, nil
}

func (r *therapeutSettings) Save(_ context.Context, ts *model.TherapeutSettings) error {
	d, unlock, err := r.s.lock("TherapeutSettings.Save")
	defer unlock()
	if err != nil {
		return err
	}
	now := r.s.now()
	if old, ok := d.therapeut[ts.UserID]; ok {
		ts.ID = old.ID
		ts.CreatedAt = old.CreatedAt
	} else {
		if ts.ID == uuid.Nil {
			ts.ID = uuid.New()
		}
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
	d.therapeut[ts.UserID] = *ts
	return nil
}

type documents struct{ s *Store }

func (r *documents) Create(_ context.Context, doc *model.Document) error {
	d, unlock, err := r.s.lock("Documents.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&doc.Base, r.s.now())
	d.documents[doc.ID] = *doc
	return nil
}

func (r *documents) Get(_ context.Context, id uuid.UUID) (*model.Document, error) {
	d, unlock, err := r.s.lock("Documents.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	doc, ok := d.documents[id]
	if !ok {
		return nil, notFound("document")
	}
	return &doc, nil
}

func (r *documents) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("Documents.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.documents[id]; !ok {
		return notFound("document")
	}
	delete(d.documents, id)
	delete(d.patientDocuments, id)
	return nil
}

func (r *documents) DeleteMany(_ context.Context, ids []uuid.UUID) (int64, error) {
	d, unlock, err := r.s.lock("Documents.DeleteMany")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if _, ok := d.documents[id]; ok {
			delete(d.documents, id)
			delete(d.patientDocuments, id)
			n++
		}
	}
	return n, nil
}

type patientDocuments struct{ s *Store }

func (r *patientDocuments) Create(_ context.Context, pd *model.PatientDocument) error {
	d, unlock, err := r.s.lock("PatientDocuments.Create")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.documents[pd.DocumentID]; !ok {
		return fmt.Errorf("patient document: %w", sql.ErrNoRows)
	}
	if _, ok := d.patients[pd.PatientID]; !ok {
		return fmt.Errorf("patient document patient: %w", sql.ErrNoRows)
	}
	if _, ok := d.patientDocuments[pd.DocumentID]; ok {
		return fmt.Errorf("document %s is already attached", pd.DocumentID)
	}
	stored := *pd
	stored.Document = nil
	d.patientDocuments[pd.DocumentID] = stored
	return nil
}

func (r *patientDocuments) Get(_ context.Context, documentID uuid.UUID) (*model.PatientDocument, error) {
	d, unlock, err := r.s.lock("PatientDocuments.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	pd, ok := d.patientDocuments[documentID]
	if !ok {
		return nil, notFound("patient document")
	}
	doc := d.documents[documentID]
	pd.Document = &doc
	return &pd, nil
}

func (r *patientDocuments) ListByPatient(_ context.Context, patientID uuid.UUID, attachment *model.AttachmentType) ([]*model.PatientDocument, error) {
	d, unlock, err := r.s.lock("PatientDocuments.ListByPatient")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.PatientDocument
	for id, pd := range d.patientDocuments {
		pd := pd
		if pd.PatientID != patientID {
			continue
		}
		if attachment != nil && pd.AttachmentType != *attachment {
			continue
		}
		doc := d.documents[id]
		pd.Document = &doc
		out = append(out, &pd)
	}
	sort.Slice(out, func(i, j int) bool {
		return dateOf(out[i].Document.InternalDate).After(dateOf(out[j].Document.InternalDate))
	})
	return out, nil
}

type fileImports struct{ s *Store }

func (r *fileImports) Create(_ context.Context, fi *model.FileImport) error {
	d, unlock, err := r.s.lock("FileImports.Create")
	defer unlock()
	if err != nil {
		return err
	}
	stamp(&fi.Base, r.s.now())
	d.fileImports[fi.ID] = *fi
	return nil
}

func (r *fileImports) Get(_ context.Context, id uuid.UUID) (*model.FileImport, error) {
	d, unlock, err := r.s.lock("FileImports.Get")
	defer unlock()
	if err != nil {
		return nil, err
	}
	fi, ok := d.fileImports[id]
	if !ok {
		return nil, notFound("file import")
	}
	return &fi, nil
}

func (r *fileImports) Delete(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("FileImports.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := d.fileImports[id]; !ok {
		return notFound("file import")
	}
	delete(d.fileImports, id)
	return nil
}

func (r *fileImports) ListCreatedBefore(_ context.Context, before time.Time, limit int) ([]*model.FileImport, error) {
	d, unlock, err := r.s.lock("FileImports.ListCreatedBefore")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.FileImport
	for _, fi := range d.fileImports {
		fi := fi
		if fi.CreatedAt.Before(before) {
			out = append(out, &fi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetFileImportCreatedAt backdates a file import for purge tests.
func (s *Store) SetFileImportCreatedAt(id uuid.UUID, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fi, ok := s.data.fileImports[id]; ok {
		fi.CreatedAt = t
		s.data.fileImports[id] = fi
	}
}

type outbox struct{ s *Store }

func (r *outbox) Create(_ context.Context, e *model.OutboxEvent) error {
	d, unlock, err := r.s.lock("Outbox.Create")
	defer unlock()
	if err != nil {
		return err
	}
	e.ID = uuid.New()
	e.CreatedAt = r.s.now()
	e.UpdatedAt = e.CreatedAt
	e.Status = model.OutboxStatusPending
	d.outbox[e.ID] = *e
	return nil
}

func (r *outbox) LockPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	d, unlock, err := r.s.lock("Outbox.LockPending")
	defer unlock()
	if err != nil {
		return nil, err
	}
	now := r.s.now()
	var out []*model.OutboxEvent
	for _, e := range d.outbox {
		e := e
		if e.Status != model.OutboxStatusPending {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outbox) MarkProcessed(_ context.Context, id uuid.UUID) error {
	d, unlock, err := r.s.lock("Outbox.MarkProcessed")
	defer unlock()
	if err != nil {
		return err
	}
	e, ok := d.outbox[id]
	if !ok {
		return notFound("outbox event")
	}
	now := r.s.now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.ErrorMessage = nil
	e.UpdatedAt = now
	d.outbox[id] = e
	return nil
}

func (r *outbox) ScheduleRetry(_ context.Context, id uuid.UUID, msg string, retryAt time.Time) error {
	d, unlock, err := r.s.lock("Outbox.ScheduleRetry")
	defer unlock()
	if err != nil {
		return err
	}
	e, ok := d.outbox[id]
	if !ok {
		return notFound("outbox event")
	}
	e.ErrorMessage = &msg
	e.RetryAt = &retryAt
	e.RetryCount++
	e.UpdatedAt = r.s.now()
	d.outbox[id] = e
	return nil
}

func (r *outbox) MoveToDeadLetter(_ context.Context, evt *model.OutboxEvent) error {
	d, unlock, err := r.s.lock("Outbox.MoveToDeadLetter")
	defer unlock()
	if err != nil {
		return err
	}
	e, ok := d.outbox[evt.ID]
	if !ok {
		return notFound("outbox event")
	}
	d.deadLetter = append(d.deadLetter, *evt)
	e.Status = model.OutboxStatusFailed
	e.UpdatedAt = r.s.now()
	d.outbox[evt.ID] = e
	return nil
}

func (r *outbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	d, unlock, err := r.s.lock("Outbox.DeleteProcessedBefore")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for id, e := range d.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(d.outbox, id)
			n++
		}
	}
	return n, nil
}
