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

type patientRepository struct {
	q Querier
}

func NewPatientRepository(q Querier) repository.PatientRepository {
	return &patientRepository{q: q}
}

const patientColumns = `id, created_at, updated_at, num_ss, num_mut, family_name, original_name,
	first_name, birth_date, address_street, address_complement, address_zipcode, address_city,
	email, phone, mobile_phone, job, hobbies, doctor_id, smoker, laterality, important_info,
	current_treatment, surgical_history, medical_history, family_history, trauma_history,
	medical_reports, creation_date, sex`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (:id, :created_at, :updated_at, :num_ss, :num_mut, :family_name, :original_name,
			:first_name, :birth_date, :address_street, :address_complement, :address_zipcode,
			:address_city, :email, :phone, :mobile_phone, :job, :hobbies, :doctor_id, :smoker,
			:laterality, :important_info, :current_treatment, :surgical_history, :medical_history,
			:family_history, :trauma_history, :medical_reports, :creation_date, :sex)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.q.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

// Update rewrites every field except creation_date, which is set once.
func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			num_ss = :num_ss, num_mut = :num_mut, family_name = :family_name,
			original_name = :original_name, first_name = :first_name, birth_date = :birth_date,
			address_street = :address_street, address_complement = :address_complement,
			address_zipcode = :address_zipcode, address_city = :address_city, email = :email,
			phone = :phone, mobile_phone = :mobile_phone, job = :job, hobbies = :hobbies,
			doctor_id = :doctor_id, smoker = :smoker, laterality = :laterality,
			important_info = :important_info, current_treatment = :current_treatment,
			surgical_history = :surgical_history, medical_history = :medical_history,
			family_history = :family_history, trauma_history = :trauma_history,
			medical_reports = :medical_reports, sex = :sex, updated_at = :updated_at
		WHERE id = :id
	`
	patient.UpdatedAt = time.Now()
	res, err := r.q.NamedExecContext(ctx, query, patient)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return expectOne(res)
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return expectOne(res)
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	if filters == nil {
		filters = &model.PatientFilters{}
	}
	var (
		where []string
		args  []interface{}
	)
	if term := strings.TrimSpace(filters.SearchTerm); term != "" {
		args = append(args, "%"+term+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(family_name ILIKE $%d OR first_name ILIKE $%d OR original_name ILIKE $%d)", n, n, n))
	}
	if filters.DoctorID != nil {
		args = append(args, *filters.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}

	query := `SELECT ` + patientColumns + ` FROM patients`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit(), filters.Offset())
	query += fmt.Sprintf(" ORDER BY family_name, first_name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var patients []*model.Patient
	if err := r.q.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

type doctorRepository struct {
	q Querier
}

func NewDoctorRepository(q Querier) repository.DoctorRepository {
	return &doctorRepository{q: q}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.RegularDoctor) error {
	query := `
		INSERT INTO regular_doctors (id, created_at, updated_at, family_name, first_name, phone, city)
		VALUES (:id, :created_at, :updated_at, :family_name, :first_name, :phone, :city)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = doctor.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.RegularDoctor, error) {
	var doctor model.RegularDoctor
	if err := r.q.GetContext(ctx, &doctor, `SELECT * FROM regular_doctors WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.RegularDoctor) error {
	query := `
		UPDATE regular_doctors
		SET family_name = :family_name, first_name = :first_name, phone = :phone,
			city = :city, updated_at = :updated_at
		WHERE id = :id
	`
	doctor.UpdatedAt = time.Now()
	res, err := r.q.NamedExecContext(ctx, query, doctor)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	return expectOne(res)
}

// Delete removes the doctor; the foreign key nulls the patients' reference.
func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM regular_doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	return expectOne(res)
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.RegularDoctor, error) {
	var doctors []*model.RegularDoctor
	err := r.q.SelectContext(ctx, &doctors, `SELECT * FROM regular_doctors ORDER BY family_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

type childrenRepository struct {
	q Querier
}

func NewChildrenRepository(q Querier) repository.ChildrenRepository {
	return &childrenRepository{q: q}
}

func (r *childrenRepository) Create(ctx context.Context, child *model.Children) error {
	query := `
		INSERT INTO children (id, created_at, updated_at, family_name, first_name, birthday_date, parent_id)
		VALUES (:id, :created_at, :updated_at, :family_name, :first_name, :birthday_date, :parent_id)
	`
	if child.ID == uuid.Nil {
		child.ID = uuid.New()
	}
	child.CreatedAt = time.Now()
	child.UpdatedAt = child.CreatedAt

	if _, err := r.q.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("failed to create child: %w", err)
	}
	return nil
}

func (r *childrenRepository) Get(ctx context.Context, id uuid.UUID) (*model.Children, error) {
	var child model.Children
	if err := r.q.GetContext(ctx, &child, `SELECT * FROM children WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return &child, nil
}

func (r *childrenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM children WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	return expectOne(res)
}

func (r *childrenRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*model.Children, error) {
	var children []*model.Children
	err := r.q.SelectContext(ctx, &children,
		`SELECT * FROM children WHERE parent_id = $1 ORDER BY birthday_date`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

func (r *childrenRepository) DeleteByParent(ctx context.Context, parentID uuid.UUID) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM children WHERE parent_id = $1`, parentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete children: %w", err)
	}
	return res.RowsAffected()
}
