package model

import (
	"time"

	"github.com/google/uuid"
)

// RegularDoctor is the usual physician of one or more patients.
type RegularDoctor struct {
	Base
	FamilyName string `db:"family_name" json:"family_name" validate:"required,max=200"`
	FirstName  string `db:"first_name" json:"first_name" validate:"required,max=200"`
	Phone      string `db:"phone" json:"phone" validate:"max=100"`
	City       string `db:"city" json:"city" validate:"max=200"`
}

type Patient struct {
	Base
	NumSS             string      `db:"num_ss" json:"numSS"`
	NumMut            string      `db:"num_mut" json:"numMut"`
	FamilyName        string      `db:"family_name" json:"family_name" validate:"required,max=200"`
	OriginalName      string      `db:"original_name" json:"original_name" validate:"max=200"`
	FirstName         string      `db:"first_name" json:"first_name" validate:"max=200"`
	BirthDate         time.Time   `db:"birth_date" json:"birth_date" validate:"required"`
	AddressStreet     string      `db:"address_street" json:"address_street" validate:"max=500"`
	AddressComplement string      `db:"address_complement" json:"address_complement" validate:"max=500"`
	AddressZipcode    string      `db:"address_zipcode" json:"address_zipcode" validate:"max=200"`
	AddressCity       string      `db:"address_city" json:"address_city" validate:"max=200"`
	Email             string      `db:"email" json:"email" validate:"omitempty,email,max=200"`
	Phone             string      `db:"phone" json:"phone" validate:"max=200"`
	MobilePhone       string      `db:"mobile_phone" json:"mobile_phone" validate:"max=200"`
	Job               string      `db:"job" json:"job" validate:"max=200"`
	Hobbies           string      `db:"hobbies" json:"hobbies"`
	DoctorID          *uuid.UUID  `db:"doctor_id" json:"doctor"`
	Smoker            bool        `db:"smoker" json:"smoker"`
	Laterality        *Laterality `db:"laterality" json:"laterality" validate:"omitempty,enum"`
	ImportantInfo     string      `db:"important_info" json:"important_info"`
	CurrentTreatment  string      `db:"current_treatment" json:"current_treatment"`
	SurgicalHistory   string      `db:"surgical_history" json:"surgical_history"`
	MedicalHistory    string      `db:"medical_history" json:"medical_history"`
	FamilyHistory     string      `db:"family_history" json:"family_history"`
	TraumaHistory     string      `db:"trauma_history" json:"trauma_history"`
	MedicalReports    string      `db:"medical_reports" json:"medical_reports"`
	CreationDate      *time.Time  `db:"creation_date" json:"creation_date"`
	Sex               *Sex        `db:"sex" json:"sex" validate:"omitempty,enum"`
}

// Clean assigns the creation date the first time the patient is validated.
// An already set creation date is never changed.
func (p *Patient) Clean(now time.Time) {
	if p.CreationDate == nil {
		d := truncateToDay(now)
		p.CreationDate = &d
	}
}

// Children is a child of a patient. It is deleted with its parent.
type Children struct {
	Base
	FamilyName   string    `db:"family_name" json:"family_name" validate:"max=200"`
	FirstName    string    `db:"first_name" json:"first_name" validate:"required,max=200"`
	BirthdayDate time.Time `db:"birthday_date" json:"birthday_date" validate:"required"`
	ParentID     uuid.UUID `db:"parent_id" json:"parent" validate:"required"`
}

type PatientFilters struct {
	SearchTerm string `json:"search_term" form:"search"`
	DoctorID   *uuid.UUID
	Pagination
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
