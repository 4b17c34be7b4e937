package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is an immutable snapshot of the office, therapeut and patient data
// at invoicing time. Cancellation links it to the invoice that supersedes it.
type Invoice struct {
	Base
	Icon            string     `db:"icon" json:"icon"`
	DateExamination *time.Time `db:"date_examination" json:"dateExamination"`
	NumDiplome      string     `db:"num_diplome" json:"numDiplome"`
	CodeAPE         string     `db:"code_ape" json:"codeAPE"`
	NumSS           string     `db:"num_ss" json:"numSS"`
	NumMut          string     `db:"num_mut" json:"numMut"`

	Date               time.Time       `db:"date" json:"date"`
	Amount             decimal.Decimal `db:"amount" json:"amount" validate:"gte=0"`
	Currency           string          `db:"currency" json:"currency" validate:"required,max=10"`
	PaimentMode        string          `db:"paiment_mode" json:"paiment_mode" validate:"required,max=10"`
	Header             string          `db:"header" json:"header"`
	TherapeutName      string          `db:"therapeut_name" json:"therapeut_name"`
	TherapeutFirstName string          `db:"therapeut_first_name" json:"therapeut_first_name"`
	Quality            string          `db:"quality" json:"quality"`
	Adeli              string          `db:"adeli" json:"adeli"`
	Location           string          `db:"location" json:"location"`
	Number             string          `db:"number" json:"number"`

	PatientFamilyName        string `db:"patient_family_name" json:"patient_family_name" validate:"max=200"`
	PatientOriginalName      string `db:"patient_original_name" json:"patient_original_name" validate:"max=200"`
	PatientFirstName         string `db:"patient_first_name" json:"patient_first_name" validate:"max=200"`
	PatientAddressStreet     string `db:"patient_address_street" json:"patient_address_street" validate:"max=500"`
	PatientAddressComplement string `db:"patient_address_complement" json:"patient_address_complement" validate:"max=500"`
	PatientAddressZipcode    string `db:"patient_address_zipcode" json:"patient_address_zipcode" validate:"max=200"`
	PatientAddressCity       string `db:"patient_address_city" json:"patient_address_city" validate:"max=200"`

	ContentInvoice          string `db:"content_invoice" json:"content_invoice"`
	Footer                  string `db:"footer" json:"footer"`
	OfficeSiret             string `db:"office_siret" json:"office_siret"`
	OfficeAddressStreet     string `db:"office_address_street" json:"office_address_street" validate:"max=500"`
	OfficeAddressComplement string `db:"office_address_complement" json:"office_address_complement" validate:"max=500"`
	OfficeAddressZipcode    string `db:"office_address_zipcode" json:"office_address_zipcode" validate:"max=200"`
	OfficeAddressCity       string `db:"office_address_city" json:"office_address_city" validate:"max=200"`
	OfficePhone             string `db:"office_phone" json:"office_phone" validate:"max=200"`

	Status      InvoiceStatus `db:"status" json:"status" validate:"enum"`
	TherapeutID *uuid.UUID    `db:"therapeut_id" json:"therapeut_id"`
	CanceledBy  *uuid.UUID    `db:"canceled_by" json:"canceled_by"`
	Type        string        `db:"type" json:"type" validate:"oneof=invoice creditnote"`
}

func (i *Invoice) Clean(now time.Time) {
	if i.Date.IsZero() {
		i.Date = now
	}
	if i.Type == "" {
		i.Type = InvoiceTypeInvoice
	}
}

// IsLive reports whether the invoice ends its chain and is a real invoice.
func (i *Invoice) IsLive() bool {
	return i.CanceledBy == nil && i.Type == InvoiceTypeInvoice
}

type InvoiceFilters struct {
	DateRange
	Status *InvoiceStatus
	Pagination
}

type PaimentMean struct {
	Base
	Code   string `db:"code" json:"code" validate:"required,max=10"`
	Text   string `db:"text" json:"text" validate:"required,max=50"`
	Enable bool   `db:"enable" json:"enable"`
}

// Paiment settles zero or more invoices.
type Paiment struct {
	Base
	Amount      decimal.Decimal `db:"amount" json:"amount" validate:"gte=0"`
	Currency    string          `db:"currency" json:"currency" validate:"required,max=10"`
	PaimentMode string          `db:"paiment_mode" json:"paiment_mode" validate:"required,max=10"`
	Date        time.Time       `db:"date" json:"date" validate:"required"`
	InvoiceIDs  []uuid.UUID     `db:"-" json:"invoices"`
}
