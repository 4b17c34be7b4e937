package invoice

import (
	"time"

	"github.com/jwalitptl/osteo-api/internal/model"
)

// snapshot copies into inv everything an invoice must keep once issued:
// the office letterhead, the practitioner's identifiers and the patient's
// address. Values already set on inv by the caller win for the fields a
// practitioner may edit (amount, currency, location, names).
func snapshot(inv *model.Invoice, office *model.OfficeSettings, ts *model.TherapeutSettings, patient *model.Patient, exam *model.Examination) {
	inv.Icon = office.Icon
	inv.Header = office.InvoiceOfficeHeader
	inv.ContentInvoice = office.InvoiceContent
	inv.Footer = office.InvoiceFooter
	inv.OfficeSiret = office.OfficeSiret
	inv.OfficeAddressStreet = office.OfficeAddressStreet
	inv.OfficeAddressComplement = office.OfficeAddressComplement
	inv.OfficeAddressZipcode = office.OfficeAddressZipcode
	inv.OfficeAddressCity = office.OfficeAddressCity
	inv.OfficePhone = office.OfficePhone
	if inv.Currency == "" {
		inv.Currency = office.Currency
	}
	if inv.Amount.IsZero() && office.Amount.Valid {
		inv.Amount = office.Amount.Decimal
	}
	if inv.Location == "" {
		inv.Location = office.OfficeAddressCity
	}

	inv.NumDiplome = ts.NumDiplome
	inv.CodeAPE = ts.CodeAPE
	inv.Adeli = ts.Adeli
	inv.Quality = ts.Quality
	if ts.Siret != nil {
		inv.OfficeSiret = *ts.Siret
	}
	if ts.InvoiceFooter != nil {
		inv.Footer = *ts.InvoiceFooter
	}
	userID := ts.UserID
	inv.TherapeutID = &userID

	inv.NumSS = patient.NumSS
	inv.NumMut = patient.NumMut
	inv.PatientFamilyName = patient.FamilyName
	inv.PatientOriginalName = patient.OriginalName
	inv.PatientFirstName = patient.FirstName
	inv.PatientAddressStreet = patient.AddressStreet
	inv.PatientAddressComplement = patient.AddressComplement
	inv.PatientAddressZipcode = patient.AddressZipcode
	inv.PatientAddressCity = patient.AddressCity

	date := exam.Date
	inv.DateExamination = &date
}

// creditNote builds the credit note cancelling original. It repeats the
// original's content under a new number.
func creditNote(original *model.Invoice) *model.Invoice {
	cn := *original
	cn.Base = model.Base{}
	cn.Date = time.Time{}
	cn.Type = model.InvoiceTypeCreditNote
	cn.Status = model.InvoiceStatusInvoicedPaid
	cn.CanceledBy = nil
	cn.Number = ""
	return &cn
}
