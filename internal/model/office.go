package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfficeSettingsID is the identifier of the single office settings row.
const OfficeSettingsID = 1

// OfficeEvent is an entry of the office activity journal.
type OfficeEvent struct {
	Base
	Date      *time.Time      `db:"date" json:"date"`
	Clazz     string          `db:"clazz" json:"clazz"`
	Type      OfficeEventType `db:"type" json:"type" validate:"enum"`
	Comment   string          `db:"comment" json:"comment"`
	Reference *int64          `db:"reference" json:"reference"`
	EntityID  *uuid.UUID      `db:"entity_id" json:"entity_id"`
	UserID    uuid.UUID       `db:"user_id" json:"user" validate:"required"`
}

func (e *OfficeEvent) Clean(now time.Time) {
	if e.Date == nil {
		e.Date = &now
	}
}

type OfficeEventFilters struct {
	Clazz  string     `form:"clazz"`
	UserID *uuid.UUID `form:"-"`
	Pagination
}

type OfficeSettings struct {
	ID                      int                 `db:"id" json:"id"`
	Icon                    string              `db:"icon" json:"icon"`
	InvoiceOfficeHeader     string              `db:"invoice_office_header" json:"invoice_office_header" validate:"max=500"`
	OfficeAddressStreet     string              `db:"office_address_street" json:"office_address_street" validate:"max=500"`
	OfficeAddressComplement string              `db:"office_address_complement" json:"office_address_complement" validate:"max=500"`
	OfficeAddressZipcode    string              `db:"office_address_zipcode" json:"office_address_zipcode" validate:"max=200"`
	OfficeAddressCity       string              `db:"office_address_city" json:"office_address_city" validate:"max=200"`
	OfficePhone             string              `db:"office_phone" json:"office_phone" validate:"max=200"`
	OfficeSiret             string              `db:"office_siret" json:"office_siret" validate:"required,max=20"`
	Amount                  decimal.NullDecimal `db:"amount" json:"amount"`
	Currency                string              `db:"currency" json:"currency" validate:"required,max=10"`
	InvoiceContent          string              `db:"invoice_content" json:"invoice_content"`
	InvoiceFooter           string              `db:"invoice_footer" json:"invoice_footer"`
	InvoiceStartSequence    string              `db:"invoice_start_sequence" json:"invoice_start_sequence"`
	UpdatedAt               time.Time           `db:"updated_at" json:"updated_at"`
}

// TherapeutSettings extends a user with the data printed on invoices.
type TherapeutSettings struct {
	Base
	UserID            uuid.UUID `db:"user_id" json:"user" validate:"required"`
	NumDiplome        string    `db:"num_diplome" json:"numDiplome"`
	CodeAPE           string    `db:"code_ape" json:"codeAPE"`
	Adeli             string    `db:"adeli" json:"adeli"`
	Quality           string    `db:"quality" json:"quality"`
	Siret             *string   `db:"siret" json:"siret" validate:"omitempty,max=20"`
	InvoiceFooter     *string   `db:"invoice_footer" json:"invoice_footer"`
	StatsEnabled      bool      `db:"stats_enabled" json:"stats_enabled"`
	LastEventsEnabled bool      `db:"last_events_enabled" json:"last_events_enabled"`
}

// Normalize stores empty optional strings as NULL.
func (s *TherapeutSettings) Normalize() {
	if s.Siret != nil && *s.Siret == "" {
		s.Siret = nil
	}
	if s.InvoiceFooter != nil && *s.InvoiceFooter == "" {
		s.InvoiceFooter = nil
	}
}

// DefaultTherapeutSettings returns the settings of a user that never saved any.
func DefaultTherapeutSettings(userID uuid.UUID) *TherapeutSettings {
	return &TherapeutSettings{
		UserID:            userID,
		StatsEnabled:      true,
		LastEventsEnabled: true,
	}
}
