package model

// Stored codes. Values are persisted and must never be renumbered.

type ExaminationType int16

const (
	ExaminationTypeEmpty      ExaminationType = 0
	ExaminationTypeNormal     ExaminationType = 1
	ExaminationTypeContinuing ExaminationType = 2
	ExaminationTypeReturn     ExaminationType = 3
	ExaminationTypeEmergency  ExaminationType = 4
)

var examinationTypeLabels = map[ExaminationType]string{
	ExaminationTypeEmpty:      "",
	ExaminationTypeNormal:     "Normal examination",
	ExaminationTypeContinuing: "Continuing examination",
	ExaminationTypeReturn:     "Return",
	ExaminationTypeEmergency:  "Emergency",
}

func (t ExaminationType) String() string { return examinationTypeLabels[t] }

// Valid reports whether t can be stored on an examination. EMPTY is reserved.
func (t ExaminationType) Valid() bool {
	return t >= ExaminationTypeNormal && t <= ExaminationTypeEmergency
}

type ExaminationStatus int16

const (
	ExaminationStatusInProgress         ExaminationStatus = 0
	ExaminationStatusWaitingForPaiement ExaminationStatus = 1
	ExaminationStatusInvoicedPaid       ExaminationStatus = 2
	ExaminationStatusNotInvoiced        ExaminationStatus = 3
)

var examinationStatusLabels = map[ExaminationStatus]string{
	ExaminationStatusInProgress:         "In progress",
	ExaminationStatusWaitingForPaiement: "Waiting for paiement",
	ExaminationStatusInvoicedPaid:       "Invoiced and paid",
	ExaminationStatusNotInvoiced:        "Not invoiced",
}

func (s ExaminationStatus) String() string { return examinationStatusLabels[s] }

func (s ExaminationStatus) Valid() bool {
	_, ok := examinationStatusLabels[s]
	return ok
}

type InvoiceStatus int16

const (
	InvoiceStatusDraft              InvoiceStatus = 0
	InvoiceStatusWaitingForPaiement InvoiceStatus = 1
	InvoiceStatusInvoicedPaid       InvoiceStatus = 2
	InvoiceStatusCanceled           InvoiceStatus = 3
)

var invoiceStatusLabels = map[InvoiceStatus]string{
	InvoiceStatusDraft:              "Draft",
	InvoiceStatusWaitingForPaiement: "Waiting for paiement",
	InvoiceStatusInvoicedPaid:       "Invoiced and paid",
	InvoiceStatusCanceled:           "Canceled",
}

func (s InvoiceStatus) String() string { return invoiceStatusLabels[s] }

func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceStatusLabels[s]
	return ok
}

// AttachmentType is the clinical category a document is filed under.
type AttachmentType int16

const (
	AttachmentTypeSurgical       AttachmentType = 0
	AttachmentTypeMedical        AttachmentType = 1
	AttachmentTypeFamilial       AttachmentType = 2
	AttachmentTypeTrauma         AttachmentType = 3
	AttachmentTypeMedicalReports AttachmentType = 4
)

var attachmentTypeLabels = map[AttachmentType]string{
	AttachmentTypeSurgical:       "Surgical",
	AttachmentTypeMedical:        "Medical",
	AttachmentTypeFamilial:       "Familial",
	AttachmentTypeTrauma:         "Trauma",
	AttachmentTypeMedicalReports: "Medical reports",
}

func (t AttachmentType) String() string { return attachmentTypeLabels[t] }

func (t AttachmentType) Valid() bool {
	_, ok := attachmentTypeLabels[t]
	return ok
}

type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

type Laterality string

const (
	LateralityLeft         Laterality = "L"
	LateralityAmbidextrous Laterality = "A"
	LateralityRight        Laterality = "R"
)

func (l Laterality) Valid() bool {
	return l == LateralityLeft || l == LateralityAmbidextrous || l == LateralityRight
}

// OfficeEventType codes are scoped by the event class that emits them.
type OfficeEventType int16

const (
	OfficeEventNewPatient            OfficeEventType = 1
	OfficeEventUpdatePatient         OfficeEventType = 2
	OfficeEventUpdateInvoiceSequence OfficeEventType = 1
)

// Event classes
const (
	OfficeEventClassPatient        = "Patient"
	OfficeEventClassOfficeSettings = "OfficeSettings"
)

func (t OfficeEventType) Valid() bool {
	return t > 0
}

// Invoice document kinds
const (
	InvoiceTypeInvoice    = "invoice"
	InvoiceTypeCreditNote = "creditnote"
)

// Enum is implemented by the closed code sets so validation can check
// membership with a single rule.
type Enum interface {
	Valid() bool
}
