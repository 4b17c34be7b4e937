package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnatomicalRegions is the closed checklist of skeleton regions an
// examination can annotate. D and G suffixes are right and left.
var AnatomicalRegions = []string{
	// Head
	"OsTempD", "SphenoideD", "OsParietalD", "OsFrontal", "OsZygomatiqueD",
	"MaxilaireSup", "OsNez", "Mandible", "OsZygomatiqueG", "OsTempG",
	"SphenoideG", "OsParietalG", "Crane", "AtmD", "AtmG",
	// Right arm
	"EpauleD", "ClaviculeD", "OmoplateD", "HumerusD", "BrasD", "CoudeD",
	"CubitusD", "RadiusD", "PoignetD", "PisiformeD", "PyramidalD", "OsCrochuD",
	"SemiLunaireD", "GrandOsD", "ScaphoideD", "TrapezoideD", "TrapezeD",
	"Metacarpe5D", "P1Seg5D", "P2Seg5D", "P3Seg5D", "Metacarpe4D", "P1Seg4D",
	"P2Seg4D", "P3Seg4D", "Metacarpe3D", "P1Seg3D", "P2Seg3D", "P3Seg3D",
	"Metacarpe2D", "P1Seg2D", "P2Seg2D", "P3Seg2D", "Metacarpe1D", "P1PouceD",
	"P3PouceD", "MainD",
	// Ribs and sternum
	"Cote1D", "Cote2D", "Cote3D", "Cote4D", "Cote5D", "Cote6D", "Cote7D",
	"Cote8D", "Cote9D", "Cote10D", "Cote11D", "Cote12D", "Cote1G", "Cote2G",
	"Cote3G", "Cote4G", "Cote5G", "Cote6G", "Cote7G", "Cote8G", "Cote9G",
	"Cote10G", "Cote11G", "Cote12G", "Manubrium", "CorpsSternal", "GrilCostalD",
	"GrilCostalG", "Sternum",
	// Left arm
	"ClaviculeG", "OmoplateG", "HumerusG", "CubitusG", "RadiusG", "BrasG",
	"EpauleG", "CoudeG", "PoignetG", "PisiformeG", "PyramidalG", "OsCrochuG",
	"SemiLunaireG", "GrandOsG", "ScaphoideG", "TrapezoideG", "TrapezeG",
	"Metacarpe5G", "P1Seg5G", "P2Seg5G", "P3Seg5G", "Metacarpe4G", "P1Seg4G",
	"P2Seg4G", "P3Seg4G", "Metacarpe3G", "P1Seg3G", "P2Seg3G", "P3Seg3G",
	"Metacarpe2G", "P1Seg2G", "P2Seg2G", "P3Seg2G", "Metacarpe1G", "P1PouceG",
	"P3PouceG", "MainG",
	// Spine
	"Cervicales", "Thoraciques", "Lombaires", "C1", "C2", "C3", "C4", "C5",
	"C6", "C7", "Th1", "Th2", "Th3", "Th4", "Th5", "Th6", "Th7", "Th8", "Th9",
	"Th10", "Th11", "Th12", "L1", "L2", "L3", "L4", "L5",
	// Pelvis
	"Sacrum", "IlionD", "IschionD", "OsPubienD", "Coccyx", "IlioinG",
	"OsPubienG", "IschionG", "Bassin", "HancheD", "HancheG", "SacroIliaqueD",
	"SacroIliaqueG",
	// Right leg
	"FemurD", "PatellaD", "FibulaD", "TibiaD", "TalusD", "CalcuneusD",
	"OsCuboideD", "OsNaviculaireD", "JambeD", "GenouD", "ChevilleD",
	"Cuneiforme1D", "Cuneiforme2D", "Cuneiforme3D", "Metatarsien1D",
	"Metatarsien2D", "Metatarsien3D", "Metatarsien4D", "Metatarsien5D",
	"Phalange1D", "Phalange2D", "Phalange3D", "Phalange4D", "Phalange5D",
	"Phalangine2D", "Phalangine3D", "Phalangine4D", "Phalangine5D",
	"Phalangette1D", "Phalangette2D", "Phalangette3D", "Phalangette4D",
	"Phalangette5D", "PiedD",
	// Left leg
	"FemurG", "PatellaG", "FibulaG", "TibiaG", "TalusG", "CalcuneusG",
	"OsCuboideG", "OsNaviculaireG", "JambeG", "GenouG", "ChevilleG",
	"Cuneiforme1G", "Cuneiforme2G", "Cuneiforme3G", "Metatarsien1G",
	"Metatarsien2G", "Metatarsien3G", "Metatarsien4G", "Metatarsien5G",
	"Phalange1G", "Phalange2G", "Phalange3G", "Phalange4G", "Phalange5G",
	"Phalangine2G", "Phalangine3G", "Phalangine4G", "Phalangine5G",
	"Phalangette1G", "Phalangette2G", "Phalangette3G", "Phalangette4G",
	"Phalangette5G", "PiedG",
}

var anatomicalRegionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(AnatomicalRegions))
	for _, r := range AnatomicalRegions {
		m[r] = struct{}{}
	}
	return m
}()

// IsAnatomicalRegion reports whether name belongs to the checklist.
func IsAnatomicalRegion(name string) bool {
	_, ok := anatomicalRegionSet[name]
	return ok
}

// AnatomicalNotes maps a region of the checklist to free text. It is stored
// as a single JSONB column.
type AnatomicalNotes map[string]string

// Get returns the note for region, empty when absent.
func (n AnatomicalNotes) Get(region string) string {
	return n[region]
}

// UnknownRegions returns the keys that are not part of the checklist.
func (n AnatomicalNotes) UnknownRegions() []string {
	var unknown []string
	for k := range n {
		if !IsAnatomicalRegion(k) {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

func (n AnatomicalNotes) Value() (driver.Value, error) {
	if n == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(n)
}

func (n *AnatomicalNotes) Scan(value interface{}) error {
	if value == nil {
		*n = AnatomicalNotes{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type for anatomical notes: %T", value)
	}
	m := AnatomicalNotes{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

type Examination struct {
	Base
	PatientID          uuid.UUID         `db:"patient_id" json:"patient" validate:"required"`
	TherapeutID        *uuid.UUID        `db:"therapeut_id" json:"therapeut"`
	Anatomy            AnatomicalNotes   `db:"anatomy" json:"anatomy" validate:"anatomy"`
	Reason             string            `db:"reason" json:"reason"`
	ReasonDescription  string            `db:"reason_description" json:"reason_description"`
	ORL                string            `db:"orl" json:"orl"`
	Visceral           string            `db:"visceral" json:"visceral"`
	Pulmo              string            `db:"pulmo" json:"pulmo"`
	UroGyneco          string            `db:"uro_gyneco" json:"uro_gyneco"`
	Periphery          string            `db:"periphery" json:"periphery"`
	GeneralState       string            `db:"general_state" json:"general_state"`
	MedicalExamination string            `db:"medical_examination" json:"medical_examination"`
	Diagnosis          string            `db:"diagnosis" json:"diagnosis"`
	Treatments         string            `db:"treatments" json:"treatments"`
	Conclusion         string            `db:"conclusion" json:"conclusion"`
	Date               time.Time         `db:"date" json:"date" validate:"required"`
	Status             ExaminationStatus `db:"status" json:"status" validate:"enum"`
	StatusReason       *string           `db:"status_reason" json:"status_reason"`
	Type               ExaminationType   `db:"type" json:"type" validate:"enum"`
}

type ExaminationComment struct {
	Base
	ExaminationID uuid.UUID  `db:"examination_id" json:"examination" validate:"required"`
	UserID        *uuid.UUID `db:"user_id" json:"user"`
	Comment       string     `db:"comment" json:"comment" validate:"required"`
	Date          *time.Time `db:"date" json:"date"`
}

func (c *ExaminationComment) Clean(now time.Time) {
	if c.Date == nil {
		c.Date = &now
	}
}

// InvoiceView is the derived invoicing state of an examination.
type InvoiceView struct {
	Number       string     `json:"number,omitempty"`
	LastInvoice  *Invoice   `json:"last_invoice"`
	InvoicesList []*Invoice `json:"invoices_list"`
}
