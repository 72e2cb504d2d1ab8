// Package store holds the persistence layer: gorm models for stored signing
// credentials and the four signable document kinds, plus their repositories.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telecuidar/docsign/dochash"
	"github.com/telecuidar/docsign/render"
)

// StoredCertificate is an encrypted PKCS#12 credential registered by a
// professional. The container bytes and the optional quick-use passphrase are
// AES encrypted at rest, each with its own IV.
type StoredCertificate struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_cert_owner_thumbprint;not null"`
	Label   string

	SubjectDN  string `gorm:"not null"`
	IssuerDN   string `gorm:"not null"`
	Thumbprint string `gorm:"not null;uniqueIndex:idx_cert_owner_thumbprint"`
	HolderName string
	HolderCPF  string
	NotBefore  time.Time `gorm:"not null"`
	NotAfter   time.Time `gorm:"not null"`

	EncryptedPfx string `gorm:"type:text;not null"`
	PfxIV        string `gorm:"not null"`

	// QuickUse keeps the passphrase stored (encrypted) so signing does not
	// prompt for it. EncryptedPassword and PasswordIV are set iff QuickUse.
	QuickUse          bool
	EncryptedPassword string
	PasswordIV        string

	Active     bool `gorm:"not null;default:true"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *StoredCertificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SignedTriple is the immutable signing outcome embedded in every document
// kind. SignedAt doubles as the signed flag: nil means unsigned.
type SignedTriple struct {
	SignedPDF             string `gorm:"type:text"`
	DocumentHash          string `gorm:"size:64;index"`
	CertificateSubject    string
	CertificateThumbprint string
	SignedAt              *time.Time
}

func (s *SignedTriple) Signed() bool { return s.SignedAt != nil }

// Kind names a signable document table.
type Kind string

const (
	KindPrescription       Kind = "prescription"
	KindMedicalCertificate Kind = "medical_certificate"
	KindExamRequest        Kind = "exam_request"
	KindMedicalReport      Kind = "medical_report"
)

// Signable is what the signing workflow needs from a document: identity,
// ownership, the ordered hash input fields, printable content and somewhere
// to persist the signing outcome.
type Signable interface {
	Kind() Kind
	DocumentID() uuid.UUID
	Professional() uuid.UUID
	HashFields() []string
	RenderContent() render.Content
	Triple() *SignedTriple
	// ContentColumns names the editable columns an update rewrites, so that
	// clearing a field to its zero value persists too.
	ContentColumns() []string
}

// Prescription carries the medication text a professional prescribes.
type Prescription struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;index;not null"`
	PatientID      uuid.UUID `gorm:"type:uuid;index;not null"`
	Medications    string    `gorm:"type:text;not null"`
	CreatedAt      time.Time

	SignedTriple `gorm:"embedded"`
}

func (p *Prescription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Prescription) Kind() Kind { return KindPrescription }
func (p *Prescription) ContentColumns() []string { return []string{"medications"} }
func (p *Prescription) DocumentID() uuid.UUID { return p.ID }
func (p *Prescription) Professional() uuid.UUID { return p.ProfessionalID }
func (p *Prescription) Triple() *SignedTriple { return &p.SignedTriple }

func (p *Prescription) HashFields() []string {
	return []string{
		p.ID.String(),
		p.ProfessionalID.String(),
		p.PatientID.String(),
		p.Medications,
		dochash.FormatTime(p.CreatedAt),
	}
}

func (p *Prescription) RenderContent() render.Content {
	return render.Content{
		Title: "Receituario",
		Lines: append([]string{
			fmt.Sprintf("Documento: %s", p.ID),
			fmt.Sprintf("Paciente: %s", p.PatientID),
			"",
		}, splitLines(p.Medications)...),
	}
}

// MedicalCertificate attests an absence period.
type MedicalCertificate struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;index;not null"`
	PatientID      uuid.UUID `gorm:"type:uuid;index;not null"`
	Purpose        string    `gorm:"type:text;not null"`
	DaysOff        int       `gorm:"not null"`
	StartDate      time.Time `gorm:"not null"`
	CreatedAt      time.Time

	SignedTriple `gorm:"embedded"`
}

func (m *MedicalCertificate) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *MedicalCertificate) Kind() Kind { return KindMedicalCertificate }
func (m *MedicalCertificate) ContentColumns() []string {
	return []string{"purpose", "days_off", "start_date"}
}
func (m *MedicalCertificate) DocumentID() uuid.UUID { return m.ID }
func (m *MedicalCertificate) Professional() uuid.UUID { return m.ProfessionalID }
func (m *MedicalCertificate) Triple() *SignedTriple { return &m.SignedTriple }

func (m *MedicalCertificate) HashFields() []string {
	return []string{
		m.ID.String(),
		m.ProfessionalID.String(),
		m.PatientID.String(),
		m.Purpose,
		fmt.Sprintf("%d", m.DaysOff),
		dochash.FormatTime(m.StartDate),
		dochash.FormatTime(m.CreatedAt),
	}
}

func (m *MedicalCertificate) RenderContent() render.Content {
	return render.Content{
		Title: "Atestado Medico",
		Lines: append([]string{
			fmt.Sprintf("Documento: %s", m.ID),
			fmt.Sprintf("Paciente: %s", m.PatientID),
			fmt.Sprintf("Afastamento: %d dia(s) a partir de %s", m.DaysOff, m.StartDate.Format("02/01/2006")),
			"",
		}, splitLines(m.Purpose)...),
	}
}

// ExamRequest asks for laboratory or imaging exams.
type ExamRequest struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfessionalID     uuid.UUID `gorm:"type:uuid;index;not null"`
	PatientID          uuid.UUID `gorm:"type:uuid;index;not null"`
	Exams              string    `gorm:"type:text;not null"`
	ClinicalIndication string    `gorm:"type:text"`
	CreatedAt          time.Time

	SignedTriple `gorm:"embedded"`
}

func (e *ExamRequest) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *ExamRequest) Kind() Kind { return KindExamRequest }
func (e *ExamRequest) ContentColumns() []string { return []string{"exams", "clinical_indication"} }
func (e *ExamRequest) DocumentID() uuid.UUID { return e.ID }
func (e *ExamRequest) Professional() uuid.UUID { return e.ProfessionalID }
func (e *ExamRequest) Triple() *SignedTriple { return &e.SignedTriple }

func (e *ExamRequest) HashFields() []string {
	return []string{
		e.ID.String(),
		e.ProfessionalID.String(),
		e.PatientID.String(),
		e.Exams,
		e.ClinicalIndication,
		dochash.FormatTime(e.CreatedAt),
	}
}

func (e *ExamRequest) RenderContent() render.Content {
	lines := append([]string{
		fmt.Sprintf("Documento: %s", e.ID),
		fmt.Sprintf("Paciente: %s", e.PatientID),
		"",
	}, splitLines(e.Exams)...)
	if e.ClinicalIndication != "" {
		lines = append(lines, "", "Indicacao clinica:")
		lines = append(lines, splitLines(e.ClinicalIndication)...)
	}
	return render.Content{Title: "Solicitacao de Exames", Lines: lines}
}

// MedicalReport is a free-form report about a patient.
type MedicalReport struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;index;not null"`
	PatientID      uuid.UUID `gorm:"type:uuid;index;not null"`
	Title          string    `gorm:"not null"`
	Body           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time

	SignedTriple `gorm:"embedded"`
}

func (r *MedicalReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *MedicalReport) Kind() Kind { return KindMedicalReport }
func (r *MedicalReport) ContentColumns() []string { return []string{"title", "body"} }
func (r *MedicalReport) DocumentID() uuid.UUID { return r.ID }
func (r *MedicalReport) Professional() uuid.UUID { return r.ProfessionalID }
func (r *MedicalReport) Triple() *SignedTriple { return &r.SignedTriple }

func (r *MedicalReport) HashFields() []string {
	return []string{
		r.ID.String(),
		r.ProfessionalID.String(),
		r.PatientID.String(),
		r.Title,
		r.Body,
		dochash.FormatTime(r.CreatedAt),
	}
}

func (r *MedicalReport) RenderContent() render.Content {
	return render.Content{
		Title: r.Title,
		Lines: append([]string{
			fmt.Sprintf("Documento: %s", r.ID),
			fmt.Sprintf("Paciente: %s", r.PatientID),
			"",
		}, splitLines(r.Body)...),
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
