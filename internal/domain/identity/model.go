package identity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Patient is a person who can hold appointments.
type Patient struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	BirthDate      time.Time `json:"birth_date"`
	Phone          *string   `json:"phone,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Active         bool      `json:"active"`
	VersionID      int       `json:"version_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FullName is derived on read and never stored.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

func (p Patient) MarshalJSON() ([]byte, error) {
	type alias Patient
	return json.Marshal(struct {
		alias
		FullName  string `json:"full_name"`
		BirthDate string `json:"birth_date"`
	}{alias(p), p.FullName(), p.BirthDate.Format(dateLayout)})
}

// Doctor is a practitioner appointments can be booked with.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	Specialty      string    `json:"specialty"`
	Phone          *string   `json:"phone,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Active         bool      `json:"active"`
	VersionID      int       `json:"version_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

func (d Doctor) MarshalJSON() ([]byte, error) {
	type alias Doctor
	return json.Marshal(struct {
		alias
		FullName string `json:"full_name"`
	}{alias(d), d.FullName()})
}

// Date accepts either "2006-01-02" or an RFC 3339 timestamp and keeps only
// the calendar date.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return nil
}

// PatientDraft is the editable part of a patient.
type PatientDraft struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	DocumentType   string  `json:"document_type" validate:"required,max=20"`
	DocumentNumber string  `json:"document_number" validate:"required,max=20"`
	BirthDate      Date    `json:"birth_date"`
	Phone          *string `json:"phone" validate:"omitempty,max=20"`
	Email          *string `json:"email" validate:"omitempty,email,max=100"`
	// VersionID is the version the caller last read; zero means "whatever is
	// current".
	VersionID int `json:"version_id,omitempty"`
}

func (d *PatientDraft) normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.DocumentType = strings.TrimSpace(d.DocumentType)
	d.DocumentNumber = strings.TrimSpace(d.DocumentNumber)
	d.Phone = trimOptional(d.Phone)
	d.Email = trimOptional(d.Email)
}

// DoctorDraft is the editable part of a doctor.
type DoctorDraft struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	DocumentType   string  `json:"document_type" validate:"required,max=20"`
	DocumentNumber string  `json:"document_number" validate:"required,max=20"`
	Specialty      string  `json:"specialty" validate:"required,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=20"`
	Email          *string `json:"email" validate:"omitempty,email,max=100"`
	VersionID      int     `json:"version_id,omitempty"`
}

func (d *DoctorDraft) normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.DocumentType = strings.TrimSpace(d.DocumentType)
	d.DocumentNumber = strings.TrimSpace(d.DocumentNumber)
	d.Specialty = strings.TrimSpace(d.Specialty)
	d.Phone = trimOptional(d.Phone)
	d.Email = trimOptional(d.Email)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
