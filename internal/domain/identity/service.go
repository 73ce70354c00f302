package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/platform/db"
	"github.com/ehr/frontdesk/internal/platform/validation"
)

// Service registers and maintains patients and doctors. Uniqueness is checked
// before writing and enforced again by the store's unique indexes; both paths
// produce the same field errors.
type Service struct {
	patients    PatientRepository
	doctors     DoctorRepository
	phoneRegion string
	now         func() time.Time
}

func NewService(patients PatientRepository, doctors DoctorRepository, phoneRegion string) *Service {
	if phoneRegion == "" {
		phoneRegion = "US"
	}
	return &Service{patients: patients, doctors: doctors, phoneRegion: phoneRegion, now: time.Now}
}

// normalizePhone replaces *phone with its E.164 form or records a field error.
func (s *Service) normalizePhone(phone **string, errs *validation.Errors) {
	if *phone == nil || errs.Has("phone") {
		return
	}
	normalized, err := validation.NormalizePhone(**phone, s.phoneRegion)
	if err != nil {
		errs.Add("phone", "must be a valid phone number")
		return
	}
	*phone = &normalized
}

// -- Patient --

func (s *Service) validatePatient(ctx context.Context, d *PatientDraft, excludeID uuid.UUID) (validation.Errors, error) {
	d.normalize()
	errs := validation.Struct(d)
	switch {
	case d.BirthDate.IsZero():
		errs.Add("birth_date", "is required")
	case d.BirthDate.After(s.now()):
		errs.Add("birth_date", "must not be in the future")
	}
	s.normalizePhone(&d.Phone, &errs)

	if d.DocumentNumber != "" && !errs.Has("document_number") {
		taken, err := s.patients.DocumentTaken(ctx, d.DocumentNumber, excludeID)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("document_number", msgDuplicatePatientDocument)
		}
	}
	return errs, nil
}

func patientConflict(err error) error {
	if errors.Is(err, ErrDuplicateDocument) {
		return validation.Errors{{Field: "document_number", Message: msgDuplicatePatientDocument}}
	}
	return err
}

// RegisterPatient creates an active patient.
func (s *Service) RegisterPatient(ctx context.Context, d *PatientDraft) (*Patient, error) {
	errs, err := s.validatePatient(ctx, d, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}

	p := &Patient{
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		DocumentType:   d.DocumentType,
		DocumentNumber: d.DocumentNumber,
		BirthDate:      d.BirthDate.Time,
		Phone:          d.Phone,
		Email:          d.Email,
		Active:         true,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, patientConflict(err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient replaces the editable fields of patient id. The write only
// succeeds if the stored version still equals d.VersionID (or the version
// read here when d.VersionID is zero).
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, d *PatientDraft) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	errs, err := s.validatePatient(ctx, d, id)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if d.VersionID > 0 {
		p.VersionID = d.VersionID
	}
	p.FirstName = d.FirstName
	p.LastName = d.LastName
	p.DocumentType = d.DocumentType
	p.DocumentNumber = d.DocumentNumber
	p.BirthDate = d.BirthDate.Time
	p.Phone = d.Phone
	p.Email = d.Email

	if err := s.patients.Update(ctx, p); err != nil {
		if errors.Is(err, db.ErrStaleWrite) {
			if _, gerr := s.patients.GetByID(ctx, id); errors.Is(gerr, db.ErrNotFound) {
				return nil, gerr
			}
		}
		return nil, patientConflict(err)
	}
	return p, nil
}

// TogglePatientActive flips the active flag and returns the new state.
func (s *Service) TogglePatientActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.patients.ToggleActive(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, active bool, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, active, limit, offset)
}

// -- Doctor --

func (s *Service) validateDoctor(ctx context.Context, d *DoctorDraft, excludeID uuid.UUID) (validation.Errors, error) {
	d.normalize()
	errs := validation.Struct(d)
	s.normalizePhone(&d.Phone, &errs)

	if d.DocumentNumber != "" && !errs.Has("document_number") {
		taken, err := s.doctors.DocumentTaken(ctx, d.DocumentNumber, excludeID)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("document_number", msgDuplicateDoctorDocument)
		}
	}

	if d.FirstName != "" && d.LastName != "" && d.Specialty != "" &&
		!errs.Has("first_name") && !errs.Has("last_name") && !errs.Has("specialty") {
		taken, err := s.doctors.NameSpecialtyTaken(ctx, d.FirstName, d.LastName, d.Specialty, excludeID)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("first_name", msgDuplicateNameSpecialty)
		}
	}
	return errs, nil
}

func doctorConflict(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateDocument):
		return validation.Errors{{Field: "document_number", Message: msgDuplicateDoctorDocument}}
	case errors.Is(err, ErrDuplicateNameSpecialty):
		return validation.Errors{{Field: "first_name", Message: msgDuplicateNameSpecialty}}
	}
	return err
}

// RegisterDoctor creates an active doctor.
func (s *Service) RegisterDoctor(ctx context.Context, d *DoctorDraft) (*Doctor, error) {
	errs, err := s.validateDoctor(ctx, d, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}

	doc := &Doctor{
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		DocumentType:   d.DocumentType,
		DocumentNumber: d.DocumentNumber,
		Specialty:      d.Specialty,
		Phone:          d.Phone,
		Email:          d.Email,
		Active:         true,
	}
	if err := s.doctors.Create(ctx, doc); err != nil {
		return nil, doctorConflict(err)
	}
	return doc, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// UpdateDoctor mirrors UpdatePatient, re-checking both doctor uniqueness
// rules against every other doctor.
func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, d *DoctorDraft) (*Doctor, error) {
	doc, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	errs, err := s.validateDoctor(ctx, d, id)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if d.VersionID > 0 {
		doc.VersionID = d.VersionID
	}
	doc.FirstName = d.FirstName
	doc.LastName = d.LastName
	doc.DocumentType = d.DocumentType
	doc.DocumentNumber = d.DocumentNumber
	doc.Specialty = d.Specialty
	doc.Phone = d.Phone
	doc.Email = d.Email

	if err := s.doctors.Update(ctx, doc); err != nil {
		if errors.Is(err, db.ErrStaleWrite) {
			if _, gerr := s.doctors.GetByID(ctx, id); errors.Is(gerr, db.ErrNotFound) {
				return nil, gerr
			}
		}
		return nil, doctorConflict(err)
	}
	return doc, nil
}

func (s *Service) ToggleDoctorActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.doctors.ToggleActive(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, active bool, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, active, limit, offset)
}
