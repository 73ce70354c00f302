package identity

import "errors"

// Store-level uniqueness failures, translated by the service into field errors.
var (
	ErrDuplicateDocument      = errors.New("document number already registered")
	ErrDuplicateNameSpecialty = errors.New("doctor with the same name and specialty already registered")
)

const (
	msgDuplicatePatientDocument = "a patient with this document number already exists"
	msgDuplicateDoctorDocument  = "a doctor with this document number already exists"
	msgDuplicateNameSpecialty   = "a doctor with the same first name, last name and specialty already exists"
)
