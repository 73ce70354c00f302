package identity

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository persists patients. GetByID and ToggleActive return an
// error wrapping db.ErrNotFound for unknown ids; Update returns one wrapping
// db.ErrStaleWrite when p.VersionID is not the stored version. Create and
// Update report unique-index violations as ErrDuplicateDocument.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	ToggleActive(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, active bool, limit, offset int) ([]*Patient, int, error)
	// DocumentTaken reports whether another patient (id != excludeID) holds
	// documentNumber, regardless of active state.
	DocumentTaken(ctx context.Context, documentNumber string, excludeID uuid.UUID) (bool, error)
}

// DoctorRepository persists doctors with the same contract as
// PatientRepository, plus the name/specialty uniqueness check
// (ErrDuplicateNameSpecialty).
type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	ToggleActive(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, active bool, limit, offset int) ([]*Doctor, int, error)
	DocumentTaken(ctx context.Context, documentNumber string, excludeID uuid.UUID) (bool, error)
	NameSpecialtyTaken(ctx context.Context, firstName, lastName, specialty string, excludeID uuid.UUID) (bool, error)
}
