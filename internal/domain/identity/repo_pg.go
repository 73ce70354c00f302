package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ehr/frontdesk/internal/platform/db"
)

// Unique indexes declared in migrations/001_frontdesk.sql.
const (
	patientDocumentKey  = "patient_document_number_key"
	doctorDocumentKey   = "doctor_document_number_key"
	doctorNameSpecialty = "doctor_name_specialty_key"
)

// -- Patient Repository --

type patientRepoPG struct {
	q db.Querier
}

func NewPatientRepo(q db.Querier) PatientRepository {
	return &patientRepoPG{q: q}
}

const patientCols = `id, first_name, last_name, document_type, document_number, birth_date,
	phone, email, active, version_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DocumentType, &p.DocumentNumber, &p.BirthDate,
		&p.Phone, &p.Email, &p.Active, &p.VersionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func patientStoreError(op string, err error) error {
	if name, ok := db.UniqueViolation(err); ok && name == patientDocumentKey {
		return fmt.Errorf("%s: %w", op, ErrDuplicateDocument)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO patient (id, first_name, last_name, document_type, document_number, birth_date, phone, email, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING version_id, created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DocumentType, p.DocumentNumber, p.BirthDate, p.Phone, p.Email, p.Active,
	).Scan(&p.VersionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return patientStoreError("insert patient", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.q.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("patient %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.q.QueryRow(ctx, `
		UPDATE patient SET
			first_name = $3, last_name = $4, document_type = $5, document_number = $6,
			birth_date = $7, phone = $8, email = $9,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		p.ID, p.VersionID, p.FirstName, p.LastName, p.DocumentType, p.DocumentNumber,
		p.BirthDate, p.Phone, p.Email,
	).Scan(&p.VersionID, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return fmt.Errorf("patient %s: %w", p.ID, db.ErrStaleWrite)
	}
	if err != nil {
		return patientStoreError("update patient", err)
	}
	return nil
}

func (r *patientRepoPG) ToggleActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.q.QueryRow(ctx, `
		UPDATE patient SET active = NOT active, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING active`, id).Scan(&active)
	if db.IsNoRows(err) {
		return false, fmt.Errorf("patient %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("toggle patient %s: %w", id, err)
	}
	return active, nil
}

func (r *patientRepoPG) List(ctx context.Context, active bool, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE active = $1`, active).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT `+patientCols+` FROM patient WHERE active = $1
		ORDER BY last_name, first_name, id LIMIT $2 OFFSET $3`, active, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) DocumentTaken(ctx context.Context, documentNumber string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE document_number = $1 AND id <> $2)`,
		documentNumber, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check patient document: %w", err)
	}
	return taken, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	q db.Querier
}

func NewDoctorRepo(q db.Querier) DoctorRepository {
	return &doctorRepoPG{q: q}
}

const doctorCols = `id, first_name, last_name, document_type, document_number, specialty,
	phone, email, active, version_id, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.DocumentType, &d.DocumentNumber, &d.Specialty,
		&d.Phone, &d.Email, &d.Active, &d.VersionID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func doctorStoreError(op string, err error) error {
	if name, ok := db.UniqueViolation(err); ok {
		switch name {
		case doctorDocumentKey:
			return fmt.Errorf("%s: %w", op, ErrDuplicateDocument)
		case doctorNameSpecialty:
			return fmt.Errorf("%s: %w", op, ErrDuplicateNameSpecialty)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO doctor (id, first_name, last_name, document_type, document_number, specialty, phone, email, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING version_id, created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.DocumentType, d.DocumentNumber, d.Specialty, d.Phone, d.Email, d.Active,
	).Scan(&d.VersionID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return doctorStoreError("insert doctor", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.q.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("doctor %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.q.QueryRow(ctx, `
		UPDATE doctor SET
			first_name = $3, last_name = $4, document_type = $5, document_number = $6,
			specialty = $7, phone = $8, email = $9,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		d.ID, d.VersionID, d.FirstName, d.LastName, d.DocumentType, d.DocumentNumber,
		d.Specialty, d.Phone, d.Email,
	).Scan(&d.VersionID, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return fmt.Errorf("doctor %s: %w", d.ID, db.ErrStaleWrite)
	}
	if err != nil {
		return doctorStoreError("update doctor", err)
	}
	return nil
}

func (r *doctorRepoPG) ToggleActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.q.QueryRow(ctx, `
		UPDATE doctor SET active = NOT active, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING active`, id).Scan(&active)
	if db.IsNoRows(err) {
		return false, fmt.Errorf("doctor %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("toggle doctor %s: %w", id, err)
	}
	return active, nil
}

func (r *doctorRepoPG) List(ctx context.Context, active bool, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM doctor WHERE active = $1`, active).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT `+doctorCols+` FROM doctor WHERE active = $1
		ORDER BY last_name, first_name, id LIMIT $2 OFFSET $3`, active, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *doctorRepoPG) DocumentTaken(ctx context.Context, documentNumber string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctor WHERE document_number = $1 AND id <> $2)`,
		documentNumber, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check doctor document: %w", err)
	}
	return taken, nil
}

func (r *doctorRepoPG) NameSpecialtyTaken(ctx context.Context, firstName, lastName, specialty string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor
			WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2)
			  AND lower(specialty) = lower($3) AND id <> $4
		)`, firstName, lastName, specialty, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check doctor name and specialty: %w", err)
	}
	return taken, nil
}
