package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ehr/frontdesk/internal/platform/db"
)

// Partial unique indexes declared in migrations/001_frontdesk.sql.
const (
	doctorSlotKey  = "appointment_doctor_slot_key"
	patientSlotKey = "appointment_patient_slot_key"
)

type appointmentRepoPG struct {
	q db.Querier
}

func NewAppointmentRepo(q db.Querier) AppointmentRepository {
	return &appointmentRepoPG{q: q}
}

const appointmentSelect = `SELECT a.id, a.patient_id, a.doctor_id, a.appointment_date, a.status, a.notes,
	a.email_sent, a.version_id, a.created_at, a.updated_at,
	p.first_name, p.last_name, p.document_number, p.email,
	d.first_name, d.last_name, d.specialty
	FROM appointment a
	JOIN patient p ON p.id = a.patient_id
	JOIN doctor d ON d.id = a.doctor_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var p PatientRef
	var d DoctorRef
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.Status, &a.Notes,
		&a.EmailSent, &a.VersionID, &a.CreatedAt, &a.UpdatedAt,
		&p.FirstName, &p.LastName, &p.DocumentNumber, &p.Email,
		&d.FirstName, &d.LastName, &d.Specialty)
	if err != nil {
		return nil, err
	}
	p.ID = a.PatientID
	d.ID = a.DoctorID
	a.AppointmentDate = a.AppointmentDate.UTC()
	a.Patient = &p
	a.Doctor = &d
	return &a, nil
}

func storeError(op string, err error) error {
	if name, ok := db.UniqueViolation(err); ok {
		switch name {
		case doctorSlotKey:
			return fmt.Errorf("%s: %w", op, ErrDoctorBooked)
		case patientSlotKey:
			return fmt.Errorf("%s: %w", op, ErrPatientBooked)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, appointment_date, status, notes, email_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version_id, created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.Status, a.Notes, a.EmailSent,
	).Scan(&a.VersionID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return storeError("insert appointment", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, appointmentSelect+` WHERE a.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("appointment %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.q.QueryRow(ctx, `
		UPDATE appointment SET
			patient_id = $3, doctor_id = $4, appointment_date = $5, notes = $6,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		a.ID, a.VersionID, a.PatientID, a.DoctorID, a.AppointmentDate, a.Notes,
	).Scan(&a.VersionID, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return fmt.Errorf("appointment %s: %w", a.ID, db.ErrStaleWrite)
	}
	if err != nil {
		return storeError("update appointment", err)
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := r.q.QueryRow(ctx, `
		UPDATE appointment SET status = $2, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version_id, updated_at`,
		a.ID, a.Status,
	).Scan(&a.VersionID, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return fmt.Errorf("appointment %s: %w", a.ID, db.ErrNotFound)
	}
	if err != nil {
		return storeError("update appointment status", err)
	}
	return nil
}

func (r *appointmentRepoPG) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE appointment SET email_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark appointment %s email sent: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, db.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	var where []string
	var args []interface{}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where = append(where, fmt.Sprintf("a.patient_id = $%d", len(args)))
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		where = append(where, fmt.Sprintf("a.doctor_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM appointment a`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, limit, offset)
	query := appointmentSelect + clause +
		fmt.Sprintf(" ORDER BY a.appointment_date DESC, a.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) DoctorBookedAt(ctx context.Context, doctorID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error) {
	return r.booked(ctx, "doctor_id", doctorID, at, excludeID)
}

func (r *appointmentRepoPG) PatientBookedAt(ctx context.Context, patientID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error) {
	return r.booked(ctx, "patient_id", patientID, at, excludeID)
}

// booked mirrors the predicate of the slot indexes. column is one of two
// fixed names, never caller input.
func (r *appointmentRepoPG) booked(ctx context.Context, column string, ownerID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointment
		WHERE `+column+` = $1 AND appointment_date = $2 AND status <> $3 AND id <> $4)`,
		ownerID, at, StatusCancelled, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check %s slot: %w", column, err)
	}
	return taken, nil
}

// -- Directory --

type directoryPG struct {
	q db.Querier
}

// NewDirectory looks patients and doctors up in the same store.
func NewDirectory(q db.Querier) Directory {
	return &directoryPG{q: q}
}

func (r *directoryPG) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("lookup patient %s: %w", id, err)
	}
	return ok, nil
}

func (r *directoryPG) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctor WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("lookup doctor %s: %w", id, err)
	}
	return ok, nil
}
