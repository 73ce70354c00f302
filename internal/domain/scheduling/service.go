package scheduling

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/platform/db"
	"github.com/ehr/frontdesk/internal/platform/telemetry"
	"github.com/ehr/frontdesk/internal/platform/validation"
)

// Outcome of a successful create.
type Outcome string

const (
	OutcomeCreated            Outcome = "created"
	OutcomeCreatedEmailFailed Outcome = "created_email_failed"
)

const (
	msgCreated            = "Appointment scheduled and confirmation email sent."
	msgCreatedEmailFailed = "Appointment scheduled, but the confirmation email could not be sent."
)

// CreateResult is returned for every persisted appointment. Rejections are
// returned as validation.Errors instead.
type CreateResult struct {
	Appointment *Appointment `json:"appointment"`
	Outcome     Outcome      `json:"outcome"`
	Message     string       `json:"-"`
}

// Service runs the appointment lifecycle: create with confirmation, edit,
// status change and listing.
type Service struct {
	appointments AppointmentRepository
	directory    Directory
	conflicts    *ConflictValidator
	notifier     Notifier
	metrics      *telemetry.Metrics
	logger       zerolog.Logger
}

func NewService(appts AppointmentRepository, dir Directory, notifier Notifier, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		appointments: appts,
		directory:    dir,
		conflicts:    NewConflictValidator(appts),
		notifier:     notifier,
		metrics:      metrics,
		logger:       logger.With().Str("component", "appointments").Logger(),
	}
}

type noopNotifier struct{}

func (noopNotifier) SendConfirmation(context.Context, *Appointment) bool { return false }

// slotConflict turns a store slot rejection into the validator's field error.
func slotConflict(err error) (validation.Errors, bool) {
	switch {
	case errors.Is(err, ErrDoctorBooked):
		return validation.Errors{{Field: "appointment_date", Message: msgDoctorConflict}}, true
	case errors.Is(err, ErrPatientBooked):
		return validation.Errors{{Field: "appointment_date", Message: msgPatientConflict}}, true
	}
	return nil, false
}

// validate checks required fields and references, then runs the conflict
// validator once the draft is complete.
func (s *Service) validate(ctx context.Context, d *AppointmentDraft, excludeID uuid.UUID) (validation.Errors, error) {
	d.normalize()
	errs := validation.Struct(d)

	if d.PatientID == uuid.Nil {
		errs.Add("patient_id", "is required")
	} else {
		ok, err := s.directory.PatientExists(ctx, d.PatientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			errs.Add("patient_id", msgUnknownPatient)
		}
	}

	if d.DoctorID == uuid.Nil {
		errs.Add("doctor_id", "is required")
	} else {
		ok, err := s.directory.DoctorExists(ctx, d.DoctorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			errs.Add("doctor_id", msgUnknownDoctor)
		}
	}

	if d.AppointmentDate.IsZero() {
		errs.Add("appointment_date", "is required")
	}
	if len(errs) > 0 {
		return errs, nil
	}

	return s.conflicts.Validate(ctx, Proposal{
		DoctorID:  d.DoctorID,
		PatientID: d.PatientID,
		At:        d.AppointmentDate,
		ExcludeID: excludeID,
	})
}

// Create books a Scheduled appointment and attempts the confirmation email.
// A failed email never undoes the booking.
func (s *Service) Create(ctx context.Context, d *AppointmentDraft) (*CreateResult, error) {
	errs, err := s.validate(ctx, d, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		s.metrics.ObserveAppointment("create", "rejected")
		return nil, errs
	}

	a := &Appointment{
		PatientID:       d.PatientID,
		DoctorID:        d.DoctorID,
		AppointmentDate: d.AppointmentDate,
		Status:          StatusScheduled,
		Notes:           d.Notes,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		if ve, ok := slotConflict(err); ok {
			s.metrics.ObserveAppointment("create", "rejected")
			return nil, ve
		}
		return nil, err
	}

	res := &CreateResult{Appointment: a, Outcome: OutcomeCreatedEmailFailed, Message: msgCreatedEmailFailed}
	defer func() { s.metrics.ObserveAppointment("create", string(res.Outcome)) }()

	full, err := s.appointments.GetByID(ctx, a.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("reload appointment for confirmation")
		return res, nil
	}
	res.Appointment = full

	if !s.notifier.SendConfirmation(ctx, full) {
		return res, nil
	}
	res.Outcome = OutcomeCreated
	res.Message = msgCreated

	// The send is verified; record it even if the request is being cancelled.
	if err := s.appointments.MarkEmailSent(context.WithoutCancel(ctx), full.ID); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", full.ID.String()).Msg("confirmation sent but email_sent flag not saved")
		return res, nil
	}
	full.EmailSent = true
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// Edit replaces patient, doctor, date and notes of appointment id. Status and
// email_sent are kept. The write is guarded by d.VersionID, or by the version
// read here when d.VersionID is zero.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, d *AppointmentDraft) (*Appointment, error) {
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	errs, err := s.validate(ctx, d, id)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		s.metrics.ObserveAppointment("edit", "rejected")
		return nil, errs
	}

	if d.VersionID > 0 {
		current.VersionID = d.VersionID
	}
	current.PatientID = d.PatientID
	current.DoctorID = d.DoctorID
	current.AppointmentDate = d.AppointmentDate
	current.Notes = d.Notes

	if err := s.appointments.Update(ctx, current); err != nil {
		if ve, ok := slotConflict(err); ok {
			s.metrics.ObserveAppointment("edit", "rejected")
			return nil, ve
		}
		if errors.Is(err, db.ErrStaleWrite) {
			s.metrics.ObserveAppointment("edit", "stale")
			if _, gerr := s.appointments.GetByID(ctx, id); errors.Is(gerr, db.ErrNotFound) {
				return nil, gerr
			}
		}
		return nil, err
	}
	s.metrics.ObserveAppointment("edit", "updated")

	updated, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return current, nil
	}
	return updated, nil
}

// ChangeStatus overwrites the status of appointment id. Any non-empty status
// is reachable from any other; the store still refuses to revive a cancelled
// appointment into an occupied slot.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, ErrStatusRequired
	}
	if utf8.RuneCountInString(status) > MaxStatusLength {
		return nil, validation.Errors{{Field: "status", Message: "must be at most 20 characters"}}
	}

	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	if err := s.appointments.UpdateStatus(ctx, a); err != nil {
		if ve, ok := slotConflict(err); ok {
			s.metrics.ObserveAppointment("change_status", "rejected")
			return nil, ve
		}
		return nil, err
	}
	s.metrics.ObserveAppointment("change_status", "updated")
	return a, nil
}

// List returns appointments newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, filter, limit, offset)
}
