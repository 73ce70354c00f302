package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/platform/notification"
	"github.com/ehr/frontdesk/internal/platform/telemetry"
)

// Notifier delivers the booking confirmation. It reports false for any
// failure and never returns an error.
type Notifier interface {
	SendConfirmation(ctx context.Context, a *Appointment) bool
}

// Email results recorded in metrics.
const (
	emailSent    = "sent"
	emailFailed  = "failed"
	emailSkipped = "skipped"
)

const (
	confirmationDateLayout = "Monday, 02 January 2006"
	confirmationTimeLayout = "15:04"
)

// EmailNotifier renders the confirmation template and sends it through a
// notification manager, bounded by a timeout covering render and send.
// Dates are stored in UTC and shown in the hospital's location.
type EmailNotifier struct {
	manager  *notification.NotificationManager
	hospital string
	location *time.Location
	timeout  time.Duration
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

// NewEmailNotifier builds the notifier. A nil loc means time.Local.
func NewEmailNotifier(mgr *notification.NotificationManager, hospital string, loc *time.Location, timeout time.Duration, metrics *telemetry.Metrics, logger zerolog.Logger) *EmailNotifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return &EmailNotifier{
		manager:  mgr,
		hospital: hospital,
		location: loc,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger.With().Str("component", "email-notifier").Logger(),
	}
}

func (n *EmailNotifier) SendConfirmation(ctx context.Context, a *Appointment) (ok bool) {
	if a == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().Interface("panic", r).Str("appointment_id", a.ID.String()).Msg("confirmation email panicked")
			n.metrics.ObserveEmail(emailFailed)
			ok = false
		}
	}()

	if a.Patient == nil || a.Doctor == nil {
		n.metrics.ObserveEmail(emailSkipped)
		return false
	}
	if a.Patient.Email == nil || *a.Patient.Email == "" {
		n.logger.Info().Str("appointment_id", a.ID.String()).Msg("patient has no email on file, confirmation not sent")
		n.metrics.ObserveEmail(emailSkipped)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	at := a.AppointmentDate.In(n.location)
	data := map[string]string{
		"patient_first_name": a.Patient.FirstName,
		"doctor_name":        a.Doctor.FullName(),
		"specialty":          a.Doctor.Specialty,
		"date":               at.Format(confirmationDateLayout),
		"time":               at.Format(confirmationTimeLayout),
		"hospital":           n.hospital,
	}
	to := notification.Recipient{Address: *a.Patient.Email, Name: a.Patient.FullName()}
	meta := map[string]string{"appointment_id": a.ID.String()}

	if _, err := n.manager.SendTemplateTo(ctx, notification.TemplateAppointmentConfirmation, data, to, meta); err != nil {
		n.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("confirmation email failed")
		n.metrics.ObserveEmail(emailFailed)
		return false
	}
	n.metrics.ObserveEmail(emailSent)
	return true
}
