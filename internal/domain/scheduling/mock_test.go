package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/platform/db"
)

// memStore implements AppointmentRepository and Directory in memory and
// enforces the partial slot indexes the way PostgreSQL does.
type memStore struct {
	mu       sync.Mutex
	patients map[uuid.UUID]PatientRef
	doctors  map[uuid.UUID]DoctorRef
	appts    map[uuid.UUID]Appointment

	// skipSlotCheck makes the *BookedAt lookups miss so only the store
	// constraint catches the collision.
	skipSlotCheck bool
	markErr       error
}

func newMemStore() *memStore {
	return &memStore{
		patients: make(map[uuid.UUID]PatientRef),
		doctors:  make(map[uuid.UUID]DoctorRef),
		appts:    make(map[uuid.UUID]Appointment),
	}
}

func (m *memStore) addPatient(first, last, doc string, email *string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = PatientRef{ID: id, FirstName: first, LastName: last, DocumentNumber: doc, Email: email}
	return id
}

func (m *memStore) addDoctor(first, last, specialty string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.doctors[id] = DoctorRef{ID: id, FirstName: first, LastName: last, Specialty: specialty}
	return id
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appts)
}

func (m *memStore) stored(id uuid.UUID) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appts[id]
}

func (m *memStore) slotViolation(a *Appointment) error {
	if a.IsCancelled() {
		return nil
	}
	for id, row := range m.appts {
		if id == a.ID || row.IsCancelled() || !row.AppointmentDate.Equal(a.AppointmentDate) {
			continue
		}
		if row.DoctorID == a.DoctorID {
			return ErrDoctorBooked
		}
		if row.PatientID == a.PatientID {
			return ErrPatientBooked
		}
	}
	return nil
}

func (m *memStore) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.slotViolation(a); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	a.ID = uuid.New()
	a.VersionID = 1
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.appts[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, db.ErrNotFound)
	}
	return m.resolve(row), nil
}

func (m *memStore) resolve(row Appointment) *Appointment {
	p := m.patients[row.PatientID]
	d := m.doctors[row.DoctorID]
	row.Patient = &p
	row.Doctor = &d
	return &row
}

func (m *memStore) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.appts[a.ID]
	if !ok || row.VersionID != a.VersionID {
		return fmt.Errorf("appointment %s: %w", a.ID, db.ErrStaleWrite)
	}
	if err := m.slotViolation(a); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	row.PatientID = a.PatientID
	row.DoctorID = a.DoctorID
	row.AppointmentDate = a.AppointmentDate
	row.Notes = a.Notes
	row.VersionID++
	a.VersionID = row.VersionID
	m.appts[a.ID] = row
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.appts[a.ID]
	if !ok {
		return fmt.Errorf("appointment %s: %w", a.ID, db.ErrNotFound)
	}
	row.Status = a.Status
	if err := m.slotViolation(&row); err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	row.VersionID++
	a.VersionID = row.VersionID
	m.appts[a.ID] = row
	return nil
}

func (m *memStore) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	row, ok := m.appts[id]
	if !ok {
		return fmt.Errorf("appointment %s: %w", id, db.ErrNotFound)
	}
	row.EmailSent = true
	m.appts[id] = row
	return nil
}

func (m *memStore) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Appointment
	for _, row := range m.appts {
		if filter.PatientID != nil && row.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && row.DoctorID != *filter.DoctorID {
			continue
		}
		all = append(all, m.resolve(row))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AppointmentDate.After(all[j].AppointmentDate) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) booked(match func(Appointment) bool, at time.Time, excludeID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipSlotCheck {
		return false
	}
	for id, row := range m.appts {
		if id != excludeID && !row.IsCancelled() && row.AppointmentDate.Equal(at) && match(row) {
			return true
		}
	}
	return false
}

func (m *memStore) DoctorBookedAt(_ context.Context, doctorID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error) {
	return m.booked(func(a Appointment) bool { return a.DoctorID == doctorID }, at, excludeID), nil
}

func (m *memStore) PatientBookedAt(_ context.Context, patientID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error) {
	return m.booked(func(a Appointment) bool { return a.PatientID == patientID }, at, excludeID), nil
}

func (m *memStore) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.patients[id]
	return ok, nil
}

func (m *memStore) DoctorExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.doctors[id]
	return ok, nil
}

// stubNotifier records confirmations and returns ok.
type stubNotifier struct {
	mu     sync.Mutex
	ok     bool
	calls  []*Appointment
	onSend func()
}

func (n *stubNotifier) SendConfirmation(_ context.Context, a *Appointment) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, a)
	if n.onSend != nil {
		n.onSend()
	}
	return n.ok
}
