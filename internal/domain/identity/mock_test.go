package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/platform/db"
)

// memPatients is an in-memory PatientRepository that enforces the same
// unique document rule as the store.
type memPatients struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Patient
	// skipTakenCheck makes DocumentTaken lie so the store-level check is hit.
	skipTakenCheck bool
}

func newMemPatients() *memPatients {
	return &memPatients{rows: make(map[uuid.UUID]Patient)}
}

func (m *memPatients) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.DocumentNumber == p.DocumentNumber {
			return fmt.Errorf("create patient: %w", ErrDuplicateDocument)
		}
	}
	p.ID = uuid.New()
	p.VersionID = 1
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	m.rows[p.ID] = *p
	return nil
}

func (m *memPatients) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, db.ErrNotFound)
	}
	return &row, nil
}

func (m *memPatients) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[p.ID]
	if !ok || row.VersionID != p.VersionID {
		return fmt.Errorf("update patient %s: %w", p.ID, db.ErrStaleWrite)
	}
	for id, other := range m.rows {
		if id != p.ID && other.DocumentNumber == p.DocumentNumber {
			return fmt.Errorf("update patient: %w", ErrDuplicateDocument)
		}
	}
	p.VersionID++
	p.UpdatedAt = time.Now().UTC()
	m.rows[p.ID] = *p
	return nil
}

func (m *memPatients) ToggleActive(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return false, fmt.Errorf("patient %s: %w", id, db.ErrNotFound)
	}
	row.Active = !row.Active
	m.rows[id] = row
	return row.Active, nil
}

func (m *memPatients) List(_ context.Context, active bool, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	for _, row := range m.rows {
		if row.Active == active {
			r := row
			all = append(all, &r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LastName != all[j].LastName {
			return all[i].LastName < all[j].LastName
		}
		return all[i].FirstName < all[j].FirstName
	})
	return page(all, limit, offset), len(all), nil
}

func (m *memPatients) DocumentTaken(_ context.Context, documentNumber string, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipTakenCheck {
		return false, nil
	}
	for id, row := range m.rows {
		if id != excludeID && row.DocumentNumber == documentNumber {
			return true, nil
		}
	}
	return false, nil
}

type memDoctors struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Doctor
}

func newMemDoctors() *memDoctors {
	return &memDoctors{rows: make(map[uuid.UUID]Doctor)}
}

func sameNameSpecialty(a, b *Doctor) bool {
	return strings.EqualFold(a.FirstName, b.FirstName) &&
		strings.EqualFold(a.LastName, b.LastName) &&
		strings.EqualFold(a.Specialty, b.Specialty)
}

func (m *memDoctors) conflict(d *Doctor) error {
	for id, row := range m.rows {
		if id == d.ID {
			continue
		}
		if row.DocumentNumber == d.DocumentNumber {
			return ErrDuplicateDocument
		}
		if sameNameSpecialty(&row, d) {
			return ErrDuplicateNameSpecialty
		}
	}
	return nil
}

func (m *memDoctors) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.conflict(d); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	d.ID = uuid.New()
	d.VersionID = 1
	m.rows[d.ID] = *d
	return nil
}

func (m *memDoctors) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("doctor %s: %w", id, db.ErrNotFound)
	}
	return &row, nil
}

func (m *memDoctors) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[d.ID]
	if !ok || row.VersionID != d.VersionID {
		return fmt.Errorf("update doctor %s: %w", d.ID, db.ErrStaleWrite)
	}
	if err := m.conflict(d); err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	d.VersionID++
	m.rows[d.ID] = *d
	return nil
}

func (m *memDoctors) ToggleActive(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return false, fmt.Errorf("doctor %s: %w", id, db.ErrNotFound)
	}
	row.Active = !row.Active
	m.rows[id] = row
	return row.Active, nil
}

func (m *memDoctors) List(_ context.Context, active bool, limit, offset int) ([]*Doctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Doctor
	for _, row := range m.rows {
		if row.Active == active {
			r := row
			all = append(all, &r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LastName < all[j].LastName })
	return page(all, limit, offset), len(all), nil
}

func (m *memDoctors) DocumentTaken(_ context.Context, documentNumber string, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if id != excludeID && row.DocumentNumber == documentNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDoctors) NameSpecialtyTaken(_ context.Context, firstName, lastName, specialty string, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate := &Doctor{FirstName: firstName, LastName: lastName, Specialty: specialty}
	for id, row := range m.rows {
		if id != excludeID && sameNameSpecialty(&row, candidate) {
			return true, nil
		}
	}
	return false, nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
