package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeSlots struct {
	doctorBusy, patientBusy bool
	err                     error
	excluded                []uuid.UUID
}

func (f *fakeSlots) DoctorBookedAt(_ context.Context, _ uuid.UUID, _ time.Time, excludeID uuid.UUID) (bool, error) {
	f.excluded = append(f.excluded, excludeID)
	return f.doctorBusy, f.err
}

func (f *fakeSlots) PatientBookedAt(_ context.Context, _ uuid.UUID, _ time.Time, excludeID uuid.UUID) (bool, error) {
	f.excluded = append(f.excluded, excludeID)
	return f.patientBusy, nil
}

func TestConflictValidator(t *testing.T) {
	tests := []struct {
		name                    string
		doctorBusy, patientBusy bool
		want                    []string
	}{
		{"free", false, false, nil},
		{"doctor busy", true, false, []string{msgDoctorConflict}},
		{"patient busy", false, true, []string{msgPatientConflict}},
		{"both busy", true, true, []string{msgDoctorConflict, msgPatientConflict}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewConflictValidator(&fakeSlots{doctorBusy: tt.doctorBusy, patientBusy: tt.patientBusy})
			errs, err := v.Validate(context.Background(), Proposal{At: slotT})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(errs) != len(tt.want) {
				t.Fatalf("expected %d errors, got %v", len(tt.want), errs)
			}
			for i, fe := range errs {
				if fe.Field != "appointment_date" || fe.Message != tt.want[i] {
					t.Errorf("unexpected error %+v", fe)
				}
			}
		})
	}
}

func TestConflictValidator_PassesExcludeID(t *testing.T) {
	slots := &fakeSlots{}
	self := uuid.New()
	_, _ = NewConflictValidator(slots).Validate(context.Background(), Proposal{At: slotT, ExcludeID: self})
	for _, id := range slots.excluded {
		if id != self {
			t.Errorf("expected exclude id %s, got %s", self, id)
		}
	}
}

func TestConflictValidator_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	v := NewConflictValidator(&fakeSlots{err: boom})
	_, err := v.Validate(context.Background(), Proposal{At: slotT})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
