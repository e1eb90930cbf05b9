package services

import (
	"context"
	"errors"
	"testing"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

func newRegistrationService(f *fixture) *RegistrationService {
	return &RegistrationService{DB: f.db, Geo: f.geo, Events: f.events}
}

func countRows(t *testing.T, f *fixture, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func TestRegistration_ApproveInsertsExactlyOneMP(t *testing.T) {
	f := newFixture(t)
	svc := newRegistrationService(f)
	ctx := context.Background()

	r, err := svc.Submit(ctx, RegistrationInput{Phone: "0770 11 22 33", Name: "  karim   benali ", Role: domain.RoleMP, WilayaID: "16"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Status != domain.RegistrationPending || r.Phone != "213770112233" || r.Name != "Karim Benali" {
		t.Fatalf("registration = %+v", r)
	}

	mpsBefore := countRows(t, f, &domain.MP{})
	depsBefore := countRows(t, f, &domain.LocalDeputy{})
	created, err := svc.Approve(ctx, admin, r.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	mp, ok := created.(*domain.MP)
	if !ok || !mp.IsActive || mp.Wilaya != "Alger" || mp.Phone != "213770112233" {
		t.Fatalf("created = %#v", created)
	}
	if got := countRows(t, f, &domain.MP{}); got != mpsBefore+1 {
		t.Fatalf("mps: %d -> %d", mpsBefore, got)
	}
	if got := countRows(t, f, &domain.LocalDeputy{}); got != depsBefore {
		t.Fatalf("deputies changed: %d -> %d", depsBefore, got)
	}

	stored, _ := repo.GetRegistration(ctx, f.db, r.ID)
	if stored.Status != domain.RegistrationApproved || stored.ReviewedBy != admin.UserID || stored.ReviewedAt == nil {
		t.Fatalf("stored = %+v", stored)
	}

	if _, err := svc.Approve(ctx, admin, r.ID); !errors.Is(err, ErrAlreadyReviewed) {
		t.Fatalf("second approve: %v", err)
	}
	if err := svc.Reject(ctx, admin, r.ID); !errors.Is(err, ErrAlreadyReviewed) {
		t.Fatalf("reject after approve: %v", err)
	}
	if got := countRows(t, f, &domain.MP{}); got != mpsBefore+1 {
		t.Fatalf("second approve inserted an MP: %d", got)
	}

	kinds := f.events.kinds()
	if len(kinds) != 2 || kinds[0] != events.RegistrationCreated || kinds[1] != events.RegistrationUpdated {
		t.Fatalf("events = %v", kinds)
	}
}

func TestRegistration_ApproveLocalDeputy(t *testing.T) {
	f := newFixture(t)
	svc := newRegistrationService(f)
	ctx := context.Background()

	r, err := svc.Submit(ctx, RegistrationInput{Phone: "0661223344", Name: "Leila H", Role: domain.RoleLocalDeputy, WilayaID: "1", DairaID: "5"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	created, err := svc.Approve(ctx, admin, r.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	d, ok := created.(*domain.LocalDeputy)
	if !ok || d.DairaID != "5" || !d.IsActive {
		t.Fatalf("created = %#v", created)
	}
}

func TestRegistration_SubmitRejections(t *testing.T) {
	f := newFixture(t)
	svc := newRegistrationService(f)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, RegistrationInput{Phone: "0770112233", Name: "A", Role: domain.RoleMP, WilayaID: "16"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	cases := []struct {
		name string
		in   RegistrationInput
		want error
	}{
		{"citizen role", RegistrationInput{Phone: "0770000001", Name: "A", Role: domain.RoleCitizen, WilayaID: "16"}, ErrValidation},
		{"bad phone", RegistrationInput{Phone: "call me", Name: "A", Role: domain.RoleMP, WilayaID: "16"}, ErrValidation},
		{"no name", RegistrationInput{Phone: "0770000001", Role: domain.RoleMP, WilayaID: "16"}, ErrValidation},
		{"deputy without daira", RegistrationInput{Phone: "0770000001", Name: "A", Role: domain.RoleLocalDeputy, WilayaID: "1"}, ErrValidation},
		{"unknown wilaya", RegistrationInput{Phone: "0770000001", Name: "A", Role: domain.RoleMP, WilayaID: "99"}, ErrValidation},
		{"pending duplicate", RegistrationInput{Phone: "+213 770 11 22 33", Name: "B", Role: domain.RoleMP, WilayaID: "16"}, ErrDuplicateRegistration},
		{"existing MP", RegistrationInput{Phone: "0555000001", Name: "C", Role: domain.RoleMP, WilayaID: "16"}, ErrDuplicateRegistration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Submit(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegistration_RejectAndList(t *testing.T) {
	f := newFixture(t)
	svc := newRegistrationService(f)
	ctx := context.Background()

	r, err := svc.Submit(ctx, RegistrationInput{Phone: "0770112233", Name: "A", Role: domain.RoleMP, WilayaID: "16"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := svc.Reject(ctx, mpA, r.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin reject: %v", err)
	}
	mpsBefore := countRows(t, f, &domain.MP{})
	if err := svc.Reject(ctx, admin, r.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got := countRows(t, f, &domain.MP{}); got != mpsBefore {
		t.Fatalf("reject inserted an official")
	}
	if _, err := svc.Approve(ctx, admin, r.ID); !errors.Is(err, ErrAlreadyReviewed) {
		t.Fatalf("approve after reject: %v", err)
	}
	if _, err := svc.Approve(ctx, admin, "missing"); !errors.Is(err, ErrRegistrationNotFound) {
		t.Fatalf("missing: %v", err)
	}

	pending, total, err := svc.List(ctx, admin, domain.RegistrationPending, 1, 10)
	if err != nil || total != 0 || len(pending) != 0 {
		t.Fatalf("pending list: %v %d %v", pending, total, err)
	}
	rejected, total, err := svc.List(ctx, admin, domain.RegistrationRejected, 1, 10)
	if err != nil || total != 1 || rejected[0].ID != r.ID {
		t.Fatalf("rejected list: %v %d %v", rejected, total, err)
	}
	if _, _, err := svc.List(ctx, admin, "archived", 1, 10); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status: %v", err)
	}
}
