package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

func TestFindMPForWilaya_TieBreakAndActive(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	for _, mp := range []domain.MP{
		{ID: "mp-c", Name: "C", WilayaID: "16", IsActive: true},
		{ID: "mp-a", Name: "A", WilayaID: "16", IsActive: false},
		{ID: "mp-b", Name: "B", WilayaID: "16", IsActive: true},
		{ID: "mp-0", Name: "Z", WilayaID: "31", IsActive: true},
	} {
		mp := mp
		if err := CreateMP(ctx, db, &mp); err != nil {
			t.Fatalf("CreateMP: %v", err)
		}
	}

	got, err := FindMPForWilaya(ctx, db, "16")
	if err != nil {
		t.Fatalf("FindMPForWilaya: %v", err)
	}
	if got.ID != "mp-b" {
		t.Fatalf("expected lowest active id mp-b, got %s", got.ID)
	}
	if _, err := FindMPForWilaya(ctx, db, "99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindLocalDeputyFor_RequiresWilayaAndDaira(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	for _, d := range []domain.LocalDeputy{
		{ID: "d-9", Name: "Nine", WilayaID: "1", DairaID: "5", IsActive: true},
		{ID: "d-1", Name: "One", WilayaID: "1", DairaID: "5", IsActive: true},
		{ID: "d-0", Name: "Zero", WilayaID: "1", DairaID: "5", IsActive: false},
		{ID: "d-x", Name: "Other", WilayaID: "2", DairaID: "5", IsActive: true},
	} {
		d := d
		if err := CreateLocalDeputy(ctx, db, &d); err != nil {
			t.Fatalf("CreateLocalDeputy: %v", err)
		}
	}
	got, err := FindLocalDeputyFor(ctx, db, "1", "5")
	if err != nil || got.ID != "d-1" {
		t.Fatalf("FindLocalDeputyFor = %+v err=%v", got, err)
	}
	if _, err := FindLocalDeputyFor(ctx, db, "1", "6"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("daira mismatch should not resolve, got %v", err)
	}

	list, err := ListLocalDeputies(ctx, db, OfficialFilter{WilayaID: "1", ActiveOnly: true})
	if err != nil || len(list) != 2 {
		t.Fatalf("ListLocalDeputies: %+v err=%v", list, err)
	}
	if byPhone, err := FindLocalDeputyByPhone(ctx, db, "none"); byPhone != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindLocalDeputyByPhone: %v %v", byPhone, err)
	}
}

func TestListMPs_PaginationAndPhone(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	for _, mp := range []domain.MP{
		{ID: "1", Name: "Amine", WilayaID: "16", Phone: "0550000001", IsActive: true},
		{ID: "2", Name: "Bachir", WilayaID: "16", IsActive: true},
		{ID: "3", Name: "Chafia", WilayaID: "16", IsActive: true},
	} {
		mp := mp
		if err := CreateMP(ctx, db, &mp); err != nil {
			t.Fatalf("CreateMP: %v", err)
		}
	}
	page, total, err := ListMPs(ctx, db, OfficialFilter{WilayaID: "16"}, 1, 1)
	if err != nil || total != 3 || len(page) != 1 || page[0].Name != "Bachir" {
		t.Fatalf("ListMPs page: %+v total=%d err=%v", page, total, err)
	}
	mp, err := FindMPByPhone(ctx, db, "0550000001")
	if err != nil || mp.ID != "1" {
		t.Fatalf("FindMPByPhone: %+v err=%v", mp, err)
	}
	if err := UpdateMP(ctx, db, "2", map[string]any{"is_active": false}); err != nil {
		t.Fatalf("UpdateMP: %v", err)
	}
	_, total, _ = ListMPs(ctx, db, OfficialFilter{ActiveOnly: true}, 0, 0)
	if total != 2 {
		t.Fatalf("active total = %d", total)
	}
	if err := DeleteMP(ctx, db, "3"); err != nil {
		t.Fatalf("DeleteMP: %v", err)
	}
	if n, _ := CountMPs(ctx, db); n != 2 {
		t.Fatalf("CountMPs = %d", n)
	}
}

func TestRefreshMPCounters(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	if err := CreateMP(ctx, db, &domain.MP{ID: "mp1", Name: "M", WilayaID: "16", IsActive: true}); err != nil {
		t.Fatalf("CreateMP: %v", err)
	}

	// No complaints: zero-guarded rate.
	if err := RefreshMPCounters(ctx, db, "mp1"); err != nil {
		t.Fatalf("RefreshMPCounters: %v", err)
	}
	mp, _ := GetMP(ctx, db, "mp1")
	if mp.ComplaintsCount != 0 || mp.ResponseRate != 0 {
		t.Fatalf("expected zero counters, got %d/%d", mp.ComplaintsCount, mp.ResponseRate)
	}

	id := "mp1"
	seedComplaint(t, db, domain.Complaint{ID: "c1", MPID: &id, Status: domain.StatusReplied})
	seedComplaint(t, db, domain.Complaint{ID: "c2", MPID: &id, Status: domain.StatusPending})
	seedComplaint(t, db, domain.Complaint{ID: "c3", MPID: &id, Status: domain.StatusViewed})

	if err := RefreshMPCounters(ctx, db, "mp1"); err != nil {
		t.Fatalf("RefreshMPCounters: %v", err)
	}
	mp, _ = GetMP(ctx, db, "mp1")
	if mp.ComplaintsCount != 3 || mp.ResponseRate != 33 {
		t.Fatalf("expected 3 complaints at 33%%, got %d/%d", mp.ComplaintsCount, mp.ResponseRate)
	}
}
