package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

func TestSubmit_MunicipalRoutesToLocalDeputy(t *testing.T) {
	f := newFixture(t)

	c := f.municipal(t)
	if c.AssignedTo != domain.AssignedToLocalDeputy {
		t.Fatalf("assigned_to = %q", c.AssignedTo)
	}
	// dep-1 and dep-2 both match; the lowest id wins.
	if c.LocalDeputyID == nil || *c.LocalDeputyID != "dep-1" || c.MPID != nil {
		t.Fatalf("unexpected routing: deputy=%v mp=%v", c.LocalDeputyID, c.MPID)
	}
	if c.Status != domain.StatusPending || c.Priority != domain.PriorityNormal {
		t.Fatalf("unexpected defaults: %+v", c)
	}

	rows := f.audit(t, c.ID)
	if len(rows) != 1 || rows[0].Action != domain.ActionCreated {
		t.Fatalf("expected one created audit row, got %+v", rows)
	}
	if rows[0].NewValue["status"] != "pending" || rows[0].NewValue["official_id"] != "dep-1" {
		t.Fatalf("created new_value = %v", rows[0].NewValue)
	}
	if got := f.events.kinds(); len(got) != 1 || got[0] != events.ComplaintCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestSubmit_MPTieBreakAndCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.health(t)
	if c.AssignedTo != domain.AssignedToMP || c.MPID == nil || *c.MPID != "mp-a" {
		t.Fatalf("expected mp-a, got %v", c.MPID)
	}
	mp, err := repo.GetMP(ctx, f.db, "mp-a")
	if err != nil {
		t.Fatalf("GetMP: %v", err)
	}
	if mp.ComplaintsCount != 1 || mp.ResponseRate != 0 {
		t.Fatalf("counters = %d/%d", mp.ComplaintsCount, mp.ResponseRate)
	}

	if _, err := f.complaints.Reply(ctx, mpA, c.ID, ReplyInput{Reply: "Nous avons saisi la direction de la santé."}); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	mp, _ = repo.GetMP(ctx, f.db, "mp-a")
	if mp.ResponseRate != 100 {
		t.Fatalf("response rate = %d", mp.ResponseRate)
	}
}

func TestSubmit_UnassignedWhenNoOfficial(t *testing.T) {
	f := newFixture(t)

	c := f.submit(t, SubmitInput{Content: "Pas de lycée à proximité", Category: domain.CategoryEducation, WilayaID: "1"})
	if c.AssignedTo != domain.AssignedToMP || c.MPID != nil || c.OfficialID() != "" {
		t.Fatalf("expected degraded assignment, got %+v", c)
	}
	if n := len(f.audit(t, c.ID)); n != 1 {
		t.Fatalf("audit rows = %d", n)
	}
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SubmitInput
		want error
	}{
		{"empty content", SubmitInput{Content: "  <b></b> ", Category: domain.CategoryHealth, WilayaID: "16"}, ErrValidation},
		{"unknown category", SubmitInput{Content: "x", Category: "weather", WilayaID: "16"}, ErrInvalidCategory},
		{"missing wilaya", SubmitInput{Content: "x", Category: domain.CategoryHealth}, ErrValidation},
		{"unknown wilaya", SubmitInput{Content: "x", Category: domain.CategoryHealth, WilayaID: "99"}, ErrValidation},
		{"municipal without daira", SubmitInput{Content: "x", Category: domain.CategoryMunicipal, WilayaID: "1"}, ErrValidation},
		{"daira of another wilaya", SubmitInput{Content: "x", Category: domain.CategoryMunicipal, WilayaID: "16", DairaID: "5"}, ErrValidation},
		{"bad image", SubmitInput{Content: "x", Category: domain.CategoryHealth, WilayaID: "16", Images: []string{"ftp://x/y.png"}}, ErrValidation},
		{"too many images", SubmitInput{Content: "x", Category: domain.CategoryHealth, WilayaID: "16", Images: []string{
			"https://a/1.png", "https://a/2.png", "https://a/3.png", "https://a/4.png",
		}}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.complaints.Submit(ctx, citizen, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := f.complaints.Submit(ctx, mpA, SubmitInput{Content: "x", Category: domain.CategoryHealth, WilayaID: "16"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("official submit: %v", err)
	}
	var n int64
	f.db.Model(&domain.Complaint{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected submissions persisted %d rows", n)
	}
}

func TestSubmit_SanitisesContent(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, SubmitInput{Content: "<script>alert(1)</script>Route <b>coupée</b> &amp; inondée", Category: domain.CategoryPublicWorks, WilayaID: "16"})
	if c.Content != "Route coupée & inondée" {
		t.Fatalf("content = %q", c.Content)
	}

	escaped := f.submit(t, SubmitInput{Content: "&lt;script&gt;alert(1)&lt;/script&gt; route", Category: domain.CategoryPublicWorks, WilayaID: "16"})
	if escaped.Content != "route" {
		t.Fatalf("escaped markup stored: %q", escaped.Content)
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Route coupée  ", "Route coupée"},
		{"<b>gras</b> &amp; net", "gras & net"},
		{"&lt;img src=x onerror=alert(1)&gt;trou", "trou"},
		{"&amp;lt;b&amp;gt;gras&amp;lt;/b&amp;gt;", "gras"},
		{"a < b et c > d", "a < b et c > d"},
		{"انقطاع الماء", "انقطاع الماء"},
	}
	for _, tc := range cases {
		if got := cleanText(tc.in); got != tc.want {
			t.Fatalf("cleanText(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestSubmit_DailyLimit(t *testing.T) {
	f := newFixture(t)
	f.complaints.Limiter = cache.NewMemory()
	f.complaints.DailyLimit = 2

	f.health(t)
	f.health(t)
	_, err := f.complaints.Submit(context.Background(), citizen, SubmitInput{Content: "encore", Category: domain.CategoryHealth, WilayaID: "16"})
	if !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
	// Another citizen has their own allowance.
	if _, err := f.complaints.Submit(context.Background(), otherCitizen, SubmitInput{Content: "x", Category: domain.CategoryHealth, WilayaID: "16"}); err != nil {
		t.Fatalf("other citizen: %v", err)
	}
}

func TestGet_AccessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	if _, err := f.complaints.Get(ctx, citizen, c.ID); err != nil {
		t.Fatalf("owner: %v", err)
	}
	if _, err := f.complaints.Get(ctx, mpA, c.ID); err != nil {
		t.Fatalf("assigned MP: %v", err)
	}
	if _, err := f.complaints.Get(ctx, admin, c.ID); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if _, err := f.complaints.Get(ctx, otherCitizen, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other citizen: %v", err)
	}
	if _, err := f.complaints.Get(ctx, mpB, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other MP: %v", err)
	}
	if _, err := f.complaints.Get(ctx, admin, "missing"); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestTransitions_OneAuditRowPerChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	steps := []struct {
		name string
		run  func() (*domain.Complaint, error)
		want domain.Status
	}{
		{"view", func() (*domain.Complaint, error) { return f.complaints.MarkViewed(ctx, mpA, c.ID) }, domain.StatusViewed},
		{"cabinet", func() (*domain.Complaint, error) {
			return f.complaints.ChangeStatus(ctx, mpA, c.ID, domain.StatusInCabinet, "à étudier")
		}, domain.StatusInCabinet},
		{"reply", func() (*domain.Complaint, error) {
			return f.complaints.Reply(ctx, mpA, c.ID, ReplyInput{Reply: "Dossier transmis."})
		}, domain.StatusReplied},
	}
	for i, st := range steps {
		got, err := st.run()
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got.Status != st.want {
			t.Fatalf("%s: status = %q", st.name, got.Status)
		}
		rows := f.audit(t, c.ID)
		if len(rows) != i+2 {
			t.Fatalf("%s: audit rows = %d, want %d", st.name, len(rows), i+2)
		}
		if last := rows[len(rows)-1]; last.NewValue["status"] != string(st.want) {
			t.Fatalf("%s: new_value.status = %v", st.name, last.NewValue["status"])
		}
	}

	// Viewing again stamps nothing and writes nothing.
	if _, err := f.complaints.MarkViewed(ctx, mpA, c.ID); err != nil {
		t.Fatalf("re-view: %v", err)
	}
	if n := len(f.audit(t, c.ID)); n != 4 {
		t.Fatalf("re-view wrote audit rows: %d", n)
	}
}

func TestChangeStatus_RepliedCannotReturnToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	if _, err := f.complaints.Reply(ctx, mpA, c.ID, ReplyInput{Reply: "Réponse"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	before := len(f.audit(t, c.ID))
	if _, err := f.complaints.ChangeStatus(ctx, mpA, c.ID, domain.StatusPending, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MP: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.complaints.ChangeStatus(ctx, admin, c.ID, domain.StatusPending, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("admin: expected ErrInvalidTransition, got %v", err)
	}
	if after := len(f.audit(t, c.ID)); after != before {
		t.Fatalf("rejected transition wrote audit rows: %d -> %d", before, after)
	}
	got, _ := f.complaints.Get(ctx, admin, c.ID)
	if got.Status != domain.StatusReplied {
		t.Fatalf("status changed to %q", got.Status)
	}
}

func TestChangeStatus_RoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mun := f.municipal(t)
	hea := f.health(t)

	if _, err := f.complaints.ChangeStatus(ctx, deputy1, mun.ID, domain.StatusInCabinet, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("deputy in_cabinet: %v", err)
	}
	if _, err := f.complaints.ChangeStatus(ctx, mpA, hea.ID, domain.StatusProcessing, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MP processing: %v", err)
	}
	if _, err := f.complaints.ChangeStatus(ctx, citizen, hea.ID, domain.StatusOutOfScope, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("citizen: %v", err)
	}
	if _, err := f.complaints.ChangeStatus(ctx, deputy2, mun.ID, domain.StatusProcessing, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned deputy: %v", err)
	}
	if _, err := f.complaints.ChangeStatus(ctx, mpA, hea.ID, domain.StatusReplied, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("replied via status: %v", err)
	}

	got, err := f.complaints.ChangeStatus(ctx, deputy1, mun.ID, domain.StatusProcessing, "")
	if err != nil || got.Status != domain.StatusProcessing {
		t.Fatalf("deputy processing: %+v %v", got, err)
	}
	got, err = f.complaints.ChangeStatus(ctx, deputy1, mun.ID, domain.StatusResolved, "réparé")
	if err != nil || got.Status != domain.StatusResolved {
		t.Fatalf("deputy resolved: %+v %v", got, err)
	}
	if _, err := f.complaints.ChangeStatus(ctx, admin, mun.ID, domain.StatusViewed, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resolved is terminal: %v", err)
	}
}

func TestReply_FromTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	tpl := &domain.ReplyTemplate{Title: "Accusé", Content: "Votre réclamation a été prise en charge."}
	if err := repo.CreateTemplate(ctx, f.db, tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	got, err := f.complaints.Reply(ctx, mpA, c.ID, ReplyInput{TemplateID: tpl.ID})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got.Reply != tpl.Content || got.RepliedAt == nil {
		t.Fatalf("reply not applied: %+v", got)
	}
	rows := f.audit(t, c.ID)
	if last := rows[len(rows)-1]; last.Action != domain.ActionReplied || last.NewValue["template_id"] != tpl.ID {
		t.Fatalf("reply audit = %+v", last)
	}

	if _, err := f.complaints.Reply(ctx, mpA, c.ID, ReplyInput{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty reply: %v", err)
	}
	if _, err := f.complaints.Reply(ctx, mpA, c.ID, ReplyInput{TemplateID: "missing"}); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing template: %v", err)
	}
}

func TestSetPriorityAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	got, err := f.complaints.SetPriority(ctx, mpA, c.ID, domain.PriorityUrgent)
	if err != nil || !got.Urgent {
		t.Fatalf("SetPriority: %+v %v", got, err)
	}
	if _, err := f.complaints.SetPriority(ctx, mpA, c.ID, domain.PriorityUrgent); err != nil {
		t.Fatalf("same priority: %v", err)
	}
	if _, err := f.complaints.SetPriority(ctx, mpA, c.ID, "critical"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("bad priority: %v", err)
	}

	got, err = f.complaints.AddNote(ctx, mpA, c.ID, "Appeler le directeur")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if !strings.Contains(got.InternalNotes, "Amina A: Appeler le directeur") {
		t.Fatalf("notes = %q", got.InternalNotes)
	}

	rows := f.audit(t, c.ID)
	if len(rows) != 3 || rows[1].Action != domain.ActionPriorityChanged || rows[2].Action != domain.ActionNoteAdded {
		t.Fatalf("audit = %+v", rows)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("priority and notes must not move status, got %q", got.Status)
	}
}

func TestLists_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.health(t)
	f.health(t)
	f.municipal(t)
	if _, err := f.complaints.Submit(ctx, otherCitizen, SubmitInput{Content: "autre", Category: domain.CategoryHealth, WilayaID: "16"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	mine, total, err := f.complaints.ListForCitizen(ctx, citizen, ListFilter{})
	if err != nil || total != 3 || len(mine) != 3 {
		t.Fatalf("citizen list: %d/%d %v", len(mine), total, err)
	}
	assigned, total, err := f.complaints.ListForOfficial(ctx, mpA, ListFilter{})
	if err != nil || total != 3 || len(assigned) != 3 {
		t.Fatalf("mp list: %d/%d %v", len(assigned), total, err)
	}
	dep, total, err := f.complaints.ListForOfficial(ctx, deputy1, ListFilter{})
	if err != nil || total != 1 || dep[0].Category != domain.CategoryMunicipal {
		t.Fatalf("deputy list: %+v %d %v", dep, total, err)
	}
	all, total, err := f.complaints.ListAll(ctx, admin, ListFilter{Category: domain.CategoryHealth, PageSize: 2})
	if err != nil || total != 3 || len(all) != 2 {
		t.Fatalf("admin list: %d/%d %v", len(all), total, err)
	}
	hits, total, err := f.complaints.ListAll(ctx, admin, ListFilter{Query: "PANNE"})
	if err != nil || total != 1 || hits[0].Category != domain.CategoryMunicipal {
		t.Fatalf("query: %+v %d %v", hits, total, err)
	}

	if _, _, err := f.complaints.ListAll(ctx, mpA, ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("mp ListAll: %v", err)
	}
	if _, _, err := f.complaints.ListForOfficial(ctx, citizen, ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("citizen ListForOfficial: %v", err)
	}
	if _, _, err := f.complaints.ListAll(ctx, admin, ListFilter{Statuses: []domain.Status{"closed"}}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status: %v", err)
	}
}

func TestListFilter_OverdueAndUrgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := &domain.Complaint{UserID: "u1", Content: "ancienne", Category: domain.CategoryHealth, WilayaID: "16",
		MPID: strp("mp-a"), AssignedTo: domain.AssignedToMP, CreatedAt: fixedNow.Add(-10 * 24 * time.Hour)}
	if err := repo.CreateComplaint(ctx, f.db, old); err != nil {
		t.Fatalf("CreateComplaint: %v", err)
	}
	fresh := f.health(t)
	if _, err := f.complaints.SetPriority(ctx, mpA, fresh.ID, domain.PriorityUrgent); err != nil {
		t.Fatalf("SetPriority: %v", err)
	}

	overdue, total, err := f.complaints.ListForOfficial(ctx, mpA, ListFilter{Overdue: true})
	if err != nil || total != 1 || overdue[0].ID != old.ID || !overdue[0].Overdue {
		t.Fatalf("overdue: %+v %d %v", overdue, total, err)
	}
	urgent, total, err := f.complaints.ListForOfficial(ctx, mpA, ListFilter{Urgent: true})
	if err != nil || total != 1 || urgent[0].ID != fresh.ID || !urgent[0].Urgent {
		t.Fatalf("urgent: %+v %d %v", urgent, total, err)
	}
}

func TestAuditTrail_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	rows, err := f.complaints.AuditTrail(ctx, mpA, c.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("AuditTrail: %v %v", rows, err)
	}
	if _, err := f.complaints.AuditTrail(ctx, citizen, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("citizen audit: %v", err)
	}
}

func TestAdminUpdate_ReroutesAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	cat, wilaya, daira := domain.CategoryMunicipal, "1", "5"
	prio := domain.PriorityHigh
	got, err := f.complaints.AdminUpdate(ctx, admin, c.ID, AdminPatch{Category: &cat, WilayaID: &wilaya, DairaID: &daira, Priority: &prio})
	if err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if got.AssignedTo != domain.AssignedToLocalDeputy || got.LocalDeputyID == nil || *got.LocalDeputyID != "dep-1" || got.MPID != nil {
		t.Fatalf("not rerouted: %+v", got)
	}
	mp, _ := repo.GetMP(ctx, f.db, "mp-a")
	if mp.ComplaintsCount != 0 {
		t.Fatalf("stale MP counter = %d", mp.ComplaintsCount)
	}
	rows := f.audit(t, c.ID)
	if len(rows) != 2 || rows[1].Action != domain.ActionPriorityChanged {
		t.Fatalf("audit = %+v", rows)
	}

	st := domain.StatusReplied
	if _, err := f.complaints.AdminUpdate(ctx, admin, c.ID, AdminPatch{Status: &st}); !errors.Is(err, ErrValidation) {
		t.Fatalf("replied without reply: %v", err)
	}
	if _, err := f.complaints.AdminUpdate(ctx, mpA, c.ID, AdminPatch{Priority: &prio}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin: %v", err)
	}
}

func TestAdminUpdate_ResolvesAnyOpenComplaint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resolved := domain.StatusResolved

	for _, from := range []domain.Status{
		domain.StatusPending, domain.StatusViewed, domain.StatusInCabinet,
		domain.StatusForwarded, domain.StatusProcessing, domain.StatusReplied,
	} {
		c := f.health(t)
		if err := repo.UpdateComplaint(ctx, f.db, c.ID, map[string]any{"status": from}); err != nil {
			t.Fatalf("set %s: %v", from, err)
		}
		got, err := f.complaints.AdminUpdate(ctx, admin, c.ID, AdminPatch{Status: &resolved, Notes: "traité hors plateforme"})
		if err != nil {
			t.Fatalf("%s -> resolved: %v", from, err)
		}
		if got.Status != domain.StatusResolved {
			t.Fatalf("%s: status = %s", from, got.Status)
		}
		var changes []domain.AuditLogEntry
		for _, row := range f.audit(t, c.ID) {
			if row.Action == domain.ActionStatusChanged {
				changes = append(changes, row)
			}
		}
		if len(changes) != 1 {
			t.Fatalf("%s: %d status rows", from, len(changes))
		}
		if changes[0].OldValue["status"] != string(from) || changes[0].NewValue["status"] != "resolved" || changes[0].Notes != "traité hors plateforme" {
			t.Fatalf("%s: audit = %+v", from, changes[0])
		}
	}

	closed := f.health(t)
	if err := repo.UpdateComplaint(ctx, f.db, closed.ID, map[string]any{"status": domain.StatusOutOfScope}); err != nil {
		t.Fatalf("set out_of_scope: %v", err)
	}
	if _, err := f.complaints.AdminUpdate(ctx, admin, closed.ID, AdminPatch{Status: &resolved}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal complaint resolved: %v", err)
	}

	// Status actions still follow the table, even for admins.
	open := f.health(t)
	if _, err := f.complaints.ChangeStatus(ctx, admin, open.ID, resolved, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ChangeStatus pending -> resolved: %v", err)
	}
}

func TestAdminDelete_CascadesAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.health(t)

	if err := f.complaints.AdminDelete(ctx, admin, c.ID); err != nil {
		t.Fatalf("AdminDelete: %v", err)
	}
	if n, _ := repo.CountAudit(ctx, f.db, c.ID); n != 0 {
		t.Fatalf("audit rows survived: %d", n)
	}
	if _, err := f.complaints.Get(ctx, admin, c.ID); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	kinds := f.events.kinds()
	if kinds[len(kinds)-1] != events.ComplaintDeleted {
		t.Fatalf("events = %v", kinds)
	}
	if err := f.complaints.AdminDelete(ctx, admin, c.ID); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
