package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

// seedDirectory creates two wilayas with one daira each, two active MPs in
// wilaya 16 (to exercise the tie-break), one inactive MP, and local deputies
// in daira 5 of wilaya 1.
func seedDirectory(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []any{
		&domain.Wilaya{ID: "1", Name: "Adrar", Code: 1},
		&domain.Wilaya{ID: "16", Name: "Alger", Code: 16},
		&domain.Daira{ID: "5", Name: "Reggane", WilayaID: "1"},
		&domain.Daira{ID: "7", Name: "Bab El Oued", WilayaID: "16"},
		&domain.MP{ID: "mp-b", Name: "Karim B", Wilaya: "Alger", WilayaID: "16", IsActive: true},
		&domain.MP{ID: "mp-a", Name: "Amina A", Wilaya: "Alger", WilayaID: "16", Phone: "213555000001", IsActive: true},
		&domain.MP{ID: "mp-0", Name: "Retired", Wilaya: "Alger", WilayaID: "16", IsActive: false},
		&domain.LocalDeputy{ID: "dep-1", Name: "Samir D", WilayaID: "1", DairaID: "5", Phone: "213555123456", IsActive: true},
		&domain.LocalDeputy{ID: "dep-2", Name: "Nadia N", WilayaID: "1", DairaID: "5", IsActive: true},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
}

var (
	citizen      = &auth.Session{UserID: "u1", Role: domain.RoleCitizen, Phone: "213661000001"}
	otherCitizen = &auth.Session{UserID: "u2", Role: domain.RoleCitizen}
	mpA          = &auth.Session{UserID: "mp-user", Role: domain.RoleMP, OfficialID: "mp-a", Name: "Amina A"}
	mpB          = &auth.Session{UserID: "mpb-user", Role: domain.RoleMP, OfficialID: "mp-b", Name: "Karim B"}
	deputy1      = &auth.Session{UserID: "dep-user", Role: domain.RoleLocalDeputy, OfficialID: "dep-1", Name: "Samir D"}
	deputy2      = &auth.Session{UserID: "dep2-user", Role: domain.RoleLocalDeputy, OfficialID: "dep-2", Name: "Nadia N"}
	admin        = &auth.Session{UserID: "admin", Role: domain.RoleAdmin, Name: "Admin"}
)

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	geo        *GeoService
	complaints *ComplaintService
	events     *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	seedDirectory(t, db)
	geo := &GeoService{DB: db, Cache: cache.NewMemory()}
	rec := &recorder{}
	tick := fixedNow
	return &fixture{
		db:  db,
		geo: geo,
		complaints: &ComplaintService{
			DB:       db,
			Assigner: Assigner{Officials: RepoOfficials{DB: db}},
			Geo:      geo,
			Events:   rec,
			// Each call advances one second so audit rows sort in write order.
			Now: func() time.Time {
				tick = tick.Add(time.Second)
				return tick
			},
		},
		events: rec,
	}
}

func (f *fixture) submit(t *testing.T, in SubmitInput) *domain.Complaint {
	t.Helper()
	c, err := f.complaints.Submit(context.Background(), citizen, in)
	if err != nil {
		t.Fatalf("Submit(%+v): %v", in, err)
	}
	return c
}

func (f *fixture) health(t *testing.T) *domain.Complaint {
	t.Helper()
	return f.submit(t, SubmitInput{Content: "Le service des urgences est fermé la nuit", Category: domain.CategoryHealth, WilayaID: "16"})
}

func (f *fixture) municipal(t *testing.T) *domain.Complaint {
	t.Helper()
	return f.submit(t, SubmitInput{Content: "Éclairage public en panne rue principale", Category: domain.CategoryMunicipal, WilayaID: "1", DairaID: "5"})
}

func (f *fixture) audit(t *testing.T, id string) []domain.AuditLogEntry {
	t.Helper()
	rows, err := repo.ListAudit(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	return rows
}

func strp(s string) *string { return &s }
