package services

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

func TestGeo_ResolverAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ws, err := f.geo.ListWilayas(ctx)
	if err != nil || len(ws) != 2 || ws[0].ID != "1" {
		t.Fatalf("ListWilayas: %+v %v", ws, err)
	}
	ds, err := f.geo.DairasOf(ctx, "16")
	if err != nil || len(ds) != 1 || ds[0].Name != "Bab El Oued" {
		t.Fatalf("DairasOf: %+v %v", ds, err)
	}
	if _, err := f.geo.DairasOf(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty wilaya: %v", err)
	}

	// A write through the service invalidates the cached list.
	if _, err := f.geo.CreateDaira(ctx, DairaInput{Name: "Hussein Dey", WilayaID: "16"}); err != nil {
		t.Fatalf("CreateDaira: %v", err)
	}
	if ds, _ = f.geo.DairasOf(ctx, "16"); len(ds) != 2 {
		t.Fatalf("cache not invalidated: %+v", ds)
	}
	if _, err := f.geo.CreateDaira(ctx, DairaInput{Name: "Nowhere", WilayaID: "99"}); err == nil {
		t.Fatalf("daira under a missing wilaya accepted")
	}

	name, err := f.geo.WilayaNameOfDaira(ctx, "5")
	if err != nil || name != "Adrar" {
		t.Fatalf("WilayaNameOfDaira: %q %v", name, err)
	}
	if err := f.db.Create(&domain.Daira{ID: "orphan", Name: "Orphan", WilayaID: "77"}).Error; err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	if name, err = f.geo.WilayaNameOfDaira(ctx, "orphan"); err != nil || name != "" {
		t.Fatalf("dangling daira: %q %v", name, err)
	}
}

func TestGeo_Mutamadiyat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.geo.CreateMutamadiya(ctx, MutamadiyaInput{Name: "Sali", DairaID: "5"})
	if err != nil {
		t.Fatalf("CreateMutamadiya: %v", err)
	}
	if m.WilayaID != "1" {
		t.Fatalf("wilaya not derived from daira: %+v", m)
	}
	list, err := f.geo.MutamadiyatOf(ctx, "5")
	if err != nil || len(list) != 1 {
		t.Fatalf("MutamadiyatOf: %+v %v", list, err)
	}
	if err := f.geo.DeleteMutamadiya(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMutamadiya: %v", err)
	}
	if err := f.geo.DeleteMutamadiya(ctx, m.ID); !errors.Is(err, ErrGeoNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestValidateLocation_LookupsRunInsideItsSpan(t *testing.T) {
	f := newFixture(t)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var parents []trace.SpanID
	err := f.db.Callback().Query().Before("gorm:query").Register("test:span_parent", func(db *gorm.DB) {
		parents = append(parents, trace.SpanContextFromContext(db.Statement.Context).SpanID())
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	geo := &GeoService{DB: f.db}
	if _, _, err := geo.ValidateLocation(context.Background(), "16", "7", true); err != nil {
		t.Fatalf("ValidateLocation: %v", err)
	}

	var span sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "ValidateLocation" {
			span = s
		}
	}
	if span == nil {
		t.Fatal("no ValidateLocation span recorded")
	}
	if len(parents) != 2 {
		t.Fatalf("queries = %d, want wilaya and daira lookups", len(parents))
	}
	for i, p := range parents {
		if p != span.SpanContext().SpanID() {
			t.Fatalf("query %d ran under span %s, want %s", i, p, span.SpanContext().SpanID())
		}
	}
}
