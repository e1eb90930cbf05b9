// Package services – GeoService
//
// GeoService resolves the wilaya → daira → mutamadiya hierarchy for display,
// cascading selection lists and location validation. Lists are cached when a
// cache is configured; admin writes invalidate the affected keys. Cache
// failures are logged and fall through to the database.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

const (
	keyWilayas        = "geo:wilayas"
	keyDairasPrefix   = "geo:dairas:"
	keyMutamadiyaPref = "geo:mutamadiyat:"
)

// GeoService provides geographic lookups and reference-data administration.
type GeoService struct {
	DB    *gorm.DB
	Cache cache.Cache // nil disables caching
	TTL   time.Duration
}

// ListWilayas returns every wilaya ordered by code.
func (s *GeoService) ListWilayas(ctx context.Context) ([]domain.Wilaya, error) {
	return cachedList(ctx, s, keyWilayas, func() ([]domain.Wilaya, error) {
		return repo.ListWilayas(ctx, s.DB)
	})
}

// DairasOf returns the dairas of wilayaID. An unknown wilaya yields an empty
// list.
func (s *GeoService) DairasOf(ctx context.Context, wilayaID string) ([]domain.Daira, error) {
	wilayaID = strings.TrimSpace(wilayaID)
	if wilayaID == "" {
		return nil, invalid("wilaya_id is required")
	}
	return cachedList(ctx, s, keyDairasPrefix+wilayaID, func() ([]domain.Daira, error) {
		return repo.ListDairas(ctx, s.DB, wilayaID)
	})
}

// MutamadiyatOf returns the mutamadiyat of dairaID.
func (s *GeoService) MutamadiyatOf(ctx context.Context, dairaID string) ([]domain.Mutamadiya, error) {
	dairaID = strings.TrimSpace(dairaID)
	if dairaID == "" {
		return nil, invalid("daira_id is required")
	}
	return cachedList(ctx, s, keyMutamadiyaPref+dairaID, func() ([]domain.Mutamadiya, error) {
		return repo.ListMutamadiyat(ctx, s.DB, dairaID)
	})
}

// WilayaNameOfDaira returns the name of the wilaya dairaID belongs to. A
// missing daira or a daira pointing at a deleted wilaya yields "" and no
// error; only storage failures are reported.
func (s *GeoService) WilayaNameOfDaira(ctx context.Context, dairaID string) (string, error) {
	d, err := repo.GetDaira(ctx, s.DB, dairaID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	w, err := repo.GetWilaya(ctx, s.DB, d.WilayaID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return w.Name, nil
}

// Names maps wilaya and daira ids to display names. Reports use it to label
// location buckets.
func (s *GeoService) Names(ctx context.Context) (map[string]string, map[string]string, error) {
	ws, err := s.ListWilayas(ctx)
	if err != nil {
		return nil, nil, err
	}
	ds, err := repo.ListDairas(ctx, s.DB, "")
	if err != nil {
		return nil, nil, err
	}
	wn := make(map[string]string, len(ws))
	for _, w := range ws {
		wn[w.ID] = w.Name
	}
	dn := make(map[string]string, len(ds))
	for _, d := range ds {
		dn[d.ID] = d.Name
	}
	return wn, dn, nil
}

// ValidateLocation checks that wilayaID exists and, when dairaID is set, that
// the daira belongs to it. requireDaira makes the daira mandatory.
func (s *GeoService) ValidateLocation(ctx context.Context, wilayaID, dairaID string, requireDaira bool) (*domain.Wilaya, *domain.Daira, error) {
	ctx, span := observability.Tracer("services/GeoService").Start(ctx, "ValidateLocation",
		trace.WithAttributes(attribute.String("wilaya.id", wilayaID), attribute.String("daira.id", dairaID)))
	defer span.End()

	if strings.TrimSpace(wilayaID) == "" {
		return nil, nil, invalid("wilaya_id is required")
	}
	w, err := repo.GetWilaya(ctx, s.DB, wilayaID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, invalid("unknown wilaya %q", wilayaID)
		}
		return nil, nil, err
	}
	if strings.TrimSpace(dairaID) == "" {
		if requireDaira {
			return nil, nil, invalid("daira_id is required")
		}
		return w, nil, nil
	}
	d, err := repo.GetDaira(ctx, s.DB, dairaID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, invalid("unknown daira %q", dairaID)
		}
		return nil, nil, err
	}
	if d.WilayaID != w.ID {
		return nil, nil, invalid("daira %q does not belong to wilaya %q", dairaID, wilayaID)
	}
	return w, d, nil
}

// ----------------------------------------------------------------------------
// Administration

// WilayaInput carries admin wilaya fields. An empty ID defaults to the code.
type WilayaInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code int    `json:"code"`
}

// CreateWilaya inserts a wilaya.
func (s *GeoService) CreateWilaya(ctx context.Context, in WilayaInput) (*domain.Wilaya, error) {
	name := cleanText(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if in.Code <= 0 {
		return nil, invalid("code must be positive")
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = strconv.Itoa(in.Code)
	}
	w := &domain.Wilaya{ID: id, Name: name, Code: in.Code}
	if err := repo.CreateWilaya(ctx, s.DB, w); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("wilaya id or code already exists")
		}
		return nil, err
	}
	s.invalidate(ctx, keyWilayas)
	return w, nil
}

// UpdateWilaya renames a wilaya and/or changes its code.
func (s *GeoService) UpdateWilaya(ctx context.Context, id string, name *string, code *int) (*domain.Wilaya, error) {
	fields := map[string]any{}
	if name != nil {
		n := cleanText(*name)
		if n == "" {
			return nil, invalid("name must not be empty")
		}
		fields["name"] = n
	}
	if code != nil {
		if *code <= 0 {
			return nil, invalid("code must be positive")
		}
		fields["code"] = *code
	}
	if len(fields) > 0 {
		if err := repo.UpdateWilaya(ctx, s.DB, id, fields); err != nil {
			return nil, geoErr(err)
		}
		s.invalidate(ctx, keyWilayas)
	}
	w, err := repo.GetWilaya(ctx, s.DB, id)
	if err != nil {
		return nil, geoErr(err)
	}
	return w, nil
}

// DeleteWilaya removes a wilaya. Its dairas are kept; their display name
// resolves to "" afterwards.
func (s *GeoService) DeleteWilaya(ctx context.Context, id string) error {
	if err := repo.DeleteWilaya(ctx, s.DB, id); err != nil {
		return geoErr(err)
	}
	s.invalidate(ctx, keyWilayas, keyDairasPrefix+id)
	return nil
}

// DairaInput carries admin daira fields.
type DairaInput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	WilayaID string `json:"wilaya_id"`
}

// CreateDaira inserts a daira under an existing wilaya.
func (s *GeoService) CreateDaira(ctx context.Context, in DairaInput) (*domain.Daira, error) {
	name := cleanText(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if _, _, err := s.ValidateLocation(ctx, in.WilayaID, "", false); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	d := &domain.Daira{ID: id, Name: name, WilayaID: in.WilayaID}
	if err := repo.CreateDaira(ctx, s.DB, d); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("daira id already exists")
		}
		return nil, err
	}
	s.invalidate(ctx, keyDairasPrefix+d.WilayaID)
	return d, nil
}

// UpdateDaira renames a daira and/or moves it to another existing wilaya.
func (s *GeoService) UpdateDaira(ctx context.Context, id string, name, wilayaID *string) (*domain.Daira, error) {
	cur, err := repo.GetDaira(ctx, s.DB, id)
	if err != nil {
		return nil, geoErr(err)
	}
	fields := map[string]any{}
	if name != nil {
		n := cleanText(*name)
		if n == "" {
			return nil, invalid("name must not be empty")
		}
		fields["name"] = n
	}
	if wilayaID != nil && *wilayaID != cur.WilayaID {
		if _, _, err := s.ValidateLocation(ctx, *wilayaID, "", false); err != nil {
			return nil, err
		}
		fields["wilaya_id"] = *wilayaID
	}
	if len(fields) > 0 {
		if err := repo.UpdateDaira(ctx, s.DB, id, fields); err != nil {
			return nil, geoErr(err)
		}
		keys := []string{keyDairasPrefix + cur.WilayaID}
		if wilayaID != nil {
			keys = append(keys, keyDairasPrefix+*wilayaID)
		}
		s.invalidate(ctx, keys...)
	}
	d, err := repo.GetDaira(ctx, s.DB, id)
	if err != nil {
		return nil, geoErr(err)
	}
	return d, nil
}

// DeleteDaira removes a daira.
func (s *GeoService) DeleteDaira(ctx context.Context, id string) error {
	cur, err := repo.GetDaira(ctx, s.DB, id)
	if err != nil {
		return geoErr(err)
	}
	if err := repo.DeleteDaira(ctx, s.DB, id); err != nil {
		return geoErr(err)
	}
	s.invalidate(ctx, keyDairasPrefix+cur.WilayaID, keyMutamadiyaPref+id)
	return nil
}

// MutamadiyaInput carries admin mutamadiya fields. The wilaya is taken from
// the parent daira.
type MutamadiyaInput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	DairaID string `json:"daira_id"`
}

// CreateMutamadiya inserts a mutamadiya under an existing daira.
func (s *GeoService) CreateMutamadiya(ctx context.Context, in MutamadiyaInput) (*domain.Mutamadiya, error) {
	name := cleanText(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	d, err := repo.GetDaira(ctx, s.DB, in.DairaID)
	if err != nil {
		if isNotFound(err) {
			return nil, invalid("unknown daira %q", in.DairaID)
		}
		return nil, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	m := &domain.Mutamadiya{ID: id, Name: name, DairaID: d.ID, WilayaID: d.WilayaID}
	if err := repo.CreateMutamadiya(ctx, s.DB, m); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("mutamadiya id already exists")
		}
		return nil, err
	}
	s.invalidate(ctx, keyMutamadiyaPref+d.ID)
	return m, nil
}

// UpdateMutamadiya renames a mutamadiya.
func (s *GeoService) UpdateMutamadiya(ctx context.Context, id, name string) (*domain.Mutamadiya, error) {
	n := cleanText(name)
	if n == "" {
		return nil, invalid("name must not be empty")
	}
	if err := repo.UpdateMutamadiya(ctx, s.DB, id, map[string]any{"name": n}); err != nil {
		return nil, geoErr(err)
	}
	m, err := repo.GetMutamadiya(ctx, s.DB, id)
	if err != nil {
		return nil, geoErr(err)
	}
	s.invalidate(ctx, keyMutamadiyaPref+m.DairaID)
	return m, nil
}

// DeleteMutamadiya removes a mutamadiya.
func (s *GeoService) DeleteMutamadiya(ctx context.Context, id string) error {
	m, err := repo.GetMutamadiya(ctx, s.DB, id)
	if err != nil {
		return geoErr(err)
	}
	if err := repo.DeleteMutamadiya(ctx, s.DB, id); err != nil {
		return geoErr(err)
	}
	s.invalidate(ctx, keyMutamadiyaPref+m.DairaID)
	return nil
}

// ----------------------------------------------------------------------------
// Helpers

func geoErr(err error) error {
	if isNotFound(err) {
		return ErrGeoNotFound
	}
	return err
}

func (s *GeoService) invalidate(ctx context.Context, keys ...string) {
	if s.Cache == nil || len(keys) == 0 {
		return
	}
	if err := s.Cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("geo cache invalidation failed")
	}
}

// cachedList serves key from the cache or loads and stores it.
func cachedList[T any](ctx context.Context, s *GeoService, key string, load func() ([]T, error)) ([]T, error) {
	if s.Cache != nil {
		var out []T
		err := cache.GetJSON(ctx, s.Cache, key, &out)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("geo cache read failed")
		}
	}
	out, err := load()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	if s.Cache != nil {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		if err := cache.SetJSON(ctx, s.Cache, key, out, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("geo cache write failed")
		}
	}
	return out, nil
}
