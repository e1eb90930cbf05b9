// Package services – OfficialService
//
// OfficialService manages the officials directory: public MP profiles and
// listings, and admin CRUD for MPs and local deputies. Names are normalised
// (collapsed whitespace, French title case) and phone numbers are stored in
// E.164 digits so that login and WhatsApp forwarding can match them.
package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

// OfficialService provides the officials directory.
type OfficialService struct {
	DB  *gorm.DB
	Geo *GeoService
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeName trims, collapses whitespace and title-cases a person name.
func normalizeName(s string) string {
	s = whitespaceRE.ReplaceAllString(cleanText(s), " ")
	if s == "" {
		return ""
	}
	// Casers keep state; build one per call.
	return cases.Title(language.French).String(s)
}

// normalizeOptionalPhone validates a phone that may be empty.
func normalizeOptionalPhone(field, s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	p, ok := utils.NormalizePhone(s)
	if !ok {
		return "", invalid("invalid %s", field)
	}
	return p, nil
}

func (s *OfficialService) tracer() trace.Tracer {
	return observability.Tracer("services/OfficialService")
}

// ----------------------------------------------------------------------------
// MPs

// ListMPs returns active MPs, optionally restricted to a wilaya.
func (s *OfficialService) ListMPs(ctx context.Context, wilayaID string, page, pageSize int) ([]domain.MP, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListMPs", trace.WithAttributes(attribute.String("wilaya.id", wilayaID)))
	defer span.End()

	offset, limit := utils.Offset(page, pageSize)
	return repo.ListMPs(ctx, s.DB, repo.OfficialFilter{WilayaID: wilayaID, ActiveOnly: true}, offset, limit)
}

// AdminListMPs returns MPs including inactive ones. Admin only.
func (s *OfficialService) AdminListMPs(ctx context.Context, sess *auth.Session, wilayaID string, page, pageSize int) ([]domain.MP, int64, error) {
	if !sess.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	offset, limit := utils.Offset(page, pageSize)
	return repo.ListMPs(ctx, s.DB, repo.OfficialFilter{WilayaID: wilayaID}, offset, limit)
}

// GetMP returns the public profile of an active MP.
func (s *OfficialService) GetMP(ctx context.Context, id string) (*domain.MP, error) {
	mp, err := repo.GetMP(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrOfficialNotFound
		}
		return nil, err
	}
	if !mp.IsActive {
		return nil, ErrOfficialNotFound
	}
	return mp, nil
}

// MPInput carries MP fields. On update, nil pointers are left untouched.
type MPInput struct {
	Name       *string `json:"name"`
	WilayaID   *string `json:"wilaya_id"`
	DairaID    *string `json:"daira_id"`
	Bloc       *string `json:"bloc"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	Bio        *string `json:"bio"`
	Image      *string `json:"image"`
	ProfileURL *string `json:"profile_url"`
	IsActive   *bool   `json:"is_active"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// CreateMP adds an MP. Name and wilaya are required; new MPs are active
// unless IsActive says otherwise.
func (s *OfficialService) CreateMP(ctx context.Context, sess *auth.Session, in MPInput) (*domain.MP, error) {
	ctx, span := s.tracer().Start(ctx, "CreateMP")
	defer span.End()

	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	name := normalizeName(deref(in.Name))
	if name == "" {
		return nil, invalid("name is required")
	}
	phone, err := normalizeOptionalPhone("phone", deref(in.Phone))
	if err != nil {
		return nil, err
	}
	mp := &domain.MP{
		ID:         uuid.NewString(),
		Name:       name,
		Bloc:       cleanText(deref(in.Bloc)),
		Phone:      phone,
		Email:      strings.TrimSpace(deref(in.Email)),
		Bio:        cleanText(deref(in.Bio)),
		Image:      strings.TrimSpace(deref(in.Image)),
		ProfileURL: strings.TrimSpace(deref(in.ProfileURL)),
		IsActive:   in.IsActive == nil || *in.IsActive,
	}
	if err := s.placeMP(ctx, mp, deref(in.WilayaID), deref(in.DairaID)); err != nil {
		return nil, err
	}
	if err := repo.CreateMP(ctx, s.DB, mp); err != nil {
		return nil, err
	}
	return mp, nil
}

// placeMP validates and sets the MP location with denormalised names.
func (s *OfficialService) placeMP(ctx context.Context, mp *domain.MP, wilayaID, dairaID string) error {
	mp.WilayaID = strings.TrimSpace(wilayaID)
	mp.DairaID, mp.Daira = nil, ""
	dairaID = strings.TrimSpace(dairaID)
	if s.Geo == nil {
		if mp.WilayaID == "" {
			return invalid("wilaya_id is required")
		}
		if dairaID != "" {
			mp.DairaID = &dairaID
		}
		return nil
	}
	w, d, err := s.Geo.ValidateLocation(ctx, mp.WilayaID, dairaID, false)
	if err != nil {
		return err
	}
	mp.Wilaya = w.Name
	if d != nil {
		id := d.ID
		mp.DairaID, mp.Daira = &id, d.Name
	}
	return nil
}

// UpdateMP edits an MP. Admin only.
func (s *OfficialService) UpdateMP(ctx context.Context, sess *auth.Session, id string, in MPInput) (*domain.MP, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateMP", trace.WithAttributes(attribute.String("mp.id", id)))
	defer span.End()

	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	mp, err := repo.GetMP(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrOfficialNotFound
		}
		return nil, err
	}
	if in.Name != nil {
		if mp.Name = normalizeName(*in.Name); mp.Name == "" {
			return nil, invalid("name must not be empty")
		}
	}
	if in.WilayaID != nil || in.DairaID != nil {
		wilayaID, dairaID := mp.WilayaID, deref(mp.DairaID)
		if in.WilayaID != nil {
			wilayaID, dairaID = *in.WilayaID, ""
		}
		if in.DairaID != nil {
			dairaID = *in.DairaID
		}
		if err := s.placeMP(ctx, mp, wilayaID, dairaID); err != nil {
			return nil, err
		}
	}
	if in.Phone != nil {
		if mp.Phone, err = normalizeOptionalPhone("phone", *in.Phone); err != nil {
			return nil, err
		}
	}
	if in.Bloc != nil {
		mp.Bloc = cleanText(*in.Bloc)
	}
	if in.Email != nil {
		mp.Email = strings.TrimSpace(*in.Email)
	}
	if in.Bio != nil {
		mp.Bio = cleanText(*in.Bio)
	}
	if in.Image != nil {
		mp.Image = strings.TrimSpace(*in.Image)
	}
	if in.ProfileURL != nil {
		mp.ProfileURL = strings.TrimSpace(*in.ProfileURL)
	}
	if in.IsActive != nil {
		mp.IsActive = *in.IsActive
	}
	err = repo.UpdateMP(ctx, s.DB, id, map[string]any{
		"name": mp.Name, "wilaya": mp.Wilaya, "wilaya_id": mp.WilayaID, "daira_id": mp.DairaID,
		"daira": mp.Daira, "bloc": mp.Bloc, "phone": mp.Phone, "email": mp.Email, "bio": mp.Bio,
		"image": mp.Image, "profile_url": mp.ProfileURL, "is_active": mp.IsActive,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return mp, nil
}

// DeleteMP removes an MP. Complaints keep their mp_id; they show no
// official afterwards.
func (s *OfficialService) DeleteMP(ctx context.Context, sess *auth.Session, id string) error {
	if !sess.IsAdmin() {
		return ErrForbidden
	}
	if err := repo.DeleteMP(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrOfficialNotFound
		}
		return err
	}
	return nil
}

// ----------------------------------------------------------------------------
// Local deputies

// ListLocalDeputies returns deputies of a wilaya and/or daira. Officials see
// active deputies only; admins see all.
func (s *OfficialService) ListLocalDeputies(ctx context.Context, sess *auth.Session, wilayaID, dairaID string) ([]domain.LocalDeputy, error) {
	ctx, span := s.tracer().Start(ctx, "ListLocalDeputies",
		trace.WithAttributes(attribute.String("wilaya.id", wilayaID), attribute.String("daira.id", dairaID)))
	defer span.End()

	if !sess.IsOfficial() && !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	out, err := repo.ListLocalDeputies(ctx, s.DB, repo.OfficialFilter{
		WilayaID:   wilayaID,
		DairaID:    dairaID,
		ActiveOnly: !sess.IsAdmin(),
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.LocalDeputy{}
	}
	return out, nil
}

// DeputyInput carries local deputy fields. On update, nil pointers are left
// untouched.
type DeputyInput struct {
	Name           *string `json:"name"`
	WilayaID       *string `json:"wilaya_id"`
	DairaID        *string `json:"daira_id"`
	Phone          *string `json:"phone"`
	WhatsAppNumber *string `json:"whatsapp_number"`
	Email          *string `json:"email"`
	Bio            *string `json:"bio"`
	Image          *string `json:"image"`
	IsActive       *bool   `json:"is_active"`
}

// CreateLocalDeputy adds a deputy. Name, wilaya and daira are required.
func (s *OfficialService) CreateLocalDeputy(ctx context.Context, sess *auth.Session, in DeputyInput) (*domain.LocalDeputy, error) {
	ctx, span := s.tracer().Start(ctx, "CreateLocalDeputy")
	defer span.End()

	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	name := normalizeName(deref(in.Name))
	if name == "" {
		return nil, invalid("name is required")
	}
	wilayaID, dairaID := strings.TrimSpace(deref(in.WilayaID)), strings.TrimSpace(deref(in.DairaID))
	if err := s.checkDeputyLocation(ctx, wilayaID, dairaID); err != nil {
		return nil, err
	}
	phone, err := normalizeOptionalPhone("phone", deref(in.Phone))
	if err != nil {
		return nil, err
	}
	wa, err := normalizeOptionalPhone("whatsapp_number", deref(in.WhatsAppNumber))
	if err != nil {
		return nil, err
	}
	d := &domain.LocalDeputy{
		ID:             uuid.NewString(),
		Name:           name,
		WilayaID:       wilayaID,
		DairaID:        dairaID,
		Phone:          phone,
		WhatsAppNumber: wa,
		Email:          strings.TrimSpace(deref(in.Email)),
		Bio:            cleanText(deref(in.Bio)),
		Image:          strings.TrimSpace(deref(in.Image)),
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
	if err := repo.CreateLocalDeputy(ctx, s.DB, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *OfficialService) checkDeputyLocation(ctx context.Context, wilayaID, dairaID string) error {
	if wilayaID == "" || dairaID == "" {
		return invalid("wilaya_id and daira_id are required")
	}
	if s.Geo == nil {
		return nil
	}
	_, _, err := s.Geo.ValidateLocation(ctx, wilayaID, dairaID, true)
	return err
}

// UpdateLocalDeputy edits a deputy. Admin only.
func (s *OfficialService) UpdateLocalDeputy(ctx context.Context, sess *auth.Session, id string, in DeputyInput) (*domain.LocalDeputy, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateLocalDeputy", trace.WithAttributes(attribute.String("deputy.id", id)))
	defer span.End()

	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	d, err := repo.GetLocalDeputy(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrDeputyNotFound
		}
		return nil, err
	}
	if in.Name != nil {
		if d.Name = normalizeName(*in.Name); d.Name == "" {
			return nil, invalid("name must not be empty")
		}
	}
	if in.WilayaID != nil || in.DairaID != nil {
		if in.WilayaID != nil {
			d.WilayaID = strings.TrimSpace(*in.WilayaID)
		}
		if in.DairaID != nil {
			d.DairaID = strings.TrimSpace(*in.DairaID)
		}
		if err := s.checkDeputyLocation(ctx, d.WilayaID, d.DairaID); err != nil {
			return nil, err
		}
	}
	if in.Phone != nil {
		if d.Phone, err = normalizeOptionalPhone("phone", *in.Phone); err != nil {
			return nil, err
		}
	}
	if in.WhatsAppNumber != nil {
		if d.WhatsAppNumber, err = normalizeOptionalPhone("whatsapp_number", *in.WhatsAppNumber); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		d.Email = strings.TrimSpace(*in.Email)
	}
	if in.Bio != nil {
		d.Bio = cleanText(*in.Bio)
	}
	if in.Image != nil {
		d.Image = strings.TrimSpace(*in.Image)
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
	err = repo.UpdateLocalDeputy(ctx, s.DB, id, map[string]any{
		"name": d.Name, "wilaya_id": d.WilayaID, "daira_id": d.DairaID, "phone": d.Phone,
		"whatsapp_number": d.WhatsAppNumber, "email": d.Email, "bio": d.Bio, "image": d.Image,
		"is_active": d.IsActive, "updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteLocalDeputy removes a deputy.
func (s *OfficialService) DeleteLocalDeputy(ctx context.Context, sess *auth.Session, id string) error {
	if !sess.IsAdmin() {
		return ErrForbidden
	}
	if err := repo.DeleteLocalDeputy(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrDeputyNotFound
		}
		return err
	}
	return nil
}
