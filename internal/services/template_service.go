package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/search"
)

const maxTemplateTitleRunes = 200

// TemplateService manages reply templates and suggests them for complaints.
type TemplateService struct {
	DB         *gorm.DB
	Complaints *ComplaintService
}

// TemplateInput carries template fields. On update, nil pointers are left
// untouched; an empty category clears it.
type TemplateInput struct {
	Title     *string          `json:"title"`
	Content   *string          `json:"content"`
	Category  *domain.Category `json:"category"`
	IsDefault *bool            `json:"is_default"`
}

// Suggestion is a template ranked against a complaint.
type Suggestion struct {
	Template domain.ReplyTemplate `json:"template"`
	Score    float64              `json:"score"`
}

func (s *TemplateService) tracer() trace.Tracer {
	return observability.Tracer("services/TemplateService")
}

func canUseTemplates(sess *auth.Session) bool { return sess.IsOfficial() || sess.IsAdmin() }

// List returns the templates usable for category (all when empty).
func (s *TemplateService) List(ctx context.Context, sess *auth.Session, category domain.Category) ([]domain.ReplyTemplate, error) {
	if !canUseTemplates(sess) {
		return nil, ErrForbidden
	}
	if category != "" && !category.Valid() {
		return nil, ErrInvalidCategory
	}
	out, err := repo.ListTemplates(ctx, s.DB, category)
	if out == nil {
		out = []domain.ReplyTemplate{}
	}
	return out, err
}

// Create adds a template owned by the caller. Only admins create defaults.
func (s *TemplateService) Create(ctx context.Context, sess *auth.Session, in TemplateInput) (*domain.ReplyTemplate, error) {
	ctx, span := s.tracer().Start(ctx, "Create")
	defer span.End()

	if !canUseTemplates(sess) {
		return nil, ErrForbidden
	}
	t := &domain.ReplyTemplate{CreatedBy: sess.UserID}
	if err := applyTemplateInput(t, in, sess); err != nil {
		return nil, err
	}
	if t.Title == "" || t.Content == "" {
		return nil, invalid("title and content are required")
	}
	if err := repo.CreateTemplate(ctx, s.DB, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update edits a template. Officials may edit their own templates; admins
// any.
func (s *TemplateService) Update(ctx context.Context, sess *auth.Session, id string, in TemplateInput) (*domain.ReplyTemplate, error) {
	ctx, span := s.tracer().Start(ctx, "Update", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	t, err := s.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := applyTemplateInput(t, in, sess); err != nil {
		return nil, err
	}
	if t.Title == "" || t.Content == "" {
		return nil, invalid("title and content must not be empty")
	}
	t.UpdatedAt = time.Now().UTC()
	err = repo.UpdateTemplate(ctx, s.DB, id, map[string]any{
		"title": t.Title, "content": t.Content, "category": t.Category,
		"is_default": t.IsDefault, "updated_at": t.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a non-default template.
func (s *TemplateService) Delete(ctx context.Context, sess *auth.Session, id string) error {
	t, err := s.owned(ctx, sess, id)
	if err != nil {
		return err
	}
	if t.IsDefault {
		return ErrTemplateProtected
	}
	if err := repo.DeleteTemplate(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}

func (s *TemplateService) owned(ctx context.Context, sess *auth.Session, id string) (*domain.ReplyTemplate, error) {
	if !canUseTemplates(sess) {
		return nil, ErrForbidden
	}
	t, err := repo.GetTemplate(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if !sess.IsAdmin() && t.CreatedBy != sess.UserID {
		return nil, ErrForbidden
	}
	return t, nil
}

func applyTemplateInput(t *domain.ReplyTemplate, in TemplateInput, sess *auth.Session) error {
	if in.Title != nil {
		t.Title = cleanText(*in.Title)
		if len([]rune(t.Title)) > maxTemplateTitleRunes {
			return invalid("title must be at most %d characters", maxTemplateTitleRunes)
		}
	}
	if in.Content != nil {
		t.Content = cleanText(*in.Content)
		if len([]rune(t.Content)) > maxReplyRunes {
			return invalid("content must be at most %d characters", maxReplyRunes)
		}
	}
	if in.Category != nil {
		switch c := domain.Category(strings.TrimSpace(string(*in.Category))); {
		case c == "":
			t.Category = nil
		case !c.Valid():
			return ErrInvalidCategory
		default:
			t.Category = &c
		}
	}
	if in.IsDefault != nil {
		if !sess.IsAdmin() {
			return ErrForbidden
		}
		t.IsDefault = *in.IsDefault
	}
	return nil
}

// Suggest ranks the templates of the complaint's category against its
// content and returns at most k with a positive score.
func (s *TemplateService) Suggest(ctx context.Context, sess *auth.Session, complaintID string, k int) ([]Suggestion, error) {
	ctx, span := s.tracer().Start(ctx, "Suggest", trace.WithAttributes(attribute.String("complaint.id", complaintID)))
	defer span.End()

	c, err := s.Complaints.Get(ctx, sess, complaintID)
	if err != nil {
		return nil, err
	}
	if !canAct(sess, c) {
		return nil, ErrForbidden
	}
	templates, err := repo.ListTemplates(ctx, s.DB, c.Category)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.ReplyTemplate, len(templates))
	docs := make([]search.Document, 0, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
		docs = append(docs, search.Document{ID: t.ID, Title: t.Title, Body: t.Content, Pinned: t.IsDefault})
	}
	idx := search.NewIndex(docs)

	out := []Suggestion{}
	for _, r := range idx.TopK(c.Content, k) {
		out = append(out, Suggestion{Template: byID[r.ID], Score: r.Score})
	}
	return out, nil
}
