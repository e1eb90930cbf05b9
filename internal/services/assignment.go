// Package services – Assigner
//
// Assigner implements the complaint routing rule. The municipal category goes
// to the active local deputy whose wilaya and daira both match the complaint;
// every other category goes to the active MP of the wilaya, tagged with the
// category's ministry label. When several officials match, the lowest id in
// lexicographic order wins. When none matches the complaint is still created
// without an official.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

// OfficialLocator finds the official responsible for a location. Both
// methods return gorm.ErrRecordNotFound when nobody matches.
type OfficialLocator interface {
	FindMPForWilaya(ctx context.Context, wilayaID string) (*domain.MP, error)
	FindLocalDeputyFor(ctx context.Context, wilayaID, dairaID string) (*domain.LocalDeputy, error)
}

// RepoOfficials adapts the repository lookups to OfficialLocator.
type RepoOfficials struct {
	DB *gorm.DB
}

// FindMPForWilaya proxies repo.FindMPForWilaya.
func (r RepoOfficials) FindMPForWilaya(ctx context.Context, wilayaID string) (*domain.MP, error) {
	return repo.FindMPForWilaya(ctx, r.DB, wilayaID)
}

// FindLocalDeputyFor proxies repo.FindLocalDeputyFor.
func (r RepoOfficials) FindLocalDeputyFor(ctx context.Context, wilayaID, dairaID string) (*domain.LocalDeputy, error) {
	return repo.FindLocalDeputyFor(ctx, r.DB, wilayaID, dairaID)
}

// Assignment is the routing decision for a complaint. OfficialID is empty
// when no official matched.
type Assignment struct {
	Target       domain.AssignedTo `json:"target"`
	OfficialID   string            `json:"official_id,omitempty"`
	OfficialName string            `json:"official_name,omitempty"`
	Ministry     string            `json:"ministry,omitempty"`
}

// Resolved reports whether an official was found.
func (a Assignment) Resolved() bool { return a.OfficialID != "" }

// Apply copies the decision onto c.
func (a Assignment) Apply(c *domain.Complaint) {
	c.AssignedTo = a.Target
	c.MPID, c.LocalDeputyID = nil, nil
	if !a.Resolved() {
		return
	}
	id := a.OfficialID
	if a.Target == domain.AssignedToLocalDeputy {
		c.LocalDeputyID = &id
	} else {
		c.MPID = &id
	}
}

// Assigner applies the routing rule.
type Assigner struct {
	Officials OfficialLocator
}

// Assign decides who handles a complaint of category filed at
// (wilayaID, dairaID).
//
// Errors:
//   - ErrInvalidCategory for an unknown category.
//   - ErrValidation when the wilaya is missing, or the daira is missing for
//     a municipal complaint.
//   - Storage errors other than not-found are returned as is.
func (a Assigner) Assign(ctx context.Context, category domain.Category, wilayaID, dairaID string) (Assignment, error) {
	ctx, span := observability.Tracer("services/Assigner").Start(ctx, "Assign",
		trace.WithAttributes(
			attribute.String("complaint.category", string(category)),
			attribute.String("wilaya.id", wilayaID),
			attribute.String("daira.id", dairaID),
		),
	)
	defer span.End()

	if !category.Valid() {
		return Assignment{}, ErrInvalidCategory
	}
	wilayaID = strings.TrimSpace(wilayaID)
	dairaID = strings.TrimSpace(dairaID)
	if wilayaID == "" {
		return Assignment{}, invalid("wilaya_id is required")
	}

	if category.IsMunicipal() {
		if dairaID == "" {
			return Assignment{}, invalid("daira_id is required for municipal complaints")
		}
		out := Assignment{Target: domain.AssignedToLocalDeputy}
		d, err := a.Officials.FindLocalDeputyFor(ctx, wilayaID, dairaID)
		switch {
		case err == nil:
			out.OfficialID, out.OfficialName = d.ID, d.Name
		case !isNotFound(err):
			return Assignment{}, err
		}
		span.SetAttributes(attribute.Bool("assignment.resolved", out.Resolved()))
		return out, nil
	}

	out := Assignment{Target: domain.AssignedToMP, Ministry: category.Ministry()}
	mp, err := a.Officials.FindMPForWilaya(ctx, wilayaID)
	switch {
	case err == nil:
		out.OfficialID, out.OfficialName = mp.ID, mp.Name
	case !isNotFound(err):
		return Assignment{}, err
	}
	span.SetAttributes(attribute.Bool("assignment.resolved", out.Resolved()))
	return out, nil
}
