// Package events carries change notifications for complaints and
// registrations. Services publish after commit; the HTTP layer streams
// matching events to connected clients over Server-Sent Events. Delivery is
// best effort: a slow subscriber loses events rather than blocking writers.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind names what changed.
type Kind string

const (
	ComplaintCreated    Kind = "complaint.created"
	ComplaintUpdated    Kind = "complaint.updated"
	ComplaintDeleted    Kind = "complaint.deleted"
	RegistrationCreated Kind = "registration.created"
	RegistrationUpdated Kind = "registration.updated"
)

// Event is a change notification. OwnerID and OfficialIDs let subscribers
// filter without another database round trip.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	ResourceID  string    `json:"resource_id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	OfficialIDs []string  `json:"official_ids,omitempty"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"at"`
	Origin      string    `json:"origin,omitempty"`
}

// New returns an event stamped with a fresh id and the current time.
func New(kind Kind, resourceID string) Event {
	return Event{ID: uuid.NewString(), Kind: kind, ResourceID: resourceID, At: time.Now().UTC()}
}

// Concerns reports whether officialID is one of the event's officials.
func (e Event) Concerns(officialID string) bool {
	if officialID == "" {
		return false
	}
	for _, id := range e.OfficialIDs {
		if id == officialID {
			return true
		}
	}
	return false
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
