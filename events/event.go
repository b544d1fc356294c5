package events

import (
	"context"
	"time"
)

// Event types published after a committed mutation.
const (
	LeadCreated     = "lead.created"
	LeadUpdated     = "lead.updated"
	LeadDeleted     = "lead.deleted"
	LoadCreated     = "load.created"
	LoadUpdated     = "load.updated"
	LoadDeleted     = "load.deleted"
	EmailSent       = "email.sent"
	TemplateChanged = "template.changed"
)

// Cache keys clients refetch when they see an event.
const (
	KeyLeads     = "leads"
	KeyLoads     = "loads"
	KeyDashboard = "dashboard"
	KeyContacts  = "contacts"
	KeyTemplates = "templates"
)

// Event tells dashboards which cached views are stale.
type Event struct {
	Type     string    `json:"type"`
	Keys     []string  `json:"keys"`
	EntityID string    `json:"entityId,omitempty"`
	At       time.Time `json:"at"`
}

func New(eventType, entityID string, keys ...string) Event {
	return Event{
		Type:     eventType,
		Keys:     keys,
		EntityID: entityID,
		At:       time.Now().UTC(),
	}
}

// Publisher delivers events. Publish never fails the caller; implementations
// log their own errors.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// Nop discards every event.
func Nop() Publisher {
	return nopPublisher{}
}

// MultiPublisher fans one event out to several publishers.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// Recorder keeps published events in memory. Used in tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.Events = append(r.Events, ev)
}

func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Type
	}
	return out
}
