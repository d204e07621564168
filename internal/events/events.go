// Package events publishes domain changes so other services and online field
// devices learn about them without polling. Publishing is best-effort.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	InterventionSynchronized Type = "intervention.synchronized"
	PhotoSynchronized        Type = "photo.synchronized"
	StationStatusChanged     Type = "station.status_changed"
)

type Event struct {
	Type       Type        `json:"type"`
	EntityID   string      `json:"entityId"`
	SiteID     string      `json:"siteId,omitempty"`
	ActorID    string      `json:"actorId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
