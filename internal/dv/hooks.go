package dv

import (
	"context"

	"docvault/internal/model"
)

// EventKind names a committed change.
type EventKind string

const (
	EventContainerCreated EventKind = "container.created"
	EventContainerUpdated EventKind = "container.updated"
	EventContainerDeleted EventKind = "container.deleted"
	EventItemCreated      EventKind = "item.created"
	EventItemUpdated      EventKind = "item.updated"
	EventItemDeleted      EventKind = "item.deleted"
	EventItemMoved        EventKind = "item.moved"
)

// Event is dispatched after a change has been committed. Fields that do
// not apply to the kind are nil or empty.
type Event struct {
	Kind      EventKind
	Container *model.Container
	Item      *model.Item
	Revision  *model.Revision
	// Previous holds the old container name or item filename for renames
	// and moves.
	Previous string
}

// Hooks receives committed events. Handler errors are collected and
// returned; they never undo the change.
type Hooks interface {
	Dispatch(ctx context.Context, ev Event) []error
}

// NopHooks drops every event.
type NopHooks struct{}

func (NopHooks) Dispatch(context.Context, Event) []error { return nil }
