// Package consolidate turns a batch of raw resource change events into the
// minimal correct set of events for the write pipeline. Input carries no
// ordering guarantee; duplicates and reparented entities are reconciled
// here so downstream document writes stay idempotent per document id.
package consolidate

import (
	"log/slog"

	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
)

// FailedEvent reports a malformed event dropped from the batch.
type FailedEvent struct {
	Event  model.ResourceEvent
	Reason string
}

// Result is the outcome of one consolidation pass. Events preserves
// discovery order; Failed lists the per-event drops. Consolidation never
// fails as a whole.
type Result struct {
	Events []model.ResourceEvent
	Failed []FailedEvent
}

// Consolidator merges a batch of raw events for the same logical resource.
type Consolidator struct {
	catalog *metadata.Catalog
	logger  *slog.Logger
}

// New creates a Consolidator over the given catalog.
func New(catalog *metadata.Catalog) *Consolidator {
	return &Consolidator{
		catalog: catalog,
		logger:  slog.Default().With("component", "event-consolidator"),
	}
}

// Consolidate deduplicates and merges the batch. For an event whose
// parent-id field changed between Old and New (an entity moved to a
// different owning record), it synthesizes one event per affected parent
// so each parent's document is fully rebuilt rather than patched. The
// last event for a logical identity wins; its output position is the
// identity's first appearance, keeping output deterministic.
func (c *Consolidator) Consolidate(events []model.ResourceEvent) Result {
	var result Result
	position := make(map[string]int)

	emit := func(ev model.ResourceEvent) {
		key := ev.Resource + "|" + ev.Tenant + "|" + ev.ID
		if i, seen := position[key]; seen {
			result.Events[i] = ev
			return
		}
		position[key] = len(result.Events)
		result.Events = append(result.Events, ev)
	}

	for _, ev := range events {
		if ev.ID == "" || ev.Resource == "" {
			result.Failed = append(result.Failed, FailedEvent{Event: ev, Reason: "missing id or resource name"})
			c.logger.Warn("dropping malformed event", "id", ev.ID, "resource", ev.Resource)
			continue
		}

		if ev.Type == model.EventDelete {
			// Deletes carry only identity; bodies are cleared downstream.
			emit(model.ResourceEvent{
				ID:       ev.ID,
				Resource: ev.Resource,
				Tenant:   ev.Tenant,
				Type:     model.EventDelete,
			})
			continue
		}

		if oldParent, newParent, moved := c.reparented(ev); moved {
			primary := c.catalog.PrimaryFor(ev.Resource)
			// The old parent's document is rebuilt as an update so the
			// moved entity's fields disappear from it; the new parent is
			// created fresh. Old state is dropped from both.
			emit(model.ResourceEvent{
				ID:       oldParent,
				Resource: primary,
				Tenant:   ev.Tenant,
				Type:     model.EventUpdate,
				New:      ev.Old,
			})
			emit(model.ResourceEvent{
				ID:       newParent,
				Resource: primary,
				Tenant:   ev.Tenant,
				Type:     model.EventCreate,
				New:      ev.New,
			})
			continue
		}

		emit(ev)
	}
	return result
}

// reparented reports whether the event's parent-id field changed between
// Old and New, returning both parent ids.
func (c *Consolidator) reparented(ev model.ResourceEvent) (oldParent, newParent string, moved bool) {
	if ev.Old == nil || ev.New == nil {
		return "", "", false
	}
	d, ok := c.catalog.Find(ev.Resource)
	if !ok || d.ParentIDField == "" {
		return "", "", false
	}
	oldParent, _ = ev.Old[d.ParentIDField].(string)
	newParent, _ = ev.New[d.ParentIDField].(string)
	if oldParent == "" || newParent == "" || oldParent == newParent {
		return "", "", false
	}
	return oldParent, newParent, true
}
