// Package convert turns consolidated resource events into per-resource
// batches of search document writes. Conversion is a pure function over
// the event batch and the resource-description catalog; repeated calls
// with the same input produce byte-identical output.
package convert

import (
	"encoding/json"
	"log/slog"

	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
)

// SkippedEvent reports an event that produced no writes.
type SkippedEvent struct {
	Event  model.ResourceEvent
	Reason string
}

// Converter maps events onto document writes. Index targets use the
// effective tenant, so member-tenant events address the central index.
type Converter struct {
	catalog *metadata.Catalog
	tenants consortium.TenantProvider
	logger  *slog.Logger
}

// New creates a Converter.
func New(catalog *metadata.Catalog, tenants consortium.TenantProvider) *Converter {
	return &Converter{
		catalog: catalog,
		tenants: tenants,
		logger:  slog.Default().With("component", "document-converter"),
	}
}

// Convert produces a mapping of resource type to document writes. A single
// event may fan out into more than one bucket when the resource declares
// contribution rules. Events for unknown resources degrade per item; the
// batch as a whole always yields a result, and no write ever carries an
// empty index target.
func (c *Converter) Convert(events []model.ResourceEvent) (map[string][]model.DocumentWrite, []SkippedEvent) {
	writes := make(map[string][]model.DocumentWrite)
	var skipped []SkippedEvent

	for _, ev := range events {
		primary := c.catalog.PrimaryFor(ev.Resource)
		if primary == "" {
			skipped = append(skipped, SkippedEvent{Event: ev, Reason: "unknown resource " + ev.Resource})
			c.logger.Warn("skipping event for unknown resource", "resource", ev.Resource, "id", ev.ID)
			continue
		}
		tenant := c.tenants.EffectiveTenant(ev.Tenant)
		target := index.IndexName(primary, tenant)

		switch ev.Type {
		case model.EventDelete:
			writes[primary] = append(writes[primary], model.DocumentWrite{
				ID:       ev.ID,
				Resource: primary,
				Index:    target,
				Action:   model.ActionDelete,
			})
		default:
			body := ev.BodyJSON()
			if body == nil {
				skipped = append(skipped, SkippedEvent{Event: ev, Reason: "event carries no body"})
				continue
			}
			writes[primary] = append(writes[primary], model.DocumentWrite{
				ID:       ev.ID,
				Resource: primary,
				Index:    target,
				Action:   model.ActionIndex,
				Body:     body,
			})
			c.fanOut(writes, ev, primary, tenant)
		}
	}
	return writes, skipped
}

// fanOut applies the resource's declared contribution rules, emitting
// writes into the target collections' buckets.
func (c *Converter) fanOut(writes map[string][]model.DocumentWrite, ev model.ResourceEvent, primary, tenant string) {
	d, ok := c.catalog.Find(primary)
	if !ok {
		return
	}
	for _, rule := range d.Contributions {
		entries, ok := ev.New[rule.Field].([]any)
		if !ok {
			continue
		}
		for _, raw := range entries {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			id, _ := entry[rule.IDField].(string)
			if id == "" {
				continue
			}
			body, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			writes[rule.Target] = append(writes[rule.Target], model.DocumentWrite{
				ID:       id,
				Resource: rule.Target,
				Index:    index.IndexName(rule.Target, tenant),
				Action:   model.ActionIndex,
				Body:     body,
			})
		}
	}
}
