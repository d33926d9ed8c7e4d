package index

import (
	"encoding/json"
	"strconv"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
)

// renderSettings builds the settings JSON applied at index creation.
// Shard count only applies here; it is immutable afterwards.
func renderSettings(defaults config.EngineConfig, opts *model.IndexSettings) string {
	shards := defaults.NumberOfShards
	replicas := defaults.NumberOfReplicas
	refresh := defaults.RefreshInterval
	if opts != nil {
		if opts.NumberOfShards != nil {
			shards = *opts.NumberOfShards
		}
		if opts.NumberOfReplicas != nil {
			replicas = *opts.NumberOfReplicas
		}
		if opts.RefreshInterval != nil {
			refresh = *opts.RefreshInterval
		}
	}
	payload, _ := json.Marshal(map[string]map[string]any{
		"index": {
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
			"refresh_interval":   normalizeRefreshInterval(refresh),
		},
	})
	return string(payload)
}

// renderDynamicSettings builds the settings JSON for post-creation
// updates. Replica count and refresh interval are the only mutable fields.
func renderDynamicSettings(defaults config.EngineConfig, opts *model.DynamicSettings) string {
	replicas := defaults.NumberOfReplicas
	refresh := defaults.RefreshInterval
	if opts != nil {
		if opts.NumberOfReplicas != nil {
			replicas = *opts.NumberOfReplicas
		}
		if opts.RefreshInterval != nil {
			refresh = *opts.RefreshInterval
		}
	}
	payload, _ := json.Marshal(map[string]map[string]any{
		"index": {
			"number_of_replicas": replicas,
			"refresh_interval":   normalizeRefreshInterval(refresh),
		},
	})
	return string(payload)
}

// normalizeRefreshInterval maps the numeric refresh-interval setting onto
// the engine's string form: unset or 0 means the "1s" default, a negative
// value is the engine's literal disable sentinel, and a positive value N
// becomes "Ns".
func normalizeRefreshInterval(refresh int) string {
	switch {
	case refresh == 0:
		return "1s"
	case refresh < 0:
		return strconv.Itoa(refresh)
	default:
		return strconv.Itoa(refresh) + "s"
	}
}
