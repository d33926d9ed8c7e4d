package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
)

var testDefaults = config.EngineConfig{
	NumberOfShards:   4,
	NumberOfReplicas: 2,
	RefreshInterval:  1,
}

func TestNormalizeRefreshInterval(t *testing.T) {
	tests := []struct {
		refresh int
		want    string
	}{
		{0, "1s"},
		{1, "1s"},
		{30, "30s"},
		{-1, "-1"},
		{-5, "-5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRefreshInterval(tt.refresh))
	}
}

func TestRenderSettingsDefaults(t *testing.T) {
	got := renderSettings(testDefaults, nil)
	assert.JSONEq(t, `{"index":{"number_of_shards":4,"number_of_replicas":2,"refresh_interval":"1s"}}`, got)
}

func TestRenderSettingsOverrides(t *testing.T) {
	shards, replicas, refresh := 8, 0, -1
	got := renderSettings(testDefaults, &model.IndexSettings{
		NumberOfShards:   &shards,
		NumberOfReplicas: &replicas,
		RefreshInterval:  &refresh,
	})
	assert.JSONEq(t, `{"index":{"number_of_shards":8,"number_of_replicas":0,"refresh_interval":"-1"}}`, got)
}

func TestRenderDynamicSettingsExcludesShards(t *testing.T) {
	replicas, refresh := 3, 30
	got := renderDynamicSettings(testDefaults, &model.DynamicSettings{
		NumberOfReplicas: &replicas,
		RefreshInterval:  &refresh,
	})
	assert.JSONEq(t, `{"index":{"number_of_replicas":3,"refresh_interval":"30s"}}`, got)
	assert.NotContains(t, got, "number_of_shards")
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "instance_diku", IndexName("instance", "diku"))
}
