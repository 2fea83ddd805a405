package streams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadSchemaForEveryStream(t *testing.T) {
	registry := NewRegistry(Dependencies{Logger: zap.NewNop()})
	for _, id := range registry.IDs() {
		schema, err := LoadSchema(id)
		require.NoError(t, err, "stream %s", id)
		assert.Contains(t, schema, "properties", "stream %s", id)
	}
}

func TestLoadSchemaUnknownStream(t *testing.T) {
	_, err := LoadSchema("nope")
	assert.Error(t, err)
}

func TestBuildCatalog(t *testing.T) {
	registry := NewRegistry(Dependencies{Logger: zap.NewNop()})
	catalog, err := BuildCatalog(registry)
	require.NoError(t, err)
	require.Len(t, catalog.Streams, len(registry.IDs()))

	blasts, ok := catalog.Get("blasts")
	require.True(t, ok)
	assert.Equal(t, []string{"blast_id"}, blasts.KeyProperties)
	assert.Equal(t, "INCREMENTAL", blasts.ReplicationMethod)
	assert.Equal(t, "modify_time", blasts.ReplicationKey)

	table := blasts.TableMetadata()
	assert.Equal(t, []string{"blast_id"}, table["table-key-properties"])
	assert.Equal(t, "INCREMENTAL", table["forced-replication-method"])
	assert.Equal(t, []string{"modify_time"}, table["valid-replication-keys"])
	assert.Equal(t, true, table["selected"])

	lists, ok := catalog.Get("lists")
	require.True(t, ok)
	assert.Equal(t, "FULL_TABLE", lists.ReplicationMethod)
	assert.Empty(t, lists.ReplicationKey)
	_, hasValidKeys := lists.TableMetadata()["valid-replication-keys"]
	assert.False(t, hasValidKeys)
}

func TestBuildCatalogMarksReplicationKeyAutomatic(t *testing.T) {
	registry := NewRegistry(Dependencies{Logger: zap.NewNop()})
	catalog, err := BuildCatalog(registry)
	require.NoError(t, err)

	blasts, _ := catalog.Get("blasts")
	var found bool
	for _, m := range blasts.Metadata {
		if len(m.Breadcrumb) == 2 && m.Breadcrumb[1] == "modify_time" {
			found = true
			assert.Equal(t, "automatic", m.Metadata["inclusion"])
		}
	}
	assert.True(t, found)
}
