package streams

import (
	"embed"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/singer-go/tap-sailthru/pkg/errors"
	"github.com/singer-go/tap-sailthru/pkg/singer"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// LoadSchema returns the embedded JSON schema for a stream
func LoadSchema(tapStreamID string) (singer.Schema, error) {
	data, err := schemaFiles.ReadFile(fmt.Sprintf("schemas/%s.json", tapStreamID))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "no embedded schema for stream %s", tapStreamID)
	}
	var schema singer.Schema
	if err := gojson.Unmarshal(data, &schema); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "invalid embedded schema for stream %s", tapStreamID)
	}
	return schema, nil
}

// BuildCatalog assembles the discovery catalog from the registry's
// stream definitions and their embedded schemas. Table metadata
// carries key properties and the forced replication method; the
// replication key's field metadata is marked automatic, every other
// field available.
func BuildCatalog(registry *Registry) (*singer.Catalog, error) {
	catalog := &singer.Catalog{}

	for _, id := range registry.IDs() {
		stream, _ := registry.Get(id)
		def := stream.Definition()

		schema, err := LoadSchema(id)
		if err != nil {
			return nil, err
		}

		tableMeta := map[string]interface{}{
			"inclusion":                 "available",
			"table-key-properties":      def.KeyProperties,
			"forced-replication-method": string(def.ReplicationMethod),
			"selected":                  true,
		}
		if len(def.ValidReplicationKeys) > 0 {
			tableMeta["valid-replication-keys"] = def.ValidReplicationKeys
		}

		metadata := []singer.MetadataEntry{{
			Breadcrumb: []string{},
			Metadata:   tableMeta,
		}}

		properties, _ := schema["properties"].(map[string]interface{})
		for field := range properties {
			inclusion := "available"
			if field == def.ReplicationKey || isKeyProperty(def, field) {
				inclusion = "automatic"
			}
			metadata = append(metadata, singer.MetadataEntry{
				Breadcrumb: []string{"properties", field},
				Metadata:   map[string]interface{}{"inclusion": inclusion},
			})
		}

		catalog.Streams = append(catalog.Streams, singer.CatalogEntry{
			Stream:            id,
			TapStreamID:       id,
			Schema:            schema,
			KeyProperties:     def.KeyProperties,
			ReplicationMethod: string(def.ReplicationMethod),
			ReplicationKey:    def.ReplicationKey,
			Metadata:          metadata,
		})
	}

	return catalog, nil
}

func isKeyProperty(def Definition, field string) bool {
	for _, key := range def.KeyProperties {
		if key == field {
			return true
		}
	}
	return false
}
