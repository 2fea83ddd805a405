package singer

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/singer-go/tap-sailthru/pkg/errors"
)

// Catalog describes the extractable streams and their field metadata
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry is one stream's schema and replication metadata
type CatalogEntry struct {
	Stream            string          `json:"stream"`
	TapStreamID       string          `json:"tap_stream_id"`
	Schema            Schema          `json:"schema"`
	KeyProperties     []string        `json:"key_properties"`
	ReplicationMethod string          `json:"replication_method"`
	ReplicationKey    string          `json:"replication_key,omitempty"`
	Metadata          []MetadataEntry `json:"metadata"`
}

// MetadataEntry carries field- or table-level metadata keyed by a
// breadcrumb path; an empty breadcrumb addresses the table itself.
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// LoadCatalog reads a catalog from a JSON file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read catalog file")
	}
	var catalog Catalog
	if err := gojson.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse catalog file")
	}
	return &catalog, nil
}

// Dump writes the catalog as indented JSON
func (c *Catalog) Dump(out *os.File) error {
	data, err := gojson.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode catalog")
	}
	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}

// Get returns the entry for a stream identifier
func (c *Catalog) Get(tapStreamID string) (*CatalogEntry, bool) {
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == tapStreamID {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// IsSelected reports whether the stream is selected for sync. Streams
// with no selection metadata default to selected.
func (e *CatalogEntry) IsSelected() bool {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 0 {
			continue
		}
		if v, ok := m.Metadata["selected"].(bool); ok {
			return v
		}
	}
	return true
}

// TableMetadata returns the table-level metadata map, creating the
// entry if absent.
func (e *CatalogEntry) TableMetadata() map[string]interface{} {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) == 0 {
			return m.Metadata
		}
	}
	meta := make(map[string]interface{})
	e.Metadata = append(e.Metadata, MetadataEntry{Breadcrumb: []string{}, Metadata: meta})
	return meta
}
