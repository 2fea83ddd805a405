// Package singer implements the Singer protocol surface of the tap:
// line-delimited SCHEMA / RECORD / STATE messages, bookmark state, and
// the catalog with its selection metadata.
package singer

import (
	"io"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/singer-go/tap-sailthru/pkg/errors"
)

// Schema is a raw JSON schema document
type Schema = map[string]interface{}

// Record is an emitted record payload
type Record = map[string]interface{}

// Writer emits Singer messages as line-delimited JSON. The sync loop
// is single-threaded, so the writer performs no locking.
type Writer struct {
	out io.Writer
	now func() time.Time
}

// NewWriter creates a message writer targeting the given output
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, now: time.Now}
}

type schemaMessage struct {
	Type          string   `json:"type"`
	Stream        string   `json:"stream"`
	Schema        Schema   `json:"schema"`
	KeyProperties []string `json:"key_properties"`
	BookmarkKeys  []string `json:"bookmark_properties,omitempty"`
}

type recordMessage struct {
	Type          string `json:"type"`
	Stream        string `json:"stream"`
	Record        Record `json:"record"`
	TimeExtracted string `json:"time_extracted"`
}

type stateMessage struct {
	Type  string `json:"type"`
	Value *State `json:"value"`
}

// WriteSchema announces a stream's schema; emitted once per stream
// before any of its records.
func (w *Writer) WriteSchema(stream string, schema Schema, keyProperties, bookmarkProperties []string) error {
	return w.write(schemaMessage{
		Type:          "SCHEMA",
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
		BookmarkKeys:  bookmarkProperties,
	})
}

// WriteRecord emits a single record for a stream
func (w *Writer) WriteRecord(stream string, record Record) error {
	return w.write(recordMessage{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: w.now().UTC().Format(time.RFC3339Nano),
	})
}

// WriteState reports bookmark progress
func (w *Writer) WriteState(state *State) error {
	return w.write(stateMessage{Type: "STATE", Value: state})
}

func (w *Writer) write(msg interface{}) error {
	line, err := gojson.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode singer message")
	}
	line = append(line, '\n')
	if _, err := w.out.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write singer message")
	}
	return nil
}
