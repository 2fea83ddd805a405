package singer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	var msg map[string]interface{}
	require.NoError(t, gojson.Unmarshal([]byte(line), &msg))
	return msg
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteSchema("blasts",
		Schema{"type": "object"},
		[]string{"blast_id"},
		[]string{"modify_time"})
	require.NoError(t, err)

	msg := decodeLine(t, buf.String())
	assert.Equal(t, "SCHEMA", msg["type"])
	assert.Equal(t, "blasts", msg["stream"])
	assert.Equal(t, []interface{}{"blast_id"}, msg["key_properties"])
	assert.Equal(t, []interface{}{"modify_time"}, msg["bookmark_properties"])
}

func TestWriteSchemaOmitsEmptyBookmarkProperties(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteSchema("lists", Schema{"type": "object"}, []string{"list_id"}, nil))
	msg := decodeLine(t, buf.String())
	_, present := msg["bookmark_properties"]
	assert.False(t, present)
}

func TestWriteRecordStampsTimeExtracted(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	fixed := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.WriteRecord("lists", Record{"list_id": "1"}))

	msg := decodeLine(t, buf.String())
	assert.Equal(t, "RECORD", msg["type"])
	assert.Equal(t, "lists", msg["stream"])
	assert.Equal(t, "2021-06-01T12:00:00Z", msg["time_extracted"])
	record := msg["record"].(map[string]interface{})
	assert.Equal(t, "1", record["list_id"])
}

func TestWriteState(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	state := NewState()
	state.SetBookmark("blasts", "modify_time", "2021-06-01T00:00:00Z")
	require.NoError(t, w.WriteState(state))

	msg := decodeLine(t, buf.String())
	assert.Equal(t, "STATE", msg["type"])
	value := msg["value"].(map[string]interface{})
	bookmarks := value["bookmarks"].(map[string]interface{})
	blasts := bookmarks["blasts"].(map[string]interface{})
	assert.Equal(t, "2021-06-01T00:00:00Z", blasts["modify_time"])
}

func TestMessagesAreLineDelimited(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteSchema("lists", Schema{}, nil, nil))
	require.NoError(t, w.WriteRecord("lists", Record{"list_id": "1"}))
	require.NoError(t, w.WriteState(NewState()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		decodeLine(t, line)
	}
}
