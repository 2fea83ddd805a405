package singer

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/singer-go/tap-sailthru/pkg/errors"
)

// State maps stream identifiers to bookmark values, keyed by
// replication key name. Watermarks are ISO-8601 strings with a UTC
// designator. A stream's bookmark never regresses within a run.
type State struct {
	Bookmarks map[string]map[string]string `json:"bookmarks"`
}

// NewState returns an empty state
func NewState() *State {
	return &State{Bookmarks: make(map[string]map[string]string)}
}

// LoadState reads persisted state from a JSON file. An empty path
// yields a fresh state.
func LoadState(path string) (*State, error) {
	if path == "" {
		return NewState(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read state file")
	}
	state := NewState()
	if err := gojson.Unmarshal(data, state); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse state file")
	}
	if state.Bookmarks == nil {
		state.Bookmarks = make(map[string]map[string]string)
	}
	return state, nil
}

// GetBookmark returns the stored watermark for (stream, key), or the
// fallback if none is stored.
func (s *State) GetBookmark(stream, key, fallback string) string {
	if keys, ok := s.Bookmarks[stream]; ok {
		if v, ok := keys[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}

// SetBookmark stores a watermark for (stream, key)
func (s *State) SetBookmark(stream, key, value string) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]map[string]string)
	}
	if s.Bookmarks[stream] == nil {
		s.Bookmarks[stream] = make(map[string]string)
	}
	s.Bookmarks[stream][key] = value
}
