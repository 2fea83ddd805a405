package streams

import (
	"context"

	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/transform"
)

// users looks up the full profile for every subscriber surfaced by the
// blast_save_list export and emits it in flattened form.
type users struct {
	deps   Dependencies
	parent Stream
	logger *zap.Logger
}

func newUsers(deps Dependencies, parent Stream) *users {
	return &users{
		deps:   deps,
		parent: parent,
		logger: deps.Logger.With(zap.String("stream", "users")),
	}
}

func (s *users) Definition() Definition {
	return Definition{
		TapStreamID:       "users",
		KeyProperties:     []string{"profile_id"},
		ReplicationMethod: FullTable,
		Parent:            "blast_save_list",
	}
}

func (s *users) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	return s.parent.GetRecords(ctx, RecordOptions{}, func(parentRecord Record) error {
		// Parent rows are raw CSV records; the header has not been
		// snake-cased at this point.
		profileID, _ := parentRecord["Profile Id"].(string)
		if profileID == "" {
			s.logger.Warn("subscriber row missing profile id, skipping")
			return nil
		}

		resp, err := s.deps.Client.GetUser(ctx, map[string]interface{}{"id": profileID})
		if err != nil {
			return err
		}
		return emit(transform.FlattenUserResponse(resp))
	})
}
