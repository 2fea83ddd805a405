package streams

import (
	"context"

	"go.uber.org/zap"
)

// blastQuery triggers a blast_query export job per parent blast and
// streams the resulting CSV. Each row is stamped with the blast_id it
// was exported for.
type blastQuery struct {
	deps   Dependencies
	parent Stream
	logger *zap.Logger
}

func newBlastQuery(deps Dependencies, parent Stream) *blastQuery {
	return &blastQuery{
		deps:   deps,
		parent: parent,
		logger: deps.Logger.With(zap.String("stream", "blast_query")),
	}
}

func (s *blastQuery) Definition() Definition {
	return Definition{
		TapStreamID:       "blast_query",
		KeyProperties:     []string{"profile_id", "blast_id"},
		ReplicationMethod: FullTable,
		Parent:            "blasts",
		DateKeys: []string{
			"send_time",
			"open_time",
			"click_time",
			"purchase_time",
			"first_ten_clicks_time",
		},
	}
}

func (s *blastQuery) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	return s.parent.GetRecords(ctx, RecordOptions{ForParent: true}, func(parentRecord Record) error {
		blastID := parentRecord["blast_id"]

		params := map[string]interface{}{
			"job":      "blast_query",
			"blast_id": blastID,
		}
		exportURL, ok, err := runExportJob(ctx, s.deps, params, s.logger)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Info("skipping blast", zap.Any("blast_id", blastID))
			return nil
		}

		return s.deps.Jobs.StreamCSV(ctx, exportURL,
			map[string]interface{}{"blast_id": blastID}, emit)
	})
}
