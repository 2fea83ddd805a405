package streams

import (
	"context"

	"go.uber.org/zap"
)

// blastSaveList triggers an export_list_data job per parent list and
// streams the resulting subscriber CSV.
type blastSaveList struct {
	deps   Dependencies
	parent Stream
	logger *zap.Logger
}

func newBlastSaveList(deps Dependencies, parent Stream) *blastSaveList {
	return &blastSaveList{
		deps:   deps,
		parent: parent,
		logger: deps.Logger.With(zap.String("stream", "blast_save_list")),
	}
}

func (s *blastSaveList) Definition() Definition {
	return Definition{
		TapStreamID:       "blast_save_list",
		KeyProperties:     []string{"profile_id"},
		ReplicationMethod: FullTable,
		Parent:            "lists",
		DateKeys: []string{
			"profile_created_date",
			"optout_time",
			"first_purchase_time",
			"last_purchase_time",
		},
	}
}

func (s *blastSaveList) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	return s.parent.GetRecords(ctx, RecordOptions{ForParent: true}, func(parentRecord Record) error {
		listName := parentRecord["name"]

		params := map[string]interface{}{
			"job":  "export_list_data",
			"list": listName,
		}
		exportURL, ok, err := runExportJob(ctx, s.deps, params, s.logger)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Info("skipping list", zap.Any("list", listName))
			return nil
		}

		return s.deps.Jobs.StreamCSV(ctx, exportURL, nil, emit)
	})
}
