package streams

import (
	"context"

	"go.uber.org/zap"
)

// blastRepeats extracts recurring campaign data from /blast_repeat.
type blastRepeats struct {
	deps   Dependencies
	logger *zap.Logger
}

func newBlastRepeats(deps Dependencies) *blastRepeats {
	return &blastRepeats{
		deps:   deps,
		logger: deps.Logger.With(zap.String("stream", "blast_repeats")),
	}
}

func (s *blastRepeats) Definition() Definition {
	return Definition{
		TapStreamID:          "blast_repeats",
		KeyProperties:        []string{"repeat_id"},
		ReplicationMethod:    Incremental,
		ReplicationKey:       "modify_time",
		ValidReplicationKeys: []string{"modify_time"},
		DateKeys: []string{
			"create_time",
			"modify_time",
			"start_date",
			"end_date",
			"error_time",
		},
	}
}

func (s *blastRepeats) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	resp, err := s.deps.Client.GetBlastRepeats(ctx, nil)
	if err != nil {
		return err
	}
	records, err := responseRecords(resp, "repeats")
	if err != nil {
		s.logger.Error("response is empty for blast_repeats")
		return err
	}
	for _, record := range records {
		if err := emit(record); err != nil {
			return err
		}
	}
	return nil
}
