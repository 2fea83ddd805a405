package streams

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// purchaseLog triggers one export_purchase_log job per calendar day
// from the bookmark date through today and streams each day's CSV.
// The export rows carry day-granularity dates, so the stream is
// batched: a re-run re-emits the bookmark day rather than skipping
// past rows that share its timestamp.
type purchaseLog struct {
	deps   Dependencies
	logger *zap.Logger
}

func newPurchaseLog(deps Dependencies) *purchaseLog {
	return &purchaseLog{
		deps:   deps,
		logger: deps.Logger.With(zap.String("stream", "purchase_log")),
	}
}

func (s *purchaseLog) Definition() Definition {
	return Definition{
		TapStreamID:          "purchase_log",
		KeyProperties:        []string{"date", "email_hash", "extid", "message_id", "price", "channel"},
		ReplicationMethod:    Incremental,
		ReplicationKey:       "date",
		ValidReplicationKeys: []string{"date"},
		DateKeys:             []string{"date"},
		Batched:              true,
	}
}

func (s *purchaseLog) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	day := opts.Bookmark.UTC().Truncate(24 * time.Hour)
	today := s.deps.Now().UTC().Truncate(24 * time.Hour)

	for !day.After(today) {
		jobDate := day.Format("20060102")
		params := map[string]interface{}{
			"job":        "export_purchase_log",
			"start_date": jobDate,
			"end_date":   jobDate,
		}
		exportURL, ok, err := runExportJob(ctx, s.deps, params, s.logger)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Info("skipping purchase log day", zap.String("date", jobDate))
			day = day.AddDate(0, 0, 1)
			continue
		}
		if err := s.deps.Jobs.StreamCSV(ctx, exportURL, nil, emit); err != nil {
			return err
		}
		day = day.AddDate(0, 0, 1)
	}
	return nil
}
