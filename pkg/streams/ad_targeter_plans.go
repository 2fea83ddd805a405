package streams

import (
	"context"

	"go.uber.org/zap"
)

// adTargeterPlans extracts Ad Targeter plan data from /ad/plan.
type adTargeterPlans struct {
	deps   Dependencies
	logger *zap.Logger
}

func newAdTargeterPlans(deps Dependencies) *adTargeterPlans {
	return &adTargeterPlans{
		deps:   deps,
		logger: deps.Logger.With(zap.String("stream", "ad_targeter_plans")),
	}
}

func (s *adTargeterPlans) Definition() Definition {
	return Definition{
		TapStreamID:       "ad_targeter_plans",
		KeyProperties:     []string{"plan_id"},
		ReplicationMethod: FullTable,
	}
}

func (s *adTargeterPlans) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	resp, err := s.deps.Client.GetAdTargeterPlans(ctx, nil)
	if err != nil {
		return err
	}
	records, err := responseRecords(resp, "ad_plans")
	if err != nil {
		s.logger.Error("response is empty for ad_plans")
		return err
	}
	for _, record := range records {
		if err := emit(record); err != nil {
			return err
		}
	}
	return nil
}
