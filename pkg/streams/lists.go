package streams

import (
	"context"

	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/client"
)

// lists extracts Sailthru list data from /list. The response is
// memoized on the instance so a run that queries lists both directly
// and through a child stream makes one network call; the registry
// builds a fresh instance per run, so nothing is cached across runs.
type lists struct {
	deps   Dependencies
	logger *zap.Logger

	cached client.Response
}

func newLists(deps Dependencies) *lists {
	return &lists{
		deps:   deps,
		logger: deps.Logger.With(zap.String("stream", "lists")),
	}
}

func (s *lists) Definition() Definition {
	return Definition{
		TapStreamID:       "lists",
		KeyProperties:     []string{"list_id"},
		ReplicationMethod: FullTable,
		DateKeys:          []string{"create_time"},
	}
}

func (s *lists) getLists(ctx context.Context) (client.Response, error) {
	if s.cached != nil {
		return s.cached, nil
	}
	resp, err := s.deps.Client.GetLists(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.cached = resp
	return resp, nil
}

func (s *lists) GetRecords(ctx context.Context, opts RecordOptions, emit func(Record) error) error {
	resp, err := s.getLists(ctx)
	if err != nil {
		return err
	}
	records, err := responseRecords(resp, "lists")
	if err != nil {
		s.logger.Error("response is empty for lists")
		return err
	}

	for _, record := range records {
		// Child streams only need list names to feed export jobs.
		if opts.ForParent {
			if err := emit(Record{"name": record["name"]}); err != nil {
				return err
			}
			continue
		}
		if err := emit(record); err != nil {
			return err
		}
	}
	return nil
}
