// Package export manages Sailthru asynchronous bulk export jobs:
// submit a job, poll its status until completion, and stream the
// resulting CSV file as records.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/client"
	"github.com/singer-go/tap-sailthru/pkg/errors"
	"github.com/singer-go/tap-sailthru/pkg/metrics"
)

const (
	// DefaultPollInterval is the fixed delay between job status polls
	DefaultPollInterval = 1 * time.Second
	// DefaultJobTimeout is the wall-clock ceiling for a single job to
	// reach the completed status
	DefaultJobTimeout = 600 * time.Second
)

// Record is a row mapping produced from an export file or API response
type Record = map[string]interface{}

// JobManager runs the submit/poll/fetch lifecycle for bulk exports
type JobManager struct {
	client       *client.Client
	logger       *zap.Logger
	pollInterval time.Duration
	timeout      time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option customizes job manager construction
type Option func(*JobManager)

// WithPollInterval overrides the status poll interval
func WithPollInterval(d time.Duration) Option {
	return func(jm *JobManager) { jm.pollInterval = d }
}

// WithTimeout overrides the job completion ceiling
func WithTimeout(d time.Duration) Option {
	return func(jm *JobManager) { jm.timeout = d }
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(jm *JobManager) { jm.now = now }
}

// NewJobManager creates a job manager backed by the given client
func NewJobManager(c *client.Client, logger *zap.Logger, opts ...Option) *JobManager {
	jm := &JobManager{
		client:       c,
		logger:       logger.With(zap.String("component", "job_manager")),
		pollInterval: DefaultPollInterval,
		timeout:      DefaultJobTimeout,
		now:          time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(jm)
	}
	return jm
}

// Submit issues a job-creation call and returns the decoded response.
// The response either carries a job_id or an application error
// payload; translating an error payload into skip-or-fail is the
// caller's decision, since only the calling stream knows which error
// codes mean "this input cannot be exported".
func (jm *JobManager) Submit(ctx context.Context, params map[string]interface{}) (client.Response, error) {
	jobName, _ := params["job"].(string)
	jm.logger.Info("starting background job", zap.String("job", jobName))

	resp, err := jm.client.CreateJob(ctx, params)
	if err != nil {
		metrics.ExportJobs.WithLabelValues(jobName, "submit_failed").Inc()
		return nil, err
	}
	metrics.ExportJobs.WithLabelValues(jobName, "submitted").Inc()
	return resp, nil
}

// AwaitCompletion polls the job-status endpoint once per poll interval
// until the job reports completed, then returns the export file URL.
// If the job does not complete within the configured ceiling the
// operation fails with a job_timeout error; that aborts only the
// current stream's export unless the stream chooses not to catch it.
func (jm *JobManager) AwaitCompletion(ctx context.Context, jobID string) (string, error) {
	start := jm.now()
	status := ""

	for status != "completed" {
		resp, err := jm.client.GetJob(ctx, map[string]interface{}{"job_id": jobID})
		if err != nil {
			return "", err
		}

		status, _ = resp["status"].(string)
		jm.logger.Info("job report status",
			zap.String("job_id", jobID),
			zap.String("status", status))

		if status == "completed" {
			exportURL, _ := resp["export_url"].(string)
			return exportURL, nil
		}

		if jm.now().Sub(start) > jm.timeout {
			jm.logger.Error("job exceeded completion timeout",
				zap.String("job_id", jobID),
				zap.Duration("timeout", jm.timeout),
				zap.String("latest_status", status))
			return "", errors.Newf(errors.ErrorTypeJobTimeout,
				"job %s exceeded %s timeout, latest status: %s", jobID, jm.timeout, status)
		}
		if err := jm.sleep(ctx, jm.pollInterval); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeTimeout, "job poll interrupted")
		}
	}
	return "", nil
}

// StreamCSV performs a streamed GET against an export URL and emits
// each delimited row as a mapping keyed by the header row. Rows are
// read and emitted one at a time so memory stays bounded regardless of
// file size. If extraFields is supplied, every row is augmented with
// those fixed key/value pairs before emission.
func (jm *JobManager) StreamCSV(ctx context.Context, exportURL string, extraFields map[string]interface{}, emit func(Record) error) error {
	body, err := jm.client.StreamExport(ctx, exportURL)
	if err != nil {
		return err
	}
	defer body.Close()

	reader := csv.NewReader(bufio.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to read export header row")
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to read export row")
		}

		record := make(Record, len(header)+len(extraFields))
		for i, field := range header {
			if i < len(row) {
				record[field] = row[i]
			}
		}
		for k, v := range extraFields {
			record[k] = v
		}
		if err := emit(record); err != nil {
			return err
		}
	}
}
