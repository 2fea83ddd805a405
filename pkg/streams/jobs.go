package streams

import (
	"context"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/client"
	"github.com/singer-go/tap-sailthru/pkg/errors"
)

// exportErrorSkipCode is the Sailthru job error meaning the resource
// cannot be exported in its current state (e.g. a blast that has not
// been sent). Scoped to export-job submission responses only.
const exportErrorSkipCode = 99

// runExportJob submits a bulk export job and waits for its export
// URL. A submission response carrying the known skip code yields
// ok=false with no error so the caller moves on to its next input;
// any other error payload propagates, since swallowing it could hide
// real failures in dependency walks.
func runExportJob(ctx context.Context, deps Dependencies, params map[string]interface{}, logger *zap.Logger) (string, bool, error) {
	resp, err := deps.Jobs.Submit(ctx, params)
	if err != nil {
		return "", false, err
	}

	if rawCode, hasError := resp["error"]; hasError {
		code := cast.ToInt(rawCode)
		if code == exportErrorSkipCode {
			logger.Info("resource not exportable, skipping",
				zap.Any("params", params),
				zap.Any("response", resp))
			return "", false, nil
		}
		return "", false, errors.Newf(errors.ErrorTypeData,
			"job submission failed with error code %d: %v", code, resp["errormsg"])
	}

	jobID := cast.ToString(resp["job_id"])
	if jobID == "" {
		return "", false, errors.New(errors.ErrorTypeData, "job submission response missing job_id")
	}

	exportURL, err := deps.Jobs.AwaitCompletion(ctx, jobID)
	if err != nil {
		return "", false, err
	}
	return exportURL, true, nil
}

// responseRecords extracts a list of record maps from a decoded API
// response under the given key. An absent or empty list is an error:
// these endpoints always return the key when the call succeeds.
func responseRecords(resp client.Response, key string) ([]Record, error) {
	raw, ok := resp[key].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, errors.Newf(errors.ErrorTypeData, "response is empty for %s", key)
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			records = append(records, m)
		}
	}
	return records, nil
}
