package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/client"
	"github.com/singer-go/tap-sailthru/pkg/config"
	"github.com/singer-go/tap-sailthru/pkg/errors"
)

func testClient(t *testing.T, server *httptest.Server) *client.Client {
	t.Helper()
	cfg := &config.Config{
		APIKey:    "key",
		APISecret: "secret",
		StartDate: "2021-01-01T00:00:00Z",
	}
	return client.New(cfg, zap.NewNop(), client.WithBaseURL(server.URL))
}

func TestSubmitReturnsJobResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/job", r.URL.Path)
		w.Write([]byte(`{"job_id": "job-123", "status": "pending"}`))
	}))
	defer server.Close()

	jm := NewJobManager(testClient(t, server), zap.NewNop())
	resp, err := jm.Submit(context.Background(), map[string]interface{}{
		"job": "blast_query", "blast_id": 42,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-123", resp["job_id"])
}

func TestAwaitCompletionPollsUntilCompleted(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			w.Write([]byte(`{"status": "pending"}`))
			return
		}
		w.Write([]byte(`{"status": "completed", "export_url": "https://export.test/file.csv"}`))
	}))
	defer server.Close()

	jm := NewJobManager(testClient(t, server), zap.NewNop(), WithPollInterval(0))
	url, err := jm.AwaitCompletion(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, "https://export.test/file.csv", url)
	assert.EqualValues(t, 3, atomic.LoadInt32(&polls))
}

func TestAwaitCompletionTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "pending"}`))
	}))
	defer server.Close()

	// Advance the fake clock past the ceiling on the second reading.
	base := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	readings := 0
	clock := func() time.Time {
		readings++
		if readings == 1 {
			return base
		}
		return base.Add(601 * time.Second)
	}

	jm := NewJobManager(testClient(t, server), zap.NewNop(),
		WithPollInterval(0), WithClock(clock))
	_, err := jm.AwaitCompletion(context.Background(), "job-123")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeJobTimeout))
}

func TestStreamCSV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Profile Id,Email Hash,Purchase Count\nprofile-1,hash-1,3\nprofile-2,hash-2,0\n"))
	}))
	defer server.Close()

	jm := NewJobManager(testClient(t, server), zap.NewNop())
	var records []Record
	err := jm.StreamCSV(context.Background(), server.URL+"/export.csv", nil, func(r Record) error {
		records = append(records, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "profile-1", records[0]["Profile Id"])
	assert.Equal(t, "hash-1", records[0]["Email Hash"])
	assert.Equal(t, "0", records[1]["Purchase Count"])
}

func TestStreamCSVStampsExtraFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Profile Id\nprofile-1\n"))
	}))
	defer server.Close()

	jm := NewJobManager(testClient(t, server), zap.NewNop())
	var records []Record
	err := jm.StreamCSV(context.Background(), server.URL+"/export.csv",
		map[string]interface{}{"blast_id": 42}, func(r Record) error {
			records = append(records, r)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 42, records[0]["blast_id"])
}

func TestStreamCSVEmptyFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(""))
	}))
	defer server.Close()

	jm := NewJobManager(testClient(t, server), zap.NewNop())
	err := jm.StreamCSV(context.Background(), server.URL+"/export.csv", nil, func(r Record) error {
		t.Fatal("no records expected")
		return nil
	})
	require.NoError(t, err)
}

func TestStreamCSVShortRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a,b,c\n1,2\n"))
	}))
	defer server.Close()

	jm := NewJobManager(testClient(t, server), zap.NewNop())
	var records []Record
	err := jm.StreamCSV(context.Background(), server.URL+"/export.csv", nil, func(r Record) error {
		records = append(records, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0]["a"])
	_, hasC := records[0]["c"]
	assert.False(t, hasC)
}
